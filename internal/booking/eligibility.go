package booking

import (
	"strings"

	"github.com/sitevisit/backend/internal/models"
)

// GeneralFilesField is the form field for free attachments.
const GeneralFilesField = "files"

// noWorkshopDetail is the sentinel clients send when no detail applies.
const noWorkshopDetail = "none"

var requiredFiles = map[models.WorkshopDetail][]string{
	models.WorkshopDetailReexecution:     {"excavationPhotos", "engineerReport", "concreteStudy"},
	models.WorkshopDetailConcreteTesting: {"currentWorkPhotos", "workAcceptanceReport", "concreteResults"},
	models.WorkshopDetailConcreteWorks:   {"sitePhotos", "formworkAcceptanceReport"},
	models.WorkshopDetailSoil:            {"sitePhotoTemporary", "ownerInvitationTemporary"},
	models.WorkshopDetailNotSpecified:    {"temporaryAcceptanceCopy", "ownerInvitationFinal"},
}

// RequiredFiles returns the mandatory file fields for a workshop detail, in
// reporting order.
func RequiredFiles(detail models.WorkshopDetail) []string {
	fields := requiredFiles[detail]
	out := make([]string, len(fields))
	copy(out, fields)
	return out
}

// FieldSet is the set of file fields present on a submission.
type FieldSet map[string]bool

func NewFieldSet(fields ...string) FieldSet {
	set := make(FieldSet, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	return set
}

// Eligibility is the outcome of a successful Validate call.
type Eligibility struct {
	VisitReason           models.VisitReason
	WorkshopDetail        *models.WorkshopDetail
	RequiredFields        []string
	GeneralUploadAllowed  bool
	WorkshopDetailIgnored bool
}

// Validate decides whether a visit request is well formed for the given role
// and which file fields it must carry.
func Validate(role models.UserRole, visitReason, workshopDetail string, present FieldSet) (*Eligibility, error) {
	reason, err := models.ParseVisitReason(visitReason)
	if err != nil {
		return nil, ErrInvalidVisitReason
	}

	detailSupplied := !isAbsentDetail(workshopDetail)

	if reason != models.VisitReasonWorkshop {
		return &Eligibility{
			VisitReason:           reason,
			GeneralUploadAllowed:  true,
			WorkshopDetailIgnored: detailSupplied,
		}, nil
	}

	if role != models.UserRoleContractor {
		return &Eligibility{
			VisitReason:           reason,
			GeneralUploadAllowed:  true,
			WorkshopDetailIgnored: detailSupplied,
		}, nil
	}

	if !detailSupplied {
		return nil, ErrMissingOrInvalidWorkshopDetail
	}
	detail, err := models.ParseWorkshopDetail(workshopDetail)
	if err != nil {
		return nil, ErrMissingOrInvalidWorkshopDetail
	}

	required := RequiredFiles(detail)
	for _, field := range required {
		if !present[field] {
			return nil, MissingRequiredFile(field)
		}
	}

	return &Eligibility{
		VisitReason:    reason,
		WorkshopDetail: &detail,
		RequiredFields: required,
	}, nil
}

// Accepts reports whether a file field may be attached to this request.
// General attachments follow GeneralUploadAllowed; workshop fields must be
// among the required ones.
func (e *Eligibility) Accepts(field string) bool {
	if field == GeneralFilesField {
		return e.GeneralUploadAllowed
	}
	for _, f := range e.RequiredFields {
		if f == field {
			return true
		}
	}
	return false
}

func isAbsentDetail(value string) bool {
	trimmed := strings.TrimSpace(value)
	return trimmed == "" || strings.EqualFold(trimmed, noWorkshopDetail)
}
