package booking

import (
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/sitevisit/backend/internal/models"
)

const (
	DefaultMaxFileBytes    int64 = 10 * 1024 * 1024
	DefaultMaxGeneralFiles       = 3
)

var (
	allowedExtensions   = regexp.MustCompile(`^(jpeg|jpg|png|pdf)$`)
	allowedContentTypes = regexp.MustCompile(`^(image/(jpeg|jpg|png)|application/pdf)$`)
)

// Upload is one file attached to a booking request.
type Upload struct {
	Field       string
	FileName    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

type UploadLimits struct {
	MaxFileBytes    int64
	MaxGeneralFiles int
}

func DefaultUploadLimits() UploadLimits {
	return UploadLimits{
		MaxFileBytes:    DefaultMaxFileBytes,
		MaxGeneralFiles: DefaultMaxGeneralFiles,
	}
}

// AllFileFields lists every accepted file field, general attachments first.
func AllFileFields() []string {
	fields := []string{GeneralFilesField}
	for _, detail := range models.AllWorkshopDetails {
		fields = append(fields, requiredFiles[detail]...)
	}
	return fields
}

// FieldsOf reports which fields carry at least one upload.
func FieldsOf(uploads []Upload) FieldSet {
	set := FieldSet{}
	for _, u := range uploads {
		set[u.Field] = true
	}
	return set
}

// ValidateUploads checks field names against the eligibility outcome, then
// per-field counts, size and file type.
func ValidateUploads(uploads []Upload, allowed *Eligibility, limits UploadLimits) error {
	if limits.MaxFileBytes <= 0 {
		limits.MaxFileBytes = DefaultMaxFileBytes
	}
	if limits.MaxGeneralFiles <= 0 {
		limits.MaxGeneralFiles = DefaultMaxGeneralFiles
	}

	known := NewFieldSet(AllFileFields()...)
	counts := map[string]int{}

	for _, u := range uploads {
		if !known[u.Field] {
			return InvalidUpload(u.Field, fmt.Sprintf("unexpected file field: %s", u.Field))
		}
		if allowed != nil && !allowed.Accepts(u.Field) {
			return InvalidUpload(u.Field, fmt.Sprintf("file field %s is not accepted for this visit", u.Field))
		}

		counts[u.Field]++
		maxCount := 1
		if u.Field == GeneralFilesField {
			maxCount = limits.MaxGeneralFiles
		}
		if counts[u.Field] > maxCount {
			return InvalidUpload(u.Field, fmt.Sprintf("too many files for field %s (max %d)", u.Field, maxCount))
		}

		if u.Size > limits.MaxFileBytes {
			return InvalidUpload(u.Field, fmt.Sprintf("file %s exceeds the %d byte limit", u.FileName, limits.MaxFileBytes))
		}

		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(u.FileName)), ".")
		contentType := strings.ToLower(strings.TrimSpace(strings.Split(u.ContentType, ";")[0]))
		if !allowedExtensions.MatchString(ext) || !allowedContentTypes.MatchString(contentType) {
			return InvalidUpload(u.Field, "file upload only supports jpeg, jpg, png and pdf")
		}
	}
	return nil
}
