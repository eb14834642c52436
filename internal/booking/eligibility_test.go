package booking

import (
	"errors"
	"testing"

	"github.com/sitevisit/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequiredFilesTableIsExhaustive(t *testing.T) {
	assert.Len(t, requiredFiles, len(models.AllWorkshopDetails))
	for _, detail := range models.AllWorkshopDetails {
		assert.NotEmpty(t, RequiredFiles(detail), "no required files for %s", detail)
	}

	assert.Equal(t,
		[]string{"excavationPhotos", "engineerReport", "concreteStudy"},
		RequiredFiles(models.WorkshopDetailReexecution))
	assert.Equal(t,
		[]string{"sitePhotoTemporary", "ownerInvitationTemporary"},
		RequiredFiles(models.WorkshopDetailSoil))
}

func TestRequiredFilesReturnsCopy(t *testing.T) {
	fields := RequiredFiles(models.WorkshopDetailSoil)
	fields[0] = "mutated"
	assert.Equal(t, "sitePhotoTemporary", RequiredFiles(models.WorkshopDetailSoil)[0])
}

func TestValidateInvalidVisitReason(t *testing.T) {
	for _, reason := range []string{"", "inspection", "workshops"} {
		_, err := Validate(models.UserRoleContractor, reason, "soil", NewFieldSet())
		assert.ErrorIs(t, err, ErrInvalidVisitReason, reason)
	}
}

func TestValidateContractorWorkshop(t *testing.T) {
	t.Run("all files present", func(t *testing.T) {
		for _, detail := range models.AllWorkshopDetails {
			present := NewFieldSet(RequiredFiles(detail)...)
			got, err := Validate(models.UserRoleContractor, "WORKSHOP", string(detail), present)
			require.NoError(t, err, detail)
			require.NotNil(t, got.WorkshopDetail)
			assert.Equal(t, detail, *got.WorkshopDetail)
			assert.Equal(t, RequiredFiles(detail), got.RequiredFields)
			assert.False(t, got.GeneralUploadAllowed)
		}
	})

	t.Run("camel case form values", func(t *testing.T) {
		got, err := Validate(models.UserRoleContractor, "workshop", "concreteTesting",
			NewFieldSet("currentWorkPhotos", "workAcceptanceReport", "concreteResults"))
		require.NoError(t, err)
		assert.Equal(t, models.WorkshopDetailConcreteTesting, *got.WorkshopDetail)
	})

	t.Run("missing detail", func(t *testing.T) {
		for _, detail := range []string{"", "none", "  "} {
			_, err := Validate(models.UserRoleContractor, "workshop", detail, NewFieldSet())
			assert.ErrorIs(t, err, ErrMissingOrInvalidWorkshopDetail)
		}
	})

	t.Run("unknown detail", func(t *testing.T) {
		_, err := Validate(models.UserRoleContractor, "workshop", "plumbing", NewFieldSet())
		assert.ErrorIs(t, err, ErrMissingOrInvalidWorkshopDetail)
	})

	t.Run("reexecution without concreteStudy", func(t *testing.T) {
		_, err := Validate(models.UserRoleContractor, "workshop", "reexecution",
			NewFieldSet("excavationPhotos", "engineerReport"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, MissingRequiredFile("concreteStudy")))
		assert.False(t, errors.Is(err, MissingRequiredFile("engineerReport")))
		assert.ErrorIs(t, err, ErrMissingRequiredFile)
	})

	t.Run("reports first missing field in table order", func(t *testing.T) {
		_, err := Validate(models.UserRoleContractor, "workshop", "reexecution", NewFieldSet("concreteStudy"))
		var be *Error
		require.ErrorAs(t, err, &be)
		assert.Equal(t, "excavationPhotos", be.Field)
	})

	t.Run("general files do not satisfy workshop fields", func(t *testing.T) {
		_, err := Validate(models.UserRoleContractor, "workshop", "soil", NewFieldSet(GeneralFilesField, "sitePhotoTemporary"))
		assert.True(t, errors.Is(err, MissingRequiredFile("ownerInvitationTemporary")))
	})
}

func TestValidateNonContractorWorkshopFallsBackToGenericUpload(t *testing.T) {
	for _, role := range []models.UserRole{
		models.UserRoleOwner,
		models.UserRoleEngineering,
		models.UserRoleLab,
		models.UserRoleAdmin,
	} {
		for _, detail := range []string{"reexecution", "soil", "bogus", ""} {
			got, err := Validate(role, "workshop", detail, NewFieldSet())
			require.NoError(t, err, "%s/%s", role, detail)
			assert.Nil(t, got.WorkshopDetail)
			assert.Empty(t, got.RequiredFields)
			assert.True(t, got.GeneralUploadAllowed)
			assert.Equal(t, detail != "", got.WorkshopDetailIgnored)
		}
	}
}

func TestValidateOtherAndFileReasons(t *testing.T) {
	for _, reason := range []string{"other", "FILE", "Other"} {
		got, err := Validate(models.UserRoleContractor, reason, "none", NewFieldSet())
		require.NoError(t, err)
		assert.Nil(t, got.WorkshopDetail)
		assert.True(t, got.GeneralUploadAllowed)
		assert.False(t, got.WorkshopDetailIgnored)
	}

	got, err := Validate(models.UserRoleContractor, "file", "soil", NewFieldSet())
	require.NoError(t, err)
	assert.Nil(t, got.WorkshopDetail)
	assert.True(t, got.WorkshopDetailIgnored)
}
