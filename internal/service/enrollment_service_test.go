package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/church-class-api/internal/models"
	"github.com/noah-isme/church-class-api/pkg/config"
	appErrors "github.com/noah-isme/church-class-api/pkg/errors"
)

func leveledEngine(policy EnrollmentPolicy) *engine {
	e := newEngine(policy)
	e.st.addClass("disc", true)
	e.st.addLevel("foundations", "disc", 1, nil)
	e.st.addLevel("growth", "disc", 2, strPtr("foundations"))
	e.st.addMember("m1", "Ann Lee")
	e.st.addMember("m2", "Ben Cruz")
	return e
}

func TestEnrollmentServiceEnrollAndDuplicate(t *testing.T) {
	e := leveledEngine(EnrollmentPolicy{})
	ctx := context.Background()

	detail, err := e.enrollments.Enroll(ctx, EnrollRequest{MemberID: "m1", ClassID: "disc", LevelID: "foundations"}, staffActor())
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusEnrolled, detail.Status)
	assert.Equal(t, "Ann Lee", detail.MemberName)
	require.NotNil(t, detail.EnrolledBy)
	assert.Equal(t, "staff-1", *detail.EnrolledBy)

	_, err = e.enrollments.Enroll(ctx, EnrollRequest{MemberID: "m1", ClassID: "disc", LevelID: "foundations"}, staffActor())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicateEnrollment.Code, appErrors.FromError(err).Code)

	// Another level of the same class is a different target.
	_, err = e.enrollments.Enroll(ctx, EnrollRequest{MemberID: "m1", ClassID: "disc", LevelID: "growth"}, staffActor())
	require.NoError(t, err)
}

func TestEnrollmentServiceResolveTarget(t *testing.T) {
	e := leveledEngine(EnrollmentPolicy{})
	e.st.addClass("flat", false)
	e.st.addClass("other", true)
	e.st.addLevel("foreign", "other", 1, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		req  EnrollRequest
		code string
	}{
		{"level required for leveled class", EnrollRequest{MemberID: "m1", ClassID: "disc"}, appErrors.ErrValidation.Code},
		{"level on flat class", EnrollRequest{MemberID: "m1", ClassID: "flat", LevelID: "foundations"}, appErrors.ErrValidation.Code},
		{"level of another class", EnrollRequest{MemberID: "m1", ClassID: "disc", LevelID: "foreign"}, appErrors.ErrReferential.Code},
		{"unknown member", EnrollRequest{MemberID: "ghost", ClassID: "disc", LevelID: "foundations"}, appErrors.ErrNotFound.Code},
		{"unknown level", EnrollRequest{MemberID: "m1", ClassID: "disc", LevelID: "ghost"}, appErrors.ErrNotFound.Code},
		{"missing class id", EnrollRequest{MemberID: "m1"}, appErrors.ErrValidation.Code},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.enrollments.Enroll(ctx, tc.req, nil)
			require.Error(t, err)
			assert.Equal(t, tc.code, appErrors.FromError(err).Code)
		})
	}

	detail, err := e.enrollments.Enroll(ctx, EnrollRequest{MemberID: "m2", ClassID: "flat"}, nil)
	require.NoError(t, err)
	assert.Nil(t, detail.LevelID)
}

func TestEnrollmentServiceStatusLifecycle(t *testing.T) {
	e := leveledEngine(EnrollmentPolicy{})
	ctx := context.Background()

	detail, err := e.enrollments.Enroll(ctx, EnrollRequest{MemberID: "m1", ClassID: "disc", LevelID: "foundations"}, nil)
	require.NoError(t, err)
	id := detail.ID

	completed, err := e.enrollments.UpdateStatus(ctx, id, UpdateEnrollmentStatusRequest{Status: "completed"})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusCompleted, completed.Status)
	require.NotNil(t, completed.CompletionDate)

	// A fresh enrollment is allowed once the previous one is no longer active.
	again, err := e.enrollments.Enroll(ctx, EnrollRequest{MemberID: "m1", ClassID: "disc", LevelID: "foundations"}, nil)
	require.NoError(t, err)

	_, err = e.enrollments.UpdateStatus(ctx, id, UpdateEnrollmentStatusRequest{Status: "enrolled"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrDuplicateEnrollment))

	dropped, err := e.enrollments.UpdateStatus(ctx, again.ID, UpdateEnrollmentStatusRequest{Status: "dropped"})
	require.NoError(t, err)
	assert.Nil(t, dropped.CompletionDate)

	reenrolled, err := e.enrollments.UpdateStatus(ctx, id, UpdateEnrollmentStatusRequest{Status: "enrolled"})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusEnrolled, reenrolled.Status)
	assert.Nil(t, reenrolled.CompletionDate)

	active := 0
	for _, enr := range e.st.enrollments {
		if enr.MemberID == "m1" && enr.Status == models.EnrollmentStatusEnrolled {
			active++
		}
	}
	assert.Equal(t, 1, active)

	_, err = e.enrollments.UpdateStatus(ctx, id, UpdateEnrollmentStatusRequest{Status: "graduated"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	_, err = e.enrollments.UpdateStatus(ctx, "ghost", UpdateEnrollmentStatusRequest{Status: "dropped"})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestEnrollmentServiceUnenrollAndListings(t *testing.T) {
	e := leveledEngine(EnrollmentPolicy{})
	ctx := context.Background()

	first, err := e.enrollments.Enroll(ctx, EnrollRequest{MemberID: "m1", ClassID: "disc", LevelID: "foundations"}, nil)
	require.NoError(t, err)
	_, err = e.enrollments.Enroll(ctx, EnrollRequest{MemberID: "m2", ClassID: "disc", LevelID: "foundations"}, nil)
	require.NoError(t, err)
	_, err = e.enrollments.Enroll(ctx, EnrollRequest{MemberID: "m1", ClassID: "disc", LevelID: "growth"}, nil)
	require.NoError(t, err)

	byLevel, err := e.enrollments.ListByLevel(ctx, "foundations", "")
	require.NoError(t, err)
	assert.Len(t, byLevel, 2)

	byMember, err := e.enrollments.ListByMember(ctx, "m1", "")
	require.NoError(t, err)
	assert.Len(t, byMember, 2)

	byClass, err := e.enrollments.ListByClass(ctx, "disc", models.EnrollmentStatusEnrolled)
	require.NoError(t, err)
	assert.Len(t, byClass, 3)

	require.NoError(t, e.enrollments.Unenroll(ctx, first.ID))
	_, exists := e.st.enrollments[first.ID]
	assert.False(t, exists, "unenroll is a hard delete")
	assert.True(t, errors.Is(e.enrollments.Unenroll(ctx, first.ID), appErrors.ErrNotFound))

	_, err = e.enrollments.ListByLevel(ctx, "ghost", "")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestEnrollmentServicePrerequisiteModes(t *testing.T) {
	ctx := context.Background()
	req := EnrollRequest{MemberID: "m1", ClassID: "disc", LevelID: "growth"}

	permissive := leveledEngine(PolicyFromConfig(config.ClassesConfig{PrerequisiteMode: config.PrerequisiteModePermissive}))
	_, err := permissive.enrollments.Enroll(ctx, req, nil)
	require.NoError(t, err, "permissive mode ignores prerequisites")

	strict := leveledEngine(PolicyFromConfig(config.ClassesConfig{PrerequisiteMode: config.PrerequisiteModeStrict}))
	_, err = strict.enrollments.Enroll(ctx, req, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrPrerequisiteNotMet))

	strict.st.addEnrollment("done", "m1", "disc", strPtr("foundations"), models.EnrollmentStatusCompleted)
	_, err = strict.enrollments.Enroll(ctx, req, nil)
	require.NoError(t, err)
}

func TestEnrollmentServiceCapacity(t *testing.T) {
	e := leveledEngine(EnrollmentPolicy{EnforceCapacity: true})
	class := e.st.classes["disc"]
	class.MaxStudents = intPtr(1)
	e.st.classes["disc"] = class
	ctx := context.Background()

	_, err := e.enrollments.Enroll(ctx, EnrollRequest{MemberID: "m1", ClassID: "disc", LevelID: "foundations"}, nil)
	require.NoError(t, err)
	_, err = e.enrollments.Enroll(ctx, EnrollRequest{MemberID: "m2", ClassID: "disc", LevelID: "foundations"}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrClassFull))

	// m1 already holds the only seat, so a second level does not need another.
	_, err = e.enrollments.Enroll(ctx, EnrollRequest{MemberID: "m1", ClassID: "disc", LevelID: "growth"}, nil)
	require.NoError(t, err)
}
