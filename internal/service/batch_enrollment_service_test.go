package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/church-class-api/internal/dto"
	"github.com/noah-isme/church-class-api/internal/models"
	appErrors "github.com/noah-isme/church-class-api/pkg/errors"
)

func TestBatchEnrollReportsPerMember(t *testing.T) {
	e := leveledEngine(EnrollmentPolicy{})
	e.st.addEnrollment("existing", "m1", "disc", strPtr("foundations"), models.EnrollmentStatusEnrolled)
	ctx := context.Background()

	result, err := e.batch.BatchEnroll(ctx, staffActor(), "disc", dto.BatchEnrollRequest{MemberIDs: []string{"m1", "m2"}, LevelID: "foundations"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.EnrolledCount)
	assert.Equal(t, []dto.SkippedMember{{MemberID: "m1", Reason: dto.SkipReasonAlreadyEnrolled}}, result.Skipped)
	require.Len(t, result.Enrollments, 1)
	assert.Equal(t, "m2", result.Enrollments[0].MemberID)

	listed, err := e.enrollments.ListByLevel(ctx, "foundations", "")
	require.NoError(t, err)
	m2 := 0
	for _, enr := range listed {
		if enr.MemberID == "m2" {
			m2++
		}
	}
	assert.Equal(t, 1, m2)
}

func TestBatchEnrollSkipsUnknownAndRepeatedMembers(t *testing.T) {
	e := leveledEngine(EnrollmentPolicy{})
	e.st.failures["enrollment.create.m2"] = errors.New("connection reset")
	ctx := context.Background()

	result, err := e.batch.BatchEnroll(ctx, staffActor(), "disc", dto.BatchEnrollRequest{MemberIDs: []string{"m1", "ghost", "m1", "m2"}, LevelID: "foundations"})
	require.NoError(t, err)
	assert.Equal(t, 4, result.Requested)
	assert.Equal(t, 1, result.EnrolledCount)
	assert.ElementsMatch(t, []dto.SkippedMember{
		{MemberID: "m1", Reason: dto.SkipReasonDuplicateInRequest},
		{MemberID: "ghost", Reason: dto.SkipReasonMemberNotFound},
		{MemberID: "m2", Reason: dto.SkipReasonFailed},
	}, result.Skipped)
}

func TestBatchEnrollStrictPrerequisites(t *testing.T) {
	e := leveledEngine(EnrollmentPolicy{Prerequisites: EnforcementStrict})
	e.st.addEnrollment("done", "m2", "disc", strPtr("foundations"), models.EnrollmentStatusCompleted)

	result, err := e.batch.BatchEnroll(context.Background(), staffActor(), "disc", dto.BatchEnrollRequest{MemberIDs: []string{"m1", "m2"}, LevelID: "growth"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.EnrolledCount)
	assert.Equal(t, []dto.SkippedMember{{MemberID: "m1", Reason: dto.SkipReasonPrerequisiteMissing}}, result.Skipped)
}

func TestBatchEnrollRejectsBadRequests(t *testing.T) {
	e := leveledEngine(EnrollmentPolicy{})
	ctx := context.Background()

	_, err := e.batch.BatchEnroll(ctx, nil, "disc", dto.BatchEnrollRequest{MemberIDs: []string{"m1"}, LevelID: "foundations"})
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))

	member := &models.JWTClaims{UserID: "u1", Role: models.RoleMember}
	_, err = e.batch.BatchEnroll(ctx, member, "disc", dto.BatchEnrollRequest{MemberIDs: []string{"m1"}, LevelID: "foundations"})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	_, err = e.batch.BatchEnroll(ctx, staffActor(), "disc", dto.BatchEnrollRequest{})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = e.batch.BatchEnroll(ctx, staffActor(), "disc", dto.BatchEnrollRequest{MemberIDs: []string{"m1"}})
	assert.True(t, errors.Is(err, appErrors.ErrValidation), "leveled class needs a level")

	tooMany := make([]string, 11)
	for i := range tooMany {
		tooMany[i] = "m1"
	}
	_, err = e.batch.BatchEnroll(ctx, staffActor(), "disc", dto.BatchEnrollRequest{MemberIDs: tooMany, LevelID: "foundations"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = e.batch.BatchEnroll(ctx, staffActor(), "ghost", dto.BatchEnrollRequest{MemberIDs: []string{"m1"}})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestSearchEligibleMembersExcludesActiveEnrollments(t *testing.T) {
	e := leveledEngine(EnrollmentPolicy{})
	e.st.addMember("m3", "Cara Diaz")
	e.st.addEnrollment("e1", "m1", "disc", strPtr("foundations"), models.EnrollmentStatusEnrolled)
	e.st.addEnrollment("e2", "m2", "disc", strPtr("growth"), models.EnrollmentStatusCompleted)
	e.st.addEnrollment("e3", "m3", "disc", strPtr("growth"), models.EnrollmentStatusDropped)
	ctx := context.Background()

	members, err := e.batch.SearchEligibleMembers(ctx, staffActor(), "disc", dto.SearchMembersRequest{LevelID: "foundations", ExcludeEnrolled: true})
	require.NoError(t, err)
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"m2", "m3"}, ids)

	members, err = e.batch.SearchEligibleMembers(ctx, staffActor(), "disc", dto.SearchMembersRequest{Query: "ann", LevelID: "foundations"})
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "m1", members[0].ID)

	members, err = e.batch.SearchEligibleMembers(ctx, staffActor(), "disc", dto.SearchMembersRequest{Query: "zzz"})
	require.NoError(t, err)
	assert.NotNil(t, members)
	assert.Empty(t, members)

	_, err = e.batch.SearchEligibleMembers(ctx, nil, "disc", dto.SearchMembersRequest{})
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}

func TestSearchEligibleMembersClampsLimit(t *testing.T) {
	e := leveledEngine(EnrollmentPolicy{})
	e.batch.limits.SearchMax = 1

	members, err := e.batch.SearchEligibleMembers(context.Background(), staffActor(), "disc", dto.SearchMembersRequest{Limit: 500})
	require.NoError(t, err)
	assert.Len(t, members, 1)
}
