package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/church-class-api/internal/models"
	appErrors "github.com/noah-isme/church-class-api/pkg/errors"
)

func TestClassServiceCreateDefaults(t *testing.T) {
	e := newEngine(EnrollmentPolicy{})
	class, err := e.classes.Create(context.Background(), CreateClassRequest{Name: "  Discipleship 101 ", Category: "discipleship", HasLevels: true, MaxStudents: intPtr(30)}, staffActor())
	require.NoError(t, err)
	assert.Equal(t, "Discipleship 101", class.Name)
	assert.Equal(t, models.ClassStatusDraft, class.Status)
	assert.True(t, class.HasLevels)
	require.NotNil(t, class.CreatedBy)
	assert.Equal(t, "staff-1", *class.CreatedBy)

	_, err = e.classes.Create(context.Background(), CreateClassRequest{Name: "x", Category: "sports"}, nil)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	_, err = e.classes.Create(context.Background(), CreateClassRequest{Name: "x", Category: "other", MaxStudents: intPtr(0)}, nil)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestClassServiceGetAttachesOneStructure(t *testing.T) {
	e := newEngine(EnrollmentPolicy{})
	e.st.addClass("leveled", true)
	e.st.addLevel("l2", "leveled", 2, nil)
	e.st.addLevel("l1", "leveled", 1, nil)
	e.st.addClass("flat", false)
	e.st.sessions["s1"] = models.Session{ID: "s1", ClassID: "flat", Title: "Week 1", OrderNumber: 1, SessionDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}

	leveled, err := e.classes.Get(context.Background(), "leveled")
	require.NoError(t, err)
	structure, ok := leveled.Structure.(models.LeveledStructure)
	require.True(t, ok)
	require.Len(t, structure.Levels, 2)
	assert.Equal(t, "l1", structure.Levels[0].ID)

	flat, err := e.classes.Get(context.Background(), "flat")
	require.NoError(t, err)
	flatStructure, ok := flat.Structure.(models.FlatStructure)
	require.True(t, ok)
	require.Len(t, flatStructure.Sessions, 1)

	payload, err := json.Marshal(flat)
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"mode":"flat"`)
	assert.NotContains(t, string(payload), `"levels"`)

	_, err = e.classes.Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestClassServiceUpdateKeepsStructureMode(t *testing.T) {
	e := newEngine(EnrollmentPolicy{})
	e.st.addClass("c1", false)
	ctx := context.Background()

	yes := true
	_, err := e.classes.Update(ctx, "c1", UpdateClassRequest{HasLevels: &yes})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	name := "Renamed"
	status := "completed"
	no := false
	class, err := e.classes.Update(ctx, "c1", UpdateClassRequest{Name: &name, Status: &status, HasLevels: &no})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", class.Name)
	assert.Equal(t, models.ClassStatusCompleted, class.Status)
}

func TestClassServiceDeleteCascades(t *testing.T) {
	e := newEngine(EnrollmentPolicy{})
	e.st.addClass("disc", true)
	e.st.addLevel("l1", "disc", 1, nil)
	e.st.addMember("m1", "Ann Lee")
	e.st.addEnrollment("e1", "m1", "disc", strPtr("l1"), models.EnrollmentStatusEnrolled)
	ctx := context.Background()

	session, err := e.sessions.Add(ctx, AddSessionRequest{OwnerID: "l1", OwnerKind: "level", Title: "Week 1", Date: "2024-03-01", StartTime: "09:00", EndTime: "10:00", CreateAttendance: true})
	require.NoError(t, err)
	require.NotNil(t, session.AttendanceMeetingID)

	summary, cached, err := e.classes.Summary(ctx, "disc")
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, models.ClassSummary{ClassID: "disc", LevelCount: 1, SessionCount: 1, EnrolledCount: 1}, *summary)

	require.NoError(t, e.classes.Delete(ctx, "disc"))
	assert.Empty(t, e.st.levels)
	assert.Empty(t, e.st.sessions)
	assert.Empty(t, e.st.enrollments)
	assert.Empty(t, e.st.meetings)

	err = e.classes.Delete(ctx, "disc")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestClassServiceListRejectsUnknownFilters(t *testing.T) {
	e := newEngine(EnrollmentPolicy{})
	e.st.addClass("b", false)
	e.st.addClass("a", true)

	classes, pagination, err := e.classes.List(context.Background(), models.ClassFilter{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, classes, 2)
	assert.Equal(t, 2, pagination.TotalCount)

	_, _, err = e.classes.List(context.Background(), models.ClassFilter{Category: "sports"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}
