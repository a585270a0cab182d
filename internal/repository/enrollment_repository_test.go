package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/church-class-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "postgres"), mock, func() { db.Close() }
}

func TestEnrollmentRepositoryExistsActiveForLevel(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	levelID := "lvl-1"
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM class_enrollments WHERE member_id = $1 AND status = $2 AND level_id = $3 LIMIT 1")).
		WithArgs("m1", models.EnrollmentStatusEnrolled, levelID).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.ExistsActive(context.Background(), "m1", "class-1", &levelID, "")
	require.NoError(t, err)
	assert.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryExistsActiveForFlatClassExcludingSelf(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM class_enrollments WHERE member_id = $1 AND status = $2 AND class_id = $3 AND level_id IS NULL AND id <> $4 LIMIT 1")).
		WithArgs("m1", models.EnrollmentStatusEnrolled, "class-1", "enr-1").
		WillReturnError(sql.ErrNoRows)

	exists, err := repo.ExistsActive(context.Background(), "m1", "class-1", nil, "enr-1")
	require.NoError(t, err)
	assert.False(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateTranslatesUniqueViolation(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO class_enrollments")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: activeLevelEnrollmentIndex})

	levelID := "lvl-1"
	err := repo.Create(context.Background(), &models.Enrollment{MemberID: "m1", ClassID: "class-1", LevelID: &levelID})
	require.ErrorIs(t, err, ErrActiveEnrollmentExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateDefaults(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO class_enrollments")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	enrollment := &models.Enrollment{MemberID: "m1", ClassID: "class-1"}
	require.NoError(t, repo.Create(context.Background(), enrollment))
	assert.NotEmpty(t, enrollment.ID)
	assert.Equal(t, models.EnrollmentStatusEnrolled, enrollment.Status)
	assert.False(t, enrollment.EnrollmentDate.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryUpdateStatusTranslatesUniqueViolation(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE class_enrollments SET status = $2, completion_date = $3, updated_at = $4 WHERE id = $1")).
		WithArgs("enr-1", models.EnrollmentStatusEnrolled, nil, sqlmock.AnyArg()).
		WillReturnError(&pq.Error{Code: "23505", Constraint: activeClassEnrollmentIndex})

	err := repo.UpdateStatus(context.Background(), "enr-1", models.EnrollmentStatusEnrolled, nil)
	require.ErrorIs(t, err, ErrActiveEnrollmentExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryListFlatClass(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "member_id", "class_id", "level_id", "enrollment_date", "status", "completion_date", "notes", "enrolled_by", "created_at", "updated_at", "member_name", "member_email", "class_name", "level_name"}).
		AddRow("enr-1", "m1", "class-1", nil, now, "enrolled", nil, nil, nil, now, now, "Ann Lee", nil, "Counseling", nil)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE e.class_id = $1 AND e.level_id IS NULL AND e.status = $2")).
		WithArgs("class-1", models.EnrollmentStatusEnrolled).
		WillReturnRows(rows)

	items, err := repo.List(context.Background(), models.EnrollmentFilter{ClassID: "class-1", FlatOnly: true, Status: models.EnrollmentStatusEnrolled})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Ann Lee", items[0].MemberName)
	assert.Nil(t, items[0].LevelID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM class_enrollments WHERE id = $1")).
		WithArgs("enr-x").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "enr-x")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCountActiveByClassExcludesMember(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(DISTINCT member_id) FROM class_enrollments WHERE class_id = $1 AND status = $2 AND member_id <> $3")).
		WithArgs("disc", models.EnrollmentStatusEnrolled, "m1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	count, err := repo.CountActiveByClass(context.Background(), "disc", "m1")
	require.NoError(t, err)
	assert.Equal(t, 4, count)
	require.NoError(t, mock.ExpectationsWereMet())
}
