package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/church-class-api/internal/models"
)

func TestClassRepositoryListFiltersAndPaginates(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "name", "description", "category", "status", "max_students", "has_levels", "created_by", "created_at", "updated_at"}).
		AddRow("c1", "Discipleship", "", "discipleship", "active", nil, true, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM classes WHERE 1=1 AND category = $1 AND status = $2 ORDER BY name ASC LIMIT 10 OFFSET 10")).
		WithArgs(models.ClassCategoryDiscipleship, models.ClassStatusActive).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM classes WHERE 1=1 AND category = $1 AND status = $2")).
		WithArgs(models.ClassCategoryDiscipleship, models.ClassStatusActive).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	classes, total, err := repo.List(context.Background(), models.ClassFilter{
		Category:  models.ClassCategoryDiscipleship,
		Status:    models.ClassStatusActive,
		Page:      2,
		PageSize:  10,
		SortBy:    "name",
		SortOrder: "asc",
	})
	require.NoError(t, err)
	require.Len(t, classes, 1)
	assert.True(t, classes[0].HasLevels)
	assert.Equal(t, 11, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryListIgnoresUnknownSort(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC LIMIT 20 OFFSET 0")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM classes WHERE 1=1")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	_, total, err := repo.List(context.Background(), models.ClassFilter{SortBy: "name; DROP TABLE classes"})
	require.NoError(t, err)
	assert.Zero(t, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryDeleteRemovesMeetingsFirst(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM attendance_meetings WHERE id IN (")).
		WithArgs("c1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM classes WHERE id = $1")).
		WithArgs("c1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Delete(context.Background(), "c1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositorySummary(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT $1::text AS class_id")).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"class_id", "level_count", "session_count", "enrolled_count"}).AddRow("c1", 2, 3, 2))

	summary, err := repo.Summary(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, models.ClassSummary{ClassID: "c1", LevelCount: 2, SessionCount: 3, EnrolledCount: 2}, *summary)
	require.NoError(t, mock.ExpectationsWereMet())
}
