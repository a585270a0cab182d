package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/church-class-api/internal/models"
	"github.com/noah-isme/church-class-api/pkg/database"
)

const enrollmentColumns = "id, member_id, class_id, level_id, enrollment_date, status, completion_date, notes, enrolled_by, created_at, updated_at"

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// List returns enrollments filtered by the provided criteria, ordered by member name.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, error) {
	var conditions []string
	var args []interface{}

	if filter.MemberID != "" {
		conditions = append(conditions, fmt.Sprintf("e.member_id = $%d", len(args)+1))
		args = append(args, filter.MemberID)
	}
	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("e.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.LevelID != "" {
		conditions = append(conditions, fmt.Sprintf("e.level_id = $%d", len(args)+1))
		args = append(args, filter.LevelID)
	}
	if filter.FlatOnly {
		conditions = append(conditions, "e.level_id IS NULL")
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	query := `SELECT e.id, e.member_id, e.class_id, e.level_id, e.enrollment_date, e.status, e.completion_date, e.notes, e.enrolled_by,
e.created_at, e.updated_at, m.full_name AS member_name, m.email AS member_email, c.name AS class_name, l.name AS level_name
FROM class_enrollments e
JOIN members m ON m.id = e.member_id
JOIN classes c ON c.id = e.class_id
LEFT JOIN class_levels l ON l.id = e.level_id` + clause + `
ORDER BY m.full_name ASC, e.enrollment_date DESC`

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	return enrollments, nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := "SELECT " + enrollmentColumns + " FROM class_enrollments WHERE id = $1"
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindDetailByID returns an enrollment with contextual info.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	const query = `SELECT e.id, e.member_id, e.class_id, e.level_id, e.enrollment_date, e.status, e.completion_date, e.notes, e.enrolled_by,
e.created_at, e.updated_at, m.full_name AS member_name, m.email AS member_email, c.name AS class_name, l.name AS level_name
FROM class_enrollments e
JOIN members m ON m.id = e.member_id
JOIN classes c ON c.id = e.class_id
LEFT JOIN class_levels l ON l.id = e.level_id
WHERE e.id = $1`
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ExistsActive checks whether the member holds an enrolled row for the level,
// or for the class itself when levelID is nil.
func (r *EnrollmentRepository) ExistsActive(ctx context.Context, memberID, classID string, levelID *string, excludeID string) (bool, error) {
	query := "SELECT 1 FROM class_enrollments WHERE member_id = $1 AND status = $2"
	args := []interface{}{memberID, models.EnrollmentStatusEnrolled}
	if levelID != nil {
		query += fmt.Sprintf(" AND level_id = $%d", len(args)+1)
		args = append(args, *levelID)
	} else {
		query += fmt.Sprintf(" AND class_id = $%d AND level_id IS NULL", len(args)+1)
		args = append(args, classID)
	}
	if excludeID != "" {
		query += fmt.Sprintf(" AND id <> $%d", len(args)+1)
		args = append(args, excludeID)
	}
	query += " LIMIT 1"
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check active enrollment: %w", err)
	}
	return true, nil
}

// HasCompleted reports whether the member completed the level.
func (r *EnrollmentRepository) HasCompleted(ctx context.Context, memberID, levelID string) (bool, error) {
	const query = `SELECT 1 FROM class_enrollments WHERE member_id = $1 AND level_id = $2 AND status = $3 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, memberID, levelID, models.EnrollmentStatusCompleted); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check completed enrollment: %w", err)
	}
	return true, nil
}

// CountActiveByClass counts distinct enrolled members across the class and its
// levels, leaving out excludeMemberID.
func (r *EnrollmentRepository) CountActiveByClass(ctx context.Context, classID, excludeMemberID string) (int, error) {
	const query = `SELECT COUNT(DISTINCT member_id) FROM class_enrollments WHERE class_id = $1 AND status = $2 AND member_id <> $3`
	var count int
	if err := r.db.GetContext(ctx, &count, query, classID, models.EnrollmentStatusEnrolled, excludeMemberID); err != nil {
		return 0, fmt.Errorf("count class enrollments: %w", err)
	}
	return count, nil
}

// Create persists a new enrollment record. A concurrent duplicate rejected by
// the partial unique indexes surfaces as ErrActiveEnrollmentExists.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrollment.EnrollmentDate.IsZero() {
		enrollment.EnrollmentDate = now
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusEnrolled
	}
	enrollment.CreatedAt = now
	enrollment.UpdatedAt = now
	const query = `INSERT INTO class_enrollments (id, member_id, class_id, level_id, enrollment_date, status, completion_date, notes, enrolled_by, created_at, updated_at)
VALUES (:id, :member_id, :class_id, :level_id, :enrollment_date, :status, :completion_date, :notes, :enrolled_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		if database.IsUniqueViolation(err, activeLevelEnrollmentIndex, activeClassEnrollmentIndex) {
			return ErrActiveEnrollmentExists
		}
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// UpdateStatus updates status and completion date for an enrollment.
func (r *EnrollmentRepository) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus, completionDate *time.Time) error {
	const query = `UPDATE class_enrollments SET status = $2, completion_date = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, completionDate, time.Now().UTC()); err != nil {
		if database.IsUniqueViolation(err, activeLevelEnrollmentIndex, activeClassEnrollmentIndex) {
			return ErrActiveEnrollmentExists
		}
		return fmt.Errorf("update enrollment status: %w", err)
	}
	return nil
}

// Delete hard-deletes an enrollment.
func (r *EnrollmentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM class_enrollments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
