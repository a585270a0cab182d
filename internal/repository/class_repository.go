package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/church-class-api/internal/models"
)

const classColumns = "id, name, description, category, status, max_students, has_levels, created_by, created_at, updated_at"

// ClassRepository manages persistence for classes.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs a new class repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// List returns classes matching filter criteria.
func (r *ClassRepository) List(ctx context.Context, filter models.ClassFilter) ([]models.Class, int, error) {
	base := "FROM classes WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Category != "" {
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)+1))
		args = append(args, filter.Category)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(name) LIKE $%d OR LOWER(description) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "created_at"
	}
	allowedSorts := map[string]bool{
		"name":       true,
		"category":   true,
		"status":     true,
		"created_at": true,
		"updated_at": true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "created_at"
	}

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", classColumns, base, sortBy, order, size, offset)
	var classes []models.Class
	if err := r.db.SelectContext(ctx, &classes, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list classes: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count classes: %w", err)
	}
	return classes, total, nil
}

// FindByID returns a class record by ID.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.Class, error) {
	query := "SELECT " + classColumns + " FROM classes WHERE id = $1"
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		return nil, err
	}
	return &class, nil
}

// Create persists a class record.
func (r *ClassRepository) Create(ctx context.Context, class *models.Class) error {
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if class.CreatedAt.IsZero() {
		class.CreatedAt = now
	}
	class.UpdatedAt = now

	const query = `INSERT INTO classes (id, name, description, category, status, max_students, has_levels, created_by, created_at, updated_at)
VALUES (:id, :name, :description, :category, :status, :max_students, :has_levels, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("create class: %w", err)
	}
	return nil
}

// Update modifies the mutable columns of a class. has_levels is never written.
func (r *ClassRepository) Update(ctx context.Context, class *models.Class) error {
	class.UpdatedAt = time.Now().UTC()
	const query = `UPDATE classes SET name = :name, description = :description, category = :category, status = :status,
max_students = :max_students, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("update class: %w", err)
	}
	return nil
}

// Delete removes a class together with the attendance meetings its sessions
// link to. Levels, sessions and enrollments go through ON DELETE CASCADE.
func (r *ClassRepository) Delete(ctx context.Context, id string) error {
	return withTx(ctx, r.db, "delete class", func(tx *sqlx.Tx) error {
		const meetings = `DELETE FROM attendance_meetings WHERE id IN (
SELECT attendance_meeting_id FROM class_sessions WHERE class_id = $1 AND attendance_meeting_id IS NOT NULL)`
		if _, err := tx.ExecContext(ctx, meetings, id); err != nil {
			return fmt.Errorf("delete class meetings: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM classes WHERE id = $1`, id); err != nil {
			return fmt.Errorf("delete class: %w", err)
		}
		return nil
	})
}

// Summary counts levels, sessions and active enrollments of a class.
func (r *ClassRepository) Summary(ctx context.Context, classID string) (*models.ClassSummary, error) {
	const query = `SELECT $1::text AS class_id,
(SELECT COUNT(*) FROM class_levels WHERE class_id = $1) AS level_count,
(SELECT COUNT(*) FROM class_sessions WHERE class_id = $1) AS session_count,
(SELECT COUNT(*) FROM class_enrollments WHERE class_id = $1 AND status = 'enrolled') AS enrolled_count`
	var summary models.ClassSummary
	if err := r.db.GetContext(ctx, &summary, query, classID); err != nil {
		return nil, fmt.Errorf("class summary: %w", err)
	}
	return &summary, nil
}
