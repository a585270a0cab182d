package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/church-class-api/internal/models"
	"github.com/noah-isme/church-class-api/pkg/database"
)

const levelColumns = "id, class_id, name, description, order_number, prerequisite_level_id, created_at, updated_at"

// LevelRepository persists class levels and their prerequisite edges.
type LevelRepository struct {
	db *sqlx.DB
}

// NewLevelRepository constructs the repository.
func NewLevelRepository(db *sqlx.DB) *LevelRepository {
	return &LevelRepository{db: db}
}

// ListByClass returns the levels of a class in sequence order.
func (r *LevelRepository) ListByClass(ctx context.Context, classID string) ([]models.Level, error) {
	query := "SELECT " + levelColumns + " FROM class_levels WHERE class_id = $1 ORDER BY order_number ASC, created_at ASC"
	var levels []models.Level
	if err := r.db.SelectContext(ctx, &levels, query, classID); err != nil {
		return nil, fmt.Errorf("list class levels: %w", err)
	}
	return levels, nil
}

// ListDetailsByClass returns levels with prerequisite names and child counts.
func (r *LevelRepository) ListDetailsByClass(ctx context.Context, classID string) ([]models.LevelDetail, error) {
	const query = `SELECT l.id, l.class_id, l.name, l.description, l.order_number, l.prerequisite_level_id, l.created_at, l.updated_at,
p.name AS prerequisite_name,
(SELECT COUNT(*) FROM class_sessions s WHERE s.level_id = l.id) AS session_count,
(SELECT COUNT(*) FROM class_enrollments e WHERE e.level_id = l.id AND e.status = 'enrolled') AS enrolled_count
FROM class_levels l
LEFT JOIN class_levels p ON p.id = l.prerequisite_level_id
WHERE l.class_id = $1
ORDER BY l.order_number ASC, l.created_at ASC`
	var levels []models.LevelDetail
	if err := r.db.SelectContext(ctx, &levels, query, classID); err != nil {
		return nil, fmt.Errorf("list class level details: %w", err)
	}
	return levels, nil
}

// FindByID returns a level by its ID.
func (r *LevelRepository) FindByID(ctx context.Context, id string) (*models.Level, error) {
	query := "SELECT " + levelColumns + " FROM class_levels WHERE id = $1"
	var level models.Level
	if err := r.db.GetContext(ctx, &level, query, id); err != nil {
		return nil, err
	}
	return &level, nil
}

// MaxOrder returns the highest order number used in the class, zero when empty.
func (r *LevelRepository) MaxOrder(ctx context.Context, classID string) (int, error) {
	const query = `SELECT COALESCE(MAX(order_number), 0) FROM class_levels WHERE class_id = $1`
	var max int
	if err := r.db.GetContext(ctx, &max, query, classID); err != nil {
		return 0, fmt.Errorf("max level order: %w", err)
	}
	return max, nil
}

// Create persists a new level.
func (r *LevelRepository) Create(ctx context.Context, level *models.Level) error {
	if level.ID == "" {
		level.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if level.CreatedAt.IsZero() {
		level.CreatedAt = now
	}
	level.UpdatedAt = now
	const query = `INSERT INTO class_levels (id, class_id, name, description, order_number, prerequisite_level_id, created_at, updated_at)
VALUES (:id, :class_id, :name, :description, :order_number, :prerequisite_level_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, level); err != nil {
		if database.IsUniqueViolation(err, levelOrderConstraint) {
			return ErrLevelOrderTaken
		}
		return fmt.Errorf("create class level: %w", err)
	}
	return nil
}

// Update writes name, description and prerequisite of a level.
func (r *LevelRepository) Update(ctx context.Context, level *models.Level) error {
	level.UpdatedAt = time.Now().UTC()
	const query = `UPDATE class_levels SET name = :name, description = :description, prerequisite_level_id = :prerequisite_level_id,
updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, level); err != nil {
		return fmt.Errorf("update class level: %w", err)
	}
	return nil
}

// Reorder moves a level to newOrder. When another level of the same class
// holds newOrder the two swap positions; the unique constraint is deferred so
// both updates land in one transaction.
func (r *LevelRepository) Reorder(ctx context.Context, classID, levelID string, newOrder int) error {
	return withTx(ctx, r.db, "reorder class level", func(tx *sqlx.Tx) error {
		var current int
		const lock = `SELECT order_number FROM class_levels WHERE id = $1 AND class_id = $2 FOR UPDATE`
		if err := tx.GetContext(ctx, &current, lock, levelID, classID); err != nil {
			if err == sql.ErrNoRows {
				return err
			}
			return fmt.Errorf("lock class level: %w", err)
		}
		if current == newOrder {
			return nil
		}
		now := time.Now().UTC()
		const swap = `UPDATE class_levels SET order_number = $1, updated_at = $2 WHERE class_id = $3 AND order_number = $4 AND id <> $5`
		if _, err := tx.ExecContext(ctx, swap, current, now, classID, newOrder, levelID); err != nil {
			return fmt.Errorf("swap class level order: %w", err)
		}
		const move = `UPDATE class_levels SET order_number = $1, updated_at = $2 WHERE id = $3`
		if _, err := tx.ExecContext(ctx, move, newOrder, now, levelID); err != nil {
			return fmt.Errorf("move class level: %w", err)
		}
		return nil
	})
}

// Delete removes a level. Dependents referencing it as prerequisite are
// detached first and the meetings linked by its sessions are removed; the
// number of detached dependents is returned.
func (r *LevelRepository) Delete(ctx context.Context, id string) (int64, error) {
	var detached int64
	err := withTx(ctx, r.db, "delete class level", func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE class_levels SET prerequisite_level_id = NULL, updated_at = $2 WHERE prerequisite_level_id = $1`, id, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("detach dependent levels: %w", err)
		}
		detached, _ = res.RowsAffected()
		const meetings = `DELETE FROM attendance_meetings WHERE id IN (
SELECT attendance_meeting_id FROM class_sessions WHERE level_id = $1 AND attendance_meeting_id IS NOT NULL)`
		if _, err := tx.ExecContext(ctx, meetings, id); err != nil {
			return fmt.Errorf("delete level meetings: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM class_levels WHERE id = $1`, id); err != nil {
			return fmt.Errorf("delete class level: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return detached, nil
}
