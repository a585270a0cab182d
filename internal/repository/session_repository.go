package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/church-class-api/internal/models"
)

const sessionColumns = "id, class_id, level_id, title, description, session_date, " +
	startTimeColumn + ", " + endTimeColumn +
	", location, instructor_id, order_number, attendance_meeting_id, created_at, updated_at"

const sessionOrder = "ORDER BY class_sessions.order_number ASC, class_sessions.session_date ASC, class_sessions.start_time ASC"

// SessionRepository persists class sessions.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs the repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// ListByLevel returns the sessions of a level in presentation order.
func (r *SessionRepository) ListByLevel(ctx context.Context, levelID string) ([]models.Session, error) {
	query := "SELECT " + sessionColumns + " FROM class_sessions WHERE level_id = $1 " + sessionOrder
	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query, levelID); err != nil {
		return nil, fmt.Errorf("list level sessions: %w", err)
	}
	return sessions, nil
}

// ListByClass returns the sessions attached directly to a flat class.
func (r *SessionRepository) ListByClass(ctx context.Context, classID string) ([]models.Session, error) {
	query := "SELECT " + sessionColumns + " FROM class_sessions WHERE class_id = $1 AND level_id IS NULL " + sessionOrder
	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query, classID); err != nil {
		return nil, fmt.Errorf("list class sessions: %w", err)
	}
	return sessions, nil
}

// FindByID returns a session by its ID.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.Session, error) {
	query := "SELECT " + sessionColumns + " FROM class_sessions WHERE id = $1"
	var session models.Session
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// MaxOrder returns the highest session order number under the owner.
func (r *SessionRepository) MaxOrder(ctx context.Context, kind models.SessionOwnerKind, ownerID string) (int, error) {
	query := `SELECT COALESCE(MAX(order_number), 0) FROM class_sessions WHERE class_id = $1 AND level_id IS NULL`
	if kind == models.SessionOwnerLevel {
		query = `SELECT COALESCE(MAX(order_number), 0) FROM class_sessions WHERE level_id = $1`
	}
	var max int
	if err := r.db.GetContext(ctx, &max, query, ownerID); err != nil {
		return 0, fmt.Errorf("max session order: %w", err)
	}
	return max, nil
}

// Create persists a new session.
func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now
	const query = `INSERT INTO class_sessions (id, class_id, level_id, title, description, session_date, start_time, end_time, location,
instructor_id, order_number, attendance_meeting_id, created_at, updated_at)
VALUES (:id, :class_id, :level_id, :title, :description, :session_date, :start_time, :end_time, :location,
:instructor_id, :order_number, :attendance_meeting_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("create class session: %w", err)
	}
	return nil
}

// Update writes the schedule fields of a session. The meeting link is owned by LinkMeeting.
func (r *SessionRepository) Update(ctx context.Context, session *models.Session) error {
	session.UpdatedAt = time.Now().UTC()
	const query = `UPDATE class_sessions SET title = :title, description = :description, session_date = :session_date,
start_time = :start_time, end_time = :end_time, location = :location, instructor_id = :instructor_id,
order_number = :order_number, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("update class session: %w", err)
	}
	return nil
}

// LinkMeeting stores meetingID on the session unless it already carries one,
// in which case ErrMeetingAlreadyLinked is returned.
func (r *SessionRepository) LinkMeeting(ctx context.Context, sessionID, meetingID string) error {
	const query = `UPDATE class_sessions SET attendance_meeting_id = $2, updated_at = $3 WHERE id = $1 AND attendance_meeting_id IS NULL`
	res, err := r.db.ExecContext(ctx, query, sessionID, meetingID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("link session meeting: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("link session meeting: %w", err)
	}
	if affected == 0 {
		return ErrMeetingAlreadyLinked
	}
	return nil
}

// Delete removes a session and the attendance meeting it links to.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	return withTx(ctx, r.db, "delete class session", func(tx *sqlx.Tx) error {
		var meetingID *string
		if err := tx.GetContext(ctx, &meetingID, `DELETE FROM class_sessions WHERE id = $1 RETURNING attendance_meeting_id`, id); err != nil {
			return err
		}
		if meetingID == nil {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM attendance_meetings WHERE id = $1`, *meetingID); err != nil {
			return fmt.Errorf("delete session meeting: %w", err)
		}
		return nil
	})
}
