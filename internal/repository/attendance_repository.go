package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/church-class-api/internal/models"
	"github.com/noah-isme/church-class-api/pkg/database"
)

// AttendanceRepository persists attendance meetings and their participants.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// CreateMeeting inserts a meeting record.
func (r *AttendanceRepository) CreateMeeting(ctx context.Context, meeting *models.AttendanceMeeting) error {
	if meeting.ID == "" {
		meeting.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	meeting.CreatedAt = now
	meeting.UpdatedAt = now
	const query = `INSERT INTO attendance_meetings (id, title, meeting_date, start_time, end_time, location, created_at, updated_at)
VALUES (:id, :title, :meeting_date, :start_time, :end_time, :location, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, meeting); err != nil {
		return fmt.Errorf("create attendance meeting: %w", err)
	}
	return nil
}

// FindMeetingByID returns a meeting by its ID.
func (r *AttendanceRepository) FindMeetingByID(ctx context.Context, id string) (*models.AttendanceMeeting, error) {
	const query = "SELECT id, title, meeting_date, " + startTimeColumn + ", " + endTimeColumn +
		", location, created_at, updated_at FROM attendance_meetings WHERE id = $1"
	var meeting models.AttendanceMeeting
	if err := r.db.GetContext(ctx, &meeting, query, id); err != nil {
		return nil, err
	}
	return &meeting, nil
}

// DeleteMeeting removes a meeting; participants cascade.
func (r *AttendanceRepository) DeleteMeeting(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM attendance_meetings WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete attendance meeting: %w", err)
	}
	return nil
}

// ListParticipants returns the stored participants of a meeting.
func (r *AttendanceRepository) ListParticipants(ctx context.Context, meetingID string) ([]models.AttendanceParticipantDetail, error) {
	const query = `SELECT p.id, p.meeting_id, p.member_id, p.status, p.notes, p.created_at, m.full_name AS member_name
FROM attendance_participants p
JOIN members m ON m.id = p.member_id
WHERE p.meeting_id = $1
ORDER BY m.full_name ASC`
	var rows []models.AttendanceParticipantDetail
	if err := r.db.SelectContext(ctx, &rows, query, meetingID); err != nil {
		return nil, fmt.Errorf("list attendance participants: %w", err)
	}
	return rows, nil
}

// ReplaceParticipants deletes every participant of the meeting and inserts
// the provided set in one transaction.
func (r *AttendanceRepository) ReplaceParticipants(ctx context.Context, meetingID string, participants []models.AttendanceParticipant) error {
	return withTx(ctx, r.db, "replace attendance participants", func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM attendance_participants WHERE meeting_id = $1`, meetingID); err != nil {
			return fmt.Errorf("clear attendance participants: %w", err)
		}
		const insert = `INSERT INTO attendance_participants (id, meeting_id, member_id, status, notes, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`
		now := time.Now().UTC()
		for i := range participants {
			p := &participants[i]
			if p.ID == "" {
				p.ID = uuid.NewString()
			}
			p.MeetingID = meetingID
			p.CreatedAt = now
			if _, err := tx.ExecContext(ctx, insert, p.ID, p.MeetingID, p.MemberID, p.Status, p.Notes, p.CreatedAt); err != nil {
				if database.IsForeignKeyViolation(err, participantMemberFK) {
					return &UnknownMemberError{MemberID: p.MemberID}
				}
				return fmt.Errorf("insert attendance participant %s: %w", p.MemberID, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE attendance_meetings SET updated_at = $2 WHERE id = $1`, meetingID, now); err != nil {
			return fmt.Errorf("touch attendance meeting: %w", err)
		}
		return nil
	})
}
