package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Sentinel errors surfaced by repositories for storage-level invariants.
var (
	// ErrActiveEnrollmentExists is returned when the partial unique index on
	// enrolled rows rejects a write.
	ErrActiveEnrollmentExists = errors.New("active enrollment already exists")
	// ErrLevelOrderTaken is returned when another level of the class holds the order number.
	ErrLevelOrderTaken = errors.New("level order number already used")
	// ErrMeetingAlreadyLinked is returned when a session already points at a meeting.
	ErrMeetingAlreadyLinked = errors.New("session already linked to a meeting")
)

// UnknownMemberError is returned when a write references a member id that
// does not exist.
type UnknownMemberError struct {
	MemberID string
}

func (e *UnknownMemberError) Error() string {
	return fmt.Sprintf("member %s does not exist", e.MemberID)
}

const (
	activeLevelEnrollmentIndex = "uq_class_enrollments_active_level"
	activeClassEnrollmentIndex = "uq_class_enrollments_active_class"
	levelOrderConstraint       = "uq_class_levels_order"
	participantMemberFK        = "fk_attendance_participants_member"
)

// TIME columns come back from lib/pq as time.Time; reads project them as HH:MM text.
const (
	startTimeColumn = "to_char(start_time, 'HH24:MI') AS start_time"
	endTimeColumn   = "to_char(end_time, 'HH24:MI') AS end_time"
)

// withTx runs fn inside a transaction, rolling back when fn or the commit fails.
func withTx(ctx context.Context, db *sqlx.DB, label string, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s: %w", label, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", label, err)
	}
	return nil
}
