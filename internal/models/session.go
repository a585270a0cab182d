package models

import "time"

// SessionOwnerKind tells whether a session hangs off a level or a flat class.
type SessionOwnerKind string

const (
	SessionOwnerLevel SessionOwnerKind = "level"
	SessionOwnerClass SessionOwnerKind = "class"
)

// Valid returns true when the owner kind is supported.
func (k SessionOwnerKind) Valid() bool {
	return k == SessionOwnerLevel || k == SessionOwnerClass
}

// Session is a single scheduled occurrence of instruction.
type Session struct {
	ID                  string    `db:"id" json:"id"`
	ClassID             string    `db:"class_id" json:"class_id"`
	LevelID             *string   `db:"level_id" json:"level_id,omitempty"`
	Title               string    `db:"title" json:"title"`
	Description         string    `db:"description" json:"description"`
	SessionDate         time.Time `db:"session_date" json:"session_date"`
	StartTime           string    `db:"start_time" json:"start_time"`
	EndTime             string    `db:"end_time" json:"end_time"`
	Location            string    `db:"location" json:"location"`
	InstructorID        *string   `db:"instructor_id" json:"instructor_id,omitempty"`
	OrderNumber         int       `db:"order_number" json:"order_number"`
	AttendanceMeetingID *string   `db:"attendance_meeting_id" json:"attendance_meeting_id,omitempty"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time `db:"updated_at" json:"updated_at"`
}

// OwnerKind derives the owner kind from the level reference.
func (s Session) OwnerKind() SessionOwnerKind {
	if s.LevelID != nil && *s.LevelID != "" {
		return SessionOwnerLevel
	}
	return SessionOwnerClass
}

// OwnerID returns the level id for leveled sessions and the class id otherwise.
func (s Session) OwnerID() string {
	if s.OwnerKind() == SessionOwnerLevel {
		return *s.LevelID
	}
	return s.ClassID
}
