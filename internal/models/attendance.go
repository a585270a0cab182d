package models

import "time"

// AttendanceStatus represents a participant's attendance for one meeting.
type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "present"
	AttendanceStatusAbsent  AttendanceStatus = "absent"
	AttendanceStatusLate    AttendanceStatus = "late"
	AttendanceStatusExcused AttendanceStatus = "excused"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusAbsent, AttendanceStatusLate, AttendanceStatusExcused:
		return true
	default:
		return false
	}
}

// AttendanceMeeting groups participants for one session occurrence.
type AttendanceMeeting struct {
	ID          string    `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	MeetingDate time.Time `db:"meeting_date" json:"meeting_date"`
	StartTime   *string   `db:"start_time" json:"start_time,omitempty"`
	EndTime     *string   `db:"end_time" json:"end_time,omitempty"`
	Location    string    `db:"location" json:"location"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// AttendanceParticipant is one member's status within a meeting.
type AttendanceParticipant struct {
	ID        string           `db:"id" json:"id"`
	MeetingID string           `db:"meeting_id" json:"meeting_id"`
	MemberID  string           `db:"member_id" json:"member_id"`
	Status    AttendanceStatus `db:"status" json:"status"`
	Notes     *string          `db:"notes" json:"notes,omitempty"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
}

// AttendanceParticipantDetail adds the member name for sheet rendering.
type AttendanceParticipantDetail struct {
	AttendanceParticipant
	MemberName string `db:"member_name" json:"member_name"`
}
