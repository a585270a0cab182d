package dto

import "time"

// AttendanceSheetRow is one member's line on a session attendance sheet.
type AttendanceSheetRow struct {
	MemberID   string  `json:"member_id"`
	MemberName string  `json:"member_name"`
	Status     string  `json:"status"`
	Notes      *string `json:"notes,omitempty"`
	// Enrolled is false for participants recorded earlier who are no longer
	// actively enrolled in the session's level or class.
	Enrolled bool `json:"enrolled"`
}

// AttendanceSheet combines the session, its meeting and the participant rows.
type AttendanceSheet struct {
	SessionID    string               `json:"session_id"`
	SessionTitle string               `json:"session_title"`
	SessionDate  time.Time            `json:"session_date"`
	MeetingID    *string              `json:"meeting_id,omitempty"`
	Recorded     bool                 `json:"recorded"`
	Rows         []AttendanceSheetRow `json:"rows"`
}

// AttendanceEntry is one participant in a record-attendance payload.
type AttendanceEntry struct {
	MemberID string  `json:"member_id" validate:"required"`
	Status   string  `json:"status" validate:"required,attendance_status"`
	Notes    *string `json:"notes"`
}

// RecordAttendanceRequest replaces the participant list of a meeting.
type RecordAttendanceRequest struct {
	Participants []AttendanceEntry `json:"participants" validate:"dive"`
}

// EnsureMeetingResponse reports the meeting linked to a session.
type EnsureMeetingResponse struct {
	SessionID string `json:"session_id"`
	MeetingID string `json:"meeting_id"`
}
