package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusEnrolled  EnrollmentStatus = "enrolled"
	EnrollmentStatusCompleted EnrollmentStatus = "completed"
	EnrollmentStatusDropped   EnrollmentStatus = "dropped"
)

// Valid returns true when the status is a supported value.
func (s EnrollmentStatus) Valid() bool {
	switch s {
	case EnrollmentStatusEnrolled, EnrollmentStatusCompleted, EnrollmentStatusDropped:
		return true
	default:
		return false
	}
}

// Enrollment captures a member's registration to a level, or to a flat class
// when LevelID is nil.
type Enrollment struct {
	ID             string           `db:"id" json:"id"`
	MemberID       string           `db:"member_id" json:"member_id"`
	ClassID        string           `db:"class_id" json:"class_id"`
	LevelID        *string          `db:"level_id" json:"level_id,omitempty"`
	EnrollmentDate time.Time        `db:"enrollment_date" json:"enrollment_date"`
	Status         EnrollmentStatus `db:"status" json:"status"`
	CompletionDate *time.Time       `db:"completion_date" json:"completion_date,omitempty"`
	Notes          *string          `db:"notes" json:"notes,omitempty"`
	EnrolledBy     *string          `db:"enrolled_by" json:"enrolled_by,omitempty"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time        `db:"updated_at" json:"updated_at"`
}

// EnrollmentDetail enriches Enrollment with member, class and level info.
type EnrollmentDetail struct {
	Enrollment
	MemberName  string  `db:"member_name" json:"member_name"`
	MemberEmail *string `db:"member_email" json:"member_email,omitempty"`
	ClassName   string  `db:"class_name" json:"class_name"`
	LevelName   *string `db:"level_name" json:"level_name,omitempty"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	MemberID string
	ClassID  string
	LevelID  string
	// FlatOnly restricts a class listing to enrollments without a level.
	FlatOnly bool
	Status   EnrollmentStatus
}
