package models

import "time"

// Member is the read-only projection of a congregation member.
type Member struct {
	ID        string    `db:"id" json:"id"`
	FullName  string    `db:"full_name" json:"full_name"`
	Email     *string   `db:"email" json:"email,omitempty"`
	Phone     *string   `db:"phone" json:"phone,omitempty"`
	Status    string    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// MemberSearchFilter scopes eligible-member searches for enrollment.
type MemberSearchFilter struct {
	Query           string
	ClassID         string
	LevelID         string
	ExcludeEnrolled bool
	Limit           int
}
