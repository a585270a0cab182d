package models

import "time"

// Level is an ordered stage of a structured class.
type Level struct {
	ID                  string    `db:"id" json:"id"`
	ClassID             string    `db:"class_id" json:"class_id"`
	Name                string    `db:"name" json:"name"`
	Description         string    `db:"description" json:"description"`
	OrderNumber         int       `db:"order_number" json:"order_number"`
	PrerequisiteLevelID *string   `db:"prerequisite_level_id" json:"prerequisite_level_id,omitempty"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time `db:"updated_at" json:"updated_at"`
}

// LevelDetail adds counts used by the level listing.
type LevelDetail struct {
	Level
	PrerequisiteName *string `db:"prerequisite_name" json:"prerequisite_name,omitempty"`
	SessionCount     int     `db:"session_count" json:"session_count"`
	EnrolledCount    int     `db:"enrolled_count" json:"enrolled_count"`
}
