package models

import (
	"encoding/json"
	"time"
)

// ClassCategory classifies what a class teaches.
type ClassCategory string

const (
	ClassCategoryBibleStudy   ClassCategory = "bible_study"
	ClassCategoryCounseling   ClassCategory = "counseling"
	ClassCategoryDiscipleship ClassCategory = "discipleship"
	ClassCategoryLeadership   ClassCategory = "leadership"
	ClassCategoryOther        ClassCategory = "other"
)

// Valid returns true when the category is a supported value.
func (c ClassCategory) Valid() bool {
	switch c {
	case ClassCategoryBibleStudy, ClassCategoryCounseling, ClassCategoryDiscipleship, ClassCategoryLeadership, ClassCategoryOther:
		return true
	default:
		return false
	}
}

// ClassStatus is the publication state of a class.
type ClassStatus string

const (
	ClassStatusUpcoming  ClassStatus = "upcoming"
	ClassStatusActive    ClassStatus = "active"
	ClassStatusCompleted ClassStatus = "completed"
	ClassStatusDraft     ClassStatus = "draft"
	ClassStatusCancelled ClassStatus = "cancelled"
)

// Valid returns true when the status is a supported value.
func (s ClassStatus) Valid() bool {
	switch s {
	case ClassStatusUpcoming, ClassStatusActive, ClassStatusCompleted, ClassStatusDraft, ClassStatusCancelled:
		return true
	default:
		return false
	}
}

// StructureMode names how a class organises its sessions.
type StructureMode string

const (
	StructureFlat    StructureMode = "flat"
	StructureLeveled StructureMode = "leveled"
)

// Class is a course in the catalog.
type Class struct {
	ID          string        `db:"id" json:"id"`
	Name        string        `db:"name" json:"name"`
	Description string        `db:"description" json:"description"`
	Category    ClassCategory `db:"category" json:"category"`
	Status      ClassStatus   `db:"status" json:"status"`
	MaxStudents *int          `db:"max_students" json:"max_students,omitempty"`
	HasLevels   bool          `db:"has_levels" json:"has_levels"`
	CreatedBy   *string       `db:"created_by" json:"created_by,omitempty"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at" json:"updated_at"`
}

// Mode reports the structure the class was created with.
func (c Class) Mode() StructureMode {
	if c.HasLevels {
		return StructureLeveled
	}
	return StructureFlat
}

// ClassFilter defines filter criteria for listing classes.
type ClassFilter struct {
	Category  ClassCategory
	Status    ClassStatus
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// ClassStructure is either a FlatStructure or a LeveledStructure; exactly one
// is attached to a class depending on has_levels.
type ClassStructure interface {
	Mode() StructureMode
	isClassStructure()
}

// FlatStructure holds sessions attached directly to the class.
type FlatStructure struct {
	Sessions []Session
}

// Mode implements ClassStructure.
func (FlatStructure) Mode() StructureMode { return StructureFlat }

func (FlatStructure) isClassStructure() {}

// MarshalJSON tags the payload with its mode.
func (f FlatStructure) MarshalJSON() ([]byte, error) {
	sessions := f.Sessions
	if sessions == nil {
		sessions = []Session{}
	}
	return json.Marshal(struct {
		Mode     StructureMode `json:"mode"`
		Sessions []Session     `json:"sessions"`
	}{StructureFlat, sessions})
}

// LeveledStructure holds the ordered levels of a structured class.
type LeveledStructure struct {
	Levels []Level
}

// Mode implements ClassStructure.
func (LeveledStructure) Mode() StructureMode { return StructureLeveled }

func (LeveledStructure) isClassStructure() {}

// MarshalJSON tags the payload with its mode.
func (l LeveledStructure) MarshalJSON() ([]byte, error) {
	levels := l.Levels
	if levels == nil {
		levels = []Level{}
	}
	return json.Marshal(struct {
		Mode   StructureMode `json:"mode"`
		Levels []Level       `json:"levels"`
	}{StructureLeveled, levels})
}

// ClassDetail is a class together with its structure.
type ClassDetail struct {
	Class
	Structure ClassStructure `json:"structure"`
}

// ClassSummary counts the children of a class.
type ClassSummary struct {
	ClassID       string `db:"class_id" json:"class_id"`
	LevelCount    int    `db:"level_count" json:"level_count"`
	SessionCount  int    `db:"session_count" json:"session_count"`
	EnrolledCount int    `db:"enrolled_count" json:"enrolled_count"`
}
