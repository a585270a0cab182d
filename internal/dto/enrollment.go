package dto

import "github.com/noah-isme/church-class-api/internal/models"

// Reasons reported for members skipped by a batch enrollment.
const (
	SkipReasonMemberNotFound      = "member not found"
	SkipReasonAlreadyEnrolled     = "already enrolled"
	SkipReasonDuplicateInRequest  = "duplicate in request"
	SkipReasonPrerequisiteMissing = "prerequisite not completed"
	SkipReasonClassFull           = "class is full"
	SkipReasonFailed              = "enrollment failed"
)

// SearchMembersRequest scopes the eligible-member search.
type SearchMembersRequest struct {
	Query           string `form:"q"`
	LevelID         string `form:"level_id"`
	ExcludeEnrolled bool   `form:"exclude_enrolled"`
	Limit           int    `form:"limit" validate:"omitempty,gte=0"`
}

// BatchEnrollRequest enrolls several members into one class or level.
type BatchEnrollRequest struct {
	MemberIDs []string `json:"member_ids" validate:"required,min=1,dive,required"`
	LevelID   string   `json:"level_id"`
	Notes     *string  `json:"notes"`
}

// SkippedMember explains why one member was not enrolled.
type SkippedMember struct {
	MemberID string `json:"member_id"`
	Reason   string `json:"reason"`
}

// BatchEnrollResult reports per-member outcomes of a batch enrollment.
type BatchEnrollResult struct {
	Requested     int                       `json:"requested"`
	EnrolledCount int                       `json:"enrolled_count"`
	Enrollments   []models.EnrollmentDetail `json:"enrollments"`
	Skipped       []SkippedMember           `json:"skipped"`
}
