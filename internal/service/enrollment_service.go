package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/church-class-api/internal/models"
	"github.com/noah-isme/church-class-api/internal/repository"
	"github.com/noah-isme/church-class-api/pkg/config"
	appErrors "github.com/noah-isme/church-class-api/pkg/errors"
)

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	ExistsActive(ctx context.Context, memberID, classID string, levelID *string, excludeID string) (bool, error)
	HasCompleted(ctx context.Context, memberID, levelID string) (bool, error)
	CountActiveByClass(ctx context.Context, classID, excludeMemberID string) (int, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus, completionDate *time.Time) error
	Delete(ctx context.Context, id string) error
}

// EnforcementMode decides whether a level's prerequisite must be completed
// before enrolling.
type EnforcementMode string

const (
	EnforcementPermissive EnforcementMode = EnforcementMode(config.PrerequisiteModePermissive)
	EnforcementStrict     EnforcementMode = EnforcementMode(config.PrerequisiteModeStrict)
)

// EnrollmentPolicy tunes the checks run before an enrollment is written.
type EnrollmentPolicy struct {
	Prerequisites   EnforcementMode
	EnforceCapacity bool
}

// PolicyFromConfig derives the enrollment policy from configuration.
func PolicyFromConfig(cfg config.ClassesConfig) EnrollmentPolicy {
	mode := EnforcementPermissive
	if cfg.PrerequisiteMode == config.PrerequisiteModeStrict {
		mode = EnforcementStrict
	}
	return EnrollmentPolicy{Prerequisites: mode, EnforceCapacity: cfg.EnforceCapacity}
}

// EnrollRequest describes a single enrollment.
type EnrollRequest struct {
	MemberID string  `json:"member_id" validate:"required"`
	ClassID  string  `json:"class_id" validate:"required"`
	LevelID  string  `json:"level_id"`
	Notes    *string `json:"notes"`
}

// UpdateEnrollmentStatusRequest moves an enrollment through its lifecycle.
type UpdateEnrollmentStatusRequest struct {
	Status string `json:"status" validate:"required,enrollment_status"`
}

// EnrollmentTarget is a resolved class, and level for leveled classes, that
// members can be enrolled into.
type EnrollmentTarget struct {
	Class models.Class
	Level *models.Level
}

func (t EnrollmentTarget) levelID() *string {
	if t.Level == nil {
		return nil
	}
	return &t.Level.ID
}

// EnrollmentService keeps the enrollment ledger: who is enrolled where and
// in which state.
type EnrollmentService struct {
	repo      enrollmentRepository
	classes   classReader
	levels    levelReader
	members   memberReader
	policy    EnrollmentPolicy
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, classes classReader, levels levelReader, members memberReader, policy EnrollmentPolicy, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy.Prerequisites == "" {
		policy.Prerequisites = EnforcementPermissive
	}
	return &EnrollmentService{
		repo:      repo,
		classes:   classes,
		levels:    levels,
		members:   members,
		policy:    policy,
		cache:     cache,
		metrics:   metrics,
		validator: registerValidations(validate),
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Enroll registers one member into a level, or into a flat class.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollRequest, actor *models.JWTClaims) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid enrollment payload")
	}
	if _, err := s.loadMember(ctx, req.MemberID); err != nil {
		return nil, err
	}
	target, err := s.ResolveTarget(ctx, req.ClassID, req.LevelID)
	if err != nil {
		return nil, err
	}
	detail, err := s.EnrollTarget(ctx, target, req.MemberID, req.Notes, actor)
	outcome := OutcomeEnrolled
	if err != nil {
		outcome = OutcomeRejected
	}
	s.metrics.RecordEnrollment("single", outcome)
	return detail, err
}

// ResolveTarget validates the class/level pair an enrollment points at.
// Leveled classes require a level of that class; flat classes take none.
func (s *EnrollmentService) ResolveTarget(ctx context.Context, classID, levelID string) (*EnrollmentTarget, error) {
	class, err := loadClass(ctx, s.classes, classID)
	if err != nil {
		return nil, err
	}
	levelID = strings.TrimSpace(levelID)
	if !class.HasLevels {
		if levelID != "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "class does not use levels; omit level_id")
		}
		return &EnrollmentTarget{Class: *class}, nil
	}
	if levelID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "level_id is required for classes with levels")
	}
	level, err := loadLevel(ctx, s.levels, levelID)
	if err != nil {
		return nil, err
	}
	if level.ClassID != class.ID {
		return nil, appErrors.Clone(appErrors.ErrReferential, "level does not belong to class")
	}
	return &EnrollmentTarget{Class: *class, Level: level}, nil
}

// EnrollTarget writes the enrollment after the duplicate, prerequisite and
// capacity checks. The member must already be known to exist.
func (s *EnrollmentService) EnrollTarget(ctx context.Context, target *EnrollmentTarget, memberID string, notes *string, actor *models.JWTClaims) (*models.EnrollmentDetail, error) {
	levelID := target.levelID()
	exists, err := s.repo.ExistsActive(ctx, memberID, target.Class.ID, levelID, "")
	if err != nil {
		return nil, internalError(err, "failed to validate enrollment")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrDuplicateEnrollment, "member already enrolled")
	}
	if err := s.checkPrerequisite(ctx, target, memberID); err != nil {
		return nil, err
	}
	if err := s.checkCapacity(ctx, target.Class, memberID); err != nil {
		return nil, err
	}

	enrollment := &models.Enrollment{
		MemberID:       memberID,
		ClassID:        target.Class.ID,
		LevelID:        levelID,
		EnrollmentDate: s.now(),
		Status:         models.EnrollmentStatusEnrolled,
		Notes:          notes,
	}
	if actor != nil {
		enrollment.EnrolledBy = stringPtr(actor.UserID)
	}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		if errors.Is(err, repository.ErrActiveEnrollmentExists) {
			return nil, appErrors.Clone(appErrors.ErrDuplicateEnrollment, "member already enrolled")
		}
		return nil, internalError(err, "failed to create enrollment")
	}
	s.cache.InvalidateClass(ctx, target.Class.ID)
	return s.detail(ctx, enrollment.ID)
}

// UpdateStatus moves an enrollment to a new state. Completion stamps the
// completion date; returning to enrolled is rejected when another active
// enrollment already exists for the same target.
func (s *EnrollmentService) UpdateStatus(ctx context.Context, id string, req UpdateEnrollmentStatusRequest) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid status payload")
	}
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, internalError(err, "failed to load enrollment")
	}
	status := models.EnrollmentStatus(req.Status)
	if status == enrollment.Status {
		return s.detail(ctx, id)
	}

	var completion *time.Time
	switch status {
	case models.EnrollmentStatusCompleted:
		now := s.now()
		completion = &now
	case models.EnrollmentStatusEnrolled:
		exists, err := s.repo.ExistsActive(ctx, enrollment.MemberID, enrollment.ClassID, enrollment.LevelID, enrollment.ID)
		if err != nil {
			return nil, internalError(err, "failed to validate enrollment")
		}
		if exists {
			return nil, appErrors.Clone(appErrors.ErrDuplicateEnrollment, "member already enrolled")
		}
	}
	if err := s.repo.UpdateStatus(ctx, id, status, completion); err != nil {
		if errors.Is(err, repository.ErrActiveEnrollmentExists) {
			return nil, appErrors.Clone(appErrors.ErrDuplicateEnrollment, "member already enrolled")
		}
		return nil, internalError(err, "failed to update enrollment status")
	}
	s.cache.InvalidateClass(ctx, enrollment.ClassID)
	s.logger.Info("enrollment status changed", zap.String("enrollment_id", id), zap.String("from", string(enrollment.Status)), zap.String("to", string(status)))
	return s.detail(ctx, id)
}

// Unenroll hard-deletes an enrollment.
func (s *EnrollmentService) Unenroll(ctx context.Context, id string) error {
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return internalError(err, "failed to load enrollment")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return internalError(err, "failed to delete enrollment")
	}
	s.cache.InvalidateClass(ctx, enrollment.ClassID)
	return nil
}

// ListByLevel returns every enrollment of a level.
func (s *EnrollmentService) ListByLevel(ctx context.Context, levelID string, status models.EnrollmentStatus) ([]models.EnrollmentDetail, error) {
	if _, err := loadLevel(ctx, s.levels, levelID); err != nil {
		return nil, err
	}
	return s.list(ctx, models.EnrollmentFilter{LevelID: levelID, Status: status})
}

// ListByMember returns every enrollment held by a member.
func (s *EnrollmentService) ListByMember(ctx context.Context, memberID string, status models.EnrollmentStatus) ([]models.EnrollmentDetail, error) {
	if _, err := s.loadMember(ctx, memberID); err != nil {
		return nil, err
	}
	return s.list(ctx, models.EnrollmentFilter{MemberID: memberID, Status: status})
}

// ListByClass returns the enrollments of a class. For flat classes only
// direct enrollments exist; for leveled classes all levels are included.
func (s *EnrollmentService) ListByClass(ctx context.Context, classID string, status models.EnrollmentStatus) ([]models.EnrollmentDetail, error) {
	class, err := loadClass(ctx, s.classes, classID)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, models.EnrollmentFilter{ClassID: classID, FlatOnly: !class.HasLevels, Status: status})
}

func (s *EnrollmentService) list(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid status filter")
	}
	enrollments, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, internalError(err, "failed to list enrollments")
	}
	return enrollments, nil
}

func (s *EnrollmentService) checkPrerequisite(ctx context.Context, target *EnrollmentTarget, memberID string) error {
	if s.policy.Prerequisites != EnforcementStrict || target.Level == nil || target.Level.PrerequisiteLevelID == nil {
		return nil
	}
	done, err := s.repo.HasCompleted(ctx, memberID, *target.Level.PrerequisiteLevelID)
	if err != nil {
		return internalError(err, "failed to check prerequisite")
	}
	if !done {
		return appErrors.Clone(appErrors.ErrPrerequisiteNotMet, "prerequisite level not completed")
	}
	return nil
}

// checkCapacity counts seats per member, so a member already enrolled in
// another level of the class does not take a new one.
func (s *EnrollmentService) checkCapacity(ctx context.Context, class models.Class, memberID string) error {
	if !s.policy.EnforceCapacity || class.MaxStudents == nil {
		return nil
	}
	count, err := s.repo.CountActiveByClass(ctx, class.ID, memberID)
	if err != nil {
		return internalError(err, "failed to count enrollments")
	}
	if count >= *class.MaxStudents {
		return appErrors.Clone(appErrors.ErrClassFull, "class is full")
	}
	return nil
}

func (s *EnrollmentService) loadMember(ctx context.Context, id string) (*models.Member, error) {
	member, err := s.members.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "member not found")
		}
		return nil, internalError(err, "failed to load member")
	}
	return member, nil
}

func (s *EnrollmentService) detail(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		return nil, internalError(err, "failed to load enrollment detail")
	}
	return detail, nil
}
