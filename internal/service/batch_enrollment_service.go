package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/church-class-api/internal/dto"
	"github.com/noah-isme/church-class-api/internal/models"
	appErrors "github.com/noah-isme/church-class-api/pkg/errors"
)

type memberSearcher interface {
	FindByIDs(ctx context.Context, ids []string) (map[string]models.Member, error)
	SearchEligible(ctx context.Context, filter models.MemberSearchFilter) ([]models.Member, error)
}

type targetEnroller interface {
	ResolveTarget(ctx context.Context, classID, levelID string) (*EnrollmentTarget, error)
	EnrollTarget(ctx context.Context, target *EnrollmentTarget, memberID string, notes *string, actor *models.JWTClaims) (*models.EnrollmentDetail, error)
}

// BatchLimits bounds search and batch sizes.
type BatchLimits struct {
	SearchDefault int
	SearchMax     int
	MaxMembers    int
}

// BatchEnrollmentService searches members eligible for a class or level and
// enrolls a selection of them, reporting the outcome per member.
type BatchEnrollmentService struct {
	members   memberSearcher
	classes   classReader
	levels    levelReader
	enroller  targetEnroller
	limits    BatchLimits
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewBatchEnrollmentService constructs BatchEnrollmentService.
func NewBatchEnrollmentService(members memberSearcher, classes classReader, levels levelReader, enroller targetEnroller, limits BatchLimits, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *BatchEnrollmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limits.SearchDefault <= 0 {
		limits.SearchDefault = 20
	}
	if limits.SearchMax < limits.SearchDefault {
		limits.SearchMax = limits.SearchDefault
	}
	if limits.MaxMembers <= 0 {
		limits.MaxMembers = 200
	}
	return &BatchEnrollmentService{
		members:   members,
		classes:   classes,
		levels:    levels,
		enroller:  enroller,
		limits:    limits,
		metrics:   metrics,
		validator: registerValidations(validate),
		logger:    logger,
	}
}

// SearchEligibleMembers matches members by name or email. With
// ExcludeEnrolled, members actively enrolled in the target level (or the
// class, when no level is given) are left out.
func (s *BatchEnrollmentService) SearchEligibleMembers(ctx context.Context, actor *models.JWTClaims, classID string, req dto.SearchMembersRequest) ([]models.Member, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid search parameters")
	}
	if _, err := loadClass(ctx, s.classes, classID); err != nil {
		return nil, err
	}
	levelID := strings.TrimSpace(req.LevelID)
	if levelID != "" {
		level, err := loadLevel(ctx, s.levels, levelID)
		if err != nil {
			return nil, err
		}
		if level.ClassID != classID {
			return nil, appErrors.Clone(appErrors.ErrReferential, "level does not belong to class")
		}
	}
	limit := req.Limit
	if limit <= 0 {
		limit = s.limits.SearchDefault
	}
	if limit > s.limits.SearchMax {
		limit = s.limits.SearchMax
	}
	members, err := s.members.SearchEligible(ctx, models.MemberSearchFilter{
		Query:           req.Query,
		ClassID:         classID,
		LevelID:         levelID,
		ExcludeEnrolled: req.ExcludeEnrolled,
		Limit:           limit,
	})
	if err != nil {
		return nil, internalError(err, "failed to search members")
	}
	if members == nil {
		members = []models.Member{}
	}
	return members, nil
}

// BatchEnroll enrolls each requested member independently. Members that are
// unknown, already enrolled or otherwise rejected are reported in Skipped;
// only an invalid target fails the whole call.
func (s *BatchEnrollmentService) BatchEnroll(ctx context.Context, actor *models.JWTClaims, classID string, req dto.BatchEnrollRequest) (*dto.BatchEnrollResult, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "member_ids must contain at least one id")
	}
	if len(req.MemberIDs) > s.limits.MaxMembers {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("at most %d members per batch", s.limits.MaxMembers))
	}
	started := time.Now()
	defer func() { s.metrics.ObserveBatchEnroll(time.Since(started)) }()

	target, err := s.enroller.ResolveTarget(ctx, classID, req.LevelID)
	if err != nil {
		return nil, err
	}

	result := &dto.BatchEnrollResult{
		Requested:   len(req.MemberIDs),
		Enrollments: []models.EnrollmentDetail{},
		Skipped:     []dto.SkippedMember{},
	}
	ids := make([]string, 0, len(req.MemberIDs))
	seen := make(map[string]struct{}, len(req.MemberIDs))
	for _, raw := range req.MemberIDs {
		id := strings.TrimSpace(raw)
		if _, dup := seen[id]; dup {
			result.Skipped = append(result.Skipped, dto.SkippedMember{MemberID: id, Reason: dto.SkipReasonDuplicateInRequest})
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	known, err := s.members.FindByIDs(ctx, ids)
	if err != nil {
		return nil, internalError(err, "failed to load members")
	}

	for _, id := range ids {
		if _, ok := known[id]; !ok {
			s.skip(result, id, dto.SkipReasonMemberNotFound)
			continue
		}
		detail, err := s.enroller.EnrollTarget(ctx, target, id, req.Notes, actor)
		if err != nil {
			reason := skipReason(err)
			if reason == dto.SkipReasonFailed {
				s.logger.Error("batch enrollment failed for member", zap.String("class_id", classID), zap.String("member_id", id), zap.Error(err))
			}
			s.skip(result, id, reason)
			continue
		}
		result.Enrollments = append(result.Enrollments, *detail)
		result.EnrolledCount++
		s.metrics.RecordEnrollment("batch", OutcomeEnrolled)
	}

	s.logger.Info("batch enrollment finished",
		zap.String("class_id", classID),
		zap.String("level_id", req.LevelID),
		zap.String("actor_id", actor.UserID),
		zap.Int("requested", result.Requested),
		zap.Int("enrolled", result.EnrolledCount),
		zap.Int("skipped", len(result.Skipped)),
	)
	return result, nil
}

func (s *BatchEnrollmentService) skip(result *dto.BatchEnrollResult, memberID, reason string) {
	result.Skipped = append(result.Skipped, dto.SkippedMember{MemberID: memberID, Reason: reason})
	s.metrics.RecordEnrollment("batch", OutcomeSkipped)
}

func skipReason(err error) string {
	switch {
	case errors.Is(err, appErrors.ErrDuplicateEnrollment):
		return dto.SkipReasonAlreadyEnrolled
	case errors.Is(err, appErrors.ErrPrerequisiteNotMet):
		return dto.SkipReasonPrerequisiteMissing
	case errors.Is(err, appErrors.ErrClassFull):
		return dto.SkipReasonClassFull
	case errors.Is(err, appErrors.ErrNotFound):
		return dto.SkipReasonMemberNotFound
	default:
		return dto.SkipReasonFailed
	}
}

func requireActor(actor *models.JWTClaims) error {
	if actor == nil || actor.UserID == "" {
		return appErrors.Clone(appErrors.ErrUnauthorized, "caller identity required")
	}
	if !actor.CanManageClasses() {
		return appErrors.Clone(appErrors.ErrForbidden, "insufficient role to enroll members")
	}
	return nil
}
