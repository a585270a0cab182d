package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/church-class-api/internal/models"
	appErrors "github.com/noah-isme/church-class-api/pkg/errors"
)

type classRepository interface {
	List(ctx context.Context, filter models.ClassFilter) ([]models.Class, int, error)
	FindByID(ctx context.Context, id string) (*models.Class, error)
	Create(ctx context.Context, class *models.Class) error
	Update(ctx context.Context, class *models.Class) error
	Delete(ctx context.Context, id string) error
	Summary(ctx context.Context, classID string) (*models.ClassSummary, error)
}

type classLevelLister interface {
	ListByClass(ctx context.Context, classID string) ([]models.Level, error)
}

type classSessionLister interface {
	ListByClass(ctx context.Context, classID string) ([]models.Session, error)
}

// CreateClassRequest is the payload for creating a class.
type CreateClassRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description"`
	Category    string `json:"category" validate:"required,class_category"`
	Status      string `json:"status" validate:"omitempty,class_status"`
	MaxStudents *int   `json:"max_students" validate:"omitempty,gt=0"`
	HasLevels   bool   `json:"has_levels"`
}

// UpdateClassRequest carries the mutable class fields. HasLevels is accepted
// only so a change can be rejected explicitly.
type UpdateClassRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description"`
	Category    *string `json:"category" validate:"omitempty,class_category"`
	Status      *string `json:"status" validate:"omitempty,class_status"`
	MaxStudents *int    `json:"max_students" validate:"omitempty,gt=0"`
	HasLevels   *bool   `json:"has_levels"`
}

// ClassService manages the class catalog.
type ClassService struct {
	repo      classRepository
	levels    classLevelLister
	sessions  classSessionLister
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClassService constructs ClassService.
func NewClassService(repo classRepository, levels classLevelLister, sessions classSessionLister, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *ClassService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassService{repo: repo, levels: levels, sessions: sessions, cache: cache, validator: registerValidations(validate), logger: logger}
}

// List returns classes with pagination metadata.
func (s *ClassService) List(ctx context.Context, filter models.ClassFilter) ([]models.Class, *models.Pagination, error) {
	if filter.Category != "" && !filter.Category.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "invalid category filter")
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "invalid status filter")
	}
	classes, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list classes")
	}
	return classes, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns the class with exactly one structure attached: its levels when
// it is leveled, its direct sessions otherwise.
func (s *ClassService) Get(ctx context.Context, id string) (*models.ClassDetail, error) {
	class, err := loadClass(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	detail := &models.ClassDetail{Class: *class}
	if class.HasLevels {
		levels, err := s.levels.ListByClass(ctx, id)
		if err != nil {
			return nil, internalError(err, "failed to load levels")
		}
		detail.Structure = models.LeveledStructure{Levels: newLevelGraph(levels).ordered()}
		return detail, nil
	}
	sessions, err := s.sessions.ListByClass(ctx, id)
	if err != nil {
		return nil, internalError(err, "failed to load sessions")
	}
	detail.Structure = models.FlatStructure{Sessions: sessions}
	return detail, nil
}

// Create validates and stores a new class. The structure mode is fixed here.
func (s *ClassService) Create(ctx context.Context, req CreateClassRequest, actor *models.JWTClaims) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid class payload")
	}
	status := models.ClassStatusDraft
	if req.Status != "" {
		status = models.ClassStatus(req.Status)
	}
	class := &models.Class{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Category:    models.ClassCategory(req.Category),
		Status:      status,
		MaxStudents: req.MaxStudents,
		HasLevels:   req.HasLevels,
	}
	if actor != nil {
		class.CreatedBy = stringPtr(actor.UserID)
	}
	if err := s.repo.Create(ctx, class); err != nil {
		return nil, internalError(err, "failed to create class")
	}
	s.logger.Info("class created", zap.String("class_id", class.ID), zap.Bool("has_levels", class.HasLevels))
	return class, nil
}

// Update changes the mutable fields of a class.
func (s *ClassService) Update(ctx context.Context, id string, req UpdateClassRequest) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid class payload")
	}
	class, err := loadClass(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	if req.HasLevels != nil && *req.HasLevels != class.HasLevels {
		return nil, appErrors.Clone(appErrors.ErrValidation, "has_levels cannot be changed after creation")
	}
	if req.Name != nil {
		class.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		class.Description = *req.Description
	}
	if req.Category != nil {
		class.Category = models.ClassCategory(*req.Category)
	}
	if req.Status != nil {
		class.Status = models.ClassStatus(*req.Status)
	}
	if req.MaxStudents != nil {
		class.MaxStudents = req.MaxStudents
	}
	if err := s.repo.Update(ctx, class); err != nil {
		return nil, internalError(err, "failed to update class")
	}
	s.cache.InvalidateClass(ctx, id)
	return class, nil
}

// Delete removes a class with its levels, sessions, enrollments and the
// attendance meetings linked to its sessions.
func (s *ClassService) Delete(ctx context.Context, id string) error {
	if _, err := loadClass(ctx, s.repo, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return internalError(err, "failed to delete class")
	}
	s.cache.InvalidateClass(ctx, id)
	s.logger.Info("class deleted", zap.String("class_id", id))
	return nil
}

// Summary returns child counts for a class, served from cache when enabled.
func (s *ClassService) Summary(ctx context.Context, id string) (*models.ClassSummary, bool, error) {
	var cached models.ClassSummary
	if hit, _ := s.cache.Get(ctx, classSummaryKey(id), &cached); hit {
		return &cached, true, nil
	}
	if _, err := loadClass(ctx, s.repo, id); err != nil {
		return nil, false, err
	}
	summary, err := s.repo.Summary(ctx, id)
	if err != nil {
		return nil, false, internalError(err, "failed to summarise class")
	}
	_ = s.cache.Set(ctx, classSummaryKey(id), summary, 0)
	return summary, false, nil
}
