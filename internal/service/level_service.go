package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/church-class-api/internal/models"
	"github.com/noah-isme/church-class-api/internal/repository"
	appErrors "github.com/noah-isme/church-class-api/pkg/errors"
)

type levelRepository interface {
	ListByClass(ctx context.Context, classID string) ([]models.Level, error)
	ListDetailsByClass(ctx context.Context, classID string) ([]models.LevelDetail, error)
	FindByID(ctx context.Context, id string) (*models.Level, error)
	Create(ctx context.Context, level *models.Level) error
	Update(ctx context.Context, level *models.Level) error
	Reorder(ctx context.Context, classID, levelID string, newOrder int) error
	Delete(ctx context.Context, id string) (int64, error)
}

// AddLevelRequest is the payload for adding a level to a class.
type AddLevelRequest struct {
	Name                string  `json:"name" validate:"required,max=200"`
	Description         string  `json:"description"`
	OrderNumber         *int    `json:"order_number" validate:"omitempty,gt=0"`
	PrerequisiteLevelID *string `json:"prerequisite_level_id"`
}

// UpdateLevelRequest changes level metadata. An empty prerequisite id clears it.
type UpdateLevelRequest struct {
	Name                *string `json:"name" validate:"omitempty,min=1,max=200"`
	Description         *string `json:"description"`
	PrerequisiteLevelID *string `json:"prerequisite_level_id"`
}

// ReorderLevelRequest moves a level to a new position.
type ReorderLevelRequest struct {
	OrderNumber int `json:"order_number" validate:"required,gt=0"`
}

// LevelService maintains the ordered levels of structured classes and their
// prerequisite graph.
type LevelService struct {
	repo      levelRepository
	classes   classReader
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewLevelService constructs LevelService.
func NewLevelService(repo levelRepository, classes classReader, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *LevelService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LevelService{repo: repo, classes: classes, cache: cache, validator: registerValidations(validate), logger: logger}
}

// List returns the levels of a class ordered by order number with session
// and enrollment counts.
func (s *LevelService) List(ctx context.Context, classID string) ([]models.LevelDetail, error) {
	var cached []models.LevelDetail
	if hit, _ := s.cache.Get(ctx, classLevelsKey(classID), &cached); hit {
		return cached, nil
	}
	if _, err := s.leveledClass(ctx, classID); err != nil {
		return nil, err
	}
	levels, err := s.repo.ListDetailsByClass(ctx, classID)
	if err != nil {
		return nil, internalError(err, "failed to list levels")
	}
	_ = s.cache.Set(ctx, classLevelsKey(classID), levels, 0)
	return levels, nil
}

// Get returns one level of a class.
func (s *LevelService) Get(ctx context.Context, classID, levelID string) (*models.Level, error) {
	return s.levelOfClass(ctx, classID, levelID)
}

// NextOrder suggests the order number for a new level.
func (s *LevelService) NextOrder(ctx context.Context, classID string) (int, error) {
	graph, err := s.graph(ctx, classID)
	if err != nil {
		return 0, err
	}
	return graph.nextOrder(), nil
}

// Add appends a level to a leveled class.
func (s *LevelService) Add(ctx context.Context, classID string, req AddLevelRequest) (*models.Level, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid level payload")
	}
	graph, err := s.graph(ctx, classID)
	if err != nil {
		return nil, err
	}
	order := graph.nextOrder()
	if req.OrderNumber != nil {
		order = *req.OrderNumber
		if holder, taken := graph.orderHolder(order, ""); taken {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("order number %d already used by level %q", order, holder.Name))
		}
	}
	prerequisite := normalizeID(req.PrerequisiteLevelID)
	if err := checkPrerequisite(graph, "", prerequisite); err != nil {
		return nil, err
	}
	level := &models.Level{
		ClassID:             classID,
		Name:                strings.TrimSpace(req.Name),
		Description:         req.Description,
		OrderNumber:         order,
		PrerequisiteLevelID: prerequisite,
	}
	if err := s.repo.Create(ctx, level); err != nil {
		if errors.Is(err, repository.ErrLevelOrderTaken) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("order number %d already used", order))
		}
		return nil, internalError(err, "failed to create level")
	}
	s.cache.InvalidateClass(ctx, classID)
	return level, nil
}

// Update changes name, description or prerequisite of a level.
func (s *LevelService) Update(ctx context.Context, classID, levelID string, req UpdateLevelRequest) (*models.Level, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid level payload")
	}
	graph, err := s.graph(ctx, classID)
	if err != nil {
		return nil, err
	}
	current, ok := graph.levels[levelID]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "level not found")
	}
	level := current
	if req.Name != nil {
		level.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		level.Description = *req.Description
	}
	if req.PrerequisiteLevelID != nil {
		prerequisite := normalizeID(req.PrerequisiteLevelID)
		if err := checkPrerequisite(graph, levelID, prerequisite); err != nil {
			return nil, err
		}
		level.PrerequisiteLevelID = prerequisite
	}
	if err := s.repo.Update(ctx, &level); err != nil {
		return nil, internalError(err, "failed to update level")
	}
	s.cache.InvalidateClass(ctx, classID)
	return &level, nil
}

// Reorder moves a level to newOrder, swapping with the level that held it.
// The class's levels are returned in their new order.
func (s *LevelService) Reorder(ctx context.Context, classID, levelID string, req ReorderLevelRequest) ([]models.Level, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "order_number must be a positive integer")
	}
	graph, err := s.graph(ctx, classID)
	if err != nil {
		return nil, err
	}
	if !graph.has(levelID) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "level not found")
	}
	if err := s.repo.Reorder(ctx, classID, levelID, req.OrderNumber); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "level not found")
		}
		return nil, internalError(err, "failed to reorder level")
	}
	s.cache.InvalidateClass(ctx, classID)
	levels, err := s.repo.ListByClass(ctx, classID)
	if err != nil {
		return nil, internalError(err, "failed to list levels")
	}
	return newLevelGraph(levels).ordered(), nil
}

// Delete removes a level with its sessions and enrollments. Levels that
// required it lose their prerequisite.
func (s *LevelService) Delete(ctx context.Context, classID, levelID string) error {
	if _, err := s.levelOfClass(ctx, classID, levelID); err != nil {
		return err
	}
	detached, err := s.repo.Delete(ctx, levelID)
	if err != nil {
		return internalError(err, "failed to delete level")
	}
	s.cache.InvalidateClass(ctx, classID)
	s.logger.Info("level deleted", zap.String("class_id", classID), zap.String("level_id", levelID), zap.Int64("detached_dependents", detached))
	return nil
}

func (s *LevelService) leveledClass(ctx context.Context, classID string) (*models.Class, error) {
	class, err := loadClass(ctx, s.classes, classID)
	if err != nil {
		return nil, err
	}
	if !class.HasLevels {
		return nil, appErrors.Clone(appErrors.ErrValidation, "class does not use levels")
	}
	return class, nil
}

func (s *LevelService) graph(ctx context.Context, classID string) (*levelGraph, error) {
	if _, err := s.leveledClass(ctx, classID); err != nil {
		return nil, err
	}
	levels, err := s.repo.ListByClass(ctx, classID)
	if err != nil {
		return nil, internalError(err, "failed to list levels")
	}
	return newLevelGraph(levels), nil
}

func (s *LevelService) levelOfClass(ctx context.Context, classID, levelID string) (*models.Level, error) {
	level, err := loadLevel(ctx, s.repo, levelID)
	if err != nil {
		return nil, err
	}
	if level.ClassID != classID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "level not found")
	}
	return level, nil
}

// checkPrerequisite verifies the prerequisite belongs to the same class, is
// not the level itself and does not close a cycle.
func checkPrerequisite(graph *levelGraph, levelID string, prerequisite *string) error {
	if prerequisite == nil {
		return nil
	}
	id := *prerequisite
	if levelID != "" && id == levelID {
		return appErrors.Clone(appErrors.ErrReferential, "a level cannot be its own prerequisite")
	}
	if !graph.has(id) {
		return appErrors.Clone(appErrors.ErrReferential, "prerequisite level must belong to the same class")
	}
	if levelID != "" && graph.createsCycle(levelID, id) {
		return appErrors.Clone(appErrors.ErrReferential, "prerequisite would create a cycle")
	}
	return nil
}

func normalizeID(id *string) *string {
	if id == nil {
		return nil
	}
	return stringPtr(strings.TrimSpace(*id))
}
