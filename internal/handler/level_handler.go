package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/church-class-api/internal/models"
	"github.com/noah-isme/church-class-api/internal/service"
	"github.com/noah-isme/church-class-api/pkg/response"
)

type levelService interface {
	List(ctx context.Context, classID string) ([]models.LevelDetail, error)
	NextOrder(ctx context.Context, classID string) (int, error)
	Add(ctx context.Context, classID string, req service.AddLevelRequest) (*models.Level, error)
	Update(ctx context.Context, classID, levelID string, req service.UpdateLevelRequest) (*models.Level, error)
	Reorder(ctx context.Context, classID, levelID string, req service.ReorderLevelRequest) ([]models.Level, error)
	Delete(ctx context.Context, classID, levelID string) error
}

// LevelHandler exposes the ordered levels of structured classes.
type LevelHandler struct {
	service levelService
}

// NewLevelHandler constructs a level handler.
func NewLevelHandler(svc levelService) *LevelHandler {
	return &LevelHandler{service: svc}
}

// List godoc
// @Summary List class levels in order
// @Tags Levels
// @Produce json
// @Param classId path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/levels [get]
func (h *LevelHandler) List(c *gin.Context) {
	levels, err := h.service.List(c.Request.Context(), c.Param("classId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, levels, nil)
}

// NextOrder godoc
// @Summary Suggest the next level order number
// @Tags Levels
// @Produce json
// @Param classId path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/levels/next-order [get]
func (h *LevelHandler) NextOrder(c *gin.Context) {
	next, err := h.service.NextOrder(c.Request.Context(), c.Param("classId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"order_number": next}, nil)
}

// Add godoc
// @Summary Add a level to a structured class
// @Tags Levels
// @Accept json
// @Produce json
// @Param classId path string true "Class ID"
// @Param payload body service.AddLevelRequest true "Level payload"
// @Success 201 {object} response.Envelope
// @Router /classes/{classId}/levels [post]
func (h *LevelHandler) Add(c *gin.Context) {
	var req service.AddLevelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid level payload"))
		return
	}
	level, err := h.service.Add(c.Request.Context(), c.Param("classId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, level)
}

// Update godoc
// @Summary Update level name, description or prerequisite
// @Tags Levels
// @Accept json
// @Produce json
// @Param classId path string true "Class ID"
// @Param levelId path string true "Level ID"
// @Param payload body service.UpdateLevelRequest true "Level payload"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/levels/{levelId} [put]
func (h *LevelHandler) Update(c *gin.Context) {
	var req service.UpdateLevelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid level payload"))
		return
	}
	level, err := h.service.Update(c.Request.Context(), c.Param("classId"), c.Param("levelId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, level, nil)
}

// Reorder godoc
// @Summary Move a level to a new order number
// @Tags Levels
// @Accept json
// @Produce json
// @Param classId path string true "Class ID"
// @Param levelId path string true "Level ID"
// @Param payload body service.ReorderLevelRequest true "Order payload"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/levels/{levelId}/order [put]
func (h *LevelHandler) Reorder(c *gin.Context) {
	var req service.ReorderLevelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid order payload"))
		return
	}
	levels, err := h.service.Reorder(c.Request.Context(), c.Param("classId"), c.Param("levelId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, levels, nil)
}

// Delete godoc
// @Summary Delete a level
// @Tags Levels
// @Param classId path string true "Class ID"
// @Param levelId path string true "Level ID"
// @Success 204
// @Router /classes/{classId}/levels/{levelId} [delete]
func (h *LevelHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("classId"), c.Param("levelId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
