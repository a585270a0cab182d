package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/church-class-api/internal/models"
	"github.com/noah-isme/church-class-api/internal/service"
	"github.com/noah-isme/church-class-api/pkg/response"
)

type sessionService interface {
	List(ctx context.Context, kind models.SessionOwnerKind, ownerID string) ([]models.Session, error)
	Get(ctx context.Context, id string) (*models.Session, error)
	NextOrder(ctx context.Context, kind models.SessionOwnerKind, ownerID string) (int, error)
	Add(ctx context.Context, req service.AddSessionRequest) (*models.Session, error)
	Update(ctx context.Context, id string, req service.UpdateSessionRequest) (*models.Session, error)
	Delete(ctx context.Context, id string) error
}

// SessionHandler exposes sessions of levels and flat classes.
type SessionHandler struct {
	service sessionService
}

// NewSessionHandler constructs a session handler.
func NewSessionHandler(svc sessionService) *SessionHandler {
	return &SessionHandler{service: svc}
}

// ListForClass godoc
// @Summary List sessions of a flat class
// @Tags Sessions
// @Produce json
// @Param classId path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/sessions [get]
func (h *SessionHandler) ListForClass(c *gin.Context) {
	h.list(c, models.SessionOwnerClass, c.Param("classId"))
}

// ListForLevel godoc
// @Summary List sessions of a level
// @Tags Sessions
// @Produce json
// @Param levelId path string true "Level ID"
// @Success 200 {object} response.Envelope
// @Router /levels/{levelId}/sessions [get]
func (h *SessionHandler) ListForLevel(c *gin.Context) {
	h.list(c, models.SessionOwnerLevel, c.Param("levelId"))
}

// NextOrderForClass godoc
// @Summary Suggest the next session order number of a flat class
// @Tags Sessions
// @Produce json
// @Param classId path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/sessions/next-order [get]
func (h *SessionHandler) NextOrderForClass(c *gin.Context) {
	h.nextOrder(c, models.SessionOwnerClass, c.Param("classId"))
}

// NextOrderForLevel godoc
// @Summary Suggest the next session order number of a level
// @Tags Sessions
// @Produce json
// @Param levelId path string true "Level ID"
// @Success 200 {object} response.Envelope
// @Router /levels/{levelId}/sessions/next-order [get]
func (h *SessionHandler) NextOrderForLevel(c *gin.Context) {
	h.nextOrder(c, models.SessionOwnerLevel, c.Param("levelId"))
}

// AddToClass godoc
// @Summary Add a session to a flat class
// @Tags Sessions
// @Accept json
// @Produce json
// @Param classId path string true "Class ID"
// @Param payload body service.AddSessionRequest true "Session payload"
// @Success 201 {object} response.Envelope
// @Router /classes/{classId}/sessions [post]
func (h *SessionHandler) AddToClass(c *gin.Context) {
	h.add(c, models.SessionOwnerClass, c.Param("classId"))
}

// AddToLevel godoc
// @Summary Add a session to a level
// @Tags Sessions
// @Accept json
// @Produce json
// @Param levelId path string true "Level ID"
// @Param payload body service.AddSessionRequest true "Session payload"
// @Success 201 {object} response.Envelope
// @Router /levels/{levelId}/sessions [post]
func (h *SessionHandler) AddToLevel(c *gin.Context) {
	h.add(c, models.SessionOwnerLevel, c.Param("levelId"))
}

// Get godoc
// @Summary Get session
// @Tags Sessions
// @Produce json
// @Param sessionId path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{sessionId} [get]
func (h *SessionHandler) Get(c *gin.Context) {
	session, err := h.service.Get(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Update godoc
// @Summary Update session schedule
// @Tags Sessions
// @Accept json
// @Produce json
// @Param sessionId path string true "Session ID"
// @Param payload body service.UpdateSessionRequest true "Session payload"
// @Success 200 {object} response.Envelope
// @Router /sessions/{sessionId} [put]
func (h *SessionHandler) Update(c *gin.Context) {
	var req service.UpdateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid session payload"))
		return
	}
	session, err := h.service.Update(c.Request.Context(), c.Param("sessionId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Delete godoc
// @Summary Delete session and its attendance meeting
// @Tags Sessions
// @Param sessionId path string true "Session ID"
// @Success 204
// @Router /sessions/{sessionId} [delete]
func (h *SessionHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("sessionId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func (h *SessionHandler) list(c *gin.Context, kind models.SessionOwnerKind, ownerID string) {
	sessions, err := h.service.List(c.Request.Context(), kind, ownerID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, nil)
}

func (h *SessionHandler) nextOrder(c *gin.Context, kind models.SessionOwnerKind, ownerID string) {
	next, err := h.service.NextOrder(c.Request.Context(), kind, ownerID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"order_number": next}, nil)
}

func (h *SessionHandler) add(c *gin.Context, kind models.SessionOwnerKind, ownerID string) {
	var req service.AddSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid session payload"))
		return
	}
	req.OwnerKind = string(kind)
	req.OwnerID = ownerID
	session, err := h.service.Add(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, session)
}
