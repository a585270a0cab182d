package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/church-class-api/internal/models"
	"github.com/noah-isme/church-class-api/internal/service"
	"github.com/noah-isme/church-class-api/pkg/response"
)

type enrollmentService interface {
	Enroll(ctx context.Context, req service.EnrollRequest, actor *models.JWTClaims) (*models.EnrollmentDetail, error)
	UpdateStatus(ctx context.Context, id string, req service.UpdateEnrollmentStatusRequest) (*models.EnrollmentDetail, error)
	Unenroll(ctx context.Context, id string) error
	ListByLevel(ctx context.Context, levelID string, status models.EnrollmentStatus) ([]models.EnrollmentDetail, error)
	ListByMember(ctx context.Context, memberID string, status models.EnrollmentStatus) ([]models.EnrollmentDetail, error)
	ListByClass(ctx context.Context, classID string, status models.EnrollmentStatus) ([]models.EnrollmentDetail, error)
}

// EnrollmentHandler manages the enrollment ledger endpoints.
type EnrollmentHandler struct {
	service enrollmentService
}

// NewEnrollmentHandler constructs an enrollment handler.
func NewEnrollmentHandler(svc enrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{service: svc}
}

// Enroll godoc
// @Summary Enroll a member into a level or flat class
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body service.EnrollRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	var req service.EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid enrollment payload"))
		return
	}
	enrollment, err := h.service.Enroll(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, enrollment)
}

// UpdateStatus godoc
// @Summary Change enrollment status
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body service.UpdateEnrollmentStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/status [patch]
func (h *EnrollmentHandler) UpdateStatus(c *gin.Context) {
	var req service.UpdateEnrollmentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid status payload"))
		return
	}
	enrollment, err := h.service.UpdateStatus(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// Unenroll godoc
// @Summary Remove an enrollment
// @Tags Enrollments
// @Param id path string true "Enrollment ID"
// @Success 204
// @Router /enrollments/{id} [delete]
func (h *EnrollmentHandler) Unenroll(c *gin.Context) {
	if err := h.service.Unenroll(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListByLevel godoc
// @Summary List enrollments of a level
// @Tags Enrollments
// @Produce json
// @Param levelId path string true "Level ID"
// @Param status query string false "Filter by status"
// @Success 200 {object} response.Envelope
// @Router /levels/{levelId}/enrollments [get]
func (h *EnrollmentHandler) ListByLevel(c *gin.Context) {
	items, err := h.service.ListByLevel(c.Request.Context(), c.Param("levelId"), statusQuery(c))
	h.respondList(c, items, err)
}

// ListByClass godoc
// @Summary List enrollments of a flat class
// @Tags Enrollments
// @Produce json
// @Param classId path string true "Class ID"
// @Param status query string false "Filter by status"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/enrollments [get]
func (h *EnrollmentHandler) ListByClass(c *gin.Context) {
	items, err := h.service.ListByClass(c.Request.Context(), c.Param("classId"), statusQuery(c))
	h.respondList(c, items, err)
}

// ListByMember godoc
// @Summary List enrollments of a member
// @Tags Enrollments
// @Produce json
// @Param memberId path string true "Member ID"
// @Param status query string false "Filter by status"
// @Success 200 {object} response.Envelope
// @Router /members/{memberId}/enrollments [get]
func (h *EnrollmentHandler) ListByMember(c *gin.Context) {
	items, err := h.service.ListByMember(c.Request.Context(), c.Param("memberId"), statusQuery(c))
	h.respondList(c, items, err)
}

func (h *EnrollmentHandler) respondList(c *gin.Context, items []models.EnrollmentDetail, err error) {
	if err != nil {
		response.Error(c, err)
		return
	}
	if items == nil {
		items = []models.EnrollmentDetail{}
	}
	response.JSON(c, http.StatusOK, items, nil)
}
