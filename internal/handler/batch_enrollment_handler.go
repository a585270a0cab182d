package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/church-class-api/internal/dto"
	"github.com/noah-isme/church-class-api/internal/models"
	"github.com/noah-isme/church-class-api/pkg/response"
)

type batchEnrollmentService interface {
	SearchEligibleMembers(ctx context.Context, actor *models.JWTClaims, classID string, req dto.SearchMembersRequest) ([]models.Member, error)
	BatchEnroll(ctx context.Context, actor *models.JWTClaims, classID string, req dto.BatchEnrollRequest) (*dto.BatchEnrollResult, error)
}

// BatchEnrollmentHandler exposes member search and bulk enrollment for a class.
type BatchEnrollmentHandler struct {
	service batchEnrollmentService
}

// NewBatchEnrollmentHandler constructs a batch enrollment handler.
func NewBatchEnrollmentHandler(svc batchEnrollmentService) *BatchEnrollmentHandler {
	return &BatchEnrollmentHandler{service: svc}
}

// SearchMembers godoc
// @Summary Search members eligible for enrollment
// @Tags Enrollments
// @Produce json
// @Param classId path string true "Class ID"
// @Param q query string false "Name or email fragment"
// @Param level_id query string false "Target level"
// @Param exclude_enrolled query bool false "Hide members already enrolled"
// @Param limit query int false "Maximum results"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/search-members [get]
func (h *BatchEnrollmentHandler) SearchMembers(c *gin.Context) {
	var req dto.SearchMembersRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, bindError(err, "invalid search parameters"))
		return
	}
	members, err := h.service.SearchEligibleMembers(c.Request.Context(), claimsFromContext(c), c.Param("classId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, members, nil)
}

// BatchEnroll godoc
// @Summary Enroll several members into a class or level
// @Description Members that cannot be enrolled are reported in skipped; the call still succeeds.
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param classId path string true "Class ID"
// @Param payload body dto.BatchEnrollRequest true "Batch payload"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/batch-enroll [post]
func (h *BatchEnrollmentHandler) BatchEnroll(c *gin.Context) {
	var req dto.BatchEnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid batch enrollment payload"))
		return
	}
	result, err := h.service.BatchEnroll(c.Request.Context(), claimsFromContext(c), c.Param("classId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
