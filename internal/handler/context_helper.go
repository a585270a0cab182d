package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/church-class-api/internal/middleware"
	"github.com/noah-isme/church-class-api/internal/models"
	appErrors "github.com/noah-isme/church-class-api/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	return middleware.CurrentUser(c)
}

func bindError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message)
}

func statusQuery(c *gin.Context) models.EnrollmentStatus {
	return models.EnrollmentStatus(strings.ToLower(strings.TrimSpace(c.Query("status"))))
}
