package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/church-class-api/internal/models"
	appErrors "github.com/noah-isme/church-class-api/pkg/errors"
)

const (
	dateLayout  = "2006-01-02"
	clockLayout = "15:04"
)

type classReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

type levelReader interface {
	FindByID(ctx context.Context, id string) (*models.Level, error)
}

type memberReader interface {
	FindByID(ctx context.Context, id string) (*models.Member, error)
}

// registerValidations installs the custom tags used by request structs. It is
// safe to call on an already configured validator.
func registerValidations(v *validator.Validate) *validator.Validate {
	if v == nil {
		v = validator.New()
	}
	v.RegisterValidation("class_category", func(fl validator.FieldLevel) bool {
		return models.ClassCategory(fl.Field().String()).Valid()
	})
	v.RegisterValidation("class_status", func(fl validator.FieldLevel) bool {
		return models.ClassStatus(fl.Field().String()).Valid()
	})
	v.RegisterValidation("enrollment_status", func(fl validator.FieldLevel) bool {
		return models.EnrollmentStatus(fl.Field().String()).Valid()
	})
	v.RegisterValidation("attendance_status", func(fl validator.FieldLevel) bool {
		return models.AttendanceStatus(fl.Field().String()).Valid()
	})
	v.RegisterValidation("owner_kind", func(fl validator.FieldLevel) bool {
		return models.SessionOwnerKind(fl.Field().String()).Valid()
	})
	v.RegisterValidation("date_only", func(fl validator.FieldLevel) bool {
		_, err := time.Parse(dateLayout, fl.Field().String())
		return err == nil
	})
	v.RegisterValidation("clock_time", func(fl validator.FieldLevel) bool {
		_, err := normalizeClock(fl.Field().String())
		return err == nil
	})
	return v
}

// normalizeClock accepts HH:MM or HH:MM:SS and returns HH:MM.
func normalizeClock(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{clockLayout, "15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format(clockLayout), nil
		}
	}
	return "", fmt.Errorf("invalid time %q", raw)
}

func parseDate(raw string) (time.Time, error) {
	return time.Parse(dateLayout, strings.TrimSpace(raw))
}

func validationError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}

func internalError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

// loadClass maps a missing row to NotFound.
func loadClass(ctx context.Context, classes classReader, id string) (*models.Class, error) {
	class, err := classes.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, internalError(err, "failed to load class")
	}
	return class, nil
}

// loadLevel maps a missing row to NotFound.
func loadLevel(ctx context.Context, levels levelReader, id string) (*models.Level, error) {
	level, err := levels.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "level not found")
		}
		return nil, internalError(err, "failed to load level")
	}
	return level, nil
}

func stringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
