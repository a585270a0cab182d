package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/church-class-api/internal/models"
	appErrors "github.com/noah-isme/church-class-api/pkg/errors"
)

type sessionRepository interface {
	ListByLevel(ctx context.Context, levelID string) ([]models.Session, error)
	ListByClass(ctx context.Context, classID string) ([]models.Session, error)
	FindByID(ctx context.Context, id string) (*models.Session, error)
	MaxOrder(ctx context.Context, kind models.SessionOwnerKind, ownerID string) (int, error)
	Create(ctx context.Context, session *models.Session) error
	Update(ctx context.Context, session *models.Session) error
	Delete(ctx context.Context, id string) error
}

type meetingEnsurer interface {
	EnsureMeeting(ctx context.Context, session *models.Session) (string, error)
}

// AddSessionRequest is the payload for adding a session to a level or a flat class.
type AddSessionRequest struct {
	OwnerID          string  `json:"-" validate:"required"`
	OwnerKind        string  `json:"-" validate:"required,owner_kind"`
	Title            string  `json:"title" validate:"required,max=200"`
	Description      string  `json:"description"`
	Date             string  `json:"session_date" validate:"required,date_only"`
	StartTime        string  `json:"start_time" validate:"required,clock_time"`
	EndTime          string  `json:"end_time" validate:"required,clock_time"`
	Location         string  `json:"location"`
	OrderNumber      *int    `json:"order_number" validate:"omitempty,gt=0"`
	InstructorID     *string `json:"instructor_id"`
	CreateAttendance bool    `json:"create_attendance"`
}

// UpdateSessionRequest changes the schedule of a session.
type UpdateSessionRequest struct {
	Title        *string `json:"title" validate:"omitempty,min=1,max=200"`
	Description  *string `json:"description"`
	Date         *string `json:"session_date" validate:"omitempty,date_only"`
	StartTime    *string `json:"start_time" validate:"omitempty,clock_time"`
	EndTime      *string `json:"end_time" validate:"omitempty,clock_time"`
	Location     *string `json:"location"`
	OrderNumber  *int    `json:"order_number" validate:"omitempty,gt=0"`
	InstructorID *string `json:"instructor_id"`
}

// SessionService registers sessions under levels or flat classes.
type SessionService struct {
	repo       sessionRepository
	classes    classReader
	levels     levelReader
	members    memberReader
	attendance meetingEnsurer
	cache      *CacheService
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewSessionService constructs SessionService.
func NewSessionService(repo sessionRepository, classes classReader, levels levelReader, members memberReader, attendance meetingEnsurer, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{
		repo:       repo,
		classes:    classes,
		levels:     levels,
		members:    members,
		attendance: attendance,
		cache:      cache,
		metrics:    metrics,
		validator:  registerValidations(validate),
		logger:     logger,
	}
}

// List returns the sessions of a level or flat class in presentation order.
func (s *SessionService) List(ctx context.Context, kind models.SessionOwnerKind, ownerID string) ([]models.Session, error) {
	if _, err := s.resolveOwner(ctx, kind, ownerID); err != nil {
		return nil, err
	}
	var (
		sessions []models.Session
		err      error
	)
	if kind == models.SessionOwnerLevel {
		sessions, err = s.repo.ListByLevel(ctx, ownerID)
	} else {
		sessions, err = s.repo.ListByClass(ctx, ownerID)
	}
	if err != nil {
		return nil, internalError(err, "failed to list sessions")
	}
	return sessions, nil
}

// Get returns a session by id.
func (s *SessionService) Get(ctx context.Context, id string) (*models.Session, error) {
	session, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, internalError(err, "failed to load session")
	}
	return session, nil
}

// NextOrder suggests the order number for a new session under the owner.
func (s *SessionService) NextOrder(ctx context.Context, kind models.SessionOwnerKind, ownerID string) (int, error) {
	if _, err := s.resolveOwner(ctx, kind, ownerID); err != nil {
		return 0, err
	}
	max, err := s.repo.MaxOrder(ctx, kind, ownerID)
	if err != nil {
		return 0, internalError(err, "failed to compute next session order")
	}
	return max + 1, nil
}

// Add creates a session. With CreateAttendance the session and its meeting
// are one unit: a failed meeting removes the session again, and if that
// removal fails too the caller gets a partial-failure error naming the
// session that survived.
func (s *SessionService) Add(ctx context.Context, req AddSessionRequest) (*models.Session, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid session payload")
	}
	kind := models.SessionOwnerKind(req.OwnerKind)
	classID, err := s.resolveOwner(ctx, kind, req.OwnerID)
	if err != nil {
		return nil, err
	}
	date, start, end, err := parseSchedule(req.Date, req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}
	instructor, err := s.checkInstructor(ctx, req.InstructorID)
	if err != nil {
		return nil, err
	}

	order := 0
	if req.OrderNumber != nil {
		order = *req.OrderNumber
	} else {
		max, err := s.repo.MaxOrder(ctx, kind, req.OwnerID)
		if err != nil {
			return nil, internalError(err, "failed to compute next session order")
		}
		order = max + 1
	}

	session := &models.Session{
		ClassID:      classID,
		Title:        strings.TrimSpace(req.Title),
		Description:  req.Description,
		SessionDate:  date,
		StartTime:    start,
		EndTime:      end,
		Location:     req.Location,
		InstructorID: instructor,
		OrderNumber:  order,
	}
	if kind == models.SessionOwnerLevel {
		session.LevelID = &req.OwnerID
	}
	if err := s.repo.Create(ctx, session); err != nil {
		return nil, internalError(err, "failed to create session")
	}
	s.cache.InvalidateClass(ctx, classID)

	if !req.CreateAttendance {
		return session, nil
	}
	if _, err := s.attendance.EnsureMeeting(ctx, session); err != nil {
		return nil, s.rollbackSession(ctx, session, err)
	}
	return session, nil
}

// Update changes a session's schedule fields. The owner cannot change.
func (s *SessionService) Update(ctx context.Context, id string, req UpdateSessionRequest) (*models.Session, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid session payload")
	}
	session, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	date := session.SessionDate.Format(dateLayout)
	start, end := session.StartTime, session.EndTime
	if req.Date != nil {
		date = *req.Date
	}
	if req.StartTime != nil {
		start = *req.StartTime
	}
	if req.EndTime != nil {
		end = *req.EndTime
	}
	parsedDate, parsedStart, parsedEnd, err := parseSchedule(date, start, end)
	if err != nil {
		return nil, err
	}
	session.SessionDate, session.StartTime, session.EndTime = parsedDate, parsedStart, parsedEnd
	if req.Title != nil {
		session.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		session.Description = *req.Description
	}
	if req.Location != nil {
		session.Location = *req.Location
	}
	if req.OrderNumber != nil {
		session.OrderNumber = *req.OrderNumber
	}
	if req.InstructorID != nil {
		instructor, err := s.checkInstructor(ctx, req.InstructorID)
		if err != nil {
			return nil, err
		}
		session.InstructorID = instructor
	}
	if err := s.repo.Update(ctx, session); err != nil {
		return nil, internalError(err, "failed to update session")
	}
	return session, nil
}

// Delete removes a session together with its linked attendance meeting.
func (s *SessionService) Delete(ctx context.Context, id string) error {
	session, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return internalError(err, "failed to delete session")
	}
	s.cache.InvalidateClass(ctx, session.ClassID)
	return nil
}

func (s *SessionService) rollbackSession(ctx context.Context, session *models.Session, cause error) error {
	delErr := s.repo.Delete(ctx, session.ID)
	s.metrics.RecordCompensation("session_create", delErr == nil)
	if delErr != nil {
		s.logger.Error("session left without meeting", zap.String("session_id", session.ID), zap.Error(delErr), zap.NamedError("cause", cause))
		return appErrors.Partial(fmt.Sprintf("session %s creation", session.ID), "attendance meeting creation", cause)
	}
	s.cache.InvalidateClass(ctx, session.ClassID)
	s.logger.Warn("session rolled back", zap.String("session_id", session.ID), zap.Error(cause))
	var appErr *appErrors.Error
	if errors.As(cause, &appErr) && appErr.Code == appErrors.ErrPartialFailure.Code {
		return cause
	}
	return appErrors.Wrap(cause, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "attendance meeting creation failed; session was not created")
}

// resolveOwner checks the owner exists and fits the class structure, and
// returns the owning class id.
func (s *SessionService) resolveOwner(ctx context.Context, kind models.SessionOwnerKind, ownerID string) (string, error) {
	switch kind {
	case models.SessionOwnerLevel:
		level, err := loadLevel(ctx, s.levels, ownerID)
		if err != nil {
			return "", err
		}
		return level.ClassID, nil
	case models.SessionOwnerClass:
		class, err := loadClass(ctx, s.classes, ownerID)
		if err != nil {
			return "", err
		}
		if class.HasLevels {
			return "", appErrors.Clone(appErrors.ErrValidation, "class uses levels; add sessions to a level")
		}
		return class.ID, nil
	default:
		return "", appErrors.Clone(appErrors.ErrValidation, "owner kind must be level or class")
	}
}

func (s *SessionService) checkInstructor(ctx context.Context, id *string) (*string, error) {
	instructor := normalizeID(id)
	if instructor == nil || s.members == nil {
		return instructor, nil
	}
	if _, err := s.members.FindByID(ctx, *instructor); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "instructor not found")
		}
		return nil, internalError(err, "failed to load instructor")
	}
	return instructor, nil
}

func parseSchedule(date, start, end string) (parsedDate time.Time, startTime, endTime string, err error) {
	parsedDate, err = parseDate(date)
	if err != nil {
		return parsedDate, "", "", appErrors.Clone(appErrors.ErrValidation, "session_date must be YYYY-MM-DD")
	}
	if startTime, err = normalizeClock(start); err != nil {
		return parsedDate, "", "", appErrors.Clone(appErrors.ErrValidation, "start_time must be HH:MM")
	}
	if endTime, err = normalizeClock(end); err != nil {
		return parsedDate, "", "", appErrors.Clone(appErrors.ErrValidation, "end_time must be HH:MM")
	}
	if endTime <= startTime {
		return parsedDate, "", "", appErrors.Clone(appErrors.ErrValidation, "end_time must be after start_time")
	}
	return parsedDate, startTime, endTime, nil
}
