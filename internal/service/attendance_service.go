package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/church-class-api/internal/dto"
	"github.com/noah-isme/church-class-api/internal/models"
	"github.com/noah-isme/church-class-api/internal/repository"
	appErrors "github.com/noah-isme/church-class-api/pkg/errors"
)

type meetingRepository interface {
	CreateMeeting(ctx context.Context, meeting *models.AttendanceMeeting) error
	FindMeetingByID(ctx context.Context, id string) (*models.AttendanceMeeting, error)
	DeleteMeeting(ctx context.Context, id string) error
	ListParticipants(ctx context.Context, meetingID string) ([]models.AttendanceParticipantDetail, error)
	ReplaceParticipants(ctx context.Context, meetingID string, participants []models.AttendanceParticipant) error
}

type sessionLinker interface {
	FindByID(ctx context.Context, id string) (*models.Session, error)
	LinkMeeting(ctx context.Context, sessionID, meetingID string) error
}

type enrollmentLister interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, error)
}

// AttendanceService links sessions to attendance meetings and maintains
// their participant lists.
type AttendanceService struct {
	meetings    meetingRepository
	sessions    sessionLinker
	enrollments enrollmentLister
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewAttendanceService constructs AttendanceService.
func NewAttendanceService(meetings meetingRepository, sessions sessionLinker, enrollments enrollmentLister, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{
		meetings:    meetings,
		sessions:    sessions,
		enrollments: enrollments,
		metrics:     metrics,
		validator:   registerValidations(validate),
		logger:      logger,
	}
}

// EnsureMeeting returns the meeting linked to the session, creating and
// linking one from the session's title, date and location when none exists.
// Calling it repeatedly yields the same meeting id.
func (s *AttendanceService) EnsureMeeting(ctx context.Context, session *models.Session) (string, error) {
	if session == nil {
		return "", appErrors.Clone(appErrors.ErrValidation, "session is required")
	}
	if session.AttendanceMeetingID != nil && *session.AttendanceMeetingID != "" {
		return *session.AttendanceMeetingID, nil
	}

	meeting := &models.AttendanceMeeting{
		Title:       session.Title,
		MeetingDate: session.SessionDate,
		StartTime:   stringPtr(session.StartTime),
		EndTime:     stringPtr(session.EndTime),
		Location:    session.Location,
	}
	if err := s.meetings.CreateMeeting(ctx, meeting); err != nil {
		return "", internalError(err, "failed to create attendance meeting")
	}

	err := s.sessions.LinkMeeting(ctx, session.ID, meeting.ID)
	if err == nil {
		session.AttendanceMeetingID = &meeting.ID
		s.logger.Info("attendance meeting linked", zap.String("session_id", session.ID), zap.String("meeting_id", meeting.ID))
		return meeting.ID, nil
	}

	if errors.Is(err, repository.ErrMeetingAlreadyLinked) {
		// A concurrent caller linked first; keep theirs.
		if delErr := s.meetings.DeleteMeeting(ctx, meeting.ID); delErr != nil {
			s.logger.Warn("failed to discard surplus meeting", zap.String("meeting_id", meeting.ID), zap.Error(delErr))
		}
		current, findErr := s.sessions.FindByID(ctx, session.ID)
		if findErr != nil {
			if errors.Is(findErr, sql.ErrNoRows) {
				return "", appErrors.Clone(appErrors.ErrNotFound, "session not found")
			}
			return "", internalError(findErr, "failed to reload session")
		}
		if current.AttendanceMeetingID == nil {
			return "", appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		session.AttendanceMeetingID = current.AttendanceMeetingID
		return *current.AttendanceMeetingID, nil
	}

	delErr := s.meetings.DeleteMeeting(ctx, meeting.ID)
	s.metrics.RecordCompensation("meeting_link", delErr == nil)
	if delErr != nil {
		s.logger.Error("meeting left unlinked", zap.String("session_id", session.ID), zap.String("meeting_id", meeting.ID), zap.Error(delErr))
		return "", appErrors.Partial(fmt.Sprintf("attendance meeting %s creation", meeting.ID), fmt.Sprintf("linking it to session %s", session.ID), err)
	}
	return "", internalError(err, "failed to link attendance meeting to session")
}

// EnsureSessionMeeting loads the session and ensures it has a meeting.
func (s *AttendanceService) EnsureSessionMeeting(ctx context.Context, sessionID string) (string, error) {
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return "", err
	}
	return s.EnsureMeeting(ctx, session)
}

// RecordAttendance replaces every participant of the meeting with the
// supplied entries.
func (s *AttendanceService) RecordAttendance(ctx context.Context, meetingID string, req dto.RecordAttendanceRequest) ([]models.AttendanceParticipantDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid attendance payload")
	}
	seen := make(map[string]struct{}, len(req.Participants))
	participants := make([]models.AttendanceParticipant, 0, len(req.Participants))
	for _, entry := range req.Participants {
		if _, dup := seen[entry.MemberID]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("member %s listed more than once", entry.MemberID))
		}
		seen[entry.MemberID] = struct{}{}
		participants = append(participants, models.AttendanceParticipant{
			MeetingID: meetingID,
			MemberID:  entry.MemberID,
			Status:    models.AttendanceStatus(entry.Status),
			Notes:     entry.Notes,
		})
	}
	if _, err := s.meetings.FindMeetingByID(ctx, meetingID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "attendance meeting not found")
		}
		return nil, internalError(err, "failed to load attendance meeting")
	}
	if err := s.meetings.ReplaceParticipants(ctx, meetingID, participants); err != nil {
		var unknown *repository.UnknownMemberError
		if errors.As(err, &unknown) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("member %s not found", unknown.MemberID))
		}
		return nil, internalError(err, "failed to record attendance")
	}
	counts := map[models.AttendanceStatus]int{}
	for _, p := range participants {
		counts[p.Status]++
	}
	for status, n := range counts {
		s.metrics.RecordAttendance(string(status), n)
	}
	stored, err := s.meetings.ListParticipants(ctx, meetingID)
	if err != nil {
		return nil, internalError(err, "failed to load participants")
	}
	return stored, nil
}

// SessionSheet builds the attendance form of a session. Without prior
// attendance every enrolled member defaults to present; once attendance was
// recorded, stored statuses are used and enrolled members without a record
// default to absent.
func (s *AttendanceService) SessionSheet(ctx context.Context, sessionID string) (*dto.AttendanceSheet, error) {
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	enrolled, err := s.enrolledMembers(ctx, session)
	if err != nil {
		return nil, err
	}
	var stored []models.AttendanceParticipantDetail
	if session.AttendanceMeetingID != nil {
		stored, err = s.meetings.ListParticipants(ctx, *session.AttendanceMeetingID)
		if err != nil {
			return nil, internalError(err, "failed to load participants")
		}
	}
	sheet := &dto.AttendanceSheet{
		SessionID:    session.ID,
		SessionTitle: session.Title,
		SessionDate:  session.SessionDate,
		MeetingID:    session.AttendanceMeetingID,
		Recorded:     len(stored) > 0,
	}
	sheet.Rows = buildSheetRows(enrolled, stored)
	return sheet, nil
}

// RecordSessionAttendance ensures the session has a meeting, replaces its
// participants and returns the refreshed sheet.
func (s *AttendanceService) RecordSessionAttendance(ctx context.Context, sessionID string, req dto.RecordAttendanceRequest) (*dto.AttendanceSheet, error) {
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	meetingID, err := s.EnsureMeeting(ctx, session)
	if err != nil {
		return nil, err
	}
	if _, err := s.RecordAttendance(ctx, meetingID, req); err != nil {
		return nil, err
	}
	return s.SessionSheet(ctx, sessionID)
}

func (s *AttendanceService) loadSession(ctx context.Context, id string) (*models.Session, error) {
	session, err := s.sessions.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, internalError(err, "failed to load session")
	}
	return session, nil
}

func (s *AttendanceService) enrolledMembers(ctx context.Context, session *models.Session) ([]models.EnrollmentDetail, error) {
	filter := models.EnrollmentFilter{Status: models.EnrollmentStatusEnrolled}
	if session.OwnerKind() == models.SessionOwnerLevel {
		filter.LevelID = *session.LevelID
	} else {
		filter.ClassID = session.ClassID
		filter.FlatOnly = true
	}
	enrollments, err := s.enrollments.List(ctx, filter)
	if err != nil {
		return nil, internalError(err, "failed to list enrolled members")
	}
	return enrollments, nil
}

func buildSheetRows(enrolled []models.EnrollmentDetail, stored []models.AttendanceParticipantDetail) []dto.AttendanceSheetRow {
	byMember := make(map[string]models.AttendanceParticipantDetail, len(stored))
	for _, p := range stored {
		byMember[p.MemberID] = p
	}
	fallback := models.AttendanceStatusPresent
	if len(stored) > 0 {
		fallback = models.AttendanceStatusAbsent
	}

	rows := make([]dto.AttendanceSheetRow, 0, len(enrolled)+len(stored))
	listed := make(map[string]struct{}, len(enrolled))
	for _, e := range enrolled {
		if _, ok := listed[e.MemberID]; ok {
			continue
		}
		listed[e.MemberID] = struct{}{}
		row := dto.AttendanceSheetRow{MemberID: e.MemberID, MemberName: e.MemberName, Status: string(fallback), Enrolled: true}
		if p, ok := byMember[e.MemberID]; ok {
			row.Status = string(p.Status)
			row.Notes = p.Notes
		}
		rows = append(rows, row)
	}
	for _, p := range stored {
		if _, ok := listed[p.MemberID]; ok {
			continue
		}
		rows = append(rows, dto.AttendanceSheetRow{MemberID: p.MemberID, MemberName: p.MemberName, Status: string(p.Status), Notes: p.Notes})
	}
	return rows
}
