package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/church-class-api/internal/dto"
	"github.com/noah-isme/church-class-api/internal/models"
	"github.com/noah-isme/church-class-api/internal/service"
	"github.com/noah-isme/church-class-api/pkg/response"
)

type attendanceService interface {
	EnsureSessionMeeting(ctx context.Context, sessionID string) (string, error)
	RecordAttendance(ctx context.Context, meetingID string, req dto.RecordAttendanceRequest) ([]models.AttendanceParticipantDetail, error)
	SessionSheet(ctx context.Context, sessionID string) (*dto.AttendanceSheet, error)
	RecordSessionAttendance(ctx context.Context, sessionID string, req dto.RecordAttendanceRequest) (*dto.AttendanceSheet, error)
}

type attendanceExporter interface {
	SessionAttendance(ctx context.Context, sessionID, format string) (*service.ExportFile, error)
}

// AttendanceHandler bridges class sessions to attendance meetings.
type AttendanceHandler struct {
	service  attendanceService
	exporter attendanceExporter
}

// NewAttendanceHandler constructs an attendance handler.
func NewAttendanceHandler(svc attendanceService, exporter attendanceExporter) *AttendanceHandler {
	return &AttendanceHandler{service: svc, exporter: exporter}
}

// EnsureMeeting godoc
// @Summary Create or return the attendance meeting of a session
// @Tags Attendance
// @Produce json
// @Param sessionId path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{sessionId}/meeting [post]
func (h *AttendanceHandler) EnsureMeeting(c *gin.Context) {
	sessionID := c.Param("sessionId")
	meetingID, err := h.service.EnsureSessionMeeting(c.Request.Context(), sessionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.EnsureMeetingResponse{SessionID: sessionID, MeetingID: meetingID}, nil)
}

// Sheet godoc
// @Summary Attendance sheet of a session with enrolled-member defaults
// @Tags Attendance
// @Produce json
// @Param sessionId path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{sessionId}/attendance [get]
func (h *AttendanceHandler) Sheet(c *gin.Context) {
	sheet, err := h.service.SessionSheet(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sheet, nil)
}

// RecordSession godoc
// @Summary Record attendance of a session, creating its meeting when missing
// @Tags Attendance
// @Accept json
// @Produce json
// @Param sessionId path string true "Session ID"
// @Param payload body dto.RecordAttendanceRequest true "Participants"
// @Success 200 {object} response.Envelope
// @Router /sessions/{sessionId}/attendance [put]
func (h *AttendanceHandler) RecordSession(c *gin.Context) {
	var req dto.RecordAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid attendance payload"))
		return
	}
	sheet, err := h.service.RecordSessionAttendance(c.Request.Context(), c.Param("sessionId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sheet, nil)
}

// RecordMeeting godoc
// @Summary Replace the participant list of a meeting
// @Tags Attendance
// @Accept json
// @Produce json
// @Param meetingId path string true "Meeting ID"
// @Param payload body dto.RecordAttendanceRequest true "Participants"
// @Success 200 {object} response.Envelope
// @Router /meetings/{meetingId}/participants [put]
func (h *AttendanceHandler) RecordMeeting(c *gin.Context) {
	var req dto.RecordAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid attendance payload"))
		return
	}
	participants, err := h.service.RecordAttendance(c.Request.Context(), c.Param("meetingId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, participants, nil)
}

// Export godoc
// @Summary Download the attendance sheet of a session
// @Tags Attendance
// @Produce text/csv
// @Produce application/pdf
// @Param sessionId path string true "Session ID"
// @Param format query string false "csv or pdf" Enums(csv, pdf)
// @Success 200 {file} file
// @Router /sessions/{sessionId}/attendance/export [get]
func (h *AttendanceHandler) Export(c *gin.Context) {
	file, err := h.exporter.SessionAttendance(c.Request.Context(), c.Param("sessionId"), c.DefaultQuery("format", service.ExportFormatCSV))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Body)
}
