package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/church-class-api/internal/dto"
	"github.com/noah-isme/church-class-api/pkg/export"
	appErrors "github.com/noah-isme/church-class-api/pkg/errors"
)

// Supported export formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

type attendanceSheetSource interface {
	SessionSheet(ctx context.Context, sessionID string) (*dto.AttendanceSheet, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportFile is a rendered document ready to be sent as an attachment.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ExportService renders session attendance sheets as CSV or PDF.
type ExportService struct {
	sheets attendanceSheetSource
	csv    csvRenderer
	pdf    pdfRenderer
	logger *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(sheets attendanceSheetSource, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{sheets: sheets, csv: csv, pdf: pdf, logger: logger}
}

// SessionAttendance renders the attendance sheet of a session.
func (s *ExportService) SessionAttendance(ctx context.Context, sessionID, format string) (*ExportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ExportFormatCSV
	}
	if format != ExportFormatCSV && format != ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	sheet, err := s.sheets.SessionSheet(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	dataset, err := attendanceDataset(sheet)
	if err != nil {
		return nil, internalError(err, "failed to build attendance dataset")
	}

	base := fmt.Sprintf("attendance-%s-%s", sheet.SessionDate.Format(dateLayout), sheet.SessionID)
	var file *ExportFile
	switch format {
	case ExportFormatPDF:
		body, err := s.pdf.Render(dataset, sheet.SessionTitle)
		if err != nil {
			return nil, internalError(err, "failed to render pdf")
		}
		file = &ExportFile{Filename: base + ".pdf", ContentType: "application/pdf", Body: body}
	default:
		body, err := s.csv.Render(dataset)
		if err != nil {
			return nil, internalError(err, "failed to render csv")
		}
		file = &ExportFile{Filename: base + ".csv", ContentType: "text/csv", Body: body}
	}
	s.logger.Debug("attendance exported", zap.String("session_id", sessionID), zap.String("format", format), zap.Int("rows", len(dataset.Rows)))
	return file, nil
}

func attendanceDataset(sheet *dto.AttendanceSheet) (export.Dataset, error) {
	dataset := export.Dataset{
		Meta: []string{
			fmt.Sprintf("Session: %s", sheet.SessionTitle),
			fmt.Sprintf("Date: %s", sheet.SessionDate.Format(dateLayout)),
		},
		Headers: []string{"Member ID", "Member", "Status", "Enrolled", "Notes"},
	}
	if !sheet.Recorded {
		dataset.Meta = append(dataset.Meta, "Attendance not recorded yet; enrolled members shown as present")
	}
	for _, row := range sheet.Rows {
		enrolled := "yes"
		if !row.Enrolled {
			enrolled = "no"
		}
		if err := dataset.AddRow(row.MemberID, row.MemberName, row.Status, enrolled, derefString(row.Notes)); err != nil {
			return dataset, err
		}
	}
	return dataset, nil
}
