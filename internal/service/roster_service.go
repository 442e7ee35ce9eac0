package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/lms-admin-api/internal/models"
	appErrors "github.com/noah-isme/lms-admin-api/pkg/errors"
	"github.com/noah-isme/lms-admin-api/pkg/export"
)

// RosterFormat enumerates roster download formats.
type RosterFormat string

const (
	RosterFormatCSV RosterFormat = "csv"
	RosterFormatPDF RosterFormat = "pdf"
)

type rosterLister interface {
	ListRoster(ctx context.Context, courseID string) ([]models.Application, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// RosterFile is a rendered roster ready to stream.
type RosterFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// RosterService renders the seat holders of a course as CSV or PDF.
type RosterService struct {
	courses      courseFinder
	applications rosterLister
	csv          csvRenderer
	pdf          pdfRenderer
	logger       *zap.Logger
	now          func() time.Time
	loc          *time.Location
}

// NewRosterService constructs a RosterService.
func NewRosterService(courses courseFinder, applications rosterLister, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger) *RosterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter("")
	}
	return &RosterService{courses: courses, applications: applications, csv: csv, pdf: pdf, logger: logger, now: time.Now, loc: time.UTC}
}

// WithLocation sets the zone used to print timestamps in exported rosters.
func (s *RosterService) WithLocation(loc *time.Location) *RosterService {
	if loc != nil {
		s.loc = loc
	}
	return s
}

// Export renders the roster of courseID in the requested format.
func (s *RosterService) Export(ctx context.Context, courseID string, format RosterFormat) (*RosterFile, error) {
	if format == "" {
		format = RosterFormatCSV
	}
	if format != RosterFormatCSV && format != RosterFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	roster, err := s.applications.ListRoster(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}

	dataset := buildRosterDataset(roster, s.loc)
	var (
		payload     []byte
		contentType string
	)
	switch format {
	case RosterFormatPDF:
		title := fmt.Sprintf("Roster: %s (%d/%d)", course.Title, course.CurrentParticipants, course.MaxParticipants)
		payload, err = s.pdf.Render(dataset, title)
		contentType = "application/pdf"
	default:
		payload, err = s.csv.Render(dataset)
		contentType = "text/csv; charset=utf-8"
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster")
	}

	s.logger.Debug("roster exported", zap.String("course_id", courseID), zap.String("format", string(format)), zap.Int("rows", len(roster)))
	return &RosterFile{
		Filename:    fmt.Sprintf("roster_%s_%s.%s", sanitizeFilename(course.Title), s.now().UTC().Format("20060102_150405"), format),
		ContentType: contentType,
		Data:        payload,
	}, nil
}

func buildRosterDataset(roster []models.Application, loc *time.Location) export.Dataset {
	rows := make([]map[string]string, 0, len(roster))
	for i, application := range roster {
		rows = append(rows, map[string]string{
			"No":             fmt.Sprintf("%d", i+1),
			"User ID":        application.UserID,
			"Status":         string(application.Status),
			"Applied At":     application.AppliedAt.In(loc).Format(time.RFC3339),
			"Application ID": application.ID,
		})
	}
	return export.Dataset{
		Headers: []string{"No", "User ID", "Status", "Applied At", "Application ID"},
		Rows:    rows,
	}
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
