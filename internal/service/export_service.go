package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/oncall-board-api/internal/models"
	appErrors "github.com/noah-isme/oncall-board-api/pkg/errors"
	"github.com/noah-isme/oncall-board-api/pkg/export"
)

// Export formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

type gridProvider interface {
	Grid(ctx context.Context, track models.Track) (*ScheduleGrid, error)
}

type tableRenderer interface {
	Render(table export.Table) ([]byte, error)
}

// ExportFile is a rendered schedule document.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ExportService renders a track's window as a date by time-slot table.
type ExportService struct {
	grids  gridProvider
	csv    tableRenderer
	pdf    tableRenderer
	logger *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(grids gridProvider, logger *zap.Logger, csv, pdf tableRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{grids: grids, csv: csv, pdf: pdf, logger: logger}
}

// Export renders the current window of track in format (csv when empty).
func (s *ExportService) Export(ctx context.Context, track models.Track, format string) (*ExportFile, error) {
	if !track.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown track")
	}
	if format == "" {
		format = ExportFormatCSV
	}

	var (
		renderer    tableRenderer
		contentType string
	)
	switch format {
	case ExportFormatCSV:
		renderer, contentType = s.csv, "text/csv"
	case ExportFormatPDF:
		renderer, contentType = s.pdf, "application/pdf"
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	grid, err := s.grids.Grid(ctx, track)
	if err != nil {
		return nil, err
	}
	table := BuildScheduleTable(track, grid)
	body, err := renderer.Render(table)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	filename := fmt.Sprintf("schedule-%s", track)
	if len(grid.Dates) > 0 {
		filename += fmt.Sprintf("-%s-%s", grid.Dates[0], grid.Dates[len(grid.Dates)-1])
	}
	s.logger.Info("schedule exported", zap.String("track", string(track)), zap.String("format", format), zap.Int("bytes", len(body)))
	return &ExportFile{Filename: filename + "." + format, ContentType: contentType, Body: body}, nil
}

// BuildScheduleTable lays the grid out with one row per date and one column per slot.
func BuildScheduleTable(track models.Track, grid *ScheduleGrid) export.Table {
	slots := models.TimeSlots()
	headers := append([]string{"Date"}, slots...)
	rows := make([][]string, 0, len(grid.Dates))
	for _, date := range grid.Dates {
		row := make([]string, 0, len(headers))
		row = append(row, date)
		for _, slot := range slots {
			claimants := grid.Assignments[models.CanonicalKey(date, slot)]
			names := make([]string, len(claimants))
			for i, ref := range claimants {
				names[i] = ref.ShortName()
			}
			row = append(row, strings.Join(names, ", "))
		}
		rows = append(rows, row)
	}
	return export.Table{
		Title:   fmt.Sprintf("On-call schedule (%s)", track),
		Headers: headers,
		Rows:    rows,
	}
}
