package service

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/Horth168/staff-attendance-app/internal/i18n"
	"github.com/Horth168/staff-attendance-app/internal/model"
)

const (
	exportDateLayout = time.DateOnly
	exportTimeLayout = "2006-01-02 15:04"
)

// ExportService builds the combined day-off and attendance report.
type ExportService struct {
	cache Cache
	loc   *time.Location
	log   *zap.Logger
}

func NewExportService(cache Cache, loc *time.Location, log *zap.Logger) *ExportService {
	if loc == nil {
		loc = time.Local
	}
	return &ExportService{cache: cache, loc: loc, log: log}
}

// Rows snapshots the cache into sorted report rows.
func (s *ExportService) Rows() ([]model.ExportRow, error) {
	if err := s.cache.Err(); err != nil {
		return nil, err
	}
	return BuildExportRows(s.cache.Staff(), s.cache.Attendance(), s.loc), nil
}

// WriteXLSX renders the report as a workbook labelled in the locale carried
// by ctx. It returns the file content and its suggested name.
func (s *ExportService) WriteXLSX(ctx context.Context, now time.Time) (*bytes.Buffer, string, error) {
	rows, err := s.Rows()
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := i18n.T(ctx, "export.sheet")
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, "", fmt.Errorf("name sheet: %w", err)
	}

	header := []any{
		i18n.T(ctx, "export.header.staff"),
		i18n.T(ctx, "export.header.event"),
		i18n.T(ctx, "export.header.time"),
		i18n.T(ctx, "export.header.notes"),
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, "", fmt.Errorf("write header: %w", err)
	}
	if err := formatHeader(f, sheet); err != nil {
		return nil, "", err
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, "", fmt.Errorf("row %d cell: %w", i+1, err)
		}
		values := []any{r.Staff, KindLabel(ctx, r.Kind), s.formatTime(r)}
		if r.Notes != "" {
			values = append(values, KindLabel(ctx, r.Notes))
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return nil, "", fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.log.Error("write xlsx", zap.Error(err))
		return nil, "", fmt.Errorf("write xlsx: %w", err)
	}
	return buf, ExportFilename(now.In(s.loc)), nil
}

// exportColumnWidths are the widths of columns A to D.
var exportColumnWidths = []float64{24, 16, 20, 16}

func formatHeader(f *excelize.File, sheet string) error {
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A1", "D1", style); err != nil {
		return fmt.Errorf("apply header style: %w", err)
	}
	for i, width := range exportColumnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return fmt.Errorf("column %d: %w", i+1, err)
		}
		if err := f.SetColWidth(sheet, col, col, width); err != nil {
			return fmt.Errorf("column %s width: %w", col, err)
		}
	}
	return nil
}

func (s *ExportService) formatTime(r model.ExportRow) string {
	if r.Time == nil {
		return ""
	}
	if r.Date {
		return r.Time.In(s.loc).Format(exportDateLayout)
	}
	return r.Time.In(s.loc).Format(exportTimeLayout)
}

// ExportFilename names the workbook after the export date.
func ExportFilename(now time.Time) string {
	return "Attendance-Log-" + now.Format(time.DateOnly) + ".xlsx"
}

// KindLabel returns the display label of a row kind for the locale in ctx.
func KindLabel(ctx context.Context, kind model.ExportKind) string {
	switch kind {
	case model.ExportDayOff:
		return i18n.T(ctx, "status.day_off")
	case model.ExportClockIn:
		return i18n.T(ctx, "status.clocked_in")
	case model.ExportClockOut:
		return i18n.T(ctx, "status.clocked_out")
	default:
		return string(kind)
	}
}

// BuildExportRows merges one row per day off and one row per attendance
// event, sorted by instant ascending. A day off sits at local midnight of
// its date in loc. Rows without a resolved time go last, in input order.
func BuildExportRows(staff []model.StaffRecord, events []model.AttendanceEvent, loc *time.Location) []model.ExportRow {
	if loc == nil {
		loc = time.Local
	}
	n := len(events)
	for _, r := range staff {
		n += len(r.DaysOff)
	}
	rows := make([]model.ExportRow, 0, n)

	for _, r := range staff {
		for _, d := range r.DaysOff {
			row := model.ExportRow{Staff: r.Name, Kind: model.ExportDayOff, Date: true, Notes: model.ExportDayOff}
			if day, err := time.ParseInLocation(time.DateOnly, d, loc); err == nil {
				row.Time = &day
			}
			rows = append(rows, row)
		}
	}

	for _, e := range events {
		row := model.ExportRow{Staff: e.StaffName, Kind: model.ExportClockOut}
		if e.Type == model.EventClockIn {
			row.Kind = model.ExportClockIn
		}
		if e.Timestamp != nil {
			ts := *e.Timestamp
			row.Time = &ts
		}
		rows = append(rows, row)
	}

	slices.SortStableFunc(rows, func(a, b model.ExportRow) int {
		switch {
		case a.Time == nil && b.Time == nil:
			return 0
		case a.Time == nil:
			return 1
		case b.Time == nil:
			return -1
		}
		return a.Time.Compare(*b.Time)
	})
	return rows
}
