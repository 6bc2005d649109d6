package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/Horth168/staff-attendance-app/internal/i18n"
	"github.com/Horth168/staff-attendance-app/internal/model"
)

func TestBuildExportRows_DayOffAndClockIn(t *testing.T) {
	amy := bson.NewObjectID()
	in := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)
	staff := []model.StaffRecord{{ID: amy, Name: "Amy", DaysOff: []string{"2025-01-05"}}}
	events := []model.AttendanceEvent{{StaffID: amy, StaffName: "Amy", Type: model.EventClockIn, Timestamp: &in}}

	rows := BuildExportRows(staff, events, time.UTC)
	require.Len(t, rows, 2)

	assert.Equal(t, "Amy", rows[0].Staff)
	assert.Equal(t, model.ExportDayOff, rows[0].Kind)
	assert.Equal(t, model.ExportDayOff, rows[0].Notes)
	assert.True(t, rows[0].Date)
	require.NotNil(t, rows[0].Time)
	assert.True(t, time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC).Equal(*rows[0].Time))

	assert.Equal(t, "Amy", rows[1].Staff)
	assert.Equal(t, model.ExportClockIn, rows[1].Kind)
	assert.Empty(t, rows[1].Notes)
	assert.False(t, rows[1].Date)
	assert.True(t, in.Equal(*rows[1].Time))
}

func TestBuildExportRows_CountAndOrder(t *testing.T) {
	phnomPenh := time.FixedZone("ICT", 7*3600)
	amy, bob := bson.NewObjectID(), bson.NewObjectID()
	at := func(day, hour int) *time.Time {
		ts := time.Date(2025, 1, day, hour, 0, 0, 0, time.UTC)
		return &ts
	}
	staff := []model.StaffRecord{
		{ID: amy, Name: "Amy", DaysOff: []string{"2025-01-09", "2025-01-02"}},
		{ID: bob, Name: "Bob", DaysOff: []string{"2025-01-04"}},
	}
	events := []model.AttendanceEvent{
		{StaffID: bob, StaffName: "Bob", Type: model.EventClockOut},
		{StaffID: amy, StaffName: "Amy", Type: model.EventClockOut, Timestamp: at(6, 17)},
		{StaffID: bob, StaffName: "Bob", Type: model.EventClockIn, Timestamp: at(3, 20)},
		{StaffID: amy, StaffName: "Amy", Type: model.EventClockIn, Timestamp: at(6, 8)},
	}

	rows := BuildExportRows(staff, events, phnomPenh)
	require.Len(t, rows, 7)

	for i := 1; i < len(rows); i++ {
		if rows[i].Time == nil {
			continue
		}
		require.NotNil(t, rows[i-1].Time, "rows without time sort last")
		assert.False(t, rows[i].Time.Before(*rows[i-1].Time), "row %d out of order", i)
	}
	last := rows[len(rows)-1]
	assert.Nil(t, last.Time)
	assert.Equal(t, "Bob", last.Staff)
	assert.Equal(t, model.ExportClockOut, last.Kind)

	// Bob's 20:00 UTC clock-in falls on 2025-01-04 03:00 local, after his
	// day off at local midnight of the same date.
	var bobRows []model.ExportRow
	for _, r := range rows {
		if r.Staff == "Bob" {
			bobRows = append(bobRows, r)
		}
	}
	require.Len(t, bobRows, 3)
	assert.Equal(t, model.ExportDayOff, bobRows[0].Kind)
	assert.Equal(t, model.ExportClockIn, bobRows[1].Kind)
}

func TestBuildExportRows_Empty(t *testing.T) {
	assert.Empty(t, BuildExportRows(nil, nil, time.UTC))
}

func TestExportFilename(t *testing.T) {
	assert.Equal(t, "Attendance-Log-2025-01-06.xlsx", ExportFilename(time.Date(2025, 1, 6, 23, 0, 0, 0, time.UTC)))
}

func TestExportService_WriteXLSX(t *testing.T) {
	f := newFixture(t, time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC))
	amy := f.addStaff(t, "Amy")
	f.seedDaysOff(t, amy.ID, "2025-01-05")
	_, err := f.clocks.ClockIn(context.Background(), amy.ID)
	require.NoError(t, err)
	f.waitEvents(t, 1)

	buf, name, err := f.export.WriteXLSX(context.Background(), f.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, "Attendance-Log-2025-01-06.xlsx", name)

	book, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer book.Close()

	sheet := i18n.T(context.Background(), "export.sheet")
	rows, err := book.GetRows(sheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Staff Member", "Event", "Time", "Notes"}, rows[0])
	assert.Equal(t, []string{"Amy", "Day Off", "2025-01-05", "Day Off"}, rows[1])
	assert.Equal(t, []string{"Amy", "Clocked In", "2025-01-06 09:00"}, rows[2])
}

func TestExportService_WriteXLSX_Khmer(t *testing.T) {
	f := newFixture(t, today)
	f.addStaff(t, "Amy")

	ctx := i18n.WithLocale(context.Background(), "km")
	buf, _, err := f.export.WriteXLSX(ctx, today)
	require.NoError(t, err)

	book, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer book.Close()

	sheet := i18n.T(ctx, "export.sheet")
	assert.NotEqual(t, i18n.T(context.Background(), "export.sheet"), sheet)
	rows, err := book.GetRows(sheet)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, i18n.T(ctx, "export.header.staff"), rows[0][0])
}

func TestFormatHeader(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, formatHeader(f, "Sheet1"))

	for col, want := range map[string]float64{"A": 24, "B": 16, "C": 20, "D": 16} {
		got, err := f.GetColWidth("Sheet1", col)
		require.NoError(t, err)
		assert.Equal(t, want, got, "column %s", col)
	}
	idx, err := f.GetCellStyle("Sheet1", "D1")
	require.NoError(t, err)
	style, err := f.GetStyle(idx)
	require.NoError(t, err)
	require.NotNil(t, style.Font)
	assert.True(t, style.Font.Bold)

	err = formatHeader(f, "Missing")
	assert.ErrorContains(t, err, "apply header style")
}
