package model

import "time"

// ExportKind identifies what produced a row of the attendance report.
type ExportKind string

const (
	ExportDayOff   ExportKind = "day_off"
	ExportClockIn  ExportKind = "clock_in"
	ExportClockOut ExportKind = "clock_out"
)

// ExportRow is one flat row of the combined report. Labels are resolved at
// render time, so the row only carries the kind.
type ExportRow struct {
	Staff string     `json:"staff"`
	Kind  ExportKind `json:"event"`
	Time  *time.Time `json:"time"` // nil when the event timestamp is unresolved
	Date  bool       `json:"date"` // Time is a whole calendar day
	Notes ExportKind `json:"notes,omitempty"`
}
