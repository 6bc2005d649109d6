package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"github.com/Horth168/staff-attendance-app/internal/model"
	"github.com/Horth168/staff-attendance-app/internal/store"
)

// Calendar manages per-staff days off. "Today" is taken from now in loc.
type Calendar struct {
	coll  store.Collection
	cache Cache
	now   func() time.Time
	loc   *time.Location
	log   *zap.Logger
}

func NewCalendar(coll store.Collection, cache Cache, now func() time.Time, loc *time.Location, log *zap.Logger) *Calendar {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.Local
	}
	return &Calendar{coll: coll, cache: cache, now: now, loc: loc, log: log}
}

// Today returns the current local date as YYYY-MM-DD.
func (c *Calendar) Today() string {
	return c.now().In(c.loc).Format(time.DateOnly)
}

func (c *Calendar) Location() *time.Location {
	return c.loc
}

// Toggle flips date in dates relative to the current day. See ToggleDate.
func (c *Calendar) Toggle(dates []string, date string) ([]string, error) {
	return ToggleDate(dates, date, c.Today())
}

// Save replaces the whole persisted day-off set of a staff member.
// Saving the same set twice leaves the same state. Dates before today are
// frozen: the new set must carry exactly the past dates already stored.
func (c *Calendar) Save(ctx context.Context, staffID bson.ObjectID, dates []string) ([]string, error) {
	normalized, err := NormalizeDates(dates)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Err(); err != nil {
		return nil, err
	}
	record, ok := c.cache.StaffByID(staffID)
	if !ok {
		return nil, ErrNotFound
	}
	today := c.Today()
	if !slices.Equal(pastDates(record.DaysOff, today), pastDates(normalized, today)) {
		return nil, fmt.Errorf("%w: days before %s cannot change", ErrPastDate, today)
	}

	if err := c.coll.Update(ctx, staffID, bson.M{"days_off": normalized}); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		c.log.Error("save days off", zap.String("staff_id", staffID.Hex()), zap.Error(err))
		return nil, writeFailure("save days off", err)
	}
	return normalized, nil
}

// ToggleDate adds date to dates when absent and removes it when present.
// Dates before today cannot be toggled: the set comes back unchanged along
// with ErrPastDate. The input slice is never modified.
func ToggleDate(dates []string, date, today string) ([]string, error) {
	out := slices.Clone(dates)
	if !validDate(date) {
		return out, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	if date < today {
		return out, fmt.Errorf("%w: %s", ErrPastDate, date)
	}
	if slices.Contains(out, date) {
		return slices.DeleteFunc(out, func(d string) bool { return d == date }), nil
	}
	out = append(out, date)
	slices.Sort(out)
	return out, nil
}

// NormalizeDates validates, sorts and de-duplicates a day-off set.
func NormalizeDates(dates []string) ([]string, error) {
	out := make([]string, 0, len(dates))
	for _, d := range dates {
		if !validDate(d) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidDate, d)
		}
		out = append(out, d)
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

// IsDayOff reports whether date (YYYY-MM-DD) is one of the record's days off.
func IsDayOff(record model.StaffRecord, date string) bool {
	return slices.Contains(record.DaysOff, date)
}

// pastDates returns the distinct dates before today, sorted.
func pastDates(dates []string, today string) []string {
	var out []string
	for _, d := range dates {
		if d < today {
			out = append(out, d)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func validDate(d string) bool {
	_, err := time.Parse(time.DateOnly, d)
	return err == nil
}
