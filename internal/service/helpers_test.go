package service

import (
	"context"
	"os"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"github.com/Horth168/staff-attendance-app/internal/i18n"
	"github.com/Horth168/staff-attendance-app/internal/livecache"
	"github.com/Horth168/staff-attendance-app/internal/model"
	"github.com/Horth168/staff-attendance-app/internal/store"
)

func TestMain(m *testing.M) {
	if err := i18n.Init("en"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	clock    *testClock
	mem      *store.Memory
	cache    *livecache.Manager
	staff    *StaffService
	calendar *Calendar
	clocks   *ClockService
	export   *ExportService
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	clock := &testClock{now: now}
	mem := store.NewMemory(store.WithClock(clock.Now))
	staffColl := mem.Collection(model.StaffCollection)
	attendanceColl := mem.Collection(model.AttendanceCollection)
	log := zap.NewNop()

	cache := livecache.NewManager(staffColl, attendanceColl, log)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, cache.Start(context.Background()))
	require.NoError(t, cache.WaitReady(ctx))
	t.Cleanup(cache.Close)

	calendar := NewCalendar(staffColl, cache, clock.Now, time.UTC, log)
	return &fixture{
		clock:    clock,
		mem:      mem,
		cache:    cache,
		staff:    NewStaffService(staffColl, cache, log),
		calendar: calendar,
		clocks:   NewClockService(staffColl, attendanceColl, cache, calendar, log),
		export:   NewExportService(cache, time.UTC, log),
	}
}

// addStaff adds a staff member and waits for the cache to show it.
func (f *fixture) addStaff(t *testing.T, name string) model.StaffRecord {
	t.Helper()
	rec, err := f.staff.Add(context.Background(), name)
	require.NoError(t, err)
	return f.waitStaff(t, rec.ID, func(model.StaffRecord) bool { return true })
}

func (f *fixture) waitStaff(t *testing.T, id bson.ObjectID, cond func(model.StaffRecord) bool) model.StaffRecord {
	t.Helper()
	var got model.StaffRecord
	require.Eventually(t, func() bool {
		r, ok := f.cache.StaffByID(id)
		if !ok || !cond(r) {
			return false
		}
		got = r
		return true
	}, time.Second, 5*time.Millisecond)
	return got
}

func (f *fixture) waitStatus(t *testing.T, id bson.ObjectID, status model.Status) model.StaffRecord {
	t.Helper()
	return f.waitStaff(t, id, func(r model.StaffRecord) bool { return r.Status == status })
}

func (f *fixture) waitEvents(t *testing.T, n int) []model.AttendanceEvent {
	t.Helper()
	var got []model.AttendanceEvent
	require.Eventually(t, func() bool {
		got = f.cache.Attendance()
		return len(got) == n
	}, time.Second, 5*time.Millisecond)
	return got
}

func (f *fixture) saveDaysOff(t *testing.T, id bson.ObjectID, dates ...string) model.StaffRecord {
	t.Helper()
	saved, err := f.calendar.Save(context.Background(), id, dates)
	require.NoError(t, err)
	return f.waitDaysOff(t, id, saved)
}

// seedDaysOff writes dates straight to the store, bypassing the calendar's
// past-date rule, and waits for the cache to show them.
func (f *fixture) seedDaysOff(t *testing.T, id bson.ObjectID, dates ...string) model.StaffRecord {
	t.Helper()
	require.NoError(t, f.mem.Collection(model.StaffCollection).Update(context.Background(), id,
		bson.M{"days_off": dates}))
	return f.waitDaysOff(t, id, dates)
}

func (f *fixture) waitDaysOff(t *testing.T, id bson.ObjectID, want []string) model.StaffRecord {
	t.Helper()
	return f.waitStaff(t, id, func(r model.StaffRecord) bool { return slices.Equal(r.DaysOff, want) })
}
