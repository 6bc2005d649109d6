package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"github.com/Horth168/staff-attendance-app/internal/model"
	"github.com/Horth168/staff-attendance-app/internal/store"
)

// ErrDayOff is the guard failure for a staff member who is off today.
var ErrDayOff = fmt.Errorf("%w: day off today", ErrInvalidTransition)

// Announcer publishes a recorded clock event somewhere people can see it.
type Announcer interface {
	Announce(ctx context.Context, event model.AttendanceEvent) error
}

// ClockService moves staff between clocked out and clocked in.
//
// Recording an event is two writes: the attendance event, then the staff
// status. They are not atomic. When the second one fails the log and the
// status disagree until Reconcile runs.
//
// The guard reads the local cache, so two clients acting on the same staff
// member at the same moment can both pass it. Within this process, actions
// are serialized and the guard also sees statuses written here that the
// cache has not echoed yet.
type ClockService struct {
	staffColl      store.Collection
	attendanceColl store.Collection
	cache          Cache
	calendar       *Calendar
	announcer      Announcer
	log            *zap.Logger

	// mu serializes clock actions. pending holds the status each staff member
	// was moved to by this process until the cache shows it.
	mu      sync.Mutex
	pending map[bson.ObjectID]pendingStatus
}

// pendingStatus is a status written here, along with the record's last
// activity as cached when it was written. Any later change to the cached
// record means the cache has moved past this write.
type pendingStatus struct {
	status model.Status
	since  *time.Time
}

func NewClockService(staffColl, attendanceColl store.Collection, cache Cache, calendar *Calendar, log *zap.Logger) *ClockService {
	return &ClockService{
		staffColl:      staffColl,
		attendanceColl: attendanceColl,
		cache:          cache,
		calendar:       calendar,
		log:            log,
		pending:        make(map[bson.ObjectID]pendingStatus),
	}
}

// SetAnnouncer enables announcements of recorded events. Announcement
// failures are logged and never fail the clock action.
func (s *ClockService) SetAnnouncer(a Announcer) {
	s.announcer = a
}

// RecordEvent appends the event opposite to currentStatus, the status the
// caller believes the staff member is in. A caller whose view is stale is
// rejected instead of producing a same-type event twice in a row.
func (s *ClockService) RecordEvent(ctx context.Context, staffID bson.ObjectID, staffName string, currentStatus model.Status) (*model.AttendanceEvent, error) {
	if !currentStatus.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, currentStatus)
	}
	if err := s.cache.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.cache.StaffByID(staffID)
	if !ok {
		return nil, ErrNotFound
	}
	next := currentStatus.Next()
	if err := s.guard(record, next); err != nil {
		return nil, err
	}
	if staffName == "" {
		staffName = record.Name
	}
	return s.apply(ctx, record, staffName, next)
}

func (s *ClockService) ClockIn(ctx context.Context, staffID bson.ObjectID) (*model.AttendanceEvent, error) {
	return s.transition(ctx, staffID, model.EventClockIn)
}

func (s *ClockService) ClockOut(ctx context.Context, staffID bson.ObjectID) (*model.AttendanceEvent, error) {
	return s.transition(ctx, staffID, model.EventClockOut)
}

func (s *ClockService) transition(ctx context.Context, staffID bson.ObjectID, next model.EventType) (*model.AttendanceEvent, error) {
	if err := s.cache.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.cache.StaffByID(staffID)
	if !ok {
		return nil, ErrNotFound
	}
	if err := s.guard(record, next); err != nil {
		return nil, err
	}
	return s.apply(ctx, record, record.Name, next)
}

// guard must be called with mu held.
func (s *ClockService) guard(record model.StaffRecord, next model.EventType) error {
	if IsDayOff(record, s.calendar.Today()) {
		return fmt.Errorf("%w: %s", ErrDayOff, record.Name)
	}
	if s.effectiveStatusLocked(record) == next.Status() {
		return fmt.Errorf("%w: %s is already %s", ErrInvalidTransition, record.Name, next.Status())
	}
	return nil
}

func (s *ClockService) apply(ctx context.Context, record model.StaffRecord, staffName string, next model.EventType) (*model.AttendanceEvent, error) {
	staffID := record.ID
	event := model.AttendanceEvent{
		StaffID:   staffID,
		StaffName: staffName,
		Type:      next,
	}
	id, err := s.attendanceColl.Create(ctx, event, "timestamp")
	if err != nil {
		s.log.Error("append attendance event",
			zap.String("staff_id", staffID.Hex()), zap.String("type", string(next)), zap.Error(err))
		return nil, writeFailure("append attendance event", err)
	}
	event.ID = id
	// The log now says next, whatever happens to the status write.
	s.pending[staffID] = pendingStatus{status: next.Status(), since: record.LastActivityAt}

	if err := s.staffColl.Update(ctx, staffID, bson.M{"status": next.Status()}, "last_activity_at"); err != nil {
		s.log.Error("staff status diverged from attendance log",
			zap.String("staff_id", staffID.Hex()),
			zap.String("event_id", id.Hex()),
			zap.String("expected_status", string(next.Status())),
			zap.Error(err))
		return &event, fmt.Errorf("%w: %w: %w", ErrWriteFailure, ErrStatusDiverged, err)
	}

	s.log.Info("clock event recorded",
		zap.String("staff_id", staffID.Hex()), zap.String("event_id", id.Hex()), zap.String("type", string(next)))
	if s.announcer != nil {
		if err := s.announcer.Announce(ctx, event); err != nil {
			s.log.Warn("announce clock event", zap.String("event_id", id.Hex()), zap.Error(err))
		}
	}
	return &event, nil
}

// Divergence is a staff member whose stored status disagrees with the
// latest attendance event.
type Divergence struct {
	StaffID   bson.ObjectID `json:"staff_id"`
	StaffName string        `json:"staff_name"`
	Stored    model.Status  `json:"stored"`
	Derived   model.Status  `json:"derived"`
	EventID   bson.ObjectID `json:"event_id,omitempty"`
	EventAt   *time.Time    `json:"event_at,omitempty"`
}

// Divergences derives every staff member's status from events, which must be
// ordered newest first, and reports those that differ from the stored one.
// A staff member without events derives to clocked out.
func Divergences(staff []model.StaffRecord, events []model.AttendanceEvent) []Divergence {
	latest := make(map[bson.ObjectID]model.AttendanceEvent, len(staff))
	for _, e := range events {
		if _, ok := latest[e.StaffID]; !ok {
			latest[e.StaffID] = e
		}
	}

	var out []Divergence
	for _, r := range staff {
		d := Divergence{StaffID: r.ID, StaffName: r.Name, Stored: r.Status, Derived: model.StatusClockedOut}
		if e, ok := latest[r.ID]; ok {
			d.Derived = e.Type.Status()
			d.EventID = e.ID
			d.EventAt = e.Timestamp
		}
		if d.Derived != r.Status {
			out = append(out, d)
		}
	}
	return out
}

// Reconcile rewrites the status of every diverged staff member from the
// latest event and returns what it repaired.
func (s *ClockService) Reconcile(ctx context.Context) ([]Divergence, error) {
	if err := s.cache.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		fixed []Divergence
		errs  []error
	)
	for _, d := range Divergences(s.cache.Staff(), s.cache.Attendance()) {
		set := bson.M{"status": d.Derived}
		if d.EventAt != nil {
			set["last_activity_at"] = *d.EventAt
		}
		if err := s.staffColl.Update(ctx, d.StaffID, set); err != nil {
			s.log.Error("reconcile staff status", zap.String("staff_id", d.StaffID.Hex()), zap.Error(err))
			errs = append(errs, writeFailure("reconcile "+d.StaffID.Hex(), err))
			continue
		}
		s.log.Warn("staff status reconciled",
			zap.String("staff_id", d.StaffID.Hex()),
			zap.String("from", string(d.Stored)),
			zap.String("to", string(d.Derived)))
		fixed = append(fixed, d)
	}
	return fixed, errors.Join(errs...)
}

// effectiveStatusLocked is the cached status unless this process has moved
// the staff member since and the cache has not caught up.
func (s *ClockService) effectiveStatusLocked(r model.StaffRecord) model.Status {
	cached := currentStatus(r)
	p, ok := s.pending[r.ID]
	if !ok {
		return cached
	}
	if p.status == cached || !sameInstant(p.since, r.LastActivityAt) {
		delete(s.pending, r.ID)
		return cached
	}
	return p.status
}

func sameInstant(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func currentStatus(r model.StaffRecord) model.Status {
	if r.Status.Valid() {
		return r.Status
	}
	return model.StatusClockedOut
}
