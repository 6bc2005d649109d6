// Package livecache keeps local, sorted copies of the staff and attendance
// collections in step with the store's change feed.
//
// Each incoming snapshot replaces the matching cache wholesale. Readers only
// ever receive copies. A stream error moves the manager to StateFailed; it
// does not resubscribe on its own.
package livecache

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/Horth168/staff-attendance-app/internal/model"
	"github.com/Horth168/staff-attendance-app/internal/store"
)

var ErrSyncFailure = errors.New("sync failure")

type State int

const (
	StateLoading State = iota
	StateReady
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type Manager struct {
	staffColl      store.Collection
	attendanceColl store.Collection
	log            *zap.Logger
	collation      language.Tag

	mu          sync.RWMutex
	staff       []model.StaffRecord
	events      []model.AttendanceEvent
	staffReady  bool
	eventsReady bool
	state       State
	err         error
	subs        []*store.Subscription
	ready       chan struct{}
	failed      chan struct{}
	stopped     chan struct{}

	updates   chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

type Option func(*Manager)

// WithCollation sets the language used to order staff names.
func WithCollation(tag language.Tag) Option {
	return func(m *Manager) { m.collation = tag }
}

func NewManager(staff, attendance store.Collection, log *zap.Logger, opts ...Option) *Manager {
	m := &Manager{
		staffColl:      staff,
		attendanceColl: attendance,
		log:            log,
		collation:      language.English,
		ready:          make(chan struct{}),
		failed:         make(chan struct{}),
		stopped:        make(chan struct{}),
		updates:        make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start subscribes to both collections. It returns once both subscriptions
// are established; the first snapshots may still be in flight (see WaitReady).
func (m *Manager) Start(ctx context.Context) error {
	staffSub, err := m.staffColl.Subscribe(ctx)
	if err != nil {
		m.fail(fmt.Errorf("%w: subscribe %s: %w", ErrSyncFailure, m.staffColl.Name(), err))
		return m.Err()
	}
	eventSub, err := m.attendanceColl.Subscribe(ctx)
	if err != nil {
		staffSub.Close()
		m.fail(fmt.Errorf("%w: subscribe %s: %w", ErrSyncFailure, m.attendanceColl.Name(), err))
		return m.Err()
	}

	m.mu.Lock()
	if m.state != StateLoading {
		m.mu.Unlock()
		staffSub.Close()
		eventSub.Close()
		return fmt.Errorf("%w: manager already %s", ErrSyncFailure, m.state)
	}
	m.subs = []*store.Subscription{staffSub, eventSub}
	m.mu.Unlock()

	m.wg.Add(2)
	go m.run(staffSub, m.applyStaff)
	go m.run(eventSub, m.applyEvents)
	return nil
}

func (m *Manager) run(sub *store.Subscription, apply func(store.Snapshot)) {
	defer m.wg.Done()
	for {
		select {
		case snap := <-sub.Snapshots():
			apply(snap)
		case <-sub.Done():
			if err := sub.Err(); err != nil && !errors.Is(err, store.ErrClosed) {
				m.fail(fmt.Errorf("%w: %w", ErrSyncFailure, err))
			}
			return
		case <-m.stopped:
			return
		}
	}
}

func (m *Manager) applyStaff(snap store.Snapshot) {
	records := make([]model.StaffRecord, 0, len(snap.Docs))
	for _, raw := range snap.Docs {
		var r model.StaffRecord
		if err := bson.Unmarshal(raw, &r); err != nil {
			m.log.Warn("skip undecodable staff document", zap.Error(err))
			continue
		}
		records = append(records, r)
	}
	SortStaff(records, m.collation)

	m.mu.Lock()
	if m.state == StateFailed || m.state == StateClosed {
		m.mu.Unlock()
		return
	}
	m.staff = records
	m.staffReady = true
	m.markReadyLocked()
	m.mu.Unlock()
	m.notify()
}

func (m *Manager) applyEvents(snap store.Snapshot) {
	events := make([]model.AttendanceEvent, 0, len(snap.Docs))
	for _, raw := range snap.Docs {
		var e model.AttendanceEvent
		if err := bson.Unmarshal(raw, &e); err != nil {
			m.log.Warn("skip undecodable attendance document", zap.Error(err))
			continue
		}
		events = append(events, e)
	}
	SortEvents(events)

	m.mu.Lock()
	if m.state == StateFailed || m.state == StateClosed {
		m.mu.Unlock()
		return
	}
	m.events = events
	m.eventsReady = true
	m.markReadyLocked()
	m.mu.Unlock()
	m.notify()
}

func (m *Manager) markReadyLocked() {
	if m.state == StateLoading && m.staffReady && m.eventsReady {
		m.state = StateReady
		close(m.ready)
	}
}

// fail records the first sync error and tears down every stream.
func (m *Manager) fail(err error) {
	m.mu.Lock()
	if m.state == StateFailed || m.state == StateClosed {
		m.mu.Unlock()
		return
	}
	m.state = StateFailed
	m.err = err
	subs := m.subs
	close(m.failed)
	m.mu.Unlock()

	m.log.Error("sync stopped", zap.Error(err))
	for _, s := range subs {
		s.Close()
	}
	m.notify()
}

func (m *Manager) notify() {
	select {
	case m.updates <- struct{}{}:
	default:
	}
}

// Updates signals that the cached view changed. Signals coalesce.
func (m *Manager) Updates() <-chan struct{} {
	return m.updates
}

// WaitReady blocks until both caches hold a first snapshot, the manager
// fails or is closed, or ctx ends.
func (m *Manager) WaitReady(ctx context.Context) error {
	select {
	case <-m.ready:
	case <-m.failed:
	case <-m.stopped:
	case <-ctx.Done():
		return ctx.Err()
	}
	switch m.State() {
	case StateReady:
		return nil
	case StateFailed:
		return m.Err()
	default:
		return m.stoppedErr()
	}
}

func (m *Manager) stoppedErr() error {
	if err := m.Err(); err != nil {
		return err
	}
	return fmt.Errorf("%w: %w", ErrSyncFailure, store.ErrClosed)
}

func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Err returns the sync failure, if any.
func (m *Manager) Err() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.err
}

// Staff returns the cached staff records ordered by name.
func (m *Manager) Staff() []model.StaffRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.StaffRecord, len(m.staff))
	for i, r := range m.staff {
		out[i] = r.Clone()
	}
	return out
}

// StaffByID returns a copy of one cached record.
func (m *Manager) StaffByID(id bson.ObjectID) (model.StaffRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.staff {
		if r.ID == id {
			return r.Clone(), true
		}
	}
	return model.StaffRecord{}, false
}

// Attendance returns the cached events, newest first.
func (m *Manager) Attendance() []model.AttendanceEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.AttendanceEvent, len(m.events))
	for i, e := range m.events {
		if e.Timestamp != nil {
			ts := *e.Timestamp
			e.Timestamp = &ts
		}
		out[i] = e
	}
	return out
}

// Close unsubscribes from both collections. Safe to call more than once.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		if m.state != StateFailed {
			m.state = StateClosed
		}
		subs := m.subs
		m.mu.Unlock()

		close(m.stopped)
		for _, s := range subs {
			s.Close()
		}
		m.wg.Wait()
	})
}

// SortStaff orders records by name using the collation rules of tag.
func SortStaff(records []model.StaffRecord, tag language.Tag) {
	c := collate.New(tag)
	slices.SortStableFunc(records, func(a, b model.StaffRecord) int {
		return c.CompareString(a.Name, b.Name)
	})
}

// SortEvents orders events newest first. Events still waiting for their
// server timestamp count as the newest and keep their relative order.
func SortEvents(events []model.AttendanceEvent) {
	slices.SortStableFunc(events, func(a, b model.AttendanceEvent) int {
		switch {
		case a.Pending() && b.Pending():
			return 0
		case a.Pending():
			return -1
		case b.Pending():
			return 1
		}
		return cmp.Compare(b.Timestamp.UnixNano(), a.Timestamp.UnixNano())
	})
}
