package store

import (
	"context"
	"errors"
	"sync"

	"go.mongodb.org/mongo-driver/v2/bson"
)

var (
	ErrNotFound = errors.New("document not found")
	ErrClosed   = errors.New("subscription closed")
)

// Collection is a real-time document collection. Fields named in stamp are
// set to the store's own clock when the write commits.
type Collection interface {
	Name() string
	Create(ctx context.Context, doc any, stamp ...string) (bson.ObjectID, error)
	Update(ctx context.Context, id bson.ObjectID, set bson.M, stamp ...string) error
	Subscribe(ctx context.Context) (*Subscription, error)
}

// Database hands out named collections.
type Database interface {
	Collection(name string) Collection
	Close(ctx context.Context) error
}

// Snapshot is the complete current content of a collection.
type Snapshot struct {
	Docs []bson.Raw
}

// Subscription delivers successive snapshots of one collection. Only the
// latest undelivered snapshot is kept: a slow reader skips intermediate ones.
type Subscription struct {
	ch     chan Snapshot
	done   chan struct{}
	cancel context.CancelFunc

	mu  sync.Mutex
	err error

	once sync.Once
}

func newSubscription(cancel context.CancelFunc) *Subscription {
	return &Subscription{
		ch:     make(chan Snapshot, 1),
		done:   make(chan struct{}),
		cancel: cancel,
	}
}

// Snapshots returns the delivery channel. It is never closed; select on Done.
func (s *Subscription) Snapshots() <-chan Snapshot {
	return s.ch
}

// Done is closed once the subscription has stopped, either by Close or by a
// stream error.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Err returns the stream error, ErrClosed after Close, or nil while running.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close stops the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.stop(ErrClosed)
}

func (s *Subscription) stop(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		if s.cancel != nil {
			s.cancel()
		}
		close(s.done)
	})
}

func (s *Subscription) publish(snap Snapshot) {
	select {
	case <-s.done:
		return
	default:
	}
	for {
		select {
		case s.ch <- snap:
			return
		default:
		}
		// Drop the stale snapshot the reader has not picked up yet.
		select {
		case <-s.ch:
		default:
		}
	}
}
