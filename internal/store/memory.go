package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Memory is an in-process Database. Server timestamps come from its clock and
// can be held back to reproduce the window between submit and commit.
type Memory struct {
	mu    sync.Mutex
	now   func() time.Time
	hold  bool
	fault func(collection, op string) error
	colls map[string]*memCollection
}

type MemoryOption func(*Memory)

// WithClock sets the clock used for server timestamps.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		now:   time.Now,
		colls: make(map[string]*memCollection),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) Collection(name string) Collection {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.collectionLocked(name)
}

func (m *Memory) collectionLocked(name string) *memCollection {
	c, ok := m.colls[name]
	if !ok {
		c = &memCollection{
			m:       m,
			name:    name,
			docs:    make(map[bson.ObjectID]bson.M),
			pending: make(map[bson.ObjectID][]string),
			subs:    make(map[*Subscription]struct{}),
		}
		m.colls[name] = c
	}
	return c
}

// Close ends every open subscription.
func (m *Memory) Close(ctx context.Context) error {
	m.mu.Lock()
	var subs []*Subscription
	for _, c := range m.colls {
		for s := range c.subs {
			subs = append(subs, s)
		}
	}
	m.mu.Unlock()
	for _, s := range subs {
		s.Close()
	}
	return nil
}

// HoldTimestamps makes subsequent writes leave their stamp fields absent
// until CommitTimestamps is called.
func (m *Memory) HoldTimestamps(hold bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hold = hold
}

// CommitTimestamps assigns every held server timestamp and publishes.
func (m *Memory) CommitTimestamps() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for _, c := range m.colls {
		if len(c.pending) == 0 {
			continue
		}
		for id, fields := range c.pending {
			for _, f := range fields {
				c.docs[id][f] = now
			}
		}
		clear(c.pending)
		c.publishLocked()
	}
}

// SetFault installs a hook consulted before every write; a non-nil error
// fails the write without touching data. op is "create" or "update".
func (m *Memory) SetFault(f func(collection, op string) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fault = f
}

// Break stops all subscriptions on a collection with err.
func (m *Memory) Break(collection string, err error) {
	m.mu.Lock()
	c := m.collectionLocked(collection)
	var subs []*Subscription
	for s := range c.subs {
		subs = append(subs, s)
	}
	m.mu.Unlock()
	for _, s := range subs {
		s.stop(err)
	}
}

type memCollection struct {
	m       *Memory
	name    string
	order   []bson.ObjectID
	docs    map[bson.ObjectID]bson.M
	pending map[bson.ObjectID][]string
	subs    map[*Subscription]struct{}
}

func (c *memCollection) Name() string {
	return c.name
}

func (c *memCollection) Create(ctx context.Context, doc any, stamp ...string) (bson.ObjectID, error) {
	if err := ctx.Err(); err != nil {
		return bson.NilObjectID, err
	}
	raw, err := bson.Marshal(doc)
	if err != nil {
		return bson.NilObjectID, fmt.Errorf("encode %s document: %w", c.name, err)
	}
	var fields bson.M
	if err := bson.Unmarshal(raw, &fields); err != nil {
		return bson.NilObjectID, fmt.Errorf("decode %s document: %w", c.name, err)
	}

	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	if err := c.checkFaultLocked("create"); err != nil {
		return bson.NilObjectID, err
	}

	id := bson.NewObjectID()
	fields["_id"] = id
	c.docs[id] = fields
	c.order = append(c.order, id)
	c.stampLocked(id, stamp)
	c.publishLocked()
	return id, nil
}

func (c *memCollection) Update(ctx context.Context, id bson.ObjectID, set bson.M, stamp ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	if err := c.checkFaultLocked("update"); err != nil {
		return err
	}

	doc, ok := c.docs[id]
	if !ok {
		return ErrNotFound
	}
	for k, v := range set {
		doc[k] = v
	}
	c.stampLocked(id, stamp)
	c.publishLocked()
	return nil
}

func (c *memCollection) Subscribe(ctx context.Context) (*Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	sub := newSubscription(cancel)

	c.m.mu.Lock()
	c.subs[sub] = struct{}{}
	sub.publish(c.snapshotLocked())
	c.m.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			sub.stop(ErrClosed)
		case <-sub.Done():
		}
		c.m.mu.Lock()
		delete(c.subs, sub)
		c.m.mu.Unlock()
	}()
	return sub, nil
}

func (c *memCollection) checkFaultLocked(op string) error {
	if c.m.fault == nil {
		return nil
	}
	if err := c.m.fault(c.name, op); err != nil {
		return fmt.Errorf("%s %s: %w", op, c.name, err)
	}
	return nil
}

func (c *memCollection) stampLocked(id bson.ObjectID, stamp []string) {
	if len(stamp) == 0 {
		return
	}
	doc := c.docs[id]
	if c.m.hold {
		for _, f := range stamp {
			delete(doc, f)
		}
		c.pending[id] = append(c.pending[id], stamp...)
		return
	}
	now := c.m.now()
	for _, f := range stamp {
		doc[f] = now
	}
}

func (c *memCollection) snapshotLocked() Snapshot {
	docs := make([]bson.Raw, 0, len(c.order))
	for _, id := range c.order {
		raw, err := bson.Marshal(c.docs[id])
		if err != nil {
			// Documents were decoded from valid BSON, so re-encoding cannot fail.
			panic(fmt.Sprintf("store: re-encode %s/%s: %v", c.name, id.Hex(), err))
		}
		docs = append(docs, raw)
	}
	return Snapshot{Docs: docs}
}

func (c *memCollection) publishLocked() {
	if len(c.subs) == 0 {
		return
	}
	snap := c.snapshotLocked()
	for s := range c.subs {
		s.publish(snap)
	}
}
