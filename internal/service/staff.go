package service

import (
	"context"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
	"golang.org/x/text/cases"

	"github.com/Horth168/staff-attendance-app/internal/model"
	"github.com/Horth168/staff-attendance-app/internal/store"
)

// StaffService is the staff registry. Reads come from the live cache; adds
// are written through the store and show up in the cache once echoed back.
type StaffService struct {
	coll  store.Collection
	cache Cache
	log   *zap.Logger

	// mu serializes Add so the uniqueness check and the write cannot
	// interleave within this process. recent remembers names created here
	// until the cache has caught up with them.
	mu     sync.Mutex
	recent map[string]bson.ObjectID
}

func NewStaffService(coll store.Collection, cache Cache, log *zap.Logger) *StaffService {
	return &StaffService{
		coll:   coll,
		cache:  cache,
		log:    log,
		recent: make(map[string]bson.ObjectID),
	}
}

// Add creates a staff member in the clocked-out state. Names are compared
// after trimming and Unicode case folding.
func (s *StaffService) Add(ctx context.Context, name string) (*model.StaffRecord, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	if err := s.cache.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := foldName(name)
	seen := make(map[bson.ObjectID]bool)
	for _, r := range s.cache.Staff() {
		seen[r.ID] = true
		if foldName(r.Name) == key {
			return nil, ErrDuplicateName
		}
	}
	for k, id := range s.recent {
		if seen[id] {
			delete(s.recent, k)
		}
	}
	if _, ok := s.recent[key]; ok {
		return nil, ErrDuplicateName
	}

	record := &model.StaffRecord{
		Name:    name,
		Status:  model.StatusClockedOut,
		DaysOff: []string{},
	}
	id, err := s.coll.Create(ctx, record, "created_at")
	if err != nil {
		s.log.Error("add staff", zap.String("name", name), zap.Error(err))
		return nil, writeFailure("add staff", err)
	}
	record.ID = id
	s.recent[key] = id

	s.log.Info("staff added", zap.String("staff_id", id.Hex()), zap.String("name", name))
	return record, nil
}

func (s *StaffService) Find(id bson.ObjectID) (*model.StaffRecord, error) {
	if err := s.cache.Err(); err != nil {
		return nil, err
	}
	r, ok := s.cache.StaffByID(id)
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

// All returns every staff member ordered by name (locale-aware). A cache
// that stopped syncing is reported instead of served.
func (s *StaffService) All() ([]model.StaffRecord, error) {
	if err := s.cache.Err(); err != nil {
		return nil, err
	}
	return s.cache.Staff(), nil
}

func foldName(name string) string {
	return cases.Fold().String(name)
}
