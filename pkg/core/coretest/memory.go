// Package coretest provides an in-memory core.Repository for tests.
package coretest

import (
	"context"
	"sort"
	"sync"

	"github.com/fieldops/maintsched/pkg/core"
)

// Faults lets tests inject storage misbehaviour.
type Faults struct {
	// DeleteLimit, when positive, caps how many rows one DeleteMany removes.
	DeleteLimit int
	// AfterDeleteMany runs inside DeleteMany with the same unit of work,
	// e.g. to insert a late sibling the way a weakly isolated store could.
	AfterDeleteMany func(tx core.Repository)
	// SaveErr, when set, is returned by every Save.
	SaveErr error
}

// MemoryRepository implements core.Repository over a map.
type MemoryRepository struct {
	mu     sync.Mutex
	store  *memStore
	Faults Faults
}

type memStore struct {
	rows   map[string]*core.Schedule
	faults *Faults
}

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	r := &MemoryRepository{}
	r.store = &memStore{rows: make(map[string]*core.Schedule), faults: &r.Faults}
	return r
}

func (r *MemoryRepository) Migrate(ctx context.Context) error { return nil }

func (r *MemoryRepository) Load(ctx context.Context, id string) (*core.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.Load(ctx, id)
}

func (r *MemoryRepository) LoadFamily(ctx context.Context, anchorID string) ([]*core.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.LoadFamily(ctx, anchorID)
}

func (r *MemoryRepository) CreateBatch(ctx context.Context, schedules []*core.Schedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.CreateBatch(ctx, schedules)
}

func (r *MemoryRepository) Save(ctx context.Context, s *core.Schedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.Save(ctx, s)
}

func (r *MemoryRepository) DeleteMany(ctx context.Context, ids []string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.DeleteMany(ctx, ids)
}

// Atomic runs fn on a copy of the data and swaps it in only on success.
// The repository lock is held for the whole call.
func (r *MemoryRepository) Atomic(ctx context.Context, fn func(tx core.Repository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx := r.store.copy()
	if err := fn(tx); err != nil {
		return err
	}
	r.store.rows = tx.rows
	return nil
}

// Len returns the number of stored schedules.
func (r *MemoryRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.store.rows)
}

// Put stores s as-is, bypassing version checks.
func (r *MemoryRepository) Put(s *core.Schedule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.store.rows[s.ID] = s.Clone()
}

func (m *memStore) copy() *memStore {
	rows := make(map[string]*core.Schedule, len(m.rows))
	for id, s := range m.rows {
		rows[id] = s.Clone()
	}
	return &memStore{rows: rows, faults: m.faults}
}

func (m *memStore) Migrate(ctx context.Context) error { return nil }

func (m *memStore) Load(ctx context.Context, id string) (*core.Schedule, error) {
	s, ok := m.rows[id]
	if !ok {
		return nil, core.ErrScheduleNotFound
	}
	return s.Clone(), nil
}

func (m *memStore) LoadFamily(ctx context.Context, anchorID string) ([]*core.Schedule, error) {
	var out []*core.Schedule
	for _, s := range m.rows {
		if s.AnchorID == anchorID {
			out = append(out, s.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ScheduledDate.Equal(out[j].ScheduledDate) {
			return out[i].ID < out[j].ID
		}
		return out[i].ScheduledDate.Before(out[j].ScheduledDate)
	})
	return out, nil
}

func (m *memStore) CreateBatch(ctx context.Context, schedules []*core.Schedule) error {
	seen := make(map[string]bool, len(schedules))
	for _, s := range schedules {
		if _, exists := m.rows[s.ID]; exists || seen[s.ID] {
			return core.ErrInvalidSchedule
		}
		seen[s.ID] = true
	}
	for _, s := range schedules {
		if s.Version == 0 {
			s.Version = 1
		}
		m.rows[s.ID] = s.Clone()
	}
	return nil
}

func (m *memStore) Save(ctx context.Context, s *core.Schedule) error {
	if m.faults.SaveErr != nil {
		return m.faults.SaveErr
	}
	cur, ok := m.rows[s.ID]
	if !ok {
		return core.ErrScheduleNotFound
	}
	if cur.Version != s.Version {
		return core.ErrVersionConflict
	}
	s.Version++
	m.rows[s.ID] = s.Clone()
	return nil
}

func (m *memStore) DeleteMany(ctx context.Context, ids []string) (int64, error) {
	var n int64
	for _, id := range ids {
		if m.faults.DeleteLimit > 0 && n >= int64(m.faults.DeleteLimit) {
			break
		}
		if _, ok := m.rows[id]; ok {
			delete(m.rows, id)
			n++
		}
	}
	if m.faults.AfterDeleteMany != nil {
		m.faults.AfterDeleteMany(m)
	}
	return n, nil
}

// Atomic on an open unit of work joins it.
func (m *memStore) Atomic(ctx context.Context, fn func(tx core.Repository) error) error {
	return fn(m)
}
