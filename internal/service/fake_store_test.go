package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/travel-availability/internal/model"
	"github.com/iliyamo/travel-availability/internal/queue"
	"github.com/iliyamo/travel-availability/internal/repository"
)

// memStore is an in-memory UnavailabilityStore.  InReferenceTx holds one
// mutex for the whole callback, which is stricter than per-key locking
// but gives the same guarantee to a single reference.
type memStore struct {
	txMu   sync.Mutex
	mu     sync.Mutex
	rows   map[uint64]model.Unavailability
	nextID uint64
	txKeys [][]model.ReferenceKey
	txErr  error // returned by InReferenceTx without running fn
}

func newMemStore() *memStore {
	return &memStore{rows: map[uint64]model.Unavailability{}}
}

func (m *memStore) GetByID(_ context.Context, id uint64) (*model.Unavailability, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.rows[id]
	if !ok {
		return nil, repository.ErrUnavailabilityNotFound
	}
	return &u, nil
}

func (m *memStore) ListByReference(_ context.Context, key model.ReferenceKey) ([]model.Unavailability, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Unavailability{}
	for _, u := range m.rows {
		if u.Key() == key {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDatetime.After(out[j].StartDatetime) })
	return out, nil
}

func (m *memStore) Delete(_ context.Context, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return repository.ErrUnavailabilityNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *memStore) InReferenceTx(_ context.Context, keys []model.ReferenceKey, fn func(tx repository.UnavailabilityTx) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	m.mu.Lock()
	m.txKeys = append(m.txKeys, keys)
	if m.txErr != nil {
		m.mu.Unlock()
		return m.txErr
	}
	snapshot := make(map[uint64]model.Unavailability, len(m.rows))
	for k, v := range m.rows {
		snapshot[k] = v
	}
	m.mu.Unlock()

	if err := fn(&memTx{m: m}); err != nil {
		m.mu.Lock()
		m.rows = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memStore) put(u model.Unavailability) model.Unavailability {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	u.ID = m.nextID
	u.CreatedAt = time.Now().UTC()
	u.UpdatedAt = u.CreatedAt
	m.rows[u.ID] = u
	return u
}

type memTx struct{ m *memStore }

func (t *memTx) GetByID(ctx context.Context, id uint64) (*model.Unavailability, error) {
	return t.m.GetByID(ctx, id)
}

func (t *memTx) HasOverlap(ctx context.Context, key model.ReferenceKey, iv model.Interval, excludeID uint64) (bool, error) {
	found, err := t.FindOverlapping(ctx, key, iv, excludeID)
	return len(found) > 0, err
}

func (t *memTx) FindOverlapping(_ context.Context, key model.ReferenceKey, iv model.Interval, excludeID uint64) ([]model.Unavailability, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	var out []model.Unavailability
	for _, u := range t.m.rows {
		if u.Key() == key && u.ID != excludeID && u.Interval().Overlaps(iv) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (t *memTx) Insert(_ context.Context, u *model.Unavailability) error {
	*u = t.m.put(*u)
	return nil
}

func (t *memTx) Update(_ context.Context, u *model.Unavailability) error {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if _, ok := t.m.rows[u.ID]; !ok {
		return repository.ErrUnavailabilityNotFound
	}
	u.UpdatedAt = time.Now().UTC()
	t.m.rows[u.ID] = *u
	return nil
}

// memSearcher records the last query it was given.
type memSearcher struct {
	last  repository.UnavailabilitySearchQuery
	rows  []repository.UnavailabilityRow
	total int64
}

func (s *memSearcher) Search(_ context.Context, q repository.UnavailabilitySearchQuery) ([]repository.UnavailabilityRow, int64, error) {
	s.last = q
	return s.rows, s.total, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.UnavailabilityChangedEvent
	err    error
}

func (p *recordingPublisher) PublishUnavailabilityChanged(_ context.Context, ev queue.UnavailabilityChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

var errBroker = errors.New("broker down")
