package session

import (
	"context"
	"sync"

	"github.com/dpup/gatehouse/auth"
	"github.com/dpup/gatehouse/errors"
)

// MemoryStore keeps records in a map. Sessions are lost on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
	policy  policy
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{
		records: make(map[string]Record),
		policy:  newPolicy(opts),
	}
}

func (s *MemoryStore) Create(_ context.Context, p auth.Principal) (Record, error) {
	r, err := s.policy.newRecord(p)
	if err != nil {
		return Record{}, err
	}
	s.mu.Lock()
	s.records[r.ID] = r
	s.mu.Unlock()
	return r, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Record, error) {
	s.mu.RLock()
	r, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return Record{}, errors.Mark(ErrNotFound, 0)
	}
	if s.policy.expired(r, s.policy.now()) {
		s.remove(id, r)
		return Record{}, errors.Mark(ErrNotFound, 0)
	}
	return r, nil
}

func (s *MemoryStore) Touch(_ context.Context, id string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	now := s.policy.now().UTC()
	if !ok || s.policy.expired(r, now) {
		delete(s.records, id)
		return Record{}, errors.Mark(ErrNotFound, 0)
	}
	r.LastAccessedAt = now
	r.ExpiresAt = s.policy.expiry(r.CreatedAt, now)
	s.records[id] = r
	return r, nil
}

func (s *MemoryStore) Replace(_ context.Context, id string, p auth.Principal) (Record, error) {
	if p.IsZero() {
		return Record{}, errors.Mark(ErrUninitialized, 0)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	now := s.policy.now().UTC()
	if !ok || s.policy.expired(r, now) {
		delete(s.records, id)
		return Record{}, errors.Mark(ErrNotFound, 0)
	}
	r.Principal = p
	r.LastAccessedAt = now
	r.ExpiresAt = s.policy.expiry(r.CreatedAt, now)
	s.records[id] = r
	return r, nil
}

func (s *MemoryStore) Destroy(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.records, id)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) DeleteExpired(_ context.Context) (int, error) {
	now := s.policy.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, r := range s.records {
		if s.policy.expired(r, now) {
			delete(s.records, id)
			n++
		}
	}
	return n, nil
}

// Len returns the number of records held, live or expired.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// remove deletes id only if it still holds r, so a concurrent Replace is not
// lost.
func (s *MemoryStore) remove(id string, r Record) {
	s.mu.Lock()
	if cur, ok := s.records[id]; ok && cur.ExpiresAt.Equal(r.ExpiresAt) {
		delete(s.records, id)
	}
	s.mu.Unlock()
}
