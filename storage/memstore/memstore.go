// Package memstore implements storage.Repository in memory. Data does not
// survive a restart, useful for development and tests.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/dpup/gatehouse/errors"
	"github.com/dpup/gatehouse/storage"
)

// New returns a transient, in-memory repository.
func New() storage.Repository {
	return &store{
		sessions:   map[string]storage.SessionRow{},
		users:      map[string]storage.UserRow{},
		identities: map[string]string{},
	}
}

type store struct {
	mu       sync.RWMutex
	sessions map[string]storage.SessionRow
	users    map[string]storage.UserRow
	// identities[provider:subject] = user id
	identities map[string]string
}

func identityKey(provider, subject string) string {
	return provider + ":" + subject
}

func (s *store) InsertSession(_ context.Context, row storage.SessionRow) error {
	if err := row.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[row.ID]; ok {
		return errors.Mark(storage.ErrAlreadyExists, 0)
	}
	s.sessions[row.ID] = copySession(row)
	return nil
}

func (s *store) GetSession(_ context.Context, id string) (storage.SessionRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.sessions[id]
	if !ok {
		return storage.SessionRow{}, errors.Mark(storage.ErrNotFound, 0)
	}
	return copySession(row), nil
}

func (s *store) UpdateSession(_ context.Context, row storage.SessionRow) error {
	if err := row.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.sessions[row.ID]
	if !ok {
		return errors.Mark(storage.ErrNotFound, 0)
	}
	existing.Principal = append([]byte(nil), row.Principal...)
	existing.LastSeen = row.LastSeen
	existing.ExpiresAt = row.ExpiresAt
	s.sessions[row.ID] = existing
	return nil
}

func (s *store) TouchSession(_ context.Context, id string, lastSeen, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.sessions[id]
	if !ok {
		return errors.Mark(storage.ErrNotFound, 0)
	}
	existing.LastSeen = lastSeen
	existing.ExpiresAt = expiresAt
	s.sessions[id] = existing
	return nil
}

func (s *store) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func (s *store) DeleteExpiredSessions(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, row := range s.sessions {
		if !row.ExpiresAt.After(now) {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}

func (s *store) InsertUser(_ context.Context, row storage.UserRow) error {
	if err := row.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := identityKey(row.Provider, row.Subject)
	if _, ok := s.users[row.ID]; ok {
		return errors.Mark(storage.ErrAlreadyExists, 0)
	}
	if _, ok := s.identities[key]; ok {
		return errors.Mark(storage.ErrAlreadyExists, 0)
	}
	s.users[row.ID] = row
	s.identities[key] = row.ID
	return nil
}

func (s *store) GetUser(_ context.Context, id string) (storage.UserRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.users[id]
	if !ok {
		return storage.UserRow{}, errors.Mark(storage.ErrNotFound, 0)
	}
	return row, nil
}

func (s *store) FindUserByIdentity(_ context.Context, provider, subject string) (storage.UserRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.identities[identityKey(provider, subject)]
	if !ok {
		return storage.UserRow{}, errors.Mark(storage.ErrNotFound, 0)
	}
	return s.users[id], nil
}

func (s *store) UpdateUser(_ context.Context, row storage.UserRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.users[row.ID]
	if !ok {
		return errors.Mark(storage.ErrNotFound, 0)
	}
	// Identity and creation time are immutable.
	existing.Email = row.Email
	existing.Name = row.Name
	existing.Picture = row.Picture
	existing.UpdatedAt = row.UpdatedAt
	existing.LastLoginAt = row.LastLoginAt
	s.users[row.ID] = existing
	return nil
}

func (s *store) Ping(context.Context) error { return nil }

func (s *store) Close() error { return nil }

func copySession(row storage.SessionRow) storage.SessionRow {
	row.Principal = append([]byte(nil), row.Principal...)
	return row
}
