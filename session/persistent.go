package session

import (
	"context"
	"encoding/json"

	"github.com/dpup/gatehouse/auth"
	"github.com/dpup/gatehouse/errors"
	"github.com/dpup/gatehouse/logging"
	"github.com/dpup/gatehouse/storage"
)

// PersistentStore keeps records in a database through a
// storage.SessionRepository. The principal is stored as JSON, without the
// provider's tokens.
type PersistentStore struct {
	repo   storage.SessionRepository
	policy policy
}

var _ Store = (*PersistentStore)(nil)

// NewPersistentStore returns a store backed by repo.
func NewPersistentStore(repo storage.SessionRepository, opts ...Option) *PersistentStore {
	return &PersistentStore{repo: repo, policy: newPolicy(opts)}
}

func (s *PersistentStore) Create(ctx context.Context, p auth.Principal) (Record, error) {
	r, err := s.policy.newRecord(p)
	if err != nil {
		return Record{}, err
	}
	row, err := toRow(r)
	if err != nil {
		return Record{}, err
	}
	if err := s.repo.InsertSession(ctx, row); err != nil {
		return Record{}, storeError(err)
	}
	return r, nil
}

func (s *PersistentStore) Get(ctx context.Context, id string) (Record, error) {
	row, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return Record{}, storeError(err)
	}
	if !s.policy.now().Before(row.ExpiresAt) {
		if err := s.repo.DeleteSession(ctx, id); err != nil {
			logging.Debugw(ctx, "session: failed to delete expired session", "error", err)
		}
		return Record{}, errors.Mark(ErrNotFound, 0)
	}
	return fromRow(row)
}

func (s *PersistentStore) Touch(ctx context.Context, id string) (Record, error) {
	r, err := s.Get(ctx, id)
	if err != nil {
		return Record{}, err
	}
	now := s.policy.now().UTC()
	r.LastAccessedAt = now
	r.ExpiresAt = s.policy.expiry(r.CreatedAt, now)
	if err := s.repo.TouchSession(ctx, id, r.LastAccessedAt, r.ExpiresAt); err != nil {
		return Record{}, storeError(err)
	}
	return r, nil
}

func (s *PersistentStore) Replace(ctx context.Context, id string, p auth.Principal) (Record, error) {
	if p.IsZero() {
		return Record{}, errors.Mark(ErrUninitialized, 0)
	}
	r, err := s.Get(ctx, id)
	if err != nil {
		return Record{}, err
	}
	now := s.policy.now().UTC()
	r.Principal = p
	r.LastAccessedAt = now
	r.ExpiresAt = s.policy.expiry(r.CreatedAt, now)
	row, err := toRow(r)
	if err != nil {
		return Record{}, err
	}
	if err := s.repo.UpdateSession(ctx, row); err != nil {
		return Record{}, storeError(err)
	}
	return r, nil
}

func (s *PersistentStore) Destroy(ctx context.Context, id string) error {
	if err := s.repo.DeleteSession(ctx, id); err != nil {
		return storeError(err)
	}
	return nil
}

func (s *PersistentStore) DeleteExpired(ctx context.Context) (int, error) {
	n, err := s.repo.DeleteExpiredSessions(ctx, s.policy.now())
	if err != nil {
		return 0, storeError(err)
	}
	return n, nil
}

func toRow(r Record) (storage.SessionRow, error) {
	p := r.Principal
	p.Tokens = auth.Tokens{}
	b, err := json.Marshal(p)
	if err != nil {
		return storage.SessionRow{}, errors.Mark(ErrSession, 1).Append("encoding principal: " + err.Error())
	}
	return storage.SessionRow{
		ID:        r.ID,
		Principal: b,
		CreatedAt: r.CreatedAt,
		LastSeen:  r.LastAccessedAt,
		ExpiresAt: r.ExpiresAt,
	}, nil
}

func fromRow(row storage.SessionRow) (Record, error) {
	var p auth.Principal
	if err := json.Unmarshal(row.Principal, &p); err != nil {
		return Record{}, errors.Mark(ErrSession, 1).Append("decoding principal: " + err.Error())
	}
	if err := p.Validate(); err != nil {
		return Record{}, errors.Mark(ErrSession, 1).Append("stored principal: " + err.Error())
	}
	return Record{
		ID:             row.ID,
		Principal:      p,
		CreatedAt:      row.CreatedAt,
		LastAccessedAt: row.LastSeen,
		ExpiresAt:      row.ExpiresAt,
	}, nil
}

func storeError(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return errors.Mark(ErrNotFound, 1)
	}
	return errors.Mark(ErrSession, 1).Append(err.Error())
}
