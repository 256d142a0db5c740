// Package storage defines the persistence contracts used by gatehouse: a
// table of server side sessions and a table of local users. Backends live in
// sub-packages (memstore, sqlite, postgres) and all pass the acceptance suite
// in storagetests.
//
// Rows are plain values. Callers own the encoding of anything opaque, the
// session principal for example is stored as JSON produced by the session
// package.
package storage

import (
	"context"
	"time"

	"github.com/dpup/gatehouse/errors"
	"google.golang.org/grpc/codes"
)

var (
	// Returned when a record does not exist.
	ErrNotFound = errors.NewC("record not found", codes.NotFound)

	// Returned when a record conflicts with an existing key.
	ErrAlreadyExists = errors.NewC("record already exists", codes.AlreadyExists)

	// Returned when a row is missing fields the schema requires.
	ErrInvalidRow = errors.NewC("invalid row", codes.InvalidArgument)
)

// SessionRow is the persisted form of a session.
type SessionRow struct {
	ID        string
	Principal []byte
	CreatedAt time.Time
	LastSeen  time.Time
	ExpiresAt time.Time
}

// Validate reports rows that can not be written.
func (r SessionRow) Validate() error {
	if r.ID == "" {
		return errors.Mark(ErrInvalidRow, 0).Append("session id is required")
	}
	if len(r.Principal) == 0 {
		return errors.Mark(ErrInvalidRow, 0).Append("session principal is required")
	}
	return nil
}

// SessionRepository persists sessions.
type SessionRepository interface {
	// InsertSession writes a new row, ErrAlreadyExists if the id is taken.
	InsertSession(ctx context.Context, row SessionRow) error

	// GetSession returns the row with the given id, or ErrNotFound. Expiry is
	// not checked here.
	GetSession(ctx context.Context, id string) (SessionRow, error)

	// UpdateSession overwrites the principal, last seen and expiry columns of
	// an existing row, or returns ErrNotFound.
	UpdateSession(ctx context.Context, row SessionRow) error

	// TouchSession moves last seen and expiry forward, or returns ErrNotFound.
	TouchSession(ctx context.Context, id string, lastSeen, expiresAt time.Time) error

	// DeleteSession removes a row. Deleting a missing row is not an error.
	DeleteSession(ctx context.Context, id string) error

	// DeleteExpiredSessions removes rows that expired at or before now and
	// returns how many were removed.
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error)
}

// UserRow is the persisted form of a local user. (Provider, Subject) is
// unique.
type UserRow struct {
	ID          string
	Provider    string
	Subject     string
	Email       string
	Name        string
	Picture     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastLoginAt time.Time
}

// Validate reports rows that can not be written.
func (r UserRow) Validate() error {
	switch {
	case r.ID == "":
		return errors.Mark(ErrInvalidRow, 0).Append("user id is required")
	case r.Provider == "" || r.Subject == "":
		return errors.Mark(ErrInvalidRow, 0).Append("user identity is required")
	}
	return nil
}

// UserRepository persists local users.
type UserRepository interface {
	// InsertUser writes a new user, ErrAlreadyExists if the id or identity is
	// taken.
	InsertUser(ctx context.Context, row UserRow) error

	// GetUser returns a user by id, or ErrNotFound.
	GetUser(ctx context.Context, id string) (UserRow, error)

	// FindUserByIdentity returns the user linked to a provider subject, or
	// ErrNotFound.
	FindUserByIdentity(ctx context.Context, provider, subject string) (UserRow, error)

	// UpdateUser overwrites the mutable columns of an existing user, or returns
	// ErrNotFound.
	UpdateUser(ctx context.Context, row UserRow) error
}

// Repository is implemented by every backend.
type Repository interface {
	SessionRepository
	UserRepository

	// Ping checks the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases connections held by the backend.
	Close() error
}
