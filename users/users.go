// Package users keeps a local record for every identity that logs in, keyed
// by provider and subject, and serves the user-scoped routes.
package users

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dpup/gatehouse/auth"
	"github.com/dpup/gatehouse/errors"
	"github.com/dpup/gatehouse/logging"
	"github.com/dpup/gatehouse/storage"
	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
)

// MaxNameLength bounds display names set through the API.
const MaxNameLength = 100

// ErrInvalidName is returned for empty or overlong display names.
var ErrInvalidName = errors.NewC("users: invalid name", codes.InvalidArgument)

// User is a local application user.
type User struct {
	ID          string    `json:"id"`
	Provider    string    `json:"provider"`
	Subject     string    `json:"subject"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	Picture     string    `json:"picture,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	LastLoginAt time.Time `json:"lastLoginAt"`
}

func fromRow(r storage.UserRow) User {
	return User(r)
}

// Option configures the Service.
type Option func(*Service)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// Service links principals to local users.
type Service struct {
	repo storage.UserRepository
	now  func() time.Time
}

// NewService returns a service backed by repo.
func NewService(repo storage.UserRepository, opts ...Option) *Service {
	s := &Service{repo: repo, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Augment finds or creates the user for p and returns p linked to it.
//
// Email and picture follow the provider on every login. The name is taken
// from the provider when the user is created, after that the user's own
// choice wins. A second call with the same principal writes nothing.
func (s *Service) Augment(ctx context.Context, p auth.Principal) (auth.Principal, error) {
	row, err := s.repo.FindUserByIdentity(ctx, p.Provider, p.Subject)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		row, err = s.create(ctx, p)
	case err == nil:
		row, err = s.sync(ctx, row, p)
	}
	if err != nil {
		return p, err
	}
	return p.WithUserID(row.ID), nil
}

func (s *Service) create(ctx context.Context, p auth.Principal) (storage.UserRow, error) {
	now := s.now().UTC()
	row := storage.UserRow{
		ID:          uuid.NewString(),
		Provider:    p.Provider,
		Subject:     p.Subject,
		Email:       p.Email,
		Name:        p.Name,
		Picture:     p.Picture,
		CreatedAt:   now,
		UpdatedAt:   now,
		LastLoginAt: loginTime(p, now),
	}
	err := s.repo.InsertUser(ctx, row)
	if errors.Is(err, storage.ErrAlreadyExists) {
		// A concurrent login for the same identity won the insert.
		return s.repo.FindUserByIdentity(ctx, p.Provider, p.Subject)
	}
	if err != nil {
		return storage.UserRow{}, err
	}
	logging.Infow(ctx, "users: created user", "user.id", row.ID, "auth.provider", p.Provider)
	return row, nil
}

func (s *Service) sync(ctx context.Context, row storage.UserRow, p auth.Principal) (storage.UserRow, error) {
	login := loginTime(p, row.LastLoginAt)
	if row.Email == p.Email && row.Picture == p.Picture && !login.After(row.LastLoginAt) {
		return row, nil
	}
	row.Email = p.Email
	row.Picture = p.Picture
	if login.After(row.LastLoginAt) {
		row.LastLoginAt = login
	}
	row.UpdatedAt = s.now().UTC()
	if err := s.repo.UpdateUser(ctx, row); err != nil {
		return storage.UserRow{}, err
	}
	return row, nil
}

func loginTime(p auth.Principal, fallback time.Time) time.Time {
	if p.AuthTime.IsZero() {
		return fallback
	}
	return p.AuthTime.UTC()
}

// Get returns a user by id.
func (s *Service) Get(ctx context.Context, id string) (User, error) {
	row, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return User{}, err
	}
	return fromRow(row), nil
}

// Rename sets the display name of a user.
func (s *Service) Rename(ctx context.Context, id, name string) (User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return User{}, errors.Mark(ErrInvalidName, 0).WithPublicMessage("name is required")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return User{}, errors.Mark(ErrInvalidName, 0).WithPublicMessage("name is too long")
	}

	row, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return User{}, err
	}
	if row.Name == name {
		return fromRow(row), nil
	}
	row.Name = name
	row.UpdatedAt = s.now().UTC()
	if err := s.repo.UpdateUser(ctx, row); err != nil {
		return User{}, err
	}
	return fromRow(row), nil
}
