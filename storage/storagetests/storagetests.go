// Package storagetests provides common acceptance tests for
// storage.Repository implementations.
package storagetests

import (
	"context"
	"testing"
	"time"

	"github.com/dpup/gatehouse/errors"
	"github.com/dpup/gatehouse/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Backends differ in timestamp precision, the suite works in milliseconds.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func assertSameTime(t *testing.T, expected, actual time.Time, field string) {
	t.Helper()
	assert.True(t, expected.Equal(actual), "%s: expected %s, got %s", field, expected, actual)
}

func sessionRow(id string, ts time.Time) storage.SessionRow {
	return storage.SessionRow{
		ID:        id,
		Principal: []byte(`{"subject":"g-123"}`),
		CreatedAt: ts,
		LastSeen:  ts,
		ExpiresAt: ts.Add(time.Hour),
	}
}

func userRow(id, subject string, ts time.Time) storage.UserRow {
	return storage.UserRow{
		ID:          id,
		Provider:    "google",
		Subject:     subject,
		Email:       subject + "@example.com",
		Name:        "Ada Lovelace",
		Picture:     "https://example.com/ada.png",
		CreatedAt:   ts,
		UpdatedAt:   ts,
		LastLoginAt: ts,
	}
}

//nolint:funlen // This is a test helper.
func Run(t *testing.T, newRepo func() storage.Repository) {
	ctx := context.Background()

	t.Run("TestPing", func(t *testing.T) {
		require.NoError(t, newRepo().Ping(ctx))
	})

	t.Run("TestSessionRoundTrip", func(t *testing.T) {
		repo := newRepo()
		ts := now()
		row := sessionRow("s1", ts)

		require.NoError(t, repo.InsertSession(ctx, row))

		got, err := repo.GetSession(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, "s1", got.ID)
		assert.JSONEq(t, string(row.Principal), string(got.Principal))
		assertSameTime(t, row.CreatedAt, got.CreatedAt, "CreatedAt")
		assertSameTime(t, row.LastSeen, got.LastSeen, "LastSeen")
		assertSameTime(t, row.ExpiresAt, got.ExpiresAt, "ExpiresAt")
	})

	t.Run("TestSessionInsertDuplicate", func(t *testing.T) {
		repo := newRepo()
		ts := now()
		require.NoError(t, repo.InsertSession(ctx, sessionRow("s1", ts)))

		err := repo.InsertSession(ctx, sessionRow("s1", ts))
		assert.ErrorIs(t, err, storage.ErrAlreadyExists)
	})

	t.Run("TestSessionInsertInvalid", func(t *testing.T) {
		repo := newRepo()
		row := sessionRow("s1", now())
		row.Principal = nil

		err := repo.InsertSession(ctx, row)
		assert.ErrorIs(t, err, storage.ErrInvalidRow)
	})

	t.Run("TestSessionGetMissing", func(t *testing.T) {
		_, err := newRepo().GetSession(ctx, "nope")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("TestSessionUpdate", func(t *testing.T) {
		repo := newRepo()
		ts := now()
		require.NoError(t, repo.InsertSession(ctx, sessionRow("s1", ts)))

		later := ts.Add(time.Minute)
		require.NoError(t, repo.UpdateSession(ctx, storage.SessionRow{
			ID:        "s1",
			Principal: []byte(`{"subject":"g-123","userId":"u1"}`),
			CreatedAt: later, // Ignored.
			LastSeen:  later,
			ExpiresAt: later.Add(time.Hour),
		}))

		got, err := repo.GetSession(ctx, "s1")
		require.NoError(t, err)
		assert.JSONEq(t, `{"subject":"g-123","userId":"u1"}`, string(got.Principal))
		assertSameTime(t, ts, got.CreatedAt, "CreatedAt")
		assertSameTime(t, later, got.LastSeen, "LastSeen")
		assertSameTime(t, later.Add(time.Hour), got.ExpiresAt, "ExpiresAt")

		err = repo.UpdateSession(ctx, sessionRow("missing", ts))
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("TestSessionTouch", func(t *testing.T) {
		repo := newRepo()
		ts := now()
		require.NoError(t, repo.InsertSession(ctx, sessionRow("s1", ts)))

		later := ts.Add(10 * time.Minute)
		require.NoError(t, repo.TouchSession(ctx, "s1", later, later.Add(time.Hour)))

		got, err := repo.GetSession(ctx, "s1")
		require.NoError(t, err)
		assertSameTime(t, later, got.LastSeen, "LastSeen")
		assertSameTime(t, later.Add(time.Hour), got.ExpiresAt, "ExpiresAt")

		err = repo.TouchSession(ctx, "missing", later, later)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("TestSessionDelete", func(t *testing.T) {
		repo := newRepo()
		require.NoError(t, repo.InsertSession(ctx, sessionRow("s1", now())))

		require.NoError(t, repo.DeleteSession(ctx, "s1"))
		_, err := repo.GetSession(ctx, "s1")
		assert.ErrorIs(t, err, storage.ErrNotFound)

		assert.NoError(t, repo.DeleteSession(ctx, "s1"), "deleting twice is fine")
	})

	t.Run("TestDeleteExpiredSessions", func(t *testing.T) {
		repo := newRepo()
		ts := now()

		expired := sessionRow("old", ts.Add(-2*time.Hour))
		boundary := sessionRow("boundary", ts.Add(-time.Hour))
		fresh := sessionRow("fresh", ts)
		for _, r := range []storage.SessionRow{expired, boundary, fresh} {
			require.NoError(t, repo.InsertSession(ctx, r))
		}

		n, err := repo.DeleteExpiredSessions(ctx, ts)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		_, err = repo.GetSession(ctx, "fresh")
		assert.NoError(t, err)
		_, err = repo.GetSession(ctx, "boundary")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("TestUserRoundTrip", func(t *testing.T) {
		repo := newRepo()
		row := userRow("u1", "g-123", now())
		require.NoError(t, repo.InsertUser(ctx, row))

		got, err := repo.GetUser(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, row.Provider, got.Provider)
		assert.Equal(t, row.Subject, got.Subject)
		assert.Equal(t, row.Email, got.Email)
		assert.Equal(t, row.Name, got.Name)
		assert.Equal(t, row.Picture, got.Picture)
		assertSameTime(t, row.CreatedAt, got.CreatedAt, "CreatedAt")
		assertSameTime(t, row.LastLoginAt, got.LastLoginAt, "LastLoginAt")

		byIdentity, err := repo.FindUserByIdentity(ctx, "google", "g-123")
		require.NoError(t, err)
		assert.Equal(t, "u1", byIdentity.ID)
	})

	t.Run("TestUserMissing", func(t *testing.T) {
		repo := newRepo()
		_, err := repo.GetUser(ctx, "nope")
		assert.ErrorIs(t, err, storage.ErrNotFound)

		_, err = repo.FindUserByIdentity(ctx, "google", "nope")
		assert.ErrorIs(t, err, storage.ErrNotFound)
		assert.Equal(t, "NotFound", errors.Code(err).String())
	})

	t.Run("TestUserIdentityUnique", func(t *testing.T) {
		repo := newRepo()
		ts := now()
		require.NoError(t, repo.InsertUser(ctx, userRow("u1", "g-123", ts)))

		err := repo.InsertUser(ctx, userRow("u2", "g-123", ts))
		assert.ErrorIs(t, err, storage.ErrAlreadyExists, "same identity")

		err = repo.InsertUser(ctx, userRow("u1", "g-456", ts))
		assert.ErrorIs(t, err, storage.ErrAlreadyExists, "same id")

		assert.NoError(t, repo.InsertUser(ctx, userRow("u3", "g-456", ts)))
	})

	t.Run("TestUserInsertInvalid", func(t *testing.T) {
		row := userRow("u1", "", now())
		err := newRepo().InsertUser(ctx, row)
		assert.ErrorIs(t, err, storage.ErrInvalidRow)
	})

	t.Run("TestUserUpdate", func(t *testing.T) {
		repo := newRepo()
		ts := now()
		require.NoError(t, repo.InsertUser(ctx, userRow("u1", "g-123", ts)))

		later := ts.Add(time.Hour)
		update := userRow("u1", "g-123", later)
		update.Name = "Augusta Ada King"
		update.Email = "ada@example.org"
		require.NoError(t, repo.UpdateUser(ctx, update))

		got, err := repo.GetUser(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "Augusta Ada King", got.Name)
		assert.Equal(t, "ada@example.org", got.Email)
		assertSameTime(t, ts, got.CreatedAt, "CreatedAt")
		assertSameTime(t, later, got.UpdatedAt, "UpdatedAt")
		assertSameTime(t, later, got.LastLoginAt, "LastLoginAt")

		err = repo.UpdateUser(ctx, userRow("missing", "g-999", later))
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}
