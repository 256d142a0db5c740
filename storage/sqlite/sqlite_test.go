package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/dpup/gatehouse/errors"
	"github.com/dpup/gatehouse/storage"
	"github.com/dpup/gatehouse/storage/storagetests"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStore(t *testing.T) {
	storagetests.Run(t, func() storage.Repository {
		repo := New(":memory:")
		t.Cleanup(func() { repo.Close() })
		return repo
	})
}

func TestSQLiteStoreOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gatehouse.db")
	ctx := context.Background()

	repo := New("file:"+path, WithPrefix("gh_"))
	ts := time.Now().UTC()
	require.NoError(t, repo.InsertSession(ctx, storage.SessionRow{
		ID:        "s1",
		Principal: []byte(`{}`),
		CreatedAt: ts,
		LastSeen:  ts,
		ExpiresAt: ts.Add(time.Hour),
	}))
	require.NoError(t, repo.Close())

	// Reopening sees the same data, tables are not recreated.
	repo = New("file:"+path, WithPrefix("gh_"))
	defer repo.Close()
	got, err := repo.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, ts.Equal(got.CreatedAt))
}

func TestSafeNewErrors(t *testing.T) {
	_, err := SafeNew("file:" + filepath.Join(t.TempDir(), "missing", "dir", "x.db"))
	assert.Error(t, err)
}

func TestTranslateError(t *testing.T) {
	tests := []struct {
		name     string
		input    error
		expected error
	}{
		{"nil", nil, nil},
		{"no rows", sql.ErrNoRows, storage.ErrNotFound},
		{"constraint", sqlite3.Error{Code: sqlite3.ErrConstraint}, storage.ErrAlreadyExists},
		{"not found", sqlite3.Error{Code: sqlite3.ErrNotFound}, storage.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := translateError(tt.input)
			if tt.expected == nil {
				assert.NoError(t, result)
				return
			}
			assert.ErrorIs(t, result, tt.expected)
		})
	}

	t.Run("other errors are wrapped", func(t *testing.T) {
		result := translateError(sqlite3.Error{Code: sqlite3.ErrBusy})
		var e *errors.Error
		assert.True(t, errors.As(result, &e))
		assert.NotErrorIs(t, result, storage.ErrNotFound)
	})
}
