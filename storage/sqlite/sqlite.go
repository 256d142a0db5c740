// Package sqlite provides a SQLite implementation of storage.Repository.
//
// Examples:
//
//	repo := sqlite.New("file:gatehouse.db?cache=shared")
//
//	repo := sqlite.New(":memory:", sqlite.WithPrefix("test_"))
//
// Timestamps are stored as unix nanoseconds so that expiry comparisons are
// numeric.
//
//nolint:gosec // Reports on G202. SQL string concat used to parameterize table.
package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/dpup/gatehouse/errors"
	"github.com/dpup/gatehouse/storage"

	"github.com/mattn/go-sqlite3"
)

// Option is a functional option for configuring the store.
type Option func(*store)

// WithPrefix overides the default prefix for table names.
func WithPrefix(prefix string) Option {
	return func(s *store) {
		s.prefix = prefix
	}
}

// New returns a repository backed by sqlite, tables are created
// optimistically on initialization. Any errors are considered non-recoverable
// and will panic, use SafeNew to handle them.
func New(conn string, opts ...Option) storage.Repository {
	s, err := SafeNew(conn, opts...)
	if err != nil {
		panic(err.Error())
	}
	return s
}

// SafeNew is like New but returns errors instead of panicking.
func SafeNew(conn string, opts ...Option) (storage.Repository, error) {
	db, err := sql.Open("sqlite3", conn)
	if err != nil {
		return nil, errors.Errorf("failed to open sqlite connection: %w", err)
	}
	// Each connection to :memory: is a separate database.
	if strings.Contains(conn, ":memory:") || strings.Contains(conn, "mode=memory") {
		db.SetMaxOpenConns(1)
	}
	s := &store{
		db:     db,
		prefix: "gatehouse_",
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.ensureTables(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

type store struct {
	db     *sql.DB
	prefix string
}

func (s *store) sessions() string { return s.prefix + "sessions" }
func (s *store) users() string    { return s.prefix + "users" }

func (s *store) InsertSession(ctx context.Context, row storage.SessionRow) error {
	if err := row.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO "+s.sessions()+" (id, principal, created_at, last_seen, expires_at) VALUES (?, ?, ?, ?, ?)",
		row.ID, row.Principal, toNanos(row.CreatedAt), toNanos(row.LastSeen), toNanos(row.ExpiresAt))
	return translateError(err)
}

func (s *store) GetSession(ctx context.Context, id string) (storage.SessionRow, error) {
	var row storage.SessionRow
	var createdAt, lastSeen, expiresAt int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id, principal, created_at, last_seen, expires_at FROM "+s.sessions()+" WHERE id = ?", id).
		Scan(&row.ID, &row.Principal, &createdAt, &lastSeen, &expiresAt)
	if err != nil {
		return storage.SessionRow{}, translateError(err)
	}
	row.CreatedAt = fromNanos(createdAt)
	row.LastSeen = fromNanos(lastSeen)
	row.ExpiresAt = fromNanos(expiresAt)
	return row, nil
}

func (s *store) UpdateSession(ctx context.Context, row storage.SessionRow) error {
	if err := row.Validate(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE "+s.sessions()+" SET principal = ?, last_seen = ?, expires_at = ? WHERE id = ?",
		row.Principal, toNanos(row.LastSeen), toNanos(row.ExpiresAt), row.ID)
	return expectAffected(res, err)
}

func (s *store) TouchSession(ctx context.Context, id string, lastSeen, expiresAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE "+s.sessions()+" SET last_seen = ?, expires_at = ? WHERE id = ?",
		toNanos(lastSeen), toNanos(expiresAt), id)
	return expectAffected(res, err)
}

func (s *store) DeleteSession(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM "+s.sessions()+" WHERE id = ?", id)
	return translateError(err)
}

func (s *store) DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM "+s.sessions()+" WHERE expires_at <= ?", toNanos(now))
	if err != nil {
		return 0, translateError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, translateError(err)
	}
	return int(n), nil
}

func (s *store) InsertUser(ctx context.Context, row storage.UserRow) error {
	if err := row.Validate(); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return translateError(err)
	}
	_, err = prepareAndExec(ctx, tx,
		"INSERT INTO "+s.users()+` (id, provider, subject, email, name, picture, created_at, updated_at, last_login_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.ID, row.Provider, row.Subject, row.Email, row.Name, row.Picture,
		toNanos(row.CreatedAt), toNanos(row.UpdatedAt), toNanos(row.LastLoginAt))
	if err != nil {
		tx.Rollback()
		return translateError(err)
	}
	if err := tx.Commit(); err != nil {
		tx.Rollback()
		return translateError(err)
	}
	return nil
}

func (s *store) GetUser(ctx context.Context, id string) (storage.UserRow, error) {
	return s.queryUser(ctx, "WHERE id = ?", id)
}

func (s *store) FindUserByIdentity(ctx context.Context, provider, subject string) (storage.UserRow, error) {
	return s.queryUser(ctx, "WHERE provider = ? AND subject = ?", provider, subject)
}

func (s *store) UpdateUser(ctx context.Context, row storage.UserRow) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE "+s.users()+` SET email = ?, name = ?, picture = ?, updated_at = ?, last_login_at = ?
			WHERE id = ?`,
		row.Email, row.Name, row.Picture, toNanos(row.UpdatedAt), toNanos(row.LastLoginAt), row.ID)
	return expectAffected(res, err)
}

func (s *store) Ping(ctx context.Context) error {
	return errors.MaybeWrap(s.db.PingContext(ctx), 0)
}

func (s *store) Close() error {
	return s.db.Close()
}

func (s *store) queryUser(ctx context.Context, where string, args ...any) (storage.UserRow, error) {
	var row storage.UserRow
	var createdAt, updatedAt, lastLoginAt int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id, provider, subject, email, name, picture, created_at, updated_at, last_login_at FROM "+
			s.users()+" "+where, args...).
		Scan(&row.ID, &row.Provider, &row.Subject, &row.Email, &row.Name, &row.Picture,
			&createdAt, &updatedAt, &lastLoginAt)
	if err != nil {
		return storage.UserRow{}, translateError(err)
	}
	row.CreatedAt = fromNanos(createdAt)
	row.UpdatedAt = fromNanos(updatedAt)
	row.LastLoginAt = fromNanos(lastLoginAt)
	return row, nil
}

func (s *store) ensureTables() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS ` + s.sessions() + ` (
		id TEXT PRIMARY KEY,
		principal BLOB NOT NULL,
		created_at INTEGER NOT NULL,
		last_seen INTEGER NOT NULL,
		expires_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS ` + s.sessions() + `_expires_at ON ` + s.sessions() + ` (expires_at);
	CREATE TABLE IF NOT EXISTS ` + s.users() + ` (
		id TEXT PRIMARY KEY,
		provider TEXT NOT NULL,
		subject TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL DEFAULT '',
		picture TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		last_login_at INTEGER NOT NULL,
		UNIQUE (provider, subject)
	);`)
	if err != nil {
		return errors.Errorf("failed to create tables: %w", err)
	}
	return nil
}

func expectAffected(res sql.Result, err error) error {
	if err != nil {
		return translateError(err)
	}
	if i, err := res.RowsAffected(); i == 0 || err != nil {
		return errors.Mark(storage.ErrNotFound, 1)
	}
	return nil
}

func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return errors.Mark(storage.ErrNotFound, 1)
	}
	var sqlErr sqlite3.Error
	if errors.As(err, &sqlErr) {
		switch sqlErr.Code {
		case sqlite3.ErrNotFound:
			return errors.Mark(storage.ErrNotFound, 1)
		case sqlite3.ErrConstraint:
			return errors.Mark(storage.ErrAlreadyExists, 1).Append(sqlErr.Error())
		}
	}
	return errors.MaybeWrap(err, 1)
}

func prepareAndExec(ctx context.Context, tx *sql.Tx, query string, params ...any) (sql.Result, error) {
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}
	defer stmt.Close()
	return stmt.ExecContext(ctx, params...)
}

func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
