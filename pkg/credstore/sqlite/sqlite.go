// Package sqlite stores credentials in a local SQLite database, for hosts
// without a usable OS keychain (headless desktops, CI runners).
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aussiebroadwan/authsession/pkg/credstore"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type Backend struct {
	db *sql.DB
}

var _ credstore.Backend = (*Backend)(nil)

// Open opens (or creates) the database at dsn and applies migrations.
func Open(dsn string) (*Backend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// One writer keeps SQLITE_BUSY out of the common path
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(context.Background(), `PRAGMA busy_timeout = 5000;`); err != nil {
		_ = db.Close()
		return nil, mapError(err)
	}

	b := &Backend{db: db}
	if err := b.ApplyMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	return b, nil
}

func (b *Backend) Close() error { return b.db.Close() }

func (b *Backend) Add(ctx context.Context, key credstore.Key, data []byte) error {
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO credentials (service, account, data) VALUES (?, ?, ?)`,
		key.Service, key.Account, data,
	)
	return mapError(err)
}

func (b *Backend) Update(ctx context.Context, key credstore.Key, data []byte) error {
	res, err := b.db.ExecContext(ctx,
		`UPDATE credentials SET data = ?, updated_at = CURRENT_TIMESTAMP WHERE service = ? AND account = ?`,
		data, key.Service, key.Account,
	)
	return affectedOne(res, err)
}

func (b *Backend) Get(ctx context.Context, key credstore.Key) ([]byte, error) {
	var data []byte
	err := b.db.QueryRowContext(ctx,
		`SELECT data FROM credentials WHERE service = ? AND account = ?`,
		key.Service, key.Account,
	).Scan(&data)
	if err != nil {
		return nil, mapError(err)
	}
	return data, nil
}

func (b *Backend) Delete(ctx context.Context, key credstore.Key) error {
	res, err := b.db.ExecContext(ctx,
		`DELETE FROM credentials WHERE service = ? AND account = ?`,
		key.Service, key.Account,
	)
	return affectedOne(res, err)
}

func affectedOne(res sql.Result, err error) error {
	if err != nil {
		return mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapError(err)
	}
	if n == 0 {
		return credstore.ErrItemNotFound
	}
	return nil
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return credstore.ErrItemNotFound
	}

	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return credstore.Unknown("sqlite", err)
	}

	code := sqliteErr.Code()
	switch code {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return credstore.ErrDuplicateItem
	}

	// Extended result codes keep the primary code in the low byte
	switch code & 0xff {
	case sqlite3.SQLITE_AUTH, sqlite3.SQLITE_PERM:
		return errors.Join(credstore.ErrUnauthorized, err)
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED, sqlite3.SQLITE_CANTOPEN, sqlite3.SQLITE_READONLY:
		return errors.Join(credstore.ErrUnavailable, err)
	default:
		return credstore.Unknown(fmt.Sprintf("sqlite:%d", code), err)
	}
}
