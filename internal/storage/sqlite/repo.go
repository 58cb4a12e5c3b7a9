// Package sqlite registers the "sqlite" storage kind, backed by the pure-Go
// modernc.org/sqlite driver. Array columns are stored as JSON text.
package sqlite

import (
	"context"
	"fmt"

	_ "modernc.org/sqlite"

	"pgarray/internal/ddl"
	"pgarray/internal/storage"
	"pgarray/internal/storage/sqldb"
)

// NewRepository opens a SQLite database. DSN is passed to the driver as is,
// for example "file:pgarray.db?_pragma=busy_timeout(5000)" or "pgarray.db".
//
// SQLite serializes writers, so the pool is limited to one connection; this
// also keeps ":memory:" databases alive across statements.
func NewRepository(ctx context.Context, cfg sqldb.Config) (*sqldb.Repository, func(), error) {
	r, err := sqldb.Open(ctx, "sqlite", cfg, ddl.SQLite)
	if err != nil {
		return nil, nil, err
	}
	r.DB().SetMaxOpenConns(1)

	if _, err := r.DB().ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
		r.Close()
		return nil, nil, fmt.Errorf("sqlite: pragma: %w", err)
	}
	return r, r.Close, nil
}

// newRepository is a test hook that points to NewRepository by default.
var newRepository = NewRepository

// wrappedRepo adds the Close function returned by NewRepository.
type wrappedRepo struct {
	*sqldb.Repository
	closeFn func()
}

var _ storage.Repository = (*wrappedRepo)(nil)

// Close implements storage.Repository.Close.
func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

func init() {
	storage.Register("sqlite", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, sqldb.Config{
			DSN:     cfg.DSN,
			Table:   cfg.Table,
			Columns: cfg.Columns,
		})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})
}
