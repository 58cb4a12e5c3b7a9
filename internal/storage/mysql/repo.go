// Package mysql registers the "mysql" storage kind using
// github.com/go-sql-driver/mysql. Array columns are JSON columns.
package mysql

import (
	"context"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"pgarray/internal/ddl"
	"pgarray/internal/storage"
	"pgarray/internal/storage/sqldb"
)

// normalizeDSN parses dsn and turns on the options the loader relies on:
// parseTime for DATE/DATETIME columns and utf8mb4 for text.
func normalizeDSN(dsn string) (string, error) {
	c, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("mysql dsn: %w", err)
	}
	c.ParseTime = true
	if c.Params == nil {
		c.Params = map[string]string{}
	}
	if _, ok := c.Params["charset"]; !ok {
		c.Params["charset"] = "utf8mb4"
	}
	return c.FormatDSN(), nil
}

// NewRepository connects to MySQL and returns the repository plus its Close
// function.
func NewRepository(ctx context.Context, cfg sqldb.Config) (*sqldb.Repository, func(), error) {
	dsn, err := normalizeDSN(cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	cfg.DSN = dsn
	r, err := sqldb.Open(ctx, "mysql", cfg, ddl.MySQL)
	if err != nil {
		return nil, nil, err
	}
	return r, r.Close, nil
}

// newRepository is a test hook that points to NewRepository by default.
var newRepository = NewRepository

type wrappedRepo struct {
	*sqldb.Repository
	closeFn func()
}

var _ storage.Repository = (*wrappedRepo)(nil)

// Close closes the underlying connection pool.
func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

func init() {
	storage.Register("mysql", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
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
