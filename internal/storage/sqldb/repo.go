// Package sqldb implements storage.Repository on top of database/sql. The
// sqlite, mysql and mssql backends share it and differ only in driver,
// DSN handling and dialect.
//
// Rows go in through a prepared INSERT inside one transaction per batch;
// none of these drivers has a COPY-style API reachable through database/sql
// except MSSQL, which overrides CopyFrom with its bulk copy.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"pgarray/internal/ddl"
	"pgarray/internal/storage"
)

// Config holds the database/sql repository configuration.
type Config struct {
	DSN     string
	Table   string
	Columns []string
}

// Repository is a database/sql-backed storage.Repository.
type Repository struct {
	db      *sql.DB
	cfg     Config
	dialect ddl.Dialect
}

var _ storage.Repository = (*Repository)(nil)

// Open opens driverName with cfg.DSN and pings it with a short timeout so
// bad DSNs fail fast.
func Open(ctx context.Context, driverName string, cfg Config, d ddl.Dialect) (*Repository, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("%s: DSN must not be empty", d.Name)
	}
	db, err := sql.Open(driverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%s: open: %w", d.Name, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: ping: %w", d.Name, err)
	}
	return New(db, cfg, d), nil
}

// New wraps an already open *sql.DB.
func New(db *sql.DB, cfg Config, d ddl.Dialect) *Repository {
	return &Repository{db: db, cfg: cfg, dialect: d}
}

// DB exposes the underlying pool.
func (r *Repository) DB() *sql.DB { return r.db }

// Table returns the quoted table name.
func (r *Repository) Table() string { return r.dialect.QuoteFQN(r.cfg.Table) }

// Dialect implements storage.Repository.
func (r *Repository) Dialect() ddl.Dialect { return r.dialect }

// Close closes the pool.
func (r *Repository) Close() { _ = r.db.Close() }

// InsertSQL renders the single-row INSERT used by CopyFrom.
func (r *Repository) InsertSQL(columns []string) string {
	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		r.Table(),
		strings.Join(r.dialect.QuoteAll(columns), ", "),
		r.dialect.Placeholders(len(columns)),
	)
}

// CopyFrom inserts rows in a single transaction with a prepared statement.
// len(row) must equal len(columns) for every row.
func (r *Repository) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	name := r.dialect.Name
	if len(columns) == 0 {
		return 0, fmt.Errorf("%s: CopyFrom: columns must not be empty", name)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%s: begin tx: %w", name, err)
	}
	stmt, err := tx.PrepareContext(ctx, r.InsertSQL(columns))
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("%s: prepare insert: %w", name, err)
	}
	defer stmt.Close()

	var inserted int64
	for _, row := range rows {
		if len(row) != len(columns) {
			_ = tx.Rollback()
			return 0, fmt.Errorf("%s: CopyFrom: row length %d != columns length %d", name, len(row), len(columns))
		}
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("%s: insert: %w", name, err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%s: commit: %w", name, err)
	}
	return inserted, nil
}

// Exec executes one statement. Blank statements are ignored.
func (r *Repository) Exec(ctx context.Context, sqlText string) error {
	if strings.TrimSpace(sqlText) == "" {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, sqlText); err != nil {
		return fmt.Errorf("%s: exec: %w", r.dialect.Name, err)
	}
	return nil
}

// Rows reads q.Columns from every row of the table. Array columns already
// hold JSON text here, so q.Arrays needs no special handling.
func (r *Repository) Rows(ctx context.Context, q storage.Query, fn func([]any) error) error {
	name := r.dialect.Name
	if len(q.Columns) == 0 {
		return fmt.Errorf("%s: Rows: columns must not be empty", name)
	}
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(r.dialect.QuoteAll(q.Columns), ", "), r.Table())
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("%s: query: %w", name, err)
	}
	defer rows.Close()

	vals := make([]any, len(q.Columns))
	ptrs := make([]any, len(q.Columns))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("%s: scan: %w", name, err)
		}
		if err := fn(vals); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%s: rows: %w", name, err)
	}
	return nil
}
