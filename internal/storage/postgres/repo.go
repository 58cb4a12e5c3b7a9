// Package postgres registers the "postgres" storage kind, backed by a pgx v5
// pool. Array columns are native PostgreSQL arrays: values arrive as array
// literals and are read back as array literal text.
package postgres

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"pgarray/internal/ddl"
	"pgarray/internal/storage"
)

// Config holds Postgres repository configuration.
type Config struct {
	DSN     string   // connection string for pgxpool
	Table   string   // possibly schema-qualified target table, e.g. "public.articles"
	Columns []string // ordered columns for INSERT and SELECT
}

// Repository is a Postgres-backed implementation of storage.Repository.
type Repository struct {
	pool *pgxpool.Pool
	cfg  Config
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Repository{pool: pool, cfg: cfg}, pool.Close, nil
}

// Dialect implements storage.Repository.
func (r *Repository) Dialect() ddl.Dialect { return ddl.Postgres }

// insertSQL renders the parameterized single-row INSERT queued per row.
func insertSQL(table string, columns []string) string {
	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		pgFQN(table),
		strings.Join(mapIdent(columns), ", "),
		ddl.Postgres.Placeholders(len(columns)),
	)
}

// selectSQL renders the full-table read; array columns are cast to text so
// they come back as array literals regardless of element type or depth.
func selectSQL(table string, q storage.Query) string {
	cols := make([]string, len(q.Columns))
	for i, c := range q.Columns {
		cols[i] = pgIdent(c)
		if q.IsArray(c) {
			cols[i] += "::text"
		}
	}
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), pgFQN(table))
}

// queryArgs resolves driver.Valuer arguments (array bindings) to their
// literal text. pgx sends string arguments in text format, which lets the
// server parse the literal with the column's array type.
func queryArgs(row []any) ([]any, error) {
	args := make([]any, len(row))
	for i, v := range row {
		dv, ok := v.(driver.Valuer)
		if !ok {
			args[i] = v
			continue
		}
		val, err := dv.Value()
		if err != nil {
			return nil, err
		}
		args[i] = val
	}
	return args, nil
}

// CopyFrom sends one INSERT per row in a single pgx batch.
func (r *Repository) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("postgres: CopyFrom: columns must not be empty")
	}
	if len(rows) == 0 {
		return 0, nil
	}

	stmt := insertSQL(r.cfg.Table, columns)
	batch := &pgx.Batch{}
	for i, row := range rows {
		if len(row) != len(columns) {
			return 0, fmt.Errorf("postgres: CopyFrom: row length %d != columns length %d", len(row), len(columns))
		}
		args, err := queryArgs(row)
		if err != nil {
			return 0, fmt.Errorf("postgres: row %d: %w", i, err)
		}
		batch.Queue(stmt, args...)
	}

	br := r.pool.SendBatch(ctx, batch)
	var inserted int64
	for i := range rows {
		tag, err := br.Exec()
		if err != nil {
			_ = br.Close()
			return 0, fmt.Errorf("postgres: insert row %d: %w", i, describe(err))
		}
		inserted += tag.RowsAffected()
	}
	if err := br.Close(); err != nil {
		return 0, fmt.Errorf("postgres: batch: %w", describe(err))
	}
	return inserted, nil
}

// describe surfaces the server's detail and SQLSTATE when there is one.
func describe(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Detail != "" {
		return fmt.Errorf("%w (%s; %s)", err, pgErr.Detail, pgErr.SQLState())
	}
	return err
}

// Exec runs one statement on the pool.
func (r *Repository) Exec(ctx context.Context, sql string) error {
	if strings.TrimSpace(sql) == "" {
		return nil
	}
	if _, err := r.pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("postgres: exec: %w", describe(err))
	}
	return nil
}

// Rows streams the table through fn using pgx's own value decoding for
// scalar columns.
func (r *Repository) Rows(ctx context.Context, q storage.Query, fn func([]any) error) error {
	if len(q.Columns) == 0 {
		return fmt.Errorf("postgres: Rows: columns must not be empty")
	}
	rows, err := r.pool.Query(ctx, selectSQL(r.cfg.Table, q))
	if err != nil {
		return fmt.Errorf("postgres: query: %w", describe(err))
	}
	defer rows.Close()

	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return fmt.Errorf("postgres: values: %w", err)
		}
		if err := fn(vals); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("postgres: rows: %w", describe(err))
	}
	return nil
}

// pgIdent quotes an identifier.
func pgIdent(id string) string { return ddl.Postgres.QuoteIdent(id) }

// pgFQN quotes a possibly schema-qualified name like "public.articles" to
// "public"."articles".
func pgFQN(name string) string { return ddl.Postgres.QuoteFQN(name) }

// mapIdent maps a list of column names to their quoted forms.
func mapIdent(cols []string) []string { return ddl.Postgres.QuoteAll(cols) }
