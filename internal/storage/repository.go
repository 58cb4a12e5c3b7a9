// Package storage holds the repository contract every backend implements and
// the registry that opens backends by kind. LoadBatches feeds a repository in
// fixed-size batches.
//
// Backends register themselves from init; import pgarray/internal/storage/all
// to enable every built-in kind.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"

	"pgarray/internal/config"
	"pgarray/internal/ddl"
)

// Config selects and configures a backend.
type Config struct {
	Kind    string
	DSN     string
	Table   string
	Columns []string
}

// ConfigFrom derives a storage Config from a declaration.
func ConfigFrom(d config.Declaration) Config {
	return Config{
		Kind:    d.Storage.Kind,
		DSN:     d.Storage.DSN,
		Table:   d.Table,
		Columns: d.ColumnNames(),
	}
}

// Query describes a full-table read. Arrays names the columns that hold
// array values; backends with native arrays return those as array literal
// text so every backend hands the same shapes to the caller.
type Query struct {
	Columns []string
	Arrays  mapset.Set[string]
}

// IsArray reports whether col is an array column.
func (q Query) IsArray(col string) bool {
	return q.Arrays != nil && q.Arrays.Contains(col)
}

// Repository is implemented by every backend.
type Repository interface {
	// CopyFrom inserts rows aligned to columns and returns the number
	// inserted.
	CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error)

	// Exec runs one statement, typically DDL.
	Exec(ctx context.Context, sql string) error

	// Rows calls fn for each row of the table. The slice passed to fn is
	// only valid for the duration of the call.
	Rows(ctx context.Context, q Query, fn func(row []any) error) error

	// Dialect reports quoting, placeholders and array storage.
	Dialect() ddl.Dialect

	Close()
}

// Factory opens a Repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	regMu     sync.RWMutex
	factories = map[string]Factory{}
)

// Register installs (or replaces) the factory for kind.
func Register(kind string, f Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	factories[kind] = f
}

// New opens a repository of cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	regMu.RLock()
	f, ok := factories[cfg.Kind]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// ListKinds returns the registered kinds, sorted. The slice is a copy.
func ListKinds() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// EnsureTable creates the declared table in repo's dialect when it does not
// exist yet.
func EnsureTable(ctx context.Context, repo Repository, d config.Declaration) error {
	sql, err := ddl.CreateTableSQL(d, repo.Dialect())
	if err != nil {
		return fmt.Errorf("storage: build ddl: %w", err)
	}
	if err := repo.Exec(ctx, sql); err != nil {
		return fmt.Errorf("storage: apply ddl: %w", err)
	}
	return nil
}

// ArrayColumns returns the set of array field names of d.
func ArrayColumns(d config.Declaration) mapset.Set[string] {
	s := mapset.NewThreadUnsafeSet[string]()
	for _, f := range d.Fields {
		s.Add(f.Name)
	}
	return s
}
