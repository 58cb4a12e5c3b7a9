package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"pgarray/internal/config"
	"pgarray/internal/storage"
	"pgarray/internal/storage/sqldb"
)

// TestRegistrationUsesNewRepositoryHook verifies that the "sqlite" factory
// goes through newRepository and that wrappedRepo.Close calls closeFn.
// It swaps a package variable, so it does not run in parallel.
func TestRegistrationUsesNewRepositoryHook(t *testing.T) {
	orig := newRepository
	defer func() { newRepository = orig }()

	var (
		gotCfg sqldb.Config
		closed bool
		fake   = &sqldb.Repository{}
	)
	newRepository = func(ctx context.Context, cfg sqldb.Config) (*sqldb.Repository, func(), error) {
		gotCfg = cfg
		return fake, func() { closed = true }, nil
	}

	cfg := storage.Config{Kind: "sqlite", DSN: "x.db", Table: "events", Columns: []string{"id", "tags"}}
	repo, err := storage.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	if gotCfg.DSN != cfg.DSN || gotCfg.Table != cfg.Table || len(gotCfg.Columns) != 2 {
		t.Fatalf("hook cfg = %+v", gotCfg)
	}
	w, ok := repo.(*wrappedRepo)
	if !ok || w.Repository != fake {
		t.Fatalf("storage.New() = %T, want *wrappedRepo around the fake", repo)
	}
	repo.Close()
	if !closed {
		t.Fatal("Close did not invoke closeFn")
	}
}

/*
TestRepository_RoundTrip creates the declared table in a temporary SQLite
file, copies two rows in and reads them back. Array columns hold JSON text.
*/
func TestRepository_RoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	decl := config.Declaration{
		Table:   "events",
		Storage: config.Storage{Kind: "sqlite", DSN: filepath.Join(t.TempDir(), "events.db")},
		Columns: []config.ColumnSpec{{Name: "id", Type: "bigint", PrimaryKey: true}},
		Fields:  []config.FieldSpec{{Name: "tags", DBType: "text"}},
	}

	repo, closeFn, err := NewRepository(ctx, sqldb.Config{DSN: decl.Storage.DSN, Table: decl.Table})
	if err != nil {
		t.Fatalf("NewRepository: %v", err)
	}
	defer closeFn()

	if err := storage.EnsureTable(ctx, repo, decl); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}
	// Second call is a no-op.
	if err := storage.EnsureTable(ctx, repo, decl); err != nil {
		t.Fatalf("EnsureTable again: %v", err)
	}

	cols := decl.ColumnNames()
	n, err := repo.CopyFrom(ctx, cols, [][]any{
		{int64(1), `["a","b"]`},
		{int64(2), nil},
	})
	if err != nil {
		t.Fatalf("CopyFrom: %v", err)
	}
	if n != 2 {
		t.Fatalf("CopyFrom inserted %d; want 2", n)
	}

	if _, err := repo.CopyFrom(ctx, cols, [][]any{{int64(3)}}); err == nil {
		t.Fatal("CopyFrom with a short row succeeded")
	}

	got := map[int64]any{}
	err = repo.Rows(ctx, storage.Query{Columns: cols, Arrays: storage.ArrayColumns(decl)}, func(row []any) error {
		got[row[0].(int64)] = row[1]
		return nil
	})
	if err != nil {
		t.Fatalf("Rows: %v", err)
	}
	if len(got) != 2 || got[1] != `["a","b"]` || got[2] != nil {
		t.Fatalf("rows = %#v", got)
	}
}

func TestNewRepository_EmptyDSN(t *testing.T) {
	t.Parallel()
	if _, _, err := NewRepository(context.Background(), sqldb.Config{}); err == nil {
		t.Fatal("NewRepository with empty DSN succeeded")
	}
}
