package mssql

import (
	"context"
	"strings"
	"testing"

	"pgarray/internal/storage"
	"pgarray/internal/storage/sqldb"
)

func TestNewRepository_InvalidDSN(t *testing.T) {
	t.Parallel()

	_, _, err := NewRepository(context.Background(), sqldb.Config{DSN: "sqlserver://sa@host?connection+timeout=abc", Table: "t"})
	if err == nil || !strings.Contains(err.Error(), "mssql dsn") {
		t.Fatalf("NewRepository error = %v; want mssql dsn error", err)
	}
}

// Swaps the package hook; not parallel.
func TestRegistrationUsesNewRepositoryHook(t *testing.T) {
	orig := newRepository
	defer func() { newRepository = orig }()

	var (
		gotCfg sqldb.Config
		closed bool
	)
	newRepository = func(ctx context.Context, cfg sqldb.Config) (*Repository, func(), error) {
		gotCfg = cfg
		return &Repository{}, func() { closed = true }, nil
	}

	repo, err := storage.New(context.Background(), storage.Config{Kind: "mssql", DSN: "sqlserver://x", Table: "dbo.t"})
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	if gotCfg.Table != "dbo.t" {
		t.Fatalf("hook Table = %q", gotCfg.Table)
	}
	repo.Close()
	if !closed {
		t.Fatal("Close did not invoke closeFn")
	}
}
