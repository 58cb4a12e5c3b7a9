package storage

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	mapset "github.com/deckarep/golang-set/v2"

	"pgarray/internal/config"
	"pgarray/internal/ddl"
)

// fakeRepo is a minimal Repository implementation for tests.
type fakeRepo struct {
	closed  bool
	execs   []string
	dialect ddl.Dialect
}

func (f *fakeRepo) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	return int64(len(rows)), nil
}
func (f *fakeRepo) Exec(ctx context.Context, sql string) error {
	f.execs = append(f.execs, sql)
	return nil
}
func (f *fakeRepo) Rows(ctx context.Context, q Query, fn func([]any) error) error { return nil }
func (f *fakeRepo) Dialect() ddl.Dialect                                          { return f.dialect }
func (f *fakeRepo) Close()                                                        { f.closed = true }

// TestRegisterAndNew_Success verifies that registering a backend enables New()
// to return the corresponding repository.
func TestRegisterAndNew_Success(t *testing.T) {
	t.Parallel()

	kind := "fake"
	Register(kind, func(ctx context.Context, cfg Config) (Repository, error) {
		return &fakeRepo{}, nil
	})

	repo, err := New(context.Background(), Config{Kind: kind})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if repo == nil {
		t.Fatalf("New returned nil repo")
	}

	found := false
	for _, k := range ListKinds() {
		if k == kind {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("registered kind %q not present in ListKinds: %v", kind, ListKinds())
	}
}

// TestNew_Unsupported verifies that unsupported kinds return a helpful error.
func TestNew_Unsupported(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{Kind: "does-not-exist"})
	if err == nil {
		t.Fatalf("expected error for unsupported kind")
	}
	if got, want := err.Error(), "unsupported storage.kind=does-not-exist"; got != want {
		t.Fatalf("error = %q, want %q", got, want)
	}
}

// TestRegister_Override verifies that re-registering a kind overrides the
// previous factory.
func TestRegister_Override(t *testing.T) {
	t.Parallel()

	kind := "override"
	calls := 0
	Register(kind, func(ctx context.Context, cfg Config) (Repository, error) {
		calls++
		return &fakeRepo{}, nil
	})
	Register(kind, func(ctx context.Context, cfg Config) (Repository, error) {
		calls += 10
		return &fakeRepo{}, nil
	})

	if _, err := New(context.Background(), Config{Kind: kind}); err != nil {
		t.Fatalf("New error: %v", err)
	}
	if calls != 10 {
		t.Fatalf("factory call count = %d, want 10", calls)
	}
}

// TestListKinds_Snapshot checks that ListKinds returns a copy.
func TestListKinds_Snapshot(t *testing.T) {
	t.Parallel()

	Register("snap", func(ctx context.Context, cfg Config) (Repository, error) { return &fakeRepo{}, nil })

	a := ListKinds()
	if len(a) == 0 {
		t.Fatalf("ListKinds empty after registration")
	}
	a[0] = "mutated"

	if b := ListKinds(); reflect.DeepEqual(a, b) {
		t.Fatalf("ListKinds returned same slice; want snapshot copy")
	}
}

// TestRegister_AllowsErrors shows factories can return errors that bubble up.
func TestRegister_AllowsErrors(t *testing.T) {
	t.Parallel()

	want := errors.New("boom")
	Register("errkind", func(ctx context.Context, cfg Config) (Repository, error) {
		return nil, want
	})

	if _, err := New(context.Background(), Config{Kind: "errkind"}); !errors.Is(err, want) {
		t.Fatalf("want %v, got %v", want, err)
	}
}

func testDeclaration() config.Declaration {
	return config.Declaration{
		Table:   "articles",
		Storage: config.Storage{Kind: "sqlite", DSN: "file:x.db"},
		Columns: []config.ColumnSpec{{Name: "id", Type: "int", PrimaryKey: true}},
		Fields:  []config.FieldSpec{{Name: "tags", DBType: "text"}, {Name: "grid", Dimension: 2}},
	}
}

func TestEnsureTable_UsesRepoDialect(t *testing.T) {
	t.Parallel()

	pg := &fakeRepo{dialect: ddl.Postgres}
	if err := EnsureTable(context.Background(), pg, testDeclaration()); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}
	if len(pg.execs) != 1 || !strings.Contains(pg.execs[0], `"grid" int[][]`) {
		t.Fatalf("postgres DDL = %v", pg.execs)
	}

	lite := &fakeRepo{dialect: ddl.SQLite}
	if err := EnsureTable(context.Background(), lite, testDeclaration()); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}
	if !strings.Contains(lite.execs[0], `"grid" TEXT`) {
		t.Fatalf("sqlite DDL = %v", lite.execs)
	}

	bad := testDeclaration()
	bad.Table = ""
	if err := EnsureTable(context.Background(), lite, bad); err == nil {
		t.Fatalf("empty table: want error")
	}
}

func TestConfigFromAndArrayColumns(t *testing.T) {
	t.Parallel()

	d := testDeclaration()
	cfg := ConfigFrom(d)
	want := Config{Kind: "sqlite", DSN: "file:x.db", Table: "articles", Columns: []string{"id", "tags", "grid"}}
	if !reflect.DeepEqual(cfg, want) {
		t.Fatalf("ConfigFrom = %+v, want %+v", cfg, want)
	}

	q := Query{Columns: cfg.Columns, Arrays: ArrayColumns(d)}
	if q.IsArray("id") || !q.IsArray("tags") || !q.IsArray("grid") {
		t.Fatalf("IsArray mismatch for %v", q.Arrays)
	}
	if (Query{}).IsArray("tags") {
		t.Fatalf("zero Query has no arrays")
	}
	if !ArrayColumns(d).Equal(mapset.NewThreadUnsafeSet("tags", "grid")) {
		t.Fatalf("ArrayColumns = %v", ArrayColumns(d))
	}
}
