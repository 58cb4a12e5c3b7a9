package sqldb

import (
	"testing"

	"pgarray/internal/ddl"
)

func TestInsertSQL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		d     ddl.Dialect
		table string
		want  string
	}{
		{"sqlite", ddl.SQLite, "events", `INSERT INTO "events" ("id", "tags") VALUES (?, ?)`},
		{"mysql", ddl.MySQL, "app.events", "INSERT INTO `app`.`events` (`id`, `tags`) VALUES (?, ?)"},
		{"mssql", ddl.MSSQL, "dbo.events", "INSERT INTO [dbo].[events] ([id], [tags]) VALUES (@p1, @p2)"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := New(nil, Config{Table: tt.table}, tt.d)
			if got := r.InsertSQL([]string{"id", "tags"}); got != tt.want {
				t.Fatalf("InsertSQL = %q; want %q", got, tt.want)
			}
			if r.Dialect().Name != tt.d.Name {
				t.Fatalf("Dialect = %q", r.Dialect().Name)
			}
		})
	}
}
