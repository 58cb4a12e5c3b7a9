package ddl

import (
	"strings"
	"testing"

	"pgarray/internal/config"
)

// TestBuildCreateTableSQL verifies the rendered statements per dialect and
// the errors for invalid definitions.
func TestBuildCreateTableSQL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		def         TableDef
		dialect     Dialect
		wantSQL     string
		wantErr     bool
		errContains string
	}{
		{
			name:        "empty FQN returns error",
			def:         TableDef{FQN: "", Columns: []ColumnDef{{Name: "id", SQLType: "INT"}}},
			dialect:     Postgres,
			wantErr:     true,
			errContains: "table FQN must not be empty",
		},
		{
			name:        "no columns returns error",
			def:         TableDef{FQN: "public.t"},
			dialect:     Postgres,
			wantErr:     true,
			errContains: "at least one column is required",
		},
		{
			name:        "column with empty name returns error",
			def:         TableDef{FQN: "t", Columns: []ColumnDef{{Name: " ", SQLType: "INT"}}},
			dialect:     SQLite,
			wantErr:     true,
			errContains: "column with empty name",
		},
		{
			name:        "column with empty type returns error",
			def:         TableDef{FQN: "t", Columns: []ColumnDef{{Name: "id"}}},
			dialect:     SQLite,
			wantErr:     true,
			errContains: "missing SQLType",
		},
		{
			name: "postgres native array with primary key",
			def: TableDef{FQN: "public.articles", Columns: []ColumnDef{
				{Name: "id", SQLType: "BIGINT", PrimaryKey: true},
				{Name: "tags", SQLType: "varchar(40)[]", Nullable: true},
			}},
			dialect: Postgres,
			wantSQL: "CREATE TABLE IF NOT EXISTS \"public\".\"articles\" (\n" +
				"  \"id\" BIGINT NOT NULL,\n" +
				"  \"tags\" varchar(40)[],\n" +
				"  PRIMARY KEY (\"id\")\n);",
		},
		{
			name: "default is raw sql",
			def: TableDef{FQN: "t", Columns: []ColumnDef{
				{Name: "grid", SQLType: "int[][]", Default: "'{}'"},
			}},
			dialect: Postgres,
			wantSQL: "CREATE TABLE IF NOT EXISTS \"t\" (\n  \"grid\" int[][] NOT NULL DEFAULT '{}'\n);",
		},
		{
			name:    "mysql backticks",
			def:     TableDef{FQN: "db.t", Columns: []ColumnDef{{Name: "tags", SQLType: "JSON", Nullable: true}}},
			dialect: MySQL,
			wantSQL: "CREATE TABLE IF NOT EXISTS `db`.`t` (\n  `tags` JSON\n);",
		},
		{
			name:    "mssql guard",
			def:     TableDef{FQN: "dbo.t", Columns: []ColumnDef{{Name: "tags", SQLType: "NVARCHAR(MAX)", Nullable: true}}},
			dialect: MSSQL,
			wantSQL: "IF OBJECT_ID(N'[dbo].[t]', N'U') IS NULL\nBEGIN\n" +
				"CREATE TABLE [dbo].[t] (\n  [tags] NVARCHAR(MAX)\n);\nEND",
		},
		{
			name:    "quotes are escaped",
			def:     TableDef{FQN: `we"ird`, Columns: []ColumnDef{{Name: `c"1`, SQLType: "TEXT", Nullable: true}}},
			dialect: SQLite,
			wantSQL: "CREATE TABLE IF NOT EXISTS \"we\"\"ird\" (\n  \"c\"\"1\" TEXT\n);",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := BuildCreateTableSQL(tt.def, tt.dialect)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got nil (sql=%q)", got)
				}
				if tt.errContains != "" && !strings.Contains(err.Error(), tt.errContains) {
					t.Fatalf("error %q does not contain %q", err.Error(), tt.errContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.wantSQL {
				t.Fatalf("SQL mismatch\n got: %q\nwant: %q", got, tt.wantSQL)
			}
		})
	}
}

func declaration() config.Declaration {
	return config.Declaration{
		Table: "public.articles",
		Columns: []config.ColumnSpec{
			{Name: "id", Type: "int", PrimaryKey: true},
			{Name: "title", Type: "text", NotNull: true},
		},
		Fields: []config.FieldSpec{
			{Name: "tags", DBType: "varchar(40)"},
			{Name: "grid", DBType: "int", Dimension: 2, NotNull: true},
		},
	}
}

/*
TestFromDeclaration verifies that array fields take their DBType on a
native-array dialect and the dialect's text type elsewhere, and that scalar
columns go through the dialect's type mapping.
*/
func TestFromDeclaration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		dialect   Dialect
		wantTypes []string
	}{
		{Postgres, []string{"BIGINT", "TEXT", "varchar(40)[]", "int[][]"}},
		{SQLite, []string{"INTEGER", "TEXT", "TEXT", "TEXT"}},
		{MySQL, []string{"BIGINT", "VARCHAR(255)", "JSON", "JSON"}},
		{MSSQL, []string{"BIGINT", "NVARCHAR(450)", "NVARCHAR(MAX)", "NVARCHAR(MAX)"}},
	}

	for _, tt := range tests {
		td, err := FromDeclaration(declaration(), tt.dialect)
		if err != nil {
			t.Fatalf("%s: FromDeclaration: %v", tt.dialect.Name, err)
		}
		if td.FQN != "public.articles" || len(td.Columns) != len(tt.wantTypes) {
			t.Fatalf("%s: table = %+v", tt.dialect.Name, td)
		}
		for i, want := range tt.wantTypes {
			if td.Columns[i].SQLType != want {
				t.Fatalf("%s: column %s type = %q, want %q", tt.dialect.Name, td.Columns[i].Name, td.Columns[i].SQLType, want)
			}
		}
		if !td.Columns[0].PrimaryKey || td.Columns[0].Nullable {
			t.Fatalf("%s: id column = %+v", tt.dialect.Name, td.Columns[0])
		}
		if td.Columns[1].Nullable || !td.Columns[2].Nullable || td.Columns[3].Nullable {
			t.Fatalf("%s: nullability = %+v", tt.dialect.Name, td.Columns)
		}
	}
}

func TestFromDeclaration_Errors(t *testing.T) {
	t.Parallel()

	d := declaration()
	d.Table = ""
	if _, err := FromDeclaration(d, Postgres); err == nil {
		t.Fatalf("empty table: want error")
	}

	d = declaration()
	d.Fields[0].Dimension = -1
	if _, err := CreateTableSQL(d, Postgres); err == nil {
		t.Fatalf("negative dimension: want error")
	}
}

func TestCreateTableSQL_Postgres(t *testing.T) {
	t.Parallel()

	got, err := CreateTableSQL(declaration(), Postgres)
	if err != nil {
		t.Fatalf("CreateTableSQL: %v", err)
	}
	for _, want := range []string{`"tags" varchar(40)[]`, `"grid" int[][] NOT NULL`, `PRIMARY KEY ("id")`} {
		if !strings.Contains(got, want) {
			t.Fatalf("statement %q lacks %q", got, want)
		}
	}
}

func TestDialectHelpers(t *testing.T) {
	t.Parallel()

	if got := Postgres.Placeholders(3); got != "$1, $2, $3" {
		t.Fatalf("postgres placeholders = %q", got)
	}
	if got := MSSQL.Placeholders(2); got != "@p1, @p2" {
		t.Fatalf("mssql placeholders = %q", got)
	}
	if got := SQLite.Placeholders(2); got != "?, ?" {
		t.Fatalf("sqlite placeholders = %q", got)
	}
	if got := MSSQL.QuoteFQN("dbo.x]y"); got != "[dbo].[x]]y]" {
		t.Fatalf("mssql QuoteFQN = %q", got)
	}
	if !Postgres.NativeArrays() || SQLite.NativeArrays() {
		t.Fatalf("NativeArrays mismatch")
	}
	for _, kind := range []string{"postgres", "SQLite", "mysql", "mssql"} {
		if _, ok := ForKind(kind); !ok {
			t.Fatalf("ForKind(%q) not found", kind)
		}
	}
	if _, ok := ForKind("oracle"); ok {
		t.Fatalf("ForKind(oracle) should not resolve")
	}
}
