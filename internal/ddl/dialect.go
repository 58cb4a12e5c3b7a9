package ddl

import (
	"fmt"
	"strings"
)

// Dialect captures the per-backend differences the rest of the program
// cares about: identifier quoting, bind placeholders, scalar type mapping and
// how array columns are stored.
type Dialect struct {
	Name string

	// QuoteIdent quotes one identifier segment.
	QuoteIdent func(string) string

	// Placeholder renders the bind marker for the 1-based argument n.
	Placeholder func(n int) string

	// MapType maps a logical column type to the backend's SQL type.
	MapType func(kind string) string

	// ArrayType is the column type for arrays stored as JSON text. Empty
	// means the backend has native arrays and uses the field's DBType.
	ArrayType string

	// Guard wraps a CREATE TABLE statement so it is a no-op when the table
	// exists. nil means the builder emits IF NOT EXISTS itself.
	Guard func(quotedFQN, stmt string) string
}

// NativeArrays reports whether array columns use the field's own type.
func (d Dialect) NativeArrays() bool { return d.ArrayType == "" }

// QuoteFQN quotes each dot-separated segment of name.
func (d Dialect) QuoteFQN(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = d.QuoteIdent(p)
	}
	return strings.Join(parts, ".")
}

// QuoteAll quotes each of cols.
func (d Dialect) QuoteAll(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = d.QuoteIdent(c)
	}
	return out
}

// Placeholders returns n comma-separated bind markers.
func (d Dialect) Placeholders(n int) string {
	ps := make([]string, n)
	for i := range ps {
		ps[i] = d.Placeholder(i + 1)
	}
	return strings.Join(ps, ", ")
}

func doubleQuote(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

func question(int) string { return "?" }

// Postgres stores arrays natively.
var Postgres = Dialect{
	Name:        "postgres",
	QuoteIdent:  doubleQuote,
	Placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	MapType:     postgresType,
}

// SQLite stores arrays as JSON text.
var SQLite = Dialect{
	Name:        "sqlite",
	QuoteIdent:  doubleQuote,
	Placeholder: question,
	MapType:     sqliteType,
	ArrayType:   "TEXT",
}

// MySQL stores arrays in JSON columns.
var MySQL = Dialect{
	Name:        "mysql",
	QuoteIdent:  func(id string) string { return "`" + strings.ReplaceAll(id, "`", "``") + "`" },
	Placeholder: question,
	MapType:     mysqlType,
	ArrayType:   "JSON",
}

// MSSQL stores arrays as NVARCHAR(MAX) JSON text and guards CREATE TABLE
// with OBJECT_ID since T-SQL has no IF NOT EXISTS for tables.
var MSSQL = Dialect{
	Name:        "mssql",
	QuoteIdent:  func(id string) string { return `[` + strings.ReplaceAll(id, `]`, `]]`) + `]` },
	Placeholder: func(n int) string { return fmt.Sprintf("@p%d", n) },
	MapType:     mssqlType,
	ArrayType:   "NVARCHAR(MAX)",
	Guard: func(fqn, stmt string) string {
		lit := strings.ReplaceAll(fqn, "'", "''")
		return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL\nBEGIN\n%s\nEND", lit, stmt)
	},
}

func normKind(kind string) string { return strings.ToLower(strings.TrimSpace(kind)) }

// postgresType maps logical column types:
//
//	"int"/"integer"/"bigint"      -> BIGINT
//	"bool"/"boolean"              -> BOOLEAN
//	"date"                        -> DATE
//	"timestamp"/"timestamptz"     -> TIMESTAMPTZ
//	"float"/"double precision"    -> DOUBLE PRECISION
//	"numeric"/"decimal"           -> NUMERIC
//	everything else               -> TEXT
func postgresType(kind string) string {
	switch normKind(kind) {
	case "int", "integer", "bigint":
		return "BIGINT"
	case "bool", "boolean":
		return "BOOLEAN"
	case "date":
		return "DATE"
	case "timestamp", "timestamptz":
		return "TIMESTAMPTZ"
	case "float", "double precision", "real":
		return "DOUBLE PRECISION"
	case "numeric", "decimal":
		return "NUMERIC"
	default:
		return "TEXT"
	}
}

func sqliteType(kind string) string {
	switch normKind(kind) {
	case "int", "integer", "bigint", "bool", "boolean":
		return "INTEGER"
	case "float", "double precision", "real":
		return "REAL"
	case "numeric", "decimal":
		return "NUMERIC"
	default:
		return "TEXT"
	}
}

func mysqlType(kind string) string {
	switch normKind(kind) {
	case "int", "integer", "bigint":
		return "BIGINT"
	case "bool", "boolean":
		return "BOOLEAN"
	case "date":
		return "DATE"
	case "timestamp", "timestamptz":
		return "DATETIME(6)"
	case "float", "double precision", "real":
		return "DOUBLE"
	case "numeric", "decimal":
		return "DECIMAL(38,10)"
	default:
		return "VARCHAR(255)"
	}
}

func mssqlType(kind string) string {
	switch normKind(kind) {
	case "int", "integer", "bigint":
		return "BIGINT"
	case "bool", "boolean":
		return "BIT"
	case "date":
		return "DATE"
	case "timestamp", "timestamptz":
		return "DATETIMEOFFSET"
	case "float", "double precision", "real":
		return "FLOAT"
	case "numeric", "decimal":
		return "DECIMAL(38,10)"
	default:
		return "NVARCHAR(450)"
	}
}
