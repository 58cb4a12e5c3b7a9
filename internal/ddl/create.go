// Package ddl defines a small model for SQL DDL and renders CREATE TABLE
// statements for a declared table in each supported dialect.
//
// Array fields become native array columns (e.g. "varchar(40)[]") where the
// dialect has them, and JSON text columns elsewhere.
package ddl

import (
	"fmt"
	"strings"

	"pgarray/internal/config"
)

// BuildCreateTableSQL renders a CREATE TABLE statement for t in dialect d.
//
// Rules:
//
//   - t.FQN must be non-empty; each dotted segment is quoted.
//
//   - Each column must have a non-empty Name and SQLType.
//
//   - A column is rendered as:
//
//     <Name> <SQLType> [NOT NULL] [DEFAULT <Default>]
//
//   - Columns with PrimaryKey == true are collected into a trailing
//     PRIMARY KEY (...) clause.
//
//   - Dialects without a Guard get CREATE TABLE IF NOT EXISTS; the others
//     get their guard around a plain CREATE TABLE.
func BuildCreateTableSQL(t TableDef, d Dialect) (string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return "", fmt.Errorf("ddl: table FQN must not be empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("ddl: at least one column is required")
	}

	cols := make([]string, 0, len(t.Columns)+1)
	pks := make([]string, 0, len(t.Columns))

	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return "", fmt.Errorf("ddl: column with empty name in table %s", fqn)
		}
		typ := strings.TrimSpace(c.SQLType)
		if typ == "" {
			return "", fmt.Errorf("ddl: column %s missing SQLType", name)
		}

		var sb strings.Builder
		sb.WriteString(d.QuoteIdent(name))
		sb.WriteByte(' ')
		sb.WriteString(typ)

		if !c.Nullable {
			sb.WriteString(" NOT NULL")
		}
		if def := strings.TrimSpace(c.Default); def != "" {
			sb.WriteString(" DEFAULT ")
			sb.WriteString(def)
		}
		cols = append(cols, sb.String())

		if c.PrimaryKey {
			pks = append(pks, d.QuoteIdent(name))
		}
	}

	if len(pks) > 0 {
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pks, ", ")))
	}

	quoted := d.QuoteFQN(fqn)
	body := strings.Join(cols, ",\n  ")
	if d.Guard != nil {
		return d.Guard(quoted, fmt.Sprintf("CREATE TABLE %s (\n  %s\n);", quoted, body)), nil
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n);", quoted, body), nil
}

// FromDeclaration builds the table definition for decl in dialect d.
// Scalar columns go through d.MapType; array fields use Field.DBType() when
// the dialect has native arrays and d.ArrayType otherwise.
func FromDeclaration(decl config.Declaration, d Dialect) (TableDef, error) {
	if strings.TrimSpace(decl.Table) == "" {
		return TableDef{}, fmt.Errorf("ddl: declaration has no table")
	}
	fields, err := decl.BuildFields()
	if err != nil {
		return TableDef{}, fmt.Errorf("ddl: %w", err)
	}

	td := TableDef{FQN: decl.Table}
	for _, c := range decl.Columns {
		td.Columns = append(td.Columns, ColumnDef{
			Name:       c.Name,
			SQLType:    d.MapType(c.Type),
			Nullable:   !c.NotNull && !c.PrimaryKey,
			PrimaryKey: c.PrimaryKey,
		})
	}
	for _, f := range fields {
		typ := d.ArrayType
		if d.NativeArrays() {
			typ = f.Field.DBType()
		}
		td.Columns = append(td.Columns, ColumnDef{
			Name:     f.Spec.Name,
			SQLType:  typ,
			Nullable: !f.Spec.NotNull,
		})
	}
	return td, nil
}

// CreateTableSQL is FromDeclaration followed by BuildCreateTableSQL.
func CreateTableSQL(decl config.Declaration, d Dialect) (string, error) {
	td, err := FromDeclaration(decl, d)
	if err != nil {
		return "", err
	}
	return BuildCreateTableSQL(td, d)
}

// ForKind returns the dialect for a storage kind.
func ForKind(kind string) (Dialect, bool) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "postgres":
		return Postgres, true
	case "sqlite":
		return SQLite, true
	case "mysql":
		return MySQL, true
	case "mssql":
		return MSSQL, true
	}
	return Dialect{}, false
}
