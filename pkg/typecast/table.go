package typecast

import "strings"

// Table maps database type names to element casters. Each field owns its
// own Table value; DefaultTable returns a fresh copy on every call so
// callers may add entries without affecting other fields.
type Table map[string]Caster

// DefaultTable returns the casters for the built-in element types.
//
//	int, integer, smallint, bigint       -> Int     (int64)
//	text, varchar, char, character varying -> Text  (string)
//	double precision, real, float        -> Float   (float64)
//	numeric, decimal                     -> Decimal (decimal.Decimal)
//	bool, boolean                        -> Bool    (bool)
func DefaultTable() Table {
	return Table{
		"int":               Int,
		"integer":           Int,
		"smallint":          Int,
		"bigint":            Int,
		"text":              Text,
		"varchar":           Text,
		"char":              Text,
		"character varying": Text,
		"double precision":  Float,
		"real":              Float,
		"float":             Float,
		"numeric":           Decimal,
		"decimal":           Decimal,
		"bool":              Bool,
		"boolean":           Bool,
	}
}

// Key reduces a declared database type to its lookup key: everything
// before the first "(" (so "varchar(20)" becomes "varchar"), trimmed and
// lowercased.
func Key(dbtype string) string {
	if i := strings.IndexByte(dbtype, '('); i >= 0 {
		dbtype = dbtype[:i]
	}
	return strings.ToLower(strings.TrimSpace(dbtype))
}

// Lookup returns the caster registered for dbtype and whether one was
// found. Unknown types resolve to Identity.
func (t Table) Lookup(dbtype string) (Caster, bool) {
	if c, ok := t[Key(dbtype)]; ok && c != nil {
		return c, true
	}
	return Identity, false
}
