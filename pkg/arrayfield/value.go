package arrayfield

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/tidwall/gjson"

	"pgarray/pkg/typecast"
)

type oidPair struct {
	elem  uint32
	array uint32
}

var oidsByKey = map[string]oidPair{
	"int":               {pgtype.Int4OID, pgtype.Int4ArrayOID},
	"integer":           {pgtype.Int4OID, pgtype.Int4ArrayOID},
	"int4":              {pgtype.Int4OID, pgtype.Int4ArrayOID},
	"smallint":          {pgtype.Int2OID, pgtype.Int2ArrayOID},
	"int2":              {pgtype.Int2OID, pgtype.Int2ArrayOID},
	"bigint":            {pgtype.Int8OID, pgtype.Int8ArrayOID},
	"int8":              {pgtype.Int8OID, pgtype.Int8ArrayOID},
	"text":              {pgtype.TextOID, pgtype.TextArrayOID},
	"varchar":           {pgtype.VarcharOID, pgtype.VarcharArrayOID},
	"character varying": {pgtype.VarcharOID, pgtype.VarcharArrayOID},
	"char":              {pgtype.BPCharOID, pgtype.BPCharArrayOID},
	"double precision":  {pgtype.Float8OID, pgtype.Float8ArrayOID},
	"float":             {pgtype.Float8OID, pgtype.Float8ArrayOID},
	"real":              {pgtype.Float4OID, pgtype.Float4ArrayOID},
	"numeric":           {pgtype.NumericOID, pgtype.NumericArrayOID},
	"decimal":           {pgtype.NumericOID, pgtype.NumericArrayOID},
	"bool":              {pgtype.BoolOID, pgtype.BoolArrayOID},
	"boolean":           {pgtype.BoolOID, pgtype.BoolArrayOID},
}

// pgtype.Map is not safe for concurrent use and costly to build.
var typeMaps = sync.Pool{New: func() any { return pgtype.NewMap() }}

func withTypeMap[T any](fn func(m *pgtype.Map) (T, error)) (T, error) {
	m := typeMaps.Get().(*pgtype.Map)
	defer typeMaps.Put(m)
	return fn(m)
}

// Types without a dedicated codec travel as text[].
func lookupOIDs(dbType string) oidPair {
	if p, ok := oidsByKey[typecast.Key(dbType)]; ok {
		return p
	}
	return oidPair{pgtype.TextOID, pgtype.TextArrayOID}
}

// ElementOID returns the PostgreSQL OID of the element type.
func (f *Field) ElementOID() uint32 { return f.oids.elem }

// ArrayOID returns the PostgreSQL OID of the one-dimensional array type;
// PostgreSQL uses the same OID for every dimension.
func (f *Field) ArrayOID() uint32 { return f.oids.array }

// Value binds an array value to its Field for database/sql.
//
//	db.ExecContext(ctx, "INSERT INTO t (tags) VALUES ($1)", tags.Array([]any{"a", "b"}))
//	v := tags.Array(nil)
//	row.Scan(v) // v.V now holds []any{"a", "b"}
type Value struct {
	Field *Field
	V     any
}

var (
	_ driver.Valuer = (*Value)(nil)
	_ sql.Scanner   = (*Value)(nil)
)

// Array wraps v for use as a query argument or scan destination.
func (f *Field) Array(v any) *Value { return &Value{Field: f, V: v} }

// Value encodes the array as a PostgreSQL array literal, e.g. {{1,2},{3,4}}.
func (v *Value) Value() (driver.Value, error) {
	f := v.Field
	if v.V == nil {
		return nil, nil
	}
	typed, err := typecast.CastTo(f.Prep(v.V), f.cast)
	if err != nil {
		return nil, fmt.Errorf("arrayfield: %s: %w", label(f.name), err)
	}
	elems, dims, err := flatten(typed, f.dimension)
	if err != nil {
		return nil, fmt.Errorf("arrayfield: %s: %w", label(f.name), err)
	}
	if len(elems) == 0 {
		return "{}", nil
	}
	// Elements go out in their text form and the literal is built as text[];
	// the server parses each element with the column's element type.
	for i, e := range elems {
		if e != nil {
			elems[i] = typecast.Format(e)
		}
	}
	arr := pgtype.Array[any]{Elements: elems, Dims: dims, Valid: true}
	buf, err := withTypeMap(func(m *pgtype.Map) ([]byte, error) {
		return m.Encode(pgtype.TextArrayOID, pgtype.TextFormatCode, arr, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("arrayfield: %s: encode array: %w", label(f.name), err)
	}
	return string(buf), nil
}

// Scan decodes src into v.V. It accepts PostgreSQL array literals, JSON
// text, and values a driver already decoded into slices.
func (v *Value) Scan(src any) error {
	f := v.Field
	if f == nil {
		return errors.New("arrayfield: Scan on Value without Field")
	}
	var (
		out any
		err error
	)
	switch t := src.(type) {
	case nil:
		v.V = nil
		return nil
	case string:
		out, err = f.scanText(t)
	case []byte:
		out, err = f.scanText(string(t))
	default:
		out, err = f.ToGo(t)
	}
	if err != nil {
		return err
	}
	v.V = out
	return nil
}

func (f *Field) scanText(s string) (any, error) {
	trimmed := strings.TrimSpace(s)
	if !isArrayLiteral(trimmed) {
		return f.ToGo(s)
	}
	var arr pgtype.Array[any]
	_, err := withTypeMap(func(m *pgtype.Map) (struct{}, error) {
		return struct{}{}, m.Scan(f.oids.array, pgtype.TextFormatCode, []byte(trimmed), &arr)
	})
	if err != nil {
		return nil, fmt.Errorf("arrayfield: %s: decode array literal: %w", label(f.name), err)
	}
	return f.ToGo(unflatten(arr.Elements, arr.Dims))
}

// isArrayLiteral reports whether s looks like PostgreSQL array text rather
// than JSON. "{}" is both; it is read as an empty array.
func isArrayLiteral(s string) bool {
	switch {
	case strings.HasPrefix(s, "{"):
		return true
	case strings.HasPrefix(s, "["):
		return strings.Contains(s, "]={") && !gjson.Valid(s)
	}
	return false
}

var errRagged = errors.New("multidimensional arrays must have sub-arrays with matching lengths")

// flatten walks a nested list of the given depth in row-major order and
// returns its leaves with the matching PostgreSQL dimensions.
func flatten(v any, depth int) ([]any, []pgtype.ArrayDimension, error) {
	items, ok := typecast.Sequence(v)
	if !ok {
		return nil, nil, fmt.Errorf("%T is not a list", v)
	}
	var (
		dims  []pgtype.ArrayDimension
		elems []any
	)
	var walk func(items []any, level int) error
	walk = func(items []any, level int) error {
		if level == len(dims) {
			dims = append(dims, pgtype.ArrayDimension{Length: int32(len(items)), LowerBound: 1})
		} else if int(dims[level].Length) != len(items) {
			return errRagged
		}
		for _, it := range items {
			sub, isSeq := typecast.Sequence(it)
			if level == depth-1 {
				if isSeq {
					return fmt.Errorf("list nested deeper than dimension %d", depth)
				}
				elems = append(elems, it)
				continue
			}
			if !isSeq {
				return fmt.Errorf("expected a %d-dimensional list, found scalar %#v at depth %d", depth, it, level+1)
			}
			if err := walk(sub, level+1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(items, 0); err != nil {
		return nil, nil, err
	}
	if len(elems) == 0 {
		return nil, nil, nil
	}
	return elems, dims, nil
}

// unflatten rebuilds nested []any from row-major elements and dimensions.
func unflatten(elems []any, dims []pgtype.ArrayDimension) any {
	if len(dims) == 0 {
		return []any{}
	}
	pos := 0
	var build func(level int) []any
	build = func(level int) []any {
		n := int(dims[level].Length)
		out := make([]any, n)
		for i := range out {
			if level == len(dims)-1 {
				out[i] = elems[pos]
				pos++
				continue
			}
			out[i] = build(level + 1)
		}
		return out
	}
	return build(0)
}
