// Package arrayfield describes a PostgreSQL array column and converts the
// values that move through it.
//
// A Field is declared once (element type, dimension, allow-list) and then
// used to:
//
//   - render the column type for DDL (DBType: "int[]", "text[][]", ...),
//   - turn stored values into typed Go lists (ToGo),
//   - export values as JSON (ValueToString),
//   - validate values against the allow-list (Validate),
//   - bind values to database/sql as sql.Scanner / driver.Valuer (Array).
//
// Typed lists are []any, nested once per dimension. Element types after
// casting are int64, string, float64, decimal.Decimal or bool, depending on
// the declared dbtype.
package arrayfield

import (
	"encoding/json"
	"fmt"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/shopspring/decimal"

	"pgarray/pkg/arrayform"
	"pgarray/pkg/typecast"
)

// DefaultDBType is the element type used when Options.DBType is empty.
const DefaultDBType = "int"

// Options declares an array field. The zero value declares a nullable,
// one-dimensional int[] column without an allow-list.
type Options struct {
	// Name labels errors; optional.
	Name string
	// DBType is the element SQL type, e.g. "int", "varchar(40)",
	// "double precision". Defaults to "int".
	DBType string
	// Dimension is the array depth; 0 means 1.
	Dimension int
	// Valid is the optional allow-list of element values. Entries are cast
	// with the field's caster.
	Valid []any
	// TypeCast overrides the caster looked up from Casters.
	TypeCast typecast.Caster
	// Casters is the dbtype -> caster table; nil means typecast.DefaultTable().
	Casters typecast.Table
	// NotNull rejects nil arrays and nil elements.
	NotNull bool
	// NotBlank rejects empty-string elements.
	NotBlank bool
	// NotEditable disables Validate.
	NotEditable bool
}

// Field is an immutable array column declaration.
type Field struct {
	name      string
	dbType    string
	dimension int
	cast      typecast.Caster
	valid     mapset.Set[any]
	validList []any
	null      bool
	blank     bool
	editable  bool
	oids      oidPair
}

// New validates opts and returns the Field they declare.
func New(opts Options) (*Field, error) {
	dbType := strings.TrimSpace(opts.DBType)
	if dbType == "" {
		dbType = DefaultDBType
	}
	dim := opts.Dimension
	if dim == 0 {
		dim = 1
	}
	if dim < 1 {
		return nil, fmt.Errorf("arrayfield: %s: dimension must be >= 1, got %d", label(opts.Name), dim)
	}

	cast := opts.TypeCast
	if cast == nil {
		tbl := opts.Casters
		if tbl == nil {
			tbl = typecast.DefaultTable()
		}
		cast, _ = tbl.Lookup(dbType)
	}

	f := &Field{
		name:      opts.Name,
		dbType:    dbType,
		dimension: dim,
		cast:      cast,
		valid:     mapset.NewThreadUnsafeSet[any](),
		null:      !opts.NotNull,
		blank:     !opts.NotBlank,
		editable:  !opts.NotEditable,
		oids:      lookupOIDs(dbType),
	}
	for _, v := range opts.Valid {
		cv, err := typecast.CastTo(v, cast)
		if err != nil {
			return nil, fmt.Errorf("arrayfield: %s: valid value %#v: %w", label(opts.Name), v, err)
		}
		key, ok := choiceKey(cv)
		if !ok {
			return nil, fmt.Errorf("arrayfield: %s: valid value %#v is not a scalar", label(opts.Name), v)
		}
		if f.valid.Add(key) {
			f.validList = append(f.validList, cv)
		}
	}
	return f, nil
}

// MustNew is like New but panics on invalid options. Intended for
// package-level declarations.
func MustNew(opts Options) *Field {
	f, err := New(opts)
	if err != nil {
		panic(err)
	}
	return f
}

func label(name string) string {
	if name == "" {
		return "field"
	}
	return name
}

// Name returns the declared field name.
func (f *Field) Name() string { return f.name }

// BaseType returns the declared element type, e.g. "varchar(40)".
func (f *Field) BaseType() string { return f.dbType }

// Dimension returns the declared array depth.
func (f *Field) Dimension() int { return f.dimension }

// Caster returns the element caster in use.
func (f *Field) Caster() typecast.Caster { return f.cast }

// Valid returns a copy of the cast allow-list in declaration order.
func (f *Field) Valid() []any { return append([]any(nil), f.validList...) }

// DBType returns the column type: the element type followed by one "[]"
// per dimension.
func (f *Field) DBType() string {
	return f.dbType + strings.Repeat("[]", f.dimension)
}

// ToGo converts a stored or serialized value into a typed list. Strings and
// byte slices are decoded as JSON first and, failing that, kept as literal
// text; structured values are cast element by element. nil stays nil.
func (f *Field) ToGo(value any) (any, error) {
	switch t := value.(type) {
	case nil:
		return nil, nil
	case string:
		value = typecast.Decode(t)
	case []byte:
		value = typecast.Decode(string(t))
	}
	out, err := typecast.CastTo(value, f.cast)
	if err != nil {
		return nil, fmt.Errorf("arrayfield: %s: %w", label(f.name), err)
	}
	return out, nil
}

// Prep prepares a value for a query. Array values need no preparation; the
// database layer encodes them.
func (f *Field) Prep(value any) any { return value }

// ValueToString serializes value as JSON for export.
func (f *Field) ValueToString(value any) (string, error) {
	b, err := json.Marshal(f.Prep(value))
	if err != nil {
		return "", fmt.Errorf("arrayfield: %s: encode json: %w", label(f.name), err)
	}
	return string(b), nil
}

// Validate checks every top-level element of value against the allow-list
// and the null/blank rules. It returns the first failure as a
// *ValidationError. Fields declared NotEditable are never validated.
func (f *Field) Validate(value any) error {
	if !f.editable {
		return nil
	}
	if value == nil {
		if f.null {
			return nil
		}
		return f.newError(CodeNull, nil)
	}
	items, ok := typecast.Sequence(value)
	if !ok {
		return f.newError(CodeInvalid, value)
	}
	for _, v := range items {
		if f.valid.Cardinality() > 0 && !f.isValidChoice(v) {
			return f.newError(CodeInvalidChoice, v)
		}
		if err := f.validateElement(v); err != nil {
			return err
		}
	}
	return nil
}

// isValidChoice casts v the same way the allow-list was cast, so a raw
// int 4 and a stored int64 4 compare equal.
func (f *Field) isValidChoice(v any) bool {
	cv, err := typecast.CastTo(v, f.cast)
	if err != nil {
		return false
	}
	key, ok := choiceKey(cv)
	if !ok {
		return false
	}
	return f.valid.Contains(key)
}

func (f *Field) validateElement(v any) error {
	if v == nil {
		if !f.null {
			return f.newError(CodeNull, v)
		}
		return nil
	}
	if s, ok := v.(string); ok && s == "" && !f.blank {
		return f.newError(CodeBlank, v)
	}
	return nil
}

// FormField returns a form field that casts input with this field's caster.
// Empty input always cleans to an empty list; blank rejection stays with
// Validate.
func (f *Field) FormField(opts ...arrayform.Option) *arrayform.Field {
	return arrayform.New(append([]arrayform.Option{arrayform.WithTypeCast(f.cast)}, opts...)...)
}

// choiceKey maps an element to a value usable as a set key. Decimals are
// keyed by their canonical text since equal decimals need not share
// internal pointers; lists and other non-comparable values have no key.
func choiceKey(v any) (any, bool) {
	switch t := v.(type) {
	case nil:
		return nil, true
	case decimal.Decimal:
		return "decimal:" + t.String(), true
	}
	if _, isSeq := typecast.Sequence(v); isSeq {
		return nil, false
	}
	if !isComparable(v) {
		return nil, false
	}
	return v, true
}
