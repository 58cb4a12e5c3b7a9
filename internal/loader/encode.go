package loader

import (
	"fmt"
	"strings"

	"pgarray/internal/config"
	"pgarray/pkg/arrayfield"
	"pgarray/pkg/typecast"
)

// slot is one output column: where its value comes from in the CSV record
// and how to convert it.
type slot struct {
	name  string
	index int

	cast   typecast.Caster // scalar columns
	column *config.Column  // array columns
}

// encoder turns CSV records into rows aligned to Declaration.ColumnNames.
type encoder struct {
	slots  []slot
	native bool
}

func newEncoder(decl config.Declaration, native bool) (*encoder, error) {
	cols, err := decl.BuildFields()
	if err != nil {
		return nil, fmt.Errorf("loader: %w", err)
	}
	table := typecast.DefaultTable()

	e := &encoder{native: native}
	for _, c := range decl.Columns {
		cast, _ := table.Lookup(c.Type)
		e.slots = append(e.slots, slot{name: c.Name, index: -1, cast: cast})
	}
	for i := range cols {
		e.slots = append(e.slots, slot{name: cols[i].Spec.Name, index: -1, column: &cols[i]})
	}
	return e, nil
}

// bind resolves each slot against the header row.
func (e *encoder) bind(header []string) error {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := pos[h]; !dup {
			pos[h] = i
		}
	}
	var missing []string
	for i := range e.slots {
		idx, ok := pos[e.slots[i].name]
		if !ok {
			missing = append(missing, e.slots[i].name)
			continue
		}
		e.slots[i].index = idx
	}
	if len(missing) > 0 {
		return fmt.Errorf("loader: csv header is missing columns %s", strings.Join(missing, ", "))
	}
	return nil
}

// encode converts one record. The returned RowError has no line set.
func (e *encoder) encode(rec []string) ([]any, *RowError) {
	row := make([]any, len(e.slots))
	for i, s := range e.slots {
		cell := rec[s.index]
		var (
			v   any
			err error
		)
		if s.column != nil {
			v, err = e.arrayCell(s.column, cell)
		} else {
			v, err = scalarCell(s.cast, cell)
		}
		if err != nil {
			return nil, &RowError{Column: s.name, Err: err}
		}
		row[i] = v
	}
	return row, nil
}

// scalarCell casts a plain column value. Empty cells are NULL.
func scalarCell(cast typecast.Caster, cell string) (any, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return nil, nil
	}
	return cast(cell)
}

// arrayCell parses, validates and encodes one array cell. Whole-array cells
// (JSON or array literals) go through the field; delimited text goes through
// the form field. An empty cell is NULL unless the field is NOT NULL, in
// which case it becomes an empty list.
func (e *encoder) arrayCell(c *config.Column, cell string) (any, error) {
	trimmed := strings.TrimSpace(cell)

	var (
		v   any
		err error
	)
	switch {
	case trimmed == "" && !c.Spec.NotNull:
		v = nil
	case looksStructured(trimmed):
		a := c.Field.Array(nil)
		err = a.Scan(trimmed)
		v = a.V
	default:
		v, err = c.Form.Clean(cell)
	}
	if err != nil {
		return nil, err
	}
	if err := c.Field.Validate(v); err != nil {
		return nil, err
	}
	return e.store(c.Field, v)
}

// store renders v for the backend: an array literal where arrays are native,
// JSON text elsewhere.
func (e *encoder) store(f *arrayfield.Field, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if e.native {
		return f.Array(v).Value()
	}
	return f.ValueToString(v)
}
