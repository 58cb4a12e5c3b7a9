// Package config defines the declaration file that describes a table with
// PostgreSQL-style array columns: where it lives, its plain columns, and the
// array fields with their element type, dimension and allow-list.
//
// Declarations are YAML or JSON, chosen by file extension:
//
//	table: public.articles
//	storage: { kind: postgres, dsn: "postgres://...", auto_create_table: true }
//	columns:
//	  - { name: id, type: bigint, primary_key: true }
//	fields:
//	  - { name: tags, dbtype: varchar(40), valid: [news, sport], delimiter: "|" }
//	  - { name: grid, dbtype: int, dimension: 2 }
//	runtime: { batch_size: 500, dedup: true }
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"pgarray/pkg/arrayfield"
	"pgarray/pkg/arrayform"
)

// DefaultBatchSize is used when runtime.batch_size is not positive.
const DefaultBatchSize = 500

// Declaration is the top-level object of a declaration file.
type Declaration struct {
	// Job labels metrics and log lines; defaults to Table.
	Job string `yaml:"job" json:"job"`

	// Table is the destination table, optionally schema-qualified.
	Table string `yaml:"table" json:"table"`

	Storage Storage       `yaml:"storage" json:"storage"`
	Columns []ColumnSpec  `yaml:"columns" json:"columns"`
	Fields  []FieldSpec   `yaml:"fields" json:"fields"`
	Runtime RuntimeConfig `yaml:"runtime" json:"runtime"`
}

// Storage selects the backend that holds the table.
type Storage struct {
	// Kind is one of postgres, sqlite, mysql, mssql.
	Kind string `yaml:"kind" json:"kind"`
	DSN  string `yaml:"dsn" json:"dsn"`

	// AutoCreateTable issues CREATE TABLE (if missing) before loading.
	AutoCreateTable bool `yaml:"auto_create_table" json:"auto_create_table"`
}

// ColumnSpec is a plain scalar column. Type is a logical type (int, bigint,
// text, bool, date, timestamp, double precision, numeric) that each backend
// maps to its own SQL type.
type ColumnSpec struct {
	Name       string `yaml:"name" json:"name"`
	Type       string `yaml:"type" json:"type"`
	PrimaryKey bool   `yaml:"primary_key" json:"primary_key"`
	NotNull    bool   `yaml:"not_null" json:"not_null"`
}

// FieldSpec declares one array column.
type FieldSpec struct {
	Name      string `yaml:"name" json:"name"`
	DBType    string `yaml:"dbtype" json:"dbtype"`
	Dimension int    `yaml:"dimension" json:"dimension"`
	Valid     []any  `yaml:"valid" json:"valid"`

	// Delimiter separates elements in CSV cells; defaults to ",".
	Delimiter string `yaml:"delimiter" json:"delimiter"`

	NotNull     bool `yaml:"not_null" json:"not_null"`
	NotBlank    bool `yaml:"not_blank" json:"not_blank"`
	NotEditable bool `yaml:"not_editable" json:"not_editable"`
}

// RuntimeConfig controls batching and duplicate handling during loads.
type RuntimeConfig struct {
	BatchSize     int  `yaml:"batch_size" json:"batch_size"`
	ChannelBuffer int  `yaml:"channel_buffer" json:"channel_buffer"`
	Dedup         bool `yaml:"dedup" json:"dedup"`
}

// Format names a declaration encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatFor picks the format from a file extension. Anything that is not
// .json is read as YAML, which also accepts JSON documents.
func FormatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// Load reads and decodes the declaration at path.
func Load(path string) (Declaration, error) {
	f, err := os.Open(path)
	if err != nil {
		return Declaration{}, fmt.Errorf("config: open: %w", err)
	}
	defer f.Close()

	d, err := Decode(f, FormatFor(path))
	if err != nil {
		return Declaration{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return d, nil
}

// Decode reads a declaration from r. Unknown keys are rejected.
func Decode(r io.Reader, format Format) (Declaration, error) {
	var d Declaration
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		dec.UseNumber()
		if err := dec.Decode(&d); err != nil {
			return Declaration{}, fmt.Errorf("decode json: %w", err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&d); err != nil && !errors.Is(err, io.EOF) {
			return Declaration{}, fmt.Errorf("decode yaml: %w", err)
		}
	default:
		return Declaration{}, fmt.Errorf("unsupported format %q", format)
	}
	return d, nil
}

// JobName returns Job, or Table when Job is empty.
func (d Declaration) JobName() string {
	if j := strings.TrimSpace(d.Job); j != "" {
		return j
	}
	return d.Table
}

// BatchSize returns the configured batch size or DefaultBatchSize.
func (d Declaration) BatchSize() int {
	if d.Runtime.BatchSize > 0 {
		return d.Runtime.BatchSize
	}
	return DefaultBatchSize
}

// Column is a built array column: the persistence field and the form field
// used to parse delimited input for it.
type Column struct {
	Spec  FieldSpec
	Field *arrayfield.Field
	Form  *arrayform.Field
}

// Options converts s into arrayfield options.
func (s FieldSpec) Options() arrayfield.Options {
	return arrayfield.Options{
		Name:        s.Name,
		DBType:      s.DBType,
		Dimension:   s.Dimension,
		Valid:       s.Valid,
		NotNull:     s.NotNull,
		NotBlank:    s.NotBlank,
		NotEditable: s.NotEditable,
	}
}

// BuildFields builds every declared array field in declaration order.
func (d Declaration) BuildFields() ([]Column, error) {
	out := make([]Column, 0, len(d.Fields))
	for i, s := range d.Fields {
		f, err := arrayfield.New(s.Options())
		if err != nil {
			return nil, fmt.Errorf("config: fields[%d]: %w", i, err)
		}
		var opts []arrayform.Option
		if s.Delimiter != "" {
			opts = append(opts, arrayform.WithDelimiter(s.Delimiter))
		}
		out = append(out, Column{Spec: s, Field: f, Form: f.FormField(opts...)})
	}
	return out, nil
}

// ColumnNames returns scalar column names followed by array field names,
// the order rows are written and read in.
func (d Declaration) ColumnNames() []string {
	names := make([]string, 0, len(d.Columns)+len(d.Fields))
	for _, c := range d.Columns {
		names = append(names, c.Name)
	}
	for _, f := range d.Fields {
		names = append(names, f.Name)
	}
	return names
}
