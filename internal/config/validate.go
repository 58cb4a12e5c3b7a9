package config

import (
	"fmt"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"go.uber.org/multierr"

	"pgarray/pkg/arrayfield"
)

// IssueSeverity represents the severity of a declaration issue.
type IssueSeverity string

const (
	// SeverityError blocks loading.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is reported but does not block loading.
	SeverityWarning IssueSeverity = "warning"
)

// Issue is a single lint finding. Path is a dotted path into the
// declaration, e.g. "fields[1].dimension".
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// Issues is the result of Validate.
type Issues []Issue

// Err combines the error-severity issues into one error, or returns nil
// when there are none. Warnings are ignored.
func (is Issues) Err() error {
	var err error
	for _, i := range is {
		if i.Severity == SeverityError {
			err = multierr.Append(err, i)
		}
	}
	return err
}

// Warnings returns only the warning-severity issues.
func (is Issues) Warnings() Issues {
	var out Issues
	for _, i := range is {
		if i.Severity == SeverityWarning {
			out = append(out, i)
		}
	}
	return out
}

var knownStorageKinds = mapset.NewSet("postgres", "sqlite", "mysql", "mssql")

// Validate lints a decoded declaration without mutating it.
func Validate(d Declaration) Issues {
	var issues Issues

	if strings.TrimSpace(d.Table) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "table",
			Message:  "table must not be empty",
		})
	}
	issues = append(issues, validateStorage(d.Storage)...)

	names := mapset.NewThreadUnsafeSet[string]()
	issues = append(issues, validateColumns(d.Columns, names)...)
	issues = append(issues, validateFields(d.Fields, names)...)
	issues = append(issues, validateRuntime(d.Runtime)...)

	return issues
}

func validateStorage(s Storage) Issues {
	var issues Issues

	kind := strings.TrimSpace(s.Kind)
	switch {
	case kind == "":
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.kind",
			Message:  "storage.kind must not be empty",
		})
	case !knownStorageKinds.Contains(kind):
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "storage.kind",
			Message:  fmt.Sprintf("unknown storage kind %q; ensure a matching backend is registered", kind),
		})
	}
	if strings.TrimSpace(s.DSN) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.dsn",
			Message:  "storage.dsn must not be empty",
		})
	}
	return issues
}

func validateColumns(cols []ColumnSpec, names mapset.Set[string]) Issues {
	var issues Issues
	for i, c := range cols {
		path := fmt.Sprintf("columns[%d]", i)
		if strings.TrimSpace(c.Name) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".name",
				Message:  "column name must not be empty",
			})
		} else if !names.Add(c.Name) {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".name",
				Message:  fmt.Sprintf("duplicate column name %q", c.Name),
			})
		}
		if strings.TrimSpace(c.Type) == "" {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     path + ".type",
				Message:  "column type is empty; it will be stored as text",
			})
		}
	}
	return issues
}

func validateFields(fields []FieldSpec, names mapset.Set[string]) Issues {
	var issues Issues

	if len(fields) == 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "fields",
			Message:  "at least one array field is required",
		})
		return issues
	}

	for i, f := range fields {
		path := fmt.Sprintf("fields[%d]", i)
		if strings.TrimSpace(f.Name) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".name",
				Message:  "field name must not be empty",
			})
		} else if !names.Add(f.Name) {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".name",
				Message:  fmt.Sprintf("duplicate column name %q", f.Name),
			})
		}
		if strings.TrimSpace(f.DBType) == "" {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     path + ".dbtype",
				Message:  fmt.Sprintf("dbtype is empty; defaulting to %q", arrayfield.DefaultDBType),
			})
		}
		if f.Dimension < 0 {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".dimension",
				Message:  fmt.Sprintf("dimension must be >= 1, got %d", f.Dimension),
			})
			continue
		}
		if f.Delimiter == "\n" || f.Delimiter == "\r" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".delimiter",
				Message:  "delimiter must not be a line break",
			})
		}
		// New casts the allow-list with the field's caster.
		if _, err := arrayfield.New(f.Options()); err != nil {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".valid",
				Message:  err.Error(),
			})
		}
	}
	return issues
}

func validateRuntime(r RuntimeConfig) Issues {
	var issues Issues
	if r.BatchSize < 0 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "runtime.batch_size",
			Message:  fmt.Sprintf("batch_size=%d; using %d", r.BatchSize, DefaultBatchSize),
		})
	}
	if r.ChannelBuffer < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.channel_buffer",
			Message:  "channel_buffer must not be negative",
		})
	}
	return issues
}
