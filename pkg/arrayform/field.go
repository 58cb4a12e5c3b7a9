// Package arrayform converts between delimiter-joined user input and typed
// array values. It is the input-side companion of arrayfield: Clean parses
// "1,2,3" into []any{int64(1), int64(2), int64(3)}, PrepareValue renders a
// list back to "1,2,3".
package arrayform

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"pgarray/pkg/typecast"
)

// DefaultDelimiter joins and splits list elements.
const DefaultDelimiter = ","

// Error message keys understood by WithErrorMessages.
const (
	CodeInvalid  = "invalid"
	CodeRequired = "required"
)

var defaultMessages = map[string]string{
	CodeInvalid:  `Enter a list of values, joined by commas.  E.g. "a,b,c".`,
	CodeRequired: "This field is required.",
}

var (
	// ErrInvalidList matches every *InvalidListError.
	ErrInvalidList = errors.New("invalid list")
	// ErrRequired is returned by Clean for empty input on a required field.
	ErrRequired = errors.New("required")
)

// InvalidListError is returned when input cannot be parsed into a list.
// Error() only ever shows the user-facing message; the underlying cause is
// kept for diagnostics and reachable through errors.Unwrap / errors.As.
type InvalidListError struct {
	Message string
	Value   any
	cause   error
}

func (e *InvalidListError) Error() string { return e.Message }

func (e *InvalidListError) Unwrap() error { return e.cause }

func (e *InvalidListError) Is(target error) bool { return target == ErrInvalidList }

// RequiredError is returned by Clean when a required field is empty.
type RequiredError struct {
	Message string
}

func (e *RequiredError) Error() string { return e.Message }

func (e *RequiredError) Is(target error) bool { return target == ErrRequired }

// Field parses and renders delimiter-joined lists. A Field is immutable
// after New and safe for concurrent use.
type Field struct {
	delim    string
	cast     typecast.Caster
	required bool
	messages map[string]string
}

// Option configures a Field.
type Option func(*Field)

// WithDelimiter sets the element separator. An empty delimiter keeps the
// default.
func WithDelimiter(d string) Option {
	return func(f *Field) {
		if d != "" {
			f.delim = d
		}
	}
}

// WithTypeCast sets the caster applied to every parsed element.
func WithTypeCast(c typecast.Caster) Option {
	return func(f *Field) {
		if c != nil {
			f.cast = c
		}
	}
}

// WithRequired makes Clean reject empty input.
func WithRequired(required bool) Option {
	return func(f *Field) { f.required = required }
}

// WithErrorMessages overrides messages by code (CodeInvalid, CodeRequired).
func WithErrorMessages(msgs map[string]string) Option {
	return func(f *Field) {
		for k, v := range msgs {
			f.messages[k] = v
		}
	}
}

// New builds a Field. Without options it splits on "," and keeps tokens as
// strings.
func New(opts ...Option) *Field {
	f := &Field{
		delim:    DefaultDelimiter,
		cast:     typecast.Identity,
		messages: make(map[string]string, len(defaultMessages)),
	}
	for k, v := range defaultMessages {
		f.messages[k] = v
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Delimiter returns the configured element separator.
func (f *Field) Delimiter() string { return f.delim }

// Clean turns user input into a typed list. Empty input (nil, "", or an
// empty sequence) yields an empty list. Any parse or cast failure, including
// a panicking caster, is reported as a single *InvalidListError.
func (f *Field) Clean(value any) (out []any, err error) {
	if isEmpty(value) {
		if f.required {
			return nil, &RequiredError{Message: f.messages[CodeRequired]}
		}
		return []any{}, nil
	}

	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = f.invalid(value, fmt.Errorf("arrayform: panic while parsing: %v", r))
		}
	}()

	out, err = f.ToGo(value)
	if err != nil {
		return nil, f.invalid(value, err)
	}
	return out, nil
}

func (f *Field) invalid(value any, cause error) error {
	return &InvalidListError{Message: f.messages[CodeInvalid], Value: value, cause: cause}
}

// ToGo converts value without the error normalisation done by Clean.
// Strings are split on the delimiter and each token is cast; sequences and
// sets are cast element-wise, recursing into nested sequences.
func (f *Field) ToGo(value any) ([]any, error) {
	var items []any
	switch t := value.(type) {
	case string:
		items = splitTokens(t, f.delim)
	case []byte:
		items = splitTokens(string(t), f.delim)
	default:
		var ok bool
		if items, ok = setItems(value); !ok {
			if items, ok = typecast.Sequence(value); !ok {
				return nil, fmt.Errorf("arrayform: cannot parse %T as a list", value)
			}
		}
	}

	cast, err := typecast.CastTo(items, f.cast)
	if err != nil {
		return nil, err
	}
	return cast.([]any), nil
}

// PrepareValue renders a non-empty list, slice, array or set as
// delimiter-joined text. Every other value, including an empty list, is
// returned unchanged.
func (f *Field) PrepareValue(value any) any {
	items, ok := setItems(value)
	if !ok {
		items, ok = typecast.Sequence(value)
	}
	if !ok || len(items) == 0 {
		return value
	}
	parts := make([]string, len(items))
	for i, v := range items {
		parts[i] = formatItem(v)
	}
	return strings.Join(parts, f.delim)
}

// formatItem renders nested lists as JSON so they read back unambiguously.
func formatItem(v any) string {
	if _, nested := typecast.Sequence(v); nested {
		if b, err := json.Marshal(v); err == nil {
			return string(b)
		}
	}
	return typecast.Format(v)
}

func splitTokens(s, delim string) []any {
	parts := strings.Split(s, delim)
	out := make([]any, len(parts))
	for i, p := range parts {
		out[i] = p
	}
	return out
}

// setItems unpacks the golang-set flavours callers are likely to hand in.
func setItems(v any) ([]any, bool) {
	switch s := v.(type) {
	case mapset.Set[any]:
		return s.ToSlice(), true
	case mapset.Set[string]:
		return toAny(s.ToSlice()), true
	case mapset.Set[int]:
		return toAny(s.ToSlice()), true
	case mapset.Set[int64]:
		return toAny(s.ToSlice()), true
	case mapset.Set[float64]:
		return toAny(s.ToSlice()), true
	}
	return nil, false
}

func toAny[T any](in []T) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []byte:
		return len(t) == 0
	}
	if items, ok := setItems(v); ok {
		return len(items) == 0
	}
	if items, ok := typecast.Sequence(v); ok {
		return len(items) == 0
	}
	return false
}
