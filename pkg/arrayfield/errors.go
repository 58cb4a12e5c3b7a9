package arrayfield

import (
	"errors"
	"fmt"
	"reflect"
)

// Validation error codes.
const (
	CodeInvalidChoice = "invalid_choice"
	CodeNull          = "null"
	CodeBlank         = "blank"
	CodeInvalid       = "invalid"
)

var (
	ErrInvalidChoice = errors.New("invalid choice")
	ErrNull          = errors.New("null value")
	ErrBlank         = errors.New("blank value")
	ErrInvalid       = errors.New("invalid value")
)

var codeErrs = map[string]error{
	CodeInvalidChoice: ErrInvalidChoice,
	CodeNull:          ErrNull,
	CodeBlank:         ErrBlank,
	CodeInvalid:       ErrInvalid,
}

// ValidationError reports the element that failed validation.
// errors.Is matches the sentinel for its Code (ErrInvalidChoice, ...).
type ValidationError struct {
	Field string
	Code  string
	Value any
	// Valid is the allow-list in effect for invalid_choice errors.
	Valid []any
}

func (e *ValidationError) Error() string {
	switch e.Code {
	case CodeInvalidChoice:
		return fmt.Sprintf("%s: value %#v is not a valid choice (valid: %v)", label(e.Field), e.Value, e.Valid)
	case CodeNull:
		return fmt.Sprintf("%s: this field cannot be null", label(e.Field))
	case CodeBlank:
		return fmt.Sprintf("%s: this field cannot be blank", label(e.Field))
	default:
		return fmt.Sprintf("%s: value %#v is not a list", label(e.Field), e.Value)
	}
}

func (e *ValidationError) Is(target error) bool {
	return codeErrs[e.Code] == target
}

func (f *Field) newError(code string, v any) *ValidationError {
	e := &ValidationError{Field: f.name, Code: code, Value: v}
	if code == CodeInvalidChoice {
		e.Valid = f.Valid()
	}
	return e
}

func isComparable(v any) bool {
	return reflect.TypeOf(v).Comparable()
}
