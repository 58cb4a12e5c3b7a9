package typecast

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Caster maps one raw scalar to its typed in-memory representation.
type Caster func(v any) (any, error)

// CastTo applies c to every scalar inside v. Slices and arrays are mapped
// element-wise into []any at any depth; nil elements stay nil, matching SQL
// NULL array elements. A nil caster behaves like Identity.
func CastTo(v any, c Caster) (any, error) {
	if c == nil {
		c = Identity
	}
	if v == nil {
		return nil, nil
	}
	if items, ok := sequence(v); ok {
		out := make([]any, len(items))
		for i, x := range items {
			y, err := CastTo(x, c)
			if err != nil {
				return nil, err
			}
			out[i] = y
		}
		return out, nil
	}
	return c(v)
}

// Identity returns v unchanged.
func Identity(v any) (any, error) { return v, nil }

// Text renders v as normalized text. Strings and byte slices are decoded
// rather than formatted, so Text never turns []byte into "[104 105]".
func Text(v any) (any, error) {
	switch t := v.(type) {
	case string, []byte:
		return NormalizeText(t), nil
	case driver.Valuer:
		dv, err := t.Value()
		if err != nil {
			return nil, fmt.Errorf("typecast: text: %w", err)
		}
		if dv == nil {
			return nil, nil
		}
		return Text(dv)
	default:
		return normalizeString(Format(t)), nil
	}
}

// Int casts v to int64. Floats truncate toward zero; strings are trimmed
// and parsed in base 10.
func Int(v any) (any, error) {
	switch t := v.(type) {
	case int64:
		return t, nil
	case int:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case int16:
		return int64(t), nil
	case int8:
		return int64(t), nil
	case uint8:
		return int64(t), nil
	case uint16:
		return int64(t), nil
	case uint32:
		return int64(t), nil
	case uint:
		if uint64(t) > math.MaxInt64 {
			return nil, castErr(v, "int", "out of range")
		}
		return int64(t), nil
	case uint64:
		if t > math.MaxInt64 {
			return nil, castErr(v, "int", "out of range")
		}
		return int64(t), nil
	case float64:
		return truncFloat(t)
	case float32:
		return truncFloat(float64(t))
	case bool:
		if t {
			return int64(1), nil
		}
		return int64(0), nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, nil
		}
		f, err := t.Float64()
		if err != nil {
			return nil, castErr(v, "int", err.Error())
		}
		return truncFloat(f)
	case decimal.Decimal:
		return t.IntPart(), nil
	case string:
		return parseInt(t)
	case []byte:
		return parseInt(string(t))
	case driver.Valuer:
		dv, err := t.Value()
		if err != nil {
			return nil, fmt.Errorf("typecast: int: %w", err)
		}
		if dv == nil {
			return nil, nil
		}
		return Int(dv)
	default:
		return nil, castErr(v, "int", "unsupported type")
	}
}

func parseInt(s string) (any, error) {
	s = strings.TrimSpace(s)
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, castErr(s, "int", "invalid literal")
	}
	return i, nil
}

func truncFloat(f float64) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, castErr(f, "int", "not a finite number")
	}
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return nil, castErr(f, "int", "out of range")
	}
	return int64(f), nil
}

// Float casts v to float64.
func Float(v any) (any, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case int32:
		return float64(t), nil
	case int16:
		return float64(t), nil
	case int8:
		return float64(t), nil
	case uint:
		return float64(t), nil
	case uint8:
		return float64(t), nil
	case uint16:
		return float64(t), nil
	case uint32:
		return float64(t), nil
	case uint64:
		return float64(t), nil
	case bool:
		if t {
			return 1.0, nil
		}
		return 0.0, nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return nil, castErr(v, "float", err.Error())
		}
		return f, nil
	case decimal.Decimal:
		f, _ := t.Float64()
		return f, nil
	case string:
		return parseFloat(t)
	case []byte:
		return parseFloat(string(t))
	case driver.Valuer:
		dv, err := t.Value()
		if err != nil {
			return nil, fmt.Errorf("typecast: float: %w", err)
		}
		if dv == nil {
			return nil, nil
		}
		return Float(dv)
	default:
		return nil, castErr(v, "float", "unsupported type")
	}
}

func parseFloat(s string) (any, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil, castErr(s, "float", "invalid literal")
	}
	return f, nil
}

var (
	truthy = map[string]struct{}{"1": {}, "t": {}, "true": {}, "y": {}, "yes": {}, "on": {}}
	falsy  = map[string]struct{}{"0": {}, "f": {}, "false": {}, "n": {}, "no": {}, "off": {}}
)

// Bool casts v to bool. Strings are matched case-insensitively against
// the usual truthy/falsy spellings; numbers are true when non-zero.
func Bool(v any) (any, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		return parseBool(t)
	case []byte:
		return parseBool(string(t))
	case driver.Valuer:
		dv, err := t.Value()
		if err != nil {
			return nil, fmt.Errorf("typecast: bool: %w", err)
		}
		if dv == nil {
			return nil, nil
		}
		return Bool(dv)
	}
	f, err := Float(v)
	if err != nil {
		return nil, castErr(v, "bool", "unsupported type")
	}
	return f.(float64) != 0, nil
}

func parseBool(s string) (any, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if _, ok := truthy[s]; ok {
		return true, nil
	}
	if _, ok := falsy[s]; ok {
		return false, nil
	}
	return nil, castErr(s, "bool", "not a recognized boolean")
}

// Decimal casts v to decimal.Decimal, keeping the exact digits of textual
// and JSON input.
func Decimal(v any) (any, error) {
	switch t := v.(type) {
	case decimal.Decimal:
		return t, nil
	case string:
		return parseDecimal(t)
	case []byte:
		return parseDecimal(string(t))
	case json.Number:
		return parseDecimal(t.String())
	case float64:
		return decimal.NewFromFloat(t), nil
	case float32:
		return decimal.NewFromFloat32(t), nil
	case driver.Valuer:
		dv, err := t.Value()
		if err != nil {
			return nil, fmt.Errorf("typecast: decimal: %w", err)
		}
		if dv == nil {
			return nil, nil
		}
		return Decimal(dv)
	}
	i, err := Int(v)
	if err != nil {
		return nil, castErr(v, "decimal", "unsupported type")
	}
	return decimal.NewFromInt(i.(int64)), nil
}

func parseDecimal(s string) (any, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return nil, castErr(s, "decimal", "invalid literal")
	}
	return d, nil
}

// CastError reports a scalar that a caster could not convert.
type CastError struct {
	Value  any
	Target string
	Reason string
}

func (e *CastError) Error() string {
	return fmt.Sprintf("typecast: cannot cast %#v to %s: %s", e.Value, e.Target, e.Reason)
}

func castErr(v any, target, reason string) error {
	return &CastError{Value: v, Target: target, Reason: reason}
}
