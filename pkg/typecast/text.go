// Package typecast holds the pure conversion helpers shared by the array
// field and its form field: recursive text normalisation, recursive element
// casting, a JSON-or-literal decoder, and the table of default casters keyed
// by database type name.
//
// Nothing in this package keeps state; every function is safe for
// concurrent use.
package typecast

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeText replaces every string (or []byte) inside v with its
// normalized text form: ill-formed UTF-8 is replaced with U+FFFD and the
// result is NFC-composed. Slices and arrays are mapped element-wise into
// []any; every other scalar is returned unchanged.
func NormalizeText(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return normalizeString(t)
	case []byte:
		return normalizeString(string(t))
	case []any:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = NormalizeText(x)
		}
		return out
	}
	if items, ok := sequence(v); ok {
		out := make([]any, len(items))
		for i, x := range items {
			out[i] = NormalizeText(x)
		}
		return out
	}
	return v
}

func normalizeString(s string) string {
	t := transform.Chain(runes.ReplaceIllFormed(), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return strings.ToValidUTF8(s, "\uFFFD")
	}
	return out
}

// Decode turns a stored textual value into structured data. JSON is tried
// first (numbers are kept as json.Number so integers survive untouched);
// anything that is not valid JSON is returned as normalized text.
//
// The fallback exists for compatibility with values written by older
// clients that stored bare strings. Callers should not rely on it as a
// parsing feature.
func Decode(raw string) any {
	if gjson.Valid(raw) {
		dec := json.NewDecoder(strings.NewReader(raw))
		dec.UseNumber()
		var out any
		if err := dec.Decode(&out); err == nil {
			return out
		}
	}
	return NormalizeText(raw)
}

// Format renders a scalar as text for delimiter-joined output.
func Format(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int16:
		return strconv.FormatInt(int64(t), 10)
	case int8:
		return strconv.FormatInt(int64(t), 10)
	case uint:
		return strconv.FormatUint(uint64(t), 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case uint32:
		return strconv.FormatUint(uint64(t), 10)
	case uint16:
		return strconv.FormatUint(uint64(t), 10)
	case uint8:
		return strconv.FormatUint(uint64(t), 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'g', -1, 32)
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	case decimal.Decimal:
		return t.String()
	case time.Time:
		return t.Format(time.RFC3339)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// sequence reports whether v is a list-like value (slice or array, but not
// a byte slice) and returns its elements.
func sequence(v any) ([]any, bool) {
	switch t := v.(type) {
	case nil, string, []byte:
		return nil, false
	case []any:
		return t, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// Sequence exposes the list detection used by the casters so the form and
// persistence adapters agree on what counts as a list.
func Sequence(v any) ([]any, bool) { return sequence(v) }
