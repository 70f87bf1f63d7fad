package query

import (
	"reflect"
)

// ToList flattens a filter value used with in, contains or overlaps into a
// slice. A scalar becomes a one-element list; nil becomes an empty list.
func ToList(v any) []any {
	if v == nil {
		return []any{}
	}
	switch val := v.(type) {
	case []any:
		return val
	case []string:
		out := make([]any, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			return []any{v}
		}
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = rv.Index(i).Interface()
		}
		return out
	}

	return []any{v}
}

// IsBlank reports whether a payload value counts as omitted for timestamp
// and key injection: missing, nil or the empty string.
func IsBlank(v any, present bool) bool {
	if !present || v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}
