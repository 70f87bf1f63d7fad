package rpc

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/lumastudio/dataplane/v1/dataerr"
	"github.com/lumastudio/dataplane/v1/query"
)

// Args are the named arguments of one procedure call.
type Args map[string]any

// Has reports whether key is present and not nil.
func (a Args) Has(key string) bool {
	v, ok := a[key]
	return ok && v != nil
}

// String returns the trimmed text form of key, or "" when absent.
func (a Args) String(key string) string {
	switch v := a[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		if v == math.Trunc(v) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// RequireString is String that rejects a blank value.
func (a Args) RequireString(key string) (string, error) {
	s := a.String(key)
	if s == "" {
		return "", dataerr.Validation("%s is required", key)
	}
	return s, nil
}

// Int returns key as an integer, or def when absent.
func (a Args) Int(key string, def int) (int, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, dataerr.Validation("%s must be an integer", key)
		}
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, dataerr.Validation("%s must be an integer", key)
		}
		return int(i), nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, dataerr.Validation("%s must be an integer", key)
		}
		return i, nil
	}
	return 0, dataerr.Validation("%s must be an integer", key)
}

// Records returns key as a list of objects. A single object is accepted as
// a list of one.
func (a Args) Records(key string) ([]query.Record, error) {
	switch v := a[key].(type) {
	case nil:
		return nil, dataerr.Validation("%s is required", key)
	case query.Record:
		return []query.Record{v.Clone()}, nil
	case map[string]any:
		return []query.Record{query.Record(v).Clone()}, nil
	case []query.Record:
		out := make([]query.Record, len(v))
		for i, rec := range v {
			out[i] = rec.Clone()
		}
		return out, nil
	case []map[string]any:
		out := make([]query.Record, len(v))
		for i, rec := range v {
			out[i] = query.Record(rec).Clone()
		}
		return out, nil
	case []any:
		out := make([]query.Record, 0, len(v))
		for i, item := range v {
			switch rec := item.(type) {
			case map[string]any:
				out = append(out, query.Record(rec).Clone())
			case query.Record:
				out = append(out, rec.Clone())
			default:
				return nil, dataerr.Validation("%s[%d] must be an object", key, i)
			}
		}
		return out, nil
	}
	return nil, dataerr.Validation("%s must be a list of objects", key)
}

// recordString reads a text field of a record the way Args.String does.
func recordString(rec query.Record, key string) string {
	return Args(rec).String(key)
}
