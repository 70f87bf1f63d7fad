package executor

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/lumastudio/dataplane/v1/database"
	"github.com/lumastudio/dataplane/v1/query"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04:05"
)

var integerTypes = map[string]struct{}{
	"INT": {}, "INTEGER": {}, "TINYINT": {}, "SMALLINT": {}, "MEDIUMINT": {}, "BIGINT": {},
	"INT2": {}, "INT4": {}, "INT8": {}, "SERIAL": {}, "BIGSERIAL": {}, "YEAR": {},
}

var floatTypes = map[string]struct{}{
	"DECIMAL": {}, "NUMERIC": {}, "FLOAT": {}, "DOUBLE": {}, "REAL": {}, "FLOAT4": {}, "FLOAT8": {},
}

func normalize(raw *database.Result) *Result {
	res := &Result{}
	if raw == nil {
		return res
	}

	res.RowsAffected = raw.RowsAffected
	res.InsertID = raw.LastInsertID
	res.Columns = make([]string, len(raw.Columns))
	for i, c := range raw.Columns {
		res.Columns[i] = c.Name
	}

	res.Rows = make([]query.Record, 0, len(raw.Rows))
	for _, row := range raw.Rows {
		rec := make(query.Record, len(raw.Columns))
		for i, c := range raw.Columns {
			if i >= len(row) {
				break
			}
			rec[c.Name] = NormalizeValue(row[i], c.DatabaseType)
		}
		res.Rows = append(res.Rows, rec)
	}
	return res
}

// NormalizeValue converts one scanned value into the uniform representation:
// integers as int64, decimals as float64, JSON as decoded values, dates as
// "2006-01-02" and timestamps as "2006-01-02 15:04:05" in UTC.
func NormalizeValue(v any, databaseType string) any {
	t := strings.TrimPrefix(strings.ToUpper(databaseType), "UNSIGNED ")

	switch val := v.(type) {
	case nil:
		return nil
	case []byte:
		return normalizeText(string(val), t)
	case string:
		return normalizeText(val, t)
	case time.Time:
		if t == "DATE" {
			return val.Format(dateLayout)
		}
		return val.UTC().Format(dateTimeLayout)
	case int:
		return int64(val)
	case int8:
		return int64(val)
	case int16:
		return int64(val)
	case int32:
		return int64(val)
	case uint8:
		return int64(val)
	case uint16:
		return int64(val)
	case uint32:
		return int64(val)
	case uint64:
		return int64(val)
	case float32:
		return float64(val)
	default:
		return v
	}
}

func normalizeText(s, t string) any {
	switch {
	case isType(integerTypes, t):
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
	case isType(floatTypes, t):
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	case t == "JSON" || t == "JSONB":
		var decoded any
		if err := json.Unmarshal([]byte(s), &decoded); err == nil {
			return decoded
		}
	case t == "DATETIME" || t == "TIMESTAMP":
		// text protocol without parseTime already yields the target layout
		if len(s) > len(dateTimeLayout) {
			return s[:len(dateTimeLayout)]
		}
	}
	return s
}

func isType(set map[string]struct{}, t string) bool {
	_, ok := set[t]
	return ok
}
