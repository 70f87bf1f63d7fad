package query

import (
	"fmt"
)

// Action is the statement kind a Request compiles to.
type Action string

const (
	Select Action = "select"
	Insert Action = "insert"
	Update Action = "update"
	Delete Action = "delete"
)

// Operator is a filter comparison.
type Operator string

const (
	Eq       Operator = "eq"
	Neq      Operator = "neq"
	Gt       Operator = "gt"
	Gte      Operator = "gte"
	Lt       Operator = "lt"
	Lte      Operator = "lte"
	In       Operator = "in"
	Contains Operator = "contains"
	Overlaps Operator = "overlaps"
)

// Valid reports whether op is a known operator.
func (op Operator) Valid() bool {
	switch op {
	case Eq, Neq, Gt, Gte, Lt, Lte, In, Contains, Overlaps:
		return true
	}
	return false
}

// Record is one row of column values.
type Record map[string]any

// Filter restricts the rows a request touches. Filters are AND-combined.
type Filter struct {
	Column   string   `json:"column"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value"`
}

// Order sorts the result of a select.
type Order struct {
	Column    string `json:"column"`
	Ascending bool   `json:"ascending"`
}

// Range selects rows From..To inclusive, zero based.
type Range struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// Request is the declarative query object compiled into SQL.
type Request struct {
	Table   string   `json:"table"`
	Action  Action   `json:"action"`
	Columns string   `json:"columns,omitempty"`
	Values  []Record `json:"values,omitempty"`
	Filters []Filter `json:"filters,omitempty"`
	Orders  []Order  `json:"orders,omitempty"`
	Range   *Range   `json:"range,omitempty"`
	Limit   *int     `json:"limit,omitempty"`

	WantCount         bool `json:"wantCount,omitempty"`
	WantSingleRow     bool `json:"wantSingleRow,omitempty"`
	WantAtMostOneRow  bool `json:"wantAtMostOneRow,omitempty"`
	ReturnWrittenRows bool `json:"returnWrittenRows,omitempty"`
}

// Clone returns a deep copy so that rewriting the copy never affects r.
func (r Request) Clone() Request {
	out := r

	if r.Values != nil {
		out.Values = make([]Record, len(r.Values))
		for i, rec := range r.Values {
			out.Values[i] = rec.Clone()
		}
	}
	if r.Filters != nil {
		out.Filters = make([]Filter, len(r.Filters))
		for i, f := range r.Filters {
			out.Filters[i] = Filter{Column: f.Column, Operator: f.Operator, Value: cloneValue(f.Value)}
		}
	}
	if r.Orders != nil {
		out.Orders = append([]Order(nil), r.Orders...)
	}
	if r.Range != nil {
		rg := *r.Range
		out.Range = &rg
	}
	if r.Limit != nil {
		l := *r.Limit
		out.Limit = &l
	}

	return out
}

// Validate checks the request shape independently of any table metadata.
func (r Request) Validate() error {
	if r.Table == "" {
		return fmt.Errorf("request has no table")
	}
	switch r.Action {
	case Select, Insert, Update, Delete:
	default:
		return fmt.Errorf("unknown action %q", r.Action)
	}
	for _, f := range r.Filters {
		if !f.Operator.Valid() {
			return fmt.Errorf("unknown operator %q on column %q", f.Operator, f.Column)
		}
	}
	if r.Range != nil && (r.Range.From < 0 || r.Range.To < r.Range.From) {
		return fmt.Errorf("invalid range %d..%d", r.Range.From, r.Range.To)
	}
	if r.Limit != nil && *r.Limit < 0 {
		return fmt.Errorf("negative limit %d", *r.Limit)
	}
	if r.WantSingleRow && r.WantAtMostOneRow {
		return fmt.Errorf("single and at-most-one row shaping are mutually exclusive")
	}
	return nil
}

// Clone deep-copies the record, including nested slices and maps.
func (rec Record) Clone() Record {
	if rec == nil {
		return nil
	}
	out := make(Record, len(rec))
	for k, v := range rec {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return append([]string(nil), val...)
	case []int:
		return append([]int(nil), val...)
	case []int64:
		return append([]int64(nil), val...)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = cloneValue(item)
		}
		return out
	case Record:
		return val.Clone()
	default:
		return v
	}
}
