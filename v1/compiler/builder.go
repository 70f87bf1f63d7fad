package compiler

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/lumastudio/dataplane/v1/database"
	"github.com/lumastudio/dataplane/v1/dataerr"
	"github.com/lumastudio/dataplane/v1/query"
	"github.com/lumastudio/dataplane/v1/schema"
)

const timestampLayout = "2006-01-02 15:04:05"

// alwaysFalse replaces predicates that can never match, such as IN over an
// empty list.
const alwaysFalse = "1 = 0"

// Builder accumulates SQL text parameters for one statement. Values are
// only ever emitted as @pN placeholders and identifiers only after they
// passed the identifier gate.
type Builder struct {
	dialect database.Dialect
	params  map[string]any
	n       int
}

// NewBuilder returns an empty builder for dialect.
func NewBuilder(dialect database.Dialect) *Builder {
	return &Builder{dialect: dialect, params: map[string]any{}}
}

// Dialect returns the dialect the builder renders for.
func (b *Builder) Dialect() database.Dialect {
	return b.dialect
}

// Bind registers v as a parameter and returns its placeholder.
func (b *Builder) Bind(v any) string {
	b.n++
	name := "p" + strconv.Itoa(b.n)
	b.params[name] = BindValue(v)
	return "@" + name
}

// BindJSON binds v as JSON text cast to the store's JSON type.
func (b *Builder) BindJSON(v any) string {
	if v == nil {
		return b.Bind(nil)
	}
	return b.dialect.JSONValue(b.Bind(jsonText(v)))
}

// Quote quotes an identifier. It panics on names that fail the identifier
// gate, which would be a programming error since all names are validated
// against the registry first.
func (b *Builder) Quote(name string) string {
	if !schema.ValidIdentifier(name) {
		panic(fmt.Sprintf("compiler: unvalidated identifier %q", name))
	}
	return b.dialect.QuoteIdent(name)
}

// Statement finishes the builder into an executable statement.
func (b *Builder) Statement(sql string, mode database.Mode) database.Statement {
	params := make(map[string]any, len(b.params))
	for k, v := range b.params {
		params[k] = v
	}
	return database.Statement{SQL: sql, Params: params, Mode: mode}
}

// Where compiles AND-combined filters. It returns an empty string when
// there are none, otherwise the clause including the leading " WHERE ".
func (b *Builder) Where(meta *schema.Table, filters []query.Filter) (string, error) {
	if len(filters) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(filters))
	for _, f := range filters {
		p, err := b.Predicate(meta, f)
		if err != nil {
			return "", err
		}
		parts = append(parts, p)
	}
	return " WHERE " + strings.Join(parts, " AND "), nil
}

// Predicate compiles a single filter.
func (b *Builder) Predicate(meta *schema.Table, f query.Filter) (string, error) {
	if err := checkColumn(meta, f.Column); err != nil {
		return "", err
	}
	col := b.Quote(f.Column)

	switch f.Operator {
	case query.Eq:
		if f.Value == nil {
			return col + " IS NULL", nil
		}
		return col + " = " + b.Bind(f.Value), nil
	case query.Neq:
		if f.Value == nil {
			return col + " IS NOT NULL", nil
		}
		return col + " <> " + b.Bind(f.Value), nil
	case query.Gt:
		return col + " > " + b.Bind(f.Value), nil
	case query.Gte:
		return col + " >= " + b.Bind(f.Value), nil
	case query.Lt:
		return col + " < " + b.Bind(f.Value), nil
	case query.Lte:
		return col + " <= " + b.Bind(f.Value), nil
	case query.In:
		list := query.ToList(f.Value)
		if len(list) == 0 {
			return alwaysFalse, nil
		}
		placeholders := make([]string, len(list))
		for i, v := range list {
			placeholders[i] = b.Bind(v)
		}
		return col + " IN (" + strings.Join(placeholders, ", ") + ")", nil
	case query.Contains:
		if !meta.IsJSON(f.Column) {
			return "", dataerr.Validation("contains requires a JSON column, %s.%s is not one", meta.Name, f.Column)
		}
		return b.dialect.JSONContains(col, b.Bind(jsonText(query.ToList(f.Value)))), nil
	case query.Overlaps:
		if !meta.IsJSON(f.Column) {
			return "", dataerr.Validation("overlaps requires a JSON column, %s.%s is not one", meta.Name, f.Column)
		}
		list := query.ToList(f.Value)
		if len(list) == 0 {
			return alwaysFalse, nil
		}
		parts := make([]string, len(list))
		for i, v := range list {
			parts[i] = b.dialect.JSONContains(col, b.Bind(jsonText([]any{v})))
		}
		if len(parts) == 1 {
			return parts[0], nil
		}
		return "(" + strings.Join(parts, " OR ") + ")", nil
	default:
		return "", dataerr.Validation("unknown operator %q", f.Operator)
	}
}

// BindValue converts a Go value into what the store accepts as a parameter:
// booleans become 0 or 1, times become UTC timestamps and arrays or objects
// become JSON text.
func BindValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case bool:
		if val {
			return 1
		}
		return 0
	case time.Time:
		return val.UTC().Format(timestampLayout)
	case []byte, string:
		return val
	case []any, []string, map[string]any, query.Record:
		return jsonText(val)
	}

	switch reflect.ValueOf(v).Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.Struct:
		return jsonText(v)
	}
	return v
}

func jsonText(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(raw)
}

func checkColumn(meta *schema.Table, column string) error {
	if !schema.ValidIdentifier(column) || !meta.HasColumn(column) {
		return dataerr.ColumnNotAllowed(meta.Name, column)
	}
	return nil
}

// relationMarkers identify embedded-resource syntax in column lists, which
// is not supported and dropped.
const relationMarkers = "(:.!"

// compileColumns turns a column list such as "id, title" into quoted SQL.
// "*" and the empty list select every column.
func compileColumns(b *Builder, meta *schema.Table, spec string) (string, error) {
	tokens := splitTopLevel(spec)
	cols := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if tok == "*" {
			return "*", nil
		}
		if strings.ContainsAny(tok, relationMarkers) {
			continue
		}
		if err := checkColumn(meta, tok); err != nil {
			return "", err
		}
		cols = append(cols, b.Quote(tok))
	}
	if len(cols) == 0 {
		return "*", nil
	}
	return strings.Join(cols, ", "), nil
}

// splitTopLevel splits on commas outside parentheses and trims every token.
func splitTopLevel(spec string) []string {
	var (
		out   []string
		depth int
		start int
	)
	flush := func(end int) {
		if tok := strings.TrimSpace(spec[start:end]); tok != "" {
			out = append(out, tok)
		}
	}
	for i, r := range spec {
		switch r {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				flush(i)
				start = i + 1
			}
		}
	}
	flush(len(spec))
	return out
}

func compileOrder(b *Builder, meta *schema.Table, orders []query.Order) (string, error) {
	if len(orders) == 0 {
		return "", nil
	}
	parts := make([]string, len(orders))
	for i, o := range orders {
		if err := checkColumn(meta, o.Column); err != nil {
			return "", err
		}
		dir := "DESC"
		if o.Ascending {
			dir = "ASC"
		}
		parts[i] = b.Quote(o.Column) + " " + dir
	}
	return " ORDER BY " + strings.Join(parts, ", "), nil
}

// compilePagination renders LIMIT/OFFSET as literals; both are validated
// integers. An inclusive range wins over a plain limit.
func compilePagination(rg *query.Range, limit *int) string {
	switch {
	case rg != nil:
		return fmt.Sprintf(" LIMIT %d OFFSET %d", rg.To-rg.From+1, rg.From)
	case limit != nil:
		return fmt.Sprintf(" LIMIT %d", *limit)
	}
	return ""
}
