package schema

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/lumastudio/dataplane/v1/dataerr"
)

// KeyKind describes how a table's primary key is produced.
type KeyKind string

const (
	KeyGeneratedUUID KeyKind = "generated-uuid"
	KeyAutoIncrement KeyKind = "auto-increment"
	KeyNaturalString KeyKind = "natural-string"
	KeyNone          KeyKind = "none"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier is the hard gate applied to every table and column name
// before it is quoted into SQL text.
func ValidIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

// Table is the static metadata of one table.
type Table struct {
	Name        string
	Columns     []string
	PrimaryKey  string
	KeyKind     KeyKind
	JSONColumns []string

	columnSet map[string]struct{}
	jsonSet   map[string]struct{}
}

// HasColumn reports whether column is in the allow-list.
func (t *Table) HasColumn(column string) bool {
	_, ok := t.columnSet[column]
	return ok
}

// IsJSON reports whether column holds a JSON document.
func (t *Table) IsJSON(column string) bool {
	_, ok := t.jsonSet[column]
	return ok
}

// DerivedCounter is a denormalized aggregate: CounterTable.CounterColumn holds,
// for each CounterTable.KeyColumn value, the number of SourceTable rows whose
// JSON array SourceColumn contains that value.
type DerivedCounter struct {
	CounterTable  string
	KeyColumn     string
	CounterColumn string
	SourceTable   string
	SourceKey     string
	SourceColumn  string
}

// Registry is the read-only allow-list of tables and columns.
type Registry struct {
	tables   map[string]*Table
	counters []DerivedCounter
}

// NewRegistry validates and indexes the given tables and counters.
func NewRegistry(tables []Table, counters []DerivedCounter) (*Registry, error) {
	r := &Registry{tables: make(map[string]*Table, len(tables))}

	for i := range tables {
		t := tables[i]
		if !ValidIdentifier(t.Name) {
			return nil, fmt.Errorf("invalid table name %q", t.Name)
		}
		if _, dup := r.tables[t.Name]; dup {
			return nil, fmt.Errorf("table %q registered twice", t.Name)
		}

		t.Columns = append([]string(nil), t.Columns...)
		t.JSONColumns = append([]string(nil), t.JSONColumns...)
		t.columnSet = make(map[string]struct{}, len(t.Columns))
		for _, c := range t.Columns {
			if !ValidIdentifier(c) {
				return nil, fmt.Errorf("invalid column name %q on table %q", c, t.Name)
			}
			t.columnSet[c] = struct{}{}
		}

		t.jsonSet = make(map[string]struct{}, len(t.JSONColumns))
		for _, c := range t.JSONColumns {
			if !t.HasColumn(c) {
				return nil, fmt.Errorf("json column %q is not a column of %q", c, t.Name)
			}
			t.jsonSet[c] = struct{}{}
		}

		switch t.KeyKind {
		case KeyNone:
			if t.PrimaryKey != "" {
				return nil, fmt.Errorf("table %q has key kind none but primary key %q", t.Name, t.PrimaryKey)
			}
		case KeyGeneratedUUID, KeyAutoIncrement, KeyNaturalString:
			if !t.HasColumn(t.PrimaryKey) {
				return nil, fmt.Errorf("primary key %q is not a column of %q", t.PrimaryKey, t.Name)
			}
		default:
			return nil, fmt.Errorf("table %q has unknown key kind %q", t.Name, t.KeyKind)
		}

		r.tables[t.Name] = &t
	}

	for _, c := range counters {
		counterTable, ok := r.tables[c.CounterTable]
		if !ok || !counterTable.HasColumn(c.KeyColumn) || !counterTable.HasColumn(c.CounterColumn) {
			return nil, fmt.Errorf("derived counter %s.%s is not registered", c.CounterTable, c.CounterColumn)
		}
		source, ok := r.tables[c.SourceTable]
		if !ok || !source.IsJSON(c.SourceColumn) || !source.HasColumn(c.SourceKey) {
			return nil, fmt.Errorf("derived counter source %s.%s must be a registered json column", c.SourceTable, c.SourceColumn)
		}
		r.counters = append(r.counters, c)
	}

	return r, nil
}

// Metadata returns the metadata of table or an UNKNOWN_TABLE error.
func (r *Registry) Metadata(table string) (*Table, error) {
	t, ok := r.tables[table]
	if !ok {
		return nil, dataerr.UnknownTable(table)
	}
	return t, nil
}

// IsColumnAllowed reports whether column is registered on table.
func (r *Registry) IsColumnAllowed(table, column string) bool {
	t, ok := r.tables[table]
	return ok && t.HasColumn(column)
}

// AssertColumnAllowed returns UNKNOWN_TABLE or COLUMN_NOT_ALLOWED when the
// pair is outside the allow-list.
func (r *Registry) AssertColumnAllowed(table, column string) error {
	t, err := r.Metadata(table)
	if err != nil {
		return err
	}
	if !ValidIdentifier(column) || !t.HasColumn(column) {
		return dataerr.ColumnNotAllowed(table, column)
	}
	return nil
}

// Tables returns the registered table names in sorted order.
func (r *Registry) Tables() []string {
	names := make([]string, 0, len(r.tables))
	for name := range r.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DerivedCounters returns every registered derived counter.
func (r *Registry) DerivedCounters() []DerivedCounter {
	return append([]DerivedCounter(nil), r.counters...)
}

// CountersAffectedBy returns the counters whose value may change after a
// write to table, either as the source rows or as the counter rows.
func (r *Registry) CountersAffectedBy(table string) []DerivedCounter {
	var out []DerivedCounter
	for _, c := range r.counters {
		if c.SourceTable == table || c.CounterTable == table {
			out = append(out, c)
		}
	}
	return out
}
