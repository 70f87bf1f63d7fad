package database

import (
	"fmt"
	"strings"
)

// Dialect captures the SQL differences between the supported stores.
type Dialect string

const (
	MySQL    Dialect = DriverMySQL
	Postgres Dialect = DriverPostgres
)

// ParseDialect maps a driver name to its dialect.
func ParseDialect(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case DriverMySQL, "mariadb", "tidb", "":
		return MySQL, nil
	case DriverPostgres, "postgresql":
		return Postgres, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

// QuoteIdent quotes an identifier that has already passed the identifier gate.
func (d Dialect) QuoteIdent(name string) string {
	if d == Postgres {
		return `"` + name + `"`
	}
	return "`" + name + "`"
}

// JSONContains renders "the JSON array in column contains every element of
// the JSON array bound to param". param is a placeholder such as @p1.
func (d Dialect) JSONContains(column, param string) string {
	if d == Postgres {
		// a space must follow the placeholder so the named-parameter parser ends it
		return fmt.Sprintf("%s @> CAST(%s AS jsonb)", column, param)
	}
	return fmt.Sprintf("JSON_CONTAINS(%s, %s)", column, param)
}

// JSONValue renders a bound JSON text parameter as a value of the column type.
func (d Dialect) JSONValue(param string) string {
	if d == Postgres {
		return fmt.Sprintf("CAST(%s AS jsonb)", param)
	}
	return param
}

func (d Dialect) lastInsertIDQuery() string {
	if d == Postgres {
		return "SELECT lastval()"
	}
	return "SELECT LAST_INSERT_ID()"
}

// firstInsertID converts the session's last insert id into the first id of
// a multi-row insert. MySQL already reports the first id; lastval() on
// postgres reports the last one.
func (d Dialect) firstInsertID(reported, affected int64) int64 {
	if d == Postgres && affected > 1 {
		return reported - affected + 1
	}
	return reported
}
