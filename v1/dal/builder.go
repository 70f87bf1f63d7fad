package dal

import (
	"context"

	"github.com/lumastudio/dataplane/v1/query"
)

// QueryBuilder assembles one query.Request. Methods return the builder for
// chaining; Execute runs it. A builder is used once.
type QueryBuilder struct {
	ctx    context.Context
	client *Client
	req    query.Request
}

// Select reads columns, "*" when empty.
func (qb *QueryBuilder) Select(columns string) *QueryBuilder {
	if columns == "" {
		columns = "*"
	}
	qb.req.Action = query.Select
	qb.req.Columns = columns
	return qb
}

// Insert writes one or more rows.
func (qb *QueryBuilder) Insert(rows ...query.Record) *QueryBuilder {
	qb.req.Action = query.Insert
	qb.req.Columns = ""
	qb.req.Values = rows
	return qb
}

// Update sets the columns of values on every matching row.
func (qb *QueryBuilder) Update(values query.Record) *QueryBuilder {
	qb.req.Action = query.Update
	qb.req.Columns = ""
	qb.req.Values = []query.Record{values}
	return qb
}

// Delete removes every matching row.
func (qb *QueryBuilder) Delete() *QueryBuilder {
	qb.req.Action = query.Delete
	qb.req.Columns = ""
	return qb
}

func (qb *QueryBuilder) filter(column string, op query.Operator, value any) *QueryBuilder {
	qb.req.Filters = append(qb.req.Filters, query.Filter{Column: column, Operator: op, Value: value})
	return qb
}

// Eq matches column = value, or IS NULL for a nil value.
func (qb *QueryBuilder) Eq(column string, value any) *QueryBuilder {
	return qb.filter(column, query.Eq, value)
}

// Neq matches column <> value, or IS NOT NULL for a nil value.
func (qb *QueryBuilder) Neq(column string, value any) *QueryBuilder {
	return qb.filter(column, query.Neq, value)
}

func (qb *QueryBuilder) Gt(column string, value any) *QueryBuilder {
	return qb.filter(column, query.Gt, value)
}

func (qb *QueryBuilder) Gte(column string, value any) *QueryBuilder {
	return qb.filter(column, query.Gte, value)
}

func (qb *QueryBuilder) Lt(column string, value any) *QueryBuilder {
	return qb.filter(column, query.Lt, value)
}

func (qb *QueryBuilder) Lte(column string, value any) *QueryBuilder {
	return qb.filter(column, query.Lte, value)
}

// In matches any of values. An empty list matches nothing.
func (qb *QueryBuilder) In(column string, values any) *QueryBuilder {
	return qb.filter(column, query.In, values)
}

// Contains matches JSON-array columns holding every element of values.
func (qb *QueryBuilder) Contains(column string, values any) *QueryBuilder {
	return qb.filter(column, query.Contains, values)
}

// Overlaps matches JSON-array columns sharing at least one element with values.
func (qb *QueryBuilder) Overlaps(column string, values any) *QueryBuilder {
	return qb.filter(column, query.Overlaps, values)
}

// Order appends a sort key.
func (qb *QueryBuilder) Order(column string, ascending bool) *QueryBuilder {
	qb.req.Orders = append(qb.req.Orders, query.Order{Column: column, Ascending: ascending})
	return qb
}

// Range selects rows from..to inclusive and overrides Limit.
func (qb *QueryBuilder) Range(from, to int) *QueryBuilder {
	qb.req.Range = &query.Range{From: from, To: to}
	return qb
}

// Limit caps the number of rows.
func (qb *QueryBuilder) Limit(n int) *QueryBuilder {
	qb.req.Limit = &n
	return qb
}

// Count also returns the exact number of matching rows.
func (qb *QueryBuilder) Count() *QueryBuilder {
	qb.req.WantCount = true
	return qb
}

// Single requires exactly one row and returns it as Data.
func (qb *QueryBuilder) Single() *QueryBuilder {
	qb.req.WantSingleRow = true
	qb.req.WantAtMostOneRow = false
	return qb
}

// MaybeSingle accepts zero or one row; Data is nil when none matched.
func (qb *QueryBuilder) MaybeSingle() *QueryBuilder {
	qb.req.WantAtMostOneRow = true
	qb.req.WantSingleRow = false
	return qb
}

// Returning reads written rows back after an insert, update or delete.
func (qb *QueryBuilder) Returning() *QueryBuilder {
	qb.req.ReturnWrittenRows = true
	return qb
}

// Request returns a copy of the request built so far.
func (qb *QueryBuilder) Request() query.Request {
	return qb.req.Clone()
}

// Execute runs the request.
func (qb *QueryBuilder) Execute() Result {
	return qb.client.Do(qb.ctx, qb.req)
}
