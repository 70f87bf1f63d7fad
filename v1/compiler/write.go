package compiler

import (
	"context"
	"fmt"
	"strings"

	"github.com/lumastudio/dataplane/v1/database"
	"github.com/lumastudio/dataplane/v1/dataerr"
	"github.com/lumastudio/dataplane/v1/query"
	"github.com/lumastudio/dataplane/v1/schema"
)

const (
	createdAtColumn = "created_at"
	updatedAtColumn = "updated_at"
)

func (c *Compiler) insert(ctx context.Context, meta *schema.Table, req query.Request) (*Response, error) {
	rows := make([]query.Record, 0, len(req.Values))
	for _, rec := range req.Values {
		if len(rec) > 0 {
			rows = append(rows, rec.Clone())
		}
	}
	if len(rows) == 0 {
		return nil, dataerr.ValidationCode(dataerr.CodeEmptyInsertPayload, "insert into %s carries no values", meta.Name)
	}

	now := c.timestamp()
	for _, rec := range rows {
		if meta.KeyKind == schema.KeyGeneratedUUID {
			if v, ok := rec[meta.PrimaryKey]; query.IsBlank(v, ok) {
				rec[meta.PrimaryKey] = c.newID()
			}
		}
		for _, col := range []string{createdAtColumn, updatedAtColumn} {
			if !meta.HasColumn(col) {
				continue
			}
			if v, ok := rec[col]; query.IsBlank(v, ok) {
				rec[col] = now
			}
		}
	}

	// union of payload columns in table order; missing cells use DEFAULT
	var cols []string
	for _, col := range meta.Columns {
		for _, rec := range rows {
			if _, ok := rec[col]; ok {
				cols = append(cols, col)
				break
			}
		}
	}

	b := c.NewBuilder()
	quoted := make([]string, len(cols))
	for i, col := range cols {
		quoted[i] = b.Quote(col)
	}
	tuples := make([]string, len(rows))
	for i, rec := range rows {
		cells := make([]string, len(cols))
		for j, col := range cols {
			v, ok := rec[col]
			switch {
			case !ok:
				cells[j] = "DEFAULT"
			case meta.IsJSON(col):
				cells[j] = b.BindJSON(v)
			default:
				cells[j] = b.Bind(v)
			}
		}
		tuples[i] = "(" + strings.Join(cells, ", ") + ")"
	}

	mode := database.ModeExec
	if meta.KeyKind == schema.KeyAutoIncrement {
		mode = database.ModeInsert
	}
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", b.Quote(meta.Name), strings.Join(quoted, ", "), strings.Join(tuples, ", "))
	res, err := c.runner.Run(ctx, b.Statement(sql, mode))
	if err != nil {
		return nil, err
	}

	if err := c.refreshDerived(ctx, meta.Name); err != nil {
		return nil, err
	}

	resp := &Response{Affected: res.RowsAffected}
	if !req.ReturnWrittenRows {
		return resp, nil
	}

	keys, ok := insertedKeys(meta, rows, res.InsertID)
	if !ok {
		resp.Rows = DecodeJSONColumns(meta, rows)
		return resp, nil
	}
	resp.Rows, err = c.fetchByKeys(ctx, meta, req.Columns, keys)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// insertedKeys returns the primary keys of freshly inserted rows. It
// reports false when the rows cannot be identified again.
func insertedKeys(meta *schema.Table, rows []query.Record, insertID int64) ([]any, bool) {
	switch meta.KeyKind {
	case schema.KeyGeneratedUUID, schema.KeyNaturalString:
		keys := make([]any, 0, len(rows))
		for _, rec := range rows {
			v, ok := rec[meta.PrimaryKey]
			if query.IsBlank(v, ok) {
				return nil, false
			}
			keys = append(keys, v)
		}
		return keys, true
	case schema.KeyAutoIncrement:
		keys := make([]any, 0, len(rows))
		next := insertID
		for _, rec := range rows {
			if v, ok := rec[meta.PrimaryKey]; !query.IsBlank(v, ok) {
				keys = append(keys, v)
				continue
			}
			if insertID <= 0 {
				return nil, false
			}
			keys = append(keys, next)
			next++
		}
		return keys, true
	}
	return nil, false
}

func (c *Compiler) update(ctx context.Context, meta *schema.Table, req query.Request) (*Response, error) {
	if len(req.Filters) == 0 {
		return nil, dataerr.ValidationCode(dataerr.CodeMissingWhereClause, "update of %s requires at least one filter", meta.Name)
	}
	if len(req.Values) > 1 {
		return nil, dataerr.Validation("update of %s takes a single payload record", meta.Name)
	}
	if len(req.Values) == 0 || len(req.Values[0]) == 0 {
		return nil, dataerr.ValidationCode(dataerr.CodeEmptySetClause, "update of %s has nothing to set", meta.Name)
	}

	payload := req.Values[0].Clone()
	if meta.HasColumn(updatedAtColumn) {
		if v, ok := payload[updatedAtColumn]; query.IsBlank(v, ok) {
			payload[updatedAtColumn] = c.timestamp()
		}
	}

	renames, err := c.captureRenames(ctx, meta, req.Filters, payload)
	if err != nil {
		return nil, err
	}

	var keys []any
	if req.ReturnWrittenRows && meta.PrimaryKey != "" {
		if keys, err = c.selectKeys(ctx, meta, req.Filters); err != nil {
			return nil, err
		}
		// A rewritten key is only followed for a single matched row.
		if v, ok := payload[meta.PrimaryKey]; ok && len(keys) == 1 {
			keys = []any{v}
		}
	}

	b := c.NewBuilder()
	sets := make([]string, 0, len(payload))
	for _, col := range meta.Columns {
		v, ok := payload[col]
		if !ok {
			continue
		}
		var value string
		if meta.IsJSON(col) {
			value = b.BindJSON(v)
		} else {
			value = b.Bind(v)
		}
		sets = append(sets, b.Quote(col)+" = "+value)
	}
	where, err := b.Where(meta, req.Filters)
	if err != nil {
		return nil, err
	}
	sql := fmt.Sprintf("UPDATE %s SET %s%s", b.Quote(meta.Name), strings.Join(sets, ", "), where)
	res, err := c.runner.Run(ctx, b.Statement(sql, database.ModeExec))
	if err != nil {
		return nil, err
	}

	for _, r := range renames {
		if err := c.cascade(ctx, r.counter, r.from, r.to, true); err != nil {
			return nil, err
		}
	}
	if err := c.refreshDerived(ctx, meta.Name); err != nil {
		return nil, err
	}

	resp := &Response{Affected: res.RowsAffected}
	if !req.ReturnWrittenRows {
		return resp, nil
	}
	if meta.PrimaryKey == "" {
		resp.Rows, err = c.fetch(ctx, meta, req.Columns, req.Filters)
	} else {
		resp.Rows, err = c.fetchByKeys(ctx, meta, req.Columns, keys)
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Compiler) delete(ctx context.Context, meta *schema.Table, req query.Request) (*Response, error) {
	if len(req.Filters) == 0 {
		return nil, dataerr.ValidationCode(dataerr.CodeMissingWhereClause, "delete from %s requires at least one filter", meta.Name)
	}

	removed, err := c.captureRemovals(ctx, meta, req.Filters)
	if err != nil {
		return nil, err
	}

	var before []query.Record
	if req.ReturnWrittenRows {
		if before, err = c.fetch(ctx, meta, req.Columns, req.Filters); err != nil {
			return nil, err
		}
	}

	b := c.NewBuilder()
	where, err := b.Where(meta, req.Filters)
	if err != nil {
		return nil, err
	}
	res, err := c.runner.Run(ctx, b.Statement(fmt.Sprintf("DELETE FROM %s%s", b.Quote(meta.Name), where), database.ModeExec))
	if err != nil {
		return nil, err
	}

	for _, r := range removed {
		if err := c.cascade(ctx, r.counter, r.from, "", false); err != nil {
			return nil, err
		}
	}
	if err := c.refreshDerived(ctx, meta.Name); err != nil {
		return nil, err
	}

	return &Response{Rows: before, Affected: res.RowsAffected}, nil
}

// fetch selects columns of the rows matching filters.
func (c *Compiler) fetch(ctx context.Context, meta *schema.Table, columns string, filters []query.Filter) ([]query.Record, error) {
	resp, err := c.selectRows(ctx, meta, query.Request{Table: meta.Name, Action: query.Select, Columns: columns, Filters: filters})
	if err != nil {
		return nil, err
	}
	return resp.Rows, nil
}

// fetchByKeys re-selects rows by primary key and returns them in key order.
func (c *Compiler) fetchByKeys(ctx context.Context, meta *schema.Table, columns string, keys []any) ([]query.Record, error) {
	if len(keys) == 0 {
		return []query.Record{}, nil
	}
	rows, err := c.fetch(ctx, meta, columns, []query.Filter{{Column: meta.PrimaryKey, Operator: query.In, Value: keys}})
	if err != nil {
		return nil, err
	}

	byKey := make(map[string]query.Record, len(rows))
	for _, row := range rows {
		v, ok := row[meta.PrimaryKey]
		if !ok {
			return rows, nil
		}
		byKey[fmt.Sprint(v)] = row
	}
	ordered := make([]query.Record, 0, len(rows))
	for _, k := range keys {
		if row, ok := byKey[fmt.Sprint(k)]; ok {
			ordered = append(ordered, row)
		}
	}
	return ordered, nil
}

func (c *Compiler) selectKeys(ctx context.Context, meta *schema.Table, filters []query.Filter) ([]any, error) {
	rows, err := c.fetch(ctx, meta, meta.PrimaryKey, filters)
	if err != nil {
		return nil, err
	}
	keys := make([]any, 0, len(rows))
	for _, row := range rows {
		keys = append(keys, row[meta.PrimaryKey])
	}
	return keys, nil
}
