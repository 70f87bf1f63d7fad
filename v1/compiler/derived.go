package compiler

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/lumastudio/dataplane/v1/database"
	"github.com/lumastudio/dataplane/v1/query"
	"github.com/lumastudio/dataplane/v1/schema"
)

// keyChange is a counter key that is renamed (to != "") or removed.
type keyChange struct {
	counter schema.DerivedCounter
	from    string
	to      string
}

// captureRenames reads the counter keys an update is about to rename.
func (c *Compiler) captureRenames(ctx context.Context, meta *schema.Table, filters []query.Filter, payload query.Record) ([]keyChange, error) {
	var out []keyChange
	for _, dc := range c.registry.DerivedCounters() {
		if dc.CounterTable != meta.Name {
			continue
		}
		v, ok := payload[dc.KeyColumn]
		if !ok || v == nil {
			continue
		}
		to := fmt.Sprint(v)

		rows, err := c.fetch(ctx, meta, dc.KeyColumn, filters)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			if from := fmt.Sprint(row[dc.KeyColumn]); from != to {
				out = append(out, keyChange{counter: dc, from: from, to: to})
			}
		}
	}
	return out, nil
}

// captureRemovals reads the counter keys a delete is about to remove.
func (c *Compiler) captureRemovals(ctx context.Context, meta *schema.Table, filters []query.Filter) ([]keyChange, error) {
	var out []keyChange
	for _, dc := range c.registry.DerivedCounters() {
		if dc.CounterTable != meta.Name {
			continue
		}
		rows, err := c.fetch(ctx, meta, dc.KeyColumn, filters)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			out = append(out, keyChange{counter: dc, from: fmt.Sprint(row[dc.KeyColumn])})
		}
	}
	return out, nil
}

// cascade rewrites the JSON array of every source row that references
// from, replacing it with to or dropping it when rename is false.
func (c *Compiler) cascade(ctx context.Context, dc schema.DerivedCounter, from, to string, rename bool) error {
	src, err := c.registry.Metadata(dc.SourceTable)
	if err != nil {
		return err
	}

	rows, err := c.fetch(ctx, src, dc.SourceKey+", "+dc.SourceColumn, []query.Filter{
		{Column: dc.SourceColumn, Operator: query.Contains, Value: []any{from}},
	})
	if err != nil {
		return err
	}

	for _, row := range rows {
		members := rewriteMembers(jsonList(row[dc.SourceColumn]), from, to, rename)

		b := c.NewBuilder()
		sql := fmt.Sprintf("UPDATE %s SET %s = %s WHERE %s = %s",
			b.Quote(src.Name), b.Quote(dc.SourceColumn), b.BindJSON(members), b.Quote(dc.SourceKey), b.Bind(row[dc.SourceKey]))
		if _, err := c.runner.Run(ctx, b.Statement(sql, database.ModeExec)); err != nil {
			return err
		}
	}

	c.logDebug("Cascaded counter key change", map[string]interface{}{
		"table":  src.Name,
		"column": dc.SourceColumn,
		"from":   from,
		"to":     to,
		"rows":   len(rows),
	})
	return nil
}

// rewriteMembers replaces from with to (or drops it) and removes duplicates,
// so applying the same rename twice is a no-op.
func rewriteMembers(members []any, from, to string, rename bool) []any {
	out := make([]any, 0, len(members))
	seen := make(map[string]struct{}, len(members))
	for _, m := range members {
		name := fmt.Sprint(m)
		if name == from {
			if !rename {
				continue
			}
			name, m = to, to
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, m)
	}
	return out
}

func (c *Compiler) refreshDerived(ctx context.Context, table string) error {
	for _, dc := range c.registry.CountersAffectedBy(table) {
		if _, err := c.recount(ctx, dc); err != nil {
			return err
		}
	}
	return nil
}

// Recount rebuilds every derived counter from its source rows and returns
// the number of counter rows that changed.
func (c *Compiler) Recount(ctx context.Context) (int, error) {
	total := 0
	for _, dc := range c.registry.DerivedCounters() {
		n, err := c.recount(ctx, dc)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// recount is a full O(rows) rebuild, never an increment, so concurrent
// membership edits cannot make the counter drift.
func (c *Compiler) recount(ctx context.Context, dc schema.DerivedCounter) (int, error) {
	counterMeta, err := c.registry.Metadata(dc.CounterTable)
	if err != nil {
		return 0, err
	}
	src, err := c.registry.Metadata(dc.SourceTable)
	if err != nil {
		return 0, err
	}

	var keys, sources []query.Record
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		keys, err = c.fetch(gctx, counterMeta, dc.KeyColumn+", "+dc.CounterColumn, nil)
		return err
	})
	g.Go(func() (err error) {
		sources, err = c.fetch(gctx, src, dc.SourceColumn, nil)
		return err
	})
	if err := g.Wait(); err != nil {
		return 0, err
	}

	counts := make(map[string]int64)
	for _, row := range sources {
		seen := map[string]struct{}{}
		for _, m := range jsonList(row[dc.SourceColumn]) {
			name := fmt.Sprint(m)
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			counts[name]++
		}
	}

	updated := 0
	for _, row := range keys {
		name := fmt.Sprint(row[dc.KeyColumn])
		want := counts[name]
		if ToInt64(row[dc.CounterColumn]) == want {
			continue
		}
		b := c.NewBuilder()
		sql := fmt.Sprintf("UPDATE %s SET %s = %s WHERE %s = %s",
			b.Quote(counterMeta.Name), b.Quote(dc.CounterColumn), b.Bind(want), b.Quote(dc.KeyColumn), b.Bind(name))
		if _, err := c.runner.Run(ctx, b.Statement(sql, database.ModeExec)); err != nil {
			return updated, err
		}
		updated++
	}

	c.logDebug("Recounted derived counter", map[string]interface{}{
		"table":   counterMeta.Name,
		"column":  dc.CounterColumn,
		"keys":    len(keys),
		"sources": len(sources),
		"updated": updated,
	})
	return updated, nil
}

// jsonList reads a JSON array column that may arrive decoded or as text.
func jsonList(v any) []any {
	switch val := v.(type) {
	case []any:
		return val
	case []string:
		out := make([]any, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out
	case string:
		var decoded []any
		if err := json.Unmarshal([]byte(val), &decoded); err == nil {
			return decoded
		}
	case []byte:
		var decoded []any
		if err := json.Unmarshal(val, &decoded); err == nil {
			return decoded
		}
	}
	return nil
}
