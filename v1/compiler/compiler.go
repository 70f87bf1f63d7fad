package compiler

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/lumastudio/dataplane/v1/database"
	"github.com/lumastudio/dataplane/v1/dataerr"
	"github.com/lumastudio/dataplane/v1/executor"
	"github.com/lumastudio/dataplane/v1/query"
	"github.com/lumastudio/dataplane/v1/schema"
)

// Runner executes one statement. *executor.Executor implements it.
type Runner interface {
	Run(ctx context.Context, stmt database.Statement) (*executor.Result, error)
	Dialect() database.Dialect
}

// Logger is the logging contract of the compiler.
type Logger interface {
	Debug(msg string, err error, fields ...map[string]interface{})
}

// Response is the shaped outcome of one request.
type Response struct {
	Rows     []query.Record
	Count    *int64
	Affected int64
}

// Compiler turns enforced requests into SQL, runs them and shapes results.
type Compiler struct {
	registry *schema.Registry
	runner   Runner
	logger   Logger
	now      func() time.Time
	newID    func() string
}

// NewCompiler returns a compiler over runner. logger may be nil.
func NewCompiler(registry *schema.Registry, runner Runner, logger Logger) *Compiler {
	return &Compiler{
		registry: registry,
		runner:   runner,
		logger:   logger,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// WithClock replaces the clock used for created_at/updated_at injection.
func (c *Compiler) WithClock(now func() time.Time) *Compiler {
	c.now = now
	return c
}

// WithIDGenerator replaces the generator of uuid primary keys.
func (c *Compiler) WithIDGenerator(newID func() string) *Compiler {
	c.newID = newID
	return c
}

// Registry returns the metadata registry the compiler validates against.
func (c *Compiler) Registry() *schema.Registry {
	return c.registry
}

// Runner returns the statement runner.
func (c *Compiler) Runner() Runner {
	return c.runner
}

// NewBuilder returns a builder for the runner's dialect.
func (c *Compiler) NewBuilder() *Builder {
	return NewBuilder(c.runner.Dialect())
}

// Execute compiles and runs req. The request must already have passed the
// permission enforcer; the compiler only applies the structural rules.
func (c *Compiler) Execute(ctx context.Context, req query.Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, dataerr.Validation("%v", err)
	}
	meta, err := c.registry.Metadata(req.Table)
	if err != nil {
		return nil, err
	}
	if err := validateColumns(meta, req); err != nil {
		return nil, err
	}

	var resp *Response
	switch req.Action {
	case query.Select:
		return c.selectRows(ctx, meta, req)
	case query.Insert:
		resp, err = c.insert(ctx, meta, req)
	case query.Update:
		resp, err = c.update(ctx, meta, req)
	case query.Delete:
		resp, err = c.delete(ctx, meta, req)
	}
	if err != nil {
		return nil, err
	}
	if req.ReturnWrittenRows {
		return shape(resp, req)
	}
	resp.Rows = nil
	return resp, nil
}

func validateColumns(meta *schema.Table, req query.Request) error {
	for _, f := range req.Filters {
		if err := checkColumn(meta, f.Column); err != nil {
			return err
		}
	}
	for _, o := range req.Orders {
		if err := checkColumn(meta, o.Column); err != nil {
			return err
		}
	}
	for _, rec := range req.Values {
		for col := range rec {
			if err := checkColumn(meta, col); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Compiler) selectRows(ctx context.Context, meta *schema.Table, req query.Request) (*Response, error) {
	b := c.NewBuilder()
	cols, err := compileColumns(b, meta, req.Columns)
	if err != nil {
		return nil, err
	}
	where, err := b.Where(meta, req.Filters)
	if err != nil {
		return nil, err
	}
	order, err := compileOrder(b, meta, req.Orders)
	if err != nil {
		return nil, err
	}
	sql := fmt.Sprintf("SELECT %s FROM %s%s%s%s", cols, b.Quote(meta.Name), where, order, compilePagination(req.Range, req.Limit))
	stmt := b.Statement(sql, database.ModeQuery)

	resp := &Response{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := c.runner.Run(gctx, stmt)
		if err != nil {
			return err
		}
		resp.Rows = DecodeJSONColumns(meta, res.Rows)
		return nil
	})
	if req.WantCount {
		g.Go(func() error {
			n, err := c.count(gctx, meta, req.Filters)
			if err != nil {
				return err
			}
			resp.Count = &n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return shape(resp, req)
}

// count returns the exact number of rows matching filters.
func (c *Compiler) count(ctx context.Context, meta *schema.Table, filters []query.Filter) (int64, error) {
	b := c.NewBuilder()
	where, err := b.Where(meta, filters)
	if err != nil {
		return 0, err
	}
	res, err := c.runner.Run(ctx, b.Statement(
		fmt.Sprintf("SELECT COUNT(*) AS %s FROM %s%s", b.Quote("total"), b.Quote(meta.Name), where),
		database.ModeQuery))
	if err != nil {
		return 0, err
	}
	if len(res.Rows) == 0 {
		return 0, nil
	}
	return ToInt64(res.Rows[0]["total"]), nil
}

// shape applies single-row and at-most-one-row constraints.
func shape(resp *Response, req query.Request) (*Response, error) {
	n := len(resp.Rows)
	switch {
	case req.WantSingleRow && n == 0:
		return nil, dataerr.ValidationCode(dataerr.CodeNoRows, "expected exactly one %s row, found none", req.Table)
	case (req.WantSingleRow || req.WantAtMostOneRow) && n > 1:
		return nil, dataerr.ValidationCode(dataerr.CodeMultipleRows, "expected at most one %s row, found %d", req.Table, n)
	}
	if resp.Rows == nil {
		resp.Rows = []query.Record{}
	}
	return resp, nil
}

// DecodeJSONColumns decodes the JSON columns of meta that the driver
// returned as text.
func DecodeJSONColumns(meta *schema.Table, rows []query.Record) []query.Record {
	if len(meta.JSONColumns) == 0 {
		return rows
	}
	for _, row := range rows {
		for _, col := range meta.JSONColumns {
			s, ok := row[col].(string)
			if !ok {
				continue
			}
			var decoded any
			if err := json.Unmarshal([]byte(s), &decoded); err == nil {
				row[col] = decoded
			}
		}
	}
	return rows
}

// ToInt64 converts a normalized numeric value into an int64.
func ToInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case float64:
		return int64(n)
	case string:
		i, _ := strconv.ParseInt(n, 10, 64)
		return i
	case []byte:
		i, _ := strconv.ParseInt(string(n), 10, 64)
		return i
	}
	return 0
}

func (c *Compiler) timestamp() string {
	return c.now().UTC().Format(timestampLayout)
}

func (c *Compiler) logDebug(msg string, fields map[string]interface{}) {
	if c.logger != nil {
		c.logger.Debug(msg, nil, fields)
	}
}
