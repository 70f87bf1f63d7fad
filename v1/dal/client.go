package dal

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/trace"

	"github.com/lumastudio/dataplane/v1/compiler"
	"github.com/lumastudio/dataplane/v1/dataerr"
	"github.com/lumastudio/dataplane/v1/identity"
	"github.com/lumastudio/dataplane/v1/policy"
	"github.com/lumastudio/dataplane/v1/query"
	"github.com/lumastudio/dataplane/v1/rpc"
	"github.com/lumastudio/dataplane/v1/tracer"
)

// Logger is the logging contract of the data access layer.
type Logger interface {
	Warn(msg string, err error, fields ...map[string]interface{})
	Error(msg string, err error, fields ...map[string]interface{})
}

// Result is the only shape application code receives. Exactly one of Data
// and Error is meaningful; Error is nil on success.
type Result struct {
	Data  any           `json:"data"`
	Count *int64        `json:"count,omitempty"`
	Error *dataerr.Info `json:"error"`
}

// OK reports whether the call succeeded.
func (r Result) OK() bool {
	return r.Error == nil
}

// Rows returns Data as a row slice, or nil when Data holds something else.
func (r Result) Rows() []query.Record {
	rows, _ := r.Data.([]query.Record)
	return rows
}

// Row returns Data as a single row, or nil.
func (r Result) Row() query.Record {
	row, _ := r.Data.(query.Record)
	return row
}

// Client is the entry point of application code. Structured requests flow
// through the enforcer and the compiler; named procedures go to the
// dispatcher. The caller identity is read from the context.
type Client struct {
	enforcer   *policy.Enforcer
	compiler   *compiler.Compiler
	dispatcher *rpc.Dispatcher
	tracer     *tracer.Tracer
	logger     Logger
}

// NewClient returns a client over the three pipeline stages.
func NewClient(enforcer *policy.Enforcer, c *compiler.Compiler, dispatcher *rpc.Dispatcher) *Client {
	return &Client{enforcer: enforcer, compiler: c, dispatcher: dispatcher}
}

// WithTracer opens a span per request and procedure call.
func (c *Client) WithTracer(t *tracer.Tracer) *Client {
	c.tracer = t
	return c
}

// WithLogger logs store failures surfaced to callers.
func (c *Client) WithLogger(logger Logger) *Client {
	c.logger = logger
	return c
}

// From starts a request against table.
//
//	res := client.From(ctx, "photos").
//		Select("id, url, like_count").
//		Contains("tags", []string{"sea"}).
//		Order("created_at", false).
//		Range(0, 19).
//		Execute()
func (c *Client) From(ctx context.Context, table string) *QueryBuilder {
	return &QueryBuilder{
		ctx:    ctx,
		client: c,
		req:    query.Request{Table: table, Action: query.Select, Columns: "*"},
	}
}

// Do runs a prepared request as the caller found on ctx.
func (c *Client) Do(ctx context.Context, req query.Request) (res Result) {
	id := identity.FromContext(ctx)

	ctx, span := c.tracer.StartRequest(ctx, req.Table, string(req.Action), string(id.Role))
	defer span.End()

	defer c.guard(&res, span, "request", req.Table)

	enforced, err := c.enforcer.Enforce(req, id)
	if err != nil {
		return c.fail(span, err, "request", req.Table)
	}

	resp, err := c.compiler.Execute(ctx, enforced)
	if err != nil {
		return c.fail(span, err, "request", req.Table)
	}

	c.tracer.RecordRows(span, len(resp.Rows))
	return Result{Data: shapeData(enforced, resp), Count: resp.Count}
}

// Rpc calls a named procedure as the caller found on ctx.
func (c *Client) Rpc(ctx context.Context, name string, args map[string]any) (res Result) {
	id := identity.FromContext(ctx)

	ctx, span := c.tracer.StartProcedure(ctx, name, string(id.Role))
	defer span.End()

	defer c.guard(&res, span, "rpc", name)

	data, err := c.dispatcher.Call(ctx, id, name, args)
	if err != nil {
		return c.fail(span, err, "rpc", name)
	}
	return Result{Data: data}
}

// shapeData picks the Data value matching the row shaping of req.
func shapeData(req query.Request, resp *compiler.Response) any {
	if req.WantSingleRow || req.WantAtMostOneRow {
		if len(resp.Rows) == 0 {
			return nil
		}
		return resp.Rows[0]
	}
	if req.Action != query.Select && !req.ReturnWrittenRows {
		return nil
	}
	if resp.Rows == nil {
		return []query.Record{}
	}
	return resp.Rows
}

func (c *Client) fail(span trace.Span, err error, kind, target string) Result {
	c.tracer.RecordErrorOnSpan(span, err)
	switch dataerr.GetErrorCategory(err) {
	case dataerr.KindStore, dataerr.KindTransientStore, dataerr.KindUnknown:
		c.logError("Data access failed", err, map[string]interface{}{kind: target})
	}
	return Result{Error: dataerr.Normalize(err)}
}

// guard turns a panic anywhere in the pipeline into a STORE_ERROR result.
func (c *Client) guard(res *Result, span trace.Span, kind, target string) {
	r := recover()
	if r == nil {
		return
	}
	err := dataerr.Store(dataerr.CodeStore, fmt.Errorf("internal failure: %v", r))
	*res = c.fail(span, err, kind, target)
}

func (c *Client) logError(msg string, err error, fields map[string]interface{}) {
	if c.logger != nil {
		c.logger.Error(msg, err, fields)
	}
}
