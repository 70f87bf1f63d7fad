package dal

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/lumastudio/dataplane/v1/compiler"
	"github.com/lumastudio/dataplane/v1/database"
	"github.com/lumastudio/dataplane/v1/dataerr"
	"github.com/lumastudio/dataplane/v1/executor"
	"github.com/lumastudio/dataplane/v1/identity"
	"github.com/lumastudio/dataplane/v1/policy"
	"github.com/lumastudio/dataplane/v1/query"
	"github.com/lumastudio/dataplane/v1/rpc"
	"github.com/lumastudio/dataplane/v1/schema"
	"github.com/lumastudio/dataplane/v1/tracer"
)

var testNow = time.Date(2025, 2, 20, 10, 0, 0, 0, time.UTC)

type scriptedRunner struct {
	mu         sync.Mutex
	statements []database.Statement
	handler    func(stmt database.Statement) (*executor.Result, error)
}

func (r *scriptedRunner) Run(_ context.Context, stmt database.Statement) (*executor.Result, error) {
	r.mu.Lock()
	r.statements = append(r.statements, stmt)
	r.mu.Unlock()
	if r.handler == nil {
		return &executor.Result{}, nil
	}
	return r.handler(stmt)
}

func (r *scriptedRunner) Dialect() database.Dialect { return database.MySQL }

func (r *scriptedRunner) find(prefix string) (database.Statement, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.statements {
		if strings.HasPrefix(s.SQL, prefix) {
			return s, true
		}
	}
	return database.Statement{}, false
}

type recordingLogger struct {
	mu     sync.Mutex
	errors []string
}

func (l *recordingLogger) Warn(string, error, ...map[string]interface{}) {}

func (l *recordingLogger) Error(msg string, _ error, _ ...map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

type fixture struct {
	client *Client
	runner *scriptedRunner
	spans  *tracetest.SpanRecorder
	logger *recordingLogger
}

func newFixture(handler func(database.Statement) (*executor.Result, error)) *fixture {
	registry := schema.MustDefaultRegistry()
	runner := &scriptedRunner{handler: handler}
	c := compiler.NewCompiler(registry, runner, nil).WithClock(func() time.Time { return testNow })
	enforcer := policy.NewEnforcer(registry, policy.DefaultRules()).WithClock(func() time.Time { return testNow })
	dispatcher := rpc.NewDispatcher(c, rpc.Config{}, nil).WithClock(func() time.Time { return testNow })

	spans := tracetest.NewSpanRecorder()
	log := &recordingLogger{}
	client := NewClient(enforcer, c, dispatcher).
		WithTracer(tracer.NewWithProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans)), nil)).
		WithLogger(log)

	return &fixture{client: client, runner: runner, spans: spans, logger: log}
}

func as(id identity.Identity) context.Context {
	return identity.WithIdentity(context.Background(), id)
}

var (
	guest = as(identity.Anonymous())
	alice = as(identity.ForUser(identity.Principal{ID: "u1"}))
	admin = as(identity.ForAdmin(identity.Principal{ID: "a1"}))
)

func TestSelectAsGuestAddsVisibilityFilter(t *testing.T) {
	f := newFixture(func(stmt database.Statement) (*executor.Result, error) {
		if strings.HasPrefix(stmt.SQL, "SELECT COUNT(*)") {
			return &executor.Result{Rows: []query.Record{{"total": int64(7)}}}, nil
		}
		return &executor.Result{Rows: []query.Record{{"id": "ph1", "url": "https://cdn/1.jpg"}}}, nil
	})

	res := f.client.From(guest, schema.TablePhotos).
		Select("id, url").
		Eq("album_id", "al1").
		Order("created_at", false).
		Range(0, 9).
		Count().
		Execute()

	require.True(t, res.OK(), "%+v", res.Error)
	assert.Equal(t, []query.Record{{"id": "ph1", "url": "https://cdn/1.jpg"}}, res.Rows())
	require.NotNil(t, res.Count)
	assert.Equal(t, int64(7), *res.Count)

	stmt, ok := f.runner.find("SELECT `id`")
	require.True(t, ok)
	assert.Equal(t, "SELECT `id`, `url` FROM `photos` WHERE `album_id` = @p1 AND `is_public` = @p2 ORDER BY `created_at` DESC LIMIT 10 OFFSET 0", stmt.SQL)
	assert.Equal(t, map[string]any{"p1": "al1", "p2": 1}, stmt.Params)
}

func TestBuilderLeavesCallerRequestUntouched(t *testing.T) {
	f := newFixture(nil)
	qb := f.client.From(guest, schema.TablePhotos).Select("id").Eq("album_id", "al1")

	res := qb.Execute()
	require.True(t, res.OK())
	assert.Len(t, qb.Request().Filters, 1)
}

func TestPipelineErrorsBecomeResults(t *testing.T) {
	duplicate := func(stmt database.Statement) (*executor.Result, error) {
		if strings.HasPrefix(stmt.SQL, "INSERT") {
			return nil, dataerr.Store(dataerr.CodeDuplicateKey, errors.New("Duplicate entry 'sea' for key 'name'"))
		}
		return &executor.Result{}, nil
	}

	tests := []struct {
		name     string
		handler  func(database.Statement) (*executor.Result, error)
		run      func(c *Client) Result
		wantCode string
		logged   bool
	}{
		{
			name:     "guest reads owner scoped table",
			run:      func(c *Client) Result { return c.From(guest, schema.TableBookings).Execute() },
			wantCode: dataerr.CodeUnauthorized,
		},
		{
			name:     "unknown table",
			run:      func(c *Client) Result { return c.From(admin, "secrets").Execute() },
			wantCode: dataerr.CodeUnknownTable,
		},
		{
			name:     "unknown column",
			run:      func(c *Client) Result { return c.From(admin, schema.TableTags).Eq("password", "x").Execute() },
			wantCode: dataerr.CodeColumnNotAllowed,
		},
		{
			name:     "table wide delete",
			run:      func(c *Client) Result { return c.From(admin, schema.TableBlackoutDates).Delete().Execute() },
			wantCode: dataerr.CodeMissingWhereClause,
		},
		{
			name:     "rpc only table",
			run:      func(c *Client) Result { return c.From(alice, schema.TablePhotoLikes).Execute() },
			wantCode: dataerr.CodePermissionDenied,
		},
		{
			name:    "duplicate key",
			handler: duplicate,
			run: func(c *Client) Result {
				return c.From(admin, schema.TableTags).Insert(query.Record{"name": "sea"}).Execute()
			},
			wantCode: dataerr.CodeDuplicateKey,
			logged:   true,
		},
		{
			name:     "single without rows",
			run:      func(c *Client) Result { return c.From(admin, schema.TableTags).Eq("name", "x").Single().Execute() },
			wantCode: dataerr.CodeNoRows,
		},
		{
			name:     "unknown procedure",
			run:      func(c *Client) Result { return c.Rpc(alice, "drop_everything", nil) },
			wantCode: dataerr.CodeUnknownProcedure,
		},
		{
			name:     "guest calls user procedure",
			run:      func(c *Client) Result { return c.Rpc(guest, rpc.ProcToggleLike, map[string]any{"photo_id": "ph1"}) },
			wantCode: dataerr.CodeUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(tt.handler)
			res := tt.run(f.client)

			require.NotNil(t, res.Error)
			assert.Equal(t, tt.wantCode, res.Error.Code)
			assert.NotEmpty(t, res.Error.Message)
			assert.Nil(t, res.Data)
			assert.False(t, res.OK())

			if tt.logged {
				assert.Len(t, f.logger.errors, 1)
			} else {
				assert.Empty(t, f.logger.errors)
			}

			ended := f.spans.Ended()
			require.Len(t, ended, 1)
			assert.Equal(t, codes.Error, ended[0].Status().Code)
		})
	}
}

func TestPanicInPipelineBecomesStoreError(t *testing.T) {
	f := newFixture(func(database.Statement) (*executor.Result, error) {
		panic("driver exploded")
	})

	res := f.client.From(admin, schema.TableBlackoutDates).Delete().Eq("date", "2025-03-01").Execute()

	require.NotNil(t, res.Error)
	assert.Equal(t, dataerr.CodeStore, res.Error.Code)
	assert.Contains(t, res.Error.Message, "driver exploded")
	assert.Len(t, f.logger.errors, 1)
}

func TestWriteWithoutReturningHasNoData(t *testing.T) {
	f := newFixture(func(database.Statement) (*executor.Result, error) {
		return &executor.Result{RowsAffected: 1}, nil
	})

	res := f.client.From(admin, schema.TableBlackoutDates).Delete().Eq("date", "2025-03-01").Execute()
	require.True(t, res.OK())
	assert.Nil(t, res.Data)

	stmt, ok := f.runner.find("DELETE")
	require.True(t, ok)
	assert.Equal(t, "DELETE FROM `blackout_dates` WHERE `date` = @p1", stmt.SQL)
}

func TestMaybeSingleWithoutRowsIsNil(t *testing.T) {
	f := newFixture(nil)

	res := f.client.From(admin, schema.TableTags).Eq("name", "x").MaybeSingle().Execute()
	require.True(t, res.OK())
	assert.Nil(t, res.Data)
	assert.Nil(t, res.Row())
}

func TestSingleReturnsTheRow(t *testing.T) {
	f := newFixture(func(database.Statement) (*executor.Result, error) {
		return &executor.Result{Rows: []query.Record{{"id": int64(3), "name": "sea"}}}, nil
	})

	res := f.client.From(alice, schema.TableTags).Select("id, name").Eq("name", "sea").Single().Execute()
	require.True(t, res.OK())
	assert.Equal(t, query.Record{"id": int64(3), "name": "sea"}, res.Row())
}

func TestRpcReturnsProcedureResult(t *testing.T) {
	f := newFixture(nil)

	res := f.client.Rpc(as(identity.SystemIdentity()), rpc.ProcRecountTagUsage, nil)
	require.True(t, res.OK(), "%+v", res.Error)
	assert.Equal(t, map[string]any{"updated": 0}, res.Data)

	ended := f.spans.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "dal.rpc", ended[0].Name())
	assert.Equal(t, codes.Unset, ended[0].Status().Code)
}

func TestClientWithoutTracerOrLogger(t *testing.T) {
	registry := schema.MustDefaultRegistry()
	runner := &scriptedRunner{}
	c := compiler.NewCompiler(registry, runner, nil)
	client := NewClient(policy.NewEnforcer(registry, policy.DefaultRules()), c, rpc.NewDispatcher(c, rpc.Config{}, nil))

	res := client.From(guest, schema.TableBookings).Execute()
	require.NotNil(t, res.Error)
	assert.Equal(t, dataerr.CodeUnauthorized, res.Error.Code)

	res = client.From(guest, schema.TableTags).Execute()
	assert.True(t, res.OK())
	assert.Equal(t, []query.Record{}, res.Data)
}
