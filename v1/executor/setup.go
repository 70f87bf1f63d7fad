package executor

import (
	"context"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/lumastudio/dataplane/v1/database"
	"github.com/lumastudio/dataplane/v1/dataerr"
	"github.com/lumastudio/dataplane/v1/observability"
	"github.com/lumastudio/dataplane/v1/query"
)

// Logger is the logging contract of the executor.
type Logger interface {
	Debug(msg string, err error, fields ...map[string]interface{})
	Warn(msg string, err error, fields ...map[string]interface{})
	Error(msg string, err error, fields ...map[string]interface{})
}

// Result is the normalized outcome of one statement.
type Result struct {
	Columns      []string
	Rows         []query.Record
	RowsAffected int64
	InsertID     int64
}

// Executor submits statements to a Channel, retrying classified transient
// failures with exponential backoff and a connection rebuild before each
// retry.
type Executor struct {
	channel  database.Channel
	cfg      Config
	logger   Logger
	observer observability.Observer
}

// NewExecutor returns an executor over channel. logger may be nil.
func NewExecutor(channel database.Channel, cfg Config, logger Logger) *Executor {
	return &Executor{
		channel: channel,
		cfg:     cfg.withDefaults(),
		logger:  logger,
	}
}

// WithObserver attaches an observer notified once per statement.
func (e *Executor) WithObserver(observer observability.Observer) *Executor {
	e.observer = observer
	return e
}

// Dialect returns the dialect of the underlying channel.
func (e *Executor) Dialect() database.Dialect {
	return e.channel.Dialect()
}

// Run executes stmt and normalizes its result.
//
// Transient failures are retried up to MaxRetries times and surface as
// TRANSIENT_STORE_ERROR once exhausted. Every other failure is returned
// immediately as a translated store error.
func (e *Executor) Run(ctx context.Context, stmt database.Statement) (*Result, error) {
	start := time.Now()

	var (
		raw       *database.Result
		attempts  int
		transient bool
	)

	operation := func() error {
		attempts++
		if attempts > 1 {
			if err := e.channel.Reset(ctx); err != nil {
				transient = true
				return err
			}
		}

		res, err := e.channel.Execute(ctx, stmt)
		if err != nil {
			if IsTransient(err) {
				transient = true
				return err
			}
			transient = false
			return backoff.Permanent(err)
		}
		raw = res
		return nil
	}

	notify := func(err error, wait time.Duration) {
		e.logWarn("Transient store failure, rebuilding connection and retrying", err, map[string]interface{}{
			"attempt": attempts,
			"wait_ms": wait.Milliseconds(),
			"verb":    statementVerb(stmt.SQL),
		})
	}

	err := backoff.RetryNotify(operation, e.retryPolicy(ctx), notify)
	retries := attempts - 1
	if err != nil {
		var out error
		switch {
		case ctx.Err() != nil:
			out = TranslateError(ctx.Err())
		case transient:
			e.logError("Store still unavailable after retries", err, map[string]interface{}{
				"attempts": attempts,
				"verb":     statementVerb(stmt.SQL),
			})
			out = dataerr.Transient(err)
		default:
			out = TranslateError(err)
		}
		e.observeOperation(stmt, time.Since(start), out, 0, retries)
		return nil, out
	}

	res := normalize(raw)
	size := int64(len(res.Rows))
	if stmt.Mode != database.ModeQuery {
		size = res.RowsAffected
	}
	e.observeOperation(stmt, time.Since(start), nil, size, retries)
	e.logDebug("Executed statement", map[string]interface{}{
		"verb":     statementVerb(stmt.SQL),
		"rows":     len(res.Rows),
		"affected": res.RowsAffected,
		"retries":  retries,
	})
	return res, nil
}

func (e *Executor) retryPolicy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.cfg.InitialBackoff
	b.MaxInterval = e.cfg.MaxBackoff
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(e.cfg.MaxRetries)), ctx)
}

// statementVerb returns the lower-cased first keyword of sql.
func statementVerb(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[0])
}

func (e *Executor) logDebug(msg string, fields map[string]interface{}) {
	if e.logger != nil {
		e.logger.Debug(msg, nil, fields)
	}
}

func (e *Executor) logWarn(msg string, err error, fields map[string]interface{}) {
	if e.logger != nil {
		e.logger.Warn(msg, err, fields)
	}
}

func (e *Executor) logError(msg string, err error, fields map[string]interface{}) {
	if e.logger != nil {
		e.logger.Error(msg, err, fields)
	}
}
