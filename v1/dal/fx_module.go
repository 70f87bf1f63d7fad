package dal

import (
	"go.uber.org/fx"

	"github.com/lumastudio/dataplane/v1/compiler"
	"github.com/lumastudio/dataplane/v1/database"
	"github.com/lumastudio/dataplane/v1/executor"
	"github.com/lumastudio/dataplane/v1/logger"
	"github.com/lumastudio/dataplane/v1/observability"
	"github.com/lumastudio/dataplane/v1/policy"
	"github.com/lumastudio/dataplane/v1/rpc"
	"github.com/lumastudio/dataplane/v1/schema"
	"github.com/lumastudio/dataplane/v1/tracer"
)

// FXModule assembles the query pipeline on top of a database.Channel:
// registry, enforcer, executor, compiler, dispatcher and the *Client.
var FXModule = fx.Module("dal",
	fx.Provide(
		schema.NewDefaultRegistry,
		policy.DefaultRules,
		policy.NewEnforcer,
		NewExecutor,
		NewCompiler,
		NewDispatcher,
		NewClientWithDI,
	),
)

// ExecutorParams groups the dependencies of the executor.
type ExecutorParams struct {
	fx.In

	Channel  database.Channel
	Config   executor.Config
	Logger   logger.Logger          `optional:"true"`
	Observer observability.Observer `optional:"true"`
}

// NewExecutor builds the retrying executor over the channel.
func NewExecutor(p ExecutorParams) *executor.Executor {
	var log executor.Logger
	if p.Logger != nil {
		log = p.Logger
	}
	return executor.NewExecutor(p.Channel, p.Config, log).WithObserver(p.Observer)
}

// CompilerParams groups the dependencies of the compiler.
type CompilerParams struct {
	fx.In

	Registry *schema.Registry
	Executor *executor.Executor
	Logger   logger.Logger `optional:"true"`
}

// NewCompiler builds the compiler running its statements on the executor.
func NewCompiler(p CompilerParams) *compiler.Compiler {
	var log compiler.Logger
	if p.Logger != nil {
		log = p.Logger
	}
	return compiler.NewCompiler(p.Registry, p.Executor, log)
}

// DispatcherParams groups the dependencies of the dispatcher. The asset
// store, the event publisher and the view cache are optional collaborators.
type DispatcherParams struct {
	fx.In

	Compiler *compiler.Compiler
	Config   rpc.Config
	Logger   logger.Logger          `optional:"true"`
	Observer observability.Observer `optional:"true"`
	Assets   rpc.AssetStore         `optional:"true"`
	Events   rpc.EventPublisher     `optional:"true"`
	Views    rpc.ViewCache          `optional:"true"`
}

// NewDispatcher builds the procedure dispatcher.
func NewDispatcher(p DispatcherParams) *rpc.Dispatcher {
	var log rpc.Logger
	if p.Logger != nil {
		log = p.Logger
	}
	d := rpc.NewDispatcher(p.Compiler, p.Config, log).WithObserver(p.Observer)
	if p.Assets != nil {
		d.WithAssetStore(p.Assets)
	}
	if p.Events != nil {
		d.WithEventPublisher(p.Events)
	}
	if p.Views != nil {
		d.WithViewCache(p.Views)
	}
	return d
}

// ClientParams groups the dependencies of the client.
type ClientParams struct {
	fx.In

	Enforcer   *policy.Enforcer
	Compiler   *compiler.Compiler
	Dispatcher *rpc.Dispatcher
	Tracer     *tracer.Tracer `optional:"true"`
	Logger     logger.Logger  `optional:"true"`
}

// NewClientWithDI builds the client from injected stages.
func NewClientWithDI(p ClientParams) *Client {
	c := NewClient(p.Enforcer, p.Compiler, p.Dispatcher).WithTracer(p.Tracer)
	if p.Logger != nil {
		c.WithLogger(p.Logger)
	}
	return c
}
