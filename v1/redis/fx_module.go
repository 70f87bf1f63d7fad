package redis

import (
	"context"

	"go.uber.org/fx"
)

// FXModule provides the *ViewCache, pings it on start and closes it on
// stop. Applications without Redis leave it out.
var FXModule = fx.Module("redis",
	fx.Provide(
		NewClient,
	),
	fx.Invoke(RegisterLifecycle),
)

// LifecycleParams groups the dependencies of RegisterLifecycle.
type LifecycleParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Cache     *ViewCache
	Logger    Logger `optional:"true"`
}

// RegisterLifecycle pings the server on start and closes the pool on stop.
// An unreachable server is logged and not fatal; claims fall back to the
// store until it answers.
func RegisterLifecycle(p LifecycleParams) {
	if p.Logger != nil {
		p.Cache.WithLogger(p.Logger)
	}
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := p.Cache.Ping(ctx); err != nil && p.Logger != nil {
				p.Logger.Warn("Redis is unreachable, view claims fall back to the store", err,
					map[string]interface{}{"host": p.Cache.cfg.Host})
			}
			return nil
		},
		OnStop: func(context.Context) error {
			return p.Cache.Close()
		},
	})
}
