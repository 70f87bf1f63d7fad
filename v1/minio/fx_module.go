package minio

import (
	"context"
	"sync"

	"go.uber.org/fx"
)

// FXModule provides *AssetStore and runs its health monitor while the
// application is up. Applications without object storage leave it out.
var FXModule = fx.Module("minio",
	fx.Provide(
		NewClient,
	),
	fx.Invoke(RegisterLifecycle),
)

// LifecycleParams groups the dependencies of RegisterLifecycle.
type LifecycleParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Store     *AssetStore
	Logger    Logger `optional:"true"`
}

// RegisterLifecycle starts the health monitor on start and stops it on stop.
func RegisterLifecycle(p LifecycleParams) {
	if p.Logger != nil {
		p.Store.WithLogger(p.Logger)
	}

	wg := &sync.WaitGroup{}
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			wg.Add(1)
			go func() {
				defer wg.Done()
				p.Store.monitorConnection(context.Background())
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			p.Store.logInfo("closing minio asset store", nil)
			p.Store.GracefulShutdown()
			wg.Wait()
			return nil
		},
	})
}
