package database

import (
	"context"
	"sync"

	"go.uber.org/fx"
)

// FXModule provides the gorm-backed SQL channel as both *DB and Channel and
// runs the connection monitor for the lifetime of the application.
var FXModule = fx.Module("database",
	fx.Provide(
		NewDBWithDI,
		fx.Annotate(
			ProvideChannel,
			fx.As(new(Channel)),
		),
	),
	fx.Invoke(RegisterDatabaseLifecycle),
)

// ProvideChannel exposes the concrete *DB as the Channel interface.
func ProvideChannel(db *DB) Channel {
	return db
}

// DatabaseParams groups the dependencies needed to create the channel.
type DatabaseParams struct {
	fx.In

	Config Config
	Logger Logger `optional:"true"`
}

// NewDBWithDI creates the channel from injected configuration.
func NewDBWithDI(params DatabaseParams) (*DB, error) {
	db, err := NewDB(params.Config)
	if err != nil {
		return nil, err
	}
	if params.Logger != nil {
		db.WithLogger(params.Logger)
	}
	return db, nil
}

// DatabaseLifeCycleParams groups the dependencies for lifecycle management.
type DatabaseLifeCycleParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	DB        *DB
}

// RegisterDatabaseLifecycle starts the monitor and retry loops on start and
// closes the pool on stop. A WaitGroup makes stop wait for both loops.
func RegisterDatabaseLifecycle(params DatabaseLifeCycleParams) {
	wg := &sync.WaitGroup{}
	loopCtx, cancel := context.WithCancel(context.Background())

	params.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			wg.Add(1)
			go func() {
				defer wg.Done()
				params.DB.MonitorConnection(loopCtx)
			}()

			wg.Add(1)
			go func() {
				defer wg.Done()
				params.DB.RetryConnection(loopCtx)
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			params.DB.closeShutdownOnce.Do(func() {
				close(params.DB.shutdownSignal)
			})
			cancel()

			wg.Wait()

			return params.DB.GracefulShutdown()
		},
	})
}
