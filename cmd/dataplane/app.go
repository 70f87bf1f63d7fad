package main

import (
	"go.uber.org/fx"

	"github.com/lumastudio/dataplane/internal/cli"
	"github.com/lumastudio/dataplane/v1/dal"
	"github.com/lumastudio/dataplane/v1/database"
	"github.com/lumastudio/dataplane/v1/kafka"
	"github.com/lumastudio/dataplane/v1/logger"
	"github.com/lumastudio/dataplane/v1/minio"
	"github.com/lumastudio/dataplane/v1/observability"
	"github.com/lumastudio/dataplane/v1/redis"
	"github.com/lumastudio/dataplane/v1/rpc"
)

// coreOptions builds the data access layer shared by every command: the
// logger, the SQL channel and the dal pipeline, plus object storage, the
// event publisher and the view cache when they are configured.
func coreOptions(c *cli.Config) fx.Option {
	opts := []fx.Option{
		fx.Supply(c.Logger, c.Database, c.Executor, c.RPC),
		logger.FXModule,
		fx.Provide(func(l logger.Logger) database.Logger { return l }),
		database.FXModule,
		dal.FXModule,
	}

	if c.Minio.Enabled() {
		opts = append(opts,
			fx.Supply(c.Minio),
			fx.Provide(
				func(l logger.Logger) minio.Logger { return l },
				provideAssetStore,
			),
			minio.FXModule,
		)
	}

	if c.Kafka.Enabled() {
		opts = append(opts,
			fx.Supply(c.Kafka),
			fx.Provide(
				func(l logger.Logger) kafka.Logger { return l },
				provideEventPublisher,
			),
			kafka.FXModule,
		)
	}

	if c.Redis.Enabled() {
		opts = append(opts,
			fx.Supply(c.Redis),
			fx.Provide(
				func(l logger.Logger) redis.Logger { return l },
				provideViewCache,
			),
			redis.FXModule,
		)
	}

	return fx.Options(opts...)
}

type assetStoreParams struct {
	fx.In

	Store    *minio.AssetStore
	Observer observability.Observer `optional:"true"`
}

func provideAssetStore(p assetStoreParams) rpc.AssetStore {
	return p.Store.WithObserver(p.Observer)
}

type eventPublisherParams struct {
	fx.In

	Publisher *kafka.Publisher
	Observer  observability.Observer `optional:"true"`
}

func provideEventPublisher(p eventPublisherParams) rpc.EventPublisher {
	return p.Publisher.WithObserver(p.Observer)
}

type viewCacheParams struct {
	fx.In

	Cache    *redis.ViewCache
	Observer observability.Observer `optional:"true"`
}

func provideViewCache(p viewCacheParams) rpc.ViewCache {
	return p.Cache.WithObserver(p.Observer)
}
