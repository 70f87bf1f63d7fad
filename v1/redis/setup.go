package redis

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lumastudio/dataplane/v1/observability"
)

// ErrNoHost is returned by NewClient when no server is configured.
var ErrNoHost = errors.New("redis: no host configured")

// Logger is the logging contract of the cache.
type Logger interface {
	Info(msg string, err error, fields ...map[string]interface{})
	Warn(msg string, err error, fields ...map[string]interface{})
	Error(msg string, err error, fields ...map[string]interface{})
}

// commands is the subset of redis.UniversalClient the cache uses.
type commands interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// ViewCache records recently counted photo views in Redis so repeats skip
// the photo_views lookup.
type ViewCache struct {
	client   commands
	cfg      Config
	observer observability.Observer
	logger   Logger

	closeOnce sync.Once
	closeErr  error
}

// NewClient creates the cache for a standalone server. No connection is
// made until the first command.
func NewClient(cfg Config) (*ViewCache, error) {
	if !cfg.Enabled() {
		return nil, ErrNoHost
	}
	cfg = cfg.withDefaults()

	var tlsConfig *tls.Config
	if cfg.TLS.Enabled {
		var err error
		tlsConfig, err = createTLSConfig(cfg.TLS, cfg.Host)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Host + ":" + strconv.Itoa(cfg.Port),
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		TLSConfig:    tlsConfig,
	})
	return newViewCache(client, cfg), nil
}

func newViewCache(client commands, cfg Config) *ViewCache {
	return &ViewCache{client: client, cfg: cfg.withDefaults()}
}

// WithObserver attaches an observer notified after every command.
func (c *ViewCache) WithObserver(observer observability.Observer) *ViewCache {
	c.observer = observer
	return c
}

// WithLogger attaches a logger.
func (c *ViewCache) WithLogger(logger Logger) *ViewCache {
	c.logger = logger
	return c
}

// Ping checks that the server answers.
func (c *ViewCache) Ping(ctx context.Context) error {
	start := time.Now()
	err := c.client.Ping(ctx).Err()
	c.observeOperation("ping", "", time.Since(start), err, nil)
	return err
}

// Close closes the connection pool. Later calls return the first result.
func (c *ViewCache) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.client.Close()
		if c.closeErr != nil && c.logger != nil {
			c.logger.Warn("Failed to close Redis client", c.closeErr)
		}
	})
	return c.closeErr
}

func (c *ViewCache) observeOperation(operation, key string, duration time.Duration, err error, metadata map[string]interface{}) {
	if c.observer == nil {
		return
	}
	c.observer.ObserveOperation(observability.OperationContext{
		Component: "redis",
		Operation: operation,
		Resource:  key,
		Duration:  duration,
		Error:     err,
		Metadata:  metadata,
	})
}

func createTLSConfig(cfg TLSConfig, defaultServerName string) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		InsecureSkipVerify: cfg.InsecureSkipVerify,
		ServerName:         defaultServerName,
	}
	if cfg.ServerName != "" {
		tlsConfig.ServerName = cfg.ServerName
	}

	if cfg.CACertPath != "" {
		caCert, err := os.ReadFile(cfg.CACertPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA cert: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA cert")
		}
		tlsConfig.RootCAs = pool
	}

	if cfg.ClientCertPath != "" && cfg.ClientKeyPath != "" {
		cert, err := tls.LoadX509KeyPair(cfg.ClientCertPath, cfg.ClientKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load client cert: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}
	return tlsConfig, nil
}
