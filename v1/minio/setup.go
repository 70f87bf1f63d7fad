package minio

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/lumastudio/dataplane/v1/observability"
)

// Logger is the logging contract of the asset store.
type Logger interface {
	Info(msg string, err error, fields ...map[string]interface{})
	Warn(msg string, err error, fields ...map[string]interface{})
	Error(msg string, err error, fields ...map[string]interface{})
}

// objectAPI is the part of *minio.Client the asset store uses.
type objectAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	RemoveObjects(ctx context.Context, bucketName string, objectsCh <-chan minio.ObjectInfo, opts minio.RemoveObjectsOptions) <-chan minio.RemoveObjectError
}

// AssetStore deletes photo and cover assets from an S3-compatible bucket.
type AssetStore struct {
	// api is swapped atomically when the health monitor reconnects.
	api atomic.Pointer[objectAPI]

	cfg      Config
	connect  func(Config) (objectAPI, error)
	observer observability.Observer
	logger   Logger

	shutdownSignal chan struct{}
	closeOnce      sync.Once
}

// NewClient connects to the bucket and verifies that it exists.
func NewClient(cfg Config) (*AssetStore, error) {
	return newAssetStore(cfg, connectToMinio)
}

func newAssetStore(cfg Config, connect func(Config) (objectAPI, error)) (*AssetStore, error) {
	if cfg.Connection.BucketName == "" {
		return nil, ErrMissingBucket
	}

	s := &AssetStore{
		cfg:            cfg.withDefaults(),
		connect:        connect,
		shutdownSignal: make(chan struct{}),
	}

	api, err := connect(s.cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	s.api.Store(&api)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.validateConnection(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// WithObserver reports every DeleteAssets call to observer.
func (s *AssetStore) WithObserver(observer observability.Observer) *AssetStore {
	s.observer = observer
	return s
}

// WithLogger sets the logger of the health monitor and deletions.
func (s *AssetStore) WithLogger(logger Logger) *AssetStore {
	s.logger = logger
	return s
}

func connectToMinio(cfg Config) (objectAPI, error) {
	if cfg.Connection.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint cannot be empty")
	}
	client, err := minio.New(cfg.Connection.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Connection.AccessKeyID, cfg.Connection.SecretAccessKey, ""),
		Secure: cfg.Connection.UseSSL,
		Region: cfg.Connection.Region,
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (s *AssetStore) load() objectAPI {
	if p := s.api.Load(); p != nil {
		return *p
	}
	return nil
}

// validateConnection checks the configured bucket only, so credentials do
// not need ListAllMyBuckets.
func (s *AssetStore) validateConnection(ctx context.Context) error {
	api := s.load()
	if api == nil {
		return ErrConnectionFailed
	}
	ok, err := api.BucketExists(ctx, s.cfg.Connection.BucketName)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrBucketNotFound, s.cfg.Connection.BucketName)
	}
	return nil
}

// monitorConnection probes the bucket periodically and rebuilds the client
// after a failed probe. It returns on shutdown or when ctx is done.
func (s *AssetStore) monitorConnection(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err := s.validateConnection(checkCtx)
			cancel()
			if err == nil {
				continue
			}
			s.logWarn("MinIO health check failed, reconnecting", err, map[string]interface{}{
				"endpoint": s.cfg.Connection.Endpoint,
			})
			s.reconnect(ctx)

		case <-s.shutdownSignal:
			return

		case <-ctx.Done():
			return
		}
	}
}

// reconnect builds a fresh client and swaps it in only once it can see the
// bucket; otherwise the previous client is kept for the next probe.
func (s *AssetStore) reconnect(ctx context.Context) {
	api, err := s.connect(s.cfg)
	if err != nil {
		s.logError("MinIO reconnection failed", err, nil)
		return
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	ok, err := api.BucketExists(checkCtx, s.cfg.Connection.BucketName)
	if err != nil || !ok {
		s.logError("MinIO reconnection could not verify bucket", err, map[string]interface{}{
			"bucket": s.cfg.Connection.BucketName,
		})
		return
	}

	s.api.Store(&api)
	s.logInfo("Reconnected to MinIO", map[string]interface{}{
		"endpoint": s.cfg.Connection.Endpoint,
		"bucket":   s.cfg.Connection.BucketName,
	})
}

// GracefulShutdown stops the health monitor. It is safe to call twice.
func (s *AssetStore) GracefulShutdown() {
	s.closeOnce.Do(func() { close(s.shutdownSignal) })
}

func (s *AssetStore) observeOperation(operation string, duration time.Duration, err error, size int64, metadata map[string]interface{}) {
	if s == nil || s.observer == nil {
		return
	}
	s.observer.ObserveOperation(observability.OperationContext{
		Component: "minio",
		Operation: operation,
		Resource:  s.cfg.Connection.BucketName,
		Duration:  duration,
		Error:     err,
		Size:      size,
		Metadata:  metadata,
	})
}

func (s *AssetStore) logInfo(msg string, fields map[string]interface{}) {
	if s.logger != nil {
		s.logger.Info(msg, nil, fields)
	}
}

func (s *AssetStore) logWarn(msg string, err error, fields map[string]interface{}) {
	if s.logger != nil {
		s.logger.Warn(msg, err, fields)
	}
}

func (s *AssetStore) logError(msg string, err error, fields map[string]interface{}) {
	if s.logger != nil {
		s.logger.Error(msg, err, fields)
	}
}
