package minio

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumastudio/dataplane/v1/observability"
)

type fakeBucket struct {
	mu       sync.Mutex
	exists   bool
	probeErr error
	failures map[string]error
	removed  []string
}

func (f *fakeBucket) BucketExists(context.Context, string) (bool, error) {
	return f.exists, f.probeErr
}

func (f *fakeBucket) RemoveObjects(_ context.Context, _ string, objects <-chan minio.ObjectInfo, _ minio.RemoveObjectsOptions) <-chan minio.RemoveObjectError {
	out := make(chan minio.RemoveObjectError, 16)
	go func() {
		defer close(out)
		for obj := range objects {
			f.mu.Lock()
			f.removed = append(f.removed, obj.Key)
			f.mu.Unlock()
			if err, ok := f.failures[obj.Key]; ok {
				out <- minio.RemoveObjectError{ObjectName: obj.Key, Err: err}
			}
		}
	}()
	return out
}

type recordingObserver struct {
	ops []observability.OperationContext
}

func (r *recordingObserver) ObserveOperation(ctx observability.OperationContext) {
	r.ops = append(r.ops, ctx)
}

func newTestStore(t *testing.T, bucket *fakeBucket) *AssetStore {
	t.Helper()
	s, err := newAssetStore(Config{
		Connection:    ConnectionConfig{Endpoint: "minio:9000", BucketName: "photos"},
		PublicBaseURL: "https://cdn.example.com/",
	}, func(Config) (objectAPI, error) { return bucket, nil })
	require.NoError(t, err)
	return s
}

func TestObjectKey(t *testing.T) {
	s := newTestStore(t, &fakeBucket{exists: true})

	tests := []struct {
		name string
		url  string
		want string
	}{
		{"public base url", "https://cdn.example.com/albums/a1/1.jpg", "albums/a1/1.jpg"},
		{"path style", "http://minio:9000/photos/albums/a1/2.jpg", "albums/a1/2.jpg"},
		{"virtual hosted", "https://photos.s3.example.com/albums/a1/3.jpg", "albums/a1/3.jpg"},
		{"bare key", "albums/a1/4.jpg", "albums/a1/4.jpg"},
		{"foreign host", "https://elsewhere.com/x.jpg", ""},
		{"other bucket", "http://minio:9000/avatars/x.jpg", ""},
		{"empty", "  ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.ObjectKey(tt.url))
		})
	}
}

func TestDeleteAssetsRemovesDistinctKeys(t *testing.T) {
	bucket := &fakeBucket{exists: true}
	s := newTestStore(t, bucket)
	obs := &recordingObserver{}
	s.WithObserver(obs)

	err := s.DeleteAssets(context.Background(), []string{
		"https://cdn.example.com/a/1.jpg",
		"https://cdn.example.com/a/1.jpg",
		"https://elsewhere.com/x.jpg",
		"",
		"https://cdn.example.com/a/1_t.jpg",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a/1.jpg", "a/1_t.jpg"}, bucket.removed)

	require.Len(t, obs.ops, 1)
	assert.Equal(t, "minio", obs.ops[0].Component)
	assert.Equal(t, "delete_assets", obs.ops[0].Operation)
	assert.Equal(t, "photos", obs.ops[0].Resource)
	assert.Equal(t, int64(2), obs.ops[0].Size)
}

func TestDeleteAssetsTreatsMissingObjectsAsDeleted(t *testing.T) {
	bucket := &fakeBucket{exists: true, failures: map[string]error{
		"a/1.jpg": minio.ErrorResponse{Code: "NoSuchKey"},
	}}
	s := newTestStore(t, bucket)

	assert.NoError(t, s.DeleteAssets(context.Background(), []string{"https://cdn.example.com/a/1.jpg"}))
}

func TestDeleteAssetsReportsFailures(t *testing.T) {
	denied := errors.New("access denied")
	bucket := &fakeBucket{exists: true, failures: map[string]error{"a/2.jpg": denied}}
	s := newTestStore(t, bucket)

	err := s.DeleteAssets(context.Background(), []string{
		"https://cdn.example.com/a/1.jpg",
		"https://cdn.example.com/a/2.jpg",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, denied)
	assert.Contains(t, err.Error(), "a/2.jpg")
}

func TestDeleteAssetsWithNoKeysSkipsBucket(t *testing.T) {
	bucket := &fakeBucket{exists: true}
	s := newTestStore(t, bucket)

	assert.NoError(t, s.DeleteAssets(context.Background(), []string{"https://elsewhere.com/x.jpg"}))
	assert.Empty(t, bucket.removed)
}

func TestNewAssetStoreValidatesBucket(t *testing.T) {
	connect := func(b *fakeBucket) func(Config) (objectAPI, error) {
		return func(Config) (objectAPI, error) { return b, nil }
	}

	_, err := newAssetStore(Config{}, connect(&fakeBucket{exists: true}))
	assert.ErrorIs(t, err, ErrMissingBucket)

	cfg := Config{Connection: ConnectionConfig{Endpoint: "minio:9000", BucketName: "photos"}}
	_, err = newAssetStore(cfg, connect(&fakeBucket{exists: false}))
	assert.ErrorIs(t, err, ErrBucketNotFound)

	_, err = newAssetStore(cfg, connect(&fakeBucket{probeErr: errors.New("dial tcp")}))
	assert.ErrorIs(t, err, ErrConnectionFailed)

	_, err = newAssetStore(cfg, func(Config) (objectAPI, error) { return nil, errors.New("bad endpoint") })
	assert.ErrorIs(t, err, ErrConnectionFailed)
}

func TestReconnectKeepsClientWhenBucketUnreachable(t *testing.T) {
	healthy := &fakeBucket{exists: true}
	s := newTestStore(t, healthy)

	s.connect = func(Config) (objectAPI, error) { return &fakeBucket{probeErr: errors.New("down")}, nil }
	s.reconnect(context.Background())
	assert.Same(t, healthy, s.load())

	replacement := &fakeBucket{exists: true}
	s.connect = func(Config) (objectAPI, error) { return replacement, nil }
	s.reconnect(context.Background())
	assert.Same(t, replacement, s.load())
}

func TestGracefulShutdownIsIdempotent(t *testing.T) {
	s := newTestStore(t, &fakeBucket{exists: true})
	assert.NotPanics(t, func() {
		s.GracefulShutdown()
		s.GracefulShutdown()
	})
}
