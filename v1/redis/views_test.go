package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumastudio/dataplane/v1/observability"
)

type fakeCommands struct {
	mu     sync.Mutex
	keys   map[string]time.Duration
	failed error
	closed int
}

func newFakeCommands() *fakeCommands {
	return &fakeCommands{keys: map[string]time.Duration{}}
}

func (f *fakeCommands) SetNX(_ context.Context, key string, _ interface{}, ttl time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failed != nil {
		return redis.NewBoolResult(false, f.failed)
	}
	if _, ok := f.keys[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.keys[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (f *fakeCommands) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.keys[k]; ok {
			delete(f.keys, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (f *fakeCommands) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", f.failed)
}

func (f *fakeCommands) Close() error {
	f.closed++
	return nil
}

type recordingObserver struct {
	ops []observability.OperationContext
}

func (o *recordingObserver) ObserveOperation(ctx observability.OperationContext) {
	o.ops = append(o.ops, ctx)
}

func TestClaimIsExclusiveUntilReleased(t *testing.T) {
	ctx := context.Background()
	fake := newFakeCommands()
	cache := newViewCache(fake, Config{Host: "localhost", ViewTTL: time.Hour})

	claimed, err := cache.Claim(ctx, "ph1:user:u1")
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Equal(t, time.Hour, fake.keys["dataplane:view:ph1:user:u1"])

	claimed, err = cache.Claim(ctx, "ph1:user:u1")
	require.NoError(t, err)
	assert.False(t, claimed)

	require.NoError(t, cache.Release(ctx, "ph1:user:u1"))
	claimed, err = cache.Claim(ctx, "ph1:user:u1")
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestClaimReportsServerErrors(t *testing.T) {
	fake := newFakeCommands()
	fake.failed = errors.New("connection refused")
	obs := &recordingObserver{}
	cache := newViewCache(fake, Config{Host: "localhost", KeyPrefix: "p:"}).WithObserver(obs)

	claimed, err := cache.Claim(context.Background(), "ph1:session:s")
	assert.False(t, claimed)
	assert.EqualError(t, err, "connection refused")

	require.Len(t, obs.ops, 1)
	assert.Equal(t, "redis", obs.ops[0].Component)
	assert.Equal(t, "claim_view", obs.ops[0].Operation)
	assert.Equal(t, "p:view:ph1:session:s", obs.ops[0].Resource)
	assert.Equal(t, DefaultViewTTL.String(), obs.ops[0].Metadata["ttl"])
}

func TestCloseOnce(t *testing.T) {
	fake := newFakeCommands()
	cache := newViewCache(fake, Config{Host: "localhost"})
	require.NoError(t, cache.Close())
	require.NoError(t, cache.Close())
	assert.Equal(t, 1, fake.closed)
}

func TestNewClientRequiresHost(t *testing.T) {
	_, err := NewClient(Config{})
	assert.ErrorIs(t, err, ErrNoHost)

	cache, err := NewClient(Config{Host: "localhost"})
	require.NoError(t, err)
	assert.Equal(t, DefaultPort, cache.cfg.Port)
	require.NoError(t, cache.Close())
}

func TestNewClientRejectsUnreadableCA(t *testing.T) {
	_, err := NewClient(Config{Host: "localhost", TLS: TLSConfig{Enabled: true, CACertPath: "/nonexistent/ca.pem"}})
	assert.ErrorContains(t, err, "failed to read CA cert")
}
