package rpc

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/lumastudio/dataplane/v1/database"
	"github.com/lumastudio/dataplane/v1/executor"
	"github.com/lumastudio/dataplane/v1/identity"
	"github.com/lumastudio/dataplane/v1/query"
)

func viewStore(views int64) *fakeStore {
	return (&fakeStore{}).
		on("SELECT `id` FROM `photos`", rows(query.Record{"id": "ph1"})).
		on("INSERT INTO `photo_views`", func(database.Statement) (*executor.Result, error) {
			return &executor.Result{RowsAffected: 1, InsertID: 7}, nil
		}).
		on("SELECT `view_count` FROM `photos`", rows(query.Record{"view_count": views}))
}

func TestIncrementPhotoViewSkipsStoreWhenCacheHoldsClaim(t *testing.T) {
	ctrl := gomock.NewController(t)
	cache := NewMockViewCache(ctrl)
	cache.EXPECT().Claim(gomock.Any(), "ph1:user:u1").Return(false, nil)

	store := viewStore(4)
	got, err := newTestDispatcher(store).WithViewCache(cache).
		Call(context.Background(), alice, ProcIncrementPhotoView, map[string]any{"photo_id": "ph1"})
	require.NoError(t, err)
	assert.Equal(t, ViewResult{Counted: false, ViewCount: 4}, got)
	assert.Equal(t, -1, store.indexOf("SELECT `id` FROM `photo_views`"))
	assert.Equal(t, -1, store.indexOf("INSERT INTO `photo_views`"))
}

func TestIncrementPhotoViewChecksStoreAfterClaim(t *testing.T) {
	ctrl := gomock.NewController(t)
	cache := NewMockViewCache(ctrl)
	cache.EXPECT().Claim(gomock.Any(), "ph1:session:s-9").Return(true, nil)

	store := viewStore(5)
	got, err := newTestDispatcher(store).WithViewCache(cache).
		Call(context.Background(), identity.Anonymous(), ProcIncrementPhotoView, map[string]any{"photo_id": "ph1", "session_token": "s-9"})
	require.NoError(t, err)
	assert.Equal(t, ViewResult{Counted: true, ViewCount: 5}, got)
	assert.Less(t, store.indexOf("SELECT `id` FROM `photo_views`"), store.indexOf("INSERT INTO `photo_views`"))
}

func TestIncrementPhotoViewFallsBackWhenCacheFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	cache := NewMockViewCache(ctrl)
	cache.EXPECT().Claim(gomock.Any(), gomock.Any()).Return(false, errors.New("connection refused"))

	store := viewStore(1)
	got, err := newTestDispatcher(store).WithViewCache(cache).
		Call(context.Background(), alice, ProcIncrementPhotoView, map[string]any{"photo_id": "ph1"})
	require.NoError(t, err)
	assert.Equal(t, ViewResult{Counted: true, ViewCount: 1}, got)
}

func TestIncrementPhotoViewReleasesClaimOnStoreFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	cache := NewMockViewCache(ctrl)
	gomock.InOrder(
		cache.EXPECT().Claim(gomock.Any(), "ph1:user:u1").Return(true, nil),
		cache.EXPECT().Release(gomock.Any(), "ph1:user:u1").Return(nil),
	)

	store := (&fakeStore{}).
		on("SELECT `id` FROM `photos`", rows(query.Record{"id": "ph1"})).
		on("INSERT INTO `photo_views`", func(database.Statement) (*executor.Result, error) {
			return nil, errors.New("disk full")
		})

	_, err := newTestDispatcher(store).WithViewCache(cache).
		Call(context.Background(), alice, ProcIncrementPhotoView, map[string]any{"photo_id": "ph1"})
	require.Error(t, err)
}
