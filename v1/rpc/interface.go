package rpc

import (
	"context"
)

// AssetStore deletes externally stored binary assets by URL.
//
//go:generate mockgen -source=interface.go -destination=mock_collaborators.go -package=rpc
type AssetStore interface {
	DeleteAssets(ctx context.Context, urls []string) error
}

// EventPublisher emits domain events such as booking.created.
type EventPublisher interface {
	Publish(ctx context.Context, event string, payload any) error
}

// ViewCache claims (photo, viewer) pairs ahead of the photo_views lookup.
// A false claim means the pair was seen recently and the view is not
// counted. The store stays the source of truth for pairs that expired from
// the cache.
type ViewCache interface {
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}
