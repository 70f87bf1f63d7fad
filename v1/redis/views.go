package redis

import (
	"context"
	"time"
)

func (c *ViewCache) viewKey(key string) string {
	return c.cfg.KeyPrefix + "view:" + key
}

// Claim marks key as seen for ViewTTL. It returns false when the key was
// already claimed.
func (c *ViewCache) Claim(ctx context.Context, key string) (bool, error) {
	start := time.Now()
	full := c.viewKey(key)
	claimed, err := c.client.SetNX(ctx, full, 1, c.cfg.ViewTTL).Result()
	c.observeOperation("claim_view", full, time.Since(start), err, map[string]interface{}{
		"claimed": claimed,
		"ttl":     c.cfg.ViewTTL.String(),
	})
	return claimed, err
}

// Release drops a claim so the next view of the pair is counted.
func (c *ViewCache) Release(ctx context.Context, key string) error {
	start := time.Now()
	full := c.viewKey(key)
	err := c.client.Del(ctx, full).Err()
	c.observeOperation("release_view", full, time.Since(start), err, nil)
	return err
}
