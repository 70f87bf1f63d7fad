// Package redis backs the view claim cache used by increment_photo_view.
//
// A claim is a SET NX with a TTL on "<prefix>view:<photo>:<viewer>". When the
// key already exists the view is not counted and the photo_views lookup is
// skipped. When Redis is down, or a claim expires, the store lookup decides.
//
//	cache, err := redis.NewClient(redis.Config{Host: "localhost"})
//	if err != nil {
//		return err
//	}
//	dispatcher.WithViewCache(cache)
package redis
