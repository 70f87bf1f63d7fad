package minio

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
)

// ObjectKey maps a stored asset URL to its object key in the bucket. It
// returns "" for URLs that do not point into the bucket.
func (s *AssetStore) ObjectKey(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	if base := s.cfg.PublicBaseURL; base != "" && strings.HasPrefix(raw, base) {
		return strings.TrimLeft(strings.TrimPrefix(raw, base), "/")
	}

	u, err := url.Parse(raw)
	if err != nil || u.Path == "" {
		return ""
	}
	path := strings.TrimLeft(u.Path, "/")
	if u.Host == "" {
		return path
	}

	// Path-style URL: host/bucket/key.
	prefix := s.cfg.Connection.BucketName + "/"
	if strings.HasPrefix(path, prefix) {
		return strings.TrimPrefix(path, prefix)
	}
	// Virtual-hosted URL: bucket.host/key.
	if strings.HasPrefix(u.Host, s.cfg.Connection.BucketName+".") {
		return path
	}
	return ""
}

// DeleteAssets removes the objects behind urls. URLs outside the bucket are
// skipped and objects that are already gone count as deleted. Any other
// failure is returned and the caller keeps its rows for a later attempt.
func (s *AssetStore) DeleteAssets(ctx context.Context, urls []string) error {
	start := time.Now()

	keys := s.objectKeys(urls)
	if len(keys) == 0 {
		return nil
	}

	api := s.load()
	if api == nil {
		return ErrConnectionFailed
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.DeleteTimeout)
	defer cancel()

	objects := make(chan minio.ObjectInfo, len(keys))
	for _, key := range keys {
		objects <- minio.ObjectInfo{Key: key}
	}
	close(objects)

	var failures []error
	for res := range api.RemoveObjects(ctx, s.cfg.Connection.BucketName, objects, minio.RemoveObjectsOptions{}) {
		if res.Err == nil || isMissingObject(res.Err) {
			continue
		}
		failures = append(failures, fmt.Errorf("delete %s: %w", res.ObjectName, res.Err))
	}
	if err := ctx.Err(); err != nil && len(failures) == 0 {
		failures = append(failures, err)
	}

	err := errors.Join(failures...)
	s.observeOperation("delete_assets", time.Since(start), err, int64(len(keys)), map[string]interface{}{
		"requested": len(urls),
		"failed":    len(failures),
	})
	if err != nil {
		s.logWarn("Some assets could not be deleted", err, map[string]interface{}{
			"keys":   len(keys),
			"failed": len(failures),
		})
	}
	return err
}

func (s *AssetStore) objectKeys(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	keys := make([]string, 0, len(urls))
	for _, raw := range urls {
		key := s.ObjectKey(raw)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	return keys
}
