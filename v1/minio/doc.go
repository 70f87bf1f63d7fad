// Package minio deletes stored photo assets from an S3-compatible bucket.
//
// Maintenance removes expired albums and orphaned photos. Their files go
// first, through AssetStore.DeleteAssets, and the rows only after the
// bucket confirmed the deletion:
//
//	store, err := minio.NewClient(minio.Config{
//		Connection:    minio.ConnectionConfig{Endpoint: "localhost:9000", BucketName: "photos"},
//		PublicBaseURL: "https://cdn.example.com/photos/",
//	})
//	err = store.DeleteAssets(ctx, []string{"https://cdn.example.com/photos/a/1.jpg"})
//
// A background monitor probes the bucket and swaps in a fresh client when
// the probe fails.
package minio
