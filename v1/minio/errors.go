package minio

import (
	"errors"

	"github.com/minio/minio-go/v7"
)

var (
	// ErrConnectionFailed is returned when the bucket cannot be reached.
	ErrConnectionFailed = errors.New("minio: connection failed")

	// ErrBucketNotFound is returned when the configured bucket is missing.
	ErrBucketNotFound = errors.New("minio: bucket not found")

	// ErrMissingBucket is returned when no bucket name is configured.
	ErrMissingBucket = errors.New("minio: bucket name is empty")
)

// isMissingObject reports whether err says the object is already gone.
// Deleting a missing asset counts as success.
func isMissingObject(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchObject":
		return true
	}
	return false
}
