package blob

import (
	"context"
	"errors"
	"time"
)

// ErrRemoteUnavailable wraps transport/auth failures from the remote store.
// Listing errors are surfaced as-is to the caller; planning cannot proceed on
// a partial inventory, so there is no internal retry.
var ErrRemoteUnavailable = errors.New("remote store unavailable")

type IBlobClient interface {
	HeadBucket(ctx context.Context) error
	HeadObject(ctx context.Context, key string) (*HeadObjectResponse, error)
	PutObjectFile(ctx context.Context, key string, filePath string) (*PutObjectResponse, error)
	ListObjects(ctx context.Context, prefix string) ([]*BlobInfo, error)
}

type HeadObjectResponse struct {
	Exists bool
	Size   int64
}

type PutObjectResponse struct {
	Key          string
	ETag         string
	Size         int64
	LastModified time.Time
}

// ===================================================================================================

type BlobInfo struct {
	Key          string
	ETag         string
	Size         int64
	LastModified time.Time
}
