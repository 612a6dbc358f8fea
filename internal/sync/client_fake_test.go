package sync

import (
	"context"
	"fmt"
	"os"
	"strings"
	stdsync "sync"
	"time"

	"github.com/translationdb/dbsync/internal/blob"
	"github.com/translationdb/dbsync/internal/utils"
)

// fakeBlobClient is an in-memory IBlobClient for planner/uploader tests.
type fakeBlobClient struct {
	mu        stdsync.Mutex
	objects   map[string]*blob.BlobInfo
	failKeys  map[string]bool
	putDelay  func()
	listErr   error
	listCalls int
	putKeys   []string
}

func newFakeBlobClient() *fakeBlobClient {
	return &fakeBlobClient{
		objects:  make(map[string]*blob.BlobInfo),
		failKeys: make(map[string]bool),
	}
}

func (f *fakeBlobClient) HeadBucket(ctx context.Context) error {
	return nil
}

func (f *fakeBlobClient) HeadObject(ctx context.Context, key string) (*blob.HeadObjectResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[key]
	if !ok {
		return &blob.HeadObjectResponse{Exists: false}, nil
	}
	return &blob.HeadObjectResponse{Exists: true, Size: obj.Size}, nil
}

func (f *fakeBlobClient) PutObjectFile(ctx context.Context, key string, filePath string) (*blob.PutObjectResponse, error) {
	if f.putDelay != nil {
		f.putDelay()
	}

	f.mu.Lock()
	fail := f.failKeys[key]
	f.mu.Unlock()
	if fail {
		return nil, fmt.Errorf("injected upload failure for %q", key)
	}

	info, err := os.Stat(filePath)
	if err != nil {
		return nil, err
	}
	etag, err := utils.FileHash(filePath)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.putKeys = append(f.putKeys, key)
	f.objects[key] = &blob.BlobInfo{
		Key:          key,
		ETag:         etag,
		Size:         info.Size(),
		LastModified: time.Now().UTC(),
	}
	return &blob.PutObjectResponse{
		Key:          key,
		ETag:         etag,
		Size:         info.Size(),
		LastModified: time.Now().UTC(),
	}, nil
}

func (f *fakeBlobClient) ListObjects(ctx context.Context, prefix string) ([]*blob.BlobInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}

	var objects []*blob.BlobInfo
	for _, obj := range f.objects {
		if prefix == "" || strings.HasPrefix(obj.Key, prefix) {
			objects = append(objects, obj)
		}
	}
	return objects, nil
}

func (f *fakeBlobClient) putObject(key string, size int64, etag string, lastModified time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = &blob.BlobInfo{
		Key:          key,
		ETag:         etag,
		Size:         size,
		LastModified: lastModified,
	}
}

func (f *fakeBlobClient) listCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

var _ blob.IBlobClient = (*fakeBlobClient)(nil)
