package sync

import (
	"context"
	"fmt"
	"math/rand"
	stdsync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingEvents struct {
	mu       stdsync.Mutex
	uploaded []string
	failed   []string
}

func (r *recordingEvents) FileUploaded(key string, bytes int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.uploaded = append(r.uploaded, key)
}

func (r *recordingEvents) FileFailed(key string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, key)
}

func TestUploader_ConcurrencySafety(t *testing.T) {
	dir := t.TempDir()
	store := newTestStore(t, dir)
	client := newFakeBlobClient()
	client.putDelay = func() {
		time.Sleep(time.Duration(rand.Intn(5)) * time.Millisecond)
	}

	const n = 20
	candidates := make([]*UploadCandidate, 0, n)
	var wantBytes int64
	for i := 0; i < n; i++ {
		content := fmt.Sprintf("content of file %d", i)
		c := candidateFor(t, dir, fmt.Sprintf("f%02d.txt", i), fmt.Sprintf("db/f%02d.txt", i), content)
		wantBytes += c.Size
		candidates = append(candidates, c)
	}

	uploader := NewUploader(client, store, nil, 4)
	result := uploader.Run(context.Background(), candidates)

	assert.Equal(t, n, result.Uploaded)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, wantBytes, result.Bytes)

	// Exactly one manifest entry per candidate, no lost updates.
	require.Equal(t, n, store.Count())
	for _, c := range candidates {
		entry, ok := store.Entry(c.Key)
		require.True(t, ok, "missing manifest entry for %q", c.Key)
		assert.Equal(t, c.Size, entry.Size)
	}
}

func TestUploader_FailureIsolation(t *testing.T) {
	dir := t.TempDir()
	store := newTestStore(t, dir)
	client := newFakeBlobClient()
	client.failKeys["db/b.txt"] = true
	client.failKeys["db/d.txt"] = true

	candidates := []*UploadCandidate{
		candidateFor(t, dir, "a.txt", "db/a.txt", "aaa"),
		candidateFor(t, dir, "b.txt", "db/b.txt", "bbb"),
		candidateFor(t, dir, "c.txt", "db/c.txt", "ccc"),
		candidateFor(t, dir, "d.txt", "db/d.txt", "ddd"),
	}

	events := &recordingEvents{}
	uploader := NewUploader(client, store, events, 2)
	result := uploader.Run(context.Background(), candidates)

	assert.Equal(t, 2, result.Uploaded)
	assert.Equal(t, 2, result.Failed)

	assert.ElementsMatch(t, []string{"db/a.txt", "db/c.txt"}, events.uploaded)
	assert.ElementsMatch(t, []string{"db/b.txt", "db/d.txt"}, events.failed)

	// Failed candidates must not land in the manifest.
	assert.Equal(t, 2, store.Count())
	_, ok := store.Entry("db/b.txt")
	assert.False(t, ok)
}

func TestUploader_EmptySet(t *testing.T) {
	dir := t.TempDir()
	store := newTestStore(t, dir)

	uploader := NewUploader(newFakeBlobClient(), store, nil, 4)
	result := uploader.Run(context.Background(), nil)

	assert.Equal(t, &UploadResult{}, result)
}
