package sync

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/translationdb/dbsync/internal/blob"
)

const defaultMaxWorkers = 4

// UploadResult aggregates the executor's counters for one run.
type UploadResult struct {
	Uploaded int
	Failed   int
	Bytes    int64
}

// Uploader drives the planned uploads through a bounded worker pool. Each
// candidate is independent: one failure is counted and reported, never
// cancelling or blocking the others.
type Uploader struct {
	client     blob.IBlobClient
	manifest   *ManifestStore
	events     SyncEvents
	maxWorkers int
}

func NewUploader(client blob.IBlobClient, manifest *ManifestStore, events SyncEvents, maxWorkers int) *Uploader {
	if maxWorkers <= 0 {
		maxWorkers = defaultMaxWorkers
	}
	if events == nil {
		events = NewLogEvents()
	}
	return &Uploader{
		client:     client,
		manifest:   manifest,
		events:     events,
		maxWorkers: maxWorkers,
	}
}

// Run uploads every candidate with at most maxWorkers in flight. Manifest
// entries are recorded as each upload completes; the store serializes the map
// mutation. No retry here: retry policy belongs to the caller.
func (u *Uploader) Run(ctx context.Context, candidates []*UploadCandidate) *UploadResult {
	if len(candidates) == 0 {
		return &UploadResult{}
	}

	var uploaded, failed, bytes atomic.Int64

	processUpload := func(ctx context.Context, c *UploadCandidate) {
		res, err := u.client.PutObjectFile(ctx, c.Key, c.LocalPath)
		if err != nil {
			failed.Add(1)
			u.events.FileFailed(c.Key, err)
			return
		}

		if err := u.manifest.RecordUpload(c.LocalPath, c.Key); err != nil {
			// The object is in the bucket; a missed entry only costs a
			// re-validation on the next run.
			slog.Warn("manifest record", "key", c.Key, "error", err)
		}

		uploaded.Add(1)
		bytes.Add(res.Size)
		u.events.FileUploaded(c.Key, res.Size)
	}

	var wg sync.WaitGroup
	opsChan := make(chan *UploadCandidate, len(candidates))

	wg.Add(u.maxWorkers)
	for i := 0; i < u.maxWorkers; i++ {
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return // Context cancelled
				case c, ok := <-opsChan:
					if !ok {
						return // Channel closed
					}
					processUpload(ctx, c)
				}
			}
		}()
	}

	for _, c := range candidates {
		opsChan <- c
	}
	close(opsChan)

	wg.Wait()

	return &UploadResult{
		Uploaded: int(uploaded.Load()),
		Failed:   int(failed.Load()),
		Bytes:    bytes.Load(),
	}
}
