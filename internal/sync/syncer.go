package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"

	"github.com/translationdb/dbsync/internal/blob"
	"github.com/translationdb/dbsync/internal/utils"
)

// DefaultManifestName matches the scanner's "*.manifest.json" exclude rule so
// the manifest never syncs itself.
const DefaultManifestName = ".dbsync.manifest.json"

// Config carries everything a sync run needs. There is no hidden process-wide
// state: credentials, excludes and tuning all arrive here.
type Config struct {
	RootDir      string
	Bucket       string
	Prefix       string
	Region       string
	AccessKey    string
	SecretKey    string
	Endpoint     string
	ManifestPath string
	MaxWorkers   int
	Incremental  bool
}

func (c *Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("bucket is required")
	}

	rootDir, err := utils.ResolvePath(c.RootDir)
	if err != nil {
		return fmt.Errorf("invalid root dir: %w", err)
	}
	if !utils.DirExists(rootDir) {
		return fmt.Errorf("root dir %q does not exist", rootDir)
	}
	c.RootDir = rootDir

	if c.ManifestPath == "" {
		c.ManifestPath = filepath.Join(c.RootDir, DefaultManifestName)
	}
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = defaultMaxWorkers
	}
	return nil
}

// RunSummary is the caller-facing outcome of one sync run.
type RunSummary struct {
	Stats    *SyncStats
	Uploaded int
	Failed   int
	Skipped  int
	Bytes    int64
	Elapsed  time.Duration
}

// Ok reports whether every planned upload succeeded.
func (r *RunSummary) Ok() bool {
	return r.Failed == 0
}

// Syncer wires the manifest store, planner and upload executor into one run.
type Syncer struct {
	config   *Config
	client   blob.IBlobClient
	manifest *ManifestStore
	events   SyncEvents
}

// New builds a Syncer with a real S3 client from the config.
func New(config *Config) (*Syncer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := blob.NewBlobClientWithS3Config(&blob.S3BlobConfig{
		BucketName: config.Bucket,
		Region:     config.Region,
		AccessKey:  config.AccessKey,
		SecretKey:  config.SecretKey,
		Endpoint:   config.Endpoint,
	})
	if err != nil {
		return nil, err
	}

	return NewWithClient(config, client)
}

// NewWithClient builds a Syncer on a caller-supplied store client.
func NewWithClient(config *Config, client blob.IBlobClient) (*Syncer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	manifest, err := LoadManifest(config.ManifestPath)
	if err != nil {
		return nil, err
	}

	return &Syncer{
		config:   config,
		client:   client,
		manifest: manifest,
		events:   NewLogEvents(),
	}, nil
}

// SetEvents replaces the default slog-backed observer.
func (s *Syncer) SetEvents(events SyncEvents) {
	if events != nil {
		s.events = events
	}
}

// Run performs one full sync: verify bucket, collect candidates, plan, upload
// in parallel, persist the manifest. Interrupting mid-run is safe; already
// uploaded objects are recovered by the phase-2 cross-check next time.
func (s *Syncer) Run(ctx context.Context) (*RunSummary, error) {
	start := time.Now()

	// One run per manifest at a time.
	lock := flock.New(s.config.ManifestPath + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("manifest lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("another sync is already running for %q", s.config.ManifestPath)
	}
	defer lock.Unlock()

	if err := s.client.HeadBucket(ctx); err != nil {
		return nil, err
	}

	slog.Info("sync started",
		"bucket", s.config.Bucket,
		"root", s.config.RootDir,
		"prefix", s.config.Prefix,
		"workers", s.config.MaxWorkers,
		"incremental", s.config.Incremental,
	)

	scanner := NewScanner(s.config.RootDir, s.config.Prefix)
	candidates, excluded, err := scanner.Collect()
	if err != nil {
		return nil, err
	}
	slog.Info("collected candidates", "files", len(candidates), "excluded", excluded)

	planner := NewPlanner(s.manifest, s.client, s.config.Prefix, s.config.Incremental)
	uploads, stats, err := planner.Plan(ctx, candidates)
	if err != nil {
		return nil, err
	}
	slog.Info("sync plan",
		"total", stats.Total,
		"manifest_skips", stats.ManifestSkips,
		"remote_matches", stats.RemoteMatches,
		"needs_upload", stats.NeedsUpload,
	)

	var result *UploadResult
	if len(uploads) > 0 {
		uploader := NewUploader(s.client, s.manifest, s.events, s.config.MaxWorkers)
		result = uploader.Run(ctx, uploads)
	} else {
		slog.Info("nothing to upload")
		result = &UploadResult{}
	}

	// A failed save is not fatal: the next run redoes hash work but loses
	// no data.
	if err := s.manifest.Save(); err != nil {
		slog.Error("manifest save", "path", s.config.ManifestPath, "error", err)
	}

	summary := &RunSummary{
		Stats:    stats,
		Uploaded: result.Uploaded,
		Failed:   result.Failed,
		Skipped:  stats.ManifestSkips + stats.RemoteMatches,
		Bytes:    result.Bytes,
		Elapsed:  time.Since(start),
	}
	s.logSummary(summary)

	return summary, nil
}

func (s *Syncer) logSummary(r *RunSummary) {
	attrs := []any{
		"uploaded", r.Uploaded,
		"failed", r.Failed,
		"skipped", r.Skipped,
		"bytes", humanize.Bytes(uint64(r.Bytes)),
		"elapsed", r.Elapsed.Round(time.Millisecond),
	}
	if secs := r.Elapsed.Seconds(); r.Bytes > 0 && secs > 0 {
		rate := uint64(float64(r.Bytes) / secs)
		attrs = append(attrs, "throughput", humanize.Bytes(rate)+"/s")
	}

	if r.Failed > 0 {
		slog.Warn("sync finished with failures", attrs...)
	} else {
		slog.Info("sync finished", attrs...)
	}
}
