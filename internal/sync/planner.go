package sync

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/translationdb/dbsync/internal/blob"
)

// Planner decides the minimal upload set for a run. It filters candidates in
// two sequential phases: a cheap local manifest check, then a single batched
// remote listing for whatever survives. The full hashing cost is paid only for
// the ambiguous case of "locally touched, remotely present, same size".
type Planner struct {
	manifest    *ManifestStore
	client      blob.IBlobClient
	prefix      string
	incremental bool
}

func NewPlanner(manifest *ManifestStore, client blob.IBlobClient, prefix string, incremental bool) *Planner {
	return &Planner{
		manifest:    manifest,
		client:      client,
		prefix:      prefix,
		incremental: incremental,
	}
}

// Plan returns the final upload set and per-run stats. A listing failure
// aborts planning entirely: acting on a partial remote inventory is unsafe.
func (p *Planner) Plan(ctx context.Context, candidates []*UploadCandidate) ([]*UploadCandidate, *SyncStats, error) {
	stats := &SyncStats{Total: len(candidates)}

	if !p.incremental {
		stats.NeedsUpload = len(candidates)
		return candidates, stats, nil
	}

	// Phase 1: manifest filter, no network.
	survivors := make([]*UploadCandidate, 0, len(candidates))
	for _, c := range candidates {
		needed, err := p.manifest.NeedsUpload(c.LocalPath, c.Key)
		if err != nil {
			// Per-file failure: let the upload attempt surface it properly.
			slog.Warn("manifest check", "key", c.Key, "error", err)
			needed = true
		}
		if !needed {
			stats.ManifestSkips++
			continue
		}
		survivors = append(survivors, c)
	}

	// Nothing changed locally, skip the network round trip entirely.
	if len(survivors) == 0 {
		return nil, stats, nil
	}

	// Phase 2: one listing call amortized across all survivors.
	remote, err := p.fetchInventory(ctx)
	if err != nil {
		return nil, nil, err
	}

	uploads := make([]*UploadCandidate, 0, len(survivors))
	for _, c := range survivors {
		if p.needsRemoteUpload(c, remote) {
			uploads = append(uploads, c)
		} else {
			stats.RemoteMatches++
		}
	}

	stats.NeedsUpload = len(uploads)
	return uploads, stats, nil
}

func (p *Planner) fetchInventory(ctx context.Context) (map[string]*blob.BlobInfo, error) {
	objects, err := p.client.ListObjects(ctx, p.prefix)
	if err != nil {
		return nil, fmt.Errorf("fetch remote inventory: %w", err)
	}

	inventory := make(map[string]*blob.BlobInfo, len(objects))
	for _, obj := range objects {
		inventory[obj.Key] = obj
	}
	slog.Debug("remote inventory fetched", "prefix", p.prefix, "objects", len(inventory))
	return inventory, nil
}

// needsRemoteUpload cross-checks one phase-1 survivor against the remote
// inventory. When the remote already holds matching content the manifest is
// refreshed in place, so a lost or stale manifest heals itself without an
// upload.
func (p *Planner) needsRemoteUpload(c *UploadCandidate, remote map[string]*blob.BlobInfo) bool {
	obj, ok := remote[c.Key]
	if !ok {
		return true
	}
	if obj.Size != c.Size {
		return true
	}

	info, err := os.Stat(c.LocalPath)
	if err != nil {
		slog.Warn("stat candidate", "key", c.Key, "error", err)
		return true
	}

	if !info.ModTime().After(obj.LastModified) {
		// Remote is as new as the local file and the same size: the manifest
		// was stale, not the bucket.
		p.selfHeal(c)
		return false
	}

	// Local file is newer but same size. Hash it and compare against the
	// remote etag to distinguish a touch from an edit.
	if !isPlainMD5ETag(obj.ETag) {
		// Composite or unrecognized etag (e.g. multipart uploads): comparison
		// is meaningless, re-upload rather than trust it.
		slog.Debug("unrecognized etag format", "key", c.Key, "etag", obj.ETag)
		return true
	}

	hash, err := p.manifest.ContentHash(c.LocalPath)
	if err != nil {
		slog.Warn("hash candidate", "key", c.Key, "error", err)
		return true
	}
	if hash != obj.ETag {
		return true
	}

	p.selfHeal(c)
	return false
}

func (p *Planner) selfHeal(c *UploadCandidate) {
	if err := p.manifest.RecordUpload(c.LocalPath, c.Key); err != nil {
		slog.Warn("manifest refresh", "key", c.Key, "error", err)
		return
	}
	slog.Debug("sync", "op", "SKIPPED", "reason", "remote match", "key", c.Key)
}

// isPlainMD5ETag reports whether an etag looks like a single MD5 digest.
// Multipart uploads produce "<md5>-<parts>" composites that are not content
// hashes.
func isPlainMD5ETag(etag string) bool {
	if len(etag) != 32 || strings.Contains(etag, "-") {
		return false
	}
	for _, r := range etag {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') && (r < 'A' || r > 'F') {
			return false
		}
	}
	return true
}
