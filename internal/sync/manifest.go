package sync

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/translationdb/dbsync/internal/utils"
)

const ManifestVersion = "1.0"

// ErrManifestCorrupt marks a manifest file that exists but cannot be parsed.
// This is fatal for the run: silently starting fresh would discard sync
// history and force a full re-upload.
var ErrManifestCorrupt = errors.New("manifest corrupt")

// ManifestEntry records the fingerprint of one uploaded object. The hash
// corresponds to the exact file content at UploadedAt; anything newer must be
// re-validated.
type ManifestEntry struct {
	LocalPath  string `json:"local_path"`
	Size       int64  `json:"size"`
	MD5        string `json:"md5"`
	UploadedAt string `json:"uploaded_at"`
}

// Manifest is the persisted record of previously uploaded files, keyed by
// remote object key.
type Manifest struct {
	Version  string                    `json:"version"`
	LastSync string                    `json:"last_sync"`
	Files    map[string]*ManifestEntry `json:"files"`
}

// ManifestStore guards the manifest map, which is the one shared mutable
// resource across upload-worker completions. All mutation goes through the
// store's mutex; the file itself is written once per run via Save.
type ManifestStore struct {
	mu       sync.Mutex
	path     string
	manifest *Manifest
	hashFn   func(string) (string, error)
}

// LoadManifest reads the persisted manifest at path, or starts a fresh one if
// none exists. A present-but-unparsable file fails with ErrManifestCorrupt.
func LoadManifest(path string) (*ManifestStore, error) {
	s := &ManifestStore{
		path:   path,
		hashFn: utils.FileHash,
		manifest: &Manifest{
			Version: ManifestVersion,
			Files:   make(map[string]*ManifestEntry),
		},
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read manifest %q: %w", path, err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %q: %v: %w", path, err, ErrManifestCorrupt)
	}
	if m.Files == nil {
		m.Files = make(map[string]*ManifestEntry)
	}
	// Keep the file's version tag so a bumped manifest stays readable on rewrite.
	if m.Version == "" {
		m.Version = ManifestVersion
	}

	s.manifest = &m
	return s, nil
}

func (s *ManifestStore) Path() string {
	return s.path
}

// Entry returns a copy of the entry for key, if any.
func (s *ManifestStore) Entry(key string) (ManifestEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.manifest.Files[key]
	if !ok {
		return ManifestEntry{}, false
	}
	return *e, true
}

func (s *ManifestStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.manifest.Files)
}

func (s *ManifestStore) LastSync() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.manifest.LastSync
}

// ContentHash computes the current content hash of a local file using the
// store's hash function.
func (s *ManifestStore) ContentHash(localPath string) (string, error) {
	return s.hashFn(localPath)
}

// NeedsUpload reports whether the file at localPath must be re-uploaded for
// key. Checks are ordered cheap to expensive: entry presence, then size from
// a stat, then the content hash only when size alone is inconclusive.
func (s *ManifestStore) NeedsUpload(localPath string, key string) (bool, error) {
	entry, ok := s.Entry(key)
	if !ok {
		return true, nil
	}

	info, err := os.Stat(localPath)
	if err != nil {
		return false, fmt.Errorf("stat %q: %w", localPath, err)
	}
	if info.Size() != entry.Size {
		return true, nil
	}

	hash, err := s.hashFn(localPath)
	if err != nil {
		return false, fmt.Errorf("hash %q: %w", localPath, err)
	}
	return hash != entry.MD5, nil
}

// RecordUpload fingerprints the file as it exists now and overwrites the
// entry for key. In-memory only; safe to call from concurrent upload workers.
func (s *ManifestStore) RecordUpload(localPath string, key string) error {
	info, err := os.Stat(localPath)
	if err != nil {
		return fmt.Errorf("stat %q: %w", localPath, err)
	}
	hash, err := s.hashFn(localPath)
	if err != nil {
		return fmt.Errorf("hash %q: %w", localPath, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.manifest.Files[key] = &ManifestEntry{
		LocalPath:  localPath,
		Size:       info.Size(),
		MD5:        hash,
		UploadedAt: time.Now().UTC().Format(time.RFC3339),
	}
	return nil
}

// Save stamps last_sync and writes the manifest durably. The write goes to a
// temp file first and is renamed into place, so an interrupted save never
// leaves a corrupt manifest behind.
func (s *ManifestStore) Save() error {
	s.mu.Lock()
	s.manifest.LastSync = time.Now().UTC().Format(time.RFC3339)
	data, err := json.MarshalIndent(s.manifest, "", "  ")
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}

	if err := utils.EnsureParent(s.path); err != nil {
		return fmt.Errorf("manifest dir: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write manifest temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename manifest: %w", err)
	}
	return nil
}
