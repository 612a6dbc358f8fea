package sync

// UploadCandidate is one file considered for upload in a single run. It has
// no identity beyond the run and is never persisted.
type UploadCandidate struct {
	LocalPath string
	Key       string
	Size      int64
}

// SyncStats reports how the planner filtered a run's candidates.
type SyncStats struct {
	Total         int // candidates considered
	ManifestSkips int // dropped by the manifest filter (phase 1)
	RemoteMatches int // dropped by the remote cross-check (phase 2)
	NeedsUpload   int // final upload set size
}
