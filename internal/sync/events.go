package sync

import (
	"log/slog"

	"github.com/dustin/go-humanize"
)

// SyncEvents receives per-file outcomes from the upload executor. The engine
// never assumes a logging destination; callers inject their own implementation
// or use the slog-backed default.
type SyncEvents interface {
	FileUploaded(key string, bytes int64)
	FileFailed(key string, err error)
}

type logEvents struct{}

// NewLogEvents returns a SyncEvents that reports through the default slog logger.
func NewLogEvents() SyncEvents {
	return &logEvents{}
}

func (e *logEvents) FileUploaded(key string, bytes int64) {
	slog.Info("upload", "op", "OK", "key", key, "size", humanize.Bytes(uint64(bytes)))
}

func (e *logEvents) FileFailed(key string, err error) {
	slog.Error("upload", "op", "FAILED", "key", key, "error", err)
}
