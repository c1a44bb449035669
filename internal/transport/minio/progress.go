package minio

import (
	"path/filepath"

	"github.com/oshokin/release-publisher/internal/transport"
)

// ProgressHook is passed as minio.PutObjectOptions.Progress.
// The client reads from it as many bytes as it has uploaded.
type ProgressHook struct {
	progress    transport.ProgressFunc
	name        string
	total       int64
	transferred int64
}

// NewProgressHook creates a hook reporting uploads of the file at path.
func NewProgressHook(path string, total int64, progress transport.ProgressFunc) *ProgressHook {
	return &ProgressHook{
		progress: progress,
		name:     filepath.Base(path),
		total:    total,
	}
}

// Read implements io.Reader without touching p.
func (h *ProgressHook) Read(p []byte) (int, error) {
	h.transferred += int64(len(p))
	h.progress.Report(transport.Progress{
		Transferred: h.transferred,
		Total:       h.total,
		Name:        h.name,
	})

	return len(p), nil
}
