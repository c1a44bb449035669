package transport

import (
	"io"
	"path/filepath"
)

// Progress is an upload progress event.
type Progress struct {
	// Transferred is the number of bytes sent so far.
	Transferred int64
	// Total is the file size.
	Total int64
	// Name is the base name of the file.
	Name string
}

// ProgressFunc observes upload progress. A nil ProgressFunc ignores events.
type ProgressFunc func(Progress)

// Report sends an event to f if it is set.
func (f ProgressFunc) Report(p Progress) {
	if f != nil {
		f(p)
	}
}

// ProgressReader reports every read of the wrapped reader to a ProgressFunc.
type ProgressReader struct {
	reader      io.Reader
	progress    ProgressFunc
	name        string
	total       int64
	transferred int64
}

// NewProgressReader wraps r, which yields total bytes of the file at path.
func NewProgressReader(r io.Reader, path string, total int64, progress ProgressFunc) *ProgressReader {
	return &ProgressReader{
		reader:   r,
		progress: progress,
		name:     filepath.Base(path),
		total:    total,
	}
}

// Read implements io.Reader.
func (r *ProgressReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	if n > 0 {
		r.transferred += int64(n)
		r.progress.Report(Progress{
			Transferred: r.transferred,
			Total:       r.total,
			Name:        r.name,
		})
	}

	return n, err
}

// Seek implements io.Seeker when the wrapped reader supports it.
// The transferred counter follows the new position.
func (r *ProgressReader) Seek(offset int64, whence int) (int64, error) {
	seeker, ok := r.reader.(io.Seeker)
	if !ok {
		return 0, errNotSeekable
	}

	pos, err := seeker.Seek(offset, whence)
	if err != nil {
		return pos, err
	}

	r.transferred = pos

	return pos, nil
}
