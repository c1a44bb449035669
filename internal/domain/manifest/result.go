package manifest

// FetchStatus tells how reading a manifest from a backend ended.
type FetchStatus int

const (
	// StatusFound means the document existed and was parsed.
	StatusFound FetchStatus = iota + 1
	// StatusEmpty means the document does not exist yet.
	StatusEmpty
	// StatusFailed means the document could not be fetched or parsed.
	StatusFailed
)

// String implements fmt.Stringer.
func (s FetchStatus) String() string {
	switch s {
	case StatusFound:
		return "found"
	case StatusEmpty:
		return "empty"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// FetchResult is the tagged outcome of a manifest fetch: Found(data), Empty or Failed(reason).
type FetchResult struct {
	status   FetchStatus
	manifest *Manifest
	err      error
}

// Found wraps a fetched manifest.
func Found(m *Manifest) FetchResult {
	return FetchResult{status: StatusFound, manifest: m}
}

// Empty reports that no manifest exists at the location.
func Empty() FetchResult {
	return FetchResult{status: StatusEmpty}
}

// Failed reports that the manifest could not be obtained.
func Failed(err error) FetchResult {
	return FetchResult{status: StatusFailed, err: err}
}

// Status returns the outcome tag.
func (r FetchResult) Status() FetchStatus {
	return r.status
}

// IsFound reports whether a manifest was obtained.
func (r FetchResult) IsFound() bool {
	return r.status == StatusFound && r.manifest != nil
}

// Err returns the failure reason for StatusFailed.
func (r FetchResult) Err() error {
	return r.err
}

// Manifest returns the fetched manifest, or an empty one when nothing was found.
func (r FetchResult) Manifest() *Manifest {
	if r.IsFound() {
		return r.manifest
	}

	return New()
}
