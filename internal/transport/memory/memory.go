package memory

import (
	"context"
	"fmt"
	"os"
	"slices"
	"sync"

	"github.com/oshokin/release-publisher/internal/config"
	"github.com/oshokin/release-publisher/internal/domain/build"
	"github.com/oshokin/release-publisher/internal/domain/manifest"
	"github.com/oshokin/release-publisher/internal/transport"
)

// Name is the transport module name of this backend.
const Name = "memory"

// DefaultRemoteURL is used when transport.remoteUrl is not set.
const DefaultRemoteURL = "memory://releases"

// Push is a recorded manifest push.
type Push struct {
	URL      string
	Build    build.Build
	Manifest *manifest.Manifest
}

// Transport keeps published state in memory.
type Transport struct {
	*transport.Base

	mu sync.Mutex

	calls       []string
	uploads     []string
	fetches     []string
	pushes      []Push
	removes     []string
	listFetches int

	manifests     map[string]*manifest.Manifest
	fetchFailures map[string]error
	resources     []string
}

// New creates a memory transport.
func New(cfg *config.Config) (*Transport, error) {
	c := *cfg
	if c.Transport.RemoteURL == "" {
		c.Transport.RemoteURL = DefaultRemoteURL
	}

	base, err := transport.NewBase(&c)
	if err != nil {
		return nil, err
	}

	return &Transport{
		Base:          base,
		manifests:     make(map[string]*manifest.Manifest),
		fetchFailures: make(map[string]error),
	}, nil
}

// SetMetaFile stores a manifest served for url.
func (t *Transport) SetMetaFile(url string, m *manifest.Manifest) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.manifests[url] = m
}

// FailMetaFile makes fetches of url fail with err.
func (t *Transport) FailMetaFile(url string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.fetchFailures[url] = err
}

// AddResources registers remote resources returned by FetchBuildsList.
func (t *Transport) AddResources(ids ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, id := range ids {
		t.addResource(id)
	}
}

// Init implements transport.Transport.
func (t *Transport) Init(context.Context) error {
	t.record("init")

	return nil
}

// BeforeUpload implements transport.Transport.
func (t *Transport) BeforeUpload(context.Context) error {
	t.record("beforeUpload")

	return nil
}

// AfterUpload implements transport.Transport.
func (t *Transport) AfterUpload(context.Context) error {
	t.record("afterUpload")

	return nil
}

// BeforeRemove implements transport.Transport.
func (t *Transport) BeforeRemove(context.Context) error {
	t.record("beforeRemove")

	return nil
}

// AfterRemove implements transport.Transport.
func (t *Transport) AfterRemove(context.Context) error {
	t.record("afterRemove")

	return nil
}

// Close implements transport.Transport.
func (t *Transport) Close(context.Context) error {
	t.record("close")

	return nil
}

// UploadFile records the upload and reports the file size as transferred.
func (t *Transport) UploadFile(
	_ context.Context,
	path string,
	b build.Build,
	progress transport.ProgressFunc,
) (string, error) {
	t.mu.Lock()
	t.uploads = append(t.uploads, path)
	t.addResource(b.IDWithVersion())
	t.mu.Unlock()

	if info, err := os.Stat(path); err == nil {
		progress.Report(transport.Progress{
			Transferred: info.Size(),
			Total:       info.Size(),
			Name:        transport.NormalizeFileName(path),
		})
	}

	return t.FileURL(path, b), nil
}

// PushMetaFile stores the manifest under its rendered URL.
func (t *Transport) PushMetaFile(_ context.Context, m *manifest.Manifest, b build.Build) (string, error) {
	url := t.MetaFileURL(b)

	t.mu.Lock()
	defer t.mu.Unlock()

	t.manifests[url] = m
	t.pushes = append(t.pushes, Push{URL: url, Build: b, Manifest: m})

	return url, nil
}

// FetchMetaFile returns the stored manifest of b's URL.
func (t *Transport) FetchMetaFile(_ context.Context, b build.Build) manifest.FetchResult {
	url := t.MetaFileURL(b)

	t.mu.Lock()
	defer t.mu.Unlock()

	t.fetches = append(t.fetches, url)

	if err, ok := t.fetchFailures[url]; ok {
		return manifest.Failed(fmt.Errorf("fetch %s: %w", url, err))
	}

	m, ok := t.manifests[url]
	if !ok {
		return manifest.Empty()
	}

	return manifest.Found(m)
}

// RemoveResource forgets a resource. Unknown resources are not an error.
func (t *Transport) RemoveResource(_ context.Context, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.removes = append(t.removes, id)
	t.resources = slices.DeleteFunc(t.resources, func(resource string) bool {
		return resource == id
	})

	return nil
}

// FetchBuildsList returns the known resources that look like build ids.
func (t *Transport) FetchBuildsList(context.Context) ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.listFetches++

	return transport.FilterBuildIDs(t.resources), nil
}

// Calls returns the recorded lifecycle calls in order.
func (t *Transport) Calls() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return slices.Clone(t.calls)
}

// Uploads returns the uploaded local paths in order.
func (t *Transport) Uploads() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return slices.Clone(t.uploads)
}

// Fetches returns the fetched manifest URLs in order.
func (t *Transport) Fetches() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return slices.Clone(t.fetches)
}

// Pushes returns the manifest pushes in order.
func (t *Transport) Pushes() []Push {
	t.mu.Lock()
	defer t.mu.Unlock()

	return slices.Clone(t.pushes)
}

// Removes returns the removed resource ids in order.
func (t *Transport) Removes() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return slices.Clone(t.removes)
}

// ListFetches returns how many times the build list was requested.
func (t *Transport) ListFetches() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.listFetches
}

// MetaFile returns the manifest stored under url.
func (t *Transport) MetaFile(url string) (*manifest.Manifest, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	m, ok := t.manifests[url]

	return m, ok
}

func (t *Transport) record(call string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.calls = append(t.calls, call)
}

// addResource must be called with mu held.
func (t *Transport) addResource(id string) {
	if !slices.Contains(t.resources, id) {
		t.resources = append(t.resources, id)
	}
}
