package synchronizer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/release-publisher/internal/config"
	"github.com/oshokin/release-publisher/internal/domain/build"
	"github.com/oshokin/release-publisher/internal/domain/manifest"
	"github.com/oshokin/release-publisher/internal/transport/memory"
)

var builds = []build.Build{
	{Platform: "linux", Arch: "x64", Channel: "prod", Version: "1.0.0"},
	{Platform: "win32", Arch: "x64", Channel: "prod", Version: "1.0.0"},
	{Platform: "darwin", Arch: "arm64", Channel: "prod", Version: "1.0.0"},
}

// newMemory creates a memory transport with the given manifest URL template.
func newMemory(t *testing.T, metaFileURL string) *memory.Transport {
	t.Helper()

	cfg := config.Default()
	cfg.Transport = config.Transport{Module: memory.Name, MetaFileURL: metaFileURL}

	tr, err := memory.New(cfg)
	require.NoError(t, err)

	return tr
}

// insert is a merge that stores the payload under the build id.
func insert(m *manifest.Manifest, b build.Build, payload manifest.Entry) (*manifest.Manifest, error) {
	return m.With(b.ID(), payload)
}

// TestFlushSharedURL verifies one fetch and one push for builds sharing a manifest.
func TestFlushSharedURL(t *testing.T) {
	t.Parallel()

	tr := newMemory(t, "memory://releases/updates.json")
	s := New(tr, insert)

	for _, b := range builds {
		s.Add(b, manifest.Entry{"version": b.Version})
	}

	ids, err := s.Flush(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"linux-x64-prod-1.0.0", "win32-x64-prod-1.0.0", "darwin-arm64-prod-1.0.0"}, ids)
	require.Len(t, tr.Fetches(), 1)

	pushes := tr.Pushes()
	require.Len(t, pushes, 1)
	require.Equal(t, []string{"linux-x64-prod", "win32-x64-prod", "darwin-arm64-prod"}, pushes[0].Manifest.IDs())
	require.Zero(t, s.Len())
}

// TestFlushDistinctURLs verifies one fetch and one push per distinct manifest.
func TestFlushDistinctURLs(t *testing.T) {
	t.Parallel()

	tr := newMemory(t, "memory://releases/{platform}-{arch}-{channel}.json")
	s := New(tr, insert)

	for _, b := range builds {
		s.Add(b, manifest.Entry{"version": b.Version})
	}

	_, err := s.Flush(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{
		"memory://releases/linux-x64-prod.json",
		"memory://releases/win32-x64-prod.json",
		"memory://releases/darwin-arm64-prod.json",
	}, tr.Fetches())
	require.Len(t, tr.Pushes(), 3)
}

// TestFlushKeepsExistingEntries verifies that merges start from the fetched manifest.
func TestFlushKeepsExistingEntries(t *testing.T) {
	t.Parallel()

	const url = "memory://releases/updates.json"

	tr := newMemory(t, url)

	existing, err := manifest.New().With("linux-ia32-prod", manifest.Entry{"version": "0.9.0"})
	require.NoError(t, err)
	tr.SetMetaFile(url, existing)

	s := New(tr, insert)
	s.Add(builds[0], manifest.Entry{"version": "1.0.0"})

	_, err = s.Flush(context.Background())
	require.NoError(t, err)

	stored, ok := tr.MetaFile(url)
	require.True(t, ok)
	require.Equal(t, []string{"linux-ia32-prod", "linux-x64-prod"}, stored.IDs())
}

// TestFlushDegradesFailedFetch verifies a failed fetch is treated as an empty manifest.
func TestFlushDegradesFailedFetch(t *testing.T) {
	t.Parallel()

	const url = "memory://releases/updates.json"

	tr := newMemory(t, url)
	tr.FailMetaFile(url, errors.New("timeout"))

	s := New(tr, insert)
	s.Add(builds[0], manifest.Entry{"version": "1.0.0"})

	ids, err := s.Flush(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"linux-x64-prod-1.0.0"}, ids)
	require.Len(t, tr.Pushes(), 1)
}

// TestFlushMergeError verifies merge failures abort without pushing.
func TestFlushMergeError(t *testing.T) {
	t.Parallel()

	tr := newMemory(t, "memory://releases/updates.json")
	boom := errors.New("boom")

	s := New(tr, func(*manifest.Manifest, build.Build, manifest.Entry) (*manifest.Manifest, error) {
		return nil, boom
	})
	s.Add(builds[0], nil)

	_, err := s.Flush(context.Background())
	require.ErrorIs(t, err, boom)
	require.Empty(t, tr.Pushes())
}
