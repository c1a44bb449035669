package transport

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/release-publisher/internal/config"
	"github.com/oshokin/release-publisher/internal/domain/build"
	"github.com/oshokin/release-publisher/internal/domain/manifest"
)

var testBuild = build.Build{Platform: "linux", Arch: "x64", Channel: "beta", Version: "1.0.0"}

// newConfig returns a configuration with the given transport options.
func newConfig(options config.Transport) *config.Config {
	cfg := config.Default()
	cfg.Transport = options

	return cfg
}

// TestNewBaseNormalizesOptions covers the defaults derived from remoteUrl.
func TestNewBaseNormalizesOptions(t *testing.T) {
	t.Parallel()

	base, err := NewBase(newConfig(config.Transport{Module: "local", RemoteURL: "https://cdn.example.com/app/"}))
	require.NoError(t, err)

	options := base.Options()
	require.Equal(t, "https://cdn.example.com/app", options.RemoteURL)
	require.Equal(t, DefaultMetaFileName, options.MetaFileName)
	require.Equal(t, "https://cdn.example.com/app/linux-x64-beta.json", base.MetaFileURL(testBuild))
	require.Equal(t, "linux-x64-beta.json", base.MetaFileName(testBuild))
}

// TestNewBaseFallsBackToConfigMetaFileURL verifies the top-level metaFileUrl is used without remoteUrl.
func TestNewBaseFallsBackToConfigMetaFileURL(t *testing.T) {
	t.Parallel()

	cfg := newConfig(config.Transport{Module: "github"})
	cfg.MetaFileURL = "https://example.com/updates/{platform}.json/"

	base, err := NewBase(cfg)
	require.NoError(t, err)
	require.Equal(t, "https://example.com/updates/linux.json", base.MetaFileURL(testBuild))
}

// TestNewBaseMissingMetaFileURL verifies that an unknown manifest location is a configuration error.
func TestNewBaseMissingMetaFileURL(t *testing.T) {
	t.Parallel()

	_, err := NewBase(newConfig(config.Transport{Module: "local"}))
	require.ErrorIs(t, err, ErrMissingOption)
}

// TestFileURL checks the remote file layout and file name normalisation.
func TestFileURL(t *testing.T) {
	t.Parallel()

	base, err := NewBase(newConfig(config.Transport{RemoteURL: "https://cdn.example.com"}))
	require.NoError(t, err)

	require.Equal(t,
		"https://cdn.example.com/linux-x64-beta-1.0.0/My-App-1.0.0.AppImage",
		base.FileURL("/dist/My App 1.0.0.AppImage", testBuild))
}

// TestFetchMetaFile covers found, missing, malformed and forbidden manifests.
func TestFetchMetaFile(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/linux-x64-beta.json":
			_, _ = w.Write([]byte(`{"linux-x64-beta":{"version":"0.9.0"}}`))
		case "/linux-x64-prod.json":
			_, _ = w.Write([]byte(`not json`))
		case "/linux-x64-stage.json":
			w.WriteHeader(http.StatusForbidden)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)

	base, err := NewBase(newConfig(config.Transport{RemoteURL: server.URL}))
	require.NoError(t, err)

	ctx := context.Background()

	result := base.FetchMetaFile(ctx, testBuild)
	require.Equal(t, manifest.StatusFound, result.Status())
	require.Equal(t, "0.9.0", result.Manifest().Version("linux-x64-beta"))

	missing := testBuild
	missing.Channel = "dev"
	require.Equal(t, manifest.StatusEmpty, base.FetchMetaFile(ctx, missing).Status())

	malformed := testBuild
	malformed.Channel = "prod"
	result = base.FetchMetaFile(ctx, malformed)
	require.Equal(t, manifest.StatusFailed, result.Status())
	require.Error(t, result.Err())
	require.Zero(t, result.Manifest().Len())

	forbidden := testBuild
	forbidden.Channel = "stage"
	result = base.FetchMetaFile(ctx, forbidden)
	require.Equal(t, manifest.StatusFailed, result.Status())
	require.ErrorIs(t, result.Err(), ErrUnexpectedStatus)
}

// TestFilterBuildIDs verifies that only build-id-like names are kept.
func TestFilterBuildIDs(t *testing.T) {
	t.Parallel()

	names := []string{"linux-x64-prod-1.0.0", "linux-x64-prod.json", "tmp", "win32-ia32-beta-2.0.0-rc-1"}
	require.Equal(t, []string{"linux-x64-prod-1.0.0", "win32-ia32-beta-2.0.0-rc-1"}, FilterBuildIDs(names))
}

// TestProgressReader verifies events are emitted for every read and a nil callback is safe.
func TestProgressReader(t *testing.T) {
	t.Parallel()

	var events []Progress

	reader := NewProgressReader(bytes.NewReader([]byte("0123456789")), "/dist/file.zip", 10,
		func(p Progress) { events = append(events, p) })

	buf := make([]byte, 4)
	for {
		_, err := reader.Read(buf)
		if err == io.EOF {
			break
		}

		require.NoError(t, err)
	}

	require.Len(t, events, 3)
	require.Equal(t, Progress{Transferred: 10, Total: 10, Name: "file.zip"}, events[2])

	pos, err := reader.Seek(0, io.SeekStart)
	require.NoError(t, err)
	require.Zero(t, pos)

	silent := NewProgressReader(bytes.NewReader([]byte("x")), "x", 1, nil)
	_, err = io.ReadAll(silent)
	require.NoError(t, err)
}

// TestContentType checks MIME sniffing and the fallback for unreadable files.
func TestContentType(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := dir + "/notes.txt"
	require.NoError(t, os.WriteFile(path, []byte("release notes"), 0o600))

	require.Contains(t, ContentType(path), "text/plain")
	require.Equal(t, DefaultContentType, ContentType(dir+"/missing.bin"))
}
