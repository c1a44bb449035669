package minio

import (
	"errors"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/release-publisher/internal/config"
	"github.com/oshokin/release-publisher/internal/domain/build"
	"github.com/oshokin/release-publisher/internal/transport"
)

// TestNew covers required options and the derived remote URL.
func TestNew(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Transport = config.Transport{Module: Name, Bucket: "apps"}

	_, err := New(cfg)
	require.ErrorIs(t, err, transport.ErrMissingOption)

	cfg.Transport.Endpoint = "http://localhost:9000/"
	cfg.Transport.Insecure = true
	cfg.Transport.PathPrefix = "demo/"

	tr, err := New(cfg)
	require.NoError(t, err)

	b := build.Build{Platform: "linux", Arch: "x64", Channel: "prod", Version: "1.0.0"}
	require.Equal(t, "http://localhost:9000/apps/demo/linux-x64-prod.json", tr.MetaFileURL(b))
	require.Equal(t, "http://localhost:9000/apps/demo/linux-x64-prod-1.0.0/a.zip", tr.FileURL("/tmp/a.zip", b))
}

// TestNewMissingBucket verifies a bucket is required without an application name.
func TestNewMissingBucket(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Transport = config.Transport{Module: Name, Endpoint: "minio:9000"}

	_, err := New(cfg)
	require.ErrorIs(t, err, transport.ErrMissingOption)
}

// TestHostAndObjectURL checks endpoint normalisation.
func TestHostAndObjectURL(t *testing.T) {
	t.Parallel()

	require.Equal(t, "minio.local:9000", Host("https://minio.local:9000/"))
	require.Equal(t, "minio.local:9000", Host("minio.local:9000"))
	require.Equal(t, "https://minio.local/b", ObjectURL("minio.local", true, "b", ""))
}

// TestIsNotFound verifies error classification of missing objects.
func TestIsNotFound(t *testing.T) {
	t.Parallel()

	require.True(t, IsNotFound(minio.ErrorResponse{Code: "NoSuchKey"}))
	require.False(t, IsNotFound(minio.ErrorResponse{Code: "AccessDenied"}))
	require.False(t, IsNotFound(errors.New("connection refused")))
}

// TestProgressHook verifies cumulative progress reporting.
func TestProgressHook(t *testing.T) {
	t.Parallel()

	var events []transport.Progress

	hook := NewProgressHook("/dist/app.zip", 8, func(p transport.Progress) { events = append(events, p) })

	n, err := hook.Read(make([]byte, 5))
	require.NoError(t, err)
	require.Equal(t, 5, n)

	_, err = hook.Read(make([]byte, 3))
	require.NoError(t, err)
	require.Equal(t, []transport.Progress{
		{Transferred: 5, Total: 8, Name: "app.zip"},
		{Transferred: 8, Total: 8, Name: "app.zip"},
	}, events)
}
