package transport

import (
	"context"

	"github.com/oshokin/release-publisher/internal/domain/build"
	"github.com/oshokin/release-publisher/internal/domain/manifest"
)

// Transport is the contract of a hosting backend.
type Transport interface {
	// Init prepares the backend session.
	Init(ctx context.Context) error
	// BeforeUpload runs once before a publish.
	BeforeUpload(ctx context.Context) error
	// UploadFile uploads a local file of build b and returns its remote URL.
	UploadFile(ctx context.Context, path string, b build.Build, progress ProgressFunc) (string, error)
	// PushMetaFile overwrites the manifest of build b and returns its URL.
	PushMetaFile(ctx context.Context, m *manifest.Manifest, b build.Build) (string, error)
	// AfterUpload runs once after a publish.
	AfterUpload(ctx context.Context) error
	// BeforeRemove runs once before a removal.
	BeforeRemove(ctx context.Context) error
	// RemoveResource deletes all remote state of a versioned build id.
	RemoveResource(ctx context.Context, id string) error
	// AfterRemove runs once after a removal.
	AfterRemove(ctx context.Context) error
	// FetchBuildsList returns the remote resource names that look like build ids.
	FetchBuildsList(ctx context.Context) ([]string, error)
	// FetchMetaFile reads the current manifest of build b. It never returns an error:
	// failures are reported through the result.
	FetchMetaFile(ctx context.Context, b build.Build) manifest.FetchResult
	// MetaFileURL renders the manifest URL of build b.
	MetaFileURL(b build.Build) string
	// Close releases the backend session.
	Close(ctx context.Context) error
}
