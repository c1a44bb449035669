package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	"github.com/oshokin/release-publisher/internal/config"
	"github.com/oshokin/release-publisher/internal/domain/build"
	"github.com/oshokin/release-publisher/internal/domain/manifest"
	"github.com/oshokin/release-publisher/internal/logger"
	repository "github.com/oshokin/release-publisher/internal/repository/manifest"
	"github.com/oshokin/release-publisher/internal/transport"
)

// Name is the transport module name of this backend.
const Name = "local"

// DefaultOutPath is used when transport.outPath is not set.
const DefaultOutPath = config.DefaultDistPath + "/publish"

// Transport publishes into a directory.
type Transport struct {
	*transport.Base

	// fs is rooted at the output directory.
	fs billy.Filesystem
	// manifests persists manifest files on fs.
	manifests repository.Repository
}

// New creates a transport writing to transport.outPath on the local disk.
func New(cfg *config.Config) (*Transport, error) {
	base, err := transport.NewBase(cfg)
	if err != nil {
		return nil, err
	}

	outPath := base.Options().OutPath
	if outPath == "" {
		outPath = DefaultOutPath
	}

	absolute, err := filepath.Abs(outPath)
	if err != nil {
		return nil, fmt.Errorf("resolve outPath %s: %w", outPath, err)
	}

	return NewWithFilesystem(base, osfs.New(absolute)), nil
}

// NewWithFilesystem creates a transport writing to fs.
func NewWithFilesystem(base *transport.Base, fs billy.Filesystem) *Transport {
	return &Transport{
		Base:      base,
		fs:        fs,
		manifests: repository.NewFileRepository(fs),
	}
}

// UploadFile copies a local file into <idWithVersion>/.
func (t *Transport) UploadFile(
	ctx context.Context,
	localPath string,
	b build.Build,
	progress transport.ProgressFunc,
) (string, error) {
	source, err := os.Open(filepath.Clean(localPath))
	if err != nil {
		return "", fmt.Errorf("open %s: %w", localPath, err)
	}

	defer func() {
		_ = source.Close()
	}()

	info, err := source.Stat()
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", localPath, err)
	}

	target := path.Join(b.IDWithVersion(), transport.NormalizeFileName(localPath))
	if err = t.fs.MkdirAll(b.IDWithVersion(), config.DefaultDirPermissions); err != nil {
		return "", fmt.Errorf("create directory %s: %w", b.IDWithVersion(), err)
	}

	destination, err := t.fs.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, config.DefaultFilePermissions)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", target, err)
	}

	reader := transport.NewProgressReader(source, localPath, info.Size(), progress)
	if _, err = io.Copy(destination, reader); err != nil {
		_ = destination.Close()

		return "", fmt.Errorf("copy %s: %w", localPath, err)
	}

	if err = destination.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", target, err)
	}

	logger.DebugKV(ctx, "File copied", "source", localPath, "target", target)

	return t.FileURL(localPath, b), nil
}

// PushMetaFile writes the manifest to <metaFileName>.
func (t *Transport) PushMetaFile(ctx context.Context, m *manifest.Manifest, b build.Build) (string, error) {
	if err := t.manifests.Save(ctx, t.MetaFileName(b), m); err != nil {
		return "", err
	}

	return t.MetaFileURL(b), nil
}

// FetchMetaFile reads the manifest from the output directory.
func (t *Transport) FetchMetaFile(ctx context.Context, b build.Build) manifest.FetchResult {
	m, err := t.manifests.Load(ctx, t.MetaFileName(b))

	switch {
	case errors.Is(err, repository.ErrNotFound):
		return manifest.Empty()
	case err != nil:
		return manifest.Failed(err)
	default:
		return manifest.Found(m)
	}
}

// FetchBuildsList returns the sub-directories that look like build ids.
func (t *Transport) FetchBuildsList(context.Context) ([]string, error) {
	entries, err := t.fs.ReadDir(".")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("read output directory: %w", err)
	}

	names := make([]string, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}

	return transport.FilterBuildIDs(names), nil
}

// RemoveResource deletes the <id> directory. A missing directory is not an error.
func (t *Transport) RemoveResource(_ context.Context, id string) error {
	if err := util.RemoveAll(t.fs, id); err != nil {
		return fmt.Errorf("remove %s: %w", id, err)
	}

	return nil
}
