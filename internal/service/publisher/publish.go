package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	"github.com/oshokin/release-publisher/internal/config"
	"github.com/oshokin/release-publisher/internal/domain/build"
	"github.com/oshokin/release-publisher/internal/domain/manifest"
	"github.com/oshokin/release-publisher/internal/logger"
	"github.com/oshokin/release-publisher/internal/progressbar"
	"github.com/oshokin/release-publisher/internal/service/assets"
	"github.com/oshokin/release-publisher/internal/service/synchronizer"
	"github.com/oshokin/release-publisher/internal/transport"
)

const (
	// releaseFileName is the macOS update descriptor uploaded next to the update archive.
	releaseFileName = "release.json"
	// squirrelReleasesSuffix is stripped from the Windows metaFile URL to get the update URL.
	squirrelReleasesSuffix = "/RELEASES"
	// releaseDateLayout matches the ISO 8601 form used by update clients.
	releaseDateLayout = "2006-01-02T15:04:05.000Z07:00"
)

// Platforms with post-processing of published metadata.
const (
	platformDarwin = "darwin"
	platformLinux  = "linux"
	platformWin32  = "win32"
)

// ErrNoAssets is returned for a build without any asset to upload.
var ErrNoAssets = errors.New("there are no assets for build, check the dist folder")

// BuildResolver turns build specs into builds with located assets.
type BuildResolver interface {
	Builds(specs []string) ([]build.Build, error)
}

// PublishOptions are the inputs of the publish workflow.
type PublishOptions struct {
	// Builds are the requested build specs; empty publishes one build from defaults.
	Builds []string
	// Fields are copied into every manifest entry.
	Fields map[string]string
	// Progress enables upload progress bars.
	Progress bool
}

// releaseFile is the macOS update descriptor.
type releaseFile struct {
	URL     string `json:"url"`
	Name    string `json:"name"`
	Notes   string `json:"notes"`
	PubDate string `json:"pub_date"`
}

// Publish uploads build assets and records them in the manifests.
type Publish struct {
	transport transport.Transport
	resolver  BuildResolver
	options   PublishOptions
	sync      *synchronizer.Synchronizer
	fs        billy.Basic
	now       func() time.Time

	builds  []build.Build
	results []string
}

// NewPublish creates the publish workflow.
func NewPublish(t transport.Transport, resolver BuildResolver, options PublishOptions) *Publish {
	if options.Fields == nil {
		options.Fields = make(map[string]string)
	}

	return &Publish{
		transport: t,
		resolver:  resolver,
		options:   options,
		sync:      synchronizer.New(t, insertEntry),
		fs:        osfs.Default,
		now:       time.Now,
	}
}

// Name implements Command.
func (p *Publish) Name() string {
	return config.CommandPublish
}

// Prepare resolves the builds and their assets.
func (p *Publish) Prepare(context.Context) error {
	builds, err := p.resolver.Builds(p.options.Builds)
	if err != nil {
		return fmt.Errorf("resolve builds: %w", err)
	}

	p.builds = builds

	return nil
}

// Builds returns the resolved builds.
func (p *Publish) Builds() []build.Build {
	return p.builds
}

// BeforeAction implements Command.
func (p *Publish) BeforeAction(ctx context.Context) error {
	if err := p.transport.BeforeUpload(ctx); err != nil {
		return fmt.Errorf("before upload: %w", err)
	}

	return nil
}

// Action uploads every build and registers its manifest entry.
func (p *Publish) Action(ctx context.Context) error {
	for _, b := range p.builds {
		entry, err := p.publish(logger.WithKV(ctx, "build", b.IDWithVersion()), b)
		if err != nil {
			return fmt.Errorf("publish %s: %w", b, err)
		}

		p.sync.Add(b, entry)
	}

	return nil
}

// AfterAction flushes the manifests.
func (p *Publish) AfterAction(ctx context.Context) error {
	results, err := p.sync.Flush(ctx)
	p.results = append(p.results, results...)

	if err != nil {
		return err
	}

	if err = p.transport.AfterUpload(ctx); err != nil {
		return fmt.Errorf("after upload: %w", err)
	}

	return nil
}

// Results implements Command.
func (p *Publish) Results() []string {
	return p.results
}

// publish uploads the assets of b and builds its manifest entry.
func (p *Publish) publish(ctx context.Context, b build.Build) (manifest.Entry, error) {
	urls, err := p.publishAssets(ctx, b)
	if err != nil {
		return nil, err
	}

	if b.Platform == platformDarwin && b.Assets.Update != "" {
		urls[build.AssetUpdate], err = p.publishReleaseFile(ctx, b, urls[build.AssetUpdate])
		if err != nil {
			return nil, err
		}
	}

	entry := manifest.NewEntry(p.options.Fields)
	entry[manifest.FieldUpdate] = urls[build.AssetUpdate]
	entry[manifest.FieldInstall] = urls[build.AssetInstall]
	entry[manifest.FieldVersion] = b.Version

	switch b.Platform {
	case platformWin32:
		if metaFile := urls[build.AssetMetaFile]; metaFile != "" {
			entry[manifest.FieldUpdate] = strings.TrimSuffix(metaFile, squirrelReleasesSuffix)
		}
	case platformLinux:
		if b.Assets.Update != "" {
			checksum, checksumErr := assets.FileChecksum(b.Assets.Update, assets.DefaultChecksumFunction)
			if checksumErr != nil {
				return nil, checksumErr
			}

			entry[manifest.FieldSHA256] = checksum
		}
	}

	return entry, nil
}

// publishAssets uploads every asset of b once per local path and returns the URLs by asset name.
func (p *Publish) publishAssets(ctx context.Context, b build.Build) (map[string]string, error) {
	list := b.Assets.List()
	if len(list) == 0 {
		return nil, fmt.Errorf("%w %s", ErrNoAssets, b)
	}

	var (
		urls     = make(map[string]string, len(list))
		uploaded = make(map[string]string, len(list))
	)

	for _, asset := range list {
		url, ok := uploaded[asset.Path]
		if !ok {
			var err error

			url, err = p.upload(ctx, asset.Path, b)
			if err != nil {
				return nil, err
			}

			uploaded[asset.Path] = url
		}

		urls[asset.Name] = url
	}

	return urls, nil
}

// publishReleaseFile writes release.json next to the update archive, uploads it and returns its URL.
func (p *Publish) publishReleaseFile(ctx context.Context, b build.Build, updateURL string) (string, error) {
	data, err := json.MarshalIndent(releaseFile{
		URL:     updateURL,
		Name:    p.options.Fields["name"],
		Notes:   p.options.Fields["notes"],
		PubDate: p.now().UTC().Format(releaseDateLayout),
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal %s: %w", releaseFileName, err)
	}

	path := filepath.Join(filepath.Dir(b.Assets.Update), releaseFileName)
	if err = util.WriteFile(p.fs, path, data, config.DefaultFilePermissions); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}

	return p.upload(ctx, path, b)
}

// upload sends one file through the transport with optional progress rendering.
func (p *Publish) upload(ctx context.Context, path string, b build.Build) (string, error) {
	var url string

	err := progressbar.Track(p.options.Progress, func(progress transport.ProgressFunc) error {
		var uploadErr error

		url, uploadErr = p.transport.UploadFile(ctx, path, b, progress)

		return uploadErr
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", path, err)
	}

	logger.InfoKV(ctx, "File uploaded", "file", path, "url", url)

	return url, nil
}

// insertEntry stores the published entry under the version-less build id.
func insertEntry(m *manifest.Manifest, b build.Build, entry manifest.Entry) (*manifest.Manifest, error) {
	return m.With(b.ID(), entry)
}
