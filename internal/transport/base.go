package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/oshokin/release-publisher/internal/config"
	"github.com/oshokin/release-publisher/internal/domain/build"
	"github.com/oshokin/release-publisher/internal/domain/manifest"
	"github.com/oshokin/release-publisher/internal/logger"
	"github.com/oshokin/release-publisher/internal/version"
)

// DefaultMetaFileName is used when transport.metaFileName is not set.
const DefaultMetaFileName = "{platform}-{arch}-{channel}.json"

// firstPublishHint is appended to manifest fetch warnings.
const firstPublishHint = "you can ignore this warning if you run this command for the first time"

// maxMetaFileSize limits the manifest body read over HTTP.
const maxMetaFileSize = 16 << 20

var (
	// ErrMissingOption is returned when a required transport option is not set.
	ErrMissingOption = errors.New("missing transport option")
	// ErrUnexpectedStatus is reported when a hosting answers with a non-success status.
	ErrUnexpectedStatus = errors.New("unexpected response status")

	errNotSeekable = errors.New("reader does not support seeking")

	whitespaceRegex = regexp.MustCompile(`\s`)
)

// Base implements the parts of Transport shared by every backend.
// Backends embed it and override what their storage does differently.
type Base struct {
	// options are the normalised transport options.
	options config.Transport
	// httpClient fetches manifests.
	httpClient *http.Client
}

// NewBase normalises the common transport options.
// A missing manifest location is a configuration error.
func NewBase(cfg *config.Config) (*Base, error) {
	options := cfg.Transport
	options.RemoteURL = strings.TrimSuffix(options.RemoteURL, "/")

	if options.MetaFileName == "" {
		options.MetaFileName = DefaultMetaFileName
	}

	if options.MetaFileURL == "" && options.RemoteURL != "" {
		options.MetaFileURL = options.RemoteURL + "/" + options.MetaFileName
	}

	if options.MetaFileURL == "" {
		options.MetaFileURL = cfg.MetaFileURL
	}

	if options.MetaFileURL == "" {
		return nil, fmt.Errorf(
			"%w: set either package.json updater.url, metaFileUrl or transport.remoteUrl", ErrMissingOption)
	}

	return &Base{
		options:    options,
		httpClient: http.DefaultClient,
	}, nil
}

// Options returns the normalised transport options.
func (b *Base) Options() config.Transport {
	return b.options
}

// Init does nothing by default.
func (b *Base) Init(context.Context) error { return nil }

// BeforeUpload does nothing by default.
func (b *Base) BeforeUpload(context.Context) error { return nil }

// AfterUpload does nothing by default.
func (b *Base) AfterUpload(context.Context) error { return nil }

// BeforeRemove does nothing by default.
func (b *Base) BeforeRemove(context.Context) error { return nil }

// AfterRemove does nothing by default.
func (b *Base) AfterRemove(context.Context) error { return nil }

// Close does nothing by default.
func (b *Base) Close(context.Context) error { return nil }

// MetaFileURL renders the manifest URL of bd.
func (b *Base) MetaFileURL(bd build.Build) string {
	return ReplaceBuildTemplates(strings.TrimSuffix(b.options.MetaFileURL, "/"), bd)
}

// MetaFileName renders the manifest file name of bd.
func (b *Base) MetaFileName(bd build.Build) string {
	return ReplaceBuildTemplates(b.options.MetaFileName, bd)
}

// FileURL returns remoteUrl/<idWithVersion>/<normalised file name>.
func (b *Base) FileURL(path string, bd build.Build) string {
	return strings.Join([]string{b.options.RemoteURL, bd.IDWithVersion(), NormalizeFileName(path)}, "/")
}

// FetchMetaFile downloads the manifest of bd over HTTP.
// A 404 or 410 answer means there is no manifest yet; any other failure is reported as Failed.
func (b *Base) FetchMetaFile(ctx context.Context, bd build.Build) manifest.FetchResult {
	url := b.MetaFileURL(bd)

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return manifest.Failed(fmt.Errorf("create request for %s: %w", url, err))
	}

	request.Header.Set("User-Agent", version.UserAgent())
	request.Header.Set("Cache-Control", "no-cache")

	response, err := b.httpClient.Do(request)
	if err != nil {
		return manifest.Failed(fmt.Errorf("get %s: %w", url, err))
	}

	defer func() {
		_ = response.Body.Close()
	}()

	switch response.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound, http.StatusGone:
		logger.DebugKV(ctx, "Manifest is not available, "+firstPublishHint,
			"url", url,
			"status", response.Status)

		return manifest.Empty()
	default:
		return manifest.Failed(fmt.Errorf("get %s: %w: %s", url, ErrUnexpectedStatus, response.Status))
	}

	body, err := io.ReadAll(io.LimitReader(response.Body, maxMetaFileSize))
	if err != nil {
		return manifest.Failed(fmt.Errorf("read %s: %w", url, err))
	}

	m, err := manifest.Parse(body)
	if err != nil {
		return manifest.Failed(fmt.Errorf("parse %s: %w", url, err))
	}

	return manifest.Found(m)
}

// ReplaceBuildTemplates substitutes {platform}, {arch} and {channel} in s.
func ReplaceBuildTemplates(s string, b build.Build) string {
	return strings.NewReplacer(
		"{platform}", b.Platform,
		"{arch}", b.Arch,
		"{channel}", b.Channel,
	).Replace(s)
}

// NormalizeFileName returns the base name of path with whitespace replaced by dashes.
func NormalizeFileName(path string) string {
	return whitespaceRegex.ReplaceAllString(filepath.Base(path), "-")
}

// FilterBuildIDs keeps the names that follow the build id grammar.
func FilterBuildIDs(names []string) []string {
	ids := make([]string, 0, len(names))

	for _, name := range names {
		if build.IsBuildID(name) {
			ids = append(ids, name)
		}
	}

	return ids
}

// WarnUnavailable logs a degraded manifest fetch.
func WarnUnavailable(ctx context.Context, url string, result manifest.FetchResult) {
	if result.Status() != manifest.StatusFailed {
		return
	}

	logger.WarnKV(ctx, "Could not get manifest, "+firstPublishHint,
		"url", url,
		"error", result.Err())
}
