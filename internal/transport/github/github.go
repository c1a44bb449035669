package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/go-github/v53/github"
	"golang.org/x/oauth2"

	"github.com/oshokin/release-publisher/internal/config"
	"github.com/oshokin/release-publisher/internal/domain/build"
	"github.com/oshokin/release-publisher/internal/domain/manifest"
	"github.com/oshokin/release-publisher/internal/logger"
	"github.com/oshokin/release-publisher/internal/transport"
	"github.com/oshokin/release-publisher/internal/version"
)

const (
	// Name is the transport module name of this backend.
	Name = "github"

	// metaFileDir holds the manifest in the repository when transport.metaFilePath is not set.
	metaFileDir = "updates"

	// rawContentURL serves repository files of the default branch.
	rawContentURL = "https://raw.githubusercontent.com"

	// listPageSize is the page size of release listings.
	listPageSize = 100
)

var (
	// ErrInvalidRepository is returned when transport.repository is not owner/repo.
	ErrInvalidRepository = errors.New("transport.repository must look like owner/repo")
	// errEmptyUpload is returned when GitHub accepts an upload without describing the asset.
	errEmptyUpload = errors.New("asset upload returned no download URL")
)

// Transport publishes to GitHub Releases.
type Transport struct {
	*transport.Base

	// client is created on Init.
	client *github.Client
	// owner and repo identify the repository.
	owner, repo string
	// metaFilePath is the manifest path in the repository, with build templates.
	metaFilePath string
	// releases caches release ids by tag for the session.
	releases map[string]int64
}

// New creates a GitHub transport. The API client is created on Init.
func New(cfg *config.Config) (*Transport, error) {
	options := cfg.Transport

	if options.Token == "" {
		return nil, fmt.Errorf("%w: transport.token", transport.ErrMissingOption)
	}

	owner, repo, err := ParseRepository(options.Repository)
	if err != nil {
		return nil, err
	}

	metaFileName := options.MetaFileName
	if metaFileName == "" {
		metaFileName = transport.DefaultMetaFileName
	}

	metaFilePath := strings.TrimPrefix(options.MetaFilePath, "/")
	if metaFilePath == "" {
		metaFilePath = metaFileDir + "/" + metaFileName
	}

	c := *cfg
	if c.Transport.MetaFileURL == "" && c.Transport.RemoteURL == "" && c.MetaFileURL == "" && options.APIURL == "" {
		c.Transport.MetaFileURL = strings.Join([]string{rawContentURL, owner, repo, "HEAD", metaFilePath}, "/")
	}

	base, err := transport.NewBase(&c)
	if err != nil {
		return nil, err
	}

	return &Transport{
		Base:         base,
		owner:        owner,
		repo:         repo,
		metaFilePath: metaFilePath,
		releases:     make(map[string]int64),
	}, nil
}

// Init creates an authenticated API client.
func (t *Transport) Init(ctx context.Context) error {
	options := t.Options()

	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: options.Token}))

	if options.APIURL == "" {
		t.client = github.NewClient(httpClient)
	} else {
		client, err := github.NewEnterpriseClient(options.APIURL, options.APIURL, httpClient)
		if err != nil {
			return fmt.Errorf("create GitHub Enterprise client: %w", err)
		}

		t.client = client
	}

	t.client.UserAgent = version.UserAgent()

	return nil
}

// UploadFile uploads a local file as an asset of the build's release, replacing a same-named asset.
func (t *Transport) UploadFile(
	ctx context.Context,
	localPath string,
	b build.Build,
	progress transport.ProgressFunc,
) (string, error) {
	releaseID, err := t.ensureRelease(ctx, b.IDWithVersion())
	if err != nil {
		return "", err
	}

	name := transport.NormalizeFileName(localPath)
	if err = t.deleteAsset(ctx, releaseID, name); err != nil {
		return "", err
	}

	file, err := os.Open(filepath.Clean(localPath))
	if err != nil {
		return "", fmt.Errorf("open %s: %w", localPath, err)
	}

	defer func() {
		_ = file.Close()
	}()

	info, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", localPath, err)
	}

	uploadPath := fmt.Sprintf("repos/%s/%s/releases/%d/assets?name=%s", t.owner, t.repo, releaseID, url.QueryEscape(name))

	request, err := t.client.NewUploadRequest(
		uploadPath,
		transport.NewProgressReader(file, localPath, info.Size(), progress),
		info.Size(),
		transport.ContentType(localPath),
	)
	if err != nil {
		return "", fmt.Errorf("create upload request for %s: %w", localPath, err)
	}

	asset := new(github.ReleaseAsset)
	if _, err = t.client.Do(ctx, request, asset); err != nil {
		return "", fmt.Errorf("upload %s: %w", localPath, err)
	}

	if asset.GetBrowserDownloadURL() == "" {
		return "", fmt.Errorf("%w: %s", errEmptyUpload, name)
	}

	return asset.GetBrowserDownloadURL(), nil
}

// PushMetaFile commits the manifest to the repository.
func (t *Transport) PushMetaFile(ctx context.Context, m *manifest.Manifest, b build.Build) (string, error) {
	path := transport.ReplaceBuildTemplates(t.metaFilePath, b)

	var sha *string

	current, _, response, err := t.client.Repositories.GetContents(ctx, t.owner, t.repo, path, nil)

	switch {
	case isNotFound(response):
	case err != nil:
		return "", fmt.Errorf("get %s: %w", path, err)
	case current != nil:
		sha = current.SHA
	}

	options := &github.RepositoryContentFileOptions{
		Message: github.String("Publish " + b.IDWithVersion()),
		Content: m.Bytes(),
		SHA:     sha,
	}

	if sha == nil {
		_, _, err = t.client.Repositories.CreateFile(ctx, t.owner, t.repo, path, options)
	} else {
		_, _, err = t.client.Repositories.UpdateFile(ctx, t.owner, t.repo, path, options)
	}

	if err != nil {
		return "", fmt.Errorf("commit %s: %w", path, err)
	}

	return t.MetaFileURL(b), nil
}

// FetchMetaFile reads the committed manifest through the contents API.
func (t *Transport) FetchMetaFile(ctx context.Context, b build.Build) manifest.FetchResult {
	path := transport.ReplaceBuildTemplates(t.metaFilePath, b)

	current, _, response, err := t.client.Repositories.GetContents(ctx, t.owner, t.repo, path, nil)

	switch {
	case isNotFound(response):
		return manifest.Empty()
	case err != nil:
		return manifest.Failed(fmt.Errorf("get %s: %w", path, err))
	case current == nil:
		return manifest.Failed(fmt.Errorf("get %s: %w", path, transport.ErrUnexpectedStatus))
	}

	content, err := current.GetContent()
	if err != nil {
		return manifest.Failed(fmt.Errorf("decode %s: %w", path, err))
	}

	m, err := manifest.Parse([]byte(content))
	if err != nil {
		return manifest.Failed(fmt.Errorf("parse %s: %w", path, err))
	}

	return manifest.Found(m)
}

// FetchBuildsList returns the release tags that look like build ids.
func (t *Transport) FetchBuildsList(ctx context.Context) ([]string, error) {
	var (
		tags    []string
		options = &github.ListOptions{PerPage: listPageSize}
	)

	for {
		releases, response, err := t.client.Repositories.ListReleases(ctx, t.owner, t.repo, options)
		if err != nil {
			return nil, fmt.Errorf("list releases: %w", err)
		}

		for _, release := range releases {
			tags = append(tags, release.GetTagName())
		}

		if response == nil || response.NextPage == 0 {
			break
		}

		options.Page = response.NextPage
	}

	return transport.FilterBuildIDs(tags), nil
}

// RemoveResource deletes the release tagged id and the tag itself.
func (t *Transport) RemoveResource(ctx context.Context, id string) error {
	release, response, err := t.client.Repositories.GetReleaseByTag(ctx, t.owner, t.repo, id)

	switch {
	case isNotFound(response):
		logger.DebugKV(ctx, "Release not found, removing the tag only", "tag", id)
	case err != nil:
		return fmt.Errorf("get release %s: %w", id, err)
	default:
		if _, err = t.client.Repositories.DeleteRelease(ctx, t.owner, t.repo, release.GetID()); err != nil {
			return fmt.Errorf("delete release %s: %w", id, err)
		}

		delete(t.releases, id)
	}

	response, err = t.client.Git.DeleteRef(ctx, t.owner, t.repo, "tags/"+id)
	if err != nil && !isNotFound(response) && !isUnprocessable(response) {
		return fmt.Errorf("delete tag %s: %w", id, err)
	}

	return nil
}

// ensureRelease returns the id of the release tagged tag, creating it when missing.
func (t *Transport) ensureRelease(ctx context.Context, tag string) (int64, error) {
	if id, ok := t.releases[tag]; ok {
		return id, nil
	}

	release, response, err := t.client.Repositories.GetReleaseByTag(ctx, t.owner, t.repo, tag)

	switch {
	case isNotFound(response):
		release, _, err = t.client.Repositories.CreateRelease(ctx, t.owner, t.repo, &github.RepositoryRelease{
			TagName: github.String(tag),
			Name:    github.String(tag),
		})
		if err != nil {
			return 0, fmt.Errorf("create release %s: %w", tag, err)
		}

		logger.InfoKV(ctx, "Release created", "tag", tag)
	case err != nil:
		return 0, fmt.Errorf("get release %s: %w", tag, err)
	}

	t.releases[tag] = release.GetID()

	return release.GetID(), nil
}

// deleteAsset removes a same-named asset so that it can be uploaded again.
func (t *Transport) deleteAsset(ctx context.Context, releaseID int64, name string) error {
	options := &github.ListOptions{PerPage: listPageSize}

	for {
		assets, response, err := t.client.Repositories.ListReleaseAssets(ctx, t.owner, t.repo, releaseID, options)
		if err != nil {
			return fmt.Errorf("list assets of release %d: %w", releaseID, err)
		}

		for _, asset := range assets {
			if asset.GetName() != name {
				continue
			}

			if _, err = t.client.Repositories.DeleteReleaseAsset(ctx, t.owner, t.repo, asset.GetID()); err != nil {
				return fmt.Errorf("delete asset %s: %w", name, err)
			}

			return nil
		}

		if response == nil || response.NextPage == 0 {
			return nil
		}

		options.Page = response.NextPage
	}
}

// ParseRepository extracts owner and repo from owner/repo, a GitHub URL or a git+ URL.
func ParseRepository(repository string) (string, string, error) {
	repository = strings.TrimPrefix(repository, "git+")
	repository = strings.TrimPrefix(repository, "https://github.com/")
	repository = strings.TrimSuffix(repository, ".git")

	owner, repo, found := strings.Cut(repository, "/")
	if !found || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidRepository, repository)
	}

	return owner, repo, nil
}

func isNotFound(response *github.Response) bool {
	return response != nil && response.StatusCode == http.StatusNotFound
}

func isUnprocessable(response *github.Response) bool {
	return response != nil && response.StatusCode == http.StatusUnprocessableEntity
}
