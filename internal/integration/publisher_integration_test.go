package integration

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/release-publisher/internal/config"
	"github.com/oshokin/release-publisher/internal/domain/manifest"
	"github.com/oshokin/release-publisher/internal/printer"
	"github.com/oshokin/release-publisher/internal/service/publisher"
)

const remoteURL = "https://updates.example.com"

// project is a working directory with package.json, publisher.yaml and a dist directory.
type project struct {
	workDir string
	dist    string
	out     string
}

// newProject writes the configuration of a local publish into a temporary directory.
func newProject(t *testing.T) *project {
	t.Helper()

	workDir := t.TempDir()
	p := &project{
		workDir: workDir,
		dist:    filepath.Join(workDir, "dist"),
		out:     filepath.Join(workDir, "out"),
	}

	writeFile(t, filepath.Join(workDir, "package.json"),
		`{"name": "app", "productName": "App", "version": "1.0.0"}`)
	writeFile(t, filepath.Join(workDir, config.DefaultConfigFilename), fmt.Sprintf(`path: %s
platform: linux
arch: x64
noprogress: true
transport:
  module: local
  remoteUrl: %s/
  outPath: %s
`, p.dist, remoteURL, p.out))

	return p
}

// writeFile creates a file with its parent directories.
func writeFile(t *testing.T, path, contents string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
}

// run loads the configuration, lets adjust change it and executes the command.
func (p *project) run(t *testing.T, command string, adjust func(cfg *config.Config)) string {
	t.Helper()

	cfg, err := config.Load(p.workDir, "")
	require.NoError(t, err)

	if adjust != nil {
		adjust(cfg)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var out bytes.Buffer

	err = publisher.Execute(ctx, cfg, command, printer.New(&out, &bytes.Buffer{}))
	require.NoError(t, err)

	return out.String()
}

// manifest reads a published manifest from the output directory.
func (p *project) manifest(t *testing.T, name string) *manifest.Manifest {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(p.out, name))
	require.NoError(t, err)

	m, err := manifest.Parse(data)
	require.NoError(t, err)

	return m
}

// TestLocalReleaseLifecycle publishes, lists, cleans and removes builds through the local backend.
func TestLocalReleaseLifecycle(t *testing.T) {
	t.Parallel()

	p := newProject(t)
	writeFile(t, filepath.Join(p.dist, "App-1.0.0.AppImage"), "linux 1.0.0")
	writeFile(t, filepath.Join(p.dist, "App-1.0.0.dmg"), "darwin installer")
	writeFile(t, filepath.Join(p.dist, "App-1.0.0-mac.zip"), "darwin update")

	out := p.run(t, config.CommandPublish, func(cfg *config.Config) {
		cfg.Builds = []string{"all"}
	})
	require.Equal(t, "darwin-x64-prod-1.0.0\nlinux-x64-prod-1.0.0\n", out)
	require.FileExists(t, filepath.Join(p.out, "linux-x64-prod-1.0.0", "App-1.0.0.AppImage"))
	require.FileExists(t, filepath.Join(p.out, "darwin-x64-prod-1.0.0", "release.json"))

	linux := p.manifest(t, "linux-x64-prod.json")
	entry, ok := linux.Entry("linux-x64-prod")
	require.True(t, ok)
	require.Equal(t, remoteURL+"/linux-x64-prod-1.0.0/App-1.0.0.AppImage", entry.String(manifest.FieldInstall))
	require.NotEmpty(t, entry.String("sha256"))

	entry, ok = p.manifest(t, "darwin-x64-prod.json").Entry("darwin-x64-prod")
	require.True(t, ok)
	require.Equal(t, remoteURL+"/darwin-x64-prod-1.0.0/release.json", entry.String(manifest.FieldUpdate))

	writeFile(t, filepath.Join(p.dist, "App-1.1.0.AppImage"), "linux 1.1.0")

	out = p.run(t, config.CommandPublish, func(cfg *config.Config) {
		cfg.Version = "1.1.0"
	})
	require.Equal(t, "linux-x64-prod-1.1.0\n", out)
	require.Equal(t, "1.1.0", p.manifest(t, "linux-x64-prod.json").Version("linux-x64-prod"))

	out = p.run(t, config.CommandList, nil)
	require.Equal(t, "darwin-x64-prod-1.0.0\nlinux-x64-prod-1.0.0\nlinux-x64-prod-1.1.0\n", out)

	out = p.run(t, config.CommandClean, nil)
	require.Equal(t, "linux-x64-prod-1.0.0\n", out)
	require.NoDirExists(t, filepath.Join(p.out, "linux-x64-prod-1.0.0"))
	require.DirExists(t, filepath.Join(p.out, "darwin-x64-prod-1.0.0"))

	out = p.run(t, config.CommandRemove, func(cfg *config.Config) {
		cfg.Builds = []string{"linux-x64-prod-1.1.0"}
	})
	require.Equal(t, "linux-x64-prod-1.1.0\n", out)
	require.NoDirExists(t, filepath.Join(p.out, "linux-x64-prod-1.1.0"))
	require.False(t, p.manifest(t, "linux-x64-prod.json").Has("linux-x64-prod"))

	out = p.run(t, config.CommandList, nil)
	require.Equal(t, "darwin-x64-prod-1.0.0\n", out)
}

// TestLocalReplace republishes a build over an existing one.
func TestLocalReplace(t *testing.T) {
	t.Parallel()

	p := newProject(t)
	writeFile(t, filepath.Join(p.dist, "App-1.0.0.AppImage"), "first")

	p.run(t, config.CommandPublish, nil)

	writeFile(t, filepath.Join(p.dist, "App-1.0.0.AppImage"), "second")

	out := p.run(t, config.CommandReplace, func(cfg *config.Config) {
		cfg.Fields["notes"] = "rebuilt"
	})
	require.Equal(t, "linux-x64-prod-1.0.0\n", out)

	data, err := os.ReadFile(filepath.Join(p.out, "linux-x64-prod-1.0.0", "App-1.0.0.AppImage"))
	require.NoError(t, err)
	require.Equal(t, "second", string(data))

	entry, ok := p.manifest(t, "linux-x64-prod.json").Entry("linux-x64-prod")
	require.True(t, ok)
	require.Equal(t, "rebuilt", entry.String("notes"))
}
