package assets

import (
	"crypto"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/release-publisher/internal/domain/build"
)

const testDist = "/dist"

// newTestResolver creates a resolver over an in-memory dist directory containing files.
func newTestResolver(t *testing.T, files ...string) *Resolver {
	t.Helper()

	fs := memfs.New()
	for _, name := range files {
		require.NoError(t, util.WriteFile(fs, name, []byte(name), 0o644))
	}

	defaults := build.Build{Platform: "linux", Arch: "x64", Channel: "prod", Version: "1.2.3"}

	return NewResolver(fs, testDist, Vars{Name: "app", ProductName: "App", Version: "1.2.3"}, defaults)
}

// TestResolveTemplateFallsBack verifies that a later mask is used when earlier ones are missing.
func TestResolveTemplateFallsBack(t *testing.T) {
	t.Parallel()

	r := newTestResolver(t, "app-1.2.3-x86_64.AppImage")
	masks := Masks{"{productName}-{version}.AppImage", "{name}-{version}-x86_64.AppImage"}

	path, err := r.ResolveTemplate(masks, Vars{Name: "app", ProductName: "App", Version: "1.2.3"})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(testDist, "app-1.2.3-x86_64.AppImage"), path)
}

// TestResolveTemplateReportsFirstMask verifies the error names the primary expected file.
func TestResolveTemplateReportsFirstMask(t *testing.T) {
	t.Parallel()

	r := newTestResolver(t)
	masks := Masks{"{productName}-{version}.AppImage", "{name}-{version}-x86_64.AppImage"}

	_, err := r.ResolveTemplate(masks, Vars{Name: "app", ProductName: "App", Version: "1.2.3"})
	require.ErrorIs(t, err, ErrAssetNotFound)
	require.Contains(t, err.Error(), filepath.Join(testDist, "App-1.2.3.AppImage"))
}

// TestResolveTemplateEmpty verifies that an absent template resolves to an empty path.
func TestResolveTemplateEmpty(t *testing.T) {
	t.Parallel()

	path, err := newTestResolver(t).ResolveTemplate(nil, Vars{})
	require.NoError(t, err)
	require.Empty(t, path)
}

// TestRenderNupkgVersion checks the Squirrel version transform applies only to .nupkg masks.
func TestRenderNupkgVersion(t *testing.T) {
	t.Parallel()

	vars := Vars{Name: "app", Version: "1.2.3-beta.1"}

	require.Equal(t, "app-1.2.3-beta1-full.nupkg", Render("{name}-{version}-full.nupkg", vars))
	require.Equal(t, "app Setup 1.2.3-beta.1.exe", Render("{productName} Setup {version}.exe", vars))
	require.Equal(t, "1.2.3", WindowsVersion("1.2.3"))
	require.Equal(t, "1.2.3-rc1-2", WindowsVersion("1.2.3-rc.1-2"))
}

// TestBuildAssetsWindows resolves all three asset kinds for a Windows build.
func TestBuildAssetsWindows(t *testing.T) {
	t.Parallel()

	r := newTestResolver(t,
		filepath.Join("squirrel-windows", "App Setup 2.0.0-beta.1.exe"),
		filepath.Join("squirrel-windows", "RELEASES"),
		filepath.Join("squirrel-windows", "app-2.0.0-beta1-full.nupkg"),
	)

	b := build.Build{Platform: "win32", Arch: "x64", Channel: "beta", Version: "2.0.0-beta.1"}

	assets, err := r.BuildAssets(b)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(testDist, "squirrel-windows", "App Setup 2.0.0-beta.1.exe"), assets.Install)
	require.Equal(t, filepath.Join(testDist, "squirrel-windows", "RELEASES"), assets.MetaFile)
	require.Equal(t, filepath.Join(testDist, "squirrel-windows", "app-2.0.0-beta1-full.nupkg"), assets.Update)
}

// TestBuildAssetsUnknownType verifies that unsupported platform-arch pairs are rejected.
func TestBuildAssetsUnknownType(t *testing.T) {
	t.Parallel()

	_, err := newTestResolver(t).BuildAssets(build.Build{Platform: "vista", Arch: "x64", Version: "1.0.0"})
	require.ErrorIs(t, err, ErrUnknownBuildType)
}

// TestDiscover verifies discovery keeps table order and reports each build type once.
func TestDiscover(t *testing.T) {
	t.Parallel()

	r := newTestResolver(t,
		"App-1.2.3.AppImage",
		"app-1.2.3-x86_64.AppImage",
		"App-1.2.3.dmg",
		"App-1.2.3-mac.zip",
	)

	builds, err := r.Discover()
	require.NoError(t, err)
	require.Len(t, builds, 2)
	require.Equal(t, "darwin-x64-prod-1.2.3", builds[0].IDWithVersion())
	require.Equal(t, "linux-x64-prod-1.2.3", builds[1].IDWithVersion())
	require.Equal(t, filepath.Join(testDist, "App-1.2.3.AppImage"), builds[1].Assets.Install)
}

// TestBuilds covers default, explicit and "all" build specs.
func TestBuilds(t *testing.T) {
	t.Parallel()

	r := newTestResolver(t, "App-1.2.3.AppImage", "App-1.2.3-ia32.AppImage")

	builds, err := r.Builds(nil)
	require.NoError(t, err)
	require.Len(t, builds, 1)
	require.Equal(t, "linux-x64-prod-1.2.3", builds[0].IDWithVersion())

	builds, err = r.Builds([]string{"linux-ia32"})
	require.NoError(t, err)
	require.Len(t, builds, 1)
	require.Equal(t, filepath.Join(testDist, "App-1.2.3-ia32.AppImage"), builds[0].Assets.Update)

	builds, err = r.Builds([]string{AllBuilds})
	require.NoError(t, err)
	require.Len(t, builds, 2)
	require.Equal(t, "linux-ia32", builds[0].Type())

	_, err = r.Builds([]string{"linux-armv7l"})
	require.ErrorIs(t, err, ErrAssetNotFound)
}

// TestBuildsMissingVersion verifies that builds without any version are rejected.
func TestBuildsMissingVersion(t *testing.T) {
	t.Parallel()

	r := NewResolver(memfs.New(), testDist, Vars{Name: "app"}, build.Build{Platform: "linux", Arch: "x64"})

	_, err := r.Builds(nil)
	require.ErrorIs(t, err, ErrVersionUnknown)
}

// TestFileChecksum checks the SHA-256 of a known payload.
func TestFileChecksum(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "payload")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o600))

	sum, err := FileChecksum(path, DefaultChecksumFunction)
	require.NoError(t, err)
	require.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", sum)

	_, err = FileChecksum(filepath.Join(t.TempDir(), "missing"), crypto.SHA256)
	require.Error(t, err)
}
