package build

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestParseRoundTrip verifies that parsing a full id and rendering it back reproduces the input.
func TestParseRoundTrip(t *testing.T) {
	t.Parallel()

	ids := []string{
		"linux-x64-prod-1.2.3",
		"win32-ia32-beta-1.2.3-beta.1",
		"darwin-arm64-dev-0.5.0-rc-2-nightly",
	}

	for _, id := range ids {
		require.Equal(t, id, Parse(id, Build{}).IDWithVersion())
	}
}

// TestParseDefaults checks positional parsing, defaulting and "v" stripping.
func TestParseDefaults(t *testing.T) {
	t.Parallel()

	defaults := Build{Platform: "darwin", Arch: "x64", Channel: "prod", Version: "2.0.0"}

	cases := []struct {
		spec string
		want Build
	}{
		{spec: "", want: defaults},
		{spec: "linux", want: Build{Platform: "linux", Arch: "x64", Channel: "prod", Version: "2.0.0"}},
		{spec: "linux-ia32", want: Build{Platform: "linux", Arch: "ia32", Channel: "prod", Version: "2.0.0"}},
		{spec: "win32-x64-beta-v1.0.0", want: Build{Platform: "win32", Arch: "x64", Channel: "beta", Version: "1.0.0"}},
	}

	for _, tc := range cases {
		require.Equal(t, tc.want, Parse(tc.spec, defaults), tc.spec)
	}
}

// TestParseWithoutDefaults ensures missing fields stay empty when no defaults are given.
func TestParseWithoutDefaults(t *testing.T) {
	t.Parallel()

	b := Parse("linux-x64", Build{})
	require.Equal(t, "linux", b.Platform)
	require.Equal(t, "x64", b.Arch)
	require.Empty(t, b.Channel)
	require.Empty(t, b.Version)
	require.Equal(t, "linux-x64", b.ID())
	require.False(t, b.HasCompleteSpecification())
}

// TestHasCompleteSpecification covers the identity and version checks of destructive operations.
func TestHasCompleteSpecification(t *testing.T) {
	t.Parallel()

	require.True(t, Parse("linux-x64-prod-1.0.0", Build{}).HasCompleteSpecification())
	require.True(t, Parse("linux-x64-prod-1.0.0-beta.2", Build{}).HasCompleteSpecification())
	require.False(t, Parse("linux-x64-prod-latest", Build{}).HasCompleteSpecification())
	require.False(t, Parse("linux-x64-prod-1.0", Build{}).HasCompleteSpecification())

	err := Parse("linux-x64", Build{}).Validate()
	require.ErrorIs(t, err, ErrIncompleteBuild)
	require.NoError(t, Parse("linux-x64-prod-1.0.0", Build{}).Validate())
}

// TestIDs checks id rendering with and without version.
func TestIDs(t *testing.T) {
	t.Parallel()

	b := Build{Platform: "win32", Arch: "x64", Channel: "prod", Version: "1.0.0"}
	require.Equal(t, "win32-x64-prod", b.ID())
	require.Equal(t, "win32-x64-prod-1.0.0", b.IDWithVersion())
	require.Equal(t, "win32-x64", b.Type())
	require.Equal(t, b.IDWithVersion(), b.String())
}

// TestAssetsList verifies upload order and skipping of empty assets.
func TestAssetsList(t *testing.T) {
	t.Parallel()

	assets := Assets{Install: "/dist/setup.exe", MetaFile: "/dist/RELEASES", Update: "/dist/app.nupkg"}
	require.Equal(t, []Asset{
		{Name: AssetInstall, Path: "/dist/setup.exe"},
		{Name: AssetMetaFile, Path: "/dist/RELEASES"},
		{Name: AssetUpdate, Path: "/dist/app.nupkg"},
	}, assets.List())

	require.Len(t, Assets{Install: "/dist/a.AppImage", Update: "/dist/a.AppImage"}.List(), 2)
}

// TestIsBuildID checks the remote resource name grammar.
func TestIsBuildID(t *testing.T) {
	t.Parallel()

	require.True(t, IsBuildID("linux-x64-prod-1.0.0"))
	require.True(t, IsBuildID("linux-x64-prod-1.0.0-beta"))
	require.False(t, IsBuildID("updates"))
	require.False(t, IsBuildID("linux-x64-prod.json"))
}
