package build

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Separator joins identity fields in build ids.
const Separator = "-"

// Logical asset names used in Assets and in manifest entries.
const (
	AssetInstall  = "install"
	AssetMetaFile = "metaFile"
	AssetUpdate   = "update"
)

var (
	// completeVersionRegex matches dotted numeric versions with an optional qualifier.
	completeVersionRegex = regexp.MustCompile(`^\d+\.\d+\.\d+(-\S+)?$`)

	// resourceIDRegex matches remote resource names that look like a versioned build id.
	// Only the start is anchored so that prerelease qualifiers with dashes are accepted.
	resourceIDRegex = regexp.MustCompile(`^\w+-\w+-\w+-[\w.]+`)

	// ErrIncompleteBuild is returned when a destructive operation receives a partial build id.
	ErrIncompleteBuild = errors.New("wrong build id, required: platform-arch-channel-version")
)

// Assets holds resolved local file paths of a build. Empty means the build has no such asset.
type Assets struct {
	// Install is the installer shown to users on first install (dmg, exe, AppImage).
	Install string
	// MetaFile is an auxiliary update descriptor (Squirrel RELEASES file).
	MetaFile string
	// Update is the package downloaded by auto-update clients.
	Update string
}

// Asset is a logical asset name paired with its local path.
type Asset struct {
	Name string
	Path string
}

// List returns the non-empty assets in upload order.
func (a Assets) List() []Asset {
	all := []Asset{
		{Name: AssetInstall, Path: a.Install},
		{Name: AssetMetaFile, Path: a.MetaFile},
		{Name: AssetUpdate, Path: a.Update},
	}

	result := make([]Asset, 0, len(all))

	for _, asset := range all {
		if asset.Path != "" {
			result = append(result, asset)
		}
	}

	return result
}

// Build identifies a single release of the application.
type Build struct {
	// Platform is the Electron platform name: win32, darwin, linux.
	Platform string
	// Arch is the Electron architecture name: x64, ia32, arm64, armv7l.
	Arch string
	// Channel is the release channel, "prod" unless configured otherwise.
	Channel string
	// Version is the release version without a leading "v".
	Version string
	// Assets are the local files of the release.
	Assets Assets
}

// Parse builds a Build from a dash-separated id such as "linux-x64-prod-1.2.3-beta.1".
// The first three segments are platform, arch and channel; the rest is the version.
// Empty fields are taken from defaults.
func Parse(spec string, defaults Build) Build {
	var partial Build

	if spec != "" {
		parts := strings.Split(spec, Separator)

		fields := []*string{&partial.Platform, &partial.Arch, &partial.Channel}
		for i, field := range fields {
			if i < len(parts) {
				*field = parts[i]
			}
		}

		if len(parts) > len(fields) {
			partial.Version = strings.Join(parts[len(fields):], Separator)
		}
	}

	return Normalize(partial, defaults)
}

// Normalize fills empty identity fields of partial from defaults and strips a leading "v" from the version.
func Normalize(partial, defaults Build) Build {
	result := partial

	if result.Platform == "" {
		result.Platform = defaults.Platform
	}

	if result.Arch == "" {
		result.Arch = defaults.Arch
	}

	if result.Channel == "" {
		result.Channel = defaults.Channel
	}

	if result.Version == "" {
		result.Version = defaults.Version
	}

	result.Version = strings.TrimPrefix(result.Version, "v")

	return result
}

// ParseMany parses every spec with the same defaults.
func ParseMany(specs []string, defaults Build) []Build {
	builds := make([]Build, 0, len(specs))
	for _, spec := range specs {
		builds = append(builds, Parse(spec, defaults))
	}

	return builds
}

// ID returns the version-less id: platform-arch-channel.
func (b Build) ID() string {
	return join(b.Platform, b.Arch, b.Channel)
}

// IDWithVersion returns platform-arch-channel-version.
func (b Build) IDWithVersion() string {
	return join(b.Platform, b.Arch, b.Channel, b.Version)
}

// Type returns platform-arch, the key of the asset template table.
func (b Build) Type() string {
	return b.Platform + Separator + b.Arch
}

// String implements fmt.Stringer.
func (b Build) String() string {
	return b.IDWithVersion()
}

// WithAssets returns a copy of the build with the provided assets.
func (b Build) WithAssets(assets Assets) Build {
	b.Assets = assets

	return b
}

// HasCompleteSpecification reports whether all identity fields are set and the version is dotted numeric.
func (b Build) HasCompleteSpecification() bool {
	if b.Platform == "" || b.Arch == "" || b.Channel == "" || b.Version == "" {
		return false
	}

	return completeVersionRegex.MatchString(b.Version)
}

// Validate returns ErrIncompleteBuild when the build lacks a complete specification.
func (b Build) Validate() error {
	if b.HasCompleteSpecification() {
		return nil
	}

	return fmt.Errorf("%w: %q", ErrIncompleteBuild, b.IDWithVersion())
}

// IsBuildID reports whether a remote resource name follows the platform-arch-channel-version grammar.
func IsBuildID(name string) bool {
	return resourceIDRegex.MatchString(name)
}

// join concatenates non-empty parts with Separator.
func join(parts ...string) string {
	nonEmpty := make([]string, 0, len(parts))

	for _, part := range parts {
		if part != "" {
			nonEmpty = append(nonEmpty, part)
		}
	}

	return strings.Join(nonEmpty, Separator)
}
