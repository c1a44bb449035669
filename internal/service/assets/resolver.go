package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/oshokin/release-publisher/internal/domain/build"
)

// AllBuilds is the build spec that requests discovery of every build in the dist directory.
const AllBuilds = "all"

// nupkgExtension marks masks whose {version} uses the Squirrel package version format.
const nupkgExtension = ".nupkg"

var (
	// ErrUnknownBuildType is returned for a platform-arch pair missing from the template table.
	ErrUnknownBuildType = errors.New("unknown build type")
	// ErrAssetNotFound is returned when the expected asset file does not exist.
	ErrAssetNotFound = errors.New("asset file not found")
	// ErrVersionUnknown is returned when a build to publish has no version.
	ErrVersionUnknown = errors.New("could not determine a version for build")
)

// assetNotFoundHints is appended to ErrAssetNotFound errors.
const assetNotFoundHints = "You can try to check if:\n" +
	" - electron-builder successfully made a build\n" +
	" - electron-builder and the publisher are up to date\n" +
	" - the --path option points to the dist directory\n" +
	"If nothing helps, please create an issue and include the electron-builder version."

// Vars are the values substituted into filename masks.
type Vars struct {
	// Name replaces {name}.
	Name string
	// ProductName replaces {productName}; Name is used when it is empty.
	ProductName string
	// Version replaces {version}.
	Version string
}

// Resolver finds build assets in a dist directory.
type Resolver struct {
	// fs is rooted at the dist directory.
	fs billy.Filesystem
	// distPath is the absolute dist directory used to build returned paths.
	distPath string
	// vars hold the application name placeholders.
	vars Vars
	// defaults fill missing fields of build specs.
	defaults build.Build
}

// NewResolver creates a resolver over fs, which must be rooted at distPath.
func NewResolver(fs billy.Filesystem, distPath string, vars Vars, defaults build.Build) *Resolver {
	return &Resolver{
		fs:       fs,
		distPath: distPath,
		vars:     vars,
		defaults: defaults,
	}
}

// NewOSResolver creates a resolver over the dist directory on the local disk.
func NewOSResolver(distPath string, vars Vars, defaults build.Build) (*Resolver, error) {
	absolute, err := filepath.Abs(distPath)
	if err != nil {
		return nil, fmt.Errorf("resolve dist path %s: %w", distPath, err)
	}

	return NewResolver(osfs.New(absolute), absolute, vars, defaults), nil
}

// Builds turns build specs into resolved builds. No specs means one build from defaults.
func (r *Resolver) Builds(specs []string) ([]build.Build, error) {
	if len(specs) > 0 && specs[0] == AllBuilds {
		return r.Discover()
	}

	if len(specs) == 0 {
		specs = []string{""}
	}

	builds := make([]build.Build, 0, len(specs))

	for _, spec := range specs {
		resolved, err := r.Resolve(build.Parse(spec, r.defaults))
		if err != nil {
			return nil, err
		}

		builds = append(builds, resolved)
	}

	return builds, nil
}

// Resolve returns a copy of b with its assets located on disk.
func (r *Resolver) Resolve(b build.Build) (build.Build, error) {
	if b.Version == "" {
		return build.Build{}, fmt.Errorf("%w %s", ErrVersionUnknown, b.ID())
	}

	assets, err := r.BuildAssets(b)
	if err != nil {
		return build.Build{}, err
	}

	return b.WithAssets(assets), nil
}

// BuildAssets resolves the install, update and metaFile templates of b's build type.
func (r *Resolver) BuildAssets(b build.Build) (build.Assets, error) {
	templates, ok := Templates(b.Type())
	if !ok {
		return build.Assets{}, fmt.Errorf("%w %s", ErrUnknownBuildType, b.Type())
	}

	vars := r.varsFor(b)

	install, err := r.ResolveTemplate(templates.Install, vars)
	if err != nil {
		return build.Assets{}, err
	}

	metaFile, err := r.ResolveTemplate(templates.MetaFile, vars)
	if err != nil {
		return build.Assets{}, err
	}

	update, err := r.ResolveTemplate(templates.Update, vars)
	if err != nil {
		return build.Assets{}, err
	}

	return build.Assets{
		Install:  install,
		MetaFile: metaFile,
		Update:   update,
	}, nil
}

// Discover returns one build per build type whose installer exists in the dist directory.
func (r *Resolver) Discover() ([]build.Build, error) {
	var (
		found []string
		seen  = make(map[string]struct{})
		vars  = r.varsFor(r.defaults)
	)

	for _, buildType := range BuildTypes() {
		templates, _ := Templates(buildType)

		for _, mask := range templates.Install {
			if _, ok := seen[buildType]; ok {
				break
			}

			path, err := r.resolveMask(mask, vars, false)
			if err != nil {
				return nil, err
			}

			if path != "" {
				seen[buildType] = struct{}{}
				found = append(found, buildType)
			}
		}
	}

	builds := make([]build.Build, 0, len(found))

	for _, buildType := range found {
		resolved, err := r.Resolve(build.Parse(buildType, r.defaults))
		if err != nil {
			return nil, err
		}

		builds = append(builds, resolved)
	}

	return builds, nil
}

// ResolveTemplate returns the path of the first mask whose file exists.
// When none exists, the first mask is resolved again to report the primary expected file.
func (r *Resolver) ResolveTemplate(masks Masks, vars Vars) (string, error) {
	if len(masks) == 0 {
		return "", nil
	}

	for _, mask := range masks {
		path, err := r.resolveMask(mask, vars, false)
		if err != nil {
			return "", err
		}

		if path != "" {
			return path, nil
		}
	}

	return r.resolveMask(masks[0], vars, true)
}

// resolveMask substitutes vars into mask and checks that the file exists.
// A missing file yields "" unless mustExist is set.
func (r *Resolver) resolveMask(mask string, vars Vars, mustExist bool) (string, error) {
	if mask == "" {
		return "", nil
	}

	fileName := Render(mask, vars)
	path := filepath.Join(r.distPath, fileName)

	_, err := r.fs.Stat(fileName)
	switch {
	case err == nil:
		return path, nil
	case !errors.Is(err, os.ErrNotExist):
		return "", fmt.Errorf("stat %s: %w", path, err)
	case mustExist:
		return "", fmt.Errorf("%w: %s doesn't exist. %s", ErrAssetNotFound, path, assetNotFoundHints)
	default:
		return "", nil
	}
}

// varsFor returns the resolver vars with the version of b.
func (r *Resolver) varsFor(b build.Build) Vars {
	vars := r.vars
	if b.Version != "" {
		vars.Version = b.Version
	}

	return vars
}

// Render substitutes placeholders into a mask. Squirrel package masks get the Windows version format.
func Render(mask string, vars Vars) string {
	productName := vars.ProductName
	if productName == "" {
		productName = vars.Name
	}

	version := vars.Version
	if strings.HasSuffix(mask, nupkgExtension) {
		version = WindowsVersion(version)
	}

	return strings.NewReplacer(
		"{name}", vars.Name,
		"{productName}", productName,
		"{version}", version,
	).Replace(mask)
}

// WindowsVersion strips dots from the prerelease qualifier: 1.2.3-beta.1 becomes 1.2.3-beta1.
// See electron-builder issue 651.
func WindowsVersion(version string) string {
	main, qualifier, found := strings.Cut(version, "-")
	if !found {
		return main
	}

	return main + "-" + strings.ReplaceAll(qualifier, ".", "")
}
