package assets

import "path/filepath"

// Masks is an ordered list of filename masks; earlier masks are preferred. Nil means no asset.
type Masks []string

// TemplateSet holds the masks of the three asset kinds of a build type.
type TemplateSet struct {
	Install  Masks
	Update   Masks
	MetaFile Masks
}

// templateRow binds a build type (platform-arch) to its templates.
type templateRow struct {
	buildType string
	templates TemplateSet
}

// templateTable is ordered: discovery reports builds in this order.
//
//nolint:gochecknoglobals // Static lookup table.
var templateTable = []templateRow{
	{
		buildType: "darwin-arm64",
		templates: TemplateSet{
			Install: Masks{"{productName}-{version}-arm64.dmg"},
			Update:  Masks{"{productName}-{version}-arm64-mac.zip"},
		},
	},
	{
		buildType: "darwin-x64",
		templates: TemplateSet{
			Install: Masks{
				"{productName}-{version}.dmg",
				filepath.Join("mac", "{productName}-{version}.dmg"),
			},
			Update: Masks{
				"{productName}-{version}-mac.zip",
				"{productName}-darwin-x64-{version}.zip",
				filepath.Join("mac", "{productName}-{version}-mac.zip"),
			},
		},
	},
	{
		buildType: "linux-ia32",
		templates: TemplateSet{
			Install: Masks{
				"{productName}-{version}-ia32.AppImage",
				"{productName} {version} i386.AppImage",
				"{name}-{version}-ia32.AppImage",
			},
			Update: Masks{
				"{productName}-{version}-ia32.AppImage",
				"{productName} {version} i386.AppImage",
				"{name}-{version}-ia32.AppImage",
			},
		},
	},
	{
		buildType: "linux-x64",
		templates: TemplateSet{
			Install: Masks{
				"{productName}-{version}.AppImage",
				"{productName} {version}.AppImage",
				"{name}-{version}-x86_64.AppImage",
			},
			Update: Masks{
				"{productName}-{version}.AppImage",
				"{productName} {version}.AppImage",
				"{name}-{version}-x86_64.AppImage",
			},
		},
	},
	{
		buildType: "linux-armv7l",
		templates: TemplateSet{
			Install: Masks{
				"{productName}-{version}-armv7l.AppImage",
				"{productName} {version} armv7l.AppImage",
				"{name}-{version}-armv7l.AppImage",
			},
			Update: Masks{
				"{productName} {version}-armv7l.AppImage",
				"{name}-{version}-armv7l.AppImage",
			},
		},
	},
	{
		buildType: "win32-ia32",
		templates: TemplateSet{
			Install: Masks{
				filepath.Join("squirrel-windows-ia32", "{productName} Setup {version}.exe"),
				filepath.Join("win-ia32", "{productName} Setup {version}.exe"),
				filepath.Join("win-ia32", "{productName} Setup {version}-ia32.exe"),
			},
			MetaFile: Masks{
				filepath.Join("squirrel-windows-ia32", "RELEASES"),
				filepath.Join("win-ia32", "RELEASES"),
			},
			Update: Masks{
				filepath.Join("squirrel-windows-ia32", "{name}-{version}-full.nupkg"),
				filepath.Join("win-ia32", "{name}-{version}-full.nupkg"),
			},
		},
	},
	{
		buildType: "win32-x64",
		templates: TemplateSet{
			Install: Masks{
				filepath.Join("squirrel-windows", "{productName} Setup {version}.exe"),
				filepath.Join("win", "{productName} Setup {version}.exe"),
			},
			MetaFile: Masks{
				filepath.Join("squirrel-windows", "RELEASES"),
				filepath.Join("win", "RELEASES"),
			},
			Update: Masks{
				filepath.Join("squirrel-windows", "{name}-{version}-full.nupkg"),
				filepath.Join("win", "{name}-{version}-full.nupkg"),
			},
		},
	},
}

// Templates returns the templates of a build type.
func Templates(buildType string) (TemplateSet, bool) {
	for _, row := range templateTable {
		if row.buildType == buildType {
			return row.templates, true
		}
	}

	return TemplateSet{}, false
}

// BuildTypes returns every known platform-arch pair in table order.
func BuildTypes() []string {
	types := make([]string, 0, len(templateTable))
	for _, row := range templateTable {
		types = append(types, row.buildType)
	}

	return types
}
