package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
)

// Environment variables read by ApplyEnv.
const (
	EnvTransport       = "PUBLISHER_TRANSPORT"
	EnvChannel         = "PUBLISHER_CHANNEL"
	EnvVersion         = "PUBLISHER_VERSION"
	EnvDistPath        = "PUBLISHER_PATH"
	EnvMetaFileURL     = "PUBLISHER_METAFILE_URL"
	EnvGithubToken     = "PUBLISHER_GITHUB_TOKEN"
	EnvAccessKeyID     = "PUBLISHER_ACCESS_KEY_ID"
	EnvSecretAccessKey = "PUBLISHER_SECRET_ACCESS_KEY"
	EnvLogLevel        = "PUBLISHER_LOG_LEVEL"
)

// packageJSONCandidates are checked in order, the Electron two-package layout first.
//
//nolint:gochecknoglobals // Read-only lookup list.
var packageJSONCandidates = []string{
	filepath.Join("app", "package.json"),
	"package.json",
}

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides configuration fields with PUBLISHER_* variables.
func ApplyEnv(cfg *Config, lookup LookupFunc) {
	targets := []struct {
		key   string
		field *string
	}{
		{key: EnvTransport, field: &cfg.Transport.Module},
		{key: EnvChannel, field: &cfg.Channel},
		{key: EnvVersion, field: &cfg.Version},
		{key: EnvDistPath, field: &cfg.DistPath},
		{key: EnvMetaFileURL, field: &cfg.MetaFileURL},
		{key: EnvGithubToken, field: &cfg.Transport.Token},
		{key: EnvAccessKeyID, field: &cfg.Transport.AccessKeyID},
		{key: EnvSecretAccessKey, field: &cfg.Transport.SecretAccessKey},
		{key: EnvLogLevel, field: &cfg.LogLevel},
	}

	for _, target := range targets {
		if value, ok := lookup(target.key); ok && value != "" {
			*target.field = value
		}
	}
}

// loadPackageJSON reads application metadata and the "publisher" section from package.json.
func loadPackageJSON(cfg *Config, workDir string) error {
	contents, path, err := readPackageJSON(workDir)
	if err != nil || contents == nil {
		return err
	}

	if !gjson.ValidBytes(contents) {
		return fmt.Errorf("parse %s: invalid JSON", path)
	}

	pkg := gjson.ParseBytes(contents)

	setIfPresent(&cfg.Version, pkg.Get("version"))
	setIfPresent(&cfg.AppName, pkg.Get("name"))
	setIfPresent(&cfg.ProductName, pkg.Get("productName"))
	setIfPresent(&cfg.Channel, pkg.Get("updater.channel"))
	setIfPresent(&cfg.MetaFileURL, pkg.Get("updater.url"))

	if buildType := pkg.Get("updater.build").String(); buildType != "" {
		platform, arch, _ := strings.Cut(buildType, "-")
		if platform != "" {
			cfg.Platform = platform
		}

		if arch != "" {
			cfg.Arch = arch
		}
	}

	if section := pkg.Get("publisher"); section.IsObject() {
		if err = json.Unmarshal([]byte(section.Raw), cfg); err != nil {
			return fmt.Errorf("parse %s publisher section: %w", path, err)
		}
	}

	return nil
}

// readPackageJSON returns the first package.json found in workDir, or nil when there is none.
func readPackageJSON(workDir string) ([]byte, string, error) {
	for _, candidate := range packageJSONCandidates {
		path := filepath.Join(workDir, candidate)

		contents, err := os.ReadFile(filepath.Clean(path))
		if err == nil {
			return contents, path, nil
		}

		if !errors.Is(err, os.ErrNotExist) {
			return nil, path, fmt.Errorf("read %s: %w", path, err)
		}
	}

	return nil, "", nil
}

// setIfPresent assigns a non-empty gjson string to target.
func setIfPresent(target *string, value gjson.Result) {
	if s := value.String(); s != "" {
		*target = s
	}
}
