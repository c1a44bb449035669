package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/release-publisher/internal/domain/build"
)

// Config holds everything a publisher command needs.
type Config struct {
	// Builds are the build ids requested on the command line ("all" discovers them).
	Builds []string `yaml:"builds,omitempty" json:"builds,omitempty" toml:"builds,omitempty"`
	// DistPath is the directory with build artifacts.
	DistPath string `yaml:"path" json:"path" toml:"path"`
	// Except lists substrings of remote builds that clean must preserve.
	Except []string `yaml:"except,omitempty" json:"except,omitempty" toml:"except,omitempty"`
	// Debug enables debug logging.
	Debug bool `yaml:"debug" json:"debug" toml:"debug"`
	// LogLevel is the log level name (debug, info, warn, error); Debug takes precedence.
	LogLevel string `yaml:"logLevel,omitempty" json:"logLevel,omitempty" toml:"logLevel,omitempty"`
	// NoProgress disables upload progress bars.
	NoProgress bool `yaml:"noprogress" json:"noprogress" toml:"noprogress"`
	// Fields are copied into every published manifest entry.
	Fields map[string]string `yaml:"fields,omitempty" json:"fields,omitempty" toml:"fields,omitempty"`
	// Platform is the default build platform.
	Platform string `yaml:"platform" json:"platform" toml:"platform"`
	// Arch is the default build architecture.
	Arch string `yaml:"arch" json:"arch" toml:"arch"`
	// Channel is the default release channel.
	Channel string `yaml:"channel" json:"channel" toml:"channel"`
	// Version is the application version being published.
	Version string `yaml:"version" json:"version" toml:"version"`
	// MetaFileURL is the manifest URL used when the transport does not define one.
	MetaFileURL string `yaml:"metaFileUrl,omitempty" json:"metaFileUrl,omitempty" toml:"metaFileUrl,omitempty"`
	// AppName is the package name used in {name} asset placeholders.
	AppName string `yaml:"appName" json:"appName" toml:"appName"`
	// ProductName is the human-readable name used in {productName} placeholders.
	ProductName string `yaml:"productName,omitempty" json:"productName,omitempty" toml:"productName,omitempty"`
	// Transport selects and configures the hosting backend.
	Transport Transport `yaml:"transport" json:"transport" toml:"transport"`
}

const (
	// DefaultConfigFilename is the config file looked up when none is given.
	DefaultConfigFilename = "publisher.yaml"

	// DefaultChannel is used when neither package.json nor the config sets a channel.
	DefaultChannel = "prod"

	// DefaultDistPath is the default artifacts directory.
	DefaultDistPath = "dist"

	// DefaultFilePermissions is used for published files written to disk.
	DefaultFilePermissions = 0o644

	// DefaultDirPermissions is used for directories created for published files.
	DefaultDirPermissions = 0o755

	// redacted replaces secrets in dumped configuration.
	redacted = "********"
)

// Commands that need particular validation.
const (
	CommandPublish = "publish"
	CommandReplace = "replace"
	CommandRemove  = "remove"
	CommandClean   = "clean"
	CommandList    = "list"
	CommandConfig  = "config"
)

var (
	// ErrMissingVersion is returned when publishing without a known version.
	ErrMissingVersion = errors.New(
		"could not determine a version for build, set a version in your package.json or config")
	// ErrTransportNotSet is returned when no transport module is configured.
	ErrTransportNotSet = errors.New("transport module is not set, use --transport or transport.module")
	// errUnknownConfigFormat is returned for config files with an unsupported extension.
	errUnknownConfigFormat = errors.New("unsupported config file format")

	// alternativeConfigFilenames are probed when the default config file is absent.
	//nolint:gochecknoglobals // Read-only lookup list.
	alternativeConfigFilenames = []string{"publisher.yml", "publisher.json", "publisher.toml"}
)

// Default returns a configuration populated with built-in defaults.
func Default() *Config {
	return &Config{
		DistPath: DefaultDistPath,
		Platform: Platform(runtime.GOOS),
		Arch:     Arch(runtime.GOARCH),
		Channel:  DefaultChannel,
		Fields:   make(map[string]string),
	}
}

// Load builds the configuration from defaults, package.json in workDir, the config file and the environment.
// An empty path probes DefaultConfigFilename and its alternatives; a missing default file is not an error.
func Load(workDir, path string) (*Config, error) {
	cfg := Default()

	if err := loadPackageJSON(cfg, workDir); err != nil {
		return nil, err
	}

	explicit := path != ""
	if !explicit {
		path = findConfigFile(workDir)
	} else if !filepath.IsAbs(path) {
		path = filepath.Join(workDir, path)
	}

	if path != "" {
		if err := loadFile(cfg, path, explicit); err != nil {
			return nil, err
		}
	}

	ApplyEnv(cfg, os.LookupEnv)

	if cfg.Fields == nil {
		cfg.Fields = make(map[string]string)
	}

	return cfg, nil
}

// IsConfigFile reports whether a positional argument names a config file.
func IsConfigFile(arg string) bool {
	switch strings.ToLower(filepath.Ext(arg)) {
	case ".yaml", ".yml", ".json", ".toml":
		return true
	default:
		return false
	}
}

// Validate checks the configuration for the given command before any network call.
func Validate(cfg *Config, command string) error {
	if command == CommandConfig {
		return nil
	}

	if cfg.Transport.Module == "" {
		return ErrTransportNotSet
	}

	if (command == CommandPublish || command == CommandReplace) && cfg.Version == "" {
		return ErrMissingVersion
	}

	return nil
}

// BuildDefaults returns the identity used to fill missing build id fields.
func (c *Config) BuildDefaults() build.Build {
	return build.Build{
		Platform: c.Platform,
		Arch:     c.Arch,
		Channel:  c.Channel,
		Version:  c.Version,
	}
}

// Dump renders the configuration as YAML with secrets redacted.
func Dump(cfg *Config) ([]byte, error) {
	cloned := *cfg

	secrets := []*string{
		&cloned.Transport.Token,
		&cloned.Transport.SecretAccessKey,
		&cloned.Transport.Password,
		&cloned.Transport.PrivateKey,
		&cloned.Transport.Passphrase,
	}

	for _, secret := range secrets {
		if *secret != "" {
			*secret = redacted
		}
	}

	data, err := yaml.Marshal(&cloned)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}

	return data, nil
}

// Platform maps a GOOS value to the Electron platform name.
func Platform(goos string) string {
	if goos == "windows" {
		return "win32"
	}

	return goos
}

// Arch maps a GOARCH value to the Electron architecture name.
func Arch(goarch string) string {
	switch goarch {
	case "amd64":
		return "x64"
	case "386":
		return "ia32"
	case "arm":
		return "armv7l"
	default:
		return goarch
	}
}

// findConfigFile returns the first existing default config file in workDir.
func findConfigFile(workDir string) string {
	candidates := append([]string{DefaultConfigFilename}, alternativeConfigFilenames...)

	for _, name := range candidates {
		path := filepath.Join(workDir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadFile decodes a config file on top of cfg.
func loadFile(cfg *Config, path string, explicit bool) error {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}

		return fmt.Errorf("read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(contents, cfg)
	case ".json":
		err = json.Unmarshal(contents, cfg)
	case ".toml":
		err = toml.Unmarshal(contents, cfg)
	default:
		return fmt.Errorf("%w: %s", errUnknownConfigFormat, path)
	}

	if err != nil {
		return fmt.Errorf("unmarshal config %s: %w", path, err)
	}

	return nil
}
