package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/oshokin/release-publisher/internal/config"
	"github.com/oshokin/release-publisher/internal/logger"
	"github.com/oshokin/release-publisher/internal/printer"
	"github.com/oshokin/release-publisher/internal/service/publisher"
	"github.com/oshokin/release-publisher/internal/version"
)

// flags holds the values of the persistent command-line flags.
type flags struct {
	// configPath to the configuration file.
	configPath string
	// transport is the backend module name.
	transport string
	// distPath is the directory with build artifacts.
	distPath string
	// channel overrides the release channel.
	channel string
	// appVersion overrides the application version.
	appVersion string
	// logLevel is the log level name.
	logLevel string
	// debug enables debug logging.
	debug bool
	// noProgress disables upload progress bars.
	noProgress bool
	// fields are copied into manifest entries.
	fields map[string]string
	// transportOptions set transport.* options.
	transportOptions map[string]string
	// except lists builds that clean must keep.
	except []string
}

var (
	// options are the parsed persistent flags.
	//nolint:gochecknoglobals // Required by Cobra CLI framework architecture.
	options flags

	// rootCmd publishes builds when no subcommand is given.
	//nolint:gochecknoglobals // Required by Cobra CLI framework architecture.
	rootCmd = &cobra.Command{
		Use:   "release-publisher [config-file] [build-id...]",
		Short: "Publish Electron application releases and keep update manifests in sync",
		Long: "Uploads installers and update packages to a hosting backend (local, s3, minio, github, ssh) " +
			"and updates the manifest polled by auto-update clients. " +
			"Build ids look like platform-arch-channel-version; \"all\" publishes every build found in the dist directory.",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runE(config.CommandPublish),
	}
)

// Execute runs the release-publisher CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		printer.New(os.Stdout, os.Stderr).Failure(err)
		os.Exit(1)
	}
}

// runE returns a cobra handler running the named command.
func runE(name string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		// Setup graceful shutdown handling.
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		if len(args) > 0 && config.IsConfigFile(args[0]) {
			options.configPath = args[0]
			args = args[1:]
		}

		workDir, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("get working directory: %w", err)
		}

		cfg, err := config.Load(workDir, options.configPath)
		if err != nil {
			return err
		}

		if err = applyFlags(cfg, args); err != nil {
			return err
		}

		if err = logger.Configure(cfg.LogLevel, cfg.Debug); err != nil {
			return err
		}

		if name == config.CommandConfig {
			return printConfig(cmd, cfg)
		}

		return publisher.Execute(ctx, cfg, name, printer.New(cmd.OutOrStdout(), cmd.ErrOrStderr()))
	}
}

// applyFlags overrides the loaded configuration with command-line values.
func applyFlags(cfg *config.Config, args []string) error {
	overrides := []struct {
		value  string
		target *string
	}{
		{value: options.transport, target: &cfg.Transport.Module},
		{value: options.distPath, target: &cfg.DistPath},
		{value: options.channel, target: &cfg.Channel},
		{value: options.appVersion, target: &cfg.Version},
		{value: options.logLevel, target: &cfg.LogLevel},
	}

	for _, override := range overrides {
		if override.value != "" {
			*override.target = override.value
		}
	}

	for key, value := range options.transportOptions {
		if err := cfg.Transport.Set(key, value); err != nil {
			return err
		}
	}

	for key, value := range options.fields {
		cfg.Fields[key] = value
	}

	cfg.Debug = cfg.Debug || options.debug
	cfg.NoProgress = cfg.NoProgress || options.noProgress || !term.IsTerminal(int(os.Stdout.Fd())) //nolint:gosec // G115: fd is a small value.
	cfg.Except = append(cfg.Except, options.except...)

	if len(args) > 0 {
		cfg.Builds = args
	}

	return nil
}

// printConfig prints the effective configuration.
func printConfig(cmd *cobra.Command, cfg *config.Config) error {
	data, err := config.Dump(cfg)
	if err != nil {
		return err
	}

	_, err = cmd.OutOrStdout().Write(data)

	return err
}

// newSubcommand creates a subcommand running the named workflow.
func newSubcommand(name, use, short string) *cobra.Command {
	return &cobra.Command{
		Use:           use,
		Short:         short,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runE(name),
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	persistent := rootCmd.PersistentFlags()
	persistent.StringVarP(&options.configPath, "config", "c", "", "path to configuration file (default "+config.DefaultConfigFilename+")")
	persistent.StringVarP(&options.transport, "transport", "t", "",
		"transport module: github, local, memory, minio, s3, ssh")
	persistent.StringVarP(&options.distPath, "path", "p", "", "path to the dist directory (default "+config.DefaultDistPath+")")
	persistent.BoolVarP(&options.debug, "debug", "d", false, "enable debug logging")
	persistent.StringVar(&options.logLevel, "log-level", "", "log level: debug, info, warn, error")
	persistent.BoolVarP(&options.noProgress, "noprogress", "n", false, "disable upload progress bars")
	persistent.StringToStringVar(&options.fields, "fields", nil, "extra manifest fields, key=value")
	persistent.StringToStringVar(&options.transportOptions, "transport-option", nil, "transport option, key=value")
	persistent.StringVar(&options.channel, "channel", "", "release channel (default "+config.DefaultChannel+")")
	persistent.StringVar(&options.appVersion, "app-version", "", "application version to publish")

	clean := newSubcommand(config.CommandClean, "clean [config-file]",
		"Remove builds that the manifest no longer references")
	clean.Flags().StringSliceVarP(&options.except, "except", "e", nil, "build ids or substrings to keep, NAME1,NAME2")

	rootCmd.AddCommand(
		newSubcommand(config.CommandPublish, "publish [config-file] [build-id...]",
			"Upload builds and add them to the manifest"),
		newSubcommand(config.CommandReplace, "replace [config-file] [build-id...]",
			"Remove builds with the same version and publish them again"),
		newSubcommand(config.CommandRemove, "remove [config-file] build-id...",
			"Remove fully specified builds and their manifest entries"),
		clean,
		newSubcommand(config.CommandList, "list [config-file]",
			"List builds present on the hosting"),
		newSubcommand(config.CommandConfig, "config [config-file]",
			"Print the effective configuration"),
	)
}
