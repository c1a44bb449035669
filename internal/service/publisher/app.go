package publisher

import (
	"context"
	"errors"
	"fmt"

	"github.com/oshokin/release-publisher/internal/config"
	"github.com/oshokin/release-publisher/internal/domain/build"
	"github.com/oshokin/release-publisher/internal/printer"
	"github.com/oshokin/release-publisher/internal/service/assets"
	"github.com/oshokin/release-publisher/internal/transport"
	"github.com/oshokin/release-publisher/internal/transport/backends"
)

// ErrUnknownCommand is returned for a command name without a workflow.
var ErrUnknownCommand = errors.New("unknown command")

// Execute validates cfg, creates the configured transport and runs the named command.
func Execute(ctx context.Context, cfg *config.Config, name string, p *printer.Printer) error {
	if err := config.Validate(cfg, name); err != nil {
		return err
	}

	t, err := backends.New(cfg)
	if err != nil {
		return err
	}

	cmd, err := NewCommand(name, cfg, t)
	if err != nil {
		return err
	}

	return Run(ctx, cmd, t, p)
}

// NewCommand creates the workflow called name over t.
func NewCommand(name string, cfg *config.Config, t transport.Transport) (Command, error) {
	switch name {
	case config.CommandPublish, config.CommandReplace:
		resolver, err := assets.NewOSResolver(cfg.DistPath, assets.Vars{
			Name:        cfg.AppName,
			ProductName: cfg.ProductName,
			Version:     cfg.Version,
		}, cfg.BuildDefaults())
		if err != nil {
			return nil, err
		}

		publish := NewPublish(t, resolver, PublishOptions{
			Builds:   cfg.Builds,
			Fields:   cfg.Fields,
			Progress: !cfg.NoProgress,
		})

		if name == config.CommandReplace {
			return NewReplace(publish), nil
		}

		return publish, nil
	case config.CommandRemove:
		return NewRemove(t, build.ParseMany(cfg.Builds, build.Build{})), nil
	case config.CommandClean:
		return NewClean(t, cfg.BuildDefaults(), cfg.Except), nil
	case config.CommandList:
		return NewList(t), nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownCommand, name)
	}
}
