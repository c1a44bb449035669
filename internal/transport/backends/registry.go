package backends

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/oshokin/release-publisher/internal/config"
	"github.com/oshokin/release-publisher/internal/transport"
	"github.com/oshokin/release-publisher/internal/transport/github"
	"github.com/oshokin/release-publisher/internal/transport/local"
	"github.com/oshokin/release-publisher/internal/transport/memory"
	"github.com/oshokin/release-publisher/internal/transport/minio"
	"github.com/oshokin/release-publisher/internal/transport/s3"
	"github.com/oshokin/release-publisher/internal/transport/ssh"
)

// Factory creates a transport from the configuration.
type Factory func(cfg *config.Config) (transport.Transport, error)

// ErrUnknownTransport is returned for a module name without a registered factory.
var ErrUnknownTransport = errors.New("unknown transport module")

// Registry maps module names to factories.
type Registry map[string]Factory

// Default returns the registry of every built-in backend.
func Default() Registry {
	return Registry{
		github.Name: func(cfg *config.Config) (transport.Transport, error) { return github.New(cfg) },
		local.Name:  func(cfg *config.Config) (transport.Transport, error) { return local.New(cfg) },
		memory.Name: func(cfg *config.Config) (transport.Transport, error) { return memory.New(cfg) },
		minio.Name:  func(cfg *config.Config) (transport.Transport, error) { return minio.New(cfg) },
		s3.Name:     func(cfg *config.Config) (transport.Transport, error) { return s3.New(cfg) },
		ssh.Name:    func(cfg *config.Config) (transport.Transport, error) { return ssh.New(cfg) },
	}
}

// New creates the transport selected by cfg.Transport.Module.
func (r Registry) New(cfg *config.Config) (transport.Transport, error) {
	module := cfg.Transport.Module
	if module == "" {
		return nil, config.ErrTransportNotSet
	}

	factory, ok := r[module]
	if !ok {
		return nil, fmt.Errorf("%w %q, available: %s", ErrUnknownTransport, module, strings.Join(r.Names(), ", "))
	}

	t, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("configure %s transport: %w", module, err)
	}

	return t, nil
}

// Names returns the registered module names in alphabetical order.
func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

// New creates the transport selected by cfg using the built-in backends.
func New(cfg *config.Config) (transport.Transport, error) {
	return Default().New(cfg)
}
