package backends

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/release-publisher/internal/config"
	"github.com/oshokin/release-publisher/internal/transport"
	"github.com/oshokin/release-publisher/internal/transport/memory"
)

// TestNames verifies every built-in backend is registered.
func TestNames(t *testing.T) {
	t.Parallel()

	require.Equal(t, []string{"github", "local", "memory", "minio", "s3", "ssh"}, Default().Names())
}

// TestNew covers successful creation and the configuration errors of the registry.
func TestNew(t *testing.T) {
	t.Parallel()

	cfg := config.Default()

	_, err := New(cfg)
	require.ErrorIs(t, err, config.ErrTransportNotSet)

	cfg.Transport.Module = "ftp"
	_, err = New(cfg)
	require.ErrorIs(t, err, ErrUnknownTransport)

	cfg.Transport.Module = "local"
	_, err = New(cfg)
	require.ErrorIs(t, err, transport.ErrMissingOption)

	cfg.Transport.Module = memory.Name
	tr, err := New(cfg)
	require.NoError(t, err)
	require.IsType(t, &memory.Transport{}, tr)
}

// TestCustomRegistry verifies that callers can register their own factories.
func TestCustomRegistry(t *testing.T) {
	t.Parallel()

	registry := Registry{
		"dry": func(cfg *config.Config) (transport.Transport, error) { return memory.New(cfg) },
	}

	cfg := config.Default()
	cfg.Transport.Module = "dry"

	_, err := registry.New(cfg)
	require.NoError(t, err)
}
