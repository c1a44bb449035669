package cmd

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/release-publisher/internal/config"
)

// TestApplyFlags checks that command-line values override the loaded configuration.
//
//nolint:paralleltest // Mutates the package-level flag values.
func TestApplyFlags(t *testing.T) {
	saved := options
	t.Cleanup(func() {
		options = saved
	})

	options = flags{
		transport:        "s3",
		appVersion:       "v2.0.0",
		fields:           map[string]string{"notes": "hotfix"},
		transportOptions: map[string]string{"bucket": "releases", "forcePathStyle": "true"},
		except:           []string{"linux-x64-prod-1.0.0"},
	}

	cfg := config.Default()
	cfg.Channel = "beta"

	require.NoError(t, applyFlags(cfg, []string{"linux-x64", "win32-x64"}))
	require.Equal(t, "s3", cfg.Transport.Module)
	require.Equal(t, "releases", cfg.Transport.Bucket)
	require.True(t, cfg.Transport.ForcePathStyle)
	require.Equal(t, "v2.0.0", cfg.Version)
	require.Equal(t, "beta", cfg.Channel)
	require.Equal(t, "hotfix", cfg.Fields["notes"])
	require.Equal(t, []string{"linux-x64-prod-1.0.0"}, cfg.Except)
	require.Equal(t, []string{"linux-x64", "win32-x64"}, cfg.Builds)
	require.True(t, cfg.NoProgress)

	options.transportOptions = map[string]string{"unknown": "value"}
	require.Error(t, applyFlags(config.Default(), nil))
}
