package publisher

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/oshokin/release-publisher/internal/config"
	"github.com/oshokin/release-publisher/internal/domain/build"
	"github.com/oshokin/release-publisher/internal/domain/manifest"
	"github.com/oshokin/release-publisher/internal/logger"
	"github.com/oshokin/release-publisher/internal/transport"
)

// minExceptionLength drops exceptions short enough to match almost any build.
const minExceptionLength = 3

// referencedBuildRegex finds build ids such as "linux-x64-prod-v1.2.3-beta" inside manifest values.
var referencedBuildRegex = regexp.MustCompile(`((\w+-){1,3}v?\d+\.\d+\.\d+(-\w+)?)`)

// Clean removes every remote build that no manifest references and no exception protects.
type Clean struct {
	transport transport.Transport
	defaults  build.Build
	except    []string
	results   []string
}

// NewClean creates the clean workflow. defaults select the primary manifest.
func NewClean(t transport.Transport, defaults build.Build, except []string) *Clean {
	return &Clean{
		transport: t,
		defaults:  defaults,
		except:    except,
	}
}

// Name implements Command.
func (c *Clean) Name() string {
	return config.CommandClean
}

// Prepare implements Command.
func (c *Clean) Prepare(context.Context) error {
	return nil
}

// BeforeAction implements Command.
func (c *Clean) BeforeAction(ctx context.Context) error {
	if err := c.transport.BeforeRemove(ctx); err != nil {
		return fmt.Errorf("before remove: %w", err)
	}

	return nil
}

// Action removes the unreferenced builds. Nothing is removed when a manifest is unavailable.
func (c *Clean) Action(ctx context.Context) error {
	var (
		seen = make(map[string]struct{})
		keys []string
	)

	keys, ok := c.collectKeys(ctx, c.defaults, seen, keys)
	if !ok {
		return nil
	}

	listed, err := c.transport.FetchBuildsList(ctx)
	if err != nil {
		return fmt.Errorf("fetch builds list: %w", err)
	}

	for _, id := range listed {
		if keys, ok = c.collectKeys(ctx, build.Parse(id, build.Build{}), seen, keys); !ok {
			return nil
		}
	}

	for _, id := range FilterExceptions(listed, append(keys, c.except...)) {
		if err = c.transport.RemoveResource(ctx, id); err != nil {
			return fmt.Errorf("remove %s: %w", id, err)
		}

		logger.InfoKV(ctx, "Build removed", "build", id)

		c.results = append(c.results, id)
	}

	return nil
}

// AfterAction implements Command.
func (c *Clean) AfterAction(ctx context.Context) error {
	if err := c.transport.AfterRemove(ctx); err != nil {
		return fmt.Errorf("after remove: %w", err)
	}

	return nil
}

// Results returns the removed builds.
func (c *Clean) Results() []string {
	return c.results
}

// collectKeys adds the build ids referenced by the manifest of b unless its URL was already read.
// It reports false when the manifest is unavailable.
func (c *Clean) collectKeys(
	ctx context.Context,
	b build.Build,
	seen map[string]struct{},
	keys []string,
) ([]string, bool) {
	url := c.transport.MetaFileURL(b)
	if _, ok := seen[url]; ok {
		return keys, true
	}

	seen[url] = struct{}{}

	result := c.transport.FetchMetaFile(ctx, b)
	if !result.IsFound() {
		logger.WarnKV(ctx, "Can't clean because the manifest is not available",
			"url", url,
			"status", result.Status().String())

		return keys, false
	}

	return append(keys, ExtractKeys(result.Manifest())...), true
}

// ExtractKeys returns the distinct build ids mentioned in the string values of m.
// Only the first id of every value counts.
func ExtractKeys(m *manifest.Manifest) []string {
	var keys []string

	for _, value := range m.StringValues() {
		match := referencedBuildRegex.FindString(value)
		if match != "" && !slices.Contains(keys, match) {
			keys = append(keys, match)
		}
	}

	return keys
}

// FilterExceptions returns the ids that contain none of the exceptions.
// Exceptions shorter than three characters are ignored.
func FilterExceptions(ids, exceptions []string) []string {
	valid := make([]string, 0, len(exceptions))

	for _, exception := range exceptions {
		if len(exception) >= minExceptionLength {
			valid = append(valid, exception)
		}
	}

	result := make([]string, 0, len(ids))

	for _, id := range ids {
		protected := slices.ContainsFunc(valid, func(exception string) bool {
			return strings.Contains(id, exception)
		})

		if !protected {
			result = append(result, id)
		}
	}

	return result
}
