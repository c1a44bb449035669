package publisher

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/oshokin/release-publisher/internal/config"
	"github.com/oshokin/release-publisher/internal/domain/build"
	"github.com/oshokin/release-publisher/internal/domain/manifest"
	"github.com/oshokin/release-publisher/internal/logger"
	"github.com/oshokin/release-publisher/internal/service/synchronizer"
	"github.com/oshokin/release-publisher/internal/transport"
)

// Remove deletes remote builds and their manifest entries.
type Remove struct {
	transport transport.Transport
	builds    []build.Build
	sync      *synchronizer.Synchronizer
	results   []string
}

// NewRemove creates the remove workflow. Builds must be parsed without defaults.
func NewRemove(t transport.Transport, builds []build.Build) *Remove {
	return &Remove{
		transport: t,
		builds:    builds,
		sync:      synchronizer.New(t, deleteEntry),
	}
}

// Name implements Command.
func (r *Remove) Name() string {
	return config.CommandRemove
}

// Prepare rejects the whole list when any build is incomplete, naming every offending build.
func (r *Remove) Prepare(context.Context) error {
	return ValidateBuilds(r.builds)
}

// BeforeAction implements Command.
func (r *Remove) BeforeAction(ctx context.Context) error {
	if err := r.transport.BeforeRemove(ctx); err != nil {
		return fmt.Errorf("before remove: %w", err)
	}

	return nil
}

// Action removes every build and registers its manifest mutation.
func (r *Remove) Action(ctx context.Context) error {
	for _, b := range r.builds {
		id := b.IDWithVersion()

		if err := r.transport.RemoveResource(ctx, id); err != nil {
			return fmt.Errorf("remove %s: %w", id, err)
		}

		logger.InfoKV(ctx, "Build removed", "build", id)

		r.sync.Add(b, nil)
	}

	return nil
}

// AfterAction flushes the manifests.
func (r *Remove) AfterAction(ctx context.Context) error {
	results, err := r.sync.Flush(ctx)
	r.results = append(r.results, results...)

	if err != nil {
		return err
	}

	if err = r.transport.AfterRemove(ctx); err != nil {
		return fmt.Errorf("after remove: %w", err)
	}

	return nil
}

// Results implements Command.
func (r *Remove) Results() []string {
	return r.results
}

// ValidateBuilds returns one error per build without a complete specification.
func ValidateBuilds(builds []build.Build) error {
	var err error

	for _, b := range builds {
		err = multierr.Append(err, b.Validate())
	}

	return err
}

// deleteEntry drops the entry of b when it still describes b's version.
func deleteEntry(m *manifest.Manifest, b build.Build, _ manifest.Entry) (*manifest.Manifest, error) {
	if !m.Has(b.ID()) || m.Version(b.ID()) != b.Version {
		return m, nil
	}

	return m.Without(b.ID())
}
