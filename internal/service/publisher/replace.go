package publisher

import (
	"context"
	"fmt"

	"github.com/oshokin/release-publisher/internal/config"
)

// Replace removes the builds that publish resolves and publishes them again in one session.
type Replace struct {
	publish *Publish
	remove  *Remove
}

// NewReplace creates the replace workflow.
func NewReplace(publish *Publish) *Replace {
	return &Replace{
		publish: publish,
		remove:  NewRemove(publish.transport, nil),
	}
}

// Name implements Command.
func (r *Replace) Name() string {
	return config.CommandReplace
}

// Prepare resolves the builds to publish and validates them for removal.
func (r *Replace) Prepare(ctx context.Context) error {
	if err := r.publish.Prepare(ctx); err != nil {
		return err
	}

	r.remove.builds = r.publish.Builds()

	return r.remove.Prepare(ctx)
}

// BeforeAction runs the upload and removal hooks.
func (r *Replace) BeforeAction(ctx context.Context) error {
	if err := r.publish.BeforeAction(ctx); err != nil {
		return err
	}

	return r.remove.BeforeAction(ctx)
}

// Action removes the builds, then publishes them.
// The manifest entries written by publish supersede the removal, so only the publish manifests are flushed.
func (r *Replace) Action(ctx context.Context) error {
	if err := r.remove.Action(ctx); err != nil {
		return err
	}

	return r.publish.Action(ctx)
}

// AfterAction closes the removal and flushes the published manifests.
func (r *Replace) AfterAction(ctx context.Context) error {
	if err := r.publish.transport.AfterRemove(ctx); err != nil {
		return fmt.Errorf("after remove: %w", err)
	}

	return r.publish.AfterAction(ctx)
}

// Results returns the published builds.
func (r *Replace) Results() []string {
	return r.publish.Results()
}
