package publisher

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/oshokin/release-publisher/internal/config"
	"github.com/oshokin/release-publisher/internal/domain/build"
	"github.com/oshokin/release-publisher/internal/printer"
	"github.com/oshokin/release-publisher/internal/transport"
)

// List reports the builds present on the hosting.
type List struct {
	transport transport.Transport
	results   []string
}

// NewList creates the list workflow.
func NewList(t transport.Transport) *List {
	return &List{transport: t}
}

// Name implements Command.
func (l *List) Name() string {
	return config.CommandList
}

// Prepare implements Command.
func (l *List) Prepare(context.Context) error {
	return nil
}

// BeforeAction implements Command.
func (l *List) BeforeAction(context.Context) error {
	return nil
}

// Action fetches and sorts the remote builds.
func (l *List) Action(ctx context.Context) error {
	ids, err := l.transport.FetchBuildsList(ctx)
	if err != nil {
		return fmt.Errorf("fetch builds list: %w", err)
	}

	l.results = SortBuildIDs(ids)

	return nil
}

// AfterAction implements Command.
func (l *List) AfterAction(context.Context) error {
	return nil
}

// Results implements Command.
func (l *List) Results() []string {
	return l.results
}

// Report implements Reporter.
func (l *List) Report(p *printer.Printer) {
	if len(l.results) == 0 {
		p.Hint("There are no releases on the hosting.")

		return
	}

	p.Title("Releases on the hosting:")
	p.Items(l.results)
}

// SortBuildIDs returns a sorted copy of ids: by version-less id, then by semantic version.
// Versions that are not semantic sort lexically after the semantic ones.
func SortBuildIDs(ids []string) []string {
	sorted := slices.Clone(ids)

	slices.SortStableFunc(sorted, func(a, b string) int {
		left, right := build.Parse(a, build.Build{}), build.Parse(b, build.Build{})

		if byID := strings.Compare(left.ID(), right.ID()); byID != 0 {
			return byID
		}

		return compareVersions(left.Version, right.Version)
	})

	return sorted
}

// compareVersions orders semantic versions first, then the rest lexically.
func compareVersions(a, b string) int {
	left, leftErr := semver.StrictNewVersion(a)
	right, rightErr := semver.StrictNewVersion(b)

	switch {
	case leftErr == nil && rightErr == nil:
		return left.Compare(right)
	case leftErr == nil:
		return -1
	case rightErr == nil:
		return 1
	default:
		return strings.Compare(a, b)
	}
}
