package synchronizer

import (
	"context"
	"fmt"

	"github.com/oshokin/release-publisher/internal/domain/build"
	"github.com/oshokin/release-publisher/internal/domain/manifest"
	"github.com/oshokin/release-publisher/internal/logger"
	"github.com/oshokin/release-publisher/internal/transport"
)

// Transport is the part of transport.Transport the synchronizer needs.
type Transport interface {
	MetaFileURL(b build.Build) string
	FetchMetaFile(ctx context.Context, b build.Build) manifest.FetchResult
	PushMetaFile(ctx context.Context, m *manifest.Manifest, b build.Build) (string, error)
}

// MergeFunc applies the mutation of one build to a manifest and returns the next manifest.
type MergeFunc func(m *manifest.Manifest, b build.Build, payload manifest.Entry) (*manifest.Manifest, error)

// pending is a registered mutation.
type pending struct {
	build   build.Build
	payload manifest.Entry
}

// group holds the mutations that target one manifest URL.
type group struct {
	url   string
	items []pending
}

// Synchronizer accumulates mutations until Flush.
type Synchronizer struct {
	transport Transport
	merge     MergeFunc
	pending   []pending
}

// New creates a synchronizer applying merge through t.
func New(t Transport, merge MergeFunc) *Synchronizer {
	return &Synchronizer{
		transport: t,
		merge:     merge,
	}
}

// Add registers the mutation of build b.
func (s *Synchronizer) Add(b build.Build, payload manifest.Entry) {
	s.pending = append(s.pending, pending{build: b, payload: payload})
}

// Len returns the number of registered mutations.
func (s *Synchronizer) Len() int {
	return len(s.pending)
}

// Flush fetches, merges and pushes every affected manifest and returns the
// versioned ids of the merged builds. Registered mutations are cleared.
func (s *Synchronizer) Flush(ctx context.Context) ([]string, error) {
	groups := s.groups()
	s.pending = nil

	results := make([]string, 0, len(groups))

	for _, g := range groups {
		ids, err := s.flushGroup(ctx, g)
		results = append(results, ids...)

		if err != nil {
			return results, err
		}
	}

	return results, nil
}

// flushGroup runs one fetch, the merges and one push for a manifest URL.
func (s *Synchronizer) flushGroup(ctx context.Context, g group) ([]string, error) {
	var (
		first  = g.items[0].build
		result = s.transport.FetchMetaFile(ctx, first)
		m      = result.Manifest()
		ids    = make([]string, 0, len(g.items))
	)

	transport.WarnUnavailable(ctx, g.url, result)

	for _, item := range g.items {
		next, err := s.merge(m, item.build, item.payload)
		if err != nil {
			return nil, fmt.Errorf("update manifest %s for %s: %w", g.url, item.build, err)
		}

		m = next
		ids = append(ids, item.build.IDWithVersion())
	}

	url, err := s.transport.PushMetaFile(ctx, m, first)
	if err != nil {
		return nil, fmt.Errorf("push manifest %s: %w", g.url, err)
	}

	logger.InfoKV(ctx, "Manifest updated", "url", url, "builds", len(g.items))

	return ids, nil
}

// groups splits pending mutations by manifest URL in first-seen order.
func (s *Synchronizer) groups() []group {
	var (
		groups []group
		index  = make(map[string]int)
	)

	for _, item := range s.pending {
		url := s.transport.MetaFileURL(item.build)

		i, ok := index[url]
		if !ok {
			i = len(groups)
			index[url] = i
			groups = append(groups, group{url: url})
		}

		groups[i].items = append(groups[i].items, item)
	}

	return groups
}
