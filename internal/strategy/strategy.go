// Package strategy implements the per-platform extraction strategies that
// turn a fetched source page into discovered links and profile hints. Each
// job type dispatches to exactly one strategy; all network access goes
// through the shared guarded Client.
package strategy

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/linkhound/ingest/internal/domain/model"
)

// Kind identifies an extraction strategy. Kinds are the job types the queue
// dispatches on, so registering a strategy makes its job type runnable.
type Kind = model.JobType

// Input is what a claimed job hands to its strategy.
type Input struct {
	// SourceURL is the page to fetch. The enqueuer canonicalized it, so it
	// is https with a folded host.
	SourceURL string
	// Handle is the profile handle extracted from the source URL, if the
	// URL addresses a profile.
	Handle string
	// Options carries the job payload's raw strategyOptions field. Each
	// strategy decodes its own option shape; nil means defaults.
	Options json.RawMessage
}

// Discovery is one outbound link found on the page, raw as written in the
// document. Platform detection and canonicalization happen downstream.
type Discovery struct {
	// URL is the link target as found.
	URL string
	// Label is nearby text naming the link, when the markup provides one.
	Label string
}

// ProfileHints is display metadata the page exposes about its owner.
type ProfileHints struct {
	DisplayName string
	AvatarURL   string
}

// Result is a strategy's extraction output.
type Result struct {
	// Candidates are the outbound links found on the page.
	Candidates []Discovery
	// Hints is the profile metadata found alongside the links.
	Hints ProfileHints
	// CrawlTargets are URLs the strategy nominates for follow-up ingestion.
	// The crawl planner filters them by detector match and depth budget.
	CrawlTargets []string
}

// Strategy extracts links from one class of source page.
type Strategy interface {
	// Kind is the job type this strategy serves.
	Kind() Kind
	// MaxDepth is the deepest crawl depth at which this strategy's pages
	// may still spawn follow-up jobs.
	MaxDepth() int
	// FetchAndExtract fetches the source page and extracts its links.
	FetchAndExtract(ctx context.Context, in Input) (*Result, error)
}

// Registry maps job types to their strategies.
type Registry struct {
	byKind map[Kind]Strategy
}

// NewRegistry builds a registry from the given strategies. Registering two
// strategies for the same kind is a wiring bug and returns an error.
func NewRegistry(strategies ...Strategy) (*Registry, error) {
	r := &Registry{byKind: make(map[Kind]Strategy, len(strategies))}
	for _, s := range strategies {
		if _, dup := r.byKind[s.Kind()]; dup {
			return nil, fmt.Errorf("duplicate strategy for kind %q", s.Kind())
		}
		r.byKind[s.Kind()] = s
	}
	return r, nil
}

// DefaultRegistry wires the three built-in strategies over the given client.
func DefaultRegistry(client *Client) *Registry {
	r, err := NewRegistry(
		NewLinkPageStrategy(LinkPageOptions{Client: client}),
		NewDropPageStrategy(DropPageOptions{Client: client}),
		NewVideoChannelStrategy(VideoChannelOptions{Client: client}),
	)
	if err != nil {
		// The three built-ins have distinct kinds; this cannot happen.
		panic(err)
	}
	return r
}

// Get returns the strategy for a kind.
func (r *Registry) Get(kind Kind) (Strategy, bool) {
	s, ok := r.byKind[kind]
	return s, ok
}

// Kinds lists the registered kinds in stable order.
func (r *Registry) Kinds() []Kind {
	kinds := make([]Kind, 0, len(r.byKind))
	for k := range r.byKind {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// dedupeDiscoveries drops repeated URLs, keeping the first occurrence so a
// labeled discovery beats a later bare one.
func dedupeDiscoveries(in []Discovery) []Discovery {
	seen := make(map[string]struct{}, len(in))
	out := make([]Discovery, 0, len(in))
	for _, d := range in {
		if d.URL == "" {
			continue
		}
		if _, dup := seen[d.URL]; dup {
			continue
		}
		seen[d.URL] = struct{}{}
		out = append(out, d)
	}
	return out
}

// crawlTargetsFrom lists the discovery URLs in order.
func crawlTargetsFrom(discoveries []Discovery) []string {
	targets := make([]string, 0, len(discoveries))
	for _, d := range discoveries {
		targets = append(targets, d.URL)
	}
	return targets
}
