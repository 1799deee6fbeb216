package strategy

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"

	"github.com/linkhound/ingest/internal/domain/model"
	apperrors "github.com/linkhound/ingest/internal/errors"
)

// dropPageHosts are the drop-page hosts the droppage strategy may fetch.
var dropPageHosts = []string{"laylo.com", "api.laylo.com"}

const dropPageMaxDepth = 1

// Default extraction expressions for drop-page JSON documents. The document
// shape varies by page version; each expression is evaluated independently
// and misses are fine.
var defaultDropPageExpressions = []string{
	"user.socials[].url",
	"drops[].links[].url",
	"links[].url",
}

const (
	defaultDisplayNameExpr = "user.displayName"
	defaultAvatarURLExpr   = "user.avatarUrl"
)

// dropPageOverrides is the strategyOptions shape the droppage strategy
// accepts from a job payload.
type dropPageOverrides struct {
	// Expressions replaces the default link extraction expressions.
	Expressions []string `json:"expressions,omitempty"`
	// DisplayNameExpr overrides where the owner's display name is read from.
	DisplayNameExpr string `json:"displayNameExpr,omitempty"`
	// AvatarURLExpr overrides where the owner's avatar URL is read from.
	AvatarURLExpr string `json:"avatarUrlExpr,omitempty"`
}

// DropPageOptions bundles dependencies for NewDropPageStrategy.
type DropPageOptions struct {
	Client *Client
	Logger *slog.Logger
}

// DropPageStrategy extracts links from drop-page JSON documents (laylo.com).
// Drop pages serve structured JSON rather than HTML, so extraction is a set
// of JMESPath expressions over the decoded document.
type DropPageStrategy struct {
	client *Client
	logger *slog.Logger
}

// NewDropPageStrategy creates the drop-page JSON strategy.
func NewDropPageStrategy(opts DropPageOptions) *DropPageStrategy {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &DropPageStrategy{
		client: opts.Client,
		logger: logger.With("component", "strategy", "kind", model.JobTypeDropPage),
	}
}

// Kind returns the job type this strategy serves.
func (s *DropPageStrategy) Kind() Kind { return model.JobTypeDropPage }

// MaxDepth returns the crawl depth budget for drop pages.
func (s *DropPageStrategy) MaxDepth() int { return dropPageMaxDepth }

// FetchAndExtract fetches a drop page's JSON document and extracts its links.
func (s *DropPageStrategy) FetchAndExtract(ctx context.Context, in Input) (*Result, error) {
	overrides, err := decodeDropPageOverrides(in.Options)
	if err != nil {
		return nil, err
	}

	doc, err := s.client.GetJSON(ctx, in.SourceURL, dropPageHosts)
	if err != nil {
		return nil, err
	}

	var discoveries []Discovery
	for _, expr := range overrides.expressions() {
		values, err := searchStrings(expr, doc)
		if err != nil {
			return nil, apperrors.Contentf("evaluate expression %q on %q: %v", expr, in.SourceURL, err)
		}
		for _, v := range values {
			if u := externalURL(v); u != "" {
				discoveries = append(discoveries, Discovery{URL: u})
			}
		}
	}
	discoveries = dedupeDiscoveries(discoveries)

	hints := ProfileHints{}
	if name, err := searchString(overrides.displayNameExpr(), doc); err == nil {
		hints.DisplayName = name
	}
	if avatar, err := searchString(overrides.avatarURLExpr(), doc); err == nil {
		hints.AvatarURL = avatar
	}

	return &Result{
		Candidates:   discoveries,
		Hints:        hints,
		CrawlTargets: crawlTargetsFrom(discoveries),
	}, nil
}

func decodeDropPageOverrides(raw json.RawMessage) (*dropPageOverrides, error) {
	overrides := &dropPageOverrides{}
	if len(raw) == 0 {
		return overrides, nil
	}
	if err := json.Unmarshal(raw, overrides); err != nil {
		return nil, apperrors.Contentf("decode strategy options: %v", err)
	}
	for _, expr := range overrides.Expressions {
		if _, err := jmespath.Compile(expr); err != nil {
			return nil, apperrors.Contentf("invalid extraction expression %q: %v", expr, err)
		}
	}
	return overrides, nil
}

func (o *dropPageOverrides) expressions() []string {
	if len(o.Expressions) > 0 {
		return o.Expressions
	}
	return defaultDropPageExpressions
}

func (o *dropPageOverrides) displayNameExpr() string {
	if strings.TrimSpace(o.DisplayNameExpr) != "" {
		return o.DisplayNameExpr
	}
	return defaultDisplayNameExpr
}

func (o *dropPageOverrides) avatarURLExpr() string {
	if strings.TrimSpace(o.AvatarURLExpr) != "" {
		return o.AvatarURLExpr
	}
	return defaultAvatarURLExpr
}

// searchStrings evaluates a JMESPath expression and flattens the result into
// its string values. A miss (nil result) is an empty slice, not an error.
func searchStrings(expr string, doc any) ([]string, error) {
	result, err := jmespath.Search(expr, doc)
	if err != nil {
		return nil, err
	}
	switch v := result.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{v}, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out, nil
	default:
		return nil, nil
	}
}

// searchString evaluates a JMESPath expression expecting one string value.
func searchString(expr string, doc any) (string, error) {
	result, err := jmespath.Search(expr, doc)
	if err != nil {
		return "", err
	}
	if str, ok := result.(string); ok {
		return strings.TrimSpace(str), nil
	}
	return "", nil
}
