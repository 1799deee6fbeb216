package strategy

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/linkhound/ingest/internal/domain/model"
)

// linkPageHosts are the aggregator hosts the linkpage strategy may fetch.
var linkPageHosts = []string{"linktr.ee", "beacons.ai"}

const linkPageMaxDepth = 3

// LinkPageOptions bundles dependencies for NewLinkPageStrategy.
type LinkPageOptions struct {
	Client *Client
	Logger *slog.Logger
}

// LinkPageStrategy extracts outbound links from link-aggregator profile
// pages (linktr.ee, beacons.ai). Aggregators render their link list from an
// embedded JSON blob, so the strategy takes that fast path first and only
// falls back to walking anchors when no blob is present.
type LinkPageStrategy struct {
	client *Client
	logger *slog.Logger
}

// NewLinkPageStrategy creates the aggregator page strategy.
func NewLinkPageStrategy(opts LinkPageOptions) *LinkPageStrategy {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &LinkPageStrategy{
		client: opts.Client,
		logger: logger.With("component", "strategy", "kind", model.JobTypeLinkPage),
	}
}

// Kind returns the job type this strategy serves.
func (s *LinkPageStrategy) Kind() Kind { return model.JobTypeLinkPage }

// MaxDepth returns the crawl depth budget for aggregator pages.
func (s *LinkPageStrategy) MaxDepth() int { return linkPageMaxDepth }

// FetchAndExtract fetches an aggregator profile page and extracts its links.
func (s *LinkPageStrategy) FetchAndExtract(ctx context.Context, in Input) (*Result, error) {
	doc, err := s.client.GetDocument(ctx, in.SourceURL, linkPageHosts)
	if err != nil {
		return nil, err
	}

	var discoveries []Discovery
	if blob := embeddedJSON(doc); blob != nil {
		discoveries = linksFromJSON(blob)
	}
	if len(discoveries) == 0 {
		discoveries = anchorsExcludingHost(doc, in.SourceURL)
	}
	discoveries = dedupeDiscoveries(discoveries)

	result := &Result{
		Candidates:   discoveries,
		Hints:        pageHints(doc),
		CrawlTargets: crawlTargetsFrom(discoveries),
	}
	if len(discoveries) == 0 {
		// A link page with no outbound links is an unexpected document
		// shape; empty aggregator profiles do exist, so log rather than fail.
		s.logger.InfoContext(ctx, "no links found on aggregator page", "url", in.SourceURL)
	}
	return result, nil
}

// embeddedJSON returns the page's embedded JSON blob: the __NEXT_DATA__
// script aggregators hydrate from, or the first JSON-LD block otherwise.
func embeddedJSON(doc *goquery.Document) []byte {
	if raw := strings.TrimSpace(doc.Find("script#__NEXT_DATA__").First().Text()); raw != "" {
		return []byte(raw)
	}
	if raw := strings.TrimSpace(doc.Find(`script[type="application/ld+json"]`).First().Text()); raw != "" {
		return []byte(raw)
	}
	return nil
}

// linksFromJSON walks an arbitrary JSON document collecting absolute https
// URLs stored under link-shaped keys. Aggregators nest their link list
// differently per page version, so the walk is structural, not positional.
func linksFromJSON(blob []byte) []Discovery {
	var doc any
	if err := json.Unmarshal(blob, &doc); err != nil {
		return nil
	}

	var out []Discovery
	walkJSON(doc, func(key, value string) {
		switch key {
		case "url", "href", "sameAs":
			if u := externalURL(value); u != "" {
				out = append(out, Discovery{URL: u})
			}
		}
	})
	return out
}

// walkJSON visits every string leaf in a decoded JSON value with its map key.
// Array elements inherit the key of the array.
func walkJSON(node any, visit func(key, value string)) {
	var walk func(key string, node any)
	walk = func(key string, node any) {
		switch v := node.(type) {
		case map[string]any:
			for k, child := range v {
				walk(k, child)
			}
		case []any:
			for _, child := range v {
				walk(key, child)
			}
		case string:
			visit(key, v)
		}
	}
	walk("", node)
}

// anchorsExcludingHost collects anchor targets that leave the source host.
// Internal navigation never yields a candidate.
func anchorsExcludingHost(doc *goquery.Document, sourceURL string) []Discovery {
	sourceHost := ""
	if u, err := url.Parse(sourceURL); err == nil {
		sourceHost = foldHost(u.Host)
	}

	var out []Discovery
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		target := externalURL(href)
		if target == "" {
			return
		}
		if u, err := url.Parse(target); err == nil && foldHost(u.Host) == sourceHost {
			return
		}
		out = append(out, Discovery{
			URL:   target,
			Label: strings.TrimSpace(sel.Text()),
		})
	})
	return out
}

// pageHints extracts profile display metadata from og meta tags.
func pageHints(doc *goquery.Document) ProfileHints {
	hints := ProfileHints{}
	if title, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok {
		hints.DisplayName = trimSiteSuffix(strings.TrimSpace(title))
	}
	if image, ok := doc.Find(`meta[property="og:image"]`).Attr("content"); ok {
		hints.AvatarURL = strings.TrimSpace(image)
	}
	return hints
}

// trimSiteSuffix drops a trailing " | <site name>" from an og:title.
func trimSiteSuffix(title string) string {
	if idx := strings.Index(title, " | "); idx > 0 {
		return title[:idx]
	}
	return title
}

// externalURL returns the trimmed URL when it is an absolute http(s) target,
// empty otherwise. Relative paths, fragments, and mailto links never become
// candidates.
func externalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "https://") && !strings.HasPrefix(raw, "http://") {
		return ""
	}
	if _, err := url.Parse(raw); err != nil {
		return ""
	}
	return raw
}
