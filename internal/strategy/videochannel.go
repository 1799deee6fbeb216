package strategy

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/linkhound/ingest/internal/domain/model"
)

// videoChannelHosts are the hosts the videochannel strategy may fetch.
var videoChannelHosts = []string{"youtube.com"}

const videoChannelMaxDepth = 1

// VideoChannelOptions bundles dependencies for NewVideoChannelStrategy.
type VideoChannelOptions struct {
	Client *Client
	Logger *slog.Logger
}

// VideoChannelStrategy extracts outbound links from a video channel's about
// page. Channel pages wrap external links in an on-host redirect endpoint,
// so anchors pointing at /redirect are unwrapped to their real target.
type VideoChannelStrategy struct {
	client *Client
	logger *slog.Logger
}

// NewVideoChannelStrategy creates the video channel about-page strategy.
func NewVideoChannelStrategy(opts VideoChannelOptions) *VideoChannelStrategy {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &VideoChannelStrategy{
		client: opts.Client,
		logger: logger.With("component", "strategy", "kind", model.JobTypeVideoChannel),
	}
}

// Kind returns the job type this strategy serves.
func (s *VideoChannelStrategy) Kind() Kind { return model.JobTypeVideoChannel }

// MaxDepth returns the crawl depth budget for channel pages.
func (s *VideoChannelStrategy) MaxDepth() int { return videoChannelMaxDepth }

// FetchAndExtract fetches a channel about page and extracts its links.
func (s *VideoChannelStrategy) FetchAndExtract(ctx context.Context, in Input) (*Result, error) {
	doc, err := s.client.GetDocument(ctx, in.SourceURL, videoChannelHosts)
	if err != nil {
		return nil, err
	}

	var discoveries []Discovery
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		target := channelLinkTarget(href)
		if target == "" {
			return
		}
		discoveries = append(discoveries, Discovery{
			URL:   target,
			Label: strings.TrimSpace(sel.Text()),
		})
	})
	discoveries = dedupeDiscoveries(discoveries)

	return &Result{
		Candidates:   discoveries,
		Hints:        pageHints(doc),
		CrawlTargets: crawlTargetsFrom(discoveries),
	}, nil
}

// channelLinkTarget resolves an anchor target to the external URL it points
// at. On-host redirect wrappers are unwrapped via their q parameter; other
// on-host anchors are channel navigation and yield nothing.
func channelLinkTarget(href string) string {
	raw := externalURL(href)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if foldHost(u.Host) != "youtube.com" {
		return raw
	}
	if u.Path != "/redirect" {
		return ""
	}
	return externalURL(u.Query().Get("q"))
}
