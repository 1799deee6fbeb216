package strategy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"

	"github.com/linkhound/ingest/internal/core"
	apperrors "github.com/linkhound/ingest/internal/errors"
)

const (
	defaultUserAgent    = "linkhound/1.0 (+https://github.com/linkhound/ingest)"
	defaultTimeout      = 15 * time.Second
	defaultMaxBodyBytes = 2 << 20 // 2 MiB
	maxRedirects        = 5
)

// ClientConfig holds configuration for the strategy HTTP client.
type ClientConfig struct {
	// Timeout bounds one fetch including redirects and body read.
	Timeout time.Duration `env:"STRATEGY_HTTP_TIMEOUT" envDefault:"15s"`

	// MaxBodyBytes caps the response body. Larger responses are a policy
	// error, not a truncated parse.
	MaxBodyBytes int64 `env:"STRATEGY_MAX_BODY_BYTES" envDefault:"2097152"`

	// UserAgent is sent on every request.
	UserAgent string `env:"STRATEGY_USER_AGENT"`
}

// Sanitize applies guardrails to client configuration values.
func (c *ClientConfig) Sanitize() {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = defaultMaxBodyBytes
	}
	if strings.TrimSpace(c.UserAgent) == "" {
		c.UserAgent = defaultUserAgent
	}
}

// ClientOptions bundles dependencies for NewClient.
type ClientOptions struct {
	Config ClientConfig
	// Cache is an optional page body cache consulted before fetching.
	Cache *core.PageCacheService
	// Transport overrides the HTTP transport, mainly for tests.
	Transport http.RoundTripper
	Logger    *slog.Logger
}

// Client is the guarded HTTP client every strategy fetches through. It only
// speaks HTTPS to allowlisted hosts, follows redirects only inside the
// allowlist, and caps response bodies.
type Client struct {
	cfg       ClientConfig
	transport http.RoundTripper
	cache     *core.PageCacheService
	logger    *slog.Logger
}

// NewClient creates a strategy HTTP client.
func NewClient(opts ClientOptions) *Client {
	cfg := opts.Config
	cfg.Sanitize()

	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		cfg:       cfg,
		transport: transport,
		cache:     opts.Cache,
		logger:    logger.With("component", "strategy_client"),
	}
}

// Get fetches rawURL and returns the response body. The URL and every
// redirect hop must be HTTPS and land on an allowlisted host.
func (c *Client) Get(ctx context.Context, rawURL string, allowedHosts []string) ([]byte, error) {
	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, apperrors.Contentf("parse source url %q: %v", rawURL, err)
	}

	allowed := hostSet(allowedHosts)
	if err := checkTarget(target, allowed); err != nil {
		return nil, err
	}

	if cached, err := c.cache.GetPage(ctx, rawURL); err != nil {
		c.logger.WarnContext(ctx, "page cache read failed", "url", rawURL, "error", err)
	} else if cached != nil {
		return cached, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, apperrors.Contentf("build request for %q: %v", rawURL, err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/json;q=0.9,*/*;q=0.8")

	hc := &http.Client{
		Transport: c.transport,
		Timeout:   c.cfg.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return apperrors.Policyf("more than %d redirects from %q", maxRedirects, rawURL)
			}
			return checkTarget(req.URL, allowed)
		},
	}

	resp, err := hc.Do(req)
	if err != nil {
		// CheckRedirect failures come back wrapped in *url.Error; surface
		// the policy error instead of classifying it as transport.
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, apperrors.Retryablef("fetch %q: %v", rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := classifyStatus(resp.StatusCode, rawURL); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxBodyBytes+1))
	if err != nil {
		return nil, apperrors.Retryablef("read body of %q: %v", rawURL, err)
	}
	if int64(len(body)) > c.cfg.MaxBodyBytes {
		return nil, apperrors.Policyf("response from %q exceeds %d bytes", rawURL, c.cfg.MaxBodyBytes)
	}

	if err := c.cache.PutPage(ctx, rawURL, body); err != nil {
		c.logger.WarnContext(ctx, "page cache write failed", "url", rawURL, "error", err)
	}

	return body, nil
}

// classifyStatus maps an HTTP status to the ingestion error taxonomy.
func classifyStatus(status int, rawURL string) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusTooManyRequests || status >= 500:
		return apperrors.Retryablef("fetch %q: upstream status %d", rawURL, status)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return apperrors.Policyf("fetch %q: access refused with status %d", rawURL, status)
	default:
		return apperrors.Contentf("fetch %q: unexpected status %d", rawURL, status)
	}
}

// checkTarget enforces the HTTPS-only, allowlisted-host fetch policy on a
// URL. Applied to the initial target and to every redirect hop.
func checkTarget(u *url.URL, allowed map[string]struct{}) error {
	if u.Scheme != "https" {
		return apperrors.Policyf("refusing non-https url %q", u.String())
	}
	host := foldHost(u.Host)
	if _, ok := allowed[host]; !ok {
		return apperrors.Policyf("host %q is not allowlisted", host)
	}
	return nil
}

func hostSet(hosts []string) map[string]struct{} {
	set := make(map[string]struct{}, len(hosts))
	for _, h := range hosts {
		set[foldHost(h)] = struct{}{}
	}
	return set
}

// foldHost lowercases a host, drops any port, and strips the www prefix so
// the allowlist matches how the detector canonicalizes hosts.
func foldHost(host string) string {
	host = strings.ToLower(host)
	if h, _, ok := strings.Cut(host, ":"); ok {
		host = h
	}
	return strings.TrimPrefix(host, "www.")
}

// GetDocument fetches rawURL and parses the body as HTML. The body is routed
// through charset detection first: the long tail of link hosts still serves
// legacy encodings, and goquery expects UTF-8 input.
func (c *Client) GetDocument(ctx context.Context, rawURL string, allowedHosts []string) (*goquery.Document, error) {
	body, err := c.Get(ctx, rawURL, allowedHosts)
	if err != nil {
		return nil, err
	}
	utf8Body, err := charset.NewReader(bytes.NewReader(body), "")
	if err != nil {
		return nil, apperrors.Contentf("detect charset of %q: %v", rawURL, err)
	}
	doc, err := goquery.NewDocumentFromReader(utf8Body)
	if err != nil {
		return nil, apperrors.Contentf("parse html from %q: %v", rawURL, err)
	}
	return doc, nil
}

// GetJSON fetches rawURL and decodes the body as JSON into a generic value.
func (c *Client) GetJSON(ctx context.Context, rawURL string, allowedHosts []string) (any, error) {
	body, err := c.Get(ctx, rawURL, allowedHosts)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, apperrors.Contentf("empty body from %q", rawURL)
	}
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, apperrors.Contentf("decode json from %q: %v", rawURL, err)
	}
	return doc, nil
}
