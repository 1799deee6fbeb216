package platform

import (
	"fmt"
	"net/url"
	"strings"
)

// trackingParams are query parameters that only carry attribution state and
// never change what a URL addresses. They are removed during canonicalization
// so that shared links collapse to the same identity regardless of where they
// were copied from.
var trackingParams = map[string]struct{}{
	"gclid":   {},
	"fbclid":  {},
	"msclkid": {},
	"mc_cid":  {},
	"mc_eid":  {},
	"mkt_tok": {},
	"igshid":  {},
	"si":      {},
	"feature": {},
}

// hostAliases folds hosts that serve identical path layouts onto one primary
// host. youtu.be is handled separately in Canonicalize because its short
// paths need rewriting, not just a host swap.
var hostAliases = map[string]string{
	"x.com":         "twitter.com",
	"m.youtube.com": "youtube.com",
	"m.tiktok.com":  "tiktok.com",
}

// Canonicalize reduces a URL to its canonical form: https scheme, lowercase
// host and path, no www prefix, no default port, no tracking parameters, no
// trailing slash, no fragment, remaining query sorted by key. URLs that
// normalize identically are the same identity even if their surface text
// differs.
//
// The result is a dedup key, not a fetch target. Fetches use the URL a job
// was enqueued with, so case-sensitive upstream IDs are unaffected by the
// path lowering here.
func Canonicalize(rawURL string) (string, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return "", fmt.Errorf("empty url")
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	case "":
		return "", fmt.Errorf("url %q has no scheme", trimmed)
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("url %q has no host", trimmed)
	}

	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	if alias, ok := hostAliases[host]; ok {
		host = alias
	}

	path := strings.ToLower(u.EscapedPath())

	// youtu.be short links are the same resource as a youtube.com watch
	// URL; fold them so both spellings collapse to one identity.
	if host == "youtu.be" {
		if id := strings.Trim(path, "/"); id != "" && !strings.Contains(id, "/") {
			host = "youtube.com"
			path = "/watch"
			q := u.Query()
			q.Set("v", id)
			u.RawQuery = q.Encode()
		} else {
			host = "youtube.com"
		}
	}

	path = strings.TrimRight(path, "/")

	query := u.Query()
	for key := range query {
		if _, ok := trackingParams[key]; ok {
			query.Del(key)
			continue
		}
		if strings.HasPrefix(strings.ToLower(key), "utm_") {
			query.Del(key)
		}
	}

	canonical := url.URL{
		Scheme:   "https",
		Host:     host,
		Path:     path,
		RawQuery: query.Encode(),
	}
	return canonical.String(), nil
}
