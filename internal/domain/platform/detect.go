package platform

import (
	"net/url"
	"regexp"
	"strings"
)

// Handle validation patterns per platform. A path segment that looks like a
// profile handle but fails its platform's pattern makes Detect return
// Unknown rather than guessing at an identity.
var (
	linktreeHandleRe   = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]{1,29}$`)
	beaconsHandleRe    = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]{1,29}$`)
	layloHandleRe      = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]{1,29}$`)
	youtubeHandleRe    = regexp.MustCompile(`^[a-z0-9._-]{3,30}$`)
	youtubeChannelRe   = regexp.MustCompile(`^uc[a-z0-9_-]{22}$`)
	instagramHandleRe  = regexp.MustCompile(`^[a-z0-9._]{1,30}$`)
	tiktokHandleRe     = regexp.MustCompile(`^[a-z0-9._]{2,24}$`)
	twitterHandleRe    = regexp.MustCompile(`^[a-z0-9_]{1,15}$`)
	spotifyIDRe        = regexp.MustCompile(`^[a-z0-9]{22}$`)
	spotifyUserRe      = regexp.MustCompile(`^[a-z0-9._-]{1,64}$`)
	soundcloudHandleRe = regexp.MustCompile(`^[a-z0-9_-]{3,25}$`)
	bandcampSubRe      = regexp.MustCompile(`^([a-z0-9-]{2,63})\.bandcamp\.com$`)
)

// Reserved first path segments that are platform features, not profiles.
var (
	instagramReserved = map[string]struct{}{
		"p": {}, "reel": {}, "reels": {}, "stories": {}, "explore": {},
		"accounts": {}, "about": {}, "developer": {}, "directory": {},
	}
	twitterReserved = map[string]struct{}{
		"home": {}, "search": {}, "explore": {}, "i": {}, "intent": {},
		"hashtag": {}, "share": {}, "settings": {}, "notifications": {},
	}
	soundcloudReserved = map[string]struct{}{
		"discover": {}, "stream": {}, "upload": {}, "search": {},
		"tags": {}, "charts": {}, "you": {},
	}
	youtubeReserved = map[string]struct{}{
		"watch": {}, "results": {}, "playlist": {}, "feed": {},
		"shorts": {}, "embed": {}, "live": {},
	}
	bandcampReservedSubs = map[string]struct{}{
		"daily": {}, "blog": {}, "get": {},
	}
)

// matchResult is what a host matcher reports: the platform, the handle if
// the path addresses a profile, and whether the handle candidate failed
// validation (which poisons the match into Unknown).
type matchResult struct {
	platform Platform
	handle   string
	invalid  bool
}

type matcher struct {
	// hosts the matcher claims, after canonicalization (no www, aliases
	// folded). Empty when matchHost is set instead.
	hosts []string
	// matchHost handles suffix-style hosts such as bandcamp subdomains.
	matchHost func(host string) bool
	classify  func(host string, segments []string) matchResult
}

// matchers is ordered; the first host match wins. The supported set is
// reviewed so host claims never overlap.
var matchers = []matcher{
	{
		hosts: []string{"linktr.ee"},
		classify: func(_ string, segs []string) matchResult {
			return aggregatorProfile(Linktree, segs, linktreeHandleRe)
		},
	},
	{
		hosts: []string{"beacons.ai"},
		classify: func(_ string, segs []string) matchResult {
			return aggregatorProfile(Beacons, segs, beaconsHandleRe)
		},
	},
	{
		hosts: []string{"laylo.com"},
		classify: func(_ string, segs []string) matchResult {
			// /{handle} and /{handle}/drops/{slug} both address the
			// same creator.
			if len(segs) == 0 {
				return matchResult{platform: Laylo}
			}
			if !layloHandleRe.MatchString(segs[0]) {
				return matchResult{invalid: true}
			}
			return matchResult{platform: Laylo, handle: segs[0]}
		},
	},
	{
		hosts:    []string{"youtube.com", "music.youtube.com"},
		classify: classifyYouTube,
	},
	{
		hosts: []string{"instagram.com"},
		classify: func(_ string, segs []string) matchResult {
			return socialProfile(Instagram, segs, instagramHandleRe, instagramReserved)
		},
	},
	{
		hosts: []string{"tiktok.com"},
		classify: func(_ string, segs []string) matchResult {
			// Profiles are always /@handle; anything else is content.
			if len(segs) == 0 || !strings.HasPrefix(segs[0], "@") {
				return matchResult{platform: TikTok}
			}
			handle := strings.TrimPrefix(segs[0], "@")
			if !tiktokHandleRe.MatchString(handle) {
				return matchResult{invalid: true}
			}
			return matchResult{platform: TikTok, handle: handle}
		},
	},
	{
		hosts: []string{"twitter.com"},
		classify: func(_ string, segs []string) matchResult {
			return socialProfile(Twitter, segs, twitterHandleRe, twitterReserved)
		},
	},
	{
		hosts:    []string{"open.spotify.com"},
		classify: classifySpotify,
	},
	{
		hosts: []string{"soundcloud.com"},
		classify: func(_ string, segs []string) matchResult {
			return socialProfile(SoundCloud, segs, soundcloudHandleRe, soundcloudReserved)
		},
	},
	{
		matchHost: func(host string) bool {
			return bandcampSubRe.MatchString(host) || host == "bandcamp.com"
		},
		classify: classifyBandcamp,
	},
}

// Detect classifies a URL into a platform identity. The URL is canonicalized
// first, so cosmetic variants (case, www, tracking parameters, trailing
// slash) collapse to one identity. Detect returns an error only when the URL
// itself is unusable; a URL on no supported platform, or with an invalid
// profile handle, yields Platform Unknown.
func Detect(rawURL string) (Identity, error) {
	canonical, err := Canonicalize(rawURL)
	if err != nil {
		return Identity{}, err
	}

	u, err := url.Parse(canonical)
	if err != nil {
		return Identity{}, err
	}
	host := u.Hostname()
	segments := splitPath(u.Path)

	for _, m := range matchers {
		if !m.claims(host) {
			continue
		}
		res := m.classify(host, segments)
		if res.invalid {
			return Identity{Platform: Unknown, CanonicalURL: canonical}, nil
		}
		return Identity{
			Platform:     res.platform,
			Handle:       res.handle,
			CanonicalURL: canonical,
		}, nil
	}

	return Identity{Platform: Unknown, CanonicalURL: canonical}, nil
}

func (m matcher) claims(host string) bool {
	if m.matchHost != nil {
		return m.matchHost(host)
	}
	for _, h := range m.hosts {
		if host == h {
			return true
		}
	}
	return false
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// aggregatorProfile handles link-aggregator hosts where the only meaningful
// path is a single profile segment.
func aggregatorProfile(p Platform, segs []string, handleRe *regexp.Regexp) matchResult {
	if len(segs) == 0 {
		return matchResult{platform: p}
	}
	if len(segs) > 1 {
		// Multi-segment paths on aggregators are feature pages such as
		// /s/store-slug; they carry no profile identity.
		return matchResult{platform: p}
	}
	handle := strings.TrimPrefix(segs[0], "@")
	if !handleRe.MatchString(handle) {
		return matchResult{invalid: true}
	}
	return matchResult{platform: p, handle: handle}
}

// socialProfile handles hosts whose profile URLs are /{handle}, with a
// reserved-word set for feature paths. Deeper paths under a valid handle
// (posts, tracks) keep the handle since they still identify the creator.
func socialProfile(p Platform, segs []string, handleRe *regexp.Regexp, reserved map[string]struct{}) matchResult {
	if len(segs) == 0 {
		return matchResult{platform: p}
	}
	first := strings.TrimPrefix(segs[0], "@")
	if _, ok := reserved[first]; ok {
		return matchResult{platform: p}
	}
	if !handleRe.MatchString(first) {
		return matchResult{invalid: true}
	}
	return matchResult{platform: p, handle: first}
}

func classifyYouTube(_ string, segs []string) matchResult {
	if len(segs) == 0 {
		return matchResult{platform: YouTube}
	}
	first := segs[0]
	switch {
	case strings.HasPrefix(first, "@"):
		handle := strings.TrimPrefix(first, "@")
		if !youtubeHandleRe.MatchString(handle) {
			return matchResult{invalid: true}
		}
		return matchResult{platform: YouTube, handle: handle}
	case first == "channel":
		if len(segs) < 2 || !youtubeChannelRe.MatchString(segs[1]) {
			return matchResult{invalid: true}
		}
		return matchResult{platform: YouTube, handle: segs[1]}
	case first == "c", first == "user":
		if len(segs) < 2 || !youtubeHandleRe.MatchString(segs[1]) {
			return matchResult{invalid: true}
		}
		return matchResult{platform: YouTube, handle: segs[1]}
	default:
		if _, ok := youtubeReserved[first]; ok {
			return matchResult{platform: YouTube}
		}
		// Bare /name legacy profile URLs exist but are ambiguous with
		// feature paths; treat them as content rather than a handle.
		return matchResult{platform: YouTube}
	}
}

func classifySpotify(_ string, segs []string) matchResult {
	if len(segs) < 2 {
		return matchResult{platform: Spotify}
	}
	switch segs[0] {
	case "artist":
		if !spotifyIDRe.MatchString(segs[1]) {
			return matchResult{invalid: true}
		}
		return matchResult{platform: Spotify, handle: segs[1]}
	case "user":
		if !spotifyUserRe.MatchString(segs[1]) {
			return matchResult{invalid: true}
		}
		return matchResult{platform: Spotify, handle: segs[1]}
	default:
		// Albums, tracks and playlists are release links, kept without
		// a profile handle.
		return matchResult{platform: Spotify}
	}
}

func classifyBandcamp(host string, _ []string) matchResult {
	if host == "bandcamp.com" {
		return matchResult{platform: Bandcamp}
	}
	m := bandcampSubRe.FindStringSubmatch(host)
	if m == nil {
		return matchResult{platform: Bandcamp}
	}
	sub := m[1]
	if _, ok := bandcampReservedSubs[sub]; ok {
		return matchResult{platform: Bandcamp}
	}
	return matchResult{platform: Bandcamp, handle: sub}
}
