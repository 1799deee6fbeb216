// Package platform classifies URLs into known creator platforms and reduces
// them to canonical identities. Everything here is pure string work: no I/O,
// no clocks, no randomness. The merge engine depends on Detect being
// deterministic, since canonical identities are its dedup boundary.
package platform

// Platform identifies a supported creator platform.
type Platform string

const (
	// Linktree is the linktr.ee link aggregator.
	Linktree Platform = "linktree"
	// Beacons is the beacons.ai link aggregator.
	Beacons Platform = "beacons"
	// Laylo is the laylo.com drop-page service.
	Laylo Platform = "laylo"
	// YouTube covers youtube.com channels and youtu.be short links.
	YouTube Platform = "youtube"
	// Instagram is instagram.com.
	Instagram Platform = "instagram"
	// TikTok is tiktok.com.
	TikTok Platform = "tiktok"
	// Twitter covers twitter.com and its x.com alias.
	Twitter Platform = "twitter"
	// Spotify is open.spotify.com.
	Spotify Platform = "spotify"
	// SoundCloud is soundcloud.com.
	SoundCloud Platform = "soundcloud"
	// Bandcamp covers artist subdomains of bandcamp.com.
	Bandcamp Platform = "bandcamp"
	// Unknown is returned for URLs that match no supported platform or
	// whose profile handle fails validation.
	Unknown Platform = "unknown"
)

// Known reports whether the platform is a supported platform rather than
// Unknown or an unrecognized string.
func (p Platform) Known() bool {
	switch p {
	case Linktree, Beacons, Laylo, YouTube, Instagram, TikTok, Twitter, Spotify, SoundCloud, Bandcamp:
		return true
	default:
		return false
	}
}

// String returns the platform tag as stored and logged.
func (p Platform) String() string {
	return string(p)
}

// Identity is the canonical form of a URL: the platform it belongs to, the
// normalized URL, and the profile handle when the path exposes one. Two URLs
// with equal identities refer to the same logical link.
type Identity struct {
	// Platform is the detected platform, or Unknown.
	Platform Platform
	// Handle is the lowercase profile handle extracted from the URL, with
	// any leading @ removed. Empty when the URL does not address a profile
	// (content pages, root pages).
	Handle string
	// CanonicalURL is the normalized URL. Always set, even for Unknown.
	CanonicalURL string
}

// Known reports whether the identity belongs to a supported platform.
func (id Identity) Known() bool {
	return id.Platform.Known()
}
