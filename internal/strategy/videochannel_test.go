package strategy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkhound/ingest/internal/domain/model"
	apperrors "github.com/linkhound/ingest/internal/errors"
)

const channelAboutHTML = `<!DOCTYPE html>
<html>
<head>
  <meta property="og:title" content="Example Channel">
  <meta property="og:image" content="https://yt3.example.com/channel-avatar.jpg">
</head>
<body>
  <a href="https://www.youtube.com/redirect?event=channel_description&amp;q=https%3A%2F%2Flinktr.ee%2Fexamplecreator">linktr.ee/examplecreator</a>
  <a href="https://www.youtube.com/redirect?q=https%3A%2F%2Finstagram.com%2Fexamplecreator">Instagram</a>
  <a href="https://twitter.com/examplecreator">Twitter</a>
  <a href="https://www.youtube.com/@examplecreator/videos">Videos</a>
  <a href="/feed/subscriptions">Subscriptions</a>
  <a href="https://youtube.com/redirect?event=channel_description">broken redirect</a>
</body>
</html>`

func TestVideoChannelStrategy_Kind(t *testing.T) {
	t.Parallel()

	s := NewVideoChannelStrategy(VideoChannelOptions{})
	assert.Equal(t, model.JobTypeVideoChannel, s.Kind())
	assert.Equal(t, 1, s.MaxDepth())
}

func TestVideoChannelStrategy_UnwrapsRedirects(t *testing.T) {
	t.Parallel()

	s := NewVideoChannelStrategy(VideoChannelOptions{Client: serveHTML(t, channelAboutHTML)})
	result, err := s.FetchAndExtract(context.Background(), Input{
		SourceURL: "https://www.youtube.com/@examplecreator/about",
	})
	require.NoError(t, err)

	byURL := map[string]string{}
	for _, d := range result.Candidates {
		byURL[d.URL] = d.Label
	}
	assert.Equal(t, map[string]string{
		"https://linktr.ee/examplecreator": "linktr.ee/examplecreator",
		"https://instagram.com/examplecreator": "Instagram",
		"https://twitter.com/examplecreator":   "Twitter",
	}, byURL, "redirect wrappers unwrapped, direct externals kept, channel navigation dropped")

	assert.Equal(t, "Example Channel", result.Hints.DisplayName)
	assert.Equal(t, "https://yt3.example.com/channel-avatar.jpg", result.Hints.AvatarURL)
	assert.Len(t, result.CrawlTargets, 3)
}

func TestVideoChannelStrategy_RefusesForeignHost(t *testing.T) {
	t.Parallel()

	s := NewVideoChannelStrategy(VideoChannelOptions{Client: serveHTML(t, channelAboutHTML)})
	_, err := s.FetchAndExtract(context.Background(), Input{
		SourceURL: "https://vimeo.com/examplecreator",
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsPolicy(err), "expected policy error, got %v", err)
}

func TestChannelLinkTarget(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		href string
		want string
	}{
		{"direct external", "https://twitter.com/someone", "https://twitter.com/someone"},
		{"redirect wrapper", "https://www.youtube.com/redirect?q=https%3A%2F%2Flinktr.ee%2Fsomeone", "https://linktr.ee/someone"},
		{"redirect without target", "https://youtube.com/redirect?event=x", ""},
		{"redirect with relative target", "https://youtube.com/redirect?q=%2Fwatch%3Fv%3Dabc", ""},
		{"channel navigation", "https://www.youtube.com/@someone/videos", ""},
		{"relative path", "/feed/subscriptions", ""},
		{"mailto", "mailto:someone@example.com", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, channelLinkTarget(tt.href))
		})
	}
}
