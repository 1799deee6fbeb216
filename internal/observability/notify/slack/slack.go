// Package slack posts ingestion job failure notifications to a Slack
// incoming webhook.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/linkhound/ingest/internal/observability/notify"
)

// Config carries the webhook settings. WebhookURL is mandatory.
// ProfileURLPrefix, when set, turns profile IDs into admin UI links.
type Config struct {
	WebhookURL       string
	Channel          string
	Username         string
	Timeout          time.Duration
	RetryLimit       int
	Client           *http.Client
	ProfileURLPrefix string
}

// Client is a notify.Sink backed by a Slack incoming webhook.
type Client struct {
	webhookURL       string
	channel          string
	username         string
	retryLimit       int
	profileURLPrefix string
	client           *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	webhookURL := strings.TrimSpace(cfg.WebhookURL)
	if webhookURL == "" {
		return nil, errors.New("slack webhook url is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}

	username := strings.TrimSpace(cfg.Username)
	if username == "" {
		username = "linkhound"
	}

	return &Client{
		webhookURL:       webhookURL,
		channel:          strings.TrimSpace(cfg.Channel),
		username:         username,
		retryLimit:       max(cfg.RetryLimit, 0),
		profileURLPrefix: strings.TrimSpace(cfg.ProfileURLPrefix),
		client:           hc,
	}, nil
}

// message is the webhook payload.
type message struct {
	Text     string `json:"text"`
	Username string `json:"username"`
	Channel  string `json:"channel,omitempty"`
}

// SendJobFailure posts a formatted message, retrying transient failures with
// a linear backoff up to the configured retry limit.
func (c *Client) SendJobFailure(ctx context.Context, payload notify.JobFailurePayload) error {
	body, err := json.Marshal(c.formatMessage(payload))
	if err != nil {
		return fmt.Errorf("encode slack payload: %w", err)
	}

	attempts := c.retryLimit + 1
	var lastErr error
	for attempt := range attempts {
		if lastErr = c.post(ctx, body); lastErr == nil {
			return nil
		}
		if attempt == attempts-1 {
			break
		}

		timer := time.NewTimer(time.Duration(attempt+1) * 200 * time.Millisecond)
		select {
		case <-ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}

func (c *Client) formatMessage(payload notify.JobFailurePayload) message {
	occurredAt := payload.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}

	var text strings.Builder
	text.WriteString("*Job failure alert*")
	if payload.JobID != "" {
		fmt.Fprintf(&text, " `%s`", payload.JobID)
	}
	if payload.JobType != "" {
		fmt.Fprintf(&text, " (%s)", payload.JobType)
	}
	text.WriteByte('\n')

	severity := payload.Severity
	if strings.TrimSpace(severity) == "" {
		severity = notify.SeverityCritical
	}
	writeField(&text, "Severity", severity)
	writeField(&text, "Profile", c.profileField(payload.CreatorProfileID, payload.ProfileHandle))
	writeField(&text, "Source URL", payload.SourceURL)
	writeField(&text, "Error class", payload.ErrorClass)
	writeField(&text, "Error", payload.Error)

	if len(payload.Metadata) > 0 {
		text.WriteString("• Metadata:\n")
		for _, k := range slices.Sorted(maps.Keys(payload.Metadata)) {
			fmt.Fprintf(&text, "    • %s: %s\n", k, payload.Metadata[k])
		}
	}
	text.WriteString("• Timestamp: ")
	text.WriteString(occurredAt.UTC().Format(time.RFC3339))

	return message{
		Text:     text.String(),
		Username: c.username,
		Channel:  c.channel,
	}
}

func writeField(text *strings.Builder, label, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	fmt.Fprintf(text, "• %s: %s\n", label, value)
}

// profileField renders the creator identity as "<link|handle> (id)" when a
// profile URL prefix is configured, degrading to plain text otherwise.
func (c *Client) profileField(profileID, handle string) string {
	rawID := strings.TrimSpace(profileID)
	id := escapeText(rawID)
	name := escapeText(strings.TrimSpace(handle))
	if id == "" && name == "" {
		return ""
	}

	link := ""
	if rawID != "" {
		link = c.profileLink(rawID)
	}

	switch {
	case link != "" && name != "":
		return fmt.Sprintf("<%s|%s> (%s)", link, name, id)
	case link != "":
		return fmt.Sprintf("<%s|%s>", link, id)
	case name != "" && id != "":
		return fmt.Sprintf("%s (%s)", name, id)
	case name != "":
		return name
	default:
		return id
	}
}

// escapeText escapes the characters Slack's mrkdwn treats as control
// characters in link syntax.
func escapeText(value string) string {
	if value == "" {
		return ""
	}
	return strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
	).Replace(value)
}

func (c *Client) profileLink(profileID string) string {
	prefix := c.profileURLPrefix
	if prefix == "" {
		return ""
	}

	u, err := url.Parse(prefix)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	link, err := url.JoinPath(u.String(), profileID)
	if err != nil {
		return ""
	}
	return link
}

func (c *Client) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("slack request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, readErr := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		if readErr != nil {
			return fmt.Errorf("slack webhook %s (read response: %v)", resp.Status, readErr)
		}
		return fmt.Errorf("slack webhook %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	// Drain so the connection can be reused.
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return fmt.Errorf("drain slack response body: %w", err)
	}
	return nil
}

var _ notify.Sink = (*Client)(nil)
