// Package pagerduty pages on ingestion job failures through the PagerDuty
// Events API v2.
package pagerduty

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/linkhound/ingest/internal/observability/notify"
)

// APIEndpoint is the PagerDuty Events API v2 ingest URL.
const APIEndpoint = "https://events.pagerduty.com/v2/enqueue"

// Config carries the sink settings. RoutingKey is mandatory; everything else
// has a working default.
type Config struct {
	RoutingKey string
	Source     string
	Component  string
	Timeout    time.Duration
	RetryLimit int
	Client     *http.Client
}

// Client is a notify.Sink that triggers PagerDuty incidents.
type Client struct {
	routingKey string
	source     string
	component  string
	retryLimit int
	client     *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	key := strings.TrimSpace(cfg.RoutingKey)
	if key == "" {
		return nil, errors.New("pagerduty routing key is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}

	return &Client{
		routingKey: key,
		source:     orDefault(cfg.Source, "linkhound"),
		component:  orDefault(cfg.Component, "linkhound"),
		retryLimit: max(cfg.RetryLimit, 0),
		client:     hc,
	}, nil
}

// event is the Events API v2 trigger body.
type event struct {
	RoutingKey  string       `json:"routing_key"`
	EventAction string       `json:"event_action"`
	DedupKey    string       `json:"dedup_key,omitempty"`
	Payload     eventPayload `json:"payload"`
}

type eventPayload struct {
	Summary       string         `json:"summary"`
	Severity      string         `json:"severity"`
	Source        string         `json:"source"`
	Component     string         `json:"component"`
	Timestamp     string         `json:"timestamp"`
	CustomDetails map[string]any `json:"custom_details"`
}

// SendJobFailure triggers an incident, retrying transient failures with a
// linear backoff up to the configured retry limit.
func (c *Client) SendJobFailure(ctx context.Context, payload notify.JobFailurePayload) error {
	body, err := json.Marshal(c.buildEvent(payload))
	if err != nil {
		return fmt.Errorf("encode pagerduty payload: %w", err)
	}

	attempts := c.retryLimit + 1
	var lastErr error
	for attempt := range attempts {
		if lastErr = c.submit(ctx, body); lastErr == nil {
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

func (c *Client) buildEvent(payload notify.JobFailurePayload) event {
	occurredAt := payload.OccurredAt.UTC()
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	details := map[string]any{
		"job_id":      payload.JobID,
		"job_type":    payload.JobType,
		"profile_id":  payload.CreatorProfileID,
		"source_url":  payload.SourceURL,
		"error":       payload.Error,
		"error_class": payload.ErrorClass,
	}
	for k, v := range payload.Metadata {
		if _, exists := details[k]; !exists {
			details[k] = v
		}
	}

	return event{
		RoutingKey:  c.routingKey,
		EventAction: "trigger",
		// Repeated failures of the same job collapse into one incident.
		DedupKey: strings.Trim(payload.JobType+":"+payload.JobID, ":"),
		Payload: eventPayload{
			Summary: fmt.Sprintf("Job %s (%s) failed",
				orDefault(payload.JobID, "unknown"),
				orDefault(payload.JobType, "unknown"),
			),
			Severity:      orDefault(strings.ToLower(payload.Severity), notify.SeverityCritical),
			Source:        c.source,
			Component:     c.component,
			Timestamp:     occurredAt.Format(time.RFC3339),
			CustomDetails: details,
		},
	}
}

func (c *Client) submit(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, APIEndpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create pagerduty request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("pagerduty request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, readErr := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		if readErr != nil {
			return fmt.Errorf("pagerduty api %s (read response: %v)", resp.Status, readErr)
		}
		return fmt.Errorf("pagerduty api %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	// Drain so the connection can be reused.
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return fmt.Errorf("drain pagerduty response body: %w", err)
	}
	return nil
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

var _ notify.Sink = (*Client)(nil)
