package pagerduty

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/linkhound/ingest/internal/observability/notify"
)

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatal("expected error when routing key missing")
	}
	if _, err := NewClient(Config{RoutingKey: "   "}); err == nil {
		t.Fatal("expected error for blank routing key")
	}
}

func TestBuildEventDefaults(t *testing.T) {
	client, err := NewClient(Config{RoutingKey: "key", Timeout: time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ev := client.buildEvent(notify.JobFailurePayload{
		JobID:      "123",
		JobType:    "linkpage",
		Error:      "fetch timed out",
		ErrorClass: "retryable",
		Metadata:   map[string]string{"attempt": "3", "error": "should not clobber"},
	})

	if ev.EventAction != "trigger" {
		t.Fatalf("expected trigger action, got %s", ev.EventAction)
	}
	if ev.DedupKey != "linkpage:123" {
		t.Fatalf("expected dedup key linkpage:123, got %s", ev.DedupKey)
	}
	if ev.Payload.Severity != notify.SeverityCritical {
		t.Fatalf("expected default severity, got %s", ev.Payload.Severity)
	}
	if ev.Payload.Source != "linkhound" || ev.Payload.Component != "linkhound" {
		t.Fatalf("expected default source/component, got %s/%s", ev.Payload.Source, ev.Payload.Component)
	}
	if ev.Payload.Timestamp == "" {
		t.Fatal("expected timestamp to be filled in")
	}

	if got := ev.Payload.CustomDetails["error"]; got != "fetch timed out" {
		t.Fatalf("metadata must not overwrite canonical fields, got %v", got)
	}
	if got := ev.Payload.CustomDetails["attempt"]; got != "3" {
		t.Fatalf("expected metadata passthrough, got %v", got)
	}
}

func TestBuildEventDedupKeyPartialIdentity(t *testing.T) {
	client, err := NewClient(Config{RoutingKey: "key"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ev := client.buildEvent(notify.JobFailurePayload{JobID: "abc"})
	if ev.DedupKey != "abc" {
		t.Fatalf("expected bare job id dedup key, got %s", ev.DedupKey)
	}
}

func TestSendJobFailureRetriesServerErrors(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "try later", http.StatusBadGateway)
			return
		}

		var ev event
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			t.Errorf("decode event: %v", err)
		}
		if ev.RoutingKey != "key" {
			t.Errorf("expected routing key, got %s", ev.RoutingKey)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	client, err := NewClient(Config{
		RoutingKey: "key",
		RetryLimit: 2,
		Client: &http.Client{
			Transport: rewriteTransport{target: srv.URL},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err = client.SendJobFailure(context.Background(), notify.JobFailurePayload{JobID: "1", JobType: "linkpage"})
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
}

// rewriteTransport points requests for the real API endpoint at the test
// server.
type rewriteTransport struct {
	target string
}

func (rt rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	target, err := url.Parse(rt.target + req.URL.Path)
	if err != nil {
		return nil, err
	}
	clone := req.Clone(req.Context())
	clone.URL = target
	clone.Host = target.Host
	return http.DefaultTransport.RoundTrip(clone)
}
