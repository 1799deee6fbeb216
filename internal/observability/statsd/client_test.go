package statsd

import (
	"net"
	"strings"
	"testing"
	"time"
)

func TestQualify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		prefix string
		name   string
		want   string
	}{
		{"linkhound", "jobs.claimed", "linkhound.jobs.claimed"},
		{"linkhound", " link_page/claim ", "linkhound.link_page_claim"},
		{"linkhound", "reaper..cleanup", "linkhound.reaper.cleanup"},
		{"linkhound", "", ""},
		{"linkhound", "...", "linkhound"},
		{"", "jobs.claimed", "jobs.claimed"},
		{"", "two  words", "two__words"},
	}

	for _, tt := range tests {
		c := &Client{prefix: tt.prefix}
		if got := c.qualify(tt.name); got != tt.want {
			t.Errorf("qualify(%q) with prefix %q = %q, want %q", tt.name, tt.prefix, got, tt.want)
		}
	}
}

func TestNewClientTrimsPrefix(t *testing.T) {
	t.Parallel()

	client, err := NewClient(Config{Prefix: " ..linkhound.. "})
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	if client.prefix != "linkhound" {
		t.Fatalf("prefix = %q, want linkhound", client.prefix)
	}
}

func TestWriteTags(t *testing.T) {
	t.Parallel()

	global := map[string]string{"env": "prod", "service": "ingest"}
	local := map[string]string{
		"type":  " link_page ",
		"":      "dropped",
		"env":   "stage", // local wins
	}

	var sb strings.Builder
	writeTags(&sb, global, local)

	want := "|#env:stage,service:ingest,type:link_page"
	if sb.String() != want {
		t.Fatalf("writeTags = %q, want %q", sb.String(), want)
	}
}

func TestWriteTagsEmpty(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	writeTags(&sb, nil, nil)
	if sb.Len() != 0 {
		t.Fatalf("writeTags(nil, nil) wrote %q", sb.String())
	}
}

func TestTrimTags(t *testing.T) {
	t.Parallel()

	original := map[string]string{"env": " prod ", "": "dropped"}
	trimmed := trimTags(original)

	if trimmed["env"] != "prod" {
		t.Fatalf("env = %q, want prod", trimmed["env"])
	}
	if _, ok := trimmed[""]; ok {
		t.Fatal("empty key survived trimTags")
	}
	// The result is a copy.
	trimmed["env"] = "stage"
	if original["env"] != " prod " {
		t.Fatal("trimTags mutated its input")
	}
	if trimTags(nil) != nil {
		t.Fatal("trimTags(nil) should be nil")
	}
}

func TestEmitLineFormat(t *testing.T) {
	t.Parallel()

	// A local UDP listener captures the raw datagrams.
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer pc.Close()

	client, err := NewClient(Config{
		Enabled:    true,
		Address:    pc.LocalAddr().String(),
		Prefix:     "linkhound",
		GlobalTags: map[string]string{"env": "test"},
	})
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	defer client.Close()

	recv := func() string {
		buf := make([]byte, 512)
		_ = pc.SetReadDeadline(time.Now().Add(2 * time.Second))
		n, _, err := pc.ReadFrom(buf)
		if err != nil {
			t.Fatalf("read datagram: %v", err)
		}
		return string(buf[:n])
	}

	client.Count("jobs.claimed", 3, map[string]string{"type": "link_page"})
	if got, want := recv(), "linkhound.jobs.claimed:3|c|#env:test,type:link_page"; got != want {
		t.Errorf("count line = %q, want %q", got, want)
	}

	client.Gauge("queue.depth", 12.5, nil)
	if got, want := recv(), "linkhound.queue.depth:12.5|g|#env:test"; got != want {
		t.Errorf("gauge line = %q, want %q", got, want)
	}

	client.Timing("job.duration", 250*time.Millisecond, nil)
	if got, want := recv(), "linkhound.job.duration:250|ms|#env:test"; got != want {
		t.Errorf("timing line = %q, want %q", got, want)
	}
}

func TestClientEnabledAndClose(t *testing.T) {
	t.Parallel()

	clientConn, peerConn := net.Pipe()
	defer peerConn.Close()

	client := &Client{enabled: true, conn: clientConn}

	if !client.Enabled() {
		t.Fatal("Enabled() = false with an active connection")
	}
	if err := client.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if client.Enabled() {
		t.Fatal("Enabled() = true after Close")
	}
	// Double close is a no-op.
	if err := client.Close(); err != nil {
		t.Fatalf("second Close error: %v", err)
	}

	var nilClient *Client
	if nilClient.Enabled() {
		t.Fatal("nil client should report disabled")
	}
	if err := nilClient.Close(); err != nil {
		t.Fatalf("nil client Close error: %v", err)
	}
	nilClient.Count("noop", 1, nil) // must not panic
}

func TestNewClientStaysInertWithoutAddress(t *testing.T) {
	t.Parallel()

	client, err := NewClient(Config{Enabled: true, Address: "   "})
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	if client.Enabled() {
		t.Fatal("client should stay disabled when address is empty")
	}
	client.Count("noop", 1, nil) // silently dropped
}

func TestNewClientDialError(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{Enabled: true, Address: "bad address"})
	if err == nil {
		t.Fatal("expected error for invalid address")
	}
	if !strings.Contains(err.Error(), "statsd dial") {
		t.Fatalf("unexpected error: %v", err)
	}
}
