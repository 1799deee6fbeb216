package config

import (
	"maps"
	"slices"
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
)

func modes(ms ...ServiceMode) map[ServiceMode]bool {
	m := make(map[ServiceMode]bool, len(ms))
	for _, mode := range ms {
		m[mode] = true
	}
	return m
}

func TestParseServices(t *testing.T) {
	valid := []struct {
		name  string
		input string
		want  map[ServiceMode]bool
	}{
		{"single service", "http", modes(ServiceModeHTTP)},
		{"two services", "http,ingest-runner", modes(ServiceModeHTTP, ServiceModeIngestRunner)},
		{
			"all services",
			"http,scheduler,reaper,ingest-runner",
			modes(ServiceModeHTTP, ServiceModeScheduler, ServiceModeReaper, ServiceModeIngestRunner),
		},
		{
			"whitespace around names",
			" http , ingest-runner , scheduler ",
			modes(ServiceModeHTTP, ServiceModeIngestRunner, ServiceModeScheduler),
		},
		{"duplicates collapse", "http,http,ingest-runner", modes(ServiceModeHTTP, ServiceModeIngestRunner)},
	}
	for _, tt := range valid {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseServices(tt.input)
			if err != nil {
				t.Fatalf("ParseServices(%q): %v", tt.input, err)
			}
			if !maps.Equal(got, tt.want) {
				t.Errorf("ParseServices(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}

	invalid := []struct {
		name  string
		input string
	}{
		{"empty string", ""},
		{"only separators", " , , "},
		{"unknown name", "http,invalid-service"},
		{"typo does not silently drop", "http,ingest-runner,schedulr"},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			if got, err := ParseServices(tt.input); err == nil {
				t.Errorf("ParseServices(%q) = %v, want error", tt.input, got)
			}
		})
	}
}

func TestAppConfig_ServiceToggles(t *testing.T) {
	tests := []struct {
		services  string
		http      bool
		runner    bool
		scheduler bool
		reaper    bool
	}{
		{services: "http", http: true},
		{services: "http,ingest-runner", http: true, runner: true},
		{services: "http,ingest-runner,scheduler", http: true, runner: true, scheduler: true},
		{services: "ingest-runner", runner: true},
		{services: "scheduler", scheduler: true},
		{services: "reaper", reaper: true},
		// an invalid list disables everything
		{services: "invalid-service"},
	}
	for _, tt := range tests {
		t.Run(tt.services, func(t *testing.T) {
			cfg := AppConfig{Services: tt.services}
			if got := cfg.IsHTTPServerEnabled(); got != tt.http {
				t.Errorf("IsHTTPServerEnabled() = %v, want %v", got, tt.http)
			}
			if got := cfg.IsIngestRunnerEnabled(); got != tt.runner {
				t.Errorf("IsIngestRunnerEnabled() = %v, want %v", got, tt.runner)
			}
			if got := cfg.IsSchedulerEnabled(); got != tt.scheduler {
				t.Errorf("IsSchedulerEnabled() = %v, want %v", got, tt.scheduler)
			}
			if got := cfg.IsReaperEnabled(); got != tt.reaper {
				t.Errorf("IsReaperEnabled() = %v, want %v", got, tt.reaper)
			}
		})
	}
}

func TestAppConfig_GetEnabledServices(t *testing.T) {
	cfg := AppConfig{Services: "http,ingest-runner"}
	got, err := cfg.GetEnabledServices()
	if err != nil {
		t.Fatalf("GetEnabledServices(): %v", err)
	}
	if !maps.Equal(got, modes(ServiceModeHTTP, ServiceModeIngestRunner)) {
		t.Errorf("GetEnabledServices() = %v", got)
	}

	cfg.Services = "invalid-service"
	if _, err := cfg.GetEnabledServices(); err == nil {
		t.Error("GetEnabledServices() with invalid list: want error")
	}
}

func TestValidServiceModes(t *testing.T) {
	want := []ServiceMode{
		ServiceModeHTTP,
		ServiceModeScheduler,
		ServiceModeReaper,
		ServiceModeIngestRunner,
	}
	if got := ValidServiceModes(); !slices.Equal(got, want) {
		t.Errorf("ValidServiceModes() = %v, want %v", got, want)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SERVICES", "scheduler,reaper")
	t.Setenv("QUEUE_BACKOFF_BASE", "45s")
	t.Setenv("INGEST_RUNNER_CONCURRENCY", "8")
	t.Setenv("REAPER_BATCH_SIZE", "500")

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("env.Parse: %v", err)
	}

	if cfg.Services != "scheduler,reaper" {
		t.Errorf("Services = %q", cfg.Services)
	}
	if cfg.Queue.BackoffBase != 45*time.Second {
		t.Errorf("Queue.BackoffBase = %v", cfg.Queue.BackoffBase)
	}
	if cfg.IngestRunner.Concurrency != 8 {
		t.Errorf("IngestRunner.Concurrency = %d", cfg.IngestRunner.Concurrency)
	}
	if cfg.Reaper.BatchSize != 500 {
		t.Errorf("Reaper.BatchSize = %d", cfg.Reaper.BatchSize)
	}
	// untouched fields keep their envDefault values
	if cfg.IngestRunner.JobLease != 30*time.Second {
		t.Errorf("IngestRunner.JobLease default = %v", cfg.IngestRunner.JobLease)
	}
}

func TestDetectDevMode(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	var cfg AppConfig
	cfg.Sanitize()
	if !cfg.IsDev {
		t.Error("expected APP_ENV=development to enable dev mode")
	}

	t.Setenv("APP_ENV", "production")
	cfg = AppConfig{}
	cfg.Sanitize()
	if cfg.IsDev {
		t.Error("expected APP_ENV=production to leave dev mode off")
	}
}

func TestQueueConfig_Sanitize(t *testing.T) {
	cfg := QueueConfig{
		BackoffBase:   0,
		BackoffCap:    -time.Minute,
		BackoffJitter: -time.Second,
	}
	cfg.Sanitize()

	if cfg.BackoffBase < time.Second {
		t.Errorf("BackoffBase = %v, want >= 1s", cfg.BackoffBase)
	}
	if cfg.BackoffCap < cfg.BackoffBase {
		t.Errorf("BackoffCap = %v, want >= base %v", cfg.BackoffCap, cfg.BackoffBase)
	}
	if cfg.BackoffJitter != 0 {
		t.Errorf("BackoffJitter = %v, want 0", cfg.BackoffJitter)
	}
}

func TestIngestRunnerConfig_Sanitize(t *testing.T) {
	cfg := IngestRunnerConfig{
		Concurrency:       0,
		JobLease:          time.Second,
		HeartbeatInterval: time.Minute,
	}
	cfg.Sanitize()

	if cfg.Concurrency != 1 {
		t.Errorf("Concurrency = %d, want 1", cfg.Concurrency)
	}
	if cfg.JobLease != 5*time.Second {
		t.Errorf("JobLease = %v, want 5s", cfg.JobLease)
	}
	if cfg.HeartbeatInterval >= cfg.JobLease {
		t.Errorf("HeartbeatInterval = %v, want below lease %v", cfg.HeartbeatInterval, cfg.JobLease)
	}
}

func TestReaperConfig_Sanitize(t *testing.T) {
	cfg := ReaperConfig{BatchSize: 500000}
	cfg.Sanitize()

	if cfg.BatchSize != 10000 {
		t.Errorf("BatchSize = %d, want clamp to 10000", cfg.BatchSize)
	}
	if cfg.Interval < time.Minute {
		t.Errorf("Interval = %v, want >= 1m", cfg.Interval)
	}
	if cfg.PendingMaxAge < 5*time.Minute {
		t.Errorf("PendingMaxAge = %v, want >= 5m", cfg.PendingMaxAge)
	}
}

func TestObservabilityMetricsConfig_Sanitize(t *testing.T) {
	cfg := ObservabilityMetricsConfig{Enabled: true, StatsdAddress: " "}
	cfg.Sanitize()
	if cfg.Enabled {
		t.Error("expected metrics disabled when address is blank")
	}

	cfg = ObservabilityMetricsConfig{Enabled: true, StatsdAddress: " statsd:1234 "}
	cfg.Sanitize()
	if !cfg.IsEnabled() {
		t.Error("expected metrics to remain enabled")
	}
	if cfg.StatsdAddress != "statsd:1234" {
		t.Errorf("StatsdAddress = %q, want trimmed", cfg.StatsdAddress)
	}
}

func TestObservabilityNotificationsConfig_Sanitize(t *testing.T) {
	cfg := ObservabilityNotificationsConfig{
		Enabled:    true,
		Timeout:    0,
		RetryLimit: -1,
		Slack:      SlackNotificationConfig{Enabled: true, WebhookURL: " "},
		PagerDuty:  PagerDutyNotificationConfig{Enabled: true, RoutingKey: " "},
	}
	cfg.Sanitize()

	if cfg.Timeout <= 0 {
		t.Errorf("Timeout = %v, want default", cfg.Timeout)
	}
	if cfg.RetryLimit < 0 {
		t.Errorf("RetryLimit = %d, want >= 0", cfg.RetryLimit)
	}
	if cfg.Slack.Enabled {
		t.Error("expected slack disabled without a webhook url")
	}
	if cfg.PagerDuty.Enabled {
		t.Error("expected pagerduty disabled without a routing key")
	}
	if cfg.PagerDuty.Source != "linkhound" || cfg.PagerDuty.Component != "linkhound" {
		t.Errorf("PagerDuty defaults = %q/%q, want linkhound", cfg.PagerDuty.Source, cfg.PagerDuty.Component)
	}

	// disabling notifications at the top level turns off every sink
	cfg = ObservabilityNotificationsConfig{
		Slack:     SlackNotificationConfig{Enabled: true, WebhookURL: "https://hooks.slack.com/services/test"},
		PagerDuty: PagerDutyNotificationConfig{Enabled: true, RoutingKey: "abc"},
	}
	cfg.Sanitize()
	if cfg.Slack.Enabled || cfg.PagerDuty.Enabled {
		t.Error("expected child sinks disabled when notifications are off")
	}
}
