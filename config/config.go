package config

import (
	"os"
	"strings"

	"github.com/linkhound/ingest/internal/domain/scoring"
	"github.com/linkhound/ingest/internal/strategy"
)

// AppConfig composes the application's configuration, loaded from
// environment variables via caarlos0/env. The per-concern structs live in
// their own files: database.go for postgres/redis/cache, http.go for the
// server, services.go for service modes and worker tuning.
type AppConfig struct {
	// IsDev controls development mode behavior (relaxed TLS, verbose logging).
	// Set DEV=true or APP_ENV=development for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`
	Cache    CacheConfig

	HTTP HTTPConfig

	// Services is the comma-separated list of service modes to run.
	Services string `env:"SERVICES" envDefault:"http"`

	Scheduler    SchedulerConfig
	Queue        QueueConfig
	IngestRunner IngestRunnerConfig
	Reaper       ReaperConfig

	Strategy strategy.ClientConfig
	Scoring  scoring.Config

	Observability ObservabilityConfig
}

// Sanitize applies every sub-config's guardrails. Call it once after
// env.Parse, before anything reads the config.
func (c *AppConfig) Sanitize() {
	c.HTTP.Sanitize()
	c.Scheduler.Sanitize()
	c.Queue.Sanitize()
	c.IngestRunner.Sanitize()
	c.Reaper.Sanitize()
	c.Strategy.Sanitize()
	c.Scoring.Sanitize()
	c.Observability.Sanitize()

	c.detectDevMode()
}

// detectDevMode falls back to APP_ENV when DEV is not set, so local runs
// with a shared .env pick up development mode without extra flags.
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		appEnv := strings.ToLower(os.Getenv("APP_ENV"))
		c.IsDev = appEnv == "development" || appEnv == "dev"
	}
}

// GetEnabledServices parses the Services field into a mode set.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}

func (c *AppConfig) serviceEnabled(mode ServiceMode) bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[mode]
}

func (c *AppConfig) IsHTTPServerEnabled() bool { return c.serviceEnabled(ServiceModeHTTP) }

func (c *AppConfig) IsSchedulerEnabled() bool { return c.serviceEnabled(ServiceModeScheduler) }

func (c *AppConfig) IsReaperEnabled() bool { return c.serviceEnabled(ServiceModeReaper) }

func (c *AppConfig) IsIngestRunnerEnabled() bool { return c.serviceEnabled(ServiceModeIngestRunner) }
