package config

import "time"

// DBConfig contains PostgreSQL database configuration.
type DBConfig struct {
	Host     string `env:"HOST"                    envDefault:"localhost"`
	Port     int    `env:"PORT"                    envDefault:"5432"`
	User     string `env:"USER"                    envDefault:"linkhound"`
	Password string `env:"PASSWORD"                envDefault:"linkhound"`
	Name     string `env:"NAME"                    envDefault:"linkhound"`
	SSLMode  string `env:"SSL_MODE"                envDefault:"disable"` // Use 'disable' for local dev, 'require' for production
	// RunMigrationsOnStart controls whether the application automatically applies migrations during startup.
	RunMigrationsOnStart bool `env:"RUN_MIGRATIONS_ON_START" envDefault:"true"`
}

// RedisConfig contains Redis configuration.
type RedisConfig struct {
	URI                string   `env:"URI"                  envDefault:"localhost:6379"`
	Password           string   `env:"PASSWORD"             envDefault:""`
	SentinelPort       string   `env:"SENTINEL_PORT"        envDefault:"26379"`
	SentinelNodes      []string `env:"SENTINEL_NODES"       envDefault:"localhost:26379"`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`
	ClusterNodes       []string `env:"CLUSTER_NODES"        envDefault:""`
	UseCluster         bool     `env:"USE_CLUSTER"          envDefault:"false"`
}

// CacheConfig contains cache TTL configuration. The Redis connection the
// cache rides on is configured separately via RedisConfig.
type CacheConfig struct {
	// Enabled controls whether the Redis-backed caches are wired at all.
	Enabled bool `env:"CACHE_ENABLED" envDefault:"true"`

	// PageTTL is the TTL for cached fetched page bodies.
	PageTTL time.Duration `env:"CACHE_PAGE_TTL" envDefault:"15m"`

	// CrawlSeenTTL is the TTL for the recently-seen crawl target set.
	CrawlSeenTTL time.Duration `env:"CACHE_CRAWL_SEEN_TTL" envDefault:"30m"`
}
