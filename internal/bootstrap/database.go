package bootstrap

import (
	"context"
	"crypto/tls"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/linkhound/ingest/config"
	"github.com/linkhound/ingest/internal/data"
)

// connectTimeout bounds the startup ping for both Postgres and Redis.
const connectTimeout = 5 * time.Second

// Pool sizing for the shared *sql.DB. Every worker claim, sweep, and admin
// request goes through this pool, so max open stays well under the usual
// Postgres max_connections default of 100.
const (
	dbMaxOpenConns    = 25
	dbMaxIdleConns    = 5
	dbConnMaxLifetime = 5 * time.Minute
)

// DatabaseConfig carries the connection settings for ConnectDB and
// ConnectRedis. Only the relevant half needs to be populated.
type DatabaseConfig struct {
	DBConfig    config.DBConfig
	RedisConfig config.RedisConfig
	Logger      *slog.Logger
}

// postgresDSN builds the connection URL. url.URL handles escaping, so
// passwords with reserved characters survive intact.
func postgresDSN(cfg config.DBConfig) string {
	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:   "/" + cfg.Name,
	}
	q := u.Query()
	q.Set("sslmode", cfg.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// ConnectDB opens the Postgres pool and verifies it with a bounded ping.
func ConnectDB(cfg DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", postgresDSN(cfg.DBConfig))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(dbMaxOpenConns)
	db.SetMaxIdleConns(dbMaxIdleConns)
	db.SetConnMaxLifetime(dbConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if pingErr := db.PingContext(ctx); pingErr != nil {
		if closeErr := db.Close(); closeErr != nil {
			pingErr = errors.Join(pingErr, fmt.Errorf("close database connection: %w", closeErr))
		}
		return nil, fmt.Errorf("ping database: %w", pingErr)
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("database connected",
			"host", cfg.DBConfig.Host,
			"port", cfg.DBConfig.Port,
			"database", cfg.DBConfig.Name,
		)
	}
	return db, nil
}

// ConnectRedis builds a client for the configured topology and verifies it
// with a bounded ping.
//
//nolint:ireturn // redis.UniversalClient covers direct, sentinel, and cluster clients.
func ConnectRedis(cfg DatabaseConfig) (redis.UniversalClient, error) {
	var (
		client redis.UniversalClient
		desc   string
		err    error
	)
	switch {
	case cfg.RedisConfig.UseCluster:
		client, desc, err = newClusterClient(cfg.RedisConfig)
	case cfg.RedisConfig.UseSentinel:
		client, desc, err = newSentinelClient(cfg.RedisConfig)
	default:
		client, desc, err = newDirectClient(cfg.RedisConfig)
	}
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if pingErr := client.Ping(ctx).Err(); pingErr != nil {
		if closeErr := client.Close(); closeErr != nil {
			pingErr = errors.Join(pingErr, fmt.Errorf("close redis client: %w", closeErr))
		}
		return nil, fmt.Errorf("ping redis: %w", pingErr)
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("redis connected", "addr", redactAddr(desc))
	}
	return client, nil
}

// redactAddr strips credentials from a connection description before it hits
// the logs.
func redactAddr(desc string) string {
	if u, err := url.Parse(desc); err == nil && u.User != nil {
		u.User = url.User("*")
		return u.Redacted()
	}
	if i := strings.LastIndex(desc, "@"); i > -1 {
		return desc[i+1:]
	}
	return desc
}

// clusterEndpoint is a single seed derived from a redis:// URI when no
// explicit cluster node list was configured.
type clusterEndpoint struct {
	addr     string
	username string
	password string
	tls      *tls.Config
}

//nolint:ireturn
func newClusterClient(cfg config.RedisConfig) (redis.UniversalClient, string, error) {
	opts := &redis.ClusterOptions{
		Addrs:    normalizeAddrs(cfg.ClusterNodes),
		Password: cfg.Password,
	}

	if len(opts.Addrs) == 0 {
		ep, err := clusterSeedFromURI(cfg.URI, cfg.Password)
		if err != nil {
			return nil, "", err
		}
		if ep.addr != "" {
			opts.Addrs = []string{ep.addr}
			opts.Username = ep.username
			opts.Password = ep.password
			opts.TLSConfig = ep.tls
		}
	}
	if len(opts.Addrs) == 0 {
		return nil, "", errors.New("redis cluster configuration requires at least one address")
	}

	return redis.NewClusterClient(opts), "cluster:" + strings.Join(opts.Addrs, ","), nil
}

//nolint:ireturn
func newSentinelClient(cfg config.RedisConfig) (redis.UniversalClient, string, error) {
	if len(cfg.SentinelNodes) == 0 {
		return nil, "", errors.New("redis sentinel configuration requires at least one sentinel node")
	}

	client := redis.NewFailoverClient(&redis.FailoverOptions{
		MasterName:       cfg.SentinelMasterName,
		SentinelAddrs:    cfg.SentinelNodes,
		Password:         cfg.Password,
		SentinelPassword: cfg.SentinelPassword,
		DB:               0,
	})
	return client, "sentinel:" + cfg.SentinelMasterName, nil
}

//nolint:ireturn
func newDirectClient(cfg config.RedisConfig) (redis.UniversalClient, string, error) {
	uri := strings.TrimSpace(cfg.URI)
	if uri == "" {
		return nil, "", errors.New("redis direct configuration requires a URI")
	}

	if isRedisURL(uri) {
		opt, err := redis.ParseURL(uri)
		if err != nil {
			return nil, "", fmt.Errorf("parse redis url: %w", err)
		}
		return redis.NewClient(opt), opt.Addr, nil
	}

	return redis.NewClient(&redis.Options{
		Addr:     uri,
		Password: cfg.Password,
		DB:       0,
	}), uri, nil
}

func normalizeAddrs(raw []string) []string {
	addrs := make([]string, 0, len(raw))
	for _, addr := range raw {
		if trimmed := strings.TrimSpace(addr); trimmed != "" {
			addrs = append(addrs, trimmed)
		}
	}
	return addrs
}

// clusterSeedFromURI falls back to the direct URI as a single cluster seed.
// A bare host:port passes through untouched; redis:// URIs contribute their
// credentials and TLS settings too.
func clusterSeedFromURI(uri, defaultPassword string) (clusterEndpoint, error) {
	trimmed := strings.TrimSpace(uri)
	if trimmed == "" {
		return clusterEndpoint{password: defaultPassword}, nil
	}
	if !isRedisURL(trimmed) {
		return clusterEndpoint{addr: trimmed, password: defaultPassword}, nil
	}

	opt, err := redis.ParseURL(trimmed)
	if err != nil {
		return clusterEndpoint{}, fmt.Errorf("parse redis cluster url: %w", err)
	}

	ep := clusterEndpoint{
		addr:     opt.Addr,
		username: opt.Username,
		password: defaultPassword,
		tls:      opt.TLSConfig,
	}
	if opt.Password != "" {
		ep.password = opt.Password
	}
	return ep, nil
}

func isRedisURL(value string) bool {
	return strings.HasPrefix(value, "redis://") || strings.HasPrefix(value, "rediss://")
}

// RunMigrations applies the schema migrations and logs completion.
func RunMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	if err := data.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	if logger != nil {
		logger.InfoContext(ctx, "database migrations completed")
	}
	return nil
}
