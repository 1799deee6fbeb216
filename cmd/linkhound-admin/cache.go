package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache key prefixes owned by the ingest runner. Page bodies are keyed by a
// hash of the canonical URL; crawl dedup keys carry the job dedup key.
const (
	pageCacheKeyPrefix  = "page:body:"
	crawlSeenKeyPrefix  = "crawl:seen:"
	cacheScanBatchSize  = 100
	cacheDeleteBatchCap = 1000
)

type crawlCacheScope string

const (
	cacheScopePage crawlCacheScope = "page"
	cacheScopeSeen crawlCacheScope = "seen"
	cacheScopeAll  crawlCacheScope = "all"
)

func parseCrawlCacheScope(v string) (crawlCacheScope, error) {
	scope := crawlCacheScope(strings.ToLower(strings.TrimSpace(v)))
	switch scope {
	case cacheScopePage, cacheScopeSeen, cacheScopeAll:
		return scope, nil
	default:
		return "", fmt.Errorf("invalid cache scope %q (want page, seen, or all)", v)
	}
}

func (s crawlCacheScope) patterns() []string {
	switch s {
	case cacheScopePage:
		return []string{pageCacheKeyPrefix + "*"}
	case cacheScopeSeen:
		return []string{crawlSeenKeyPrefix + "*"}
	default:
		return []string{pageCacheKeyPrefix + "*", crawlSeenKeyPrefix + "*"}
	}
}

type listCrawlCacheOptions struct {
	Scope crawlCacheScope
	Limit int
}

type clearCrawlCacheOptions struct {
	Scope  crawlCacheScope
	DryRun bool
	Yes    bool
}

func runListCrawlCache(cmdCtx *commandContext, args []string) error {
	opts, err := parseListCrawlCacheFlags(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	redisClient, err := requireRedis(cmdCtx)
	if err != nil {
		return err
	}
	if redisClient == nil {
		return nil
	}
	defer func() {
		if closeErr := redisClient.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("redis close failed", "error", closeErr)
		}
	}()

	resp, err := inspectCrawlCache(&inspectCrawlCacheRequest{
		Ctx:     ctx,
		Client:  redisClient,
		Logger:  cmdCtx.Logger,
		Options: &opts,
	})
	if err != nil {
		return err
	}

	return printCrawlCacheEntries(resp, &opts)
}

func runClearCrawlCache(cmdCtx *commandContext, args []string) error {
	opts, err := parseClearCrawlCacheFlags(args)
	if err != nil {
		return err
	}
	if confirmErr := confirmAction(crawlCacheConfirmOptions{opts}, "clear crawl cache keys"); confirmErr != nil {
		return confirmErr
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	redisClient, err := requireRedis(cmdCtx)
	if err != nil {
		return err
	}
	if redisClient == nil {
		return nil
	}
	defer func() {
		if closeErr := redisClient.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("redis close failed", "error", closeErr)
		}
	}()

	stats, err := deleteCrawlCacheKeys(&crawlCacheDeleteRequest{
		Ctx:      ctx,
		Logger:   cmdCtx.Logger,
		Redis:    redisClient,
		Options:  opts,
		BatchCap: cacheDeleteBatchCap,
	})
	if err != nil {
		return err
	}

	if stats.total == 0 {
		if writeErr := writeln(os.Stdout, "No crawl cache keys found in Redis"); writeErr != nil {
			return fmt.Errorf("print crawl cache summary: %w", writeErr)
		}
		return nil
	}

	if opts.DryRun {
		if writeErr := writef(os.Stdout, "Dry-run: would delete %d/%d keys\n", stats.deleted, stats.total); writeErr != nil {
			return fmt.Errorf("print crawl cache dry run: %w", writeErr)
		}
		return nil
	}

	return printCrawlCacheDeleteSummary(stats)
}

func printCrawlCacheDeleteSummary(stats crawlCacheDeleteStats) error {
	if err := writef(os.Stdout, "Processed %d crawl cache keys\n", stats.total); err != nil {
		return fmt.Errorf("print crawl cache processed: %w", err)
	}
	if err := writef(os.Stdout, "Deleted %d/%d keys\n", stats.deleted, stats.total); err != nil {
		return fmt.Errorf("print crawl cache deleted: %w", err)
	}
	if stats.failures == 0 {
		return nil
	}

	if err := writef(os.Stdout, "Failed batches: %d\n", stats.failures); err != nil {
		return fmt.Errorf("print crawl cache failures: %w", err)
	}
	return nil
}

// requireRedis connects to Redis, reporting unavailability to the operator
// without treating it as a command failure.
//
//nolint:ireturn // returning redis.UniversalClient keeps sentinel/cluster support flexible.
func requireRedis(cmdCtx *commandContext) (redis.UniversalClient, error) {
	client, err := maybeConnectRedis(cmdCtx.Logger, &cmdCtx.Config.Redis)
	if err != nil {
		if errors.Is(err, errRedisNotConfigured) {
			if writeErr := writeln(os.Stderr, "Redis is not configured; nothing to inspect"); writeErr != nil {
				return nil, fmt.Errorf("print redis availability: %w", writeErr)
			}
			return nil, nil
		}
		return nil, err
	}
	return client, nil
}

type inspectCrawlCacheRequest struct {
	Ctx     context.Context
	Client  redis.UniversalClient
	Logger  *slog.Logger
	Options *listCrawlCacheOptions
}

type crawlCacheEntry struct {
	Key   string
	Scope crawlCacheScope
	TTL   time.Duration
}

type inspectCrawlCacheResponse struct {
	Entries []crawlCacheEntry
	Total   int
}

func inspectCrawlCache(req *inspectCrawlCacheRequest) (inspectCrawlCacheResponse, error) {
	if req == nil || req.Options == nil {
		return inspectCrawlCacheResponse{}, nil
	}

	collector := crawlCacheCollector{limit: req.Options.Limit}
	for _, pattern := range req.Options.Scope.patterns() {
		if req.Logger != nil {
			req.Logger.Info("scanning redis", "pattern", pattern)
		}
		if err := collector.scanPattern(req, pattern); err != nil {
			return inspectCrawlCacheResponse{}, err
		}
		if collector.truncated {
			break
		}
	}
	return collector.result(), nil
}

type crawlCacheCollector struct {
	entries   []crawlCacheEntry
	total     int
	limit     int
	truncated bool
}

func (c *crawlCacheCollector) scanPattern(req *inspectCrawlCacheRequest, pattern string) error {
	if req == nil {
		return errors.New("crawl cache request is required")
	}
	iter := req.Client.Scan(req.Ctx, 0, pattern, cacheScanBatchSize).Iterator()
	for iter.Next(req.Ctx) {
		if err := c.addKey(req, iter.Val()); err != nil {
			return err
		}
		if c.truncated {
			break
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}
	return nil
}

func (c *crawlCacheCollector) addKey(req *inspectCrawlCacheRequest, key string) error {
	c.total++
	if c.limit > 0 && len(c.entries) >= c.limit {
		c.truncated = true
		return nil
	}

	ttl, err := req.Client.TTL(req.Ctx, key).Result()
	if err != nil {
		return fmt.Errorf("query redis ttl for key %q: %w", key, err)
	}

	c.entries = append(c.entries, crawlCacheEntry{
		Key:   key,
		Scope: scopeForCacheKey(key),
		TTL:   ttl,
	})
	return nil
}

func (c *crawlCacheCollector) result() inspectCrawlCacheResponse {
	sort.Slice(c.entries, func(i, j int) bool {
		if c.entries[i].Scope == c.entries[j].Scope {
			return c.entries[i].Key < c.entries[j].Key
		}
		return c.entries[i].Scope < c.entries[j].Scope
	})
	return inspectCrawlCacheResponse{
		Entries: c.entries,
		Total:   c.total,
	}
}

func scopeForCacheKey(key string) crawlCacheScope {
	if strings.HasPrefix(key, crawlSeenKeyPrefix) {
		return cacheScopeSeen
	}
	return cacheScopePage
}

func printCrawlCacheEntries(resp inspectCrawlCacheResponse, opts *listCrawlCacheOptions) error {
	if err := writef(os.Stdout, "\nCrawl cache entries"); err != nil {
		return fmt.Errorf("write crawl cache header: %w", err)
	}
	if opts.Limit > 0 {
		if err := writef(os.Stdout, " (showing up to %d)", opts.Limit); err != nil {
			return fmt.Errorf("write crawl cache limit: %w", err)
		}
	}
	if err := writeln(os.Stdout); err != nil {
		return fmt.Errorf("write crawl cache header newline: %w", err)
	}

	if len(resp.Entries) == 0 {
		if err := writeln(os.Stdout, "  (no keys matched)"); err != nil {
			return fmt.Errorf("write crawl cache empty message: %w", err)
		}
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if err := writeln(tw, "SCOPE\tTTL\tKEY"); err != nil {
		return fmt.Errorf("write crawl cache header row: %w", err)
	}
	for _, entry := range resp.Entries {
		if err := writef(
			tw,
			"%s\t%s\t%s\n",
			entry.Scope,
			renderTTL(entry.TTL),
			entry.Key,
		); err != nil {
			return fmt.Errorf("write crawl cache entry: %w", err)
		}
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flush crawl cache table: %w", err)
	}

	if err := writef(os.Stdout, "Total keys matched: %d\n", resp.Total); err != nil {
		return fmt.Errorf("write crawl cache total: %w", err)
	}
	if opts.Limit > 0 && resp.Total > len(resp.Entries) {
		if err := writeln(os.Stdout, "More keys available; increase --limit to view additional entries."); err != nil {
			return fmt.Errorf("write crawl cache more-keys message: %w", err)
		}
	}
	return nil
}

func renderTTL(d time.Duration) string {
	switch {
	case d == -1*time.Second:
		return "no expiry"
	case d == -2*time.Second:
		return "key missing"
	default:
		return d.String()
	}
}

type crawlCacheDeleteRequest struct {
	Ctx      context.Context
	Logger   *slog.Logger
	Redis    redis.UniversalClient
	Options  clearCrawlCacheOptions
	BatchCap int
}

type crawlCacheDeleteStats struct {
	total    int
	deleted  int64
	failures int
}

func deleteCrawlCacheKeys(req *crawlCacheDeleteRequest) (crawlCacheDeleteStats, error) {
	batchCap := req.BatchCap
	if batchCap <= 0 {
		batchCap = cacheDeleteBatchCap
	}

	stats := crawlCacheDeleteStats{}
	for _, pattern := range req.Options.Scope.patterns() {
		if err := req.deleteKeysForPattern(pattern, &stats, batchCap); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

func (req *crawlCacheDeleteRequest) deleteKeysForPattern(
	pattern string,
	stats *crawlCacheDeleteStats,
	batchCap int,
) error {
	if req.Logger != nil {
		req.Logger.Info("scanning redis", "pattern", pattern, "dry_run", req.Options.DryRun)
	}

	iter := req.Redis.Scan(req.Ctx, 0, pattern, cacheScanBatchSize).Iterator()
	batch := make([]string, 0, batchCap)

	for iter.Next(req.Ctx) {
		stats.total++
		batch = append(batch, iter.Val())

		if len(batch) == batchCap {
			flushCrawlCacheBatch(req, batch, stats)
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}

	flushCrawlCacheBatch(req, batch, stats)
	return nil
}

func flushCrawlCacheBatch(req *crawlCacheDeleteRequest, batch []string, stats *crawlCacheDeleteStats) {
	if len(batch) == 0 {
		return
	}
	if req.Options.DryRun {
		stats.deleted += int64(len(batch))
		if req.Logger != nil {
			req.Logger.Info("dry-run skipping crawl cache delete", "count", len(batch))
		}
		return
	}
	n, delErr := req.Redis.Del(req.Ctx, batch...).Result()
	if delErr != nil {
		stats.failures++
		if req.Logger != nil {
			req.Logger.Error(
				"failed to delete crawl cache keys",
				"count",
				len(batch),
				"error",
				delErr,
			)
		}
		if err := writef(os.Stdout, "Failed to delete %d keys: %v\n", len(batch), delErr); err != nil &&
			req.Logger != nil {
			req.Logger.Error("stdout write for crawl cache delete failure failed", "error", err)
		}
		return
	}
	stats.deleted += n
}

type crawlCacheConfirmOptions struct {
	opts clearCrawlCacheOptions
}

func (c crawlCacheConfirmOptions) IsDryRun() bool { return c.opts.DryRun }
func (c crawlCacheConfirmOptions) IsYes() bool    { return c.opts.Yes }
func (c crawlCacheConfirmOptions) GetWarning() string {
	return "WARNING: this will remove cached page bodies and crawl dedup keys; the next runs will refetch every page."
}

func (c crawlCacheConfirmOptions) GetTarget() string {
	if c.opts.Scope == cacheScopeAll {
		return ""
	}
	return fmt.Sprintf("scope %q", c.opts.Scope)
}

func parseListCrawlCacheFlags(args []string) (listCrawlCacheOptions, error) {
	fs := flag.NewFlagSet("list-crawl-cache", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	scopeFlag := fs.String("scope", string(cacheScopeAll), "Key scope to inspect (page, seen, all)")
	limitFlag := fs.Int("limit", 20, "Maximum keys to display (0 for unlimited)")

	if err := fs.Parse(args); err != nil {
		return listCrawlCacheOptions{}, err
	}

	scope, err := parseCrawlCacheScope(*scopeFlag)
	if err != nil {
		return listCrawlCacheOptions{}, err
	}
	if *limitFlag < 0 {
		return listCrawlCacheOptions{}, errors.New("--limit must be >= 0")
	}

	return listCrawlCacheOptions{Scope: scope, Limit: *limitFlag}, nil
}

func parseClearCrawlCacheFlags(args []string) (clearCrawlCacheOptions, error) {
	fs := flag.NewFlagSet("clear-crawl-cache", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts clearCrawlCacheOptions
	scopeFlag := fs.String("scope", string(cacheScopeAll), "Key scope to clear (page, seen, all)")
	fs.BoolVar(&opts.DryRun, "dry-run", false, "Print actions without executing")
	fs.BoolVar(&opts.Yes, "yes", false, "Skip confirmation prompt")

	if err := fs.Parse(args); err != nil {
		return clearCrawlCacheOptions{}, err
	}

	scope, err := parseCrawlCacheScope(*scopeFlag)
	if err != nil {
		return clearCrawlCacheOptions{}, err
	}
	opts.Scope = scope

	return opts, nil
}
