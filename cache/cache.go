// Package cache implements the dual-layer Selector Cache (C2): a fast,
// session-scoped, in-memory tier in front of a durable SQLite-backed tier,
// with DOM-drift detection and a stability-only admission policy.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/use-agent/webtest/simhash"
	"github.com/use-agent/webtest/storage"
	"github.com/use-agent/webtest/telemetry"
)

// Entry is one resolved selector as returned by a cache lookup.
type Entry struct {
	Selector     string
	Strategy     string
	Confidence   float64
	Stable       bool
	LastVerified time.Time
	domDigest    string
}

type fastEntry struct {
	entry     Entry
	createdAt time.Time
}

// Cache is the dual-tier store. It is safe for concurrent use.
type Cache struct {
	store    *storage.Store
	recorder *telemetry.Recorder
	fast     sync.Map // string -> *fastEntry

	fastTTL              time.Duration
	durableRetention     time.Duration
	driftThresholdPct    float64
	spaDriftThresholdPct float64
	spaDomains           []string
}

// Config configures a Cache. SPADomains are matched as suffixes against a
// URL's host; matching domains use the larger of SPADriftThresholdPct and
// DriftThresholdPct, mirroring the adaptive-threshold behavior the original
// applied to one particular SPA vendor but generalized to any caller-listed
// domain (§9 O2).
type Config struct {
	FastTTL              time.Duration
	DurableRetention     time.Duration
	DriftThresholdPct    float64
	SPADriftThresholdPct float64
	SPADomains           []string
}

// New builds a Cache over the given durable store and telemetry recorder.
// Passing a nil store disables the durable tier entirely (every call acts
// as if it always misses at that layer) while the fast tier keeps serving.
// With memory disabled (Config.Memory.Enabled == false, §6) cmd/webtest
// builds no Cache at all.
func New(store *storage.Store, recorder *telemetry.Recorder, cfg Config) *Cache {
	return &Cache{
		store:                store,
		recorder:             recorder,
		fastTTL:              cfg.FastTTL,
		durableRetention:     cfg.DurableRetention,
		driftThresholdPct:    cfg.DriftThresholdPct,
		spaDriftThresholdPct: cfg.SPADriftThresholdPct,
		spaDomains:           cfg.SPADomains,
	}
}

// Get performs the dual-layer lookup: fast tier, then durable tier, then
// miss. domDigest is the current region's tag-skeleton digest (see
// simhash.TagSkeletonDigest); passing "" disables drift checking for this
// call (the caller has no region markup to compare against yet).
func (c *Cache) Get(ctx context.Context, url, element, action, region, domDigest string, sessCtx SessionContext) (*Entry, bool) {
	urlPattern := normalizeURL(url)
	scope := sessionScope(sessCtx)
	key := fastKey(urlPattern, element, action, region, scope)

	if v, ok := c.fast.Load(key); ok {
		fe := v.(*fastEntry)
		if time.Since(fe.createdAt) <= c.fastTTL {
			if c.drifted(url, fe.entry.domDigest, domDigest) {
				c.recorder.Inc(ctx, telemetry.DriftDetected)
				c.invalidate(ctx, urlPattern, element, action, region, key)
				return nil, false
			}
			c.recorder.Inc(ctx, telemetry.CacheHitFast)
			entry := fe.entry
			return &entry, true
		}
		c.fast.Delete(key)
	}

	if c.store == nil {
		c.recorder.Inc(ctx, telemetry.CacheMiss)
		return nil, false
	}

	entry, digest, err := c.getDurable(ctx, urlPattern, element, action, region)
	if err != nil {
		slog.Warn("cache: durable lookup failed", "element", element, "error", err)
		c.recorder.Inc(ctx, telemetry.CacheMiss)
		return nil, false
	}
	if entry == nil {
		c.recorder.Inc(ctx, telemetry.CacheMiss)
		c.recordMissAndMaybeInvalidate(ctx, urlPattern, element, action, region, key)
		return nil, false
	}

	if c.drifted(url, digest, domDigest) {
		c.recorder.Inc(ctx, telemetry.DriftDetected)
		c.invalidate(ctx, urlPattern, element, action, region, key)
		return nil, false
	}

	c.recorder.Inc(ctx, telemetry.CacheHitDurable)
	entry.domDigest = digest
	c.fast.Store(key, &fastEntry{entry: *entry, createdAt: time.Now()})
	return entry, true
}

// Save admits a resolved selector to both tiers. Volatile selectors
// (stable == false) are rejected outright per the stability-only
// admission policy: caching an unstable locator does more harm than a
// fresh discovery every time.
func (c *Cache) Save(ctx context.Context, url, element, action, region string, entry Entry, domDigest string, sessCtx SessionContext) error {
	if !entry.Stable {
		c.recorder.Inc(ctx, telemetry.VolatileSelectorSkipped)
		return nil
	}

	urlPattern := normalizeURL(url)
	scope := sessionScope(sessCtx)
	key := fastKey(urlPattern, element, action, region, scope)

	entry.domDigest = domDigest
	entry.LastVerified = time.Now()
	c.fast.Store(key, &fastEntry{entry: entry, createdAt: time.Now()})

	if c.store == nil {
		return nil
	}

	_, err := c.store.Conn().ExecContext(ctx, `
		INSERT INTO selector_cache (
			url_pattern, element_label, action, region, selector, strategy,
			dom_digest, miss_count, created_at, last_hit_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, 0, datetime('now'), datetime('now'))
		ON CONFLICT (url_pattern, element_label, action, region) DO UPDATE SET
			selector    = excluded.selector,
			strategy    = excluded.strategy,
			dom_digest  = excluded.dom_digest,
			last_hit_at = datetime('now')
	`, urlPattern, element, action, region, entry.Selector, entry.Strategy, domDigest)
	if err != nil {
		return fmt.Errorf("cache: save selector: %w", err)
	}
	return nil
}

// invalidate deletes a key from both tiers and records the metric. Safe to
// call when the durable row may or may not exist.
func (c *Cache) invalidate(ctx context.Context, urlPattern, element, action, region, fastKeyStr string) {
	c.fast.Delete(fastKeyStr)
	if c.store != nil {
		_, err := c.store.Conn().ExecContext(ctx, `
			DELETE FROM selector_cache
			WHERE url_pattern = ? AND element_label = ? AND action = ? AND region = ?
		`, urlPattern, element, action, region)
		if err != nil {
			slog.Warn("cache: invalidate failed", "element", element, "error", err)
		}
	}
	c.recorder.Inc(ctx, telemetry.CacheInvalidated)
}

// recordMissAndMaybeInvalidate increments the durable row's miss_count and
// invalidates once it reaches 2 consecutive misses (drift suspected even
// without a DOM-hash comparison available).
func (c *Cache) recordMissAndMaybeInvalidate(ctx context.Context, urlPattern, element, action, region, fastKeyStr string) {
	if c.store == nil {
		return
	}

	var missCount int
	err := c.store.Conn().QueryRowContext(ctx, `
		UPDATE selector_cache
		SET miss_count = miss_count + 1
		WHERE url_pattern = ? AND element_label = ? AND action = ? AND region = ?
		RETURNING miss_count
	`, urlPattern, element, action, region).Scan(&missCount)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			slog.Warn("cache: increment miss count failed", "element", element, "error", err)
		}
		return
	}

	if missCount >= 2 {
		c.invalidate(ctx, urlPattern, element, action, region, fastKeyStr)
	}
}

func (c *Cache) getDurable(ctx context.Context, urlPattern, element, action, region string) (*Entry, string, error) {
	row := c.store.Conn().QueryRowContext(ctx, `
		SELECT selector, strategy, dom_digest, last_hit_at
		FROM selector_cache
		WHERE url_pattern = ? AND element_label = ? AND action = ? AND region = ?
		  AND last_hit_at > datetime('now', ?)
	`, urlPattern, element, action, region, fmt.Sprintf("-%d seconds", int(c.durableRetention.Seconds())))

	var (
		selector, strategy, digest, lastHitAt string
	)
	if err := row.Scan(&selector, &strategy, &digest, &lastHitAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", nil
		}
		return nil, "", err
	}

	lastVerified, _ := time.Parse("2006-01-02 15:04:05", lastHitAt)

	_, err := c.store.Conn().ExecContext(ctx, `
		UPDATE selector_cache
		SET miss_count = 0, last_hit_at = datetime('now')
		WHERE url_pattern = ? AND element_label = ? AND action = ? AND region = ?
	`, urlPattern, element, action, region)
	if err != nil {
		slog.Warn("cache: reset miss count failed", "element", element, "error", err)
	}

	return &Entry{
		Selector:     selector,
		Strategy:     strategy,
		Stable:       true,
		LastVerified: lastVerified,
	}, digest, nil
}

// drifted reports whether the stored digest and the caller's current digest
// differ by more than the domain-appropriate threshold. An empty stored or
// current digest means drift cannot be assessed, so no drift is reported.
func (c *Cache) drifted(url, storedDigest, currentDigest string) bool {
	if storedDigest == "" || currentDigest == "" {
		return false
	}

	threshold := c.driftThresholdPct
	for _, domain := range c.spaDomains {
		if domain != "" && hostSuffixMatch(url, domain) {
			if c.spaDriftThresholdPct > threshold {
				threshold = c.spaDriftThresholdPct
			}
			break
		}
	}

	return simhash.HashDistancePercent(storedDigest, currentDigest) > threshold
}

func hostSuffixMatch(url, domain string) bool {
	idx := -1
	if i := indexOf(url, "://"); i >= 0 {
		idx = i + 3
	}
	host := url
	if idx >= 0 {
		host = url[idx:]
	}
	if j := indexOf(host, "/"); j >= 0 {
		host = host[:j]
	}
	return len(host) >= len(domain) && host[len(host)-len(domain):] == domain
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
