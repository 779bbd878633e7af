// Package config parses the fixed set of recognized options into an
// immutable struct at process start. The core never consults the
// environment mid-run; every component receives values copied out of this
// struct at construction time.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every recognized option.
type Config struct {
	Heal      HealConfig
	Cache     CacheConfig
	Discovery DiscoveryConfig
	Memory    MemoryConfig
	Log       LogConfig
}

// HealConfig bounds the Healer's retry budget.
type HealConfig struct {
	// MaxRounds is the per-step healing budget.
	MaxRounds int // default: 3
}

// CacheConfig controls both tiers of the Selector Cache.
type CacheConfig struct {
	// FastTTL is the session-scoped tier's per-key time-to-live.
	FastTTL time.Duration // default: 1h

	// DurableRetention bounds how far back a durable-tier read will look.
	DurableRetention time.Duration // default: 7 * 24h

	// DriftThresholdPct is the default percentage of differing digest
	// characters above which a cache hit is treated as drift.
	DriftThresholdPct float64 // default: 35.0

	// SPADriftThresholdPct replaces DriftThresholdPct on domains listed in
	// SPADomains when it is the larger of the two.
	SPADriftThresholdPct float64 // default: 75.0

	// SPADomains lists domain suffixes treated as SPA-heavy for both the
	// drift threshold and the Discovery readiness predicate.
	SPADomains []string
}

// DiscoveryConfig controls the Discovery Engine's timeout budget and
// success-token list (the latter is collaborator-supplied per O2).
type DiscoveryConfig struct {
	// PerCallTimeout bounds one discovery call's worst case.
	PerCallTimeout time.Duration // default: 60s

	// Profile holds PROFILE_OVERRIDE ("STATIC" or "DYNAMIC"). It is parsed
	// and stored only: no other package reads it, so it does not change
	// readiness waits or timeouts.
	Profile string

	// SuccessTokenSelectors is the opaque, collaborator-supplied list of CSS
	// selectors whose presence signals a completed SPA navigation (O2: the
	// core treats this list as opaque configuration, never hardcoding a
	// vendor-specific formula).
	SuccessTokenSelectors []string
}

// MemoryConfig is the master switch for the Selector Cache and Heal History.
type MemoryConfig struct {
	// Enabled toggles C2/C3 entirely. When false, both run in
	// always-miss/no-op mode with no store constructed.
	Enabled bool // default: true
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads every recognized option from the environment once. Call this
// exactly once at process start; nothing in the run pipeline re-reads the
// environment afterward.
func Load() *Config {
	return &Config{
		Heal: HealConfig{
			MaxRounds: envIntOr("MAX_HEAL_ROUNDS", 3),
		},
		Cache: CacheConfig{
			FastTTL:              envDurationSecondsOr("FAST_CACHE_TTL_SECONDS", time.Hour),
			DurableRetention:     envDurationDaysOr("DURABLE_CACHE_RETENTION_DAYS", 7*24*time.Hour),
			DriftThresholdPct:    envFloatOr("CACHE_DRIFT_THRESHOLD_PCT", 35.0),
			SPADriftThresholdPct: envFloatOr("CACHE_DRIFT_THRESHOLD_SPA_PCT", 75.0),
			SPADomains:           envSliceOr("SPA_DOMAINS", nil),
		},
		Discovery: DiscoveryConfig{
			PerCallTimeout:        envDurationSecondsOr("DISCOVERY_PER_CALL_TIMEOUT_SECONDS", 60*time.Second),
			Profile:               envOr("PROFILE_OVERRIDE", ""),
			SuccessTokenSelectors: envSliceOr("SPA_SUCCESS_TOKEN_SELECTORS", nil),
		},
		Memory: MemoryConfig{
			Enabled: envBoolOr("ENABLE_MEMORY", true),
		},
		Log: LogConfig{
			Level:  envOr("LOG_LEVEL", "info"),
			Format: envOr("LOG_FORMAT", "json"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// envDurationSecondsOr parses an integer-seconds env var, matching the
// seconds-suffixed option names of §6 (e.g. FAST_CACHE_TTL_SECONDS).
func envDurationSecondsOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return time.Duration(i) * time.Second
		}
	}
	return fallback
}

// envDurationDaysOr parses an integer-days env var (DURABLE_CACHE_RETENTION_DAYS).
func envDurationDaysOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return time.Duration(i) * 24 * time.Hour
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
