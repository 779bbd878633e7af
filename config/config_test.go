package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"MAX_HEAL_ROUNDS", "FAST_CACHE_TTL_SECONDS", "DURABLE_CACHE_RETENTION_DAYS",
		"CACHE_DRIFT_THRESHOLD_PCT", "DISCOVERY_PER_CALL_TIMEOUT_SECONDS", "ENABLE_MEMORY", "PROFILE_OVERRIDE",
	} {
		os.Unsetenv(key)
	}

	cfg := Load()

	if cfg.Heal.MaxRounds != 3 {
		t.Errorf("MaxRounds = %d, want 3", cfg.Heal.MaxRounds)
	}
	if cfg.Cache.FastTTL != time.Hour {
		t.Errorf("FastTTL = %v, want 1h", cfg.Cache.FastTTL)
	}
	if cfg.Cache.DurableRetention != 7*24*time.Hour {
		t.Errorf("DurableRetention = %v, want 168h", cfg.Cache.DurableRetention)
	}
	if cfg.Cache.DriftThresholdPct != 35.0 {
		t.Errorf("DriftThresholdPct = %v, want 35.0", cfg.Cache.DriftThresholdPct)
	}
	if cfg.Discovery.PerCallTimeout != 60*time.Second {
		t.Errorf("PerCallTimeout = %v, want 60s", cfg.Discovery.PerCallTimeout)
	}
	if !cfg.Memory.Enabled {
		t.Error("Memory.Enabled should default to true")
	}
	if cfg.Discovery.Profile != "" {
		t.Errorf("Profile = %q, want empty", cfg.Discovery.Profile)
	}
}

func TestLoad_Overrides(t *testing.T) {
	os.Setenv("MAX_HEAL_ROUNDS", "5")
	os.Setenv("CACHE_DRIFT_THRESHOLD_PCT", "50.5")
	os.Setenv("ENABLE_MEMORY", "false")
	os.Setenv("PROFILE_OVERRIDE", "STATIC")
	os.Setenv("SPA_DOMAINS", "app.example.com, crm.example.com")
	defer func() {
		os.Unsetenv("MAX_HEAL_ROUNDS")
		os.Unsetenv("CACHE_DRIFT_THRESHOLD_PCT")
		os.Unsetenv("ENABLE_MEMORY")
		os.Unsetenv("PROFILE_OVERRIDE")
		os.Unsetenv("SPA_DOMAINS")
	}()

	cfg := Load()

	if cfg.Heal.MaxRounds != 5 {
		t.Errorf("MaxRounds = %d, want 5", cfg.Heal.MaxRounds)
	}
	if cfg.Cache.DriftThresholdPct != 50.5 {
		t.Errorf("DriftThresholdPct = %v, want 50.5", cfg.Cache.DriftThresholdPct)
	}
	if cfg.Memory.Enabled {
		t.Error("Memory.Enabled should be false")
	}
	if cfg.Discovery.Profile != "STATIC" {
		t.Errorf("Profile = %q, want STATIC", cfg.Discovery.Profile)
	}
	want := []string{"app.example.com", "crm.example.com"}
	if len(cfg.Cache.SPADomains) != len(want) {
		t.Fatalf("SPADomains = %v, want %v", cfg.Cache.SPADomains, want)
	}
	for i := range want {
		if cfg.Cache.SPADomains[i] != want[i] {
			t.Errorf("SPADomains[%d] = %q, want %q", i, cfg.Cache.SPADomains[i], want[i])
		}
	}
}
