// Package telemetry exposes the run pipeline's named counters over
// go.opentelemetry.io/otel/metric. With no MeterProvider configured by the
// host process, the SDK's built-in no-op provider is used, so the core runs
// fully instrumented-but-silent with zero caller wiring required.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// attr wraps a single KeyValue pair so call sites don't need to import the
// attribute package themselves for the common case of tagging a counter by
// element label or strategy name.
type attr struct {
	kv attribute.KeyValue
}

// StringAttr builds a string-valued attribute for Inc/Add.
func StringAttr(key, value string) attr {
	return attr{kv: attribute.String(key, value)}
}

// Counters is the fixed set of named counters emitted by the core (§6).
const (
	CacheHitFast            = "cache_hit_fast"
	CacheHitDurable         = "cache_hit_durable"
	CacheMiss               = "cache_miss"
	VolatileSelectorSkipped = "volatile_selector_skipped"
	DriftDetected           = "drift_detected"
	CacheInvalidated        = "cache_invalidated"
	HealSuccess             = "heal_success"
	HealFailure             = "heal_failure"
	StrategyUsed            = "strategy_used"
	StepsExecuted           = "steps_executed"
	RunsCreated             = "runs_created"
	RunsPassed              = "runs_passed"
	RunsFailed              = "runs_failed"
)

// Recorder holds a lazily built, mutex-guarded cache of Int64Counter
// instruments keyed by name, so every call site can just name a counter
// without threading instrument handles through the pipeline.
type Recorder struct {
	meter    metric.Meter
	counters map[string]metric.Int64Counter
	mu       sync.RWMutex
}

// NewRecorder builds a Recorder against the global MeterProvider under the
// given instrumentation scope name.
func NewRecorder(meterName string) *Recorder {
	return &Recorder{
		meter:    otel.Meter(meterName),
		counters: make(map[string]metric.Int64Counter),
	}
}

// Inc increments the named counter by 1. Instrument-creation failures are
// logged and otherwise swallowed: telemetry is never allowed to fail a run.
func (r *Recorder) Inc(ctx context.Context, name string, attrs ...attr) {
	r.Add(ctx, name, 1, attrs...)
}

// Add increments the named counter by the given delta.
func (r *Recorder) Add(ctx context.Context, name string, delta int64, attrs ...attr) {
	counter, err := r.counter(name)
	if err != nil {
		slog.Warn("telemetry: failed to create counter", "name", name, "error", err)
		return
	}
	opts := make([]metric.AddOption, 0, len(attrs))
	for _, a := range attrs {
		opts = append(opts, metric.WithAttributes(a.kv))
	}
	counter.Add(ctx, delta, opts...)
}

func (r *Recorder) counter(name string) (metric.Int64Counter, error) {
	r.mu.RLock()
	c, ok := r.counters[name]
	r.mu.RUnlock()
	if ok {
		return c, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok = r.counters[name]; ok {
		return c, nil
	}
	c, err := r.meter.Int64Counter(name)
	if err != nil {
		return nil, fmt.Errorf("create counter %s: %w", name, err)
	}
	r.counters[name] = c
	return c, nil
}
