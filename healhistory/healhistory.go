// Package healhistory implements the Heal History store (C3): a
// per-(element, url_pattern, strategy) running record of healing outcomes
// that the Healer consults to prioritize which strategy to reprobe with
// first.
package healhistory

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/use-agent/webtest/storage"
	"github.com/use-agent/webtest/telemetry"
)

// StrategyStat is one strategy's aggregated outcome record.
type StrategyStat struct {
	Strategy      string
	SuccessRate   float64
	SuccessCount  int
	FailureCount  int
	AvgHealTimeMS float64
}

type recentOutcomesEntry struct {
	stats     []StrategyStat
	createdAt time.Time
}

const recentOutcomesTTL = 5 * time.Minute

// Store is the Heal History persistence layer, backed by the same SQLite
// database as the Selector Cache's durable tier.
type Store struct {
	store    *storage.Store
	recorder *telemetry.Recorder

	mu     sync.RWMutex
	recent map[string]*recentOutcomesEntry
}

// New builds a Store over the given durable store and telemetry recorder.
func New(store *storage.Store, recorder *telemetry.Recorder) *Store {
	return &Store{
		store:    store,
		recorder: recorder,
		recent:   make(map[string]*recentOutcomesEntry),
	}
}

// RecordOutcome upserts one healing attempt's outcome, recomputing the
// running mean of heal time in the same statement so concurrent writers
// can't race the read-modify-write.
func (s *Store) RecordOutcome(ctx context.Context, element, url, strategy string, success bool, healTimeMS int64) error {
	urlPattern := normalizeURL(url)

	successCount, failureCount := 0, 1
	if success {
		successCount, failureCount = 1, 0
	}

	_, err := s.store.Conn().ExecContext(ctx, `
		INSERT INTO heal_history (
			element_label, url_pattern, strategy,
			success_count, failure_count, avg_heal_time_ms, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, datetime('now'))
		ON CONFLICT (element_label, url_pattern, strategy) DO UPDATE SET
			success_count    = heal_history.success_count + excluded.success_count,
			failure_count    = heal_history.failure_count + excluded.failure_count,
			avg_heal_time_ms = (
				heal_history.avg_heal_time_ms * (heal_history.success_count + heal_history.failure_count)
				+ excluded.avg_heal_time_ms
			) / (heal_history.success_count + heal_history.failure_count + 1),
			updated_at = datetime('now')
	`, element, urlPattern, strategy, successCount, failureCount, float64(healTimeMS))
	if err != nil {
		return fmt.Errorf("healhistory: record outcome: %w", err)
	}

	if success {
		s.recorder.Inc(ctx, telemetry.HealSuccess)
	} else {
		s.recorder.Inc(ctx, telemetry.HealFailure)
	}
	s.recorder.Inc(ctx, telemetry.StrategyUsed)

	s.invalidateRecent(element, urlPattern)
	return nil
}

// BestStrategies returns up to topN strategies for this element/URL ordered
// by historical success rate, consulting a 5-minute cache before querying
// the durable store.
func (s *Store) BestStrategies(ctx context.Context, element, url string, topN int) ([]StrategyStat, error) {
	urlPattern := normalizeURL(url)
	key := element + "|" + urlPattern

	s.mu.RLock()
	cached, ok := s.recent[key]
	s.mu.RUnlock()
	if ok && time.Since(cached.createdAt) <= recentOutcomesTTL {
		if len(cached.stats) > topN {
			return cached.stats[:topN], nil
		}
		return cached.stats, nil
	}

	rows, err := s.store.Conn().QueryContext(ctx, `
		SELECT strategy, success_count, failure_count, avg_heal_time_ms
		FROM heal_history
		WHERE element_label = ? AND url_pattern = ?
	`, element, urlPattern)
	if err != nil {
		return nil, fmt.Errorf("healhistory: query best strategies: %w", err)
	}
	defer rows.Close()

	var stats []StrategyStat
	for rows.Next() {
		var stat StrategyStat
		var successCount, failureCount int
		if err := rows.Scan(&stat.Strategy, &successCount, &failureCount, &stat.AvgHealTimeMS); err != nil {
			return nil, fmt.Errorf("healhistory: scan strategy row: %w", err)
		}
		stat.SuccessCount = successCount
		stat.FailureCount = failureCount
		total := successCount + failureCount
		if total > 0 {
			stat.SuccessRate = float64(successCount) / float64(total) * 100
		}
		stats = append(stats, stat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("healhistory: iterate strategy rows: %w", err)
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].SuccessRate != stats[j].SuccessRate {
			return stats[i].SuccessRate > stats[j].SuccessRate
		}
		return stats[i].SuccessCount > stats[j].SuccessCount
	})

	if len(stats) > 0 {
		s.mu.Lock()
		s.recent[key] = &recentOutcomesEntry{stats: stats, createdAt: time.Now()}
		s.mu.Unlock()
	}

	if len(stats) > topN {
		return stats[:topN], nil
	}
	return stats, nil
}

// SuccessRate returns one element/URL/strategy triple's success rate.
func (s *Store) SuccessRate(ctx context.Context, element, url, strategy string) (float64, error) {
	urlPattern := normalizeURL(url)

	var successCount, failureCount int
	row := s.store.Conn().QueryRowContext(ctx, `
		SELECT success_count, failure_count
		FROM heal_history
		WHERE element_label = ? AND url_pattern = ? AND strategy = ?
	`, element, urlPattern, strategy)

	if err := row.Scan(&successCount, &failureCount); err != nil {
		if err == sql.ErrNoRows {
			return 0.0, nil
		}
		return 0.0, fmt.Errorf("healhistory: scan success rate: %w", err)
	}

	total := successCount + failureCount
	if total == 0 {
		return 0.0, nil
	}
	return float64(successCount) / float64(total) * 100, nil
}

func (s *Store) invalidateRecent(element, urlPattern string) {
	s.mu.Lock()
	delete(s.recent, element+"|"+urlPattern)
	s.mu.Unlock()
}

// normalizeURL mirrors the Selector Cache's URL normalization (kept as an
// unexported duplicate rather than a cross-package import: the two stores
// are independent collaborators in the source runtime and each owns its
// own copy of this rule).
func normalizeURL(url string) string {
	if i := strings.IndexByte(url, '?'); i >= 0 {
		url = url[:i]
	}

	trimmed := strings.TrimRight(url, "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) > 0 && isAllDigits(parts[len(parts)-1]) {
		parts[len(parts)-1] = "%"
		return strings.Join(parts, "/")
	}

	return url + "%"
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	_, err := strconv.Atoi(s)
	return err == nil
}
