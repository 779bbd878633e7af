// Package discovery implements the Discovery Engine (C4): turning an Intent
// into a live selector via an ordered, stability-first tier cascade, with
// region scoping, fuzzy label matching, and an explicit override escape
// hatch ahead of all eight tiers.
package discovery

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/use-agent/webtest/browser"
	"github.com/use-agent/webtest/runerr"
	"github.com/use-agent/webtest/runspec"
)

// Config bundles the Discovery Engine's tunables, copied out of
// config.DiscoveryConfig/config.CacheConfig at construction time.
type Config struct {
	SPADomains            []string
	SuccessTokenSelectors []string
	SettleDelay           time.Duration
}

// DefaultConfig mirrors config.Load()'s defaults for callers (mostly
// tests) that build an Engine without going through the full config
// package.
func DefaultConfig() Config {
	return Config{SettleDelay: 300 * time.Millisecond}
}

// Engine runs discovery against a single Driver for the lifetime of one
// run; it holds no state across runs.
type Engine struct {
	cfg Config
}

// New builds an Engine from cfg.
func New(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Discover resolves intent against the current page, returning a
// *runspec.Discovery on success or nil, nil when every tier (and any
// override) came up empty — never both, per §4.4's "exactly one of"
// post-condition.
func (e *Engine) Discover(ctx context.Context, drv browser.Driver, intent runspec.Intent) (*runspec.Discovery, error) {
	if err := e.preStabilize(ctx, drv); err != nil {
		return nil, runerr.Timeout("discovery: pre-stabilization wait failed", err)
	}

	if selector, isOverride, err := parseOverride(intent.ElementLabel); err != nil {
		return nil, runerr.Invalid("discovery: bad override", err)
	} else if isOverride {
		return e.resolveOverride(ctx, drv, selector)
	}

	region, err := ResolveRegion(ctx, drv, intent.Region)
	if err != nil {
		return nil, runerr.Timeout("discovery: region resolution failed", err)
	}

	regionHTML, err := drv.HTML(ctx, region)
	if err != nil {
		return nil, runerr.Timeout("discovery: region snapshot failed", err)
	}
	doc, err := parseSnapshot(regionHTML)
	if err != nil {
		return nil, runerr.Invalid("discovery: snapshot parse failed", err)
	}

	pattern, err := fuzzyPattern(intent.ElementLabel)
	if err != nil {
		return nil, runerr.Invalid("discovery: fuzzy pattern build failed", err)
	}

	all := collectCandidates(doc, nil)

	for _, tier := range e.cascade(all, intent, pattern) {
		result := tier.result
		matches := result.matches
		if intent.Ordinal != nil {
			if *intent.Ordinal < 0 || *intent.Ordinal >= len(matches) {
				continue
			}
			matches = matches[*intent.Ordinal : *intent.Ordinal+1]
		}
		if len(matches) == 0 {
			continue
		}

		winner := matches[0]
		warning := tier.warning
		if len(matches) > 1 && intent.Ordinal == nil {
			warning = "non_unique"
		}

		selector := result.selFor(winner, all)
		return &runspec.Discovery{
			Selector: scopedSelector(region, selector),
			Score:    result.score,
			Strategy: result.strategy,
			Stable:   result.strategy.Stable(),
			Warning:  warning,
		}, nil
	}

	return nil, nil
}

// scopedSelector prefixes selector with region as a descendant combinator,
// or returns it unscoped when region is "" (the whole-page fallback).
func scopedSelector(region, selector string) string {
	if region == "" {
		return selector
	}
	return region + " " + selector
}

type cascadeTier struct {
	result  tierResult
	warning string
}

// cascade runs every tier in §4.4's stability-first order against the same
// candidate snapshot. It always runs all eight win-or-lose; the caller
// stops at the first one with a usable match.
func (e *Engine) cascade(all []candidate, intent runspec.Intent, pattern *regexp.Regexp) []cascadeTier {
	out := make([]cascadeTier, 0, 8)
	for _, r := range runTier1Through4(all, intent, pattern) {
		out = append(out, cascadeTier{result: r})
	}
	out = append(out, cascadeTier{result: runTier5LabelFor(all, intent, pattern)})

	tier6, warning := runTier6RoleName(all, intent)
	out = append(out, cascadeTier{result: tier6, warning: warning})

	out = append(out, cascadeTier{result: runTier7DataTestHook(all, intent, pattern)})
	out = append(out, cascadeTier{result: runTier8IDClass(all, intent)})
	return out
}

// resolveOverride validates an override selector against a snapshot of the
// whole page first (cheap, no gate-timeout risk from a malformed selector
// hanging a live query), then confirms against the live driver, so a stale
// override fails as a miss rather than acting on an unintended match.
func (e *Engine) resolveOverride(ctx context.Context, drv browser.Driver, selector string) (*runspec.Discovery, error) {
	pageHTML, err := drv.HTML(ctx, "")
	if err == nil {
		if doc, perr := parseSnapshot(pageHTML); perr == nil {
			if n, cerr := checkOverridePresence(doc, selector); cerr == nil && n == 0 {
				return nil, nil
			}
		}
	}

	count, err := drv.Count(ctx, selector)
	if err != nil {
		return nil, runerr.Timeout("discovery: override count failed", err)
	}
	if count == 0 {
		return nil, nil
	}
	sel := selector
	if count > 1 {
		sel = selector + ordinalSep(0)
	}
	return &runspec.Discovery{
		Selector: sel,
		Score:    1.0,
		Strategy: runspec.StrategyOverride,
		Stable:   false,
	}, nil
}

// preStabilize waits for the DOM to settle before discovery starts
// probing it, then (on a configured SPA-heavy domain) additionally polls
// for one of the caller-supplied success-token selectors to appear.
func (e *Engine) preStabilize(ctx context.Context, drv browser.Driver) error {
	if err := drv.WaitForLoadState(ctx, e.cfg.SettleDelay); err != nil {
		return err
	}

	url, err := drv.CurrentURL(ctx)
	if err != nil {
		return err
	}
	if !e.isSPADomain(url) || len(e.cfg.SuccessTokenSelectors) == 0 {
		return nil
	}

	deadline := time.Now().Add(e.cfg.SettleDelay * 10)
	for time.Now().Before(deadline) {
		for _, sel := range e.cfg.SuccessTokenSelectors {
			if n, err := drv.Count(ctx, sel); err == nil && n > 0 {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
	return nil
}

func (e *Engine) isSPADomain(url string) bool {
	for _, domain := range e.cfg.SPADomains {
		if strings.Contains(url, domain) {
			return true
		}
	}
	return false
}
