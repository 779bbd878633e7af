package discovery

import (
	"context"
	"testing"

	"github.com/use-agent/webtest/browser"
	"github.com/use-agent/webtest/runspec"
)

func newFake(pageHTML string) *browser.FakeDriver {
	drv := browser.NewFakeDriver()
	drv.PageHTML = pageHTML
	drv.URL = "https://example.test/app"
	return drv
}

func TestDiscover_Tier1AriaLabel(t *testing.T) {
	drv := newFake(`<html><body><input aria-label="Login" id="login-input"></body></html>`)
	eng := New(DefaultConfig())

	disc, err := eng.Discover(context.Background(), drv, runspec.Intent{
		ElementLabel: "Login",
		Action:       runspec.ActionFill,
	})
	if err != nil {
		t.Fatalf("Discover error = %v", err)
	}
	if disc == nil {
		t.Fatal("expected a discovery, got nil")
	}
	if disc.Strategy != runspec.Tier1AriaLabel {
		t.Errorf("Strategy = %v, want Tier1AriaLabel", disc.Strategy)
	}
	if !disc.Stable {
		t.Error("tier 1 discoveries should be marked stable")
	}
	want := `input[aria-label="Login"]`
	if disc.Selector != want {
		t.Errorf("Selector = %q, want %q", disc.Selector, want)
	}
}

func TestDiscover_NotFound(t *testing.T) {
	drv := newFake(`<html><body><input aria-label="Login" id="login-input"></body></html>`)
	eng := New(DefaultConfig())

	disc, err := eng.Discover(context.Background(), drv, runspec.Intent{
		ElementLabel: "Password",
		Action:       runspec.ActionFill,
	})
	if err != nil {
		t.Fatalf("Discover error = %v", err)
	}
	if disc != nil {
		t.Fatalf("expected no discovery, got %+v", disc)
	}
}

func TestDiscover_FallsThroughToPlaceholder(t *testing.T) {
	drv := newFake(`<html><body><input placeholder="Email address"></body></html>`)
	eng := New(DefaultConfig())

	disc, err := eng.Discover(context.Background(), drv, runspec.Intent{
		ElementLabel: "Email Address",
		Action:       runspec.ActionFill,
	})
	if err != nil {
		t.Fatalf("Discover error = %v", err)
	}
	if disc == nil {
		t.Fatal("expected a discovery, got nil")
	}
	if disc.Strategy != runspec.Tier4Placeholder {
		t.Errorf("Strategy = %v, want Tier4Placeholder", disc.Strategy)
	}
}

func TestDiscover_FillRejectsButton(t *testing.T) {
	drv := newFake(`<html><body><button aria-label="Search">Search</button></body></html>`)
	eng := New(DefaultConfig())

	disc, err := eng.Discover(context.Background(), drv, runspec.Intent{
		ElementLabel: "Search",
		Action:       runspec.ActionFill,
	})
	if err != nil {
		t.Fatalf("Discover error = %v", err)
	}
	if disc != nil {
		t.Fatalf("expected fill action to reject a button, got %+v", disc)
	}
}

func TestDiscover_Ordinal(t *testing.T) {
	drv := newFake(`<html><body>
		<button aria-label="Remove">1</button>
		<button aria-label="Remove">2</button>
	</body></html>`)
	eng := New(DefaultConfig())

	ordinal := 1
	disc, err := eng.Discover(context.Background(), drv, runspec.Intent{
		ElementLabel: "Remove",
		Action:       runspec.ActionClick,
		Ordinal:      &ordinal,
	})
	if err != nil {
		t.Fatalf("Discover error = %v", err)
	}
	if disc == nil {
		t.Fatal("expected a discovery, got nil")
	}
	if disc.Warning != "" {
		t.Errorf("an explicit ordinal should not carry a non_unique warning, got %q", disc.Warning)
	}
}

func TestDiscover_CSSOverride(t *testing.T) {
	drv := newFake(`<html><body><div class="btn-primary">Go</div></body></html>`)
	drv.Elements[".btn-primary"] = browser.FakeElement{Count: 1, Visible: true, Enabled: true}
	eng := New(DefaultConfig())

	disc, err := eng.Discover(context.Background(), drv, runspec.Intent{
		ElementLabel: "css:.btn-primary",
		Action:       runspec.ActionClick,
	})
	if err != nil {
		t.Fatalf("Discover error = %v", err)
	}
	if disc == nil {
		t.Fatal("expected a discovery, got nil")
	}
	if disc.Strategy != runspec.StrategyOverride {
		t.Errorf("Strategy = %v, want StrategyOverride", disc.Strategy)
	}
	if disc.Selector != ".btn-primary" {
		t.Errorf("Selector = %q, want %q", disc.Selector, ".btn-primary")
	}
}

func TestResolveRegion_DefaultsToPage(t *testing.T) {
	drv := newFake(`<html><body></body></html>`)
	region, err := ResolveRegion(context.Background(), drv, "")
	if err != nil {
		t.Fatalf("ResolveRegion error = %v", err)
	}
	if region != "" {
		t.Errorf("region = %q, want empty (page scope)", region)
	}
}

func TestResolveRegion_PrefersVisibleDialog(t *testing.T) {
	drv := newFake(`<html><body></body></html>`)
	drv.Elements[`[role="dialog"]`] = browser.FakeElement{Count: 1, Visible: true}

	region, err := ResolveRegion(context.Background(), drv, "Checkout")
	if err != nil {
		t.Fatalf("ResolveRegion error = %v", err)
	}
	if region != `[role="dialog"]` {
		t.Errorf("region = %q, want dialog selector", region)
	}
}
