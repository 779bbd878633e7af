package discovery

import (
	"context"

	"github.com/use-agent/webtest/browser"
)

// ResolveRegion works down the region-scoping ladder and returns a CSS
// selector prefix identifying the container subsequent discovery should
// search within, or "" to mean the whole page. An empty regionHint (the
// step names no region) always resolves to the whole page. Each rung is
// tried against the live driver; the first one that both exists and (for
// the dialog and form rungs) is visible wins.
func ResolveRegion(ctx context.Context, drv browser.Driver, regionHint string) (string, error) {
	if regionHint == "" {
		return "", nil
	}
	if regionHint != "" {
		named := `[role="dialog"][aria-label="` + cssAttrEscape(regionHint) + `"]`
		if n, err := drv.Count(ctx, named); err == nil && n > 0 {
			return named, nil
		}
		namedByHeading := `[role="dialog"]`
		if n, err := drv.Count(ctx, namedByHeading); err == nil && n > 0 {
			if visible, _ := drv.IsVisible(ctx, namedByHeading); visible {
				return namedByHeading, nil
			}
		}
	}

	dialog := `[role="dialog"]`
	if n, err := drv.Count(ctx, dialog); err == nil && n > 0 {
		if visible, _ := drv.IsVisible(ctx, dialog); visible {
			return dialog, nil
		}
	}

	for _, formSel := range []string{
		`[data-record-edit]`,
		`[role="main"] form`,
	} {
		if n, err := drv.Count(ctx, formSel); err == nil && n > 0 {
			if visible, _ := drv.IsVisible(ctx, formSel); visible {
				return formSel, nil
			}
		}
	}

	main := `[role="main"]`
	if n, err := drv.Count(ctx, main); err == nil && n > 0 {
		return main, nil
	}

	return "", nil
}
