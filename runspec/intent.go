package runspec

// Intent is the Discovery Engine's input: everything needed to turn a
// human-readable element label into a page selector. It is built fresh for
// every discovery attempt (initial or heal-round reprobe), never mutated in
// place.
type Intent struct {
	ElementLabel        string
	Action              Action
	Value               string
	Region              string
	Ordinal             *int
	ElementTypeHint     string
	PreferredStrategies []string
}

// IntentFromStep builds the base Intent for a step's first discovery
// attempt (no learned-strategy hints yet; those are added by the Healer on
// reprobe).
func IntentFromStep(step Step) Intent {
	return Intent{
		ElementLabel:    step.ElementLabel,
		Action:          step.Action,
		Value:           step.Value,
		Region:          step.Region,
		Ordinal:         step.Ordinal,
		ElementTypeHint: step.ElementTypeHint,
	}
}

// Strategy is the closed tagged-variant enumeration of discovery tiers plus
// the explicit override escape hatch. Deliberately not an interface: the
// ordered cascade and each tier's stability flag must be visible at the
// type level (Design Notes, Polymorphism).
type Strategy int

const (
	StrategyNone Strategy = iota
	Tier1AriaLabel
	Tier2AriaPlaceholder
	Tier3Name
	Tier4Placeholder
	Tier5LabelFor
	Tier6RoleName
	Tier7DataTestHook
	Tier8IDClass
	StrategyOverride
)

// Stable reports whether a discovery produced via this strategy is eligible
// for durable caching (I1/P1/P8).
func (s Strategy) Stable() bool {
	switch s {
	case Tier1AriaLabel, Tier2AriaPlaceholder, Tier3Name, Tier4Placeholder, Tier5LabelFor, Tier7DataTestHook:
		return true
	case StrategyOverride:
		// An override is taken verbatim after a presence check; it carries
		// no semantic-attribute evidence of its own, so it is never
		// admitted to the durable cache either — only tiers with an
		// attribute-level stability signal are.
		return false
	default:
		return false
	}
}

// String names a Strategy the way it is recorded in the run log and the
// Heal History store.
func (s Strategy) String() string {
	switch s {
	case Tier1AriaLabel:
		return "aria-label"
	case Tier2AriaPlaceholder:
		return "aria-placeholder"
	case Tier3Name:
		return "name"
	case Tier4Placeholder:
		return "placeholder"
	case Tier5LabelFor:
		return "label-for"
	case Tier6RoleName:
		return "role-name"
	case Tier7DataTestHook:
		return "data-testhook"
	case Tier8IDClass:
		return "id-class"
	case StrategyOverride:
		return "override"
	default:
		return "none"
	}
}

// Discovery is the result of a successful discovery attempt. A miss is
// represented as a nil *Discovery, per §4.4's "Exactly one of" post-condition.
type Discovery struct {
	Selector string
	Score    float64
	Strategy Strategy
	Stable   bool
	Warning  string
}
