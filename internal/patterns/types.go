package patterns

// Catalog is one gate's pattern file. Patterns preserve their YAML names;
// environment_mapping is meaningful for Gate 2 only. PatternOrder records
// file order: the engine's "first valid wins" rule depends on it.
type Catalog struct {
	Patterns           map[string]*Pattern `yaml:"patterns"`
	PatternOrder       []string            `yaml:"-"`
	EnvironmentMapping map[string][]string `yaml:"environment_mapping,omitempty"`
}

// Pattern is one entry in a catalog. Exactly one of Conditions, Variants or
// EnvironmentConditions carries the evaluable content:
//
//   - Conditions: the pattern is evaluated directly.
//   - Variants: each named variant is evaluated in turn (Gate 1 and 3).
//   - EnvironmentConditions: variant keyed by Gate 1 environment (Gate 2).
type Pattern struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// Direction tags the signal side a Gate 3 trigger implies ("buy" or
	// "sell"). Optional; substring inference on the pattern name is the
	// fallback.
	Direction string `yaml:"direction,omitempty"`

	// AllowedEnvironments restricts a Gate 3 pattern to specific Gate 1
	// results. Empty means unrestricted.
	AllowedEnvironments []string `yaml:"allowed_environments,omitempty"`

	MinConfidence *float64 `yaml:"min_confidence,omitempty"`

	Conditions            []*Condition        `yaml:"conditions,omitempty"`
	RequiredConditions    []string            `yaml:"required_conditions,omitempty"`
	Variants              map[string]*Variant `yaml:"variants,omitempty"`
	VariantOrder          []string            `yaml:"-"`
	EnvironmentConditions map[string]*Variant `yaml:"environment_conditions,omitempty"`
	EnvironmentOrder      []string            `yaml:"-"`
}

// Variant is a named condition set inside a pattern.
type Variant struct {
	Description        string       `yaml:"description,omitempty"`
	Direction          string       `yaml:"direction,omitempty"`
	MinConfidence      *float64     `yaml:"min_confidence,omitempty"`
	Conditions         []*Condition `yaml:"conditions"`
	RequiredConditions []string     `yaml:"required_conditions,omitempty"`
}

// Condition is one declarative check against the indicator snapshot.
type Condition struct {
	Name      string `yaml:"name"`
	Indicator string `yaml:"indicator"`
	Operator  string `yaml:"operator"`

	// Reference names another indicator; Value is a literal fallback. A
	// scalar or a 2-element list (between / not_between).
	Reference string      `yaml:"reference,omitempty"`
	Value     interface{} `yaml:"value,omitempty"`

	Timeframe       string   `yaml:"timeframe,omitempty"` // defaults to "1d"
	Multiplier      *float64 `yaml:"multiplier,omitempty"`
	Tolerance       *float64 `yaml:"tolerance,omitempty"`
	Periods         int      `yaml:"periods,omitempty"`
	LookbackPeriods int      `yaml:"lookback_periods,omitempty"`
	Weight          *float64 `yaml:"weight,omitempty"`
}

// validOperators is the closed operator set a catalog may use.
var validOperators = map[string]bool{
	">": true, "<": true, ">=": true, "<=": true, "==": true, "!=": true,
	"between": true, "not_between": true,
	"all_above": true, "all_below": true,
	"any_above": true, "any_below": true,
	"near": true, "engulfs": true, "breaks": true,
	"oscillates_around":      true,
	"was_consistently_above": true,
	"was_consistently_below": true,
}
