package deadline

import (
	"github.com/turtacn/deadline-agent/internal/domain/calendar"
	"github.com/turtacn/deadline-agent/pkg/errors"
)

// DefaultMaxRelativeDays bounds the "N days" counts the relative rules accept.
const DefaultMaxRelativeDays = 36600

// Engine evaluates the ordered rule table. It is immutable after NewEngine
// returns and safe for concurrent use.
type Engine struct {
	calendar *calendar.Calendar
	rules    []Rule
}

type engineOptions struct {
	maxDays     int
	customRules []CustomRuleSpec
}

// EngineOption customizes NewEngine.
type EngineOption func(*engineOptions)

// WithMaxRelativeDays caps the counts extracted by the relative-day rules.
// Larger counts are ignored as if the phrase were absent.
func WithMaxRelativeDays(n int) EngineOption {
	return func(o *engineOptions) {
		if n > 0 {
			o.maxDays = n
		}
	}
}

// WithCustomRules appends operator-defined rules after the built-in table.
func WithCustomRules(specs ...CustomRuleSpec) EngineOption {
	return func(o *engineOptions) {
		o.customRules = append(o.customRules, specs...)
	}
}

// NewEngine builds the rule table over cal. It fails only when a custom rule
// does not compile.
func NewEngine(cal *calendar.Calendar, opts ...EngineOption) (*Engine, error) {
	if cal == nil {
		return nil, errors.InvalidParam("calendar is required")
	}
	o := engineOptions{maxDays: DefaultMaxRelativeDays}
	for _, opt := range opts {
		opt(&o)
	}

	rules := builtinRules(cal, o.maxDays)
	if len(o.customRules) > 0 {
		custom, err := compileCustomRules(cal, o.customRules)
		if err != nil {
			return nil, err
		}
		rules = append(rules, custom...)
	}
	return &Engine{calendar: cal, rules: rules}, nil
}

// Calendar returns the business-day calendar the engine resolves against.
func (e *Engine) Calendar() *calendar.Calendar { return e.calendar }

// Apply runs the table in order against text and returns the first match.
// The result carries the rule_based method and a zero ProcessedAt; callers
// stamp the time. It reports false when no rule fires.
func (e *Engine) Apply(text string, reference calendar.Date) (*Result, bool) {
	normalized := Normalize(text)
	for _, r := range e.rules {
		m, ok := r.trigger(normalized)
		if !ok {
			continue
		}
		d, err := r.compute(reference, m)
		if err != nil {
			continue
		}
		return &Result{
			Deadline:         datePtr(d),
			Rule:             r.label(m),
			RuleID:           r.ID,
			Priority:         r.Priority,
			LegalBasis:       r.LegalBasis,
			Confidence:       r.Confidence,
			ProcessingMethod: MethodRuleBased,
		}, true
	}
	return nil, false
}

// RuleInfo describes a table row for listings.
type RuleInfo struct {
	Order      int        `json:"order"`
	ID         string     `json:"id"`
	Rule       string     `json:"rule"`
	Priority   Priority   `json:"priority"`
	LegalBasis string     `json:"legal_basis"`
	Confidence Confidence `json:"confidence"`
	Custom     bool       `json:"custom"`
}

// Rules lists the table in evaluation order. Relative-day rules render with
// a literal "N".
func (e *Engine) Rules() []RuleInfo {
	out := make([]RuleInfo, 0, len(e.rules))
	for i, r := range e.rules {
		label := r.label(match{})
		if r.ID == RuleIDBusinessDays || r.ID == RuleIDCalendarDays {
			label = "N" + label[1:]
		}
		out = append(out, RuleInfo{
			Order:      i + 1,
			ID:         r.ID,
			Rule:       label,
			Priority:   r.Priority,
			LegalBasis: r.LegalBasis,
			Confidence: r.Confidence,
			Custom:     r.Custom,
		})
	}
	return out
}
