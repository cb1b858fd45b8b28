package deadline

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/turtacn/deadline-agent/internal/domain/calendar"
	"github.com/turtacn/deadline-agent/pkg/errors"
)

// celCostLimit caps the evaluation cost of an operator expression.
const celCostLimit = 100000

// DeadlineKind selects how a custom rule computes its deadline.
type DeadlineKind string

const (
	KindFixedAnnual  DeadlineKind = "fixed_annual"
	KindNextMonthDay DeadlineKind = "next_month_day"
	KindDays         DeadlineKind = "days"
	KindBusinessDays DeadlineKind = "business_days"
)

// CustomRuleSpec declares an operator rule. Expression is a CEL boolean
// over the variable `text`, which holds the lowercased, accent-folded input,
// for example `text.contains("imi") && text.contains("pagamento")`.
type CustomRuleSpec struct {
	ID         string       `json:"id" mapstructure:"id"`
	Label      string       `json:"label" mapstructure:"label"`
	Expression string       `json:"expression" mapstructure:"expression"`
	Kind       DeadlineKind `json:"kind" mapstructure:"kind"`
	Month      int          `json:"month,omitempty" mapstructure:"month"`
	Day        int          `json:"day,omitempty" mapstructure:"day"`
	Days       int          `json:"days,omitempty" mapstructure:"days"`
	Priority   string       `json:"priority,omitempty" mapstructure:"priority"`
	LegalBasis string       `json:"legal_basis,omitempty" mapstructure:"legal_basis"`
	Confidence string       `json:"confidence,omitempty" mapstructure:"confidence"`
}

// Validate checks the declarative part of the spec; the expression is
// checked at compile time.
func (s CustomRuleSpec) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return errors.New(errors.ErrCodeRuleInvalid, "custom rule id is required")
	}
	if strings.TrimSpace(s.Expression) == "" {
		return errors.New(errors.ErrCodeRuleInvalid, "custom rule expression is required").WithDetail(s.ID)
	}
	switch s.Kind {
	case KindFixedAnnual:
		if _, err := calendar.DateFromParts(2024, s.Month, s.Day); err != nil {
			return errors.Wrap(err, errors.ErrCodeRuleInvalid, "invalid month/day for "+s.ID)
		}
	case KindNextMonthDay:
		if s.Day < 1 || s.Day > 31 {
			return errors.New(errors.ErrCodeRuleInvalid, "day must be within 1..31").WithDetail(s.ID)
		}
	case KindDays, KindBusinessDays:
		if s.Days < 0 {
			return errors.New(errors.ErrCodeRuleInvalid, "days must not be negative").WithDetail(s.ID)
		}
	default:
		return errors.Newf(errors.ErrCodeRuleInvalid, "unknown deadline kind %q", s.Kind).WithDetail(s.ID)
	}
	if s.Priority != "" && !Priority(strings.ToLower(s.Priority)).IsValid() {
		return errors.Newf(errors.ErrCodeRuleInvalid, "unknown priority %q", s.Priority).WithDetail(s.ID)
	}
	if s.Confidence != "" && !Confidence(strings.ToLower(s.Confidence)).IsValid() {
		return errors.Newf(errors.ErrCodeRuleInvalid, "unknown confidence %q", s.Confidence).WithDetail(s.ID)
	}
	return nil
}

func (s CustomRuleSpec) compute(cal *calendar.Calendar) func(calendar.Date, match) (calendar.Date, error) {
	switch s.Kind {
	case KindFixedAnnual:
		return annualOn(time.Month(s.Month), s.Day)
	case KindNextMonthDay:
		return nextMonthOn(s.Day)
	case KindBusinessDays:
		n := s.Days
		return func(ref calendar.Date, _ match) (calendar.Date, error) {
			return cal.AddBusinessDays(ref, n)
		}
	default:
		n := s.Days
		return func(ref calendar.Date, _ match) (calendar.Date, error) {
			return ref.AddDays(n), nil
		}
	}
}

func newCELEnv() (*cel.Env, error) {
	return cel.NewEnv(cel.Variable("text", cel.StringType))
}

// compileCustomRules turns specs into table rows. Each expression is type
// checked to return bool.
func compileCustomRules(cal *calendar.Calendar, specs []CustomRuleSpec) ([]Rule, error) {
	env, err := newCELEnv()
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to create CEL environment")
	}

	seen := make(map[string]struct{}, len(specs))
	out := make([]Rule, 0, len(specs))
	for _, spec := range specs {
		if err := spec.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[spec.ID]; dup {
			return nil, errors.New(errors.ErrCodeRuleInvalid, "duplicate custom rule id").WithDetail(spec.ID)
		}
		seen[spec.ID] = struct{}{}

		ast, issues := env.Compile(spec.Expression)
		if issues != nil && issues.Err() != nil {
			return nil, errors.Wrap(issues.Err(), errors.ErrCodeRuleInvalid, "compile error in "+spec.ID)
		}
		if !ast.OutputType().IsExactType(cel.BoolType) {
			return nil, errors.Newf(errors.ErrCodeRuleInvalid, "expression of %s must return bool, got %s", spec.ID, ast.OutputType())
		}
		prg, err := env.Program(ast, cel.CostLimit(celCostLimit))
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeRuleInvalid, "program creation error in "+spec.ID)
		}

		label := spec.Label
		if label == "" {
			label = spec.ID
		}
		legal := spec.LegalBasis
		if legal == "" {
			legal = DefaultLegalBasis
		}
		out = append(out, Rule{
			ID:         spec.ID,
			Priority:   ParsePriority(spec.Priority, PriorityMedium),
			LegalBasis: legal,
			Confidence: ParseConfidence(spec.Confidence, ConfidenceMedium),
			Custom:     true,
			label:      staticLabel(label),
			trigger:    celTrigger(prg),
			compute:    spec.compute(cal),
		})
	}
	return out, nil
}

// celTrigger evaluates prg against the text. Evaluation errors and
// non-boolean results count as no match.
func celTrigger(prg cel.Program) func(string) (match, bool) {
	return func(text string) (match, bool) {
		out, _, err := prg.Eval(map[string]any{"text": text})
		if err != nil {
			return match{}, false
		}
		b, ok := out.Value().(bool)
		return match{}, ok && b
	}
}

// CheckExpression compiles expr in the custom-rule environment without
// registering it. Used by configuration validation and the CLI.
func CheckExpression(expr string) error {
	env, err := newCELEnv()
	if err != nil {
		return err
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return errors.Wrap(issues.Err(), errors.ErrCodeRuleInvalid, "compile error")
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return errors.New(errors.ErrCodeRuleInvalid, fmt.Sprintf("expression must return bool, got %s", ast.OutputType()))
	}
	return nil
}
