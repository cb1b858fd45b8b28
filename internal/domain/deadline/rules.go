package deadline

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/turtacn/deadline-agent/internal/domain/calendar"
)

// Rule identifiers, stable across releases and used as metric labels.
const (
	RuleIDModelo22     = "modelo_22_irs"
	RuleIDIES          = "ies"
	RuleIDModelo30     = "modelo_30_retention"
	RuleIDIVAQuarterly = "iva_quarterly"
	RuleIDSAFT         = "saf_t"
	RuleIDDMR          = "dmr"
	RuleIDBusinessDays = "business_days_notice"
	RuleIDCalendarDays = "calendar_days_notice"
)

// Legal bases cited by the built-in rules.
const (
	LegalBasisCIRS       = "CIRS - Código do IRS"
	LegalBasisIES        = "CIRS - Informação Empresarial Simplificada"
	LegalBasisRetention  = "CIRS - Retenções na fonte"
	LegalBasisCIVA       = "CIVA - Código do IVA"
	LegalBasisSAFT       = "Portaria n.º 321-A/2007"
	LegalBasisLabourCode = "Código do Trabalho"
	LegalBasisCPPT       = "CPPT - Código de Procedimento e de Processo Tributário"
)

// match is what a rule trigger extracted from the text. Count is only used by
// the relative-day rules.
type match struct {
	Count int
}

// Rule is one row of the ordered detection table.
type Rule struct {
	ID         string
	Priority   Priority
	LegalBasis string
	Confidence Confidence
	Custom     bool

	// label renders the human-readable rule text for a match.
	label func(m match) string
	// trigger inspects normalized text.
	trigger func(text string) (match, bool)
	// compute resolves the deadline against the reference date.
	compute func(ref calendar.Date, m match) (calendar.Date, error)
}

// Label returns the rule text for a match count. Rules without a count
// ignore n.
func (r Rule) Label(n int) string { return r.label(match{Count: n}) }

func staticLabel(s string) func(match) string {
	return func(match) string { return s }
}

// ─────────────────────────────────────────────────────────────────────────────
// Triggers
// ─────────────────────────────────────────────────────────────────────────────

// phrases matches any of a set of whole-word phrases. Spaces inside a phrase
// match any run of whitespace.
type phrases []*regexp.Regexp

func anyOf(list ...string) phrases {
	out := make(phrases, 0, len(list))
	for _, p := range list {
		parts := strings.Fields(p)
		for i := range parts {
			parts[i] = regexp.QuoteMeta(parts[i])
		}
		out = append(out, regexp.MustCompile(`\b`+strings.Join(parts, `\s+`)+`\b`))
	}
	return out
}

func (p phrases) in(text string) bool {
	for _, re := range p {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

func when(p phrases) func(string) (match, bool) {
	return func(text string) (match, bool) { return match{}, p.in(text) }
}

// countBefore extracts the integer captured by re, bounded by max.
func countBefore(re *regexp.Regexp, max int) func(string) (match, bool) {
	return func(text string) (match, bool) {
		for _, g := range re.FindAllStringSubmatch(text, -1) {
			n, err := strconv.Atoi(g[1])
			if err != nil || n > max {
				continue
			}
			return match{Count: n}, true
		}
		return match{}, false
	}
}

var (
	businessDaysPattern = regexp.MustCompile(`\b(\d+)\s+dias?\s+(?:uteis|util)\b`)
	calendarDaysPattern = regexp.MustCompile(`\bprazo\s+(?:de\s+)?(\d+)\s+dias?\b`)
)

// ─────────────────────────────────────────────────────────────────────────────
// Deadline computations
// ─────────────────────────────────────────────────────────────────────────────

// annualOn returns month/day of the reference year, rolled to the following
// year when that date is not after the reference. A day past the end of the
// month (February 29 in a common year) becomes the month's last day.
func annualOn(month time.Month, day int) func(calendar.Date, match) (calendar.Date, error) {
	on := func(year int) calendar.Date {
		if day > calendar.DaysIn(year, month) {
			return calendar.LastDayOfMonth(year, month)
		}
		return calendar.Date{Year: year, Month: month, Day: day}
	}
	return func(ref calendar.Date, _ match) (calendar.Date, error) {
		d := on(ref.Year)
		if !d.After(ref) {
			d = on(ref.Year + 1)
		}
		return d, nil
	}
}

// nextMonthOn returns the given day of the month following the reference month.
func nextMonthOn(day int) func(calendar.Date, match) (calendar.Date, error) {
	return func(ref calendar.Date, _ match) (calendar.Date, error) {
		first := ref.FirstOfNextMonth()
		if day > calendar.DaysIn(first.Year, first.Month) {
			return calendar.LastDayOfMonth(first.Year, first.Month), nil
		}
		return calendar.Date{Year: first.Year, Month: first.Month, Day: day}, nil
	}
}

var quarterEnds = []struct {
	month time.Month
	day   int
}{
	{time.March, 31}, {time.June, 30}, {time.September, 30}, {time.December, 31},
}

// nextQuarterEnd returns the first quarter end strictly after the reference.
func nextQuarterEnd(ref calendar.Date, _ match) (calendar.Date, error) {
	for _, q := range quarterEnds {
		d := calendar.Date{Year: ref.Year, Month: q.month, Day: q.day}
		if d.After(ref) {
			return d, nil
		}
	}
	return calendar.Date{Year: ref.Year + 1, Month: time.March, Day: 31}, nil
}

func calendarDaysAfter(ref calendar.Date, m match) (calendar.Date, error) {
	return ref.AddDays(m.Count), nil
}

func businessDaysAfter(cal *calendar.Calendar) func(calendar.Date, match) (calendar.Date, error) {
	return func(ref calendar.Date, m match) (calendar.Date, error) {
		return cal.AddBusinessDays(ref, m.Count)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Built-in table
// ─────────────────────────────────────────────────────────────────────────────

// builtinRules returns the fixed detection order. The business-days rule must
// precede the calendar-days rule because "15 dias uteis" also reads as days.
func builtinRules(cal *calendar.Calendar, maxDays int) []Rule {
	irs := anyOf("irs")
	irsContext := anyOf("modelo", "deadline")
	modelo22 := anyOf("modelo 22")
	iva := anyOf("iva")
	declaration := anyOf("declaracao", "declaracoes")

	return []Rule{
		{
			ID:         RuleIDModelo22,
			Priority:   PriorityHigh,
			LegalBasis: LegalBasisCIRS,
			Confidence: ConfidenceHigh,
			label:      staticLabel("Modelo 22 - IRS deadline"),
			trigger: func(text string) (match, bool) {
				return match{}, modelo22.in(text) || (irs.in(text) && irsContext.in(text))
			},
			compute: annualOn(time.July, 31),
		},
		{
			ID:         RuleIDIES,
			Priority:   PriorityHigh,
			LegalBasis: LegalBasisIES,
			Confidence: ConfidenceHigh,
			label:      staticLabel("IES deadline"),
			trigger:    when(anyOf("ies")),
			compute:    annualOn(time.April, 15),
		},
		{
			ID:         RuleIDModelo30,
			Priority:   PriorityMedium,
			LegalBasis: LegalBasisRetention,
			Confidence: ConfidenceHigh,
			label:      staticLabel("Modelo 30 - Monthly retention deadline"),
			trigger:    when(anyOf("modelo 30", "retencoes na fonte", "retencao na fonte", "retencao", "retencoes")),
			compute:    nextMonthOn(20),
		},
		{
			ID:         RuleIDIVAQuarterly,
			Priority:   PriorityHigh,
			LegalBasis: LegalBasisCIVA,
			Confidence: ConfidenceHigh,
			label:      staticLabel("IVA quarterly declaration"),
			trigger: func(text string) (match, bool) {
				return match{}, iva.in(text) && declaration.in(text)
			},
			compute: nextQuarterEnd,
		},
		{
			ID:         RuleIDSAFT,
			Priority:   PriorityMedium,
			LegalBasis: LegalBasisSAFT,
			Confidence: ConfidenceHigh,
			label:      staticLabel("SAF-T monthly deadline"),
			trigger:    when(anyOf("saf-t")),
			compute:    nextMonthOn(25),
		},
		{
			ID:         RuleIDDMR,
			Priority:   PriorityMedium,
			LegalBasis: LegalBasisLabourCode,
			Confidence: ConfidenceHigh,
			label:      staticLabel("DMR monthly deadline"),
			trigger:    when(anyOf("dmr", "declaracao mensal de remuneracoes", "declaracao mensal")),
			compute:    nextMonthOn(10),
		},
		{
			ID:         RuleIDBusinessDays,
			Priority:   PriorityUrgent,
			LegalBasis: LegalBasisCPPT,
			Confidence: ConfidenceHigh,
			label:      func(m match) string { return fmt.Sprintf("%d working days from notification", m.Count) },
			trigger:    countBefore(businessDaysPattern, maxDays),
			compute:    businessDaysAfter(cal),
		},
		{
			ID:         RuleIDCalendarDays,
			Priority:   PriorityUrgent,
			LegalBasis: LegalBasisCPPT,
			Confidence: ConfidenceHigh,
			label:      func(m match) string { return fmt.Sprintf("%d days from notification", m.Count) },
			trigger:    countBefore(calendarDaysPattern, maxDays),
			compute:    calendarDaysAfter,
		},
	}
}
