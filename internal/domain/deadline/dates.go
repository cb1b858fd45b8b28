package deadline

import (
	"regexp"
	"strconv"
	"time"

	"github.com/turtacn/deadline-agent/internal/domain/calendar"
)

// Portuguese month names, full and abbreviated, accented and folded.
var monthNames = map[string]time.Month{
	"janeiro": time.January, "jan": time.January,
	"fevereiro": time.February, "fev": time.February,
	"março": time.March, "marco": time.March, "mar": time.March,
	"abril": time.April, "abr": time.April,
	"maio": time.May, "mai": time.May,
	"junho": time.June, "jun": time.June,
	"julho": time.July, "jul": time.July,
	"agosto": time.August, "ago": time.August,
	"setembro": time.September, "set": time.September,
	"outubro": time.October, "out": time.October,
	"novembro": time.November, "nov": time.November,
	"dezembro": time.December, "dez": time.December,
}

// LookupMonth resolves a Portuguese month word (case and accents ignored).
func LookupMonth(word string) (time.Month, bool) {
	m, ok := monthNames[Normalize(word)]
	return m, ok
}

// datePattern is one recognized spelling of a date. resolve turns the
// submatches into a date and reports false for malformed groups.
type datePattern struct {
	name    string
	re      *regexp.Regexp
	resolve func(groups []string) (calendar.Date, bool)
}

func dayMonthNameYear(g []string) (calendar.Date, bool) {
	m, ok := LookupMonth(g[2])
	if !ok {
		return calendar.Date{}, false
	}
	return fromNumbers(g[3], strconv.Itoa(int(m)), g[1])
}

func fromNumbers(year, month, day string) (calendar.Date, bool) {
	y, err := strconv.Atoi(year)
	if err != nil {
		return calendar.Date{}, false
	}
	m, err := strconv.Atoi(month)
	if err != nil {
		return calendar.Date{}, false
	}
	d, err := strconv.Atoi(day)
	if err != nil {
		return calendar.Date{}, false
	}
	date, err := calendar.DateFromParts(y, m, d)
	if err != nil {
		return calendar.Date{}, false
	}
	return date, true
}

// datePatterns are tried in declaration order; the first yielding an
// accepted candidate wins.
var datePatterns = []datePattern{
	{
		name:    "until_day_month_year",
		re:      regexp.MustCompile(`\bate\s+(\d{1,2})\s+de\s+([a-z]+)\s+de\s+(\d{4})\b`),
		resolve: dayMonthNameYear,
	},
	{
		name:    "day_month_year",
		re:      regexp.MustCompile(`\b(\d{1,2})\s+de\s+([a-z]+)\s+de\s+(\d{4})\b`),
		resolve: dayMonthNameYear,
	},
	{
		name: "slash_dmy",
		re:   regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`),
		resolve: func(g []string) (calendar.Date, bool) {
			return fromNumbers(g[3], g[2], g[1])
		},
	},
	{
		name: "iso_ymd",
		re:   regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})\b`),
		resolve: func(g []string) (calendar.Date, bool) {
			return fromNumbers(g[1], g[2], g[3])
		},
	},
	{
		name: "dash_dmy",
		re:   regexp.MustCompile(`\b(\d{1,2})-(\d{1,2})-(\d{4})\b`),
		resolve: func(g []string) (calendar.Date, bool) {
			return fromNumbers(g[3], g[2], g[1])
		},
	},
	{
		name: "month_year",
		re:   regexp.MustCompile(`\b([a-z]+)\s+(?:de\s+)?(\d{4})\b`),
		resolve: func(g []string) (calendar.Date, bool) {
			m, ok := LookupMonth(g[1])
			if !ok {
				return calendar.Date{}, false
			}
			y, err := strconv.Atoi(g[2])
			if err != nil || y < 1 {
				return calendar.Date{}, false
			}
			return calendar.LastDayOfMonth(y, m), true
		},
	},
}

// DateMention is a date found in free text together with the pattern that
// produced it.
type DateMention struct {
	Date    calendar.Date
	Pattern string
	Text    string
}

// FindDateMention scans text for explicit dates strictly after reference.
// It reports false when nothing qualifies; malformed candidates are skipped.
func FindDateMention(text string, reference calendar.Date) (DateMention, bool) {
	normalized := Normalize(text)
	for _, p := range datePatterns {
		for _, groups := range p.re.FindAllStringSubmatch(normalized, -1) {
			d, ok := p.resolve(groups)
			if !ok || !d.After(reference) {
				continue
			}
			return DateMention{Date: d, Pattern: p.name, Text: groups[0]}, true
		}
	}
	return DateMention{}, false
}

// ParseDateMentions is FindDateMention returning only the date.
func ParseDateMentions(text string, reference calendar.Date) (calendar.Date, bool) {
	m, ok := FindDateMention(text, reference)
	return m.Date, ok
}

// Metadata attached to deadlines taken from an explicit date mention.
const (
	ExplicitDateRule   = "Explicit date mention"
	ExplicitDateRuleID = "explicit_date"
)

// ExplicitDateResult wraps a parsed mention in a Result.
func ExplicitDateResult(m DateMention) *Result {
	return &Result{
		Deadline:         datePtr(m.Date),
		Rule:             ExplicitDateRule,
		RuleID:           ExplicitDateRuleID,
		Priority:         PriorityMedium,
		LegalBasis:       DefaultLegalBasis,
		Confidence:       ConfidenceMedium,
		ProcessingMethod: MethodRuleBased,
	}
}
