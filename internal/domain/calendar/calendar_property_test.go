//go:build property
// +build property

package calendar

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func genDate() gopter.Gen {
	return gen.IntRange(0, 365*8).Map(func(offset int) Date {
		return NewDate(2021, time.January, 1).AddDays(offset)
	})
}

func TestAddBusinessDaysProperties(t *testing.T) {
	cal := New(PortugueseHolidays(2020, 2035))

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("result is a business day and exactly n business days follow start", prop.ForAll(
		func(start Date, n int) bool {
			got, err := cal.AddBusinessDays(start, n)
			if err != nil {
				return false
			}
			if n == 0 {
				return got == start
			}
			return cal.IsBusinessDay(got) && cal.BusinessDaysBetween(start, got) == n
		},
		genDate(),
		gen.IntRange(0, 120),
	))

	properties.Property("result never precedes start", prop.ForAll(
		func(start Date, n int) bool {
			got, _ := cal.AddBusinessDays(start, n)
			return !got.Before(start)
		},
		genDate(),
		gen.IntRange(0, 120),
	))

	properties.Property("adding is monotonic in n", prop.ForAll(
		func(start Date, n int) bool {
			a, _ := cal.AddBusinessDays(start, n)
			b, _ := cal.AddBusinessDays(start, n+1)
			return b.After(a)
		},
		genDate(),
		gen.IntRange(0, 60),
	))

	properties.TestingRun(t)
}

func TestLastDayOfMonthProperty(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("the day after the last day is the first of a month", prop.ForAll(
		func(year, month int) bool {
			last := LastDayOfMonth(year, time.Month(month))
			next := last.AddDays(1)
			return next.Day == 1 && last.Month == time.Month(month)
		},
		gen.IntRange(1900, 2200),
		gen.IntRange(1, 12),
	))

	properties.TestingRun(t)
}
