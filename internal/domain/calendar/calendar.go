package calendar

import (
	"time"

	"github.com/turtacn/deadline-agent/pkg/errors"
)

// Calendar answers business-day questions against a fixed HolidaySet.
// It holds no mutable state and is safe for concurrent use.
type Calendar struct {
	holidays *HolidaySet
}

// New returns a Calendar over holidays. A nil set means weekends only.
func New(holidays *HolidaySet) *Calendar {
	if holidays == nil {
		holidays = NewHolidaySet()
	}
	return &Calendar{holidays: holidays}
}

// Holidays exposes the underlying read-only set.
func (c *Calendar) Holidays() *HolidaySet { return c.holidays }

func IsWeekend(d Date) bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// IsBusinessDay reports whether d is neither a weekend day nor a holiday.
func (c *Calendar) IsBusinessDay(d Date) bool {
	return !IsWeekend(d) && !c.holidays.Contains(d)
}

// AddBusinessDays walks forward one day at a time from start and returns the
// day on which the n-th business day is counted. start itself never counts,
// so n == 0 returns start unchanged.
func (c *Calendar) AddBusinessDays(start Date, n int) (Date, error) {
	if n < 0 {
		return Date{}, errors.InvalidParam("business day count must not be negative")
	}
	current := start
	counted := 0
	for counted < n {
		current = current.AddDays(1)
		if c.IsBusinessDay(current) {
			counted++
		}
	}
	return current, nil
}

// BusinessDaysBetween counts business days in the half-open range (from, to].
// It returns 0 when to is not after from.
func (c *Calendar) BusinessDaysBetween(from, to Date) int {
	count := 0
	for d := from.AddDays(1); !d.After(to); d = d.AddDays(1) {
		if c.IsBusinessDay(d) {
			count++
		}
	}
	return count
}

// NextBusinessDay returns the first business day on or after d.
func (c *Calendar) NextBusinessDay(d Date) Date {
	for !c.IsBusinessDay(d) {
		d = d.AddDays(1)
	}
	return d
}
