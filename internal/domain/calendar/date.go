// Package calendar provides the civil-date type and the business-day
// calendar used to resolve notification deadlines.
package calendar

import (
	"fmt"
	"time"

	"github.com/turtacn/deadline-agent/pkg/errors"
)

// ISOLayout is the wire format of a Date.
const ISOLayout = "2006-01-02"

// Date is a calendar day with no time-of-day or location. The zero value
// means "unset".
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate returns the date for y-m-d, normalizing overflow the way time.Date
// does (Feb 30 becomes Mar 1 or 2).
func NewDate(y int, m time.Month, d int) Date {
	return DateOf(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}

// DateFromParts validates y-m-d without normalizing. It rejects month or day
// values outside the calendar.
func DateFromParts(y, m, d int) (Date, error) {
	if y < 1 || y > 9999 {
		return Date{}, errors.InvalidParam("year out of range").WithDetail(fmt.Sprint(y))
	}
	if m < 1 || m > 12 {
		return Date{}, errors.InvalidParam("month out of range").WithDetail(fmt.Sprint(m))
	}
	if d < 1 || d > DaysIn(y, time.Month(m)) {
		return Date{}, errors.InvalidParam("day out of range").WithDetail(fmt.Sprintf("%04d-%02d-%02d", y, m, d))
	}
	return Date{Year: y, Month: time.Month(m), Day: d}, nil
}

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a strict YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(ISOLayout, s)
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

// DaysIn returns the number of days in month m of year y.
func DaysIn(y int, m time.Month) int {
	return time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// LastDayOfMonth returns the final day of month m in year y.
func LastDayOfMonth(y int, m time.Month) Date {
	return Date{Year: y, Month: m, Day: DaysIn(y, m)}
}

// Time returns midnight UTC of d.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) IsZero() bool { return d == Date{} }

func (d Date) Weekday() time.Weekday { return d.Time().Weekday() }

// AddDays returns d shifted by n calendar days.
func (d Date) AddDays(n int) Date { return DateOf(d.Time().AddDate(0, 0, n)) }

// FirstOfNextMonth returns the first day of the month after d.
func (d Date) FirstOfNextMonth() Date { return NewDate(d.Year, d.Month+1, 1) }

func (d Date) Before(o Date) bool { return d.compare(o) < 0 }

func (d Date) After(o Date) bool { return d.compare(o) > 0 }

func (d Date) compare(o Date) int {
	switch {
	case d.Year != o.Year:
		return d.Year - o.Year
	case d.Month != o.Month:
		return int(d.Month) - int(o.Month)
	default:
		return d.Day - o.Day
	}
}

// DaysUntil returns the signed number of calendar days from d to o.
func (d Date) DaysUntil(o Date) int {
	return int(o.Time().Sub(d.Time()).Hours() / 24)
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
