package calendar

import (
	"sort"
	"sync"
	"time"
)

// Holiday is a named non-working day.
type Holiday struct {
	Date Date   `json:"date"`
	Name string `json:"name"`
}

// HolidaySet is a lookup of non-working days: explicit entries plus an
// optional yearly rule whose output is computed on first use and kept per
// year. No method changes which days the set holds, and it is safe for
// concurrent use.
type HolidaySet struct {
	days   map[Date]string
	yearly func(year int) []Holiday
	years  sync.Map // int -> map[Date]string
}

// NewHolidaySet builds a set from entries. Later duplicates keep the first name.
func NewHolidaySet(entries ...Holiday) *HolidaySet {
	return &HolidaySet{days: firstNames(nil, entries)}
}

func firstNames(into map[Date]string, entries []Holiday) map[Date]string {
	if into == nil {
		into = make(map[Date]string, len(entries))
	}
	for _, h := range entries {
		if _, ok := into[h.Date]; !ok {
			into[h.Date] = h.Name
		}
	}
	return into
}

// With returns a new set holding the receiver's days plus extra. Where a day
// is already a holiday the receiver's name wins.
func (s *HolidaySet) With(extra ...Holiday) *HolidaySet {
	out := &HolidaySet{days: make(map[Date]string)}
	if s != nil {
		out.yearly = s.yearly
		for d, n := range s.days {
			out.days[d] = n
		}
	}
	firstNames(out.days, extra)
	return out
}

func (s *HolidaySet) generated(year int) map[Date]string {
	if s.yearly == nil {
		return nil
	}
	if v, ok := s.years.Load(year); ok {
		return v.(map[Date]string)
	}
	v, _ := s.years.LoadOrStore(year, firstNames(nil, s.yearly(year)))
	return v.(map[Date]string)
}

func (s *HolidaySet) lookup(d Date) (string, bool) {
	if s == nil {
		return "", false
	}
	if n, ok := s.generated(d.Year)[d]; ok {
		return n, true
	}
	n, ok := s.days[d]
	return n, ok
}

func (s *HolidaySet) Contains(d Date) bool {
	_, ok := s.lookup(d)
	return ok
}

// Name returns the holiday name for d, or "" when d is not a holiday.
func (s *HolidaySet) Name(d Date) string {
	n, _ := s.lookup(d)
	return n
}

// InYear lists the holidays of year in date order.
func (s *HolidaySet) InYear(year int) []Holiday {
	var out []Holiday
	if s == nil {
		return out
	}
	gen := s.generated(year)
	for d, n := range gen {
		out = append(out, Holiday{Date: d, Name: n})
	}
	for d, n := range s.days {
		if _, dup := gen[d]; d.Year == year && !dup {
			out = append(out, Holiday{Date: d, Name: n})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// EasterSunday returns Western Easter for year (anonymous Gregorian algorithm).
func EasterSunday(year int) Date {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return Date{Year: year, Month: time.Month(month), Day: day}
}

// PortugueseHolidays returns the national public holidays of Portugal for
// every year in [fromYear, toYear]. Corpus Christi, Republic Day, All Saints
// and Restoration of Independence were suspended from 2013 to 2015.
func PortugueseHolidays(fromYear, toYear int) *HolidaySet {
	return &HolidaySet{yearly: func(y int) []Holiday {
		if y < fromYear || y > toYear {
			return nil
		}
		return portugueseYear(y)
	}}
}

// AllPortugueseHolidays is PortugueseHolidays without a year range.
func AllPortugueseHolidays() *HolidaySet {
	return &HolidaySet{yearly: portugueseYear}
}

func portugueseYear(y int) []Holiday {
	easter := EasterSunday(y)
	suspended := y >= 2013 && y <= 2015

	out := []Holiday{
		{Date{y, time.January, 1}, "Ano Novo"},
		{easter.AddDays(-2), "Sexta-feira Santa"},
		{easter, "Páscoa"},
		{Date{y, time.April, 25}, "Dia da Liberdade"},
		{Date{y, time.May, 1}, "Dia do Trabalhador"},
		{Date{y, time.June, 10}, "Dia de Portugal, de Camões e das Comunidades Portuguesas"},
		{Date{y, time.August, 15}, "Assunção de Nossa Senhora"},
		{Date{y, time.December, 8}, "Imaculada Conceição"},
		{Date{y, time.December, 25}, "Dia de Natal"},
	}
	if !suspended {
		out = append(out,
			Holiday{easter.AddDays(60), "Corpo de Deus"},
			Holiday{Date{y, time.October, 5}, "Implantação da República"},
			Holiday{Date{y, time.November, 1}, "Dia de Todos os Santos"},
			Holiday{Date{y, time.December, 1}, "Restauração da Independência"},
		)
	}
	return out
}
