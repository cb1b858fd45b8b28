package deadline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/turtacn/deadline-agent/internal/domain/calendar"
)

// reference used by most scenarios: Thursday 29 May 2025.
var refDate = calendar.Date{Year: 2025, Month: time.May, Day: 29}

func day(y int, m time.Month, d int) calendar.Date {
	return calendar.Date{Year: y, Month: m, Day: d}
}

func newTestEngine(t *testing.T, opts ...EngineOption) *Engine {
	t.Helper()
	e, err := NewEngine(calendar.New(calendar.PortugueseHolidays(2020, 2030)), opts...)
	require.NoError(t, err)
	return e
}

func testCalendar() *calendar.Calendar {
	return calendar.New(calendar.PortugueseHolidays(2020, 2030))
}
