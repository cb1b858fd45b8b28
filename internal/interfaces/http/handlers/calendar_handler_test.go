package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/deadline-agent/internal/domain/calendar"
	"github.com/turtacn/deadline-agent/internal/infrastructure/monitoring/logging"
)

func newCalendarHandler() *CalendarHandler {
	h := NewCalendarHandler(calendar.New(calendar.PortugueseHolidays(2020, 2030)), logging.NewNopLogger())
	h.now = func() time.Time { return fixedNow }
	return h
}

func get(handler http.HandlerFunc, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHolidays(t *testing.T) {
	h := newCalendarHandler()

	rec := get(h.Holidays, "/calendar/holidays?year=2025")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp HolidaysResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, 2025, resp.Year)
	require.Len(t, resp.Holidays, 13)
	assert.Equal(t, "2025-01-01", resp.Holidays[0].Date.String())
	assert.Equal(t, "Ano Novo", resp.Holidays[0].Name)
	assert.Equal(t, "2025-12-25", resp.Holidays[12].Date.String())
}

func TestHolidays_DefaultsToCurrentYear(t *testing.T) {
	h := newCalendarHandler()

	rec := get(h.Holidays, "/calendar/holidays")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp HolidaysResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, 2025, resp.Year)
}

func TestHolidays_OutsideRangeIsEmpty(t *testing.T) {
	h := newCalendarHandler()

	rec := get(h.Holidays, "/calendar/holidays?year=1999")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"year":1999,"holidays":[]}`, rec.Body.String())
}

func TestHolidays_InvalidYear(t *testing.T) {
	h := newCalendarHandler()

	assert.Equal(t, http.StatusBadRequest, get(h.Holidays, "/calendar/holidays?year=abc").Code)
	assert.Equal(t, http.StatusBadRequest, get(h.Holidays, "/calendar/holidays?year=0").Code)
}

func TestBusinessDays_AddDays(t *testing.T) {
	h := newCalendarHandler()

	rec := get(h.BusinessDays, "/calendar/business-days?start=2025-05-29&days=15")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp BusinessDaysResponse
	decodeBody(t, rec, &resp)
	require.NotNil(t, resp.Deadline)
	assert.Equal(t, "2025-06-23", resp.Deadline.String())
	assert.Equal(t, 15, *resp.Days)
	assert.True(t, resp.StartIsBizDay)
	assert.Nil(t, resp.Count)
}

func TestBusinessDays_ZeroDaysKeepsStart(t *testing.T) {
	h := newCalendarHandler()

	rec := get(h.BusinessDays, "/calendar/business-days?start=2025-06-07&days=0")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp BusinessDaysResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "2025-06-07", resp.Deadline.String())
	assert.False(t, resp.StartIsBizDay)
}

func TestBusinessDays_Between(t *testing.T) {
	h := newCalendarHandler()

	rec := get(h.BusinessDays, "/calendar/business-days?start=2025-05-29&end=2025-06-23")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp BusinessDaysResponse
	decodeBody(t, rec, &resp)
	require.NotNil(t, resp.Count)
	assert.Equal(t, 15, *resp.Count)
	assert.Nil(t, resp.Deadline)
}

func TestBusinessDays_Invalid(t *testing.T) {
	h := newCalendarHandler()

	for _, target := range []string{
		"/calendar/business-days?days=3",
		"/calendar/business-days?start=2025-02-30&days=3",
		"/calendar/business-days?start=2025-05-29",
		"/calendar/business-days?start=2025-05-29&days=-1",
		"/calendar/business-days?start=2025-05-29&days=99999",
		"/calendar/business-days?start=2025-05-29&end=soon",
	} {
		assert.Equal(t, http.StatusBadRequest, get(h.BusinessDays, target).Code, target)
	}
}
