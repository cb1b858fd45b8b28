package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/turtacn/deadline-agent/internal/domain/calendar"
	"github.com/turtacn/deadline-agent/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/deadline-agent/pkg/errors"
)

// MaxBusinessDays bounds the days parameter of the business-day calculator.
const MaxBusinessDays = 3660

// CalendarHandler exposes the business-day calendar.
type CalendarHandler struct {
	cal    *calendar.Calendar
	now    func() time.Time
	logger logging.Logger
}

func NewCalendarHandler(cal *calendar.Calendar, logger logging.Logger) *CalendarHandler {
	return &CalendarHandler{cal: cal, now: time.Now, logger: logger}
}

type HolidaysResponse struct {
	Year     int                `json:"year"`
	Holidays []calendar.Holiday `json:"holidays"`
}

// BusinessDaysResponse answers both forms of the calculator: Deadline is set
// when days was given, Count when end was given.
type BusinessDaysResponse struct {
	Start         calendar.Date  `json:"start"`
	Days          *int           `json:"days,omitempty"`
	Deadline      *calendar.Date `json:"deadline,omitempty"`
	End           *calendar.Date `json:"end,omitempty"`
	Count         *int           `json:"count,omitempty"`
	StartIsBizDay bool           `json:"start_is_business_day"`
}

// Holidays handles GET /calendar/holidays?year=YYYY. The year defaults to
// the current one.
func (h *CalendarHandler) Holidays(w http.ResponseWriter, r *http.Request) {
	year := h.now().Year()
	if v := strings.TrimSpace(r.URL.Query().Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1 || y > 9999 {
			writeAppError(w, r, h.logger, errors.InvalidParam("year must be a number between 1 and 9999").WithDetail(v))
			return
		}
		year = y
	}
	holidays := h.cal.Holidays().InYear(year)
	if holidays == nil {
		holidays = []calendar.Holiday{}
	}
	writeJSON(w, http.StatusOK, HolidaysResponse{Year: year, Holidays: holidays})
}

// BusinessDays handles GET /calendar/business-days?start=YYYY-MM-DD and
// either days=N (the date N business days after start) or end=YYYY-MM-DD
// (business days in (start, end]).
func (h *CalendarHandler) BusinessDays(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := calendar.ParseDate(strings.TrimSpace(q.Get("start")))
	if err != nil {
		writeAppError(w, r, h.logger, errors.InvalidParam("start must be YYYY-MM-DD").WithDetail(q.Get("start")))
		return
	}
	resp := BusinessDaysResponse{Start: start, StartIsBizDay: h.cal.IsBusinessDay(start)}

	daysParam, endParam := strings.TrimSpace(q.Get("days")), strings.TrimSpace(q.Get("end"))
	switch {
	case daysParam != "":
		n, err := strconv.Atoi(daysParam)
		if err != nil || n < 0 || n > MaxBusinessDays {
			writeAppError(w, r, h.logger, errors.InvalidParam("days must be between 0 and "+strconv.Itoa(MaxBusinessDays)).WithDetail(daysParam))
			return
		}
		d, err := h.cal.AddBusinessDays(start, n)
		if err != nil {
			writeAppError(w, r, h.logger, err)
			return
		}
		resp.Days, resp.Deadline = &n, &d
	case endParam != "":
		end, err := calendar.ParseDate(endParam)
		if err != nil {
			writeAppError(w, r, h.logger, errors.InvalidParam("end must be YYYY-MM-DD").WithDetail(endParam))
			return
		}
		count := h.cal.BusinessDaysBetween(start, end)
		resp.End, resp.Count = &end, &count
	default:
		writeAppError(w, r, h.logger, errors.InvalidParam("one of days or end is required"))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
