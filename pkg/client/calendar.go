package client

import (
	"context"
	"net/url"
	"strconv"

	"github.com/turtacn/deadline-agent/pkg/errors"
)

type Holiday struct {
	Date string `json:"date"`
	Name string `json:"name"`
}

type Holidays struct {
	Year     int       `json:"year"`
	Holidays []Holiday `json:"holidays"`
}

// BusinessDays answers both calendar questions: Deadline is set for a day
// count, Count for a date range.
type BusinessDays struct {
	Start              string `json:"start"`
	Days               *int   `json:"days,omitempty"`
	Deadline           string `json:"deadline,omitempty"`
	End                string `json:"end,omitempty"`
	Count              *int   `json:"count,omitempty"`
	StartIsBusinessDay bool   `json:"start_is_business_day"`
}

// CalendarClient covers the Portuguese business calendar endpoints.
type CalendarClient struct {
	client *Client
}

// Holidays lists the national holidays of year. Years outside the server's
// holiday range give an empty list.
func (c *CalendarClient) Holidays(ctx context.Context, year int) (*Holidays, error) {
	if year < 1 || year > 9999 {
		return nil, errors.InvalidParam("year must be between 1 and 9999")
	}
	var out Holidays
	if err := c.client.get(ctx, "/api/v1/calendar/holidays?year="+strconv.Itoa(year), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AddBusinessDays returns the date days business days after start.
func (c *CalendarClient) AddBusinessDays(ctx context.Context, start string, days int) (*BusinessDays, error) {
	if start == "" {
		return nil, errors.InvalidParam("start is required")
	}
	if days < 0 {
		return nil, errors.InvalidParam("days must not be negative")
	}
	q := url.Values{"start": {start}, "days": {strconv.Itoa(days)}}
	return c.businessDays(ctx, q)
}

// BusinessDaysBetween counts business days in (start, end].
func (c *CalendarClient) BusinessDaysBetween(ctx context.Context, start, end string) (*BusinessDays, error) {
	if start == "" || end == "" {
		return nil, errors.InvalidParam("start and end are required")
	}
	q := url.Values{"start": {start}, "end": {end}}
	return c.businessDays(ctx, q)
}

func (c *CalendarClient) businessDays(ctx context.Context, q url.Values) (*BusinessDays, error) {
	var out BusinessDays
	if err := c.client.get(ctx, "/api/v1/calendar/business-days?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}
