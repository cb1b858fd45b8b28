package client

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/deadline-agent/pkg/errors"
)

func TestCalendar_Holidays(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/calendar/holidays", r.URL.Path)
		assert.Equal(t, "2025", r.URL.Query().Get("year"))
		_, _ = io.WriteString(w, `{"year":2025,"holidays":[{"date":"2025-01-01","name":"Ano Novo"},{"date":"2025-04-18","name":"Sexta-feira Santa"}]}`)
	})

	h, err := c.Calendar().Holidays(context.Background(), 2025)
	require.NoError(t, err)
	assert.Equal(t, 2025, h.Year)
	require.Len(t, h.Holidays, 2)
	assert.Equal(t, "2025-04-18", h.Holidays[1].Date)
}

func TestCalendar_HolidaysInvalidYear(t *testing.T) {
	c, err := NewClient("http://localhost")
	require.NoError(t, err)
	_, err = c.Calendar().Holidays(context.Background(), 0)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))
}

func TestCalendar_AddBusinessDays(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/calendar/business-days", r.URL.Path)
		assert.Equal(t, "2025-05-29", r.URL.Query().Get("start"))
		assert.Equal(t, "15", r.URL.Query().Get("days"))
		assert.Empty(t, r.URL.Query().Get("end"))
		_, _ = io.WriteString(w, `{"start":"2025-05-29","days":15,"deadline":"2025-06-23","start_is_business_day":true}`)
	})

	bd, err := c.Calendar().AddBusinessDays(context.Background(), "2025-05-29", 15)
	require.NoError(t, err)
	assert.Equal(t, "2025-06-23", bd.Deadline)
	require.NotNil(t, bd.Days)
	assert.Equal(t, 15, *bd.Days)
	assert.Nil(t, bd.Count)
	assert.True(t, bd.StartIsBusinessDay)
}

func TestCalendar_BusinessDaysBetween(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2025-06-23", r.URL.Query().Get("end"))
		_, _ = io.WriteString(w, `{"start":"2025-05-29","end":"2025-06-23","count":15,"start_is_business_day":true}`)
	})

	bd, err := c.Calendar().BusinessDaysBetween(context.Background(), "2025-05-29", "2025-06-23")
	require.NoError(t, err)
	require.NotNil(t, bd.Count)
	assert.Equal(t, 15, *bd.Count)
	assert.Empty(t, bd.Deadline)
}

func TestCalendar_ArgumentValidation(t *testing.T) {
	c, err := NewClient("http://localhost")
	require.NoError(t, err)
	ctx := context.Background()

	_, err = c.Calendar().AddBusinessDays(ctx, "", 3)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))
	_, err = c.Calendar().AddBusinessDays(ctx, "2025-05-29", -1)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))
	_, err = c.Calendar().BusinessDaysBetween(ctx, "2025-05-29", "")
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))
}

func TestCalendar_ServerValidationError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"code":"COMMON_001","message":"start must be YYYY-MM-DD","detail":"29/05/2025"}`)
	})
	_, err := c.Calendar().AddBusinessDays(context.Background(), "29/05/2025", 1)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsValidation())
	assert.Equal(t, "29/05/2025", apiErr.Detail)
}
