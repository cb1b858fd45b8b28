package calendar

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateFromParts(t *testing.T) {
	tests := []struct {
		name    string
		y, m, d int
		wantErr bool
	}{
		{"valid", 2025, 7, 31, false},
		{"leap day", 2024, 2, 29, false},
		{"non leap day", 2025, 2, 29, true},
		{"month zero", 2025, 0, 1, true},
		{"month thirteen", 2025, 13, 1, true},
		{"day zero", 2025, 1, 0, true},
		{"april 31", 2025, 4, 31, true},
		{"year zero", 0, 1, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := DateFromParts(tt.y, tt.m, tt.d)
			if tt.wantErr {
				assert.Error(t, err)
				assert.True(t, d.IsZero())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, Date{tt.y, time.Month(tt.m), tt.d}, d)
		})
	}
}

func TestParseDate_Strict(t *testing.T) {
	d, err := ParseDate("2025-07-31")
	require.NoError(t, err)
	assert.Equal(t, NewDate(2025, time.July, 31), d)

	for _, bad := range []string{"2025-7-31", "31/07/2025", "2025-02-30", "", "2025-07-31T00:00:00Z"} {
		_, err := ParseDate(bad)
		assert.Error(t, err, bad)
	}
}

func TestLastDayOfMonth(t *testing.T) {
	assert.Equal(t, Date{2025, time.December, 31}, LastDayOfMonth(2025, time.December))
	assert.Equal(t, Date{2024, time.February, 29}, LastDayOfMonth(2024, time.February))
	assert.Equal(t, Date{2025, time.February, 28}, LastDayOfMonth(2025, time.February))
	assert.Equal(t, Date{1900, time.February, 28}, LastDayOfMonth(1900, time.February))
	assert.Equal(t, Date{2000, time.February, 29}, LastDayOfMonth(2000, time.February))
	assert.Equal(t, 30, DaysIn(2025, time.April))
}

func TestDate_Arithmetic(t *testing.T) {
	d := NewDate(2025, time.December, 31)
	assert.Equal(t, NewDate(2026, time.January, 1), d.AddDays(1))
	assert.Equal(t, NewDate(2026, time.January, 1), d.FirstOfNextMonth())
	assert.Equal(t, NewDate(2025, time.February, 1), NewDate(2025, time.January, 31).FirstOfNextMonth())
	assert.Equal(t, NewDate(2025, time.March, 2), NewDate(2025, time.February, 30))
	assert.Equal(t, 30, NewDate(2025, time.May, 29).DaysUntil(NewDate(2025, time.June, 28)))
	assert.Equal(t, time.Thursday, NewDate(2025, time.May, 29).Weekday())
}

func TestDate_Ordering(t *testing.T) {
	a := NewDate(2025, time.May, 29)
	b := NewDate(2025, time.June, 1)
	c := NewDate(2026, time.January, 1)

	assert.True(t, a.Before(b))
	assert.True(t, b.After(a))
	assert.True(t, c.After(b))
	assert.False(t, a.After(a))
	assert.False(t, a.Before(a))
}

func TestDate_JSON(t *testing.T) {
	type wrapper struct {
		Deadline Date  `json:"deadline"`
		Optional *Date `json:"optional,omitempty"`
	}
	raw, err := json.Marshal(wrapper{Deadline: NewDate(2025, time.July, 31)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"deadline":"2025-07-31"}`, string(raw))

	var back wrapper
	require.NoError(t, json.Unmarshal([]byte(`{"deadline":"2026-04-15"}`), &back))
	assert.Equal(t, NewDate(2026, time.April, 15), back.Deadline)

	assert.Error(t, json.Unmarshal([]byte(`{"deadline":"15/04/2026"}`), &back))
	assert.Equal(t, "", Date{}.String())
}
