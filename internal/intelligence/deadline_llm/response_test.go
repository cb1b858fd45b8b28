package deadline_llm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/deadline-agent/internal/domain/calendar"
	"github.com/turtacn/deadline-agent/internal/domain/deadline"
	"github.com/turtacn/deadline-agent/pkg/errors"
)

func TestParseResponse_Complete(t *testing.T) {
	raw := "Here is the answer:\n```json\n" + `{
		"deadline": "2025-09-30",
		"rule": "IRC payment",
		"priority": "High",
		"legal_basis": "CIRC",
		"confidence": "low"
	}` + "\n```"

	r, err := parseResponse(raw, "Gemini AI analysis")
	require.NoError(t, err)
	assert.Equal(t, calendar.Date{Year: 2025, Month: time.September, Day: 30}, *r.Deadline)
	assert.Equal(t, "IRC payment", r.Rule)
	assert.Equal(t, deadline.PriorityHigh, r.Priority)
	assert.Equal(t, "CIRC", r.LegalBasis)
	assert.Equal(t, deadline.ConfidenceLow, r.Confidence)
	assert.Equal(t, deadline.MethodAIInference, r.ProcessingMethod)
}

func TestParseResponse_Defaults(t *testing.T) {
	r, err := parseResponse(`{"deadline": "2025-09-30"}`, "Gemini AI analysis")
	require.NoError(t, err)
	assert.Equal(t, "Gemini AI analysis", r.Rule)
	assert.Equal(t, deadline.PriorityMedium, r.Priority)
	assert.Equal(t, DefaultLegalBasis, r.LegalBasis)
	assert.Equal(t, deadline.ConfidenceMedium, r.Confidence)

	r, err = parseResponse(`{"deadline": "2025-09-30", "priority": "critical", "confidence": "sure"}`, "x")
	require.NoError(t, err)
	assert.Equal(t, deadline.PriorityMedium, r.Priority)
	assert.Equal(t, deadline.ConfidenceMedium, r.Confidence)
}

func TestParseResponse_Failures(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		message string
	}{
		{"no braces", "I cannot help with that", msgJSONParsing},
		{"reversed braces", "} nothing {", msgJSONParsing},
		{"bad json", `{"deadline": 2025-09-30}`, msgJSONParsing},
		{"error key", `{"error": "No deadline found"}`, msgNoDeadline},
		{"error key with deadline", `{"deadline": "2025-09-30", "error": "unsure"}`, msgNoDeadline},
		{"missing deadline", `{"rule": "x"}`, msgNoDeadline},
		{"wrong format", `{"deadline": "30/09/2025"}`, msgSchema},
		{"wrong type", `{"deadline": 20250930}`, msgSchema},
		{"rule not string", `{"deadline": "2025-09-30", "rule": 5}`, msgSchema},
		{"impossible date", `{"deadline": "2025-02-30"}`, msgInvalidDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := parseResponse(tt.raw, "x")
			require.Error(t, err)
			assert.Nil(t, r)
			assert.True(t, errors.IsCode(err, errors.ErrCodeAIInferenceFailed))
			assert.Contains(t, errors.Message(err), tt.message)
		})
	}
}

func TestParseResponse_InvalidDateEmbedsParseError(t *testing.T) {
	_, err := parseResponse(`{"deadline": "2025-13-01"}`, "x")
	require.Error(t, err)
	assert.Contains(t, errors.Message(err), "month out of range")
}

func TestExtractObject(t *testing.T) {
	s, ok := extractObject(`noise {"a": {"b": 1}} trailing`)
	require.True(t, ok)
	assert.Equal(t, `{"a": {"b": 1}}`, s)

	_, ok = extractObject("{")
	assert.False(t, ok)
}
