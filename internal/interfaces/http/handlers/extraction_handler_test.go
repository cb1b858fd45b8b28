package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/deadline-agent/internal/application/extraction"
	"github.com/turtacn/deadline-agent/internal/domain/calendar"
	"github.com/turtacn/deadline-agent/internal/domain/deadline"
	"github.com/turtacn/deadline-agent/internal/infrastructure/document"
	"github.com/turtacn/deadline-agent/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/deadline-agent/internal/testutil"
	"github.com/turtacn/deadline-agent/pkg/errors"
)

var fixedNow = time.Date(2025, time.May, 29, 10, 30, 0, 0, time.UTC)

const businessDaysText = "Deve responder no prazo de 15 dias úteis a partir desta notificação"

func newTestService(t *testing.T) extraction.Service {
	t.Helper()
	e, err := deadline.NewEngine(calendar.New(calendar.PortugueseHolidays(2020, 2030)))
	require.NoError(t, err)
	svc, err := extraction.NewService(e, extraction.DefaultConfig(),
		extraction.WithTextExtractor(document.NewExtractor()),
		extraction.WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	return svc
}

// mockService lets tests force service-level failures.
type mockService struct {
	mock.Mock
}

func (m *mockService) Process(ctx context.Context, req extraction.ProcessRequest) *deadline.Result {
	args := m.Called(ctx, req)
	r, _ := args.Get(0).(*deadline.Result)
	return r
}

func (m *mockService) ProcessBatch(ctx context.Context, reqs []extraction.ProcessRequest) ([]*deadline.Result, error) {
	args := m.Called(ctx, reqs)
	r, _ := args.Get(0).([]*deadline.Result)
	return r, args.Error(1)
}

func (m *mockService) ProcessDocument(ctx context.Context, doc extraction.Document, opts extraction.Options) (*extraction.DocumentResult, error) {
	args := m.Called(ctx, doc, opts)
	r, _ := args.Get(0).(*extraction.DocumentResult)
	return r, args.Error(1)
}

func (m *mockService) ProcessFolder(ctx context.Context, dir string, opts extraction.Options) (*extraction.BatchSummary, error) {
	args := m.Called(ctx, dir, opts)
	r, _ := args.Get(0).(*extraction.BatchSummary)
	return r, args.Error(1)
}

func (m *mockService) Rules() []deadline.RuleInfo { return nil }

func (m *mockService) Calendar() *calendar.Calendar { return nil }

func postJSON(t *testing.T, handler http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst))
}

func TestExtract_RuleBased(t *testing.T) {
	h := NewExtractionHandler(newTestService(t), logging.NewNopLogger())

	rec := postJSON(t, h.Extract, `{"text":"`+businessDaysText+`","reference_date":"2025-05-29"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got deadline.Result
	decodeBody(t, rec, &got)
	assert.Equal(t, "2025-06-23", got.DeadlineString())
	assert.Equal(t, deadline.MethodRuleBased, got.ProcessingMethod)
	assert.Equal(t, deadline.PriorityUrgent, got.Priority)
}

func TestExtract_NoDeadlineIsStillOK(t *testing.T) {
	h := NewExtractionHandler(newTestService(t), logging.NewNopLogger())

	rec := postJSON(t, h.Extract, `{"text":"Relatório anual de atividades","reference_date":"2025-05-29"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var got deadline.Result
	decodeBody(t, rec, &got)
	assert.Equal(t, deadline.MethodFailed, got.ProcessingMethod)
	assert.Equal(t, deadline.NoDeadlineMessage, got.Error)
}

func TestExtract_BadRequests(t *testing.T) {
	h := NewExtractionHandler(newTestService(t), logging.NewNopLogger())

	tests := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"malformed json", `{"text":`},
		{"blank text", `{"text":"   "}`},
		{"bad reference date", `{"text":"IVA","reference_date":"29/05/2025"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, h.Extract, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var resp ErrorResponse
			decodeBody(t, rec, &resp)
			assert.Equal(t, errors.ErrCodeBadRequest.String(), resp.Code)
		})
	}
}

func TestExtract_BodyTooLarge(t *testing.T) {
	h := NewExtractionHandler(newTestService(t), logging.NewNopLogger(), WithMaxBodyBytes(16))

	rec := postJSON(t, h.Extract, `{"text":"`+businessDaysText+`"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestExtractBatch(t *testing.T) {
	h := NewExtractionHandler(newTestService(t), logging.NewNopLogger())

	body := `{"requests":[
		{"text":"` + businessDaysText + `","reference_date":"2025-05-29"},
		{"text":"Relatório anual de atividades","reference_date":"2025-05-29"}
	]}`
	rec := postJSON(t, h.ExtractBatch, body)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp BatchResponse
	decodeBody(t, rec, &resp)
	assert.NotEmpty(t, resp.BatchID)
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, 1, resp.SuccessfulExtractions)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "2025-06-23", resp.Results[0].DeadlineString())
	assert.Equal(t, deadline.MethodFailed, resp.Results[1].ProcessingMethod)
}

func TestExtractBatch_Validation(t *testing.T) {
	h := NewExtractionHandler(newTestService(t), logging.NewNopLogger())

	rec := postJSON(t, h.ExtractBatch, `{"requests":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, h.ExtractBatch, `{"requests":[{"text":"IVA"},{"text":""}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp ErrorResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "requests[1]", resp.Detail)
}

func TestExtractBatch_ServiceErrors(t *testing.T) {
	svc := &mockService{}
	svc.On("ProcessBatch", mock.Anything, mock.Anything).
		Return(nil, errors.InvalidParam("batch too large")).Once()
	svc.On("ProcessBatch", mock.Anything, mock.Anything).
		Return(nil, errors.New(errors.ErrCodeServiceUnavailable, "batch processing interrupted")).Once()
	logger := testutil.NewMockLogger()
	h := NewExtractionHandler(svc, logger)

	rec := postJSON(t, h.ExtractBatch, `{"requests":[{"text":"IVA"}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, h.ExtractBatch, `{"requests":[{"text":"IVA"}]}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var resp ErrorResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "service unavailable", resp.Message)
	assert.True(t, logger.HasMessage("error", "request failed"))
	svc.AssertExpectations(t)
}

func multipartRequest(t *testing.T, filename string, content []byte, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		part, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadDocument(t *testing.T) {
	h := NewExtractionHandler(newTestService(t), logging.NewNopLogger())

	req := multipartRequest(t, "notificacao.txt", []byte(businessDaysText), map[string]string{"reference_date": "2025-05-29"})
	rec := httptest.NewRecorder()
	h.UploadDocument(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp extraction.DocumentResult
	decodeBody(t, rec, &resp)
	assert.Equal(t, "notificacao.txt", resp.FileName)
	assert.Equal(t, businessDaysText, resp.ExtractedText)
	assert.Equal(t, "2025-06-23", resp.Result.DeadlineString())
}

func TestUploadDocument_Errors(t *testing.T) {
	h := NewExtractionHandler(newTestService(t), logging.NewNopLogger())

	tests := []struct {
		name   string
		req    *http.Request
		status int
	}{
		{"missing file", multipartRequest(t, "", nil, nil), http.StatusBadRequest},
		{"unsupported type", multipartRequest(t, "planilha.xlsx", []byte("x"), nil), http.StatusUnsupportedMediaType},
		{"bad reference", multipartRequest(t, "a.txt", []byte("IVA"), map[string]string{"reference_date": "ontem"}), http.StatusBadRequest},
		{"bad switch", multipartRequest(t, "a.txt", []byte("IVA"), map[string]string{"use_ai_fallback": "talvez"}), http.StatusBadRequest},
		{"not multipart", httptest.NewRequest(http.MethodPost, "/documents", strings.NewReader("plain")), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.UploadDocument(rec, tt.req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestUploadDocument_PassesSwitches(t *testing.T) {
	svc := &mockService{}
	svc.On("ProcessDocument", mock.Anything, mock.Anything, mock.MatchedBy(func(o extraction.Options) bool {
		return o.UseAIFallback != nil && !*o.UseAIFallback && o.UseDateParser == nil &&
			o.Reference == calendar.Date{Year: 2025, Month: time.May, Day: 29}
	})).Return(&extraction.DocumentResult{FileName: "a.txt", Result: deadline.NewFailure(deadline.NoDeadlineMessage, fixedNow)}, nil)
	h := NewExtractionHandler(svc, logging.NewNopLogger())

	req := multipartRequest(t, "a.txt", []byte("texto"), map[string]string{"use_ai_fallback": "false", "reference_date": "2025-05-29"})
	rec := httptest.NewRecorder()
	h.UploadDocument(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

func TestRules(t *testing.T) {
	h := NewExtractionHandler(newTestService(t), logging.NewNopLogger())

	rec := httptest.NewRecorder()
	h.Rules(rec, httptest.NewRequest(http.MethodGet, "/rules", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp RulesResponse
	decodeBody(t, rec, &resp)
	require.Len(t, resp.Rules, 8)
	assert.Equal(t, 1, resp.Rules[0].Order)
	assert.Equal(t, "N working days from notification", resp.Rules[6].Rule)
}

func TestBusinessMetrics(t *testing.T) {
	h := NewExtractionHandler(newTestService(t), logging.NewNopLogger())

	body := `{"results":[
		{"deadline":"2025-06-23","processing_method":"rule_based"},
		{"processing_method":"failed","error":"No deadline could be determined"}
	]}`
	rec := postJSON(t, h.BusinessMetrics, body)
	require.Equal(t, http.StatusOK, rec.Code)

	var m extraction.BusinessMetrics
	decodeBody(t, rec, &m)
	assert.Equal(t, 2, m.TotalDocuments)
	assert.Equal(t, 1, m.SuccessfulExtractions)
	assert.InDelta(t, 50.0, m.SuccessRate, 1e-9)
	assert.InDelta(t, 30.0, m.ProcessingCapacityPerHour, 1e-9)
}

func TestBusinessMetrics_SummaryAndAssumptions(t *testing.T) {
	h := NewExtractionHandler(newTestService(t), logging.NewNopLogger())

	body := `{
		"summary":{"batch_id":"b1","total_files":1,"successful_extractions":1,
			"results":[{"file_name":"a.txt","result":{"deadline":"2025-06-23","processing_method":"rule_based"}}]},
		"assumptions":{"ai_minutes_per_doc":5}
	}`
	rec := postJSON(t, h.BusinessMetrics, body)
	require.Equal(t, http.StatusOK, rec.Code)

	var m extraction.BusinessMetrics
	decodeBody(t, rec, &m)
	assert.Equal(t, 1, m.TotalDocuments)
	assert.InDelta(t, 12.0, m.ProcessingCapacityPerHour, 1e-9)

	rec = postJSON(t, h.BusinessMetrics, `{"assumptions":{"hourly_rate":-1}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
