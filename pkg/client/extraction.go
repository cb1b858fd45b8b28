package client

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/turtacn/deadline-agent/pkg/errors"
)

// Processing methods reported in Result.ProcessingMethod.
const (
	MethodRuleBased   = "rule_based"
	MethodDateParser  = "date_parser"
	MethodAIInference = "ai_inference"
	MethodFailed      = "failed"
)

// ExtractRequest asks for the deadline in one text. Dates are YYYY-MM-DD;
// an empty ReferenceDate means today on the server.
type ExtractRequest struct {
	Text          string `json:"text"`
	Source        string `json:"source,omitempty"`
	ReferenceDate string `json:"reference_date,omitempty"`
	UseAIFallback *bool  `json:"use_ai_fallback,omitempty"`
	UseDateParser *bool  `json:"use_date_parser,omitempty"`
}

// Result is one extraction outcome. A failed extraction is still a result,
// with ProcessingMethod "failed" and Error set.
type Result struct {
	Deadline         string    `json:"deadline,omitempty"`
	Rule             string    `json:"rule,omitempty"`
	RuleID           string    `json:"rule_id,omitempty"`
	Priority         string    `json:"priority,omitempty"`
	LegalBasis       string    `json:"legal_basis,omitempty"`
	Confidence       string    `json:"confidence,omitempty"`
	ProcessingMethod string    `json:"processing_method"`
	ProcessedAt      time.Time `json:"processed_at"`
	Error            string    `json:"error,omitempty"`
}

// Succeeded reports whether a deadline was found.
func (r *Result) Succeeded() bool {
	return r != nil && r.Deadline != "" && r.ProcessingMethod != MethodFailed
}

type BatchResponse struct {
	BatchID               string    `json:"batch_id"`
	Total                 int       `json:"total"`
	SuccessfulExtractions int       `json:"successful_extractions"`
	Results               []*Result `json:"results"`
}

// DocumentResult is the outcome for an uploaded file.
type DocumentResult struct {
	FileName      string  `json:"file_name"`
	ExtractedText string  `json:"extracted_text,omitempty"`
	Result        *Result `json:"result"`
}

// DocumentOptions are the optional form fields of an upload.
type DocumentOptions struct {
	ReferenceDate string
	UseAIFallback *bool
	UseDateParser *bool
}

type RuleInfo struct {
	Order      int    `json:"order"`
	ID         string `json:"id"`
	Rule       string `json:"rule"`
	Priority   string `json:"priority"`
	LegalBasis string `json:"legal_basis"`
	Confidence string `json:"confidence"`
	Custom     bool   `json:"custom"`
}

// MetricsAssumptions are the cost figures behind business metrics. A nil
// pointer on BusinessMetricsRequest uses the server defaults.
type MetricsAssumptions struct {
	ManualMinutesPerDoc float64 `json:"manual_minutes_per_doc"`
	AIMinutesPerDoc     float64 `json:"ai_minutes_per_doc"`
	HourlyRate          float64 `json:"hourly_rate"`
	MissedDeadlineRate  float64 `json:"missed_deadline_rate"`
	PenaltyPerMiss      float64 `json:"penalty_per_miss"`
	WeeksPerYear        int     `json:"weeks_per_year"`
}

type BusinessMetricsRequest struct {
	Results     []*Result           `json:"results"`
	Assumptions *MetricsAssumptions `json:"assumptions,omitempty"`
}

type BusinessMetrics struct {
	TotalDocuments            int     `json:"total_documents"`
	SuccessfulExtractions     int     `json:"successful_extractions"`
	SuccessRate               float64 `json:"success_rate"`
	TimeSavedHours            float64 `json:"time_saved_hours"`
	CostSavings               float64 `json:"cost_savings"`
	MissedDeadlinesPrevented  float64 `json:"missed_deadlines_prevented"`
	RiskReductionValue        float64 `json:"risk_reduction_value"`
	TotalValue                float64 `json:"total_value"`
	ProcessingCapacityPerHour float64 `json:"processing_capacity_per_hour"`
	AnnualValueProjection     float64 `json:"annual_value_projection"`
}

// ExtractionClient covers the extraction endpoints.
type ExtractionClient struct {
	client *Client
}

// Extract resolves the deadline in one text.
func (e *ExtractionClient) Extract(ctx context.Context, req *ExtractRequest) (*Result, error) {
	if req == nil || req.Text == "" {
		return nil, errors.InvalidParam("text is required")
	}
	var out Result
	if err := e.client.post(ctx, "/api/v1/extract", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ExtractBatch resolves many texts in one call. Results keep input order.
func (e *ExtractionClient) ExtractBatch(ctx context.Context, reqs []*ExtractRequest) (*BatchResponse, error) {
	if len(reqs) == 0 {
		return nil, errors.InvalidParam("requests must not be empty")
	}
	for i, r := range reqs {
		if r == nil || r.Text == "" {
			return nil, errors.InvalidParam("text is required").WithDetail("requests[" + strconv.Itoa(i) + "]")
		}
	}
	body := struct {
		Requests []*ExtractRequest `json:"requests"`
	}{Requests: reqs}

	var out BatchResponse
	if err := e.client.post(ctx, "/api/v1/extract/batch", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadDocument sends a .txt or .pdf file for extraction.
func (e *ExtractionClient) UploadDocument(ctx context.Context, name string, content []byte, opts *DocumentOptions) (*DocumentResult, error) {
	if name == "" {
		return nil, errors.InvalidParam("file name is required")
	}
	fields := map[string]string{}
	if opts != nil {
		if opts.ReferenceDate != "" {
			fields["reference_date"] = opts.ReferenceDate
		}
		if opts.UseAIFallback != nil {
			fields["use_ai_fallback"] = strconv.FormatBool(*opts.UseAIFallback)
		}
		if opts.UseDateParser != nil {
			fields["use_date_parser"] = strconv.FormatBool(*opts.UseDateParser)
		}
	}

	var out DocumentResult
	if err := e.client.do(ctx, http.MethodPost, "/api/v1/documents", multipartBody(name, content, fields), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func multipartBody(name string, content []byte, fields map[string]string) body {
	return func() (io.Reader, string, error) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		for k, v := range fields {
			if err := mw.WriteField(k, v); err != nil {
				return nil, "", errors.Wrap(err, errors.ErrCodeSerialization, "failed to write form field")
			}
		}
		part, err := mw.CreateFormFile("file", name)
		if err != nil {
			return nil, "", errors.Wrap(err, errors.ErrCodeSerialization, "failed to create file part")
		}
		if _, err := part.Write(content); err != nil {
			return nil, "", errors.Wrap(err, errors.ErrCodeSerialization, "failed to write file part")
		}
		if err := mw.Close(); err != nil {
			return nil, "", errors.Wrap(err, errors.ErrCodeSerialization, "failed to finish multipart body")
		}
		return &buf, mw.FormDataContentType(), nil
	}
}

// Rules lists the server's rule table in evaluation order.
func (e *ExtractionClient) Rules(ctx context.Context) ([]RuleInfo, error) {
	var out struct {
		Rules []RuleInfo `json:"rules"`
	}
	if err := e.client.get(ctx, "/api/v1/rules", &out); err != nil {
		return nil, err
	}
	return out.Rules, nil
}

// BusinessMetrics values a set of results.
func (e *ExtractionClient) BusinessMetrics(ctx context.Context, req *BusinessMetricsRequest) (*BusinessMetrics, error) {
	if req == nil {
		req = &BusinessMetricsRequest{}
	}
	var out BusinessMetrics
	if err := e.client.post(ctx, "/api/v1/metrics/business", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
