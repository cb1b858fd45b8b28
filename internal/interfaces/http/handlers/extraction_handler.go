package handlers

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/turtacn/deadline-agent/internal/application/extraction"
	"github.com/turtacn/deadline-agent/internal/domain/calendar"
	"github.com/turtacn/deadline-agent/internal/domain/deadline"
	"github.com/turtacn/deadline-agent/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/deadline-agent/pkg/errors"
)

// ExtractionHandler serves text, batch and document extraction.
type ExtractionHandler struct {
	svc          extraction.Service
	assumptions  extraction.MetricsAssumptions
	maxBodyBytes int64
	logger       logging.Logger
}

// ExtractionHandlerOption customizes an ExtractionHandler.
type ExtractionHandlerOption func(*ExtractionHandler)

// WithMaxBodyBytes caps JSON bodies and uploads.
func WithMaxBodyBytes(n int64) ExtractionHandlerOption {
	return func(h *ExtractionHandler) {
		if n > 0 {
			h.maxBodyBytes = n
		}
	}
}

// WithDefaultAssumptions sets the figures used when a business metrics
// request leaves them out.
func WithDefaultAssumptions(a extraction.MetricsAssumptions) ExtractionHandlerOption {
	return func(h *ExtractionHandler) { h.assumptions = a }
}

func NewExtractionHandler(svc extraction.Service, logger logging.Logger, opts ...ExtractionHandlerOption) *ExtractionHandler {
	h := &ExtractionHandler{
		svc:          svc,
		assumptions:  extraction.DefaultMetricsAssumptions(),
		maxBodyBytes: DefaultMaxBodyBytes,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// BatchRequest is the body of POST /extract/batch.
type BatchRequest struct {
	Requests []extraction.ProcessRequest `json:"requests"`
}

// BatchResponse pairs every input with its result, in input order.
type BatchResponse struct {
	BatchID               string             `json:"batch_id"`
	Total                 int                `json:"total"`
	SuccessfulExtractions int                `json:"successful_extractions"`
	Results               []*deadline.Result `json:"results"`
}

// RulesResponse lists the rule table.
type RulesResponse struct {
	Rules []deadline.RuleInfo `json:"rules"`
}

// BusinessMetricsRequest carries the results to evaluate, either flat or as
// a folder summary. Zero assumption fields take the defaults.
type BusinessMetricsRequest struct {
	Results     []*deadline.Result             `json:"results,omitempty"`
	Summary     *extraction.BatchSummary       `json:"summary,omitempty"`
	Assumptions *extraction.MetricsAssumptions `json:"assumptions,omitempty"`
}

// Extract handles POST /extract.
func (h *ExtractionHandler) Extract(w http.ResponseWriter, r *http.Request) {
	var req extraction.ProcessRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeAppError(w, r, h.logger, errors.InvalidParam("text is required"))
		return
	}
	writeJSON(w, http.StatusOK, h.svc.Process(r.Context(), req))
}

// ExtractBatch handles POST /extract/batch.
func (h *ExtractionHandler) ExtractBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	if len(req.Requests) == 0 {
		writeAppError(w, r, h.logger, errors.InvalidParam("requests must not be empty"))
		return
	}
	for i, pr := range req.Requests {
		if strings.TrimSpace(pr.Text) == "" {
			writeAppError(w, r, h.logger, errors.InvalidParam("text is required").WithDetail("requests["+strconv.Itoa(i)+"]"))
			return
		}
	}

	results, err := h.svc.ProcessBatch(r.Context(), req.Requests)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	resp := BatchResponse{BatchID: uuid.NewString(), Total: len(results), Results: results}
	for _, res := range results {
		if res.Succeeded() {
			resp.SuccessfulExtractions++
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// UploadDocument handles POST /documents as multipart/form-data with a
// "file" part. Optional form fields: reference_date, use_ai_fallback,
// use_date_parser.
func (h *ExtractionHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	if err := r.ParseMultipartForm(h.maxBodyBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeAppError(w, r, h.logger, errors.New(errors.ErrCodeDocumentTooLarge, "upload too large"))
			return
		}
		writeAppError(w, r, h.logger, errors.InvalidParam("invalid multipart form").WithDetail(err.Error()))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeAppError(w, r, h.logger, errors.InvalidParam("file part is required"))
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		writeAppError(w, r, h.logger, errors.InvalidParam("failed to read upload").WithDetail(err.Error()))
		return
	}

	opts, err := formOptions(r)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	res, err := h.svc.ProcessDocument(r.Context(), extraction.Document{Name: header.Filename, Content: content}, opts)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func formOptions(r *http.Request) (extraction.Options, error) {
	var opts extraction.Options
	if v := strings.TrimSpace(r.FormValue("reference_date")); v != "" {
		d, err := calendar.ParseDate(v)
		if err != nil {
			return opts, errors.InvalidParam("reference_date must be YYYY-MM-DD").WithDetail(v)
		}
		opts.Reference = d
	}
	for field, dst := range map[string]**bool{
		"use_ai_fallback": &opts.UseAIFallback,
		"use_date_parser": &opts.UseDateParser,
	} {
		v := strings.TrimSpace(r.FormValue(field))
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, errors.InvalidParam(field + " must be a boolean").WithDetail(v)
		}
		*dst = &b
	}
	return opts, nil
}

// Rules handles GET /rules.
func (h *ExtractionHandler) Rules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, RulesResponse{Rules: h.svc.Rules()})
}

// BusinessMetrics handles POST /metrics/business.
func (h *ExtractionHandler) BusinessMetrics(w http.ResponseWriter, r *http.Request) {
	var req BusinessMetricsRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	results := req.Results
	if len(results) == 0 {
		results = extraction.SummaryResults(req.Summary)
	}
	assumptions := h.assumptions
	if req.Assumptions != nil {
		assumptions = *req.Assumptions
	}

	m, err := extraction.CalculateBusinessMetrics(results, assumptions)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	h.logger.WithContext(r.Context()).Debug("business metrics calculated",
		logging.Int("documents", m.TotalDocuments))
	writeJSON(w, http.StatusOK, m)
}
