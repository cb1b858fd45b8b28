// Package handlers implements the REST endpoints of the deadline agent.
package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/turtacn/deadline-agent/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/deadline-agent/pkg/errors"
)

// DefaultMaxBodyBytes bounds JSON request bodies when no limit is configured.
const DefaultMaxBodyBytes int64 = 20 << 20

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// writeAppError maps err onto its status code. Server-side failures are
// logged and their message masked.
func writeAppError(w http.ResponseWriter, r *http.Request, logger logging.Logger, err error) {
	code := errors.GetCode(err)
	if code == errors.CodeUnknown {
		code = errors.ErrCodeInternal
	}
	status := errors.HTTPStatusForCode(code)

	resp := ErrorResponse{Code: code.String(), Message: errors.Message(err)}
	var ae *errors.AppError
	if errors.As(err, &ae) {
		resp.Detail = ae.Detail
	}
	if status >= http.StatusInternalServerError {
		logger.WithContext(r.Context()).Error("request failed",
			logging.String("path", r.URL.Path),
			logging.String("code", code.String()),
			logging.Err(err))
		resp.Message = errors.DefaultMessageForCode(code)
		resp.Detail = ""
	}
	writeJSON(w, status, resp)
}

// decodeJSON reads a single JSON document of at most limit bytes into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, dst interface{}) error {
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return errors.New(errors.ErrCodeDocumentTooLarge, "request body too large")
		case errors.Is(err, io.EOF):
			return errors.InvalidParam("request body is required")
		default:
			return errors.InvalidParam("invalid request body").WithDetail(err.Error())
		}
	}
	return nil
}
