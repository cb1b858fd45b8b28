package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a module-prefixed, stable identifier for a failure category.
// The prefix before the underscore names the owning module.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common codes.
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeTooManyRequests    ErrorCode = "COMMON_007"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeExternalService    ErrorCode = "COMMON_014"
	ErrCodeFeatureDisabled    ErrorCode = "COMMON_015"
	ErrCodeNotImplemented     ErrorCode = "COMMON_016"
)

// Short aliases used by the factory helpers.
const (
	CodeInternal     = ErrCodeInternal
	CodeInvalidParam = ErrCodeBadRequest
	CodeNotFound     = ErrCodeNotFound
	CodeConflict     = ErrCodeConflict
	CodeRateLimit    = ErrCodeTooManyRequests
	CodeTimeout      = ErrCodeTimeout
	CodeOK           = ErrorCode("OK")
	CodeUnknown      = ErrorCode("UNKNOWN")
)

// Deadline engine codes.
const (
	ErrCodeNoDeadline         ErrorCode = "DEADLINE_001"
	ErrCodeRuleInvalid        ErrorCode = "DEADLINE_002"
	ErrCodeCalendarRange      ErrorCode = "DEADLINE_003"
	ErrCodeResultInconsistent ErrorCode = "DEADLINE_004"
)

// Document intake codes.
const (
	ErrCodeDocumentUnsupported      ErrorCode = "DOC_001"
	ErrCodeDocumentExtractionFailed ErrorCode = "DOC_002"
	ErrCodeDocumentTooLarge         ErrorCode = "DOC_003"
)

// Language model codes.
const (
	ErrCodeAIModelNotAvailable ErrorCode = "AI_001"
	ErrCodeAIInferenceFailed   ErrorCode = "AI_002"
	ErrCodeAIInputInvalid      ErrorCode = "AI_004"
	ErrCodeAIRateLimited       ErrorCode = "AI_005"
)

// Messaging codes.
const (
	ErrCodePublishFailed ErrorCode = "MSG_001"
	ErrCodeConsumeFailed ErrorCode = "MSG_002"
)

// ErrorCodeHTTPStatus maps codes onto the status the HTTP layer responds with.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeTooManyRequests:    http.StatusTooManyRequests,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusBadGateway,
	ErrCodeFeatureDisabled:    http.StatusForbidden,
	ErrCodeNotImplemented:     http.StatusNotImplemented,

	ErrCodeNoDeadline:         http.StatusUnprocessableEntity,
	ErrCodeRuleInvalid:        http.StatusBadRequest,
	ErrCodeCalendarRange:      http.StatusBadRequest,
	ErrCodeResultInconsistent: http.StatusInternalServerError,

	ErrCodeDocumentUnsupported:      http.StatusUnsupportedMediaType,
	ErrCodeDocumentExtractionFailed: http.StatusUnprocessableEntity,
	ErrCodeDocumentTooLarge:         http.StatusRequestEntityTooLarge,

	ErrCodeAIModelNotAvailable: http.StatusServiceUnavailable,
	ErrCodeAIInferenceFailed:   http.StatusBadGateway,
	ErrCodeAIInputInvalid:      http.StatusBadRequest,
	ErrCodeAIRateLimited:       http.StatusTooManyRequests,

	ErrCodePublishFailed: http.StatusInternalServerError,
	ErrCodeConsumeFailed: http.StatusInternalServerError,
}

// ErrorCodeMessage holds the default human-readable text per code.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeTooManyRequests:    "too many requests",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "request timeout",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization failed",
	ErrCodeCacheError:         "cache error",
	ErrCodeExternalService:    "external service error",
	ErrCodeFeatureDisabled:    "feature disabled",
	ErrCodeNotImplemented:     "not implemented",

	ErrCodeNoDeadline:         "no deadline could be determined",
	ErrCodeRuleInvalid:        "invalid rule definition",
	ErrCodeCalendarRange:      "date outside calendar range",
	ErrCodeResultInconsistent: "inconsistent deadline result",

	ErrCodeDocumentUnsupported:      "unsupported document type",
	ErrCodeDocumentExtractionFailed: "failed to extract document text",
	ErrCodeDocumentTooLarge:         "document too large",

	ErrCodeAIModelNotAvailable: "model error",
	ErrCodeAIInferenceFailed:   "AI inference failed",
	ErrCodeAIInputInvalid:      "invalid input for AI model",
	ErrCodeAIRateLimited:       "AI request rate exceeded",

	ErrCodePublishFailed: "failed to publish message",
	ErrCodeConsumeFailed: "failed to consume message",
}

// HTTPStatusForCode returns the HTTP status for code, or 500 when unmapped.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the registered message for code.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

func IsServerError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 500 && status < 600
}

// ModuleForCode returns the module prefix of code ("AI" for "AI_002").
func ModuleForCode(code ErrorCode) string {
	parts := strings.SplitN(string(code), "_", 2)
	if len(parts) > 1 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}
