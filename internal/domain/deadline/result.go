// Package deadline holds the deadline extraction domain: the result shape,
// text normalization, the ordered tax-obligation rule table and the generic
// date-mention parser.
package deadline

import (
	"strings"
	"time"

	"github.com/turtacn/deadline-agent/internal/domain/calendar"
	"github.com/turtacn/deadline-agent/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Enumerations
// ─────────────────────────────────────────────────────────────────────────────

// Priority ranks how soon a deadline needs attention.
type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

func (p Priority) IsValid() bool {
	switch p {
	case PriorityUrgent, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// ParsePriority lowercases s and returns fallback when it is not a known priority.
func ParsePriority(s string, fallback Priority) Priority {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	if p.IsValid() {
		return p
	}
	return fallback
}

// Confidence grades how trustworthy a detected deadline is.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

func (c Confidence) IsValid() bool {
	switch c {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return true
	}
	return false
}

// ParseConfidence lowercases s and returns fallback when it is not a known level.
func ParseConfidence(s string, fallback Confidence) Confidence {
	c := Confidence(strings.ToLower(strings.TrimSpace(s)))
	if c.IsValid() {
		return c
	}
	return fallback
}

// Method records which stage produced a result.
type Method string

const (
	MethodRuleBased   Method = "rule_based"
	MethodAIInference Method = "ai_inference"
	MethodFailed      Method = "failed"
)

// ─────────────────────────────────────────────────────────────────────────────
// Result
// ─────────────────────────────────────────────────────────────────────────────

const (
	// DefaultLegalBasis is reported when no statute is attached to a result.
	DefaultLegalBasis = "not specified"
	// NoDeadlineMessage is the error text of a result no stage could resolve.
	NoDeadlineMessage = "No deadline could be determined"
)

// Result is the single output shape of the engine. Exactly one of Deadline
// and Error is set.
type Result struct {
	Deadline         *calendar.Date `json:"deadline,omitempty"`
	Rule             string         `json:"rule,omitempty"`
	RuleID           string         `json:"rule_id,omitempty"`
	Priority         Priority       `json:"priority,omitempty"`
	LegalBasis       string         `json:"legal_basis,omitempty"`
	Confidence       Confidence     `json:"confidence,omitempty"`
	ProcessingMethod Method         `json:"processing_method"`
	ProcessedAt      time.Time      `json:"processed_at"`
	Error            string         `json:"error,omitempty"`
}

// NewFailure returns a failed result carrying msg.
func NewFailure(msg string, at time.Time) *Result {
	return &Result{
		ProcessingMethod: MethodFailed,
		ProcessedAt:      at,
		Error:            msg,
	}
}

// Succeeded reports whether r carries a deadline.
func (r *Result) Succeeded() bool {
	return r != nil && r.Deadline != nil && r.Error == ""
}

// DeadlineString returns the deadline as YYYY-MM-DD, or "" on failure.
func (r *Result) DeadlineString() string {
	if r == nil || r.Deadline == nil {
		return ""
	}
	return r.Deadline.String()
}

// Stamp sets the processing method and time.
func (r *Result) Stamp(method Method, at time.Time) *Result {
	r.ProcessingMethod = method
	r.ProcessedAt = at
	return r
}

// Validate checks the deadline-xor-error invariant and the enumerations.
func (r *Result) Validate() error {
	if r == nil {
		return errors.New(errors.ErrCodeResultInconsistent, "nil result")
	}
	hasDeadline := r.Deadline != nil && !r.Deadline.IsZero()
	hasError := r.Error != ""
	switch {
	case hasDeadline && hasError:
		return errors.New(errors.ErrCodeResultInconsistent, "result carries both a deadline and an error")
	case !hasDeadline && !hasError:
		return errors.New(errors.ErrCodeResultInconsistent, "result carries neither a deadline nor an error")
	}
	if hasError {
		if r.ProcessingMethod != MethodFailed {
			return errors.New(errors.ErrCodeResultInconsistent, "failed result must use the failed method")
		}
		return nil
	}
	if r.ProcessingMethod == MethodFailed {
		return errors.New(errors.ErrCodeResultInconsistent, "successful result cannot use the failed method")
	}
	if !r.Priority.IsValid() {
		return errors.New(errors.ErrCodeResultInconsistent, "invalid priority").WithDetail(string(r.Priority))
	}
	if !r.Confidence.IsValid() {
		return errors.New(errors.ErrCodeResultInconsistent, "invalid confidence").WithDetail(string(r.Confidence))
	}
	return nil
}

func datePtr(d calendar.Date) *calendar.Date { return &d }
