package deadline_llm

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/turtacn/deadline-agent/internal/domain/calendar"
	"github.com/turtacn/deadline-agent/internal/domain/deadline"
	"github.com/turtacn/deadline-agent/pkg/errors"
)

// Messages surfaced for malformed model output.
const (
	msgJSONParsing = "JSON parsing error: "
	msgNoDeadline  = "Could not parse deadline from AI response"
	msgSchema      = "AI response failed schema validation"
	msgInvalidDate = "AI returned an invalid date: "
)

const responseSchemaURL = "https://deadline-agent.local/schemas/ai-response.schema.json"

// responseSchema is the contract the extracted JSON object must satisfy.
// Optional string fields are free-form; priority and confidence are
// normalized after validation.
const responseSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["deadline"],
  "properties": {
    "deadline":    {"type": "string", "pattern": "^\\d{4}-\\d{2}-\\d{2}$"},
    "rule":        {"type": "string"},
    "priority":    {"type": "string"},
    "legal_basis": {"type": "string"},
    "confidence":  {"type": "string"}
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func responseValidator() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		if err := c.AddResource(responseSchemaURL, strings.NewReader(responseSchema)); err != nil {
			schemaErr = err
			return
		}
		compiledSchema, schemaErr = c.Compile(responseSchemaURL)
	})
	return compiledSchema, schemaErr
}

// extractObject returns the substring from the first "{" to the last "}".
func extractObject(raw string) (string, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return raw[start : end+1], true
}

func stringField(obj map[string]interface{}, key string) string {
	s, _ := obj[key].(string)
	return strings.TrimSpace(s)
}

// parseResponse turns raw model output into a Result. ruleLabel is used
// when the model omits "rule".
func parseResponse(raw, ruleLabel string) (*deadline.Result, error) {
	body, ok := extractObject(raw)
	if !ok {
		return nil, errors.New(errors.ErrCodeAIInferenceFailed, msgJSONParsing+"no JSON object in response")
	}
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(body), &obj); err != nil {
		return nil, errors.New(errors.ErrCodeAIInferenceFailed, msgJSONParsing+err.Error())
	}
	if _, hasErr := obj["error"]; hasErr {
		return nil, errors.New(errors.ErrCodeAIInferenceFailed, msgNoDeadline).WithDetail(stringField(obj, "error"))
	}
	if _, hasDeadline := obj["deadline"]; !hasDeadline {
		return nil, errors.New(errors.ErrCodeAIInferenceFailed, msgNoDeadline)
	}

	schema, err := responseValidator()
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to compile AI response schema")
	}
	if err := schema.Validate(obj); err != nil {
		return nil, errors.New(errors.ErrCodeAIInferenceFailed, msgSchema).WithDetail(err.Error())
	}

	d, err := calendar.ParseDate(stringField(obj, "deadline"))
	if err != nil {
		return nil, errors.New(errors.ErrCodeAIInferenceFailed, msgInvalidDate+err.Error())
	}

	r := &deadline.Result{
		Deadline:         &d,
		Rule:             stringField(obj, "rule"),
		Priority:         deadline.ParsePriority(stringField(obj, "priority"), deadline.PriorityMedium),
		LegalBasis:       stringField(obj, "legal_basis"),
		Confidence:       deadline.ParseConfidence(stringField(obj, "confidence"), deadline.ConfidenceMedium),
		ProcessingMethod: deadline.MethodAIInference,
	}
	if r.Rule == "" {
		r.Rule = ruleLabel
	}
	if r.LegalBasis == "" {
		r.LegalBasis = DefaultLegalBasis
	}
	return r, nil
}
