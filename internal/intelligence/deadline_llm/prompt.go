package deadline_llm

import (
	"bytes"
	"text/template"
	"unicode/utf8"

	"github.com/turtacn/deadline-agent/internal/domain/calendar"
)

const defaultPrompt = `You are a Portuguese tax deadline expert. Analyze this text and extract deadline information.

Reference date: {{.Reference}}
Text: "{{.Text}}"

Based on Portuguese tax law (CPPT, CIRS, CIVA), identify:
1. The specific tax obligation mentioned
2. The deadline calculation rule
3. The exact deadline date
4. Priority level (urgent/high/medium/low)
5. Legal basis for the deadline

Return ONLY a valid JSON object with:
{
    "deadline": "YYYY-MM-DD",
    "rule": "description of the rule applied",
    "priority": "urgency level",
    "legal_basis": "relevant legal framework",
    "confidence": "high/medium/low"
}

If no deadline can be determined, return {"error": "No deadline found"}.
`

type promptData struct {
	Reference string
	Text      string
}

func parsePrompt(src string) (*template.Template, error) {
	return template.New("deadline").Option("missingkey=error").Parse(src)
}

// promptBuilder renders the extraction prompt.
type promptBuilder struct {
	tmpl     *template.Template
	maxChars int
}

func newPromptBuilder(src string, maxChars int) (*promptBuilder, error) {
	if src == "" {
		src = defaultPrompt
	}
	tmpl, err := parsePrompt(src)
	if err != nil {
		return nil, err
	}
	return &promptBuilder{tmpl: tmpl, maxChars: maxChars}, nil
}

func (b *promptBuilder) build(text string, ref calendar.Date) (string, error) {
	var buf bytes.Buffer
	err := b.tmpl.Execute(&buf, promptData{
		Reference: ref.String(),
		Text:      truncateRunes(text, b.maxChars),
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

func truncateRunes(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max])
}
