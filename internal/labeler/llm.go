package labeler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"text/template"

	"github.com/sabaio/qaeval/internal/llm"
	"github.com/sabaio/qaeval/internal/record"
)

// MethodLLM names the model-backed labeler.
const MethodLLM = "llm"

// LLMConfig tunes LLM labeling requests.
type LLMConfig struct {
	MaxTokens     int
	Temperature   float64
	MinConfidence float64
}

// DefaultLLMConfig returns the default request settings.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{MaxTokens: 256, Temperature: 0}
}

// LLMLabeler asks a model to pick a category.
type LLMLabeler struct {
	provider llm.Provider
	cfg      LLMConfig
}

// NewLLMLabeler creates an LLM-backed labeler.
func NewLLMLabeler(provider llm.Provider, cfg LLMConfig) *LLMLabeler {
	return &LLMLabeler{provider: provider, cfg: cfg}
}

type labelOutput struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// labelSchema restricts the answer to the candidates plus the uncategorized
// escape hatch.
func labelSchema(categories []string) *llm.Schema {
	enum := slices.Clone(categories)
	if !slices.Contains(enum, record.Uncategorized) {
		enum = append(enum, record.Uncategorized)
	}
	return &llm.Schema{
		Name:        "category-label",
		Description: "Category assignment for an evaluation question",
		Definition: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"category": map[string]any{
					"type":        "string",
					"enum":        enum,
					"description": "One of the listed categories, or uncategorized if none fits",
				},
				"confidence": map[string]any{
					"type":    "number",
					"minimum": 0.0,
					"maximum": 1.0,
				},
				"reasoning": map[string]any{
					"type":        "string",
					"description": "One short sentence",
				},
			},
			"required":             []string{"category", "confidence", "reasoning"},
			"additionalProperties": false,
		},
	}
}

// Label sends the item and candidates to the model. Answers outside the
// candidate list, or under MinConfidence, come back uncategorized.
func (l *LLMLabeler) Label(ctx context.Context, item Item, categories []string) (Label, error) {
	if len(categories) == 0 {
		return uncategorized(MethodLLM, 0), nil
	}
	ctx = llm.WithPurpose(ctx, "category-label")

	prompt, err := buildPrompt(item, categories)
	if err != nil {
		return Label{}, fmt.Errorf("build label prompt: %w", err)
	}

	req := llm.UserPrompt(labelSystemPrompt, prompt)
	req.Schema = labelSchema(categories)
	req.MaxTokens = l.cfg.MaxTokens
	req.Temperature = l.cfg.Temperature

	resp, err := l.provider.Generate(ctx, req)
	var refused *llm.ErrRefused
	if errors.As(err, &refused) {
		lbl := uncategorized(MethodLLM, 0)
		lbl.Reasoning = "model refused to label this item"
		return lbl, nil
	}
	if err != nil {
		return Label{}, fmt.Errorf("llm label: %w", err)
	}

	var out labelOutput
	if err := resp.Decode(&out); err != nil {
		return Label{}, fmt.Errorf("parse label response: %w", err)
	}

	if !slices.Contains(categories, out.Category) || out.Confidence < l.cfg.MinConfidence {
		lbl := uncategorized(MethodLLM, out.Confidence)
		lbl.Reasoning = out.Reasoning
		return lbl, nil
	}
	return Label{
		Category:   out.Category,
		Confidence: out.Confidence,
		Method:     MethodLLM,
		Reasoning:  out.Reasoning,
	}, nil
}

const labelSystemPrompt = `You categorize question/answer pairs from an evaluation set.

Instructions:
- Pick exactly one category from the list provided.
- If none of the categories fits, answer "uncategorized".
- Do NOT invent new categories.
- Confidence is 0.0-1.0.
- Keep reasoning to one sentence.`

var labelUserTemplate = template.Must(template.New("label").Parse(`Question: {{.Item.Question}}
Expected answer: {{.Item.Expected}}

Categories:
{{range .Categories}}- {{.}}
{{end}}`))

func buildPrompt(item Item, categories []string) (string, error) {
	var buf bytes.Buffer
	err := labelUserTemplate.Execute(&buf, struct {
		Item       Item
		Categories []string
	}{item, categories})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
