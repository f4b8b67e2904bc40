package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func labelSchema(categories ...string) *Schema {
	return &Schema{
		Name: "category-label",
		Definition: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"category": map[string]any{"type": "string", "enum": categories},
			},
			"required":             []string{"category"},
			"additionalProperties": false,
		},
	}
}

func serve(t *testing.T, status int, body any) (*httptest.Server, *[]map[string]any) {
	t.Helper()
	var requests []map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var req map[string]any
		_ = json.Unmarshal(raw, &req)
		requests = append(requests, req)

		w.Header().Set("Content-Type", "application/json")
		if status == http.StatusTooManyRequests {
			w.Header().Set("Retry-After", "7")
		}
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(server.Close)
	return server, &requests
}

func anthropicMessage(text, stop string) map[string]any {
	return map[string]any{
		"id":          "msg_test",
		"type":        "message",
		"role":        "assistant",
		"content":     []map[string]any{{"type": "text", "text": text}},
		"model":       "claude-haiku-4-5-20251001",
		"stop_reason": stop,
		"usage":       map[string]any{"input_tokens": 50, "output_tokens": 30},
	}
}

func anthropicError(kind string) map[string]any {
	return map[string]any{"type": "error", "error": map[string]any{"type": kind, "message": kind}}
}

func TestAnthropicProvider(t *testing.T) {
	t.Run("structured output", func(t *testing.T) {
		server, requests := serve(t, http.StatusOK, anthropicMessage(`{"category":"geo"}`, "end_turn"))
		p, err := NewAnthropicProvider(AnthropicConfig{APIKey: "k", Model: "claude-haiku", BaseURL: server.URL})
		require.NoError(t, err)

		resp, err := p.Generate(context.Background(), Request{
			System:   "Classify.",
			Messages: []Message{{Role: RoleUser, Content: "Capital of France?"}},
			Schema:   labelSchema("geo", "math"),
		})
		require.NoError(t, err)
		assert.JSONEq(t, `{"category":"geo"}`, string(resp.Content))
		assert.Equal(t, 50, resp.Usage.InputTokens)
		assert.Equal(t, 80, resp.Usage.TotalTokens)
		assert.Equal(t, "end", resp.StopReason)

		require.Len(t, *requests, 1)
		assert.Equal(t, "claude-haiku-4-5-20251001", (*requests)[0]["model"])
		assert.EqualValues(t, defaultMaxTokens, (*requests)[0]["max_tokens"])
	})

	t.Run("schema mismatch", func(t *testing.T) {
		server, _ := serve(t, http.StatusOK, anthropicMessage(`{"category":"history"}`, "end_turn"))
		p, err := NewAnthropicProvider(AnthropicConfig{APIKey: "k", BaseURL: server.URL})
		require.NoError(t, err)

		_, err = p.Generate(context.Background(), Request{Schema: labelSchema("geo")})
		var inv *ErrInvalidResponse
		require.True(t, errors.As(err, &inv), "got %T", err)
	})

	t.Run("truncated", func(t *testing.T) {
		server, _ := serve(t, http.StatusOK, anthropicMessage(`{"categ`, "max_tokens"))
		p, err := NewAnthropicProvider(AnthropicConfig{APIKey: "k", BaseURL: server.URL})
		require.NoError(t, err)

		_, err = p.Generate(context.Background(), Request{Schema: labelSchema("geo")})
		var maxTok *ErrMaxTokensExceeded
		require.True(t, errors.As(err, &maxTok), "got %T", err)
	})

	t.Run("refusal", func(t *testing.T) {
		server, _ := serve(t, http.StatusOK, anthropicMessage("", "refusal"))
		p, err := NewAnthropicProvider(AnthropicConfig{APIKey: "k", BaseURL: server.URL})
		require.NoError(t, err)

		_, err = p.Generate(context.Background(), Request{Schema: labelSchema("geo")})
		var refused *ErrRefused
		require.True(t, errors.As(err, &refused), "got %T", err)
	})

	tests := []struct {
		name   string
		status int
		check  func(t *testing.T, err error)
	}{
		{"rate limit", http.StatusTooManyRequests, func(t *testing.T, err error) {
			var rl *ErrRateLimit
			require.True(t, errors.As(err, &rl), "got %T", err)
			assert.Equal(t, 7.0, rl.RetryAfter.Seconds())
		}},
		{"server error", http.StatusInternalServerError, func(t *testing.T, err error) {
			var unavail *ErrProviderUnavailable
			assert.True(t, errors.As(err, &unavail), "got %T", err)
		}},
		{"bad key", http.StatusUnauthorized, func(t *testing.T, err error) {
			var rejected *ErrRequestRejected
			require.True(t, errors.As(err, &rejected), "got %T", err)
			assert.Equal(t, http.StatusUnauthorized, rejected.Status)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := serve(t, tt.status, anthropicError("error"))
			p, err := NewAnthropicProvider(AnthropicConfig{APIKey: "k", BaseURL: server.URL})
			require.NoError(t, err)

			_, err = p.Generate(context.Background(), UserPrompt("", "x"))
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func openAICompletion(content, finish string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1234567890,
		"model":   "gpt-4o-mini",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": content},
			"finish_reason": finish,
		}},
		"usage": map[string]any{"prompt_tokens": 40, "completion_tokens": 25, "total_tokens": 65},
	}
}

func TestOpenAIProvider(t *testing.T) {
	t.Run("structured output", func(t *testing.T) {
		server, requests := serve(t, http.StatusOK, openAICompletion(`{"category":"math"}`, "stop"))
		p, err := NewOpenAIProvider(OpenAIConfig{APIKey: "k", Model: "gpt-4o-mini", BaseURL: server.URL + "/v1"})
		require.NoError(t, err)

		resp, err := p.Generate(context.Background(), Request{
			System:   "Classify.",
			Messages: []Message{{Role: RoleUser, Content: "2+2?"}},
			Schema:   labelSchema("geo", "math"),
		})
		require.NoError(t, err)
		assert.JSONEq(t, `{"category":"math"}`, string(resp.Content))
		assert.Equal(t, 25, resp.Usage.OutputTokens)

		require.Len(t, *requests, 1)
		msgs := (*requests)[0]["messages"].([]any)
		require.Len(t, msgs, 2)
		assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
		format := (*requests)[0]["response_format"].(map[string]any)
		assert.Equal(t, "json_schema", format["type"])
	})

	t.Run("length finish with schema", func(t *testing.T) {
		server, _ := serve(t, http.StatusOK, openAICompletion(`{"cat`, "length"))
		p, err := NewOpenAIProvider(OpenAIConfig{APIKey: "k", BaseURL: server.URL + "/v1"})
		require.NoError(t, err)

		_, err = p.Generate(context.Background(), Request{Schema: labelSchema("geo")})
		var maxTok *ErrMaxTokensExceeded
		assert.True(t, errors.As(err, &maxTok), "got %T", err)
	})

	t.Run("content filter", func(t *testing.T) {
		server, _ := serve(t, http.StatusOK, openAICompletion("", "content_filter"))
		p, err := NewOpenAIProvider(OpenAIConfig{APIKey: "k", BaseURL: server.URL + "/v1"})
		require.NoError(t, err)

		_, err = p.Generate(context.Background(), Request{Schema: labelSchema("geo")})
		var refused *ErrRefused
		assert.True(t, errors.As(err, &refused), "got %T", err)
	})

	t.Run("rate limit", func(t *testing.T) {
		server, _ := serve(t, http.StatusTooManyRequests, map[string]any{
			"error": map[string]any{"type": "tokens", "message": "slow down", "code": "rate_limit_exceeded"},
		})
		p, err := NewOpenAIProvider(OpenAIConfig{APIKey: "k", BaseURL: server.URL + "/v1"})
		require.NoError(t, err)

		_, err = p.Generate(context.Background(), UserPrompt("", "x"))
		var rl *ErrRateLimit
		assert.True(t, errors.As(err, &rl), "got %T", err)
	})

	t.Run("no choices", func(t *testing.T) {
		body := openAICompletion("", "stop")
		body["choices"] = []any{}
		server, _ := serve(t, http.StatusOK, body)
		p, err := NewOpenAIProvider(OpenAIConfig{APIKey: "k", BaseURL: server.URL + "/v1"})
		require.NoError(t, err)

		_, err = p.Generate(context.Background(), UserPrompt("", "x"))
		var inv *ErrInvalidResponse
		assert.True(t, errors.As(err, &inv), "got %T", err)
	})

	t.Run("missing key", func(t *testing.T) {
		_, err := NewOpenAIProvider(OpenAIConfig{})
		assert.Error(t, err)
	})
}

func TestOpenRouterProvider(t *testing.T) {
	server, requests := serve(t, http.StatusOK, openAICompletion(`{"category":"geo"}`, "stop"))
	p, err := NewOpenRouterProvider(OpenRouterConfig{
		APIKey:  "sk-or-test",
		Model:   "anthropic/claude-3-haiku",
		BaseURL: server.URL,
	})
	require.NoError(t, err)
	assert.Equal(t, "anthropic/claude-3-haiku", p.ModelID())

	_, err = p.Generate(context.Background(), Request{Schema: labelSchema("geo")})
	require.NoError(t, err)
	require.Len(t, *requests, 1)
	assert.Equal(t, "anthropic/claude-3-haiku", (*requests)[0]["model"])

	_, err = NewOpenRouterProvider(OpenRouterConfig{Model: "x"})
	assert.Error(t, err)
}

func TestModelAliases(t *testing.T) {
	tests := []struct {
		input   string
		aliases map[string]string
		want    string
	}{
		{"claude-haiku", anthropicModels, "claude-haiku-4-5-20251001"},
		{"claude-sonnet-4-20250514", anthropicModels, "claude-sonnet-4-20250514"},
		{"gemini-flash", geminiModels, "gemini-2.5-flash"},
		{"gemini-2.0-flash", geminiModels, "gemini-2.0-flash"},
	}
	for _, tt := range tests {
		if got := resolveModel(tt.input, tt.aliases); got != tt.want {
			t.Errorf("resolveModel(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestBuildGeminiSchema(t *testing.T) {
	schema := buildGeminiSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"category":   map[string]any{"type": "string", "enum": []string{"geo", "math"}},
			"confidence": map[string]any{"type": "number"},
			"tags": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
		},
		"required": []any{"category"},
	})

	assert.Equal(t, "OBJECT", string(schema.Type))
	require.Len(t, schema.Properties, 3)
	assert.Equal(t, []string{"geo", "math"}, schema.Properties["category"].Enum)
	assert.Equal(t, "NUMBER", string(schema.Properties["confidence"].Type))
	assert.Equal(t, "STRING", string(schema.Properties["tags"].Items.Type))
	assert.Equal(t, []string{"category"}, schema.Required)
}

func TestMapGeminiStopReason(t *testing.T) {
	candidate := func(r genai.FinishReason) *genai.GenerateContentResponse {
		return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{FinishReason: r}}}
	}
	tests := []struct {
		name   string
		result *genai.GenerateContentResponse
		want   string
	}{
		{"stop", candidate(genai.FinishReasonStop), StopEnd},
		{"max tokens", candidate(genai.FinishReasonMaxTokens), StopMaxTokens},
		{"safety", candidate(genai.FinishReasonSafety), StopRefused},
		{"prohibited", candidate(genai.FinishReasonProhibitedContent), StopRefused},
		{"no candidates", &genai.GenerateContentResponse{}, StopEnd},
		{"blocked prompt", &genai.GenerateContentResponse{
			PromptFeedback: &genai.GenerateContentResponsePromptFeedback{BlockReason: genai.BlockedReasonSafety},
		}, StopRefused},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mapGeminiStopReason(tt.result))
		})
	}
}
