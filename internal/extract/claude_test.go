package extract

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

	"github.com/dgallion1/docground/internal/config"
)

func messageJSON(text string) string {
	b, _ := json.Marshal(map[string]any{
		"id":          "msg_test",
		"type":        "message",
		"role":        "assistant",
		"model":       "claude-test",
		"stop_reason": "end_turn",
		"content":     []map[string]any{{"type": "text", "text": text}},
		"usage":       map[string]any{"input_tokens": 10, "output_tokens": 5},
	})
	return string(b)
}

func TestClaudeExtract(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, messageJSON(`{"invoice_number": {"value": "INV-001", "confidence": 0.8}}`))
	}))
	defer srv.Close()

	c := NewClaude(config.LLMConfig{APIKey: "test", Model: "claude-test", BaseURL: srv.URL, MaxTokens: 256})
	resp, err := c.Extract(context.Background(), Request{
		Fields:  []string{"invoice_number", "total"},
		Context: "Invoice INV-001",
	})
	require.NoError(t, err)

	require.NotNil(t, resp.Values["invoice_number"].Value)
	assert.Equal(t, "INV-001", *resp.Values["invoice_number"].Value)
	assert.InDelta(t, 0.8, resp.Values["invoice_number"].Confidence, 1e-9)
	assert.Nil(t, resp.Values["total"].Value)
	assert.Contains(t, resp.Prompt, "CONTEXT:\nInvoice INV-001")
	assert.Equal(t, "claude-test", gotBody["model"])
	assert.EqualValues(t, 256, gotBody["max_tokens"])
}

func TestClaudeExtract_RateLimitedIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`)
	}))
	defer srv.Close()

	c := NewClaude(config.LLMConfig{APIKey: "test", Model: "claude-test", BaseURL: srv.URL})
	_, err := c.Extract(context.Background(), Request{Fields: []string{"a"}})

	var re *RetryableError
	require.True(t, errors.As(err, &re), "got %v", err)
	assert.Equal(t, http.StatusTooManyRequests, re.StatusCode)
}

func TestClaudeExtract_BadRequestIsNotRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`)
	}))
	defer srv.Close()

	c := NewClaude(config.LLMConfig{APIKey: "test", Model: "claude-test", BaseURL: srv.URL})
	_, err := c.Extract(context.Background(), Request{Fields: []string{"a"}})

	require.Error(t, err)
	var re *RetryableError
	assert.False(t, errors.As(err, &re))
}
