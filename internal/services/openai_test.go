package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobarin/viralforge/internal/config"
)

func TestOpenAI_CompleteWithSchema(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "gpt-5-mini",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "{\"ok\":true}"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 3, "total_tokens": 13}
		}`))
	}))
	defer srv.Close()

	svc := NewOpenAIService(config.ReasoningConfig{APIKey: "sk-test", BaseURL: srv.URL + "/"})
	require.False(t, svc.MockMode())
	assert.Equal(t, defaultOpenAIModel, svc.Model())

	out, err := svc.Complete(context.Background(), CompletionRequest{
		System:     "you are a trend analyst",
		User:       "hoodies",
		SchemaName: "trend_report",
		Schema:     json.RawMessage(`{"type":"object","properties":{"ok":{"type":"boolean"}}}`),
	})

	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out)
	assert.Equal(t, "gpt-5-mini", body["model"])

	format, ok := body["response_format"].(map[string]any)
	require.True(t, ok, "response_format missing")
	assert.Equal(t, "json_schema", format["type"])
	schema, ok := format["json_schema"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "trend_report", schema["name"])
}

func TestOpenAI_CompleteNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[]}`))
	}))
	defer srv.Close()

	svc := NewOpenAIService(config.ReasoningConfig{APIKey: "sk-test", BaseURL: srv.URL})
	_, err := svc.Complete(context.Background(), CompletionRequest{User: "hi"})
	assert.ErrorIs(t, err, ErrNoCompletion)
}

func TestOpenAI_CompleteHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	}))
	defer srv.Close()

	svc := NewOpenAIService(config.ReasoningConfig{APIKey: "sk-test", BaseURL: srv.URL})
	_, err := svc.Complete(context.Background(), CompletionRequest{User: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "openai request failed")
}

func TestOpenAI_MockTranscribe(t *testing.T) {
	svc := NewOpenAIService(config.ReasoningConfig{})
	require.True(t, svc.MockMode())

	words, err := svc.Transcribe(context.Background(), nil, "", "link in bio")
	require.NoError(t, err)
	require.Len(t, words, 3)
	assert.Equal(t, "bio", words[2].Word)
	assert.InDelta(t, 0.8, words[2].Start, 1e-9)

	_, err = svc.Transcribe(context.Background(), nil, "", "")
	assert.Error(t, err)
}
