package services_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MegaGrindStone/idea-generator/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func float32Ptr(f float32) *float32 { return &f }

func intPtr(i int) *int { return &i }

func ollamaServer(t *testing.T, gotBody *map[string]any, chunks ...string) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		if gotBody != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(gotBody))
		}

		w.Header().Set("Content-Type", "application/x-ndjson")
		enc := json.NewEncoder(w)
		for _, c := range chunks {
			_ = enc.Encode(map[string]any{
				"model":   "llama3",
				"message": map[string]any{"role": "assistant", "content": c},
				"done":    false,
			})
		}
		_ = enc.Encode(map[string]any{"model": "llama3", "done": true})
	}))
}

func TestOllamaGenerate(t *testing.T) {
	var gotBody map[string]any
	srv := ollamaServer(t, &gotBody, "Sell ", "socks.")
	defer srv.Close()

	params := services.LLMParameters{Temperature: float32Ptr(0.5), MaxTokens: intPtr(64)}
	o, err := services.NewOllama(srv.URL, "llama3", "be brief", params, discardLogger())
	require.NoError(t, err)

	var chunks []string
	for chunk, err := range o.Generate(context.Background(), "give me an idea") {
		require.NoError(t, err)
		chunks = append(chunks, chunk)
	}

	assert.Equal(t, []string{"Sell ", "socks."}, chunks)

	msgs, ok := gotBody["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "give me an idea", msgs[1].(map[string]any)["content"])

	opts, ok := gotBody["options"].(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 0.5, opts["temperature"], 1e-6)
	assert.EqualValues(t, 64, opts["num_predict"])
	assert.NotContains(t, opts, "top_p")
}

func TestOllamaGenerateStopsEarly(t *testing.T) {
	srv := ollamaServer(t, nil, "one ", "two ", "three")
	defer srv.Close()

	o, err := services.NewOllama(srv.URL, "llama3", "", services.LLMParameters{}, discardLogger())
	require.NoError(t, err)

	var chunks []string
	for chunk, err := range o.Generate(context.Background(), "idea") {
		require.NoError(t, err)
		chunks = append(chunks, chunk)
		break
	}

	assert.Equal(t, []string{"one "}, chunks)
}

func TestOllamaGenerateError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":"model not found"}`)
	}))
	defer srv.Close()

	o, err := services.NewOllama(srv.URL, "missing", "", services.LLMParameters{}, discardLogger())
	require.NoError(t, err)

	var gotErr error
	for _, err := range o.Generate(context.Background(), "idea") {
		gotErr = err
	}
	require.Error(t, gotErr)
	assert.Contains(t, gotErr.Error(), "model not found")
}

func TestOpenAIGenerate(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "text/event-stream")
		for _, c := range []string{"Sell ", "", "socks."} {
			chunk, _ := json.Marshal(map[string]any{
				"id":      "chatcmpl-1",
				"object":  "chat.completion.chunk",
				"choices": []any{map[string]any{"index": 0, "delta": map[string]any{"content": c}}},
			})
			_, _ = io.WriteString(w, "data: "+string(chunk)+"\n\n")
		}
		_, _ = io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	params := services.LLMParameters{TopP: float32Ptr(0.9)}
	o := services.NewOpenAI("key", srv.URL+"/v1", "gpt-4o-mini", "be brief", params, discardLogger())

	var chunks []string
	for chunk, err := range o.Generate(context.Background(), "give me an idea") {
		require.NoError(t, err)
		chunks = append(chunks, chunk)
	}

	assert.Equal(t, []string{"Sell ", "socks."}, chunks)
	assert.Equal(t, "gpt-4o-mini", gotBody["model"])
	assert.Equal(t, true, gotBody["stream"])
	assert.InDelta(t, 0.9, gotBody["top_p"], 1e-6)

	msgs, ok := gotBody["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	assert.Equal(t, "be brief", msgs[0].(map[string]any)["content"])
}

func TestOpenAIGenerateError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	o := services.NewOpenAI("key", srv.URL+"/v1", "gpt-4o-mini", "", services.LLMParameters{}, discardLogger())

	var gotErr error
	for _, err := range o.Generate(context.Background(), "idea") {
		gotErr = err
	}
	require.Error(t, gotErr)
	assert.Contains(t, gotErr.Error(), "bad key")
}
