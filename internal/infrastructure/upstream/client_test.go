package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatCompletions_ParsesUsage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-upstream", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id": "chatcmpl-1",
			"choices": []map[string]any{
				{"index": 0, "message": map[string]any{"role": "assistant", "content": "hi"}},
			},
			"usage": map[string]any{
				"prompt_tokens":     500,
				"completion_tokens": 200,
				"total_tokens":      700,
			},
		})
	}))
	defer server.Close()

	client := NewClientWithHTTPClient(server.URL, "sk-upstream", server.Client(), nil)

	result, err := client.ChatCompletions(context.Background(), []byte(`{"model":"gpt-4o"}`))
	require.NoError(t, err)

	assert.True(t, result.Succeeded())
	assert.Equal(t, int64(500), result.TokensIn)
	assert.Equal(t, int64(200), result.TokensOut)
	assert.Contains(t, string(result.Body), "chatcmpl-1")
}

func TestChatCompletions_ProviderErrorIsResultNotError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer server.Close()

	client := NewClientWithHTTPClient(server.URL, "sk-upstream", server.Client(), nil)

	result, err := client.ChatCompletions(context.Background(), []byte(`{}`))
	require.NoError(t, err)

	assert.False(t, result.Succeeded())
	assert.Equal(t, http.StatusTooManyRequests, result.StatusCode)
	assert.Zero(t, result.TokensIn, "no usage is billed for failed calls")
}

func TestChatCompletions_UnreachableProvider(t *testing.T) {
	client := NewClientWithHTTPClient("http://127.0.0.1:1", "sk-upstream",
		&http.Client{Timeout: 200 * time.Millisecond}, nil)

	_, err := client.ChatCompletions(context.Background(), []byte(`{}`))
	assert.Error(t, err)
}

func TestChatCompletions_MissingUsageBlock(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"chatcmpl-2","choices":[]}`))
	}))
	defer server.Close()

	client := NewClientWithHTTPClient(server.URL, "sk-upstream", server.Client(), nil)

	result, err := client.ChatCompletions(context.Background(), []byte(`{}`))
	require.NoError(t, err)
	assert.True(t, result.Succeeded())
	assert.Zero(t, result.TokensIn)
	assert.Zero(t, result.TokensOut)
}
