package gateway

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRequest(t *testing.T) {
	body := []byte(`{
		"model": "gpt-4o",
		"max_tokens": 256,
		"messages": [{"role": "user", "content": "` + strings.Repeat("a", 396) + `"}]
	}`)

	req, err := ParseRequest(body)

	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", req.Model)
	assert.Equal(t, int64(256), req.MaxOutputTokens)
	// 396 content chars + 4 role chars at 4 chars per token
	assert.Equal(t, int64(100), req.PromptTokens)
	assert.Equal(t, body, req.Body)
}

func TestParseRequest_DefaultsMaxTokens(t *testing.T) {
	req, err := ParseRequest([]byte(`{"model":"gpt-4o","messages":[{"role":"user","content":"hi"}]}`))

	require.NoError(t, err)
	assert.Equal(t, int64(DefaultMaxOutputTokens), req.MaxOutputTokens)
	// Tiny prompts still estimate at least one token
	assert.GreaterOrEqual(t, req.PromptTokens, int64(1))
}

func TestParseRequest_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{model: gpt}`},
		{"missing model", `{"messages":[{"role":"user","content":"hi"}]}`},
		{"missing messages", `{"model":"gpt-4o"}`},
		{"empty messages", `{"model":"gpt-4o","messages":[]}`},
		{"negative max_tokens", `{"model":"gpt-4o","max_tokens":-1,"messages":[{"role":"user","content":"hi"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRequest([]byte(tt.body))
			assert.Error(t, err)
		})
	}
}
