// Package upstream implements the HTTP client for the downstream
// OpenAI-compatible AI provider.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/creditgw/backend/internal/infrastructure/config"
)

const defaultTimeout = 90 * time.Second

// Result is the outcome of a forwarded completion request.
// Token counts come from the provider's usage block and are zero when
// the provider did not report usage.
type Result struct {
	StatusCode int
	Body       []byte
	TokensIn   int64
	TokensOut  int64
}

// Succeeded reports whether the provider answered with a 2xx status
func (r *Result) Succeeded() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Client forwards chat completion requests to one OpenAI-compatible
// provider endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates an upstream client from configuration
func NewClient(cfg config.UpstreamConfig, logger *zap.Logger) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// NewClientWithHTTPClient creates a client with a caller-supplied
// http.Client. Used in tests.
func NewClientWithHTTPClient(baseURL, apiKey string, httpClient *http.Client, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: httpClient,
		logger:     logger,
	}
}

// usageEnvelope is the part of the provider response we care about
type usageEnvelope struct {
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
	} `json:"usage"`
}

// ChatCompletions forwards a completion request body to the provider.
// Non-2xx provider responses are returned as a Result, not an error;
// an error means the provider could not be reached at all.
func (c *Client) ChatCompletions(ctx context.Context, body []byte) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build upstream request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read upstream response: %w", err)
	}

	result := &Result{
		StatusCode: resp.StatusCode,
		Body:       respBody,
	}

	if result.Succeeded() {
		var envelope usageEnvelope
		if err := json.Unmarshal(respBody, &envelope); err != nil {
			c.logger.Warn("failed to parse upstream usage block",
				zap.Int("status", resp.StatusCode),
				zap.Error(err),
			)
		} else {
			result.TokensIn = envelope.Usage.PromptTokens
			result.TokensOut = envelope.Usage.CompletionTokens
		}
	}

	return result, nil
}
