package gateway

import (
	"encoding/json"

	"github.com/creditgw/backend/internal/domain/shared"
)

// DefaultMaxOutputTokens is the output budget assumed when the caller does
// not declare max_tokens. The worst-case estimate needs an upper bound; if
// the provider generates more than this the actual usage is still charged.
const DefaultMaxOutputTokens = 1024

// Request is the admission view of a chat completion call: the raw body is
// forwarded verbatim, the parsed fields drive pricing and estimation.
type Request struct {
	Model           string
	MaxOutputTokens int64
	PromptTokens    int64
	Body            []byte
}

type chatCompletionBody struct {
	Model     string `json:"model"`
	MaxTokens int64  `json:"max_tokens"`
	Messages  []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

// ParseRequest extracts the billing-relevant fields from an
// OpenAI-compatible chat completion body. The prompt token count is an
// estimate (four characters per token); only the estimate uses it, the
// settled charge comes from the provider's reported usage.
func ParseRequest(body []byte) (Request, error) {
	var parsed chatCompletionBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Request{}, shared.NewDomainError("INVALID_REQUEST", "Request body is not valid JSON")
	}
	if parsed.Model == "" {
		return Request{}, shared.NewDomainError("INVALID_REQUEST", "Field 'model' is required")
	}
	if len(parsed.Messages) == 0 {
		return Request{}, shared.NewDomainError("INVALID_REQUEST", "Field 'messages' is required")
	}
	if parsed.MaxTokens < 0 {
		return Request{}, shared.NewDomainError("INVALID_REQUEST", "Field 'max_tokens' cannot be negative")
	}

	maxTokens := parsed.MaxTokens
	if maxTokens == 0 {
		maxTokens = DefaultMaxOutputTokens
	}

	var promptChars int64
	for _, m := range parsed.Messages {
		promptChars += int64(len(m.Role) + len(m.Content))
	}
	promptTokens := promptChars / 4
	if promptTokens == 0 {
		promptTokens = 1
	}

	return Request{
		Model:           parsed.Model,
		MaxOutputTokens: maxTokens,
		PromptTokens:    promptTokens,
		Body:            body,
	}, nil
}
