package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appbilling "github.com/creditgw/backend/internal/application/billing"
	"github.com/creditgw/backend/internal/application/gateway"
	"github.com/creditgw/backend/internal/domain/billing"
	"github.com/creditgw/backend/internal/infrastructure/pricing"
	"github.com/creditgw/backend/internal/infrastructure/ratelimit"
)

func newChatTestServer(t *testing.T, balance decimal.Decimal, dispatcher gateway.Dispatcher) (*gin.Engine, *billing.Account, *memAccounts) {
	t.Helper()
	logger := zap.NewNop()

	account := billing.NewAccount()
	account.Balance = balance
	require.NoError(t, account.ActivateTier(billing.TierPro))
	accounts := newMemAccounts(account)

	credentials := newMemCredentials(testCredential(account.ID, billing.TierPro))

	pipeline := gateway.NewPipeline(gateway.PipelineConfig{
		Authenticator: gateway.NewCredentialAuthenticator(credentials, logger),
		Limiter:       ratelimit.NewLimiter(ratelimit.NewMemoryCounterStore()),
		Prices:        pricing.NewTable(),
		Ledger:        appbilling.NewLedgerService(accounts, logger),
		Usage:         appbilling.NewUsageService(&memUsageRecords{}, memMargins{}, logger),
		Dispatcher:    dispatcher,
		Logger:        logger,
	})

	engine := gin.New()
	NewChatHandler(pipeline, logger).RegisterRoutes(engine.Group("/v1"))
	return engine, account, accounts
}

func chatRequest(t *testing.T, engine *gin.Engine, apiKey string, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	engine.ServeHTTP(w, req)
	return w
}

const validChatBody = `{"model":"gpt-4o","max_tokens":100,"messages":[{"role":"user","content":"hello"}]}`

func TestChatHandler_Success(t *testing.T) {
	providerBody := []byte(`{"id":"cmpl-1","choices":[{"message":{"content":"hi"}}]}`)
	dispatcher := &scriptedDispatcher{result: upstreamResult(http.StatusOK, providerBody, 10, 5)}

	engine, account, accounts := newChatTestServer(t, decimal.NewFromInt(100), dispatcher)

	w := chatRequest(t, engine, testAPIKey(), validChatBody)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, providerBody, w.Body.Bytes())
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Limit"))
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Remaining"))

	// Settled usage was charged
	updated, err := accounts.FindByID(context.Background(), account.ID)
	require.NoError(t, err)
	assert.True(t, updated.Balance.LessThan(decimal.NewFromInt(100)))
}

func TestChatHandler_MissingKey(t *testing.T) {
	engine, _, _ := newChatTestServer(t, decimal.NewFromInt(100), &scriptedDispatcher{})

	w := chatRequest(t, engine, "", validChatBody)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestChatHandler_InvalidKey(t *testing.T) {
	engine, _, _ := newChatTestServer(t, decimal.NewFromInt(100), &scriptedDispatcher{})

	w := chatRequest(t, engine, "sk-wrongwrongwrongwrong", validChatBody)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, false, resp["success"])
}

func TestChatHandler_InsufficientCredits(t *testing.T) {
	engine, _, _ := newChatTestServer(t, decimal.NewFromFloat(0.001), &scriptedDispatcher{})

	w := chatRequest(t, engine, testAPIKey(), validChatBody)

	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Contains(t, w.Body.String(), "ERR_INSUFFICIENT_CREDITS")
}

func TestChatHandler_UnknownModel(t *testing.T) {
	engine, _, _ := newChatTestServer(t, decimal.NewFromInt(100), &scriptedDispatcher{})

	body := `{"model":"no-such-model","messages":[{"role":"user","content":"hello"}]}`
	w := chatRequest(t, engine, testAPIKey(), body)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "ERR_UNKNOWN_MODEL")
}

func TestChatHandler_MalformedBody(t *testing.T) {
	engine, _, _ := newChatTestServer(t, decimal.NewFromInt(100), &scriptedDispatcher{})

	w := chatRequest(t, engine, testAPIKey(), `{"model":`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatHandler_RateLimited(t *testing.T) {
	dispatcher := &scriptedDispatcher{result: upstreamResult(http.StatusOK, []byte(`{}`), 1, 1)}
	engine, _, _ := newChatTestServer(t, decimal.NewFromInt(1_000_000), dispatcher)

	limit := billing.TierPro.RequestsPerMinute()
	var last *httptest.ResponseRecorder
	for i := 0; i < limit+1; i++ {
		last = chatRequest(t, engine, testAPIKey(), validChatBody)
	}

	assert.Equal(t, http.StatusTooManyRequests, last.Code)
	assert.NotEmpty(t, last.Header().Get("Retry-After"))
	assert.Equal(t, "0", last.Header().Get("X-RateLimit-Remaining"))
}

func TestChatHandler_DownstreamFailure(t *testing.T) {
	dispatcher := &scriptedDispatcher{err: errors.New("connection refused")}
	engine, account, accounts := newChatTestServer(t, decimal.NewFromInt(100), dispatcher)

	w := chatRequest(t, engine, testAPIKey(), validChatBody)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "ERR_DOWNSTREAM")

	updated, err := accounts.FindByID(context.Background(), account.ID)
	require.NoError(t, err)
	assert.True(t, updated.Balance.Equal(decimal.NewFromInt(100)))
}

func TestChatHandler_ProviderErrorProxied(t *testing.T) {
	providerBody := []byte(`{"error":{"message":"model overloaded"}}`)
	dispatcher := &scriptedDispatcher{result: upstreamResult(http.StatusServiceUnavailable, providerBody, 0, 0)}
	engine, account, accounts := newChatTestServer(t, decimal.NewFromInt(100), dispatcher)

	w := chatRequest(t, engine, testAPIKey(), validChatBody)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, providerBody, w.Body.Bytes())

	updated, err := accounts.FindByID(context.Background(), account.ID)
	require.NoError(t, err)
	assert.True(t, updated.Balance.Equal(decimal.NewFromInt(100)))
}
