package handler

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripe "github.com/stripe/stripe-go/v81"
	"go.uber.org/zap"

	appbilling "github.com/creditgw/backend/internal/application/billing"
	"github.com/creditgw/backend/internal/domain/billing"
	"github.com/creditgw/backend/internal/infrastructure/cache"
	"github.com/creditgw/backend/internal/infrastructure/config"
)

const handlerWebhookSecret = "whsec_handler_test"

// brokenAccounts reports an account but cannot persist changes to it,
// which forces webhook processing down the retry path
type brokenAccounts struct {
	*memAccounts
	account *billing.Account
}

func (b *brokenAccounts) FindByCustomerID(ctx context.Context, customerID string) (*billing.Account, error) {
	return b.account, nil
}

func (b *brokenAccounts) Save(ctx context.Context, account *billing.Account) error {
	return errors.New("database unavailable")
}

func newWebhookTestServer(accounts billing.AccountRepository) *gin.Engine {
	logger := zap.NewNop()
	service := appbilling.NewWebhookService(appbilling.WebhookServiceConfig{
		Accounts:    accounts,
		Credentials: newMemCredentials(),
		Ledger:      appbilling.NewLedgerService(accounts, logger),
		Dedup:       cache.NewInMemoryIdempotencyStore(),
		Stripe: config.StripeConfig{
			WebhookSecret:  handlerWebhookSecret,
			PriceTiers:     map[string]string{"price_pro": "pro"},
			StaleTolerance: 300 * time.Second,
		},
		Logger: logger,
	})

	engine := gin.New()
	NewWebhookHandler(service, logger).RegisterRoutes(engine.Group("/webhooks"))
	return engine
}

func signWebhookPayload(payload []byte, secret string) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func webhookEventPayload(t *testing.T, eventType string, object map[string]any) []byte {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"id":          "evt_handler_test",
		"type":        eventType,
		"api_version": stripe.APIVersion,
		"created":     time.Now().Unix(),
		"data":        map[string]any{"object": object},
	})
	require.NoError(t, err)
	return payload
}

func postWebhook(engine *gin.Engine, payload []byte, signature string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(payload))
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	engine.ServeHTTP(w, req)
	return w
}

func TestWebhookHandler_MissingSignature(t *testing.T) {
	engine := newWebhookTestServer(newMemAccounts())

	w := postWebhook(engine, []byte(`{}`), "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "ERR_WEBHOOK_SIGNATURE")
}

func TestWebhookHandler_InvalidSignature(t *testing.T) {
	engine := newWebhookTestServer(newMemAccounts())
	payload := webhookEventPayload(t, "invoice.paid", map[string]any{"id": "in_1"})

	w := postWebhook(engine, payload, signWebhookPayload(payload, "whsec_wrong"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "ERR_WEBHOOK_SIGNATURE")
}

func TestWebhookHandler_CheckoutCompleted(t *testing.T) {
	account := billing.NewAccount()
	accounts := newMemAccounts(account)
	engine := newWebhookTestServer(accounts)

	payload := webhookEventPayload(t, "checkout.session.completed", map[string]any{
		"id":           "cs_1",
		"customer":     map[string]any{"id": "cus_1"},
		"subscription": map[string]any{"id": "sub_1"},
		"metadata":     map[string]any{"account_id": account.ID.String()},
	})

	w := postWebhook(engine, payload, signWebhookPayload(payload, handlerWebhookSecret))

	assert.Equal(t, http.StatusOK, w.Code)

	saved, err := accounts.FindByID(context.Background(), account.ID)
	require.NoError(t, err)
	assert.Equal(t, "cus_1", saved.CustomerID)
	assert.Equal(t, "sub_1", saved.SubscriptionID)
}

func TestWebhookHandler_ProcessingFailureReturnsRetryable(t *testing.T) {
	account := billing.NewAccount()
	engine := newWebhookTestServer(&brokenAccounts{memAccounts: newMemAccounts(account), account: account})

	payload := webhookEventPayload(t, "customer.subscription.created", map[string]any{
		"id":       "sub_1",
		"customer": map[string]any{"id": "cus_1"},
		"status":   "active",
		"items": map[string]any{
			"data": []map[string]any{
				{"price": map[string]any{"id": "price_pro"}},
			},
		},
	})

	w := postWebhook(engine, payload, signWebhookPayload(payload, handlerWebhookSecret))

	// A 5xx tells the provider to redeliver the event later
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
