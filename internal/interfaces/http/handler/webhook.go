package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appbilling "github.com/creditgw/backend/internal/application/billing"
	"github.com/creditgw/backend/internal/interfaces/http/dto"
)

// WebhookHandler receives payment provider event deliveries
type WebhookHandler struct {
	BaseHandler
	webhooks *appbilling.WebhookService
	logger   *zap.Logger
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(webhooks *appbilling.WebhookService, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{webhooks: webhooks, logger: logger}
}

// RegisterRoutes registers webhook routes
func (h *WebhookHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/stripe", h.Stripe)
}

// Stripe verifies and applies one event delivery. A 2xx acknowledges the
// delivery; a 5xx makes the sender retry later.
func (h *WebhookHandler) Stripe(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.BadRequest(c, "Failed to read request body")
		return
	}

	signature := c.GetHeader("Stripe-Signature")
	if signature == "" {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeWebhookSignature, "Missing Stripe-Signature header")
		return
	}

	result, err := h.webhooks.ProcessWebhook(c.Request.Context(), payload, signature)
	if err != nil {
		if errors.Is(err, appbilling.ErrInvalidSignature) {
			h.Error(c, http.StatusBadRequest, dto.ErrCodeWebhookSignature, "Webhook signature verification failed")
			return
		}
		// Processing failures return 5xx so the provider redelivers
		h.logger.Error("webhook processing failed", zap.Error(err))
		h.InternalError(c, "Webhook processing failed")
		return
	}

	h.Success(c, result)
}
