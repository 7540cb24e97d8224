package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/creditgw/backend/internal/application/gateway"
	"github.com/creditgw/backend/internal/infrastructure/logger"
	"github.com/creditgw/backend/internal/infrastructure/ratelimit"
	"github.com/creditgw/backend/internal/interfaces/http/dto"
	"github.com/creditgw/backend/internal/interfaces/http/middleware"
)

// ChatHandler is the admission pipeline entry point for chat completions
type ChatHandler struct {
	BaseHandler
	pipeline *gateway.Pipeline
	logger   *zap.Logger
}

// NewChatHandler creates a new ChatHandler
func NewChatHandler(pipeline *gateway.Pipeline, logger *zap.Logger) *ChatHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatHandler{pipeline: pipeline, logger: logger}
}

// RegisterRoutes registers chat completion routes
func (h *ChatHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/chat/completions", h.ChatCompletions)
}

// ChatCompletions admits, forwards and settles one completion request.
// The provider's response body and status are proxied through untouched.
func (h *ChatHandler) ChatCompletions(c *gin.Context) {
	key := middleware.BearerKey(c)
	if key == "" {
		h.Unauthorized(c, "Missing API key")
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.BadRequest(c, "Failed to read request body")
		return
	}

	req, err := gateway.ParseRequest(body)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	ctx := c.Request.Context()
	if requestID := c.GetString(middleware.RequestIDKey); requestID != "" {
		ctx, _ = logger.WithRequestID(ctx, h.logger, requestID)
	}

	result, decision, err := h.pipeline.Process(ctx, key, req)
	setRateLimitHeaders(c, decision)

	if err != nil {
		var rateErr *gateway.RateLimitError
		if errors.As(err, &rateErr) {
			retryAfter := int(time.Until(rateErr.Decision.ResetAt).Seconds()) + 1
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			h.Error(c, http.StatusTooManyRequests, dto.ErrCodeRateLimited, "Rate limit exceeded")
			return
		}

		var downstreamErr *gateway.DownstreamError
		if errors.As(err, &downstreamErr) {
			h.logger.Error("downstream dispatch failed",
				zap.String("model", req.Model),
				zap.Error(err))
			h.Error(c, http.StatusBadGateway, dto.ErrCodeDownstream, "Provider request failed")
			return
		}

		h.HandleError(c, err)
		return
	}

	c.Data(result.StatusCode, "application/json", result.Body)
}

func setRateLimitHeaders(c *gin.Context, decision ratelimit.Decision) {
	if decision.Limit == 0 {
		return
	}
	c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
	if !decision.ResetAt.IsZero() {
		c.Header("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))
	}
}
