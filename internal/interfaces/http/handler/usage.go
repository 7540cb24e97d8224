package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	appbilling "github.com/creditgw/backend/internal/application/billing"
	"github.com/creditgw/backend/internal/domain/billing"
	"github.com/creditgw/backend/internal/domain/shared"
	"github.com/creditgw/backend/internal/interfaces/http/dto"
	"github.com/creditgw/backend/internal/interfaces/http/middleware"
)

// UsageHandler serves the usage log and aggregates for the calling account
type UsageHandler struct {
	BaseHandler
	usage *appbilling.UsageService
}

// NewUsageHandler creates a new UsageHandler
func NewUsageHandler(usage *appbilling.UsageService) *UsageHandler {
	return &UsageHandler{usage: usage}
}

// RegisterRoutes registers usage routes
func (h *UsageHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/usage", h.List)
	rg.GET("/usage/summary", h.Summary)
}

// UsageRecordResponse is one row of the usage log
type UsageRecordResponse struct {
	ID             string          `json:"id"`
	Model          string          `json:"model"`
	Provider       string          `json:"provider"`
	TokensIn       int64           `json:"tokens_in"`
	TokensOut      int64           `json:"tokens_out"`
	CostUSD        decimal.Decimal `json:"cost_usd"`
	CreditsCharged decimal.Decimal `json:"credits_charged"`
	LatencyMS      int64           `json:"latency_ms"`
	Status         string          `json:"status"`
	RecordedAt     time.Time       `json:"recorded_at"`
}

func toUsageRecordResponse(r *billing.UsageRecord) UsageRecordResponse {
	return UsageRecordResponse{
		ID:             r.ID.String(),
		Model:          r.Model,
		Provider:       r.Provider,
		TokensIn:       r.TokensIn,
		TokensOut:      r.TokensOut,
		CostUSD:        r.CostUSD,
		CreditsCharged: r.CreditsCharged,
		LatencyMS:      r.LatencyMS,
		Status:         string(r.Status),
		RecordedAt:     r.RecordedAt,
	}
}

// List returns the caller's usage records, newest first
func (h *UsageHandler) List(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		h.Unauthorized(c, "Missing API key")
		return
	}

	var query dto.UsageListRequest
	if err := c.ShouldBindQuery(&query); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	filter := billing.UsageRecordFilter{
		Model:  query.Model,
		Filter: shared.DefaultFilter(),
	}
	if query.Page > 0 {
		filter.Page = query.Page
	}
	if query.PageSize > 0 {
		filter.PageSize = query.PageSize
	}
	var err error
	if filter.From, err = parseTimeParam(query.From); err != nil {
		h.BadRequest(c, "Invalid 'from' timestamp, expected RFC3339")
		return
	}
	if filter.To, err = parseTimeParam(query.To); err != nil {
		h.BadRequest(c, "Invalid 'to' timestamp, expected RFC3339")
		return
	}

	page, err := h.usage.List(c.Request.Context(), principal.AccountID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	items := make([]UsageRecordResponse, 0, len(page.Items))
	for _, record := range page.Items {
		items = append(items, toUsageRecordResponse(record))
	}
	h.SuccessWithMeta(c, items, page.Total, page.Page, page.PageSize)
}

// Summary returns the caller's aggregate usage over a period, defaulting
// to the trailing month
func (h *UsageHandler) Summary(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		h.Unauthorized(c, "Missing API key")
		return
	}

	from, err := parseTimeParam(c.Query("from"))
	if err != nil {
		h.BadRequest(c, "Invalid 'from' timestamp, expected RFC3339")
		return
	}
	to, err := parseTimeParam(c.Query("to"))
	if err != nil {
		h.BadRequest(c, "Invalid 'to' timestamp, expected RFC3339")
		return
	}

	summary, err := h.usage.Summarize(c.Request.Context(), principal.AccountID, from, to)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}

func parseTimeParam(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, value)
}
