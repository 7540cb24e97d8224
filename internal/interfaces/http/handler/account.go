package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/creditgw/backend/internal/domain/billing"
	"github.com/creditgw/backend/internal/interfaces/http/middleware"
)

// AccountHandler serves the calling account's billing state
type AccountHandler struct {
	BaseHandler
	accounts billing.AccountRepository
}

// NewAccountHandler creates a new AccountHandler
func NewAccountHandler(accounts billing.AccountRepository) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

// RegisterRoutes registers account routes
func (h *AccountHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/account", h.Get)
}

// AccountResponse is the caller-visible billing state
type AccountResponse struct {
	ID                 string          `json:"id"`
	Balance            decimal.Decimal `json:"balance"`
	Tier               string          `json:"tier"`
	MonthlyCredits     decimal.Decimal `json:"monthly_credits"`
	SubscriptionStatus string          `json:"subscription_status"`
	RequestsPerMinute  int             `json:"requests_per_minute"`
}

// Get returns the balance, tier, allotment and subscription status of the
// authenticated account
func (h *AccountHandler) Get(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		h.Unauthorized(c, "Missing API key")
		return
	}

	account, err := h.accounts.FindByID(c.Request.Context(), principal.AccountID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, AccountResponse{
		ID:                 account.ID.String(),
		Balance:            account.Balance,
		Tier:               string(account.Tier),
		MonthlyCredits:     account.MonthlyCredits,
		SubscriptionStatus: string(account.SubscriptionStatus),
		RequestsPerMinute:  account.Tier.RequestsPerMinute(),
	})
}
