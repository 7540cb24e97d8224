package billing

import (
	"github.com/shopspring/decimal"

	"github.com/creditgw/backend/internal/domain/shared"
)

// CreditUnitUSD is the USD value of one credit before margin:
// 1 credit = $0.01 of base provider cost.
var CreditUnitUSD = decimal.NewFromFloat(0.01)

const (
	// DefaultMarginPercent is applied when an account has no margin config
	DefaultMarginPercent = 60

	// MaxMarginPercent bounds the configurable markup
	MaxMarginPercent = 200
)

// MarginConfig holds the markup applied on top of raw provider cost for one
// account. A per-model override takes precedence over the global percent.
type MarginConfig struct {
	AccountID      string
	GlobalPercent  int
	ModelOverrides map[string]int
}

// DefaultMarginConfig returns the config used when an account has none stored
func DefaultMarginConfig() MarginConfig {
	return MarginConfig{GlobalPercent: DefaultMarginPercent}
}

// Validate checks that every configured percent is within [0, MaxMarginPercent]
func (c MarginConfig) Validate() error {
	if c.GlobalPercent < 0 || c.GlobalPercent > MaxMarginPercent {
		return shared.NewDomainError("INVALID_MARGIN", "Global margin percent out of range")
	}
	for _, p := range c.ModelOverrides {
		if p < 0 || p > MaxMarginPercent {
			return shared.NewDomainError("INVALID_MARGIN", "Model margin percent out of range")
		}
	}
	return nil
}

// MarginFor returns the effective margin percent for a model
func (c MarginConfig) MarginFor(model string) int {
	if p, ok := c.ModelOverrides[model]; ok {
		return p
	}
	return c.GlobalPercent
}

// CalculateCredits converts a raw provider cost in USD into the credits
// charged to the account:
//
//	credits = (costUSD / CreditUnitUSD) * (1 + margin/100)
//
// The computation is exact decimal arithmetic; callers must not pre-round.
func CalculateCredits(model string, costUSD decimal.Decimal, cfg MarginConfig) decimal.Decimal {
	base := costUSD.Div(CreditUnitUSD)
	margin := decimal.NewFromInt(int64(cfg.MarginFor(model))).Div(decimal.NewFromInt(100))
	return base.Mul(decimal.NewFromInt(1).Add(margin))
}

// CreditsToUSD converts credits back to base-cost USD for display and audit.
// The stored truth is always credits.
func CreditsToUSD(credits decimal.Decimal) decimal.Decimal {
	return credits.Mul(CreditUnitUSD)
}

// USDToCredits converts a base USD amount to credits without margin
func USDToCredits(usd decimal.Decimal) decimal.Decimal {
	return usd.Div(CreditUnitUSD)
}
