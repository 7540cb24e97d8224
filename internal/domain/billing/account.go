package billing

import (
	"github.com/shopspring/decimal"

	"github.com/creditgw/backend/internal/domain/shared"
)

// SubscriptionStatus tracks the payment lifecycle state of an account
type SubscriptionStatus string

const (
	SubscriptionStatusNone      SubscriptionStatus = "none"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusPastDue   SubscriptionStatus = "past_due"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

// Account is the billing aggregate for one user. Balance is a decimal credit
// amount; tier and allotment change only through subscription lifecycle
// events, balance changes only through the ledger or the reconciler's
// grant handlers.
type Account struct {
	shared.BaseEntity
	Balance            decimal.Decimal
	Tier               Tier
	MonthlyCredits     decimal.Decimal
	CustomerID         string
	SubscriptionID     string
	SubscriptionStatus SubscriptionStatus
}

// NewAccount creates a free-tier account seeded with the signup grant
func NewAccount() *Account {
	return &Account{
		BaseEntity:         shared.NewBaseEntity(),
		Balance:            FreeSignupGrant,
		Tier:               TierFree,
		MonthlyCredits:     decimal.Zero,
		SubscriptionStatus: SubscriptionStatusNone,
	}
}

// BindSubscription attaches payment identifiers delivered by checkout
func (a *Account) BindSubscription(customerID, subscriptionID string) {
	if customerID != "" {
		a.CustomerID = customerID
	}
	if subscriptionID != "" {
		a.SubscriptionID = subscriptionID
	}
}

// ActivateTier sets the tier and its allotment and marks the subscription active
func (a *Account) ActivateTier(tier Tier) error {
	if !tier.IsValid() {
		return shared.NewDomainError("INVALID_TIER", "Unknown subscription tier")
	}
	a.Tier = tier
	a.MonthlyCredits = tier.MonthlyCredits()
	a.SubscriptionStatus = SubscriptionStatusActive
	return nil
}

// UpdateTier changes tier and allotment without touching the balance.
// Only future renewals apply the new allotment.
func (a *Account) UpdateTier(tier Tier, status SubscriptionStatus) error {
	if !tier.IsValid() {
		return shared.NewDomainError("INVALID_TIER", "Unknown subscription tier")
	}
	a.Tier = tier
	a.MonthlyCredits = tier.MonthlyCredits()
	if status != "" {
		a.SubscriptionStatus = status
	}
	return nil
}

// CancelSubscription downgrades to free. The existing balance is preserved
// and remains spendable.
func (a *Account) CancelSubscription() {
	a.SubscriptionID = ""
	a.Tier = TierFree
	a.MonthlyCredits = decimal.Zero
	a.SubscriptionStatus = SubscriptionStatusCancelled
}

// MarkPastDue records a failed renewal payment without touching the balance
func (a *Account) MarkPastDue() {
	a.SubscriptionStatus = SubscriptionStatusPastDue
}

// HasSufficientCredits reports whether the balance covers an estimated charge
func (a *Account) HasSufficientCredits(estimate decimal.Decimal) bool {
	return estimate.LessThanOrEqual(a.Balance)
}
