package billing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAccountSeedsFreeGrant(t *testing.T) {
	account := NewAccount()

	assert.Equal(t, TierFree, account.Tier)
	assert.True(t, account.Balance.Equal(FreeSignupGrant))
	assert.True(t, account.MonthlyCredits.IsZero())
	assert.Equal(t, SubscriptionStatusNone, account.SubscriptionStatus)
}

func TestAccountSubscriptionLifecycle(t *testing.T) {
	account := NewAccount()

	account.BindSubscription("cus_123", "sub_456")
	assert.Equal(t, "cus_123", account.CustomerID)
	assert.Equal(t, "sub_456", account.SubscriptionID)

	require.NoError(t, account.ActivateTier(TierPro))
	assert.Equal(t, TierPro, account.Tier)
	assert.True(t, account.MonthlyCredits.Equal(TierPro.MonthlyCredits()))
	assert.Equal(t, SubscriptionStatusActive, account.SubscriptionStatus)

	// cancellation preserves the balance
	account.Balance = decimal.NewFromInt(42)
	account.CancelSubscription()
	assert.Equal(t, TierFree, account.Tier)
	assert.Empty(t, account.SubscriptionID)
	assert.True(t, account.MonthlyCredits.IsZero())
	assert.Equal(t, SubscriptionStatusCancelled, account.SubscriptionStatus)
	assert.True(t, account.Balance.Equal(decimal.NewFromInt(42)))
}

func TestActivateTierRejectsUnknownTier(t *testing.T) {
	account := NewAccount()
	assert.Error(t, account.ActivateTier(Tier("platinum")))
}

func TestBindSubscriptionKeepsExistingIdentifiers(t *testing.T) {
	account := NewAccount()
	account.BindSubscription("cus_123", "sub_456")
	account.BindSubscription("", "")

	assert.Equal(t, "cus_123", account.CustomerID)
	assert.Equal(t, "sub_456", account.SubscriptionID)
}

func TestHasSufficientCredits(t *testing.T) {
	account := NewAccount()
	account.Balance = decimal.NewFromFloat(1.64)

	assert.True(t, account.HasSufficientCredits(decimal.NewFromFloat(1.64)))
	assert.False(t, account.HasSufficientCredits(decimal.NewFromFloat(1.68)))
}

func TestTierProperties(t *testing.T) {
	assert.Equal(t, 10, TierFree.RequestsPerMinute())
	assert.Equal(t, 60, TierStarter.RequestsPerMinute())
	assert.Equal(t, 300, TierPro.RequestsPerMinute())
	assert.Equal(t, 1000, TierTeam.RequestsPerMinute())

	// unknown tiers degrade to the free ceiling
	assert.Equal(t, 10, Tier("platinum").RequestsPerMinute())
	assert.Equal(t, TierFree, ParseTier("platinum"))
	assert.Equal(t, TierPro, ParseTier("pro"))
}
