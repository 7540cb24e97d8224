package billing

import "github.com/shopspring/decimal"

// Tier represents a subscription plan. It controls the per-minute rate limit
// ceiling and the monthly credit allotment granted on each renewal.
type Tier string

const (
	TierFree    Tier = "free"
	TierStarter Tier = "starter"
	TierPro     Tier = "pro"
	TierTeam    Tier = "team"
)

// tierSpec holds the static properties of a tier
type tierSpec struct {
	requestsPerMinute int
	monthlyCredits    decimal.Decimal
}

var tierSpecs = map[Tier]tierSpec{
	TierFree:    {requestsPerMinute: 10, monthlyCredits: decimal.Zero},
	TierStarter: {requestsPerMinute: 60, monthlyCredits: decimal.NewFromInt(5000)},
	TierPro:     {requestsPerMinute: 300, monthlyCredits: decimal.NewFromInt(25000)},
	TierTeam:    {requestsPerMinute: 1000, monthlyCredits: decimal.NewFromInt(100000)},
}

// FreeSignupGrant is the credit balance seeded into a new free-tier account.
var FreeSignupGrant = decimal.NewFromInt(100)

// IsValid returns true if the tier is a known plan
func (t Tier) IsValid() bool {
	_, ok := tierSpecs[t]
	return ok
}

// RequestsPerMinute returns the rate limit ceiling for the tier
func (t Tier) RequestsPerMinute() int {
	if spec, ok := tierSpecs[t]; ok {
		return spec.requestsPerMinute
	}
	return tierSpecs[TierFree].requestsPerMinute
}

// MonthlyCredits returns the credit allotment granted per billing cycle
func (t Tier) MonthlyCredits() decimal.Decimal {
	if spec, ok := tierSpecs[t]; ok {
		return spec.monthlyCredits
	}
	return decimal.Zero
}

// ParseTier converts a string to a Tier, falling back to free for unknown values
func ParseTier(s string) Tier {
	t := Tier(s)
	if t.IsValid() {
		return t
	}
	return TierFree
}
