package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/creditgw/backend/internal/domain/shared"
)

// UsageStatus is the terminal outcome of a metered request
type UsageStatus string

const (
	UsageStatusSuccess UsageStatus = "success"
	UsageStatusError   UsageStatus = "error"
)

// UsageRecord is the immutable audit row written for every request that
// reaches the admission pipeline's dispatch stage. Once created, usage
// records are never mutated - corrections must be made with new records.
type UsageRecord struct {
	shared.BaseEntity
	AccountID      uuid.UUID
	Model          string
	Provider       string
	TokensIn       int64
	TokensOut      int64
	CostUSD        decimal.Decimal
	CreditsCharged decimal.Decimal
	LatencyMS      int64
	Status         UsageStatus
	RecordedAt     time.Time
}

// NewUsageRecord creates a usage record for a successfully billed request
func NewUsageRecord(
	accountID uuid.UUID,
	model, provider string,
	tokensIn, tokensOut int64,
	costUSD, creditsCharged decimal.Decimal,
	latency time.Duration,
) (*UsageRecord, error) {
	if accountID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ACCOUNT", "Account ID cannot be empty")
	}
	if model == "" {
		return nil, shared.NewDomainError("INVALID_MODEL", "Model cannot be empty")
	}
	if tokensIn < 0 || tokensOut < 0 {
		return nil, shared.NewDomainError("INVALID_USAGE", "Token counts cannot be negative")
	}
	if costUSD.IsNegative() || creditsCharged.IsNegative() {
		return nil, shared.NewDomainError("INVALID_USAGE", "Cost cannot be negative")
	}
	return &UsageRecord{
		BaseEntity:     shared.NewBaseEntity(),
		AccountID:      accountID,
		Model:          model,
		Provider:       provider,
		TokensIn:       tokensIn,
		TokensOut:      tokensOut,
		CostUSD:        costUSD,
		CreditsCharged: creditsCharged,
		LatencyMS:      latency.Milliseconds(),
		Status:         UsageStatusSuccess,
		RecordedAt:     time.Now(),
	}, nil
}

// NewErrorUsageRecord creates the zero-credit record written when the
// downstream provider fails before dispatch completes
func NewErrorUsageRecord(accountID uuid.UUID, model, provider string, latency time.Duration) (*UsageRecord, error) {
	if accountID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ACCOUNT", "Account ID cannot be empty")
	}
	if model == "" {
		return nil, shared.NewDomainError("INVALID_MODEL", "Model cannot be empty")
	}
	return &UsageRecord{
		BaseEntity: shared.NewBaseEntity(),
		AccountID:  accountID,
		Model:      model,
		Provider:   provider,
		CostUSD:    decimal.Zero,
		// zero-credit by definition: the resource was never consumed
		CreditsCharged: decimal.Zero,
		LatencyMS:      latency.Milliseconds(),
		Status:         UsageStatusError,
		RecordedAt:     time.Now(),
	}, nil
}

// TotalTokens returns the combined token count of the request
func (r *UsageRecord) TotalTokens() int64 {
	return r.TokensIn + r.TokensOut
}
