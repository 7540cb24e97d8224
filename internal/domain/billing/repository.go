package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/creditgw/backend/internal/domain/shared"
)

// AccountRepository persists billing accounts.
//
// The balance mutation methods must be implemented as single atomic
// store-level updates (e.g. UPDATE ... SET balance = balance - ?), never as
// a client-side read-modify-write: concurrent deductions for one account
// must not lose updates.
type AccountRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Account, error)
	FindByCustomerID(ctx context.Context, customerID string) (*Account, error)
	FindBySubscriptionID(ctx context.Context, subscriptionID string) (*Account, error)
	Save(ctx context.Context, account *Account) error

	// DeductBalance atomically decrements the stored balance and returns the
	// resulting value. It applies unconditionally; post-dispatch billing may
	// drive the balance negative.
	DeductBalance(ctx context.Context, id uuid.UUID, credits decimal.Decimal) (decimal.Decimal, error)

	// AddBalance atomically increments the stored balance (renewal grants)
	AddBalance(ctx context.Context, id uuid.UUID, credits decimal.Decimal) (decimal.Decimal, error)

	// ReplaceBalance sets the stored balance to an absolute value
	// (new-subscription grant, not additive)
	ReplaceBalance(ctx context.Context, id uuid.UUID, credits decimal.Decimal) error
}

// UsageRecordFilter narrows usage record queries
type UsageRecordFilter struct {
	Model string
	From  time.Time
	To    time.Time
	shared.Filter
}

// UsageSummary aggregates usage for an account over a period
type UsageSummary struct {
	AccountID    uuid.UUID       `json:"account_id"`
	From         time.Time       `json:"from"`
	To           time.Time       `json:"to"`
	Requests     int64           `json:"requests"`
	TokensIn     int64           `json:"tokens_in"`
	TokensOut    int64           `json:"tokens_out"`
	CostUSD      decimal.Decimal `json:"cost_usd"`
	CreditsSpent decimal.Decimal `json:"credits_spent"`
}

// UsageRecordRepository persists the append-only usage log
type UsageRecordRepository interface {
	Create(ctx context.Context, record *UsageRecord) error
	FindByAccount(ctx context.Context, accountID uuid.UUID, filter UsageRecordFilter) ([]*UsageRecord, int64, error)
	SummarizeByAccount(ctx context.Context, accountID uuid.UUID, from, to time.Time) (*UsageSummary, error)
}

// MarginConfigRepository persists per-account margin configuration
type MarginConfigRepository interface {
	FindByAccount(ctx context.Context, accountID uuid.UUID) (*MarginConfig, error)
	Save(ctx context.Context, accountID uuid.UUID, cfg *MarginConfig) error
}

// ProcessedEventRepository is the sql-backed dedup store for payment events.
// It backstops the idempotency cache with a uniqueness constraint on event
// IDs and supports pruning after the retention window.
type ProcessedEventRepository interface {
	shared.IdempotencyStore
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
