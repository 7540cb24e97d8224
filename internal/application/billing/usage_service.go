package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/creditgw/backend/internal/domain/billing"
	"github.com/creditgw/backend/internal/domain/shared"
)

// UsageService writes and queries the append-only usage log
type UsageService struct {
	records       billing.UsageRecordRepository
	margins       billing.MarginConfigRepository
	defaultMargin billing.MarginConfig
	logger        *zap.Logger
}

// UsageServiceOption configures a UsageService
type UsageServiceOption func(*UsageService)

// WithDefaultMarginPercent overrides the built-in default margin applied
// to accounts that have no stored margin configuration.
func WithDefaultMarginPercent(percent int) UsageServiceOption {
	return func(s *UsageService) {
		s.defaultMargin = billing.MarginConfig{GlobalPercent: percent}
	}
}

// NewUsageService creates a new usage service
func NewUsageService(
	records billing.UsageRecordRepository,
	margins billing.MarginConfigRepository,
	logger *zap.Logger,
	opts ...UsageServiceOption,
) *UsageService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &UsageService{
		records:       records,
		margins:       margins,
		defaultMargin: billing.DefaultMarginConfig(),
		logger:        logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MarginFor returns the effective margin configuration for an account,
// falling back to the default when none has been saved
func (s *UsageService) MarginFor(ctx context.Context, accountID uuid.UUID) billing.MarginConfig {
	cfg, err := s.margins.FindByAccount(ctx, accountID)
	if err != nil {
		if err != shared.ErrNotFound {
			s.logger.Warn("failed to load margin config, using default",
				zap.String("account_id", accountID.String()),
				zap.Error(err))
		}
		return s.defaultMargin
	}
	return *cfg
}

// UpdateMargin validates and saves an account's margin configuration
func (s *UsageService) UpdateMargin(ctx context.Context, accountID uuid.UUID, cfg billing.MarginConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := s.margins.Save(ctx, accountID, &cfg); err != nil {
		return fmt.Errorf("failed to save margin config: %w", err)
	}
	return nil
}

// RecordSuccess writes the audit row for a billed request
func (s *UsageService) RecordSuccess(
	ctx context.Context,
	accountID uuid.UUID,
	model, provider string,
	tokensIn, tokensOut int64,
	costUSD, creditsCharged decimal.Decimal,
	latency time.Duration,
) error {
	record, err := billing.NewUsageRecord(accountID, model, provider, tokensIn, tokensOut, costUSD, creditsCharged, latency)
	if err != nil {
		return err
	}
	if err := s.records.Create(ctx, record); err != nil {
		return fmt.Errorf("failed to write usage record: %w", err)
	}
	return nil
}

// RecordError writes the zero-credit audit row for a request that failed
// downstream. Errors here are logged, not returned: a lost error row must
// never surface as a client failure on top of the provider failure.
func (s *UsageService) RecordError(
	ctx context.Context,
	accountID uuid.UUID,
	model, provider string,
	latency time.Duration,
) {
	record, err := billing.NewErrorUsageRecord(accountID, model, provider, latency)
	if err != nil {
		s.logger.Error("failed to build error usage record",
			zap.String("account_id", accountID.String()),
			zap.Error(err))
		return
	}
	if err := s.records.Create(ctx, record); err != nil {
		s.logger.Error("failed to write error usage record",
			zap.String("account_id", accountID.String()),
			zap.Error(err))
	}
}

// List returns an account's usage records, newest first
func (s *UsageService) List(
	ctx context.Context,
	accountID uuid.UUID,
	filter billing.UsageRecordFilter,
) (shared.Paginated[*billing.UsageRecord], error) {
	records, total, err := s.records.FindByAccount(ctx, accountID, filter)
	if err != nil {
		return shared.Paginated[*billing.UsageRecord]{}, fmt.Errorf("failed to list usage records: %w", err)
	}
	page, pageSize := filter.Page, filter.PageSize
	if page <= 0 {
		page = shared.DefaultFilter().Page
	}
	if pageSize <= 0 {
		pageSize = shared.DefaultFilter().PageSize
	}
	return shared.NewPaginated(records, total, page, pageSize), nil
}

// Summarize aggregates an account's usage over a period
func (s *UsageService) Summarize(
	ctx context.Context,
	accountID uuid.UUID,
	from, to time.Time,
) (*billing.UsageSummary, error) {
	if to.IsZero() {
		to = time.Now()
	}
	if from.IsZero() {
		from = to.AddDate(0, -1, 0)
	}
	summary, err := s.records.SummarizeByAccount(ctx, accountID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize usage: %w", err)
	}
	return summary, nil
}
