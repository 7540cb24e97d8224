package billing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/creditgw/backend/internal/domain/billing"
	"github.com/creditgw/backend/internal/domain/shared"
)

// LedgerService owns every balance mutation. The admission pre-check is
// fail-closed: a request is only admitted when the stored balance
// provably covers the worst-case estimate. The post-dispatch charge is
// unconditional and may overdraw the account; the shortfall is settled
// against the next grant.
type LedgerService struct {
	accounts billing.AccountRepository
	logger   *zap.Logger
}

// NewLedgerService creates a new ledger service
func NewLedgerService(accounts billing.AccountRepository, logger *zap.Logger) *LedgerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerService{accounts: accounts, logger: logger}
}

// CheckBalance verifies that the account balance covers the worst-case
// estimate. Any failure to read the balance rejects the request.
func (s *LedgerService) CheckBalance(ctx context.Context, accountID uuid.UUID, estimate decimal.Decimal) error {
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		// Fail closed: an unreadable balance is treated as insufficient
		s.logger.Error("balance check failed, rejecting request",
			zap.String("account_id", accountID.String()),
			zap.Error(err))
		return shared.ErrInsufficientCredits
	}

	if !account.HasSufficientCredits(estimate) {
		return shared.ErrInsufficientCredits
	}
	return nil
}

// Charge deducts the settled credit amount after a dispatched request
// completes. Returns the balance after the deduction, which may be
// negative.
func (s *LedgerService) Charge(ctx context.Context, accountID uuid.UUID, credits decimal.Decimal) (decimal.Decimal, error) {
	newBalance, err := s.accounts.DeductBalance(ctx, accountID, credits)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to charge account: %w", err)
	}

	if newBalance.IsNegative() {
		s.logger.Warn("account balance went negative",
			zap.String("account_id", accountID.String()),
			zap.String("balance", newBalance.String()),
			zap.String("charged", credits.String()))
	}
	return newBalance, nil
}

// Grant adds a renewal allotment on top of whatever balance remains
func (s *LedgerService) Grant(ctx context.Context, accountID uuid.UUID, credits decimal.Decimal) (decimal.Decimal, error) {
	newBalance, err := s.accounts.AddBalance(ctx, accountID, credits)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to grant credits: %w", err)
	}
	return newBalance, nil
}

// ResetTo replaces the balance with an absolute amount, used when a new
// subscription starts
func (s *LedgerService) ResetTo(ctx context.Context, accountID uuid.UUID, credits decimal.Decimal) error {
	if err := s.accounts.ReplaceBalance(ctx, accountID, credits); err != nil {
		return fmt.Errorf("failed to reset balance: %w", err)
	}
	return nil
}

// Balance returns the current stored balance of an account
func (s *LedgerService) Balance(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	return account.Balance, nil
}
