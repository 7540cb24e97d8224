package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/creditgw/backend/internal/domain/billing"
	"github.com/creditgw/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AccountModel is the GORM model for billing accounts
type AccountModel struct {
	ID                 uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Balance            decimal.Decimal `gorm:"type:decimal(30,10);not null;default:0"`
	Tier               string          `gorm:"type:varchar(20);not null;default:'free'"`
	MonthlyCredits     decimal.Decimal `gorm:"type:decimal(30,10);not null;default:0"`
	CustomerID         string          `gorm:"type:varchar(255);index"`
	SubscriptionID     string          `gorm:"type:varchar(255);index"`
	SubscriptionStatus string          `gorm:"type:varchar(20);not null;default:'none'"`
	CreatedAt          time.Time       `gorm:"autoCreateTime"`
	UpdatedAt          time.Time       `gorm:"autoUpdateTime"`
}

// TableName returns the table name for the model
func (AccountModel) TableName() string {
	return "accounts"
}

// ToEntity converts the model to a domain entity
func (m *AccountModel) ToEntity() *billing.Account {
	return &billing.Account{
		BaseEntity: shared.BaseEntity{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		Balance:            m.Balance,
		Tier:               billing.ParseTier(m.Tier),
		MonthlyCredits:     m.MonthlyCredits,
		CustomerID:         m.CustomerID,
		SubscriptionID:     m.SubscriptionID,
		SubscriptionStatus: billing.SubscriptionStatus(m.SubscriptionStatus),
	}
}

// AccountModelFromEntity creates a model from a domain entity
func AccountModelFromEntity(e *billing.Account) *AccountModel {
	return &AccountModel{
		ID:                 e.ID,
		Balance:            e.Balance,
		Tier:               string(e.Tier),
		MonthlyCredits:     e.MonthlyCredits,
		CustomerID:         e.CustomerID,
		SubscriptionID:     e.SubscriptionID,
		SubscriptionStatus: string(e.SubscriptionStatus),
		CreatedAt:          e.CreatedAt,
		UpdatedAt:          e.UpdatedAt,
	}
}

// AccountRepository implements the billing.AccountRepository interface
type AccountRepository struct {
	db *gorm.DB
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// FindByID retrieves an account by its ID
func (r *AccountRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Account, error) {
	var model AccountModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToEntity(), nil
}

// FindByCustomerID retrieves the account bound to a payment provider customer
func (r *AccountRepository) FindByCustomerID(ctx context.Context, customerID string) (*billing.Account, error) {
	var model AccountModel
	err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToEntity(), nil
}

// FindBySubscriptionID retrieves the account bound to a subscription
func (r *AccountRepository) FindBySubscriptionID(ctx context.Context, subscriptionID string) (*billing.Account, error) {
	var model AccountModel
	err := r.db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToEntity(), nil
}

// Save persists an account, creating or updating as needed
func (r *AccountRepository) Save(ctx context.Context, account *billing.Account) error {
	model := AccountModelFromEntity(account)
	return r.db.WithContext(ctx).Save(model).Error
}

// DeductBalance atomically decrements the stored balance and returns the
// resulting value. The decrement is a single UPDATE on the stored column so
// concurrent deductions never lose updates. The balance may go negative.
func (r *AccountRepository) DeductBalance(ctx context.Context, id uuid.UUID, credits decimal.Decimal) (decimal.Decimal, error) {
	return r.adjustBalance(ctx, id, gorm.Expr("balance - ?", credits))
}

// AddBalance atomically increments the stored balance and returns the
// resulting value
func (r *AccountRepository) AddBalance(ctx context.Context, id uuid.UUID, credits decimal.Decimal) (decimal.Decimal, error) {
	return r.adjustBalance(ctx, id, gorm.Expr("balance + ?", credits))
}

// adjustBalance applies a single UPDATE and reads the resulting balance
// from its RETURNING clause, so the returned value is exactly what this
// statement produced even under concurrent writers.
func (r *AccountRepository) adjustBalance(ctx context.Context, id uuid.UUID, expr interface{}) (decimal.Decimal, error) {
	var model AccountModel
	result := r.db.WithContext(ctx).
		Model(&model).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "balance"}}}).
		Where("id = ?", id).
		UpdateColumn("balance", expr)
	if result.Error != nil {
		return decimal.Zero, result.Error
	}
	if result.RowsAffected == 0 {
		return decimal.Zero, shared.ErrNotFound
	}
	return model.Balance, nil
}

// ReplaceBalance sets the stored balance to an absolute value
func (r *AccountRepository) ReplaceBalance(ctx context.Context, id uuid.UUID, credits decimal.Decimal) error {
	result := r.db.WithContext(ctx).
		Model(&AccountModel{}).
		Where("id = ?", id).
		UpdateColumn("balance", credits)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Ensure AccountRepository implements the interface
var _ billing.AccountRepository = (*AccountRepository)(nil)
