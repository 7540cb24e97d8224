package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/creditgw/backend/internal/domain/billing"
	"github.com/creditgw/backend/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MarginConfigModel is the GORM model for per-account margin configuration.
// Model overrides are stored as a JSON object of model name to percent.
type MarginConfigModel struct {
	AccountID      uuid.UUID `gorm:"type:uuid;primaryKey"`
	GlobalPercent  int       `gorm:"not null"`
	ModelOverrides string    `gorm:"type:text"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`
}

// TableName returns the table name for the model
func (MarginConfigModel) TableName() string {
	return "margin_configs"
}

// ToEntity converts the model to a domain value
func (m *MarginConfigModel) ToEntity() (*billing.MarginConfig, error) {
	cfg := &billing.MarginConfig{
		AccountID:     m.AccountID.String(),
		GlobalPercent: m.GlobalPercent,
	}
	if m.ModelOverrides != "" {
		overrides := make(map[string]int)
		if err := json.Unmarshal([]byte(m.ModelOverrides), &overrides); err != nil {
			return nil, fmt.Errorf("failed to decode margin overrides: %w", err)
		}
		cfg.ModelOverrides = overrides
	}
	return cfg, nil
}

// MarginConfigRepository implements the billing.MarginConfigRepository interface
type MarginConfigRepository struct {
	db *gorm.DB
}

// NewMarginConfigRepository creates a new margin config repository
func NewMarginConfigRepository(db *gorm.DB) *MarginConfigRepository {
	return &MarginConfigRepository{db: db}
}

// FindByAccount retrieves the margin configuration of an account
func (r *MarginConfigRepository) FindByAccount(ctx context.Context, accountID uuid.UUID) (*billing.MarginConfig, error) {
	var model MarginConfigModel
	err := r.db.WithContext(ctx).
		First(&model, "account_id = ?", accountID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToEntity()
}

// Save persists the margin configuration of an account
func (r *MarginConfigRepository) Save(ctx context.Context, accountID uuid.UUID, cfg *billing.MarginConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	model := &MarginConfigModel{
		AccountID:     accountID,
		GlobalPercent: cfg.GlobalPercent,
	}
	if len(cfg.ModelOverrides) > 0 {
		encoded, err := json.Marshal(cfg.ModelOverrides)
		if err != nil {
			return fmt.Errorf("failed to encode margin overrides: %w", err)
		}
		model.ModelOverrides = string(encoded)
	}

	return r.db.WithContext(ctx).Save(model).Error
}

// Ensure MarginConfigRepository implements the interface
var _ billing.MarginConfigRepository = (*MarginConfigRepository)(nil)
