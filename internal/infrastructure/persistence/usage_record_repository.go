package persistence

import (
	"context"
	"time"

	"github.com/creditgw/backend/internal/domain/billing"
	"github.com/creditgw/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// UsageRecordModel is the GORM model for the append-only usage log
type UsageRecordModel struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey"`
	AccountID      uuid.UUID       `gorm:"type:uuid;index:idx_usage_account_recorded;not null"`
	Model          string          `gorm:"type:varchar(100);not null"`
	Provider       string          `gorm:"type:varchar(50)"`
	TokensIn       int64           `gorm:"not null;default:0"`
	TokensOut      int64           `gorm:"not null;default:0"`
	CostUSD        decimal.Decimal `gorm:"type:decimal(30,10);not null;default:0"`
	CreditsCharged decimal.Decimal `gorm:"type:decimal(30,10);not null;default:0"`
	LatencyMS      int64           `gorm:"not null;default:0"`
	Status         string          `gorm:"type:varchar(20);not null"`
	RecordedAt     time.Time       `gorm:"index:idx_usage_account_recorded;not null"`
	CreatedAt      time.Time       `gorm:"autoCreateTime"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime"`
}

// TableName returns the table name for the model
func (UsageRecordModel) TableName() string {
	return "usage_records"
}

// ToEntity converts the model to a domain entity
func (m *UsageRecordModel) ToEntity() *billing.UsageRecord {
	return &billing.UsageRecord{
		BaseEntity: shared.BaseEntity{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		AccountID:      m.AccountID,
		Model:          m.Model,
		Provider:       m.Provider,
		TokensIn:       m.TokensIn,
		TokensOut:      m.TokensOut,
		CostUSD:        m.CostUSD,
		CreditsCharged: m.CreditsCharged,
		LatencyMS:      m.LatencyMS,
		Status:         billing.UsageStatus(m.Status),
		RecordedAt:     m.RecordedAt,
	}
}

// UsageRecordModelFromEntity creates a model from a domain entity
func UsageRecordModelFromEntity(e *billing.UsageRecord) *UsageRecordModel {
	return &UsageRecordModel{
		ID:             e.ID,
		AccountID:      e.AccountID,
		Model:          e.Model,
		Provider:       e.Provider,
		TokensIn:       e.TokensIn,
		TokensOut:      e.TokensOut,
		CostUSD:        e.CostUSD,
		CreditsCharged: e.CreditsCharged,
		LatencyMS:      e.LatencyMS,
		Status:         string(e.Status),
		RecordedAt:     e.RecordedAt,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

// UsageRecordRepository implements the billing.UsageRecordRepository interface
type UsageRecordRepository struct {
	db *gorm.DB
}

// NewUsageRecordRepository creates a new usage record repository
func NewUsageRecordRepository(db *gorm.DB) *UsageRecordRepository {
	return &UsageRecordRepository{db: db}
}

// Create appends a usage record. Records are never updated or deleted.
func (r *UsageRecordRepository) Create(ctx context.Context, record *billing.UsageRecord) error {
	model := UsageRecordModelFromEntity(record)
	return r.db.WithContext(ctx).Create(model).Error
}

// FindByAccount retrieves usage records for an account, newest first
func (r *UsageRecordRepository) FindByAccount(ctx context.Context, accountID uuid.UUID, filter billing.UsageRecordFilter) ([]*billing.UsageRecord, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&UsageRecordModel{}).
		Where("account_id = ?", accountID)

	if filter.Model != "" {
		query = query.Where("model = ?", filter.Model)
	}
	if !filter.From.IsZero() {
		query = query.Where("recorded_at >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		query = query.Where("recorded_at < ?", filter.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	f := filter.Filter
	if f.PageSize <= 0 {
		f = shared.DefaultFilter()
	}
	if f.Page <= 0 {
		f.Page = 1
	}

	var models []UsageRecordModel
	err := query.
		Order("recorded_at DESC").
		Offset((f.Page - 1) * f.PageSize).
		Limit(f.PageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	records := make([]*billing.UsageRecord, len(models))
	for i, model := range models {
		records[i] = model.ToEntity()
	}
	return records, total, nil
}

// SummarizeByAccount aggregates usage for an account over a period
func (r *UsageRecordRepository) SummarizeByAccount(ctx context.Context, accountID uuid.UUID, from, to time.Time) (*billing.UsageSummary, error) {
	var row struct {
		Requests     int64
		TokensIn     int64
		TokensOut    int64
		CostUSD      decimal.Decimal
		CreditsSpent decimal.Decimal
	}

	query := r.db.WithContext(ctx).
		Model(&UsageRecordModel{}).
		Select(`COUNT(*) as requests,
			COALESCE(SUM(tokens_in), 0) as tokens_in,
			COALESCE(SUM(tokens_out), 0) as tokens_out,
			COALESCE(SUM(cost_usd), 0) as cost_usd,
			COALESCE(SUM(credits_charged), 0) as credits_spent`).
		Where("account_id = ?", accountID)

	if !from.IsZero() {
		query = query.Where("recorded_at >= ?", from)
	}
	if !to.IsZero() {
		query = query.Where("recorded_at < ?", to)
	}

	if err := query.Scan(&row).Error; err != nil {
		return nil, err
	}

	return &billing.UsageSummary{
		AccountID:    accountID,
		From:         from,
		To:           to,
		Requests:     row.Requests,
		TokensIn:     row.TokensIn,
		TokensOut:    row.TokensOut,
		CostUSD:      row.CostUSD,
		CreditsSpent: row.CreditsSpent,
	}, nil
}

// Ensure UsageRecordRepository implements the interface
var _ billing.UsageRecordRepository = (*UsageRecordRepository)(nil)
