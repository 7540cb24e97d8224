package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/creditgw/backend/internal/domain/billing"
	"github.com/creditgw/backend/internal/domain/identity"
	"github.com/creditgw/backend/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ApiCredentialModel is the GORM model for issued API credentials
type ApiCredentialModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	AccountID  uuid.UUID `gorm:"type:uuid;index;not null"`
	Prefix     string    `gorm:"type:varchar(16);uniqueIndex;not null"`
	SecretHash string    `gorm:"type:varchar(64);not null"`
	Active     bool      `gorm:"not null;default:true"`
	CachedTier string    `gorm:"type:varchar(20);not null;default:'free'"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime"`
}

// TableName returns the table name for the model
func (ApiCredentialModel) TableName() string {
	return "api_credentials"
}

// ToEntity converts the model to a domain entity
func (m *ApiCredentialModel) ToEntity() *identity.ApiCredential {
	return &identity.ApiCredential{
		BaseEntity: shared.BaseEntity{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		AccountID:  m.AccountID,
		Prefix:     m.Prefix,
		SecretHash: m.SecretHash,
		Active:     m.Active,
		CachedTier: billing.ParseTier(m.CachedTier),
	}
}

// ApiCredentialModelFromEntity creates a model from a domain entity
func ApiCredentialModelFromEntity(e *identity.ApiCredential) *ApiCredentialModel {
	return &ApiCredentialModel{
		ID:         e.ID,
		AccountID:  e.AccountID,
		Prefix:     e.Prefix,
		SecretHash: e.SecretHash,
		Active:     e.Active,
		CachedTier: string(e.CachedTier),
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  e.UpdatedAt,
	}
}

// CredentialRepository implements the identity.CredentialRepository interface
type CredentialRepository struct {
	db *gorm.DB
}

// NewCredentialRepository creates a new credential repository
func NewCredentialRepository(db *gorm.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// Save persists a credential, creating or updating as needed
func (r *CredentialRepository) Save(ctx context.Context, credential *identity.ApiCredential) error {
	model := ApiCredentialModelFromEntity(credential)
	return r.db.WithContext(ctx).Save(model).Error
}

// FindByPrefix retrieves a credential by its lookup prefix
func (r *CredentialRepository) FindByPrefix(ctx context.Context, prefix string) (*identity.ApiCredential, error) {
	var model ApiCredentialModel
	err := r.db.WithContext(ctx).
		Where("prefix = ?", prefix).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToEntity(), nil
}

// FindByAccount retrieves all credentials issued to an account
func (r *CredentialRepository) FindByAccount(ctx context.Context, accountID uuid.UUID) ([]*identity.ApiCredential, error) {
	var models []ApiCredentialModel
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	credentials := make([]*identity.ApiCredential, len(models))
	for i, model := range models {
		credentials[i] = model.ToEntity()
	}
	return credentials, nil
}

// RefreshCachedTier updates the denormalized tier on all credentials of
// an account. Called by the webhook reconciler after a tier change.
func (r *CredentialRepository) RefreshCachedTier(ctx context.Context, accountID uuid.UUID, tier billing.Tier) error {
	return r.db.WithContext(ctx).
		Model(&ApiCredentialModel{}).
		Where("account_id = ?", accountID).
		UpdateColumn("cached_tier", string(tier)).Error
}

// Ensure CredentialRepository implements the interface
var _ identity.CredentialRepository = (*CredentialRepository)(nil)
