package identity

import (
	"context"

	"github.com/google/uuid"

	"github.com/creditgw/backend/internal/domain/billing"
)

// CredentialRepository provides read access to issued API credentials.
// The metering core never creates or mutates credentials except for the
// denormalized tier cache, which the webhook reconciler refreshes.
type CredentialRepository interface {
	FindByPrefix(ctx context.Context, prefix string) (*ApiCredential, error)
	FindByAccount(ctx context.Context, accountID uuid.UUID) ([]*ApiCredential, error)

	// RefreshCachedTier updates the cached tier on all credentials of an account
	RefreshCachedTier(ctx context.Context, accountID uuid.UUID, tier billing.Tier) error
}
