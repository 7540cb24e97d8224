package gateway

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/creditgw/backend/internal/domain/billing"
	"github.com/creditgw/backend/internal/domain/identity"
	"github.com/creditgw/backend/internal/domain/shared"
)

// Principal is the authenticated caller snapshot the pipeline works with.
// Tier comes from the credential's denormalized cache so admission never
// reads the account row before the balance check.
type Principal struct {
	AccountID    uuid.UUID
	CredentialID uuid.UUID
	KeyPrefix    string
	Tier         billing.Tier
}

// Authenticator resolves a presented API key to a principal
type Authenticator interface {
	Authenticate(ctx context.Context, rawKey string) (*Principal, error)
}

// CredentialAuthenticator authenticates against the issued-credential store
type CredentialAuthenticator struct {
	credentials identity.CredentialRepository
	logger      *zap.Logger
}

var _ Authenticator = (*CredentialAuthenticator)(nil)

// NewCredentialAuthenticator creates a new credential authenticator
func NewCredentialAuthenticator(credentials identity.CredentialRepository, logger *zap.Logger) *CredentialAuthenticator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CredentialAuthenticator{credentials: credentials, logger: logger}
}

// Authenticate validates a raw API key. Every failure mode maps to
// ErrUnauthorized so callers cannot probe which part failed.
func (a *CredentialAuthenticator) Authenticate(ctx context.Context, rawKey string) (*Principal, error) {
	prefix, secret, err := identity.ParseKey(rawKey)
	if err != nil {
		return nil, shared.ErrUnauthorized
	}

	credential, err := a.credentials.FindByPrefix(ctx, prefix)
	if err != nil {
		if err != shared.ErrNotFound {
			a.logger.Error("credential lookup failed",
				zap.String("prefix", prefix),
				zap.Error(err))
		}
		return nil, shared.ErrUnauthorized
	}

	if !credential.Matches(secret) || !credential.IsUsable() {
		return nil, shared.ErrUnauthorized
	}

	return &Principal{
		AccountID:    credential.AccountID,
		CredentialID: credential.ID,
		KeyPrefix:    credential.Prefix,
		Tier:         credential.CachedTier,
	}, nil
}
