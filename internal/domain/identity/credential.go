package identity

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"

	"github.com/creditgw/backend/internal/domain/billing"
	"github.com/creditgw/backend/internal/domain/shared"
)

// KeyPrefixLength is the number of secret characters stored in clear for
// credential lookup. The remainder is stored only as a SHA-256 hash.
const KeyPrefixLength = 8

// credentialScheme is the leading marker of every issued API key
const credentialScheme = "sk-"

// ApiCredential is an issued API key. It is read-only to the metering core:
// issuance, rotation and revocation happen in the credential-management
// surface, the core only validates.
type ApiCredential struct {
	shared.BaseEntity
	AccountID  uuid.UUID
	Prefix     string
	SecretHash string
	Active     bool
	// CachedTier is a denormalized copy of the owning account's tier,
	// refreshed when the reconciler updates the account. It serves the hot
	// path so rate limiting never needs the account row.
	CachedTier billing.Tier
}

// ParseKey splits a presented API key into its lookup prefix and full secret.
// Returns ErrUnauthorized for keys that cannot possibly be valid.
func ParseKey(raw string) (prefix, secret string, err error) {
	if !strings.HasPrefix(raw, credentialScheme) {
		return "", "", shared.ErrUnauthorized
	}
	secret = strings.TrimPrefix(raw, credentialScheme)
	if len(secret) <= KeyPrefixLength {
		return "", "", shared.ErrUnauthorized
	}
	return secret[:KeyPrefixLength], secret, nil
}

// HashSecret returns the hex SHA-256 digest stored for a credential secret
func HashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// Matches verifies a presented secret against the stored hash in constant time
func (c *ApiCredential) Matches(secret string) bool {
	presented := HashSecret(secret)
	return subtle.ConstantTimeCompare([]byte(presented), []byte(c.SecretHash)) == 1
}

// IsUsable reports whether the credential may authenticate requests
func (c *ApiCredential) IsUsable() bool {
	return c.Active
}
