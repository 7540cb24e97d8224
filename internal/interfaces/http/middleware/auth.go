package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/creditgw/backend/internal/application/gateway"
	"github.com/creditgw/backend/internal/interfaces/http/dto"
)

// PrincipalKey is the gin context key holding the authenticated principal
const PrincipalKey = "auth_principal"

// BearerKey extracts the API key from the Authorization header. Empty when
// the header is missing or not a bearer scheme.
func BearerKey(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// CredentialAuth authenticates the bearer API key and stores the principal
// on the context for downstream handlers
func CredentialAuth(auth gateway.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := BearerKey(c)
		if key == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				dto.NewErrorResponse(dto.ErrCodeUnauthorized, "Missing API key"))
			return
		}

		principal, err := auth.Authenticate(c.Request.Context(), key)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				dto.NewErrorResponse(dto.ErrCodeUnauthorized, "Invalid API key"))
			return
		}

		c.Set(PrincipalKey, principal)
		c.Next()
	}
}

// GetPrincipal returns the authenticated principal stored by CredentialAuth
func GetPrincipal(c *gin.Context) (*gateway.Principal, bool) {
	v, ok := c.Get(PrincipalKey)
	if !ok {
		return nil, false
	}
	principal, ok := v.(*gateway.Principal)
	return principal, ok
}
