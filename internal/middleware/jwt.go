package middleware

import (
	"strings" // String manipulation

	"github.com/gin-gonic/gin" // Gin web framework

	"core_bank/internal/auth"   // Credential verification
	"core_bank/internal/domain" // Identity and errors
)

const identityKey = "identity"

// JWTAuthMiddleware validates the bearer credential and stores the identity
// it asserts in the context
func JWTAuthMiddleware(tokens *auth.Tokens) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, ok := bearerToken(c.GetHeader("Authorization")) // Extract the token string
		// Check if the Authorization header is present and properly formatted
		if !ok {
			AbortWithError(c, domain.ErrUnauthenticated)
			return
		}
		id, err := tokens.Verify(tokenStr) // Check signature and expiry
		if err != nil {
			AbortWithError(c, err) // Expired or invalid
			return
		}
		c.Set(identityKey, id) // Store identity in context
		c.Next()               // Proceed to the next handler
	}
}

// Identity returns the identity stored by JWTAuthMiddleware, nil if absent
func Identity(c *gin.Context) *domain.Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil
	}
	id, _ := v.(*domain.Identity)
	return id
}

// bearerToken extracts the credential from an "Authorization: Bearer <t>" header
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
