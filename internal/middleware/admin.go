package middleware

import (
	"github.com/gin-gonic/gin" // Gin web framework

	"core_bank/internal/auth"   // Role guard
	"core_bank/internal/domain" // Roles
)

// RequireRoles admits only identities whose role is in roles. It must run
// after JWTAuthMiddleware.
func RequireRoles(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check the role carried by the verified credential
		if err := auth.Authorize(Identity(c), roles...); err != nil {
			AbortWithError(c, err) // 401 without identity, 403 on role mismatch
			return
		}
		c.Next() // Role allowed, proceed to the next handler
	}
}
