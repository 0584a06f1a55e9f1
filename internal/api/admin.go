package api

import (
	"errors"   // Not-found checks
	"net/http" // HTTP status codes
	"strings"  // Query trimming

	"github.com/gin-gonic/gin" // Gin web framework

	"core_bank/internal/domain"     // Domain errors
	"core_bank/internal/middleware" // Error envelope
	"core_bank/internal/store"      // Account store
)

// AccountLookupResponse lets a teller find the account number to deposit into
type AccountLookupResponse struct {
	Username      string `json:"username"`       // Account holder username
	FullName      string `json:"full_name"`      // Account holder display name
	AccountNumber uint   `json:"account_number"` // Account id used by deposits
}

// LookupAccountHandler resolves a username to its account number. Tellers only.
func LookupAccountHandler(s store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		username := strings.TrimSpace(c.Query("username"))
		if username == "" {
			middleware.AbortWithError(c, domain.ErrInvalidRequest)
			return
		}
		ctx := c.Request.Context()
		user, err := s.UserByUsername(ctx, username)
		if err != nil {
			middleware.AbortWithError(c, lookupError(err))
			return
		}
		acct, err := s.AccountByUser(ctx, user.ID)
		if err != nil {
			middleware.AbortWithError(c, lookupError(err))
			return
		}
		c.JSON(http.StatusOK, AccountLookupResponse{
			Username:      user.Username,
			FullName:      user.FullName,
			AccountNumber: acct.ID,
		})
	}
}

func lookupError(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return domain.ErrAccountNotFound
	}
	return domain.Internal(err)
}
