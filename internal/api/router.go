// Package api holds the HTTP handlers of the bank core and the route table
// that binds them to the auth and rate limit middleware.
package api

import (
	"context"  // Readiness probe
	"net/http" // HTTP status codes
	"time"     // Probe timeout

	"github.com/gin-gonic/gin"                                // Gin web framework
	"github.com/prometheus/client_golang/prometheus/promhttp" // Metrics endpoint
	"github.com/sirupsen/logrus"                              // Logging library

	"core_bank/internal/auth"         // Login and tokens
	"core_bank/internal/cache"        // Account summary cache
	"core_bank/internal/domain"       // Roles
	"core_bank/internal/ledger"       // Ledger operations
	"core_bank/internal/middleware"   // Auth, roles, rate limit
	"core_bank/internal/ratelimit"    // Request limiter
	"core_bank/internal/registration" // Client registration
	"core_bank/internal/store"        // Account store
)

// Services are the dependencies the routes are built from.
type Services struct {
	Store        store.Store
	Auth         *auth.Service
	Registration *registration.Service
	Ledger       *ledger.Engine
	Cache        *cache.Cache      // Optional, nil disables summary caching
	Limiter      ratelimit.Limiter // Optional, nil disables rate limiting on /auth
	Ready        func(ctx context.Context) error
	Log          logrus.FieldLogger
}

// RegisterRoutes binds every endpoint to r.
func RegisterRoutes(r *gin.Engine, s Services) {
	if s.Log == nil {
		s.Log = logrus.StandardLogger()
	}
	jwt := middleware.JWTAuthMiddleware(s.Auth.Tokens())

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/readyz", readyHandler(s.Ready))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Auth routes, rate limited per client IP
	authGroup := r.Group("/auth")
	if s.Limiter != nil {
		authGroup.Use(middleware.RateLimit(s.Limiter, s.Log))
	}
	authGroup.POST("/login", LoginHandler(s.Auth))               // Login endpoint
	authGroup.POST("/register", RegisterHandler(s.Registration)) // Registration endpoint
	authGroup.POST("/logout", jwt, LogoutHandler())              // Logout endpoint

	// Bank routes (protected by JWT)
	bank := r.Group("/bank")
	bank.Use(jwt)
	teller := middleware.RequireRoles(domain.RoleTeller)
	bank.POST("/deposit", teller, DepositHandler(s.Ledger, s.Cache, s.Log))             // Teller deposit
	bank.GET("/accounts/lookup", teller, LookupAccountHandler(s.Store))                 // Teller account lookup
	bank.POST("/withdraw", WithdrawHandler(s.Ledger, s.Cache, s.Log))                   // Withdrawal
	bank.POST("/transfer", TransferHandler(s.Ledger, s.Cache, s.Log))                   // Transfer
	bank.POST("/credit-payment", CreditPurchaseHandler(s.Ledger, s.Cache, s.Log))       // Credit card purchase
	bank.POST("/pay-credit-balance", PayCreditBalanceHandler(s.Ledger, s.Cache, s.Log)) // Credit card payment
	bank.GET("/account", GetAccountHandler(s.Ledger, s.Cache, s.Log))                   // Account summary
	bank.GET("/movements", GetMovementsHandler(s.Ledger))                               // Movement history
}

func readyHandler(ready func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if ready != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := ready(ctx); err != nil {
				_ = c.Error(err)
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}
