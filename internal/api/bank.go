package api

import (
	"encoding/json" // json.Number for money
	"net/http"      // HTTP status codes
	"strconv"       // Query parsing

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/shopspring/decimal" // Exact money arithmetic
	"github.com/sirupsen/logrus"    // Logging library

	"core_bank/internal/cache"      // Account summary cache
	"core_bank/internal/domain"     // Domain models and errors
	"core_bank/internal/ledger"     // Ledger operations
	"core_bank/internal/metrics"    // Cache metrics
	"core_bank/internal/middleware" // Identity and error envelope
)

// DepositRequest represents a teller deposit
type DepositRequest struct {
	AccountNumber uint            `json:"account_number" binding:"required"` // Target account id
	Amount        decimal.Decimal `json:"amount"`                            // Deposit amount
}

// AmountRequest carries a bare amount (withdraw, credit purchase, credit payment)
type AmountRequest struct {
	Amount decimal.Decimal `json:"amount"` // Operation amount
}

// TransferRequest represents a transfer request
type TransferRequest struct {
	TargetUsername string          `json:"target_username"` // Target username
	Amount         decimal.Decimal `json:"amount"`          // Transfer amount
}

// BalanceResponse reports the balance after a cash operation
type BalanceResponse struct {
	Message    string      `json:"message"`
	NewBalance json.Number `json:"new_balance"`
}

// CreditResponse reports both sides of a card operation
type CreditResponse struct {
	Message        string      `json:"message"`
	Applied        json.Number `json:"applied"` // Amount actually charged or paid
	AccountBalance json.Number `json:"account_balance"`
	CreditCardDebt json.Number `json:"credit_card_debt"`
}

// CreditCardResponse is the card part of an account summary
type CreditCardResponse struct {
	Limit     json.Number `json:"limit"`     // Credit limit
	Debt      json.Number `json:"debt"`      // Outstanding balance
	Available json.Number `json:"available"` // Unused credit, never negative
}

// AccountResponse is the caller's account summary
type AccountResponse struct {
	AccountNumber uint                `json:"account_number"`
	Balance       json.Number         `json:"balance"`
	CreditCard    *CreditCardResponse `json:"credit_card,omitempty"` // Absent when the user has no card
	Cached        bool                `json:"cached"`
}

// MovementsResponse is one page of the caller's journal
type MovementsResponse struct {
	Movements  []domain.Movement `json:"movements"`
	Page       int               `json:"page"`
	PageSize   int               `json:"page_size"`
	Total      int64             `json:"total"`
	TotalPages int               `json:"total_pages"`
}

// DepositHandler lets a teller credit any account
func DepositHandler(engine *ledger.Engine, summaries *cache.Cache, log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req DepositRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			middleware.AbortWithError(c, domain.Wrap(domain.ErrInvalidRequest, err))
			return
		}
		receipt, err := engine.Deposit(c.Request.Context(), middleware.Identity(c), req.AccountNumber, req.Amount)
		if !settle(c, summaries, log, receipt, err) {
			return
		}
		c.JSON(http.StatusOK, BalanceResponse{Message: "Deposit successful", NewBalance: money(receipt.AccountBalance)})
	}
}

// WithdrawHandler debits the caller's own account
func WithdrawHandler(engine *ledger.Engine, summaries *cache.Cache, log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AmountRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			middleware.AbortWithError(c, domain.Wrap(domain.ErrInvalidRequest, err))
			return
		}
		receipt, err := engine.Withdraw(c.Request.Context(), middleware.Identity(c), req.Amount)
		if !settle(c, summaries, log, receipt, err) {
			return
		}
		c.JSON(http.StatusOK, BalanceResponse{Message: "Withdrawal successful", NewBalance: money(receipt.AccountBalance)})
	}
}

// TransferHandler moves funds to another user's account
func TransferHandler(engine *ledger.Engine, summaries *cache.Cache, log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req TransferRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			middleware.AbortWithError(c, domain.Wrap(domain.ErrInvalidRequest, err))
			return
		}
		receipt, err := engine.Transfer(c.Request.Context(), middleware.Identity(c), req.TargetUsername, req.Amount)
		if !settle(c, summaries, log, receipt, err) {
			return
		}
		c.JSON(http.StatusOK, BalanceResponse{Message: "Transfer successful", NewBalance: money(receipt.AccountBalance)})
	}
}

// CreditPurchaseHandler pays from the account and charges the card
func CreditPurchaseHandler(engine *ledger.Engine, summaries *cache.Cache, log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AmountRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			middleware.AbortWithError(c, domain.Wrap(domain.ErrInvalidRequest, err))
			return
		}
		receipt, err := engine.CreditPurchase(c.Request.Context(), middleware.Identity(c), req.Amount)
		if !settle(c, summaries, log, receipt, err) {
			return
		}
		c.JSON(http.StatusOK, creditResponse("Credit card purchase successful", receipt))
	}
}

// PayCreditBalanceHandler pays down card debt from the account, clamped to the debt
func PayCreditBalanceHandler(engine *ledger.Engine, summaries *cache.Cache, log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AmountRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			middleware.AbortWithError(c, domain.Wrap(domain.ErrInvalidRequest, err))
			return
		}
		receipt, err := engine.PayCreditBalance(c.Request.Context(), middleware.Identity(c), req.Amount)
		if !settle(c, summaries, log, receipt, err) {
			return
		}
		c.JSON(http.StatusOK, creditResponse("Credit card debt payment successful", receipt))
	}
}

// GetAccountHandler returns the caller's account summary, served from cache when possible
func GetAccountHandler(engine *ledger.Engine, summaries *cache.Cache, log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		actor := middleware.Identity(c)
		if actor == nil {
			middleware.AbortWithError(c, domain.ErrUnauthenticated)
			return
		}
		key := cache.AccountKey(actor.UserID) // Cache key for the summary
		cacheable := summaries.Enabled()
		var version int64
		if cacheable {
			var cached AccountResponse
			found, err := summaries.Get(ctx, key, &cached)
			switch {
			case err != nil:
				metrics.CacheRequestsTotal.WithLabelValues("error").Inc()
				log.WithField("key", key).WithError(err).Warn("Account cache read failed")
			case found:
				metrics.CacheRequestsTotal.WithLabelValues("hit").Inc()
				cached.Cached = true
				c.JSON(http.StatusOK, cached)
				return
			default:
				metrics.CacheRequestsTotal.WithLabelValues("miss").Inc()
			}
			// Read before the store so a concurrent invalidation discards this load.
			if version, err = summaries.AccountVersion(ctx, actor.UserID); err != nil {
				cacheable = false
			}
		}

		acct, card, err := engine.Summary(ctx, actor)
		if err != nil {
			middleware.AbortWithError(c, err)
			return
		}
		resp := AccountResponse{AccountNumber: acct.ID, Balance: money(acct.Balance)}
		if card != nil {
			resp.CreditCard = &CreditCardResponse{
				Limit:     money(card.Limit),
				Debt:      money(card.Debt),
				Available: money(card.Available()),
			}
		}
		if cacheable {
			if _, err := summaries.SetAccount(ctx, actor.UserID, version, resp); err != nil {
				log.WithField("key", key).WithError(err).Warn("Account cache write failed")
			}
		}
		c.JSON(http.StatusOK, resp)
	}
}

// GetMovementsHandler returns the caller's movements, newest first
func GetMovementsHandler(engine *ledger.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, _ := strconv.Atoi(c.Query("page"))          // Invalid values fall back to defaults
		pageSize, _ := strconv.Atoi(c.Query("page_size")) // Same
		page, pageSize = ledger.PageBounds(page, pageSize)

		movements, total, err := engine.History(c.Request.Context(), middleware.Identity(c), page, pageSize)
		if err != nil {
			middleware.AbortWithError(c, err)
			return
		}
		if movements == nil {
			movements = []domain.Movement{}
		}
		c.JSON(http.StatusOK, MovementsResponse{
			Movements:  movements,
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: int((total + int64(pageSize) - 1) / int64(pageSize)),
		})
	}
}

// settle writes the error response for a failed operation, or drops the cached
// summaries of every user the operation touched. It reports whether the
// handler should write its success body.
func settle(c *gin.Context, summaries *cache.Cache, log logrus.FieldLogger, receipt *ledger.Receipt, err error) bool {
	if err != nil {
		middleware.AbortWithError(c, err)
		return false
	}
	if err := summaries.InvalidateAccounts(c.Request.Context(), receipt.TouchedUsers...); err != nil {
		log.WithFields(logrus.Fields{
			"users":      receipt.TouchedUsers,
			"request_id": middleware.GetRequestID(c),
		}).WithError(err).Warn("Account cache invalidation failed")
	}
	return true
}

func creditResponse(msg string, r *ledger.Receipt) CreditResponse {
	return CreditResponse{
		Message:        msg,
		Applied:        money(r.Applied),
		AccountBalance: money(r.AccountBalance),
		CreditCardDebt: money(r.CreditCardDebt),
	}
}

// money renders an amount with the two decimals of the balance columns.
func money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}
