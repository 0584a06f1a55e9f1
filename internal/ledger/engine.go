// Package ledger executes the balance-mutating operations. Each operation runs
// as one store transaction that re-reads and locks the rows it checks, so the
// check and the write can never be separated by a concurrent request.
package ledger

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"core_bank/internal/auth"
	"core_bank/internal/domain"
	"core_bank/internal/metrics"
	"core_bank/internal/store"
)

// DefaultTimeout bounds a single ledger transaction.
const DefaultTimeout = 10 * time.Second

// Policy toggles the optional checks on card operations. The zero value
// skips both.
type Policy struct {
	EnforceCreditLimit  bool // Reject purchases that would push debt above the card limit
	CheckClampedPayment bool // Check funds against min(amount, debt) instead of amount
}

// Config for an Engine
type Config struct {
	Policy  Policy
	Timeout time.Duration // Per-operation deadline, DefaultTimeout when zero
}

// Receipt is the outcome of a successful ledger operation.
type Receipt struct {
	Operation      domain.MovementType // Which operation ran
	AccountID      uint                // Account whose balance is reported
	Applied        decimal.Decimal     // Amount actually moved
	AccountBalance decimal.Decimal     // Balance after the operation
	CreditCardDebt decimal.Decimal     // Debt after the operation, card operations only
	TouchedUsers   []uint              // Owners of every row written
}

// Engine runs ledger operations against a store.
type Engine struct {
	store   store.Store
	policy  Policy
	timeout time.Duration
	log     logrus.FieldLogger
}

// NewEngine builds an Engine.
func NewEngine(s store.Store, cfg Config, log logrus.FieldLogger) *Engine {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Engine{store: s, policy: cfg.Policy, timeout: cfg.Timeout, log: log}
}

// Deposit credits amount to any account. Teller only.
func (e *Engine) Deposit(ctx context.Context, actor *domain.Identity, accountID uint, amount decimal.Decimal) (*Receipt, error) {
	if err := auth.Authorize(actor, domain.RoleTeller); err != nil {
		return nil, err
	}
	if err := checkAmount(amount); err != nil {
		return nil, e.reject(domain.MovementDeposit, actor, amount, err)
	}
	return e.run(ctx, domain.MovementDeposit, actor, amount, func(tx store.Tx) (*Receipt, error) {
		accounts, err := tx.LockAccounts(accountID)
		if err != nil {
			return nil, notFound(err, domain.ErrAccountNotFound)
		}
		acct := accounts[accountID]
		balance := acct.Balance.Add(amount)
		if balance.GreaterThan(domain.MaxAmount) {
			return nil, domain.ErrInvalidAmount
		}
		if err := tx.UpdateAccountBalance(acct.ID, balance); err != nil {
			return nil, err
		}
		if err := tx.RecordMovement(&domain.Movement{
			Type:        domain.MovementDeposit,
			ToAccountID: &acct.ID,
			Amount:      amount,
			ActorUserID: actor.UserID,
		}); err != nil {
			return nil, err
		}
		return &Receipt{
			AccountID:      acct.ID,
			Applied:        amount,
			AccountBalance: balance,
			TouchedUsers:   []uint{acct.UserID},
		}, nil
	})
}

// Withdraw debits amount from the caller's own account.
func (e *Engine) Withdraw(ctx context.Context, actor *domain.Identity, amount decimal.Decimal) (*Receipt, error) {
	if err := auth.Authorize(actor); err != nil {
		return nil, err
	}
	if err := checkAmount(amount); err != nil {
		return nil, e.reject(domain.MovementWithdrawal, actor, amount, err)
	}
	return e.run(ctx, domain.MovementWithdrawal, actor, amount, func(tx store.Tx) (*Receipt, error) {
		acct, err := lockOwnAccount(tx, actor.UserID)
		if err != nil {
			return nil, err
		}
		if acct.Balance.LessThan(amount) {
			return nil, domain.ErrInsufficientFunds
		}
		balance := acct.Balance.Sub(amount)
		if err := tx.UpdateAccountBalance(acct.ID, balance); err != nil {
			return nil, err
		}
		if err := tx.RecordMovement(&domain.Movement{
			Type:          domain.MovementWithdrawal,
			FromAccountID: &acct.ID,
			Amount:        amount,
			ActorUserID:   actor.UserID,
		}); err != nil {
			return nil, err
		}
		return &Receipt{
			AccountID:      acct.ID,
			Applied:        amount,
			AccountBalance: balance,
			TouchedUsers:   []uint{actor.UserID},
		}, nil
	})
}

// Transfer moves amount from the caller's account to the account of
// targetUsername. Both rows are locked in ascending id order.
func (e *Engine) Transfer(ctx context.Context, actor *domain.Identity, targetUsername string, amount decimal.Decimal) (*Receipt, error) {
	if err := auth.Authorize(actor); err != nil {
		return nil, err
	}
	targetUsername = strings.TrimSpace(targetUsername)
	if targetUsername == "" {
		return nil, e.reject(domain.MovementTransfer, actor, amount, domain.ErrInvalidRequest)
	}
	if err := checkAmount(amount); err != nil {
		return nil, e.reject(domain.MovementTransfer, actor, amount, err)
	}
	if actor.Username != "" && targetUsername == actor.Username {
		return nil, e.reject(domain.MovementTransfer, actor, amount, domain.ErrSameAccount)
	}
	return e.run(ctx, domain.MovementTransfer, actor, amount, func(tx store.Tx) (*Receipt, error) {
		fromID, err := tx.AccountIDByUser(actor.UserID)
		if err != nil {
			return nil, notFound(err, domain.ErrAccountNotFound)
		}
		// An unresolved target is reported only after the funds check, so
		// only the sender row is locked in that case.
		var toID uint
		target, targetErr := tx.UserByUsername(targetUsername)
		if targetErr == nil {
			if target.ID == actor.UserID {
				return nil, domain.ErrSameAccount
			}
			toID, targetErr = tx.AccountIDByUser(target.ID)
		}
		if targetErr != nil && !errors.Is(targetErr, store.ErrNotFound) {
			return nil, targetErr
		}
		ids := []uint{fromID}
		if targetErr == nil {
			ids = append(ids, toID)
		}
		accounts, err := tx.LockAccounts(ids...)
		if err != nil {
			return nil, notFound(err, domain.ErrAccountNotFound)
		}
		from := accounts[fromID]
		if from.Balance.LessThan(amount) {
			return nil, domain.ErrInsufficientFunds
		}
		if targetErr != nil {
			return nil, domain.ErrTargetNotFound
		}
		to := accounts[toID]
		toBalance := to.Balance.Add(amount)
		if toBalance.GreaterThan(domain.MaxAmount) {
			return nil, domain.ErrInvalidAmount
		}
		fromBalance := from.Balance.Sub(amount)
		if err := tx.UpdateAccountBalance(from.ID, fromBalance); err != nil {
			return nil, err
		}
		if err := tx.UpdateAccountBalance(to.ID, toBalance); err != nil {
			return nil, err
		}
		if err := tx.RecordMovement(&domain.Movement{
			Type:          domain.MovementTransfer,
			FromAccountID: &from.ID,
			ToAccountID:   &to.ID,
			Amount:        amount,
			ActorUserID:   actor.UserID,
		}); err != nil {
			return nil, err
		}
		return &Receipt{
			AccountID:      from.ID,
			Applied:        amount,
			AccountBalance: fromBalance,
			TouchedUsers:   []uint{actor.UserID, target.ID},
		}, nil
	})
}

// CreditPurchase debits amount from the caller's account and adds it to the
// caller's credit card debt.
func (e *Engine) CreditPurchase(ctx context.Context, actor *domain.Identity, amount decimal.Decimal) (*Receipt, error) {
	if err := auth.Authorize(actor); err != nil {
		return nil, err
	}
	if err := checkAmount(amount); err != nil {
		return nil, e.reject(domain.MovementCreditPurchase, actor, amount, err)
	}
	return e.run(ctx, domain.MovementCreditPurchase, actor, amount, func(tx store.Tx) (*Receipt, error) {
		acct, err := lockOwnAccount(tx, actor.UserID)
		if err != nil {
			return nil, err
		}
		if acct.Balance.LessThan(amount) {
			return nil, domain.ErrInsufficientFunds
		}
		card, err := tx.LockCreditCardByUser(actor.UserID)
		if err != nil {
			return nil, notFound(err, domain.ErrCreditCardNotFound)
		}
		debt := card.Debt.Add(amount)
		if debt.GreaterThan(domain.MaxAmount) {
			return nil, domain.ErrInvalidAmount
		}
		if e.policy.EnforceCreditLimit && debt.GreaterThan(card.Limit) {
			return nil, domain.ErrCreditLimitExceeded
		}
		balance := acct.Balance.Sub(amount)
		if err := tx.UpdateAccountBalance(acct.ID, balance); err != nil {
			return nil, err
		}
		if err := tx.UpdateCreditCardDebt(card.ID, debt); err != nil {
			return nil, err
		}
		if err := tx.RecordMovement(&domain.Movement{
			Type:          domain.MovementCreditPurchase,
			FromAccountID: &acct.ID,
			Amount:        amount,
			ActorUserID:   actor.UserID,
		}); err != nil {
			return nil, err
		}
		return &Receipt{
			AccountID:      acct.ID,
			Applied:        amount,
			AccountBalance: balance,
			CreditCardDebt: debt,
			TouchedUsers:   []uint{actor.UserID},
		}, nil
	})
}

// PayCreditBalance pays min(amount, debt) of the caller's credit card debt
// from the caller's account.
func (e *Engine) PayCreditBalance(ctx context.Context, actor *domain.Identity, amount decimal.Decimal) (*Receipt, error) {
	if err := auth.Authorize(actor); err != nil {
		return nil, err
	}
	if err := checkAmount(amount); err != nil {
		return nil, e.reject(domain.MovementCreditPayment, actor, amount, err)
	}
	return e.run(ctx, domain.MovementCreditPayment, actor, amount, func(tx store.Tx) (*Receipt, error) {
		acct, err := lockOwnAccount(tx, actor.UserID)
		if err != nil {
			return nil, err
		}
		// By default funds must cover the requested amount even when less is
		// withdrawn.
		if !e.policy.CheckClampedPayment && acct.Balance.LessThan(amount) {
			return nil, domain.ErrInsufficientFunds
		}
		card, err := tx.LockCreditCardByUser(actor.UserID)
		if err != nil {
			return nil, notFound(err, domain.ErrCreditCardNotFound)
		}
		payment := decimal.Min(amount, card.Debt)
		if e.policy.CheckClampedPayment && acct.Balance.LessThan(payment) {
			return nil, domain.ErrInsufficientFunds
		}
		balance := acct.Balance.Sub(payment)
		debt := card.Debt.Sub(payment)
		if err := tx.UpdateAccountBalance(acct.ID, balance); err != nil {
			return nil, err
		}
		if err := tx.UpdateCreditCardDebt(card.ID, debt); err != nil {
			return nil, err
		}
		if payment.IsPositive() {
			if err := tx.RecordMovement(&domain.Movement{
				Type:          domain.MovementCreditPayment,
				FromAccountID: &acct.ID,
				Amount:        payment,
				ActorUserID:   actor.UserID,
			}); err != nil {
				return nil, err
			}
		}
		return &Receipt{
			AccountID:      acct.ID,
			Applied:        payment,
			AccountBalance: balance,
			CreditCardDebt: debt,
			TouchedUsers:   []uint{actor.UserID},
		}, nil
	})
}

// run executes fn in one bounded transaction and classifies the outcome.
func (e *Engine) run(ctx context.Context, op domain.MovementType, actor *domain.Identity, amount decimal.Decimal, fn func(tx store.Tx) (*Receipt, error)) (*Receipt, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var receipt *Receipt
	err := e.store.Transact(ctx, func(tx store.Tx) error {
		r, err := fn(tx)
		if err != nil {
			return err
		}
		receipt = r
		return nil
	})
	err = classify(err)
	metrics.ObserveLedger(string(op), err, time.Since(start))

	fields := logrus.Fields{
		"operation": op,                // Ledger operation
		"user_id":   actor.UserID,      // Caller
		"amount":    amount.String(),   // Requested amount
		"elapsed":   time.Since(start), // Transaction wall time
	}
	if err != nil {
		entry := e.log.WithFields(fields).WithError(err)
		if domain.KindOf(err) == domain.KindInternal {
			entry.Error("Ledger operation failed")
		} else {
			entry.Warn("Ledger operation rejected")
		}
		return nil, err
	}
	receipt.Operation = op
	fields["account_id"] = receipt.AccountID
	fields["applied"] = receipt.Applied.String()
	fields["balance"] = receipt.AccountBalance.String()
	e.log.WithFields(fields).Info("Ledger operation committed")
	return receipt, nil
}

// reject records a failure detected before any transaction was opened.
func (e *Engine) reject(op domain.MovementType, actor *domain.Identity, amount decimal.Decimal, err error) error {
	metrics.ObserveLedger(string(op), err, 0)
	e.log.WithFields(logrus.Fields{
		"operation": op,
		"user_id":   actor.UserID,
		"amount":    amount.String(),
	}).WithError(err).Warn("Ledger operation rejected")
	return err
}

func lockOwnAccount(tx store.Tx, userID uint) (*domain.Account, error) {
	id, err := tx.AccountIDByUser(userID)
	if err != nil {
		return nil, notFound(err, domain.ErrAccountNotFound)
	}
	accounts, err := tx.LockAccounts(id)
	if err != nil {
		return nil, notFound(err, domain.ErrAccountNotFound)
	}
	return accounts[id], nil
}

// checkAmount requires a positive amount that fits the balance columns: at
// most two decimal places and no larger than domain.MaxAmount.
func checkAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() || !amount.Equal(amount.Round(2)) || amount.GreaterThan(domain.MaxAmount) {
		return domain.ErrInvalidAmount
	}
	return nil
}

// notFound swaps store.ErrNotFound for the operation-specific error.
func notFound(err error, sentinel *domain.Error) error {
	if errors.Is(err, store.ErrNotFound) {
		return sentinel
	}
	return err
}

// classify turns a transaction error into a domain error.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, store.ErrLockTimeout) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return domain.Wrap(domain.ErrRetryable, err)
	}
	return domain.Internal(err)
}
