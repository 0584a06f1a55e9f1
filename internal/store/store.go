// Package store defines the persistence contract the core consumes. Every
// balance read and write of a ledger operation happens through one Tx so it
// commits or rolls back as a unit.
package store

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"core_bank/internal/domain"
)

var (
	// ErrNotFound is returned when a looked-up row does not exist.
	ErrNotFound = errors.New("store: record not found")
	// ErrDuplicate is returned when an insert violates a unique constraint.
	ErrDuplicate = errors.New("store: duplicate key")
	// ErrLockTimeout is returned when a row lock could not be obtained in time
	// or the transaction was chosen as a deadlock victim. The unit is rolled back.
	ErrLockTimeout = errors.New("store: lock wait timeout")
)

// Store is the durable account store.
type Store interface {
	// Transact runs fn in one atomic unit. A non-nil error from fn, a panic,
	// or a context deadline rolls back every write made through tx.
	Transact(ctx context.Context, fn func(tx Tx) error) error

	UserByUsername(ctx context.Context, username string) (*domain.User, error)
	UserByID(ctx context.Context, id uint) (*domain.User, error)
	AccountByUser(ctx context.Context, userID uint) (*domain.Account, error)
	CreditCardByUser(ctx context.Context, userID uint) (*domain.CreditCard, error)
	// Movements returns one page of the account's journal, newest first, and
	// the total number of movements touching the account.
	Movements(ctx context.Context, accountID uint, offset, limit int) ([]domain.Movement, int64, error)
	CountUsers(ctx context.Context) (int64, error)
}

// Tx is the view of the store inside one atomic unit. Lock* methods take a
// row lock held until the unit ends.
type Tx interface {
	UserByUsername(username string) (*domain.User, error)
	UserByID(id uint) (*domain.User, error)

	CreateUser(u *domain.User) error
	CreateClient(c *domain.Client) error
	CreateAccount(a *domain.Account) error
	CreateCreditCard(c *domain.CreditCard) error

	// AccountIDByUser resolves a user's account id without locking.
	AccountIDByUser(userID uint) (uint, error)
	// LockAccounts locks the given accounts in ascending id order and returns
	// them keyed by id. Any missing id yields ErrNotFound.
	LockAccounts(ids ...uint) (map[uint]*domain.Account, error)
	UpdateAccountBalance(id uint, balance decimal.Decimal) error

	LockCreditCardByUser(userID uint) (*domain.CreditCard, error)
	UpdateCreditCardDebt(id uint, debt decimal.Decimal) error

	RecordMovement(m *domain.Movement) error
}
