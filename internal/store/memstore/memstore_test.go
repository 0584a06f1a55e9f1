package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"core_bank/internal/domain"
	"core_bank/internal/store"
)

func seed(t *testing.T, s *Store, username string, balance int64) (userID, accountID uint) {
	t.Helper()
	require.NoError(t, s.Transact(context.Background(), func(tx store.Tx) error {
		u := &domain.User{Username: username, Role: domain.RoleClient}
		if err := tx.CreateUser(u); err != nil {
			return err
		}
		a := &domain.Account{UserID: u.ID, Balance: decimal.NewFromInt(balance)}
		if err := tx.CreateAccount(a); err != nil {
			return err
		}
		userID, accountID = u.ID, a.ID
		return nil
	}))
	return userID, accountID
}

func TestTransact_RollsBackOnError(t *testing.T) {
	s := New()
	ctx := context.Background()
	userID, accountID := seed(t, s, "user1", 100)

	boom := errors.New("boom")
	err := s.Transact(ctx, func(tx store.Tx) error {
		require.NoError(t, tx.UpdateAccountBalance(accountID, decimal.NewFromInt(1)))
		require.NoError(t, tx.RecordMovement(&domain.Movement{Type: domain.MovementWithdrawal, FromAccountID: &accountID}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	acct, err := s.AccountByUser(ctx, userID)
	require.NoError(t, err)
	assert.True(t, acct.Balance.Equal(decimal.NewFromInt(100)))
	_, total, err := s.Movements(ctx, accountID, 0, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestTransact_Duplicates(t *testing.T) {
	s := New()
	userID, _ := seed(t, s, "user1", 0)

	err := s.Transact(context.Background(), func(tx store.Tx) error {
		return tx.CreateUser(&domain.User{Username: "user1"})
	})
	assert.ErrorIs(t, err, store.ErrDuplicate)

	err = s.Transact(context.Background(), func(tx store.Tx) error {
		return tx.CreateAccount(&domain.Account{UserID: userID})
	})
	assert.ErrorIs(t, err, store.ErrDuplicate)

	err = s.Transact(context.Background(), func(tx store.Tx) error {
		if err := tx.CreateClient(&domain.Client{UserID: userID, NationalID: "1710034065"}); err != nil {
			return err
		}
		other := &domain.User{Username: "user2"}
		if err := tx.CreateUser(other); err != nil {
			return err
		}
		return tx.CreateClient(&domain.Client{UserID: other.ID, NationalID: "1710034065"})
	})
	assert.ErrorIs(t, err, store.ErrDuplicate)
	_, err = s.UserByUsername(context.Background(), "user2")
	assert.ErrorIs(t, err, store.ErrNotFound, "the failed unit left no user behind")
}

func TestTransact_LockTimeout(t *testing.T) {
	s := New()
	held := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = s.Transact(context.Background(), func(store.Tx) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := s.Transact(ctx, func(store.Tx) error {
		t.Fatal("must not run while another unit holds the store")
		return nil
	})
	assert.ErrorIs(t, err, store.ErrLockTimeout)
}

func TestTransact_DeadlineDuringUnit(t *testing.T) {
	s := New()
	ctx := context.Background()
	userID, accountID := seed(t, s, "user1", 100)

	tctx, cancel := context.WithCancel(ctx)
	err := s.Transact(tctx, func(tx store.Tx) error {
		cancel()
		return tx.UpdateAccountBalance(accountID, decimal.Zero)
	})
	assert.ErrorIs(t, err, store.ErrLockTimeout)

	acct, err := s.AccountByUser(ctx, userID)
	require.NoError(t, err)
	assert.True(t, acct.Balance.Equal(decimal.NewFromInt(100)))
}

func TestLockAccounts(t *testing.T) {
	s := New()
	_, a1 := seed(t, s, "user1", 10)
	_, a2 := seed(t, s, "user2", 20)

	require.NoError(t, s.Transact(context.Background(), func(tx store.Tx) error {
		accounts, err := tx.LockAccounts(a2, a1)
		require.NoError(t, err)
		assert.Len(t, accounts, 2)
		assert.True(t, accounts[a2].Balance.Equal(decimal.NewFromInt(20)))

		_, err = tx.LockAccounts(a1, 999)
		assert.ErrorIs(t, err, store.ErrNotFound)
		return nil
	}))
}

func TestMovements_Paging(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, a1 := seed(t, s, "user1", 0)
	_, a2 := seed(t, s, "user2", 0)

	require.NoError(t, s.Transact(ctx, func(tx store.Tx) error {
		for i := int64(1); i <= 5; i++ {
			m := &domain.Movement{Type: domain.MovementTransfer, FromAccountID: &a1, ToAccountID: &a2, Amount: decimal.NewFromInt(i)}
			if err := tx.RecordMovement(m); err != nil {
				return err
			}
		}
		return tx.RecordMovement(&domain.Movement{Type: domain.MovementDeposit, ToAccountID: &a2, Amount: decimal.NewFromInt(9)})
	}))

	page, total, err := s.Movements(ctx, a1, 0, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	require.Len(t, page, 2)
	assert.True(t, page[0].Amount.Equal(decimal.NewFromInt(5)), "newest first")

	page, total, err = s.Movements(ctx, a2, 4, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 6, total)
	assert.Len(t, page, 2)

	page, _, err = s.Movements(ctx, a1, 50, 10)
	require.NoError(t, err)
	assert.Empty(t, page)
}
