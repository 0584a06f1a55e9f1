//go:build integration

package gormstore_test

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"

	"core_bank/internal/db"
	"core_bank/internal/domain"
	"core_bank/internal/ledger"
	"core_bank/internal/store"
	"core_bank/internal/store/gormstore"
)

// setupStore starts a disposable MySQL, migrates it and seeds the demo users.
func setupStore(t *testing.T) *gormstore.Store {
	t.Helper()
	ctx := context.Background()

	container, err := tcmysql.Run(ctx, "mysql:8.0",
		tcmysql.WithDatabase("corebank"),
		tcmysql.WithUsername("bank"),
		tcmysql.WithPassword("bank"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "3306/tcp")
	require.NoError(t, err)

	st, err := gormstore.Open(gormstore.Config{
		User:            "bank",
		Password:        "bank",
		Host:            host,
		Port:            port.Port(),
		Name:            "corebank",
		LockWaitTimeout: 3 * time.Second,
		MaxOpenConns:    32,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	log := quietLogger()
	require.NoError(t, db.Migrate(ctx, st.DB(), log))
	_, err = db.Seed(ctx, st, db.DefaultSeedOptions, log)
	require.NoError(t, err)
	return st
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func identity(t *testing.T, s store.Store, username string) *domain.Identity {
	t.Helper()
	u, err := s.UserByUsername(context.Background(), username)
	require.NoError(t, err)
	return &domain.Identity{UserID: u.ID, Role: u.Role, Username: u.Username}
}

func balance(t *testing.T, s store.Store, id *domain.Identity) decimal.Decimal {
	t.Helper()
	a, err := s.AccountByUser(context.Background(), id.UserID)
	require.NoError(t, err)
	return a.Balance
}

func TestIntegration_ConcurrentWithdrawals(t *testing.T) {
	st := setupStore(t)
	engine := ledger.NewEngine(st, ledger.Config{}, quietLogger())
	user1 := identity(t, st, "user1")

	var ok atomic.Int32
	var wg sync.WaitGroup
	for range 25 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := engine.Withdraw(context.Background(), user1, decimal.NewFromInt(100)); err == nil {
				ok.Add(1)
			} else {
				assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 10, ok.Load())
	assert.True(t, balance(t, st, user1).IsZero())

	acct, err := st.AccountByUser(context.Background(), user1.UserID)
	require.NoError(t, err)
	_, total, err := st.Movements(context.Background(), acct.ID, 0, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 10, total)
}

func TestIntegration_OpposingTransfers(t *testing.T) {
	st := setupStore(t)
	engine := ledger.NewEngine(st, ledger.Config{}, quietLogger())
	user1, user2 := identity(t, st, "user1"), identity(t, st, "user2")

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := engine.Transfer(context.Background(), user1, "user2", decimal.NewFromInt(7))
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := engine.Transfer(context.Background(), user2, "user1", decimal.NewFromInt(3))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.True(t, balance(t, st, user1).Equal(decimal.NewFromInt(920)))
	assert.True(t, balance(t, st, user2).Equal(decimal.NewFromInt(1080)))
}

func TestIntegration_RollbackAndDuplicates(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()
	user1 := identity(t, st, "user1")

	err := st.Transact(ctx, func(tx store.Tx) error {
		return tx.CreateUser(&domain.User{Username: "user1", Password: []byte("x"), Role: domain.RoleClient})
	})
	assert.ErrorIs(t, err, store.ErrDuplicate)

	engine := ledger.NewEngine(st, ledger.Config{}, quietLogger())
	_, err = engine.CreditPurchase(ctx, user1, decimal.NewFromInt(1001))
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.True(t, balance(t, st, user1).Equal(decimal.NewFromInt(1000)))

	r, err := engine.PayCreditBalance(ctx, user1, decimal.NewFromInt(50))
	require.NoError(t, err)
	assert.True(t, r.Applied.IsZero(), "nothing owed")
}
