package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"core_bank/internal/domain"
)

func TestSummary(t *testing.T) {
	f := newFixture(t, Policy{}, alice, seedUser{username: "nocard", role: domain.RoleClient, balance: "5"})
	ctx := context.Background()

	acct, card, err := f.engine.Summary(ctx, f.users["alice"])
	require.NoError(t, err)
	assert.Equal(t, f.accounts["alice"], acct.ID)
	assertAmount(t, "1000", acct.Balance)
	require.NotNil(t, card)
	assertAmount(t, "500", card.Available())

	acct, card, err = f.engine.Summary(ctx, f.users["nocard"])
	require.NoError(t, err)
	assertAmount(t, "5", acct.Balance)
	assert.Nil(t, card)

	_, _, err = f.engine.Summary(ctx, nil)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestHistory(t *testing.T) {
	f := newFixture(t, Policy{}, alice, bob, teller)
	ctx := context.Background()

	_, err := f.engine.Deposit(ctx, f.users["teller"], f.accounts["alice"], dec("10"))
	require.NoError(t, err)
	_, err = f.engine.Withdraw(ctx, f.users["alice"], dec("20"))
	require.NoError(t, err)
	_, err = f.engine.Transfer(ctx, f.users["bob"], "alice", dec("30"))
	require.NoError(t, err)
	_, err = f.engine.Withdraw(ctx, f.users["bob"], dec("1"))
	require.NoError(t, err)

	moves, total, err := f.engine.History(ctx, f.users["alice"], 1, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, moves, 2)
	assert.Equal(t, domain.MovementTransfer, moves[0].Type)
	assert.Equal(t, domain.MovementWithdrawal, moves[1].Type)

	moves, _, err = f.engine.History(ctx, f.users["alice"], 2, 2)
	require.NoError(t, err)
	require.Len(t, moves, 1)
	assert.Equal(t, domain.MovementDeposit, moves[0].Type)

	moves, total, err = f.engine.History(ctx, f.users["alice"], 9, 2)
	require.NoError(t, err)
	assert.Empty(t, moves)
	assert.EqualValues(t, 3, total)

	// Out-of-range paging falls back to defaults.
	moves, _, err = f.engine.History(ctx, f.users["alice"], 0, 1000)
	require.NoError(t, err)
	assert.Len(t, moves, 3)
}
