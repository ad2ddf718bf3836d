package service

import (
	"context"
	"testing"

	"guessescrow/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalletAirdropAndJournal(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	change, err := e.wallets.Airdrop(ctx, player, 500)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), change.Before)
	assert.Equal(t, uint64(500), change.After)

	_, err = e.wallets.Airdrop(ctx, player, 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = e.wallets.Airdrop(ctx, player, model.MaxAmount)
	assert.ErrorIs(t, err, ErrOverflow)
	_, err = e.wallets.Airdrop(ctx, e.vault, 10)
	assert.ErrorIs(t, err, ErrCustodialAddress)

	e.openHouse(t, 1000)
	e.createGame(t, player, 7)
	_, err = play(e, player, 1, 200, "j-1")
	require.NoError(t, err)

	entries, total, err := e.wallets.Journal(ctx, player, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, entries, 2)
	assert.Equal(t, model.EntryTypeStakeLost, entries[0].Type)
	assert.Equal(t, int64(-200), entries[0].Amount)
	assert.Equal(t, e.vault.String(), entries[0].Counterparty)
	assert.Equal(t, uint64(300), entries[0].BalanceAfter)
	assert.Equal(t, model.EntryTypeAirdrop, entries[1].Type)

	balance, err := e.wallets.Balance(ctx, stranger)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), balance)
}
