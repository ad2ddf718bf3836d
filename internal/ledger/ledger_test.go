package ledger

import (
	"context"
	"testing"

	"guessescrow/internal/address"
	"guessescrow/internal/model"
	"guessescrow/internal/repository"
	"guessescrow/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	db     *gorm.DB
	ledger *Ledger
	vault  address.Address
	alice  address.Address
	bob    address.Address
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := testutil.OpenTestDB(t)
	vault := testutil.Deriver(t).House()
	f := &fixture{
		db:     db,
		ledger: New(db, nil, vault),
		vault:  vault,
		alice:  testutil.Identity(1),
		bob:    testutil.Identity(2),
	}
	f.airdrop(t, f.alice, 1000)
	return f
}

func (f *fixture) airdrop(t *testing.T, to address.Address, amount uint64) {
	t.Helper()
	err := f.db.Transaction(func(tx *gorm.DB) error {
		_, err := f.ledger.Airdrop(context.Background(), tx, to, amount, Memo{})
		return err
	})
	require.NoError(t, err)
}

func (f *fixture) balance(t *testing.T, a address.Address) uint64 {
	t.Helper()
	b, err := f.ledger.Balance(context.Background(), a)
	require.NoError(t, err)
	return b
}

func TestPullMovesFundsAndJournals(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	var receipt *Receipt
	err := f.db.Transaction(func(tx *gorm.DB) error {
		var err error
		receipt, err = f.ledger.Pull(ctx, tx, f.alice, f.alice, f.vault, 300,
			Memo{Type: model.EntryTypeHouseOpen, RequestID: "open-1"})
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, BalanceChange{Address: f.alice.String(), Before: 1000, After: 700}, receipt.From)
	assert.Equal(t, BalanceChange{Address: f.vault.String(), Before: 0, After: 300}, receipt.To)
	assert.Equal(t, uint64(700), f.balance(t, f.alice))
	assert.Equal(t, uint64(300), f.balance(t, f.vault))

	// 金库钱包自动创建为托管钱包
	vaultWallet, err := repository.NewWalletRepository(f.db).GetByAddress(ctx, nil, f.vault.String())
	require.NoError(t, err)
	assert.True(t, vaultWallet.Custodial)

	entries := repository.NewLedgerRepository(f.db)
	sum, err := entries.SumByAddress(ctx, f.vault.String())
	require.NoError(t, err)
	assert.Equal(t, int64(300), sum)
	sum, err = entries.SumByAddress(ctx, f.alice.String())
	require.NoError(t, err)
	assert.Equal(t, int64(700), sum)

	exists, err := entries.ExistsByRequestID(ctx, nil, f.vault.String(), "open-1", model.EntryTypeHouseOpen)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestPullRequiresPayerSignature(t *testing.T) {
	f := setup(t)

	err := f.db.Transaction(func(tx *gorm.DB) error {
		_, err := f.ledger.Pull(context.Background(), tx, f.bob, f.alice, f.bob, 10, Memo{})
		return err
	})
	assert.ErrorIs(t, err, ErrUnauthorizedTransfer)

	// 金库没有私钥，不能作为 Pull 的付款方
	err = f.db.Transaction(func(tx *gorm.DB) error {
		_, err := f.ledger.Pull(context.Background(), tx, f.vault, f.vault, f.bob, 10, Memo{})
		return err
	})
	assert.ErrorIs(t, err, ErrUnauthorizedTransfer)
	assert.Equal(t, uint64(1000), f.balance(t, f.alice))
}

func TestPushFromVaultOnlyForCustodian(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	err := f.db.Transaction(func(tx *gorm.DB) error {
		_, err := f.ledger.PushFromVault(ctx, tx, f.alice, f.bob, 10, Memo{})
		return err
	})
	assert.ErrorIs(t, err, ErrNotCustodial)

	err = f.db.Transaction(func(tx *gorm.DB) error {
		if _, err := f.ledger.Pull(ctx, tx, f.alice, f.alice, f.vault, 500, Memo{Type: model.EntryTypeHouseOpen}); err != nil {
			return err
		}
		_, err := f.ledger.PushFromVault(ctx, tx, f.vault, f.bob, 200, Memo{Type: model.EntryTypeWinPayout})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(300), f.balance(t, f.vault))
	assert.Equal(t, uint64(200), f.balance(t, f.bob))
}

func TestTransferFailuresRollBack(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		from   address.Address
		to     address.Address
		amount uint64
		want   error
	}{
		{"余额不足", f.alice, f.vault, 1001, ErrInsufficientFunds},
		{"付款方没有钱包", f.bob, f.vault, 1, ErrInsufficientFunds},
		{"金额为0", f.alice, f.vault, 0, ErrInvalidAmount},
		{"金额超过上限", f.alice, f.vault, model.MaxAmount + 1, ErrInvalidAmount},
		{"转给自己", f.alice, f.alice, 1, ErrSameAccount},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := f.db.Transaction(func(tx *gorm.DB) error {
				_, err := f.ledger.Pull(ctx, tx, tc.from, tc.from, tc.to, tc.amount, Memo{})
				return err
			})
			assert.ErrorIs(t, err, tc.want)
		})
	}

	assert.Equal(t, uint64(1000), f.balance(t, f.alice))
	assert.Equal(t, uint64(0), f.balance(t, f.vault))
}

func TestAirdropOverflow(t *testing.T) {
	f := setup(t)

	err := f.db.Transaction(func(tx *gorm.DB) error {
		_, err := f.ledger.Airdrop(context.Background(), tx, f.alice, model.MaxAmount-999, Memo{})
		return err
	})
	assert.ErrorIs(t, err, ErrOverflow)
	assert.Equal(t, uint64(1000), f.balance(t, f.alice))

	_, err = f.ledger.Airdrop(context.Background(), nil, f.alice, 1, Memo{})
	assert.Error(t, err)
}
