// Package ledger 管理每个地址的真实余额。
//
// 所有资金移动只有两种方式：付款方签名授权的 Pull，以及程序对托管金库的 PushFromVault。
// 每次移动都在调用方的事务里完成，并为双方各写一条流水。
package ledger

import (
	"context"
	"errors"
	"fmt"

	"guessescrow/internal/address"
	"guessescrow/internal/model"
	"guessescrow/internal/repository"
	"guessescrow/pkg/idgen"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errNoTransaction = errors.New("资金移动必须在事务内执行")

	ErrInsufficientFunds    = errors.New("可用余额不足")
	ErrUnauthorizedTransfer = errors.New("转账未经付款方授权")
	ErrNotCustodial         = errors.New("该地址不是程序托管的金库")
	ErrInvalidAmount        = errors.New("转账金额不合法")
	ErrSameAccount          = errors.New("付款方和收款方不能相同")
	ErrOverflow             = errors.New("收款方余额超出上限")
)

// Memo 写入流水的业务信息
type Memo struct {
	Type      string // model.EntryType*
	RequestID string
	Remark    string
}

// BalanceChange 一个地址在本次移动前后的余额
type BalanceChange struct {
	Address string
	Before  uint64
	After   uint64
}

type Receipt struct {
	From BalanceChange
	To   BalanceChange
}

// ValueTransfer 资金移动能力
type ValueTransfer interface {
	// Pull 从 from 扣款，signer 必须就是 from
	Pull(ctx context.Context, tx *gorm.DB, signer, from, to address.Address, amount uint64, memo Memo) (*Receipt, error)
	// PushFromVault 从程序托管的金库扣款，不需要签名
	PushFromVault(ctx context.Context, tx *gorm.DB, vault, to address.Address, amount uint64, memo Memo) (*Receipt, error)
}

type Ledger struct {
	db      *gorm.DB
	wallets *repository.WalletRepository
	entries *repository.LedgerRepository
	vaults  map[address.Address]struct{}
	log     *zap.Logger
}

var _ ValueTransfer = (*Ledger)(nil)

// New vaults 是本程序托管的金库地址，只有它们能用 PushFromVault 扣款
func New(db *gorm.DB, log *zap.Logger, vaults ...address.Address) *Ledger {
	if log == nil {
		log = zap.NewNop()
	}
	l := &Ledger{
		db:      db,
		wallets: repository.NewWalletRepository(db),
		entries: repository.NewLedgerRepository(db),
		vaults:  make(map[address.Address]struct{}, len(vaults)),
		log:     log,
	}
	for _, v := range vaults {
		l.vaults[v] = struct{}{}
	}
	return l
}

func (l *Ledger) IsCustodian(a address.Address) bool {
	_, ok := l.vaults[a]
	return ok
}

func (l *Ledger) Pull(ctx context.Context, tx *gorm.DB, signer, from, to address.Address, amount uint64, memo Memo) (*Receipt, error) {
	if signer != from || l.IsCustodian(from) {
		return nil, ErrUnauthorizedTransfer
	}
	return l.move(ctx, tx, from, to, amount, memo)
}

func (l *Ledger) PushFromVault(ctx context.Context, tx *gorm.DB, vault, to address.Address, amount uint64, memo Memo) (*Receipt, error) {
	if !l.IsCustodian(vault) {
		return nil, ErrNotCustodial
	}
	return l.move(ctx, tx, vault, to, amount, memo)
}

// Airdrop 测试水龙头，只有入账一侧
func (l *Ledger) Airdrop(ctx context.Context, tx *gorm.DB, to address.Address, amount uint64, memo Memo) (*BalanceChange, error) {
	if tx == nil {
		return nil, errNoTransaction
	}
	if !model.ValidAmount(amount) {
		return nil, ErrInvalidAmount
	}
	wallet, err := l.wallets.GetOrCreateForUpdate(ctx, tx, to.String(), l.IsCustodian(to))
	if err != nil {
		return nil, fmt.Errorf("获取钱包失败: %w", err)
	}

	change := BalanceChange{Address: wallet.Address, Before: wallet.Balance}
	if err := l.wallets.Increase(ctx, tx, wallet, amount); err != nil {
		return nil, mapWalletErr(err)
	}
	change.After = wallet.Balance

	if memo.Type == "" {
		memo.Type = model.EntryTypeAirdrop
	}
	entry := newEntry(change, "", int64(amount), memo)
	if err := l.entries.Create(ctx, tx, entry); err != nil {
		return nil, fmt.Errorf("写入流水失败: %w", err)
	}
	return &change, nil
}

// Balance 地址没有钱包时余额为0
func (l *Ledger) Balance(ctx context.Context, a address.Address) (uint64, error) {
	wallet, err := l.wallets.GetByAddress(ctx, nil, a.String())
	if err != nil {
		if errors.Is(err, repository.ErrWalletNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return wallet.Balance, nil
}

func (l *Ledger) move(ctx context.Context, tx *gorm.DB, from, to address.Address, amount uint64, memo Memo) (*Receipt, error) {
	if tx == nil {
		return nil, errNoTransaction
	}
	if !model.ValidAmount(amount) {
		return nil, ErrInvalidAmount
	}
	if from == to {
		return nil, ErrSameAccount
	}

	// 按地址顺序加行锁，避免两个方向相反的转账互相等待
	var src, dst *model.Wallet
	var err error
	if from.String() < to.String() {
		if src, err = l.lockPayer(ctx, tx, from); err == nil {
			dst, err = l.wallets.GetOrCreateForUpdate(ctx, tx, to.String(), l.IsCustodian(to))
		}
	} else {
		if dst, err = l.wallets.GetOrCreateForUpdate(ctx, tx, to.String(), l.IsCustodian(to)); err == nil {
			src, err = l.lockPayer(ctx, tx, from)
		}
	}
	if err != nil {
		return nil, err
	}

	receipt := &Receipt{
		From: BalanceChange{Address: src.Address, Before: src.Balance},
		To:   BalanceChange{Address: dst.Address, Before: dst.Balance},
	}

	if err := l.wallets.Deduct(ctx, tx, src, amount); err != nil {
		return nil, mapWalletErr(err)
	}
	if err := l.wallets.Increase(ctx, tx, dst, amount); err != nil {
		return nil, mapWalletErr(err)
	}
	receipt.From.After = src.Balance
	receipt.To.After = dst.Balance

	err = l.entries.Create(ctx, tx,
		newEntry(receipt.From, dst.Address, -int64(amount), memo),
		newEntry(receipt.To, src.Address, int64(amount), memo),
	)
	if err != nil {
		return nil, fmt.Errorf("写入流水失败: %w", err)
	}

	l.log.Debug("资金移动",
		zap.String("from", src.Address),
		zap.String("to", dst.Address),
		zap.Uint64("amount", amount),
		zap.String("type", memo.Type),
		zap.String("request_id", memo.RequestID),
	)
	return receipt, nil
}

// lockPayer 付款方没有钱包等同于余额为0
func (l *Ledger) lockPayer(ctx context.Context, tx *gorm.DB, from address.Address) (*model.Wallet, error) {
	wallet, err := l.wallets.GetByAddressForUpdate(ctx, tx, from.String())
	if err != nil {
		if errors.Is(err, repository.ErrWalletNotFound) {
			return nil, ErrInsufficientFunds
		}
		return nil, fmt.Errorf("获取付款方钱包失败: %w", err)
	}
	return wallet, nil
}

func mapWalletErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrBalanceNotEnough):
		return ErrInsufficientFunds
	case errors.Is(err, repository.ErrBalanceOverflow):
		return ErrOverflow
	default:
		return err
	}
}

func newEntry(change BalanceChange, counterparty string, amount int64, memo Memo) *model.LedgerEntry {
	return &model.LedgerEntry{
		EntryNo:       idgen.GenerateEntryNo(),
		Address:       change.Address,
		Counterparty:  counterparty,
		RequestID:     memo.RequestID,
		Amount:        amount,
		Type:          memo.Type,
		BalanceBefore: change.Before,
		BalanceAfter:  change.After,
		Remark:        memo.Remark,
	}
}
