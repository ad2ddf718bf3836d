package service

import (
	"context"
	"fmt"

	"guessescrow/internal/address"
	"guessescrow/internal/ledger"
	"guessescrow/internal/model"
	"guessescrow/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type WalletService struct {
	deps       Dependencies
	ledgerRepo *repository.LedgerRepository
	log        *zap.Logger
}

func NewWalletService(deps Dependencies) *WalletService {
	return &WalletService{
		deps:       deps,
		ledgerRepo: repository.NewLedgerRepository(deps.DB),
		log:        deps.logger().Named("wallet"),
	}
}

func (s *WalletService) Balance(ctx context.Context, addr address.Address) (uint64, error) {
	return s.deps.Ledger.Balance(ctx, addr)
}

func (s *WalletService) Journal(ctx context.Context, addr address.Address, pageNo, pageSize int) ([]*model.LedgerEntry, int64, error) {
	return s.ledgerRepo.ListByAddress(ctx, addr.String(), pageNo, pageSize)
}

// Airdrop 测试水龙头，托管金库不能接收空投，否则账面余额和真实余额会对不上
func (s *WalletService) Airdrop(ctx context.Context, addr address.Address, amount uint64) (*ledger.BalanceChange, error) {
	if s.deps.Ledger.IsCustodian(addr) {
		return nil, ErrCustodialAddress
	}
	if !model.ValidAmount(amount) {
		return nil, ErrInvalidAmount
	}

	var change *ledger.BalanceChange
	err := s.deps.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		change, err = s.deps.Ledger.Airdrop(ctx, tx, addr, amount, ledger.Memo{Type: model.EntryTypeAirdrop, Remark: "测试空投"})
		return translateErr(err)
	})
	if err != nil {
		s.deps.Metrics.ObserveError("airdrop", Reason(err))
		return nil, fmt.Errorf("空投失败: %w", err)
	}

	s.log.Info("空投到账", zap.String("address", addr.String()), zap.Uint64("amount", amount), zap.Uint64("balance", change.After))
	return change, nil
}
