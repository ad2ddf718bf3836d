package service

import (
	"context"
	"errors"
	"fmt"

	"guessescrow/internal/address"
	"guessescrow/internal/infrastructure/lock"
	"guessescrow/internal/ledger"
	"guessescrow/internal/model"
	"guessescrow/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type HouseService struct {
	deps       Dependencies
	houseRepo  *repository.HouseRepository
	ledgerRepo *repository.LedgerRepository
	outboxRepo *repository.OutboxRepository
	authority  address.Address
	log        *zap.Logger
}

func NewHouseService(deps Dependencies) *HouseService {
	s := &HouseService{
		deps:       deps,
		houseRepo:  repository.NewHouseRepository(deps.DB),
		ledgerRepo: repository.NewLedgerRepository(deps.DB),
		outboxRepo: repository.NewOutboxRepository(deps.DB),
		log:        deps.logger().Named("house"),
	}
	if raw := deps.Config.Program.HouseAuthority; raw != "" {
		authority, err := address.Parse(raw)
		if err != nil {
			s.log.Warn("house_authority 配置非法，提现功能关闭", zap.String("house_authority", raw), zap.Error(err))
		} else {
			s.authority = authority
		}
	}
	return s
}

// Open 创建庄家资金池并完成第一笔注资
func (s *HouseService) Open(ctx context.Context, funder address.Address, amount uint64, requestID string) (*model.HouseAccount, error) {
	release, err := s.deps.acquire(ctx, requestID, lock.HouseLockKey)
	if err != nil {
		return nil, err
	}
	defer release()

	vault := s.deps.Deriver.House()
	house := &model.HouseAccount{
		Address: vault.String(),
		Bump:    s.deps.Deriver.HouseBump(),
	}

	err = s.deps.DB.Transaction(func(tx *gorm.DB) error {
		_, err := s.houseRepo.GetByAddress(ctx, tx, house.Address)
		if err == nil {
			return ErrAlreadyInitialized
		}
		if !errors.Is(err, repository.ErrHouseNotFound) {
			return fmt.Errorf("查询庄家资金池失败: %w", err)
		}

		if !model.ValidAmount(amount) {
			return ErrInvalidAmount
		}

		memo := ledger.Memo{Type: model.EntryTypeHouseOpen, RequestID: requestID, Remark: "开设资金池"}
		if _, err := s.deps.Ledger.Pull(ctx, tx, funder, funder, vault, amount, memo); err != nil {
			return translateErr(err)
		}

		house.RecordedBalance = amount
		if err := s.houseRepo.Create(ctx, tx, house); err != nil {
			if errors.Is(err, repository.ErrHouseExists) {
				return ErrAlreadyInitialized
			}
			return fmt.Errorf("创建庄家资金池失败: %w", err)
		}

		return enqueueEvent(ctx, tx, s.outboxRepo, s.deps.eventTopic(), house.Address, EventHouseOpened, HouseEventData{
			Address:         house.Address,
			Identity:        funder.String(),
			Amount:          amount,
			RecordedBalance: house.RecordedBalance,
			RequestID:       requestID,
		})
	})
	if err != nil {
		s.deps.Metrics.ObserveError("open", Reason(err))
		return nil, err
	}

	s.deps.Metrics.ObserveHouseBalance(house.RecordedBalance)
	s.log.Info("庄家资金池已开设",
		zap.String("address", house.Address),
		zap.String("funder", funder.String()),
		zap.Uint64("amount", amount),
	)
	return house, nil
}

// Fund 追加资金，同一个请求号只能注资一次
func (s *HouseService) Fund(ctx context.Context, funder address.Address, amount uint64, requestID string) (*model.HouseAccount, error) {
	release, err := s.deps.acquire(ctx, requestID, lock.HouseLockKey)
	if err != nil {
		return nil, err
	}
	defer release()

	vault := s.deps.Deriver.House()
	var house *model.HouseAccount

	err = s.deps.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		house, err = s.lockHouse(ctx, tx)
		if err != nil {
			return err
		}

		if !model.ValidAmount(amount) {
			return ErrInvalidAmount
		}

		if err := s.checkRequestUnused(ctx, tx, house.Address, requestID, model.EntryTypeHouseFund); err != nil {
			return err
		}

		newBalance, ok := model.AddAmount(house.RecordedBalance, amount)
		if !ok {
			return ErrOverflow
		}

		memo := ledger.Memo{Type: model.EntryTypeHouseFund, RequestID: requestID, Remark: "追加资金"}
		if _, err := s.deps.Ledger.Pull(ctx, tx, funder, funder, vault, amount, memo); err != nil {
			return translateErr(err)
		}

		if err := s.houseRepo.UpdateBalance(ctx, tx, house, newBalance); err != nil {
			return translateErr(err)
		}

		return enqueueEvent(ctx, tx, s.outboxRepo, s.deps.eventTopic(), house.Address, EventHouseFunded, HouseEventData{
			Address:         house.Address,
			Identity:        funder.String(),
			Amount:          amount,
			RecordedBalance: house.RecordedBalance,
			RequestID:       requestID,
		})
	})
	if err != nil {
		s.deps.Metrics.ObserveError("fund", Reason(err))
		return nil, err
	}

	s.deps.Metrics.ObserveHouseBalance(house.RecordedBalance)
	s.log.Info("庄家资金池已注资",
		zap.String("funder", funder.String()),
		zap.Uint64("amount", amount),
		zap.Uint64("recorded_balance", house.RecordedBalance),
	)
	return house, nil
}

// Withdraw 只有配置的 house_authority 可以提现，同一个请求号只能提现一次
func (s *HouseService) Withdraw(ctx context.Context, caller address.Address, amount uint64, requestID string) (*model.HouseAccount, error) {
	release, err := s.deps.acquire(ctx, requestID, lock.HouseLockKey)
	if err != nil {
		return nil, err
	}
	defer release()

	vault := s.deps.Deriver.House()
	var house *model.HouseAccount

	err = s.deps.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		house, err = s.lockHouse(ctx, tx)
		if err != nil {
			return err
		}

		if s.authority.IsZero() || caller != s.authority {
			return ErrAuthorizationMismatch
		}
		if !model.ValidAmount(amount) {
			return ErrInvalidAmount
		}
		if err := s.checkRequestUnused(ctx, tx, house.Address, requestID, model.EntryTypeHouseWithdraw); err != nil {
			return err
		}

		newBalance, ok := model.SubAmount(house.RecordedBalance, amount)
		if !ok {
			return ErrInsufficientFunds
		}

		memo := ledger.Memo{Type: model.EntryTypeHouseWithdraw, RequestID: requestID, Remark: "资金池提现"}
		if _, err := s.deps.Ledger.PushFromVault(ctx, tx, vault, caller, amount, memo); err != nil {
			return translateErr(err)
		}

		if err := s.houseRepo.UpdateBalance(ctx, tx, house, newBalance); err != nil {
			return translateErr(err)
		}

		return enqueueEvent(ctx, tx, s.outboxRepo, s.deps.eventTopic(), house.Address, EventHouseWithdrawn, HouseEventData{
			Address:         house.Address,
			Identity:        caller.String(),
			Amount:          amount,
			RecordedBalance: house.RecordedBalance,
			RequestID:       requestID,
		})
	})
	if err != nil {
		s.deps.Metrics.ObserveError("withdraw", Reason(err))
		return nil, err
	}

	s.deps.Metrics.ObserveHouseBalance(house.RecordedBalance)
	s.log.Info("庄家资金池已提现",
		zap.String("authority", caller.String()),
		zap.Uint64("amount", amount),
		zap.Uint64("recorded_balance", house.RecordedBalance),
	)
	return house, nil
}

func (s *HouseService) Get(ctx context.Context) (*model.HouseAccount, error) {
	house, err := s.houseRepo.GetByAddress(ctx, nil, s.deps.Deriver.House().String())
	if err != nil {
		if errors.Is(err, repository.ErrHouseNotFound) {
			return nil, ErrNotInitialized
		}
		return nil, err
	}
	return house, nil
}

func (s *HouseService) lockHouse(ctx context.Context, tx *gorm.DB) (*model.HouseAccount, error) {
	house, err := s.houseRepo.GetByAddressForUpdate(ctx, tx, s.deps.Deriver.House().String())
	if err != nil {
		if errors.Is(err, repository.ErrHouseNotFound) {
			return nil, ErrNotInitialized
		}
		return nil, fmt.Errorf("查询庄家资金池失败: %w", err)
	}
	return house, nil
}

// checkRequestUnused 同一类资金池流水里请求号不能重复，失败的请求不占用请求号
func (s *HouseService) checkRequestUnused(ctx context.Context, tx *gorm.DB, houseAddress, requestID, entryType string) error {
	if requestID == "" {
		return nil
	}
	used, err := s.ledgerRepo.ExistsByRequestID(ctx, tx, houseAddress, requestID, entryType)
	if err != nil {
		return fmt.Errorf("查询资金池流水失败: %w", err)
	}
	if used {
		return ErrDuplicateRequest
	}
	return nil
}
