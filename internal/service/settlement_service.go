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
	"guessescrow/pkg/idgen"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ============================================================================
// 结算引擎
// ============================================================================
//
// play 在一个事务里完成：读取记录 -> 校验 -> 比较猜测 -> 资金移动 -> 更新记录。
//
//   猜错：押注从玩家钱包转入金库（需要玩家签名），账面余额 += stake，游戏保持 OPEN
//   猜中：押注从金库转给玩家（程序托管扣款），账面余额 -= stake，游戏变为 SETTLED
//
// 任何一步失败整个事务回滚，不做重试。
// ============================================================================

type PlayRequest struct {
	Caller    address.Address
	Game      address.Address // 为空时使用调用方自己的游戏地址
	Guess     uint64
	Stake     uint64
	RequestID string
}

type PlayResult struct {
	Outcome      model.Outcome
	SettlementNo string
	Game         *model.GameRecord
	House        *model.HouseAccount
	Replayed     bool // 请求号重复，返回的是之前的结果
}

type SettlementService struct {
	deps           Dependencies
	houseRepo      *repository.HouseRepository
	gameRepo       *repository.GameRepository
	settlementRepo *repository.SettlementRepository
	outboxRepo     *repository.OutboxRepository
	log            *zap.Logger
}

func NewSettlementService(deps Dependencies) *SettlementService {
	return &SettlementService{
		deps:           deps,
		houseRepo:      repository.NewHouseRepository(deps.DB),
		gameRepo:       repository.NewGameRepository(deps.DB),
		settlementRepo: repository.NewSettlementRepository(deps.DB),
		outboxRepo:     repository.NewOutboxRepository(deps.DB),
		log:            deps.logger().Named("settlement"),
	}
}

func (s *SettlementService) Play(ctx context.Context, in *PlayRequest) (*PlayResult, error) {
	req := *in
	result, err := s.play(ctx, &req)
	if err != nil {
		s.deps.Metrics.ObserveError("play", Reason(err))
		s.log.Info("结算被拒绝",
			zap.String("caller", req.Caller.String()),
			zap.String("game", req.Game.String()),
			zap.String("request_id", req.RequestID),
			zap.Error(err),
		)
		return nil, err
	}
	return result, nil
}

func (s *SettlementService) play(ctx context.Context, req *PlayRequest) (*PlayResult, error) {
	if req.Game.IsZero() {
		gameAddr, _, err := s.deps.Deriver.Game(req.Caller)
		if err != nil {
			return nil, fmt.Errorf("派生游戏地址失败: %w", err)
		}
		req.Game = gameAddr
	}

	// 幂等校验
	if replay, err := s.replay(ctx, nil, req); replay != nil || err != nil {
		return replay, err
	}

	release, err := s.deps.acquire(ctx, req.RequestID, lock.HouseLockKey, lock.GameLockKey(req.Game.String()))
	if err != nil {
		return nil, err
	}
	defer release()

	vault := s.deps.Deriver.House()
	result := &PlayResult{SettlementNo: idgen.GenerateSettlementNo()}

	err = s.deps.DB.Transaction(func(tx *gorm.DB) error {
		// 获取锁后再次检查幂等
		replay, err := s.replay(ctx, tx, req)
		if err != nil {
			return err
		}
		if replay != nil {
			result = replay
			return nil
		}

		house, err := s.houseRepo.GetByAddressForUpdate(ctx, tx, vault.String())
		if err != nil {
			if errors.Is(err, repository.ErrHouseNotFound) {
				return ErrNotInitialized
			}
			return fmt.Errorf("查询庄家资金池失败: %w", err)
		}
		game, err := s.gameRepo.GetByAddressForUpdate(ctx, tx, req.Game.String())
		if err != nil {
			if errors.Is(err, repository.ErrGameNotFound) {
				return ErrNotInitialized
			}
			return fmt.Errorf("查询游戏记录失败: %w", err)
		}

		if req.Caller.String() != game.Owner {
			return ErrAuthorizationMismatch
		}
		if game.Settled {
			return ErrAlreadySettled
		}
		if !model.ValidAmount(req.Stake) {
			return ErrInvalidAmount
		}

		if req.Guess == game.CommittedNumber {
			err = s.settleWin(ctx, tx, vault, req, house, game)
			result.Outcome = model.OutcomeWin
		} else {
			err = s.settleLoss(ctx, tx, vault, req, house)
			result.Outcome = model.OutcomeLoss
		}
		if err != nil {
			return err
		}
		result.House = house
		result.Game = game

		settlement := &model.Settlement{
			SettlementNo:      result.SettlementNo,
			GameAddress:       game.Address,
			Owner:             game.Owner,
			Guess:             req.Guess,
			Stake:             req.Stake,
			Outcome:           result.Outcome,
			HouseBalanceAfter: house.RecordedBalance,
		}
		if req.RequestID != "" {
			requestID := req.RequestID
			settlement.RequestID = &requestID
		}
		if err := s.settlementRepo.Create(ctx, tx, settlement); err != nil {
			return fmt.Errorf("写入结算记录失败: %w", err)
		}

		eventType := EventGameLost
		if result.Outcome == model.OutcomeWin {
			eventType = EventGameSettled
		}
		return enqueueEvent(ctx, tx, s.outboxRepo, s.deps.eventTopic(), game.Address, eventType, SettlementEventData{
			SettlementNo:      settlement.SettlementNo,
			GameAddress:       game.Address,
			Owner:             game.Owner,
			Guess:             req.Guess,
			Stake:             req.Stake,
			Outcome:           string(result.Outcome),
			HouseBalanceAfter: house.RecordedBalance,
			RequestID:         req.RequestID,
		})
	})
	if err != nil {
		return nil, err
	}
	if result.Replayed {
		return result, nil
	}

	s.deps.Metrics.ObserveSettlement(string(result.Outcome), req.Stake, result.House.RecordedBalance)
	s.log.Info("结算完成",
		zap.String("settlement_no", result.SettlementNo),
		zap.String("game", result.Game.Address),
		zap.String("outcome", string(result.Outcome)),
		zap.Uint64("stake", req.Stake),
		zap.Uint64("recorded_balance", result.House.RecordedBalance),
	)
	return result, nil
}

// settleLoss 押注转入金库，账面余额同步增加，游戏保持 OPEN
func (s *SettlementService) settleLoss(ctx context.Context, tx *gorm.DB, vault address.Address, req *PlayRequest, house *model.HouseAccount) error {
	memo := ledger.Memo{Type: model.EntryTypeStakeLost, RequestID: req.RequestID, Remark: "猜错-" + req.Game.String()}
	if _, err := s.deps.Ledger.Pull(ctx, tx, req.Caller, req.Caller, vault, req.Stake, memo); err != nil {
		return translateErr(err)
	}

	newBalance, ok := model.AddAmount(house.RecordedBalance, req.Stake)
	if !ok {
		return ErrOverflow
	}
	return translateErr(s.houseRepo.UpdateBalance(ctx, tx, house, newBalance))
}

// settleWin 金库向玩家派奖，账面余额同步减少，游戏结算
func (s *SettlementService) settleWin(ctx context.Context, tx *gorm.DB, vault address.Address, req *PlayRequest, house *model.HouseAccount, game *model.GameRecord) error {
	newBalance, ok := model.SubAmount(house.RecordedBalance, req.Stake)
	if !ok {
		return ErrInsufficientFunds
	}

	memo := ledger.Memo{Type: model.EntryTypeWinPayout, RequestID: req.RequestID, Remark: "猜中-" + req.Game.String()}
	if _, err := s.deps.Ledger.PushFromVault(ctx, tx, vault, req.Caller, req.Stake, memo); err != nil {
		return translateErr(err)
	}

	if err := s.houseRepo.UpdateBalance(ctx, tx, house, newBalance); err != nil {
		return translateErr(err)
	}

	if err := s.gameRepo.MarkSettled(ctx, tx, game); err != nil {
		if errors.Is(err, repository.ErrGameAlreadySettled) || errors.Is(err, repository.ErrGameStateInvalid) {
			return ErrAlreadySettled
		}
		return fmt.Errorf("更新游戏状态失败: %w", err)
	}
	return nil
}

// replay 请求号已经结算过时返回之前的结果，请求号属于别的身份时拒绝
func (s *SettlementService) replay(ctx context.Context, tx *gorm.DB, req *PlayRequest) (*PlayResult, error) {
	if req.RequestID == "" {
		return nil, nil
	}
	existing, err := s.settlementRepo.GetByRequestID(ctx, tx, req.RequestID)
	if err != nil {
		return nil, fmt.Errorf("查询结算记录失败: %w", err)
	}
	if existing == nil {
		return nil, nil
	}
	if existing.Owner != req.Caller.String() || existing.GameAddress != req.Game.String() {
		return nil, ErrDuplicateRequest
	}

	game, err := s.gameRepo.GetByAddress(ctx, tx, existing.GameAddress)
	if err != nil {
		return nil, fmt.Errorf("查询游戏记录失败: %w", err)
	}
	house, err := s.houseRepo.GetByAddress(ctx, tx, s.deps.Deriver.House().String())
	if err != nil {
		return nil, fmt.Errorf("查询庄家资金池失败: %w", err)
	}
	return &PlayResult{
		Outcome:      existing.Outcome,
		SettlementNo: existing.SettlementNo,
		Game:         game,
		House:        house,
		Replayed:     true,
	}, nil
}

// ListSettlements 某个身份的结算历史
func (s *SettlementService) ListSettlements(ctx context.Context, owner address.Address, pageNo, pageSize int) ([]*model.Settlement, int64, error) {
	return s.settlementRepo.ListByOwner(ctx, owner.String(), pageNo, pageSize)
}
