package service

import (
	"context"
	"errors"
	"fmt"

	"guessescrow/internal/address"
	"guessescrow/internal/model"
	"guessescrow/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type GameService struct {
	deps       Dependencies
	gameRepo   *repository.GameRepository
	outboxRepo *repository.OutboxRepository
	log        *zap.Logger
}

func NewGameService(deps Dependencies) *GameService {
	return &GameService{
		deps:       deps,
		gameRepo:   repository.NewGameRepository(deps.DB),
		outboxRepo: repository.NewOutboxRepository(deps.DB),
		log:        deps.logger().Named("game"),
	}
}

// Create 在 owner 派生的地址上创建游戏记录，不涉及资金移动
//
// 地址只由 owner 决定，所以每个身份只能创建一次
func (s *GameService) Create(ctx context.Context, owner address.Address, committedNumber uint64) (*model.GameRecord, error) {
	gameAddr, bump, err := s.deps.Deriver.Game(owner)
	if err != nil {
		return nil, fmt.Errorf("派生游戏地址失败: %w", err)
	}

	game := &model.GameRecord{
		Address:         gameAddr.String(),
		Owner:           owner.String(),
		CommittedNumber: committedNumber,
		Settled:         false,
		Bump:            bump,
	}

	err = s.deps.DB.Transaction(func(tx *gorm.DB) error {
		if err := s.gameRepo.Create(ctx, tx, game); err != nil {
			if errors.Is(err, repository.ErrGameExists) {
				return ErrAlreadyExists
			}
			return fmt.Errorf("创建游戏记录失败: %w", err)
		}
		return enqueueEvent(ctx, tx, s.outboxRepo, s.deps.eventTopic(), game.Address, EventGameCreated, GameEventData{
			Address: game.Address,
			Owner:   game.Owner,
		})
	})
	if err != nil {
		s.deps.Metrics.ObserveError("create", Reason(err))
		return nil, err
	}

	s.log.Info("游戏记录已创建", zap.String("address", game.Address), zap.String("owner", game.Owner))
	return game, nil
}

func (s *GameService) Get(ctx context.Context, gameAddr address.Address) (*model.GameRecord, error) {
	game, err := s.gameRepo.GetByAddress(ctx, nil, gameAddr.String())
	if err != nil {
		if errors.Is(err, repository.ErrGameNotFound) {
			return nil, ErrNotInitialized
		}
		return nil, err
	}
	return game, nil
}

func (s *GameService) GetByOwner(ctx context.Context, owner address.Address) (*model.GameRecord, error) {
	gameAddr, _, err := s.deps.Deriver.Game(owner)
	if err != nil {
		return nil, fmt.Errorf("派生游戏地址失败: %w", err)
	}
	return s.Get(ctx, gameAddr)
}

func (s *GameService) State(game *model.GameRecord) model.GameState {
	return game.State()
}
