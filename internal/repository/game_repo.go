package repository

import (
	"context"
	"errors"
	"time"

	"guessescrow/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrGameNotFound       = errors.New("游戏记录不存在")
	ErrGameExists         = errors.New("游戏记录已存在")
	ErrGameStateInvalid   = errors.New("游戏状态不合法")
	ErrGameAlreadySettled = errors.New("游戏已结算")
)

type GameRepository struct {
	db *gorm.DB
}

func NewGameRepository(db *gorm.DB) *GameRepository {
	return &GameRepository{db: db}
}

func (r *GameRepository) Create(ctx context.Context, tx *gorm.DB, game *model.GameRecord) error {
	err := conn(tx, r.db).WithContext(ctx).Create(game).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrGameExists
	}
	return err
}

func (r *GameRepository) GetByAddress(ctx context.Context, tx *gorm.DB, address string) (*model.GameRecord, error) {
	var game model.GameRecord
	err := conn(tx, r.db).WithContext(ctx).Where("address = ?", address).First(&game).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGameNotFound
		}
		return nil, err
	}
	return &game, nil
}

func (r *GameRepository) GetByAddressForUpdate(ctx context.Context, tx *gorm.DB, address string) (*model.GameRecord, error) {
	var game model.GameRecord
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("address = ?", address).
		First(&game).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGameNotFound
		}
		return nil, err
	}
	return &game, nil
}

// MarkSettled OPEN -> SETTLED，条件更新保证只会成功一次
func (r *GameRepository) MarkSettled(ctx context.Context, tx *gorm.DB, game *model.GameRecord) error {
	if !model.CanTransitionTo(game.State(), model.GameStateSettled) {
		return ErrGameStateInvalid
	}

	now := time.Now()
	result := tx.WithContext(ctx).
		Model(&model.GameRecord{}).
		Where("address = ? AND settled = ?", game.Address, false).
		Updates(map[string]interface{}{
			"settled":    true,
			"settled_at": &now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrGameAlreadySettled
	}
	game.Settled = true
	game.SettledAt = &now
	return nil
}

func (r *GameRepository) CountByState(ctx context.Context, settled bool) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&model.GameRecord{}).Where("settled = ?", settled).Count(&total).Error
	return total, err
}
