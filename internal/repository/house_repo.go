package repository

import (
	"context"
	"errors"

	"guessescrow/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrHouseNotFound = errors.New("庄家资金池不存在")
	ErrHouseExists   = errors.New("庄家资金池已存在")
)

type HouseRepository struct {
	db *gorm.DB
}

func NewHouseRepository(db *gorm.DB) *HouseRepository {
	return &HouseRepository{db: db}
}

func (r *HouseRepository) Create(ctx context.Context, tx *gorm.DB, house *model.HouseAccount) error {
	err := conn(tx, r.db).WithContext(ctx).Create(house).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrHouseExists
	}
	return err
}

func (r *HouseRepository) GetByAddress(ctx context.Context, tx *gorm.DB, address string) (*model.HouseAccount, error) {
	var house model.HouseAccount
	err := conn(tx, r.db).WithContext(ctx).Where("address = ?", address).First(&house).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrHouseNotFound
		}
		return nil, err
	}
	return &house, nil
}

func (r *HouseRepository) GetByAddressForUpdate(ctx context.Context, tx *gorm.DB, address string) (*model.HouseAccount, error) {
	var house model.HouseAccount
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("address = ?", address).
		First(&house).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrHouseNotFound
		}
		return nil, err
	}
	return &house, nil
}

// UpdateBalance 按版本号写入新的账面余额
func (r *HouseRepository) UpdateBalance(ctx context.Context, tx *gorm.DB, house *model.HouseAccount, balance uint64) error {
	result := tx.WithContext(ctx).
		Model(&model.HouseAccount{}).
		Where("address = ? AND version = ?", house.Address, house.Version).
		Updates(map[string]interface{}{
			"recorded_balance": balance,
			"version":          gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrOptimisticLock
	}
	house.RecordedBalance = balance
	house.Version++
	return nil
}
