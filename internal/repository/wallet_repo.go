package repository

import (
	"context"
	"errors"

	"guessescrow/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrWalletNotFound   = errors.New("钱包不存在")
	ErrBalanceNotEnough = errors.New("余额不足")
	ErrBalanceOverflow  = errors.New("余额超出上限")
)

type WalletRepository struct {
	db *gorm.DB
}

func NewWalletRepository(db *gorm.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

func (r *WalletRepository) GetByAddress(ctx context.Context, tx *gorm.DB, address string) (*model.Wallet, error) {
	var wallet model.Wallet
	err := conn(tx, r.db).WithContext(ctx).Where("address = ?", address).First(&wallet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return &wallet, nil
}

func (r *WalletRepository) GetByAddressForUpdate(ctx context.Context, tx *gorm.DB, address string) (*model.Wallet, error) {
	var wallet model.Wallet
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("address = ?", address).
		First(&wallet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return &wallet, nil
}

// GetOrCreateForUpdate 钱包不存在时创建一个零余额钱包，然后加行锁读取
func (r *WalletRepository) GetOrCreateForUpdate(ctx context.Context, tx *gorm.DB, address string, custodial bool) (*model.Wallet, error) {
	newWallet := &model.Wallet{
		Address:   address,
		Balance:   0,
		Custodial: custodial,
	}
	err := tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "address"}},
			DoNothing: true,
		}).
		Create(newWallet).Error
	if err != nil {
		return nil, err
	}
	return r.GetByAddressForUpdate(ctx, tx, address)
}

// Deduct 扣减余额，余额不足或版本号不一致都不会更新
func (r *WalletRepository) Deduct(ctx context.Context, tx *gorm.DB, wallet *model.Wallet, amount uint64) error {
	result := tx.WithContext(ctx).
		Model(&model.Wallet{}).
		Where("address = ? AND balance >= ? AND version = ?", wallet.Address, amount, wallet.Version).
		Updates(map[string]interface{}{
			"balance": gorm.Expr("balance - ?", amount),
			"version": gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		current, err := r.GetByAddress(ctx, tx, wallet.Address)
		if err != nil {
			return err
		}
		if current.Balance < amount {
			return ErrBalanceNotEnough
		}
		return ErrOptimisticLock
	}

	wallet.Balance -= amount
	wallet.Version++
	return nil
}

// Increase 增加余额，结果不能超过 model.MaxAmount
func (r *WalletRepository) Increase(ctx context.Context, tx *gorm.DB, wallet *model.Wallet, amount uint64) error {
	if _, ok := model.AddAmount(wallet.Balance, amount); !ok {
		return ErrBalanceOverflow
	}

	result := tx.WithContext(ctx).
		Model(&model.Wallet{}).
		Where("address = ? AND version = ?", wallet.Address, wallet.Version).
		Updates(map[string]interface{}{
			"balance": gorm.Expr("balance + ?", amount),
			"version": gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrOptimisticLock
	}

	wallet.Balance += amount
	wallet.Version++
	return nil
}
