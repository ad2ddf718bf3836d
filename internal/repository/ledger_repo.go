package repository

import (
	"context"

	"guessescrow/internal/model"

	"gorm.io/gorm"
)

type LedgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func (r *LedgerRepository) Create(ctx context.Context, tx *gorm.DB, entries ...*model.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return conn(tx, r.db).WithContext(ctx).Create(entries).Error
}

func (r *LedgerRepository) ListByAddress(ctx context.Context, address string, pageNo, pageSize int) ([]*model.LedgerEntry, int64, error) {
	var entries []*model.LedgerEntry
	var total int64

	query := r.db.WithContext(ctx).Model(&model.LedgerEntry{}).Where("address = ?", address)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset, limit := page(pageNo, pageSize)
	err := query.
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&entries).Error

	return entries, total, err
}

// ExistsByRequestID 同一个请求号、同一种流水类型只能出现一次
func (r *LedgerRepository) ExistsByRequestID(ctx context.Context, tx *gorm.DB, address, requestID, entryType string) (bool, error) {
	var count int64
	err := conn(tx, r.db).WithContext(ctx).
		Model(&model.LedgerEntry{}).
		Where("address = ? AND request_id = ? AND type = ?", address, requestID, entryType).
		Count(&count).Error
	return count > 0, err
}

// SumByAddress 某个地址所有流水的净额，用于对账
func (r *LedgerRepository) SumByAddress(ctx context.Context, address string) (int64, error) {
	var sum int64
	err := r.db.WithContext(ctx).
		Model(&model.LedgerEntry{}).
		Where("address = ?", address).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&sum).Error
	return sum, err
}
