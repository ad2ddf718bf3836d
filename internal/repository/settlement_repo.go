package repository

import (
	"context"
	"errors"

	"guessescrow/internal/model"

	"gorm.io/gorm"
)

type SettlementRepository struct {
	db *gorm.DB
}

func NewSettlementRepository(db *gorm.DB) *SettlementRepository {
	return &SettlementRepository{db: db}
}

func (r *SettlementRepository) Create(ctx context.Context, tx *gorm.DB, settlement *model.Settlement) error {
	return conn(tx, r.db).WithContext(ctx).Create(settlement).Error
}

// GetByRequestID 不存在时返回 nil, nil
func (r *SettlementRepository) GetByRequestID(ctx context.Context, tx *gorm.DB, requestID string) (*model.Settlement, error) {
	var settlement model.Settlement
	err := conn(tx, r.db).WithContext(ctx).Where("request_id = ?", requestID).First(&settlement).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &settlement, nil
}

func (r *SettlementRepository) ListByOwner(ctx context.Context, owner string, pageNo, pageSize int) ([]*model.Settlement, int64, error) {
	var settlements []*model.Settlement
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Settlement{}).Where("owner = ?", owner)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset, limit := page(pageNo, pageSize)
	err := query.
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&settlements).Error

	return settlements, total, err
}
