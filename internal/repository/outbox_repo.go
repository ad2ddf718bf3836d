package repository

import (
	"context"
	"time"

	"guessescrow/internal/model"

	"gorm.io/gorm"
)

const maxErrorLen = 512

type OutboxRepository struct {
	db *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// Create 必须传入业务事务，事件和资金变动一起提交
func (r *OutboxRepository) Create(ctx context.Context, tx *gorm.DB, msg *model.OutboxMessage) error {
	return conn(tx, r.db).WithContext(ctx).Create(msg).Error
}

// GetPendingMessages 按写入顺序取待投递的消息
func (r *OutboxRepository) GetPendingMessages(ctx context.Context, limit int) ([]*model.OutboxMessage, error) {
	return r.ListByStatus(ctx, model.OutboxStatusPending, limit)
}

func (r *OutboxRepository) ListByStatus(ctx context.Context, status string, limit int) ([]*model.OutboxMessage, error) {
	var messages []*model.OutboxMessage
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("id ASC").
		Limit(limit).
		Find(&messages).Error
	return messages, err
}

func (r *OutboxRepository) CountByEventType(ctx context.Context, eventType string) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&model.OutboxMessage{}).
		Where("event_type = ?", eventType).
		Count(&total).Error
	return total, err
}

// MarkAsSent 只更新仍处于 PENDING 的消息
func (r *OutboxRepository) MarkAsSent(ctx context.Context, id int64) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&model.OutboxMessage{}).
		Where("id = ? AND status = ?", id, model.OutboxStatusPending).
		Updates(map[string]interface{}{
			"status":  model.OutboxStatusSent,
			"sent_at": &now,
		}).Error
}

// RecordFailure 重试次数加一并记下最后一次错误，达到上限时标记为 FAILED
func (r *OutboxRepository) RecordFailure(ctx context.Context, msg *model.OutboxMessage, cause error, maxRetryCount int) error {
	lastErr := []rune(cause.Error())
	if len(lastErr) > maxErrorLen {
		lastErr = lastErr[:maxErrorLen]
	}
	updates := map[string]interface{}{
		"retry_count": gorm.Expr("retry_count + 1"),
		"last_error":  string(lastErr),
	}
	if msg.RetryCount+1 >= maxRetryCount {
		updates["status"] = model.OutboxStatusFailed
	}
	return r.db.WithContext(ctx).
		Model(&model.OutboxMessage{}).
		Where("id = ?", msg.ID).
		Updates(updates).Error
}
