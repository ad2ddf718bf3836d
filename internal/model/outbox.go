package model

import (
	"time"
)

const (
	OutboxStatusPending = "PENDING"
	OutboxStatusSent    = "SENT"
	OutboxStatusFailed  = "FAILED"
)

// OutboxMessage 待投递的领域事件
//
// 和资金变动写在同一个事务里，事务回滚时事件也不会出现。
// MessageKey 取记录地址，同一条记录的事件按写入顺序投递到同一分区
type OutboxMessage struct {
	ID         int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	EventID    string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"event_id"`
	EventType  string     `gorm:"type:varchar(32);index;not null" json:"event_type"`
	MessageKey string     `gorm:"type:varchar(64);not null" json:"message_key"`
	Topic      string     `gorm:"type:varchar(64);not null" json:"topic"`
	Payload    string     `gorm:"type:text;not null" json:"payload"`
	Status     string     `gorm:"type:varchar(20);index;not null;default:PENDING" json:"status"`
	RetryCount int        `gorm:"not null;default:0" json:"retry_count"`
	LastError  string     `gorm:"type:varchar(512)" json:"last_error,omitempty"`
	SentAt     *time.Time `json:"sent_at,omitempty"`
	CreatedAt  time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (OutboxMessage) TableName() string {
	return "outbox_message"
}
