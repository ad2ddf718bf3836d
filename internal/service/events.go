package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"guessescrow/internal/model"
	"guessescrow/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 写入 outbox 的事件类型
const (
	EventHouseOpened    = "house.opened"
	EventHouseFunded    = "house.funded"
	EventHouseWithdrawn = "house.withdrawn"
	EventGameCreated    = "game.created"
	EventGameLost       = "game.lost"
	EventGameSettled    = "game.settled"
)

// Event 投递到 Kafka 的消息体
type Event struct {
	EventID    string      `json:"event_id"`
	Type       string      `json:"type"`
	OccurredAt time.Time   `json:"occurred_at"`
	Data       interface{} `json:"data"`
}

type HouseEventData struct {
	Address         string `json:"address"`
	Identity        string `json:"identity"`
	Amount          uint64 `json:"amount"`
	RecordedBalance uint64 `json:"recorded_balance"`
	RequestID       string `json:"request_id,omitempty"`
}

type GameEventData struct {
	Address string `json:"address"`
	Owner   string `json:"owner"`
}

type SettlementEventData struct {
	SettlementNo      string `json:"settlement_no"`
	GameAddress       string `json:"game_address"`
	Owner             string `json:"owner"`
	Guess             uint64 `json:"guess"`
	Stake             uint64 `json:"stake"`
	Outcome           string `json:"outcome"`
	HouseBalanceAfter uint64 `json:"house_balance_after"`
	RequestID         string `json:"request_id,omitempty"`
}

// enqueueEvent 在业务事务内写入 outbox，key 取记录地址，同一记录的事件落在同一分区
func enqueueEvent(ctx context.Context, tx *gorm.DB, repo *repository.OutboxRepository, topic, key, eventType string, data interface{}) error {
	event := Event{
		EventID:    uuid.New().String(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("序列化事件失败: %w", err)
	}

	msg := &model.OutboxMessage{
		EventID:    event.EventID,
		EventType:  eventType,
		MessageKey: key,
		Topic:      topic,
		Payload:    string(payload),
		Status:     model.OutboxStatusPending,
	}
	if err := repo.Create(ctx, tx, msg); err != nil {
		return fmt.Errorf("写入消息失败: %w", err)
	}
	return nil
}
