package model

import (
	"time"
)

type Outcome string

const (
	OutcomeWin  Outcome = "WIN"
	OutcomeLoss Outcome = "LOSS"
)

// Settlement 每次成功的 play 记录一条
type Settlement struct {
	ID                int64     `gorm:"primaryKey;autoIncrement" json:"-"`
	SettlementNo      string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"settlement_no"`
	RequestID         *string   `gorm:"type:varchar(64);uniqueIndex" json:"request_id,omitempty"`
	GameAddress       string    `gorm:"type:varchar(64);index;not null" json:"game_address"`
	Owner             string    `gorm:"type:varchar(64);index;not null" json:"owner"`
	Guess             uint64    `gorm:"not null" json:"guess"`
	Stake             uint64    `gorm:"not null" json:"stake"`
	Outcome           Outcome   `gorm:"type:varchar(8);not null" json:"outcome"`
	HouseBalanceAfter uint64    `gorm:"not null" json:"house_balance_after"`
	CreatedAt         time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (Settlement) TableName() string {
	return "settlement"
}
