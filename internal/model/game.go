package model

import (
	"time"
)

type GameState string

const (
	GameStateOpen    GameState = "OPEN"
	GameStateSettled GameState = "SETTLED"
)

// 只允许 OPEN -> SETTLED，SETTLED 是终态
var ValidGameTransitions = map[GameState][]GameState{
	GameStateOpen: {GameStateSettled},
}

func CanTransitionTo(currentState, targetState GameState) bool {
	allowedStates, exists := ValidGameTransitions[currentState]
	if !exists {
		return false
	}
	for _, s := range allowedStates {
		if s == targetState {
			return true
		}
	}
	return false
}

// GameRecord 玩家游戏记录，地址由 owner 派生，每个身份只有一条
type GameRecord struct {
	ID              int64      `gorm:"primaryKey;autoIncrement" json:"-"`
	Address         string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"address"`
	Owner           string     `gorm:"type:varchar(64);index;not null" json:"owner"`
	CommittedNumber uint64     `gorm:"not null" json:"-"` // 猜中之前不对外暴露
	Settled         bool       `gorm:"not null;default:false;index" json:"settled"`
	Bump            uint8      `gorm:"not null" json:"bump"`
	SettledAt       *time.Time `json:"settled_at"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (GameRecord) TableName() string {
	return "game_record"
}

func (g *GameRecord) State() GameState {
	if g.Settled {
		return GameStateSettled
	}
	return GameStateOpen
}
