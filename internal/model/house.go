package model

import (
	"time"
)

// HouseAccount 庄家资金池记录（全局唯一）
//
// RecordedBalance 是账面余额，任何变动都必须和托管钱包的真实转账在同一个事务里发生
type HouseAccount struct {
	ID              int64     `gorm:"primaryKey;autoIncrement" json:"-"`
	Address         string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"address"`
	RecordedBalance uint64    `gorm:"not null;default:0" json:"recorded_balance"`
	Bump            uint8     `gorm:"not null" json:"bump"`
	Version         int       `gorm:"not null;default:0" json:"version"` // 乐观锁版本号
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (HouseAccount) TableName() string {
	return "house_account"
}
