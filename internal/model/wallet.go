package model

import (
	"time"
)

// Wallet 真实资金槽位
// 玩家钱包由私钥持有人签名后才能扣款；托管钱包（庄家金库）没有私钥，只能由程序扣款
type Wallet struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"-"`
	Address   string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"address"`
	Balance   uint64    `gorm:"not null;default:0" json:"balance"`
	Custodial bool      `gorm:"not null;default:false" json:"custodial"`
	Version   int       `gorm:"not null;default:0" json:"version"` // 乐观锁版本号
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Wallet) TableName() string {
	return "wallet"
}
