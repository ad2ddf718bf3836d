package model

import (
	"time"
)

// ============================================================================
// 流水类型常量
// ============================================================================

const (
	EntryTypeAirdrop       = "AIRDROP"        // 测试水龙头入账
	EntryTypeHouseOpen     = "HOUSE_OPEN"     // 开设资金池
	EntryTypeHouseFund     = "HOUSE_FUND"     // 追加资金池
	EntryTypeHouseWithdraw = "HOUSE_WITHDRAW" // 资金池提现
	EntryTypeStakeLost     = "STAKE_LOST"     // 猜错，押注转入资金池
	EntryTypeWinPayout     = "WIN_PAYOUT"     // 猜中，资金池派奖
)

// LedgerEntry 钱包流水表
//
// 【重要】只追加，不修改，不删除。
// 每一笔转账写两条：付款方一条负数，收款方一条正数
type LedgerEntry struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	EntryNo       string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"entry_no"`
	Address       string    `gorm:"type:varchar(64);index;not null" json:"address"`
	Counterparty  string    `gorm:"type:varchar(64)" json:"counterparty"`
	RequestID     string    `gorm:"type:varchar(64);index" json:"request_id"`
	Amount        int64     `gorm:"not null" json:"amount"` // 正数入账，负数出账
	Type          string    `gorm:"type:varchar(20);index;not null" json:"type"`
	BalanceBefore uint64    `gorm:"not null" json:"balance_before"`
	BalanceAfter  uint64    `gorm:"not null" json:"balance_after"`
	Remark        string    `gorm:"type:varchar(256)" json:"remark"`
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (LedgerEntry) TableName() string {
	return "ledger_entry"
}
