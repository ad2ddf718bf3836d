package model

import "math"

// MaxAmount 单个余额允许的最大值
//
// 流水金额用 int64 记录正负，同时要兼容 SQLite 的有符号整数，
// 所以上限取 int64 的最大值而不是 uint64
const MaxAmount uint64 = math.MaxInt64

// AddAmount 带溢出检查的加法，超过 MaxAmount 时 ok=false
func AddAmount(a, b uint64) (sum uint64, ok bool) {
	if a > MaxAmount || b > MaxAmount-a {
		return 0, false
	}
	return a + b, true
}

// SubAmount 带下溢检查的减法
func SubAmount(a, b uint64) (diff uint64, ok bool) {
	if b > a {
		return 0, false
	}
	return a - b, true
}

// ValidAmount 金额必须大于0且不超过上限
func ValidAmount(amount uint64) bool {
	return amount > 0 && amount <= MaxAmount
}
