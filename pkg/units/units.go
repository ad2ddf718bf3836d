// Package units 在 lamports 和 SOL 之间换算，1 SOL = 10^9 lamports
package units

import (
	"errors"
	"math/big"

	"github.com/shopspring/decimal"
)

const (
	Decimals       = 9
	LamportsPerSOL = 1_000_000_000
)

var (
	ErrInvalidAmount = errors.New("金额格式错误")
	ErrNegative      = errors.New("金额不能为负数")
	ErrTooPrecise    = errors.New("金额精度超过9位小数")
	ErrOutOfRange    = errors.New("金额超出范围")
)

// ToSOL 把 lamports 格式化为 SOL 字符串，去掉末尾的0，例如 1500000000 -> "1.5"
func ToSOL(lamports uint64) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), -Decimals).String()
}

// ParseSOL 把 SOL 字符串换算成 lamports
func ParseSOL(s string) (uint64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if d.Sign() < 0 {
		return 0, ErrNegative
	}
	lamports := d.Shift(Decimals)
	if !lamports.Equal(lamports.Truncate(0)) {
		return 0, ErrTooPrecise
	}
	n := lamports.BigInt()
	if !n.IsUint64() {
		return 0, ErrOutOfRange
	}
	return n.Uint64(), nil
}
