package auth

import (
	"crypto/ed25519"
	"errors"
	"strings"

	"guessescrow/internal/address"

	"github.com/mr-tron/base58"
)

// 操作名，参与签名消息
const (
	OpOpenHouse     = "open"
	OpFundHouse     = "fund"
	OpWithdrawHouse = "withdraw"
	OpCreateGame    = "create"
	OpPlay          = "play"
)

var (
	ErrMissingSignature = errors.New("缺少签名")
	ErrInvalidSignature = errors.New("签名校验失败")
	ErrNotSigningKey    = errors.New("该地址不是可签名的公钥")
)

// Message 构造签名消息：op|program|identity|request_id|fields...
//
// 字段用 '|' 分隔，客户端必须按相同顺序拼接
func Message(op string, program, identity address.Address, requestID string, fields ...string) []byte {
	parts := make([]string, 0, 4+len(fields))
	parts = append(parts, op, program.String(), identity.String(), requestID)
	parts = append(parts, fields...)
	return []byte(strings.Join(parts, "|"))
}

// Sign 用私钥签名，返回 base58 编码的签名
func Sign(priv ed25519.PrivateKey, msg []byte) string {
	return base58.Encode(ed25519.Sign(priv, msg))
}

// Verify 校验 identity 对 msg 的签名
//
// 程序派生地址不在曲线上，永远不可能通过校验
func Verify(identity address.Address, msg []byte, signature string) error {
	if signature == "" {
		return ErrMissingSignature
	}
	if !identity.IsOnCurve() {
		return ErrNotSigningKey
	}
	sig, err := base58.Decode(signature)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return ErrInvalidSignature
	}
	if !ed25519.Verify(ed25519.PublicKey(identity[:]), msg, sig) {
		return ErrInvalidSignature
	}
	return nil
}

// Identity 取私钥对应的身份
func Identity(priv ed25519.PrivateKey) address.Address {
	var id address.Address
	copy(id[:], priv.Public().(ed25519.PublicKey))
	return id
}
