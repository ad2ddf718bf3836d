package codec

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"guessescrow/internal/address"
)

// ============================================================================
// 记录的持久化字节布局
// ============================================================================
//
//	House: discriminator(8) | recorded_balance u64 LE                 = 16 字节
//	Game:  discriminator(8) | committed_number u64 LE | owner(32) | settled(1) = 49 字节
//
// discriminator 是 sha256("account:<名称>") 的前 8 字节，
// 名称沿用链上程序的账户类型名 Master / Game，不能修改。
// ============================================================================

const (
	DiscriminatorSize = 8
	HouseSize         = DiscriminatorSize + 8
	GameSize          = DiscriminatorSize + 8 + address.Size + 1

	houseAccountName = "Master"
	gameAccountName  = "Game"
)

var (
	ErrShortBuffer     = errors.New("数据长度不足")
	ErrDiscriminator   = errors.New("账户类型标识不匹配")
	ErrInvalidBool     = errors.New("布尔字段取值非法")
	houseDiscriminator = discriminator(houseAccountName)
	gameDiscriminator  = discriminator(gameAccountName)
)

type House struct {
	RecordedBalance uint64
}

type Game struct {
	CommittedNumber uint64
	Owner           address.Address
	Settled         bool
}

func discriminator(name string) [DiscriminatorSize]byte {
	sum := sha256.Sum256([]byte("account:" + name))
	var d [DiscriminatorSize]byte
	copy(d[:], sum[:DiscriminatorSize])
	return d
}

func HouseDiscriminator() [DiscriminatorSize]byte { return houseDiscriminator }

func GameDiscriminator() [DiscriminatorSize]byte { return gameDiscriminator }

func EncodeHouse(h House) []byte {
	buf := make([]byte, 0, HouseSize)
	buf = append(buf, houseDiscriminator[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, h.RecordedBalance)
	return buf
}

// DecodeHouse 允许尾部有多余字节（账户空间可能大于数据本身）
func DecodeHouse(data []byte) (House, error) {
	if err := checkHeader(data, HouseSize, houseDiscriminator); err != nil {
		return House{}, err
	}
	return House{
		RecordedBalance: binary.LittleEndian.Uint64(data[DiscriminatorSize:]),
	}, nil
}

func EncodeGame(g Game) []byte {
	buf := make([]byte, 0, GameSize)
	buf = append(buf, gameDiscriminator[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, g.CommittedNumber)
	buf = append(buf, g.Owner[:]...)
	if g.Settled {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	return buf
}

func DecodeGame(data []byte) (Game, error) {
	if err := checkHeader(data, GameSize, gameDiscriminator); err != nil {
		return Game{}, err
	}
	off := DiscriminatorSize
	g := Game{CommittedNumber: binary.LittleEndian.Uint64(data[off:])}
	off += 8
	copy(g.Owner[:], data[off:off+address.Size])
	off += address.Size

	switch data[off] {
	case 0:
	case 1:
		g.Settled = true
	default:
		return Game{}, fmt.Errorf("%w: %d", ErrInvalidBool, data[off])
	}
	return g, nil
}

func checkHeader(data []byte, size int, want [DiscriminatorSize]byte) error {
	if len(data) < size {
		return fmt.Errorf("%w: 需要 %d 字节, 实际 %d", ErrShortBuffer, size, len(data))
	}
	var got [DiscriminatorSize]byte
	copy(got[:], data[:DiscriminatorSize])
	if got != want {
		return ErrDiscriminator
	}
	return nil
}
