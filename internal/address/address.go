package address

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// ============================================================================
// 地址与身份
// ============================================================================
//
// 身份（玩家公钥）与记录地址都是 32 字节，文本形式为 base58。
//
// 记录地址由程序派生（PDA）：
//
//	sha256(seed_1 || ... || seed_n || bump || program_id || "ProgramDerivedAddress")
//
// bump 从 255 开始递减，直到哈希结果不是一个合法的 ed25519 点为止。
// 这样派生出来的地址没有对应的私钥，只能由程序本身操作。
//
// 【注意】派生规则必须与已有的持久化记录完全一致，不能随意修改种子。
// ============================================================================

const (
	Size       = 32
	MaxSeeds   = 16
	MaxSeedLen = 32

	pdaMarker = "ProgramDerivedAddress"
)

var (
	ErrInvalidAddress   = errors.New("地址格式错误")
	ErrMaxSeedLength    = errors.New("种子数量或长度超过限制")
	ErrInvalidSeeds     = errors.New("派生地址落在曲线上")
	ErrNoViableBumpSeed = errors.New("找不到可用的 bump")
	ErrEmptyProgramID   = errors.New("程序ID不能为空")
)

// 种子常量
var (
	HouseSeed = []byte("master")
	GameSeed  = []byte("game")
)

// Address 32 字节地址（也用作玩家身份）
type Address [Size]byte

// Parse 解析 base58 文本
func Parse(s string) (Address, error) {
	var a Address
	if s == "" {
		return a, ErrInvalidAddress
	}
	raw, err := base58.Decode(s)
	if err != nil {
		return a, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return FromBytes(raw)
}

// MustParse 仅用于常量和测试
func MustParse(s string) Address {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

func FromBytes(b []byte) (Address, error) {
	var a Address
	if len(b) != Size {
		return a, fmt.Errorf("%w: 长度 %d", ErrInvalidAddress, len(b))
	}
	copy(a[:], b)
	return a, nil
}

func (a Address) String() string {
	return base58.Encode(a[:])
}

func (a Address) Bytes() []byte {
	return a[:]
}

func (a Address) IsZero() bool {
	return a == Address{}
}

// IsOnCurve 判断地址是否是合法的 ed25519 公钥点
func (a Address) IsOnCurve() bool {
	_, err := new(edwards25519.Point).SetBytes(a[:])
	return err == nil
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// CreateProgramAddress 按给定种子（已包含 bump）计算程序派生地址
func CreateProgramAddress(seeds [][]byte, program Address) (Address, error) {
	if len(seeds) > MaxSeeds {
		return Address{}, ErrMaxSeedLength
	}
	h := sha256.New()
	for _, seed := range seeds {
		if len(seed) > MaxSeedLen {
			return Address{}, ErrMaxSeedLength
		}
		h.Write(seed)
	}
	h.Write(program[:])
	h.Write([]byte(pdaMarker))

	var derived Address
	copy(derived[:], h.Sum(nil))
	if derived.IsOnCurve() {
		return Address{}, ErrInvalidSeeds
	}
	return derived, nil
}

// FindProgramAddress 从 bump=255 开始向下搜索第一个不在曲线上的派生地址
func FindProgramAddress(seeds [][]byte, program Address) (Address, uint8, error) {
	if len(seeds) >= MaxSeeds {
		return Address{}, 0, ErrMaxSeedLength
	}
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)

	for bump := 255; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{byte(bump)}
		derived, err := CreateProgramAddress(withBump, program)
		if err == nil {
			return derived, uint8(bump), nil
		}
		if !errors.Is(err, ErrInvalidSeeds) {
			return Address{}, 0, err
		}
	}
	return Address{}, 0, ErrNoViableBumpSeed
}

// Deriver 绑定程序ID，负责派生庄家记录和游戏记录地址
type Deriver struct {
	program   Address
	house     Address
	houseBump uint8
}

func NewDeriver(program Address) (*Deriver, error) {
	if program.IsZero() {
		return nil, ErrEmptyProgramID
	}
	house, bump, err := FindProgramAddress([][]byte{HouseSeed}, program)
	if err != nil {
		return nil, fmt.Errorf("派生庄家地址失败: %w", err)
	}
	return &Deriver{program: program, house: house, houseBump: bump}, nil
}

func (d *Deriver) Program() Address {
	return d.program
}

// House 庄家记录地址，同时也是资金托管钱包的地址
func (d *Deriver) House() Address {
	return d.house
}

func (d *Deriver) HouseBump() uint8 {
	return d.houseBump
}

// Game 玩家游戏记录地址：seeds = ["game", owner]
func (d *Deriver) Game(owner Address) (Address, uint8, error) {
	return FindProgramAddress([][]byte{GameSeed, owner[:]}, d.program)
}
