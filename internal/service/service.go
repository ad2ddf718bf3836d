package service

import (
	"context"
	"fmt"

	"guessescrow/internal/address"
	"guessescrow/internal/codec"
	"guessescrow/internal/config"
	"guessescrow/internal/infrastructure/lock"
	"guessescrow/internal/ledger"
	"guessescrow/internal/model"
	"guessescrow/internal/monitoring"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Dependencies 各个服务共用的依赖
type Dependencies struct {
	DB      *gorm.DB
	Ledger  *ledger.Ledger
	Locker  lock.Locker
	Deriver *address.Deriver
	Config  *config.Config
	Metrics *monitoring.Metrics // 可以为 nil
	Log     *zap.Logger
}

func (d Dependencies) logger() *zap.Logger {
	if d.Log == nil {
		return zap.NewNop()
	}
	return d.Log
}

func (d Dependencies) eventTopic() string {
	return d.Config.Kafka.Topic.Events
}

// acquire 按给定顺序依次加锁，返回的函数按相反顺序释放
//
// 调用方必须保证 key 的顺序固定为 house -> game。
// 锁的持有者标识带上随机后缀，同一个请求号的并发重试不会误释放对方的锁
func (d Dependencies) acquire(ctx context.Context, requestID string, keys ...string) (func(), error) {
	owner := requestID + ":" + uuid.New().String()
	releases := make([]func(), 0, len(keys))
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}
	for _, key := range keys {
		release, err := d.Locker.Acquire(ctx, key, owner)
		if err != nil {
			releaseAll()
			return nil, fmt.Errorf("%w: %v", ErrSystemBusy, err)
		}
		releases = append(releases, release)
	}
	return releaseAll, nil
}

// EncodeHouse 按链上账户布局编码庄家记录
func EncodeHouse(h *model.HouseAccount) []byte {
	return codec.EncodeHouse(codec.House{RecordedBalance: h.RecordedBalance})
}

// EncodeGame 按链上账户布局编码游戏记录，包含 committed_number
func EncodeGame(g *model.GameRecord) ([]byte, error) {
	owner, err := address.Parse(g.Owner)
	if err != nil {
		return nil, fmt.Errorf("游戏记录 owner 非法: %w", err)
	}
	return codec.EncodeGame(codec.Game{
		CommittedNumber: g.CommittedNumber,
		Owner:           owner,
		Settled:         g.Settled,
	}), nil
}
