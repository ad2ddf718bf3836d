package lock

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// ============================================================================
// 记录锁
// ============================================================================
//
// 所有修改庄家记录的操作都要先拿 house 锁；play 还要再拿该游戏记录的锁。
// 加锁顺序固定为 house -> game，避免死锁。
//
// 锁只是第一道防线，事务内还会 SELECT ... FOR UPDATE 重新读取记录。
// ============================================================================

const (
	HouseLockKey      = "escrow:lock:house"
	gameLockKeyPrefix = "escrow:lock:game:"
)

func GameLockKey(gameAddress string) string {
	return gameLockKeyPrefix + gameAddress
}

// Locker 获取一把以 key 命名的互斥锁，owner 用于追踪持有者
type Locker interface {
	Acquire(ctx context.Context, key, owner string) (release func(), err error)
}

// RedisLocker 多实例部署时使用
type RedisLocker struct {
	client        *redis.Client
	ttl           time.Duration
	retryInterval time.Duration
	maxRetries    int
	log           *zap.Logger
}

func NewRedisLocker(client *redis.Client, ttl, retryInterval time.Duration, maxRetries int, log *zap.Logger) *RedisLocker {
	return &RedisLocker{
		client:        client,
		ttl:           ttl,
		retryInterval: retryInterval,
		maxRetries:    maxRetries,
		log:           log,
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, key, owner string) (func(), error) {
	dl := NewDistributedLock(l.client, key, owner, l.ttl)
	if err := dl.Lock(ctx, l.retryInterval, l.maxRetries); err != nil {
		return nil, err
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			// 业务 ctx 可能已经取消，释放锁用独立的 ctx
			releaseCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := dl.Unlock(releaseCtx); err != nil {
				l.log.Warn("释放分布式锁失败", zap.String("key", key), zap.Error(err))
			}
		})
	}, nil
}

// LocalLocker 单实例部署或测试时使用的进程内锁
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]chan struct{})}
}

func (l *LocalLocker) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	return ch
}

func (l *LocalLocker) Acquire(ctx context.Context, key, _ string) (func(), error) {
	ch := l.slot(key)
	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	var once sync.Once
	return func() {
		once.Do(func() { <-ch })
	}, nil
}
