package idgen

import (
	"fmt"
	"sync"
	"time"
)

// ============================================================================
// 雪花算法 ID 生成器
// ============================================================================
//
//   0 - 41位时间戳 - 10位机器ID - 12位序列号
//
// 流水号、结算号都由它生成，保证全局唯一且趋势递增
// ============================================================================

const (
	epoch          = int64(1704067200000) // 起始时间戳（2024-01-01 00:00:00 UTC）
	workerIDBits   = 10
	sequenceBits   = 12
	maxWorkerID    = -1 ^ (-1 << workerIDBits)
	maxSequence    = -1 ^ (-1 << sequenceBits)
	workerIDShift  = sequenceBits
	timestampShift = sequenceBits + workerIDBits
)

const (
	prefixEntry      = "LED"
	prefixSettlement = "SET"
)

// Snowflake 雪花算法ID生成器
type Snowflake struct {
	mu        sync.Mutex
	timestamp int64
	workerID  int64
	sequence  int64
}

var (
	defaultGenerator = &Snowflake{workerID: 1}
	initOnce         sync.Once
)

func NewSnowflake(workerID int64) (*Snowflake, error) {
	if workerID < 0 || workerID > maxWorkerID {
		return nil, fmt.Errorf("workerID 必须在 0-%d 之间", maxWorkerID)
	}
	return &Snowflake{workerID: workerID}, nil
}

// Init 设置默认生成器的机器ID，只生效一次
func Init(workerID int64) error {
	var err error
	initOnce.Do(func() {
		var s *Snowflake
		s, err = NewSnowflake(workerID)
		if err == nil {
			defaultGenerator = s
		}
	})
	return err
}

func NextID() int64 {
	return defaultGenerator.Generate()
}

// Generate 生成ID
func (s *Snowflake) Generate() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()

	if now <= s.timestamp {
		// 同一毫秒（或时钟回拨）内序列号递增
		now = s.timestamp
		s.sequence = (s.sequence + 1) & maxSequence
		if s.sequence == 0 {
			for now <= s.timestamp {
				now = time.Now().UnixMilli()
			}
		}
	} else {
		s.sequence = 0
	}

	s.timestamp = now

	return ((now - epoch) << timestampShift) |
		(s.workerID << workerIDShift) |
		s.sequence
}

func generateNo(prefix string) string {
	return fmt.Sprintf("%s%019d", prefix, NextID())
}

// GenerateEntryNo 生成流水号，例如 LED0000123456789012345
func GenerateEntryNo() string {
	return generateNo(prefixEntry)
}

// GenerateSettlementNo 生成结算单号
func GenerateSettlementNo() string {
	return generateNo(prefixSettlement)
}
