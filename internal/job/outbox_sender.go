package job

import (
	"context"
	"sync"
	"time"

	"guessescrow/internal/model"
	"guessescrow/internal/monitoring"
	"guessescrow/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MessageSender 消息投递接口，生产环境由 mq.Publisher 实现
type MessageSender interface {
	SendMessage(topic, key, value string) error
}

// OutboxSender 把 outbox 表里 PENDING 的消息投递到 Kafka
//
// 投递成功后才标记 SENT，所以消费方可能收到重复消息，需要按 event_id 去重
type OutboxSender struct {
	outboxRepo    *repository.OutboxRepository
	sender        MessageSender
	metrics       *monitoring.Metrics
	log           *zap.Logger
	stopCh        chan struct{}
	stopOnce      sync.Once
	interval      time.Duration
	batchSize     int
	maxRetryCount int
}

func NewOutboxSender(db *gorm.DB, sender MessageSender, interval time.Duration, maxRetryCount int, metrics *monitoring.Metrics, log *zap.Logger) *OutboxSender {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	if maxRetryCount <= 0 {
		maxRetryCount = 5
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &OutboxSender{
		outboxRepo:    repository.NewOutboxRepository(db),
		sender:        sender,
		metrics:       metrics,
		log:           log.Named("outbox"),
		stopCh:        make(chan struct{}),
		interval:      interval,
		batchSize:     100,
		maxRetryCount: maxRetryCount,
	}
}

func (s *OutboxSender) Start(ctx context.Context) {
	s.log.Info("消息发送任务启动", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("收到停止信号，任务退出")
			return
		case <-s.stopCh:
			s.log.Info("任务停止")
			return
		case <-ticker.C:
			s.processPendingMessages(ctx)
		}
	}
}

func (s *OutboxSender) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

func (s *OutboxSender) processPendingMessages(ctx context.Context) {
	messages, err := s.outboxRepo.GetPendingMessages(ctx, s.batchSize)
	if err != nil {
		s.log.Error("查询消息失败", zap.Error(err))
		return
	}

	for _, msg := range messages {
		s.sendMessage(ctx, msg)
	}
}

func (s *OutboxSender) sendMessage(ctx context.Context, msg *model.OutboxMessage) {
	err := s.sender.SendMessage(msg.Topic, msg.MessageKey, msg.Payload)
	s.metrics.ObserveOutbox(err)

	if err == nil {
		if updateErr := s.outboxRepo.MarkAsSent(ctx, msg.ID); updateErr != nil {
			s.log.Error("更新消息状态失败", zap.Int64("id", msg.ID), zap.Error(updateErr))
		} else {
			s.log.Debug("消息发送成功", zap.Int64("id", msg.ID), zap.String("type", msg.EventType), zap.String("key", msg.MessageKey))
		}
		return
	}

	s.log.Warn("消息发送失败", zap.Int64("id", msg.ID), zap.String("event_id", msg.EventID), zap.Error(err))

	if updateErr := s.outboxRepo.RecordFailure(ctx, msg, err, s.maxRetryCount); updateErr != nil {
		s.log.Error("记录投递失败次数失败", zap.Int64("id", msg.ID), zap.Error(updateErr))
		return
	}
	if msg.RetryCount+1 >= s.maxRetryCount {
		s.log.Warn("消息超过最大重试次数，标记为失败", zap.Int64("id", msg.ID), zap.String("event_id", msg.EventID))
	}
}
