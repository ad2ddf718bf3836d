package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"guessescrow/internal/address"
	"guessescrow/internal/config"
	"guessescrow/internal/handler"
	"guessescrow/internal/infrastructure/cache"
	"guessescrow/internal/infrastructure/database"
	"guessescrow/internal/infrastructure/lock"
	"guessescrow/internal/infrastructure/mq"
	"guessescrow/internal/job"
	"guessescrow/internal/ledger"
	"guessescrow/internal/logger"
	"guessescrow/internal/monitoring"
	"guessescrow/internal/service"
	"guessescrow/pkg/idgen"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP 服务和后台任务",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(*configPath)
		},
	}
}

func serve(configPath string) error {
	// 加载配置
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	log, err := logger.Init(&cfg.Log)
	if err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}
	defer log.Sync()

	// 初始化 ID 生成器
	if err := idgen.Init(1); err != nil {
		return err
	}

	program, err := address.Parse(cfg.Program.ID)
	if err != nil {
		return fmt.Errorf("program.id 非法: %w", err)
	}
	deriver, err := address.NewDeriver(program)
	if err != nil {
		return err
	}

	db, err := database.Open(cfg, log)
	if err != nil {
		return err
	}

	// 未启用 Redis 时只能单实例部署
	var locker lock.Locker
	var healthChecks []handler.HealthCheck
	if cfg.Redis.Enabled {
		rdb, err := cache.InitRedis(&cfg.Redis)
		if err != nil {
			return err
		}
		defer rdb.Close()
		healthChecks = append(healthChecks, handler.HealthCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return cache.Ping(ctx, rdb) },
		})
		locker = lock.NewRedisLocker(rdb,
			time.Duration(cfg.Business.LockTTLSeconds)*time.Second,
			time.Duration(cfg.Business.LockRetryIntervalMillis)*time.Millisecond,
			cfg.Business.LockMaxRetries,
			log,
		)
	} else {
		log.Warn("未启用 Redis，使用进程内锁")
		locker = lock.NewLocalLocker()
	}

	metrics := monitoring.NewMetrics(prometheus.DefaultRegisterer)
	vaultLedger := ledger.New(db, log.Named("ledger"), deriver.House())

	deps := service.Dependencies{
		DB:      db,
		Ledger:  vaultLedger,
		Locker:  locker,
		Deriver: deriver,
		Config:  cfg,
		Metrics: metrics,
		Log:     log,
	}

	// 创建上下文（用于优雅关闭）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 启动后台任务
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := mq.NewKafkaProducer(&cfg.Kafka)
		if err != nil {
			return err
		}
		publisher := mq.NewPublisher(producer)
		defer publisher.Close()

		outboxSender := job.NewOutboxSender(db, publisher,
			time.Duration(cfg.Business.OutboxIntervalMillis)*time.Millisecond,
			cfg.Business.MaxRetryCount,
			metrics,
			log,
		)
		go outboxSender.Start(ctx)
	} else {
		log.Warn("未配置 Kafka，事件只写入 outbox 表")
	}

	reconcileJob := job.NewReconcileJob(db, vaultLedger, deriver.House(),
		time.Duration(cfg.Business.ReconcileIntervalSeconds)*time.Second,
		metrics,
		log,
	)
	go reconcileJob.Start(ctx)

	// 设置路由
	router := handler.SetupRouter(deps, prometheus.DefaultGatherer, healthChecks...)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("服务启动",
			zap.Int("port", cfg.Server.Port),
			zap.String("program", program.String()),
			zap.String("house", deriver.House().String()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		return fmt.Errorf("服务启动失败: %w", err)
	}

	log.Info("正在关闭服务...")

	// 取消上下文，停止后台任务
	cancel()

	// 关闭 HTTP 服务（等待最多5秒）
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("服务关闭异常", zap.Error(err))
	}

	log.Info("服务已关闭")
	return nil
}
