package job

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"guessescrow/internal/address"
	"guessescrow/internal/ledger"
	"guessescrow/internal/monitoring"
	"guessescrow/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ReconcileReport 一次对账的结果
type ReconcileReport struct {
	Initialized     bool
	RecordedBalance uint64
	VaultBalance    uint64
	JournalNet      int64 // 金库地址所有流水的净额
	Drift           int64 // VaultBalance - RecordedBalance
	OpenGames       int64
	SettledGames    int64
}

// Balanced 账面余额、金库真实余额、流水净额三者一致
func (r *ReconcileReport) Balanced() bool {
	return r.Drift == 0 && r.JournalNet == int64(r.VaultBalance)
}

// ReconcileJob 定期核对庄家账面余额和金库真实余额
type ReconcileJob struct {
	houseRepo  *repository.HouseRepository
	gameRepo   *repository.GameRepository
	ledgerRepo *repository.LedgerRepository
	ledger     *ledger.Ledger
	vault      address.Address
	metrics    *monitoring.Metrics
	log        *zap.Logger
	stopCh     chan struct{}
	stopOnce   sync.Once
	interval   time.Duration
}

func NewReconcileJob(db *gorm.DB, l *ledger.Ledger, vault address.Address, interval time.Duration, metrics *monitoring.Metrics, log *zap.Logger) *ReconcileJob {
	if interval <= 0 {
		interval = time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ReconcileJob{
		houseRepo:  repository.NewHouseRepository(db),
		gameRepo:   repository.NewGameRepository(db),
		ledgerRepo: repository.NewLedgerRepository(db),
		ledger:     l,
		vault:      vault,
		metrics:    metrics,
		log:        log.Named("reconcile"),
		stopCh:     make(chan struct{}),
		interval:   interval,
	}
}

func (j *ReconcileJob) Start(ctx context.Context) {
	j.log.Info("对账任务启动", zap.Duration("interval", j.interval))

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.log.Info("收到停止信号，任务退出")
			return
		case <-j.stopCh:
			j.log.Info("任务停止")
			return
		case <-ticker.C:
			if _, err := j.Reconcile(ctx); err != nil {
				j.log.Error("对账失败", zap.Error(err))
			}
		}
	}
}

func (j *ReconcileJob) Stop() {
	j.stopOnce.Do(func() { close(j.stopCh) })
}

// Reconcile 读取的几个值不在同一个事务里，并发结算时可能出现短暂的不一致，连续出现才需要关注
func (j *ReconcileJob) Reconcile(ctx context.Context) (*ReconcileReport, error) {
	report := &ReconcileReport{}

	house, err := j.houseRepo.GetByAddress(ctx, nil, j.vault.String())
	if err != nil {
		if errors.Is(err, repository.ErrHouseNotFound) {
			return report, nil
		}
		return nil, fmt.Errorf("查询庄家资金池失败: %w", err)
	}
	report.Initialized = true
	report.RecordedBalance = house.RecordedBalance

	if report.VaultBalance, err = j.ledger.Balance(ctx, j.vault); err != nil {
		return nil, fmt.Errorf("查询金库余额失败: %w", err)
	}
	if report.JournalNet, err = j.ledgerRepo.SumByAddress(ctx, j.vault.String()); err != nil {
		return nil, fmt.Errorf("汇总金库流水失败: %w", err)
	}
	if report.OpenGames, err = j.gameRepo.CountByState(ctx, false); err != nil {
		return nil, fmt.Errorf("统计游戏记录失败: %w", err)
	}
	if report.SettledGames, err = j.gameRepo.CountByState(ctx, true); err != nil {
		return nil, fmt.Errorf("统计游戏记录失败: %w", err)
	}

	report.Drift = int64(report.VaultBalance) - int64(report.RecordedBalance)
	j.metrics.ObserveDrift(float64(report.Drift))
	j.metrics.ObserveHouseBalance(report.RecordedBalance)

	fields := []zap.Field{
		zap.Uint64("recorded_balance", report.RecordedBalance),
		zap.Uint64("vault_balance", report.VaultBalance),
		zap.Int64("journal_net", report.JournalNet),
		zap.Int64("drift", report.Drift),
		zap.Int64("open_games", report.OpenGames),
		zap.Int64("settled_games", report.SettledGames),
	}
	if !report.Balanced() {
		j.log.Warn("账面余额与金库不一致", fields...)
	} else {
		j.log.Debug("对账完成", fields...)
	}
	return report, nil
}
