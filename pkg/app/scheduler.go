package app

import (
	"context"
	"time"

	"github.com/codelieche/analytics/pkg/config"
	"github.com/codelieche/analytics/pkg/core"
	"github.com/codelieche/analytics/pkg/monitoring"
	"github.com/codelieche/analytics/pkg/utils/logger"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// staleRunTimeout 报表执行超过这个时间仍为running，视为进程崩溃残留
const staleRunTimeout = 2 * time.Hour

// etlRunner 定时ETL
type etlRunner interface {
	RunWithRetry(ctx context.Context, windowDays, maxRetries int, interval time.Duration) (*core.ETLRunLog, error)
}

// reportDispatcher 报表到期检查
type reportDispatcher interface {
	ResetStaleRuns(ctx context.Context, maxRuntime time.Duration) (int64, error)
	RunDue(ctx context.Context) (int, error)
}

// Scheduler 后台定时任务调度器
//
// - 每日ETL（ETL_DAILY_CRON，默认凌晨02:00）
// - 报表到期检查（SCHEDULER_DUE_CRON，默认每分钟）
//
// 多副本部署时用分布式锁保证同一时刻只有一个实例执行
type Scheduler struct {
	cron    *cron.Cron
	locker  core.Locker
	etl     etlRunner
	reports reportDispatcher
}

// NewScheduler 创建定时任务调度器实例
func NewScheduler(locker core.Locker, etl etlRunner, reports reportDispatcher) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		locker:  locker,
		etl:     etl,
		reports: reports,
	}
}

// withLock 获取锁后执行fn，锁被其它实例持有时跳过
func (s *Scheduler) withLock(lockKey string, expire time.Duration, fn func(ctx context.Context)) bool {
	ctx := context.Background()

	lock, err := s.locker.TryAcquire(ctx, lockKey, expire)
	if err != nil {
		if err == core.ErrLockAlreadyAcquired {
			monitoring.GlobalMetrics.RecordLockOperation(lockKey, "skipped")
			logger.Debug("任务已被其他实例执行，跳过", zap.String("lock_key", lockKey))
			return false
		}
		monitoring.GlobalMetrics.RecordLockOperation(lockKey, "error")
		logger.Error("获取任务锁失败", zap.String("lock_key", lockKey), zap.Error(err))
		return false
	}
	monitoring.GlobalMetrics.RecordLockOperation(lockKey, "acquired")
	stop := lock.AutoRefresh(ctx, expire, expire/3)
	defer func() {
		stop()
		if err := lock.Release(ctx); err != nil {
			logger.Warn("释放任务锁失败", zap.String("lock_key", lockKey), zap.Error(err))
		}
	}()

	fn(ctx)
	return true
}

// runDailyETL 执行每日ETL，抽取失败时按配置重试
func (s *Scheduler) runDailyETL() bool {
	return s.withLock(config.ETLLockerKey, 10*time.Minute, func(ctx context.Context) {
		logger.Info("开始执行每日ETL", zap.Int("window_days", config.ETL.WindowDays))
		startTime := time.Now()

		runLog, err := s.etl.RunWithRetry(ctx, config.ETL.WindowDays, config.ETL.MaxRetries, config.ETL.RetryInterval)
		if err != nil {
			logger.Error("每日ETL失败", zap.Error(err), zap.Duration("duration", time.Since(startTime)))
			return
		}
		logger.Info("每日ETL成功",
			zap.Uint("log_id", runLog.ID),
			zap.Int("records_processed", runLog.RecordsProcessed),
			zap.Duration("duration", time.Since(startTime)))
	})
}

// checkDueReports 清理残留的running标记，然后投递到期的报表任务
func (s *Scheduler) checkDueReports() bool {
	return s.withLock(config.ReportDispatchLockerKey, time.Minute, func(ctx context.Context) {
		if _, err := s.reports.ResetStaleRuns(ctx, staleRunTimeout); err != nil {
			return
		}
		dispatched, err := s.reports.RunDue(ctx)
		if err != nil {
			return
		}
		if dispatched > 0 {
			logger.Info("到期报表任务已投递", zap.Int("dispatched", dispatched))
		}
	})
}

// Start 注册定时任务并启动
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(config.ETL.DailyCron, func() { s.runDailyETL() }); err != nil {
		logger.Error("注册每日ETL任务失败", zap.String("spec", config.ETL.DailyCron), zap.Error(err))
		return err
	}

	if _, err := s.cron.AddFunc(config.Scheduler.DueCheckCron, func() { s.checkDueReports() }); err != nil {
		logger.Error("注册报表到期检查任务失败", zap.String("spec", config.Scheduler.DueCheckCron), zap.Error(err))
		return err
	}

	s.cron.Start()
	logger.Info("定时任务调度器已启动",
		zap.String("daily_etl", config.ETL.DailyCron),
		zap.String("report_due_check", config.Scheduler.DueCheckCron))
	return nil
}

// Stop 停止调度器，等待正在运行的定时任务完成
func (s *Scheduler) Stop() {
	logger.Info("正在停止定时任务调度器")
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info("定时任务调度器已停止")
}
