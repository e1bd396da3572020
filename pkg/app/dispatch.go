package app

import (
	"context"
	"time"

	"github.com/codelieche/analytics/pkg/config"
	"github.com/codelieche/analytics/pkg/monitoring"
	"github.com/codelieche/analytics/pkg/utils/logger"
	"go.uber.org/zap"
)

// dispatch 启动后台服务，返回停止函数
//
// 1. 定时调度器（每日ETL、报表到期检查）
// 2. 业务指标收集器
// 3. 数据库连接池指标收集器
func dispatch(comp *components) (stop func()) {
	ctx, cancel := context.WithCancel(context.Background())

	// 业务指标收集器
	businessCollector := monitoring.NewBusinessMetricsCollector(comp.jobStore, comp.factStore, comp.dateStore, 30*time.Second)
	go businessCollector.Start(ctx)
	logger.Info("业务指标收集器已启动")

	// 数据库指标收集器
	dbCollector := monitoring.NewDatabaseMetricsCollector(60 * time.Second)
	go dbCollector.Start(ctx)
	logger.Info("数据库指标收集器已启动")

	var scheduler *Scheduler
	if config.Scheduler.Enabled {
		scheduler = NewScheduler(comp.locker, comp.etl, comp.scheduler)
		if err := scheduler.Start(); err != nil {
			logger.Error("启动定时任务调度器失败", zap.Error(err))
			scheduler = nil
		}
	} else {
		logger.Info("后台调度未开启，本实例只提供API")
	}

	return func() {
		if scheduler != nil {
			scheduler.Stop()
		}
		// 等待已投递的报表执行完
		comp.scheduler.Wait()
		businessCollector.Stop()
		dbCollector.Stop()
		cancel()
	}
}
