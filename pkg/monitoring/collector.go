// Package monitoring 业务指标收集器
//
// 定期收集报表任务数量、数据仓库行数等业务指标
package monitoring

import (
	"context"
	"time"

	"github.com/codelieche/analytics/pkg/core"
	"github.com/codelieche/analytics/pkg/utils/filters"
	"github.com/codelieche/analytics/pkg/utils/logger"
	"go.uber.org/zap"
)

// BusinessMetricsCollector 业务指标收集器
type BusinessMetricsCollector struct {
	jobStore  core.ScheduledJobStore
	factStore core.TicketFactStore
	dateStore core.DateDimensionStore
	interval  time.Duration
	stopChan  chan struct{}
}

// NewBusinessMetricsCollector 创建业务指标收集器
func NewBusinessMetricsCollector(jobStore core.ScheduledJobStore, factStore core.TicketFactStore, dateStore core.DateDimensionStore, interval time.Duration) *BusinessMetricsCollector {
	return &BusinessMetricsCollector{
		jobStore:  jobStore,
		factStore: factStore,
		dateStore: dateStore,
		interval:  interval,
		stopChan:  make(chan struct{}),
	}
}

// Start 启动指标收集
func (bmc *BusinessMetricsCollector) Start(ctx context.Context) {
	logger.Info("启动业务指标收集器", zap.Duration("interval", bmc.interval))

	ticker := time.NewTicker(bmc.interval)
	defer ticker.Stop()

	// 立即收集一次指标
	bmc.collectMetrics(ctx)

	for {
		select {
		case <-ctx.Done():
			logger.Info("业务指标收集器已停止")
			return
		case <-bmc.stopChan:
			logger.Info("业务指标收集器收到停止信号")
			return
		case <-ticker.C:
			bmc.collectMetrics(ctx)
		}
	}
}

// Stop 停止指标收集
func (bmc *BusinessMetricsCollector) Stop() {
	close(bmc.stopChan)
}

// collectMetrics 收集业务指标
func (bmc *BusinessMetricsCollector) collectMetrics(ctx context.Context) {
	logger.Debug("开始收集业务指标")

	bmc.collectJobMetrics(ctx)
	bmc.collectWarehouseMetrics(ctx)

	logger.Debug("业务指标收集完成")
}

// collectJobMetrics 报表任务数量
func (bmc *BusinessMetricsCollector) collectJobMetrics(ctx context.Context) {
	totalCount, err := bmc.jobStore.Count(ctx)
	if err != nil {
		logger.Error("获取报表任务总数失败", zap.Error(err))
	} else {
		GlobalMetrics.ReportJobsTotal.Set(float64(totalCount))
	}

	activeFilter := &filters.FilterOption{
		Column: "active",
		Value:  true,
		Op:     filters.FILTER_EQ,
	}
	activeCount, err := bmc.jobStore.Count(ctx, activeFilter)
	if err != nil {
		logger.Error("获取启用的报表任务数量失败", zap.Error(err))
	} else {
		GlobalMetrics.ReportJobsActive.Set(float64(activeCount))
	}
}

// collectWarehouseMetrics 数据仓库行数
func (bmc *BusinessMetricsCollector) collectWarehouseMetrics(ctx context.Context) {
	if count, err := bmc.factStore.Count(ctx); err != nil {
		logger.Error("获取工单事实行数失败", zap.Error(err))
	} else {
		GlobalMetrics.TicketFactsTotal.Set(float64(count))
	}

	if count, err := bmc.dateStore.Count(ctx); err != nil {
		logger.Error("获取日期维度行数失败", zap.Error(err))
	} else {
		GlobalMetrics.DateDimensionRows.Set(float64(count))
	}
}

// DatabaseMetricsCollector 数据库指标收集器
type DatabaseMetricsCollector struct {
	interval time.Duration
	stopChan chan struct{}
}

// NewDatabaseMetricsCollector 创建数据库指标收集器
func NewDatabaseMetricsCollector(interval time.Duration) *DatabaseMetricsCollector {
	return &DatabaseMetricsCollector{
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start 启动数据库指标收集
func (dmc *DatabaseMetricsCollector) Start(ctx context.Context) {
	logger.Info("启动数据库指标收集器", zap.Duration("interval", dmc.interval))

	ticker := time.NewTicker(dmc.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("数据库指标收集器已停止")
			return
		case <-dmc.stopChan:
			logger.Info("数据库指标收集器收到停止信号")
			return
		case <-ticker.C:
			dmc.collectDatabaseMetrics()
		}
	}
}

// Stop 停止数据库指标收集
func (dmc *DatabaseMetricsCollector) Stop() {
	close(dmc.stopChan)
}

// collectDatabaseMetrics 收集数据库连接池指标
func (dmc *DatabaseMetricsCollector) collectDatabaseMetrics() {
	db, err := core.GetDB()
	if err != nil {
		logger.Error("获取数据库连接失败", zap.Error(err))
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Error("获取SQL DB失败", zap.Error(err))
		return
	}

	stats := sqlDB.Stats()
	GlobalMetrics.DBConnections.Set(float64(stats.OpenConnections))

	logger.Debug("数据库指标收集完成",
		zap.Int("open_connections", stats.OpenConnections),
		zap.Int("in_use", stats.InUse),
		zap.Int("idle", stats.Idle))
}
