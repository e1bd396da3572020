package controllers

import (
	"time"

	"github.com/codelieche/analytics/pkg/core"
	"github.com/codelieche/analytics/pkg/utils/controllers"
	"github.com/codelieche/analytics/pkg/utils/filters"
	"github.com/codelieche/analytics/pkg/utils/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type HealthController struct {
	controllers.BaseController
	etlService core.ETLService             // ETL运行日志
	jobService core.ReportSchedulerService // 报表任务
}

// NewHealthController 创建HealthController实例
func NewHealthController(etlService core.ETLService, jobService core.ReportSchedulerService) *HealthController {
	return &HealthController{
		etlService: etlService,
		jobService: jobService,
	}
}

// Health 健康检查接口
// 数据库或Redis异常时status为degraded
func (hc *HealthController) Health(c *gin.Context) {
	ctx := c.Request.Context()

	// 检查数据库连接
	dbStatus := "ok"
	dbCheckTime := time.Now()
	db, err := core.GetDB()
	if err != nil {
		dbStatus = "error"
		logger.Error("数据库连接失败", zap.Error(err))
	} else if sqlDB, err := db.DB(); err != nil {
		dbStatus = "error"
		logger.Error("获取SQL DB失败", zap.Error(err))
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "error"
		logger.Error("数据库Ping失败", zap.Error(err))
	}
	dbCheckDuration := time.Since(dbCheckTime)

	// 检查Redis连接
	redisStatus := "ok"
	redisCheckTime := time.Now()
	redisClient, err := core.GetRedis()
	if err != nil {
		redisStatus = "error"
		logger.Error("Redis连接失败", zap.Error(err))
	} else if _, err := redisClient.Ping(ctx).Result(); err != nil {
		redisStatus = "error"
		logger.Error("Redis Ping失败", zap.Error(err))
	}
	redisCheckDuration := time.Since(redisCheckTime)

	metrics := gin.H{}

	// 最近一次ETL
	if hc.etlService != nil && dbStatus == "ok" {
		logs, err := hc.etlService.ListLogs(ctx, 0, 1, &filters.Ordering{Fields: []string{"id"}, Value: "-id"})
		if err != nil {
			logger.Error("获取最近一次ETL失败", zap.Error(err))
		} else if len(logs) > 0 {
			metrics["last_etl"] = gin.H{
				"id":         logs[0].ID,
				"status":     logs[0].Status,
				"start_time": logs[0].StartTime.Format(time.RFC3339),
			}
		}
	}

	// 正在执行的报表任务
	if hc.jobService != nil && dbStatus == "ok" {
		count, err := hc.jobService.Count(ctx, &filters.FilterOption{
			Column: "running",
			Value:  true,
			Op:     filters.FILTER_EQ,
		})
		if err != nil {
			logger.Error("获取执行中的报表任务数量失败", zap.Error(err))
		} else {
			metrics["running_report_jobs"] = count
		}
	}

	response := gin.H{
		"status": "ok",
		"services": gin.H{
			"database": gin.H{
				"status":    dbStatus,
				"latency":   dbCheckDuration.String(),
				"timestamp": dbCheckTime.Format(time.RFC3339),
			},
			"redis": gin.H{
				"status":    redisStatus,
				"latency":   redisCheckDuration.String(),
				"timestamp": redisCheckTime.Format(time.RFC3339),
			},
		},
		"metrics":   metrics,
		"timestamp": time.Now().Format(time.RFC3339),
	}

	if dbStatus != "ok" || redisStatus != "ok" {
		response["status"] = "degraded"
	}

	hc.HandleOK(c, response)
}
