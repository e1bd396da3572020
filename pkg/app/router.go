package app

import (
	"net/http"

	"github.com/codelieche/analytics/pkg/config"
	"github.com/codelieche/analytics/pkg/controllers"
	"github.com/codelieche/analytics/pkg/middleware"
	"github.com/gin-gonic/gin"
)

// initRouter 初始化所有API路由
//
//   - ETL (/api/v1/etl/)
//   - 数据仓库维护 (/api/v1/warehouse/)
//   - 指标查询 (/api/v1/analytics/)
//   - 预测 (/api/v1/forecast/)
//   - 定时报表 (/api/v1/report/jobs/)
//   - 健康检查 (/api/v1/health/)
func initRouter(app *gin.Engine, comp *components) {
	// 根路径 - 系统状态检查
	app.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "工单分析数据仓库 API Server 运行正常",
			"system":  config.SystemCode,
			"status":  "running",
		})
	})

	// 监控指标直接注册到app根路由，不经过apis路由组
	metricsController := controllers.NewMetricsController()
	app.GET("/metrics", metricsController.Metrics)

	apis := app.Group("/api/v1")
	apis.Use(middleware.PrometheusMiddleware())
	apis.Use(middleware.RequestLogMiddleware())

	// ========== ETL ==========
	etlController := controllers.NewETLController(comp.etl, comp.locker)
	etlRoutes := apis.Group("/etl")
	{
		etlRoutes.POST("/run/", etlController.Run)         // 手动执行/回填
		etlRoutes.GET("/logs/", etlController.ListLogs)    // 运行日志列表
		etlRoutes.GET("/logs/:id/", etlController.FindLog) // 运行日志详情
	}

	// ========== 数据仓库维护 ==========
	warehouseController := controllers.NewWarehouseController(comp.dateStore, config.ETL.Location())
	warehouseRoutes := apis.Group("/warehouse")
	{
		warehouseRoutes.POST("/holiday/", warehouseController.MarkHoliday) // 标记节假日
	}

	// ========== 指标查询和预测 ==========
	analyticsController := controllers.NewAnalyticsController(comp.analytics, comp.forecast, config.ETL.Location())
	analyticsRoutes := apis.Group("/analytics")
	{
		analyticsRoutes.GET("/kpi/", analyticsController.KPI)             // 关键指标汇总
		analyticsRoutes.GET("/breakdown/", analyticsController.Breakdown) // 按维度拆分
	}
	apis.POST("/forecast/", analyticsController.Forecast)

	// ========== 定时报表 ==========
	reportJobController := controllers.NewReportJobController(comp.scheduler)
	reportRoutes := apis.Group("/report/jobs")
	{
		reportRoutes.POST("/", reportJobController.Create)            // 创建任务
		reportRoutes.GET("/", reportJobController.List)               // 任务列表
		reportRoutes.GET("/:id/", reportJobController.Find)           // 任务详情
		reportRoutes.PUT("/:id/", reportJobController.Update)         // 更新任务
		reportRoutes.DELETE("/:id/", reportJobController.Delete)      // 删除任务
		reportRoutes.POST("/:id/cancel/", reportJobController.Cancel) // 取消任务
		reportRoutes.POST("/:id/run/", reportJobController.Run)       // 立即执行
		reportRoutes.GET("/:id/runs/", reportJobController.Runs)      // 执行记录
	}

	// ========== 健康检查 ==========
	healthController := controllers.NewHealthController(comp.etl, comp.scheduler)
	apis.GET("/health/", healthController.Health)
}
