package app

import (
	"context"
	"time"

	"github.com/codelieche/analytics/pkg/config"
	"github.com/codelieche/analytics/pkg/core"
	"github.com/codelieche/analytics/pkg/services"
	"github.com/codelieche/analytics/pkg/store"
	"github.com/codelieche/analytics/pkg/utils/logger"
	"github.com/codelieche/analytics/pkg/utils/tools"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// components 进程内共享的存储和服务
// HTTP接口、后台调度、命令行都从这里取，保证同一个进程只有一套worker池和调度器
type components struct {
	db *gorm.DB

	dateStore core.DateDimensionStore
	jobStore  core.ScheduledJobStore
	factStore core.TicketFactStore

	locker    core.Locker
	etl       *services.ETLService
	analytics core.AnalyticsService
	forecast  *services.ForecastService
	scheduler *services.ReportScheduler
}

// newLocker 优先使用Redis分布式锁，Redis不可用时退化为进程内锁（单实例部署）
func newLocker() core.Locker {
	locker, err := services.NewRedisLocker()
	if err != nil {
		logger.Warn("Redis不可用，使用进程内锁，多副本部署时ETL和报表检查可能重复执行", zap.Error(err))
		return services.NewLocalLocker()
	}
	return locker
}

// newETLService 创建ETL流水线（serve和etl命令共用）
func newETLService(db *gorm.DB) *services.ETLService {
	loc := config.ETL.Location()
	loader := services.NewFactLoader(
		store.NewUnitOfWork(db),
		store.NewDateDimensionStore(db, loc),
		store.NewDimensionStore(db),
		store.NewTicketFactStore(db),
		store.NewUserActivityStore(db),
	)
	return services.NewETLService(services.NewHTTPExtractorFromConfig(), loader, store.NewETLRunLogStore(db), loc)
}

// newReportRunner 报表执行：导出文件按配置存MinIO，配置了SMTP时发送邮件
func newReportRunner(analytics core.AnalyticsService, forecast core.ForecastService) core.ReportRunner {
	var sink core.ExportSink
	if config.MinIO.Enabled {
		client, err := tools.NewMinIOClientFromConfig(context.Background())
		if err != nil {
			logger.Error("MinIO初始化失败，报表导出文件不会被存储", zap.Error(err))
		} else {
			sink = services.NewObjectExportSink(client)
			logger.Info("报表导出文件存储到MinIO", zap.String("bucket", client.BucketName()))
		}
	}

	var notifier core.Notifier
	if emailNotifier := services.NewEmailNotifierFromConfig(); emailNotifier != nil {
		notifier = emailNotifier
		logger.Info("报表邮件通知已开启", zap.String("smtp_host", config.SMTP.Host))
	}

	return services.NewReportRunner(services.NewReportGenerator(analytics, forecast, config.ETL.Location()), services.NewExporter(), sink, notifier)
}

// newComponents 组装所有组件
func newComponents(db *gorm.DB) *components {
	metricStore := store.NewMetricStore(db)
	jobStore := store.NewScheduledJobStore(db)

	analytics := services.NewAnalyticsService(metricStore)
	forecast := services.NewForecastService(metricStore, services.NewWorkerPool("forecast", config.Scheduler.ForecastWorker))

	schedulerLoc, err := time.LoadLocation(config.Scheduler.TimeZone)
	if err != nil {
		logger.Warn("调度时区无效，使用UTC", zap.String("timezone", config.Scheduler.TimeZone), zap.Error(err))
	}
	scheduler := services.NewReportScheduler(&services.ReportSchedulerOptions{
		Store:    jobStore,
		Runner:   newReportRunner(analytics, forecast),
		Pool:     services.NewWorkerPool("report", config.Scheduler.Workers),
		Location: schedulerLoc,
	})

	return &components{
		db:        db,
		dateStore: store.NewDateDimensionStore(db, config.ETL.Location()),
		jobStore:  jobStore,
		factStore: store.NewTicketFactStore(db),
		locker:    newLocker(),
		etl:       newETLService(db),
		analytics: analytics,
		forecast:  forecast,
		scheduler: scheduler,
	}
}
