package services

import (
	"context"
	"fmt"
	"time"

	"github.com/codelieche/analytics/pkg/core"
	"github.com/codelieche/analytics/pkg/utils/logger"
	"go.uber.org/zap"
)

// NewReportRunner 创建ReportRunner实例
// sink、notifier可以为nil：不存储导出文件 / 不发送通知
func NewReportRunner(generator core.ReportGenerator, exporter core.Exporter, sink core.ExportSink, notifier core.Notifier) *ReportRunner {
	return &ReportRunner{
		generator: generator,
		exporter:  exporter,
		sink:      sink,
		notifier:  notifier,
		now:       time.Now,
	}
}

// ReportRunner 执行一次报表任务：生成 -> 导出 -> 存储 -> 通知
type ReportRunner struct {
	generator core.ReportGenerator
	exporter  core.Exporter
	sink      core.ExportSink
	notifier  core.Notifier
	now       func() time.Time
}

// Execute 返回每个导出文件的位置（未配置存储时为格式/文件名）
func (r *ReportRunner) Execute(ctx context.Context, job *core.ScheduledJob) ([]string, error) {
	report, err := r.generator.Generate(ctx, job, r.now())
	if err != nil {
		return nil, fmt.Errorf("生成报表失败: %w", err)
	}

	formats := []string(job.ExportFormats)
	if len(formats) == 0 {
		formats = []string{string(core.ExportJSON)}
	}

	var (
		exports   []*core.Export
		locations []string
	)
	for _, name := range formats {
		format, err := core.ParseExportFormat(name)
		if err != nil {
			return locations, err
		}
		export, err := r.exporter.Export(report, format)
		if err != nil {
			return locations, err
		}

		location := fmt.Sprintf("%s:%s", export.Format, export.Filename)
		if r.sink != nil {
			if location, err = r.sink.Store(ctx, job, export); err != nil {
				return locations, fmt.Errorf("存储%s导出文件失败: %w", format, err)
			}
			export.Location = location
		}
		exports = append(exports, export)
		locations = append(locations, location)
	}

	if r.notifier != nil && len(job.NotifyEmails) > 0 {
		if err := r.notifier.Notify(ctx, job, report, exports); err != nil {
			logger.Error("report notify error", zap.String("job_id", job.ID.String()), zap.Error(err))
			return locations, err
		}
	}
	return locations, nil
}
