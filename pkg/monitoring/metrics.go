// Package monitoring 监控指标定义和收集
//
// 提供Prometheus监控指标的定义、注册和收集功能
// 包括HTTP指标、ETL/报表/预测等业务指标和基础设施指标
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector 监控指标收集器
type MetricsCollector struct {
	// ========== 系统基础指标 ==========

	HTTPRequestsTotal    *prometheus.CounterVec   // HTTP请求总数
	HTTPRequestDuration  *prometheus.HistogramVec // HTTP请求响应时间
	HTTPRequestsInFlight prometheus.Gauge         // 当前正在处理的HTTP请求数

	// ========== ETL指标 ==========

	ETLRuns           *prometheus.CounterVec   // ETL运行次数（按结果）
	ETLRunDuration    prometheus.Histogram     // ETL运行时长
	ETLRecords        *prometheus.CounterVec   // 处理的记录数（按实体、结果）
	ExtractRequests   *prometheus.CounterVec   // 访问上游服务的请求数
	ExtractDuration   *prometheus.HistogramVec // 访问上游服务的耗时
	ExtractTruncated  *prometheus.CounterVec   // 达到最大分页数被截断的抽取
	TicketFactsTotal  prometheus.Gauge         // 工单事实行数
	DateDimensionRows prometheus.Gauge         // 日期维度行数

	// ========== 报表指标 ==========

	ReportJobsTotal         prometheus.Gauge         // 报表任务总数
	ReportJobsActive        prometheus.Gauge         // 启用的报表任务数
	ReportExecutions        *prometheus.CounterVec   // 报表执行次数
	ReportExecutionDuration *prometheus.HistogramVec // 报表执行时长
	ReportSkipped           *prometheus.CounterVec   // 因单飞保护被跳过的执行

	// ========== 预测指标 ==========

	Forecasts        *prometheus.CounterVec   // 预测次数（按最终使用的模型）
	ForecastDuration *prometheus.HistogramVec // 预测耗时

	// ========== 基础设施指标 ==========

	DBConnections    prometheus.Gauge       // 数据库连接数
	LockAcquisitions *prometheus.CounterVec // 锁获取次数
}

// NewMetricsCollector 创建监控指标收集器
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "analytics_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "analytics_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),

		ETLRuns: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_etl_runs_total",
				Help: "Total number of ETL pipeline runs",
			},
			[]string{"status"},
		),
		ETLRunDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "analytics_etl_run_duration_seconds",
				Help:    "ETL pipeline run duration in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
			},
		),
		ETLRecords: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_etl_records_total",
				Help: "Total number of records handled by the ETL pipeline",
			},
			[]string{"entity", "result"}, // result: loaded, skipped
		),
		ExtractRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_extract_requests_total",
				Help: "Total number of upstream extraction requests",
			},
			[]string{"service", "status_code"},
		),
		ExtractDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "analytics_extract_request_duration_seconds",
				Help:    "Upstream extraction request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"service"},
		),
		ExtractTruncated: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_extract_truncated_total",
				Help: "Extractions stopped at the max page bound with more pages available",
			},
			[]string{"service"},
		),
		TicketFactsTotal: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "analytics_ticket_facts",
				Help: "Number of rows in fact_ticket",
			},
		),
		DateDimensionRows: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "analytics_date_dimension_rows",
				Help: "Number of rows in dim_date",
			},
		),

		ReportJobsTotal: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "analytics_report_jobs_total",
				Help: "Total number of scheduled report jobs",
			},
		),
		ReportJobsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "analytics_report_jobs_active",
				Help: "Number of active scheduled report jobs",
			},
		),
		ReportExecutions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_report_executions_total",
				Help: "Total number of report job executions",
			},
			[]string{"report_type", "status"},
		),
		ReportExecutionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "analytics_report_execution_duration_seconds",
				Help:    "Report job execution duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
			},
			[]string{"report_type"},
		),
		ReportSkipped: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_report_skipped_total",
				Help: "Report executions skipped because the job was already running",
			},
			[]string{"report_type"},
		),

		Forecasts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_forecasts_total",
				Help: "Total number of forecasts by the model that produced them",
			},
			[]string{"metric", "model"},
		),
		ForecastDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "analytics_forecast_duration_seconds",
				Help:    "Forecast duration in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10},
			},
			[]string{"metric"},
		),

		DBConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "analytics_db_connections",
				Help: "Number of open database connections",
			},
		),
		LockAcquisitions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_lock_acquisitions_total",
				Help: "Total number of lock acquisitions",
			},
			[]string{"lock_key", "result"}, // result: success, failure
		),
	}
}

// RecordHTTPRequest 记录HTTP请求指标
func (mc *MetricsCollector) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	mc.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	mc.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordETLRun 记录一次ETL运行
func (mc *MetricsCollector) RecordETLRun(status string, duration time.Duration) {
	mc.ETLRuns.WithLabelValues(status).Inc()
	mc.ETLRunDuration.Observe(duration.Seconds())
}

// RecordETLRecord 记录单条记录的处理结果
func (mc *MetricsCollector) RecordETLRecord(entity, result string) {
	mc.ETLRecords.WithLabelValues(entity, result).Inc()
}

// RecordExtract 记录一次上游请求
func (mc *MetricsCollector) RecordExtract(service, statusCode string, duration time.Duration) {
	mc.ExtractRequests.WithLabelValues(service, statusCode).Inc()
	mc.ExtractDuration.WithLabelValues(service).Observe(duration.Seconds())
}

// RecordReportExecution 记录报表执行
func (mc *MetricsCollector) RecordReportExecution(reportType, status string, duration time.Duration) {
	mc.ReportExecutions.WithLabelValues(reportType, status).Inc()
	mc.ReportExecutionDuration.WithLabelValues(reportType).Observe(duration.Seconds())
}

// RecordForecast 记录预测
func (mc *MetricsCollector) RecordForecast(metric, model string, duration time.Duration) {
	mc.Forecasts.WithLabelValues(metric, model).Inc()
	mc.ForecastDuration.WithLabelValues(metric).Observe(duration.Seconds())
}

// RecordLockOperation 记录分布式锁操作指标
func (mc *MetricsCollector) RecordLockOperation(lockKey, result string) {
	mc.LockAcquisitions.WithLabelValues(lockKey, result).Inc()
}

// 全局监控指标收集器实例
var GlobalMetrics = NewMetricsCollector()
