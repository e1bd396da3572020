package core

import (
	"context"
	"fmt"
	"time"
)

// ReportType 报表类型
type ReportType string

const (
	ReportKPISummary  ReportType = "kpi_summary"
	ReportTicketTrend ReportType = "ticket_trend"
	ReportForecast    ReportType = "forecast"
)

// ParseReportType 解析报表类型
func ParseReportType(value string) (ReportType, error) {
	switch t := ReportType(value); t {
	case ReportKPISummary, ReportTicketTrend, ReportForecast:
		return t, nil
	}
	return "", fmt.Errorf("%w: 未知的报表类型 %q", ErrBadRequest, value)
}

// ExportFormat 导出格式
type ExportFormat string

const (
	ExportJSON  ExportFormat = "json"
	ExportCSV   ExportFormat = "csv"
	ExportExcel ExportFormat = "excel"
	ExportHTML  ExportFormat = "html"
)

// ParseExportFormat 解析导出格式
func ParseExportFormat(value string) (ExportFormat, error) {
	switch f := ExportFormat(value); f {
	case ExportJSON, ExportCSV, ExportExcel, ExportHTML:
		return f, nil
	}
	return "", fmt.Errorf("%w: 不支持的导出格式 %q", ErrBadRequest, value)
}

// Report 生成的报表（表格 + 汇总信息）
type Report struct {
	Title       string                 `json:"title"`
	Type        ReportType             `json:"report_type"`
	GeneratedAt time.Time              `json:"generated_at"`
	Params      map[string]interface{} `json:"params,omitempty"`
	Columns     []string               `json:"columns"`
	Rows        [][]interface{}        `json:"rows"`
	Summary     map[string]interface{} `json:"summary,omitempty"`
}

// Export 单个格式的导出结果
type Export struct {
	Format      ExportFormat `json:"format"`
	ContentType string       `json:"content_type"`
	Filename    string       `json:"filename"`
	Content     []byte       `json:"-"`
	Location    string       `json:"location,omitempty"`
}

// ReportGenerator 根据任务生成报表
type ReportGenerator interface {
	Generate(ctx context.Context, job *ScheduledJob, now time.Time) (*Report, error)
}

// Exporter 报表导出
type Exporter interface {
	Export(report *Report, format ExportFormat) (*Export, error)
}

// ExportSink 导出文件的存储
type ExportSink interface {
	Store(ctx context.Context, job *ScheduledJob, export *Export) (string, error)
}

// Notifier 报表通知
type Notifier interface {
	Notify(ctx context.Context, job *ScheduledJob, report *Report, exports []*Export) error
}
