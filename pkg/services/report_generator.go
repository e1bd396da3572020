package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/codelieche/analytics/pkg/core"
	"github.com/codelieche/analytics/pkg/utils/tools"
)

// maxReportDays 报表统计窗口最多的天数
const maxReportDays = 3650

// ReportParams 报表任务的参数（scheduled_job.params）
type ReportParams struct {
	Days          int     `json:"days,omitempty"`           // 统计最近N天，默认30
	Metric        string  `json:"metric,omitempty"`         // 趋势/预测的指标，默认ticket_count
	Granularity   string  `json:"granularity,omitempty"`    // 趋势/预测的粒度，默认day
	Periods       int     `json:"periods,omitempty"`        // 预测期数，默认7
	IntervalWidth float64 `json:"interval_width,omitempty"` // 置信区间，默认0.95
	Dimension     string  `json:"dimension,omitempty"`      // kpi_summary附带的拆分维度，可选
}

// ParseReportParams 解析并补全默认值
func ParseReportParams(data []byte) (*ReportParams, error) {
	params := &ReportParams{}
	if len(data) > 0 && string(data) != "null" {
		if err := json.Unmarshal(data, params); err != nil {
			return nil, fmt.Errorf("%w: 报表参数格式错误: %s", core.ErrBadRequest, err)
		}
	}
	if params.Days <= 0 {
		params.Days = 30
	}
	if params.Metric == "" {
		params.Metric = core.MetricTicketCount.String()
	}
	if params.Granularity == "" {
		params.Granularity = string(core.GranularityDay)
	}
	if params.Periods <= 0 {
		params.Periods = 7
	}
	if params.IntervalWidth <= 0 || params.IntervalWidth >= 1 {
		params.IntervalWidth = 0.95
	}
	return params, nil
}

// Validate 校验统计窗口、预测期数、指标、粒度、维度
func (p *ReportParams) Validate() error {
	if p.Days > maxReportDays {
		return fmt.Errorf("%w: 统计天数需要在1-%d之间", core.ErrBadRequest, maxReportDays)
	}
	if p.Periods > core.MaxForecastPeriods {
		return fmt.Errorf("%w: 预测期数需要在1-%d之间", core.ErrBadRequest, core.MaxForecastPeriods)
	}
	if _, err := core.ParseMetric(p.Metric); err != nil {
		return err
	}
	if _, err := core.ParseGranularity(p.Granularity); err != nil {
		return err
	}
	if p.Dimension != "" {
		if _, err := core.ParseBreakdownDimension(p.Dimension); err != nil {
			return err
		}
	}
	return nil
}

func (p *ReportParams) toMap() map[string]interface{} {
	data, _ := json.Marshal(p)
	result := map[string]interface{}{}
	_ = json.Unmarshal(data, &result)
	return result
}

// NewReportGenerator 创建ReportGenerator实例
// loc为数据仓库日期所在的时区，为空时使用UTC
func NewReportGenerator(analytics core.AnalyticsService, forecast core.ForecastService, loc *time.Location) core.ReportGenerator {
	if loc == nil {
		loc = time.UTC
	}
	return &ReportGenerator{
		analytics: analytics,
		forecast:  forecast,
		loc:       loc,
	}
}

// ReportGenerator 根据报表类型生成表格数据
type ReportGenerator struct {
	analytics core.AnalyticsService
	forecast  core.ForecastService
	loc       *time.Location
}

// Generate 生成报表，统计窗口为截止到now（按数据仓库时区）的最近N天
func (g *ReportGenerator) Generate(ctx context.Context, job *core.ScheduledJob, now time.Time) (*core.Report, error) {
	reportType, err := core.ParseReportType(job.ReportType)
	if err != nil {
		return nil, err
	}
	params, err := ParseReportParams(job.Params)
	if err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	end := tools.StartOfDay(now.In(g.loc))
	start := end.AddDate(0, 0, -(params.Days - 1))
	report := &core.Report{
		Title:       job.Name,
		Type:        reportType,
		GeneratedAt: now,
		Params:      params.toMap(),
		Summary: map[string]interface{}{
			"start": start.Format("2006-01-02"),
			"end":   end.Format("2006-01-02"),
		},
	}
	if report.Title == "" {
		report.Title = string(reportType)
	}

	switch reportType {
	case core.ReportKPISummary:
		err = g.kpiSummary(ctx, report, params, start, end)
	case core.ReportTicketTrend:
		err = g.ticketTrend(ctx, report, params, start, end)
	case core.ReportForecast:
		err = g.forecastReport(ctx, report, params, start, end)
	}
	if err != nil {
		return nil, err
	}
	return report, nil
}

func (g *ReportGenerator) kpiSummary(ctx context.Context, report *core.Report, params *ReportParams, start, end time.Time) error {
	summary, err := g.analytics.KPI(ctx, start, end)
	if err != nil {
		return err
	}

	report.Columns = []string{"metric", "value"}
	report.Rows = [][]interface{}{
		{"ticket_count", summary.TicketCount},
		{"tickets_closed", summary.TicketsClosed},
		{"resolution_rate", summary.ResolutionRate},
		{"avg_response_minutes", summary.AvgResponseMinutes},
		{"avg_resolution_minutes", summary.AvgResolutionMinutes},
		{"user_activity", summary.UserActivity},
	}

	if params.Dimension != "" {
		metric, _ := core.ParseMetric(params.Metric)
		dimension, _ := core.ParseBreakdownDimension(params.Dimension)
		rows, err := g.analytics.Breakdown(ctx, metric, dimension, start, end)
		if err != nil {
			return err
		}
		for _, row := range rows {
			report.Rows = append(report.Rows, []interface{}{
				fmt.Sprintf("%s[%s=%s]", metric, dimension, row.Label), row.Value,
			})
		}
	}
	return nil
}

func (g *ReportGenerator) ticketTrend(ctx context.Context, report *core.Report, params *ReportParams, start, end time.Time) error {
	metric, _ := core.ParseMetric(params.Metric)
	granularity, _ := core.ParseGranularity(params.Granularity)

	history, err := g.forecast.HistoricalData(ctx, metric, start, end, granularity)
	if err != nil {
		return err
	}

	report.Columns = []string{"period_start", metric.String()}
	total := 0.0
	for _, point := range history {
		report.Rows = append(report.Rows, []interface{}{point.PeriodStart.Format("2006-01-02"), point.Value})
		total += point.Value
	}
	report.Summary["periods"] = len(history)
	report.Summary["total"] = total
	return nil
}

func (g *ReportGenerator) forecastReport(ctx context.Context, report *core.Report, params *ReportParams, start, end time.Time) error {
	metric, _ := core.ParseMetric(params.Metric)
	granularity, _ := core.ParseGranularity(params.Granularity)

	result, err := g.forecast.Generate(ctx, &core.ForecastRequest{
		Metric:        metric,
		Start:         start,
		End:           end,
		Granularity:   granularity,
		Periods:       params.Periods,
		IntervalWidth: params.IntervalWidth,
	})
	if err != nil {
		return err
	}

	report.Columns = []string{"date", "forecast", "lower_bound", "upper_bound"}
	for i, date := range result.Dates {
		report.Rows = append(report.Rows, []interface{}{
			date.Format("2006-01-02"), result.Forecast[i], result.LowerBound[i], result.UpperBound[i],
		})
	}
	report.Summary["model"] = result.Model
	report.Summary["history_points"] = len(result.History)
	return nil
}
