package core

import (
	"context"
	"fmt"
	"time"
)

// MaxForecastPeriods 单次预测最多的期数
const MaxForecastPeriods = 365

// Granularity 时间粒度
type Granularity string

const (
	GranularityDay     Granularity = "day"
	GranularityWeek    Granularity = "week"
	GranularityMonth   Granularity = "month"
	GranularityQuarter Granularity = "quarter"
	GranularityYear    Granularity = "year"
)

// ParseGranularity 解析时间粒度，为空时按天
func ParseGranularity(value string) (Granularity, error) {
	switch g := Granularity(value); g {
	case "":
		return GranularityDay, nil
	case GranularityDay, GranularityWeek, GranularityMonth, GranularityQuarter, GranularityYear:
		return g, nil
	}
	return "", fmt.Errorf("%w: 未知的时间粒度 %q", ErrBadRequest, value)
}

// SeriesPoint 历史序列的一个点
type SeriesPoint struct {
	PeriodStart time.Time `json:"period_start"`
	Value       float64   `json:"value"`
}

// ForecastResult 预测结果
// Forecast/LowerBound/UpperBound 与 Dates 一一对应
type ForecastResult struct {
	Metric      string        `json:"metric,omitempty"`
	Granularity Granularity   `json:"granularity,omitempty"`
	Model       string        `json:"model"`
	Dates       []time.Time   `json:"dates"`
	Forecast    []float64     `json:"forecast"`
	LowerBound  []float64     `json:"lower_bound"`
	UpperBound  []float64     `json:"upper_bound"`
	History     []SeriesPoint `json:"history,omitempty"`
}

// ForecastModel 预测模型（回退链中的一环）
// Fit 对序列拟合并外推periods期，z为置信区间对应的正态分位数
type ForecastModel interface {
	Name() string
	Fit(values []float64, periods int, z float64) (forecast, lower, upper []float64, err error)
}

// ForecastRequest 预测请求
type ForecastRequest struct {
	Metric        Metric
	Start         time.Time
	End           time.Time
	Granularity   Granularity
	Periods       int
	IntervalWidth float64
}

// ForecastService 预测引擎
type ForecastService interface {
	HistoricalData(ctx context.Context, metric Metric, start, end time.Time, granularity Granularity) ([]SeriesPoint, error)
	Forecast(history []SeriesPoint, periods int, intervalWidth float64, countLike bool) (*ForecastResult, error)
	// Generate 查询历史并预测，计算在受限的worker池中执行
	Generate(ctx context.Context, req *ForecastRequest) (*ForecastResult, error)
}
