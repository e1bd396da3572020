package forms

import (
	"fmt"
	"time"

	"github.com/codelieche/analytics/pkg/core"
)

// ForecastForm 预测请求
type ForecastForm struct {
	Metric        string  `json:"metric" form:"metric" example:"ticket_count"`
	Start         string  `json:"start" form:"start" example:"2024-01-01"`
	End           string  `json:"end" form:"end" example:"2024-03-31"`
	Granularity   string  `json:"granularity" form:"granularity" example:"day"`
	Periods       int     `json:"periods" form:"periods" example:"7"`
	IntervalWidth float64 `json:"interval_width" form:"interval_width" example:"0.95"`
}

// ToForecastRequest 校验并转换成预测请求
// 历史窗口默认最近90天
func (form *ForecastForm) ToForecastRequest(today time.Time) (*core.ForecastRequest, error) {
	if form.Metric == "" {
		form.Metric = core.MetricTicketCount.String()
	}
	metric, err := core.ParseMetric(form.Metric)
	if err != nil {
		return nil, err
	}

	granularity, err := core.ParseGranularity(form.Granularity)
	if err != nil {
		return nil, err
	}

	dateRange := DateRangeQuery{Start: form.Start, End: form.End}
	start, end, err := dateRange.Parse(today, 90)
	if err != nil {
		return nil, err
	}

	if form.Periods == 0 {
		form.Periods = 7
	}
	if form.Periods < 1 || form.Periods > core.MaxForecastPeriods {
		return nil, fmt.Errorf("%w: 预测期数需要在1-%d之间", core.ErrBadRequest, core.MaxForecastPeriods)
	}

	if form.IntervalWidth == 0 {
		form.IntervalWidth = 0.95
	}
	if form.IntervalWidth <= 0 || form.IntervalWidth >= 1 {
		return nil, fmt.Errorf("%w: 置信区间宽度需要在(0, 1)之间", core.ErrBadRequest)
	}

	return &core.ForecastRequest{
		Metric:        metric,
		Start:         start,
		End:           end,
		Granularity:   granularity,
		Periods:       form.Periods,
		IntervalWidth: form.IntervalWidth,
	}, nil
}
