package forms

import (
	"fmt"
	"time"

	"github.com/codelieche/analytics/pkg/core"
)

// DateRangeQuery 日期范围查询参数（闭区间）
type DateRangeQuery struct {
	Start string `form:"start" example:"2024-03-01"`
	End   string `form:"end" example:"2024-03-31"`
}

// Parse 解析日期范围
// end为空时取today，start为空时取end往前defaultDays天（含end）
func (q *DateRangeQuery) Parse(today time.Time, defaultDays int) (start, end time.Time, err error) {
	loc := today.Location()
	end = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, loc)
	if q.End != "" {
		if end, err = time.ParseInLocation(time.DateOnly, q.End, loc); err != nil {
			return start, end, fmt.Errorf("%w: 结束日期格式错误 %q", core.ErrBadRequest, q.End)
		}
	}

	start = end.AddDate(0, 0, -(defaultDays - 1))
	if q.Start != "" {
		if start, err = time.ParseInLocation(time.DateOnly, q.Start, loc); err != nil {
			return start, end, fmt.Errorf("%w: 开始日期格式错误 %q", core.ErrBadRequest, q.Start)
		}
	}

	if start.After(end) {
		return start, end, fmt.Errorf("%w: 开始日期不能晚于结束日期", core.ErrBadRequest)
	}
	return start, end, nil
}

// BreakdownQuery 指标拆分查询
type BreakdownQuery struct {
	DateRangeQuery
	Metric    string `form:"metric" example:"ticket_count"`
	Dimension string `form:"dimension" binding:"required" example:"category"`
}

// Parse 解析指标和维度，metric为空时按工单数
func (q *BreakdownQuery) Parse() (core.Metric, core.BreakdownDimension, error) {
	if q.Metric == "" {
		q.Metric = core.MetricTicketCount.String()
	}
	metric, err := core.ParseMetric(q.Metric)
	if err != nil {
		return 0, 0, err
	}
	dimension, err := core.ParseBreakdownDimension(q.Dimension)
	if err != nil {
		return 0, 0, err
	}
	return metric, dimension, nil
}
