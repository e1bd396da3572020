package services

import (
	"context"
	"fmt"
	"time"

	"github.com/codelieche/analytics/pkg/core"
	"github.com/codelieche/analytics/pkg/utils/logger"
	"go.uber.org/zap"
)

// NewAnalyticsService 创建AnalyticsService实例
func NewAnalyticsService(metricStore core.MetricStore) core.AnalyticsService {
	return &AnalyticsService{
		metricStore: metricStore,
	}
}

// AnalyticsService 指标查询服务
type AnalyticsService struct {
	metricStore core.MetricStore
}

// dateRange 校验日期范围并转换成date_key闭区间
func dateRange(start, end time.Time) (int, int, error) {
	if start.IsZero() || end.IsZero() {
		return 0, 0, fmt.Errorf("%w: 开始和结束日期不能为空", core.ErrBadRequest)
	}
	startKey, endKey := core.DateKeyOf(start), core.DateKeyOf(end)
	if startKey > endKey {
		return 0, 0, fmt.Errorf("%w: 开始日期不能晚于结束日期", core.ErrBadRequest)
	}
	return startKey, endKey, nil
}

// KPI 一段时间的关键指标
func (s *AnalyticsService) KPI(ctx context.Context, start, end time.Time) (*core.KPISummary, error) {
	startKey, endKey, err := dateRange(start, end)
	if err != nil {
		return nil, err
	}

	summary := &core.KPISummary{Start: start, End: end}
	targets := []struct {
		metric core.Metric
		value  *float64
	}{
		{core.MetricTicketCount, &summary.TicketCount},
		{core.MetricTicketsClosed, &summary.TicketsClosed},
		{core.MetricAvgResponseTime, &summary.AvgResponseMinutes},
		{core.MetricAvgResolutionTime, &summary.AvgResolutionMinutes},
		{core.MetricUserActivity, &summary.UserActivity},
	}
	for _, target := range targets {
		value, err := s.metricStore.Value(ctx, target.metric, startKey, endKey)
		if err != nil {
			logger.Error("query kpi metric error", zap.String("metric", target.metric.String()), zap.Error(err))
			return nil, err
		}
		*target.value = value
	}

	if summary.TicketCount > 0 {
		summary.ResolutionRate = summary.TicketsClosed / summary.TicketCount
	}
	return summary, nil
}

// Breakdown 按维度拆分指标
func (s *AnalyticsService) Breakdown(ctx context.Context, metric core.Metric, dimension core.BreakdownDimension, start, end time.Time) ([]core.BreakdownRow, error) {
	startKey, endKey, err := dateRange(start, end)
	if err != nil {
		return nil, err
	}
	if _, err := dimension.Join(metric); err != nil {
		return nil, err
	}

	rows, err := s.metricStore.Breakdown(ctx, metric, dimension, startKey, endKey)
	if err != nil {
		logger.Error("query metric breakdown error",
			zap.String("metric", metric.String()),
			zap.String("dimension", dimension.String()),
			zap.Error(err))
	}
	return rows, err
}
