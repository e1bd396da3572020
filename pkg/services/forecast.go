package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/codelieche/analytics/pkg/core"
	"github.com/codelieche/analytics/pkg/monitoring"
	"github.com/codelieche/analytics/pkg/utils/logger"
	"github.com/codelieche/analytics/pkg/utils/tools"
	"go.uber.org/zap"
)

// minForecastPoints 预测需要的最少历史点数
const minForecastPoints = 3

// NewForecastService 创建ForecastService实例
// models为空时使用默认回退链
func NewForecastService(metricStore core.MetricStore, pool *WorkerPool, models ...core.ForecastModel) *ForecastService {
	if len(models) == 0 {
		models = DefaultForecastModels()
	}
	return &ForecastService{
		metricStore: metricStore,
		pool:        pool,
		models:      models,
	}
}

// ForecastService 预测引擎
type ForecastService struct {
	metricStore core.MetricStore
	pool        *WorkerPool
	models      []core.ForecastModel
}

// HistoricalData 按粒度切分[start, end]，逐段计算指标
// 周期划分见tools.PeriodStart，最后一段截止到end
func (s *ForecastService) HistoricalData(ctx context.Context, metric core.Metric, start, end time.Time, granularity core.Granularity) ([]core.SeriesPoint, error) {
	anchor := tools.StartOfDay(start)
	last := tools.StartOfDay(end)
	if anchor.After(last) {
		return nil, fmt.Errorf("%w: 开始日期不能晚于结束日期", core.ErrBadRequest)
	}

	var series []core.SeriesPoint
	for i := 0; ; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		current, periodEnd := tools.PeriodBounds(anchor, i, granularity)
		if current.After(last) {
			break
		}
		if periodEnd.After(last) {
			periodEnd = last
		}

		value, err := s.metricStore.Value(ctx, metric, core.DateKeyOf(current), core.DateKeyOf(periodEnd))
		if err != nil {
			logger.Error("query metric value error",
				zap.String("metric", metric.String()),
				zap.Time("period_start", current),
				zap.Error(err))
			return nil, err
		}

		series = append(series, core.SeriesPoint{PeriodStart: current, Value: value})
	}
	return series, nil
}

// Forecast 依次尝试回退链中的模型，直到有一个成功
//
// 结果保证：正好periods个点、lower <= forecast <= upper；计数类指标的预测值和下界不小于0
func (s *ForecastService) Forecast(history []core.SeriesPoint, periods int, intervalWidth float64, countLike bool) (*core.ForecastResult, error) {
	if len(history) < minForecastPoints {
		return nil, &core.ForecastingError{
			Message: fmt.Sprintf("历史数据不足：需要至少%d个点，实际%d个", minForecastPoints, len(history)),
		}
	}
	if periods < 1 {
		return nil, &core.ForecastingError{Message: "预测期数必须大于0"}
	}

	values := make([]float64, len(history))
	for i, point := range history {
		values[i] = point.Value
	}
	z := zScore(intervalWidth)

	var (
		forecast, lower, upper []float64
		modelName              string
		errs                   []error
	)
	for _, model := range s.models {
		f, l, u, err := model.Fit(values, periods, z)
		if err == nil && (len(f) != periods || len(l) != periods || len(u) != periods) {
			err = errors.New("输出长度不正确")
		}
		if err != nil {
			logger.Debug("forecast model failed, try next",
				zap.String("model", model.Name()), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", model.Name(), err))
			continue
		}
		forecast, lower, upper, modelName = f, l, u, model.Name()
		break
	}
	if modelName == "" {
		return nil, &core.ForecastingError{Message: errors.Join(errs...).Error()}
	}

	for i := range forecast {
		if countLike {
			forecast[i] = math.Max(0, forecast[i])
			lower[i] = math.Max(0, lower[i])
		}
		lower[i] = math.Min(lower[i], forecast[i])
		upper[i] = math.Max(upper[i], forecast[i])
	}

	// 未来日期的间隔取前两个历史点的差
	step := 24 * time.Hour
	if len(history) > 1 {
		step = history[1].PeriodStart.Sub(history[0].PeriodStart)
	}
	lastDate := history[len(history)-1].PeriodStart
	dates := make([]time.Time, periods)
	for i := range dates {
		dates[i] = lastDate.Add(time.Duration(i+1) * step)
	}

	return &core.ForecastResult{
		Model:      modelName,
		Dates:      dates,
		Forecast:   forecast,
		LowerBound: lower,
		UpperBound: upper,
		History:    history,
	}, nil
}

// Generate 查询历史数据并预测
// 模型拟合在预测worker池中执行，调用方按ctx等待
func (s *ForecastService) Generate(ctx context.Context, req *core.ForecastRequest) (*core.ForecastResult, error) {
	granularity := req.Granularity
	if granularity == "" {
		granularity = core.GranularityDay
	}

	history, err := s.HistoricalData(ctx, req.Metric, req.Start, req.End, granularity)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	fit := func(ctx context.Context) (*core.ForecastResult, error) {
		return s.Forecast(history, req.Periods, req.IntervalWidth, req.Metric.CountLike())
	}

	var result *core.ForecastResult
	if s.pool != nil {
		result, err = Run(ctx, s.pool, fit)
	} else {
		result, err = fit(ctx)
	}
	if err != nil {
		logger.Warn("forecast failed", zap.String("metric", req.Metric.String()), zap.Error(err))
		return nil, err
	}

	// 月/季/年的长度不固定，未来日期沿历史数据的周期继续往后排
	switch granularity {
	case core.GranularityMonth, core.GranularityQuarter, core.GranularityYear:
		anchor := tools.StartOfDay(req.Start)
		for i := range result.Dates {
			result.Dates[i] = tools.PeriodStart(anchor, len(history)+i, granularity)
		}
	}

	result.Metric = req.Metric.String()
	result.Granularity = granularity
	monitoring.GlobalMetrics.RecordForecast(result.Metric, result.Model, time.Since(start))
	logger.Info("预测完成",
		zap.String("metric", result.Metric),
		zap.String("granularity", string(granularity)),
		zap.String("model", result.Model),
		zap.Int("history", len(history)),
		zap.Int("periods", req.Periods))
	return result, nil
}
