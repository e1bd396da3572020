package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/codelieche/analytics/pkg/core"
	"gorm.io/gorm"
)

// NewMetricStore 创建MetricStore实例
func NewMetricStore(db *gorm.DB) core.MetricStore {
	return &MetricStore{
		db: db,
	}
}

// MetricStore 指标聚合查询
//
// 日期范围按dim_date.date_key过滤（闭区间），不依赖各数据库的日期函数
type MetricStore struct {
	db *gorm.DB
}

// base 指标事实表关联日期维度后的查询
func (s *MetricStore) base(ctx context.Context, agg core.MetricAggregation, startKey, endKey int) *gorm.DB {
	query := s.db.WithContext(ctx).Table(agg.Table).
		Joins(fmt.Sprintf("JOIN dim_date ON dim_date.id = %s.%s", agg.Table, agg.DateColumn)).
		Where("dim_date.date_key BETWEEN ? AND ?", startKey, endKey)
	if agg.Condition != "" {
		query = query.Where(agg.Condition)
	}
	return query
}

// Value 指标在[startKey, endKey]内的值，没有数据时为0
func (s *MetricStore) Value(ctx context.Context, metric core.Metric, startKey, endKey int) (float64, error) {
	agg := metric.Aggregation()
	if agg.Table == "" {
		return 0, fmt.Errorf("%w: 未知的指标 %s", core.ErrBadRequest, metric)
	}

	var value sql.NullFloat64
	if err := s.base(ctx, agg, startKey, endKey).Select(agg.Expr).Row().Scan(&value); err != nil {
		return 0, err
	}
	if !value.Valid {
		return 0, nil
	}
	return value.Float64, nil
}

// Breakdown 按维度拆分指标，按值倒序
// 外键为空的记录归到"unknown"
func (s *MetricStore) Breakdown(ctx context.Context, metric core.Metric, dimension core.BreakdownDimension, startKey, endKey int) ([]core.BreakdownRow, error) {
	agg := metric.Aggregation()
	join, err := dimension.Join(metric)
	if err != nil {
		return nil, err
	}

	label := fmt.Sprintf("COALESCE(%s.%s, 'unknown')", join.Table, join.Label)
	var rows []core.BreakdownRow
	err = s.base(ctx, agg, startKey, endKey).
		Joins(fmt.Sprintf("LEFT JOIN %s ON %s.id = %s.%s", join.Table, join.Table, agg.Table, join.ForeignKey)).
		Select(fmt.Sprintf("%s AS label, %s AS value", label, agg.Expr)).
		Group(label).
		Order("value DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
