package core

import (
	"context"
	"fmt"
	"time"
)

// Metric 可聚合/预测的指标（封闭集合）
type Metric int

const (
	MetricTicketCount Metric = iota + 1
	MetricAvgResponseTime
	MetricAvgResolutionTime
	MetricTicketsClosed
	MetricUserActivity
)

// Metrics 全部指标
var Metrics = []Metric{
	MetricTicketCount, MetricAvgResponseTime, MetricAvgResolutionTime, MetricTicketsClosed, MetricUserActivity,
}

// MetricAggregation 指标的聚合表达式
//
// 取值：SELECT Expr FROM Table JOIN dim_date ON Table.DateColumn = dim_date.id
// WHERE dim_date.date_key BETWEEN ? AND ? [AND Condition]
type MetricAggregation struct {
	Table      string
	DateColumn string
	Expr       string
	Condition  string
	UserColumn string // 按用户拆分时使用的列
}

func (m Metric) String() string {
	switch m {
	case MetricTicketCount:
		return "ticket_count"
	case MetricAvgResponseTime:
		return "avg_response_time"
	case MetricAvgResolutionTime:
		return "avg_resolution_time"
	case MetricTicketsClosed:
		return "tickets_closed"
	case MetricUserActivity:
		return "user_activity"
	}
	return fmt.Sprintf("metric(%d)", int(m))
}

// CountLike 计数类指标（预测值和下界不能为负）
func (m Metric) CountLike() bool {
	switch m {
	case MetricTicketCount, MetricTicketsClosed, MetricUserActivity:
		return true
	case MetricAvgResponseTime, MetricAvgResolutionTime:
		return false
	}
	return false
}

// Aggregation 指标对应的聚合表达式
func (m Metric) Aggregation() MetricAggregation {
	switch m {
	case MetricTicketCount:
		return MetricAggregation{
			Table: "fact_ticket", DateColumn: "created_date_id",
			Expr: "COUNT(*)", UserColumn: "assignee_id",
		}
	case MetricAvgResponseTime:
		return MetricAggregation{
			Table: "fact_ticket", DateColumn: "created_date_id",
			Expr:       "AVG(fact_ticket.response_time_minutes)",
			Condition:  "fact_ticket.response_time_minutes IS NOT NULL",
			UserColumn: "assignee_id",
		}
	case MetricAvgResolutionTime:
		return MetricAggregation{
			Table: "fact_ticket", DateColumn: "created_date_id",
			Expr:       "AVG(fact_ticket.resolution_time_minutes)",
			Condition:  "fact_ticket.resolution_time_minutes IS NOT NULL",
			UserColumn: "assignee_id",
		}
	case MetricTicketsClosed:
		return MetricAggregation{
			Table: "fact_ticket", DateColumn: "resolved_date_id",
			Expr: "COUNT(*)", UserColumn: "assignee_id",
		}
	case MetricUserActivity:
		return MetricAggregation{
			Table: "fact_user_activity", DateColumn: "date_id",
			Expr:       "SUM(fact_user_activity.tickets_created + fact_user_activity.tickets_closed)",
			UserColumn: "user_id",
		}
	}
	return MetricAggregation{}
}

// ParseMetric 解析指标名称
func ParseMetric(name string) (Metric, error) {
	for _, m := range Metrics {
		if m.String() == name {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: 未知的指标 %q", ErrBadRequest, name)
}

// BreakdownDimension 指标拆分的维度（封闭集合）
type BreakdownDimension int

const (
	BreakdownCategory BreakdownDimension = iota + 1
	BreakdownPriority
	BreakdownStatus
	BreakdownAssignee
)

var BreakdownDimensions = []BreakdownDimension{BreakdownCategory, BreakdownPriority, BreakdownStatus, BreakdownAssignee}

// BreakdownJoin 拆分时的关联：fact.ForeignKey = Table.id，取Table.Label
type BreakdownJoin struct {
	ForeignKey string
	Table      string
	Label      string
}

func (d BreakdownDimension) String() string {
	switch d {
	case BreakdownCategory:
		return "category"
	case BreakdownPriority:
		return "priority"
	case BreakdownStatus:
		return "status"
	case BreakdownAssignee:
		return "assignee"
	}
	return fmt.Sprintf("dimension(%d)", int(d))
}

// Join 返回该维度在指标事实表上的关联方式
// 用户活跃度只能按用户拆分
func (d BreakdownDimension) Join(m Metric) (BreakdownJoin, error) {
	agg := m.Aggregation()
	switch d {
	case BreakdownCategory, BreakdownPriority, BreakdownStatus:
		if agg.Table != "fact_ticket" {
			return BreakdownJoin{}, fmt.Errorf("%w: 指标%s不支持按%s拆分", ErrBadRequest, m, d)
		}
		switch d {
		case BreakdownCategory:
			return BreakdownJoin{ForeignKey: "category_id", Table: "dim_category", Label: "name"}, nil
		case BreakdownPriority:
			return BreakdownJoin{ForeignKey: "priority_id", Table: "dim_priority", Label: "name"}, nil
		default:
			return BreakdownJoin{ForeignKey: "status_id", Table: "dim_status", Label: "name"}, nil
		}
	case BreakdownAssignee:
		return BreakdownJoin{ForeignKey: agg.UserColumn, Table: "dim_user", Label: "username"}, nil
	}
	return BreakdownJoin{}, fmt.Errorf("%w: 未知的维度 %s", ErrBadRequest, d)
}

// ParseBreakdownDimension 解析维度名称
func ParseBreakdownDimension(name string) (BreakdownDimension, error) {
	for _, d := range BreakdownDimensions {
		if d.String() == name {
			return d, nil
		}
	}
	return 0, fmt.Errorf("%w: 未知的维度 %q", ErrBadRequest, name)
}

// BreakdownRow 拆分结果的一行
type BreakdownRow struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// KPISummary 一段时间的关键指标
type KPISummary struct {
	Start                time.Time `json:"start"`
	End                  time.Time `json:"end"`
	TicketCount          float64   `json:"ticket_count"`
	TicketsClosed        float64   `json:"tickets_closed"`
	ResolutionRate       float64   `json:"resolution_rate"`
	AvgResponseMinutes   float64   `json:"avg_response_minutes"`
	AvgResolutionMinutes float64   `json:"avg_resolution_minutes"`
	UserActivity         float64   `json:"user_activity"`
}

// MetricStore 指标聚合（只读）
// startKey/endKey为闭区间的date_key
type MetricStore interface {
	Value(ctx context.Context, metric Metric, startKey, endKey int) (float64, error)
	Breakdown(ctx context.Context, metric Metric, dimension BreakdownDimension, startKey, endKey int) ([]BreakdownRow, error)
}

// AnalyticsService 指标查询
type AnalyticsService interface {
	KPI(ctx context.Context, start, end time.Time) (*KPISummary, error)
	Breakdown(ctx context.Context, metric Metric, dimension BreakdownDimension, start, end time.Time) ([]BreakdownRow, error)
}
