// Package filters 列表接口的过滤/搜索/排序
//
// 由查询参数构建gorm查询条件，控制器把多个Filter组合后交给Store
package filters

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	FILTER_EQ = iota
	FILTER_NEQ
	FILTER_CONTAINS
	FILTER_GT
	FILTER_GTE
	FILTER_LT
	FILTER_LTE
)

// Filter 作用于gorm查询的过滤动作
type Filter interface {
	Filter(db *gorm.DB) *gorm.DB
}

// Query 查询参数来源（*gin.Context 实现了此接口）
type Query interface {
	Query(key string) string
}

type newClauseExpressionFunc = func(column string, value interface{}) clause.Expression

var clauseExpressionMap = map[int]newClauseExpressionFunc{
	FILTER_EQ: func(column string, value interface{}) clause.Expression {
		return clause.Eq{Column: clause.Column{Name: column}, Value: value}
	},
	FILTER_NEQ: func(column string, value interface{}) clause.Expression {
		return clause.Neq{Column: clause.Column{Name: column}, Value: value}
	},
	FILTER_CONTAINS: func(column string, value interface{}) clause.Expression {
		return clause.Like{Column: clause.Column{Name: column}, Value: fmt.Sprintf("%%%v%%", value)}
	},
	FILTER_GT: func(column string, value interface{}) clause.Expression {
		return clause.Gt{Column: clause.Column{Name: column}, Value: value}
	},
	FILTER_GTE: func(column string, value interface{}) clause.Expression {
		return clause.Gte{Column: clause.Column{Name: column}, Value: value}
	},
	FILTER_LT: func(column string, value interface{}) clause.Expression {
		return clause.Lt{Column: clause.Column{Name: column}, Value: value}
	},
	FILTER_LTE: func(column string, value interface{}) clause.Expression {
		return clause.Lte{Column: clause.Column{Name: column}, Value: value}
	},
}

// FilterOption 单个字段的过滤选项
type FilterOption struct {
	QueryKey string      // 查询参数名，为空时使用Column
	Column   string      // 数据库列
	Value    interface{} // 过滤值
	Op       int         // 操作符
}

func (o *FilterOption) queryKey() string {
	if o.QueryKey == "" {
		return o.Column
	}
	return o.QueryKey
}

// Expression 构建条件表达式，值为空时返回nil
func (o *FilterOption) Expression() clause.Expression {
	if o.Value == nil || o.Value == "" || o.Column == "" {
		return nil
	}
	if fn, exist := clauseExpressionMap[o.Op]; exist {
		return fn(o.Column, o.Value)
	}
	return nil
}

// Filter 实现Filter接口
func (o *FilterOption) Filter(db *gorm.DB) *gorm.DB {
	if c := o.Expression(); c != nil {
		db = db.Clauses(c)
	}
	return db
}

// FilterAction 多个过滤选项的组合
type FilterAction struct {
	Options []*FilterOption
}

// Filter 实现Filter接口
func (f *FilterAction) Filter(db *gorm.DB) *gorm.DB {
	var conds []clause.Expression
	for _, opt := range f.Options {
		if c := opt.Expression(); c != nil {
			conds = append(conds, c)
		}
	}
	if len(conds) > 0 {
		db = db.Clauses(conds...)
	}
	return db
}

// FromQueryGetFilterAction 从查询参数中取值，返回有值的过滤选项组合
func FromQueryGetFilterAction(q Query, opts []*FilterOption) Filter {
	var options []*FilterOption
	for _, opt := range opts {
		if value := q.Query(opt.queryKey()); value != "" {
			options = append(options, &FilterOption{Column: opt.Column, Value: value, Op: opt.Op})
		}
	}
	if len(options) < 1 {
		return nil
	}
	return &FilterAction{Options: options}
}
