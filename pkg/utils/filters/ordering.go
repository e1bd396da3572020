package filters

import (
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OrderingParam 排序参数的查询参数名
const OrderingParam string = "ordering"

// Ordering 排序：值如 "name" / "-created_at" / "name,-created_at"
// 只允许Fields中列出的字段，避免拼接任意列名
type Ordering struct {
	Fields []string
	Value  string
}

func (o *Ordering) allowed(field string) bool {
	for _, item := range o.Fields {
		if item == field {
			return true
		}
	}
	return false
}

// Filter 实现Filter接口
func (o *Ordering) Filter(db *gorm.DB) *gorm.DB {
	if o.Value == "" {
		return db
	}
	var columns []clause.OrderByColumn
	for _, part := range strings.Split(o.Value, ",") {
		part = strings.TrimSpace(part)
		desc := strings.HasPrefix(part, "-")
		name := strings.TrimPrefix(part, "-")
		if name == "" || !o.allowed(name) {
			continue
		}
		columns = append(columns, clause.OrderByColumn{Column: clause.Column{Name: name}, Desc: desc})
	}
	if len(columns) > 0 {
		db = db.Clauses(clause.OrderBy{Columns: columns})
	}
	return db
}

// FromQueryGetOrderingActionWithDefault 从查询参数中创建排序动作，没有时使用默认值
func FromQueryGetOrderingActionWithDefault(q Query, fields []string, value string) Filter {
	ordering := q.Query(OrderingParam)
	if ordering == "" {
		ordering = value
	}
	if ordering == "" {
		return nil
	}
	return &Ordering{Fields: fields, Value: ordering}
}
