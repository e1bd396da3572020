package filters

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const SearchParam string = "search"

// SearchAction 多字段模糊搜索（字段之间是OR）
type SearchAction struct {
	Fields []string
	Value  string
}

func (s *SearchAction) Filter(db *gorm.DB) *gorm.DB {
	if s.Value == "" || len(s.Fields) == 0 {
		return db
	}
	exprs := make([]clause.Expression, 0, len(s.Fields))
	for _, field := range s.Fields {
		exprs = append(exprs, clause.Like{Column: clause.Column{Name: field}, Value: "%" + s.Value + "%"})
	}
	return db.Where(clause.Or(exprs...))
}

func FromQueryGetSearchAction(q Query, fields []string) Filter {
	search := q.Query(SearchParam)
	if search == "" || len(fields) == 0 {
		return nil
	}
	return &SearchAction{Fields: fields, Value: search}
}
