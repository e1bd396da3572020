package store

import (
	"context"

	"github.com/codelieche/analytics/pkg/core"
	"github.com/codelieche/analytics/pkg/utils/filters"
	"gorm.io/gorm"
)

// NewUnitOfWork 创建基于gorm的UnitOfWork
func NewUnitOfWork(db *gorm.DB) core.UnitOfWork {
	return &unitOfWork{db: db}
}

type unitOfWork struct {
	db *gorm.DB
}

// Transaction 开启事务，已经在事务中时gorm会使用SavePoint嵌套
func (u *unitOfWork) Transaction(ctx context.Context, fn func(tx core.UnitOfWork) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&unitOfWork{db: tx})
	})
}

// Conn 当前连接
func (u *unitOfWork) Conn(ctx context.Context) *gorm.DB {
	return u.db.WithContext(ctx)
}

// connOf uow为空时使用store自己的连接
func connOf(ctx context.Context, db *gorm.DB, uow core.UnitOfWork) *gorm.DB {
	if uow != nil {
		return uow.Conn(ctx)
	}
	return db.WithContext(ctx)
}

// applyFilters 应用过滤条件，忽略nil
func applyFilters(query *gorm.DB, filterActions []filters.Filter) *gorm.DB {
	for _, action := range filterActions {
		if action == nil {
			continue
		}
		query = action.Filter(query)
	}
	return query
}
