package core

import (
	"context"

	"gorm.io/gorm"
)

// UnitOfWork 显式的事务边界
//
// 维度/事实写入都接收一个UnitOfWork，而不是依赖隐式的全局session：
// - Transaction 开启（或嵌套）事务，fn返回错误时回滚
// - Conn 返回当前连接，在事务内部即为事务连接
type UnitOfWork interface {
	Transaction(ctx context.Context, fn func(tx UnitOfWork) error) error
	Conn(ctx context.Context) *gorm.DB
}
