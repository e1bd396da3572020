package core

import (
	"context"
	"time"
)

// Locker 分布式锁
// 多副本部署时，每日ETL和报表到期检查只允许一个实例执行
type Locker interface {
	// Acquire 获取锁，被占用时按配置重试
	Acquire(ctx context.Context, key string, expire time.Duration) (Lock, error)

	// TryAcquire 尝试获取锁，被占用时立即返回ErrLockAlreadyAcquired
	TryAcquire(ctx context.Context, key string, expire time.Duration) (Lock, error)
}

// Lock 已持有的锁
type Lock interface {
	// Release 释放锁（只有持有者能释放）
	Release(ctx context.Context) error

	// Refresh 续租
	Refresh(ctx context.Context, expire time.Duration) error

	// AutoRefresh 定期续租，返回停止函数
	AutoRefresh(ctx context.Context, expire time.Duration, interval time.Duration) (stop func())

	Key() string
	Value() string

	// IsLocked 锁是否仍由自己持有
	IsLocked(ctx context.Context) (bool, error)
}
