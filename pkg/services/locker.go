package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/codelieche/analytics/pkg/core"
	"github.com/codelieche/analytics/pkg/utils/logger"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// 只有锁的持有者才能释放/续租
var (
	releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`)

	refreshScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
else
	return 0
end`)
)

// ErrLockNotOwned 锁已过期或被其它实例持有
var ErrLockNotOwned = errors.New("lock not owned by this instance or already expired")

// RedisLocker 是基于Redis实现的分布式锁管理器
type RedisLocker struct {
	client redis.UniversalClient
	opts   *RedisLockerOptions
}

// RedisLockerOptions 包含Redis锁管理器的配置选项
type RedisLockerOptions struct {
	// RetryCount 尝试获取锁的重试次数
	RetryCount int
	// RetryInterval 尝试获取锁的重试间隔
	RetryInterval time.Duration
}

func defaultLockerOptions(options []*RedisLockerOptions) *RedisLockerOptions {
	opts := &RedisLockerOptions{
		RetryCount:    3,
		RetryInterval: 100 * time.Millisecond,
	}
	if len(options) > 0 && options[0] != nil {
		if options[0].RetryCount > 0 {
			opts.RetryCount = options[0].RetryCount
		}
		if options[0].RetryInterval > 0 {
			opts.RetryInterval = options[0].RetryInterval
		}
	}
	return opts
}

// NewRedisLocker 使用全局Redis连接创建锁管理器
func NewRedisLocker(options ...*RedisLockerOptions) (*RedisLocker, error) {
	client, err := core.GetRedis()
	if err != nil {
		return nil, err
	}
	return NewRedisLockerWithClient(client, options...), nil
}

// NewRedisLockerWithClient 使用指定的Redis客户端创建锁管理器
func NewRedisLockerWithClient(client redis.UniversalClient, options ...*RedisLockerOptions) *RedisLocker {
	return &RedisLocker{
		client: client,
		opts:   defaultLockerOptions(options),
	}
}

// Acquire 获取锁，被占用时按RetryCount重试
func (rl *RedisLocker) Acquire(ctx context.Context, key string, expire time.Duration) (core.Lock, error) {
	lock, err := rl.newLock(key)
	if err != nil {
		return nil, err
	}

	for attempt := 0; ; attempt++ {
		success, err := lock.acquire(ctx, expire)
		if err != nil {
			return nil, err
		}
		if success {
			return lock, nil
		}
		if attempt >= rl.opts.RetryCount {
			return nil, core.ErrLockAlreadyAcquired
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(rl.opts.RetryInterval):
		}
	}
}

// TryAcquire 尝试获取锁，被占用时立即返回core.ErrLockAlreadyAcquired
func (rl *RedisLocker) TryAcquire(ctx context.Context, key string, expire time.Duration) (core.Lock, error) {
	lock, err := rl.newLock(key)
	if err != nil {
		return nil, err
	}

	success, err := lock.acquire(ctx, expire)
	if err != nil {
		return nil, err
	}
	if !success {
		return nil, core.ErrLockAlreadyAcquired
	}
	return lock, nil
}

func (rl *RedisLocker) newLock(key string) (*redisLock, error) {
	// 随机值用于验证锁的拥有者
	val, err := generateRandomValue()
	if err != nil {
		return nil, err
	}
	return &redisLock{client: rl.client, key: key, value: val}, nil
}

// redisLock 是基于Redis实现的单个锁
type redisLock struct {
	client redis.UniversalClient
	key    string
	value  string
}

// acquire SET key value NX PX expire
func (rl *redisLock) acquire(ctx context.Context, expire time.Duration) (bool, error) {
	success, err := rl.client.SetNX(ctx, rl.key, rl.value, expire).Result()
	if err != nil {
		logger.Error("获取锁失败", zap.String("key", rl.key), zap.Error(err))
		return false, err
	}
	return success, nil
}

// Release 释放锁
func (rl *redisLock) Release(ctx context.Context) error {
	result, err := releaseScript.Run(ctx, rl.client, []string{rl.key}, rl.value).Int64()
	if err != nil {
		logger.Error("释放锁失败", zap.String("key", rl.key), zap.Error(err))
		return err
	}
	if result == 0 {
		return ErrLockNotOwned
	}
	return nil
}

// Refresh 续租
func (rl *redisLock) Refresh(ctx context.Context, expire time.Duration) error {
	result, err := refreshScript.Run(ctx, rl.client, []string{rl.key}, rl.value, expire.Milliseconds()).Int64()
	if err != nil {
		logger.Error("续租锁失败", zap.String("key", rl.key), zap.Error(err))
		return err
	}
	if result == 0 {
		return ErrLockNotOwned
	}
	return nil
}

// AutoRefresh 每隔interval续租一次，直到调用返回的stop
func (rl *redisLock) AutoRefresh(ctx context.Context, expire time.Duration, interval time.Duration) func() {
	ctx, cancel := context.WithCancel(ctx)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				logger.Debug("停止自动续租", zap.String("key", rl.key))
				return
			case <-ticker.C:
				if err := rl.Refresh(ctx, expire); err != nil {
					logger.Error("自动续租失败", zap.String("key", rl.key), zap.Error(err))
				}
			}
		}
	}()

	return cancel
}

func (rl *redisLock) Key() string {
	return rl.key
}

func (rl *redisLock) Value() string {
	return rl.value
}

// IsLocked 锁是否仍由自己持有
func (rl *redisLock) IsLocked(ctx context.Context) (bool, error) {
	val, err := rl.client.Get(ctx, rl.key).Result()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		logger.Error("检查锁状态失败", zap.String("key", rl.key), zap.Error(err))
		return false, err
	}
	return val == rl.value, nil
}

// generateRandomValue 生成随机值作为锁的值
func generateRandomValue() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// LocalLocker 进程内的锁，未配置Redis的单实例部署和命令行使用
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*localLock
}

// NewLocalLocker 创建进程内锁管理器
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: map[string]*localLock{}}
}

// Acquire 进程内锁不等待，等同于TryAcquire
func (l *LocalLocker) Acquire(ctx context.Context, key string, expire time.Duration) (core.Lock, error) {
	return l.TryAcquire(ctx, key, expire)
}

// TryAcquire 尝试获取锁，过期的锁可以被抢占
func (l *LocalLocker) TryAcquire(ctx context.Context, key string, expire time.Duration) (core.Lock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if current, ok := l.locks[key]; ok && now.Before(current.expireAt) {
		return nil, core.ErrLockAlreadyAcquired
	}

	val, err := generateRandomValue()
	if err != nil {
		return nil, err
	}
	lock := &localLock{locker: l, key: key, value: val, expireAt: now.Add(expire)}
	l.locks[key] = lock
	return lock, nil
}

type localLock struct {
	locker   *LocalLocker
	key      string
	value    string
	expireAt time.Time
}

func (ll *localLock) owned() bool {
	current, ok := ll.locker.locks[ll.key]
	return ok && current == ll && time.Now().Before(ll.expireAt)
}

func (ll *localLock) Release(ctx context.Context) error {
	ll.locker.mu.Lock()
	defer ll.locker.mu.Unlock()
	if !ll.owned() {
		return ErrLockNotOwned
	}
	delete(ll.locker.locks, ll.key)
	return nil
}

func (ll *localLock) Refresh(ctx context.Context, expire time.Duration) error {
	ll.locker.mu.Lock()
	defer ll.locker.mu.Unlock()
	if !ll.owned() {
		return ErrLockNotOwned
	}
	ll.expireAt = time.Now().Add(expire)
	return nil
}

func (ll *localLock) AutoRefresh(ctx context.Context, expire time.Duration, interval time.Duration) func() {
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = ll.Refresh(ctx, expire)
			}
		}
	}()
	return cancel
}

func (ll *localLock) Key() string   { return ll.key }
func (ll *localLock) Value() string { return ll.value }

func (ll *localLock) IsLocked(ctx context.Context) (bool, error) {
	ll.locker.mu.Lock()
	defer ll.locker.mu.Unlock()
	return ll.owned(), nil
}
