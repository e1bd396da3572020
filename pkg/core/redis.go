package core

import (
	"context"
	"sync"
	"time"

	"github.com/codelieche/analytics/pkg/config"
	"github.com/go-redis/redis/v8"
)

var (
	redisClient *redis.Client
	redisLock   sync.Mutex
)

// GetRedis 获取Redis客户端（首次调用时创建并Ping）
func GetRedis() (*redis.Client, error) {
	redisLock.Lock()
	defer redisLock.Unlock()

	if redisClient != nil {
		return redisClient, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Redis.GetAddr(),
		Password: config.Redis.Password,
		DB:       config.Redis.DB,
		PoolSize: config.Redis.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	redisClient = client
	return redisClient, nil
}

// CloseRedis 关闭Redis连接
func CloseRedis() error {
	redisLock.Lock()
	defer redisLock.Unlock()

	if redisClient != nil {
		err := redisClient.Close()
		redisClient = nil
		return err
	}
	return nil
}
