package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("记录不存在")
	// ErrConflict 记录冲突（已存在）
	ErrConflict = errors.New("记录已存在")
	// ErrBadRequest 请求参数错误
	ErrBadRequest = errors.New("请求参数错误")

	// ErrLockAlreadyAcquired 锁已被其它实例持有
	ErrLockAlreadyAcquired = errors.New("lock already acquired")

	// ErrJobRunning 报表任务正在执行（单飞保护）
	ErrJobRunning = errors.New("报表任务正在执行中")
)

// ExtractionError 访问上游服务失败（网络/认证/状态码）
// 由ETL的调用方负责重试，不能被吞掉
type ExtractionError struct {
	Service    string // tickets / users / categories
	URL        string
	StatusCode int
	Err        error
}

func (e *ExtractionError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("抽取%s失败: status=%d url=%s: %v", e.Service, e.StatusCode, e.URL, e.Err)
	}
	return fmt.Sprintf("抽取%s失败: url=%s: %v", e.Service, e.URL, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// TransformError 单条记录格式错误或不完整，跳过并记录日志
type TransformError struct {
	Record string // 记录标识（如工单ID）
	Err    error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("转换记录%q失败: %v", e.Record, e.Err)
}

func (e *TransformError) Unwrap() error { return e.Err }

// PersistenceError 单条记录写入失败，只放弃这一条
type PersistenceError struct {
	Entity string // 表/实体
	Key    string
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("写入%s(%s)失败: %v", e.Entity, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// SchedulingError 调度配置无效，在创建任务时拒绝
type SchedulingError struct {
	Field   string
	Message string
}

func (e *SchedulingError) Error() string {
	if e.Field == "" {
		return "调度配置无效: " + e.Message
	}
	return fmt.Sprintf("调度配置无效(%s): %s", e.Field, e.Message)
}

// ForecastingError 历史数据不足等无法预测的情况
type ForecastingError struct {
	Message string
}

func (e *ForecastingError) Error() string {
	return "预测失败: " + e.Message
}

// IsRetryable ETL顶层错误是否值得重试（只有上游抽取失败才重试）
func IsRetryable(err error) bool {
	var extractionErr *ExtractionError
	return errors.As(err, &extractionErr)
}
