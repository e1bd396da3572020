package core

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/codelieche/analytics/pkg/utils/filters"
	"gorm.io/datatypes"
)

// ETL运行状态
const (
	ETLStatusRunning = "running"
	ETLStatusSuccess = "success"
	ETLStatusFailed  = "failed"
)

// ETLRunLog 每次流水线运行一行，只追加
type ETLRunLog struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	ProcessName      string         `gorm:"size:100;index" json:"process_name"`
	StartTime        time.Time      `gorm:"index" json:"start_time"`
	EndTime          *time.Time     `json:"end_time"`
	Status           string         `gorm:"size:20;index" json:"status"`
	WindowDays       int            `json:"window_days"`
	RecordsProcessed int            `json:"records_processed"`
	RecordsSkipped   int            `json:"records_skipped"`
	ErrorMessage     string         `gorm:"type:text" json:"error_message,omitempty"`
	Details          datatypes.JSON `json:"details,omitempty"`
}

func (ETLRunLog) TableName() string { return "etl_run_log" }

// ExternalID 上游服务的ID，兼容数字和字符串两种JSON格式
type ExternalID string

func (id *ExternalID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ExternalID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ExternalID(n.String())
	return nil
}

func (id ExternalID) String() string { return string(id) }

// RawUser 用户服务返回的用户
type RawUser struct {
	ID         ExternalID `json:"id"`
	Username   string     `json:"username"`
	Email      string     `json:"email"`
	FullName   string     `json:"full_name"`
	Department string     `json:"department"`
	Role       string     `json:"role"`
	IsActive   *bool      `json:"is_active"`
	LastLogin  string     `json:"last_login"`
}

// RawCategory 工单服务返回的分类
type RawCategory struct {
	ID          ExternalID `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	ParentID    ExternalID `json:"parent_id"`
}

// RawPriority 工单中内嵌的优先级
type RawPriority struct {
	ID          ExternalID `json:"id"`
	Name        string     `json:"name"`
	Level       int        `json:"level"`
	SLAMinutes  int        `json:"sla_minutes"`
	Description string     `json:"description"`
}

// RawStatus 工单中内嵌的状态
type RawStatus struct {
	ID          ExternalID `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	IsOpen      *bool      `json:"is_open"`
	IsClosed    *bool      `json:"is_closed"`
}

// RawTicket 工单服务返回的工单
// 时间字段为ISO-8601字符串，可能为空
type RawTicket struct {
	ID              ExternalID   `json:"id"`
	Title           string       `json:"title"`
	CreatedAt       string       `json:"created_at"`
	UpdatedAt       string       `json:"updated_at"`
	ResolvedAt      string       `json:"resolved_at"`
	FirstResponseAt string       `json:"first_response_at"`
	CreatedBy       ExternalID   `json:"created_by"`
	AssignedTo      ExternalID   `json:"assigned_to"`
	CategoryID      ExternalID   `json:"category_id"`
	PriorityID      ExternalID   `json:"priority_id"`
	StatusID        ExternalID   `json:"status_id"`
	Priority        *RawPriority `json:"priority,omitempty"`
	Status          *RawStatus   `json:"status,omitempty"`
	ReopenedCount   int          `json:"reopened_count"`
	CommentCount    int          `json:"comment_count"`
	AttachmentCount int          `json:"attachment_count"`
}

// Batch 一次抽取的结果
// 单条记录解析失败不影响同一页的其它记录，放到Invalid中由ETL计为跳过
type Batch[T any] struct {
	Records []T
	Invalid []*TransformError
}

// Len 抽取到的记录总数（含解析失败的）
func (b *Batch[T]) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Records) + len(b.Invalid)
}

// Extractor 上游数据抽取
// 请求失败返回 *ExtractionError
type Extractor interface {
	ExtractTickets(ctx context.Context, fromDate time.Time) (*Batch[RawTicket], error)
	ExtractUsers(ctx context.Context) (*Batch[RawUser], error)
	ExtractCategories(ctx context.Context) (*Batch[RawCategory], error)
}

// FactLoader 把单条原始记录写入数据仓库
type FactLoader interface {
	LoadUser(ctx context.Context, raw *RawUser) (*UserDimension, error)
	LoadCategory(ctx context.Context, raw *RawCategory) (*CategoryDimension, error)
	LoadTicket(ctx context.Context, raw *RawTicket) (*TicketFact, error)
	// LoadUserActivity 统计某天的用户活跃度，返回新建的行数
	LoadUserActivity(ctx context.Context, day time.Time) (int, error)
}

// ETLRunLogStore ETL运行日志存储
type ETLRunLogStore interface {
	Create(ctx context.Context, log *ETLRunLog) (*ETLRunLog, error)
	Update(ctx context.Context, log *ETLRunLog) error
	FindByID(ctx context.Context, id uint) (*ETLRunLog, error)
	List(ctx context.Context, offset int, limit int, filterActions ...filters.Filter) ([]*ETLRunLog, error)
	Count(ctx context.Context, filterActions ...filters.Filter) (int64, error)
}

// ETLService ETL流水线
type ETLService interface {
	// Run 执行一次完整流水线，运行日志总会被写成success或failed
	Run(ctx context.Context, windowDays int) (*ETLRunLog, error)
	// RunWithRetry 抽取失败（可重试）时间隔interval重跑，最多maxRetries次
	RunWithRetry(ctx context.Context, windowDays, maxRetries int, interval time.Duration) (*ETLRunLog, error)
	FindLog(ctx context.Context, id uint) (*ETLRunLog, error)
	ListLogs(ctx context.Context, offset int, limit int, filterActions ...filters.Filter) ([]*ETLRunLog, error)
	CountLogs(ctx context.Context, filterActions ...filters.Filter) (int64, error)
}
