package core

import (
	"context"
	"time"

	"github.com/codelieche/analytics/pkg/utils/filters"
	"github.com/codelieche/analytics/pkg/utils/types"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Frequency 报表执行频率
type Frequency string

const (
	FrequencyDaily     Frequency = "daily"
	FrequencyWeekly    Frequency = "weekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
)

// ScheduleSpec 调度配置（值对象）
// DayOfWeek: 0=周一 ... 6=周日；DayOfMonth: 1-31，超出当月天数时取月末
type ScheduleSpec struct {
	Frequency  Frequency `gorm:"size:20" json:"frequency"`
	Hour       int       `json:"hour"`
	Minute     int       `json:"minute"`
	DayOfWeek  *int      `json:"day_of_week,omitempty"`
	DayOfMonth *int      `json:"day_of_month,omitempty"`
}

// 报表执行结果
const (
	JobStatusSuccess = "success"
	JobStatusFailed  = "failed"
	JobStatusRunning = "running"
)

// ScheduledJob 定时报表任务
//
// 生命周期：创建 -> next_run <= now 时被选中 -> 执行 -> 重新计算next_run、设置last_run
// -> 取消（active=false）或删除
type ScheduledJob struct {
	ID            uuid.UUID                   `gorm:"size:36;primaryKey" json:"id"`
	Name          string                      `gorm:"size:128" json:"name"`
	ReportType    string                      `gorm:"size:64;index" json:"report_type"`
	Params        datatypes.JSON              `json:"params,omitempty"`
	Schedule      ScheduleSpec                `gorm:"embedded;embeddedPrefix:schedule_" json:"schedule"`
	ExportFormats datatypes.JSONSlice[string] `json:"export_formats"`
	NotifyEmails  datatypes.JSONSlice[string] `json:"notify_emails,omitempty"`
	Active        bool                        `gorm:"index" json:"active"`
	Running       bool                        `json:"running"`
	RunStartedAt  *time.Time                  `json:"run_started_at,omitempty"`
	NextRun       *time.Time                  `gorm:"index" json:"next_run"`
	LastRun       *time.Time                  `json:"last_run"`
	LastStatus    string                      `gorm:"size:20" json:"last_status,omitempty"`
	LastError     string                      `gorm:"type:text" json:"last_error,omitempty"`
	Owner         string                      `gorm:"size:128;index" json:"owner"`
	types.BaseModel
}

func (ScheduledJob) TableName() string { return "scheduled_job" }

// ReportRun 报表任务的一次执行记录
type ReportRun struct {
	ID           uint                        `gorm:"primaryKey" json:"id"`
	JobID        uuid.UUID                   `gorm:"size:36;index" json:"job_id"`
	StartedAt    time.Time                   `json:"started_at"`
	FinishedAt   *time.Time                  `json:"finished_at"`
	Status       string                      `gorm:"size:20" json:"status"`
	ErrorMessage string                      `gorm:"type:text" json:"error_message,omitempty"`
	Exports      datatypes.JSONSlice[string] `json:"exports,omitempty"`
}

func (ReportRun) TableName() string { return "report_run" }

// ScheduledJobStore 报表任务存储（进程重启后任务仍在）
type ScheduledJobStore interface {
	Create(ctx context.Context, job *ScheduledJob) (*ScheduledJob, error)
	// Update 更新可编辑字段（名称、参数、调度、导出格式、通知、next_run）
	Update(ctx context.Context, job *ScheduledJob) (*ScheduledJob, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*ScheduledJob, error)
	List(ctx context.Context, offset int, limit int, filterActions ...filters.Filter) ([]*ScheduledJob, error)
	Count(ctx context.Context, filterActions ...filters.Filter) (int64, error)
	// ListDue 所有active且next_run <= now的任务
	ListDue(ctx context.Context, now time.Time, limit int) ([]*ScheduledJob, error)
	// TryStartRun 比较并交换running标记，已在运行时返回false
	TryStartRun(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	// TryStartDueRun 同TryStartRun，另外要求任务active且next_run <= now
	TryStartDueRun(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	// FinishRun 清除running标记并写入last_run/next_run/执行结果
	FinishRun(ctx context.Context, id uuid.UUID, lastRun time.Time, nextRun *time.Time, status string, errMsg string) error
	// ResetStaleRuns 清理进程崩溃后残留的running标记
	ResetStaleRuns(ctx context.Context, startedBefore time.Time) (int64, error)

	CreateRun(ctx context.Context, run *ReportRun) (*ReportRun, error)
	UpdateRun(ctx context.Context, run *ReportRun) error
	ListRuns(ctx context.Context, jobID uuid.UUID, limit int) ([]*ReportRun, error)
}

// ReportRunner 执行一次报表任务（生成、导出、存储、通知）
type ReportRunner interface {
	Execute(ctx context.Context, job *ScheduledJob) (exports []string, err error)
}

// ReportSchedulerService 报表调度
type ReportSchedulerService interface {
	Create(ctx context.Context, job *ScheduledJob) (*ScheduledJob, error)
	Update(ctx context.Context, job *ScheduledJob) (*ScheduledJob, error)
	Cancel(ctx context.Context, id string) (*ScheduledJob, error)
	Delete(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*ScheduledJob, error)
	List(ctx context.Context, offset int, limit int, filterActions ...filters.Filter) ([]*ScheduledJob, error)
	Count(ctx context.Context, filterActions ...filters.Filter) (int64, error)
	ListRuns(ctx context.Context, id string, limit int) ([]*ReportRun, error)
	// Due 当前到期的任务
	Due(ctx context.Context) ([]*ScheduledJob, error)
	// RunDue 把到期任务投递到worker池，返回投递数量
	RunDue(ctx context.Context) (int, error)
	// RunNow 立即执行（同样受单飞保护）
	RunNow(ctx context.Context, id string) error
}
