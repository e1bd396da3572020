package core

import (
	"context"
	"time"
)

// DateDimension 日期维度
// 每个自然日只有一行，date_key格式为YYYYMMDD
type DateDimension struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	DateKey     int       `gorm:"uniqueIndex;not null" json:"date_key"`
	Date        time.Time `gorm:"uniqueIndex;not null" json:"date"`
	Day         int       `json:"day"`
	DayOfWeek   int       `json:"day_of_week"` // 0=周一 ... 6=周日
	DayName     string    `gorm:"size:10" json:"day_name"`
	Month       int       `json:"month"`
	MonthName   string    `gorm:"size:10" json:"month_name"`
	Quarter     int       `json:"quarter"`
	Year        int       `json:"year"`
	IsWeekend   bool      `json:"is_weekend"`
	IsHoliday   bool      `json:"is_holiday"`
	HolidayName string    `gorm:"size:50" json:"holiday_name,omitempty"`
}

func (DateDimension) TableName() string { return "dim_date" }

// DateKeyOf 计算日期的date_key
func DateKeyOf(t time.Time) int {
	return t.Year()*10000 + int(t.Month())*100 + t.Day()
}

// NewDateDimension 根据某一天（已截断到0点）构建日期维度的属性
func NewDateDimension(day time.Time) *DateDimension {
	dayOfWeek := (int(day.Weekday()) + 6) % 7
	return &DateDimension{
		DateKey:   DateKeyOf(day),
		Date:      day,
		Day:       day.Day(),
		DayOfWeek: dayOfWeek,
		DayName:   day.Weekday().String(),
		Month:     int(day.Month()),
		MonthName: day.Month().String(),
		Quarter:   (int(day.Month())-1)/3 + 1,
		Year:      day.Year(),
		IsWeekend: dayOfWeek >= 5,
	}
}

// Dimension 低基数描述性维度（用户、分类、优先级、状态）
//
// 类型1缓慢变化维：按external_id覆盖写，不保留历史
type Dimension interface {
	TableName() string
	GetID() uint
	SetID(id uint)
	GetExternalID() string
	// UpdatableColumns 再次抽取时需要覆盖的列
	UpdatableColumns() []string
	// Touch 刷新last_updated
	Touch(now time.Time)
}

// UserDimension 用户维度
type UserDimension struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	ExternalID  string     `gorm:"size:64;uniqueIndex;not null" json:"external_id"`
	Username    string     `gorm:"size:100" json:"username"`
	Email       string     `gorm:"size:100" json:"email"`
	FullName    string     `gorm:"size:100" json:"full_name"`
	Department  string     `gorm:"size:100" json:"department"`
	Role        string     `gorm:"size:50" json:"role"`
	IsActive    bool       `json:"is_active"`
	LastLogin   *time.Time `json:"last_login"`
	LastUpdated time.Time  `json:"last_updated"`
}

func (UserDimension) TableName() string        { return "dim_user" }
func (d *UserDimension) GetID() uint           { return d.ID }
func (d *UserDimension) SetID(id uint)         { d.ID = id }
func (d *UserDimension) GetExternalID() string { return d.ExternalID }
func (d *UserDimension) Touch(now time.Time)   { d.LastUpdated = now }
func (d *UserDimension) UpdatableColumns() []string {
	return []string{"username", "email", "full_name", "department", "role", "is_active", "last_login", "last_updated"}
}

// CategoryDimension 分类维度，ParentID指向父分类
type CategoryDimension struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ExternalID  string    `gorm:"size:64;uniqueIndex;not null" json:"external_id"`
	Name        string    `gorm:"size:100" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	ParentID    *uint     `gorm:"index" json:"parent_id"`
	LastUpdated time.Time `json:"last_updated"`
}

func (CategoryDimension) TableName() string        { return "dim_category" }
func (d *CategoryDimension) GetID() uint           { return d.ID }
func (d *CategoryDimension) SetID(id uint)         { d.ID = id }
func (d *CategoryDimension) GetExternalID() string { return d.ExternalID }
func (d *CategoryDimension) Touch(now time.Time)   { d.LastUpdated = now }
func (d *CategoryDimension) UpdatableColumns() []string {
	return []string{"name", "description", "parent_id", "last_updated"}
}

// PriorityDimension 优先级维度
type PriorityDimension struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ExternalID  string    `gorm:"size:64;uniqueIndex;not null" json:"external_id"`
	Name        string    `gorm:"size:50" json:"name"`
	Level       int       `json:"level"`
	SLAMinutes  int       `gorm:"column:sla_minutes" json:"sla_minutes"`
	Description string    `gorm:"type:text" json:"description"`
	LastUpdated time.Time `json:"last_updated"`
}

func (PriorityDimension) TableName() string        { return "dim_priority" }
func (d *PriorityDimension) GetID() uint           { return d.ID }
func (d *PriorityDimension) SetID(id uint)         { d.ID = id }
func (d *PriorityDimension) GetExternalID() string { return d.ExternalID }
func (d *PriorityDimension) Touch(now time.Time)   { d.LastUpdated = now }
func (d *PriorityDimension) UpdatableColumns() []string {
	return []string{"name", "level", "sla_minutes", "description", "last_updated"}
}

// StatusDimension 状态维度
type StatusDimension struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ExternalID  string    `gorm:"size:64;uniqueIndex;not null" json:"external_id"`
	Name        string    `gorm:"size:50" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	IsOpen      bool      `json:"is_open"`
	IsClosed    bool      `json:"is_closed"`
	LastUpdated time.Time `json:"last_updated"`
}

func (StatusDimension) TableName() string        { return "dim_status" }
func (d *StatusDimension) GetID() uint           { return d.ID }
func (d *StatusDimension) SetID(id uint)         { d.ID = id }
func (d *StatusDimension) GetExternalID() string { return d.ExternalID }
func (d *StatusDimension) Touch(now time.Time)   { d.LastUpdated = now }
func (d *StatusDimension) UpdatableColumns() []string {
	return []string{"name", "description", "is_open", "is_closed", "last_updated"}
}

// TicketFact 工单事实表，每个源工单一行
type TicketFact struct {
	ID                    uint       `gorm:"primaryKey" json:"id"`
	ExternalTicketID      string     `gorm:"size:64;uniqueIndex;not null" json:"external_ticket_id"`
	Title                 string     `gorm:"size:255" json:"title"`
	CreatedDateID         uint       `gorm:"index;not null" json:"created_date_id"`
	UpdatedDateID         *uint      `gorm:"index" json:"updated_date_id"`
	ResolvedDateID        *uint      `gorm:"index" json:"resolved_date_id"`
	CreatorID             *uint      `gorm:"index" json:"creator_id"`
	AssigneeID            *uint      `gorm:"index" json:"assignee_id"`
	CategoryID            *uint      `gorm:"index" json:"category_id"`
	PriorityID            *uint      `gorm:"index" json:"priority_id"`
	StatusID              *uint      `gorm:"index" json:"status_id"`
	ResponseTimeMinutes   *float64   `json:"response_time_minutes"`
	ResolutionTimeMinutes *float64   `json:"resolution_time_minutes"`
	ReopenedCount         int        `json:"reopened_count"`
	CommentCount          int        `json:"comment_count"`
	AttachmentCount       int        `json:"attachment_count"`
	SourceCreatedAt       time.Time  `json:"source_created_at"`
	SourceResolvedAt      *time.Time `json:"source_resolved_at"`
	EtlUpdatedAt          time.Time  `json:"etl_updated_at"`
}

func (TicketFact) TableName() string { return "fact_ticket" }

// UserActivityFact 用户每日活跃度
// (user_id, date_id)唯一；一旦生成不再重新聚合
type UserActivityFact struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	DateID            uint      `gorm:"uniqueIndex:idx_user_activity_user_date;not null" json:"date_id"`
	UserID            uint      `gorm:"uniqueIndex:idx_user_activity_user_date;not null" json:"user_id"`
	TicketsCreated    int       `json:"tickets_created"`
	TicketsClosed     int       `json:"tickets_closed"`
	TicketsReopened   int       `json:"tickets_reopened"`
	CommentsCreated   int       `json:"comments_created"`
	Logins            int       `json:"logins"`
	ActiveTimeMinutes float64   `json:"active_time_minutes"`
	EtlUpdatedAt      time.Time `json:"etl_updated_at"`
}

func (UserActivityFact) TableName() string { return "fact_user_activity" }

// DateDimensionStore 日期维度存储
type DateDimensionStore interface {
	// Resolve 返回时间戳所在自然日的日期维度，不存在时创建（并发安全）
	Resolve(ctx context.Context, uow UnitOfWork, ts time.Time) (*DateDimension, error)
	FindByDate(ctx context.Context, day time.Time) (*DateDimension, error)
	// MarkHoliday 只修改节假日标记
	MarkHoliday(ctx context.Context, day time.Time, name string) (*DateDimension, error)
	Count(ctx context.Context) (int64, error)
}

// DimensionStore 描述性维度的通用存储
type DimensionStore interface {
	// Upsert 按external_id插入或覆盖可变属性，row会被回填为库中的最新行
	Upsert(ctx context.Context, uow UnitOfWork, row Dimension) error
	// Ensure 只保证external_id对应的行存在，不覆盖已有属性（工单只带了外键ID时使用）
	Ensure(ctx context.Context, uow UnitOfWork, row Dimension) error
	// FindByExternalID 查询到row中
	FindByExternalID(ctx context.Context, row Dimension, externalID string) error
	Count(ctx context.Context, model Dimension) (int64, error)
}

// TicketFactStore 工单事实存储
type TicketFactStore interface {
	// Upsert 按external_ticket_id插入或原地更新
	Upsert(ctx context.Context, uow UnitOfWork, fact *TicketFact) error
	FindByExternalID(ctx context.Context, externalID string) (*TicketFact, error)
	Count(ctx context.Context) (int64, error)
}

// UserActivityStore 用户活跃度存储
type UserActivityStore interface {
	// Aggregate 从工单事实表统计某天每个用户的活跃度（未落库）
	Aggregate(ctx context.Context, uow UnitOfWork, date *DateDimension) ([]*UserActivityFact, error)
	// CreateIfAbsent (user, date)不存在时创建，已存在返回false
	CreateIfAbsent(ctx context.Context, uow UnitOfWork, activity *UserActivityFact) (bool, error)
	Find(ctx context.Context, userID, dateID uint) (*UserActivityFact, error)
}
