package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/codelieche/analytics/pkg/core"
	"github.com/codelieche/analytics/pkg/utils/logger"
	"go.uber.org/zap"
)

// 源系统时间戳可能出现的格式
// 不带时区的按UTC处理
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// parseTimestamp 解析可选的时间戳，空字符串返回nil
func parseTimestamp(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" || value == "null" {
		return nil, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			utc := t.UTC()
			return &utc, nil
		}
	}
	return nil, errors.New("无法解析的时间: " + value)
}

// optionalTimestamp 可选字段解析失败时当作缺失
func optionalTimestamp(field, value, record string) *time.Time {
	t, err := parseTimestamp(value)
	if err != nil {
		logger.Warn("ignore invalid timestamp", zap.String("record", record), zap.String("field", field), zap.Error(err))
		return nil
	}
	return t
}

// minutesBetween 两个时间都存在时返回分钟差
func minutesBetween(from, to *time.Time) *float64 {
	if from == nil || to == nil {
		return nil
	}
	minutes := to.Sub(*from).Seconds() / 60
	return &minutes
}

// NewFactLoader 创建FactLoader实例
func NewFactLoader(
	uow core.UnitOfWork,
	dateStore core.DateDimensionStore,
	dimensionStore core.DimensionStore,
	factStore core.TicketFactStore,
	activityStore core.UserActivityStore,
) core.FactLoader {
	return &FactLoader{
		uow:            uow,
		dateStore:      dateStore,
		dimensionStore: dimensionStore,
		factStore:      factStore,
		activityStore:  activityStore,
		now:            time.Now,
	}
}

// FactLoader 事实/维度加载
// 每条记录一个事务：失败只回滚这一条，之前提交的数据不受影响
type FactLoader struct {
	uow            core.UnitOfWork
	dateStore      core.DateDimensionStore
	dimensionStore core.DimensionStore
	factStore      core.TicketFactStore
	activityStore  core.UserActivityStore
	now            func() time.Time
}

// LoadUser 写入用户维度
func (l *FactLoader) LoadUser(ctx context.Context, raw *core.RawUser) (*core.UserDimension, error) {
	if raw.ID == "" {
		return nil, &core.TransformError{Record: "user:" + raw.Username, Err: errors.New("缺少用户ID")}
	}

	user := &core.UserDimension{
		ExternalID: raw.ID.String(),
		Username:   raw.Username,
		Email:      raw.Email,
		FullName:   raw.FullName,
		Department: raw.Department,
		Role:       raw.Role,
		IsActive:   raw.IsActive == nil || *raw.IsActive,
		LastLogin:  optionalTimestamp("last_login", raw.LastLogin, "user:"+raw.ID.String()),
	}

	if err := l.dimensionStore.Upsert(ctx, l.uow, user); err != nil {
		return nil, &core.PersistenceError{Entity: "dim_user", Key: user.ExternalID, Err: err}
	}
	return user, nil
}

// LoadCategory 写入分类维度
// 父分类按外部ID解析成内部ID，父分类还没抽取到时先占位
func (l *FactLoader) LoadCategory(ctx context.Context, raw *core.RawCategory) (*core.CategoryDimension, error) {
	if raw.ID == "" {
		return nil, &core.TransformError{Record: "category:" + raw.Name, Err: errors.New("缺少分类ID")}
	}

	category := &core.CategoryDimension{
		ExternalID:  raw.ID.String(),
		Name:        raw.Name,
		Description: raw.Description,
	}

	err := l.uow.Transaction(ctx, func(tx core.UnitOfWork) error {
		if raw.ParentID != "" && raw.ParentID != raw.ID {
			parent := &core.CategoryDimension{ExternalID: raw.ParentID.String()}
			if err := l.dimensionStore.Ensure(ctx, tx, parent); err != nil {
				return err
			}
			category.ParentID = &parent.ID
		}
		return l.dimensionStore.Upsert(ctx, tx, category)
	})
	if err != nil {
		return nil, &core.PersistenceError{Entity: "dim_category", Key: category.ExternalID, Err: err}
	}
	return category, nil
}

// LoadTicket 写入一条工单事实
//
// 1. 校验并解析时间：缺少ID或created_at返回TransformError，其它时间缺失只会让对应指标为空
// 2. 在同一个事务中解析所有维度外键，再按external_ticket_id写入事实
func (l *FactLoader) LoadTicket(ctx context.Context, raw *core.RawTicket) (*core.TicketFact, error) {
	if raw.ID == "" {
		return nil, &core.TransformError{Record: "ticket:" + raw.Title, Err: errors.New("缺少工单ID")}
	}
	record := "ticket:" + raw.ID.String()

	createdAt, err := parseTimestamp(raw.CreatedAt)
	if err != nil {
		return nil, &core.TransformError{Record: record, Err: err}
	}
	if createdAt == nil {
		return nil, &core.TransformError{Record: record, Err: errors.New("缺少created_at")}
	}
	updatedAt := optionalTimestamp("updated_at", raw.UpdatedAt, record)
	resolvedAt := optionalTimestamp("resolved_at", raw.ResolvedAt, record)
	firstResponseAt := optionalTimestamp("first_response_at", raw.FirstResponseAt, record)

	fact := &core.TicketFact{
		ExternalTicketID:      raw.ID.String(),
		Title:                 raw.Title,
		ResponseTimeMinutes:   minutesBetween(createdAt, firstResponseAt),
		ResolutionTimeMinutes: minutesBetween(createdAt, resolvedAt),
		ReopenedCount:         raw.ReopenedCount,
		CommentCount:          raw.CommentCount,
		AttachmentCount:       raw.AttachmentCount,
		SourceCreatedAt:       *createdAt,
		SourceResolvedAt:      resolvedAt,
		EtlUpdatedAt:          l.now().UTC(),
	}

	err = l.uow.Transaction(ctx, func(tx core.UnitOfWork) error {
		// 日期维度
		createdDate, err := l.dateStore.Resolve(ctx, tx, *createdAt)
		if err != nil {
			return err
		}
		fact.CreatedDateID = createdDate.ID

		if updatedAt != nil {
			updatedDate, err := l.dateStore.Resolve(ctx, tx, *updatedAt)
			if err != nil {
				return err
			}
			fact.UpdatedDateID = &updatedDate.ID
		}
		if resolvedAt != nil {
			resolvedDate, err := l.dateStore.Resolve(ctx, tx, *resolvedAt)
			if err != nil {
				return err
			}
			fact.ResolvedDateID = &resolvedDate.ID
		}

		// 描述性维度
		if fact.CreatorID, err = l.ensure(ctx, tx, raw.CreatedBy, &core.UserDimension{}); err != nil {
			return err
		}
		if fact.AssigneeID, err = l.ensure(ctx, tx, raw.AssignedTo, &core.UserDimension{}); err != nil {
			return err
		}
		if fact.CategoryID, err = l.ensure(ctx, tx, raw.CategoryID, &core.CategoryDimension{}); err != nil {
			return err
		}
		if fact.PriorityID, err = l.resolvePriority(ctx, tx, raw); err != nil {
			return err
		}
		if fact.StatusID, err = l.resolveStatus(ctx, tx, raw); err != nil {
			return err
		}

		return l.factStore.Upsert(ctx, tx, fact)
	})
	if err != nil {
		return nil, &core.PersistenceError{Entity: "fact_ticket", Key: fact.ExternalTicketID, Err: err}
	}
	return fact, nil
}

// ensure 工单只带了外键ID时，保证对应维度行存在并返回内部ID
func (l *FactLoader) ensure(ctx context.Context, tx core.UnitOfWork, externalID core.ExternalID, row core.Dimension) (*uint, error) {
	if externalID == "" {
		return nil, nil
	}
	switch d := row.(type) {
	case *core.UserDimension:
		d.ExternalID = externalID.String()
		d.IsActive = true
	case *core.CategoryDimension:
		d.ExternalID = externalID.String()
	case *core.PriorityDimension:
		d.ExternalID = externalID.String()
	case *core.StatusDimension:
		d.ExternalID = externalID.String()
	}
	if err := l.dimensionStore.Ensure(ctx, tx, row); err != nil {
		return nil, err
	}
	id := row.GetID()
	return &id, nil
}

// resolvePriority 工单内嵌了优先级详情时覆盖写入，否则只保证行存在
func (l *FactLoader) resolvePriority(ctx context.Context, tx core.UnitOfWork, raw *core.RawTicket) (*uint, error) {
	if raw.Priority == nil {
		return l.ensure(ctx, tx, raw.PriorityID, &core.PriorityDimension{})
	}

	externalID := raw.Priority.ID
	if externalID == "" {
		externalID = raw.PriorityID
	}
	if externalID == "" {
		return nil, nil
	}

	priority := &core.PriorityDimension{
		ExternalID:  externalID.String(),
		Name:        raw.Priority.Name,
		Level:       raw.Priority.Level,
		SLAMinutes:  raw.Priority.SLAMinutes,
		Description: raw.Priority.Description,
	}
	if err := l.dimensionStore.Upsert(ctx, tx, priority); err != nil {
		return nil, err
	}
	return &priority.ID, nil
}

// resolveStatus 同resolvePriority
func (l *FactLoader) resolveStatus(ctx context.Context, tx core.UnitOfWork, raw *core.RawTicket) (*uint, error) {
	if raw.Status == nil {
		return l.ensure(ctx, tx, raw.StatusID, &core.StatusDimension{})
	}

	externalID := raw.Status.ID
	if externalID == "" {
		externalID = raw.StatusID
	}
	if externalID == "" {
		return nil, nil
	}

	status := &core.StatusDimension{
		ExternalID:  externalID.String(),
		Name:        raw.Status.Name,
		Description: raw.Status.Description,
		IsClosed:    raw.Status.IsClosed != nil && *raw.Status.IsClosed,
	}
	// 只给了is_closed时，is_open取反
	if raw.Status.IsOpen != nil {
		status.IsOpen = *raw.Status.IsOpen
	} else {
		status.IsOpen = !status.IsClosed
	}
	if err := l.dimensionStore.Upsert(ctx, tx, status); err != nil {
		return nil, err
	}
	return &status.ID, nil
}

// LoadUserActivity 生成某天每个用户的活跃度
// 已经存在的(user, date)行保持不变，返回新建的行数
func (l *FactLoader) LoadUserActivity(ctx context.Context, day time.Time) (int, error) {
	created := 0
	err := l.uow.Transaction(ctx, func(tx core.UnitOfWork) error {
		date, err := l.dateStore.Resolve(ctx, tx, day)
		if err != nil {
			return err
		}

		activities, err := l.activityStore.Aggregate(ctx, tx, date)
		if err != nil {
			return err
		}

		for _, activity := range activities {
			ok, err := l.activityStore.CreateIfAbsent(ctx, tx, activity)
			if err != nil {
				return err
			}
			if ok {
				created++
			}
		}
		return nil
	})
	if err != nil {
		return 0, &core.PersistenceError{Entity: "fact_user_activity", Key: day.Format("2006-01-02"), Err: err}
	}
	return created, nil
}
