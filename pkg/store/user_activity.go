package store

import (
	"context"
	"errors"
	"time"

	"github.com/codelieche/analytics/pkg/core"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NewUserActivityStore 创建UserActivityStore实例
func NewUserActivityStore(db *gorm.DB) core.UserActivityStore {
	return &UserActivityStore{
		db: db,
	}
}

// UserActivityStore 用户活跃度存储实现
type UserActivityStore struct {
	db *gorm.DB
}

type userCount struct {
	UserID uint
	Total  int
}

// Aggregate 统计某天所有用户的活跃度
//
//   - tickets_created: 当天创建、创建人为该用户的工单数
//   - tickets_closed: 当天解决、处理人为该用户且状态为已关闭的工单数
//
// 重新打开次数、评论数、登录等上游没有提供，保持为0
func (s *UserActivityStore) Aggregate(ctx context.Context, uow core.UnitOfWork, date *core.DateDimension) ([]*core.UserActivityFact, error) {
	conn := connOf(ctx, s.db, uow)

	var userIDs []uint
	if err := conn.Model(&core.UserDimension{}).Order("id").Pluck("id", &userIDs).Error; err != nil {
		return nil, err
	}

	var created []userCount
	if err := conn.Model(&core.TicketFact{}).
		Select("creator_id AS user_id, COUNT(*) AS total").
		Where("created_date_id = ? AND creator_id IS NOT NULL", date.ID).
		Group("creator_id").
		Scan(&created).Error; err != nil {
		return nil, err
	}

	var closed []userCount
	if err := conn.Model(&core.TicketFact{}).
		Select("fact_ticket.assignee_id AS user_id, COUNT(*) AS total").
		Joins("JOIN dim_status ON dim_status.id = fact_ticket.status_id").
		Where("fact_ticket.resolved_date_id = ? AND fact_ticket.assignee_id IS NOT NULL AND dim_status.is_closed = ?", date.ID, true).
		Group("fact_ticket.assignee_id").
		Scan(&closed).Error; err != nil {
		return nil, err
	}

	createdMap := make(map[uint]int, len(created))
	for _, item := range created {
		createdMap[item.UserID] = item.Total
	}
	closedMap := make(map[uint]int, len(closed))
	for _, item := range closed {
		closedMap[item.UserID] = item.Total
	}

	now := time.Now().UTC()
	activities := make([]*core.UserActivityFact, 0, len(userIDs))
	for _, userID := range userIDs {
		activities = append(activities, &core.UserActivityFact{
			DateID:         date.ID,
			UserID:         userID,
			TicketsCreated: createdMap[userID],
			TicketsClosed:  closedMap[userID],
			EtlUpdatedAt:   now,
		})
	}
	return activities, nil
}

// CreateIfAbsent (user_id, date_id)不存在时插入
// 已存在的行不会被重新聚合，返回false
func (s *UserActivityStore) CreateIfAbsent(ctx context.Context, uow core.UnitOfWork, activity *core.UserActivityFact) (bool, error) {
	conn := connOf(ctx, s.db, uow)

	activity.ID = 0
	result := conn.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "date_id"}},
		DoNothing: true,
	}).Create(activity)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Find 查询某个用户某天的活跃度
func (s *UserActivityStore) Find(ctx context.Context, userID, dateID uint) (*core.UserActivityFact, error) {
	var activity = &core.UserActivityFact{}
	if err := s.db.WithContext(ctx).Where("user_id = ? AND date_id = ?", userID, dateID).Take(activity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, core.ErrNotFound
		}
		return nil, err
	}
	return activity, nil
}
