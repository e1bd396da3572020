package store

import (
	"context"
	"errors"

	"github.com/codelieche/analytics/pkg/core"
	"github.com/codelieche/analytics/pkg/utils/filters"
	"gorm.io/gorm"
)

// NewETLRunLogStore 创建ETLRunLogStore实例
func NewETLRunLogStore(db *gorm.DB) core.ETLRunLogStore {
	return &ETLRunLogStore{
		db: db,
	}
}

// ETLRunLogStore ETL运行日志存储实现
type ETLRunLogStore struct {
	db *gorm.DB
}

// Create 写入运行日志
func (s *ETLRunLogStore) Create(ctx context.Context, log *core.ETLRunLog) (*core.ETLRunLog, error) {
	if err := s.db.WithContext(ctx).Create(log).Error; err != nil {
		return nil, err
	}
	return log, nil
}

// Update 更新运行结果
func (s *ETLRunLogStore) Update(ctx context.Context, log *core.ETLRunLog) error {
	if log.ID <= 0 {
		return errors.New("传入的ID无效")
	}
	return s.db.WithContext(ctx).Model(&core.ETLRunLog{ID: log.ID}).Select(
		"end_time", "status", "records_processed", "records_skipped", "error_message", "details",
	).Updates(log).Error
}

// FindByID 根据ID获取运行日志
func (s *ETLRunLogStore) FindByID(ctx context.Context, id uint) (*core.ETLRunLog, error) {
	var log = &core.ETLRunLog{}
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(log).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, core.ErrNotFound
		}
		return nil, err
	}
	return log, nil
}

// List 获取运行日志列表，默认按开始时间倒序
func (s *ETLRunLogStore) List(ctx context.Context, offset int, limit int, filterActions ...filters.Filter) (logs []*core.ETLRunLog, err error) {
	query := s.db.WithContext(ctx).Model(&core.ETLRunLog{}).Offset(offset).Limit(limit)
	query = applyFilters(query, filterActions)

	if err := query.Order("start_time DESC").Order("id DESC").Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

// Count 统计运行日志数量
func (s *ETLRunLogStore) Count(ctx context.Context, filterActions ...filters.Filter) (int64, error) {
	var count int64
	query := applyFilters(s.db.WithContext(ctx).Model(&core.ETLRunLog{}), filterActions)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
