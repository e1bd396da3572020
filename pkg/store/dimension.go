package store

import (
	"context"
	"errors"
	"time"

	"github.com/codelieche/analytics/pkg/core"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NewDimensionStore 创建DimensionStore实例
// 用户、分类、优先级、状态四个维度共用同一套写入逻辑
func NewDimensionStore(db *gorm.DB) core.DimensionStore {
	return &DimensionStore{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// DimensionStore 维度存储实现
type DimensionStore struct {
	db  *gorm.DB
	now func() time.Time
}

// Upsert 按external_id插入或覆盖（类型1缓慢变化维）
//
// 写入后按external_id重新查询，row被回填为库中的行（带内部ID）
func (s *DimensionStore) Upsert(ctx context.Context, uow core.UnitOfWork, row core.Dimension) error {
	if row.GetExternalID() == "" {
		return errors.New("维度external_id不能为空")
	}
	conn := connOf(ctx, s.db, uow)

	row.SetID(0)
	row.Touch(s.now())
	err := conn.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns(row.UpdatableColumns()),
	}).Create(row).Error
	if err != nil {
		return err
	}

	return s.reload(conn, row)
}

// Ensure 保证external_id对应的行存在
// 已存在时不修改任何属性，不存在时按row中的属性插入
func (s *DimensionStore) Ensure(ctx context.Context, uow core.UnitOfWork, row core.Dimension) error {
	if row.GetExternalID() == "" {
		return errors.New("维度external_id不能为空")
	}
	conn := connOf(ctx, s.db, uow)

	row.SetID(0)
	row.Touch(s.now())
	err := conn.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_id"}},
		DoNothing: true,
	}).Create(row).Error
	if err != nil {
		return err
	}

	return s.reload(conn, row)
}

// reload 按external_id重新读取整行
// 冲突时部分数据库不会回填自增ID，所以不依赖Create的回填结果
func (s *DimensionStore) reload(conn *gorm.DB, row core.Dimension) error {
	externalID := row.GetExternalID()
	row.SetID(0)
	if err := conn.Table(row.TableName()).Where("external_id = ?", externalID).Take(row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return core.ErrNotFound
		}
		return err
	}
	return nil
}

// FindByExternalID 按external_id查询，结果写入row
func (s *DimensionStore) FindByExternalID(ctx context.Context, row core.Dimension, externalID string) error {
	if err := s.db.WithContext(ctx).Table(row.TableName()).Where("external_id = ?", externalID).Take(row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return core.ErrNotFound
		}
		return err
	}
	return nil
}

// Count 维度行数
func (s *DimensionStore) Count(ctx context.Context, model core.Dimension) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Table(model.TableName()).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
