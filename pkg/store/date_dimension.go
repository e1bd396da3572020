package store

import (
	"context"
	"errors"
	"time"

	"github.com/codelieche/analytics/pkg/core"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NewDateDimensionStore 创建DateDimensionStore实例
// loc: 数据仓库所在时区，时间戳按这个时区截断到天
func NewDateDimensionStore(db *gorm.DB, loc *time.Location) core.DateDimensionStore {
	if loc == nil {
		loc = time.UTC
	}
	return &DateDimensionStore{
		db:  db,
		loc: loc,
	}
}

// DateDimensionStore 日期维度存储实现
type DateDimensionStore struct {
	db  *gorm.DB
	loc *time.Location
}

// calendarDay 时间戳在仓库时区下的自然日，统一用UTC 0点表示
func (s *DateDimensionStore) calendarDay(ts time.Time) time.Time {
	local := ts.In(s.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

// Resolve 返回时间戳对应的日期维度，不存在时创建
//
// 并发创建同一天时依赖date_key的唯一约束：插入冲突时什么也不做，然后重新查询
func (s *DateDimensionStore) Resolve(ctx context.Context, uow core.UnitOfWork, ts time.Time) (*core.DateDimension, error) {
	day := s.calendarDay(ts)
	dateKey := core.DateKeyOf(day)
	conn := connOf(ctx, s.db, uow)

	var dim core.DateDimension
	err := conn.Where("date_key = ?", dateKey).Take(&dim).Error
	if err == nil {
		return &dim, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	row := core.NewDateDimension(day)
	if err := conn.Clauses(clause.OnConflict{DoNothing: true}).Create(row).Error; err != nil {
		return nil, err
	}

	// 可能是别的协程插入的，以库中的为准
	dim = core.DateDimension{}
	if err := conn.Where("date_key = ?", dateKey).Take(&dim).Error; err != nil {
		return nil, err
	}
	return &dim, nil
}

// FindByDate 查询某一天的日期维度
func (s *DateDimensionStore) FindByDate(ctx context.Context, day time.Time) (*core.DateDimension, error) {
	var dim core.DateDimension
	if err := s.db.WithContext(ctx).Where("date_key = ?", core.DateKeyOf(s.calendarDay(day))).Take(&dim).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, core.ErrNotFound
		}
		return nil, err
	}
	return &dim, nil
}

// MarkHoliday 设置节假日，name为空时取消节假日标记
// 日期维度行不存在时先创建
func (s *DateDimensionStore) MarkHoliday(ctx context.Context, day time.Time, name string) (*core.DateDimension, error) {
	var result *core.DateDimension
	err := NewUnitOfWork(s.db).Transaction(ctx, func(tx core.UnitOfWork) error {
		dim, err := s.Resolve(ctx, tx, day)
		if err != nil {
			return err
		}
		updates := map[string]interface{}{
			"is_holiday":   name != "",
			"holiday_name": name,
		}
		if err := tx.Conn(ctx).Model(&core.DateDimension{}).Where("id = ?", dim.ID).Updates(updates).Error; err != nil {
			return err
		}
		dim.IsHoliday = name != ""
		dim.HolidayName = name
		result = dim
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Count 日期维度行数
func (s *DateDimensionStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&core.DateDimension{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
