package store

import (
	"context"
	"errors"
	"time"

	"github.com/codelieche/analytics/pkg/core"
	"github.com/codelieche/analytics/pkg/utils/filters"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NewScheduledJobStore 创建ScheduledJobStore实例
func NewScheduledJobStore(db *gorm.DB) core.ScheduledJobStore {
	return &ScheduledJobStore{
		db: db,
	}
}

// ScheduledJobStore 报表任务存储实现
type ScheduledJobStore struct {
	db *gorm.DB
}

// FindByID 根据ID获取任务
func (s *ScheduledJobStore) FindByID(ctx context.Context, id uuid.UUID) (*core.ScheduledJob, error) {
	var job = &core.ScheduledJob{}
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, core.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

// Create 创建任务
func (s *ScheduledJobStore) Create(ctx context.Context, job *core.ScheduledJob) (*core.ScheduledJob, error) {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	} else if _, err := s.FindByID(ctx, job.ID); err == nil {
		return nil, core.ErrConflict
	} else if err != core.ErrNotFound {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Create(job).Error; err != nil {
		return nil, err
	}
	return job, nil
}

// Update 更新可编辑的字段
// 运行状态（running/last_run/last_status）只能通过TryStartRun/FinishRun修改
func (s *ScheduledJobStore) Update(ctx context.Context, job *core.ScheduledJob) (*core.ScheduledJob, error) {
	if job.ID == uuid.Nil {
		return nil, errors.New("传入的ID无效")
	}
	if _, err := s.FindByID(ctx, job.ID); err != nil {
		return nil, err
	}

	err := s.db.WithContext(ctx).Model(&core.ScheduledJob{ID: job.ID}).Select(
		"name", "report_type", "params",
		"schedule_frequency", "schedule_hour", "schedule_minute", "schedule_day_of_week", "schedule_day_of_month",
		"export_formats", "notify_emails", "active", "next_run", "owner",
	).Updates(job).Error
	if err != nil {
		return nil, err
	}
	return s.FindByID(ctx, job.ID)
}

// SetActive 启用/停用任务，不影响正在执行的那一次
func (s *ScheduledJobStore) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	result := s.db.WithContext(ctx).Model(&core.ScheduledJob{}).Where("id = ?", id).Update("active", active)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// MySQL只统计实际变化的行，值相同也是0
		_, err := s.FindByID(ctx, id)
		return err
	}
	return nil
}

// Delete 删除任务（软删除）
func (s *ScheduledJobStore) Delete(ctx context.Context, id uuid.UUID) error {
	job, err := s.FindByID(ctx, id)
	if err != nil {
		return err
	}

	// 软删除只写deleted_at，deleted字段单独更新
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(job).Update("deleted", true).Error; err != nil {
			return err
		}
		return tx.Delete(job).Error
	})
}

// List 获取任务列表
func (s *ScheduledJobStore) List(ctx context.Context, offset int, limit int, filterActions ...filters.Filter) (jobs []*core.ScheduledJob, err error) {
	query := s.db.WithContext(ctx).Model(&core.ScheduledJob{}).Offset(offset).Limit(limit)
	query = applyFilters(query, filterActions)

	if err := query.Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// Count 统计任务数量
func (s *ScheduledJobStore) Count(ctx context.Context, filterActions ...filters.Filter) (int64, error) {
	var count int64
	query := applyFilters(s.db.WithContext(ctx).Model(&core.ScheduledJob{}), filterActions)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ListDue 到期的任务：active且next_run <= now，按next_run先后
func (s *ScheduledJobStore) ListDue(ctx context.Context, now time.Time, limit int) (jobs []*core.ScheduledJob, err error) {
	query := s.db.WithContext(ctx).
		Where("active = ? AND next_run IS NOT NULL AND next_run <= ?", true, now).
		Order("next_run ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// TryStartRun 把running从false改为true
// 只有一个调用方能更新成功，其它调用方得到false
func (s *ScheduledJobStore) TryStartRun(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	result := s.db.WithContext(ctx).Model(&core.ScheduledJob{}).
		Where("id = ? AND running = ?", id, false).
		Updates(map[string]interface{}{
			"running":        true,
			"run_started_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// TryStartDueRun 到期调度时使用
// 任务快照可能是上一次执行结束前查到的，next_run已经推进过的不再执行
func (s *ScheduledJobStore) TryStartDueRun(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	result := s.db.WithContext(ctx).Model(&core.ScheduledJob{}).
		Where("id = ? AND running = ? AND active = ? AND next_run IS NOT NULL AND next_run <= ?", id, false, true, now).
		Updates(map[string]interface{}{
			"running":        true,
			"run_started_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// FinishRun 结束一次执行
func (s *ScheduledJobStore) FinishRun(ctx context.Context, id uuid.UUID, lastRun time.Time, nextRun *time.Time, status string, errMsg string) error {
	return s.db.WithContext(ctx).Model(&core.ScheduledJob{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"running":        false,
			"run_started_at": nil,
			"last_run":       lastRun,
			"next_run":       nextRun,
			"last_status":    status,
			"last_error":     errMsg,
		}).Error
}

// ResetStaleRuns 把执行开始时间早于startedBefore的running标记清除
// 进程在执行中途退出时会留下running=true
func (s *ScheduledJobStore) ResetStaleRuns(ctx context.Context, startedBefore time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Model(&core.ScheduledJob{}).
		Where("running = ? AND (run_started_at IS NULL OR run_started_at < ?)", true, startedBefore).
		Updates(map[string]interface{}{
			"running":        false,
			"run_started_at": nil,
		})
	return result.RowsAffected, result.Error
}

// CreateRun 写入执行记录
func (s *ScheduledJobStore) CreateRun(ctx context.Context, run *core.ReportRun) (*core.ReportRun, error) {
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, err
	}
	return run, nil
}

// UpdateRun 更新执行结果
func (s *ScheduledJobStore) UpdateRun(ctx context.Context, run *core.ReportRun) error {
	if run.ID <= 0 {
		return errors.New("传入的ID无效")
	}
	return s.db.WithContext(ctx).Model(&core.ReportRun{ID: run.ID}).
		Select("finished_at", "status", "error_message", "exports").
		Updates(run).Error
}

// ListRuns 最近的执行记录
func (s *ScheduledJobStore) ListRuns(ctx context.Context, jobID uuid.UUID, limit int) (runs []*core.ReportRun, err error) {
	query := s.db.WithContext(ctx).Where("job_id = ?", jobID).Order("started_at DESC").Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}
