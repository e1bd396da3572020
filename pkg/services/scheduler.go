package services

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/codelieche/analytics/pkg/core"
	"github.com/codelieche/analytics/pkg/monitoring"
	"github.com/codelieche/analytics/pkg/utils/filters"
	"github.com/codelieche/analytics/pkg/utils/logger"
	"github.com/codelieche/analytics/pkg/utils/tools"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// dueBatchSize 每次到期检查最多取出的任务数
const dueBatchSize = 100

// ReportSchedulerOptions 调度器依赖
type ReportSchedulerOptions struct {
	Store    core.ScheduledJobStore
	Runner   core.ReportRunner
	Pool     *WorkerPool
	Location *time.Location   // 调度配置中的时、分按这个时区解释
	Now      func() time.Time // 时钟，测试时注入
}

// NewReportScheduler 创建调度器，进程内只需要一个实例
func NewReportScheduler(opts *ReportSchedulerOptions) *ReportScheduler {
	s := &ReportScheduler{
		store:  opts.Store,
		runner: opts.Runner,
		pool:   opts.Pool,
		loc:    opts.Location,
		now:    opts.Now,
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.pool == nil {
		s.pool = NewWorkerPool("report", 4)
	}
	return s
}

// ReportScheduler 报表任务调度
//
// 到期：active且next_run <= now
// 执行后（无论成功失败）：last_run = now，next_run = CalculateNextRun(schedule, now)
// 同一个任务同时只有一次执行（running标记的比较并交换）
type ReportScheduler struct {
	store  core.ScheduledJobStore
	runner core.ReportRunner
	pool   *WorkerPool
	loc    *time.Location
	now    func() time.Time
}

// nextRun 从now开始计算下次执行时间，返回UTC
func (s *ReportScheduler) nextRun(spec core.ScheduleSpec, now time.Time) (*time.Time, error) {
	next, err := tools.CalculateNextRun(spec, now.In(s.loc))
	if err != nil {
		return nil, err
	}
	next = next.UTC()
	return &next, nil
}

// validate 校验报表类型、参数、导出格式、收件人和调度配置
func (s *ReportScheduler) validate(job *core.ScheduledJob) error {
	if job.Name == "" {
		return fmt.Errorf("%w: 任务名称不能为空", core.ErrBadRequest)
	}
	if _, err := core.ParseReportType(job.ReportType); err != nil {
		return err
	}
	params, err := ParseReportParams(job.Params)
	if err != nil {
		return err
	}
	if err := params.Validate(); err != nil {
		return err
	}
	if len(job.ExportFormats) == 0 {
		job.ExportFormats = datatypes.JSONSlice[string]{string(core.ExportJSON)}
	}
	for _, format := range job.ExportFormats {
		if _, err := core.ParseExportFormat(format); err != nil {
			return err
		}
	}
	for _, email := range job.NotifyEmails {
		if _, err := mail.ParseAddress(email); err != nil {
			return fmt.Errorf("%w: 无效的邮箱 %q", core.ErrBadRequest, email)
		}
	}
	return tools.ValidateSchedule(job.Schedule)
}

func parseJobID(id string) (uuid.UUID, error) {
	jobID, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: 无效的任务ID %q", core.ErrBadRequest, id)
	}
	return jobID, nil
}

// Create 创建任务并计算第一次执行时间
func (s *ReportScheduler) Create(ctx context.Context, job *core.ScheduledJob) (*core.ScheduledJob, error) {
	if err := s.validate(job); err != nil {
		logger.Warn("invalid report job", zap.String("name", job.Name), zap.Error(err))
		return nil, err
	}

	nextRun, err := s.nextRun(job.Schedule, s.now())
	if err != nil {
		return nil, err
	}
	job.NextRun = nextRun
	job.Active = true
	job.Running = false
	job.RunStartedAt = nil
	job.LastRun = nil

	result, err := s.store.Create(ctx, job)
	if err != nil {
		if err != core.ErrConflict {
			logger.Error("create report job error", zap.Error(err))
		}
		return nil, err
	}

	logger.Info("报表任务已创建",
		zap.String("job_id", result.ID.String()),
		zap.String("report_type", result.ReportType),
		zap.Time("next_run", *result.NextRun))
	return result, nil
}

// Update 更新任务，重新计算next_run
func (s *ReportScheduler) Update(ctx context.Context, job *core.ScheduledJob) (*core.ScheduledJob, error) {
	if job.ID == uuid.Nil {
		return nil, core.ErrBadRequest
	}
	if _, err := s.store.FindByID(ctx, job.ID); err != nil {
		return nil, err
	}
	if err := s.validate(job); err != nil {
		return nil, err
	}

	nextRun, err := s.nextRun(job.Schedule, s.now())
	if err != nil {
		return nil, err
	}
	job.NextRun = nextRun

	result, err := s.store.Update(ctx, job)
	if err != nil {
		logger.Error("update report job error", zap.Error(err), zap.String("job_id", job.ID.String()))
	}
	return result, err
}

// Cancel 停用任务，正在执行的那一次不受影响
func (s *ReportScheduler) Cancel(ctx context.Context, id string) (*core.ScheduledJob, error) {
	jobID, err := parseJobID(id)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetActive(ctx, jobID, false); err != nil {
		return nil, err
	}
	logger.Info("报表任务已取消", zap.String("job_id", id))
	return s.store.FindByID(ctx, jobID)
}

// Delete 删除任务
func (s *ReportScheduler) Delete(ctx context.Context, id string) error {
	jobID, err := parseJobID(id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, jobID); err != nil {
		if err != core.ErrNotFound {
			logger.Error("delete report job error", zap.Error(err), zap.String("job_id", id))
		}
		return err
	}
	return nil
}

// FindByID 根据ID获取任务
func (s *ReportScheduler) FindByID(ctx context.Context, id string) (*core.ScheduledJob, error) {
	jobID, err := parseJobID(id)
	if err != nil {
		return nil, err
	}
	return s.store.FindByID(ctx, jobID)
}

// List 任务列表
func (s *ReportScheduler) List(ctx context.Context, offset int, limit int, filterActions ...filters.Filter) ([]*core.ScheduledJob, error) {
	jobs, err := s.store.List(ctx, offset, limit, filterActions...)
	if err != nil {
		logger.Error("list report jobs error", zap.Error(err))
	}
	return jobs, err
}

// Count 任务数量
func (s *ReportScheduler) Count(ctx context.Context, filterActions ...filters.Filter) (int64, error) {
	return s.store.Count(ctx, filterActions...)
}

// ListRuns 任务最近的执行记录
func (s *ReportScheduler) ListRuns(ctx context.Context, id string, limit int) ([]*core.ReportRun, error) {
	jobID, err := parseJobID(id)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.FindByID(ctx, jobID); err != nil {
		return nil, err
	}
	return s.store.ListRuns(ctx, jobID, limit)
}

// Due 当前到期的任务
func (s *ReportScheduler) Due(ctx context.Context) ([]*core.ScheduledJob, error) {
	return s.store.ListDue(ctx, s.now().UTC(), dueBatchSize)
}

// RunDue 把到期任务投递到worker池
// 正在执行的任务跳过；池满时剩下的任务留到下一次检查
func (s *ReportScheduler) RunDue(ctx context.Context) (int, error) {
	jobs, err := s.Due(ctx)
	if err != nil {
		logger.Error("list due report jobs error", zap.Error(err))
		return 0, err
	}

	dispatched := 0
	for _, job := range jobs {
		if job.Running {
			continue
		}
		job := job
		ok := s.pool.TryGo(ctx, job.ID.String(), func(ctx context.Context) {
			if err := s.execute(ctx, job, true); err != nil && err != core.ErrJobRunning {
				logger.Warn("report job failed", zap.String("job_id", job.ID.String()), zap.Error(err))
			}
		})
		if !ok {
			logger.Info("report worker pool is full, remaining jobs wait for next check",
				zap.Int("due", len(jobs)), zap.Int("dispatched", dispatched))
			break
		}
		dispatched++
	}
	return dispatched, nil
}

// RunNow 立即在后台执行一次（不改变是否active）
// 任务正在执行时返回ErrJobRunning
func (s *ReportScheduler) RunNow(ctx context.Context, id string) error {
	job, err := s.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if job.Running {
		return core.ErrJobRunning
	}

	// 请求结束后继续执行
	s.pool.Go(context.WithoutCancel(ctx), job.ID.String(), func(ctx context.Context) {
		if err := s.Execute(ctx, job); err != nil && err != core.ErrJobRunning {
			logger.Warn("report job failed", zap.String("job_id", job.ID.String()), zap.Error(err))
		}
	})
	return nil
}

// Execute 执行一次任务
//
//  1. running标记CAS，已经在执行时返回ErrJobRunning
//  2. 写执行记录，调用ReportRunner
//  3. 无论成败都推进next_run，失败的任务等下一个正常周期
func (s *ReportScheduler) Execute(ctx context.Context, job *core.ScheduledJob) error {
	return s.execute(ctx, job, false)
}

// execute due为true时是到期调度，要求任务仍然到期（同一周期已经执行过的跳过）
func (s *ReportScheduler) execute(ctx context.Context, job *core.ScheduledJob, due bool) (err error) {
	startedAt := s.now().UTC()
	var ok bool
	if due {
		ok, err = s.store.TryStartDueRun(ctx, job.ID, startedAt)
	} else {
		ok, err = s.store.TryStartRun(ctx, job.ID, startedAt)
	}
	if err != nil {
		return err
	}
	if !ok {
		logger.Info("report job is running or not due, skip", zap.String("job_id", job.ID.String()), zap.Bool("due", due))
		monitoring.GlobalMetrics.ReportSkipped.WithLabelValues(job.ReportType).Inc()
		return core.ErrJobRunning
	}

	run, createErr := s.store.CreateRun(ctx, &core.ReportRun{
		JobID:     job.ID,
		StartedAt: startedAt,
		Status:    core.JobStatusRunning,
	})
	if createErr != nil {
		logger.Error("create report run error", zap.Error(createErr), zap.String("job_id", job.ID.String()))
	}

	var exports []string
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("report panic: %v", r)
		}
		s.finish(job, run, startedAt, exports, err)
	}()

	exports, err = s.runner.Execute(ctx, job)
	return err
}

// finish 清除running标记、推进next_run、写入执行结果
// 使用独立的context，执行被取消时也要释放running标记
func (s *ReportScheduler) finish(job *core.ScheduledJob, run *core.ReportRun, startedAt time.Time, exports []string, runErr error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	finishedAt := s.now().UTC()
	status, errMsg := core.JobStatusSuccess, ""
	if runErr != nil {
		status, errMsg = core.JobStatusFailed, runErr.Error()
	}

	nextRun, err := s.nextRun(job.Schedule, finishedAt)
	if err != nil {
		// 配置在创建时已经校验过，这里只可能是数据被改坏了：停止调度
		logger.Error("calculate next run error", zap.String("job_id", job.ID.String()), zap.Error(err))
		nextRun = nil
	}
	if err := s.store.FinishRun(ctx, job.ID, finishedAt, nextRun, status, errMsg); err != nil {
		logger.Error("finish report job error", zap.String("job_id", job.ID.String()), zap.Error(err))
	}

	if run != nil {
		run.FinishedAt = &finishedAt
		run.Status = status
		run.ErrorMessage = errMsg
		run.Exports = exports
		if err := s.store.UpdateRun(ctx, run); err != nil {
			logger.Error("update report run error", zap.Uint("run_id", run.ID), zap.Error(err))
		}
	}

	duration := finishedAt.Sub(startedAt)
	monitoring.GlobalMetrics.RecordReportExecution(job.ReportType, status, duration)
	fields := []zap.Field{
		zap.String("job_id", job.ID.String()),
		zap.String("report_type", job.ReportType),
		zap.String("status", status),
		zap.Duration("duration", duration),
	}
	if nextRun != nil {
		fields = append(fields, zap.Time("next_run", *nextRun))
	}
	if runErr != nil {
		logger.Error("报表任务执行失败", append(fields, zap.Error(runErr))...)
	} else {
		logger.Info("报表任务执行完成", append(fields, zap.Strings("exports", exports))...)
	}
}

// ResetStaleRuns 清理超过maxRuntime仍为running的任务（进程崩溃残留）
func (s *ReportScheduler) ResetStaleRuns(ctx context.Context, maxRuntime time.Duration) (int64, error) {
	count, err := s.store.ResetStaleRuns(ctx, s.now().UTC().Add(-maxRuntime))
	if err != nil {
		logger.Error("reset stale report runs error", zap.Error(err))
		return 0, err
	}
	if count > 0 {
		logger.Warn("reset stale report runs", zap.Int64("count", count))
	}
	return count, nil
}

// Wait 等待已投递的任务执行完（优雅关闭）
func (s *ReportScheduler) Wait() {
	s.pool.Wait()
}
