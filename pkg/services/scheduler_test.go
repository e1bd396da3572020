package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/codelieche/analytics/pkg/core"
	"github.com/codelieche/analytics/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

// fakeRunner 记录执行次数，可阻塞或返回错误
type fakeRunner struct {
	calls   int32
	err     error
	block   chan struct{}
	started chan struct{}
	once    sync.Once
}

func (r *fakeRunner) Execute(ctx context.Context, job *core.ScheduledJob) ([]string, error) {
	atomic.AddInt32(&r.calls, 1)
	if r.started != nil {
		r.once.Do(func() { close(r.started) })
	}
	if r.block != nil {
		<-r.block
	}
	if r.err != nil {
		return nil, r.err
	}
	return []string{"json:kpi_summary.json"}, nil
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func intPtr(v int) *int { return &v }

func newTestScheduler(t *testing.T, runner core.ReportRunner, clock *testClock) (*ReportScheduler, core.ScheduledJobStore) {
	db := newTestDB(t)
	jobStore := store.NewScheduledJobStore(db)
	scheduler := NewReportScheduler(&ReportSchedulerOptions{
		Store:    jobStore,
		Runner:   runner,
		Pool:     NewWorkerPool("report", 2),
		Location: time.UTC,
		Now:      clock.Now,
	})
	return scheduler, jobStore
}

func dailyJob() *core.ScheduledJob {
	return &core.ScheduledJob{
		Name:          "daily kpi",
		ReportType:    string(core.ReportKPISummary),
		Params:        datatypes.JSON(`{"days": 7}`),
		Schedule:      core.ScheduleSpec{Frequency: core.FrequencyDaily, Hour: 9, Minute: 0},
		ExportFormats: datatypes.JSONSlice[string]{"csv", "excel"},
	}
}

func TestReportScheduler_Create(t *testing.T) {
	clock := &testClock{now: time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC)}
	scheduler, _ := newTestScheduler(t, &fakeRunner{}, clock)
	ctx := context.Background()

	job, err := scheduler.Create(ctx, dailyJob())
	require.NoError(t, err)
	assert.True(t, job.Active)
	require.NotNil(t, job.NextRun)
	assert.Equal(t, time.Date(2024, 5, 7, 9, 0, 0, 0, time.UTC), job.NextRun.UTC())

	found, err := scheduler.FindByID(ctx, job.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "daily kpi", found.Name)

	// 无效配置
	invalid := dailyJob()
	invalid.Schedule = core.ScheduleSpec{Frequency: core.FrequencyWeekly, Hour: 9}
	_, err = scheduler.Create(ctx, invalid)
	var schedulingErr *core.SchedulingError
	assert.True(t, errors.As(err, &schedulingErr))

	invalid = dailyJob()
	invalid.ExportFormats = datatypes.JSONSlice[string]{"pdf"}
	_, err = scheduler.Create(ctx, invalid)
	assert.ErrorIs(t, err, core.ErrBadRequest)

	invalid = dailyJob()
	invalid.ReportType = "unknown"
	_, err = scheduler.Create(ctx, invalid)
	assert.ErrorIs(t, err, core.ErrBadRequest)

	invalid = dailyJob()
	invalid.NotifyEmails = datatypes.JSONSlice[string]{"not-an-email"}
	_, err = scheduler.Create(ctx, invalid)
	assert.ErrorIs(t, err, core.ErrBadRequest)

	// 参数超出范围
	for _, params := range []string{
		`{"periods": 100000000}`,
		`{"periods": 366}`,
		`{"days": 10000000}`,
	} {
		invalid = dailyJob()
		invalid.ReportType = string(core.ReportForecast)
		invalid.Params = datatypes.JSON(params)
		_, err = scheduler.Create(ctx, invalid)
		assert.ErrorIs(t, err, core.ErrBadRequest, params)
	}

	valid := dailyJob()
	valid.ReportType = string(core.ReportForecast)
	valid.Params = datatypes.JSON(`{"periods": 365, "days": 3650}`)
	_, err = scheduler.Create(ctx, valid)
	assert.NoError(t, err)

	_, err = scheduler.FindByID(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, core.ErrBadRequest)
}

func TestReportScheduler_DueAndExecute(t *testing.T) {
	clock := &testClock{now: time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC)}
	runner := &fakeRunner{}
	scheduler, jobStore := newTestScheduler(t, runner, clock)
	ctx := context.Background()

	job, err := scheduler.Create(ctx, dailyJob())
	require.NoError(t, err)

	due, err := scheduler.Due(ctx)
	require.NoError(t, err)
	assert.Empty(t, due)

	clock.Set(time.Date(2024, 5, 7, 9, 0, 30, 0, time.UTC))
	due, err = scheduler.Due(ctx)
	require.NoError(t, err)
	require.Len(t, due, 1)

	require.NoError(t, scheduler.Execute(ctx, due[0]))
	assert.Equal(t, int32(1), atomic.LoadInt32(&runner.calls))

	stored, err := jobStore.FindByID(ctx, job.ID)
	require.NoError(t, err)
	assert.False(t, stored.Running)
	assert.Equal(t, core.JobStatusSuccess, stored.LastStatus)
	require.NotNil(t, stored.LastRun)
	assert.Equal(t, time.Date(2024, 5, 7, 9, 0, 30, 0, time.UTC), stored.LastRun.UTC())
	assert.Equal(t, time.Date(2024, 5, 8, 9, 0, 0, 0, time.UTC), stored.NextRun.UTC())

	runs, err := scheduler.ListRuns(ctx, job.ID.String(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, core.JobStatusSuccess, runs[0].Status)
	assert.Equal(t, []string{"json:kpi_summary.json"}, []string(runs[0].Exports))

	due, err = scheduler.Due(ctx)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestReportScheduler_DueRunOncePerPeriod(t *testing.T) {
	clock := &testClock{now: time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC)}
	runner := &fakeRunner{}
	scheduler, _ := newTestScheduler(t, runner, clock)
	ctx := context.Background()

	_, err := scheduler.Create(ctx, dailyJob())
	require.NoError(t, err)

	clock.Set(time.Date(2024, 5, 7, 9, 0, 30, 0, time.UTC))
	due, err := scheduler.Due(ctx)
	require.NoError(t, err)
	require.Len(t, due, 1)
	snapshot := due[0]

	require.NoError(t, scheduler.execute(ctx, snapshot, true))
	// 上一次执行前查到的快照，next_run已经推进到明天
	clock.Set(time.Date(2024, 5, 7, 9, 1, 0, 0, time.UTC))
	assert.ErrorIs(t, scheduler.execute(ctx, snapshot, true), core.ErrJobRunning)
	assert.Equal(t, int32(1), atomic.LoadInt32(&runner.calls))

	runs, err := scheduler.ListRuns(ctx, snapshot.ID.String(), 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestReportScheduler_FailureAdvancesNextRun(t *testing.T) {
	clock := &testClock{now: time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC)}
	runner := &fakeRunner{err: errors.New("smtp down")}
	scheduler, jobStore := newTestScheduler(t, runner, clock)
	ctx := context.Background()

	job, err := scheduler.Create(ctx, dailyJob())
	require.NoError(t, err)

	clock.Set(time.Date(2024, 5, 7, 9, 5, 0, 0, time.UTC))
	err = scheduler.Execute(ctx, job)
	require.Error(t, err)

	stored, err := jobStore.FindByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusFailed, stored.LastStatus)
	assert.Equal(t, "smtp down", stored.LastError)
	assert.Equal(t, time.Date(2024, 5, 8, 9, 0, 0, 0, time.UTC), stored.NextRun.UTC())
	assert.False(t, stored.Running)
}

func TestReportScheduler_SingleFlight(t *testing.T) {
	clock := &testClock{now: time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC)}
	runner := &fakeRunner{block: make(chan struct{}), started: make(chan struct{})}
	scheduler, _ := newTestScheduler(t, runner, clock)
	ctx := context.Background()

	job, err := scheduler.Create(ctx, dailyJob())
	require.NoError(t, err)

	require.NoError(t, scheduler.RunNow(ctx, job.ID.String()))
	<-runner.started

	// 执行中：再次触发被拒绝
	assert.ErrorIs(t, scheduler.RunNow(ctx, job.ID.String()), core.ErrJobRunning)
	assert.ErrorIs(t, scheduler.Execute(ctx, job), core.ErrJobRunning)

	// 执行中取消不影响这一次
	cancelled, err := scheduler.Cancel(ctx, job.ID.String())
	require.NoError(t, err)
	assert.False(t, cancelled.Active)

	close(runner.block)
	scheduler.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&runner.calls))

	stored, err := scheduler.FindByID(ctx, job.ID.String())
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusSuccess, stored.LastStatus)
	assert.False(t, stored.Active)

	// 停用后不再到期
	clock.Set(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	due, err := scheduler.Due(ctx)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestReportScheduler_RunDue(t *testing.T) {
	clock := &testClock{now: time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC)}
	runner := &fakeRunner{}
	scheduler, jobStore := newTestScheduler(t, runner, clock)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := scheduler.Create(ctx, dailyJob())
		require.NoError(t, err)
	}
	weekly := dailyJob()
	weekly.Schedule = core.ScheduleSpec{Frequency: core.FrequencyWeekly, DayOfWeek: intPtr(4), Hour: 9}
	_, err := scheduler.Create(ctx, weekly)
	require.NoError(t, err)

	clock.Set(time.Date(2024, 5, 7, 9, 1, 0, 0, time.UTC))
	dispatched, err := scheduler.RunDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, dispatched)
	scheduler.Wait()
	assert.Equal(t, int32(2), atomic.LoadInt32(&runner.calls))

	jobs, err := jobStore.ListDue(ctx, clock.Now(), 0)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestReportScheduler_UpdateAndDelete(t *testing.T) {
	clock := &testClock{now: time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC)}
	scheduler, _ := newTestScheduler(t, &fakeRunner{}, clock)
	ctx := context.Background()

	job, err := scheduler.Create(ctx, dailyJob())
	require.NoError(t, err)

	job.Schedule = core.ScheduleSpec{Frequency: core.FrequencyMonthly, DayOfMonth: intPtr(31), Hour: 8}
	updated, err := scheduler.Update(ctx, job)
	require.NoError(t, err)
	assert.Equal(t, core.FrequencyMonthly, updated.Schedule.Frequency)
	assert.Equal(t, time.Date(2024, 5, 31, 8, 0, 0, 0, time.UTC), updated.NextRun.UTC())

	require.NoError(t, scheduler.Delete(ctx, job.ID.String()))
	_, err = scheduler.FindByID(ctx, job.ID.String())
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, scheduler.Delete(ctx, job.ID.String()), core.ErrNotFound)
}
