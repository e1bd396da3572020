package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/codelieche/analytics/pkg/core"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJob(name string, nextRun time.Time) *core.ScheduledJob {
	return &core.ScheduledJob{
		Name:          name,
		ReportType:    "kpi_summary",
		Schedule:      core.ScheduleSpec{Frequency: core.FrequencyDaily, Hour: 9},
		ExportFormats: []string{"json"},
		Active:        true,
		NextRun:       &nextRun,
		Owner:         "tester",
	}
}

func TestScheduledJobStore_CRUD(t *testing.T) {
	db := newTestDB(t)
	s := NewScheduledJobStore(db)
	ctx := context.Background()

	job, err := s.Create(ctx, newJob("daily kpi", time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, job.ID)

	_, err = s.Create(ctx, &core.ScheduledJob{ID: job.ID, Name: "dup"})
	assert.ErrorIs(t, err, core.ErrConflict)

	found, err := s.FindByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "daily kpi", found.Name)
	assert.Equal(t, []string{"json"}, []string(found.ExportFormats))
	assert.Equal(t, core.FrequencyDaily, found.Schedule.Frequency)

	dow := 2
	found.Name = "weekly kpi"
	found.Schedule = core.ScheduleSpec{Frequency: core.FrequencyWeekly, Hour: 10, DayOfWeek: &dow}
	updated, err := s.Update(ctx, found)
	require.NoError(t, err)
	assert.Equal(t, "weekly kpi", updated.Name)
	require.NotNil(t, updated.Schedule.DayOfWeek)
	assert.Equal(t, 2, *updated.Schedule.DayOfWeek)

	require.NoError(t, s.SetActive(ctx, job.ID, false))
	found, err = s.FindByID(ctx, job.ID)
	require.NoError(t, err)
	assert.False(t, found.Active)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	require.NoError(t, s.Delete(ctx, job.ID))
	_, err = s.FindByID(ctx, job.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, s.SetActive(ctx, uuid.New(), true), core.ErrNotFound)
}

func TestScheduledJobStore_ListDue(t *testing.T) {
	db := newTestDB(t)
	s := NewScheduledJobStore(db)
	ctx := context.Background()
	now := time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)

	due, err := s.Create(ctx, newJob("due", now.Add(-time.Minute)))
	require.NoError(t, err)
	exact, err := s.Create(ctx, newJob("exact", now))
	require.NoError(t, err)
	_, err = s.Create(ctx, newJob("future", now.Add(time.Minute)))
	require.NoError(t, err)
	inactive, err := s.Create(ctx, newJob("inactive", now.Add(-time.Hour)))
	require.NoError(t, err)
	require.NoError(t, s.SetActive(ctx, inactive.ID, false))

	jobs, err := s.ListDue(ctx, now, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, due.ID, jobs[0].ID)
	assert.Equal(t, exact.ID, jobs[1].ID)
}

func TestScheduledJobStore_SingleFlight(t *testing.T) {
	db := newTestDB(t)
	s := NewScheduledJobStore(db)
	ctx := context.Background()
	now := time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)

	job, err := s.Create(ctx, newJob("single", now))
	require.NoError(t, err)

	var started int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.TryStartRun(ctx, job.ID, now)
			if err == nil && ok {
				atomic.AddInt32(&started, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), started)

	next := now.AddDate(0, 0, 1)
	require.NoError(t, s.FinishRun(ctx, job.ID, now, &next, core.JobStatusFailed, "boom"))

	found, err := s.FindByID(ctx, job.ID)
	require.NoError(t, err)
	assert.False(t, found.Running)
	assert.Equal(t, core.JobStatusFailed, found.LastStatus)
	assert.Equal(t, "boom", found.LastError)
	require.NotNil(t, found.NextRun)
	assert.True(t, found.NextRun.Equal(next))

	ok, err := s.TryStartRun(ctx, job.ID, now)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestScheduledJobStore_TryStartDueRun(t *testing.T) {
	db := newTestDB(t)
	s := NewScheduledJobStore(db)
	ctx := context.Background()
	now := time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)

	job, err := s.Create(ctx, newJob("due", now))
	require.NoError(t, err)

	// 还没到期
	ok, err := s.TryStartDueRun(ctx, job.ID, now.Add(-time.Minute))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.TryStartDueRun(ctx, job.ID, now)
	require.NoError(t, err)
	require.True(t, ok)

	next := now.AddDate(0, 0, 1)
	require.NoError(t, s.FinishRun(ctx, job.ID, now.Add(time.Minute), &next, core.JobStatusSuccess, ""))

	// 同一周期内用旧快照再次调度
	ok, err = s.TryStartDueRun(ctx, job.ID, now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.False(t, ok)

	// 手动执行不受next_run限制
	ok, err = s.TryStartRun(ctx, job.ID, now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, s.FinishRun(ctx, job.ID, now.Add(3*time.Minute), &next, core.JobStatusSuccess, ""))

	require.NoError(t, s.SetActive(ctx, job.ID, false))
	ok, err = s.TryStartDueRun(ctx, job.ID, next)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestScheduledJobStore_ResetStaleRuns(t *testing.T) {
	db := newTestDB(t)
	s := NewScheduledJobStore(db)
	ctx := context.Background()
	now := time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)

	stale, err := s.Create(ctx, newJob("stale", now))
	require.NoError(t, err)
	fresh, err := s.Create(ctx, newJob("fresh", now))
	require.NoError(t, err)

	ok, err := s.TryStartRun(ctx, stale.ID, now.Add(-2*time.Hour))
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = s.TryStartRun(ctx, fresh.ID, now)
	require.NoError(t, err)
	require.True(t, ok)

	reset, err := s.ResetStaleRuns(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), reset)

	found, err := s.FindByID(ctx, fresh.ID)
	require.NoError(t, err)
	assert.True(t, found.Running)
}

func TestScheduledJobStore_Runs(t *testing.T) {
	db := newTestDB(t)
	s := NewScheduledJobStore(db)
	ctx := context.Background()
	now := time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)

	job, err := s.Create(ctx, newJob("runs", now))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		run, err := s.CreateRun(ctx, &core.ReportRun{JobID: job.ID, StartedAt: now.Add(time.Duration(i) * time.Hour), Status: core.JobStatusRunning})
		require.NoError(t, err)
		finished := run.StartedAt.Add(time.Minute)
		run.FinishedAt = &finished
		run.Status = core.JobStatusSuccess
		run.Exports = []string{"json"}
		require.NoError(t, s.UpdateRun(ctx, run))
	}

	runs, err := s.ListRuns(ctx, job.ID, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, core.JobStatusSuccess, runs[0].Status)
	assert.True(t, runs[0].StartedAt.After(runs[1].StartedAt))
	assert.Equal(t, []string{"json"}, []string(runs[0].Exports))
}
