package tools

import (
	"errors"
	"testing"
	"time"

	"github.com/codelieche/analytics/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int {
	return &v
}

func at(y int, m time.Month, d, h, mi int) time.Time {
	return time.Date(y, m, d, h, mi, 0, 0, time.UTC)
}

func TestValidateSchedule(t *testing.T) {
	valid := []core.ScheduleSpec{
		{Frequency: core.FrequencyDaily, Hour: 0, Minute: 0},
		{Frequency: core.FrequencyDaily, Hour: 23, Minute: 59},
		{Frequency: core.FrequencyWeekly, Hour: 10, DayOfWeek: intPtr(6)},
		{Frequency: core.FrequencyMonthly, Hour: 10, DayOfMonth: intPtr(31)},
		{Frequency: core.FrequencyQuarterly, Hour: 10},
		{Frequency: core.FrequencyQuarterly, Hour: 10, DayOfMonth: intPtr(15)},
	}
	for _, spec := range valid {
		assert.NoError(t, ValidateSchedule(spec), "%+v", spec)
	}

	invalid := map[string]core.ScheduleSpec{
		"hour":           {Frequency: core.FrequencyDaily, Hour: 24},
		"minute":         {Frequency: core.FrequencyDaily, Minute: 60},
		"negative hour":  {Frequency: core.FrequencyDaily, Hour: -1},
		"weekly no dow":  {Frequency: core.FrequencyWeekly, Hour: 10},
		"dow range":      {Frequency: core.FrequencyWeekly, DayOfWeek: intPtr(7)},
		"monthly no dom": {Frequency: core.FrequencyMonthly},
		"dom range":      {Frequency: core.FrequencyMonthly, DayOfMonth: intPtr(32)},
		"dom zero":       {Frequency: core.FrequencyQuarterly, DayOfMonth: intPtr(0)},
		"unknown":        {Frequency: "hourly"},
		"empty":          {},
	}
	for name, spec := range invalid {
		t.Run(name, func(t *testing.T) {
			err := ValidateSchedule(spec)
			require.Error(t, err)
			var schedErr *core.SchedulingError
			assert.True(t, errors.As(err, &schedErr))
		})
	}
}

func TestCalculateNextRunDaily(t *testing.T) {
	spec := core.ScheduleSpec{Frequency: core.FrequencyDaily, Hour: 9, Minute: 0}

	next, err := CalculateNextRun(spec, at(2024, 3, 5, 8, 0))
	require.NoError(t, err)
	assert.Equal(t, at(2024, 3, 5, 9, 0), next)

	// 刚好等于执行时间，顺延一天
	next, err = CalculateNextRun(spec, at(2024, 3, 5, 9, 0))
	require.NoError(t, err)
	assert.Equal(t, at(2024, 3, 6, 9, 0), next)

	// 跨月
	next, err = CalculateNextRun(spec, at(2024, 2, 29, 10, 0))
	require.NoError(t, err)
	assert.Equal(t, at(2024, 3, 1, 9, 0), next)
}

func TestCalculateNextRunWeekly(t *testing.T) {
	// 每周三 10:00（0=周一）
	spec := core.ScheduleSpec{Frequency: core.FrequencyWeekly, Hour: 10, Minute: 0, DayOfWeek: intPtr(2)}

	// 2024-03-04 是周一
	next, err := CalculateNextRun(spec, at(2024, 3, 4, 10, 0))
	require.NoError(t, err)
	assert.Equal(t, at(2024, 3, 6, 10, 0), next)

	// 周三 09:00，当天还没到
	next, err = CalculateNextRun(spec, at(2024, 3, 6, 9, 0))
	require.NoError(t, err)
	assert.Equal(t, at(2024, 3, 6, 10, 0), next)

	// 周三 10:30，已过则下周三
	next, err = CalculateNextRun(spec, at(2024, 3, 6, 10, 30))
	require.NoError(t, err)
	assert.Equal(t, at(2024, 3, 13, 10, 0), next)

	// 周五，下周三
	next, err = CalculateNextRun(spec, at(2024, 3, 8, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, at(2024, 3, 13, 10, 0), next)
	assert.Equal(t, time.Wednesday, next.Weekday())
}

func TestCalculateNextRunMonthly(t *testing.T) {
	spec := core.ScheduleSpec{Frequency: core.FrequencyMonthly, Hour: 6, Minute: 30, DayOfMonth: intPtr(31)}

	// 2月没有31号，取月末
	next, err := CalculateNextRun(spec, at(2023, 2, 10, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, at(2023, 2, 28, 6, 30), next)

	next, err = CalculateNextRun(spec, at(2024, 2, 10, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, at(2024, 2, 29, 6, 30), next)

	// 本月已过，下个月按下个月的天数取
	next, err = CalculateNextRun(spec, at(2024, 1, 31, 7, 0))
	require.NoError(t, err)
	assert.Equal(t, at(2024, 2, 29, 6, 30), next)

	next, err = CalculateNextRun(spec, at(2024, 4, 30, 7, 0))
	require.NoError(t, err)
	assert.Equal(t, at(2024, 5, 31, 6, 30), next)

	// 跨年
	spec.DayOfMonth = intPtr(1)
	next, err = CalculateNextRun(spec, at(2024, 12, 1, 7, 0))
	require.NoError(t, err)
	assert.Equal(t, at(2025, 1, 1, 6, 30), next)
}

func TestCalculateNextRunQuarterly(t *testing.T) {
	spec := core.ScheduleSpec{Frequency: core.FrequencyQuarterly, Hour: 8, Minute: 0}

	next, err := CalculateNextRun(spec, at(2024, 2, 15, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, at(2024, 4, 1, 8, 0), next)

	next, err = CalculateNextRun(spec, at(2024, 11, 15, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, at(2025, 1, 1, 8, 0), next)

	// 季度首日也是取下一个季度
	next, err = CalculateNextRun(spec, at(2024, 4, 1, 7, 0))
	require.NoError(t, err)
	assert.Equal(t, at(2024, 7, 1, 8, 0), next)

	spec.DayOfMonth = intPtr(31)
	next, err = CalculateNextRun(spec, at(2024, 1, 15, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, at(2024, 4, 30, 8, 0), next)
}

func TestCalculateNextRunAlwaysAfterNow(t *testing.T) {
	specs := []core.ScheduleSpec{
		{Frequency: core.FrequencyDaily, Hour: 12, Minute: 0},
		{Frequency: core.FrequencyWeekly, Hour: 0, Minute: 0, DayOfWeek: intPtr(0)},
		{Frequency: core.FrequencyWeekly, Hour: 23, Minute: 59, DayOfWeek: intPtr(6)},
		{Frequency: core.FrequencyMonthly, Hour: 12, Minute: 0, DayOfMonth: intPtr(29)},
		{Frequency: core.FrequencyMonthly, Hour: 0, Minute: 0, DayOfMonth: intPtr(1)},
		{Frequency: core.FrequencyQuarterly, Hour: 12, Minute: 0, DayOfMonth: intPtr(31)},
	}

	start := at(2023, 12, 25, 0, 0)
	for _, spec := range specs {
		for i := 0; i < 24*90; i += 7 {
			now := start.Add(time.Duration(i) * time.Hour)
			next, err := CalculateNextRun(spec, now)
			require.NoError(t, err)
			require.True(t, next.After(now), "spec=%+v now=%s next=%s", spec, now, next)
			assert.Equal(t, spec.Hour, next.Hour())
			assert.Equal(t, spec.Minute, next.Minute())
		}
	}
}

func TestCalculateNextRunKeepsLocation(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	spec := core.ScheduleSpec{Frequency: core.FrequencyDaily, Hour: 9, Minute: 0}

	now := time.Date(2024, 3, 5, 10, 0, 0, 0, loc)
	next, err := CalculateNextRun(spec, now)
	require.NoError(t, err)
	assert.Equal(t, loc, next.Location())
	assert.Equal(t, time.Date(2024, 3, 6, 9, 0, 0, 0, loc), next)
}

func TestCalculateNextRunInvalid(t *testing.T) {
	_, err := CalculateNextRun(core.ScheduleSpec{Frequency: core.FrequencyWeekly}, time.Now())
	var schedErr *core.SchedulingError
	assert.True(t, errors.As(err, &schedErr))
	assert.Equal(t, "day_of_week", schedErr.Field)
}
