package tools

import (
	"testing"
	"time"

	"github.com/codelieche/analytics/pkg/core"
	"github.com/stretchr/testify/assert"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDaysInMonth(t *testing.T) {
	assert.Equal(t, 31, DaysInMonth(2024, time.January))
	assert.Equal(t, 29, DaysInMonth(2024, time.February))
	assert.Equal(t, 28, DaysInMonth(2023, time.February))
	assert.Equal(t, 30, DaysInMonth(2023, time.April))
	assert.Equal(t, 31, DaysInMonth(2023, time.December))
}

func TestClampDay(t *testing.T) {
	assert.Equal(t, 28, ClampDay(2023, time.February, 31))
	assert.Equal(t, 29, ClampDay(2024, time.February, 31))
	assert.Equal(t, 30, ClampDay(2024, time.April, 31))
	assert.Equal(t, 15, ClampDay(2024, time.April, 15))
	assert.Equal(t, 1, ClampDay(2024, time.April, 0))
}

func TestQuarterStartMonth(t *testing.T) {
	assert.Equal(t, time.January, QuarterStartMonth(time.March))
	assert.Equal(t, time.April, QuarterStartMonth(time.April))
	assert.Equal(t, time.July, QuarterStartMonth(time.September))
	assert.Equal(t, time.October, QuarterStartMonth(time.December))
}

func TestAddMonthsClamped(t *testing.T) {
	assert.Equal(t, day(2024, time.February, 29), AddMonthsClamped(day(2024, time.January, 31), 1))
	assert.Equal(t, day(2023, time.February, 28), AddMonthsClamped(day(2023, time.January, 31), 1))
	assert.Equal(t, day(2025, time.January, 31), AddMonthsClamped(day(2024, time.December, 31), 1))
	assert.Equal(t, day(2024, time.April, 30), AddMonthsClamped(day(2024, time.January, 31), 3))
}

func TestPeriodBounds(t *testing.T) {
	tests := []struct {
		name        string
		anchor      time.Time
		index       int
		granularity core.Granularity
		first       time.Time
		lastDay     time.Time
	}{
		{"day", day(2024, 2, 28), 1, core.GranularityDay, day(2024, 2, 29), day(2024, 2, 29)},
		{"week", day(2024, 2, 26), 1, core.GranularityWeek, day(2024, 3, 4), day(2024, 3, 10)},
		{"month-first", day(2024, 1, 15), 0, core.GranularityMonth, day(2024, 1, 15), day(2024, 2, 14)},
		{"month-mid", day(2024, 1, 15), 1, core.GranularityMonth, day(2024, 2, 15), day(2024, 3, 14)},
		{"month-dec", day(2024, 12, 10), 0, core.GranularityMonth, day(2024, 12, 10), day(2025, 1, 9)},
		{"month-end-feb", day(2024, 1, 31), 1, core.GranularityMonth, day(2024, 2, 29), day(2024, 3, 30)},
		{"month-end-no-drift", day(2024, 1, 31), 2, core.GranularityMonth, day(2024, 3, 31), day(2024, 4, 29)},
		{"quarter-first", day(2024, 5, 20), 0, core.GranularityQuarter, day(2024, 5, 20), day(2024, 6, 30)},
		{"quarter-q4", day(2024, 5, 20), 2, core.GranularityQuarter, day(2024, 10, 1), day(2024, 12, 31)},
		{"year", day(2024, 3, 1), 0, core.GranularityYear, day(2024, 3, 1), day(2024, 12, 31)},
		{"year-next", day(2024, 3, 1), 1, core.GranularityYear, day(2025, 1, 1), day(2025, 12, 31)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first, lastDay := PeriodBounds(tt.anchor, tt.index, tt.granularity)
			assert.Equal(t, tt.first, first)
			assert.Equal(t, tt.lastDay, lastDay)
		})
	}
}
