package tools

import (
	"time"

	"github.com/codelieche/analytics/pkg/core"
)

// DaysInMonth 某年某月的天数（处理闰年）
func DaysInMonth(year int, month time.Month) int {
	// 下个月的第0天即本月最后一天
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ClampDay 把日期限制在当月的有效范围内，如2月31号 -> 2月28/29号
func ClampDay(year int, month time.Month, day int) int {
	if day < 1 {
		return 1
	}
	if last := DaysInMonth(year, month); day > last {
		return last
	}
	return day
}

// StartOfDay 截断到当天0点（保留时区）
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// QuarterStartMonth 所在季度的第一个月：1/4/7/10
func QuarterStartMonth(month time.Month) time.Month {
	return time.Month((int(month)-1)/3*3 + 1)
}

// AddMonthsClamped 加上n个月，日期超出目标月份时取月末
// time.AddDate 会把 1月31号+1个月 规范化成 3月2/3号，这里不允许
func AddMonthsClamped(t time.Time, months int) time.Time {
	first := time.Date(t.Year(), t.Month()+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	day := ClampDay(first.Year(), first.Month(), t.Day())
	return time.Date(first.Year(), first.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// PeriodStart 从anchor（某天0点）开始的第index个周期的开始日期
//
//   - day/week: anchor之后第index天/周
//   - month: 保持anchor的日，按月推进，超出月末时取月末（1月31号 -> 2月29号 -> 3月31号）
//   - quarter/year: 第一个周期从anchor开始，之后从自然季/年的第一天开始
//
// 每个周期到下一个周期开始的前一天结束
func PeriodStart(anchor time.Time, index int, granularity core.Granularity) time.Time {
	loc := anchor.Location()
	year, month, day := anchor.Date()
	if index <= 0 {
		return time.Date(year, month, day, 0, 0, 0, 0, loc)
	}

	switch granularity {
	case core.GranularityWeek:
		return time.Date(year, month, day+7*index, 0, 0, 0, 0, loc)
	case core.GranularityMonth:
		return AddMonthsClamped(time.Date(year, month, day, 0, 0, 0, 0, loc), index)
	case core.GranularityQuarter:
		return time.Date(year, QuarterStartMonth(month)+time.Month(3*index), 1, 0, 0, 0, 0, loc)
	case core.GranularityYear:
		return time.Date(year+index, time.January, 1, 0, 0, 0, 0, loc)
	default:
		return time.Date(year, month, day+index, 0, 0, 0, 0, loc)
	}
}

// PeriodBounds 第index个周期的第一天和最后一天（含）
func PeriodBounds(anchor time.Time, index int, granularity core.Granularity) (first time.Time, lastDay time.Time) {
	first = PeriodStart(anchor, index, granularity)
	next := PeriodStart(anchor, index+1, granularity)
	lastDay = time.Date(next.Year(), next.Month(), next.Day()-1, 0, 0, 0, 0, next.Location())
	return first, lastDay
}
