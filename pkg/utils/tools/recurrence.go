package tools

import (
	"fmt"
	"time"

	"github.com/codelieche/analytics/pkg/core"
)

// ValidateSchedule 校验调度配置，在创建/修改任务时调用
func ValidateSchedule(spec core.ScheduleSpec) error {
	if spec.Hour < 0 || spec.Hour > 23 {
		return &core.SchedulingError{Field: "hour", Message: fmt.Sprintf("小时必须在0-23之间，当前为%d", spec.Hour)}
	}
	if spec.Minute < 0 || spec.Minute > 59 {
		return &core.SchedulingError{Field: "minute", Message: fmt.Sprintf("分钟必须在0-59之间，当前为%d", spec.Minute)}
	}
	if spec.DayOfMonth != nil && (*spec.DayOfMonth < 1 || *spec.DayOfMonth > 31) {
		return &core.SchedulingError{Field: "day_of_month", Message: fmt.Sprintf("日期必须在1-31之间，当前为%d", *spec.DayOfMonth)}
	}
	if spec.DayOfWeek != nil && (*spec.DayOfWeek < 0 || *spec.DayOfWeek > 6) {
		return &core.SchedulingError{Field: "day_of_week", Message: fmt.Sprintf("星期必须在0(周一)-6(周日)之间，当前为%d", *spec.DayOfWeek)}
	}

	switch spec.Frequency {
	case core.FrequencyDaily, core.FrequencyQuarterly:
		return nil
	case core.FrequencyWeekly:
		if spec.DayOfWeek == nil {
			return &core.SchedulingError{Field: "day_of_week", Message: "weekly任务必须指定day_of_week"}
		}
		return nil
	case core.FrequencyMonthly:
		if spec.DayOfMonth == nil {
			return &core.SchedulingError{Field: "day_of_month", Message: "monthly任务必须指定day_of_month"}
		}
		return nil
	case "":
		return &core.SchedulingError{Field: "frequency", Message: "必须指定执行频率"}
	}
	return &core.SchedulingError{Field: "frequency", Message: fmt.Sprintf("不支持的执行频率%q", spec.Frequency)}
}

// CalculateNextRun 计算严格晚于now的下一次执行时间
//
// 纯函数，使用now所在的时区：
//   - daily: 今天的hour:minute，已过则明天
//   - weekly: 本周的day_of_week，当天且已过则下周
//   - monthly: 本月的day_of_month（超出月末取月末），已过则下个月（按下个月的天数重新取月末）
//   - quarterly: 下一个季度首月（1/4/7/10）的day_of_month（默认1号），已过则再下一个季度
func CalculateNextRun(spec core.ScheduleSpec, now time.Time) (time.Time, error) {
	if err := ValidateSchedule(spec); err != nil {
		return time.Time{}, err
	}

	loc := now.Location()
	year, month, day := now.Date()
	at := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, spec.Hour, spec.Minute, 0, 0, loc)
	}

	switch spec.Frequency {
	case core.FrequencyDaily:
		candidate := at(year, month, day)
		if !candidate.After(now) {
			candidate = at(year, month, day+1)
		}
		return candidate, nil

	case core.FrequencyWeekly:
		weekday := (int(now.Weekday()) + 6) % 7 // 0=周一
		days := (*spec.DayOfWeek - weekday + 7) % 7
		candidate := at(year, month, day+days)
		if !candidate.After(now) {
			candidate = at(year, month, day+days+7)
		}
		return candidate, nil

	case core.FrequencyMonthly:
		candidate := at(year, month, ClampDay(year, month, *spec.DayOfMonth))
		if !candidate.After(now) {
			first := time.Date(year, month+1, 1, 0, 0, 0, 0, loc)
			candidate = at(first.Year(), first.Month(), ClampDay(first.Year(), first.Month(), *spec.DayOfMonth))
		}
		return candidate, nil

	case core.FrequencyQuarterly:
		dayOfMonth := 1
		if spec.DayOfMonth != nil {
			dayOfMonth = *spec.DayOfMonth
		}
		quarterAt := func(offset int) time.Time {
			first := time.Date(year, QuarterStartMonth(month)+time.Month(3*offset), 1, 0, 0, 0, 0, loc)
			return at(first.Year(), first.Month(), ClampDay(first.Year(), first.Month(), dayOfMonth))
		}
		candidate := quarterAt(1)
		if !candidate.After(now) {
			candidate = quarterAt(2)
		}
		return candidate, nil
	}

	return time.Time{}, &core.SchedulingError{Field: "frequency", Message: fmt.Sprintf("不支持的执行频率%q", spec.Frequency)}
}
