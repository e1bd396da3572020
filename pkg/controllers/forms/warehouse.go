package forms

import (
	"fmt"
	"time"
)

// HolidayForm 标记节假日
type HolidayForm struct {
	Date string `json:"date" form:"date" binding:"required" example:"2024-12-25"`
	Name string `json:"name" form:"name" example:"Christmas"`
}

// Validate 验证表单并返回日期
func (form *HolidayForm) Validate(loc *time.Location) (time.Time, error) {
	day, err := time.ParseInLocation(time.DateOnly, form.Date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("日期格式错误，应为YYYY-MM-DD: %s", form.Date)
	}
	if len(form.Name) > 100 {
		return time.Time{}, fmt.Errorf("节假日名称不能超过100个字符")
	}
	return day, nil
}
