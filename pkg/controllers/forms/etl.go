package forms

import (
	"fmt"
)

// ETLRunForm 手动触发ETL（也用于回填历史数据）
type ETLRunForm struct {
	Days  int  `json:"days" form:"days" example:"1"`
	Async bool `json:"async" form:"async" example:"false"` // 为true时后台执行，立即返回202
}

// Validate 验证表单，days为空时使用默认窗口
func (form *ETLRunForm) Validate(defaultDays int) error {
	if form.Days == 0 {
		form.Days = defaultDays
	}
	if form.Days < 1 {
		return fmt.Errorf("抽取天数必须大于0")
	}
	if form.Days > 3650 {
		return fmt.Errorf("抽取天数不能超过3650天")
	}
	return nil
}
