package forms

import (
	"encoding/json"
	"fmt"

	"github.com/codelieche/analytics/pkg/core"
	"gorm.io/datatypes"
)

// ScheduledJobCreateForm 报表任务创建表单
// 报表类型、参数、导出格式、调度配置的详细校验在服务层
type ScheduledJobCreateForm struct {
	Name          string                 `json:"name" form:"name" binding:"required" example:"每周工单汇总"`
	ReportType    string                 `json:"report_type" form:"report_type" binding:"required" example:"kpi_summary"`
	Params        map[string]interface{} `json:"params" form:"params"`
	Schedule      core.ScheduleSpec      `json:"schedule" form:"schedule"`
	ExportFormats []string               `json:"export_formats" form:"export_formats" example:"csv,excel"`
	NotifyEmails  []string               `json:"notify_emails" form:"notify_emails"`
	Owner         string                 `json:"owner" form:"owner" example:"ops"`
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("任务名称不能为空")
	}
	if len(name) > 128 {
		return fmt.Errorf("任务名称不能超过128个字符")
	}
	return nil
}

func marshalParams(params map[string]interface{}) (datatypes.JSON, error) {
	if len(params) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("报表参数格式错误: %w", err)
	}
	return datatypes.JSON(data), nil
}

// Validate 验证表单
func (form *ScheduledJobCreateForm) Validate() error {
	if err := validateName(form.Name); err != nil {
		return err
	}
	if len(form.Owner) > 128 {
		return fmt.Errorf("负责人不能超过128个字符")
	}
	if form.Schedule.Frequency == "" {
		return fmt.Errorf("调度频率不能为空")
	}
	return nil
}

// ToScheduledJob 将表单转换为任务
func (form *ScheduledJobCreateForm) ToScheduledJob() (*core.ScheduledJob, error) {
	params, err := marshalParams(form.Params)
	if err != nil {
		return nil, err
	}
	return &core.ScheduledJob{
		Name:          form.Name,
		ReportType:    form.ReportType,
		Params:        params,
		Schedule:      form.Schedule,
		ExportFormats: datatypes.JSONSlice[string](form.ExportFormats),
		NotifyEmails:  datatypes.JSONSlice[string](form.NotifyEmails),
		Owner:         form.Owner,
	}, nil
}

// ScheduledJobUpdateForm 报表任务更新表单，只更新传入的字段
type ScheduledJobUpdateForm struct {
	Name          *string                `json:"name" form:"name"`
	ReportType    *string                `json:"report_type" form:"report_type"`
	Params        map[string]interface{} `json:"params" form:"params"`
	Schedule      *core.ScheduleSpec     `json:"schedule" form:"schedule"`
	ExportFormats []string               `json:"export_formats" form:"export_formats"`
	NotifyEmails  []string               `json:"notify_emails" form:"notify_emails"`
	Owner         *string                `json:"owner" form:"owner"`
}

// Validate 验证表单
func (form *ScheduledJobUpdateForm) Validate() error {
	if form.Name != nil {
		if err := validateName(*form.Name); err != nil {
			return err
		}
	}
	if form.Owner != nil && len(*form.Owner) > 128 {
		return fmt.Errorf("负责人不能超过128个字符")
	}
	return nil
}

// UpdateScheduledJob 把表单中的字段写入任务
func (form *ScheduledJobUpdateForm) UpdateScheduledJob(job *core.ScheduledJob) error {
	if form.Name != nil {
		job.Name = *form.Name
	}
	if form.ReportType != nil {
		job.ReportType = *form.ReportType
	}
	if form.Params != nil {
		params, err := marshalParams(form.Params)
		if err != nil {
			return err
		}
		job.Params = params
	}
	if form.Schedule != nil {
		job.Schedule = *form.Schedule
	}
	if form.ExportFormats != nil {
		job.ExportFormats = datatypes.JSONSlice[string](form.ExportFormats)
	}
	if form.NotifyEmails != nil {
		job.NotifyEmails = datatypes.JSONSlice[string](form.NotifyEmails)
	}
	if form.Owner != nil {
		job.Owner = *form.Owner
	}
	return nil
}
