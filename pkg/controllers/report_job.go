package controllers

import (
	"net/http"
	"strconv"

	"github.com/codelieche/analytics/pkg/controllers/forms"
	"github.com/codelieche/analytics/pkg/core"
	"github.com/codelieche/analytics/pkg/utils/controllers"
	"github.com/codelieche/analytics/pkg/utils/filters"
	"github.com/codelieche/analytics/pkg/utils/types"
	"github.com/gin-gonic/gin"
)

// ReportJobController 定时报表任务控制器
type ReportJobController struct {
	controllers.BaseController
	service core.ReportSchedulerService
}

// NewReportJobController 创建ReportJobController实例
func NewReportJobController(service core.ReportSchedulerService) *ReportJobController {
	return &ReportJobController{
		service: service,
	}
}

// Create 创建报表任务
func (controller *ReportJobController) Create(c *gin.Context) {
	// 1. 处理表单
	var form forms.ScheduledJobCreateForm
	if err := c.ShouldBindJSON(&form); err != nil {
		controller.HandleError(c, err, http.StatusBadRequest)
		return
	}

	// 2. 对表单进行校验
	if err := form.Validate(); err != nil {
		controller.HandleError(c, err, http.StatusBadRequest)
		return
	}

	// 3. 准备创建对象
	job, err := form.ToScheduledJob()
	if err != nil {
		controller.HandleError(c, err, http.StatusBadRequest)
		return
	}

	// 4. 调用服务创建任务（会计算第一次执行时间）
	createdJob, err := controller.service.Create(c.Request.Context(), job)
	if err != nil {
		controller.HandleError(c, err, http.StatusBadRequest)
		return
	}

	controller.HandleCreated(c, createdJob)
}

// Find 获取任务信息
func (controller *ReportJobController) Find(c *gin.Context) {
	job, err := controller.service.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		controller.HandleError(c, err, http.StatusBadRequest)
		return
	}
	controller.HandleOK(c, job)
}

// Update 更新任务，next_run会重新计算
func (controller *ReportJobController) Update(c *gin.Context) {
	// 1. 获取任务
	job, err := controller.service.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		controller.HandleError(c, err, http.StatusBadRequest)
		return
	}

	// 2. 处理表单
	var form forms.ScheduledJobUpdateForm
	if err := c.ShouldBindJSON(&form); err != nil {
		controller.HandleError(c, err, http.StatusBadRequest)
		return
	}
	if err := form.Validate(); err != nil {
		controller.HandleError(c, err, http.StatusBadRequest)
		return
	}
	if err := form.UpdateScheduledJob(job); err != nil {
		controller.HandleError(c, err, http.StatusBadRequest)
		return
	}

	// 3. 调用服务更新
	updatedJob, err := controller.service.Update(c.Request.Context(), job)
	if err != nil {
		controller.HandleError(c, err, http.StatusBadRequest)
		return
	}
	controller.HandleOK(c, updatedJob)
}

// Cancel 取消任务（不再被调度，记录保留）
func (controller *ReportJobController) Cancel(c *gin.Context) {
	job, err := controller.service.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		controller.HandleError(c, err, http.StatusBadRequest)
		return
	}
	controller.HandleOK(c, job)
}

// Delete 删除任务
func (controller *ReportJobController) Delete(c *gin.Context) {
	if err := controller.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		controller.HandleError(c, err, http.StatusBadRequest)
		return
	}
	controller.HandleNoContent(c)
}

// Run 立即执行一次，任务正在执行时返回409
func (controller *ReportJobController) Run(c *gin.Context) {
	id := c.Param("id")
	if err := controller.service.RunNow(c.Request.Context(), id); err != nil {
		controller.HandleError(c, err, http.StatusBadRequest)
		return
	}
	controller.HandleAccepted(c, map[string]string{
		"id":      id,
		"message": "报表任务已开始执行",
	})
}

// Runs 任务最近的执行记录
func (controller *ReportJobController) Runs(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 || limit > 200 {
		limit = 20
	}

	runs, err := controller.service.ListRuns(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		controller.HandleError(c, err, http.StatusBadRequest)
		return
	}
	controller.HandleOK(c, runs)
}

// List 任务列表
func (controller *ReportJobController) List(c *gin.Context) {
	// 1. 解析分页参数
	pagination := controller.ParsePagination(c)

	// 2. 定义过滤选项
	filterOptions := []*filters.FilterOption{
		{
			QueryKey: "report_type",
			Column:   "report_type",
			Op:       filters.FILTER_EQ,
		},
		{
			QueryKey: "owner",
			Column:   "owner",
			Op:       filters.FILTER_EQ,
		},
		{
			QueryKey: "last_status",
			Column:   "last_status",
			Op:       filters.FILTER_EQ,
		},
		{
			QueryKey: "name__contains",
			Column:   "name",
			Op:       filters.FILTER_CONTAINS,
		},
	}

	// 3. 搜索和排序
	searchFields := []string{"name", "owner"}
	orderingFields := []string{"name", "next_run", "last_run", "created_at", "updated_at"}
	defaultOrdering := "-created_at"

	filterActions := controller.FilterAction(c, filterOptions, searchFields, orderingFields, defaultOrdering)

	// active是布尔列，需要先转换
	if value := c.Query("active"); value != "" {
		active, err := strconv.ParseBool(value)
		if err != nil {
			controller.HandleError(c, err, http.StatusBadRequest)
			return
		}
		filterActions = append(filterActions, &filters.FilterOption{Column: "active", Value: active, Op: filters.FILTER_EQ})
	}

	// 4. 获取列表和总数
	jobs, err := controller.service.List(c.Request.Context(), pagination.Offset(), pagination.PageSize, filterActions...)
	if err != nil {
		controller.HandleError(c, err, http.StatusBadRequest)
		return
	}
	count, err := controller.service.Count(c.Request.Context(), filterActions...)
	if err != nil {
		controller.HandleError(c, err, http.StatusBadRequest)
		return
	}

	controller.HandleOK(c, types.ResponseList{
		Page:     pagination.Page,
		PageSize: pagination.PageSize,
		Count:    count,
		Results:  jobs,
	})
}
