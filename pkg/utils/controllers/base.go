package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/codelieche/analytics/pkg/core"
	"github.com/codelieche/analytics/pkg/utils/filters"
	"github.com/codelieche/analytics/pkg/utils/types"
	"github.com/gin-gonic/gin"
)

// BaseController Web控制器基础结构体
// 提供统一的HTTP响应处理、错误处理、分页解析和过滤器集成功能
type BaseController struct {
}

// HandleOK 处理成功响应（200 OK）
func (controller *BaseController) HandleOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, types.Response{Code: 0, Data: data, Message: "ok"})
}

// HandleCreated 处理创建成功响应（201 Created）
func (controller *BaseController) HandleCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, types.Response{Code: 0, Data: data, Message: "ok"})
}

// HandleAccepted 已受理，后台执行（202 Accepted）
func (controller *BaseController) HandleAccepted(c *gin.Context, data interface{}) {
	c.JSON(http.StatusAccepted, types.Response{Code: 0, Data: data, Message: "accepted"})
}

// HandleNoContent 处理无内容响应（204 No Content）
func (controller *BaseController) HandleNoContent(c *gin.Context) {
	c.Writer.WriteHeader(http.StatusNoContent)
}

// HandleError 处理通用错误响应
// 领域错误会映射到对应的状态码，其它错误使用传入的code
func (controller *BaseController) HandleError(c *gin.Context, err error, code int) {
	var schedulingErr *core.SchedulingError
	var forecastingErr *core.ForecastingError

	switch {
	case errors.Is(err, core.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, core.ErrConflict), errors.Is(err, core.ErrJobRunning), errors.Is(err, core.ErrLockAlreadyAcquired):
		code = http.StatusConflict
	case errors.As(err, &schedulingErr), errors.As(err, &forecastingErr), errors.Is(err, core.ErrBadRequest):
		code = http.StatusBadRequest
	}

	c.JSON(code, types.Response{Code: code, Message: err.Error()})
}

// Handle404 处理404错误响应（资源不存在）
func (controller *BaseController) Handle404(c *gin.Context, err error) {
	c.JSON(http.StatusNotFound, types.Response{Code: http.StatusNotFound, Message: err.Error()})
}

// ParsePagination 解析分页参数
func (controller *BaseController) ParsePagination(c *gin.Context) *types.Pagination {
	page, err := strconv.Atoi(c.DefaultQuery(pageConfig.PageQueryParam, "1"))
	if err != nil || page < 1 {
		page = 1
	}
	// 限制最大页码，防止恶意请求
	if pageConfig.MaxPage > 0 && page > pageConfig.MaxPage {
		page = pageConfig.MaxPage
	}

	pageSize, err := strconv.Atoi(c.DefaultQuery(pageConfig.PageSizeQueryParam, "10"))
	if err != nil || pageSize < 1 {
		pageSize = 10
	}
	if pageConfig.MaxPageSize > 0 && pageSize > pageConfig.MaxPageSize {
		pageSize = pageConfig.MaxPageSize
	}

	return &types.Pagination{Page: page, PageSize: pageSize}
}

// FilterAction 把过滤、搜索、排序组合成过滤动作列表
func (controller *BaseController) FilterAction(
	c *gin.Context, filterOptions []*filters.FilterOption,
	searchFields []string, orderingFields []string, defaultOrdering string) (filterActions []filters.Filter) {

	if action := filters.FromQueryGetFilterAction(c, filterOptions); action != nil {
		filterActions = append(filterActions, action)
	}
	if action := filters.FromQueryGetSearchAction(c, searchFields); action != nil {
		filterActions = append(filterActions, action)
	}
	if action := filters.FromQueryGetOrderingActionWithDefault(c, orderingFields, defaultOrdering); action != nil {
		filterActions = append(filterActions, action)
	}
	return filterActions
}
