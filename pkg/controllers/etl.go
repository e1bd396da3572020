package controllers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/codelieche/analytics/pkg/config"
	"github.com/codelieche/analytics/pkg/controllers/forms"
	"github.com/codelieche/analytics/pkg/core"
	"github.com/codelieche/analytics/pkg/utils/controllers"
	"github.com/codelieche/analytics/pkg/utils/filters"
	"github.com/codelieche/analytics/pkg/utils/logger"
	"github.com/codelieche/analytics/pkg/utils/types"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// etlLockTTL ETL锁的过期时间，执行期间自动续期
const etlLockTTL = 10 * time.Minute

// ETLController ETL控制器
type ETLController struct {
	controllers.BaseController
	service core.ETLService
	locker  core.Locker
}

// NewETLController 创建ETLController实例
func NewETLController(service core.ETLService, locker core.Locker) *ETLController {
	return &ETLController{
		service: service,
		locker:  locker,
	}
}

// Run 手动执行ETL
// 与定时ETL共用一把锁，同一时间只有一个流水线在跑
func (controller *ETLController) Run(c *gin.Context) {
	// 1. 处理表单，允许空body
	var form forms.ETLRunForm
	if err := c.ShouldBindJSON(&form); err != nil && !errors.Is(err, io.EOF) {
		controller.HandleError(c, err, http.StatusBadRequest)
		return
	}
	if err := form.Validate(config.ETL.WindowDays); err != nil {
		controller.HandleError(c, err, http.StatusBadRequest)
		return
	}

	// 2. 获取锁
	lock, err := controller.locker.TryAcquire(c.Request.Context(), config.ETLLockerKey, etlLockTTL)
	if err != nil {
		if err != core.ErrLockAlreadyAcquired {
			logger.Error("acquire etl lock error", zap.Error(err))
		}
		controller.HandleError(c, err, http.StatusInternalServerError)
		return
	}

	run := func(ctx context.Context) (*core.ETLRunLog, error) {
		stop := lock.AutoRefresh(ctx, etlLockTTL, etlLockTTL/3)
		defer func() {
			stop()
			if err := lock.Release(context.Background()); err != nil {
				logger.Warn("release etl lock error", zap.Error(err))
			}
		}()
		if form.Async {
			return controller.service.RunWithRetry(ctx, form.Days, config.ETL.MaxRetries, config.ETL.RetryInterval)
		}
		return controller.service.Run(ctx, form.Days)
	}

	// 3. 后台执行
	if form.Async {
		go func() {
			if _, err := run(context.WithoutCancel(c.Request.Context())); err != nil {
				logger.Error("etl run in background failed", zap.Int("days", form.Days), zap.Error(err))
			}
		}()
		controller.HandleAccepted(c, map[string]interface{}{
			"days":    form.Days,
			"message": "ETL已在后台执行",
		})
		return
	}

	// 4. 同步执行，失败时运行日志里有错误信息
	runLog, err := run(c.Request.Context())
	if err != nil {
		var extractionErr *core.ExtractionError
		if errors.As(err, &extractionErr) {
			controller.HandleError(c, err, http.StatusBadGateway)
		} else {
			controller.HandleError(c, err, http.StatusInternalServerError)
		}
		return
	}
	controller.HandleOK(c, runLog)
}

// FindLog 获取运行日志
func (controller *ETLController) FindLog(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		controller.HandleError(c, err, http.StatusBadRequest)
		return
	}

	runLog, err := controller.service.FindLog(c.Request.Context(), uint(id))
	if err != nil {
		controller.HandleError(c, err, http.StatusBadRequest)
		return
	}
	controller.HandleOK(c, runLog)
}

// ListLogs 运行日志列表
func (controller *ETLController) ListLogs(c *gin.Context) {
	// 1. 解析分页参数
	pagination := controller.ParsePagination(c)

	// 2. 定义过滤选项
	filterOptions := []*filters.FilterOption{
		{
			QueryKey: "status",
			Column:   "status",
			Op:       filters.FILTER_EQ,
		},
		{
			QueryKey: "process_name",
			Column:   "process_name",
			Op:       filters.FILTER_EQ,
		},
		{
			QueryKey: "start_time__gte",
			Column:   "start_time",
			Op:       filters.FILTER_GTE,
		},
		{
			QueryKey: "start_time__lte",
			Column:   "start_time",
			Op:       filters.FILTER_LTE,
		},
	}

	// 3. 搜索和排序
	searchFields := []string{"error_message"}
	orderingFields := []string{"id", "start_time", "records_processed"}
	defaultOrdering := "-id"

	filterActions := controller.FilterAction(c, filterOptions, searchFields, orderingFields, defaultOrdering)

	// 4. 获取列表和总数
	logs, err := controller.service.ListLogs(c.Request.Context(), pagination.Offset(), pagination.PageSize, filterActions...)
	if err != nil {
		controller.HandleError(c, err, http.StatusBadRequest)
		return
	}
	count, err := controller.service.CountLogs(c.Request.Context(), filterActions...)
	if err != nil {
		controller.HandleError(c, err, http.StatusBadRequest)
		return
	}

	controller.HandleOK(c, types.ResponseList{
		Page:     pagination.Page,
		PageSize: pagination.PageSize,
		Count:    count,
		Results:  logs,
	})
}
