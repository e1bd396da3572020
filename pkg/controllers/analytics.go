package controllers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/codelieche/analytics/pkg/controllers/forms"
	"github.com/codelieche/analytics/pkg/core"
	"github.com/codelieche/analytics/pkg/utils/controllers"
	"github.com/gin-gonic/gin"
)

// defaultRangeDays 未传日期范围时查询最近30天
const defaultRangeDays = 30

// AnalyticsController 指标查询
type AnalyticsController struct {
	controllers.BaseController
	service         core.AnalyticsService
	forecastService core.ForecastService
	loc             *time.Location
	now             func() time.Time
}

// NewAnalyticsController 创建AnalyticsController实例
func NewAnalyticsController(service core.AnalyticsService, forecastService core.ForecastService, loc *time.Location) *AnalyticsController {
	return &AnalyticsController{
		service:         service,
		forecastService: forecastService,
		loc:             loc,
		now:             time.Now,
	}
}

func (controller *AnalyticsController) today() time.Time {
	return controller.now().In(controller.loc)
}

// KPI 关键指标汇总
func (controller *AnalyticsController) KPI(c *gin.Context) {
	var query forms.DateRangeQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		controller.HandleError(c, err, http.StatusBadRequest)
		return
	}
	start, end, err := query.Parse(controller.today(), defaultRangeDays)
	if err != nil {
		controller.HandleError(c, err, http.StatusBadRequest)
		return
	}

	summary, err := controller.service.KPI(c.Request.Context(), start, end)
	if err != nil {
		controller.HandleError(c, err, http.StatusInternalServerError)
		return
	}
	controller.HandleOK(c, summary)
}

// Breakdown 按维度拆分指标
func (controller *AnalyticsController) Breakdown(c *gin.Context) {
	var query forms.BreakdownQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		controller.HandleError(c, err, http.StatusBadRequest)
		return
	}
	metric, dimension, err := query.Parse()
	if err != nil {
		controller.HandleError(c, err, http.StatusBadRequest)
		return
	}
	start, end, err := query.DateRangeQuery.Parse(controller.today(), defaultRangeDays)
	if err != nil {
		controller.HandleError(c, err, http.StatusBadRequest)
		return
	}

	rows, err := controller.service.Breakdown(c.Request.Context(), metric, dimension, start, end)
	if err != nil {
		controller.HandleError(c, err, http.StatusInternalServerError)
		return
	}
	controller.HandleOK(c, map[string]interface{}{
		"metric":    metric.String(),
		"dimension": dimension.String(),
		"start":     start.Format(time.DateOnly),
		"end":       end.Format(time.DateOnly),
		"rows":      rows,
	})
}

// Forecast 指标预测
func (controller *AnalyticsController) Forecast(c *gin.Context) {
	var form forms.ForecastForm
	if err := c.ShouldBindJSON(&form); err != nil && !errors.Is(err, io.EOF) {
		controller.HandleError(c, err, http.StatusBadRequest)
		return
	}
	req, err := form.ToForecastRequest(controller.today())
	if err != nil {
		controller.HandleError(c, err, http.StatusBadRequest)
		return
	}

	result, err := controller.forecastService.Generate(c.Request.Context(), req)
	if err != nil {
		controller.HandleError(c, err, http.StatusInternalServerError)
		return
	}
	controller.HandleOK(c, result)
}
