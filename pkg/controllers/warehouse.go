package controllers

import (
	"net/http"
	"time"

	"github.com/codelieche/analytics/pkg/controllers/forms"
	"github.com/codelieche/analytics/pkg/core"
	"github.com/codelieche/analytics/pkg/utils/controllers"
	"github.com/gin-gonic/gin"
)

// WarehouseController 数据仓库维护
type WarehouseController struct {
	controllers.BaseController
	dateStore core.DateDimensionStore
	loc       *time.Location
}

// NewWarehouseController 创建WarehouseController实例
func NewWarehouseController(dateStore core.DateDimensionStore, loc *time.Location) *WarehouseController {
	return &WarehouseController{
		dateStore: dateStore,
		loc:       loc,
	}
}

// MarkHoliday 标记节假日，日期行不存在时会创建
func (controller *WarehouseController) MarkHoliday(c *gin.Context) {
	var form forms.HolidayForm
	if err := c.ShouldBindJSON(&form); err != nil {
		controller.HandleError(c, err, http.StatusBadRequest)
		return
	}
	day, err := form.Validate(controller.loc)
	if err != nil {
		controller.HandleError(c, err, http.StatusBadRequest)
		return
	}

	date, err := controller.dateStore.MarkHoliday(c.Request.Context(), day, form.Name)
	if err != nil {
		controller.HandleError(c, err, http.StatusInternalServerError)
		return
	}
	controller.HandleOK(c, date)
}
