package handlers

import (
	"strconv"
	"time"

	"fintrack/internal/middleware"
	"fintrack/internal/services"
	"fintrack/pkg/response"

	"github.com/gin-gonic/gin"
)

// DashboardHandler 仪表盘处理器
type DashboardHandler struct {
	dashboard *services.DashboardService
}

func NewDashboardHandler(dashboard *services.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

// Stats 各实体状态统计与最近动态
func (h *DashboardHandler) Stats(c *gin.Context) {
	user := middleware.CurrentUser(c)

	stats, err := h.dashboard.Stats(user)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, stats)
}

// Calendar 指定月份的日期型字段日历视图，默认当月
func (h *DashboardHandler) Calendar(c *gin.Context) {
	user := middleware.CurrentUser(c)

	now := time.Now()
	year := now.Year()
	month := now.Month()

	if v := c.Query("year"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 2000 || n > 2100 {
			response.BadRequest(c, "year格式错误")
			return
		}
		year = n
	}
	if v := c.Query("month"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 12 {
			response.BadRequest(c, "month格式错误")
			return
		}
		month = time.Month(n)
	}

	items, err := h.dashboard.Calendar(user, year, month)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, items)
}
