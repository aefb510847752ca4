package handlers

import (
	"time"

	"fintrack/internal/middleware"
	"fintrack/internal/services"
	"fintrack/pkg/pagination"
	"fintrack/pkg/response"

	"github.com/gin-gonic/gin"
)

// ActivityHandler 活动日志处理器（仅管理员）
type ActivityHandler struct {
	activity *services.ActivityService
}

func NewActivityHandler(activity *services.ActivityService) *ActivityHandler {
	return &ActivityHandler{activity: activity}
}

// parseDateQuery 解析可选的日期查询参数
func parseDateQuery(c *gin.Context, name string) (*time.Time, bool) {
	value := c.Query(name)
	if value == "" {
		return nil, true
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		response.BadRequest(c, name+"日期格式错误")
		return nil, false
	}
	return &t, true
}

// GetAll 查询活动日志
func (h *ActivityHandler) GetAll(c *gin.Context) {
	admin := middleware.CurrentUser(c)

	filter := services.ActivityFilter{
		Module: c.Query("module"),
		Action: c.Query("action"),
	}
	if c.Query("entity_id") != "" {
		id, ok := parseQueryID(c, "entity_id")
		if !ok {
			return
		}
		filter.EntityID = id
	}
	if c.Query("user_id") != "" {
		id, ok := parseQueryID(c, "user_id")
		if !ok {
			return
		}
		filter.UserID = id
	}
	if c.Query("record_id") != "" {
		id, ok := parseQueryID(c, "record_id")
		if !ok {
			return
		}
		filter.RecordID = id
	}

	from, ok := parseDateQuery(c, "from")
	if !ok {
		return
	}
	filter.From = from

	to, ok := parseDateQuery(c, "to")
	if !ok {
		return
	}
	if to != nil {
		end := to.Add(24*time.Hour - time.Second)
		filter.To = &end
	}

	pageParams := pagination.ParsePageParams(c)
	logs, total, err := h.activity.List(admin.TenantID, filter, pageParams)
	if err != nil {
		response.FromError(c, err)
		return
	}

	pageInfo := pagination.NewPageInfo(pageParams.Page, pageParams.PageSize, total)
	response.SuccessWithPage(c, logs, pageInfo)
}

// Summary 按天/模块/动作统计活动量，默认最近30天
func (h *ActivityHandler) Summary(c *gin.Context) {
	admin := middleware.CurrentUser(c)

	to := time.Now()
	from := to.AddDate(0, 0, -30)

	if p, ok := parseDateQuery(c, "from"); !ok {
		return
	} else if p != nil {
		from = *p
	}
	if p, ok := parseDateQuery(c, "to"); !ok {
		return
	} else if p != nil {
		to = p.Add(24*time.Hour - time.Second)
	}

	summary, err := h.activity.Summary(admin.TenantID, from, to)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, summary)
}
