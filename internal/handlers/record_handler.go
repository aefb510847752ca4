package handlers

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"fintrack/internal/middleware"
	"fintrack/internal/services"
	"fintrack/pkg/pagination"
	"fintrack/pkg/response"

	"github.com/gin-gonic/gin"
)

// RecordHandler 业务记录处理器
type RecordHandler struct {
	records  *services.RecordService
	approval *services.ApprovalService
	export   *services.ExportService
	importer *services.ImportService
}

func NewRecordHandler(records *services.RecordService, approval *services.ApprovalService,
	export *services.ExportService, importer *services.ImportService) *RecordHandler {
	return &RecordHandler{
		records:  records,
		approval: approval,
		export:   export,
		importer: importer,
	}
}

// 记录列表允许的排序列
var recordSortColumns = map[string]bool{
	"created_at": true,
	"updated_at": true,
	"status":     true,
	"version":    true,
}

// parseRecordFilter 解析列表/导出共用的过滤条件
func parseRecordFilter(c *gin.Context) (services.RecordFilter, bool) {
	filter := services.RecordFilter{
		Module: c.Query("module"),
		Status: c.Query("status"),
	}

	entityID, ok := parseQueryID(c, "entity_id")
	if !ok {
		return filter, false
	}
	filter.EntityID = entityID

	if c.Query("owner_id") != "" {
		ownerID, ok := parseQueryID(c, "owner_id")
		if !ok {
			return filter, false
		}
		filter.OwnerID = ownerID
	}

	if from := c.Query("from"); from != "" {
		t, err := time.Parse("2006-01-02", from)
		if err != nil {
			response.BadRequest(c, "from日期格式错误")
			return filter, false
		}
		filter.From = &t
	}
	if to := c.Query("to"); to != "" {
		t, err := time.Parse("2006-01-02", to)
		if err != nil {
			response.BadRequest(c, "to日期格式错误")
			return filter, false
		}
		end := t.Add(24*time.Hour - time.Second)
		filter.To = &end
	}

	if starred := c.Query("starred"); starred != "" {
		v := starred == "true"
		filter.Starred = &v
	}
	if archived := c.Query("archived"); archived != "" {
		v := archived == "true"
		filter.Archived = &v
	}
	filter.IncludeDeleted = c.Query("include_deleted") == "true"

	return filter, true
}

// Create 创建记录
func (h *RecordHandler) Create(c *gin.Context) {
	user := middleware.CurrentUser(c)

	var req services.CreateRecordInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return
	}

	record, err := h.records.Create(user, &req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, record)
}

// BulkCreateRequest 批量创建请求
type BulkCreateRequest struct {
	EntityID uint                     `json:"entity_id" binding:"required"`
	Items    []map[string]interface{} `json:"items" binding:"required"`
}

// BulkCreate 批量创建，逐项报告结果
func (h *RecordHandler) BulkCreate(c *gin.Context) {
	user := middleware.CurrentUser(c)

	var req BulkCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	results := h.records.BulkCreate(user, req.EntityID, req.Items)
	response.Success(c, results)
}

// GetAll 记录列表
func (h *RecordHandler) GetAll(c *gin.Context) {
	user := middleware.CurrentUser(c)

	filter, ok := parseRecordFilter(c)
	if !ok {
		return
	}

	pageParams := pagination.ParsePageParams(c)
	sort := pagination.ParseSort(c, recordSortColumns, "created_at desc")

	records, total, err := h.records.List(user, filter, pageParams, sort)
	if err != nil {
		response.FromError(c, err)
		return
	}

	pageInfo := pagination.NewPageInfo(pageParams.Page, pageParams.PageSize, total)
	response.SuccessWithPage(c, records, pageInfo)
}

// GetByID 记录详情
func (h *RecordHandler) GetByID(c *gin.Context) {
	user := middleware.CurrentUser(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	record, err := h.records.GetByID(user, id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, record)
}

// Update 全量替换记录载荷（携带版本号做乐观并发检查）
func (h *RecordHandler) Update(c *gin.Context) {
	user := middleware.CurrentUser(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req services.UpdateRecordInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return
	}

	record, err := h.records.Update(user, id, &req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, record)
}

// Delete 软删除记录
func (h *RecordHandler) Delete(c *gin.Context) {
	user := middleware.CurrentUser(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.records.SoftDelete(user, id); err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "记录已删除", nil)
}

// Restore 恢复软删除的记录（仅管理员）
func (h *RecordHandler) Restore(c *gin.Context) {
	user := middleware.CurrentUser(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	record, err := h.records.Restore(user, id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, record)
}

// Clone 克隆记录
func (h *RecordHandler) Clone(c *gin.Context) {
	user := middleware.CurrentUser(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	clone, err := h.records.Clone(user, id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, clone)
}

// Star 加星标
func (h *RecordHandler) Star(c *gin.Context) {
	h.setStarred(c, true)
}

// Unstar 取消星标
func (h *RecordHandler) Unstar(c *gin.Context) {
	h.setStarred(c, false)
}

func (h *RecordHandler) setStarred(c *gin.Context, starred bool) {
	user := middleware.CurrentUser(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	record, err := h.records.SetStarred(user, id, starred)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, record)
}

// Archive 归档记录
func (h *RecordHandler) Archive(c *gin.Context) {
	h.setArchived(c, true)
}

// Unarchive 取消归档
func (h *RecordHandler) Unarchive(c *gin.Context) {
	h.setArchived(c, false)
}

func (h *RecordHandler) setArchived(c *gin.Context, archived bool) {
	user := middleware.CurrentUser(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	record, err := h.records.SetArchived(user, id, archived)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, record)
}

// Versions 版本历史
func (h *RecordHandler) Versions(c *gin.Context) {
	user := middleware.CurrentUser(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	versions, err := h.records.ListVersions(user, id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, versions)
}

// ========== 审批工作流 ==========

// CommentRequest 审批意见
type CommentRequest struct {
	Comment string `json:"comment"`
}

// Submit 提交审批
func (h *RecordHandler) Submit(c *gin.Context) {
	user := middleware.CurrentUser(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	record, err := h.approval.Submit(user, id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, record)
}

// Approve 审批通过
func (h *RecordHandler) Approve(c *gin.Context) {
	user := middleware.CurrentUser(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req CommentRequest
	_ = c.ShouldBindJSON(&req)

	record, err := h.approval.Approve(user, id, req.Comment)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, record)
}

// Reject 审批驳回，必须填写理由
func (h *RecordHandler) Reject(c *gin.Context) {
	user := middleware.CurrentUser(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req CommentRequest
	_ = c.ShouldBindJSON(&req)

	record, err := h.approval.Reject(user, id, req.Comment)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, record)
}

// ========== 导出/导入 ==========

// Export 导出记录为CSV或Excel
func (h *RecordHandler) Export(c *gin.Context) {
	user := middleware.CurrentUser(c)

	filter, ok := parseRecordFilter(c)
	if !ok {
		return
	}

	result, err := h.export.Export(user, filter, c.DefaultQuery("format", "csv"))
	if err != nil {
		response.FromError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, result.Filename))
	c.Data(200, result.ContentType, result.Data)
}

// Import 从上传的CSV/Excel导入记录
func (h *RecordHandler) Import(c *gin.Context) {
	user := middleware.CurrentUser(c)

	entityID, ok := parseQueryID(c, "entity_id")
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "缺少上传文件")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.BadRequest(c, "读取上传文件失败")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	var rows [][]string
	switch ext {
	case ".csv":
		rows, err = services.ParseCSVRows(file)
	case ".xlsx":
		rows, err = services.ParseXLSXRows(file)
	default:
		response.BadRequest(c, "仅支持csv或xlsx文件")
		return
	}
	if err != nil {
		response.FromError(c, err)
		return
	}

	result, err := h.importer.Import(user, entityID, rows)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, result)
}
