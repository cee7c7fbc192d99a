package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"automations/internal/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// AutomationHandler 管理定时自动化任务
type AutomationHandler struct {
	service *services.AutomationService
}

func NewAutomationHandler(service *services.AutomationService) *AutomationHandler {
	return &AutomationHandler{service: service}
}

// List 获取全部自动化任务
func (h *AutomationHandler) List(c *gin.Context) {
	list, err := h.service.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to list automations", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, list)
}

// Create 创建自动化任务
func (h *AutomationHandler) Create(c *gin.Context) {
	var req services.AutomationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	a, err := h.service.Create(c.Request.Context(), &req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, services.ErrInvalidAutomation) {
			status = http.StatusBadRequest
		}
		c.JSON(status, ErrorResponse{Error: "Failed to create automation", Message: err.Error()})
		return
	}
	c.JSON(http.StatusCreated, a)
}

// Get 获取单个任务
func (h *AutomationHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	a, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		writeLookupError(c, "Failed to get automation", err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// Run 立即执行一次（不影响调度以外的状态规则）
func (h *AutomationHandler) Run(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	res, err := h.service.RunNow(c.Request.Context(), id)
	if err != nil {
		writeLookupError(c, "Failed to run automation", err)
		return
	}
	status := http.StatusOK
	if res.ErrorMessage == services.MsgAlreadyRunning {
		status = http.StatusConflict
	}
	c.JSON(status, res)
}

// Reactivate 将 failed 任务恢复为 active
func (h *AutomationHandler) Reactivate(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	a, err := h.service.Reactivate(c.Request.Context(), id)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, a)
	case errors.Is(err, services.ErrNotFailed):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "Failed to reactivate automation", Message: err.Error()})
	case errors.Is(err, services.ErrInvalidAutomation):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "Failed to reactivate automation", Message: err.Error()})
	default:
		writeLookupError(c, "Failed to reactivate automation", err)
	}
}

// Runs 执行记录，?limit= 默认 50
func (h *AutomationHandler) Runs(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	runs, err := h.service.ListRuns(c.Request.Context(), id, limit)
	if err != nil {
		writeLookupError(c, "Failed to list runs", err)
		return
	}
	c.JSON(http.StatusOK, runs)
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		msg := "id must be a positive integer"
		if err != nil {
			msg = err.Error()
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid id", Message: msg})
		return 0, false
	}
	return uint(id), true
}

func writeLookupError(c *gin.Context, what string, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, gorm.ErrRecordNotFound) {
		status = http.StatusNotFound
	}
	c.JSON(status, ErrorResponse{Error: what, Message: err.Error()})
}

// RegisterAutomationRoutes 注册路由
func RegisterAutomationRoutes(r *gin.RouterGroup, handler *AutomationHandler) {
	auto := r.Group("/automations")
	{
		auto.GET("", handler.List)
		auto.POST("", handler.Create)
		auto.GET("/:id", handler.Get)
		auto.POST("/:id/run", handler.Run)
		auto.POST("/:id/reactivate", handler.Reactivate)
		auto.GET("/:id/runs", handler.Runs)
	}
}
