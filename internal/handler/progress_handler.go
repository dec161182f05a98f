package handler

import (
	"net/http"

	"hamdars-go/internal/middleware"
	"hamdars-go/internal/service"

	"github.com/gin-gonic/gin"
)

// ProgressHandler 处理学习进度相关的请求。
type ProgressHandler struct {
	progressService service.ProgressService
}

// NewProgressHandler 创建一个新的 ProgressHandler 实例。
func NewProgressHandler(progressService service.ProgressService) *ProgressHandler {
	return &ProgressHandler{progressService: progressService}
}

// GetProgress 返回当前用户的全部学习进度。
func (h *ProgressHandler) GetProgress(c *gin.Context) {
	userID := c.GetUint(middleware.ContextUserIDKey)

	progress, err := h.progressService.GetProgress(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "获取进度失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    progress,
	})
}

// SaveProgress 上报学习进度，同一章节重复上报只保留最新值。
func (h *ProgressHandler) SaveProgress(c *gin.Context) {
	userID := c.GetUint(middleware.ContextUserIDKey)

	var req service.SaveProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "请求参数错误: " + err.Error(),
		})
		return
	}

	progress, err := h.progressService.SaveProgress(userID, req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "保存进度失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "保存成功",
		"data":    progress,
	})
}
