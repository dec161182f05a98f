package handler

import (
	"errors"
	"net/http"

	"hamdars-go/internal/middleware"
	"hamdars-go/internal/service"

	"github.com/gin-gonic/gin"
)

// UserHandler 处理用户个人资料相关的请求。
type UserHandler struct {
	userService service.UserService
}

// NewUserHandler 创建一个新的 UserHandler 实例。
func NewUserHandler(userService service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// GetProfile 返回当前用户的个人资料，包含剩余提问配额。
func (h *UserHandler) GetProfile(c *gin.Context) {
	userID := c.GetUint(middleware.ContextUserIDKey)

	user, err := h.userService.GetProfile(userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"code":    http.StatusNotFound,
				"message": "用户不存在",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "获取资料失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    user,
	})
}

// UpdateProfile 更新当前用户的个人资料。
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	userID := c.GetUint(middleware.ContextUserIDKey)

	var req service.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "请求参数错误: " + err.Error(),
		})
		return
	}

	user, err := h.userService.UpdateProfile(userID, req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "更新资料失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "更新成功",
		"data":    user,
	})
}
