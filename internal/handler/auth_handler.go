package handler

import (
	"errors"
	"net/http"

	"hamdars-go/internal/middleware"
	"hamdars-go/internal/service"

	"github.com/gin-gonic/gin"
)

// token Cookie 的有效期（秒），与 access token 的默认有效期一致。
const tokenCookieMaxAge = 24 * 3600

// AuthHandler 处理认证相关的请求。
type AuthHandler struct {
	userService service.UserService
}

// NewAuthHandler 创建一个新的 AuthHandler 实例。
func NewAuthHandler(userService service.UserService) *AuthHandler {
	return &AuthHandler{userService: userService}
}

type loginRequest struct {
	Phone string `json:"phone" binding:"required"`
}

type adminLoginRequest struct {
	Phone    string `json:"phone" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// Login 处理学生端手机号登录，首次登录自动注册。
// 登录成功后种下 token Cookie，浏览器端的 WebSocket 连接靠它认证。
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "请求参数错误: " + err.Error(),
		})
		return
	}

	resp, err := h.userService.Login(req.Phone)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "登录失败",
		})
		return
	}

	c.SetCookie("token", resp.Token, tokenCookieMaxAge, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "登录成功",
		"data":    resp,
	})
}

// AdminLogin 处理管理员登录，需要手机号加密码。
func (h *AuthHandler) AdminLogin(c *gin.Context) {
	var req adminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "请求参数错误: " + err.Error(),
		})
		return
	}

	resp, err := h.userService.AdminLogin(req.Phone, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":    http.StatusUnauthorized,
				"message": "手机号或密码错误",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "登录失败",
		})
		return
	}

	c.SetCookie("token", resp.Token, tokenCookieMaxAge, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "登录成功",
		"data":    resp,
	})
}

// Refresh 用 refresh token 换取新的 token 对。
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "请求参数错误: " + err.Error(),
		})
		return
	}

	resp, err := h.userService.RefreshToken(req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"code":    http.StatusUnauthorized,
			"message": "refresh token 无效",
		})
		return
	}

	c.SetCookie("token", resp.Token, tokenCookieMaxAge, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "刷新成功",
		"data":    resp,
	})
}

// Logout 登出：token 进黑名单，清除 Cookie。
func (h *AuthHandler) Logout(c *gin.Context) {
	userID := c.GetUint(middleware.ContextUserIDKey)
	tokenString := middleware.ExtractToken(c)

	if err := h.userService.Logout(c.Request.Context(), userID, tokenString); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "登出失败",
		})
		return
	}

	c.SetCookie("token", "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "登出成功",
	})
}

// Verify 确认当前 token 有效并返回对应的用户资料，供前端恢复登录态。
func (h *AuthHandler) Verify(c *gin.Context) {
	userID := c.GetUint(middleware.ContextUserIDKey)

	user, err := h.userService.GetProfile(userID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"code":    http.StatusUnauthorized,
			"message": "用户不存在",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    user,
	})
}

type guestActivityRequest struct {
	Type    string                 `json:"type" binding:"required"`
	Payload map[string]interface{} `json:"payload"`
}

// GuestActivity 记录未登录访客的页面活动，无需认证。
func (h *AuthHandler) GuestActivity(c *gin.Context) {
	var req guestActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "请求参数错误: " + err.Error(),
		})
		return
	}

	if err := h.userService.LogGuestActivity(req.Type, req.Payload); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "记录失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "记录成功",
	})
}
