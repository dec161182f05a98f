package handler

import (
	"errors"
	"net/http"

	"hamdars-go/internal/middleware"
	"hamdars-go/internal/model"
	"hamdars-go/internal/service"

	"github.com/gin-gonic/gin"
)

// ChatHandler 处理问答的 REST 伴生接口。
// WebSocket 是问答的主通道；REST 通道服务于不便维持长连接的客户端，
// 两者走同一条业务管线，语义完全一致。
type ChatHandler struct {
	chatService service.ChatService
}

// NewChatHandler 创建一个新的 ChatHandler 实例。
func NewChatHandler(chatService service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

type askRequest struct {
	SessionID string `json:"sessionId"`
	Question  string `json:"question" binding:"required"`
	Subject   string `json:"subject" binding:"required"`
	Chapter   string `json:"chapter" binding:"required"`
}

// Ask 处理一次 REST 问答。sessionId 为空时铸造新会话并随响应返回。
func (h *ChatHandler) Ask(c *gin.Context) {
	userID := c.GetUint(middleware.ContextUserIDKey)

	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "请求参数错误: " + err.Error(),
		})
		return
	}

	sessionID, _, err := h.chatService.EnsureSession(c.Request.Context(), userID, req.SessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "创建会话失败",
		})
		return
	}

	chat, err := h.chatService.Ask(c.Request.Context(), userID, sessionID, model.ChatRequest{
		Question: req.Question,
		Subject:  req.Subject,
		Chapter:  req.Chapter,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRequest):
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    http.StatusBadRequest,
				"message": "请求参数错误",
			})
		case errors.Is(err, service.ErrQuotaExhausted):
			c.JSON(http.StatusPaymentRequired, gin.H{
				"code":    http.StatusPaymentRequired,
				"message": "خرید بسته",
			})
		case errors.Is(err, service.ErrOffTopic):
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"code":    http.StatusUnprocessableEntity,
				"message": "این سؤال خارج از موضوع درسه!",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    http.StatusInternalServerError,
				"message": "处理问题失败",
			})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data": gin.H{
			"sessionId": sessionID,
			"answer":    chat.Response,
		},
	})
}

// Sessions 返回当前用户的会话列表。
func (h *ChatHandler) Sessions(c *gin.Context) {
	userID := c.GetUint(middleware.ContextUserIDKey)

	sessions, err := h.chatService.Sessions(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "获取会话列表失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    sessions,
	})
}

// History 返回指定会话的问答历史。
func (h *ChatHandler) History(c *gin.Context) {
	userID := c.GetUint(middleware.ContextUserIDKey)
	sessionID := c.Query("sessionId")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "缺少 sessionId 参数",
		})
		return
	}

	turns, err := h.chatService.History(c.Request.Context(), userID, sessionID)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"code":    http.StatusNotFound,
				"message": "会话不存在",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "获取历史失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    turns,
	})
}
