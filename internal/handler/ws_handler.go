// Package handler 包含了处理 HTTP 与 WebSocket 请求的处理器。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"hamdars-go/internal/config"
	"hamdars-go/internal/middleware"
	"hamdars-go/internal/model"
	"hamdars-go/internal/service"
	"hamdars-go/pkg/database"
	"hamdars-go/pkg/log"
	"hamdars-go/pkg/ratelimit"
	"hamdars-go/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// 发往客户端的帧文案。错误帧以 "E:" 开头，回答帧以 "M:" 开头；
// 波斯语文案直接面向学生展示。
const (
	frameAuthRequired   = "E:Authentication required"
	frameInvalidRequest = "E:Invalid request"
	frameQuotaExhausted = "E:خرید بسته"
	frameOffTopic       = "E:این سؤال خارج از موضوع درسه!"
	frameProcessFailed  = "E:Error processing message"
	frameTooMany        = "E:Too many messages"
	answerPrefix        = "M:"
)

// 单次问答处理的硬超时，覆盖上游调用与持久化。
const askTimeout = 120 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// 前端与后端不同源部署，跨源检查交给网关层
	CheckOrigin: func(r *http.Request) bool { return true },
}

// sessionEnvelope 是会话铸造后发给客户端的一次性帧，
// 客户端将其中的值持久化为 Cookie，重连时带回。
type sessionEnvelope struct {
	SetCookie string `json:"setCookie"`
}

// WsHandler 管理 WebSocket 连接的完整生命周期：
// 升级、认证、会话解析、逐消息限流与问答管线调度。
// 每条连接的全部状态（限流窗口、会话 ID）由该连接的处理协程独占，
// 不存在跨连接共享的可变状态，连接断开即全部释放。
type WsHandler struct {
	chatService service.ChatService
	jwtManager  *token.JWTManager
	cfg         config.ChatConfig
}

// NewWsHandler 创建一个新的 WsHandler 实例。
func NewWsHandler(chatService service.ChatService, jwtManager *token.JWTManager, cfg config.ChatConfig) *WsHandler {
	return &WsHandler{
		chatService: chatService,
		jwtManager:  jwtManager,
		cfg:         cfg,
	}
}

// Serve 处理 /ws/chat 的连接请求。
// 认证失败不是拒绝升级，而是升级后发送错误帧再关闭，
// 这样浏览器端能读到具体原因而不是一个裸的握手失败。
func (h *WsHandler) Serve(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warnf("WebSocket 升级失败: %v", err)
		return
	}
	defer conn.Close()

	claims := h.authenticate(c)
	if claims == nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(frameAuthRequired))
		return
	}

	// 解析会话：优先取查询参数，其次取 Cookie；都无效则铸造新会话
	requested := c.Query("sessionId")
	if requested == "" {
		if cookie, err := c.Cookie("sessionId"); err == nil {
			requested = cookie
		}
	}
	sessionID, created, err := h.chatService.EnsureSession(c.Request.Context(), claims.UserID, requested)
	if err != nil {
		log.Errorf("解析会话失败: userId=%d: %v", claims.UserID, err)
		_ = conn.WriteMessage(websocket.TextMessage, []byte(frameProcessFailed))
		return
	}
	if created {
		envelope, _ := json.Marshal(sessionEnvelope{SetCookie: "sessionId=" + sessionID})
		if err := conn.WriteMessage(websocket.TextMessage, envelope); err != nil {
			return
		}
	}

	log.Infow("WebSocket 连接建立",
		"userId", claims.UserID,
		"sessionId", sessionID,
		"newSession", created,
	)

	h.serveMessages(conn, claims.UserID, sessionID)
}

// authenticate 校验连接携带的 JWT，包括黑名单检查。失败返回 nil。
func (h *WsHandler) authenticate(c *gin.Context) *token.CustomClaims {
	tokenString := middleware.ExtractToken(c)
	if tokenString == "" {
		return nil
	}
	blacklisted, err := database.RDB.Exists(c.Request.Context(), "jwt:blacklist:"+tokenString).Result()
	if err == nil && blacklisted > 0 {
		return nil
	}
	claims, err := h.jwtManager.VerifyToken(tokenString)
	if err != nil {
		return nil
	}
	return claims
}

// serveMessages 是连接的消息循环。
// 限流窗口以连接建立时刻为锚点；超限是终止性事件，发送错误帧后断开。
func (h *WsHandler) serveMessages(conn *websocket.Conn, userID uint, sessionID string) {
	window := ratelimit.NewWindow(
		h.cfg.WindowMaxMessages,
		time.Duration(h.cfg.WindowMillis)*time.Millisecond,
		time.Now(),
	)

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}

		if !window.Allow(time.Now()) {
			log.Warnw("连接消息超限，断开", "userId", userID, "sessionId", sessionID)
			_ = conn.WriteMessage(websocket.TextMessage, []byte(frameTooMany))
			return
		}

		var req model.ChatRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(frameInvalidRequest)); err != nil {
				return
			}
			continue
		}

		// 连接升级后请求上下文已不再可靠，每条消息用独立的超时上下文
		ctx, cancel := context.WithTimeout(context.Background(), askTimeout)
		chat, err := h.chatService.Ask(ctx, userID, sessionID, req)
		cancel()

		var frame string
		switch {
		case err == nil:
			frame = answerPrefix + chat.Response
		case errors.Is(err, service.ErrInvalidRequest):
			frame = frameInvalidRequest
		case errors.Is(err, service.ErrQuotaExhausted):
			frame = frameQuotaExhausted
		case errors.Is(err, service.ErrOffTopic):
			frame = frameOffTopic
		default:
			log.Errorf("处理问答消息失败: userId=%d, sessionId=%s: %v", userID, sessionID, err)
			frame = frameProcessFailed
		}

		if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
			return
		}
	}
}
