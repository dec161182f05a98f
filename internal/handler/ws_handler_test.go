package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"hamdars-go/internal/config"
	"hamdars-go/internal/model"
	"hamdars-go/internal/service"
	"hamdars-go/pkg/database"
	"hamdars-go/pkg/token"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeChatService 是 ChatService 的测试桩，Ask 行为按测试需要注入。
type fakeChatService struct {
	sessionID string
	created   bool
	askFunc   func(req model.ChatRequest) (*model.Chat, error)
	lastReq   model.ChatRequest
}

func (f *fakeChatService) EnsureSession(_ context.Context, _ uint, requested string) (string, bool, error) {
	if requested != "" && requested == f.sessionID {
		return f.sessionID, false, nil
	}
	return f.sessionID, f.created, nil
}

func (f *fakeChatService) Ask(_ context.Context, _ uint, _ string, req model.ChatRequest) (*model.Chat, error) {
	f.lastReq = req
	if f.askFunc != nil {
		return f.askFunc(req)
	}
	return &model.Chat{Response: "جواب معلم"}, nil
}

func (f *fakeChatService) History(context.Context, uint, string) ([]service.ChatTurnResponse, error) {
	return nil, nil
}

func (f *fakeChatService) Sessions(context.Context, uint) ([]model.Session, error) {
	return nil, nil
}

type wsFixture struct {
	server     *httptest.Server
	chat       *fakeChatService
	jwtManager *token.JWTManager
}

func newWsFixture(t *testing.T, cfg config.ChatConfig) *wsFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	database.RDB = redis.NewClient(&redis.Options{Addr: mr.Addr()})

	chat := &fakeChatService{sessionID: "minted-session", created: true}
	jwtManager := token.NewJWTManager("ws-test-secret", 24, 7)

	router := gin.New()
	router.GET("/ws/chat", NewWsHandler(chat, jwtManager, cfg).Serve)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &wsFixture{server: server, chat: chat, jwtManager: jwtManager}
}

func wsTestConfig() config.ChatConfig {
	return config.ChatConfig{
		WindowMillis:      60000,
		WindowMaxMessages: 100,
	}
}

// dial 建立 WebSocket 连接。tokenString 为空时不带认证 Cookie。
func (f *wsFixture) dial(t *testing.T, tokenString, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws/chat" + query

	header := http.Header{}
	if tokenString != "" {
		header.Set("Cookie", "token="+tokenString)
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (f *wsFixture) validToken(t *testing.T) string {
	t.Helper()
	tokenString, err := f.jwtManager.GenerateToken(1, "09120000000", "USER")
	require.NoError(t, err)
	return tokenString
}

func readFrame(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	return string(payload)
}

func sendQuestion(t *testing.T, conn *websocket.Conn, question string) {
	t.Helper()
	payload, _ := json.Marshal(model.ChatRequest{
		Question: question,
		Subject:  "ریاضی",
		Chapter:  "فصل ۱",
	})
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, payload))
}

func assertClosed(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "连接应已被服务端关闭")
}

func TestWsUnauthenticated(t *testing.T) {
	f := newWsFixture(t, wsTestConfig())
	conn := f.dial(t, "", "")

	assert.Equal(t, "E:Authentication required", readFrame(t, conn))
	assertClosed(t, conn)
}

func TestWsBlacklistedToken(t *testing.T) {
	f := newWsFixture(t, wsTestConfig())
	tokenString := f.validToken(t)
	require.NoError(t, database.RDB.Set(context.Background(), "jwt:blacklist:"+tokenString, "1", time.Hour).Err())

	conn := f.dial(t, tokenString, "")
	assert.Equal(t, "E:Authentication required", readFrame(t, conn))
	assertClosed(t, conn)
}

func TestWsNewSessionEnvelopeThenAnswer(t *testing.T) {
	f := newWsFixture(t, wsTestConfig())
	conn := f.dial(t, f.validToken(t), "")

	// 新会话：第一帧是一次性的 setCookie 信封
	var envelope struct {
		SetCookie string `json:"setCookie"`
	}
	require.NoError(t, json.Unmarshal([]byte(readFrame(t, conn)), &envelope))
	assert.Equal(t, "sessionId=minted-session", envelope.SetCookie)

	sendQuestion(t, conn, "جمع دو کسر چطور است؟")
	assert.Equal(t, "M:جواب معلم", readFrame(t, conn))
	assert.Equal(t, "جمع دو کسر چطور است؟", f.chat.lastReq.Question)
}

func TestWsExistingSessionSkipsEnvelope(t *testing.T) {
	f := newWsFixture(t, wsTestConfig())
	f.chat.sessionID = "known-session"

	conn := f.dial(t, f.validToken(t), "?sessionId=known-session")

	sendQuestion(t, conn, "سؤال")
	assert.Equal(t, "M:جواب معلم", readFrame(t, conn))
}

func TestWsErrorFrameMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"quota", service.ErrQuotaExhausted, "E:خرید بسته"},
		{"offtopic", service.ErrOffTopic, "E:این سؤال خارج از موضوع درسه!"},
		{"invalid", service.ErrInvalidRequest, "E:Invalid request"},
		{"internal", errors.New("upstream exploded"), "E:Error processing message"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newWsFixture(t, wsTestConfig())
			f.chat.askFunc = func(model.ChatRequest) (*model.Chat, error) {
				return nil, tc.err
			}
			conn := f.dial(t, f.validToken(t), "")
			readFrame(t, conn) // 跳过 setCookie 信封

			sendQuestion(t, conn, "سؤال")
			assert.Equal(t, tc.want, readFrame(t, conn))

			// 业务错误不断连：下一条消息照常处理
			f.chat.askFunc = nil
			sendQuestion(t, conn, "سؤال دوم")
			assert.Equal(t, "M:جواب معلم", readFrame(t, conn))
		})
	}
}

func TestWsMalformedPayload(t *testing.T) {
	f := newWsFixture(t, wsTestConfig())
	conn := f.dial(t, f.validToken(t), "")
	readFrame(t, conn) // setCookie 信封

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not-json")))
	assert.Equal(t, "E:Invalid request", readFrame(t, conn))

	// 连接保持打开
	sendQuestion(t, conn, "سؤال")
	assert.Equal(t, "M:جواب معلم", readFrame(t, conn))
}

func TestWsRateLimitTerminatesConnection(t *testing.T) {
	cfg := wsTestConfig()
	cfg.WindowMaxMessages = 2
	f := newWsFixture(t, cfg)
	conn := f.dial(t, f.validToken(t), "")
	readFrame(t, conn) // setCookie 信封

	sendQuestion(t, conn, "اول")
	assert.Equal(t, "M:جواب معلم", readFrame(t, conn))
	sendQuestion(t, conn, "دوم")
	assert.Equal(t, "M:جواب معلم", readFrame(t, conn))

	// 窗口内第三条：错误帧后连接被关闭
	sendQuestion(t, conn, "سوم")
	assert.Equal(t, "E:Too many messages", readFrame(t, conn))
	assertClosed(t, conn)
}
