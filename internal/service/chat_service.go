// Package service 实现了应用的业务逻辑层。
package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"hamdars-go/internal/config"
	"hamdars-go/internal/model"
	"hamdars-go/internal/repository"
	"hamdars-go/pkg/llm"
	"hamdars-go/pkg/log"
	"hamdars-go/pkg/tasks"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 问答管线的业务错误。上层（WebSocket 帧或 HTTP 响应）根据错误类别
// 映射为对应的用户可见文案。
var (
	// ErrInvalidRequest 表示请求载荷不完整：问题为空或缺少科目/章节。
	ErrInvalidRequest = errors.New("service: invalid chat request")
	// ErrQuotaExhausted 表示用户剩余提问配额为零。
	ErrQuotaExhausted = errors.New("service: question quota exhausted")
	// ErrOffTopic 表示问题没有命中任何课程关键词且长度不足，被域前置过滤拒绝。
	ErrOffTopic = errors.New("service: question outside curriculum domain")
	// ErrSessionNotFound 表示会话不存在或不属于当前用户。
	ErrSessionNotFound = errors.New("service: session not found")
)

// 标题生成失败时的兜底会话标题。
const untitledSessionTitle = "مکالمه بدون عنوان"

// TurnPublisher 把已持久化的问答回合投递到异步索引管线。
// 投递是尽力而为的：失败只记日志，不影响问答主链路。
type TurnPublisher interface {
	PublishTurn(task tasks.ChatTurnTask) error
}

// ChatTurnResponse 是问答历史接口返回的单个回合。
type ChatTurnResponse struct {
	ID        uint            `json:"id"`
	Subject   string          `json:"subject"`
	Chapter   string          `json:"chapter"`
	Question  string          `json:"question"`
	Response  string          `json:"response"`
	CreatedAt model.LocalTime `json:"createdAt"`
}

// ChatService 定义了问答管线的业务接口。
type ChatService interface {
	// EnsureSession 解析连接携带的会话 ID。ID 为空或不属于该用户时
	// 铸造一个新会话并返回 created=true，调用方据此通知客户端持久化新 ID。
	EnsureSession(ctx context.Context, userID uint, sessionID string) (id string, created bool, err error)
	// Ask 执行完整的问答回合：校验、配额门禁、域过滤、提示词组装、
	// 调用上游、原子持久化与扣减，最后投递索引事件并按需触发标题生成。
	Ask(ctx context.Context, userID uint, sessionID string, req model.ChatRequest) (*model.Chat, error)
	// History 返回用户在某会话下的全部问答，按时间正序。
	History(ctx context.Context, userID uint, sessionID string) ([]ChatTurnResponse, error)
	// Sessions 返回用户的全部会话，按创建时间倒序。
	Sessions(ctx context.Context, userID uint) ([]model.Session, error)
}

type chatService struct {
	chatRepo    repository.ChatRepository
	sessionRepo repository.SessionRepository
	userRepo    repository.UserRepository
	llmClient   llm.Client
	publisher   TurnPublisher
	cfg         config.ChatConfig
}

// NewChatService 创建一个新的 ChatService 实例。publisher 可以为 nil（禁用索引投递）。
func NewChatService(
	chatRepo repository.ChatRepository,
	sessionRepo repository.SessionRepository,
	userRepo repository.UserRepository,
	llmClient llm.Client,
	publisher TurnPublisher,
	cfg config.ChatConfig,
) ChatService {
	return &chatService{
		chatRepo:    chatRepo,
		sessionRepo: sessionRepo,
		userRepo:    userRepo,
		llmClient:   llmClient,
		publisher:   publisher,
		cfg:         cfg,
	}
}

// EnsureSession 校验或铸造会话。客户端提供的 ID 查不到（或属于他人）时
// 不报错，而是直接铸造新会话，避免陈旧 Cookie 卡死客户端。
func (s *chatService) EnsureSession(ctx context.Context, userID uint, sessionID string) (string, bool, error) {
	if sessionID != "" {
		session, err := s.sessionRepo.FindByID(ctx, sessionID)
		if err == nil && session.UserID == userID {
			return session.ID, false, nil
		}
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, err
		}
	}

	id := uuid.NewString()
	if err := s.sessionRepo.Create(ctx, &model.Session{ID: id, UserID: userID}); err != nil {
		return "", false, err
	}
	return id, true, nil
}

// Ask 是问答管线的入口。各阶段按代价从低到高排列：
// 先做纯内存校验，再查一次配额做门禁，最后才调用上游。
// 配额门禁只是快照，真正的扣减由 SaveTurn 的条件更新兜底。
func (s *chatService) Ask(ctx context.Context, userID uint, sessionID string, req model.ChatRequest) (*model.Chat, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" || req.Subject == "" || req.Chapter == "" {
		return nil, ErrInvalidRequest
	}

	// 配额门禁：剩余为零直接拒绝，省掉一次上游调用
	remaining, err := s.userRepo.QuestionsRemaining(userID)
	if err != nil {
		return nil, err
	}
	if remaining <= 0 {
		return nil, ErrQuotaExhausted
	}

	// 域前置过滤：未命中任何课程关键词且长度不足的短问题视为闲聊
	if !s.onTopic(question) {
		return nil, ErrOffTopic
	}

	history, err := s.chatRepo.FindBySession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	answer, err := s.llmClient.Chat(ctx, s.buildMessages(history, question), nil)
	if err != nil {
		return nil, err
	}

	chat := &model.Chat{
		UserID:    userID,
		SessionID: sessionID,
		Subject:   req.Subject,
		Chapter:   req.Chapter,
		Question:  question,
		Response:  answer,
		Cost:      1,
	}
	if err := s.chatRepo.SaveTurn(ctx, chat); err != nil {
		if errors.Is(err, repository.ErrQuotaExhausted) {
			// 并发连接在上游调用期间花掉了最后的配额
			return nil, ErrQuotaExhausted
		}
		return nil, err
	}

	// 回合已落库：索引投递与标题生成都在主链路之外，失败不回传给用户
	s.publishTurn(chat)
	if len(history) == 0 {
		go s.generateTitle(sessionID, question, answer)
	}

	return chat, nil
}

// History 返回会话的问答历史。会话必须属于当前用户。
func (s *chatService) History(ctx context.Context, userID uint, sessionID string) ([]ChatTurnResponse, error) {
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if session.UserID != userID {
		return nil, ErrSessionNotFound
	}

	chats, err := s.chatRepo.FindBySession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	turns := make([]ChatTurnResponse, 0, len(chats))
	for _, c := range chats {
		turns = append(turns, ChatTurnResponse{
			ID:        c.ID,
			Subject:   c.Subject,
			Chapter:   c.Chapter,
			Question:  c.Question,
			Response:  c.Response,
			CreatedAt: model.LocalTime(c.CreatedAt),
		})
	}
	return turns, nil
}

// Sessions 返回用户的会话列表。
func (s *chatService) Sessions(ctx context.Context, userID uint) ([]model.Session, error) {
	return s.sessionRepo.FindByUser(ctx, userID)
}

// onTopic 判断问题是否在课程域内。
// 命中任一课程关键词即放行；未命中时，只有长度达到阈值的长问题
// 才交给上游人设提示词去把关，短问题直接拒绝。
func (s *chatService) onTopic(question string) bool {
	for _, kw := range s.cfg.DomainKeywords {
		if strings.Contains(question, kw) {
			return true
		}
	}
	return utf8.RuneCountInString(question) >= s.cfg.MinQuestionRunes
}

// buildMessages 组装发往上游的消息序列：人设提示词 + 截断后的会话历史 + 当前问题。
// 历史按消息条数截断（user 和 assistant 各算一条），从最旧的开始丢弃。
func (s *chatService) buildMessages(history []model.Chat, question string) []llm.Message {
	msgs := make([]llm.Message, 0, len(history)*2)
	for _, turn := range history {
		msgs = append(msgs,
			llm.Message{Role: "user", Content: turn.Question},
			llm.Message{Role: "assistant", Content: turn.Response},
		)
	}
	if max := s.cfg.MaxHistoryLength; max > 0 && len(msgs) > max {
		msgs = msgs[len(msgs)-max:]
		// 截断后首条不能是 assistant，保持 user/assistant 成对
		if msgs[0].Role == "assistant" {
			msgs = msgs[1:]
		}
	}

	out := make([]llm.Message, 0, len(msgs)+2)
	out = append(out, llm.Message{Role: "system", Content: s.cfg.SystemPrompt})
	out = append(out, msgs...)
	out = append(out, llm.Message{Role: "user", Content: question})
	return out
}

// publishTurn 投递索引事件，失败只记日志。
func (s *chatService) publishTurn(chat *model.Chat) {
	if s.publisher == nil {
		return
	}
	task := tasks.ChatTurnTask{
		ChatID:    chat.ID,
		UserID:    chat.UserID,
		SessionID: chat.SessionID,
		Subject:   chat.Subject,
		Chapter:   chat.Chapter,
		Question:  chat.Question,
		Response:  chat.Response,
		CreatedAt: chat.CreatedAt,
	}
	if err := s.publisher.PublishTurn(task); err != nil {
		log.Errorf("投递问答索引事件失败: chatId=%d: %v", chat.ID, err)
	}
}

// generateTitle 在首轮问答完成后异步补写会话标题。
// 上游失败或返回空串时写入兜底标题，保证会话列表不出现空标题。
func (s *chatService) generateTitle(sessionID, question, answer string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	title, err := s.llmClient.GenerateTitle(ctx, []llm.Message{
		{Role: "user", Content: question},
		{Role: "assistant", Content: answer},
	})
	if err != nil || strings.TrimSpace(title) == "" {
		if err != nil {
			log.Warnf("生成会话标题失败，使用兜底标题: session=%s: %v", sessionID, err)
		}
		title = untitledSessionTitle
	}

	if err := s.sessionRepo.UpdateTitle(ctx, sessionID, title); err != nil {
		log.Errorf("写入会话标题失败: session=%s: %v", sessionID, err)
	}
}
