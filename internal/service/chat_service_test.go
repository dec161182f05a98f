package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"hamdars-go/internal/config"
	"hamdars-go/internal/model"
	"hamdars-go/internal/repository"
	"hamdars-go/pkg/llm"
	"hamdars-go/pkg/tasks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// ---- 内存桩实现 ----

type fakeUserRepo struct {
	remaining    int
	remainingErr error
}

func (f *fakeUserRepo) Create(*model.User) error                    { return nil }
func (f *fakeUserRepo) FindByPhone(string) (*model.User, error)     { return nil, gorm.ErrRecordNotFound }
func (f *fakeUserRepo) FindByID(uint) (*model.User, error)          { return nil, gorm.ErrRecordNotFound }
func (f *fakeUserRepo) Update(*model.User) error                    { return nil }
func (f *fakeUserRepo) FindWithPagination(int, int) ([]model.User, int64, error) {
	return nil, 0, nil
}
func (f *fakeUserRepo) QuestionsRemaining(uint) (int, error) {
	return f.remaining, f.remainingErr
}

type fakeChatRepo struct {
	history []model.Chat
	saveErr error
	saved   []*model.Chat
	nextID  uint
}

func (f *fakeChatRepo) SaveTurn(_ context.Context, chat *model.Chat) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.nextID++
	chat.ID = f.nextID
	chat.CreatedAt = time.Now()
	f.saved = append(f.saved, chat)
	return nil
}

func (f *fakeChatRepo) FindBySession(context.Context, uint, string) ([]model.Chat, error) {
	return f.history, nil
}

func (f *fakeChatRepo) CountAll(context.Context) (int64, error) {
	return int64(len(f.saved)), nil
}

type fakeSessionRepo struct {
	sessions     map[string]*model.Session
	titleUpdates chan string
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{
		sessions:     make(map[string]*model.Session),
		titleUpdates: make(chan string, 1),
	}
}

func (f *fakeSessionRepo) Create(_ context.Context, session *model.Session) error {
	f.sessions[session.ID] = session
	return nil
}

func (f *fakeSessionRepo) FindByID(_ context.Context, sessionID string) (*model.Session, error) {
	session, ok := f.sessions[sessionID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return session, nil
}

func (f *fakeSessionRepo) FindByUser(_ context.Context, userID uint) ([]model.Session, error) {
	var out []model.Session
	for _, s := range f.sessions {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeSessionRepo) UpdateTitle(_ context.Context, sessionID, title string) error {
	if s, ok := f.sessions[sessionID]; ok {
		s.Title = title
	}
	f.titleUpdates <- title
	return nil
}

type fakeLLM struct {
	answer    string
	chatErr   error
	title     string
	titleErr  error
	lastMsgs  []llm.Message
	chatCalls int
}

func (f *fakeLLM) Chat(_ context.Context, messages []llm.Message, onDelta func(string)) (string, error) {
	f.chatCalls++
	f.lastMsgs = messages
	if f.chatErr != nil {
		return "", f.chatErr
	}
	if onDelta != nil {
		onDelta(f.answer)
	}
	return f.answer, nil
}

func (f *fakeLLM) GenerateTitle(context.Context, []llm.Message) (string, error) {
	return f.title, f.titleErr
}

type fakePublisher struct {
	published chan tasks.ChatTurnTask
	err       error
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{published: make(chan tasks.ChatTurnTask, 4)}
}

func (f *fakePublisher) PublishTurn(task tasks.ChatTurnTask) error {
	if f.err != nil {
		return f.err
	}
	f.published <- task
	return nil
}

// ---- 测试脚手架 ----

func testChatConfig() config.ChatConfig {
	return config.ChatConfig{
		SystemPrompt:      "تو یک معلم خصوصی هستی",
		DomainKeywords:    []string{"جمع", "تفریق", "نیرو", "سرعت"},
		MinQuestionRunes:  5,
		MaxHistoryLength:  20,
		DefaultQuota:      10,
		DefaultGrade:      7,
		WindowMillis:      1000,
		WindowMaxMessages: 10,
	}
}

type chatFixture struct {
	svc         ChatService
	userRepo    *fakeUserRepo
	chatRepo    *fakeChatRepo
	sessionRepo *fakeSessionRepo
	llm         *fakeLLM
	publisher   *fakePublisher
}

func newChatFixture(cfg config.ChatConfig) *chatFixture {
	f := &chatFixture{
		userRepo:    &fakeUserRepo{remaining: 10},
		chatRepo:    &fakeChatRepo{},
		sessionRepo: newFakeSessionRepo(),
		llm:         &fakeLLM{answer: "جواب معلم", title: "عنوان تولیدی"},
		publisher:   newFakePublisher(),
	}
	f.svc = NewChatService(f.chatRepo, f.sessionRepo, f.userRepo, f.llm, f.publisher, cfg)
	return f
}

func domainQuestion() model.ChatRequest {
	return model.ChatRequest{
		Question: "جمع دو کسر چطور انجام می‌شود؟",
		Subject:  "ریاضی",
		Chapter:  "فصل ۲",
	}
}

// ---- Ask 管线 ----

func TestAskSuccessPersistsTurnAndPublishes(t *testing.T) {
	f := newChatFixture(testChatConfig())

	chat, err := f.svc.Ask(context.Background(), 1, "session-1", domainQuestion())
	require.NoError(t, err)
	assert.Equal(t, "جواب معلم", chat.Response)
	assert.Equal(t, 1, chat.Cost)

	require.Len(t, f.chatRepo.saved, 1)
	assert.Equal(t, uint(1), f.chatRepo.saved[0].UserID)
	assert.Equal(t, "session-1", f.chatRepo.saved[0].SessionID)

	select {
	case task := <-f.publisher.published:
		assert.Equal(t, chat.ID, task.ChatID)
		assert.Equal(t, chat.Question, task.Question)
	case <-time.After(time.Second):
		t.Fatal("索引事件未投递")
	}
}

func TestAskPromptLayout(t *testing.T) {
	f := newChatFixture(testChatConfig())
	f.chatRepo.history = []model.Chat{
		{Question: "سؤال اول", Response: "جواب اول"},
	}

	_, err := f.svc.Ask(context.Background(), 1, "session-1", domainQuestion())
	require.NoError(t, err)

	msgs := f.llm.lastMsgs
	require.Len(t, msgs, 4)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Equal(t, "user", msgs[1].Role)
	assert.Equal(t, "سؤال اول", msgs[1].Content)
	assert.Equal(t, "assistant", msgs[2].Role)
	assert.Equal(t, "user", msgs[3].Role)
	assert.Equal(t, domainQuestion().Question, msgs[3].Content)
}

func TestAskHistoryTruncation(t *testing.T) {
	cfg := testChatConfig()
	cfg.MaxHistoryLength = 4
	f := newChatFixture(cfg)
	for i := 0; i < 10; i++ {
		f.chatRepo.history = append(f.chatRepo.history, model.Chat{
			Question: "q", Response: "a",
		})
	}

	_, err := f.svc.Ask(context.Background(), 1, "session-1", domainQuestion())
	require.NoError(t, err)

	// system + 4 条历史 + 当前问题
	msgs := f.llm.lastMsgs
	require.Len(t, msgs, 6)
	assert.Equal(t, "system", msgs[0].Role)
	// 截断后历史仍然 user/assistant 成对
	assert.Equal(t, "user", msgs[1].Role)
	assert.Equal(t, "assistant", msgs[2].Role)
}

func TestAskInvalidRequest(t *testing.T) {
	f := newChatFixture(testChatConfig())

	cases := []model.ChatRequest{
		{Question: "", Subject: "ریاضی", Chapter: "فصل ۱"},
		{Question: "   ", Subject: "ریاضی", Chapter: "فصل ۱"},
		{Question: "جمع اعداد", Subject: "", Chapter: "فصل ۱"},
		{Question: "جمع اعداد", Subject: "ریاضی", Chapter: ""},
	}
	for _, req := range cases {
		_, err := f.svc.Ask(context.Background(), 1, "session-1", req)
		assert.ErrorIs(t, err, ErrInvalidRequest)
	}
	assert.Zero(t, f.llm.chatCalls, "校验失败不应触达上游")
}

func TestAskQuotaGateRejectsBeforeUpstream(t *testing.T) {
	f := newChatFixture(testChatConfig())
	f.userRepo.remaining = 0

	_, err := f.svc.Ask(context.Background(), 1, "session-1", domainQuestion())
	assert.ErrorIs(t, err, ErrQuotaExhausted)
	assert.Zero(t, f.llm.chatCalls, "配额为零不应触达上游")
	assert.Empty(t, f.chatRepo.saved)
}

func TestAskConcurrentQuotaRace(t *testing.T) {
	// 门禁快照显示还有配额，但持久化时条件扣减未命中：
	// 另一条连接在上游调用期间花掉了最后的配额
	f := newChatFixture(testChatConfig())
	f.userRepo.remaining = 1
	f.chatRepo.saveErr = repository.ErrQuotaExhausted

	_, err := f.svc.Ask(context.Background(), 1, "session-1", domainQuestion())
	assert.ErrorIs(t, err, ErrQuotaExhausted)
	assert.Equal(t, 1, f.llm.chatCalls)
	assert.Empty(t, f.chatRepo.saved)
}

func TestAskOffTopicShortQuestion(t *testing.T) {
	f := newChatFixture(testChatConfig())

	_, err := f.svc.Ask(context.Background(), 1, "session-1", model.ChatRequest{
		Question: "سلام", // 4 符文，无关键词
		Subject:  "ریاضی",
		Chapter:  "فصل ۱",
	})
	assert.ErrorIs(t, err, ErrOffTopic)
	assert.Zero(t, f.llm.chatCalls)
}

func TestAskKeywordBypassesLengthCheck(t *testing.T) {
	f := newChatFixture(testChatConfig())

	// 短于阈值但命中关键词，放行
	_, err := f.svc.Ask(context.Background(), 1, "session-1", model.ChatRequest{
		Question: "جمع؟",
		Subject:  "ریاضی",
		Chapter:  "فصل ۱",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, f.llm.chatCalls)
}

func TestAskLongQuestionWithoutKeywordPasses(t *testing.T) {
	f := newChatFixture(testChatConfig())

	// 未命中关键词但足够长，交给上游人设把关
	_, err := f.svc.Ask(context.Background(), 1, "session-1", model.ChatRequest{
		Question: "چرا آسمان آبی است و این پدیده چگونه توضیح داده می‌شود؟",
		Subject:  "علوم",
		Chapter:  "فصل ۳",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, f.llm.chatCalls)
}

func TestAskProviderFailureNothingPersisted(t *testing.T) {
	f := newChatFixture(testChatConfig())
	f.llm.chatErr = llm.ErrTransport

	_, err := f.svc.Ask(context.Background(), 1, "session-1", domainQuestion())
	require.Error(t, err)
	assert.ErrorIs(t, err, llm.ErrTransport)
	// 上游失败：既没有问答记录，也没有扣减与事件投递
	assert.Empty(t, f.chatRepo.saved)
	assert.Empty(t, f.publisher.published)
}

func TestAskPublishFailureDoesNotFailTurn(t *testing.T) {
	f := newChatFixture(testChatConfig())
	f.publisher.err = errors.New("broker down")

	chat, err := f.svc.Ask(context.Background(), 1, "session-1", domainQuestion())
	require.NoError(t, err)
	assert.NotEmpty(t, chat.Response)
	require.Len(t, f.chatRepo.saved, 1)
}

// ---- 标题生成 ----

func TestFirstTurnTriggersTitleGeneration(t *testing.T) {
	f := newChatFixture(testChatConfig())

	_, err := f.svc.Ask(context.Background(), 1, "session-1", domainQuestion())
	require.NoError(t, err)

	select {
	case title := <-f.sessionRepo.titleUpdates:
		assert.Equal(t, "عنوان تولیدی", title)
	case <-time.After(2 * time.Second):
		t.Fatal("首轮问答后未触发标题生成")
	}
}

func TestTitleFallbackOnProviderFailure(t *testing.T) {
	f := newChatFixture(testChatConfig())
	f.llm.titleErr = llm.ErrProvider

	_, err := f.svc.Ask(context.Background(), 1, "session-1", domainQuestion())
	require.NoError(t, err)

	select {
	case title := <-f.sessionRepo.titleUpdates:
		assert.Equal(t, "مکالمه بدون عنوان", title)
	case <-time.After(2 * time.Second):
		t.Fatal("标题生成失败时未写入兜底标题")
	}
}

func TestSubsequentTurnsDoNotRegenerateTitle(t *testing.T) {
	f := newChatFixture(testChatConfig())
	f.chatRepo.history = []model.Chat{{Question: "q", Response: "a"}}

	_, err := f.svc.Ask(context.Background(), 1, "session-1", domainQuestion())
	require.NoError(t, err)

	select {
	case <-f.sessionRepo.titleUpdates:
		t.Fatal("非首轮问答不应触发标题生成")
	case <-time.After(200 * time.Millisecond):
	}
}

// ---- 会话解析 ----

func TestEnsureSessionMintsWhenEmpty(t *testing.T) {
	f := newChatFixture(testChatConfig())

	id, created, err := f.svc.EnsureSession(context.Background(), 1, "")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, id)
	assert.Contains(t, f.sessionRepo.sessions, id)
}

func TestEnsureSessionReusesOwnedSession(t *testing.T) {
	f := newChatFixture(testChatConfig())
	f.sessionRepo.sessions["existing"] = &model.Session{ID: "existing", UserID: 1}

	id, created, err := f.svc.EnsureSession(context.Background(), 1, "existing")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "existing", id)
}

func TestEnsureSessionRejectsForeignSession(t *testing.T) {
	f := newChatFixture(testChatConfig())
	f.sessionRepo.sessions["foreign"] = &model.Session{ID: "foreign", UserID: 99}

	id, created, err := f.svc.EnsureSession(context.Background(), 1, "foreign")
	require.NoError(t, err)
	assert.True(t, created, "他人会话应触发铸造新会话")
	assert.NotEqual(t, "foreign", id)
}

// ---- 历史查询 ----

func TestHistoryOwnershipCheck(t *testing.T) {
	f := newChatFixture(testChatConfig())
	f.sessionRepo.sessions["s1"] = &model.Session{ID: "s1", UserID: 99}

	_, err := f.svc.History(context.Background(), 1, "s1")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = f.svc.History(context.Background(), 1, "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestHistoryReturnsTurnsInOrder(t *testing.T) {
	f := newChatFixture(testChatConfig())
	f.sessionRepo.sessions["s1"] = &model.Session{ID: "s1", UserID: 1}
	f.chatRepo.history = []model.Chat{
		{ID: 1, Question: "اول", Response: "جواب اول"},
		{ID: 2, Question: "دوم", Response: "جواب دوم"},
	}

	turns, err := f.svc.History(context.Background(), 1, "s1")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "اول", turns[0].Question)
	assert.Equal(t, "دوم", turns[1].Question)
}

func TestQuestionTrimmedBeforePersist(t *testing.T) {
	f := newChatFixture(testChatConfig())

	req := domainQuestion()
	req.Question = "  " + req.Question + "  "
	chat, err := f.svc.Ask(context.Background(), 1, "session-1", req)
	require.NoError(t, err)
	assert.False(t, strings.HasPrefix(chat.Question, " "))
	assert.False(t, strings.HasSuffix(chat.Question, " "))
}
