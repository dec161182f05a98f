package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"hamdars-go/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newSSEServer 返回一个按 SSE 格式逐块返回 chunks 的测试服务。
func newSSEServer(t *testing.T, chunks []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.True(t, req.Stream)

		w.Header().Set("Content-Type", "text/event-stream")
		for _, chunk := range chunks {
			encoded, _ := json.Marshal(chunk)
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%s}}]}\n\n", encoded)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
}

// newTitleServer 返回一个非流式补全测试服务，回答固定为 content。
func newTitleServer(t *testing.T, content string, wantModel string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		if wantModel != "" {
			assert.Equal(t, wantModel, req.Model)
		}

		encoded, _ := json.Marshal(content)
		fmt.Fprintf(w, "{\"choices\":[{\"message\":{\"content\":%s}}]}", encoded)
	}))
}

func TestChatAggregatesStream(t *testing.T) {
	srv := newSSEServer(t, []string{"سلام", "، ", "جواب شما"})
	defer srv.Close()

	client := NewClient(config.LLMConfig{BaseURL: srv.URL, Model: "test-model"})

	var deltas []string
	answer, err := client.Chat(context.Background(), []Message{
		{Role: "system", Content: "system prompt"},
		{Role: "user", Content: "سؤال"},
	}, func(delta string) { deltas = append(deltas, delta) })

	require.NoError(t, err)
	assert.Equal(t, "سلام، جواب شما", answer)
	assert.Equal(t, []string{"سلام", "، ", "جواب شما"}, deltas)
}

func TestChatNilDeltaCallback(t *testing.T) {
	srv := newSSEServer(t, []string{"a", "b"})
	defer srv.Close()

	client := NewClient(config.LLMConfig{BaseURL: srv.URL, Model: "test-model"})
	answer, err := client.Chat(context.Background(), []Message{{Role: "user", Content: "q"}}, nil)

	require.NoError(t, err)
	assert.Equal(t, "ab", answer)
}

func TestChatProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"content policy"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewClient(config.LLMConfig{BaseURL: srv.URL, Model: "test-model"})
	_, err := client.Chat(context.Background(), []Message{{Role: "user", Content: "q"}}, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProvider)
	assert.NotErrorIs(t, err, ErrTransport)
}

func TestChatTransportError(t *testing.T) {
	// 先拿一个已关闭、不再被监听的地址
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	client := NewClient(config.LLMConfig{BaseURL: addr, Model: "test-model", TimeoutSeconds: 1})
	_, err := client.Chat(context.Background(), []Message{{Role: "user", Content: "q"}}, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
	assert.NotErrorIs(t, err, ErrProvider)
}

func TestGenerateTitle(t *testing.T) {
	srv := newTitleServer(t, "  جمع و تفریق کسرها  ", "title-model")
	defer srv.Close()

	client := NewClient(config.LLMConfig{BaseURL: srv.URL, Model: "test-model", TitleModel: "title-model"})
	title, err := client.GenerateTitle(context.Background(), []Message{
		{Role: "user", Content: "کسر چیست؟"},
		{Role: "assistant", Content: "کسر یعنی..."},
	})

	require.NoError(t, err)
	assert.Equal(t, "جمع و تفریق کسرها", title)
}

func TestGenerateTitleFallsBackToChatModel(t *testing.T) {
	srv := newTitleServer(t, "عنوان", "test-model")
	defer srv.Close()

	client := NewClient(config.LLMConfig{BaseURL: srv.URL, Model: "test-model"})
	title, err := client.GenerateTitle(context.Background(), []Message{{Role: "user", Content: "q"}})

	require.NoError(t, err)
	assert.Equal(t, "عنوان", title)
}

func TestGenerateTitleTruncatesLongTitle(t *testing.T) {
	srv := newTitleServer(t, strings.Repeat("ع", 80), "")
	defer srv.Close()

	client := NewClient(config.LLMConfig{BaseURL: srv.URL, Model: "test-model"})
	title, err := client.GenerateTitle(context.Background(), []Message{{Role: "user", Content: "q"}})

	require.NoError(t, err)
	assert.Equal(t, 50, len([]rune(title)))
}

func TestGenerateTitleEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	client := NewClient(config.LLMConfig{BaseURL: srv.URL, Model: "test-model"})
	_, err := client.GenerateTitle(context.Background(), []Message{{Role: "user", Content: "q"}})

	assert.ErrorIs(t, err, ErrProvider)
}
