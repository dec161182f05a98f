// Package llm 提供了访问上游 OpenAI 兼容补全服务的客户端。
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"hamdars-go/internal/config"
)

// 失败分类哨兵错误。当前调用方将两者统一处理为“处理失败”，
// 但接口保留区分能力，便于将来实现按类别的重试策略。
var (
	// ErrTransport 表示网络层失败：连接失败、超时、流读取中断。
	ErrTransport = errors.New("llm: transport failure")
	// ErrProvider 表示上游服务拒绝了请求：非 2xx 响应（含内容策略拦截）。
	ErrProvider = errors.New("llm: provider rejected request")
)

// Message 表示一条角色消息
type Message struct {
	Role    string `json:"role"` // "system"、"user" 或 "assistant"
	Content string `json:"content"`
}

// Client 定义了补全服务客户端的接口。
type Client interface {
	// Chat 以 role-based 消息调用聊天接口，流式读取响应并聚合为完整答案。
	// onDelta 不为 nil 时，每个增量分块到达都会被回调一次（聚合仍然发生）。
	Chat(ctx context.Context, messages []Message, onDelta func(delta string)) (string, error)
	// GenerateTitle 为一段对话历史生成一个简短的标题（尽力而为）。
	GenerateTitle(ctx context.Context, history []Message) (string, error)
}

type openAIClient struct {
	cfg    config.LLMConfig
	client *http.Client
}

// NewClient 根据配置创建一个新的补全服务客户端。
// 客户端自身无状态，配置在构造时显式传入，便于测试替换。
func NewClient(cfg config.LLMConfig) Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if cfg.TimeoutSeconds <= 0 {
		timeout = 60 * time.Second
	}
	return &openAIClient{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

type chatRequest struct {
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	Stream    bool      `json:"stream"`
	MaxTokens *int      `json:"max_tokens,omitempty"`
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Chat 调用 /chat/completions 的流式接口，并在本地聚合 SSE 分块。
func (c *openAIClient) Chat(ctx context.Context, messages []Message, onDelta func(string)) (string, error) {
	resp, err := c.post(ctx, chatRequest{
		Model:    c.cfg.Model,
		Messages: messages,
		Stream:   true,
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var answer strings.Builder
	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				break
			}
			return "", fmt.Errorf("%w: read stream: %v", ErrTransport, err)
		}

		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if strings.TrimSpace(data) == "[DONE]" {
			break
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) > 0 {
			content := chunk.Choices[0].Delta.Content
			if content == "" {
				continue
			}
			answer.WriteString(content)
			if onDelta != nil {
				onDelta(content)
			}
		}
	}
	return answer.String(), nil
}

// GenerateTitle 以非流式方式请求一个不超过 50 字符的对话标题。
func (c *openAIClient) GenerateTitle(ctx context.Context, history []Message) (string, error) {
	var b strings.Builder
	b.WriteString("برای مکالمه زیر یک عنوان کوتاه (حداکثر ۵۰ کاراکتر) به فارسی رسمی بساز:\n")
	for _, m := range history {
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}

	model := c.cfg.TitleModel
	if model == "" {
		model = c.cfg.Model
	}
	maxTokens := 50
	resp, err := c.post(ctx, chatRequest{
		Model: model,
		Messages: []Message{
			{Role: "system", Content: "You are a title generator."},
			{Role: "user", Content: b.String()},
		},
		MaxTokens: &maxTokens,
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrProvider, err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("%w: empty choices", ErrProvider)
	}

	title := strings.TrimSpace(result.Choices[0].Message.Content)
	if runes := []rune(title); len(runes) > 50 {
		title = string(runes[:50])
	}
	return title, nil
}

// post 负责公共的请求构建、认证头与失败分类。
func (c *openAIClient) post(ctx context.Context, body chatRequest) (*http.Response, error) {
	reqBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/chat/completions", bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if body.Stream {
		req.Header.Set("Accept", "text/event-stream")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: status %s, body: %s", ErrProvider, resp.Status, string(bodyBytes))
	}
	return resp, nil
}
