// Package pipeline 包含了异步处理链路：消费 Kafka 任务并写入检索索引。
package pipeline

import (
	"context"
	"fmt"

	"hamdars-go/internal/config"
	"hamdars-go/internal/model"
	"hamdars-go/pkg/es"
	"hamdars-go/pkg/log"
	"hamdars-go/pkg/tasks"
)

// Indexer 将问答记录写入 Elasticsearch，供管理端全文检索。
// 它实现了 kafka.TaskProcessor 接口，是聊天主链路之外的尽力而为管线：
// 索引失败只影响检索的可见性，不影响已持久化的问答与配额账本。
type Indexer struct {
	esCfg config.ElasticsearchConfig
}

// NewIndexer 创建一个新的 Indexer 实例。
func NewIndexer(esCfg config.ElasticsearchConfig) *Indexer {
	return &Indexer{esCfg: esCfg}
}

// Process 将一条问答任务转换为索引文档并写入 Elasticsearch。
func (p *Indexer) Process(ctx context.Context, task tasks.ChatTurnTask) error {
	doc := model.EsChatDocument{
		ChatID:    task.ChatID,
		UserID:    task.UserID,
		SessionID: task.SessionID,
		Subject:   task.Subject,
		Chapter:   task.Chapter,
		Question:  task.Question,
		Response:  task.Response,
		CreatedAt: task.CreatedAt,
	}

	if err := es.IndexChatTurn(ctx, p.esCfg.IndexName, doc); err != nil {
		return fmt.Errorf("索引问答记录失败: chatId=%d: %w", task.ChatID, err)
	}

	log.Infof("问答记录已索引: chatId=%d, session=%s", task.ChatID, task.SessionID)
	return nil
}
