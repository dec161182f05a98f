package model

import "time"

// EsChatDocument 是写入 Elasticsearch 'chat_turns' 索引的文档结构，
// 供管理端全文检索使用。DocID 使用 chats 表的主键，保证索引幂等。
type EsChatDocument struct {
	ChatID    uint      `json:"chat_id"`
	UserID    uint      `json:"user_id"`
	SessionID string    `json:"session_id"`
	Subject   string    `json:"subject"`
	Chapter   string    `json:"chapter"`
	Question  string    `json:"question"`
	Response  string    `json:"response"`
	CreatedAt time.Time `json:"created_at"`
}
