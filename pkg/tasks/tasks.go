// Package tasks 定义了在 Kafka 中传递的异步任务结构。
package tasks

import "time"

// ChatTurnTask 描述一条待索引的问答记录。
type ChatTurnTask struct {
	ChatID    uint      `json:"chatId"`
	UserID    uint      `json:"userId"`
	SessionID string    `json:"sessionId"`
	Subject   string    `json:"subject"`
	Chapter   string    `json:"chapter"`
	Question  string    `json:"question"`
	Response  string    `json:"response"`
	CreatedAt time.Time `json:"createdAt"`
}
