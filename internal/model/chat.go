package model

import "time"

// Chat 代表一次单独的问答交互（一个回合）。
// 记录只会在上游服务成功产出回答后创建，创建与配额扣减在同一事务内完成。
type Chat struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"userId"`
	SessionID string    `gorm:"type:varchar(36);index;not null" json:"sessionId"`
	Subject   string    `gorm:"type:varchar(100);not null" json:"subject"`
	Chapter   string    `gorm:"type:varchar(100);not null" json:"chapter"`
	Question  string    `gorm:"type:text;not null" json:"question"`
	Response  string    `gorm:"type:text;not null" json:"response"`
	Cost      int       `gorm:"not null;default:1" json:"cost"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (Chat) TableName() string {
	return "chats"
}

// ChatRequest 是客户端提交问题的载荷，WebSocket 帧与 REST 请求共用。
type ChatRequest struct {
	Question string `json:"question"`
	Subject  string `json:"subject"`
	Chapter  string `json:"chapter"`
}
