package model

import "time"

// Session 代表一段对话的持久分组标识，独立于任何单个连接存在。
// 会话归属一个用户且创建后不可变；Title 是唯一的例外，
// 由标题生成任务在首轮问答完成后异步补写。
type Session struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"userId"`
	Title     string    `gorm:"type:varchar(100)" json:"title"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (Session) TableName() string {
	return "sessions"
}
