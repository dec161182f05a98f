package model

import "time"

// ActionLog 记录平台上的用户行为（登出、访客活动等），用于事后审计。
type ActionLog struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"index;not null" json:"userId"`
	Type        string    `gorm:"type:varchar(50);not null" json:"type"`
	Description string    `gorm:"type:json" json:"description"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (ActionLog) TableName() string {
	return "action_logs"
}
