// Package model 包含了应用的数据模型定义。
package model

import "time"

// User 对应于数据库中的 'users' 表。
// Questions 是用户剩余的提问配额，扣减只能通过存储层的条件更新完成，
// 不允许在应用代码里读后写（见 ChatRepository.SaveTurn）。
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Phone     string    `gorm:"type:varchar(20);uniqueIndex;not null" json:"phone"`
	Name      string    `gorm:"type:varchar(100)" json:"name"`
	Email     string    `gorm:"type:varchar(255)" json:"email"`
	Avatar    string    `gorm:"type:varchar(500)" json:"avatar"`
	Grade     int       `gorm:"not null;default:7" json:"grade"`
	Questions int       `gorm:"not null;default:0" json:"questions"`
	Role      string    `gorm:"type:varchar(20);not null;default:'USER'" json:"role"`
	Password  string    `gorm:"type:varchar(255)" json:"-"` // 仅管理员账号使用，bcrypt 哈希
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (User) TableName() string {
	return "users"
}
