package model

import "time"

// Progress 记录用户在某一科目章节下的学习进度。
// (UserID, Subject, Chapter) 组合唯一，写入走 upsert。
type Progress struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"uniqueIndex:idx_user_subject_chapter;not null" json:"userId"`
	Subject      string    `gorm:"type:varchar(100);uniqueIndex:idx_user_subject_chapter;not null" json:"subject"`
	Chapter      string    `gorm:"type:varchar(100);uniqueIndex:idx_user_subject_chapter;not null" json:"chapter"`
	Completion   float64   `gorm:"not null;default:0" json:"completion"`
	LastActivity string    `gorm:"type:varchar(100)" json:"lastActivity"`
	Data         string    `gorm:"type:json" json:"data"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (Progress) TableName() string {
	return "progress"
}
