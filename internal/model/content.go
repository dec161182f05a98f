package model

import "time"

// Content 对应课程内容条目，按 (Subject, Chapter, Type) 唯一定位。
// Attachment 保存 MinIO 中课件附件的对象名，为空表示无附件。
type Content struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Subject    string    `gorm:"type:varchar(100);uniqueIndex:idx_subject_chapter_type;not null" json:"subject"`
	Chapter    string    `gorm:"type:varchar(100);uniqueIndex:idx_subject_chapter_type;not null" json:"chapter"`
	Type       string    `gorm:"type:varchar(50);uniqueIndex:idx_subject_chapter_type;not null" json:"type"`
	Title      string    `gorm:"type:varchar(255)" json:"title"`
	Body       string    `gorm:"type:text" json:"body"`
	Attachment string    `gorm:"type:varchar(500)" json:"attachment"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (Content) TableName() string {
	return "contents"
}
