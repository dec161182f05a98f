package repository

import (
	"hamdars-go/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ContentRepository 定义了课程内容的持久化操作。
type ContentRepository interface {
	FindByKey(subject, chapter, contentType string) (*model.Content, error)
	Upsert(content *model.Content) error
	UpdateAttachment(subject, chapter, contentType, objectName string) error
}

type contentRepository struct {
	db *gorm.DB
}

// NewContentRepository 创建一个新的 ContentRepository 实例。
func NewContentRepository(db *gorm.DB) ContentRepository {
	return &contentRepository{db: db}
}

// FindByKey 根据 (subject, chapter, type) 查找内容条目。
func (r *contentRepository) FindByKey(subject, chapter, contentType string) (*model.Content, error) {
	var content model.Content
	err := r.db.
		Where("subject = ? AND chapter = ? AND type = ?", subject, chapter, contentType).
		First(&content).Error
	if err != nil {
		return nil, err
	}
	return &content, nil
}

// Upsert 按 (subject, chapter, type) 唯一键插入或更新内容。
func (r *contentRepository) Upsert(content *model.Content) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "subject"}, {Name: "chapter"}, {Name: "type"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "body", "updated_at"}),
	}).Create(content).Error
}

// UpdateAttachment 更新内容条目的附件对象名。
func (r *contentRepository) UpdateAttachment(subject, chapter, contentType, objectName string) error {
	return r.db.Model(&model.Content{}).
		Where("subject = ? AND chapter = ? AND type = ?", subject, chapter, contentType).
		Update("attachment", objectName).Error
}
