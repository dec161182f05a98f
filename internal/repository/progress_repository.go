package repository

import (
	"hamdars-go/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProgressRepository 定义了学习进度的持久化操作。
type ProgressRepository interface {
	FindByUser(userID uint) ([]model.Progress, error)
	Upsert(progress *model.Progress) error
}

type progressRepository struct {
	db *gorm.DB
}

// NewProgressRepository 创建一个新的 ProgressRepository 实例。
func NewProgressRepository(db *gorm.DB) ProgressRepository {
	return &progressRepository{db: db}
}

// FindByUser 返回用户的全部进度记录。
func (r *progressRepository) FindByUser(userID uint) ([]model.Progress, error) {
	var progress []model.Progress
	err := r.db.Where("user_id = ?", userID).Find(&progress).Error
	return progress, err
}

// Upsert 按 (user_id, subject, chapter) 唯一键插入或更新进度。
func (r *progressRepository) Upsert(progress *model.Progress) error {
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "subject"}, {Name: "chapter"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"completion", "last_activity", "data", "updated_at",
		}),
	}).Create(progress).Error
}
