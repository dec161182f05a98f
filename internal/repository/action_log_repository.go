package repository

import (
	"hamdars-go/internal/model"

	"gorm.io/gorm"
)

// ActionLogRepository 定义了行为日志的持久化操作。
type ActionLogRepository interface {
	Create(log *model.ActionLog) error
}

type actionLogRepository struct {
	db *gorm.DB
}

// NewActionLogRepository 创建一个新的 ActionLogRepository 实例。
func NewActionLogRepository(db *gorm.DB) ActionLogRepository {
	return &actionLogRepository{db: db}
}

// Create 追加一条行为日志。
func (r *actionLogRepository) Create(log *model.ActionLog) error {
	return r.db.Create(log).Error
}
