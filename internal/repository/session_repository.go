package repository

import (
	"context"

	"hamdars-go/internal/model"

	"gorm.io/gorm"
)

// SessionRepository 定义了会话记录的持久化操作。
type SessionRepository interface {
	Create(ctx context.Context, session *model.Session) error
	FindByID(ctx context.Context, sessionID string) (*model.Session, error)
	FindByUser(ctx context.Context, userID uint) ([]model.Session, error)
	UpdateTitle(ctx context.Context, sessionID, title string) error
}

type sessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository 创建一个新的 SessionRepository 实例。
func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

// Create 持久化一个新的会话记录。
func (r *sessionRepository) Create(ctx context.Context, session *model.Session) error {
	return r.db.WithContext(ctx).Create(session).Error
}

// FindByID 根据会话 ID 查找会话。
func (r *sessionRepository) FindByID(ctx context.Context, sessionID string) (*model.Session, error) {
	var session model.Session
	err := r.db.WithContext(ctx).Where("id = ?", sessionID).First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// FindByUser 返回用户的全部会话，按创建时间倒序。
func (r *sessionRepository) FindByUser(ctx context.Context, userID uint) ([]model.Session, error) {
	var sessions []model.Session
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&sessions).Error
	return sessions, err
}

// UpdateTitle 补写会话标题（标题生成任务异步调用）。
func (r *sessionRepository) UpdateTitle(ctx context.Context, sessionID, title string) error {
	return r.db.WithContext(ctx).
		Model(&model.Session{}).
		Where("id = ?", sessionID).
		Update("title", title).Error
}
