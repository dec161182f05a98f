package repository

import (
	"context"
	"errors"

	"hamdars-go/internal/model"

	"gorm.io/gorm"
)

// ErrQuotaExhausted 表示条件扣减没有命中任何行：用户配额已经为零。
// SaveTurn 返回该错误时整个事务已回滚，问答记录不会存在。
var ErrQuotaExhausted = errors.New("repository: question quota exhausted")

// ChatRepository 定义了问答记录与配额账本的持久化操作。
type ChatRepository interface {
	// SaveTurn 在单个事务中完成两件事：创建问答记录，并按 Cost 扣减用户配额。
	// 扣减是条件更新（questions >= cost），避免多连接并发花掉最后一个配额的丢失更新。
	// 两步必须同时成功；任一失败则事务回滚，不存在"白嫖"或"白扣"的中间状态。
	SaveTurn(ctx context.Context, chat *model.Chat) error
	FindBySession(ctx context.Context, userID uint, sessionID string) ([]model.Chat, error)
	CountAll(ctx context.Context) (int64, error)
}

type chatRepository struct {
	db *gorm.DB
}

// NewChatRepository 创建一个新的 ChatRepository 实例。
func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{db: db}
}

// SaveTurn 原子地持久化一个问答回合并扣减配额。
func (r *chatRepository) SaveTurn(ctx context.Context, chat *model.Chat) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(chat).Error; err != nil {
			return err
		}

		// 在存储层表达"仅当剩余配额为正时扣减"，而不是读后写
		result := tx.Model(&model.User{}).
			Where("id = ? AND questions >= ?", chat.UserID, chat.Cost).
			UpdateColumn("questions", gorm.Expr("questions - ?", chat.Cost))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			// 并发连接抢先花掉了配额；回滚已创建的记录
			return ErrQuotaExhausted
		}
		return nil
	})
}

// FindBySession 返回指定用户在某会话下的全部问答，按时间正序。
// userID 条件兼做所有权校验，查不到他人会话的内容。
func (r *chatRepository) FindBySession(ctx context.Context, userID uint, sessionID string) ([]model.Chat, error) {
	var chats []model.Chat
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND user_id = ?", sessionID, userID).
		Order("created_at ASC").
		Find(&chats).Error
	return chats, err
}

// CountAll 统计全部问答记录数（管理端统计用）。
func (r *chatRepository) CountAll(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Chat{}).Count(&count).Error
	return count, err
}
