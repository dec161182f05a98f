package service

import (
	"hamdars-go/internal/model"
	"hamdars-go/internal/repository"
)

// SaveProgressRequest 是上报学习进度的请求载荷。
type SaveProgressRequest struct {
	Subject      string  `json:"subject" binding:"required"`
	Chapter      string  `json:"chapter" binding:"required"`
	Completion   float64 `json:"completion"`
	LastActivity string  `json:"lastActivity"`
	Data         string  `json:"data"`
}

// ProgressService 定义了学习进度的业务接口。
type ProgressService interface {
	GetProgress(userID uint) ([]model.Progress, error)
	SaveProgress(userID uint, req SaveProgressRequest) (*model.Progress, error)
}

type progressService struct {
	progressRepo repository.ProgressRepository
}

// NewProgressService 创建一个新的 ProgressService 实例。
func NewProgressService(progressRepo repository.ProgressRepository) ProgressService {
	return &progressService{progressRepo: progressRepo}
}

// GetProgress 返回用户的全部进度记录。
func (s *progressService) GetProgress(userID uint) ([]model.Progress, error) {
	return s.progressRepo.FindByUser(userID)
}

// SaveProgress 以 upsert 方式保存进度，同一章节重复上报只保留最新值。
func (s *progressService) SaveProgress(userID uint, req SaveProgressRequest) (*model.Progress, error) {
	progress := &model.Progress{
		UserID:       userID,
		Subject:      req.Subject,
		Chapter:      req.Chapter,
		Completion:   req.Completion,
		LastActivity: req.LastActivity,
		Data:         req.Data,
	}
	if err := s.progressRepo.Upsert(progress); err != nil {
		return nil, err
	}
	return progress, nil
}
