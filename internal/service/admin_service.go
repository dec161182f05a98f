package service

import (
	"context"

	"hamdars-go/internal/config"
	"hamdars-go/internal/model"
	"hamdars-go/internal/repository"
	"hamdars-go/pkg/es"
)

// PlatformStats 是管理端概览统计。
type PlatformStats struct {
	TotalUsers    int64 `json:"totalUsers"`
	TotalChats    int64 `json:"totalChats"`
	TotalAccounts int64 `json:"totalAccounts"`
	TotalInvoices int64 `json:"totalInvoices"`
	PaidRevenue   int64 `json:"paidRevenue"`
}

// AdminService 定义了管理端的业务接口。仅限 ADMIN 角色访问。
type AdminService interface {
	ListUsers(page, pageSize int) ([]model.User, int64, error)
	ListAccounts(page, pageSize int) ([]model.Account, int64, error)
	// AdjustBalance 调整账户余额，同时同步调整用户配额。
	AdjustBalance(accountID uint, balanceChange int) (*model.Account, error)
	// SearchChats 在 Elasticsearch 中全文检索问答记录。
	SearchChats(ctx context.Context, query, subject string, userID uint, size int) ([]model.EsChatDocument, error)
	Stats(ctx context.Context) (*PlatformStats, error)
}

type adminService struct {
	userRepo    repository.UserRepository
	accountRepo repository.AccountRepository
	chatRepo    repository.ChatRepository
	esCfg       config.ElasticsearchConfig
}

// NewAdminService 创建一个新的 AdminService 实例。
func NewAdminService(
	userRepo repository.UserRepository,
	accountRepo repository.AccountRepository,
	chatRepo repository.ChatRepository,
	esCfg config.ElasticsearchConfig,
) AdminService {
	return &adminService{
		userRepo:    userRepo,
		accountRepo: accountRepo,
		chatRepo:    chatRepo,
		esCfg:       esCfg,
	}
}

// ListUsers 分页列出用户。
func (s *adminService) ListUsers(page, pageSize int) ([]model.User, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.userRepo.FindWithPagination((page-1)*pageSize, pageSize)
}

// ListAccounts 分页列出账户。
func (s *adminService) ListAccounts(page, pageSize int) ([]model.Account, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.accountRepo.FindWithPagination((page-1)*pageSize, pageSize)
}

// AdjustBalance 管理员手工调整余额（补偿、赠送等场景）。
func (s *adminService) AdjustBalance(accountID uint, balanceChange int) (*model.Account, error) {
	return s.accountRepo.AdjustBalance(accountID, balanceChange)
}

// SearchChats 检索问答记录。size 为 0 时取默认 20 条。
func (s *adminService) SearchChats(ctx context.Context, query, subject string, userID uint, size int) ([]model.EsChatDocument, error) {
	if size <= 0 || size > 100 {
		size = 20
	}
	return es.SearchChats(ctx, s.esCfg.IndexName, query, subject, userID, size)
}

// Stats 汇总平台概览统计。
func (s *adminService) Stats(ctx context.Context) (*PlatformStats, error) {
	_, totalUsers, err := s.userRepo.FindWithPagination(0, 1)
	if err != nil {
		return nil, err
	}

	totalChats, err := s.chatRepo.CountAll(ctx)
	if err != nil {
		return nil, err
	}
	totalAccounts, err := s.accountRepo.CountAll()
	if err != nil {
		return nil, err
	}
	totalInvoices, err := s.accountRepo.CountInvoices()
	if err != nil {
		return nil, err
	}
	revenue, err := s.accountRepo.SumPaidRevenue()
	if err != nil {
		return nil, err
	}

	return &PlatformStats{
		TotalUsers:    totalUsers,
		TotalChats:    totalChats,
		TotalAccounts: totalAccounts,
		TotalInvoices: totalInvoices,
		PaidRevenue:   revenue,
	}, nil
}
