package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"hamdars-go/internal/config"
	"hamdars-go/internal/model"
	"hamdars-go/internal/repository"
	"hamdars-go/pkg/database"
	"hamdars-go/pkg/hash"
	"hamdars-go/pkg/log"
	"hamdars-go/pkg/token"

	"gorm.io/gorm"
)

var (
	// ErrInvalidCredentials 表示管理员登录的手机号或密码不正确。
	ErrInvalidCredentials = errors.New("service: invalid credentials")
	// ErrUserNotFound 表示用户不存在。
	ErrUserNotFound = errors.New("service: user not found")
)

// LoginResponse 是登录成功后返回的数据。
type LoginResponse struct {
	Token        string      `json:"token"`
	RefreshToken string      `json:"refreshToken"`
	User         *model.User `json:"user"`
}

// UpdateProfileRequest 是更新个人资料的请求载荷。零值字段不更新。
type UpdateProfileRequest struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar"`
	Grade  int    `json:"grade"`
}

// UserService 定义了用户相关的业务接口。
type UserService interface {
	// Login 以手机号登录。首次登录的手机号自动注册：
	// 按默认年级与默认配额建档，并同步开立购买账户。
	Login(phone string) (*LoginResponse, error)
	// AdminLogin 管理员以手机号加密码登录，密码校验走 bcrypt。
	AdminLogin(phone, password string) (*LoginResponse, error)
	// Logout 将 token 加入 Redis 黑名单直至其自然过期，并记录登出行为。
	Logout(ctx context.Context, userID uint, tokenString string) error
	// RefreshToken 用有效的 refresh token 换取一对新的 token。
	RefreshToken(refreshToken string) (*LoginResponse, error)
	GetProfile(userID uint) (*model.User, error)
	UpdateProfile(userID uint, req UpdateProfileRequest) (*model.User, error)
	// LogGuestActivity 记录未登录访客的页面活动，userID 固定为 0。
	LogGuestActivity(activityType string, payload map[string]interface{}) error
}

type userService struct {
	userRepo      repository.UserRepository
	accountRepo   repository.AccountRepository
	actionLogRepo repository.ActionLogRepository
	jwtManager    *token.JWTManager
	cfg           config.ChatConfig
}

// NewUserService 创建一个新的 UserService 实例。
func NewUserService(
	userRepo repository.UserRepository,
	accountRepo repository.AccountRepository,
	actionLogRepo repository.ActionLogRepository,
	jwtManager *token.JWTManager,
	cfg config.ChatConfig,
) UserService {
	return &userService{
		userRepo:      userRepo,
		accountRepo:   accountRepo,
		actionLogRepo: actionLogRepo,
		jwtManager:    jwtManager,
		cfg:           cfg,
	}
}

// Login 以手机号登录，不存在则自动注册。
func (s *userService) Login(phone string) (*LoginResponse, error) {
	user, err := s.userRepo.FindByPhone(phone)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		// 首次登录：自动建档，配额与年级取配置默认值
		user = &model.User{
			Phone:     phone,
			Grade:     s.cfg.DefaultGrade,
			Questions: s.cfg.DefaultQuota,
			Role:      "USER",
		}
		if err := s.userRepo.Create(user); err != nil {
			return nil, err
		}
		if err := s.accountRepo.Create(&model.Account{UserID: user.ID}); err != nil {
			return nil, err
		}
		log.Infow("新用户自动注册", "userId", user.ID, "phone", phone)
	}

	return s.issueTokens(user)
}

// AdminLogin 管理员登录。管理员只是 Role 为 ADMIN 且设置了密码的用户。
func (s *userService) AdminLogin(phone, password string) (*LoginResponse, error) {
	user, err := s.userRepo.FindByPhone(phone)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if user.Role != "ADMIN" || user.Password == "" {
		return nil, ErrInvalidCredentials
	}
	if !hash.CheckPasswordHash(password, user.Password) {
		return nil, ErrInvalidCredentials
	}

	return s.issueTokens(user)
}

// Logout 按 token 剩余有效期写入黑名单。已过期的 token 直接放过。
func (s *userService) Logout(ctx context.Context, userID uint, tokenString string) error {
	claims, err := s.jwtManager.VerifyToken(tokenString)
	if err != nil {
		return nil
	}

	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl > 0 {
		err = database.RDB.Set(ctx, "jwt:blacklist:"+tokenString, "1", ttl).Err()
		if err != nil {
			return err
		}
	}

	// 登出行为落审计日志，失败不影响登出本身
	if err := s.actionLogRepo.Create(&model.ActionLog{
		UserID: userID,
		Type:   "LOGOUT",
	}); err != nil {
		log.Warnf("记录登出行为失败: userId=%d: %v", userID, err)
	}
	return nil
}

// RefreshToken 校验 refresh token 并重新签发一对 token。
func (s *userService) RefreshToken(refreshToken string) (*LoginResponse, error) {
	claims, err := s.jwtManager.VerifyToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	user, err := s.userRepo.FindByID(claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return s.issueTokens(user)
}

// GetProfile 返回用户的个人资料。
func (s *userService) GetProfile(userID uint) (*model.User, error) {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// UpdateProfile 更新个人资料，只覆盖请求中的非零值字段。
func (s *userService) UpdateProfile(userID uint, req UpdateProfileRequest) (*model.User, error) {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if req.Name != "" {
		user.Name = req.Name
	}
	if req.Email != "" {
		user.Email = req.Email
	}
	if req.Avatar != "" {
		user.Avatar = req.Avatar
	}
	if req.Grade > 0 {
		user.Grade = req.Grade
	}

	if err := s.userRepo.Update(user); err != nil {
		return nil, err
	}
	return user, nil
}

// LogGuestActivity 记录访客活动。payload 序列化为 JSON 存入审计日志。
func (s *userService) LogGuestActivity(activityType string, payload map[string]interface{}) error {
	description := ""
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		description = string(b)
	}
	return s.actionLogRepo.Create(&model.ActionLog{
		UserID:      0,
		Type:        activityType,
		Description: description,
	})
}

// issueTokens 为用户签发 access 与 refresh token。
func (s *userService) issueTokens(user *model.User) (*LoginResponse, error) {
	accessToken, err := s.jwtManager.GenerateToken(user.ID, user.Phone, user.Role)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.jwtManager.GenerateRefreshToken(user.ID, user.Phone, user.Role)
	if err != nil {
		return nil, err
	}
	return &LoginResponse{
		Token:        accessToken,
		RefreshToken: refreshToken,
		User:         user,
	}, nil
}
