package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"hamdars-go/internal/config"
	"hamdars-go/internal/model"
	"hamdars-go/internal/repository"
	"hamdars-go/pkg/storage"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrContentNotFound 表示请求的课程内容不存在。
var ErrContentNotFound = errors.New("service: content not found")

// 附件下载链接的有效期。
const attachmentURLExpiry = 24 * time.Hour

// ContentResponse 是课程内容接口的返回结构。
// AttachmentURL 是附件的预签名下载链接，无附件时为空。
type ContentResponse struct {
	*model.Content
	AttachmentURL string `json:"attachmentUrl,omitempty"`
}

// UpsertContentRequest 是管理端写入课程内容的请求载荷。
type UpsertContentRequest struct {
	Subject string `json:"subject" binding:"required"`
	Chapter string `json:"chapter" binding:"required"`
	Type    string `json:"type" binding:"required"`
	Title   string `json:"title"`
	Body    string `json:"body"`
}

// ContentService 定义了课程内容的业务接口。
type ContentService interface {
	// GetContent 返回指定章节的课程内容，附件对象名换成预签名下载链接。
	GetContent(subject, chapter, contentType string) (*ContentResponse, error)
	// UpsertContent 管理端写入或更新课程内容。
	UpsertContent(req UpsertContentRequest) (*model.Content, error)
	// UploadAttachment 上传课件附件到对象存储，并绑定到对应的内容条目。
	UploadAttachment(ctx context.Context, subject, chapter, contentType, filename string,
		reader io.Reader, size int64, mimeType string) (string, error)
}

type contentService struct {
	contentRepo repository.ContentRepository
	minioCfg    config.MinIOConfig
}

// NewContentService 创建一个新的 ContentService 实例。
func NewContentService(contentRepo repository.ContentRepository, minioCfg config.MinIOConfig) ContentService {
	return &contentService{
		contentRepo: contentRepo,
		minioCfg:    minioCfg,
	}
}

// GetContent 返回课程内容条目。
func (s *contentService) GetContent(subject, chapter, contentType string) (*ContentResponse, error) {
	content, err := s.contentRepo.FindByKey(subject, chapter, contentType)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrContentNotFound
		}
		return nil, err
	}

	resp := &ContentResponse{Content: content}
	if content.Attachment != "" {
		url, err := storage.GetPresignedURL(s.minioCfg.BucketName, content.Attachment, attachmentURLExpiry)
		if err != nil {
			// 签名失败时退化为无附件，不阻塞内容本身
			return resp, nil
		}
		resp.AttachmentURL = url
	}
	return resp, nil
}

// UpsertContent 写入或更新课程内容。
func (s *contentService) UpsertContent(req UpsertContentRequest) (*model.Content, error) {
	content := &model.Content{
		Subject: req.Subject,
		Chapter: req.Chapter,
		Type:    req.Type,
		Title:   req.Title,
		Body:    req.Body,
	}
	if err := s.contentRepo.Upsert(content); err != nil {
		return nil, err
	}
	return content, nil
}

// UploadAttachment 上传附件并绑定。对象名加 uuid 前缀避免同名覆盖。
func (s *contentService) UploadAttachment(ctx context.Context, subject, chapter, contentType, filename string,
	reader io.Reader, size int64, mimeType string) (string, error) {
	// 内容条目必须先存在，附件不能悬空
	if _, err := s.contentRepo.FindByKey(subject, chapter, contentType); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrContentNotFound
		}
		return "", err
	}

	objectName := fmt.Sprintf("attachments/%s%s", uuid.NewString(), filepath.Ext(filename))
	if err := storage.PutObject(ctx, s.minioCfg.BucketName, objectName, reader, size, mimeType); err != nil {
		return "", err
	}

	if err := s.contentRepo.UpdateAttachment(subject, chapter, contentType, objectName); err != nil {
		return "", err
	}
	return objectName, nil
}
