package handler

import (
	"errors"
	"net/http"

	"hamdars-go/internal/service"

	"github.com/gin-gonic/gin"
)

// ContentHandler 处理课程内容相关的请求。
type ContentHandler struct {
	contentService service.ContentService
}

// NewContentHandler 创建一个新的 ContentHandler 实例。
func NewContentHandler(contentService service.ContentService) *ContentHandler {
	return &ContentHandler{contentService: contentService}
}

// GetContent 返回指定章节的课程内容。
func (h *ContentHandler) GetContent(c *gin.Context) {
	subject := c.Query("subject")
	chapter := c.Query("chapter")
	contentType := c.Query("type")
	if subject == "" || chapter == "" || contentType == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "缺少 subject、chapter 或 type 参数",
		})
		return
	}

	content, err := h.contentService.GetContent(subject, chapter, contentType)
	if err != nil {
		if errors.Is(err, service.ErrContentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"code":    http.StatusNotFound,
				"message": "内容不存在",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "获取内容失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    content,
	})
}

// UpsertContent 管理端写入或更新课程内容。
func (h *ContentHandler) UpsertContent(c *gin.Context) {
	var req service.UpsertContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "请求参数错误: " + err.Error(),
		})
		return
	}

	content, err := h.contentService.UpsertContent(req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "保存内容失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "保存成功",
		"data":    content,
	})
}

// UploadAttachment 管理端上传课件附件（multipart 表单）。
func (h *ContentHandler) UploadAttachment(c *gin.Context) {
	subject := c.PostForm("subject")
	chapter := c.PostForm("chapter")
	contentType := c.PostForm("type")
	if subject == "" || chapter == "" || contentType == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "缺少 subject、chapter 或 type 参数",
		})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "缺少上传文件",
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "读取上传文件失败",
		})
		return
	}
	defer file.Close()

	objectName, err := h.contentService.UploadAttachment(
		c.Request.Context(),
		subject, chapter, contentType,
		fileHeader.Filename,
		file, fileHeader.Size,
		fileHeader.Header.Get("Content-Type"),
	)
	if err != nil {
		if errors.Is(err, service.ErrContentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"code":    http.StatusNotFound,
				"message": "内容不存在",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "上传附件失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "上传成功",
		"data":    gin.H{"objectName": objectName},
	})
}
