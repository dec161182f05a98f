package handler

import (
	"errors"
	"net/http"
	"strconv"

	"hamdars-go/internal/middleware"
	"hamdars-go/internal/service"

	"github.com/gin-gonic/gin"
)

// AccountHandler 处理账户与配额购买相关的请求。
type AccountHandler struct {
	accountService service.AccountService
}

// NewAccountHandler 创建一个新的 AccountHandler 实例。
func NewAccountHandler(accountService service.AccountService) *AccountHandler {
	return &AccountHandler{accountService: accountService}
}

// GetAccount 返回当前用户的购买账户。
func (h *AccountHandler) GetAccount(c *gin.Context) {
	userID := c.GetUint(middleware.ContextUserIDKey)

	account, err := h.accountService.GetAccount(userID)
	if err != nil {
		if errors.Is(err, service.ErrAccountNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"code":    http.StatusNotFound,
				"message": "账户不存在",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "获取账户失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    account,
	})
}

// ListPackages 返回可购买的套餐目录。
func (h *AccountHandler) ListPackages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    h.accountService.ListPackages(),
	})
}

type createInvoiceRequest struct {
	Package string `json:"package" binding:"required"`
}

// CreateInvoice 为指定套餐开具一张待支付发票。
func (h *AccountHandler) CreateInvoice(c *gin.Context) {
	userID := c.GetUint(middleware.ContextUserIDKey)

	var req createInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "请求参数错误: " + err.Error(),
		})
		return
	}

	invoice, err := h.accountService.CreateInvoice(userID, req.Package)
	if err != nil {
		if errors.Is(err, service.ErrUnknownPackage) {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    http.StatusBadRequest,
				"message": "未知的套餐",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "开具发票失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "发票已开具",
		"data":    invoice,
	})
}

// PayInvoice 结清发票并为用户充值提问配额。
func (h *AccountHandler) PayInvoice(c *gin.Context) {
	userID := c.GetUint(middleware.ContextUserIDKey)

	invoiceID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "无效的发票 ID",
		})
		return
	}

	invoice, err := h.accountService.PayInvoice(userID, uint(invoiceID))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvoiceNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"code":    http.StatusNotFound,
				"message": "发票不存在",
			})
		case errors.Is(err, service.ErrInvoiceAlreadyPaid):
			c.JSON(http.StatusConflict, gin.H{
				"code":    http.StatusConflict,
				"message": "发票已结清",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    http.StatusInternalServerError,
				"message": "支付失败",
			})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "支付成功",
		"data":    invoice,
	})
}
