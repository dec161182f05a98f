package service

import (
	"errors"

	"hamdars-go/internal/model"
	"hamdars-go/internal/repository"
	"hamdars-go/pkg/log"

	"gorm.io/gorm"
)

var (
	// ErrAccountNotFound 表示用户没有对应的购买账户。
	ErrAccountNotFound = errors.New("service: account not found")
	// ErrInvoiceNotFound 表示发票不存在或不属于当前用户。
	ErrInvoiceNotFound = errors.New("service: invoice not found")
	// ErrInvoiceAlreadyPaid 表示发票已结清，重复支付被拒绝。
	ErrInvoiceAlreadyPaid = errors.New("service: invoice already paid")
)

// QuestionPackage 是一档可购买的提问配额套餐。
type QuestionPackage struct {
	Name      string `json:"name"`
	Questions int    `json:"questions"`
	Price     int    `json:"price"`
}

// 套餐目录。价格单位是托曼，与前端购买页一致。
var questionPackages = []QuestionPackage{
	{Name: "basic", Questions: 20, Price: 50000},
	{Name: "standard", Questions: 50, Price: 100000},
	{Name: "premium", Questions: 120, Price: 200000},
}

// ErrUnknownPackage 表示请求了不存在的套餐。
var ErrUnknownPackage = errors.New("service: unknown question package")

// AccountService 定义了账户与配额购买的业务接口。
type AccountService interface {
	GetAccount(userID uint) (*model.Account, error)
	ListPackages() []QuestionPackage
	// CreateInvoice 为指定套餐开具一张待支付发票。
	CreateInvoice(userID uint, packageName string) (*model.Invoice, error)
	// PayInvoice 结清发票并为用户充值配额。发票必须属于当前用户。
	PayInvoice(userID uint, invoiceID uint) (*model.Invoice, error)
}

type accountService struct {
	accountRepo repository.AccountRepository
}

// NewAccountService 创建一个新的 AccountService 实例。
func NewAccountService(accountRepo repository.AccountRepository) AccountService {
	return &accountService{accountRepo: accountRepo}
}

// GetAccount 返回用户的购买账户。
func (s *accountService) GetAccount(userID uint) (*model.Account, error) {
	account, err := s.accountRepo.FindByUser(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return account, nil
}

// ListPackages 返回可购买的套餐目录。
func (s *accountService) ListPackages() []QuestionPackage {
	return questionPackages
}

// CreateInvoice 按套餐目录开具待支付发票。
func (s *accountService) CreateInvoice(userID uint, packageName string) (*model.Invoice, error) {
	var pkg *QuestionPackage
	for i := range questionPackages {
		if questionPackages[i].Name == packageName {
			pkg = &questionPackages[i]
			break
		}
	}
	if pkg == nil {
		return nil, ErrUnknownPackage
	}

	account, err := s.GetAccount(userID)
	if err != nil {
		return nil, err
	}

	invoice := &model.Invoice{
		AccountID: account.ID,
		Package:   pkg.Name,
		Questions: pkg.Questions,
		Price:     pkg.Price,
		Status:    "pending",
	}
	if err := s.accountRepo.CreateInvoice(invoice); err != nil {
		return nil, err
	}
	return invoice, nil
}

// PayInvoice 结清发票。所有权通过发票所属账户反查校验。
// 这里没有接真实支付网关，支付动作即视为成功回调。
func (s *accountService) PayInvoice(userID uint, invoiceID uint) (*model.Invoice, error) {
	invoice, err := s.accountRepo.FindInvoiceByID(invoiceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}

	account, err := s.accountRepo.FindByID(invoice.AccountID)
	if err != nil {
		return nil, err
	}
	if account.UserID != userID {
		return nil, ErrInvoiceNotFound
	}

	if err := s.accountRepo.Pay(invoice, userID); err != nil {
		if errors.Is(err, repository.ErrInvoiceAlreadyPaid) {
			return nil, ErrInvoiceAlreadyPaid
		}
		return nil, err
	}

	log.Infow("发票已结清，配额已充值",
		"invoiceId", invoice.ID,
		"userId", userID,
		"questions", invoice.Questions,
	)

	invoice.Status = "paid"
	return invoice, nil
}
