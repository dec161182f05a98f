package repository

import (
	"errors"

	"hamdars-go/internal/model"

	"gorm.io/gorm"
)

// ErrInvoiceAlreadyPaid 表示支付请求命中了一张已结清的发票。
var ErrInvoiceAlreadyPaid = errors.New("repository: invoice already paid")

// AccountRepository 定义了账户、发票与配额充值侧的持久化操作。
type AccountRepository interface {
	Create(account *model.Account) error
	FindByUser(userID uint) (*model.Account, error)
	FindByID(accountID uint) (*model.Account, error)
	FindWithPagination(offset, limit int) ([]model.Account, int64, error)
	CreateInvoice(invoice *model.Invoice) error
	FindInvoiceByID(invoiceID uint) (*model.Invoice, error)
	// Pay 在单个事务中结清发票：发票置为 paid，账户余额与累计消费增加，
	// 用户配额按发票问题数增加。配额增加与扣减共用同一账本列。
	Pay(invoice *model.Invoice, userID uint) error
	// AdjustBalance 管理员调整账户余额，并同步调整用户配额（同一事务）。
	AdjustBalance(accountID uint, balanceChange int) (*model.Account, error)
	CountAll() (int64, error)
	CountInvoices() (int64, error)
	SumPaidRevenue() (int64, error)
}

type accountRepository struct {
	db *gorm.DB
}

// NewAccountRepository 创建一个新的 AccountRepository 实例。
func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) Create(account *model.Account) error {
	return r.db.Create(account).Error
}

func (r *accountRepository) FindByUser(userID uint) (*model.Account, error) {
	var account model.Account
	err := r.db.Where("user_id = ?", userID).First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) FindByID(accountID uint) (*model.Account, error) {
	var account model.Account
	err := r.db.First(&account, accountID).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// FindWithPagination 分页检索账户记录，按创建时间倒序。
func (r *accountRepository) FindWithPagination(offset, limit int) ([]model.Account, int64, error) {
	var accounts []model.Account
	var total int64

	db := r.db.Model(&model.Account{})
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&accounts).Error
	if err != nil {
		return nil, 0, err
	}
	return accounts, total, nil
}

func (r *accountRepository) CreateInvoice(invoice *model.Invoice) error {
	return r.db.Create(invoice).Error
}

func (r *accountRepository) FindInvoiceByID(invoiceID uint) (*model.Invoice, error) {
	var invoice model.Invoice
	err := r.db.First(&invoice, invoiceID).Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

// Pay 结清发票并为用户充值配额，三处写入在同一事务内完成。
func (r *accountRepository) Pay(invoice *model.Invoice, userID uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		// 条件更新兼做幂等保护：已结清的发票不会被重复入账
		result := tx.Model(&model.Invoice{}).
			Where("id = ? AND status = ?", invoice.ID, "pending").
			Update("status", "paid")
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrInvoiceAlreadyPaid
		}

		err := tx.Model(&model.Account{}).
			Where("id = ?", invoice.AccountID).
			Updates(map[string]interface{}{
				"balance":     gorm.Expr("balance + ?", invoice.Questions),
				"total_spent": gorm.Expr("total_spent + ?", invoice.Price),
			}).Error
		if err != nil {
			return err
		}

		return tx.Model(&model.User{}).
			Where("id = ?", userID).
			UpdateColumn("questions", gorm.Expr("questions + ?", invoice.Questions)).Error
	})
}

// AdjustBalance 管理员调整余额；返回更新后的账户。
func (r *accountRepository) AdjustBalance(accountID uint, balanceChange int) (*model.Account, error) {
	var account model.Account
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&account, accountID).Error; err != nil {
			return err
		}

		err := tx.Model(&account).
			UpdateColumn("balance", gorm.Expr("balance + ?", balanceChange)).Error
		if err != nil {
			return err
		}

		return tx.Model(&model.User{}).
			Where("id = ?", account.UserID).
			UpdateColumn("questions", gorm.Expr("questions + ?", balanceChange)).Error
	})
	if err != nil {
		return nil, err
	}
	account.Balance += balanceChange
	return &account, nil
}

func (r *accountRepository) CountAll() (int64, error) {
	var count int64
	err := r.db.Model(&model.Account{}).Count(&count).Error
	return count, err
}

func (r *accountRepository) CountInvoices() (int64, error) {
	var count int64
	err := r.db.Model(&model.Invoice{}).Count(&count).Error
	return count, err
}

// SumPaidRevenue 汇总已结清发票的总金额。
func (r *accountRepository) SumPaidRevenue() (int64, error) {
	var total int64
	err := r.db.Model(&model.Invoice{}).
		Where("status = ?", "paid").
		Select("COALESCE(SUM(price), 0)").
		Scan(&total).Error
	return total, err
}
