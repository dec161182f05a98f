package model

import "time"

// Account 记录用户的购买账户：可用余额与累计消费。
type Account struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"index;not null" json:"userId"`
	Balance    int       `gorm:"not null;default:0" json:"balance"`
	TotalSpent int       `gorm:"not null;default:0" json:"totalSpent"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (Account) TableName() string {
	return "accounts"
}

// Invoice 是一张提问配额购买单。支付成功后配额增加走与扣减相同的账本。
type Invoice struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	AccountID uint      `gorm:"index;not null" json:"accountId"`
	Package   string    `gorm:"type:varchar(100);not null" json:"package"`
	Questions int       `gorm:"not null" json:"questions"`
	Price     int       `gorm:"not null" json:"price"`
	Status    string    `gorm:"type:varchar(20);not null;default:'pending'" json:"status"` // pending 或 paid
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (Invoice) TableName() string {
	return "invoices"
}
