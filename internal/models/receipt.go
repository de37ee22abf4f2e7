package models

import "time"

// Receipt 支付凭证（发起时的收据与确认后的发票）
type Receipt struct {
	ID        uint       `gorm:"primarykey" json:"id"`
	PaymentID uint       `gorm:"not null;uniqueIndex:idx_receipt_payment_kind" json:"payment_id"`
	Kind      string     `gorm:"type:varchar(16);not null;uniqueIndex:idx_receipt_payment_kind" json:"kind"` // receipt / invoice
	SchoolID  uint       `gorm:"index;not null" json:"school_id"`
	StudentID uint       `gorm:"index;not null" json:"student_id"`
	Number    string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"number"`
	Amount    Money      `gorm:"type:decimal(20,2);not null" json:"amount"`
	Currency  string     `gorm:"type:varchar(8);not null" json:"currency"`
	Status    string     `gorm:"type:varchar(16);not null" json:"status"` // 开具时的支付状态
	IssuedAt  time.Time  `json:"issued_at"`
	EmailedAt *time.Time `json:"emailed_at"`
	CreatedAt time.Time  `json:"created_at"`
}

// TableName 指定表名
func (Receipt) TableName() string {
	return "receipts"
}
