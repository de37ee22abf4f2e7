package repository

import (
	"errors"
	"time"

	"github.com/schoolpay-next/internal/models"

	"gorm.io/gorm"
)

// ReceiptRepository 凭证数据访问接口
type ReceiptRepository interface {
	Create(receipt *models.Receipt) error
	GetByPaymentAndKind(paymentID uint, kind string) (*models.Receipt, error)
	ListByPayment(paymentID uint) ([]models.Receipt, error)
	MarkEmailed(id uint, at time.Time) error
}

// GormReceiptRepository GORM 实现
type GormReceiptRepository struct {
	db *gorm.DB
}

// NewReceiptRepository 创建凭证仓库
func NewReceiptRepository(db *gorm.DB) *GormReceiptRepository {
	return &GormReceiptRepository{db: db}
}

// Create 创建凭证
func (r *GormReceiptRepository) Create(receipt *models.Receipt) error {
	return r.db.Create(receipt).Error
}

// GetByPaymentAndKind 获取支付指定类型的凭证
func (r *GormReceiptRepository) GetByPaymentAndKind(paymentID uint, kind string) (*models.Receipt, error) {
	var receipt models.Receipt
	if err := r.db.Where("payment_id = ? AND kind = ?", paymentID, kind).First(&receipt).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &receipt, nil
}

// ListByPayment 获取支付的全部凭证
func (r *GormReceiptRepository) ListByPayment(paymentID uint) ([]models.Receipt, error) {
	receipts := make([]models.Receipt, 0)
	if err := r.db.Where("payment_id = ?", paymentID).Order("id asc").Find(&receipts).Error; err != nil {
		return nil, err
	}
	return receipts, nil
}

// MarkEmailed 记录邮件发送时间
func (r *GormReceiptRepository) MarkEmailed(id uint, at time.Time) error {
	return r.db.Model(&models.Receipt{}).Where("id = ?", id).Update("emailed_at", at).Error
}
