package repository

import (
	"errors"
	"strings"

	"github.com/schoolpay-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RefundRepository 退款数据访问接口
type RefundRepository interface {
	Create(refund *models.Refund) error
	GetByID(id uint) (*models.Refund, error)
	GetByIDForUpdate(id uint) (*models.Refund, error)
	ListByPaymentAndStatuses(paymentID uint, statuses []string) ([]models.Refund, error)
	FindByProviderRefundRef(paymentID uint, ref string) (*models.Refund, error)
	FindOldestByPaymentAndStatus(paymentID uint, status string) (*models.Refund, error)
	SaveTransition(refund *models.Refund, fromStatus string) (int64, error)
	List(filter RefundListFilter) ([]models.Refund, int64, error)
	WithTx(tx *gorm.DB) *GormRefundRepository
}

// GormRefundRepository GORM 实现
type GormRefundRepository struct {
	db *gorm.DB
}

// NewRefundRepository 创建退款仓库
func NewRefundRepository(db *gorm.DB) *GormRefundRepository {
	return &GormRefundRepository{db: db}
}

// WithTx 绑定事务
func (r *GormRefundRepository) WithTx(tx *gorm.DB) *GormRefundRepository {
	if tx == nil {
		return r
	}
	return &GormRefundRepository{db: tx}
}

// Create 创建退款
func (r *GormRefundRepository) Create(refund *models.Refund) error {
	return r.db.Create(refund).Error
}

// GetByID 根据 ID 获取退款
func (r *GormRefundRepository) GetByID(id uint) (*models.Refund, error) {
	if id == 0 {
		return nil, nil
	}
	var refund models.Refund
	if err := r.db.First(&refund, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &refund, nil
}

// GetByIDForUpdate 加锁获取退款
func (r *GormRefundRepository) GetByIDForUpdate(id uint) (*models.Refund, error) {
	var refund models.Refund
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&refund, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &refund, nil
}

// ListByPaymentAndStatuses 查询支付下指定状态的退款
func (r *GormRefundRepository) ListByPaymentAndStatuses(paymentID uint, statuses []string) ([]models.Refund, error) {
	refunds := make([]models.Refund, 0)
	query := r.db.Where("payment_id = ?", paymentID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	if err := query.Order("id asc").Find(&refunds).Error; err != nil {
		return nil, err
	}
	return refunds, nil
}

// FindByProviderRefundRef 根据网关退款流水号查找退款
func (r *GormRefundRepository) FindByProviderRefundRef(paymentID uint, ref string) (*models.Refund, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, nil
	}
	return r.first(r.db.Where("payment_id = ? AND provider_refund_ref = ?", paymentID, ref).Order("id asc"))
}

// FindOldestByPaymentAndStatus 查找支付下最早的指定状态退款
func (r *GormRefundRepository) FindOldestByPaymentAndStatus(paymentID uint, status string) (*models.Refund, error) {
	return r.first(r.db.Where("payment_id = ? AND status = ?", paymentID, status).Order("id asc"))
}

func (r *GormRefundRepository) first(query *gorm.DB) (*models.Refund, error) {
	var refund models.Refund
	result := query.Limit(1).Find(&refund)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &refund, nil
}

// SaveTransition 条件写入状态迁移与审计轨迹，仅当当前状态为 fromStatus 时生效
func (r *GormRefundRepository) SaveTransition(refund *models.Refund, fromStatus string) (int64, error) {
	if refund == nil {
		return 0, nil
	}
	result := r.db.Model(&models.Refund{}).
		Where("id = ? AND status = ?", refund.ID, fromStatus).
		Updates(map[string]interface{}{
			"status":              refund.Status,
			"audit_trail":         refund.AuditTrail,
			"provider_refund_ref": refund.ProviderRefundRef,
			"reviewed_by":         refund.ReviewedBy,
			"reviewed_at":         refund.ReviewedAt,
			"updated_at":          refund.UpdatedAt,
		})
	return result.RowsAffected, result.Error
}

// List 分页查询退款
func (r *GormRefundRepository) List(filter RefundListFilter) ([]models.Refund, int64, error) {
	query := r.db.Model(&models.Refund{})
	if filter.SchoolID != 0 {
		query = query.Where("school_id = ?", filter.SchoolID)
	}
	if filter.StudentID != 0 {
		query = query.Where("student_id = ?", filter.StudentID)
	}
	if filter.PaymentID != 0 {
		query = query.Where("payment_id = ?", filter.PaymentID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var refunds []models.Refund
	if err := query.Order("id desc").Find(&refunds).Error; err != nil {
		return nil, 0, err
	}
	return refunds, total, nil
}
