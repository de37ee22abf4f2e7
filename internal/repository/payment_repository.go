package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/schoolpay-next/internal/constants"
	"github.com/schoolpay-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PaymentRepository 支付数据访问接口
type PaymentRepository interface {
	Create(payment *models.Payment) error
	GetByID(id uint) (*models.Payment, error)
	GetByReference(reference string) (*models.Payment, error)
	GetByReferenceForUpdate(reference string) (*models.Payment, error)
	GetByIDForUpdate(id uint) (*models.Payment, error)
	UpdateMetadata(id uint, metadata models.ProviderMetadata) error
	TransitionStatus(id uint, from, to string, metadata models.ProviderMetadata, at time.Time) (int64, error)
	GetLastConfirmedByStudent(studentID, excludeID uint) (*models.Payment, error)
	List(filter PaymentListFilter) ([]models.Payment, int64, error)
	WithTx(tx *gorm.DB) *GormPaymentRepository
}

// GormPaymentRepository GORM 实现
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository 创建支付仓库
func NewPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// WithTx 绑定事务
func (r *GormPaymentRepository) WithTx(tx *gorm.DB) *GormPaymentRepository {
	if tx == nil {
		return r
	}
	return &GormPaymentRepository{db: tx}
}

// Create 创建支付记录
func (r *GormPaymentRepository) Create(payment *models.Payment) error {
	return r.db.Create(payment).Error
}

// GetByID 根据 ID 获取支付记录
func (r *GormPaymentRepository) GetByID(id uint) (*models.Payment, error) {
	if id == 0 {
		return nil, nil
	}
	var payment models.Payment
	if err := r.db.First(&payment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

// GetByReference 根据网关参考号获取支付记录
func (r *GormPaymentRepository) GetByReference(reference string) (*models.Payment, error) {
	return r.findByReference(r.db, reference)
}

// GetByReferenceForUpdate 根据网关参考号加锁获取支付记录
func (r *GormPaymentRepository) GetByReferenceForUpdate(reference string) (*models.Payment, error) {
	return r.findByReference(r.db.Clauses(clause.Locking{Strength: "UPDATE"}), reference)
}

func (r *GormPaymentRepository) findByReference(query *gorm.DB, reference string) (*models.Payment, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, nil
	}
	var payment models.Payment
	result := query.Where("reference = ?", reference).Limit(1).Find(&payment)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &payment, nil
}

// GetByIDForUpdate 加锁获取支付记录
func (r *GormPaymentRepository) GetByIDForUpdate(id uint) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&payment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

// UpdateMetadata 更新网关元数据
func (r *GormPaymentRepository) UpdateMetadata(id uint, metadata models.ProviderMetadata) error {
	return r.db.Model(&models.Payment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"provider_metadata": metadata,
			"updated_at":        time.Now(),
		}).Error
}

// TransitionStatus 条件更新支付状态，仅当当前状态为 from 时生效
func (r *GormPaymentRepository) TransitionStatus(id uint, from, to string, metadata models.ProviderMetadata, at time.Time) (int64, error) {
	updates := map[string]interface{}{
		"status":            to,
		"provider_metadata": metadata,
		"updated_at":        at,
	}
	switch to {
	case constants.PaymentStatusConfirmed:
		updates["confirmed_at"] = at
	case constants.PaymentStatusRejected:
		updates["rejected_at"] = at
	}
	result := r.db.Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	return result.RowsAffected, result.Error
}

// GetLastConfirmedByStudent 获取学生最近一笔已确认支付（排除指定支付）
func (r *GormPaymentRepository) GetLastConfirmedByStudent(studentID, excludeID uint) (*models.Payment, error) {
	var payment models.Payment
	query := r.db.Where("student_id = ? AND status = ?", studentID, constants.PaymentStatusConfirmed)
	if excludeID != 0 {
		query = query.Where("id <> ?", excludeID)
	}
	result := query.Order("confirmed_at desc, id desc").Limit(1).Find(&payment)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &payment, nil
}

// List 分页查询支付记录
func (r *GormPaymentRepository) List(filter PaymentListFilter) ([]models.Payment, int64, error) {
	query := r.db.Model(&models.Payment{})
	if filter.SchoolID != 0 {
		query = query.Where("school_id = ?", filter.SchoolID)
	}
	if filter.StudentID != 0 {
		query = query.Where("student_id = ?", filter.StudentID)
	}
	if filter.FeeID != 0 {
		query = query.Where("fee_id = ?", filter.FeeID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Reference != "" {
		query = query.Where("reference = ?", strings.TrimSpace(filter.Reference))
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var payments []models.Payment
	if err := query.Order("id desc").Find(&payments).Error; err != nil {
		return nil, 0, err
	}
	return payments, total, nil
}
