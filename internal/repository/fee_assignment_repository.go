package repository

import (
	"errors"
	"time"

	"github.com/schoolpay-next/internal/constants"
	"github.com/schoolpay-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FeeAssignmentRepository 缴费义务数据访问接口
type FeeAssignmentRepository interface {
	Create(assignment *models.FeeAssignment) error
	GetByID(id uint) (*models.FeeAssignment, error)
	GetByStudentAndFee(studentID, feeID uint) (*models.FeeAssignment, error)
	GetByIDForUpdate(id uint) (*models.FeeAssignment, error)
	IncrementPaid(id uint, amount models.Money, at time.Time) (int64, error)
	UpdateStatus(id uint, status string) error
	MarkOverdue(now time.Time) (int64, error)
	List(filter FeeAssignmentListFilter) ([]models.FeeAssignment, int64, error)
	WithTx(tx *gorm.DB) *GormFeeAssignmentRepository
}

// GormFeeAssignmentRepository GORM 实现
type GormFeeAssignmentRepository struct {
	db *gorm.DB
}

// NewFeeAssignmentRepository 创建缴费义务仓库
func NewFeeAssignmentRepository(db *gorm.DB) *GormFeeAssignmentRepository {
	return &GormFeeAssignmentRepository{db: db}
}

// WithTx 绑定事务
func (r *GormFeeAssignmentRepository) WithTx(tx *gorm.DB) *GormFeeAssignmentRepository {
	if tx == nil {
		return r
	}
	return &GormFeeAssignmentRepository{db: tx}
}

// Create 创建缴费义务
func (r *GormFeeAssignmentRepository) Create(assignment *models.FeeAssignment) error {
	return r.db.Create(assignment).Error
}

// GetByID 根据 ID 获取缴费义务
func (r *GormFeeAssignmentRepository) GetByID(id uint) (*models.FeeAssignment, error) {
	var assignment models.FeeAssignment
	if err := r.db.Preload("Fee").First(&assignment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &assignment, nil
}

// GetByStudentAndFee 获取学生在某收费项目下的缴费义务
func (r *GormFeeAssignmentRepository) GetByStudentAndFee(studentID, feeID uint) (*models.FeeAssignment, error) {
	var assignment models.FeeAssignment
	if err := r.db.Where("student_id = ? AND fee_id = ?", studentID, feeID).First(&assignment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &assignment, nil
}

// GetByIDForUpdate 加锁获取缴费义务
func (r *GormFeeAssignmentRepository) GetByIDForUpdate(id uint) (*models.FeeAssignment, error) {
	var assignment models.FeeAssignment
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&assignment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &assignment, nil
}

// IncrementPaid 原子累加已缴金额
func (r *GormFeeAssignmentRepository) IncrementPaid(id uint, amount models.Money, at time.Time) (int64, error) {
	result := r.db.Model(&models.FeeAssignment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"amount_paid":     gorm.Expr("amount_paid + ?", amount.Decimal),
			"last_payment_at": at,
			"updated_at":      at,
		})
	return result.RowsAffected, result.Error
}

// UpdateStatus 写入派生状态
func (r *GormFeeAssignmentRepository) UpdateStatus(id uint, status string) error {
	return r.db.Model(&models.FeeAssignment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		}).Error
}

// MarkOverdue 将已过截止日期且未缴费的义务标记为逾期
func (r *GormFeeAssignmentRepository) MarkOverdue(now time.Time) (int64, error) {
	result := r.db.Model(&models.FeeAssignment{}).
		Where("status = ? AND due_date < ? AND amount_paid <= 0", constants.FeeAssignmentStatusAssigned, now).
		Updates(map[string]interface{}{
			"status":     constants.FeeAssignmentStatusOverdue,
			"updated_at": now,
		})
	return result.RowsAffected, result.Error
}

// List 分页查询缴费义务
func (r *GormFeeAssignmentRepository) List(filter FeeAssignmentListFilter) ([]models.FeeAssignment, int64, error) {
	query := r.db.Model(&models.FeeAssignment{})
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

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var assignments []models.FeeAssignment
	if err := query.Preload("Fee").Order("due_date asc, id asc").Find(&assignments).Error; err != nil {
		return nil, 0, err
	}
	return assignments, total, nil
}
