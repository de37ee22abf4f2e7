package repository

import (
	"errors"

	"github.com/schoolpay-next/internal/models"

	"gorm.io/gorm"
)

// FeeRepository 收费项目数据访问接口
type FeeRepository interface {
	Create(fee *models.Fee) error
	Update(fee *models.Fee) error
	GetByID(id uint) (*models.Fee, error)
	List(filter FeeListFilter) ([]models.Fee, int64, error)
	WithTx(tx *gorm.DB) *GormFeeRepository
}

// GormFeeRepository GORM 实现
type GormFeeRepository struct {
	db *gorm.DB
}

// NewFeeRepository 创建收费项目仓库
func NewFeeRepository(db *gorm.DB) *GormFeeRepository {
	return &GormFeeRepository{db: db}
}

// WithTx 绑定事务
func (r *GormFeeRepository) WithTx(tx *gorm.DB) *GormFeeRepository {
	if tx == nil {
		return r
	}
	return &GormFeeRepository{db: tx}
}

// Create 创建收费项目
func (r *GormFeeRepository) Create(fee *models.Fee) error {
	return r.db.Create(fee).Error
}

// Update 更新收费项目
func (r *GormFeeRepository) Update(fee *models.Fee) error {
	return r.db.Save(fee).Error
}

// GetByID 根据 ID 获取收费项目
func (r *GormFeeRepository) GetByID(id uint) (*models.Fee, error) {
	if id == 0 {
		return nil, nil
	}
	var fee models.Fee
	if err := r.db.First(&fee, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &fee, nil
}

// List 分页查询收费项目
func (r *GormFeeRepository) List(filter FeeListFilter) ([]models.Fee, int64, error) {
	query := r.db.Model(&models.Fee{})
	if filter.SchoolID != 0 {
		query = query.Where("school_id = ?", filter.SchoolID)
	}
	if filter.Term != "" {
		query = query.Where("term = ?", filter.Term)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var fees []models.Fee
	if err := query.Order("due_date asc, id asc").Find(&fees).Error; err != nil {
		return nil, 0, err
	}
	return fees, total, nil
}
