package repository

import (
	"errors"
	"strings"

	"github.com/schoolpay-next/internal/models"

	"gorm.io/gorm"
)

// SchoolRepository 学校数据访问接口
type SchoolRepository interface {
	Create(school *models.School) error
	GetByID(id uint) (*models.School, error)
	GetByCode(code string) (*models.School, error)
	List() ([]models.School, error)
}

// GormSchoolRepository GORM 实现
type GormSchoolRepository struct {
	db *gorm.DB
}

// NewSchoolRepository 创建学校仓库
func NewSchoolRepository(db *gorm.DB) *GormSchoolRepository {
	return &GormSchoolRepository{db: db}
}

// Create 创建学校
func (r *GormSchoolRepository) Create(school *models.School) error {
	return r.db.Create(school).Error
}

// GetByID 根据 ID 获取学校
func (r *GormSchoolRepository) GetByID(id uint) (*models.School, error) {
	if id == 0 {
		return nil, nil
	}
	var school models.School
	if err := r.db.First(&school, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &school, nil
}

// GetByCode 根据学校编码获取学校，编码不区分大小写
func (r *GormSchoolRepository) GetByCode(code string) (*models.School, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, nil
	}
	var school models.School
	if err := r.db.Where("code = ?", code).First(&school).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &school, nil
}

// List 获取全部学校
func (r *GormSchoolRepository) List() ([]models.School, error) {
	schools := make([]models.School, 0)
	if err := r.db.Order("id asc").Find(&schools).Error; err != nil {
		return nil, err
	}
	return schools, nil
}
