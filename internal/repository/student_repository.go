package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/schoolpay-next/internal/models"

	"gorm.io/gorm"
)

// StudentRepository 学生数据访问接口
type StudentRepository interface {
	Create(student *models.Student) error
	Update(student *models.Student) error
	GetByID(id uint) (*models.Student, error)
	GetBySchoolAndAdmissionNo(schoolID uint, admissionNo string) (*models.Student, error)
	TouchLastLogin(id uint, at time.Time) error
	List(filter StudentListFilter) ([]models.Student, int64, error)
	WithTx(tx *gorm.DB) *GormStudentRepository
}

// GormStudentRepository GORM 实现
type GormStudentRepository struct {
	db *gorm.DB
}

// NewStudentRepository 创建学生仓库
func NewStudentRepository(db *gorm.DB) *GormStudentRepository {
	return &GormStudentRepository{db: db}
}

// WithTx 绑定事务
func (r *GormStudentRepository) WithTx(tx *gorm.DB) *GormStudentRepository {
	if tx == nil {
		return r
	}
	return &GormStudentRepository{db: tx}
}

// Create 创建学生
func (r *GormStudentRepository) Create(student *models.Student) error {
	return r.db.Create(student).Error
}

// Update 更新学生
func (r *GormStudentRepository) Update(student *models.Student) error {
	return r.db.Save(student).Error
}

// GetByID 根据 ID 获取学生
func (r *GormStudentRepository) GetByID(id uint) (*models.Student, error) {
	if id == 0 {
		return nil, nil
	}
	var student models.Student
	if err := r.db.First(&student, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &student, nil
}

// GetBySchoolAndAdmissionNo 根据学校与学号获取学生
func (r *GormStudentRepository) GetBySchoolAndAdmissionNo(schoolID uint, admissionNo string) (*models.Student, error) {
	admissionNo = strings.TrimSpace(admissionNo)
	if schoolID == 0 || admissionNo == "" {
		return nil, nil
	}
	var student models.Student
	if err := r.db.Where("school_id = ? AND admission_no = ?", schoolID, admissionNo).First(&student).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &student, nil
}

// TouchLastLogin 更新最后登录时间
func (r *GormStudentRepository) TouchLastLogin(id uint, at time.Time) error {
	return r.db.Model(&models.Student{}).Where("id = ?", id).Update("last_login_at", at).Error
}

// List 分页查询学生
func (r *GormStudentRepository) List(filter StudentListFilter) ([]models.Student, int64, error) {
	query := r.db.Model(&models.Student{})
	if filter.SchoolID != 0 {
		query = query.Where("school_id = ?", filter.SchoolID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if keyword := strings.TrimSpace(filter.Keyword); keyword != "" {
		like := containsPattern(keyword)
		op := likeOperator(r.db)
		query = query.Where("(name "+op+" ? ESCAPE '\\' OR admission_no "+op+" ? ESCAPE '\\')", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var students []models.Student
	if err := query.Order("id desc").Find(&students).Error; err != nil {
		return nil, 0, err
	}
	return students, total, nil
}
