package service

import (
	"strings"

	"github.com/schoolpay-next/internal/config"
	"github.com/schoolpay-next/internal/constants"
	"github.com/schoolpay-next/internal/models"
	"github.com/schoolpay-next/internal/repository"
)

// SchoolService 学校与学生档案
type SchoolService struct {
	cfg         *config.Config
	schoolRepo  repository.SchoolRepository
	studentRepo repository.StudentRepository
}

// NewSchoolService 创建学校服务
func NewSchoolService(cfg *config.Config, schoolRepo repository.SchoolRepository, studentRepo repository.StudentRepository) *SchoolService {
	return &SchoolService{cfg: cfg, schoolRepo: schoolRepo, studentRepo: studentRepo}
}

// CreateSchoolInput 创建学校
type CreateSchoolInput struct {
	Code     string
	Name     string
	Email    string
	Currency string
}

// CreateStudentInput 创建学生
type CreateStudentInput struct {
	SchoolID       uint
	AdmissionNo    string
	Name           string
	Email          string
	Password       string
	EnrollmentType string
}

// CreateSchool 创建学校，编码统一大写
func (s *SchoolService) CreateSchool(input CreateSchoolInput) (*models.School, error) {
	code := strings.ToUpper(strings.TrimSpace(input.Code))
	name := strings.TrimSpace(input.Name)
	if code == "" || name == "" {
		return nil, ErrInvalidInput
	}
	existing, err := s.schoolRepo.GetByCode(code)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = strings.ToUpper(strings.TrimSpace(s.cfg.Paystack.Currency))
	}
	if currency == "" {
		currency = "NGN"
	}
	school := &models.School{
		Code:     code,
		Name:     name,
		Email:    strings.TrimSpace(input.Email),
		Currency: currency,
	}
	if err := s.schoolRepo.Create(school); err != nil {
		return nil, err
	}
	return school, nil
}

// ListSchools 学校列表
func (s *SchoolService) ListSchools() ([]models.School, error) {
	return s.schoolRepo.List()
}

// CreateStudent 创建学生账号
func (s *SchoolService) CreateStudent(input CreateStudentInput) (*models.Student, error) {
	admissionNo := strings.TrimSpace(input.AdmissionNo)
	name := strings.TrimSpace(input.Name)
	if input.SchoolID == 0 || admissionNo == "" || name == "" {
		return nil, ErrInvalidInput
	}
	school, err := s.schoolRepo.GetByID(input.SchoolID)
	if err != nil {
		return nil, err
	}
	if school == nil {
		return nil, ErrSchoolNotFound
	}
	if err := validatePassword(s.cfg.Security.PasswordPolicy, input.Password); err != nil {
		return nil, err
	}
	existing, err := s.studentRepo.GetBySchoolAndAdmissionNo(school.ID, admissionNo)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	enrollment := strings.ToLower(strings.TrimSpace(input.EnrollmentType))
	if enrollment != constants.EnrollmentTypeBoarding {
		enrollment = constants.EnrollmentTypeDay
	}
	hash, err := HashPassword(input.Password)
	if err != nil {
		return nil, err
	}
	student := &models.Student{
		SchoolID:       school.ID,
		AdmissionNo:    admissionNo,
		Name:           name,
		Email:          strings.TrimSpace(input.Email),
		PasswordHash:   hash,
		EnrollmentType: enrollment,
		Status:         constants.StudentStatusActive,
	}
	if err := s.studentRepo.Create(student); err != nil {
		return nil, err
	}
	return student, nil
}

// ListStudents 学生列表
func (s *SchoolService) ListStudents(filter repository.StudentListFilter) ([]models.Student, int64, error) {
	return s.studentRepo.List(filter)
}
