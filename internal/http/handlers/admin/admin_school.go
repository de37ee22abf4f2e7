package admin

import (
	"strings"

	handlershared "github.com/schoolpay-next/internal/http/handlers/shared"
	"github.com/schoolpay-next/internal/http/response"
	"github.com/schoolpay-next/internal/models"
	"github.com/schoolpay-next/internal/repository"
	"github.com/schoolpay-next/internal/service"

	"github.com/gin-gonic/gin"
)

type createSchoolPayload struct {
	Code     string `json:"code" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email"`
	Currency string `json:"currency"`
}

type createStudentPayload struct {
	SchoolID       uint   `json:"school_id"`
	AdmissionNo    string `json:"admission_no" binding:"required"`
	Name           string `json:"name" binding:"required"`
	Email          string `json:"email"`
	Password       string `json:"password" binding:"required"`
	EnrollmentType string `json:"enrollment_type"`
}

// ListSchools 学校列表，学校管理员只看到本校
func (h *Handler) ListSchools(c *gin.Context) {
	scope, ok := getAdminScope(c)
	if !ok {
		return
	}
	schools, err := h.SchoolService.ListSchools()
	if err != nil {
		respondError(c, response.CodeInternal, "error.school_fetch_failed", err)
		return
	}
	if !scope.IsSuper {
		visible := make([]models.School, 0, 1)
		for _, school := range schools {
			if scope.canAccess(school.ID) {
				visible = append(visible, school)
			}
		}
		schools = visible
	}
	response.Success(c, schools)
}

// CreateSchool 创建学校，仅超级管理员
func (h *Handler) CreateSchool(c *gin.Context) {
	scope, ok := getAdminScope(c)
	if !ok {
		return
	}
	if !scope.IsSuper {
		respondError(c, response.CodeForbidden, "error.forbidden", nil)
		return
	}
	var req createSchoolPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	school, err := h.SchoolService.CreateSchool(service.CreateSchoolInput{
		Code:     req.Code,
		Name:     req.Name,
		Email:    req.Email,
		Currency: req.Currency,
	})
	if err != nil {
		respondWithMappedError(c, err, schoolErrorRules, response.CodeInternal, "error.school_create_failed")
		return
	}
	response.Success(c, school)
}

// ListStudents 学生列表
func (h *Handler) ListStudents(c *gin.Context) {
	scope, ok := getAdminScope(c)
	if !ok {
		return
	}
	schoolID, ok := scope.filterSchoolID(c)
	if !ok {
		return
	}
	page, pageSize := handlershared.ParsePagination(c)
	students, total, err := h.SchoolService.ListStudents(repository.StudentListFilter{
		Page:     page,
		PageSize: pageSize,
		SchoolID: schoolID,
		Keyword:  strings.TrimSpace(c.Query("keyword")),
		Status:   strings.TrimSpace(c.Query("status")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.student_fetch_failed", err)
		return
	}
	response.SuccessWithPage(c, students, response.NewPagination(page, pageSize, total))
}

// CreateStudent 创建学生账号
func (h *Handler) CreateStudent(c *gin.Context) {
	scope, ok := getAdminScope(c)
	if !ok {
		return
	}
	var req createStudentPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	schoolID, ok := scope.targetSchoolID(c, req.SchoolID)
	if !ok {
		return
	}
	student, err := h.SchoolService.CreateStudent(service.CreateStudentInput{
		SchoolID:       schoolID,
		AdmissionNo:    req.AdmissionNo,
		Name:           req.Name,
		Email:          req.Email,
		Password:       req.Password,
		EnrollmentType: req.EnrollmentType,
	})
	if err != nil {
		if handlershared.RespondPasswordPolicyError(c, err) {
			return
		}
		respondWithMappedError(c, err, schoolErrorRules, response.CodeInternal, "error.student_create_failed")
		return
	}
	response.Success(c, student)
}
