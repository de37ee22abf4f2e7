package admin

import (
	"strings"
	"time"

	handlershared "github.com/schoolpay-next/internal/http/handlers/shared"
	"github.com/schoolpay-next/internal/http/response"
	"github.com/schoolpay-next/internal/models"
	"github.com/schoolpay-next/internal/repository"
	"github.com/schoolpay-next/internal/service"

	"github.com/gin-gonic/gin"
)

type createFeePayload struct {
	SchoolID            uint         `json:"school_id"`
	Title               string       `json:"title" binding:"required"`
	Description         string       `json:"description"`
	Term                string       `json:"term"`
	AmountDue           models.Money `json:"amount_due"`
	DueDate             time.Time    `json:"due_date" binding:"required"`
	AllowPartialPayment bool         `json:"allow_partial_payment"`
}

type assignFeePayload struct {
	StudentIDs []uint `json:"student_ids" binding:"required"`
}

// ListFees 收费项目列表
func (h *Handler) ListFees(c *gin.Context) {
	scope, ok := getAdminScope(c)
	if !ok {
		return
	}
	schoolID, ok := scope.filterSchoolID(c)
	if !ok {
		return
	}
	page, pageSize := handlershared.ParsePagination(c)
	fees, total, err := h.FeeService.ListFees(repository.FeeListFilter{
		Page:     page,
		PageSize: pageSize,
		SchoolID: schoolID,
		Term:     strings.TrimSpace(c.Query("term")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.fee_fetch_failed", err)
		return
	}
	response.SuccessWithPage(c, fees, response.NewPagination(page, pageSize, total))
}

// CreateFee 创建收费项目
func (h *Handler) CreateFee(c *gin.Context) {
	scope, ok := getAdminScope(c)
	if !ok {
		return
	}
	var req createFeePayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	schoolID, ok := scope.targetSchoolID(c, req.SchoolID)
	if !ok {
		return
	}
	fee, err := h.FeeService.CreateFee(service.CreateFeeInput{
		SchoolID:            schoolID,
		Title:               req.Title,
		Description:         req.Description,
		Term:                req.Term,
		AmountDue:           req.AmountDue,
		DueDate:             req.DueDate,
		AllowPartialPayment: req.AllowPartialPayment,
	})
	if err != nil {
		respondWithMappedError(c, err, feeErrorRules, response.CodeInternal, "error.fee_create_failed")
		return
	}
	response.Success(c, fee)
}

// GetFee 收费项目详情
func (h *Handler) GetFee(c *gin.Context) {
	scope, ok := getAdminScope(c)
	if !ok {
		return
	}
	id, ok := handlershared.ParseUintParam(c, "id")
	if !ok {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	fee, err := h.FeeService.GetFee(id, scope.serviceScope())
	if err != nil {
		respondWithMappedError(c, err, feeErrorRules, response.CodeInternal, "error.fee_fetch_failed")
		return
	}
	response.Success(c, fee)
}

// AssignFee 将收费项目分配给学生
func (h *Handler) AssignFee(c *gin.Context) {
	scope, ok := getAdminScope(c)
	if !ok {
		return
	}
	id, ok := handlershared.ParseUintParam(c, "id")
	if !ok {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	var req assignFeePayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	result, err := h.FeeService.AssignFee(id, scope.serviceScope(), req.StudentIDs)
	if err != nil {
		respondWithMappedError(c, err, feeErrorRules, response.CodeInternal, "error.fee_assign_failed")
		return
	}
	response.Success(c, result)
}

// ListFeeAssignments 缴费义务列表，可按收费项目、学生与状态过滤
func (h *Handler) ListFeeAssignments(c *gin.Context) {
	scope, ok := getAdminScope(c)
	if !ok {
		return
	}
	schoolID, ok := scope.filterSchoolID(c)
	if !ok {
		return
	}
	studentID, okStudent := handlershared.ParseUintQuery(c, "student_id")
	feeID, okFee := handlershared.ParseUintQuery(c, "fee_id")
	if !okStudent || !okFee {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	if id, hasPath := handlershared.ParseUintParam(c, "id"); hasPath {
		feeID = id
	}
	page, pageSize := handlershared.ParsePagination(c)
	assignments, total, err := h.FeeService.ListAssignments(repository.FeeAssignmentListFilter{
		Page:      page,
		PageSize:  pageSize,
		SchoolID:  schoolID,
		StudentID: studentID,
		FeeID:     feeID,
		Status:    strings.TrimSpace(c.Query("status")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.fee_fetch_failed", err)
		return
	}
	response.SuccessWithPage(c, assignments, response.NewPagination(page, pageSize, total))
}
