package admin

import (
	"strings"

	handlershared "github.com/schoolpay-next/internal/http/handlers/shared"
	"github.com/schoolpay-next/internal/http/response"
	"github.com/schoolpay-next/internal/models"
	"github.com/schoolpay-next/internal/repository"

	"github.com/gin-gonic/gin"
)

// ListAdminPayments 支付列表，支持状态、学生、引用号与时间过滤
func (h *Handler) ListAdminPayments(c *gin.Context) {
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
	createdFrom, okFrom := handlershared.ParseTimeQuery(c, "created_from")
	createdTo, okTo := handlershared.ParseTimeQuery(c, "created_to")
	if !okStudent || !okFee || !okFrom || !okTo {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	page, pageSize := handlershared.ParsePagination(c)
	payments, total, err := h.PaymentService.ListPayments(repository.PaymentListFilter{
		Page:        page,
		PageSize:    pageSize,
		SchoolID:    schoolID,
		StudentID:   studentID,
		FeeID:       feeID,
		Status:      strings.TrimSpace(c.Query("status")),
		Reference:   strings.TrimSpace(c.Query("reference")),
		CreatedFrom: createdFrom,
		CreatedTo:   createdTo,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.payment_fetch_failed", err)
		return
	}
	response.SuccessWithPage(c, payments, response.NewPagination(page, pageSize, total))
}

// GetAdminPayment 支付详情，附带凭证与最近一次风控评分
func (h *Handler) GetAdminPayment(c *gin.Context) {
	payment, ok := h.loadScopedPayment(c)
	if !ok {
		return
	}
	receipts, err := h.ReceiptService.ListByPayment(payment.ID)
	if err != nil {
		respondError(c, response.CodeInternal, "error.receipt_fetch_failed", err)
		return
	}
	response.Success(c, gin.H{
		"payment":     payment,
		"receipts":    receipts,
		"fraud_score": h.FraudService.LatestScore(payment.ID),
	})
}

// VerifyAdminPayment 管理员代为向网关核实
func (h *Handler) VerifyAdminPayment(c *gin.Context) {
	payment, ok := h.loadScopedPayment(c)
	if !ok {
		return
	}
	updated, err := h.PaymentService.VerifyPayment(c.Request.Context(), payment.Reference, handlershared.BuildRequestMeta(c))
	if err != nil {
		respondWithMappedError(c, err, paymentErrorRules, response.CodeInternal, "error.payment_verify_failed")
		return
	}
	response.SuccessWithMsg(c, updated.Status, updated)
}

func (h *Handler) loadScopedPayment(c *gin.Context) (*models.Payment, bool) {
	scope, ok := getAdminScope(c)
	if !ok {
		return nil, false
	}
	id, ok := handlershared.ParseUintParam(c, "id")
	if !ok {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return nil, false
	}
	payment, err := h.PaymentService.GetPayment(id)
	if err != nil {
		respondWithMappedError(c, err, paymentErrorRules, response.CodeInternal, "error.payment_fetch_failed")
		return nil, false
	}
	if !scope.canAccess(payment.SchoolID) {
		respondError(c, response.CodeNotFound, "error.payment_not_found", nil)
		return nil, false
	}
	return payment, true
}
