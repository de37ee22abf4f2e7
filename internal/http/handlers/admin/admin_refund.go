package admin

import (
	"strings"

	handlershared "github.com/schoolpay-next/internal/http/handlers/shared"
	"github.com/schoolpay-next/internal/http/response"
	"github.com/schoolpay-next/internal/repository"
	"github.com/schoolpay-next/internal/service"

	"github.com/gin-gonic/gin"
)

type reviewRefundPayload struct {
	Decision string `json:"decision" binding:"required"`
	Note     string `json:"note"`
}

// ListAdminRefunds 退款列表
func (h *Handler) ListAdminRefunds(c *gin.Context) {
	scope, ok := getAdminScope(c)
	if !ok {
		return
	}
	schoolID, ok := scope.filterSchoolID(c)
	if !ok {
		return
	}
	studentID, okStudent := handlershared.ParseUintQuery(c, "student_id")
	paymentID, okPayment := handlershared.ParseUintQuery(c, "payment_id")
	if !okStudent || !okPayment {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	page, pageSize := handlershared.ParsePagination(c)
	refunds, total, err := h.RefundService.ListRefunds(repository.RefundListFilter{
		Page:      page,
		PageSize:  pageSize,
		SchoolID:  schoolID,
		StudentID: studentID,
		PaymentID: paymentID,
		Status:    strings.TrimSpace(c.Query("status")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.refund_fetch_failed", err)
		return
	}
	response.SuccessWithPage(c, refunds, response.NewPagination(page, pageSize, total))
}

// GetAdminRefund 退款详情
func (h *Handler) GetAdminRefund(c *gin.Context) {
	scope, ok := getAdminScope(c)
	if !ok {
		return
	}
	id, ok := handlershared.ParseUintParam(c, "id")
	if !ok {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	refund, err := h.RefundService.GetRefund(id)
	if err != nil {
		respondWithMappedError(c, err, refundReviewErrorRules, response.CodeInternal, "error.refund_fetch_failed")
		return
	}
	if !scope.canAccess(refund.SchoolID) {
		respondError(c, response.CodeNotFound, "error.refund_not_found", nil)
		return
	}
	response.Success(c, refund)
}

// ReviewRefund 审核退款，批准后立即向网关发起退款
func (h *Handler) ReviewRefund(c *gin.Context) {
	scope, ok := getAdminScope(c)
	if !ok {
		return
	}
	id, ok := handlershared.ParseUintParam(c, "id")
	if !ok {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	var req reviewRefundPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	refund, err := h.RefundService.ReviewRefund(service.ReviewRefundInput{
		AdminID:       scope.AdminID,
		ScopeSchoolID: scope.serviceScope(),
		RefundID:      id,
		Decision:      req.Decision,
		Note:          strings.TrimSpace(req.Note),
		Meta:          handlershared.BuildRequestMeta(c),
		Context:       c.Request.Context(),
	})
	if err != nil {
		respondRefundReviewError(c, err)
		return
	}
	response.SuccessWithMsg(c, refund.Status, refund)
}

func respondRefundReviewError(c *gin.Context, err error) {
	respondWithMappedError(c, err, refundReviewErrorRules, response.CodeInternal, "error.refund_review_failed")
}
