package public

import (
	"strings"

	handlershared "github.com/schoolpay-next/internal/http/handlers/shared"
	"github.com/schoolpay-next/internal/http/response"
	"github.com/schoolpay-next/internal/models"
	"github.com/schoolpay-next/internal/repository"
	"github.com/schoolpay-next/internal/service"

	"github.com/gin-gonic/gin"
)

// RequestRefundRequest 申请退款请求
type RequestRefundRequest struct {
	Amount models.Money `json:"amount"`
	Reason string       `json:"reason"`
}

// RequestRefund 学生对已确认的支付申请退款
func (h *Handler) RequestRefund(c *gin.Context) {
	studentID, ok := getStudentID(c)
	if !ok {
		return
	}
	paymentID, ok := handlershared.ParseUintParam(c, "id")
	if !ok {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	var req RequestRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	refund, err := h.RefundService.RequestRefund(service.RequestRefundInput{
		StudentID: studentID,
		PaymentID: paymentID,
		Amount:    req.Amount,
		Reason:    strings.TrimSpace(req.Reason),
		Meta:      handlershared.BuildRequestMeta(c),
	})
	if err != nil {
		respondRefundRequestError(c, err)
		return
	}
	response.SuccessWithMsg(c, refund.Status, refund)
}

// ListMyRefunds 学生本人的退款记录
func (h *Handler) ListMyRefunds(c *gin.Context) {
	studentID, ok := getStudentID(c)
	if !ok {
		return
	}
	page, pageSize := handlershared.ParsePagination(c)
	paymentID, ok := handlershared.ParseUintQuery(c, "payment_id")
	if !ok {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	refunds, total, err := h.RefundService.ListStudentRefunds(studentID, repository.RefundListFilter{
		Page:      page,
		PageSize:  pageSize,
		PaymentID: paymentID,
		Status:    strings.TrimSpace(c.Query("status")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.refund_fetch_failed", err)
		return
	}
	response.SuccessWithPage(c, refunds, response.NewPagination(page, pageSize, total))
}

// GetMyRefund 学生本人的退款详情
func (h *Handler) GetMyRefund(c *gin.Context) {
	studentID, ok := getStudentID(c)
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
		respondWithMappedError(c, err, refundLookupErrorRules, response.CodeInternal, "error.refund_fetch_failed")
		return
	}
	if refund.StudentID != studentID {
		respondError(c, response.CodeNotFound, "error.refund_not_found", nil)
		return
	}
	response.Success(c, refund)
}
