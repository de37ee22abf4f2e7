package admin

import (
	"strings"

	handlershared "github.com/schoolpay-next/internal/http/handlers/shared"
	"github.com/schoolpay-next/internal/http/response"
	"github.com/schoolpay-next/internal/repository"

	"github.com/gin-gonic/gin"
)

// ListTransactionLogs 交易审计日志
func (h *Handler) ListTransactionLogs(c *gin.Context) {
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
	refundID, okRefund := handlershared.ParseUintQuery(c, "refund_id")
	createdFrom, okFrom := handlershared.ParseTimeQuery(c, "created_from")
	createdTo, okTo := handlershared.ParseTimeQuery(c, "created_to")
	if !okStudent || !okPayment || !okRefund || !okFrom || !okTo {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	page, pageSize := handlershared.ParsePagination(c)
	logs, total, err := h.TransactionLogService.List(repository.TransactionLogListFilter{
		Page:        page,
		PageSize:    pageSize,
		SchoolID:    schoolID,
		StudentID:   studentID,
		PaymentID:   paymentID,
		RefundID:    refundID,
		Action:      strings.TrimSpace(c.Query("action")),
		Reference:   strings.TrimSpace(c.Query("reference")),
		CreatedFrom: createdFrom,
		CreatedTo:   createdTo,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.transaction_log_fetch_failed", err)
		return
	}
	response.SuccessWithPage(c, logs, response.NewPagination(page, pageSize, total))
}
