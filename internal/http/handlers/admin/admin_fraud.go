package admin

import (
	"strconv"
	"strings"

	handlershared "github.com/schoolpay-next/internal/http/handlers/shared"
	"github.com/schoolpay-next/internal/http/response"
	"github.com/schoolpay-next/internal/repository"

	"github.com/gin-gonic/gin"
)

// ListFraudEvaluations 风控评分记录，可按最低分过滤
func (h *Handler) ListFraudEvaluations(c *gin.Context) {
	scope, ok := getAdminScope(c)
	if !ok {
		return
	}
	schoolID, ok := scope.filterSchoolID(c)
	if !ok {
		return
	}
	var minScore float64
	if raw := strings.TrimSpace(c.Query("min_score")); raw != "" {
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			respondError(c, response.CodeBadRequest, "error.bad_request", err)
			return
		}
		minScore = value
	}
	page, pageSize := handlershared.ParsePagination(c)
	logs, total, err := h.FraudService.ListEvaluations(repository.FraudEvaluationListFilter{
		Page:     page,
		PageSize: pageSize,
		SchoolID: schoolID,
		MinScore: minScore,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.fraud_fetch_failed", err)
		return
	}
	response.SuccessWithPage(c, logs, response.NewPagination(page, pageSize, total))
}

// ListFraudQueue 风控重试队列
func (h *Handler) ListFraudQueue(c *gin.Context) {
	scope, ok := getAdminScope(c)
	if !ok {
		return
	}
	schoolID, ok := scope.filterSchoolID(c)
	if !ok {
		return
	}
	paymentID, ok := handlershared.ParseUintQuery(c, "payment_id")
	if !ok {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	page, pageSize := handlershared.ParsePagination(c)
	entries, total, err := h.FraudService.ListQueue(repository.FraudCheckQueueListFilter{
		Page:      page,
		PageSize:  pageSize,
		SchoolID:  schoolID,
		PaymentID: paymentID,
		Status:    strings.TrimSpace(c.Query("status")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.fraud_fetch_failed", err)
		return
	}
	response.SuccessWithPage(c, entries, response.NewPagination(page, pageSize, total))
}

// RetryFraudQueueEntry 将已失败的条目重新排队
func (h *Handler) RetryFraudQueueEntry(c *gin.Context) {
	scope, ok := getAdminScope(c)
	if !ok {
		return
	}
	id, ok := handlershared.ParseUintParam(c, "id")
	if !ok {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	entry, err := h.FraudCheckQueueRepo.GetByID(id)
	if err != nil {
		respondError(c, response.CodeInternal, "error.fraud_retry_failed", err)
		return
	}
	if entry == nil || !scope.canAccess(entry.SchoolID) {
		respondError(c, response.CodeNotFound, "error.fraud_queue_entry_not_found", nil)
		return
	}
	if err := h.FraudService.RequeueFailed(scope.AdminID, id, handlershared.BuildRequestMeta(c)); err != nil {
		respondWithMappedError(c, err, fraudQueueErrorRules, response.CodeInternal, "error.fraud_retry_failed")
		return
	}
	response.Success(c, gin.H{"requeued": true})
}

