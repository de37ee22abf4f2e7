package public

import (
	"strings"

	handlershared "github.com/schoolpay-next/internal/http/handlers/shared"
	"github.com/schoolpay-next/internal/http/response"
	"github.com/schoolpay-next/internal/repository"

	"github.com/gin-gonic/gin"
)

// ListMyFees 学生的缴费义务，含收费项目与已缴金额
func (h *Handler) ListMyFees(c *gin.Context) {
	studentID, ok := getStudentID(c)
	if !ok {
		return
	}
	page, pageSize := handlershared.ParsePagination(c)
	assignments, total, err := h.FeeService.ListStudentAssignments(studentID, repository.FeeAssignmentListFilter{
		Page:     page,
		PageSize: pageSize,
		Status:   strings.TrimSpace(c.Query("status")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.fee_fetch_failed", err)
		return
	}
	response.SuccessWithPage(c, assignments, response.NewPagination(page, pageSize, total))
}
