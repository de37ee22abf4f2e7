package public

import (
	"strings"

	"github.com/schoolpay-next/internal/constants"
	handlershared "github.com/schoolpay-next/internal/http/handlers/shared"
	"github.com/schoolpay-next/internal/http/response"
	"github.com/schoolpay-next/internal/models"
	"github.com/schoolpay-next/internal/repository"
	"github.com/schoolpay-next/internal/service"

	"github.com/gin-gonic/gin"
)

// InitializePaymentRequest 发起缴费请求
type InitializePaymentRequest struct {
	FeeID  uint         `json:"fee_id" binding:"required"`
	Amount models.Money `json:"amount"`
}

// PaymentCallbackQuery 网关回跳参数
type PaymentCallbackQuery struct {
	Reference string `form:"reference"`
	Trxref    string `form:"trxref"`
}

// InitializePayment 发起缴费并返回网关跳转地址
func (h *Handler) InitializePayment(c *gin.Context) {
	studentID, ok := getStudentID(c)
	if !ok {
		return
	}
	var req InitializePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}

	result, err := h.PaymentService.InitializePayment(service.InitializePaymentInput{
		StudentID: studentID,
		FeeID:     req.FeeID,
		Amount:    req.Amount,
		Meta:      handlershared.BuildRequestMeta(c),
		Context:   c.Request.Context(),
	})
	if err != nil {
		respondPaymentInitializeError(c, err)
		return
	}
	response.Success(c, result)
}

// ListMyPayments 学生本人的支付记录
func (h *Handler) ListMyPayments(c *gin.Context) {
	studentID, ok := getStudentID(c)
	if !ok {
		return
	}
	page, pageSize := handlershared.ParsePagination(c)
	feeID, ok := handlershared.ParseUintQuery(c, "fee_id")
	if !ok {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	payments, total, err := h.PaymentService.ListPayments(repository.PaymentListFilter{
		Page:      page,
		PageSize:  pageSize,
		StudentID: studentID,
		FeeID:     feeID,
		Status:    strings.TrimSpace(c.Query("status")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.payment_fetch_failed", err)
		return
	}
	response.SuccessWithPage(c, payments, response.NewPagination(page, pageSize, total))
}

// GetMyPayment 学生本人的支付详情
func (h *Handler) GetMyPayment(c *gin.Context) {
	payment, ok := h.loadStudentPayment(c)
	if !ok {
		return
	}
	response.Success(c, payment)
}

// VerifyMyPayment 学生主动向网关核实支付结果
func (h *Handler) VerifyMyPayment(c *gin.Context) {
	payment, ok := h.loadStudentPayment(c)
	if !ok {
		return
	}
	h.verifyByReference(c, payment.Reference)
}

// ListMyPaymentReceipts 支付对应的收据与发票
func (h *Handler) ListMyPaymentReceipts(c *gin.Context) {
	payment, ok := h.loadStudentPayment(c)
	if !ok {
		return
	}
	receipts, err := h.ReceiptService.ListByPayment(payment.ID)
	if err != nil {
		respondError(c, response.CodeInternal, "error.receipt_fetch_failed", err)
		return
	}
	response.Success(c, receipts)
}

// PaystackCallback 用户支付完成后由网关回跳，按引用号核实
func (h *Handler) PaystackCallback(c *gin.Context) {
	var query PaymentCallbackQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	reference := strings.TrimSpace(query.Reference)
	if reference == "" {
		reference = strings.TrimSpace(query.Trxref)
	}
	if reference == "" {
		respondError(c, response.CodeBadRequest, "error.payment_reference_required", nil)
		return
	}
	requestLog(c).Infow("paystack_callback_received", "reference", reference, "client_ip", c.ClientIP())
	h.verifyByReference(c, reference)
}

func (h *Handler) verifyByReference(c *gin.Context, reference string) {
	payment, err := h.PaymentService.VerifyPayment(c.Request.Context(), reference, handlershared.BuildRequestMeta(c))
	if err != nil {
		respondPaymentVerifyError(c, err)
		return
	}
	class := "pending"
	switch payment.Status {
	case constants.PaymentStatusConfirmed:
		class = "confirmed"
	case constants.PaymentStatusRejected:
		class = "rejected"
	}
	response.SuccessWithMsg(c, class, payment)
}

func (h *Handler) loadStudentPayment(c *gin.Context) (*models.Payment, bool) {
	studentID, ok := getStudentID(c)
	if !ok {
		return nil, false
	}
	id, ok := handlershared.ParseUintParam(c, "id")
	if !ok {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return nil, false
	}
	payment, err := h.PaymentService.GetStudentPayment(studentID, id)
	if err != nil {
		respondWithMappedError(c, err, paymentVerifyErrorRules, response.CodeInternal, "error.payment_fetch_failed")
		return nil, false
	}
	return payment, true
}
