package public

import (
	"errors"
	"io"
	"net/http"
	"strings"

	handlershared "github.com/schoolpay-next/internal/http/handlers/shared"
	"github.com/schoolpay-next/internal/http/response"
	"github.com/schoolpay-next/internal/i18n"
	"github.com/schoolpay-next/internal/payment/paystack"
	"github.com/schoolpay-next/internal/service"

	"github.com/gin-gonic/gin"
)

const webhookBodyLimit = 1 << 20

// PaystackWebhook 网关事件入口，refund.* 交给退款流程，其余交给支付流程
func (h *Handler) PaystackWebhook(c *gin.Context) {
	body, ok := readWebhookBody(c)
	if !ok {
		return
	}
	input := h.buildWebhookInput(c, body)
	if event, err := paystack.ParseWebhook(body); err == nil && isRefundEvent(event.Event) {
		ack, err := h.RefundService.HandleRefundWebhook(input)
		respondWebhookAck(c, ack, err)
		return
	}
	ack, err := h.PaymentService.HandleWebhook(input)
	respondWebhookAck(c, ack, err)
}

// PaystackRefundWebhook 退款事件专用入口
func (h *Handler) PaystackRefundWebhook(c *gin.Context) {
	body, ok := readWebhookBody(c)
	if !ok {
		return
	}
	ack, err := h.RefundService.HandleRefundWebhook(h.buildWebhookInput(c, body))
	respondWebhookAck(c, ack, err)
}

func (h *Handler) buildWebhookInput(c *gin.Context, body []byte) service.WebhookInput {
	return service.WebhookInput{
		Headers: handlershared.HeaderMap(c),
		Body:    body,
		Meta:    handlershared.BuildRequestMeta(c),
		Context: c.Request.Context(),
	}
}

func readWebhookBody(c *gin.Context) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, webhookBodyLimit))
	if err != nil {
		requestLog(c).Warnw("paystack_webhook_body_read_failed", "error", err)
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return nil, false
	}
	requestLog(c).Infow("paystack_webhook_received",
		"client_ip", c.ClientIP(),
		"body_size", len(body),
		"has_signature", strings.TrimSpace(c.GetHeader(paystack.SignatureHeader)) != "",
	)
	return body, true
}

func isRefundEvent(event string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(event)), "refund.")
}

// respondWebhookAck 验签失败返回 HTTP 401，载荷错误返回 HTTP 400，其余一律 200 应答
func respondWebhookAck(c *gin.Context, ack *service.WebhookAck, err error) {
	locale := i18n.ResolveLocale(c)
	switch {
	case err == nil:
		response.Ack(c, http.StatusOK, ack.Class, ack)
	case errors.Is(err, service.ErrWebhookSignatureInvalid):
		response.ErrorWithStatus(c, http.StatusUnauthorized, response.CodeUnauthorized, i18n.T(locale, "error.webhook_signature_invalid"))
	case errors.Is(err, service.ErrWebhookPayloadInvalid):
		response.ErrorWithStatus(c, http.StatusBadRequest, response.CodeBadRequest, i18n.T(locale, "error.webhook_payload_invalid"))
	default:
		requestLog(c).Errorw("paystack_webhook_handle_failed", "error", err)
		response.ErrorWithStatus(c, http.StatusInternalServerError, response.CodeInternal, i18n.T(locale, "error.webhook_handle_failed"))
	}
}
