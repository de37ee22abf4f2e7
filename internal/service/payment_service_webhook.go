package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/schoolpay-next/internal/constants"
	"github.com/schoolpay-next/internal/models"
	"github.com/schoolpay-next/internal/payment/paystack"
)

// WebhookAck Webhook 处理结果
type WebhookAck struct {
	Class     string          `json:"class"`
	Event     string          `json:"event"`
	Reference string          `json:"reference"`
	Changed   bool            `json:"changed"`
	Payment   *models.Payment `json:"payment,omitempty"`
	Refund    *models.Refund  `json:"refund,omitempty"`
}

// WebhookInput Webhook 原始请求
type WebhookInput struct {
	Headers map[string]string
	Body    []byte
	Meta    RequestMeta
	Context context.Context
}

// HandleWebhook 处理 charge.* 事件，验签失败时不做任何状态变更
func (s *PaymentService) HandleWebhook(input WebhookInput) (*WebhookAck, error) {
	ctx := input.Context
	if ctx == nil {
		ctx = context.Background()
	}
	// 先解析出引用号以定位学校密钥，验签通过前不信任任何字段
	unverified, parseErr := paystack.ParseWebhook(input.Body)
	var payment *models.Payment
	if parseErr == nil && unverified.Reference != "" {
		found, err := s.paymentRepo.GetByReference(unverified.Reference)
		if err != nil {
			return nil, err
		}
		payment = found
	}

	var schoolID uint
	if payment != nil {
		schoolID = payment.SchoolID
	}
	event, err := verifyGatewayWebhook(ctx, s.gatewayConfigs, s.recorder, schoolID, input)
	if errors.Is(err, errWebhookSecretUnresolved) {
		paymentLogger().Warnw("payment_webhook_payment_not_found", "parse_error", parseErr)
		var reference string
		if unverified != nil {
			reference = unverified.Reference
		}
		return unmatchedWebhookAck(unverified, parseErr, reference)
	}
	if err != nil {
		return nil, err
	}

	ack := &WebhookAck{Event: event.Event, Reference: event.Reference}
	log := paymentLogger("event", event.Event, "reference", event.Reference)

	var paymentEvent string
	switch event.Event {
	case constants.GatewayEventChargeSuccess:
		paymentEvent = PaymentEventConfirm
	case constants.GatewayEventChargeFailed:
		paymentEvent = PaymentEventReject
	default:
		log.Infow("payment_webhook_event_ignored")
		ack.Class = constants.WebhookAckIgnored
		return ack, nil
	}
	if payment == nil {
		log.Warnw("payment_webhook_payment_not_found")
		ack.Class = constants.WebhookAckNotFound
		return ack, nil
	}
	if paymentEvent == PaymentEventConfirm && !amountMatches(payment, event.Amount) {
		log.Warnw("payment_webhook_amount_mismatch", "gateway_amount", event.Amount.String())
		paymentEvent = PaymentEventReject
	}

	updated, changed, err := s.applyGatewayEvent(payment.Reference, paymentEvent, constants.ActorTypeGateway, 0, input.Meta, func(md *models.PaystackMetadata) {
		md.GatewayResponse = pickFirstNonEmpty(event.GatewayResponse, md.GatewayResponse)
		md.WebhookPayload = models.JSON(event.Raw)
	})
	if err != nil {
		if errors.Is(err, ErrPaymentStateConflict) {
			log.Warnw("payment_webhook_state_conflict", "status", payment.Status)
			ack.Class = constants.WebhookAckIgnored
			ack.Payment = payment
			return ack, nil
		}
		return nil, err
	}
	if changed && updated.Status == constants.PaymentStatusConfirmed && s.receiptSvc != nil {
		s.receiptSvc.DispatchInvoice(ctx, updated.ID)
	}
	ack.Class = constants.WebhookAckProcessed
	ack.Changed = changed
	ack.Payment = updated
	return ack, nil
}

// errWebhookSecretUnresolved 引用号未匹配到学校且未配置全局密钥
var errWebhookSecretUnresolved = errors.New("webhook secret unresolved")

// verifyGatewayWebhook 按学校密钥验签并解析事件，签名失败时写入交易日志
func verifyGatewayWebhook(ctx context.Context, configs *GatewayConfigService, recorder TransactionRecorder, schoolID uint, input WebhookInput) (*paystack.WebhookEvent, error) {
	secret := strings.TrimSpace(configs.ResolveWebhookSecret(ctx, schoolID, constants.PaymentProviderPaystack))
	if secret == "" && schoolID == 0 {
		return nil, errWebhookSecretUnresolved
	}
	var err error
	if secret == "" {
		err = fmt.Errorf("%w: no webhook secret configured", ErrWebhookSignatureInvalid)
	} else {
		event, verifyErr := paystack.VerifyAndParseWebhook(secret, input.Headers, input.Body)
		switch {
		case verifyErr == nil:
			return event, nil
		case errors.Is(verifyErr, paystack.ErrSignatureInvalid):
			err = fmt.Errorf("%w: %v", ErrWebhookSignatureInvalid, verifyErr)
		default:
			return nil, fmt.Errorf("%w: %v", ErrWebhookPayloadInvalid, verifyErr)
		}
	}
	entry := newTxLog(constants.TxActionWebhookRejected, constants.ActorTypeGateway, 0, input.Meta)
	entry.SchoolID = schoolID
	entry.ErrorMessage = err.Error()
	if recordErr := recorder.Record(entry); recordErr != nil {
		paymentLogger("school_id", schoolID).Warnw("webhook_tx_log_failed", "error", recordErr)
	}
	paymentLogger("school_id", schoolID).Warnw("webhook_signature_rejected", "error", err)
	return nil, err
}

// unmatchedWebhookAck 无法定位学校的事件只应答 not_found，不做任何变更
func unmatchedWebhookAck(unverified *paystack.WebhookEvent, parseErr error, reference string) (*WebhookAck, error) {
	if parseErr != nil || unverified == nil {
		return nil, fmt.Errorf("%w: %v", ErrWebhookPayloadInvalid, parseErr)
	}
	return &WebhookAck{Class: constants.WebhookAckNotFound, Event: unverified.Event, Reference: reference}, nil
}
