package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/schoolpay-next/internal/constants"
	"github.com/schoolpay-next/internal/logger"
	"github.com/schoolpay-next/internal/models"
	"github.com/schoolpay-next/internal/payment/paystack"
	"github.com/schoolpay-next/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RefundService 退款服务
type RefundService struct {
	refundRepo      repository.RefundRepository
	paymentRepo     repository.PaymentRepository
	gatewayConfigs  *GatewayConfigService
	gateway         PaymentGateway
	recorder        TransactionRecorder
	fraudSvc        *FraudService
	notificationSvc *NotificationService
}

// NewRefundService 创建退款服务
func NewRefundService(
	refundRepo repository.RefundRepository,
	paymentRepo repository.PaymentRepository,
	gatewayConfigs *GatewayConfigService,
	gateway PaymentGateway,
	recorder TransactionRecorder,
	fraudSvc *FraudService,
	notificationSvc *NotificationService,
) *RefundService {
	return &RefundService{
		refundRepo:      refundRepo,
		paymentRepo:     paymentRepo,
		gatewayConfigs:  gatewayConfigs,
		gateway:         gateway,
		recorder:        recorder,
		fraudSvc:        fraudSvc,
		notificationSvc: notificationSvc,
	}
}

// RequestRefundInput 学生退款申请
type RequestRefundInput struct {
	StudentID uint
	PaymentID uint
	Amount    models.Money
	Reason    string
	Meta      RequestMeta
}

// ReviewRefundInput 管理员审核
type ReviewRefundInput struct {
	AdminID uint
	// ScopeSchoolID 非 0 时只能审核该学校的退款
	ScopeSchoolID uint
	RefundID      uint
	Decision      string
	Note          string
	Meta          RequestMeta
	Context       context.Context
}

func refundLogger(kv ...interface{}) *zap.SugaredLogger {
	if len(kv) == 0 {
		return logger.S()
	}
	return logger.SW(kv...)
}

// RequestRefund 创建退款申请；上限只计入已批准与已完成的退款
func (s *RefundService) RequestRefund(input RequestRefundInput) (*models.Refund, error) {
	payment, err := s.paymentRepo.GetByID(input.PaymentID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}
	if payment.StudentID != input.StudentID {
		return nil, ErrForbidden
	}
	if payment.Status != constants.PaymentStatusConfirmed {
		return nil, ErrPaymentNotRefundable
	}
	amount := models.NewMoneyFromDecimal(input.Amount.Decimal)
	if amount.Decimal.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidRefundAmount
	}
	settled, err := s.sumSettledRefunds(s.refundRepo, payment.ID, 0)
	if err != nil {
		return nil, err
	}
	if amount.Decimal.GreaterThan(payment.Amount.Decimal.Sub(settled)) {
		return nil, ErrInvalidRefundAmount
	}

	fraudScore := 0.0
	if s.fraudSvc != nil {
		fraudScore = s.fraudSvc.LatestScore(payment.ID)
	}
	now := time.Now()
	refund := &models.Refund{
		PaymentID:  payment.ID,
		StudentID:  payment.StudentID,
		SchoolID:   payment.SchoolID,
		Amount:     amount,
		Reason:     strings.TrimSpace(input.Reason),
		FraudScore: fraudScore,
		Status:     constants.RefundStatusRequested,
		AuditTrail: models.RefundAuditTrail{{
			Action:    constants.RefundAuditRequested,
			Status:    constants.RefundStatusRequested,
			ActorType: constants.ActorTypeStudent,
			ActorID:   input.StudentID,
			Timestamp: now,
			IP:        input.Meta.IP,
			Device:    auditDevice(input.Meta),
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = models.DB.Transaction(func(tx *gorm.DB) error {
		if err := s.refundRepo.WithTx(tx).Create(refund); err != nil {
			return err
		}
		entry := newTxLog(constants.TxActionRefundRequested, constants.ActorTypeStudent, input.StudentID, input.Meta)
		fillRefundTxLog(entry, refund, payment)
		entry.Metadata["fraud_score"] = fraudScore
		return s.recorder.WithTx(tx).Record(entry)
	})
	if err != nil {
		return nil, err
	}
	refundLogger("refund_id", refund.ID, "payment_id", payment.ID).Infow("refund_requested", "amount", amount.String())
	return refund, nil
}

// ReviewRefund 审核退款；批准后调用网关退款，网关拒绝时置为失败
func (s *RefundService) ReviewRefund(input ReviewRefundInput) (*models.Refund, error) {
	ctx := input.Context
	if ctx == nil {
		ctx = context.Background()
	}
	decision := strings.ToLower(strings.TrimSpace(input.Decision))
	if decision != constants.RefundDecisionApproved && decision != constants.RefundDecisionRejected {
		return nil, ErrInvalidDecision
	}
	refund, err := s.refundRepo.GetByID(input.RefundID)
	if err != nil {
		return nil, err
	}
	if refund == nil {
		return nil, ErrRefundNotFound
	}
	if input.ScopeSchoolID != 0 && input.ScopeSchoolID != refund.SchoolID {
		return nil, ErrForbidden
	}
	if decision == constants.RefundDecisionRejected {
		return s.rejectRefund(ctx, input, refund.ID)
	}
	return s.approveRefund(ctx, input, refund)
}

func (s *RefundService) rejectRefund(ctx context.Context, input ReviewRefundInput, refundID uint) (*models.Refund, error) {
	var refund *models.Refund
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		locked, err := s.refundRepo.WithTx(tx).GetByIDForUpdate(refundID)
		if err != nil {
			return err
		}
		if locked == nil {
			return ErrRefundNotFound
		}
		payment, err := s.paymentRepo.WithTx(tx).GetByID(locked.PaymentID)
		if err != nil {
			return err
		}
		refund = locked
		_, err = s.saveRefundTransition(tx, locked, payment, RefundEventReject, constants.RefundAuditRejected, constants.ActorTypeAdmin, input.AdminID, input.Meta, models.JSON{"note": strings.TrimSpace(input.Note)}, "", "")
		return err
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, refund)
	return refund, nil
}

func (s *RefundService) approveRefund(ctx context.Context, input ReviewRefundInput, refund *models.Refund) (*models.Refund, error) {
	log := refundLogger("refund_id", refund.ID, "payment_id", refund.PaymentID, "admin_id", input.AdminID)
	payment, err := s.paymentRepo.GetByID(refund.PaymentID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}
	if payment.Provider != constants.PaymentProviderPaystack {
		return nil, ErrUnsupportedProvider
	}
	providerRef := payment.ProviderMetadata.Reference()
	if providerRef == "" {
		return nil, ErrProviderReferenceMissing
	}
	gatewayCfg, err := s.gatewayConfigs.Resolve(ctx, payment.SchoolID, payment.Provider)
	if err != nil {
		if errors.Is(err, ErrSchoolNotConfigured) {
			return nil, ErrProviderNotConfigured
		}
		return nil, err
	}

	// 持有支付行锁复核上限，保证并发批准的总额不超过支付金额
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		lockedPayment, err := s.paymentRepo.WithTx(tx).GetByIDForUpdate(payment.ID)
		if err != nil {
			return err
		}
		if lockedPayment == nil {
			return ErrPaymentNotFound
		}
		locked, err := s.refundRepo.WithTx(tx).GetByIDForUpdate(refund.ID)
		if err != nil {
			return err
		}
		if locked == nil {
			return ErrRefundNotFound
		}
		if locked.Status != constants.RefundStatusRequested {
			return ErrRefundStateConflict
		}
		settled, err := s.sumSettledRefunds(s.refundRepo.WithTx(tx), lockedPayment.ID, locked.ID)
		if err != nil {
			return err
		}
		if settled.Add(locked.Amount.Decimal).GreaterThan(lockedPayment.Amount.Decimal) {
			return ErrRefundExceedsRefundable
		}
		refund = locked
		_, err = s.saveRefundTransition(tx, locked, lockedPayment, RefundEventApprove, constants.RefundAuditApproved, constants.ActorTypeAdmin, input.AdminID, input.Meta, models.JSON{"note": strings.TrimSpace(input.Note)}, "", "")
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Infow("refund_approved", "amount", refund.Amount.String())

	result, gatewayErr := s.gateway.InitiateRefund(ctx, gatewayCfg, paystack.RefundInput{
		TransactionReference: providerRef,
		Amount:               refund.Amount.Decimal,
		Currency:             payment.Currency,
		Reason:               refund.Reason,
	})
	if gatewayErr == nil && (result == nil || !result.Accepted) {
		gatewayErr = paystack.ErrDeclined
	}
	if gatewayErr != nil {
		log.Warnw("refund_gateway_declined", "error", gatewayErr)
		failed, err := s.applyGatewayOutcome(refund.ID, payment, RefundEventGatewayDecline, constants.RefundAuditFailed, models.JSON{"error": gatewayErr.Error()}, "", gatewayErr.Error())
		if err != nil {
			log.Errorw("refund_mark_failed_error", "error", err)
			return nil, fmt.Errorf("%w: %v", ErrRefundUpdateFailed, err)
		}
		s.notify(ctx, failed)
		return nil, fmt.Errorf("%w: %v", ErrGatewayRefundFailed, gatewayErr)
	}

	accepted, err := s.applyGatewayOutcome(refund.ID, payment, RefundEventGatewayAccept, constants.RefundAuditGatewayAccepted, models.JSON{
		"provider_refund_ref": result.RefundReference,
		"gateway_status":      result.Status,
	}, result.RefundReference, "")
	if errors.Is(err, ErrRefundStateConflict) {
		// 网关回调可能先于此处落库
		if settled, ok := s.settledByWebhook(refund.ID); ok {
			log.Infow("refund_gateway_accepted_after_webhook", "status", settled.Status)
			return settled, nil
		}
	}
	if err != nil {
		log.Errorw("refund_mark_accepted_error", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrRefundUpdateFailed, err)
	}
	log.Infow("refund_gateway_accepted", "provider_refund_ref", result.RefundReference)
	s.notify(ctx, accepted)
	return accepted, nil
}

// applyGatewayOutcome 网关调用后在新事务内写入结果
func (s *RefundService) applyGatewayOutcome(refundID uint, payment *models.Payment, event, auditAction string, auditMeta models.JSON, providerRefundRef, errorMessage string) (*models.Refund, error) {
	var refund *models.Refund
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		locked, err := s.refundRepo.WithTx(tx).GetByIDForUpdate(refundID)
		if err != nil {
			return err
		}
		if locked == nil {
			return ErrRefundNotFound
		}
		refund = locked
		_, err = s.saveRefundTransition(tx, locked, payment, event, auditAction, constants.ActorTypeGateway, 0, RequestMeta{}, auditMeta, providerRefundRef, errorMessage)
		return err
	})
	return refund, err
}

// auditDevice 网关等无请求来源的操作不记录设备
func auditDevice(meta RequestMeta) string {
	if strings.TrimSpace(meta.DeviceSignature) == "" && strings.TrimSpace(meta.UserAgent) == "" {
		return ""
	}
	return ResolveDeviceSignature(meta.DeviceSignature, meta.UserAgent)
}

// settledByWebhook 退款已被 webhook 推进到终态时返回当前记录
func (s *RefundService) settledByWebhook(refundID uint) (*models.Refund, bool) {
	stored, err := s.refundRepo.GetByID(refundID)
	if err != nil || stored == nil {
		return nil, false
	}
	switch stored.Status {
	case constants.RefundStatusProcessed, constants.RefundStatusFailed:
		return stored, true
	}
	return nil, false
}

// HandleRefundWebhook 处理 refund.* 事件，验签失败时不做任何状态变更
func (s *RefundService) HandleRefundWebhook(input WebhookInput) (*WebhookAck, error) {
	ctx := input.Context
	if ctx == nil {
		ctx = context.Background()
	}
	unverified, parseErr := paystack.ParseWebhook(input.Body)
	var payment *models.Payment
	if parseErr == nil && unverified.TransactionReference != "" {
		found, err := s.paymentRepo.GetByReference(unverified.TransactionReference)
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
		refundLogger().Warnw("refund_webhook_payment_not_found", "parse_error", parseErr)
		var reference string
		if unverified != nil {
			reference = unverified.TransactionReference
		}
		return unmatchedWebhookAck(unverified, parseErr, reference)
	}
	if err != nil {
		return nil, err
	}

	ack := &WebhookAck{Event: event.Event, Reference: event.TransactionReference}
	log := refundLogger("event", event.Event, "reference", event.TransactionReference, "provider_refund_ref", event.RefundReference)

	var refundEvent, auditAction string
	switch event.Event {
	case constants.GatewayEventRefundProcessed:
		refundEvent, auditAction = RefundEventProcessed, constants.RefundAuditProcessed
	case constants.GatewayEventRefundFailed:
		refundEvent, auditAction = RefundEventFailed, constants.RefundAuditFailed
	default:
		log.Infow("refund_webhook_event_ignored")
		ack.Class = constants.WebhookAckIgnored
		return ack, nil
	}
	if payment == nil {
		log.Warnw("refund_webhook_payment_not_found")
		ack.Class = constants.WebhookAckNotFound
		return ack, nil
	}

	var refund *models.Refund
	changed := false
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		refundRepo := s.refundRepo.WithTx(tx)
		matched, err := matchWebhookRefund(refundRepo, payment.ID, event.RefundReference)
		if err != nil {
			return err
		}
		if matched == nil {
			return nil
		}
		locked, err := refundRepo.GetByIDForUpdate(matched.ID)
		if err != nil {
			return err
		}
		if locked == nil {
			return nil
		}
		refund = locked
		changed, err = s.saveRefundTransition(tx, locked, payment, refundEvent, auditAction, constants.ActorTypeGateway, 0, input.Meta, models.JSON{
			"gateway_status":      event.Status,
			"provider_refund_ref": event.RefundReference,
		}, event.RefundReference, "")
		return err
	})
	if err != nil {
		if errors.Is(err, ErrRefundStateConflict) {
			log.Warnw("refund_webhook_state_conflict")
			ack.Class = constants.WebhookAckIgnored
			ack.Refund = refund
			return ack, nil
		}
		return nil, err
	}
	if refund == nil {
		log.Warnw("refund_webhook_refund_not_found")
		ack.Class = constants.WebhookAckNotFound
		return ack, nil
	}
	if changed {
		s.notify(ctx, refund)
	}
	ack.Class = constants.WebhookAckProcessed
	ack.Changed = changed
	ack.Refund = refund
	return ack, nil
}

// ListRefunds 退款列表（学校或全局范围）
func (s *RefundService) ListRefunds(filter repository.RefundListFilter) ([]models.Refund, int64, error) {
	return s.refundRepo.List(filter)
}

// ListStudentRefunds 学生本人的退款
func (s *RefundService) ListStudentRefunds(studentID uint, filter repository.RefundListFilter) ([]models.Refund, int64, error) {
	if studentID == 0 {
		return nil, 0, ErrForbidden
	}
	filter.StudentID = studentID
	filter.SchoolID = 0
	return s.refundRepo.List(filter)
}

// GetRefund 获取退款
func (s *RefundService) GetRefund(id uint) (*models.Refund, error) {
	refund, err := s.refundRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if refund == nil {
		return nil, ErrRefundNotFound
	}
	return refund, nil
}

// saveRefundTransition 状态机推进并追加审计，条件更新保证并发安全
func (s *RefundService) saveRefundTransition(tx *gorm.DB, refund *models.Refund, payment *models.Payment, event, auditAction, actorType string, actorID uint, meta RequestMeta, auditMeta models.JSON, providerRefundRef, errorMessage string) (bool, error) {
	next, changed, err := TransitionRefund(refund.Status, event)
	if err != nil {
		return false, err
	}
	if !changed {
		return false, nil
	}
	from := refund.Status
	now := time.Now()
	refund.Status = next
	refund.UpdatedAt = now
	if ref := strings.TrimSpace(providerRefundRef); ref != "" && refund.ProviderRefundRef == "" {
		refund.ProviderRefundRef = ref
	}
	if actorType == constants.ActorTypeAdmin {
		reviewer := actorID
		refund.ReviewedBy = &reviewer
		refund.ReviewedAt = &now
	}
	refund.AuditTrail = append(refund.AuditTrail, models.RefundAuditEntry{
		Action:    auditAction,
		Status:    next,
		ActorType: actorType,
		ActorID:   actorID,
		Timestamp: now,
		IP:        meta.IP,
		Device:    auditDevice(meta),
		Metadata:  auditMeta,
	})
	rows, err := s.refundRepo.WithTx(tx).SaveTransition(refund, from)
	if err != nil {
		return false, err
	}
	if rows == 0 {
		return false, ErrRefundStateConflict
	}

	entry := newTxLog(refundTxAction(event, next), actorType, actorID, meta)
	fillRefundTxLog(entry, refund, payment)
	entry.ErrorMessage = errorMessage
	if refund.ProviderRefundRef != "" {
		entry.Metadata["provider_refund_ref"] = refund.ProviderRefundRef
	}
	if err := s.recorder.WithTx(tx).Record(entry); err != nil {
		return false, err
	}
	return true, nil
}

// sumSettledRefunds 已批准与已完成退款合计，excludeID 用于排除正在审核的退款
func (s *RefundService) sumSettledRefunds(repo repository.RefundRepository, paymentID, excludeID uint) (decimal.Decimal, error) {
	refunds, err := repo.ListByPaymentAndStatuses(paymentID, []string{constants.RefundStatusApproved, constants.RefundStatusProcessed})
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, item := range refunds {
		if item.ID == excludeID {
			continue
		}
		total = total.Add(item.Amount.Decimal)
	}
	return total, nil
}

func (s *RefundService) notify(ctx context.Context, refund *models.Refund) {
	if s.notificationSvc == nil || refund == nil || !shouldNotifyRefundStatus(refund.Status) {
		return
	}
	s.notificationSvc.DispatchRefundStatus(ctx, refund)
}

// matchWebhookRefund 优先按网关退款流水号匹配，其次取最早的 approved，再次取最早的 requested
func matchWebhookRefund(repo repository.RefundRepository, paymentID uint, providerRefundRef string) (*models.Refund, error) {
	if ref := strings.TrimSpace(providerRefundRef); ref != "" {
		refund, err := repo.FindByProviderRefundRef(paymentID, ref)
		if err != nil || refund != nil {
			return refund, err
		}
	}
	for _, status := range []string{constants.RefundStatusApproved, constants.RefundStatusRequested} {
		refund, err := repo.FindOldestByPaymentAndStatus(paymentID, status)
		if err != nil || refund != nil {
			return refund, err
		}
	}
	return nil, nil
}

func refundTxAction(event, next string) string {
	switch event {
	case RefundEventApprove:
		return constants.TxActionRefundApproved
	case RefundEventReject:
		return constants.TxActionRefundRejected
	case RefundEventGatewayAccept:
		return constants.TxActionRefundGatewayAccepted
	case RefundEventGatewayDecline:
		return constants.TxActionRefundGatewayDeclined
	}
	if next == constants.RefundStatusProcessed {
		return constants.TxActionRefundProcessed
	}
	return constants.TxActionRefundFailed
}

func fillRefundTxLog(entry *models.TransactionLog, refund *models.Refund, payment *models.Payment) {
	entry.SchoolID = refund.SchoolID
	entry.StudentID = uintPtr(refund.StudentID)
	entry.PaymentID = uintPtr(refund.PaymentID)
	entry.RefundID = uintPtr(refund.ID)
	entry.Metadata["amount"] = refund.Amount.String()
	entry.Metadata["status"] = refund.Status
	if payment != nil {
		entry.Metadata["reference"] = payment.Reference
	}
}
