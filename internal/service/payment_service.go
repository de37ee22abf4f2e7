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

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PaymentGateway 支付网关
type PaymentGateway interface {
	InitializeCharge(ctx context.Context, cfg *paystack.Config, input paystack.InitializeInput) (*paystack.InitializeResult, error)
	VerifyCharge(ctx context.Context, cfg *paystack.Config, reference string) (*paystack.VerifyResult, error)
	InitiateRefund(ctx context.Context, cfg *paystack.Config, input paystack.RefundInput) (*paystack.RefundResult, error)
}

// PaymentService 支付服务
type PaymentService struct {
	paymentRepo    repository.PaymentRepository
	feeRepo        repository.FeeRepository
	assignmentRepo repository.FeeAssignmentRepository
	studentRepo    repository.StudentRepository
	schoolRepo     repository.SchoolRepository
	deviceRepo     repository.DeviceRecordRepository
	gatewayConfigs *GatewayConfigService
	gateway        PaymentGateway
	recorder       TransactionRecorder
	fraudSvc       *FraudService
	receiptSvc     *ReceiptService
}

// NewPaymentService 创建支付服务
func NewPaymentService(
	paymentRepo repository.PaymentRepository,
	feeRepo repository.FeeRepository,
	assignmentRepo repository.FeeAssignmentRepository,
	studentRepo repository.StudentRepository,
	schoolRepo repository.SchoolRepository,
	deviceRepo repository.DeviceRecordRepository,
	gatewayConfigs *GatewayConfigService,
	gateway PaymentGateway,
	recorder TransactionRecorder,
	fraudSvc *FraudService,
	receiptSvc *ReceiptService,
) *PaymentService {
	return &PaymentService{
		paymentRepo:    paymentRepo,
		feeRepo:        feeRepo,
		assignmentRepo: assignmentRepo,
		studentRepo:    studentRepo,
		schoolRepo:     schoolRepo,
		deviceRepo:     deviceRepo,
		gatewayConfigs: gatewayConfigs,
		gateway:        gateway,
		recorder:       recorder,
		fraudSvc:       fraudSvc,
		receiptSvc:     receiptSvc,
	}
}

// InitializePaymentInput 发起缴费请求
type InitializePaymentInput struct {
	StudentID uint
	FeeID     uint
	Amount    models.Money
	Meta      RequestMeta
	Context   context.Context
}

// SettlementPreview 确认后缴费义务的预计结果
type SettlementPreview struct {
	AmountDue       models.Money `json:"amount_due"`
	AmountPaid      models.Money `json:"amount_paid"`
	ProjectedPaid   models.Money `json:"projected_paid"`
	Outstanding     models.Money `json:"outstanding"`
	ProjectedStatus string       `json:"projected_status"`
}

// InitializePaymentResult 发起缴费结果
type InitializePaymentResult struct {
	Payment     *models.Payment    `json:"payment"`
	RedirectURL string             `json:"redirect_url"`
	AccessCode  string             `json:"access_code"`
	Settlement  *SettlementPreview `json:"settlement,omitempty"`
	Fraud       FraudScore         `json:"fraud"`
}

func paymentLogger(kv ...interface{}) *zap.SugaredLogger {
	if len(kv) == 0 {
		return logger.S()
	}
	return logger.SW(kv...)
}

// InitializePayment 创建支付并向网关发起收款，网关失败时整体回滚
func (s *PaymentService) InitializePayment(input InitializePaymentInput) (*InitializePaymentResult, error) {
	ctx := input.Context
	if ctx == nil {
		ctx = context.Background()
	}
	if input.StudentID == 0 || input.FeeID == 0 {
		return nil, ErrFeeNotFound
	}
	amount := models.NewMoneyFromDecimal(input.Amount.Decimal)
	if amount.Decimal.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}

	log := paymentLogger(
		"student_id", input.StudentID,
		"fee_id", input.FeeID,
		"amount", amount.String(),
	)

	student, err := s.studentRepo.GetByID(input.StudentID)
	if err != nil {
		return nil, err
	}
	if student == nil {
		return nil, ErrStudentNotFound
	}
	if student.Status == constants.StudentStatusDisabled {
		return nil, ErrStudentDisabled
	}
	fee, err := s.feeRepo.GetByID(input.FeeID)
	if err != nil {
		return nil, err
	}
	if fee == nil || fee.SchoolID != student.SchoolID {
		return nil, ErrFeeNotFound
	}
	school, err := s.schoolRepo.GetByID(student.SchoolID)
	if err != nil {
		return nil, err
	}
	if school == nil {
		return nil, ErrSchoolNotConfigured
	}
	// 金额先于网关凭据校验，事务内持锁后再复核
	if err := s.precheckAmount(student, fee, amount); err != nil {
		log.Infow("payment_initialize_rejected", "error", err)
		s.recordInitFailure(student, fee, "", amount, input.Meta, err)
		return nil, err
	}
	gatewayCfg, err := s.gatewayConfigs.Resolve(ctx, school.ID, constants.PaymentProviderPaystack)
	if err != nil {
		return nil, err
	}
	email := pickFirstNonEmpty(student.Email, school.Email)
	if email == "" {
		return nil, ErrInvalidEmail
	}

	reference := buildPaymentReference(school.ID)
	currency := pickFirstNonEmpty(school.Currency, gatewayCfg.Currency)
	var payment *models.Payment
	var assignment *models.FeeAssignment
	var initResult *paystack.InitializeResult

	err = models.DB.Transaction(func(tx *gorm.DB) error {
		assignmentRepo := s.assignmentRepo.WithTx(tx)
		paymentRepo := s.paymentRepo.WithTx(tx)

		locked, err := s.lockOrCreateAssignment(assignmentRepo, student, fee)
		if err != nil {
			return err
		}
		if err := validatePaymentAmount(fee, locked, amount); err != nil {
			return err
		}

		now := time.Now()
		payment = &models.Payment{
			SchoolID:         school.ID,
			StudentID:        student.ID,
			FeeID:            fee.ID,
			FeeAssignmentID:  locked.ID,
			Amount:           amount,
			Currency:         currency,
			Provider:         constants.PaymentProviderPaystack,
			Reference:        reference,
			ProviderMetadata: models.NewPaystackMetadata(reference),
			Status:           constants.PaymentStatusInitiated,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := paymentRepo.Create(payment); err != nil {
			return err
		}

		result, err := s.gateway.InitializeCharge(ctx, gatewayCfg, paystack.InitializeInput{
			Reference: reference,
			Email:     email,
			Amount:    amount.Decimal,
			Currency:  currency,
			Metadata: map[string]interface{}{
				"payment_id": payment.ID,
				"student_id": student.ID,
				"fee_id":     fee.ID,
				"school_id":  school.ID,
			},
		})
		if err != nil {
			return mapGatewayInitError(err)
		}
		initResult = result
		payment.ProviderMetadata.Paystack.AccessCode = result.AccessCode
		payment.ProviderMetadata.Paystack.AuthorizationURL = result.AuthorizationURL
		if err := paymentRepo.UpdateMetadata(payment.ID, payment.ProviderMetadata); err != nil {
			return err
		}

		entry := newTxLog(constants.TxActionPaymentInitialized, constants.ActorTypeStudent, student.ID, input.Meta)
		fillPaymentTxLog(entry, payment)
		if err := s.recorder.WithTx(tx).Record(entry); err != nil {
			return err
		}
		assignment = locked
		return nil
	})
	if err != nil {
		log.Warnw("payment_initialize_failed", "reference", reference, "error", err)
		s.recordInitFailure(student, fee, reference, amount, input.Meta, err)
		return nil, err
	}

	log = log.With("payment_id", payment.ID, "reference", payment.Reference)
	log.Infow("payment_initialized")

	if s.receiptSvc != nil {
		s.receiptSvc.DispatchReceipt(ctx, payment.ID)
	}
	preview := buildSettlementPreview(assignment, payment.Amount, time.Now())
	log.Debugw("payment_settlement_preview",
		"projected_paid", preview.ProjectedPaid.String(),
		"projected_status", preview.ProjectedStatus,
	)

	fraud := FraudScore{FraudScore: 0, AnomalyScale: constants.AnomalyScaleLow}
	if s.fraudSvc != nil {
		fraud = s.fraudSvc.ScoreFraud(ctx, payment, input.Meta.DeviceSignature)
	}
	s.recordDevice(student.ID, constants.DeviceSourcePaymentInit, input.Meta)

	return &InitializePaymentResult{
		Payment:     payment,
		RedirectURL: initResult.AuthorizationURL,
		AccessCode:  initResult.AccessCode,
		Settlement:  preview,
		Fraud:       fraud,
	}, nil
}

// VerifyPayment 主动向网关查询交易结果并推进状态
func (s *PaymentService) VerifyPayment(ctx context.Context, reference string, meta RequestMeta) (*models.Payment, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, ErrPaymentNotFound
	}
	payment, err := s.paymentRepo.GetByReference(reference)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}
	log := paymentLogger("payment_id", payment.ID, "reference", payment.Reference)
	if payment.Status != constants.PaymentStatusInitiated {
		log.Debugw("payment_verify_terminal", "status", payment.Status)
		return payment, nil
	}

	gatewayCfg, err := s.gatewayConfigs.Resolve(ctx, payment.SchoolID, payment.Provider)
	if err != nil {
		return nil, err
	}
	result, err := s.gateway.VerifyCharge(ctx, gatewayCfg, payment.Reference)
	if err != nil {
		mapped := mapGatewayVerifyError(err)
		entry := newTxLog(constants.TxActionPaymentVerifyFailed, constants.ActorTypeStudent, payment.StudentID, meta)
		fillPaymentTxLog(entry, payment)
		entry.ErrorMessage = err.Error()
		s.recordBestEffort(entry)
		log.Warnw("payment_verify_gateway_failed", "error", err)
		return nil, mapped
	}

	event := ""
	switch {
	case result.Success && !amountMatches(payment, result.Amount):
		log.Warnw("payment_verify_amount_mismatch", "gateway_amount", result.Amount.String())
		event = PaymentEventReject
	case result.Success:
		event = PaymentEventConfirm
	case result.Failed():
		event = PaymentEventReject
	default:
		log.Infow("payment_verify_pending", "gateway_status", result.Status)
		return payment, nil
	}

	updated, changed, err := s.applyGatewayEvent(payment.Reference, event, constants.ActorTypeStudent, payment.StudentID, meta, func(md *models.PaystackMetadata) {
		md.TransactionID = pickFirstNonEmpty(result.TransactionID, md.TransactionID)
		md.GatewayResponse = pickFirstNonEmpty(result.GatewayResponse, md.GatewayResponse)
		md.VerifyPayload = models.JSON(result.Raw)
	})
	if err != nil {
		return nil, err
	}
	if changed && updated.Status == constants.PaymentStatusConfirmed && s.receiptSvc != nil {
		s.receiptSvc.DispatchInvoice(ctx, updated.ID)
	}
	return updated, nil
}

// ListPayments 支付列表
func (s *PaymentService) ListPayments(filter repository.PaymentListFilter) ([]models.Payment, int64, error) {
	return s.paymentRepo.List(filter)
}

// GetPayment 获取支付
func (s *PaymentService) GetPayment(id uint) (*models.Payment, error) {
	payment, err := s.paymentRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}
	return payment, nil
}

// GetStudentPayment 获取学生本人的支付
func (s *PaymentService) GetStudentPayment(studentID, id uint) (*models.Payment, error) {
	payment, err := s.GetPayment(id)
	if err != nil {
		return nil, err
	}
	if payment.StudentID != studentID {
		return nil, ErrPaymentNotFound
	}
	return payment, nil
}

// applyGatewayEvent 在事务内按状态机推进支付，首次确认时结算缴费义务
func (s *PaymentService) applyGatewayEvent(reference, event, actorType string, actorID uint, meta RequestMeta, mutate func(*models.PaystackMetadata)) (*models.Payment, bool, error) {
	var payment *models.Payment
	changed := false
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		paymentRepo := s.paymentRepo.WithTx(tx)
		locked, err := paymentRepo.GetByReferenceForUpdate(reference)
		if err != nil {
			return err
		}
		if locked == nil {
			return ErrPaymentNotFound
		}
		next, transitioned, err := TransitionPayment(locked.Status, event)
		if err != nil {
			return err
		}
		if locked.ProviderMetadata.Paystack == nil {
			locked.ProviderMetadata = models.NewPaystackMetadata(locked.Reference)
		}
		if mutate != nil {
			mutate(locked.ProviderMetadata.Paystack)
		}
		payment = locked
		if !transitioned {
			return paymentRepo.UpdateMetadata(locked.ID, locked.ProviderMetadata)
		}

		now := time.Now()
		rows, err := paymentRepo.TransitionStatus(locked.ID, locked.Status, next, locked.ProviderMetadata, now)
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrPaymentStateConflict
		}
		locked.Status = next
		if next == constants.PaymentStatusConfirmed {
			locked.ConfirmedAt = &now
			if err := s.settle(tx, locked, now); err != nil {
				return err
			}
		} else {
			locked.RejectedAt = &now
		}

		action := constants.TxActionPaymentConfirmed
		if next == constants.PaymentStatusRejected {
			action = constants.TxActionPaymentRejected
		}
		entry := newTxLog(action, actorType, actorID, meta)
		fillPaymentTxLog(entry, locked)
		entry.Metadata["event"] = event
		if err := s.recorder.WithTx(tx).Record(entry); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	log := paymentLogger("payment_id", payment.ID, "reference", payment.Reference, "event", event)
	if changed {
		log.Infow("payment_transitioned", "status", payment.Status)
	} else {
		log.Infow("payment_transition_idempotent", "status", payment.Status)
	}
	return payment, changed, nil
}

// settle 累加已缴金额并重新推导缴费状态，仅在首次确认时调用
func (s *PaymentService) settle(tx *gorm.DB, payment *models.Payment, now time.Time) error {
	assignmentRepo := s.assignmentRepo.WithTx(tx)
	rows, err := assignmentRepo.IncrementPaid(payment.FeeAssignmentID, payment.Amount, now)
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrFeeAssignmentNotFound
	}
	assignment, err := assignmentRepo.GetByIDForUpdate(payment.FeeAssignmentID)
	if err != nil {
		return err
	}
	if assignment == nil {
		return ErrFeeAssignmentNotFound
	}
	status := DeriveFeeAssignmentStatus(assignment.AmountPaid.Decimal, assignment.AmountDue.Decimal, assignment.DueDate, now)
	if status != assignment.Status {
		if err := assignmentRepo.UpdateStatus(assignment.ID, status); err != nil {
			return err
		}
	}
	entry := newTxLog(constants.TxActionPaymentSettled, constants.ActorTypeSystem, 0, RequestMeta{})
	fillPaymentTxLog(entry, payment)
	entry.Metadata["amount_paid"] = assignment.AmountPaid.String()
	entry.Metadata["assignment_status"] = status
	return s.recorder.WithTx(tx).Record(entry)
}

func (s *PaymentService) lockOrCreateAssignment(repo repository.FeeAssignmentRepository, student *models.Student, fee *models.Fee) (*models.FeeAssignment, error) {
	existing, err := repo.GetByStudentAndFee(student.ID, fee.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		locked, err := repo.GetByIDForUpdate(existing.ID)
		if err != nil {
			return nil, err
		}
		if locked == nil {
			return nil, ErrFeeAssignmentNotFound
		}
		return locked, nil
	}
	assignment := &models.FeeAssignment{
		SchoolID:   fee.SchoolID,
		StudentID:  student.ID,
		FeeID:      fee.ID,
		AmountDue:  fee.AmountDue,
		AmountPaid: models.NewMoneyFromDecimal(decimal.Zero),
		DueDate:    fee.DueDate,
		Status:     DeriveFeeAssignmentStatus(decimal.Zero, fee.AmountDue.Decimal, fee.DueDate, time.Now()),
	}
	if err := repo.Create(assignment); err != nil {
		return nil, err
	}
	return assignment, nil
}

func (s *PaymentService) recordInitFailure(student *models.Student, fee *models.Fee, reference string, amount models.Money, meta RequestMeta, cause error) {
	entry := newTxLog(constants.TxActionPaymentInitFailed, constants.ActorTypeStudent, student.ID, meta)
	entry.SchoolID = student.SchoolID
	entry.StudentID = uintPtr(student.ID)
	entry.ErrorMessage = cause.Error()
	entry.Metadata["reference"] = reference
	entry.Metadata["fee_id"] = fee.ID
	entry.Metadata["amount"] = amount.String()
	s.recordBestEffort(entry)
}

func (s *PaymentService) recordDevice(studentID uint, source string, meta RequestMeta) {
	if s.deviceRepo == nil || strings.TrimSpace(meta.DeviceSignature) == "" {
		return
	}
	record := &models.DeviceRecord{
		StudentID: studentID,
		Signature: meta.DeviceSignature,
		Source:    source,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
	}
	if err := s.deviceRepo.Create(record); err != nil {
		logger.Warnw("device_record_save_failed", "student_id", studentID, "source", source, "error", err)
	}
}

func (s *PaymentService) recordBestEffort(entry *models.TransactionLog) {
	if err := s.recorder.Record(entry); err != nil {
		logger.Warnw("payment_tx_log_failed", "action", entry.Action, "error", err)
	}
}

// validatePaymentAmount 未开启分期时必须足额，开启分期时不得超过剩余应缴
func (s *PaymentService) precheckAmount(student *models.Student, fee *models.Fee, amount models.Money) error {
	current, err := s.assignmentRepo.GetByStudentAndFee(student.ID, fee.ID)
	if err != nil {
		return err
	}
	if current == nil {
		current = &models.FeeAssignment{AmountDue: fee.AmountDue, AmountPaid: models.NewMoneyFromDecimal(decimal.Zero)}
	}
	return validatePaymentAmount(fee, current, amount)
}

func validatePaymentAmount(fee *models.Fee, assignment *models.FeeAssignment, amount models.Money) error {
	outstanding := assignment.AmountDue.Decimal.Sub(assignment.AmountPaid.Decimal)
	if outstanding.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}
	if !fee.AllowPartialPayment {
		if !amount.Decimal.Equal(assignment.AmountDue.Decimal) {
			return ErrPartialPaymentNotAllowed
		}
		return nil
	}
	if amount.Decimal.GreaterThan(outstanding) {
		return ErrInvalidAmount
	}
	return nil
}

func buildSettlementPreview(assignment *models.FeeAssignment, amount models.Money, now time.Time) *SettlementPreview {
	if assignment == nil {
		return nil
	}
	projected := assignment.AmountPaid.Add(amount)
	outstanding := assignment.AmountDue.Sub(projected)
	if outstanding.Decimal.LessThan(decimal.Zero) {
		outstanding = models.NewMoneyFromDecimal(decimal.Zero)
	}
	return &SettlementPreview{
		AmountDue:       assignment.AmountDue,
		AmountPaid:      assignment.AmountPaid,
		ProjectedPaid:   projected,
		Outstanding:     outstanding,
		ProjectedStatus: DeriveFeeAssignmentStatus(projected.Decimal, assignment.AmountDue.Decimal, assignment.DueDate, now),
	}
}

func mapGatewayInitError(err error) error {
	switch {
	case errors.Is(err, paystack.ErrRequestFailed):
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	case errors.Is(err, paystack.ErrConfigInvalid):
		return fmt.Errorf("%w: %v", ErrSchoolNotConfigured, err)
	default:
		return fmt.Errorf("%w: %v", ErrGatewayInitializationFailed, err)
	}
}

func mapGatewayVerifyError(err error) error {
	if errors.Is(err, paystack.ErrRequestFailed) {
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	return fmt.Errorf("%w: %v", ErrGatewayVerificationFailed, err)
}

func amountMatches(payment *models.Payment, gatewayAmount decimal.Decimal) bool {
	if gatewayAmount.IsZero() {
		return true
	}
	return payment.Amount.Decimal.Equal(gatewayAmount.Round(2))
}

func fillPaymentTxLog(entry *models.TransactionLog, payment *models.Payment) {
	entry.SchoolID = payment.SchoolID
	entry.StudentID = uintPtr(payment.StudentID)
	entry.PaymentID = uintPtr(payment.ID)
	entry.Metadata["reference"] = payment.Reference
	entry.Metadata["amount"] = payment.Amount.String()
	entry.Metadata["status"] = payment.Status
}

// buildPaymentReference 形如 SCH-<schoolID>-<12 位随机串>
func buildPaymentReference(schoolID uint) string {
	short := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("SCH-%d-%s", schoolID, short)
}

func pickFirstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
