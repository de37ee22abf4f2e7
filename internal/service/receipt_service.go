package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/schoolpay-next/internal/constants"
	"github.com/schoolpay-next/internal/i18n"
	"github.com/schoolpay-next/internal/logger"
	"github.com/schoolpay-next/internal/models"
	"github.com/schoolpay-next/internal/queue"
	"github.com/schoolpay-next/internal/repository"

	"github.com/google/uuid"
)

// ReceiptService 收据与发票服务
type ReceiptService struct {
	receiptRepo repository.ReceiptRepository
	paymentRepo repository.PaymentRepository
	studentRepo repository.StudentRepository
	schoolRepo  repository.SchoolRepository
	feeRepo     repository.FeeRepository
	emailSvc    *EmailService
	queueClient *queue.Client
}

// NewReceiptService 创建凭证服务
func NewReceiptService(
	receiptRepo repository.ReceiptRepository,
	paymentRepo repository.PaymentRepository,
	studentRepo repository.StudentRepository,
	schoolRepo repository.SchoolRepository,
	feeRepo repository.FeeRepository,
	emailSvc *EmailService,
	queueClient *queue.Client,
) *ReceiptService {
	return &ReceiptService{
		receiptRepo: receiptRepo,
		paymentRepo: paymentRepo,
		studentRepo: studentRepo,
		schoolRepo:  schoolRepo,
		feeRepo:     feeRepo,
		emailSvc:    emailSvc,
		queueClient: queueClient,
	}
}

// DispatchReceipt 发起支付后开具收据，队列不可用时同步执行
func (s *ReceiptService) DispatchReceipt(ctx context.Context, paymentID uint) {
	s.dispatch(ctx, paymentID, constants.ReceiptKindReceipt)
}

// DispatchInvoice 支付确认后开具发票
func (s *ReceiptService) DispatchInvoice(ctx context.Context, paymentID uint) {
	s.dispatch(ctx, paymentID, constants.ReceiptKindInvoice)
}

func (s *ReceiptService) dispatch(ctx context.Context, paymentID uint, kind string) {
	if s == nil || paymentID == 0 {
		return
	}
	if s.queueClient != nil && s.queueClient.Enabled() {
		payload := queue.PaymentDocumentPayload{PaymentID: paymentID}
		var err error
		if kind == constants.ReceiptKindInvoice {
			err = s.queueClient.EnqueuePaymentInvoice(payload)
		} else {
			err = s.queueClient.EnqueuePaymentReceipt(payload)
		}
		if err == nil {
			return
		}
		logger.Warnw("receipt_enqueue_failed", "payment_id", paymentID, "kind", kind, "error", err)
	}
	if _, err := s.Issue(ctx, paymentID, kind); err != nil {
		logger.Warnw("receipt_issue_failed", "payment_id", paymentID, "kind", kind, "error", err)
	}
}

// Issue 开具凭证并发送邮件，同一支付同一类型只开具一次
func (s *ReceiptService) Issue(ctx context.Context, paymentID uint, kind string) (*models.Receipt, error) {
	kind = strings.ToLower(strings.TrimSpace(kind))
	if kind != constants.ReceiptKindReceipt && kind != constants.ReceiptKindInvoice {
		return nil, ErrInvalidInput
	}
	payment, err := s.paymentRepo.GetByID(paymentID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}
	if kind == constants.ReceiptKindInvoice && payment.Status != constants.PaymentStatusConfirmed {
		return nil, ErrPaymentStateConflict
	}

	receipt, err := s.receiptRepo.GetByPaymentAndKind(payment.ID, kind)
	if err != nil {
		return nil, err
	}
	if receipt == nil {
		receipt = &models.Receipt{
			PaymentID: payment.ID,
			Kind:      kind,
			SchoolID:  payment.SchoolID,
			StudentID: payment.StudentID,
			Number:    buildReceiptNumber(kind, time.Now()),
			Amount:    payment.Amount,
			Currency:  payment.Currency,
			Status:    payment.Status,
			IssuedAt:  time.Now(),
		}
		if err := s.receiptRepo.Create(receipt); err != nil {
			// 并发开具时以已存在的记录为准
			existing, getErr := s.receiptRepo.GetByPaymentAndKind(payment.ID, kind)
			if getErr != nil || existing == nil {
				return nil, err
			}
			receipt = existing
		}
	}

	if receipt.EmailedAt == nil {
		s.emailReceipt(ctx, payment, receipt)
	}
	return receipt, nil
}

// ListByPayment 支付的全部凭证
func (s *ReceiptService) ListByPayment(paymentID uint) ([]models.Receipt, error) {
	return s.receiptRepo.ListByPayment(paymentID)
}

func (s *ReceiptService) emailReceipt(_ context.Context, payment *models.Payment, receipt *models.Receipt) {
	if s.emailSvc == nil || !s.emailSvc.Enabled() {
		return
	}
	student, err := s.studentRepo.GetByID(payment.StudentID)
	if err != nil || student == nil || strings.TrimSpace(student.Email) == "" {
		return
	}
	input := PaymentDocumentEmailInput{
		Kind:        receipt.Kind,
		Number:      receipt.Number,
		StudentName: student.Name,
		Reference:   payment.Reference,
		Amount:      receipt.Amount,
		Currency:    receipt.Currency,
		Status:      receipt.Status,
		IssuedAt:    receipt.IssuedAt,
	}
	if school, err := s.schoolRepo.GetByID(payment.SchoolID); err == nil && school != nil {
		input.SchoolName = school.Name
	}
	if fee, err := s.feeRepo.GetByID(payment.FeeID); err == nil && fee != nil {
		input.FeeTitle = fee.Title
	}

	log := logger.SW("payment_id", payment.ID, "receipt_id", receipt.ID, "kind", receipt.Kind)
	if err := s.emailSvc.SendPaymentDocument(student.Email, input, i18n.DefaultLocale); err != nil {
		if errors.Is(err, ErrEmailRecipientRejected) || errors.Is(err, ErrInvalidEmail) {
			log.Infow("receipt_email_skipped", "error", err)
			return
		}
		log.Warnw("receipt_email_failed", "error", err)
		return
	}
	if err := s.receiptRepo.MarkEmailed(receipt.ID, time.Now()); err != nil {
		log.Warnw("receipt_mark_emailed_failed", "error", err)
	}
}

func buildReceiptNumber(kind string, now time.Time) string {
	prefix := "RCP"
	if kind == constants.ReceiptKindInvoice {
		prefix = "INV"
	}
	short := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
	return fmt.Sprintf("%s-%s-%s", prefix, now.UTC().Format("20060102"), short)
}
