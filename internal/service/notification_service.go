package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/schoolpay-next/internal/cache"
	"github.com/schoolpay-next/internal/constants"
	"github.com/schoolpay-next/internal/i18n"
	"github.com/schoolpay-next/internal/logger"
	"github.com/schoolpay-next/internal/models"
	"github.com/schoolpay-next/internal/queue"
	"github.com/schoolpay-next/internal/repository"
)

const refundNoticeDedupeTTL = 24 * time.Hour

// NotificationService 退款状态通知服务
type NotificationService struct {
	refundRepo  repository.RefundRepository
	paymentRepo repository.PaymentRepository
	studentRepo repository.StudentRepository
	schoolRepo  repository.SchoolRepository
	emailSvc    *EmailService
	queueClient *queue.Client
}

// NewNotificationService 创建通知服务
func NewNotificationService(
	refundRepo repository.RefundRepository,
	paymentRepo repository.PaymentRepository,
	studentRepo repository.StudentRepository,
	schoolRepo repository.SchoolRepository,
	emailSvc *EmailService,
	queueClient *queue.Client,
) *NotificationService {
	return &NotificationService{
		refundRepo:  refundRepo,
		paymentRepo: paymentRepo,
		studentRepo: studentRepo,
		schoolRepo:  schoolRepo,
		emailSvc:    emailSvc,
		queueClient: queueClient,
	}
}

// DispatchRefundStatus 退款状态变化后通知学生
func (s *NotificationService) DispatchRefundStatus(ctx context.Context, refund *models.Refund) {
	if s == nil || refund == nil || refund.ID == 0 {
		return
	}
	if s.queueClient != nil && s.queueClient.Enabled() {
		err := s.queueClient.EnqueueRefundStatusNotice(queue.RefundStatusNoticePayload{RefundID: refund.ID, Status: refund.Status})
		if err == nil {
			return
		}
		logger.Warnw("refund_notice_enqueue_failed", "refund_id", refund.ID, "status", refund.Status, "error", err)
	}
	if err := s.SendRefundStatusNotice(ctx, refund.ID, refund.Status); err != nil {
		logger.Warnw("refund_notice_send_failed", "refund_id", refund.ID, "status", refund.Status, "error", err)
	}
}

// SendRefundStatusNotice 发送退款状态邮件，同一退款同一状态只发送一次
func (s *NotificationService) SendRefundStatusNotice(ctx context.Context, refundID uint, status string) error {
	if s.emailSvc == nil || !s.emailSvc.Enabled() {
		return nil
	}
	refund, err := s.refundRepo.GetByID(refundID)
	if err != nil {
		return err
	}
	if refund == nil {
		return ErrRefundNotFound
	}
	status = strings.TrimSpace(status)
	if status == "" {
		status = refund.Status
	}
	student, err := s.studentRepo.GetByID(refund.StudentID)
	if err != nil {
		return err
	}
	if student == nil || strings.TrimSpace(student.Email) == "" {
		return nil
	}

	acquired, err := cache.TryLock(ctx, buildRefundNoticeDedupeKey(refund.ID, status), "sent", refundNoticeDedupeTTL)
	if err != nil {
		logger.Warnw("refund_notice_dedupe_failed", "refund_id", refund.ID, "error", err)
	} else if !acquired {
		return nil
	}

	input := RefundStatusEmailInput{
		StudentName: student.Name,
		Amount:      refund.Amount,
		Status:      status,
	}
	if payment, err := s.paymentRepo.GetByID(refund.PaymentID); err == nil && payment != nil {
		input.Reference = payment.Reference
		input.Currency = payment.Currency
	}
	if school, err := s.schoolRepo.GetByID(refund.SchoolID); err == nil && school != nil {
		input.SchoolName = school.Name
	}
	return s.emailSvc.SendRefundStatus(student.Email, input, i18n.DefaultLocale)
}

func buildRefundNoticeDedupeKey(refundID uint, status string) string {
	return fmt.Sprintf("notice:refund:%d:%s", refundID, strings.ToLower(status))
}

// refundNoticeStatuses 需要通知学生的退款状态
var refundNoticeStatuses = map[string]struct{}{
	constants.RefundStatusApproved:  {},
	constants.RefundStatusRejected:  {},
	constants.RefundStatusProcessed: {},
	constants.RefundStatusFailed:    {},
}

func shouldNotifyRefundStatus(status string) bool {
	_, ok := refundNoticeStatuses[status]
	return ok
}
