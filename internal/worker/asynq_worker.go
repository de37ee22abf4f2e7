package worker

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/schoolpay-next/internal/constants"
	"github.com/schoolpay-next/internal/logger"
	"github.com/schoolpay-next/internal/provider"
	"github.com/schoolpay-next/internal/queue"
	"github.com/schoolpay-next/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskPaymentReceipt, c.handlePaymentReceipt)
	mux.HandleFunc(queue.TaskPaymentInvoice, c.handlePaymentInvoice)
	mux.HandleFunc(queue.TaskRefundStatusNotice, c.handleRefundStatusNotice)
	mux.HandleFunc(queue.TaskFraudCheckRetry, c.handleFraudCheckRetry)
}

func (c *Consumer) handlePaymentReceipt(ctx context.Context, task *asynq.Task) error {
	return c.issuePaymentDocument(ctx, task, constants.ReceiptKindReceipt)
}

func (c *Consumer) handlePaymentInvoice(ctx context.Context, task *asynq.Task) error {
	return c.issuePaymentDocument(ctx, task, constants.ReceiptKindInvoice)
}

func (c *Consumer) issuePaymentDocument(ctx context.Context, task *asynq.Task, kind string) error {
	if c == nil || c.Container == nil || task == nil {
		logger.Debugw("worker_payment_document_skip_nil", "kind", kind, "task_nil", task == nil)
		return nil
	}
	var payload queue.PaymentDocumentPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_payment_document_unmarshal_failed", "kind", kind, "error", err)
		return err
	}
	if payload.PaymentID == 0 {
		logger.Debugw("worker_payment_document_skip_invalid_payload", "kind", kind)
		return nil
	}
	if c.ReceiptService == nil {
		logger.Warnw("worker_payment_document_skip_service_nil", "kind", kind, "payment_id", payload.PaymentID)
		return nil
	}
	receipt, err := c.ReceiptService.Issue(ctx, payload.PaymentID, kind)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPaymentNotFound):
			logger.Debugw("worker_payment_document_skip_payment_not_found", "kind", kind, "payment_id", payload.PaymentID)
			return nil
		case errors.Is(err, service.ErrPaymentStateConflict):
			logger.Debugw("worker_payment_document_skip_invalid_status", "kind", kind, "payment_id", payload.PaymentID)
			return nil
		default:
			logger.Warnw("worker_payment_document_failed", "kind", kind, "payment_id", payload.PaymentID, "error", err)
			return err
		}
	}
	logger.Debugw("worker_payment_document_issued", "kind", kind, "payment_id", payload.PaymentID, "number", receipt.Number)
	return nil
}

func (c *Consumer) handleRefundStatusNotice(ctx context.Context, task *asynq.Task) error {
	if c == nil || c.Container == nil || task == nil {
		logger.Debugw("worker_refund_notice_skip_nil", "task_nil", task == nil)
		return nil
	}
	var payload queue.RefundStatusNoticePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_refund_notice_unmarshal_failed", "error", err)
		return err
	}
	if payload.RefundID == 0 {
		logger.Debugw("worker_refund_notice_skip_invalid_payload")
		return nil
	}
	if c.NotificationService == nil {
		logger.Warnw("worker_refund_notice_skip_service_nil", "refund_id", payload.RefundID)
		return nil
	}
	if err := c.NotificationService.SendRefundStatusNotice(ctx, payload.RefundID, payload.Status); err != nil {
		if errors.Is(err, service.ErrRefundNotFound) {
			logger.Debugw("worker_refund_notice_skip_refund_not_found", "refund_id", payload.RefundID)
			return nil
		}
		logger.Warnw("worker_refund_notice_send_failed", "refund_id", payload.RefundID, "status", payload.Status, "error", err)
		return err
	}
	return nil
}

func (c *Consumer) handleFraudCheckRetry(ctx context.Context, task *asynq.Task) error {
	if c == nil || c.Container == nil || task == nil {
		logger.Debugw("worker_fraud_retry_skip_nil", "task_nil", task == nil)
		return nil
	}
	var payload queue.FraudCheckRetryPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_fraud_retry_unmarshal_failed", "error", err)
		return err
	}
	if payload.QueueID == 0 {
		logger.Debugw("worker_fraud_retry_skip_invalid_payload")
		return nil
	}
	if c.FraudService == nil {
		logger.Warnw("worker_fraud_retry_skip_service_nil", "fraud_queue_id", payload.QueueID)
		return nil
	}
	// 评分失败由 FraudService 自行重排，这里只处理存储错误
	if err := c.FraudService.ProcessRetry(ctx, payload.QueueID); err != nil {
		if errors.Is(err, service.ErrFraudQueueEntryNotFound) {
			logger.Debugw("worker_fraud_retry_skip_entry_not_found", "fraud_queue_id", payload.QueueID)
			return nil
		}
		logger.Warnw("worker_fraud_retry_failed", "fraud_queue_id", payload.QueueID, "error", err)
		return err
	}
	return nil
}
