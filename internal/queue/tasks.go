package queue

import (
	"encoding/json"

	"github.com/schoolpay-next/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskPaymentReceipt 支付凭证生成任务
	TaskPaymentReceipt = constants.TaskPaymentReceipt
	// TaskPaymentInvoice 确认后发票生成任务
	TaskPaymentInvoice = constants.TaskPaymentInvoice
	// TaskRefundStatusNotice 退款状态通知任务
	TaskRefundStatusNotice = constants.TaskRefundStatusNotice
	// TaskFraudCheckRetry 风控评分重试任务
	TaskFraudCheckRetry = constants.TaskFraudCheckRetry
)

// PaymentDocumentPayload 凭证/发票任务载荷
type PaymentDocumentPayload struct {
	PaymentID uint `json:"payment_id"`
}

// RefundStatusNoticePayload 退款通知任务载荷
type RefundStatusNoticePayload struct {
	RefundID uint   `json:"refund_id"`
	Status   string `json:"status"`
}

// FraudCheckRetryPayload 风控重试任务载荷
type FraudCheckRetryPayload struct {
	QueueID uint `json:"queue_id"`
}

// NewPaymentReceiptTask 创建支付凭证任务
func NewPaymentReceiptTask(payload PaymentDocumentPayload) (*asynq.Task, error) {
	return newJSONTask(TaskPaymentReceipt, payload)
}

// NewPaymentInvoiceTask 创建发票任务
func NewPaymentInvoiceTask(payload PaymentDocumentPayload) (*asynq.Task, error) {
	return newJSONTask(TaskPaymentInvoice, payload)
}

// NewRefundStatusNoticeTask 创建退款通知任务
func NewRefundStatusNoticeTask(payload RefundStatusNoticePayload) (*asynq.Task, error) {
	return newJSONTask(TaskRefundStatusNotice, payload)
}

// NewFraudCheckRetryTask 创建风控重试任务
func NewFraudCheckRetryTask(payload FraudCheckRetryPayload) (*asynq.Task, error) {
	return newJSONTask(TaskFraudCheckRetry, payload)
}

func newJSONTask(taskType string, payload interface{}) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, body), nil
}
