package service

import (
	"time"

	"github.com/schoolpay-next/internal/constants"

	"github.com/shopspring/decimal"
)

// 支付状态事件
const (
	PaymentEventConfirm = "confirm"
	PaymentEventReject  = "reject"
)

// 退款状态事件
const (
	RefundEventApprove        = "approve"
	RefundEventReject         = "reject"
	RefundEventGatewayAccept  = "gateway_accept"
	RefundEventGatewayDecline = "gateway_decline"
	RefundEventProcessed      = "processed"
	RefundEventFailed         = "failed"
)

// TransitionPayment 支付状态机：返回目标状态与是否发生变化，终态不可重入
func TransitionPayment(current, event string) (string, bool, error) {
	switch current {
	case constants.PaymentStatusInitiated:
		switch event {
		case PaymentEventConfirm:
			return constants.PaymentStatusConfirmed, true, nil
		case PaymentEventReject:
			return constants.PaymentStatusRejected, true, nil
		}
	case constants.PaymentStatusConfirmed:
		if event == PaymentEventConfirm {
			return current, false, nil
		}
	case constants.PaymentStatusRejected:
		if event == PaymentEventReject {
			return current, false, nil
		}
	}
	return current, false, ErrPaymentStateConflict
}

// TransitionRefund 退款状态机
// gateway_accept 保持 approved，仅追加审计；processed/failed 可由 Webhook 从 requested 或 approved 触发
func TransitionRefund(current, event string) (string, bool, error) {
	switch current {
	case constants.RefundStatusRequested:
		switch event {
		case RefundEventApprove:
			return constants.RefundStatusApproved, true, nil
		case RefundEventReject:
			return constants.RefundStatusRejected, true, nil
		case RefundEventProcessed:
			return constants.RefundStatusProcessed, true, nil
		case RefundEventFailed:
			return constants.RefundStatusFailed, true, nil
		}
	case constants.RefundStatusApproved:
		switch event {
		case RefundEventGatewayAccept:
			return current, true, nil
		case RefundEventGatewayDecline, RefundEventFailed:
			return constants.RefundStatusFailed, true, nil
		case RefundEventProcessed:
			return constants.RefundStatusProcessed, true, nil
		}
	case constants.RefundStatusProcessed:
		if event == RefundEventProcessed {
			return current, false, nil
		}
	case constants.RefundStatusFailed:
		if event == RefundEventFailed || event == RefundEventGatewayDecline {
			return current, false, nil
		}
	case constants.RefundStatusRejected:
		if event == RefundEventReject {
			return current, false, nil
		}
	}
	return current, false, ErrRefundStateConflict
}

// DeriveFeeAssignmentStatus 仅由已缴、应缴与截止日期推导缴费状态
func DeriveFeeAssignmentStatus(amountPaid, amountDue decimal.Decimal, dueDate, now time.Time) string {
	if amountPaid.GreaterThanOrEqual(amountDue) {
		return constants.FeeAssignmentStatusFullyPaid
	}
	if amountPaid.GreaterThan(decimal.Zero) {
		return constants.FeeAssignmentStatusPartiallyPaid
	}
	if !dueDate.IsZero() && now.After(dueDate) {
		return constants.FeeAssignmentStatusOverdue
	}
	return constants.FeeAssignmentStatusAssigned
}
