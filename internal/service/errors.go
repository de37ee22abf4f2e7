package service

import "errors"

// 通用
var (
	ErrNotFound           = errors.New("resource not found")
	ErrForbidden          = errors.New("operation not permitted")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidPassword    = errors.New("invalid password")
	ErrWeakPassword       = errors.New("password does not meet policy")
	ErrInvalidInput       = errors.New("invalid input")
)

// 管理员
var (
	ErrAdminNotFound = errors.New("admin not found")
	ErrAdminExists   = errors.New("admin already exists")
)

// 学生登录
var (
	ErrStudentNotFound      = errors.New("student not found")
	ErrStudentDisabled      = errors.New("student disabled")
	ErrSchoolNotFound       = errors.New("school not found")
	ErrLoginLocked          = errors.New("login temporarily locked")
	ErrCaptchaRequired      = errors.New("captcha required")
	ErrCaptchaInvalid       = errors.New("captcha invalid")
	ErrCaptchaConfigInvalid = errors.New("captcha config invalid")
)

// 收费项目
var (
	ErrFeeNotFound           = errors.New("fee not found")
	ErrFeeInvalid            = errors.New("fee invalid")
	ErrFeeAssignmentNotFound = errors.New("fee assignment not found")
	ErrFeeAlreadyAssigned    = errors.New("fee already assigned")
)

// 支付
var (
	ErrPartialPaymentNotAllowed    = errors.New("partial payment not allowed")
	ErrInvalidAmount               = errors.New("invalid amount")
	ErrSchoolNotConfigured         = errors.New("school or provider not configured")
	ErrGatewayInitializationFailed = errors.New("gateway initialization failed")
	ErrGatewayUnavailable          = errors.New("gateway unavailable")
	ErrPaymentNotFound             = errors.New("payment not found")
	ErrGatewayVerificationFailed   = errors.New("gateway verification failed")
	ErrPaymentStateConflict        = errors.New("payment state conflict")
	ErrPaymentUpdateFailed         = errors.New("payment update failed")
	ErrWebhookSignatureInvalid     = errors.New("webhook signature invalid")
	ErrWebhookPayloadInvalid       = errors.New("webhook payload invalid")
)

// 退款
var (
	ErrRefundNotFound           = errors.New("refund not found")
	ErrInvalidRefundAmount      = errors.New("invalid refund amount")
	ErrRefundExceedsRefundable  = errors.New("refund exceeds refundable amount")
	ErrPaymentNotRefundable     = errors.New("payment not refundable")
	ErrInvalidDecision          = errors.New("invalid refund decision")
	ErrRefundStateConflict      = errors.New("refund state conflict")
	ErrUnsupportedProvider      = errors.New("unsupported provider")
	ErrProviderReferenceMissing = errors.New("provider reference missing")
	ErrProviderNotConfigured    = errors.New("provider not configured")
	ErrGatewayRefundFailed      = errors.New("gateway refund failed")
	ErrRefundUpdateFailed       = errors.New("refund update failed")
)

// 风控
var (
	ErrFraudQueueEntryNotFound  = errors.New("fraud queue entry not found")
	ErrFraudQueueEntryNotFailed = errors.New("fraud queue entry not failed")
)

// 网关配置
var (
	ErrGatewayConfigInvalid = errors.New("gateway config invalid")
)

// 邮件
var (
	ErrEmailServiceDisabled      = errors.New("email service disabled")
	ErrEmailServiceNotConfigured = errors.New("email service not configured")
	ErrInvalidEmail              = errors.New("invalid email")
	ErrEmailRecipientRejected    = errors.New("email recipient rejected")
)
