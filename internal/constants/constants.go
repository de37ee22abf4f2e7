package constants

// 支付状态常量
const (
	PaymentStatusInitiated = "initiated"
	PaymentStatusConfirmed = "confirmed"
	PaymentStatusRejected  = "rejected"
)

// 支付提供方常量
const (
	PaymentProviderPaystack = "paystack"
)

// 网关 Webhook 事件常量
const (
	GatewayEventChargeSuccess   = "charge.success"
	GatewayEventChargeFailed    = "charge.failed"
	GatewayEventRefundProcessed = "refund.processed"
	GatewayEventRefundFailed    = "refund.failed"
)

// 费用分配状态常量
const (
	FeeAssignmentStatusAssigned      = "assigned"
	FeeAssignmentStatusPartiallyPaid = "partially_paid"
	FeeAssignmentStatusFullyPaid     = "fully_paid"
	FeeAssignmentStatusOverdue       = "overdue"
)

// 退款状态常量
const (
	RefundStatusRequested = "requested"
	RefundStatusApproved  = "approved"
	RefundStatusProcessed = "processed"
	RefundStatusRejected  = "rejected"
	RefundStatusFailed    = "failed"
)

// 退款审核决定
const (
	RefundDecisionApproved = "approved"
	RefundDecisionRejected = "rejected"
)

// 风控重试队列状态常量
const (
	FraudCheckStatusQueued    = "queued"
	FraudCheckStatusProcessed = "processed"
	FraudCheckStatusFailed    = "failed"
)

// 风险等级
const (
	AnomalyScaleLow    = "Low"
	AnomalyScaleMedium = "Medium"
	AnomalyScaleHigh   = "High"
)

// 风控评分来源
const (
	FraudSourceLive  = "live"
	FraudSourceRetry = "retry"
)

// Webhook 应答分类
const (
	WebhookAckProcessed = "processed"
	WebhookAckIgnored   = "ignored"
	WebhookAckNotFound  = "not_found"
)

// 学生状态常量
const (
	StudentStatusActive   = "active"
	StudentStatusDisabled = "disabled"
)

// 学生就读类型
const (
	EnrollmentTypeBoarding = "boarding"
	EnrollmentTypeDay      = "day"
)

// 风控特征：支付方式与学生类别
const (
	PaymentMethodCard         = "card"
	PaymentMethodBankTransfer = "bank_transfer"
	PaymentMethodOther        = "other"

	StudentTypeBoarder    = "boarder"
	StudentTypeDayScholar = "day_scholar"
	StudentTypeOther      = "other"
)

// 设备记录来源
const (
	DeviceSourceLogin       = "login"
	DeviceSourcePaymentInit = "payment_init"
)

// 凭证类型
const (
	ReceiptKindReceipt = "receipt"
	ReceiptKindInvoice = "invoice"
)

// 交易日志操作人类型
const (
	ActorTypeStudent = "student"
	ActorTypeAdmin   = "admin"
	ActorTypeGateway = "gateway"
	ActorTypeSystem  = "system"
)

// 交易日志动作
const (
	TxActionPaymentInitialized    = "payment_initialized"
	TxActionPaymentInitFailed     = "payment_init_failed"
	TxActionPaymentConfirmed      = "payment_confirmed"
	TxActionPaymentRejected       = "payment_rejected"
	TxActionPaymentVerifyFailed   = "payment_verify_failed"
	TxActionPaymentSettled        = "payment_settled"
	TxActionWebhookRejected       = "webhook_signature_rejected"
	TxActionFraudCheckCompleted   = "fraud_check_completed"
	TxActionFraudCheckFailed      = "fraud_check_failed"
	TxActionFraudRetryProcessed   = "fraud_retry_processed"
	TxActionFraudRetryExhausted   = "fraud_retry_exhausted"
	TxActionFraudRetryRequeued    = "fraud_retry_requeued"
	TxActionRefundRequested       = "refund_requested"
	TxActionRefundApproved        = "refund_approved"
	TxActionRefundRejected        = "refund_rejected"
	TxActionRefundGatewayAccepted = "refund_gateway_accepted"
	TxActionRefundGatewayDeclined = "refund_gateway_declined"
	TxActionRefundProcessed       = "refund_processed"
	TxActionRefundFailed          = "refund_failed"
	TxActionLoginSuccess          = "login_success"
	TxActionLoginFailed           = "login_failed"
	TxActionGatewayConfigUpdated  = "gateway_config_updated"
	TxActionFeeAssignmentsOverdue = "fee_assignments_overdue"
	TxActionSideEffectFailed      = "side_effect_failed"
)

// 退款审计动作
const (
	RefundAuditRequested       = "requested"
	RefundAuditApproved        = "approved"
	RefundAuditRejected        = "rejected"
	RefundAuditGatewayAccepted = "gateway_accepted"
	RefundAuditFailed          = "failed"
	RefundAuditProcessed       = "processed"
)

// 队列名称
const (
	QueueDefault  = "default"
	QueueCritical = "critical"
)

// 异步任务类型
const (
	TaskPaymentReceipt     = "payment:receipt"
	TaskPaymentInvoice     = "payment:invoice"
	TaskRefundStatusNotice = "refund:status_notice"
	TaskFraudCheckRetry    = "fraud:check_retry"
)

// 验证码场景与提供方
const (
	CaptchaProviderNone  = "none"
	CaptchaProviderImage = "image"
	CaptchaSceneLogin    = "login"
)
