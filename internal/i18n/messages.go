package i18n

// messages 内置消息目录，key 在各语言间保持一致
var messages = map[string]map[string]string{
	LocaleEN: {
		// 通用
		"error.bad_request":            "Invalid request parameters",
		"error.unauthorized":           "Unauthorized",
		"error.forbidden":              "Permission denied",
		"error.token_invalid":          "Invalid or expired token",
		"error.token_revoked":          "Token has been revoked, please sign in again",
		"error.auth_header_missing":    "Authorization header is missing",
		"error.auth_header_invalid":    "Authorization header format is invalid",
		"error.jwt_secret_missing":     "Authentication is not configured",
		"error.rate_limited":           "Too many requests, retry in %d seconds",
		"error.rate_limit_unavailable": "Rate limiting is temporarily unavailable",

		// 登录
		"error.login_too_many":        "Too many sign-in attempts, retry in %d seconds",
		"error.login_failed":          "Sign-in failed",
		"error.login_locked":          "Too many failed attempts, sign-in is temporarily locked",
		"error.student_login_invalid": "School code, admission number or password is incorrect",
		"error.admin_login_invalid":   "Username or password is incorrect",

		// 学生
		"error.student_disabled":        "Student account is disabled",
		"error.student_id_invalid":      "Student identity is missing",
		"error.student_id_type_invalid": "Student identity is malformed",
		"error.student_not_found":       "Student not found",
		"error.student_fetch_failed":    "Failed to load students",
		"error.student_create_failed":   "Failed to create student",

		// 验证码
		"error.captcha_required":        "Captcha is required",
		"error.captcha_invalid":         "Captcha is incorrect or expired",
		"error.captcha_config_invalid":  "Captcha is misconfigured",
		"error.captcha_unavailable":     "Captcha service is unavailable",
		"error.captcha_generate_failed": "Failed to generate captcha",

		// 密码
		"error.password_old_invalid":    "Current password is incorrect",
		"error.password_update_failed":  "Failed to update password",
		"error.password_weak":           "Password does not meet the policy",
		"error.password_min_length":     "Password must be at least %d characters",
		"error.password_require_number": "Password must contain a number",

		// 费用
		"error.fee_not_found":            "Fee not found",
		"error.fee_assignment_not_found": "Fee is not assigned to this student",
		"error.fee_invalid":              "Fee definition is invalid",
		"error.fee_fetch_failed":         "Failed to load fees",
		"error.fee_create_failed":        "Failed to create fee",
		"error.fee_assign_failed":        "Failed to assign fee",

		// 缴费
		"error.payment_amount_invalid":        "Payment amount is invalid",
		"error.partial_payment_not_allowed":   "This fee must be paid in full",
		"error.email_invalid":                 "A valid email address is required for payment",
		"error.school_not_configured":         "School payment gateway is not configured",
		"error.gateway_initialization_failed": "Payment gateway rejected initialization",
		"error.gateway_unavailable":           "Payment gateway is unavailable",
		"error.gateway_verification_failed":   "Payment gateway verification failed",
		"error.payment_not_found":             "Payment not found",
		"error.payment_state_conflict":        "Payment is no longer in a state that allows this action",
		"error.payment_initialize_failed":     "Failed to initialize payment",
		"error.payment_verify_failed":         "Failed to verify payment",
		"error.payment_fetch_failed":          "Failed to load payments",
		"error.payment_reference_required":    "Payment reference is required",
		"error.receipt_fetch_failed":          "Failed to load receipts",

		// 退款
		"error.payment_not_refundable":     "Payment cannot be refunded",
		"error.refund_amount_invalid":      "Refund amount is invalid",
		"error.refund_exceeds_refundable":  "Refund exceeds the remaining refundable amount",
		"error.refund_request_failed":      "Failed to request refund",
		"error.refund_not_found":           "Refund not found",
		"error.refund_fetch_failed":        "Failed to load refunds",
		"error.refund_decision_invalid":    "Refund decision must be approve or reject",
		"error.refund_state_conflict":      "Refund has already been reviewed",
		"error.refund_review_failed":       "Failed to review refund",
		"error.provider_unsupported":       "Payment provider is not supported",
		"error.provider_reference_missing": "Payment has no gateway transaction reference",
		"error.gateway_refund_failed":      "Payment gateway rejected the refund",

		// Webhook
		"error.webhook_signature_invalid": "Webhook signature is invalid",
		"error.webhook_payload_invalid":   "Webhook payload is invalid",
		"error.webhook_handle_failed":     "Failed to handle webhook",

		// 管理员与权限
		"error.admin_not_found":       "Admin not found",
		"error.admin_username_exists": "Username already exists",
		"error.admin_fetch_failed":    "Failed to load admins",
		"error.admin_create_failed":   "Failed to create admin",
		"error.admin_id_invalid":      "Admin identity is missing",
		"error.admin_id_type_invalid": "Admin identity is malformed",
		"error.role_required":         "Role is required",
		"error.role_unknown":          "Unknown role",
		"error.authz_unavailable":     "Authorization service is unavailable",

		// 学校与网关配置
		"error.school_not_found":             "School not found",
		"error.school_fetch_failed":          "Failed to load schools",
		"error.school_create_failed":         "Failed to create school",
		"error.school_id_required":           "school_id is required",
		"error.gateway_config_not_found":     "Gateway configuration not found",
		"error.gateway_config_invalid":       "Gateway configuration is invalid",
		"error.gateway_config_fetch_failed":  "Failed to load gateway configuration",
		"error.gateway_config_update_failed": "Failed to update gateway configuration",

		// 风控与日志
		"error.fraud_queue_entry_not_found":  "Fraud check entry not found",
		"error.fraud_queue_entry_not_failed": "Only failed fraud checks can be retried",
		"error.fraud_fetch_failed":           "Failed to load fraud checks",
		"error.fraud_retry_failed":           "Failed to retry fraud check",
		"error.transaction_log_fetch_failed": "Failed to load transaction logs",

		// 状态文案
		"payment.status.initiated": "Awaiting confirmation",
		"payment.status.confirmed": "Confirmed",
		"payment.status.rejected":  "Rejected",
		"refund.status.requested":  "Requested",
		"refund.status.approved":   "Approved",
		"refund.status.processed":  "Processed",
		"refund.status.rejected":   "Rejected",
		"refund.status.failed":     "Failed",

		// 邮件：receipt/invoice 参数依次为 学生、费用、编号、引用号、金额、币种、状态、时间
		"email.receipt.subject": "[%s] Payment receipt %s",
		"email.receipt.body": "Dear %s,\n\nWe have received your payment for %s.\n\n" +
			"Receipt number: %s\nReference: %s\nAmount: %s %s\nStatus: %s\nIssued at: %s\n\n" +
			"Keep this receipt for your records.",
		"email.invoice.subject": "[%s] Invoice %s",
		"email.invoice.body": "Dear %s,\n\nThis invoice confirms settlement of %s.\n\n" +
			"Invoice number: %s\nReference: %s\nAmount: %s %s\nStatus: %s\nIssued at: %s\n",
		"email.refund_status.subject": "[%s] Refund %s",
		"email.refund_status.body": "Dear %s,\n\nThe refund on payment %s for %s %s is now: %s.\n\n" +
			"Contact the school bursary if you have questions.",
	},
	LocaleZH: {
		"error.bad_request":            "请求参数错误",
		"error.unauthorized":           "未授权",
		"error.forbidden":              "无权限访问",
		"error.token_invalid":          "Token 无效或已过期",
		"error.token_revoked":          "Token 已失效，请重新登录",
		"error.auth_header_missing":    "缺少 Authorization 请求头",
		"error.auth_header_invalid":    "Authorization 格式错误",
		"error.jwt_secret_missing":     "鉴权未配置",
		"error.rate_limited":           "请求过于频繁，请 %d 秒后重试",
		"error.rate_limit_unavailable": "限流服务暂不可用",

		"error.login_too_many":        "登录尝试过于频繁，请 %d 秒后重试",
		"error.login_failed":          "登录失败",
		"error.login_locked":          "失败次数过多，登录已被临时锁定",
		"error.student_login_invalid": "学校代码、学号或密码错误",
		"error.admin_login_invalid":   "用户名或密码错误",

		"error.student_disabled":        "学生账号已停用",
		"error.student_id_invalid":      "缺少学生身份",
		"error.student_id_type_invalid": "学生身份格式错误",
		"error.student_not_found":       "学生不存在",
		"error.student_fetch_failed":    "获取学生失败",
		"error.student_create_failed":   "创建学生失败",

		"error.captcha_required":        "请输入验证码",
		"error.captcha_invalid":         "验证码错误或已过期",
		"error.captcha_config_invalid":  "验证码配置错误",
		"error.captcha_unavailable":     "验证码服务不可用",
		"error.captcha_generate_failed": "生成验证码失败",

		"error.password_old_invalid":    "原密码错误",
		"error.password_update_failed":  "修改密码失败",
		"error.password_weak":           "密码不符合安全策略",
		"error.password_min_length":     "密码长度至少 %d 位",
		"error.password_require_number": "密码必须包含数字",

		"error.fee_not_found":            "费用不存在",
		"error.fee_assignment_not_found": "该学生未被分配此费用",
		"error.fee_invalid":              "费用定义无效",
		"error.fee_fetch_failed":         "获取费用失败",
		"error.fee_create_failed":        "创建费用失败",
		"error.fee_assign_failed":        "分配费用失败",

		"error.payment_amount_invalid":        "缴费金额无效",
		"error.partial_payment_not_allowed":   "该费用需一次性缴清",
		"error.email_invalid":                 "缴费需要有效的邮箱地址",
		"error.school_not_configured":         "学校未配置支付网关",
		"error.gateway_initialization_failed": "支付网关拒绝创建交易",
		"error.gateway_unavailable":           "支付网关不可用",
		"error.gateway_verification_failed":   "支付网关校验失败",
		"error.payment_not_found":             "缴费记录不存在",
		"error.payment_state_conflict":        "缴费状态不允许此操作",
		"error.payment_initialize_failed":     "发起缴费失败",
		"error.payment_verify_failed":         "校验缴费失败",
		"error.payment_fetch_failed":          "获取缴费记录失败",
		"error.payment_reference_required":    "缺少缴费引用号",
		"error.receipt_fetch_failed":          "获取收据失败",

		"error.payment_not_refundable":     "该缴费不可退款",
		"error.refund_amount_invalid":      "退款金额无效",
		"error.refund_exceeds_refundable":  "退款金额超过可退余额",
		"error.refund_request_failed":      "申请退款失败",
		"error.refund_not_found":           "退款记录不存在",
		"error.refund_fetch_failed":        "获取退款记录失败",
		"error.refund_decision_invalid":    "审核结果只能为 approve 或 reject",
		"error.refund_state_conflict":      "退款已审核",
		"error.refund_review_failed":       "审核退款失败",
		"error.provider_unsupported":       "不支持的支付渠道",
		"error.provider_reference_missing": "缴费缺少网关交易号",
		"error.gateway_refund_failed":      "支付网关拒绝退款",

		"error.webhook_signature_invalid": "Webhook 签名无效",
		"error.webhook_payload_invalid":   "Webhook 内容无效",
		"error.webhook_handle_failed":     "处理 Webhook 失败",

		"error.admin_not_found":       "管理员不存在",
		"error.admin_username_exists": "用户名已存在",
		"error.admin_fetch_failed":    "获取管理员失败",
		"error.admin_create_failed":   "创建管理员失败",
		"error.admin_id_invalid":      "缺少管理员身份",
		"error.admin_id_type_invalid": "管理员身份格式错误",
		"error.role_required":         "角色不能为空",
		"error.role_unknown":          "角色不存在",
		"error.authz_unavailable":     "权限服务不可用",

		"error.school_not_found":             "学校不存在",
		"error.school_fetch_failed":          "获取学校失败",
		"error.school_create_failed":         "创建学校失败",
		"error.school_id_required":           "缺少 school_id",
		"error.gateway_config_not_found":     "网关配置不存在",
		"error.gateway_config_invalid":       "网关配置无效",
		"error.gateway_config_fetch_failed":  "获取网关配置失败",
		"error.gateway_config_update_failed": "更新网关配置失败",

		"error.fraud_queue_entry_not_found":  "风控检查记录不存在",
		"error.fraud_queue_entry_not_failed": "只能重试失败的风控检查",
		"error.fraud_fetch_failed":           "获取风控记录失败",
		"error.fraud_retry_failed":           "重试风控检查失败",
		"error.transaction_log_fetch_failed": "获取交易日志失败",

		"payment.status.initiated": "待确认",
		"payment.status.confirmed": "已确认",
		"payment.status.rejected":  "已拒绝",
		"refund.status.requested":  "已申请",
		"refund.status.approved":   "已批准",
		"refund.status.processed":  "已退款",
		"refund.status.rejected":   "已驳回",
		"refund.status.failed":     "退款失败",

		"email.receipt.subject": "[%s] 缴费收据 %s",
		"email.receipt.body": "%s 您好：\n\n已收到您的 %s 缴费。\n\n" +
			"收据编号：%s\n引用号：%s\n金额：%s %s\n状态：%s\n开具时间：%s\n\n请妥善保存本收据。",
		"email.invoice.subject": "[%s] 发票 %s",
		"email.invoice.body": "%s 您好：\n\n本发票确认 %s 已结清。\n\n" +
			"发票编号：%s\n引用号：%s\n金额：%s %s\n状态：%s\n开具时间：%s\n",
		"email.refund_status.subject": "[%s] 退款%s",
		"email.refund_status.body":    "%s 您好：\n\n缴费 %s 的退款 %s %s 当前状态：%s。\n\n如有疑问请联系学校财务处。",
	},
}
