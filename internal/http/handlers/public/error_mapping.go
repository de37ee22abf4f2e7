package public

import (
	handlershared "github.com/schoolpay-next/internal/http/handlers/shared"
	"github.com/schoolpay-next/internal/http/response"
	"github.com/schoolpay-next/internal/service"

	"github.com/gin-gonic/gin"
)

type mappedHandlerError = handlershared.MappedError

var captchaErrorRules = []mappedHandlerError{
	{Target: service.ErrCaptchaRequired, Code: response.CodeBadRequest, Key: "error.captcha_required"},
	{Target: service.ErrCaptchaInvalid, Code: response.CodeBadRequest, Key: "error.captcha_invalid"},
	{Target: service.ErrCaptchaConfigInvalid, Code: response.CodeInternal, Key: "error.captcha_config_invalid"},
}

var studentLoginErrorRules = []mappedHandlerError{
	{Target: service.ErrInvalidInput, Code: response.CodeBadRequest, Key: "error.bad_request"},
	{Target: service.ErrInvalidCredentials, Code: response.CodeUnauthorized, Key: "error.student_login_invalid"},
	{Target: service.ErrStudentDisabled, Code: response.CodeForbidden, Key: "error.student_disabled"},
	{Target: service.ErrLoginLocked, Code: response.CodeTooManyRequests, Key: "error.login_locked"},
}

var studentPasswordErrorRules = []mappedHandlerError{
	{Target: service.ErrInvalidPassword, Code: response.CodeBadRequest, Key: "error.password_old_invalid"},
	{Target: service.ErrStudentNotFound, Code: response.CodeNotFound, Key: "error.student_not_found"},
}

var paymentInitializeErrorRules = []mappedHandlerError{
	{Target: service.ErrFeeNotFound, Code: response.CodeNotFound, Key: "error.fee_not_found"},
	{Target: service.ErrFeeAssignmentNotFound, Code: response.CodeNotFound, Key: "error.fee_assignment_not_found"},
	{Target: service.ErrStudentNotFound, Code: response.CodeNotFound, Key: "error.student_not_found"},
	{Target: service.ErrStudentDisabled, Code: response.CodeForbidden, Key: "error.student_disabled"},
	{Target: service.ErrInvalidAmount, Code: response.CodeBadRequest, Key: "error.payment_amount_invalid"},
	{Target: service.ErrPartialPaymentNotAllowed, Code: response.CodeBadRequest, Key: "error.partial_payment_not_allowed"},
	{Target: service.ErrInvalidEmail, Code: response.CodeBadRequest, Key: "error.email_invalid"},
	{Target: service.ErrSchoolNotConfigured, Code: response.CodeBadRequest, Key: "error.school_not_configured"},
	{Target: service.ErrGatewayInitializationFailed, Code: response.CodeBadGateway, Key: "error.gateway_initialization_failed", Detail: true},
	{Target: service.ErrGatewayUnavailable, Code: response.CodeBadGateway, Key: "error.gateway_unavailable"},
}

var paymentVerifyErrorRules = []mappedHandlerError{
	{Target: service.ErrPaymentNotFound, Code: response.CodeNotFound, Key: "error.payment_not_found"},
	{Target: service.ErrPaymentStateConflict, Code: response.CodeConflict, Key: "error.payment_state_conflict"},
	{Target: service.ErrSchoolNotConfigured, Code: response.CodeBadRequest, Key: "error.school_not_configured"},
	{Target: service.ErrGatewayVerificationFailed, Code: response.CodeBadGateway, Key: "error.gateway_verification_failed", Detail: true},
	{Target: service.ErrGatewayUnavailable, Code: response.CodeBadGateway, Key: "error.gateway_unavailable"},
}

var refundRequestErrorRules = []mappedHandlerError{
	{Target: service.ErrPaymentNotFound, Code: response.CodeNotFound, Key: "error.payment_not_found"},
	// 他人支付按不存在处理，不暴露支付是否存在
	{Target: service.ErrForbidden, Code: response.CodeNotFound, Key: "error.payment_not_found"},
	{Target: service.ErrPaymentNotRefundable, Code: response.CodeConflict, Key: "error.payment_not_refundable"},
	{Target: service.ErrInvalidRefundAmount, Code: response.CodeBadRequest, Key: "error.refund_amount_invalid"},
	{Target: service.ErrRefundExceedsRefundable, Code: response.CodeConflict, Key: "error.refund_exceeds_refundable"},
}

func respondWithMappedError(c *gin.Context, err error, rules []mappedHandlerError, fallbackCode int, fallbackKey string) {
	handlershared.RespondMappedError(c, err, rules, fallbackCode, fallbackKey)
}

func respondStudentLoginError(c *gin.Context, err error) {
	respondWithMappedError(c, err, handlershared.ConcatMappedErrors(studentLoginErrorRules, captchaErrorRules), response.CodeInternal, "error.login_failed")
}

func respondPaymentInitializeError(c *gin.Context, err error) {
	respondWithMappedError(c, err, paymentInitializeErrorRules, response.CodeInternal, "error.payment_initialize_failed")
}

func respondPaymentVerifyError(c *gin.Context, err error) {
	respondWithMappedError(c, err, paymentVerifyErrorRules, response.CodeInternal, "error.payment_verify_failed")
}

func respondRefundRequestError(c *gin.Context, err error) {
	respondWithMappedError(c, err, refundRequestErrorRules, response.CodeInternal, "error.refund_request_failed")
}

var refundLookupErrorRules = []mappedHandlerError{
	{Target: service.ErrRefundNotFound, Code: response.CodeNotFound, Key: "error.refund_not_found"},
}
