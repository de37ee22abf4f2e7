package admin

import (
	"github.com/schoolpay-next/internal/authz"
	handlershared "github.com/schoolpay-next/internal/http/handlers/shared"
	"github.com/schoolpay-next/internal/http/response"
	"github.com/schoolpay-next/internal/service"

	"github.com/gin-gonic/gin"
)

type mappedHandlerError = handlershared.MappedError

var adminAccountErrorRules = []mappedHandlerError{
	{Target: service.ErrInvalidInput, Code: response.CodeBadRequest, Key: "error.bad_request"},
	{Target: service.ErrInvalidPassword, Code: response.CodeBadRequest, Key: "error.password_old_invalid"},
	{Target: service.ErrAdminNotFound, Code: response.CodeNotFound, Key: "error.admin_not_found"},
	{Target: service.ErrAdminExists, Code: response.CodeConflict, Key: "error.admin_username_exists"},
}

var schoolErrorRules = []mappedHandlerError{
	{Target: service.ErrInvalidInput, Code: response.CodeBadRequest, Key: "error.bad_request"},
	{Target: service.ErrSchoolNotFound, Code: response.CodeNotFound, Key: "error.school_not_found"},
}

var feeErrorRules = []mappedHandlerError{
	{Target: service.ErrInvalidInput, Code: response.CodeBadRequest, Key: "error.bad_request"},
	{Target: service.ErrFeeInvalid, Code: response.CodeBadRequest, Key: "error.fee_invalid"},
	{Target: service.ErrFeeNotFound, Code: response.CodeNotFound, Key: "error.fee_not_found"},
	{Target: service.ErrForbidden, Code: response.CodeNotFound, Key: "error.fee_not_found"},
}

var paymentErrorRules = []mappedHandlerError{
	{Target: service.ErrPaymentNotFound, Code: response.CodeNotFound, Key: "error.payment_not_found"},
	{Target: service.ErrPaymentStateConflict, Code: response.CodeConflict, Key: "error.payment_state_conflict"},
	{Target: service.ErrSchoolNotConfigured, Code: response.CodeBadRequest, Key: "error.school_not_configured"},
	{Target: service.ErrGatewayVerificationFailed, Code: response.CodeBadGateway, Key: "error.gateway_verification_failed", Detail: true},
	{Target: service.ErrGatewayUnavailable, Code: response.CodeBadGateway, Key: "error.gateway_unavailable"},
}

var refundReviewErrorRules = []mappedHandlerError{
	{Target: service.ErrRefundNotFound, Code: response.CodeNotFound, Key: "error.refund_not_found"},
	{Target: service.ErrForbidden, Code: response.CodeForbidden, Key: "error.forbidden"},
	{Target: service.ErrInvalidDecision, Code: response.CodeBadRequest, Key: "error.refund_decision_invalid"},
	{Target: service.ErrPaymentNotFound, Code: response.CodeNotFound, Key: "error.payment_not_found"},
	{Target: service.ErrRefundStateConflict, Code: response.CodeConflict, Key: "error.refund_state_conflict"},
	{Target: service.ErrRefundExceedsRefundable, Code: response.CodeConflict, Key: "error.refund_exceeds_refundable"},
	{Target: service.ErrUnsupportedProvider, Code: response.CodeBadRequest, Key: "error.provider_unsupported"},
	{Target: service.ErrProviderReferenceMissing, Code: response.CodeBadRequest, Key: "error.provider_reference_missing"},
	{Target: service.ErrProviderNotConfigured, Code: response.CodeBadRequest, Key: "error.school_not_configured"},
	{Target: service.ErrGatewayRefundFailed, Code: response.CodeBadGateway, Key: "error.gateway_refund_failed", Detail: true},
}

var gatewayConfigErrorRules = []mappedHandlerError{
	{Target: service.ErrNotFound, Code: response.CodeNotFound, Key: "error.gateway_config_not_found"},
	{Target: service.ErrUnsupportedProvider, Code: response.CodeBadRequest, Key: "error.provider_unsupported"},
	{Target: service.ErrSchoolNotFound, Code: response.CodeNotFound, Key: "error.school_not_found"},
	{Target: service.ErrGatewayConfigInvalid, Code: response.CodeBadRequest, Key: "error.gateway_config_invalid", Detail: true},
}

var fraudQueueErrorRules = []mappedHandlerError{
	{Target: service.ErrFraudQueueEntryNotFound, Code: response.CodeNotFound, Key: "error.fraud_queue_entry_not_found"},
	{Target: service.ErrFraudQueueEntryNotFailed, Code: response.CodeConflict, Key: "error.fraud_queue_entry_not_failed"},
}

var authzErrorRules = []mappedHandlerError{
	{Target: authz.ErrRoleRequired, Code: response.CodeBadRequest, Key: "error.role_required"},
	{Target: authz.ErrUnknownRole, Code: response.CodeBadRequest, Key: "error.role_unknown"},
	{Target: authz.ErrUnavailable, Code: response.CodeInternal, Key: "error.authz_unavailable"},
}

func respondError(c *gin.Context, code int, key string, err error) {
	handlershared.RespondError(c, code, key, err)
}

func respondWithMappedError(c *gin.Context, err error, rules []mappedHandlerError, fallbackCode int, fallbackKey string) {
	handlershared.RespondMappedError(c, err, rules, fallbackCode, fallbackKey)
}
