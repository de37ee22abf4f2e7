package admin

import (
	"strings"

	"github.com/schoolpay-next/internal/constants"
	handlershared "github.com/schoolpay-next/internal/http/handlers/shared"
	"github.com/schoolpay-next/internal/http/response"
	"github.com/schoolpay-next/internal/service"

	"github.com/gin-gonic/gin"
)

type gatewayConfigPayload struct {
	SchoolID      uint   `json:"school_id"`
	Provider      string `json:"provider"`
	SecretKey     string `json:"secret_key"`
	PublicKey     string `json:"public_key"`
	WebhookSecret string `json:"webhook_secret"`
	CallbackURL   string `json:"callback_url"`
	Enabled       bool   `json:"enabled"`
}

// GetGatewayConfig 查看学校网关配置（脱敏）
func (h *Handler) GetGatewayConfig(c *gin.Context) {
	scope, ok := getAdminScope(c)
	if !ok {
		return
	}
	requested, ok := handlershared.ParseUintQuery(c, "school_id")
	if !ok {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	schoolID, ok := scope.targetSchoolID(c, requested)
	if !ok {
		return
	}
	view, err := h.GatewayConfigService.Get(schoolID, resolveProvider(c.Query("provider")))
	if err != nil {
		respondWithMappedError(c, err, gatewayConfigErrorRules, response.CodeInternal, "error.gateway_config_fetch_failed")
		return
	}
	response.Success(c, view)
}

// UpdateGatewayConfig 更新学校网关凭据，空密钥字段保持原值
func (h *Handler) UpdateGatewayConfig(c *gin.Context) {
	scope, ok := getAdminScope(c)
	if !ok {
		return
	}
	var req gatewayConfigPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	schoolID, ok := scope.targetSchoolID(c, req.SchoolID)
	if !ok {
		return
	}
	view, err := h.GatewayConfigService.Update(c.Request.Context(), scope.AdminID, schoolID, resolveProvider(req.Provider), service.GatewayConfigInput{
		SecretKey:     req.SecretKey,
		PublicKey:     req.PublicKey,
		WebhookSecret: req.WebhookSecret,
		CallbackURL:   req.CallbackURL,
		Enabled:       req.Enabled,
	}, handlershared.BuildRequestMeta(c))
	if err != nil {
		respondWithMappedError(c, err, gatewayConfigErrorRules, response.CodeInternal, "error.gateway_config_update_failed")
		return
	}
	response.Success(c, view)
}

func resolveProvider(raw string) string {
	provider := strings.ToLower(strings.TrimSpace(raw))
	if provider == "" {
		return constants.PaymentProviderPaystack
	}
	return provider
}
