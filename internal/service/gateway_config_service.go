package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/schoolpay-next/internal/cache"
	"github.com/schoolpay-next/internal/config"
	"github.com/schoolpay-next/internal/constants"
	"github.com/schoolpay-next/internal/logger"
	"github.com/schoolpay-next/internal/models"
	"github.com/schoolpay-next/internal/payment/paystack"
	"github.com/schoolpay-next/internal/repository"
)

// GatewayConfigService 学校网关凭据服务
type GatewayConfigService struct {
	cfg      config.PaystackConfig
	repo     repository.GatewayConfigRepository
	recorder TransactionRecorder
}

// NewGatewayConfigService 创建网关凭据服务
func NewGatewayConfigService(cfg config.PaystackConfig, repo repository.GatewayConfigRepository, recorder TransactionRecorder) *GatewayConfigService {
	return &GatewayConfigService{cfg: cfg, repo: repo, recorder: recorder}
}

// GatewayConfigInput 网关凭据更新输入
type GatewayConfigInput struct {
	SecretKey     string
	PublicKey     string
	WebhookSecret string
	CallbackURL   string
	Enabled       bool
}

// GatewayConfigView 脱敏后的网关凭据
type GatewayConfigView struct {
	SchoolID         uint      `json:"school_id"`
	Provider         string    `json:"provider"`
	SecretKeyMasked  string    `json:"secret_key_masked"`
	PublicKey        string    `json:"public_key"`
	HasWebhookSecret bool      `json:"has_webhook_secret"`
	CallbackURL      string    `json:"callback_url"`
	Enabled          bool      `json:"enabled"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Resolve 返回学校可用的网关配置，未配置或停用时返回 ErrSchoolNotConfigured
func (s *GatewayConfigService) Resolve(ctx context.Context, schoolID uint, provider string) (*paystack.Config, error) {
	snapshot, err := s.loadSnapshot(ctx, schoolID, provider)
	if err != nil {
		return nil, err
	}
	if snapshot == nil || !snapshot.Enabled || strings.TrimSpace(snapshot.SecretKey) == "" {
		return nil, ErrSchoolNotConfigured
	}
	return s.buildConfig(snapshot), nil
}

// ResolveWebhookSecret 返回学校的 Webhook 验签密钥，未配置时使用全局默认密钥
func (s *GatewayConfigService) ResolveWebhookSecret(ctx context.Context, schoolID uint, provider string) string {
	if schoolID != 0 {
		snapshot, err := s.loadSnapshot(ctx, schoolID, provider)
		if err != nil {
			logger.Warnw("gateway_config_webhook_secret_lookup_failed", "school_id", schoolID, "error", err)
		}
		if snapshot != nil {
			if secret := s.buildConfig(snapshot).SigningSecret(); secret != "" {
				return secret
			}
		}
	}
	return strings.TrimSpace(s.cfg.DefaultWebhookSecret)
}

// Get 获取脱敏后的网关配置
func (s *GatewayConfigService) Get(schoolID uint, provider string) (*GatewayConfigView, error) {
	row, err := s.repo.GetBySchoolAndProvider(schoolID, provider)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, ErrNotFound
	}
	return buildGatewayConfigView(row), nil
}

// Update 更新学校网关凭据并失效缓存
func (s *GatewayConfigService) Update(ctx context.Context, adminID, schoolID uint, provider string, input GatewayConfigInput, meta RequestMeta) (*GatewayConfigView, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider != constants.PaymentProviderPaystack {
		return nil, ErrUnsupportedProvider
	}
	if schoolID == 0 {
		return nil, ErrSchoolNotFound
	}
	row, err := s.repo.GetBySchoolAndProvider(schoolID, provider)
	if err != nil {
		return nil, err
	}
	if row == nil {
		row = &models.SchoolGatewayConfig{SchoolID: schoolID, Provider: provider}
	}
	// 空值表示保持原密钥
	if secret := strings.TrimSpace(input.SecretKey); secret != "" {
		row.SecretKey = secret
	}
	if secret := strings.TrimSpace(input.WebhookSecret); secret != "" {
		row.WebhookSecret = secret
	}
	row.PublicKey = strings.TrimSpace(input.PublicKey)
	row.CallbackURL = strings.TrimSpace(input.CallbackURL)
	row.Enabled = input.Enabled

	candidate := s.buildConfig(snapshotFromRow(row))
	if err := paystack.ValidateConfig(candidate); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayConfigInvalid, err)
	}
	if err := s.repo.Upsert(row); err != nil {
		return nil, err
	}
	if err := cache.DelGatewayConfig(ctx, schoolID, provider); err != nil {
		logger.Warnw("gateway_config_cache_invalidate_failed", "school_id", schoolID, "error", err)
	}

	entry := newTxLog(constants.TxActionGatewayConfigUpdated, constants.ActorTypeAdmin, adminID, meta)
	entry.SchoolID = schoolID
	entry.Metadata["provider"] = provider
	entry.Metadata["enabled"] = row.Enabled
	if err := s.recorder.Record(entry); err != nil {
		logger.Warnw("gateway_config_tx_log_failed", "school_id", schoolID, "error", err)
	}
	return buildGatewayConfigView(row), nil
}

func (s *GatewayConfigService) loadSnapshot(ctx context.Context, schoolID uint, provider string) (*cache.GatewayConfigSnapshot, error) {
	if schoolID == 0 {
		return nil, nil
	}
	provider = strings.ToLower(strings.TrimSpace(provider))
	if cached, hit, err := cache.GetGatewayConfig(ctx, schoolID, provider); err == nil && hit {
		return cached, nil
	}
	row, err := s.repo.GetBySchoolAndProvider(schoolID, provider)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	snapshot := snapshotFromRow(row)
	if err := cache.SetGatewayConfig(ctx, snapshot); err != nil {
		logger.Debugw("gateway_config_cache_set_failed", "school_id", schoolID, "error", err)
	}
	return snapshot, nil
}

func (s *GatewayConfigService) buildConfig(snapshot *cache.GatewayConfigSnapshot) *paystack.Config {
	cfg := &paystack.Config{
		SecretKey:      snapshot.SecretKey,
		PublicKey:      snapshot.PublicKey,
		WebhookSecret:  snapshot.WebhookSecret,
		CallbackURL:    snapshot.CallbackURL,
		APIBaseURL:     s.cfg.APIBaseURL,
		Currency:       s.cfg.Currency,
		TimeoutSeconds: s.cfg.TimeoutSeconds,
	}
	if strings.TrimSpace(cfg.CallbackURL) == "" {
		cfg.CallbackURL = s.cfg.CallbackURL
	}
	cfg.Normalize()
	return cfg
}

func snapshotFromRow(row *models.SchoolGatewayConfig) *cache.GatewayConfigSnapshot {
	return &cache.GatewayConfigSnapshot{
		SchoolID:      row.SchoolID,
		Provider:      row.Provider,
		SecretKey:     row.SecretKey,
		PublicKey:     row.PublicKey,
		WebhookSecret: row.WebhookSecret,
		CallbackURL:   row.CallbackURL,
		Enabled:       row.Enabled,
	}
}

func buildGatewayConfigView(row *models.SchoolGatewayConfig) *GatewayConfigView {
	return &GatewayConfigView{
		SchoolID:         row.SchoolID,
		Provider:         row.Provider,
		SecretKeyMasked:  maskSecret(row.SecretKey),
		PublicKey:        row.PublicKey,
		HasWebhookSecret: strings.TrimSpace(row.WebhookSecret) != "",
		CallbackURL:      row.CallbackURL,
		Enabled:          row.Enabled,
		UpdatedAt:        row.UpdatedAt,
	}
}

func maskSecret(secret string) string {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return strings.Repeat("*", len(secret))
	}
	return secret[:4] + strings.Repeat("*", len(secret)-8) + secret[len(secret)-4:]
}
