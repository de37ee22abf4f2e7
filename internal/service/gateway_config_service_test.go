package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/schoolpay-next/internal/config"
	"github.com/schoolpay-next/internal/constants"
	"github.com/schoolpay-next/internal/models"
	"github.com/schoolpay-next/internal/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupGatewayConfigService(t *testing.T, name string) (*GatewayConfigService, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	models.DB = db
	if err := models.AutoMigrate(); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	cfg := config.PaystackConfig{DefaultWebhookSecret: "global-webhook", CallbackURL: "https://pay.example.test/callback"}
	recorder := NewTransactionRecorder(repository.NewTransactionLogRepository(db))
	return NewGatewayConfigService(cfg, repository.NewGatewayConfigRepository(db), recorder), db
}

func TestGatewayConfigUpdateMasksAndKeepsSecrets(t *testing.T) {
	svc, db := setupGatewayConfigService(t, "gateway_cfg_update")
	ctx := context.Background()

	if _, err := svc.Resolve(ctx, 5, constants.PaymentProviderPaystack); !errors.Is(err, ErrSchoolNotConfigured) {
		t.Fatalf("unconfigured school should fail, got %v", err)
	}
	if _, err := svc.Update(ctx, 1, 5, "stripe", GatewayConfigInput{SecretKey: "sk"}, RequestMeta{}); !errors.Is(err, ErrUnsupportedProvider) {
		t.Fatalf("expected unsupported provider, got %v", err)
	}
	if _, err := svc.Update(ctx, 1, 5, constants.PaymentProviderPaystack, GatewayConfigInput{Enabled: true}, RequestMeta{}); !errors.Is(err, ErrGatewayConfigInvalid) {
		t.Fatalf("missing secret key should be invalid, got %v", err)
	}

	view, err := svc.Update(ctx, 1, 5, " Paystack ", GatewayConfigInput{
		SecretKey: "sk_test_abcdefghijkl",
		PublicKey: "pk_test_1",
		Enabled:   true,
	}, RequestMeta{IP: "10.0.0.1"})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if view.SecretKeyMasked != "sk_t************ijkl" {
		t.Fatalf("unexpected masked secret: %s", view.SecretKeyMasked)
	}
	if view.HasWebhookSecret {
		t.Fatalf("webhook secret was not provided")
	}

	// 空密钥表示沿用旧值
	if _, err := svc.Update(ctx, 1, 5, constants.PaymentProviderPaystack, GatewayConfigInput{WebhookSecret: "whsec_school", Enabled: true}, RequestMeta{}); err != nil {
		t.Fatalf("second update failed: %v", err)
	}
	resolved, err := svc.Resolve(ctx, 5, constants.PaymentProviderPaystack)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if resolved.SecretKey != "sk_test_abcdefghijkl" || resolved.CallbackURL != "https://pay.example.test/callback" {
		t.Fatalf("unexpected resolved config: %+v", resolved)
	}
	if got := svc.ResolveWebhookSecret(ctx, 5, constants.PaymentProviderPaystack); got != "whsec_school" {
		t.Fatalf("school webhook secret want whsec_school got %s", got)
	}
	if got := svc.ResolveWebhookSecret(ctx, 0, constants.PaymentProviderPaystack); got != "global-webhook" {
		t.Fatalf("fallback webhook secret want global-webhook got %s", got)
	}

	var logs int64
	if err := db.Model(&models.TransactionLog{}).Where("action = ?", constants.TxActionGatewayConfigUpdated).Count(&logs).Error; err != nil {
		t.Fatalf("count logs failed: %v", err)
	}
	if logs != 2 {
		t.Fatalf("expected 2 gateway config logs, got %d", logs)
	}
}

func TestGatewayConfigDisabledIsNotResolved(t *testing.T) {
	svc, db := setupGatewayConfigService(t, "gateway_cfg_disabled")
	ctx := context.Background()
	if _, err := svc.Update(ctx, 1, 8, constants.PaymentProviderPaystack, GatewayConfigInput{SecretKey: "sk_live_x", Enabled: false}, RequestMeta{}); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	var stored models.SchoolGatewayConfig
	if err := db.Where("school_id = ?", 8).First(&stored).Error; err != nil {
		t.Fatalf("load config failed: %v", err)
	}
	if stored.Enabled {
		t.Fatalf("enabled=false must persist on create")
	}
	if _, err := svc.Resolve(ctx, 8, constants.PaymentProviderPaystack); !errors.Is(err, ErrSchoolNotConfigured) {
		t.Fatalf("disabled config should not resolve, got %v", err)
	}
	if _, err := svc.Get(9, constants.PaymentProviderPaystack); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing config should be not found, got %v", err)
	}
}
