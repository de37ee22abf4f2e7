package cache

import (
	"context"
	"fmt"
	"time"
)

const gatewayConfigCacheTTL = 5 * time.Minute

// GatewayConfigSnapshot 学校网关凭据快照
type GatewayConfigSnapshot struct {
	SchoolID      uint   `json:"school_id"`
	Provider      string `json:"provider"`
	SecretKey     string `json:"secret_key"`
	PublicKey     string `json:"public_key"`
	WebhookSecret string `json:"webhook_secret"`
	CallbackURL   string `json:"callback_url"`
	Enabled       bool   `json:"enabled"`
}

func gatewayConfigKey(schoolID uint, provider string) string {
	return fmt.Sprintf("gateway:%d:%s", schoolID, provider)
}

// GetGatewayConfig 获取网关凭据快照
func GetGatewayConfig(ctx context.Context, schoolID uint, provider string) (*GatewayConfigSnapshot, bool, error) {
	if schoolID == 0 || provider == "" {
		return nil, false, nil
	}
	var snapshot GatewayConfigSnapshot
	hit, err := GetJSON(ctx, gatewayConfigKey(schoolID, provider), &snapshot)
	if err != nil || !hit {
		return nil, hit, err
	}
	return &snapshot, true, nil
}

// SetGatewayConfig 写入网关凭据快照
func SetGatewayConfig(ctx context.Context, snapshot *GatewayConfigSnapshot) error {
	if snapshot == nil || snapshot.SchoolID == 0 {
		return nil
	}
	return SetJSON(ctx, gatewayConfigKey(snapshot.SchoolID, snapshot.Provider), snapshot, gatewayConfigCacheTTL)
}

// DelGatewayConfig 删除网关凭据快照
func DelGatewayConfig(ctx context.Context, schoolID uint, provider string) error {
	if schoolID == 0 {
		return nil
	}
	return Del(ctx, gatewayConfigKey(schoolID, provider))
}
