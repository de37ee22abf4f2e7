package models

import (
	"database/sql/driver"
	"encoding/json"
	"strings"
)

// ProviderMetadata 按网关区分的元数据，Kind 决定哪个分支有效
type ProviderMetadata struct {
	Kind     string            `json:"kind"`
	Paystack *PaystackMetadata `json:"paystack,omitempty"`
}

// PaystackMetadata Paystack 交易元数据
type PaystackMetadata struct {
	Reference        string `json:"reference"`
	AccessCode       string `json:"access_code,omitempty"`
	AuthorizationURL string `json:"authorization_url,omitempty"`
	TransactionID    string `json:"transaction_id,omitempty"`
	GatewayResponse  string `json:"gateway_response,omitempty"`
	RefundReference  string `json:"refund_reference,omitempty"`
	VerifyPayload    JSON   `json:"verify_payload,omitempty"`
	WebhookPayload   JSON   `json:"webhook_payload,omitempty"`
}

// NewPaystackMetadata 创建 Paystack 元数据
func NewPaystackMetadata(reference string) ProviderMetadata {
	return ProviderMetadata{
		Kind:     "paystack",
		Paystack: &PaystackMetadata{Reference: strings.TrimSpace(reference)},
	}
}

// Reference 返回网关交易参考号
func (m ProviderMetadata) Reference() string {
	if m.Paystack != nil {
		return m.Paystack.Reference
	}
	return ""
}

// Value 实现 driver.Valuer 接口
func (m ProviderMetadata) Value() (driver.Value, error) {
	if m.Kind == "" && m.Paystack == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan 实现 sql.Scanner 接口
func (m *ProviderMetadata) Scan(value interface{}) error {
	raw, ok, err := scanJSONBytes(value)
	if err != nil || !ok {
		*m = ProviderMetadata{}
		return err
	}
	return json.Unmarshal(raw, m)
}
