package paystack

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrConfigInvalid    = errors.New("paystack config invalid")
	ErrRequestFailed    = errors.New("paystack request failed")
	ErrResponseInvalid  = errors.New("paystack response invalid")
	ErrSignatureInvalid = errors.New("paystack signature invalid")
	ErrDeclined         = errors.New("paystack declined")
)

const (
	defaultAPIBaseURL = "https://api.paystack.co"
	defaultCurrency   = "NGN"
	defaultTimeout    = 15 * time.Second

	// SignatureHeader Webhook 签名请求头
	SignatureHeader = "x-paystack-signature"
)

// 交易状态
const (
	StatusSuccess   = "success"
	StatusFailed    = "failed"
	StatusAbandoned = "abandoned"
	StatusReversed  = "reversed"
	StatusPending   = "pending"
)

// Config Paystack 学校级凭据与全局参数。
type Config struct {
	SecretKey      string `json:"secret_key"`
	PublicKey      string `json:"public_key"`
	WebhookSecret  string `json:"webhook_secret"`
	CallbackURL    string `json:"callback_url"`
	APIBaseURL     string `json:"api_base_url"`
	Currency       string `json:"currency"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// InitializeInput 发起收款输入。
type InitializeInput struct {
	Reference   string
	Email       string
	Amount      decimal.Decimal
	Currency    string
	CallbackURL string
	Metadata    map[string]interface{}
}

// InitializeResult 发起收款返回。
type InitializeResult struct {
	Reference        string
	AccessCode       string
	AuthorizationURL string
	Raw              map[string]interface{}
}

// VerifyResult 查询收款返回。
type VerifyResult struct {
	Reference       string
	TransactionID   string
	Status          string
	Success         bool
	Amount          decimal.Decimal
	Currency        string
	Channel         string
	GatewayResponse string
	PaidAt          *time.Time
	Raw             map[string]interface{}
}

// Failed 交易是否已确定失败（pending/ongoing 不算）。
func (r *VerifyResult) Failed() bool {
	if r == nil {
		return false
	}
	switch r.Status {
	case StatusFailed, StatusAbandoned, StatusReversed:
		return true
	default:
		return false
	}
}

// RefundInput 发起退款输入。
type RefundInput struct {
	TransactionReference string
	Amount               decimal.Decimal
	Currency             string
	Reason               string
}

// RefundResult 发起退款返回。
type RefundResult struct {
	Accepted        bool
	RefundReference string
	Status          string
	Raw             map[string]interface{}
}

// WebhookEvent Paystack Webhook 解析结果。
type WebhookEvent struct {
	Event                string
	Reference            string
	TransactionReference string
	RefundReference      string
	Status               string
	Amount               decimal.Decimal
	Currency             string
	GatewayResponse      string
	Raw                  map[string]interface{}
}

// ValidateConfig 校验配置。
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: config is nil", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return fmt.Errorf("%w: secret_key is required", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		return fmt.Errorf("%w: api_base_url is required", ErrConfigInvalid)
	}
	if _, err := url.ParseRequestURI(strings.TrimSpace(cfg.APIBaseURL)); err != nil {
		return fmt.Errorf("%w: api_base_url is invalid", ErrConfigInvalid)
	}
	if cb := strings.TrimSpace(cfg.CallbackURL); cb != "" {
		if _, err := url.ParseRequestURI(cb); err != nil {
			return fmt.Errorf("%w: callback_url is invalid", ErrConfigInvalid)
		}
	}
	return nil
}

// Normalize 去除空白并补齐默认值。
func (c *Config) Normalize() {
	c.SecretKey = strings.TrimSpace(c.SecretKey)
	c.PublicKey = strings.TrimSpace(c.PublicKey)
	c.WebhookSecret = strings.TrimSpace(c.WebhookSecret)
	c.CallbackURL = strings.TrimSpace(c.CallbackURL)
	c.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.APIBaseURL), "/")
	if c.APIBaseURL == "" {
		c.APIBaseURL = defaultAPIBaseURL
	}
	c.Currency = strings.ToUpper(strings.TrimSpace(c.Currency))
	if c.Currency == "" {
		c.Currency = defaultCurrency
	}
	if c.TimeoutSeconds < 0 {
		c.TimeoutSeconds = 0
	}
}

// SigningSecret 返回 Webhook 验签密钥，未单独配置时使用 secret key。
func (c *Config) SigningSecret() string {
	if c == nil {
		return ""
	}
	if secret := strings.TrimSpace(c.WebhookSecret); secret != "" {
		return secret
	}
	return strings.TrimSpace(c.SecretKey)
}

func (c *Config) timeout() time.Duration {
	if c == nil || c.TimeoutSeconds <= 0 {
		return defaultTimeout
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Client Paystack HTTP 客户端，HTTPClient 为空时按配置超时创建。
type Client struct {
	HTTPClient *http.Client
}

// NewClient 创建客户端。
func NewClient() *Client {
	return &Client{}
}

// InitializeCharge 发起收款，返回跳转地址。
func (cl *Client) InitializeCharge(ctx context.Context, cfg *Config, input InitializeInput) (*InitializeResult, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	reference := strings.TrimSpace(input.Reference)
	if reference == "" {
		return nil, fmt.Errorf("%w: reference is required", ErrConfigInvalid)
	}
	email := strings.TrimSpace(input.Email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrConfigInvalid)
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = cfg.Currency
	}
	minor, err := ToMinorAmount(input.Amount)
	if err != nil {
		return nil, err
	}
	callbackURL := strings.TrimSpace(input.CallbackURL)
	if callbackURL == "" {
		callbackURL = cfg.CallbackURL
	}

	payload := map[string]interface{}{
		"email":     email,
		"amount":    strconv.FormatInt(minor, 10),
		"reference": reference,
		"currency":  currency,
	}
	if callbackURL != "" {
		payload["callback_url"] = callbackURL
	}
	if len(input.Metadata) > 0 {
		payload["metadata"] = input.Metadata
	}

	data, err := cl.call(ctx, cfg, http.MethodPost, "/transaction/initialize", payload)
	if err != nil {
		return nil, err
	}
	result := &InitializeResult{
		Reference:        readString(data, "reference"),
		AccessCode:       readString(data, "access_code"),
		AuthorizationURL: readString(data, "authorization_url"),
		Raw:              data,
	}
	if result.AuthorizationURL == "" {
		return nil, fmt.Errorf("%w: missing authorization_url", ErrResponseInvalid)
	}
	if result.Reference == "" {
		result.Reference = reference
	}
	return result, nil
}

// VerifyCharge 按引用号查询交易结果。
func (cl *Client) VerifyCharge(ctx context.Context, cfg *Config, reference string) (*VerifyResult, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, fmt.Errorf("%w: reference is required", ErrConfigInvalid)
	}
	data, err := cl.call(ctx, cfg, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil)
	if err != nil {
		return nil, err
	}
	status := strings.ToLower(readString(data, "status"))
	result := &VerifyResult{
		Reference:       readString(data, "reference"),
		TransactionID:   readString(data, "id"),
		Status:          status,
		Success:         status == StatusSuccess,
		Amount:          FromMinorAmount(readInt64(data, "amount")),
		Currency:        strings.ToUpper(readString(data, "currency")),
		Channel:         strings.ToLower(readString(data, "channel")),
		GatewayResponse: readString(data, "gateway_response"),
		Raw:             data,
	}
	if result.Reference == "" {
		result.Reference = reference
	}
	if paidAt := readString(data, "paid_at"); paidAt != "" {
		if parsed, err := time.Parse(time.RFC3339, paidAt); err == nil {
			result.PaidAt = &parsed
		}
	}
	return result, nil
}

// InitiateRefund 对已成功交易发起退款。
func (cl *Client) InitiateRefund(ctx context.Context, cfg *Config, input RefundInput) (*RefundResult, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	reference := strings.TrimSpace(input.TransactionReference)
	if reference == "" {
		return nil, fmt.Errorf("%w: transaction reference is required", ErrConfigInvalid)
	}
	minor, err := ToMinorAmount(input.Amount)
	if err != nil {
		return nil, err
	}
	payload := map[string]interface{}{
		"transaction": reference,
		"amount":      strconv.FormatInt(minor, 10),
	}
	if currency := strings.ToUpper(strings.TrimSpace(input.Currency)); currency != "" {
		payload["currency"] = currency
	}
	if reason := strings.TrimSpace(input.Reason); reason != "" {
		payload["merchant_note"] = reason
	}

	data, err := cl.call(ctx, cfg, http.MethodPost, "/refund", payload)
	if err != nil {
		return nil, err
	}
	status := strings.ToLower(readString(data, "status"))
	result := &RefundResult{
		RefundReference: readString(data, "refund_reference"),
		Status:          status,
		Raw:             data,
	}
	if result.RefundReference == "" {
		result.RefundReference = readString(data, "id")
	}
	if status == StatusFailed || status == StatusReversed {
		return result, fmt.Errorf("%w: refund status %s", ErrDeclined, status)
	}
	result.Accepted = true
	return result, nil
}

// VerifyAndParseWebhook 校验签名后解析 Webhook。
func VerifyAndParseWebhook(secret string, headers map[string]string, body []byte) (*WebhookEvent, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("%w: webhook secret is required", ErrConfigInvalid)
	}
	if err := VerifySignature(secret, getHeaderValue(headers, SignatureHeader), body); err != nil {
		return nil, err
	}
	return ParseWebhook(body)
}

// VerifySignature 校验原始请求体的 HMAC-SHA512 签名。
func VerifySignature(secret, signature string, body []byte) error {
	signature = strings.ToLower(strings.TrimSpace(signature))
	if signature == "" {
		return fmt.Errorf("%w: %s is required", ErrSignatureInvalid, SignatureHeader)
	}
	if len(body) == 0 {
		return fmt.Errorf("%w: body is empty", ErrSignatureInvalid)
	}
	expected := ComputeSignature(secret, body)
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return fmt.Errorf("%w: verify failed", ErrSignatureInvalid)
	}
	return nil
}

// ComputeSignature 计算请求体签名（小写 hex）。
func ComputeSignature(secret string, body []byte) string {
	h := hmac.New(sha512.New, []byte(secret))
	_, _ = h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// ParseWebhook 解析已验签的 Webhook 请求体。
func ParseWebhook(body []byte) (*WebhookEvent, error) {
	raw, err := decodeRawMap(body)
	if err != nil {
		return nil, err
	}
	eventType := strings.TrimSpace(readString(raw, "event"))
	if eventType == "" {
		return nil, fmt.Errorf("%w: missing event", ErrResponseInvalid)
	}
	data := readMap(raw, "data")
	event := &WebhookEvent{
		Event:           eventType,
		Reference:       readString(data, "reference"),
		RefundReference: readString(data, "refund_reference"),
		Status:          strings.ToLower(readString(data, "status")),
		Amount:          FromMinorAmount(readInt64(data, "amount")),
		Currency:        strings.ToUpper(readString(data, "currency")),
		GatewayResponse: readString(data, "gateway_response"),
		Raw:             raw,
	}
	event.TransactionReference = readString(data, "transaction_reference")
	if event.TransactionReference == "" {
		event.TransactionReference = readString(readMap(data, "transaction"), "reference")
	}
	if event.Reference == "" {
		event.Reference = event.TransactionReference
	}
	if event.TransactionReference == "" {
		event.TransactionReference = event.Reference
	}
	if strings.HasPrefix(eventType, "refund.") && event.RefundReference == "" {
		event.RefundReference = readString(data, "id")
	}
	return event, nil
}

// ToMinorAmount 元转为最小货币单位（kobo）。
func ToMinorAmount(amount decimal.Decimal) (int64, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return 0, fmt.Errorf("%w: amount must be greater than zero", ErrConfigInvalid)
	}
	minor := amount.Shift(2)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, fmt.Errorf("%w: amount precision is invalid", ErrConfigInvalid)
	}
	return minor.IntPart(), nil
}

// FromMinorAmount 最小货币单位转为元。
func FromMinorAmount(minor int64) decimal.Decimal {
	return decimal.NewFromInt(minor).Shift(-2)
}

// call 发送请求并解出 data 字段；4xx 或 status=false 视为业务拒绝。
func (cl *Client) call(ctx context.Context, cfg *Config, method, path string, payload map[string]interface{}) (map[string]interface{}, error) {
	respBody, statusCode, err := cl.doJSONRequest(ctx, cfg, method, path, payload)
	if err != nil {
		return nil, err
	}
	if statusCode >= 500 {
		return nil, fmt.Errorf("%w: status %d", ErrRequestFailed, statusCode)
	}
	raw, err := decodeRawMap(respBody)
	if err != nil {
		if statusCode >= 400 {
			return nil, fmt.Errorf("%w: status %d", ErrDeclined, statusCode)
		}
		return nil, err
	}
	message := readString(raw, "message")
	ok, _ := raw["status"].(bool)
	if statusCode >= 400 || !ok {
		if message == "" {
			message = fmt.Sprintf("status %d", statusCode)
		}
		return nil, fmt.Errorf("%w: %s", ErrDeclined, message)
	}
	data := readMap(raw, "data")
	if data == nil {
		return nil, fmt.Errorf("%w: missing data object", ErrResponseInvalid)
	}
	return data, nil
}

func (cl *Client) doJSONRequest(ctx context.Context, cfg *Config, method, path string, payload map[string]interface{}) ([]byte, int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	var reader io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: encode request failed", ErrRequestFailed)
		}
		reader = bytes.NewReader(encoded)
	}
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/") + path
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: build request failed", ErrRequestFailed)
	}
	req.Header.Set("Authorization", "Bearer "+cfg.SecretKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	httpClient := cl.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.timeout()}
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%w: read response failed", ErrResponseInvalid)
	}
	return body, resp.StatusCode, nil
}

func decodeRawMap(body []byte) (map[string]interface{}, error) {
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	var raw map[string]interface{}
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: decode response failed", ErrResponseInvalid)
	}
	return raw, nil
}

func getHeaderValue(headers map[string]string, key string) string {
	if len(headers) == 0 || strings.TrimSpace(key) == "" {
		return ""
	}
	for h, value := range headers {
		if strings.EqualFold(strings.TrimSpace(h), key) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func readString(raw map[string]interface{}, key string) string {
	if raw == nil || strings.TrimSpace(key) == "" {
		return ""
	}
	value, ok := raw[key]
	if !ok || value == nil {
		return ""
	}
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case json.Number:
		return strings.TrimSpace(typed.String())
	case float64:
		return strconv.FormatInt(int64(typed), 10)
	case int64:
		return strconv.FormatInt(typed, 10)
	case int:
		return strconv.Itoa(typed)
	default:
		return ""
	}
}

func readMap(raw map[string]interface{}, key string) map[string]interface{} {
	if raw == nil || strings.TrimSpace(key) == "" {
		return nil
	}
	mapped, ok := raw[key].(map[string]interface{})
	if !ok {
		return nil
	}
	return mapped
}

func readInt64(raw map[string]interface{}, key string) int64 {
	if raw == nil || strings.TrimSpace(key) == "" {
		return 0
	}
	value, ok := raw[key]
	if !ok || value == nil {
		return 0
	}
	switch typed := value.(type) {
	case int64:
		return typed
	case int:
		return int64(typed)
	case float64:
		return int64(typed)
	case json.Number:
		if parsed, err := typed.Int64(); err == nil {
			return parsed
		}
		floatVal, err := typed.Float64()
		if err != nil {
			return 0
		}
		return int64(floatVal)
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(typed), 10, 64)
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}
