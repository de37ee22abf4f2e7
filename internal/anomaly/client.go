package anomaly

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
)

var (
	ErrNotConfigured   = errors.New("anomaly oracle not configured")
	ErrRequestFailed   = errors.New("anomaly oracle request failed")
	ErrResponseInvalid = errors.New("anomaly oracle response invalid")
)

const (
	defaultTimeout = 5 * time.Second
	apiKeyHeader   = "X-API-Key"
	// scoreScale 重建误差达到阈值的该倍数时记满分
	scoreScale = 2.5
)

// FeatureVector 风控特征向量
type FeatureVector struct {
	FeeAmountDue             float64 `json:"fee_amount_due"`
	AmountPaid               float64 `json:"amount_paid"`
	PaymentMethod            string  `json:"payment_method"`
	StudentType              string  `json:"student_type"`
	IsNewDevice              bool    `json:"is_new_device"`
	StudentNameMatch         bool    `json:"student_name_match"`
	TimeSinceLastPaymentDays float64 `json:"time_since_last_payment_days"`
	Timestamp                string  `json:"timestamp"`
}

// Result 模型返回
type Result struct {
	ReconstructionError float64 `json:"reconstruction_error"`
	Threshold           float64 `json:"threshold"`
	AnomalyScale        string  `json:"anomaly_scale"`
}

// Client 异常检测模型 HTTP 客户端
type Client struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewClient 创建客户端，timeout<=0 时使用默认值
func NewClient(endpoint, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		endpoint: strings.TrimSpace(endpoint),
		apiKey:   strings.TrimSpace(apiKey),
		client:   &http.Client{Timeout: timeout},
	}
}

// Score 提交特征向量获取重建误差
func (c *Client) Score(ctx context.Context, features FeatureVector) (*Result, error) {
	if c == nil || c.endpoint == "" {
		return nil, ErrNotConfigured
	}
	body, err := json.Marshal(features)
	if err != nil {
		return nil, fmt.Errorf("%w: encode features failed", ErrRequestFailed)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build request failed", ErrRequestFailed)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d %s", ErrRequestFailed, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var out Result
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode response failed", ErrResponseInvalid)
	}
	if math.IsNaN(out.ReconstructionError) || math.IsInf(out.ReconstructionError, 0) || out.ReconstructionError < 0 {
		return nil, fmt.Errorf("%w: reconstruction_error out of range", ErrResponseInvalid)
	}
	if math.IsNaN(out.Threshold) || math.IsInf(out.Threshold, 0) || out.Threshold <= 0 {
		return nil, fmt.Errorf("%w: threshold must be positive", ErrResponseInvalid)
	}
	out.AnomalyScale = strings.TrimSpace(out.AnomalyScale)
	return &out, nil
}

// FraudScore 将重建误差换算为 0-100 的风险分
func FraudScore(reconstructionError, threshold float64) float64 {
	if threshold <= 0 || math.IsNaN(reconstructionError) || math.IsNaN(threshold) {
		return 0
	}
	score := reconstructionError / (threshold * scoreScale) * 100
	if score > 100 {
		return 100
	}
	if score < 0 {
		return 0
	}
	return math.Round(score*100) / 100
}
