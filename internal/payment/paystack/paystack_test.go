package paystack

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func newTestConfig(baseURL string) *Config {
	cfg := &Config{
		SecretKey:     " sk_test_123 ",
		WebhookSecret: "whsec_test",
		APIBaseURL:    baseURL + "/",
		CallbackURL:   "https://school.example.com/payments/callback",
	}
	cfg.Normalize()
	return cfg
}

func TestNormalizeAndValidateConfig(t *testing.T) {
	cfg := &Config{SecretKey: " sk_test_123 "}
	cfg.Normalize()
	if cfg.SecretKey != "sk_test_123" {
		t.Fatalf("unexpected secret key: %q", cfg.SecretKey)
	}
	if cfg.APIBaseURL != defaultAPIBaseURL {
		t.Fatalf("unexpected default api base url: %s", cfg.APIBaseURL)
	}
	if cfg.Currency != defaultCurrency {
		t.Fatalf("unexpected default currency: %s", cfg.Currency)
	}
	if err := ValidateConfig(cfg); err != nil {
		t.Fatalf("validate config failed: %v", err)
	}
	if err := ValidateConfig(&Config{APIBaseURL: defaultAPIBaseURL}); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("expected config invalid without secret key, got: %v", err)
	}
	if got := cfg.SigningSecret(); got != "sk_test_123" {
		t.Fatalf("signing secret should fall back to secret key, got: %s", got)
	}
}

func TestInitializeCharge(t *testing.T) {
	var captured map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transaction/initialize" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk_test_123" {
			t.Errorf("unexpected authorization header: %s", got)
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &captured)
		_, _ = w.Write([]byte(`{"status":true,"message":"Authorization URL created","data":{"authorization_url":"https://checkout.paystack.com/abc","access_code":"abc","reference":"SCH-1-ref"}}`))
	}))
	defer server.Close()

	result, err := NewClient().InitializeCharge(context.Background(), newTestConfig(server.URL), InitializeInput{
		Reference: "SCH-1-ref",
		Email:     "parent@example.com",
		Amount:    decimal.RequireFromString("5000.50"),
	})
	if err != nil {
		t.Fatalf("initialize charge failed: %v", err)
	}
	if result.AuthorizationURL != "https://checkout.paystack.com/abc" || result.AccessCode != "abc" {
		t.Fatalf("unexpected initialize result: %+v", result)
	}
	if captured["amount"] != "500050" {
		t.Fatalf("amount should be sent in kobo, got: %v", captured["amount"])
	}
	if captured["currency"] != defaultCurrency {
		t.Fatalf("unexpected currency: %v", captured["currency"])
	}
	if captured["callback_url"] != "https://school.example.com/payments/callback" {
		t.Fatalf("unexpected callback url: %v", captured["callback_url"])
	}
}

func TestInitializeChargeDeclinedCarriesGatewayMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status":false,"message":"Invalid key"}`))
	}))
	defer server.Close()

	_, err := NewClient().InitializeCharge(context.Background(), newTestConfig(server.URL), InitializeInput{
		Reference: "SCH-1-ref",
		Email:     "parent@example.com",
		Amount:    decimal.NewFromInt(100),
	})
	if !errors.Is(err, ErrDeclined) {
		t.Fatalf("expected declined error, got: %v", err)
	}
	if !strings.Contains(err.Error(), "Invalid key") {
		t.Fatalf("gateway message should be preserved: %v", err)
	}
}

func TestInitializeChargeServerErrorIsRequestFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := NewClient().InitializeCharge(context.Background(), newTestConfig(server.URL), InitializeInput{
		Reference: "SCH-1-ref",
		Email:     "parent@example.com",
		Amount:    decimal.NewFromInt(100),
	})
	if !errors.Is(err, ErrRequestFailed) {
		t.Fatalf("expected request failed error, got: %v", err)
	}
}

func TestVerifyCharge(t *testing.T) {
	cases := []struct {
		status  string
		success bool
		failed  bool
	}{
		{StatusSuccess, true, false},
		{StatusFailed, false, true},
		{StatusAbandoned, false, true},
		{"ongoing", false, false},
	}
	for _, tc := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/transaction/verify/SCH-1-ref" {
				t.Errorf("unexpected path: %s", r.URL.Path)
			}
			_, _ = w.Write([]byte(`{"status":true,"message":"Verification successful","data":{"id":4099260516,"status":"` + tc.status + `","reference":"SCH-1-ref","amount":500000,"currency":"NGN","channel":"card","gateway_response":"Approved","paid_at":"2026-03-01T10:00:00Z"}}`))
		}))
		result, err := NewClient().VerifyCharge(context.Background(), newTestConfig(server.URL), "SCH-1-ref")
		server.Close()
		if err != nil {
			t.Fatalf("verify %s failed: %v", tc.status, err)
		}
		if result.Success != tc.success || result.Failed() != tc.failed {
			t.Fatalf("status %s: success=%v failed=%v", tc.status, result.Success, result.Failed())
		}
		if !result.Amount.Equal(decimal.NewFromInt(5000)) {
			t.Fatalf("unexpected amount: %s", result.Amount)
		}
		if result.TransactionID != "4099260516" {
			t.Fatalf("unexpected transaction id: %s", result.TransactionID)
		}
		if result.PaidAt == nil {
			t.Fatalf("paid_at should be parsed")
		}
	}
}

func TestInitiateRefund(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]interface{}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &payload)
		if payload["transaction"] != "SCH-1-ref" || payload["amount"] != "200000" {
			t.Errorf("unexpected refund payload: %v", payload)
		}
		_, _ = w.Write([]byte(`{"status":true,"message":"Refund has been queued for processing","data":{"id":3018284,"status":"pending","transaction":{"reference":"SCH-1-ref"}}}`))
	}))
	defer server.Close()

	result, err := NewClient().InitiateRefund(context.Background(), newTestConfig(server.URL), RefundInput{
		TransactionReference: "SCH-1-ref",
		Amount:               decimal.NewFromInt(2000),
	})
	if err != nil {
		t.Fatalf("initiate refund failed: %v", err)
	}
	if !result.Accepted || result.RefundReference != "3018284" {
		t.Fatalf("unexpected refund result: %+v", result)
	}
}

func TestInitiateRefundFailedStatusIsDeclined(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":true,"message":"Refund","data":{"id":1,"status":"failed"}}`))
	}))
	defer server.Close()

	result, err := NewClient().InitiateRefund(context.Background(), newTestConfig(server.URL), RefundInput{
		TransactionReference: "SCH-1-ref",
		Amount:               decimal.NewFromInt(10),
	})
	if !errors.Is(err, ErrDeclined) {
		t.Fatalf("expected declined error, got: %v", err)
	}
	if result == nil || result.Accepted {
		t.Fatalf("declined refund should not be accepted: %+v", result)
	}
}

func TestVerifyAndParseWebhookChargeSuccess(t *testing.T) {
	body := []byte(`{"event":"charge.success","data":{"reference":"SCH-1-ref","status":"success","amount":500000,"currency":"NGN","gateway_response":"Successful"}}`)
	headers := map[string]string{"X-Paystack-Signature": ComputeSignature("whsec_test", body)}

	event, err := VerifyAndParseWebhook("whsec_test", headers, body)
	if err != nil {
		t.Fatalf("verify webhook failed: %v", err)
	}
	if event.Event != "charge.success" || event.Reference != "SCH-1-ref" {
		t.Fatalf("unexpected webhook event: %+v", event)
	}
	if !event.Amount.Equal(decimal.NewFromInt(5000)) {
		t.Fatalf("unexpected amount: %s", event.Amount)
	}
}

func TestVerifyAndParseWebhookRefundProcessed(t *testing.T) {
	body := []byte(`{"event":"refund.processed","data":{"id":3018284,"status":"processed","transaction_reference":"SCH-1-ref","refund_reference":"RF-9","amount":200000}}`)
	event, err := VerifyAndParseWebhook("whsec_test", map[string]string{SignatureHeader: ComputeSignature("whsec_test", body)}, body)
	if err != nil {
		t.Fatalf("verify refund webhook failed: %v", err)
	}
	if event.TransactionReference != "SCH-1-ref" || event.Reference != "SCH-1-ref" {
		t.Fatalf("unexpected transaction reference: %+v", event)
	}
	if event.RefundReference != "RF-9" {
		t.Fatalf("unexpected refund reference: %s", event.RefundReference)
	}
}

func TestVerifyAndParseWebhookInvalidSignature(t *testing.T) {
	body := []byte(`{"event":"charge.success","data":{"reference":"SCH-1-ref"}}`)
	cases := []map[string]string{
		nil,
		{SignatureHeader: "deadbeef"},
		{SignatureHeader: ComputeSignature("other-secret", body)},
	}
	for _, headers := range cases {
		if _, err := VerifyAndParseWebhook("whsec_test", headers, body); !errors.Is(err, ErrSignatureInvalid) {
			t.Fatalf("expected signature invalid for headers %v, got: %v", headers, err)
		}
	}
	if _, err := VerifyAndParseWebhook("", map[string]string{SignatureHeader: "x"}, body); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("expected config invalid without secret, got: %v", err)
	}
}

func TestToMinorAmount(t *testing.T) {
	if got, err := ToMinorAmount(decimal.RequireFromString("12.34")); err != nil || got != 1234 {
		t.Fatalf("unexpected minor amount: %d err=%v", got, err)
	}
	if _, err := ToMinorAmount(decimal.RequireFromString("1.001")); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("expected precision error, got: %v", err)
	}
	if _, err := ToMinorAmount(decimal.Zero); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("expected non-positive error, got: %v", err)
	}
	if got := FromMinorAmount(1234).String(); got != "12.34" {
		t.Fatalf("unexpected major amount: %s", got)
	}
}
