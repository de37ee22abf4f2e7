package anomaly

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestScoreSendsFeatureVector(t *testing.T) {
	var got FeatureVector
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(apiKeyHeader) != "oracle-key" {
			t.Errorf("missing api key header")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request failed: %v", err)
		}
		_, _ = w.Write([]byte(`{"reconstruction_error":50,"threshold":40,"anomaly_scale":"Medium"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "oracle-key", time.Second)
	result, err := client.Score(context.Background(), FeatureVector{
		FeeAmountDue:             5000,
		AmountPaid:               5000,
		PaymentMethod:            "card",
		StudentType:              "boarder",
		IsNewDevice:              true,
		StudentNameMatch:         true,
		TimeSinceLastPaymentDays: 30,
		Timestamp:                "2026-03-01T10:00:00Z",
	})
	if err != nil {
		t.Fatalf("score failed: %v", err)
	}
	if result.ReconstructionError != 50 || result.Threshold != 40 || result.AnomalyScale != "Medium" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if got.PaymentMethod != "card" || got.StudentType != "boarder" || !got.IsNewDevice {
		t.Fatalf("unexpected request vector: %+v", got)
	}
	if score := FraudScore(result.ReconstructionError, result.Threshold); score != 50 {
		t.Fatalf("expected score 50, got %v", score)
	}
}

func TestScoreErrors(t *testing.T) {
	if _, err := NewClient("", "", 0).Score(context.Background(), FeatureVector{}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected not configured, got: %v", err)
	}

	cases := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"server error", http.StatusInternalServerError, `boom`, ErrRequestFailed},
		{"bad json", http.StatusOK, `{`, ErrResponseInvalid},
		{"zero threshold", http.StatusOK, `{"reconstruction_error":1,"threshold":0}`, ErrResponseInvalid},
		{"negative error", http.StatusOK, `{"reconstruction_error":-1,"threshold":1}`, ErrResponseInvalid},
	}
	for _, tc := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(tc.body))
		}))
		_, err := NewClient(server.URL, "", time.Second).Score(context.Background(), FeatureVector{})
		server.Close()
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestFraudScoreBounds(t *testing.T) {
	cases := []struct {
		err, threshold, want float64
	}{
		{50, 40, 50},
		{0, 40, 0},
		{1000, 1, 100},
		{10, 0, 0},
		{-5, 10, 0},
		{25, 10, 100},
	}
	for _, tc := range cases {
		got := FraudScore(tc.err, tc.threshold)
		if got != tc.want {
			t.Fatalf("FraudScore(%v,%v)=%v want %v", tc.err, tc.threshold, got, tc.want)
		}
		if got < 0 || got > 100 {
			t.Fatalf("score out of bounds: %v", got)
		}
	}
}
