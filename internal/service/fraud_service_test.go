package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/schoolpay-next/internal/anomaly"
	"github.com/schoolpay-next/internal/constants"
	"github.com/schoolpay-next/internal/models"
)

func TestAnomalyScaleForScore(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{0, constants.AnomalyScaleLow},
		{39.99, constants.AnomalyScaleLow},
		{40, constants.AnomalyScaleMedium},
		{69.99, constants.AnomalyScaleMedium},
		{70, constants.AnomalyScaleHigh},
		{100, constants.AnomalyScaleHigh},
	}
	for _, tt := range tests {
		if got := anomalyScaleForScore(tt.score); got != tt.want {
			t.Fatalf("score %v: want %s got %s", tt.score, tt.want, got)
		}
	}
}

func TestBuildFeatureVector(t *testing.T) {
	env := setupPaymentTestEnv(t, "fraud_features", newOracleServer(t, http.StatusOK, 10, 40))
	first := env.confirm(t, "5000")

	features, err := env.fraud.BuildFeatureVector(first, "device-a")
	if err != nil {
		t.Fatalf("build features failed: %v", err)
	}
	if features.FeeAmountDue != 5000 || features.AmountPaid != 5000 {
		t.Fatalf("unexpected amounts: %+v", features)
	}
	if features.StudentType != constants.StudentTypeBoarder {
		t.Fatalf("want boarder got %s", features.StudentType)
	}
	if features.PaymentMethod != constants.PaymentMethodCard {
		t.Fatalf("want card got %s", features.PaymentMethod)
	}
	// 发起时已记录 device-a
	if features.IsNewDevice {
		t.Fatalf("device-a was recorded at initiation")
	}
	other, err := env.fraud.BuildFeatureVector(first, "device-b")
	if err != nil {
		t.Fatalf("build features failed: %v", err)
	}
	if !other.IsNewDevice {
		t.Fatalf("device-b should be new")
	}
	if _, err := time.Parse(time.RFC3339, features.Timestamp); err != nil {
		t.Fatalf("timestamp must be RFC3339: %v", err)
	}
}

func TestFraudRetryExhaustsThenRequeues(t *testing.T) {
	env := setupPaymentTestEnv(t, "fraud_retry", nil)
	payment := env.initiate(t, "5000")

	var entry models.FraudCheckQueue
	if err := env.db.Where("payment_id = ?", payment.ID).First(&entry).Error; err != nil {
		t.Fatalf("queue entry missing: %v", err)
	}

	for i := 0; i < defaultFraudRetryMaxAttempts; i++ {
		if err := env.fraud.ProcessRetry(context.Background(), entry.ID); err != nil {
			t.Fatalf("retry %d failed: %v", i, err)
		}
	}
	env.db.First(&entry, entry.ID)
	if entry.Status != constants.FraudCheckStatusFailed || entry.Retries != defaultFraudRetryMaxAttempts {
		t.Fatalf("want failed after %d retries got %s/%d", defaultFraudRetryMaxAttempts, entry.Status, entry.Retries)
	}
	if got := countTxLogs(t, env.db, constants.TxActionFraudRetryExhausted); got != 1 {
		t.Fatalf("want one fraud_retry_exhausted log got %d", got)
	}
	// 失败条目不会被继续处理
	if err := env.fraud.ProcessRetry(context.Background(), entry.ID); err != nil {
		t.Fatalf("process failed entry: %v", err)
	}

	if err := env.fraud.RequeueFailed(1, entry.ID, RequestMeta{}); err != nil {
		t.Fatalf("requeue failed: %v", err)
	}
	if err := env.fraud.RequeueFailed(1, entry.ID, RequestMeta{}); !errors.Is(err, ErrFraudQueueEntryNotFailed) {
		t.Fatalf("want ErrFraudQueueEntryNotFailed got %v", err)
	}

	env.fraud.oracle = anomaly.NewClient(newOracleServer(t, http.StatusOK, 80, 40).URL, "", time.Second)
	processed, err := env.fraud.SweepQueued(context.Background())
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if processed != 1 {
		t.Fatalf("want 1 processed got %d", processed)
	}
	env.db.First(&entry, entry.ID)
	if entry.Status != constants.FraudCheckStatusProcessed {
		t.Fatalf("want processed got %s", entry.Status)
	}
	if got := env.fraud.LatestScore(payment.ID); got != 80 {
		t.Fatalf("want score 80 from retry got %v", got)
	}
}
