package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/schoolpay-next/internal/config"
	"github.com/schoolpay-next/internal/constants"
	"github.com/schoolpay-next/internal/models"
	"github.com/schoolpay-next/internal/provider"
	"github.com/schoolpay-next/internal/queue"

	"github.com/glebarez/sqlite"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"
)

type workerFixture struct {
	db       *gorm.DB
	consumer *Consumer
	school   *models.School
	student  *models.Student
	fee      *models.Fee
}

func setupWorkerFixture(t *testing.T, name string) *workerFixture {
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

	school := &models.School{Code: "WRK", Name: "Worker Academy", Currency: "NGN"}
	if err := db.Create(school).Error; err != nil {
		t.Fatalf("create school failed: %v", err)
	}
	student := &models.Student{
		SchoolID:       school.ID,
		AdmissionNo:    "WRK/001",
		Name:           "Chidi Eze",
		PasswordHash:   "x",
		EnrollmentType: constants.EnrollmentTypeDay,
		Status:         constants.StudentStatusActive,
	}
	if err := db.Create(student).Error; err != nil {
		t.Fatalf("create student failed: %v", err)
	}
	fee := &models.Fee{
		SchoolID:  school.ID,
		Title:     "Lab levy",
		AmountDue: models.MustMoney("1200"),
		DueDate:   time.Now().Add(-48 * time.Hour),
	}
	if err := db.Create(fee).Error; err != nil {
		t.Fatalf("create fee failed: %v", err)
	}

	cfg := &config.Config{}
	cfg.Fraud.RetryIntervalSeconds = 60
	return &workerFixture{
		db:       db,
		consumer: NewConsumer(provider.NewContainer(cfg)),
		school:   school,
		student:  student,
		fee:      fee,
	}
}

func (f *workerFixture) createPayment(t *testing.T, reference, status string) *models.Payment {
	t.Helper()
	payment := &models.Payment{
		SchoolID:  f.school.ID,
		StudentID: f.student.ID,
		FeeID:     f.fee.ID,
		Amount:    models.MustMoney("600"),
		Currency:  "NGN",
		Provider:  constants.PaymentProviderPaystack,
		Reference: reference,
		Status:    status,
	}
	if err := f.db.Create(payment).Error; err != nil {
		t.Fatalf("create payment failed: %v", err)
	}
	return payment
}

func newJSONTestTask(t *testing.T, taskType string, payload interface{}) *asynq.Task {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload failed: %v", err)
	}
	return asynq.NewTask(taskType, body)
}

func TestHandlePaymentReceiptIssuesOnce(t *testing.T) {
	f := setupWorkerFixture(t, "worker_receipt_once")
	payment := f.createPayment(t, "SP-WRK-1", constants.PaymentStatusInitiated)
	task := newJSONTestTask(t, queue.TaskPaymentReceipt, queue.PaymentDocumentPayload{PaymentID: payment.ID})

	for i := 0; i < 2; i++ {
		if err := f.consumer.handlePaymentReceipt(context.Background(), task); err != nil {
			t.Fatalf("handle receipt #%d failed: %v", i+1, err)
		}
	}

	var receipts []models.Receipt
	if err := f.db.Where("payment_id = ?", payment.ID).Find(&receipts).Error; err != nil {
		t.Fatalf("query receipts failed: %v", err)
	}
	if len(receipts) != 1 {
		t.Fatalf("receipt count want 1, got %d", len(receipts))
	}
	if receipts[0].Kind != constants.ReceiptKindReceipt {
		t.Fatalf("receipt kind want %s, got %s", constants.ReceiptKindReceipt, receipts[0].Kind)
	}
}

func TestHandlePaymentInvoiceSkipsUnconfirmedPayment(t *testing.T) {
	f := setupWorkerFixture(t, "worker_invoice_skip")
	payment := f.createPayment(t, "SP-WRK-2", constants.PaymentStatusInitiated)
	task := newJSONTestTask(t, queue.TaskPaymentInvoice, queue.PaymentDocumentPayload{PaymentID: payment.ID})

	if err := f.consumer.handlePaymentInvoice(context.Background(), task); err != nil {
		t.Fatalf("expected unconfirmed invoice to be skipped, got %v", err)
	}
	var count int64
	f.db.Model(&models.Receipt{}).Where("payment_id = ?", payment.ID).Count(&count)
	if count != 0 {
		t.Fatalf("expected no invoice for unconfirmed payment, got %d", count)
	}

	confirmed := f.createPayment(t, "SP-WRK-3", constants.PaymentStatusConfirmed)
	task = newJSONTestTask(t, queue.TaskPaymentInvoice, queue.PaymentDocumentPayload{PaymentID: confirmed.ID})
	if err := f.consumer.handlePaymentInvoice(context.Background(), task); err != nil {
		t.Fatalf("handle invoice failed: %v", err)
	}
	f.db.Model(&models.Receipt{}).Where("payment_id = ? AND kind = ?", confirmed.ID, constants.ReceiptKindInvoice).Count(&count)
	if count != 1 {
		t.Fatalf("invoice count want 1, got %d", count)
	}
}

func TestHandlersPayloadValidation(t *testing.T) {
	f := setupWorkerFixture(t, "worker_payload_validation")
	handlers := map[string]asynq.HandlerFunc{
		queue.TaskPaymentReceipt:     f.consumer.handlePaymentReceipt,
		queue.TaskPaymentInvoice:     f.consumer.handlePaymentInvoice,
		queue.TaskRefundStatusNotice: f.consumer.handleRefundStatusNotice,
		queue.TaskFraudCheckRetry:    f.consumer.handleFraudCheckRetry,
	}
	for taskType, handler := range handlers {
		if err := handler(context.Background(), asynq.NewTask(taskType, []byte("{"))); err == nil {
			t.Fatalf("%s: expected unmarshal error", taskType)
		}
		if err := handler(context.Background(), asynq.NewTask(taskType, []byte("{}"))); err != nil {
			t.Fatalf("%s: expected zero id payload to be skipped, got %v", taskType, err)
		}
	}
}

func TestHandlersSkipMissingRecords(t *testing.T) {
	f := setupWorkerFixture(t, "worker_missing_records")
	cases := []struct {
		name    string
		handler asynq.HandlerFunc
		task    *asynq.Task
	}{
		{
			name:    "receipt",
			handler: f.consumer.handlePaymentReceipt,
			task:    newJSONTestTask(t, queue.TaskPaymentReceipt, queue.PaymentDocumentPayload{PaymentID: 404}),
		},
		{
			name:    "fraud_retry",
			handler: f.consumer.handleFraudCheckRetry,
			task:    newJSONTestTask(t, queue.TaskFraudCheckRetry, queue.FraudCheckRetryPayload{QueueID: 404}),
		},
	}
	for _, tc := range cases {
		if err := tc.handler(context.Background(), tc.task); err != nil {
			t.Fatalf("%s: expected missing record to be skipped, got %v", tc.name, err)
		}
	}
}

func TestSweepServiceRefreshesOverdueAssignments(t *testing.T) {
	f := setupWorkerFixture(t, "worker_overdue_sweep")
	assignment := &models.FeeAssignment{
		SchoolID:  f.school.ID,
		StudentID: f.student.ID,
		FeeID:     f.fee.ID,
		AmountDue: f.fee.AmountDue,
		DueDate:   f.fee.DueDate,
		Status:    constants.FeeAssignmentStatusAssigned,
	}
	if err := f.db.Create(assignment).Error; err != nil {
		t.Fatalf("create assignment failed: %v", err)
	}

	sweeper := NewSweepService(f.consumer)
	var overdueJob *sweepJob
	for i := range sweeper.jobs {
		if sweeper.jobs[i].name == "fee_overdue" {
			overdueJob = &sweeper.jobs[i]
		}
	}
	if overdueJob == nil {
		t.Fatalf("expected fee_overdue job to be registered, got %d jobs", len(sweeper.jobs))
	}
	if overdueJob.interval != defaultOverdueSweepInterval {
		t.Fatalf("overdue interval want %s, got %s", defaultOverdueSweepInterval, overdueJob.interval)
	}
	if ran := sweeper.runOnce(context.Background(), *overdueJob); !ran {
		t.Fatalf("expected sweep to run without redis")
	}

	var reloaded models.FeeAssignment
	if err := f.db.First(&reloaded, assignment.ID).Error; err != nil {
		t.Fatalf("reload assignment failed: %v", err)
	}
	if reloaded.Status != constants.FeeAssignmentStatusOverdue {
		t.Fatalf("assignment status want overdue, got %s", reloaded.Status)
	}
}

func TestSweepLockTTL(t *testing.T) {
	cases := []struct {
		interval time.Duration
		want     time.Duration
	}{
		{interval: time.Second, want: sweepLockMinTTL},
		{interval: time.Minute, want: time.Minute},
		{interval: 10 * time.Minute, want: 10 * time.Minute},
	}
	for _, tc := range cases {
		if got := sweepLockTTL(tc.interval); got != tc.want {
			t.Fatalf("sweepLockTTL(%s) want %s, got %s", tc.interval, tc.want, got)
		}
	}
	if got := sweepLockKey("fraud_retry"); got != "worker:sweep:fraud_retry" {
		t.Fatalf("unexpected lock key %q", got)
	}
}
