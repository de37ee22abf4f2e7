package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/schoolpay-next/internal/anomaly"
	"github.com/schoolpay-next/internal/config"
	"github.com/schoolpay-next/internal/constants"
	"github.com/schoolpay-next/internal/models"
	"github.com/schoolpay-next/internal/payment/paystack"
	"github.com/schoolpay-next/internal/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

const testWebhookSecret = "sk_test_school"

// fakePaystack 按引用号返回预设结果的网关
type fakePaystack struct {
	mu           sync.Mutex
	verifyStatus string
	verifyMinor  map[string]int64
	refundStatus string
	refundCalls  int
	initCalls    int
	initDeclined bool
	// onRefund 在网关响应退款前执行，用于模拟回调先到
	onRefund func()
}

func (f *fakePaystack) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/transaction/initialize", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.initCalls++
		declined := f.initDeclined
		f.mu.Unlock()
		if declined {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"status": false, "message": "Invalid key"})
			return
		}
		reference, _ := body["reference"].(string)
		writePaystackJSON(w, map[string]interface{}{
			"reference":         reference,
			"access_code":       "AC_" + reference,
			"authorization_url": "https://checkout.paystack.test/" + reference,
		})
	})
	mux.HandleFunc("/transaction/verify/", func(w http.ResponseWriter, r *http.Request) {
		reference := strings.TrimPrefix(r.URL.Path, "/transaction/verify/")
		f.mu.Lock()
		status := f.verifyStatus
		minor := f.verifyMinor[reference]
		f.mu.Unlock()
		writePaystackJSON(w, map[string]interface{}{
			"id":               "9001",
			"reference":        reference,
			"status":           status,
			"amount":           minor,
			"currency":         "NGN",
			"gateway_response": "Approved",
		})
	})
	mux.HandleFunc("/refund", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.refundCalls++
		status := f.refundStatus
		calls := f.refundCalls
		hook := f.onRefund
		f.mu.Unlock()
		if hook != nil {
			hook()
		}
		writePaystackJSON(w, map[string]interface{}{
			"id":     fmt.Sprintf("%d", 7000+calls),
			"status": status,
		})
	})
	return mux
}

func writePaystackJSON(w http.ResponseWriter, data map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  true,
		"message": "ok",
		"data":    data,
	})
}

// newOracleServer 返回固定重建误差的模型服务，status 非 200 时模拟不可用
func newOracleServer(t *testing.T, status int, reconstructionError, threshold float64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			http.Error(w, "model offline", status)
			return
		}
		_ = json.NewEncoder(w).Encode(anomaly.Result{
			ReconstructionError: reconstructionError,
			Threshold:           threshold,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

type paymentTestEnv struct {
	db       *gorm.DB
	gateway  *fakePaystack
	payments *PaymentService
	refunds  *RefundService
	fraud    *FraudService
	fees     *FeeService
	school   *models.School
	student  *models.Student
	fee      *models.Fee
}

func setupPaymentTestEnv(t *testing.T, name string, oracle *httptest.Server) *paymentTestEnv {
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

	gateway := &fakePaystack{verifyStatus: paystack.StatusSuccess, verifyMinor: map[string]int64{}, refundStatus: paystack.StatusPending}
	gatewaySrv := httptest.NewServer(gateway.handler())
	t.Cleanup(gatewaySrv.Close)

	school := &models.School{Code: "GHS", Name: "Greenfield High", Email: "bursar@greenfield.test", Currency: "NGN"}
	if err := db.Create(school).Error; err != nil {
		t.Fatalf("create school failed: %v", err)
	}
	student := &models.Student{
		SchoolID:       school.ID,
		AdmissionNo:    "GHS/001",
		Name:           "Ada Obi",
		Email:          "ada@student.test",
		PasswordHash:   "x",
		EnrollmentType: constants.EnrollmentTypeBoarding,
		Status:         constants.StudentStatusActive,
	}
	if err := db.Create(student).Error; err != nil {
		t.Fatalf("create student failed: %v", err)
	}
	fee := &models.Fee{
		SchoolID:  school.ID,
		Title:     "Term 1 Tuition",
		AmountDue: models.MustMoney("5000"),
		DueDate:   time.Now().Add(30 * 24 * time.Hour),
	}
	if err := db.Create(fee).Error; err != nil {
		t.Fatalf("create fee failed: %v", err)
	}
	if err := db.Create(&models.SchoolGatewayConfig{
		SchoolID:  school.ID,
		Provider:  constants.PaymentProviderPaystack,
		SecretKey: testWebhookSecret,
		Enabled:   true,
	}).Error; err != nil {
		t.Fatalf("create gateway config failed: %v", err)
	}

	paymentRepo := repository.NewPaymentRepository(db)
	feeRepo := repository.NewFeeRepository(db)
	assignmentRepo := repository.NewFeeAssignmentRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	schoolRepo := repository.NewSchoolRepository(db)
	deviceRepo := repository.NewDeviceRecordRepository(db)
	refundRepo := repository.NewRefundRepository(db)
	recorder := NewTransactionRecorder(repository.NewTransactionLogRepository(db))

	gatewayConfigs := NewGatewayConfigService(config.PaystackConfig{APIBaseURL: gatewaySrv.URL, Currency: "NGN"}, repository.NewGatewayConfigRepository(db), recorder)
	var oracleURL string
	if oracle != nil {
		oracleURL = oracle.URL
	}
	fraudSvc := NewFraudService(
		config.FraudConfig{},
		anomaly.NewClient(oracleURL, "", time.Second),
		paymentRepo,
		assignmentRepo,
		studentRepo,
		deviceRepo,
		repository.NewFraudCheckQueueRepository(db),
		repository.NewFraudEvaluationRepository(db),
		recorder,
		nil,
	)
	receiptSvc := NewReceiptService(repository.NewReceiptRepository(db), paymentRepo, studentRepo, schoolRepo, feeRepo, nil, nil)
	client := paystack.NewClient()
	notificationSvc := NewNotificationService(refundRepo, paymentRepo, studentRepo, schoolRepo, nil, nil)

	return &paymentTestEnv{
		db:       db,
		gateway:  gateway,
		payments: NewPaymentService(paymentRepo, feeRepo, assignmentRepo, studentRepo, schoolRepo, deviceRepo, gatewayConfigs, client, recorder, fraudSvc, receiptSvc),
		refunds:  NewRefundService(refundRepo, paymentRepo, gatewayConfigs, client, recorder, fraudSvc, notificationSvc),
		fraud:    fraudSvc,
		fees:     NewFeeService(feeRepo, assignmentRepo, studentRepo, recorder),
		school:   school,
		student:  student,
		fee:      fee,
	}
}

// initiate 发起一笔缴费并登记网关查询金额
func (e *paymentTestEnv) initiate(t *testing.T, amount string) *models.Payment {
	t.Helper()
	result, err := e.payments.InitializePayment(InitializePaymentInput{
		StudentID: e.student.ID,
		FeeID:     e.fee.ID,
		Amount:    models.MustMoney(amount),
		Meta:      RequestMeta{IP: "10.0.0.1", DeviceSignature: "device-a"},
	})
	if err != nil {
		t.Fatalf("initialize payment failed: %v", err)
	}
	minor, err := paystack.ToMinorAmount(result.Payment.Amount.Decimal)
	if err != nil {
		t.Fatalf("to minor failed: %v", err)
	}
	e.gateway.mu.Lock()
	e.gateway.verifyMinor[result.Payment.Reference] = minor
	e.gateway.mu.Unlock()
	return result.Payment
}

// confirm 发起并通过查询确认一笔缴费
func (e *paymentTestEnv) confirm(t *testing.T, amount string) *models.Payment {
	t.Helper()
	payment := e.initiate(t, amount)
	updated, err := e.payments.VerifyPayment(context.Background(), payment.Reference, RequestMeta{})
	if err != nil {
		t.Fatalf("verify payment failed: %v", err)
	}
	if updated.Status != constants.PaymentStatusConfirmed {
		t.Fatalf("payment status want confirmed got %s", updated.Status)
	}
	return updated
}

func signedWebhook(t *testing.T, secret string, payload map[string]interface{}) WebhookInput {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal webhook failed: %v", err)
	}
	return WebhookInput{
		Headers: map[string]string{"X-Paystack-Signature": paystack.ComputeSignature(secret, body)},
		Body:    body,
	}
}

func countTxLogs(t *testing.T, db *gorm.DB, action string) int64 {
	t.Helper()
	var count int64
	if err := db.Model(&models.TransactionLog{}).Where("action = ?", action).Count(&count).Error; err != nil {
		t.Fatalf("count tx logs failed: %v", err)
	}
	return count
}
