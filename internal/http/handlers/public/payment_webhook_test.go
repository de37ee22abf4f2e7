package public

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/schoolpay-next/internal/config"
	"github.com/schoolpay-next/internal/constants"
	"github.com/schoolpay-next/internal/http/response"
	"github.com/schoolpay-next/internal/models"
	"github.com/schoolpay-next/internal/payment/paystack"
	"github.com/schoolpay-next/internal/provider"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

const testWebhookSecret = "whsec_public_test"

type publicFixture struct {
	db      *gorm.DB
	handler *Handler
	school  *models.School
	student *models.Student
	fee     *models.Fee
}

func setupPublicFixture(t *testing.T, name string) *publicFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	models.DB = db
	if err := models.AutoMigrate(); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	school := &models.School{Code: "PUB", Name: "Public Grammar School", Currency: "NGN"}
	if err := db.Create(school).Error; err != nil {
		t.Fatalf("create school failed: %v", err)
	}
	student := &models.Student{
		SchoolID:       school.ID,
		AdmissionNo:    "PUB/001",
		Name:           "Ada Obi",
		PasswordHash:   "x",
		EnrollmentType: constants.EnrollmentTypeBoarding,
		Status:         constants.StudentStatusActive,
	}
	if err := db.Create(student).Error; err != nil {
		t.Fatalf("create student failed: %v", err)
	}
	fee := &models.Fee{
		SchoolID:  school.ID,
		Title:     "Tuition",
		AmountDue: models.MustMoney("5000"),
		DueDate:   time.Now().Add(72 * time.Hour),
	}
	if err := db.Create(fee).Error; err != nil {
		t.Fatalf("create fee failed: %v", err)
	}

	cfg := &config.Config{}
	cfg.Paystack.DefaultWebhookSecret = testWebhookSecret
	return &publicFixture{
		db:      db,
		handler: New(provider.NewContainer(cfg)),
		school:  school,
		student: student,
		fee:     fee,
	}
}

func (f *publicFixture) createPayment(t *testing.T, reference, status string) *models.Payment {
	t.Helper()
	payment := &models.Payment{
		SchoolID:  f.school.ID,
		StudentID: f.student.ID,
		FeeID:     f.fee.ID,
		Amount:    models.MustMoney("2000"),
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

func signWebhook(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func postWebhook(t *testing.T, handlerFunc gin.HandlerFunc, body []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/payments/paystack/webhook", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	if signature != "" {
		c.Request.Header.Set(paystack.SignatureHeader, signature)
	}
	handlerFunc(c)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var resp response.Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response failed: %v body=%s", err, w.Body.String())
	}
	return resp
}

func TestPaystackWebhookRejectsBadSignature(t *testing.T) {
	f := setupPublicFixture(t, "public_webhook_bad_sig")
	payment := f.createPayment(t, "SP-PUB-1", constants.PaymentStatusInitiated)
	body := []byte(fmt.Sprintf(`{"event":"charge.success","data":{"reference":"%s","amount":200000}}`, payment.Reference))

	cases := []struct {
		name      string
		signature string
	}{
		{name: "missing", signature: ""},
		{name: "wrong secret", signature: signWebhook("other", body)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := postWebhook(t, f.handler.PaystackWebhook, body, tc.signature)
			if w.Code != http.StatusUnauthorized {
				t.Fatalf("http status want 401, got %d", w.Code)
			}
			if resp := decodeResponse(t, w); resp.StatusCode != response.CodeUnauthorized {
				t.Fatalf("status_code want %d, got %d", response.CodeUnauthorized, resp.StatusCode)
			}
		})
	}

	var stored models.Payment
	if err := f.db.First(&stored, payment.ID).Error; err != nil {
		t.Fatalf("reload payment failed: %v", err)
	}
	if stored.Status != constants.PaymentStatusInitiated {
		t.Fatalf("payment status changed to %s", stored.Status)
	}
}

func TestPaystackWebhookAckClasses(t *testing.T) {
	f := setupPublicFixture(t, "public_webhook_ack")

	cases := []struct {
		name      string
		body      string
		wantClass string
		wantEvent string
	}{
		{
			name:      "unknown charge reference",
			body:      `{"event":"charge.success","data":{"reference":"SP-MISSING","amount":100}}`,
			wantClass: constants.WebhookAckNotFound,
			wantEvent: constants.GatewayEventChargeSuccess,
		},
		{
			name:      "unhandled event",
			body:      `{"event":"subscription.create","data":{}}`,
			wantClass: constants.WebhookAckIgnored,
			wantEvent: "subscription.create",
		},
		{
			name:      "refund event routed to refund flow",
			body:      `{"event":"refund.processed","data":{"transaction_reference":"SP-MISSING","refund_reference":"RF-1"}}`,
			wantClass: constants.WebhookAckNotFound,
			wantEvent: constants.GatewayEventRefundProcessed,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body := []byte(tc.body)
			w := postWebhook(t, f.handler.PaystackWebhook, body, signWebhook(testWebhookSecret, body))
			if w.Code != http.StatusOK {
				t.Fatalf("http status want 200, got %d body=%s", w.Code, w.Body.String())
			}
			resp := decodeResponse(t, w)
			if resp.Msg != tc.wantClass {
				t.Fatalf("ack class want %s, got %s", tc.wantClass, resp.Msg)
			}
			data, _ := resp.Data.(map[string]interface{})
			if data["event"] != tc.wantEvent {
				t.Fatalf("ack event want %s, got %v", tc.wantEvent, data["event"])
			}
		})
	}
}

func TestGetMyPaymentScopedToStudent(t *testing.T) {
	f := setupPublicFixture(t, "public_payment_scope")
	payment := f.createPayment(t, "SP-PUB-2", constants.PaymentStatusConfirmed)

	cases := []struct {
		name      string
		studentID uint
		wantCode  int
	}{
		{name: "owner", studentID: f.student.ID, wantCode: response.CodeOK},
		{name: "other student", studentID: f.student.ID + 100, wantCode: response.CodeNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/payments/%d", payment.ID), nil)
			c.Params = gin.Params{{Key: "id", Value: fmt.Sprintf("%d", payment.ID)}}
			c.Set("student_id", tc.studentID)
			f.handler.GetMyPayment(c)
			if resp := decodeResponse(t, w); resp.StatusCode != tc.wantCode {
				t.Fatalf("status_code want %d, got %d", tc.wantCode, resp.StatusCode)
			}
		})
	}
}

func TestRequestRefundHidesForeignPayment(t *testing.T) {
	f := setupPublicFixture(t, "public_refund_scope")
	payment := f.createPayment(t, "SP-PUB-3", constants.PaymentStatusConfirmed)

	cases := []struct {
		name      string
		paymentID uint
	}{
		{name: "other student payment", paymentID: payment.ID},
		{name: "missing payment", paymentID: payment.ID + 100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			path := fmt.Sprintf("/api/v1/payments/%d/refunds", tc.paymentID)
			c.Request = httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(`{"amount":"100","reason":"test"}`))
			c.Request.Header.Set("Content-Type", "application/json")
			c.Params = gin.Params{{Key: "id", Value: fmt.Sprintf("%d", tc.paymentID)}}
			c.Set("student_id", f.student.ID+100)
			f.handler.RequestRefund(c)
			if resp := decodeResponse(t, w); resp.StatusCode != response.CodeNotFound {
				t.Fatalf("status_code want %d, got %d", response.CodeNotFound, resp.StatusCode)
			}
		})
	}
	var refunds int64
	f.db.Model(&models.Refund{}).Count(&refunds)
	if refunds != 0 {
		t.Fatalf("no refund must be created, got %d", refunds)
	}
}
