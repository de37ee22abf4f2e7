package service

import (
	"context"
	"errors"
	"testing"

	"github.com/schoolpay-next/internal/constants"
	"github.com/schoolpay-next/internal/models"
	"github.com/schoolpay-next/internal/payment/paystack"
)

func TestRefundRequestsAcceptedButJointApprovalCapped(t *testing.T) {
	env := setupPaymentTestEnv(t, "refund_joint_cap", nil)
	payment := env.confirm(t, "5000")

	first, err := env.refunds.RequestRefund(RequestRefundInput{StudentID: env.student.ID, PaymentID: payment.ID, Amount: models.MustMoney("2000"), Reason: "overpaid"})
	if err != nil {
		t.Fatalf("request 2000 failed: %v", err)
	}
	second, err := env.refunds.RequestRefund(RequestRefundInput{StudentID: env.student.ID, PaymentID: payment.ID, Amount: models.MustMoney("4000"), Reason: "withdrawal"})
	if err != nil {
		t.Fatalf("request 4000 must be accepted at request time: %v", err)
	}
	if first.Status != constants.RefundStatusRequested || second.Status != constants.RefundStatusRequested {
		t.Fatalf("want both requested got %s / %s", first.Status, second.Status)
	}
	if len(first.AuditTrail) != 1 || first.AuditTrail[0].Action != constants.RefundAuditRequested {
		t.Fatalf("unexpected audit trail: %+v", first.AuditTrail)
	}

	approved, err := env.refunds.ReviewRefund(ReviewRefundInput{AdminID: 1, RefundID: first.ID, Decision: "approved"})
	if err != nil {
		t.Fatalf("approve 2000 failed: %v", err)
	}
	if approved.Status != constants.RefundStatusApproved || approved.ProviderRefundRef == "" {
		t.Fatalf("want approved with provider ref got %+v", approved)
	}

	_, err = env.refunds.ReviewRefund(ReviewRefundInput{AdminID: 1, RefundID: second.ID, Decision: "approved"})
	if !errors.Is(err, ErrRefundExceedsRefundable) {
		t.Fatalf("want ErrRefundExceedsRefundable got %v", err)
	}

	var total models.Money
	var refunds []models.Refund
	env.db.Where("payment_id = ? AND status IN ?", payment.ID, []string{constants.RefundStatusApproved, constants.RefundStatusProcessed}).Find(&refunds)
	for _, item := range refunds {
		total = total.Add(item.Amount)
	}
	if total.Decimal.GreaterThan(payment.Amount.Decimal) {
		t.Fatalf("approved refunds %s exceed payment %s", total.String(), payment.Amount.String())
	}
	if env.gateway.refundCalls != 1 {
		t.Fatalf("want one gateway refund call got %d", env.gateway.refundCalls)
	}

	// 已批准的退款占用额度后，新申请受上限约束
	if _, err := env.refunds.RequestRefund(RequestRefundInput{StudentID: env.student.ID, PaymentID: payment.ID, Amount: models.MustMoney("3500")}); !errors.Is(err, ErrInvalidRefundAmount) {
		t.Fatalf("want ErrInvalidRefundAmount got %v", err)
	}
}

func TestRequestRefundValidation(t *testing.T) {
	env := setupPaymentTestEnv(t, "refund_validation", nil)
	initiated := env.initiate(t, "5000")

	tests := []struct {
		name  string
		input RequestRefundInput
		want  error
	}{
		{"payment not found", RequestRefundInput{StudentID: env.student.ID, PaymentID: 999, Amount: models.MustMoney("10")}, ErrPaymentNotFound},
		{"other student", RequestRefundInput{StudentID: env.student.ID + 1, PaymentID: initiated.ID, Amount: models.MustMoney("10")}, ErrForbidden},
		{"not confirmed", RequestRefundInput{StudentID: env.student.ID, PaymentID: initiated.ID, Amount: models.MustMoney("10")}, ErrPaymentNotRefundable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := env.refunds.RequestRefund(tt.input); !errors.Is(err, tt.want) {
				t.Fatalf("want %v got %v", tt.want, err)
			}
		})
	}

	if _, err := env.payments.VerifyPayment(context.Background(), initiated.Reference, RequestMeta{}); err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	for _, amount := range []string{"0", "-5", "5000.01"} {
		if _, err := env.refunds.RequestRefund(RequestRefundInput{StudentID: env.student.ID, PaymentID: initiated.ID, Amount: models.MustMoney(amount)}); !errors.Is(err, ErrInvalidRefundAmount) {
			t.Fatalf("amount %s: want ErrInvalidRefundAmount got %v", amount, err)
		}
	}
}

func TestReviewRefundRejectAndScope(t *testing.T) {
	env := setupPaymentTestEnv(t, "refund_reject", nil)
	payment := env.confirm(t, "5000")
	refund, err := env.refunds.RequestRefund(RequestRefundInput{StudentID: env.student.ID, PaymentID: payment.ID, Amount: models.MustMoney("1000")})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	if _, err := env.refunds.ReviewRefund(ReviewRefundInput{AdminID: 2, RefundID: refund.ID, Decision: "maybe"}); !errors.Is(err, ErrInvalidDecision) {
		t.Fatalf("want ErrInvalidDecision got %v", err)
	}
	if _, err := env.refunds.ReviewRefund(ReviewRefundInput{AdminID: 2, ScopeSchoolID: env.school.ID + 1, RefundID: refund.ID, Decision: "rejected"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("want ErrForbidden got %v", err)
	}

	rejected, err := env.refunds.ReviewRefund(ReviewRefundInput{AdminID: 2, ScopeSchoolID: env.school.ID, RefundID: refund.ID, Decision: "rejected", Note: "duplicate"})
	if err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	if rejected.Status != constants.RefundStatusRejected || rejected.ReviewedBy == nil || *rejected.ReviewedBy != 2 {
		t.Fatalf("unexpected rejected refund: %+v", rejected)
	}
	if _, err := env.refunds.ReviewRefund(ReviewRefundInput{AdminID: 2, RefundID: refund.ID, Decision: "approved"}); !errors.Is(err, ErrRefundStateConflict) {
		t.Fatalf("want ErrRefundStateConflict got %v", err)
	}
	if env.gateway.refundCalls != 0 {
		t.Fatalf("rejected refund must not reach the gateway")
	}
}

func TestReviewRefundGatewayDeclineMarksFailed(t *testing.T) {
	env := setupPaymentTestEnv(t, "refund_declined", nil)
	payment := env.confirm(t, "5000")
	env.gateway.mu.Lock()
	env.gateway.refundStatus = paystack.StatusFailed
	env.gateway.mu.Unlock()

	refund, err := env.refunds.RequestRefund(RequestRefundInput{StudentID: env.student.ID, PaymentID: payment.ID, Amount: models.MustMoney("1000")})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	_, err = env.refunds.ReviewRefund(ReviewRefundInput{AdminID: 1, RefundID: refund.ID, Decision: "approved"})
	if !errors.Is(err, ErrGatewayRefundFailed) {
		t.Fatalf("want ErrGatewayRefundFailed got %v", err)
	}
	stored, err := env.refunds.GetRefund(refund.ID)
	if err != nil {
		t.Fatalf("get refund failed: %v", err)
	}
	if stored.Status != constants.RefundStatusFailed {
		t.Fatalf("want failed got %s", stored.Status)
	}
	actions := make([]string, 0, len(stored.AuditTrail))
	for _, entry := range stored.AuditTrail {
		actions = append(actions, entry.Action)
	}
	want := []string{constants.RefundAuditRequested, constants.RefundAuditApproved, constants.RefundAuditFailed}
	if len(actions) != len(want) {
		t.Fatalf("want audit %v got %v", want, actions)
	}
	for i := range want {
		if actions[i] != want[i] {
			t.Fatalf("want audit %v got %v", want, actions)
		}
	}
	if got := countTxLogs(t, env.db, constants.TxActionRefundGatewayDeclined); got != 1 {
		t.Fatalf("want one refund_gateway_declined log got %d", got)
	}
}

func TestHandleRefundWebhookInvalidSignatureDoesNotMutate(t *testing.T) {
	env := setupPaymentTestEnv(t, "refund_webhook_bad_sig", nil)
	payment := env.confirm(t, "5000")
	refund, err := env.refunds.RequestRefund(RequestRefundInput{StudentID: env.student.ID, PaymentID: payment.ID, Amount: models.MustMoney("1000")})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	input := signedWebhook(t, "forged", map[string]interface{}{
		"event": "refund.processed",
		"data":  map[string]interface{}{"transaction_reference": payment.Reference, "status": "processed"},
	})
	if _, err := env.refunds.HandleRefundWebhook(input); !errors.Is(err, ErrWebhookSignatureInvalid) {
		t.Fatalf("want ErrWebhookSignatureInvalid got %v", err)
	}
	stored, _ := env.refunds.GetRefund(refund.ID)
	if stored.Status != constants.RefundStatusRequested || len(stored.AuditTrail) != 1 {
		t.Fatalf("refund must be untouched, got %s with %d audit entries", stored.Status, len(stored.AuditTrail))
	}
}

func TestHandleRefundWebhookProcessesApprovedRefund(t *testing.T) {
	env := setupPaymentTestEnv(t, "refund_webhook_processed", nil)
	payment := env.confirm(t, "5000")
	refund, err := env.refunds.RequestRefund(RequestRefundInput{StudentID: env.student.ID, PaymentID: payment.ID, Amount: models.MustMoney("1500")})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	approved, err := env.refunds.ReviewRefund(ReviewRefundInput{AdminID: 1, RefundID: refund.ID, Decision: "approved"})
	if err != nil {
		t.Fatalf("approve failed: %v", err)
	}

	payload := map[string]interface{}{
		"event": "refund.processed",
		"data": map[string]interface{}{
			"transaction_reference": payment.Reference,
			"refund_reference":      approved.ProviderRefundRef,
			"status":                "processed",
		},
	}
	ack, err := env.refunds.HandleRefundWebhook(signedWebhook(t, testWebhookSecret, payload))
	if err != nil {
		t.Fatalf("refund webhook failed: %v", err)
	}
	if ack.Class != constants.WebhookAckProcessed || !ack.Changed || ack.Refund.Status != constants.RefundStatusProcessed {
		t.Fatalf("unexpected ack: %+v", ack)
	}

	again, err := env.refunds.HandleRefundWebhook(signedWebhook(t, testWebhookSecret, payload))
	if err != nil {
		t.Fatalf("duplicate refund webhook failed: %v", err)
	}
	if again.Changed {
		t.Fatalf("duplicate refund webhook must be idempotent")
	}
	if got := countTxLogs(t, env.db, constants.TxActionRefundProcessed); got != 1 {
		t.Fatalf("want one refund_processed log got %d", got)
	}

	ignored, err := env.refunds.HandleRefundWebhook(signedWebhook(t, testWebhookSecret, map[string]interface{}{
		"event": "refund.pending",
		"data":  map[string]interface{}{"transaction_reference": payment.Reference},
	}))
	if err != nil || ignored.Class != constants.WebhookAckIgnored {
		t.Fatalf("want ignored ack got %+v err %v", ignored, err)
	}
}

func TestHandleRefundWebhookUnknownReferenceAcksNotFound(t *testing.T) {
	env := setupPaymentTestEnv(t, "refund_webhook_unknown", nil)
	payment := env.confirm(t, "5000")
	refund, err := env.refunds.RequestRefund(RequestRefundInput{StudentID: env.student.ID, PaymentID: payment.ID, Amount: models.MustMoney("1000")})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	ack, err := env.refunds.HandleRefundWebhook(signedWebhook(t, testWebhookSecret, map[string]interface{}{
		"event": "refund.processed",
		"data":  map[string]interface{}{"transaction_reference": "SCH-MISSING", "status": "processed"},
	}))
	if err != nil {
		t.Fatalf("unknown reference should be acknowledged, got %v", err)
	}
	if ack.Class != constants.WebhookAckNotFound || ack.Reference != "SCH-MISSING" || ack.Changed {
		t.Fatalf("unexpected ack: %+v", ack)
	}
	stored, _ := env.refunds.GetRefund(refund.ID)
	if stored.Status != constants.RefundStatusRequested || len(stored.AuditTrail) != 1 {
		t.Fatalf("refund must be untouched, got %s with %d audit entries", stored.Status, len(stored.AuditTrail))
	}
	if got := countTxLogs(t, env.db, constants.TxActionWebhookRejected); got != 0 {
		t.Fatalf("not_found must not be logged as signature rejection, got %d", got)
	}
}

func TestRefundAuditTrailCarriesRequestContext(t *testing.T) {
	env := setupPaymentTestEnv(t, "refund_audit_context", nil)
	payment := env.confirm(t, "5000")

	refund, err := env.refunds.RequestRefund(RequestRefundInput{
		StudentID: env.student.ID,
		PaymentID: payment.ID,
		Amount:    models.MustMoney("1200"),
		Reason:    "overpaid",
		Meta:      RequestMeta{IP: "203.0.113.7", DeviceSignature: "dev-student"},
	})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	approved, err := env.refunds.ReviewRefund(ReviewRefundInput{
		AdminID:  1,
		RefundID: refund.ID,
		Decision: "approved",
		Meta:     RequestMeta{IP: "198.51.100.9", DeviceSignature: "dev-admin"},
	})
	if err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if _, err := env.refunds.HandleRefundWebhook(signedWebhook(t, testWebhookSecret, map[string]interface{}{
		"event": "refund.processed",
		"data": map[string]interface{}{
			"transaction_reference": payment.Reference,
			"refund_reference":      approved.ProviderRefundRef,
			"status":                "processed",
		},
	})); err != nil {
		t.Fatalf("refund webhook failed: %v", err)
	}

	stored, err := env.refunds.GetRefund(refund.ID)
	if err != nil {
		t.Fatalf("get refund failed: %v", err)
	}
	byAction := make(map[string]models.RefundAuditEntry, len(stored.AuditTrail))
	for _, entry := range stored.AuditTrail {
		byAction[entry.Action] = entry
	}
	requested := byAction[constants.RefundAuditRequested]
	if requested.IP != "203.0.113.7" || requested.Device != "dev-student" {
		t.Fatalf("requested entry lost request context: %+v", requested)
	}
	approvedEntry := byAction[constants.RefundAuditApproved]
	if approvedEntry.IP != "198.51.100.9" || approvedEntry.Device != "dev-admin" {
		t.Fatalf("approved entry lost request context: %+v", approvedEntry)
	}
	if accepted := byAction[constants.RefundAuditGatewayAccepted]; accepted.Device != "" {
		t.Fatalf("gateway entry must not carry a device, got %q", accepted.Device)
	}
	processed, ok := byAction[constants.RefundAuditProcessed]
	if !ok {
		t.Fatalf("missing processed entry: %+v", stored.AuditTrail)
	}
	if processed.Metadata["provider_refund_ref"] != approved.ProviderRefundRef {
		t.Fatalf("processed entry want provider_refund_ref %s got %+v", approved.ProviderRefundRef, processed.Metadata)
	}
}

func TestReviewRefundAfterEarlyProcessedWebhook(t *testing.T) {
	env := setupPaymentTestEnv(t, "refund_webhook_first", nil)
	payment := env.confirm(t, "5000")
	refund, err := env.refunds.RequestRefund(RequestRefundInput{StudentID: env.student.ID, PaymentID: payment.ID, Amount: models.MustMoney("1000")})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	var hookErr error
	env.gateway.mu.Lock()
	env.gateway.onRefund = func() {
		_, hookErr = env.refunds.HandleRefundWebhook(signedWebhook(t, testWebhookSecret, map[string]interface{}{
			"event": "refund.processed",
			"data": map[string]interface{}{
				"transaction_reference": payment.Reference,
				"refund_reference":      "7001",
				"status":                "processed",
			},
		}))
	}
	env.gateway.mu.Unlock()

	reviewed, err := env.refunds.ReviewRefund(ReviewRefundInput{AdminID: 1, RefundID: refund.ID, Decision: "approved"})
	if hookErr != nil {
		t.Fatalf("early webhook failed: %v", hookErr)
	}
	if err != nil {
		t.Fatalf("approve after early webhook must succeed, got %v", err)
	}
	if reviewed.Status != constants.RefundStatusProcessed || reviewed.ProviderRefundRef != "7001" {
		t.Fatalf("want processed refund 7001 got %s %q", reviewed.Status, reviewed.ProviderRefundRef)
	}
	if got := countTxLogs(t, env.db, constants.TxActionRefundGatewayAccepted); got != 0 {
		t.Fatalf("settled refund must not log gateway acceptance, got %d", got)
	}
}
