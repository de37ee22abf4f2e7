package repository

import (
	"testing"
	"time"

	"github.com/schoolpay-next/internal/constants"
	"github.com/schoolpay-next/internal/models"
)

func TestRefundRepositorySaveTransitionAppendsAuditTrail(t *testing.T) {
	db := setupRepositoryTestDB(t, "refund_transition")
	repo := NewRefundRepository(db)
	payment := createTestPayment(t, db, "SCH-1-refund", "5000")

	now := time.Now()
	refund := &models.Refund{
		PaymentID: payment.ID,
		StudentID: 1,
		SchoolID:  1,
		Amount:    models.MustMoney("2000"),
		Reason:    "overpaid",
		Status:    constants.RefundStatusRequested,
		AuditTrail: models.RefundAuditTrail{
			{Action: constants.RefundAuditRequested, Status: constants.RefundStatusRequested, ActorType: constants.ActorTypeStudent, ActorID: 1, Timestamp: now},
		},
	}
	if err := repo.Create(refund); err != nil {
		t.Fatalf("create refund failed: %v", err)
	}

	refund.Status = constants.RefundStatusApproved
	refund.AuditTrail = append(refund.AuditTrail, models.RefundAuditEntry{
		Action:    constants.RefundAuditApproved,
		Status:    constants.RefundStatusApproved,
		ActorType: constants.ActorTypeAdmin,
		ActorID:   9,
		Timestamp: now,
	})
	refund.UpdatedAt = now
	rows, err := repo.SaveTransition(refund, constants.RefundStatusRequested)
	if err != nil || rows != 1 {
		t.Fatalf("save transition rows=%d err=%v", rows, err)
	}

	rows, err = repo.SaveTransition(refund, constants.RefundStatusRequested)
	if err != nil {
		t.Fatalf("stale transition failed: %v", err)
	}
	if rows != 0 {
		t.Fatalf("stale transition should not apply")
	}

	stored, err := repo.GetByID(refund.ID)
	if err != nil || stored == nil {
		t.Fatalf("reload refund failed: %v", err)
	}
	if stored.Status != constants.RefundStatusApproved {
		t.Fatalf("expected approved, got %s", stored.Status)
	}
	if len(stored.AuditTrail) != 2 || stored.AuditTrail[1].ActorID != 9 {
		t.Fatalf("unexpected audit trail: %+v", stored.AuditTrail)
	}
}

func TestRefundRepositoryMatchingQueries(t *testing.T) {
	db := setupRepositoryTestDB(t, "refund_matching")
	repo := NewRefundRepository(db)
	payment := createTestPayment(t, db, "SCH-1-match", "5000")

	first := &models.Refund{PaymentID: payment.ID, StudentID: 1, SchoolID: 1, Amount: models.MustMoney("100"), Status: constants.RefundStatusApproved, ProviderRefundRef: "rf_1"}
	second := &models.Refund{PaymentID: payment.ID, StudentID: 1, SchoolID: 1, Amount: models.MustMoney("200"), Status: constants.RefundStatusApproved}
	third := &models.Refund{PaymentID: payment.ID, StudentID: 1, SchoolID: 1, Amount: models.MustMoney("300"), Status: constants.RefundStatusRequested}
	for _, r := range []*models.Refund{first, second, third} {
		if err := repo.Create(r); err != nil {
			t.Fatalf("create refund failed: %v", err)
		}
	}

	byRef, err := repo.FindByProviderRefundRef(payment.ID, "rf_1")
	if err != nil || byRef == nil || byRef.ID != first.ID {
		t.Fatalf("expected first refund by ref, got %+v err=%v", byRef, err)
	}
	oldest, err := repo.FindOldestByPaymentAndStatus(payment.ID, constants.RefundStatusApproved)
	if err != nil || oldest == nil || oldest.ID != first.ID {
		t.Fatalf("expected oldest approved refund, got %+v err=%v", oldest, err)
	}
	counted, err := repo.ListByPaymentAndStatuses(payment.ID, []string{constants.RefundStatusApproved, constants.RefundStatusProcessed})
	if err != nil {
		t.Fatalf("list by statuses failed: %v", err)
	}
	if len(counted) != 2 {
		t.Fatalf("expected 2 approved refunds, got %d", len(counted))
	}
}
