package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/schoolpay-next/internal/constants"
	"github.com/schoolpay-next/internal/models"
	"github.com/schoolpay-next/internal/repository"
)

func TestCreateFeeValidation(t *testing.T) {
	env := setupPaymentTestEnv(t, "fee_create", nil)

	if _, err := env.fees.CreateFee(CreateFeeInput{SchoolID: env.school.ID, Title: "Lab", AmountDue: models.MustMoney("0"), DueDate: time.Now()}); !errors.Is(err, ErrFeeInvalid) {
		t.Fatalf("want ErrFeeInvalid got %v", err)
	}
	if _, err := env.fees.CreateFee(CreateFeeInput{SchoolID: env.school.ID, AmountDue: models.MustMoney("10")}); !errors.Is(err, ErrFeeInvalid) {
		t.Fatalf("want ErrFeeInvalid got %v", err)
	}
	fee, err := env.fees.CreateFee(CreateFeeInput{
		SchoolID:            env.school.ID,
		Title:               " Lab levy ",
		AmountDue:           models.MustMoney("1200.555"),
		DueDate:             time.Now().Add(time.Hour),
		AllowPartialPayment: true,
	})
	if err != nil {
		t.Fatalf("create fee failed: %v", err)
	}
	if fee.Title != "Lab levy" || fee.AmountDue.String() != "1200.56" {
		t.Fatalf("unexpected fee: %s %s", fee.Title, fee.AmountDue.String())
	}
	if _, err := env.fees.GetFee(fee.ID, env.school.ID+1); !errors.Is(err, ErrForbidden) {
		t.Fatalf("want ErrForbidden got %v", err)
	}
}

func TestAssignFeeSkipsExistingAndForeignStudents(t *testing.T) {
	env := setupPaymentTestEnv(t, "fee_assign", nil)
	other := &models.School{Code: "OTH", Name: "Other", Currency: "NGN"}
	env.db.Create(other)
	foreign := &models.Student{SchoolID: other.ID, AdmissionNo: "OTH/1", Name: "X", PasswordHash: "x", Status: constants.StudentStatusActive}
	env.db.Create(foreign)

	result, err := env.fees.AssignFee(env.fee.ID, env.school.ID, []uint{env.student.ID, env.student.ID, foreign.ID})
	if err != nil {
		t.Fatalf("assign failed: %v", err)
	}
	if len(result.Created) != 1 || len(result.Skipped) != 1 || result.Skipped[0] != foreign.ID {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Created[0].Status != constants.FeeAssignmentStatusAssigned {
		t.Fatalf("want assigned got %s", result.Created[0].Status)
	}

	again, err := env.fees.AssignFee(env.fee.ID, 0, []uint{env.student.ID})
	if err != nil {
		t.Fatalf("re-assign failed: %v", err)
	}
	if len(again.Created) != 0 || len(again.Skipped) != 1 {
		t.Fatalf("existing assignment must be skipped: %+v", again)
	}

	items, total, err := env.fees.ListStudentAssignments(env.student.ID, repository.FeeAssignmentListFilter{})
	if err != nil || total != 1 || len(items) != 1 || items[0].Fee == nil {
		t.Fatalf("list student assignments: total %d err %v", total, err)
	}
}

func TestRefreshOverdue(t *testing.T) {
	env := setupPaymentTestEnv(t, "fee_overdue", nil)
	pastFee := &models.Fee{SchoolID: env.school.ID, Title: "Past", AmountDue: models.MustMoney("100"), DueDate: time.Now().Add(-time.Hour)}
	env.db.Create(pastFee)
	env.db.Create(&models.FeeAssignment{SchoolID: env.school.ID, StudentID: env.student.ID, FeeID: pastFee.ID, AmountDue: pastFee.AmountDue, DueDate: pastFee.DueDate, Status: constants.FeeAssignmentStatusAssigned})
	env.db.Create(&models.FeeAssignment{SchoolID: env.school.ID, StudentID: env.student.ID, FeeID: env.fee.ID, AmountDue: env.fee.AmountDue, DueDate: env.fee.DueDate, Status: constants.FeeAssignmentStatusAssigned})

	rows, err := env.fees.RefreshOverdue(context.Background())
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if rows != 1 {
		t.Fatalf("want 1 overdue got %d", rows)
	}
	rows, err = env.fees.RefreshOverdue(context.Background())
	if err != nil || rows != 0 {
		t.Fatalf("second refresh want 0 got %d err %v", rows, err)
	}
	if got := countTxLogs(t, env.db, constants.TxActionFeeAssignmentsOverdue); got != 1 {
		t.Fatalf("want one overdue log got %d", got)
	}
}
