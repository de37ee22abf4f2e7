package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/schoolpay-next/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupRepositoryTestDB(t *testing.T, name string) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.School{},
		&models.Student{},
		&models.Fee{},
		&models.FeeAssignment{},
		&models.Payment{},
		&models.Refund{},
		&models.TransactionLog{},
		&models.FraudCheckQueue{},
		&models.FraudEvaluationLog{},
		&models.DeviceRecord{},
		&models.SchoolGatewayConfig{},
		&models.Receipt{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return db
}

func createTestPayment(t *testing.T, db *gorm.DB, reference string, amount string) *models.Payment {
	t.Helper()
	payment := &models.Payment{
		SchoolID:         1,
		StudentID:        1,
		FeeID:            1,
		FeeAssignmentID:  1,
		Amount:           models.MustMoney(amount),
		Currency:         "NGN",
		Provider:         "paystack",
		Reference:        reference,
		ProviderMetadata: models.NewPaystackMetadata(reference),
		Status:           "initiated",
	}
	if err := db.Create(payment).Error; err != nil {
		t.Fatalf("create payment failed: %v", err)
	}
	return payment
}
