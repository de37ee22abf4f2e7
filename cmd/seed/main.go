package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/schoolpay-next/internal/authz"
	"github.com/schoolpay-next/internal/config"
	"github.com/schoolpay-next/internal/constants"
	"github.com/schoolpay-next/internal/logger"
	"github.com/schoolpay-next/internal/models"
	"github.com/schoolpay-next/internal/provider"
	"github.com/schoolpay-next/internal/service"
)

const seedPassword = "Passw0rd123"

type seedStudent struct {
	AdmissionNo    string
	Name           string
	Email          string
	EnrollmentType string
}

// 演示数据：一所学校、一名财务、若干学生与一项学费
func main() {
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
		LogLevel:               cfg.Database.Pool.LogLevel,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	c := provider.NewContainer(cfg)

	school, err := c.SchoolService.CreateSchool(service.CreateSchoolInput{
		Code:     "GHS",
		Name:     "Green Hill Secondary School",
		Email:    "bursary@greenhill.example",
		Currency: "NGN",
	})
	if err != nil {
		stdLog.Fatalf("Failed to create school: %v", err)
	}
	stdLog.Printf("School ready: %s (id=%d)", school.Code, school.ID)

	if secret := os.Getenv("SP_SEED_PAYSTACK_SECRET_KEY"); secret != "" {
		_, err := c.GatewayConfigService.Update(context.Background(), 0, school.ID, constants.PaymentProviderPaystack, service.GatewayConfigInput{
			SecretKey:     secret,
			PublicKey:     os.Getenv("SP_SEED_PAYSTACK_PUBLIC_KEY"),
			WebhookSecret: os.Getenv("SP_SEED_PAYSTACK_WEBHOOK_SECRET"),
			Enabled:       true,
		}, service.RequestMeta{IP: "127.0.0.1"})
		if err != nil {
			stdLog.Printf("Failed to configure gateway: %v", err)
		} else {
			stdLog.Printf("Gateway configured for %s", school.Code)
		}
	}

	bursar, err := c.AuthService.CreateAdmin(service.CreateAdminInput{
		Username: "ghs_bursar",
		Password: seedPassword,
		SchoolID: school.ID,
	})
	switch {
	case err == nil:
		if err := c.AuthzService.SetAdminRoles(bursar.ID, []string{authz.RoleBursar}); err != nil {
			stdLog.Printf("Failed to assign bursar role: %v", err)
		}
		stdLog.Printf("Created bursar: %s", bursar.Username)
	case errors.Is(err, service.ErrAdminExists):
		stdLog.Printf("Bursar already exists: ghs_bursar")
	default:
		stdLog.Printf("Failed to create bursar: %v", err)
	}

	students := []seedStudent{
		{AdmissionNo: "GHS/2024/001", Name: "Ada Obi", Email: "ada.obi@example.com", EnrollmentType: constants.EnrollmentTypeBoarding},
		{AdmissionNo: "GHS/2024/002", Name: "Tunde Bello", Email: "tunde.bello@example.com", EnrollmentType: constants.EnrollmentTypeDay},
		{AdmissionNo: "GHS/2024/003", Name: "Chioma Eze", Email: "chioma.eze@example.com", EnrollmentType: constants.EnrollmentTypeDay},
	}
	studentIDs := make([]uint, 0, len(students))
	for _, item := range students {
		student, err := c.SchoolService.CreateStudent(service.CreateStudentInput{
			SchoolID:       school.ID,
			AdmissionNo:    item.AdmissionNo,
			Name:           item.Name,
			Email:          item.Email,
			Password:       seedPassword,
			EnrollmentType: item.EnrollmentType,
		})
		if err != nil {
			stdLog.Printf("Failed to create student %s: %v", item.AdmissionNo, err)
			continue
		}
		studentIDs = append(studentIDs, student.ID)
		stdLog.Printf("Student ready: %s", student.AdmissionNo)
	}

	fee, err := c.FeeService.CreateFee(service.CreateFeeInput{
		SchoolID:            school.ID,
		Title:               "First term tuition",
		Description:         "Tuition and boarding levy",
		Term:                "2024/2025 T1",
		AmountDue:           models.MustMoney("150000"),
		DueDate:             time.Now().AddDate(0, 1, 0),
		AllowPartialPayment: true,
	})
	if err != nil {
		stdLog.Fatalf("Failed to create fee: %v", err)
	}
	result, err := c.FeeService.AssignFee(fee.ID, school.ID, studentIDs)
	if err != nil {
		stdLog.Fatalf("Failed to assign fee: %v", err)
	}
	stdLog.Printf("Fee %q assigned: created=%d skipped=%d", fee.Title, len(result.Created), len(result.Skipped))
	stdLog.Printf("Seed completed, student and bursar password: %s", seedPassword)
}
