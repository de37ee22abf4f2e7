package service

import (
	"errors"
	"testing"

	"github.com/schoolpay-next/internal/config"
	"github.com/schoolpay-next/internal/constants"
	"github.com/schoolpay-next/internal/models"
	"github.com/schoolpay-next/internal/repository"
)

func setupStudentAuthTest(t *testing.T, name string) (*StudentAuthService, *paymentTestEnv) {
	t.Helper()
	env := setupPaymentTestEnv(t, name, nil)
	hash, err := HashPassword("secret123")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	env.db.Model(&models.Student{}).Where("id = ?", env.student.ID).Update("password_hash", hash)

	cfg := &config.Config{
		StudentJWT: config.JWTConfig{SecretKey: "student-secret", ExpireHours: 1},
		Security: config.SecurityConfig{
			LoginLockout: config.LoginLockoutConfig{WindowMinutes: 15, CaptchaThreshold: 3, LockThreshold: 5},
		},
	}
	logRepo := repository.NewTransactionLogRepository(env.db)
	svc := NewStudentAuthService(
		cfg,
		repository.NewSchoolRepository(env.db),
		repository.NewStudentRepository(env.db),
		repository.NewDeviceRecordRepository(env.db),
		logRepo,
		NewTransactionRecorder(logRepo),
		NewCaptchaService(config.CaptchaConfig{Provider: constants.CaptchaProviderImage}),
	)
	return svc, env
}

func TestStudentLoginSuccessRecordsDevice(t *testing.T) {
	svc, env := setupStudentAuthTest(t, "student_login_ok")

	result, err := svc.Login(StudentLoginInput{
		SchoolCode:  "ghs",
		AdmissionNo: "GHS/001",
		Password:    "secret123",
		Meta:        RequestMeta{IP: "10.0.0.2", DeviceSignature: "device-login"},
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	claims, err := svc.ParseStudentJWT(result.Token)
	if err != nil {
		t.Fatalf("parse token failed: %v", err)
	}
	if claims.StudentID != env.student.ID || claims.SchoolID != env.school.ID {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	var device models.DeviceRecord
	if err := env.db.Where("student_id = ? AND source = ?", env.student.ID, constants.DeviceSourceLogin).First(&device).Error; err != nil {
		t.Fatalf("login device record missing: %v", err)
	}
	if device.Signature != "device-login" {
		t.Fatalf("want device-login got %s", device.Signature)
	}
	if got := countTxLogs(t, env.db, constants.TxActionLoginSuccess); got != 1 {
		t.Fatalf("want one login_success got %d", got)
	}
}

func TestStudentLoginCaptchaThenLock(t *testing.T) {
	svc, env := setupStudentAuthTest(t, "student_login_lock")
	bad := StudentLoginInput{SchoolCode: "GHS", AdmissionNo: "GHS/001", Password: "wrong"}

	for i := 0; i < 3; i++ {
		if _, err := svc.Login(bad); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: want ErrInvalidCredentials got %v", i, err)
		}
	}
	guard, err := svc.Guard("GHS", "GHS/001")
	if err != nil {
		t.Fatalf("guard failed: %v", err)
	}
	if !guard.CaptchaRequired || guard.Locked {
		t.Fatalf("want captcha required, not locked: %+v", guard)
	}
	if _, err := svc.Login(bad); !errors.Is(err, ErrCaptchaRequired) {
		t.Fatalf("want ErrCaptchaRequired got %v", err)
	}

	// 直接写入失败日志模拟达到锁定阈值
	for i := 0; i < 2; i++ {
		svc.recordFailure(buildLoginSubject("GHS", "GHS/001"), env.school.ID, env.student, "password_mismatch", RequestMeta{})
	}
	good := StudentLoginInput{SchoolCode: "GHS", AdmissionNo: "GHS/001", Password: "secret123"}
	if _, err := svc.Login(good); !errors.Is(err, ErrLoginLocked) {
		t.Fatalf("want ErrLoginLocked got %v", err)
	}
}

func TestStudentLoginDisabled(t *testing.T) {
	svc, env := setupStudentAuthTest(t, "student_login_disabled")
	env.db.Model(&models.Student{}).Where("id = ?", env.student.ID).Update("status", constants.StudentStatusDisabled)

	_, err := svc.Login(StudentLoginInput{SchoolCode: "GHS", AdmissionNo: "GHS/001", Password: "secret123"})
	if !errors.Is(err, ErrStudentDisabled) {
		t.Fatalf("want ErrStudentDisabled got %v", err)
	}
}
