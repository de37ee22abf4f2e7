package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/schoolpay-next/internal/cache"
	"github.com/schoolpay-next/internal/config"
	"github.com/schoolpay-next/internal/models"
	"github.com/schoolpay-next/internal/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupAuthService(t *testing.T, name string) *AuthService {
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
	cfg := &config.Config{}
	cfg.JWT.SecretKey = "admin-test-secret"
	cfg.JWT.ExpireHours = 2
	cfg.Security.PasswordPolicy.MinLength = 8
	cfg.Security.PasswordPolicy.RequireNumber = true
	return NewAuthService(cfg, repository.NewAdminRepository(db))
}

func TestAuthServiceLoginAndPasswordRotation(t *testing.T) {
	svc := setupAuthService(t, "auth_login")
	admin, err := svc.CreateAdmin(CreateAdminInput{Username: "bursar", Password: "Passw0rd1", SchoolID: 3})
	if err != nil {
		t.Fatalf("create admin failed: %v", err)
	}
	t.Cleanup(func() { _ = cache.DelAdminAuthState(context.Background(), admin.ID) })

	if _, _, _, err := svc.Login("bursar", "wrong-pass1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, _, _, err := svc.Login("nobody", "Passw0rd1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown user should look like bad credentials, got %v", err)
	}

	logged, token, _, err := svc.Login(" bursar ", "Passw0rd1")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if logged.LastLoginAt == nil {
		t.Fatalf("last login should be set")
	}
	claims, err := svc.ParseJWT(token)
	if err != nil {
		t.Fatalf("parse token failed: %v", err)
	}
	if claims.AdminID != admin.ID || claims.SchoolID != 3 || claims.TokenVersion != 0 {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	if err := svc.ChangePassword(admin.ID, "bad-old1", "NewPassw0rd"); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("expected invalid password, got %v", err)
	}
	if err := svc.ChangePassword(admin.ID, "Passw0rd1", "short"); err == nil {
		t.Fatalf("weak password should be rejected")
	}
	if err := svc.ChangePassword(admin.ID, "Passw0rd1", "NewPassw0rd"); err != nil {
		t.Fatalf("change password failed: %v", err)
	}
	reloaded, err := svc.GetAdmin(admin.ID)
	if err != nil {
		t.Fatalf("reload admin failed: %v", err)
	}
	if reloaded.TokenVersion != 1 {
		t.Fatalf("token version want 1 got %d", reloaded.TokenVersion)
	}
	if _, _, _, err := svc.Login("bursar", "NewPassw0rd"); err != nil {
		t.Fatalf("login with new password failed: %v", err)
	}
}

func TestAuthServiceCreateAdminRules(t *testing.T) {
	svc := setupAuthService(t, "auth_create")

	if _, err := svc.CreateAdmin(CreateAdminInput{Username: "orphan", Password: "Passw0rd1"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("school admin without school should fail, got %v", err)
	}
	super, err := svc.CreateAdmin(CreateAdminInput{Username: "root", Password: "Passw0rd1", SchoolID: 9, IsSuper: true})
	if err != nil {
		t.Fatalf("create super failed: %v", err)
	}
	if super.SchoolID != 0 {
		t.Fatalf("super admin should not be bound to a school, got %d", super.SchoolID)
	}
	if _, err := svc.CreateAdmin(CreateAdminInput{Username: "root", Password: "Passw0rd1", IsSuper: true}); !errors.Is(err, ErrAdminExists) {
		t.Fatalf("duplicate username should fail, got %v", err)
	}

	existing, created, err := svc.EnsureSuperAdmin("root", "Another1pass")
	if err != nil || created || existing.ID != super.ID {
		t.Fatalf("ensure should reuse existing admin: created=%v err=%v", created, err)
	}

	if _, err := svc.CreateAdmin(CreateAdminInput{Username: "clerk", Password: "Passw0rd1", SchoolID: 2}); err != nil {
		t.Fatalf("create clerk failed: %v", err)
	}
	scoped, err := svc.ListAdmins(2)
	if err != nil {
		t.Fatalf("list admins failed: %v", err)
	}
	if len(scoped) != 1 || scoped[0].Username != "clerk" {
		t.Fatalf("school scoped list mismatch: %+v", scoped)
	}
	all, err := svc.ListAdmins(0)
	if err != nil {
		t.Fatalf("list all admins failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 admins got %d", len(all))
	}
}
