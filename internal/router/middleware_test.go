package router

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/schoolpay-next/internal/cache"
	"github.com/schoolpay-next/internal/config"
	"github.com/schoolpay-next/internal/constants"
	"github.com/schoolpay-next/internal/models"
	"github.com/schoolpay-next/internal/repository"
	"github.com/schoolpay-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func TestResolveAllowedOrigin(t *testing.T) {
	got := resolveAllowedOrigin("https://example.com", []string{"*"}, false)
	if got != "*" {
		t.Fatalf("wildcard without credentials should return *, got %s", got)
	}

	got = resolveAllowedOrigin("https://example.com", []string{"*"}, true)
	if got != "https://example.com" {
		t.Fatalf("wildcard with credentials should echo origin, got %s", got)
	}

	got = resolveAllowedOrigin("https://a.example.com", []string{"https://a.example.com", "https://b.example.com"}, false)
	if got != "https://a.example.com" {
		t.Fatalf("allow-list should return matched origin, got %s", got)
	}

	got = resolveAllowedOrigin("https://x.example.com", []string{"https://a.example.com"}, false)
	if got != "" {
		t.Fatalf("unmatched origin should be empty, got %s", got)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"request_id": getRequestID(c)})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(requestIDHeader, "req-123")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status want 200 got %d", w.Code)
	}
	if w.Header().Get(requestIDHeader) != "req-123" {
		t.Fatalf("response request id want req-123 got %s", w.Header().Get(requestIDHeader))
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v", err)
	}
	if resp["request_id"] != "req-123" {
		t.Fatalf("context request id want req-123 got %s", resp["request_id"])
	}

	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodGet, "/ping", nil)
	r.ServeHTTP(w2, req2)
	generated := w2.Header().Get(requestIDHeader)
	if generated == "" {
		t.Fatalf("generated request id should not be empty")
	}
	if resp := strings.TrimSpace(generated); resp == "" {
		t.Fatalf("generated request id should not be blank")
	}
}

func TestJWTAuthMiddlewareMissingSecret(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(JWTAuthMiddleware("", nil))
	r.GET("/admin/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status want 200 got %d", w.Code)
	}
	var resp struct {
		StatusCode int `json:"status_code"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v", err)
	}
	if resp.StatusCode != 401 {
		t.Fatalf("status_code want 401 got %d", resp.StatusCode)
	}
}

type middlewareFixture struct {
	cfg     *config.Config
	admin   *models.Admin
	student *models.Student
}

func setupMiddlewareFixture(t *testing.T, name string) *middlewareFixture {
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

	school := &models.School{Code: "MWS", Name: "Middleware School", Currency: "NGN"}
	if err := db.Create(school).Error; err != nil {
		t.Fatalf("create school failed: %v", err)
	}
	admin := &models.Admin{Username: "bursar_mw", PasswordHash: "x", SchoolID: school.ID}
	if err := db.Create(admin).Error; err != nil {
		t.Fatalf("create admin failed: %v", err)
	}
	student := &models.Student{
		SchoolID:       school.ID,
		AdmissionNo:    "MWS/001",
		Name:           "Tolu Ade",
		PasswordHash:   "x",
		EnrollmentType: constants.EnrollmentTypeDay,
		Status:         constants.StudentStatusActive,
	}
	if err := db.Create(student).Error; err != nil {
		t.Fatalf("create student failed: %v", err)
	}
	_ = cache.DelAdminAuthState(context.Background(), admin.ID)
	_ = cache.DelStudentAuthState(context.Background(), student.ID)
	t.Cleanup(func() {
		_ = cache.DelAdminAuthState(context.Background(), admin.ID)
		_ = cache.DelStudentAuthState(context.Background(), student.ID)
	})

	cfg := &config.Config{}
	cfg.JWT.SecretKey = "admin-secret"
	cfg.JWT.ExpireHours = 1
	cfg.StudentJWT.SecretKey = "student-secret"
	cfg.StudentJWT.ExpireHours = 1
	return &middlewareFixture{cfg: cfg, admin: admin, student: student}
}

func decodeStatusCode(t *testing.T, w *httptest.ResponseRecorder) int {
	t.Helper()
	var resp struct {
		StatusCode int `json:"status_code"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v", err)
	}
	return resp.StatusCode
}

func TestJWTAuthMiddlewareSetsSchoolScope(t *testing.T) {
	fx := setupMiddlewareFixture(t, "mw_admin_scope")
	token, _, err := service.NewAuthService(fx.cfg, repository.NewAdminRepository(models.DB)).GenerateJWT(fx.admin)
	if err != nil {
		t.Fatalf("generate admin token failed: %v", err)
	}

	r := gin.New()
	r.Use(JWTAuthMiddleware(fx.cfg.JWT.SecretKey, repository.NewAdminRepository(models.DB)))
	r.GET("/admin/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status_code": 0,
			"admin_id":    c.GetUint(adminIDContextKey),
			"school_id":   c.GetUint(adminSchoolContextKey),
			"is_super":    c.GetBool(adminIsSuperContextKey),
		})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	var resp struct {
		AdminID  uint `json:"admin_id"`
		SchoolID uint `json:"school_id"`
		IsSuper  bool `json:"is_super"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v", err)
	}
	if resp.AdminID != fx.admin.ID || resp.SchoolID != fx.admin.SchoolID || resp.IsSuper {
		t.Fatalf("unexpected admin context: %+v", resp)
	}
}

func TestJWTAuthMiddlewareRejectsRevokedToken(t *testing.T) {
	fx := setupMiddlewareFixture(t, "mw_admin_revoked")
	token, _, err := service.NewAuthService(fx.cfg, repository.NewAdminRepository(models.DB)).GenerateJWT(fx.admin)
	if err != nil {
		t.Fatalf("generate admin token failed: %v", err)
	}
	if err := models.DB.Model(fx.admin).Update("token_version", fx.admin.TokenVersion+1).Error; err != nil {
		t.Fatalf("bump token version failed: %v", err)
	}

	r := gin.New()
	r.Use(JWTAuthMiddleware(fx.cfg.JWT.SecretKey, repository.NewAdminRepository(models.DB)))
	r.GET("/admin/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status_code": 0})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	if code := decodeStatusCode(t, w); code != 401 {
		t.Fatalf("status_code want 401 got %d", code)
	}
}

func TestStudentJWTAuthMiddleware(t *testing.T) {
	fx := setupMiddlewareFixture(t, "mw_student")
	studentAuth := service.NewStudentAuthService(fx.cfg, nil, nil, nil, nil, nil, nil)
	token, _, err := studentAuth.GenerateStudentJWT(fx.student)
	if err != nil {
		t.Fatalf("generate student token failed: %v", err)
	}

	r := gin.New()
	r.Use(StudentJWTAuthMiddleware(fx.cfg.StudentJWT.SecretKey, repository.NewStudentRepository(models.DB)))
	r.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status_code": 0,
			"student_id":  c.GetUint(studentIDContextKey),
			"school_id":   c.GetUint(studentSchoolContextKey),
		})
	})

	send := func(auth string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		r.ServeHTTP(w, req)
		return w
	}

	w := send("Bearer " + token)
	var resp struct {
		StatusCode int  `json:"status_code"`
		StudentID  uint `json:"student_id"`
		SchoolID   uint `json:"school_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v", err)
	}
	if resp.StatusCode != 0 || resp.StudentID != fx.student.ID || resp.SchoolID != fx.student.SchoolID {
		t.Fatalf("unexpected student context: %+v", resp)
	}

	if code := decodeStatusCode(t, send("Token "+token)); code != 401 {
		t.Fatalf("malformed header status_code want 401 got %d", code)
	}

	// 管理端密钥签发的 Token 不能访问学生接口
	adminToken, _, err := service.NewAuthService(fx.cfg, repository.NewAdminRepository(models.DB)).GenerateJWT(fx.admin)
	if err != nil {
		t.Fatalf("generate admin token failed: %v", err)
	}
	if code := decodeStatusCode(t, send("Bearer "+adminToken)); code != 401 {
		t.Fatalf("admin token status_code want 401 got %d", code)
	}

	if err := models.DB.Model(fx.student).Update("status", constants.StudentStatusDisabled).Error; err != nil {
		t.Fatalf("disable student failed: %v", err)
	}
	_ = cache.DelStudentAuthState(context.Background(), fx.student.ID)
	if code := decodeStatusCode(t, send("Bearer "+token)); code != 401 {
		t.Fatalf("disabled student status_code want 401 got %d", code)
	}
}
