package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/schoolpay-next/internal/cache"
	"github.com/schoolpay-next/internal/config"
	"github.com/schoolpay-next/internal/constants"
	"github.com/schoolpay-next/internal/logger"
	"github.com/schoolpay-next/internal/models"
	"github.com/schoolpay-next/internal/repository"

	"github.com/golang-jwt/jwt/v5"
)

// StudentAuthService 学生认证服务
type StudentAuthService struct {
	cfg         *config.Config
	schoolRepo  repository.SchoolRepository
	studentRepo repository.StudentRepository
	deviceRepo  repository.DeviceRecordRepository
	logRepo     repository.TransactionLogRepository
	recorder    TransactionRecorder
	captchaSvc  *CaptchaService
}

// NewStudentAuthService 创建学生认证服务
func NewStudentAuthService(
	cfg *config.Config,
	schoolRepo repository.SchoolRepository,
	studentRepo repository.StudentRepository,
	deviceRepo repository.DeviceRecordRepository,
	logRepo repository.TransactionLogRepository,
	recorder TransactionRecorder,
	captchaSvc *CaptchaService,
) *StudentAuthService {
	return &StudentAuthService{
		cfg:         cfg,
		schoolRepo:  schoolRepo,
		studentRepo: studentRepo,
		deviceRepo:  deviceRepo,
		logRepo:     logRepo,
		recorder:    recorder,
		captchaSvc:  captchaSvc,
	}
}

// StudentJWTClaims 学生 JWT 声明
type StudentJWTClaims struct {
	StudentID    uint   `json:"student_id"`
	SchoolID     uint   `json:"school_id"`
	AdmissionNo  string `json:"admission_no"`
	TokenVersion uint64 `json:"token_version"`
	jwt.RegisteredClaims
}

// StudentLoginInput 学生登录
type StudentLoginInput struct {
	SchoolCode  string
	AdmissionNo string
	Password    string
	Captcha     CaptchaVerifyPayload
	Meta        RequestMeta
}

// StudentLoginResult 登录结果
type StudentLoginResult struct {
	Student   *models.Student
	Token     string
	ExpiresAt time.Time
}

// LoginGuard 当前账号的登录保护状态
type LoginGuard struct {
	Failures        int64 `json:"failures"`
	CaptchaRequired bool  `json:"captcha_required"`
	Locked          bool  `json:"locked"`
}

// GenerateStudentJWT 生成学生 Token
func (s *StudentAuthService) GenerateStudentJWT(student *models.Student) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(time.Duration(resolveJWTExpireHours(s.cfg.StudentJWT)) * time.Hour)
	claims := StudentJWTClaims{
		StudentID:    student.ID,
		SchoolID:     student.SchoolID,
		AdmissionNo:  student.AdmissionNo,
		TokenVersion: student.TokenVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.cfg.StudentJWT.SecretKey))
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// ParseStudentJWT 解析学生 Token
func (s *StudentAuthService) ParseStudentJWT(tokenString string) (*StudentJWTClaims, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &StudentJWTClaims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.StudentJWT.SecretKey), nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*StudentJWTClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("无效的 token")
}

// Guard 统计窗口内的失败次数，决定是否需要验证码或锁定
func (s *StudentAuthService) Guard(schoolCode, admissionNo string) (*LoginGuard, error) {
	lockout := s.lockoutConfig()
	since := time.Now().Add(-time.Duration(lockout.WindowMinutes) * time.Minute)
	failures, err := s.logRepo.CountByActionSince(constants.TxActionLoginFailed, buildLoginSubject(schoolCode, admissionNo), since)
	if err != nil {
		return nil, err
	}
	return &LoginGuard{
		Failures:        failures,
		CaptchaRequired: s.captchaSvc.Enabled() && failures >= int64(lockout.CaptchaThreshold),
		Locked:          failures >= int64(lockout.LockThreshold),
	}, nil
}

// Login 学号 + 密码登录，成功与失败都写入交易日志
func (s *StudentAuthService) Login(input StudentLoginInput) (*StudentLoginResult, error) {
	schoolCode := strings.ToUpper(strings.TrimSpace(input.SchoolCode))
	admissionNo := strings.TrimSpace(input.AdmissionNo)
	if schoolCode == "" || admissionNo == "" || input.Password == "" {
		return nil, ErrInvalidInput
	}
	subject := buildLoginSubject(schoolCode, admissionNo)
	log := logger.SW("subject", subject, "ip", input.Meta.IP)

	guard, err := s.Guard(schoolCode, admissionNo)
	if err != nil {
		return nil, err
	}
	if guard.Locked {
		log.Warnw("student_login_locked", "failures", guard.Failures)
		return nil, ErrLoginLocked
	}
	if guard.CaptchaRequired {
		if err := s.captchaSvc.Verify(input.Captcha); err != nil {
			return nil, err
		}
	}

	school, err := s.schoolRepo.GetByCode(schoolCode)
	if err != nil {
		return nil, err
	}
	if school == nil {
		s.recordFailure(subject, 0, nil, "school_not_found", input.Meta)
		return nil, ErrInvalidCredentials
	}
	student, err := s.studentRepo.GetBySchoolAndAdmissionNo(school.ID, admissionNo)
	if err != nil {
		return nil, err
	}
	if student == nil {
		s.recordFailure(subject, school.ID, nil, "student_not_found", input.Meta)
		return nil, ErrInvalidCredentials
	}
	if err := VerifyPassword(student.PasswordHash, input.Password); err != nil {
		s.recordFailure(subject, school.ID, student, "password_mismatch", input.Meta)
		return nil, ErrInvalidCredentials
	}
	if student.Status != constants.StudentStatusActive {
		s.recordFailure(subject, school.ID, student, "student_disabled", input.Meta)
		return nil, ErrStudentDisabled
	}

	token, expiresAt, err := s.GenerateStudentJWT(student)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	if err := s.studentRepo.TouchLastLogin(student.ID, now); err != nil {
		log.Warnw("student_touch_last_login_failed", "error", err)
	}
	student.LastLoginAt = &now

	if err := s.deviceRepo.Create(&models.DeviceRecord{
		StudentID: student.ID,
		Signature: input.Meta.DeviceSignature,
		Source:    constants.DeviceSourceLogin,
		IP:        input.Meta.IP,
		UserAgent: truncateRunes(input.Meta.UserAgent, 512),
		CreatedAt: now,
	}); err != nil {
		log.Warnw("student_device_record_failed", "error", err)
	}
	entry := newTxLog(constants.TxActionLoginSuccess, constants.ActorTypeStudent, student.ID, input.Meta)
	entry.SchoolID = school.ID
	entry.StudentID = uintPtr(student.ID)
	entry.Subject = subject
	if err := s.recorder.Record(entry); err != nil {
		log.Warnw("student_login_tx_log_failed", "error", err)
	}
	_ = cache.SetStudentAuthState(context.Background(), cache.BuildStudentAuthState(student))
	log.Infow("student_login_success", "student_id", student.ID)
	return &StudentLoginResult{Student: student, Token: token, ExpiresAt: expiresAt}, nil
}

// GetStudent 获取学生
func (s *StudentAuthService) GetStudent(studentID uint) (*models.Student, error) {
	student, err := s.studentRepo.GetByID(studentID)
	if err != nil {
		return nil, err
	}
	if student == nil {
		return nil, ErrStudentNotFound
	}
	return student, nil
}

// ChangePassword 修改学生密码
func (s *StudentAuthService) ChangePassword(studentID uint, oldPassword, newPassword string) error {
	student, err := s.GetStudent(studentID)
	if err != nil {
		return err
	}
	if err := VerifyPassword(student.PasswordHash, oldPassword); err != nil {
		return ErrInvalidPassword
	}
	if err := validatePassword(s.cfg.Security.PasswordPolicy, newPassword); err != nil {
		return err
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	student.PasswordHash = hash
	student.TokenVersion++
	if err := s.studentRepo.Update(student); err != nil {
		return err
	}
	_ = cache.SetStudentAuthState(context.Background(), cache.BuildStudentAuthState(student))
	return nil
}

func (s *StudentAuthService) recordFailure(subject string, schoolID uint, student *models.Student, reason string, meta RequestMeta) {
	var actorID uint
	if student != nil {
		actorID = student.ID
	}
	entry := newTxLog(constants.TxActionLoginFailed, constants.ActorTypeStudent, actorID, meta)
	entry.SchoolID = schoolID
	entry.StudentID = uintPtr(actorID)
	entry.Subject = subject
	entry.ErrorMessage = reason
	if err := s.recorder.Record(entry); err != nil {
		logger.Warnw("student_login_tx_log_failed", "subject", subject, "error", err)
	}
	logger.Infow("student_login_failed", "subject", subject, "reason", reason, "ip", meta.IP)
}

func (s *StudentAuthService) lockoutConfig() config.LoginLockoutConfig {
	cfg := config.LoginLockoutConfig{}
	if s.cfg != nil {
		cfg = s.cfg.Security.LoginLockout
	}
	if cfg.WindowMinutes <= 0 {
		cfg.WindowMinutes = 15
	}
	if cfg.CaptchaThreshold <= 0 {
		cfg.CaptchaThreshold = 3
	}
	if cfg.LockThreshold <= 0 {
		cfg.LockThreshold = 8
	}
	return cfg
}

// buildLoginSubject 登录主体：学校编码 + 学号
func buildLoginSubject(schoolCode, admissionNo string) string {
	return fmt.Sprintf("%s:%s", strings.ToUpper(strings.TrimSpace(schoolCode)), strings.TrimSpace(admissionNo))
}

func truncateRunes(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit])
}
