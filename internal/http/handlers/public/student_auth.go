package public

import (
	handlershared "github.com/schoolpay-next/internal/http/handlers/shared"
	"github.com/schoolpay-next/internal/http/response"
	"github.com/schoolpay-next/internal/service"

	"github.com/gin-gonic/gin"
)

// StudentLoginRequest 学生登录请求
type StudentLoginRequest struct {
	SchoolCode     string                              `json:"school_code" binding:"required"`
	AdmissionNo    string                              `json:"admission_no" binding:"required"`
	Password       string                              `json:"password" binding:"required"`
	CaptchaPayload handlershared.CaptchaPayloadRequest `json:"captcha_payload"`
}

// LoginGuardQuery 登录保护状态查询
type LoginGuardQuery struct {
	SchoolCode  string `form:"school_code" binding:"required"`
	AdmissionNo string `form:"admission_no" binding:"required"`
}

// ChangePasswordRequest 修改密码请求
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// GetLoginGuard 查询账号是否需要验证码或已锁定
func (h *Handler) GetLoginGuard(c *gin.Context) {
	var query LoginGuardQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	guard, err := h.StudentAuthService.Guard(query.SchoolCode, query.AdmissionNo)
	if err != nil {
		respondError(c, response.CodeInternal, "error.login_failed", err)
		return
	}
	response.Success(c, guard)
}

// StudentLogin 学生登录
func (h *Handler) StudentLogin(c *gin.Context) {
	var req StudentLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}

	result, err := h.StudentAuthService.Login(service.StudentLoginInput{
		SchoolCode:  req.SchoolCode,
		AdmissionNo: req.AdmissionNo,
		Password:    req.Password,
		Captcha:     req.CaptchaPayload.ToServicePayload(),
		Meta:        handlershared.BuildRequestMeta(c),
	})
	if err != nil {
		respondStudentLoginError(c, err)
		return
	}
	response.Success(c, gin.H{
		"token":      result.Token,
		"student":    result.Student,
		"expires_at": result.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"),
	})
}

// GetCurrentStudent 当前登录学生
func (h *Handler) GetCurrentStudent(c *gin.Context) {
	studentID, ok := getStudentID(c)
	if !ok {
		return
	}
	student, err := h.StudentAuthService.GetStudent(studentID)
	if err != nil {
		respondWithMappedError(c, err, studentPasswordErrorRules, response.CodeInternal, "error.student_fetch_failed")
		return
	}
	response.Success(c, student)
}

// ChangeStudentPassword 修改密码，成功后旧 Token 失效
func (h *Handler) ChangeStudentPassword(c *gin.Context) {
	studentID, ok := getStudentID(c)
	if !ok {
		return
	}
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	if err := h.StudentAuthService.ChangePassword(studentID, req.OldPassword, req.NewPassword); err != nil {
		if handlershared.RespondPasswordPolicyError(c, err) {
			return
		}
		respondWithMappedError(c, err, studentPasswordErrorRules, response.CodeInternal, "error.password_update_failed")
		return
	}
	response.Success(c, gin.H{"updated": true})
}

// GetImageCaptcha 登录页的图片验证码
func (h *Handler) GetImageCaptcha(c *gin.Context) {
	if h.CaptchaService == nil || !h.CaptchaService.Enabled() {
		respondError(c, response.CodeBadRequest, "error.captcha_unavailable", nil)
		return
	}
	challenge, err := h.CaptchaService.GenerateImageChallenge()
	if err != nil {
		respondWithMappedError(c, err, captchaErrorRules, response.CodeInternal, "error.captcha_generate_failed")
		return
	}
	response.Success(c, challenge)
}
