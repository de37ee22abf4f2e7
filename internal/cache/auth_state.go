package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/schoolpay-next/internal/models"
)

const authStateCacheTTL = 10 * time.Minute

// StudentAuthState 学生鉴权快照
type StudentAuthState struct {
	StudentID    uint   `json:"student_id"`
	SchoolID     uint   `json:"school_id"`
	Status       string `json:"status"`
	TokenVersion uint64 `json:"token_version"`
	UpdatedAt    int64  `json:"updated_at"`
}

// AdminAuthState 管理员鉴权快照
type AdminAuthState struct {
	AdminID      uint   `json:"admin_id"`
	SchoolID     uint   `json:"school_id"`
	Username     string `json:"username"`
	TokenVersion uint64 `json:"token_version"`
	IsSuper      bool   `json:"is_super"`
	UpdatedAt    int64  `json:"updated_at"`
}

func studentAuthStateKey(studentID uint) string {
	return fmt.Sprintf("auth:student:%d", studentID)
}

func adminAuthStateKey(adminID uint) string {
	return fmt.Sprintf("auth:admin:%d", adminID)
}

// BuildStudentAuthState 从学生模型构建鉴权快照
func BuildStudentAuthState(student *models.Student) *StudentAuthState {
	if student == nil {
		return nil
	}
	return &StudentAuthState{
		StudentID:    student.ID,
		SchoolID:     student.SchoolID,
		Status:       student.Status,
		TokenVersion: student.TokenVersion,
		UpdatedAt:    time.Now().Unix(),
	}
}

// BuildAdminAuthState 从管理员模型构建鉴权快照
func BuildAdminAuthState(admin *models.Admin) *AdminAuthState {
	if admin == nil {
		return nil
	}
	return &AdminAuthState{
		AdminID:      admin.ID,
		SchoolID:     admin.SchoolID,
		Username:     admin.Username,
		TokenVersion: admin.TokenVersion,
		IsSuper:      admin.IsSuper,
		UpdatedAt:    time.Now().Unix(),
	}
}

// GetStudentAuthState 获取学生鉴权快照
func GetStudentAuthState(ctx context.Context, studentID uint) (*StudentAuthState, bool, error) {
	if studentID == 0 {
		return nil, false, nil
	}
	var state StudentAuthState
	hit, err := GetJSON(ctx, studentAuthStateKey(studentID), &state)
	if err != nil || !hit {
		return nil, hit, err
	}
	return &state, true, nil
}

// SetStudentAuthState 写入学生鉴权快照
func SetStudentAuthState(ctx context.Context, state *StudentAuthState) error {
	if state == nil || state.StudentID == 0 {
		return nil
	}
	return SetJSON(ctx, studentAuthStateKey(state.StudentID), state, authStateCacheTTL)
}

// DelStudentAuthState 删除学生鉴权快照
func DelStudentAuthState(ctx context.Context, studentID uint) error {
	if studentID == 0 {
		return nil
	}
	return Del(ctx, studentAuthStateKey(studentID))
}

// GetAdminAuthState 获取管理员鉴权快照
func GetAdminAuthState(ctx context.Context, adminID uint) (*AdminAuthState, bool, error) {
	if adminID == 0 {
		return nil, false, nil
	}
	var state AdminAuthState
	hit, err := GetJSON(ctx, adminAuthStateKey(adminID), &state)
	if err != nil || !hit {
		return nil, hit, err
	}
	return &state, true, nil
}

// SetAdminAuthState 写入管理员鉴权快照
func SetAdminAuthState(ctx context.Context, state *AdminAuthState) error {
	if state == nil || state.AdminID == 0 {
		return nil
	}
	return SetJSON(ctx, adminAuthStateKey(state.AdminID), state, authStateCacheTTL)
}

// DelAdminAuthState 删除管理员鉴权快照
func DelAdminAuthState(ctx context.Context, adminID uint) error {
	if adminID == 0 {
		return nil
	}
	return Del(ctx, adminAuthStateKey(adminID))
}
