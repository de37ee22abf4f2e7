package models

import (
	"time"

	"gorm.io/gorm"
)

// Student 学生表
type Student struct {
	ID             uint           `gorm:"primarykey" json:"id"`                                                                   // 主键
	SchoolID       uint           `gorm:"not null;uniqueIndex:idx_student_school_admission" json:"school_id"`                     // 学校ID
	AdmissionNo    string         `gorm:"type:varchar(64);not null;uniqueIndex:idx_student_school_admission" json:"admission_no"` // 学号
	Name           string         `gorm:"type:varchar(255);not null" json:"name"`                                                 // 姓名
	Email          string         `gorm:"type:varchar(255)" json:"email"`                                                         // 接收凭证的邮箱
	PasswordHash   string         `gorm:"not null" json:"-"`                                                                      // 密码哈希
	EnrollmentType string         `gorm:"type:varchar(32);not null;default:'day'" json:"enrollment_type"`                         // 就读类型 boarding/day
	Status         string         `gorm:"type:varchar(16);not null;default:'active';index" json:"status"`                         // 状态
	TokenVersion   uint64         `gorm:"not null;default:0" json:"-"`                                                            // Token 版本
	LastLoginAt    *time.Time     `json:"last_login_at"`                                                                          // 最后登录时间
	CreatedAt      time.Time      `gorm:"index" json:"created_at"`                                                                // 创建时间
	UpdatedAt      time.Time      `json:"updated_at"`                                                                             // 更新时间
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`                                                                         // 软删除时间

	School *School `gorm:"foreignKey:SchoolID" json:"school,omitempty"`
}

// TableName 指定表名
func (Student) TableName() string {
	return "students"
}
