package models

import (
	"time"

	"gorm.io/gorm"
)

// Fee 学校定义的收费项目
type Fee struct {
	ID                  uint           `gorm:"primarykey" json:"id"`
	SchoolID            uint           `gorm:"index;not null" json:"school_id"`
	Title               string         `gorm:"type:varchar(255);not null" json:"title"`
	Description         string         `gorm:"type:text" json:"description"`
	Term                string         `gorm:"type:varchar(64)" json:"term"`                        // 学期
	AmountDue           Money          `gorm:"type:decimal(20,2);not null" json:"amount_due"`       // 应缴金额
	DueDate             time.Time      `gorm:"index;not null" json:"due_date"`                      // 截止日期
	AllowPartialPayment bool           `gorm:"not null;default:false" json:"allow_partial_payment"` // 是否允许分期
	CreatedAt           time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
	DeletedAt           gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName 指定表名
func (Fee) TableName() string {
	return "fees"
}
