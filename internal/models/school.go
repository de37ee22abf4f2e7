package models

import "time"

// School 学校表
type School struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	Code      string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"code"` // 学校编码（登录时使用）
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`            // 学校名称
	Email     string    `gorm:"type:varchar(255)" json:"email"`                    // 财务联系邮箱
	Currency  string    `gorm:"type:varchar(8);not null;default:'NGN'" json:"currency"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 指定表名
func (School) TableName() string {
	return "schools"
}
