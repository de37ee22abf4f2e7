package models

import "time"

// SchoolGatewayConfig 学校的网关凭据
type SchoolGatewayConfig struct {
	ID            uint      `gorm:"primarykey" json:"id"`
	SchoolID      uint      `gorm:"not null;uniqueIndex:idx_school_gateway_provider" json:"school_id"`
	Provider      string    `gorm:"type:varchar(32);not null;uniqueIndex:idx_school_gateway_provider" json:"provider"`
	SecretKey     string    `gorm:"type:varchar(255);not null" json:"-"`
	PublicKey     string    `gorm:"type:varchar(255)" json:"public_key"`
	WebhookSecret string    `gorm:"type:varchar(255)" json:"-"` // 为空时使用 SecretKey
	CallbackURL   string    `gorm:"type:varchar(512)" json:"callback_url"`
	Enabled       bool      `gorm:"not null" json:"enabled"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName 指定表名
func (SchoolGatewayConfig) TableName() string {
	return "school_gateway_configs"
}
