package models

import "time"

// DeviceRecord 学生登录或发起支付时的设备指纹
type DeviceRecord struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	StudentID uint      `gorm:"index:idx_device_student_created;not null" json:"student_id"`
	Signature string    `gorm:"type:varchar(128);not null" json:"signature"`
	Source    string    `gorm:"type:varchar(16);not null" json:"source"` // login / payment_init
	IP        string    `gorm:"type:varchar(64)" json:"ip"`
	UserAgent string    `gorm:"type:varchar(512)" json:"user_agent"`
	CreatedAt time.Time `gorm:"index:idx_device_student_created" json:"created_at"`
}

// TableName 指定表名
func (DeviceRecord) TableName() string {
	return "device_records"
}
