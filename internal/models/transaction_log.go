package models

import "time"

// TransactionLog 仅追加的交易审计日志
type TransactionLog struct {
	ID              uint      `gorm:"primarykey" json:"id"`
	SchoolID        uint      `gorm:"index" json:"school_id"`
	StudentID       *uint     `gorm:"index" json:"student_id"`
	PaymentID       *uint     `gorm:"index" json:"payment_id"`
	RefundID        *uint     `gorm:"index" json:"refund_id"`
	ActorType       string    `gorm:"type:varchar(16);not null" json:"actor_type"`
	ActorID         uint      `json:"actor_id"`
	Action          string    `gorm:"type:varchar(64);index;not null" json:"action"`
	Subject         string    `gorm:"type:varchar(128);index" json:"subject"` // 非实体主体，如登录账号
	IP              string    `gorm:"type:varchar(64)" json:"ip"`
	DeviceSignature string    `gorm:"type:varchar(128)" json:"device_signature"`
	ErrorMessage    string    `gorm:"type:text" json:"error_message"`
	Metadata        JSON      `gorm:"type:json" json:"metadata"`
	CreatedAt       time.Time `gorm:"index" json:"created_at"`
}

// TableName 指定表名
func (TransactionLog) TableName() string {
	return "transaction_logs"
}
