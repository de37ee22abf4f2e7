package models

import "time"

// FraudCheckQueue 风控评分失败后的重试记录
type FraudCheckQueue struct {
	ID             uint       `gorm:"primarykey" json:"id"`
	PaymentID      uint       `gorm:"index;not null" json:"payment_id"`
	SchoolID       uint       `gorm:"index;not null" json:"school_id"`
	StudentID      uint       `gorm:"index" json:"student_id"`
	RequestPayload JSON       `gorm:"type:json" json:"request_payload"` // 特征向量
	Status         string     `gorm:"type:varchar(16);index;not null" json:"status"`
	Retries        int        `gorm:"not null;default:0" json:"retries"`
	LastAttemptAt  *time.Time `json:"last_attempt_at"`
	LastError      string     `gorm:"type:text" json:"last_error"`
	CreatedAt      time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// TableName 指定表名
func (FraudCheckQueue) TableName() string {
	return "fraud_check_queue"
}

// FraudEvaluationLog 风控评分结果
type FraudEvaluationLog struct {
	ID                  uint      `gorm:"primarykey" json:"id"`
	PaymentID           uint      `gorm:"index;not null" json:"payment_id"`
	SchoolID            uint      `gorm:"index;not null" json:"school_id"`
	StudentID           uint      `gorm:"index" json:"student_id"`
	Source              string    `gorm:"type:varchar(16);not null" json:"source"` // live / retry
	ReconstructionError float64   `json:"reconstruction_error"`
	Threshold           float64   `json:"threshold"`
	FraudScore          float64   `gorm:"index" json:"fraud_score"`
	AnomalyScale        string    `gorm:"type:varchar(32)" json:"anomaly_scale"`
	RequestPayload      JSON      `gorm:"type:json" json:"request_payload"`
	CreatedAt           time.Time `gorm:"index" json:"created_at"`
}

// TableName 指定表名
func (FraudEvaluationLog) TableName() string {
	return "fraud_evaluation_logs"
}
