package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// Refund 退款申请，状态 requested -> approved -> processed，或 rejected / failed
type Refund struct {
	ID                uint             `gorm:"primarykey" json:"id"`
	PaymentID         uint             `gorm:"index;not null" json:"payment_id"`
	StudentID         uint             `gorm:"index;not null" json:"student_id"`
	SchoolID          uint             `gorm:"index;not null" json:"school_id"`
	Amount            Money            `gorm:"type:decimal(20,2);not null" json:"amount"`
	Reason            string           `gorm:"type:text" json:"reason"`
	FraudScore        float64          `gorm:"not null;default:0" json:"fraud_score"`
	Status            string           `gorm:"type:varchar(16);index;not null" json:"status"`
	ProviderRefundRef string           `gorm:"type:varchar(128);index" json:"provider_refund_ref"` // 网关退款流水号
	ReviewedBy        *uint            `json:"reviewed_by"`
	ReviewedAt        *time.Time       `json:"reviewed_at"`
	AuditTrail        RefundAuditTrail `gorm:"type:json" json:"audit_trail"` // 仅追加
	CreatedAt         time.Time        `gorm:"index" json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// TableName 指定表名
func (Refund) TableName() string {
	return "refunds"
}

// RefundAuditEntry 退款审计条目
type RefundAuditEntry struct {
	Action    string    `json:"action"`
	Status    string    `json:"status"`
	ActorType string    `json:"actor_type"`
	ActorID   uint      `json:"actor_id"`
	Timestamp time.Time `json:"timestamp"`
	IP        string    `json:"ip,omitempty"`
	Device    string    `json:"device_signature,omitempty"`
	Metadata  JSON      `json:"metadata,omitempty"`
}

// RefundAuditTrail 审计轨迹
type RefundAuditTrail []RefundAuditEntry

// Value 实现 driver.Valuer 接口
func (t RefundAuditTrail) Value() (driver.Value, error) {
	if t == nil {
		return json.Marshal([]RefundAuditEntry{})
	}
	return json.Marshal(t)
}

// Scan 实现 sql.Scanner 接口
func (t *RefundAuditTrail) Scan(value interface{}) error {
	raw, ok, err := scanJSONBytes(value)
	if err != nil || !ok {
		*t = RefundAuditTrail{}
		return err
	}
	return json.Unmarshal(raw, t)
}
