package models

import "time"

// Payment 一次缴费尝试，状态 initiated -> confirmed | rejected
type Payment struct {
	ID               uint             `gorm:"primarykey" json:"id"`                                    // 主键
	SchoolID         uint             `gorm:"index;not null" json:"school_id"`                         // 学校ID
	StudentID        uint             `gorm:"index;not null" json:"student_id"`                        // 学生ID
	FeeID            uint             `gorm:"index;not null" json:"fee_id"`                            // 收费项目ID
	FeeAssignmentID  uint             `gorm:"index;not null" json:"fee_assignment_id"`                 // 缴费义务ID
	Amount           Money            `gorm:"type:decimal(20,2);not null" json:"amount"`               // 支付金额
	Currency         string           `gorm:"type:varchar(8);not null" json:"currency"`                // 币种
	Provider         string           `gorm:"type:varchar(32);not null" json:"provider"`               // 网关
	Reference        string           `gorm:"type:varchar(128);uniqueIndex;not null" json:"reference"` // 网关交易参考号
	ProviderMetadata ProviderMetadata `gorm:"type:json" json:"provider_metadata"`                      // 网关元数据
	Status           string           `gorm:"type:varchar(16);index;not null" json:"status"`           // 支付状态
	ConfirmedAt      *time.Time       `gorm:"index" json:"confirmed_at"`                               // 确认时间
	RejectedAt       *time.Time       `json:"rejected_at"`                                             // 拒绝时间
	CreatedAt        time.Time        `gorm:"index" json:"created_at"`                                 // 创建时间
	UpdatedAt        time.Time        `gorm:"index" json:"updated_at"`                                 // 更新时间
}

// TableName 指定表名
func (Payment) TableName() string {
	return "payments"
}
