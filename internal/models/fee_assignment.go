package models

import "time"

// FeeAssignment 学生的缴费义务，AmountPaid 为累计已缴金额
type FeeAssignment struct {
	ID            uint       `gorm:"primarykey" json:"id"`
	SchoolID      uint       `gorm:"index;not null" json:"school_id"`
	StudentID     uint       `gorm:"not null;uniqueIndex:idx_fee_assignment_student_fee" json:"student_id"`
	FeeID         uint       `gorm:"not null;uniqueIndex:idx_fee_assignment_student_fee" json:"fee_id"`
	AmountDue     Money      `gorm:"type:decimal(20,2);not null" json:"amount_due"`
	AmountPaid    Money      `gorm:"type:decimal(20,2);not null;default:0" json:"amount_paid"`
	DueDate       time.Time  `gorm:"index;not null" json:"due_date"`
	Status        string     `gorm:"type:varchar(32);index;not null" json:"status"`
	LastPaymentAt *time.Time `json:"last_payment_at"`
	CreatedAt     time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	Fee *Fee `gorm:"foreignKey:FeeID" json:"fee,omitempty"`
}

// TableName 指定表名
func (FeeAssignment) TableName() string {
	return "fee_assignments"
}
