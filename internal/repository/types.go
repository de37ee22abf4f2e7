package repository

import "time"

// StudentListFilter 查询学生列表的过滤条件
type StudentListFilter struct {
	Page     int
	PageSize int
	SchoolID uint
	Keyword  string
	Status   string
}

// FeeListFilter 查询收费项目的过滤条件
type FeeListFilter struct {
	Page     int
	PageSize int
	SchoolID uint
	Term     string
}

// FeeAssignmentListFilter 查询缴费义务的过滤条件
type FeeAssignmentListFilter struct {
	Page      int
	PageSize  int
	SchoolID  uint
	StudentID uint
	FeeID     uint
	Status    string
}

// PaymentListFilter 查询支付列表的过滤条件
type PaymentListFilter struct {
	Page        int
	PageSize    int
	SchoolID    uint
	StudentID   uint
	FeeID       uint
	Status      string
	Reference   string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// RefundListFilter 查询退款列表的过滤条件
type RefundListFilter struct {
	Page      int
	PageSize  int
	SchoolID  uint
	StudentID uint
	PaymentID uint
	Status    string
}

// TransactionLogListFilter 查询交易日志的过滤条件
type TransactionLogListFilter struct {
	Page        int
	PageSize    int
	SchoolID    uint
	StudentID   uint
	PaymentID   uint
	RefundID    uint
	Action      string
	Reference   string // 匹配 metadata.reference
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// FraudCheckQueueListFilter 查询风控重试队列的过滤条件
type FraudCheckQueueListFilter struct {
	Page      int
	PageSize  int
	SchoolID  uint
	PaymentID uint
	Status    string
}

// FraudEvaluationListFilter 查询风控评分记录的过滤条件
type FraudEvaluationListFilter struct {
	Page     int
	PageSize int
	SchoolID uint
	MinScore float64
}
