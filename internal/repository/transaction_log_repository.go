package repository

import (
	"strings"
	"time"

	"github.com/schoolpay-next/internal/models"

	"gorm.io/gorm"
)

// TransactionLogRepository 交易日志数据访问接口（仅追加）
type TransactionLogRepository interface {
	Create(entry *models.TransactionLog) error
	CountByActionSince(action, subject string, since time.Time) (int64, error)
	List(filter TransactionLogListFilter) ([]models.TransactionLog, int64, error)
	WithTx(tx *gorm.DB) *GormTransactionLogRepository
}

// GormTransactionLogRepository GORM 实现
type GormTransactionLogRepository struct {
	db *gorm.DB
}

// NewTransactionLogRepository 创建交易日志仓库
func NewTransactionLogRepository(db *gorm.DB) *GormTransactionLogRepository {
	return &GormTransactionLogRepository{db: db}
}

// WithTx 绑定事务
func (r *GormTransactionLogRepository) WithTx(tx *gorm.DB) *GormTransactionLogRepository {
	if tx == nil {
		return r
	}
	return &GormTransactionLogRepository{db: tx}
}

// Create 追加日志
func (r *GormTransactionLogRepository) Create(entry *models.TransactionLog) error {
	if entry == nil {
		return nil
	}
	return r.db.Create(entry).Error
}

// CountByActionSince 统计时间窗口内某主体的动作次数
func (r *GormTransactionLogRepository) CountByActionSince(action, subject string, since time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&models.TransactionLog{}).
		Where("action = ? AND subject = ? AND created_at >= ?", action, subject, since).
		Count(&count).Error
	return count, err
}

// List 分页查询交易日志
func (r *GormTransactionLogRepository) List(filter TransactionLogListFilter) ([]models.TransactionLog, int64, error) {
	query := r.db.Model(&models.TransactionLog{})
	if filter.SchoolID != 0 {
		query = query.Where("school_id = ?", filter.SchoolID)
	}
	if filter.StudentID != 0 {
		query = query.Where("student_id = ?", filter.StudentID)
	}
	if filter.PaymentID != 0 {
		query = query.Where("payment_id = ?", filter.PaymentID)
	}
	if filter.RefundID != 0 {
		query = query.Where("refund_id = ?", filter.RefundID)
	}
	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}
	if reference := strings.TrimSpace(filter.Reference); reference != "" {
		query = query.Where(jsonTextExpr(r.db, "metadata", "reference")+" = ?", reference)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var logs []models.TransactionLog
	if err := query.Order("id desc").Find(&logs).Error; err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}
