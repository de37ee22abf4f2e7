package repository

import (
	"errors"
	"time"

	"github.com/schoolpay-next/internal/constants"
	"github.com/schoolpay-next/internal/models"

	"gorm.io/gorm"
)

// FraudCheckQueueRepository 风控重试队列数据访问接口
type FraudCheckQueueRepository interface {
	Create(entry *models.FraudCheckQueue) error
	GetByID(id uint) (*models.FraudCheckQueue, error)
	ListQueued(limit int) ([]models.FraudCheckQueue, error)
	MarkProcessed(id uint, expectedRetries int, at time.Time) (int64, error)
	RecordFailure(id uint, expectedRetries int, status, lastError string, at time.Time) (int64, error)
	Requeue(id uint) (int64, error)
	List(filter FraudCheckQueueListFilter) ([]models.FraudCheckQueue, int64, error)
	WithTx(tx *gorm.DB) *GormFraudCheckQueueRepository
}

// GormFraudCheckQueueRepository GORM 实现
type GormFraudCheckQueueRepository struct {
	db *gorm.DB
}

// NewFraudCheckQueueRepository 创建风控重试队列仓库
func NewFraudCheckQueueRepository(db *gorm.DB) *GormFraudCheckQueueRepository {
	return &GormFraudCheckQueueRepository{db: db}
}

// WithTx 绑定事务
func (r *GormFraudCheckQueueRepository) WithTx(tx *gorm.DB) *GormFraudCheckQueueRepository {
	if tx == nil {
		return r
	}
	return &GormFraudCheckQueueRepository{db: tx}
}

// Create 创建重试记录
func (r *GormFraudCheckQueueRepository) Create(entry *models.FraudCheckQueue) error {
	return r.db.Create(entry).Error
}

// GetByID 根据 ID 获取重试记录
func (r *GormFraudCheckQueueRepository) GetByID(id uint) (*models.FraudCheckQueue, error) {
	var entry models.FraudCheckQueue
	if err := r.db.First(&entry, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// ListQueued 按创建顺序获取待处理记录
func (r *GormFraudCheckQueueRepository) ListQueued(limit int) ([]models.FraudCheckQueue, error) {
	entries := make([]models.FraudCheckQueue, 0)
	query := r.db.Where("status = ?", constants.FraudCheckStatusQueued).Order("id asc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// MarkProcessed 标记处理成功，以 (status, retries) 作为乐观锁
func (r *GormFraudCheckQueueRepository) MarkProcessed(id uint, expectedRetries int, at time.Time) (int64, error) {
	result := r.db.Model(&models.FraudCheckQueue{}).
		Where("id = ? AND status = ? AND retries = ?", id, constants.FraudCheckStatusQueued, expectedRetries).
		Updates(map[string]interface{}{
			"status":          constants.FraudCheckStatusProcessed,
			"last_attempt_at": at,
			"last_error":      "",
			"updated_at":      at,
		})
	return result.RowsAffected, result.Error
}

// RecordFailure 记录一次失败重试，retries 加一
func (r *GormFraudCheckQueueRepository) RecordFailure(id uint, expectedRetries int, status, lastError string, at time.Time) (int64, error) {
	result := r.db.Model(&models.FraudCheckQueue{}).
		Where("id = ? AND status = ? AND retries = ?", id, constants.FraudCheckStatusQueued, expectedRetries).
		Updates(map[string]interface{}{
			"status":          status,
			"retries":         expectedRetries + 1,
			"last_attempt_at": at,
			"last_error":      lastError,
			"updated_at":      at,
		})
	return result.RowsAffected, result.Error
}

// Requeue 将失败记录重置为待处理
func (r *GormFraudCheckQueueRepository) Requeue(id uint) (int64, error) {
	result := r.db.Model(&models.FraudCheckQueue{}).
		Where("id = ? AND status = ?", id, constants.FraudCheckStatusFailed).
		Updates(map[string]interface{}{
			"status":     constants.FraudCheckStatusQueued,
			"retries":    0,
			"updated_at": time.Now(),
		})
	return result.RowsAffected, result.Error
}

// List 分页查询重试记录
func (r *GormFraudCheckQueueRepository) List(filter FraudCheckQueueListFilter) ([]models.FraudCheckQueue, int64, error) {
	query := r.db.Model(&models.FraudCheckQueue{})
	if filter.SchoolID != 0 {
		query = query.Where("school_id = ?", filter.SchoolID)
	}
	if filter.PaymentID != 0 {
		query = query.Where("payment_id = ?", filter.PaymentID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var entries []models.FraudCheckQueue
	if err := query.Order("id desc").Find(&entries).Error; err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// FraudEvaluationRepository 风控评分记录数据访问接口
type FraudEvaluationRepository interface {
	Create(log *models.FraudEvaluationLog) error
	GetLatestByPayment(paymentID uint) (*models.FraudEvaluationLog, error)
	List(filter FraudEvaluationListFilter) ([]models.FraudEvaluationLog, int64, error)
	WithTx(tx *gorm.DB) *GormFraudEvaluationRepository
}

// GormFraudEvaluationRepository GORM 实现
type GormFraudEvaluationRepository struct {
	db *gorm.DB
}

// NewFraudEvaluationRepository 创建风控评分记录仓库
func NewFraudEvaluationRepository(db *gorm.DB) *GormFraudEvaluationRepository {
	return &GormFraudEvaluationRepository{db: db}
}

// WithTx 绑定事务
func (r *GormFraudEvaluationRepository) WithTx(tx *gorm.DB) *GormFraudEvaluationRepository {
	if tx == nil {
		return r
	}
	return &GormFraudEvaluationRepository{db: tx}
}

// Create 写入评分记录
func (r *GormFraudEvaluationRepository) Create(log *models.FraudEvaluationLog) error {
	return r.db.Create(log).Error
}

// GetLatestByPayment 获取支付最近一次评分
func (r *GormFraudEvaluationRepository) GetLatestByPayment(paymentID uint) (*models.FraudEvaluationLog, error) {
	var log models.FraudEvaluationLog
	result := r.db.Where("payment_id = ?", paymentID).Order("id desc").Limit(1).Find(&log)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &log, nil
}

// List 分页查询评分记录
func (r *GormFraudEvaluationRepository) List(filter FraudEvaluationListFilter) ([]models.FraudEvaluationLog, int64, error) {
	query := r.db.Model(&models.FraudEvaluationLog{})
	if filter.SchoolID != 0 {
		query = query.Where("school_id = ?", filter.SchoolID)
	}
	if filter.MinScore > 0 {
		query = query.Where("fraud_score >= ?", filter.MinScore)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var logs []models.FraudEvaluationLog
	if err := query.Order("id desc").Find(&logs).Error; err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}
