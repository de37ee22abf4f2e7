package service

import (
	"github.com/schoolpay-next/internal/models"
	"github.com/schoolpay-next/internal/repository"
)

// TransactionLogService 交易日志查询
type TransactionLogService struct {
	repo repository.TransactionLogRepository
}

// NewTransactionLogService 创建交易日志查询服务
func NewTransactionLogService(repo repository.TransactionLogRepository) *TransactionLogService {
	return &TransactionLogService{repo: repo}
}

// List 按学校、支付、退款或动作过滤
func (s *TransactionLogService) List(filter repository.TransactionLogListFilter) ([]models.TransactionLog, int64, error) {
	return s.repo.List(filter)
}
