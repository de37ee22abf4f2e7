package service

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/schoolpay-next/internal/models"
	"github.com/schoolpay-next/internal/repository"

	"gorm.io/gorm"
)

// RequestMeta 请求来源信息，写入交易日志与设备记录
type RequestMeta struct {
	IP              string
	UserAgent       string
	DeviceSignature string
}

// ResolveDeviceSignature 优先使用客户端上报的设备签名，否则取 User-Agent 的 SHA-256
func ResolveDeviceSignature(header, userAgent string) string {
	if signature := strings.TrimSpace(header); signature != "" {
		if len(signature) > 128 {
			signature = signature[:128]
		}
		return signature
	}
	sum := sha256.Sum256([]byte(strings.TrimSpace(userAgent)))
	return hex.EncodeToString(sum[:])
}

// TransactionRecorder 交易日志写入器，WithTx 后与业务写入处于同一事务
type TransactionRecorder interface {
	Record(entry *models.TransactionLog) error
	WithTx(tx *gorm.DB) TransactionRecorder
}

type gormTransactionRecorder struct {
	repo repository.TransactionLogRepository
}

// NewTransactionRecorder 创建基于仓储的交易日志写入器
func NewTransactionRecorder(repo repository.TransactionLogRepository) TransactionRecorder {
	return &gormTransactionRecorder{repo: repo}
}

func (r *gormTransactionRecorder) Record(entry *models.TransactionLog) error {
	if entry == nil {
		return nil
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	return r.repo.Create(entry)
}

func (r *gormTransactionRecorder) WithTx(tx *gorm.DB) TransactionRecorder {
	if tx == nil {
		return r
	}
	return &gormTransactionRecorder{repo: r.repo.WithTx(tx)}
}

// newTxLog 构建交易日志条目
func newTxLog(action, actorType string, actorID uint, meta RequestMeta) *models.TransactionLog {
	return &models.TransactionLog{
		Action:          action,
		ActorType:       actorType,
		ActorID:         actorID,
		IP:              strings.TrimSpace(meta.IP),
		DeviceSignature: strings.TrimSpace(meta.DeviceSignature),
		Metadata:        models.JSON{},
	}
}

func uintPtr(v uint) *uint {
	if v == 0 {
		return nil
	}
	return &v
}
