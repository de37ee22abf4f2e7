package repository

import (
	"errors"
	"strings"

	"github.com/schoolpay-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GatewayConfigRepository 学校网关配置数据访问接口
type GatewayConfigRepository interface {
	GetBySchoolAndProvider(schoolID uint, provider string) (*models.SchoolGatewayConfig, error)
	ListBySchool(schoolID uint) ([]models.SchoolGatewayConfig, error)
	Upsert(cfg *models.SchoolGatewayConfig) error
}

// GormGatewayConfigRepository GORM 实现
type GormGatewayConfigRepository struct {
	db *gorm.DB
}

// NewGatewayConfigRepository 创建网关配置仓库
func NewGatewayConfigRepository(db *gorm.DB) *GormGatewayConfigRepository {
	return &GormGatewayConfigRepository{db: db}
}

// GetBySchoolAndProvider 获取学校指定网关的配置
func (r *GormGatewayConfigRepository) GetBySchoolAndProvider(schoolID uint, provider string) (*models.SchoolGatewayConfig, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if schoolID == 0 || provider == "" {
		return nil, nil
	}
	var cfg models.SchoolGatewayConfig
	if err := r.db.Where("school_id = ? AND provider = ?", schoolID, provider).First(&cfg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cfg, nil
}

// ListBySchool 获取学校全部网关配置
func (r *GormGatewayConfigRepository) ListBySchool(schoolID uint) ([]models.SchoolGatewayConfig, error) {
	configs := make([]models.SchoolGatewayConfig, 0)
	if err := r.db.Where("school_id = ?", schoolID).Order("id asc").Find(&configs).Error; err != nil {
		return nil, err
	}
	return configs, nil
}

// Upsert 按 (school_id, provider) 写入配置
func (r *GormGatewayConfigRepository) Upsert(cfg *models.SchoolGatewayConfig) error {
	if cfg == nil {
		return nil
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "school_id"}, {Name: "provider"}},
		DoUpdates: clause.AssignmentColumns([]string{"secret_key", "public_key", "webhook_secret", "callback_url", "enabled", "updated_at"}),
	}).Create(cfg).Error
}
