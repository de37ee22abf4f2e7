package repository

import (
	"github.com/schoolpay-next/internal/models"

	"gorm.io/gorm"
)

// DeviceRecordRepository 设备记录数据访问接口
type DeviceRecordRepository interface {
	Create(record *models.DeviceRecord) error
	GetLatestByStudent(studentID uint) (*models.DeviceRecord, error)
}

// GormDeviceRecordRepository GORM 实现
type GormDeviceRecordRepository struct {
	db *gorm.DB
}

// NewDeviceRecordRepository 创建设备记录仓库
func NewDeviceRecordRepository(db *gorm.DB) *GormDeviceRecordRepository {
	return &GormDeviceRecordRepository{db: db}
}

// Create 写入设备记录
func (r *GormDeviceRecordRepository) Create(record *models.DeviceRecord) error {
	if record == nil {
		return nil
	}
	return r.db.Create(record).Error
}

// GetLatestByStudent 获取学生最近一次登录或发起支付的设备
func (r *GormDeviceRecordRepository) GetLatestByStudent(studentID uint) (*models.DeviceRecord, error) {
	var record models.DeviceRecord
	result := r.db.Where("student_id = ?", studentID).Order("created_at desc, id desc").Limit(1).Find(&record)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &record, nil
}
