package dao

import "gorm.io/gorm"

// AutoMigrate 创建或更新所有表结构
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Lock{}, &JobStats{}, &BatchAckRecord{}, &NodeHost{})
}
