package dao

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NodeHost 节点的心跳记录
type NodeHost struct {
	InstanceID    string `gorm:"column:instance_id;type:varchar(255);primaryKey" json:"instance_id"`
	EngineName    string `gorm:"column:engine_name;type:varchar(255);not null" json:"engine_name"`
	HeartbeatTime int64  `gorm:"column:heartbeat_time;type:bigint;not null" json:"heartbeat_time"`
	CreatedTime   int64  `gorm:"column:created_time;type:bigint;not null" json:"created_time"`
}

func (NodeHost) TableName() string {
	return "node_host"
}

type HostDAO struct {
	db *gorm.DB
}

func NewHostDAO(db *gorm.DB) *HostDAO {
	return &HostDAO{db: db}
}

// Heartbeat 更新节点的心跳时间，不存在时创建
func (h *HostDAO) Heartbeat(ctx context.Context, instanceID, engineName string, at time.Time) error {
	return h.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "instance_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"engine_name", "heartbeat_time"}),
	}).Create(&NodeHost{
		InstanceID:    instanceID,
		EngineName:    engineName,
		HeartbeatTime: at.UnixMilli(),
		CreatedTime:   at.UnixMilli(),
	}).Error
}

func (h *HostDAO) Find(ctx context.Context, instanceID string) (NodeHost, bool, error) {
	var host NodeHost
	err := h.db.WithContext(ctx).Where("instance_id = ?", instanceID).First(&host).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NodeHost{}, false, nil
	}
	return host, err == nil, err
}
