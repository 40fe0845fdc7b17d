package dao

import (
	"context"
	"time"

	"github.com/TimeWtr/job_scheduler/domain"
	"gorm.io/gorm"
)

// BatchAckRecord 批次确认的审计记录
type BatchAckRecord struct {
	ID             int64  `gorm:"column:id;type:bigint;primaryKey;not null;autoIncrement"`
	BatchID        int64  `gorm:"column:batch_id;type:bigint;not null;index"`
	NodeID         string `gorm:"column:node_id;type:varchar(255);not null;index"`
	OK             bool   `gorm:"column:is_ok;not null"`
	Resend         bool   `gorm:"column:is_resend;not null"`
	Ignored        bool   `gorm:"column:ignored;not null"`
	Outcome        string `gorm:"column:outcome;type:varchar(16);not null"`
	ErrorLine      int64  `gorm:"column:error_line;type:bigint;not null;default:0"`
	NetworkMillis  int64  `gorm:"column:network_millis;type:bigint;not null;default:0"`
	FilterMillis   int64  `gorm:"column:filter_millis;type:bigint;not null;default:0"`
	DatabaseMillis int64  `gorm:"column:database_millis;type:bigint;not null;default:0"`
	StartTime      int64  `gorm:"column:start_time;type:bigint;not null;default:0"`
	ByteCount      int64  `gorm:"column:byte_count;type:bigint;not null;default:0"`
	SQLState       string `gorm:"column:sql_state;type:varchar(10);not null;default:''"`
	SQLCode        int    `gorm:"column:sql_code;type:int;not null;default:0"`
	SQLMessage     string `gorm:"column:sql_message;type:text"`
	CreatedTime    int64  `gorm:"column:created_time;type:bigint;not null"`
}

func (BatchAckRecord) TableName() string {
	return "batch_ack"
}

func (r BatchAckRecord) toDomain() domain.BatchAck {
	return domain.BatchAck{
		BatchID:        r.BatchID,
		NodeID:         r.NodeID,
		OK:             r.OK,
		Resend:         r.Resend,
		Ignored:        r.Ignored,
		ErrorLine:      r.ErrorLine,
		NetworkMillis:  r.NetworkMillis,
		FilterMillis:   r.FilterMillis,
		DatabaseMillis: r.DatabaseMillis,
		StartTime:      r.StartTime,
		ByteCount:      r.ByteCount,
		SQLState:       r.SQLState,
		SQLCode:        r.SQLCode,
		SQLMessage:     r.SQLMessage,
	}
}

type AckDAO struct {
	db *gorm.DB
}

func NewAckDAO(db *gorm.DB) *AckDAO {
	return &AckDAO{db: db}
}

// Save 记录收到的确认，确认本身不会被修改
func (a *AckDAO) Save(ctx context.Context, ack *domain.BatchAck) error {
	return a.db.WithContext(ctx).Create(&BatchAckRecord{
		BatchID:        ack.BatchID,
		NodeID:         ack.NodeID,
		OK:             ack.OK,
		Resend:         ack.Resend,
		Ignored:        ack.Ignored,
		Outcome:        ack.Outcome().String(),
		ErrorLine:      ack.ErrorLine,
		NetworkMillis:  ack.NetworkMillis,
		FilterMillis:   ack.FilterMillis,
		DatabaseMillis: ack.DatabaseMillis,
		StartTime:      ack.StartTime,
		ByteCount:      ack.ByteCount,
		SQLState:       ack.SQLState,
		SQLCode:        ack.SQLCode,
		SQLMessage:     ack.SQLMessage,
		CreatedTime:    time.Now().UnixMilli(),
	}).Error
}

// ListByNode 最近的确认在前
func (a *AckDAO) ListByNode(ctx context.Context, nodeID string, limit int) ([]domain.BatchAck, error) {
	if limit <= 0 {
		limit = 50
	}
	var records []BatchAckRecord
	err := a.db.WithContext(ctx).Where("node_id = ?", nodeID).
		Order("id DESC").Limit(limit).Find(&records).Error
	if err != nil {
		return nil, err
	}

	res := make([]domain.BatchAck, 0, len(records))
	for _, r := range records {
		res = append(res, r.toDomain())
	}
	return res, nil
}
