package dao

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// JobStats 慢执行的统计记录
type JobStats struct {
	ID         int64  `gorm:"column:id;type:bigint;primaryKey;not null;autoIncrement" json:"id"`
	JobName    string `gorm:"column:job_name;type:varchar(64);not null;index" json:"job_name"`
	InstanceID string `gorm:"column:instance_id;type:varchar(255);not null" json:"instance_id"`
	// StartTime/EndTime epoch毫秒
	StartTime      int64 `gorm:"column:start_time;type:bigint;not null" json:"start_time"`
	EndTime        int64 `gorm:"column:end_time;type:bigint;not null;index" json:"end_time"`
	ProcessedCount int64 `gorm:"column:processed_count;type:bigint;not null;default:0" json:"processed_count"`
	CreatedTime    int64 `gorm:"column:created_time;type:bigint;not null" json:"created_time"`
}

func (JobStats) TableName() string {
	return "job_stats"
}

// StatsDAO 实现StatisticSink
type StatsDAO struct {
	db         *gorm.DB
	instanceID string
}

func NewStatsDAO(db *gorm.DB, instanceID string) *StatsDAO {
	return &StatsDAO{db: db, instanceID: instanceID}
}

func (s *StatsDAO) AddJobStats(ctx context.Context, jobName string, start, end time.Time, processed int64) error {
	return s.db.WithContext(ctx).Create(&JobStats{
		JobName:        jobName,
		InstanceID:     s.instanceID,
		StartTime:      start.UnixMilli(),
		EndTime:        end.UnixMilli(),
		ProcessedCount: processed,
		CreatedTime:    time.Now().UnixMilli(),
	}).Error
}

func (s *StatsDAO) ListByJob(ctx context.Context, jobName string, limit int) ([]JobStats, error) {
	if limit <= 0 {
		limit = 50
	}
	var res []JobStats
	err := s.db.WithContext(ctx).Where("job_name = ?", jobName).
		Order("end_time DESC").Limit(limit).Find(&res).Error
	return res, err
}

// Purge 删除before之前结束的记录，返回删除的行数
func (s *StatsDAO) Purge(ctx context.Context, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("end_time < ?", before.UnixMilli()).Delete(&JobStats{})
	return res.RowsAffected, res.Error
}
