// Package jobs 内置的Job类型
package jobs

import (
	"context"
	"time"

	job_scheduler "github.com/TimeWtr/job_scheduler"
	_const "github.com/TimeWtr/job_scheduler/const"
)

const PurgeJobName = "purge"

// Purger 删除过期统计的存储
type Purger interface {
	Purge(ctx context.Context, before time.Time) (int64, error)
}

// Purge 定期清理过期的执行统计
type Purge struct {
	purger    Purger
	retention time.Duration
	logger    job_scheduler.Logger
	now       func() time.Time
}

func NewPurge(purger Purger, retention time.Duration, logger job_scheduler.Logger) *Purge {
	if logger == nil {
		logger = job_scheduler.NewNopLogger()
	}
	return &Purge{purger: purger, retention: retention, logger: logger, now: time.Now}
}

func (p *Purge) Name() string {
	return PurgeJobName
}

func (p *Purge) Defaults() job_scheduler.JobDefaults {
	return job_scheduler.JobDefaults{
		ScheduleType: _const.ScheduleTypeInterval,
		Schedule:     "3600000",
		StartupType:  _const.StartupAutomatic,
	}
}

func (p *Purge) Execute(ctx context.Context, _ bool) error {
	before := p.now().Add(-p.retention)
	n, err := p.purger.Purge(ctx, before)
	if err != nil {
		return err
	}
	p.logger.Info("purged job statistics",
		job_scheduler.Field{Key: "rows", Val: n},
		job_scheduler.Field{Key: "before", Val: before})
	return nil
}
