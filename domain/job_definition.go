package domain

import (
	"errors"

	_const "github.com/TimeWtr/job_scheduler/const"
)

var ErrEmptyJobName = errors.New("job name is required")

// JobDefinition Job的静态配置，由外部加载，对Job只读
type JobDefinition struct {
	// Name Job的唯一名称，同时也是集群锁的名称
	Name string
	// ScheduleType 调度方式
	ScheduleType _const.ScheduleType
	// Schedule cron表达式或者毫秒间隔
	Schedule string
	// StartupType 启动方式
	StartupType _const.StartupType
	// RequiresRegistration 是否要求节点已经注册到中心节点
	RequiresRegistration bool
}

func (d JobDefinition) Validate() error {
	if d.Name == "" {
		return ErrEmptyJobName
	}
	return nil
}
