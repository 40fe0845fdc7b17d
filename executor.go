package job_scheduler

import (
	"context"

	_const "github.com/TimeWtr/job_scheduler/const"
)

// Body Job的执行体，force为true表示运维手动触发。
// ctx在Job被停止时会被取消，是否响应由执行体自己决定。
type Body func(ctx context.Context, force bool) error

// JobDefaults 每种Job类型自带的默认配置，配置文件中的值会覆盖它
type JobDefaults struct {
	ScheduleType         _const.ScheduleType
	Schedule             string
	StartupType          _const.StartupType
	RequiresRegistration bool
}

// Executor 一种Job类型：名称、默认配置以及执行体
type Executor interface {
	Name() string
	Defaults() JobDefaults
	Execute(ctx context.Context, force bool) error
}
