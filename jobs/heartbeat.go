package jobs

import (
	"context"
	"time"

	job_scheduler "github.com/TimeWtr/job_scheduler"
	_const "github.com/TimeWtr/job_scheduler/const"
)

const HeartbeatJobName = "heartbeat"

type HeartbeatRecorder interface {
	Heartbeat(ctx context.Context, instanceID, engineName string, at time.Time) error
}

// Heartbeat 定期记录本节点的心跳，要求节点已经注册
type Heartbeat struct {
	recorder HeartbeatRecorder
	engine   job_scheduler.Engine
	now      func() time.Time
}

func NewHeartbeat(recorder HeartbeatRecorder, engine job_scheduler.Engine) *Heartbeat {
	return &Heartbeat{recorder: recorder, engine: engine, now: time.Now}
}

func (h *Heartbeat) Name() string {
	return HeartbeatJobName
}

func (h *Heartbeat) Defaults() job_scheduler.JobDefaults {
	return job_scheduler.JobDefaults{
		ScheduleType:         _const.ScheduleTypeInterval,
		Schedule:             "60000",
		StartupType:          _const.StartupAutomatic,
		RequiresRegistration: true,
	}
}

func (h *Heartbeat) Execute(ctx context.Context, _ bool) error {
	return h.recorder.Heartbeat(ctx, h.engine.InstanceID(), h.engine.Name(), h.now())
}
