package job_scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	_const "github.com/TimeWtr/job_scheduler/const"
)

// Engine 宿主引擎，Job只读取它的状态
type Engine interface {
	Name() string
	IsStarted() bool
	// InstanceID 节点的稳定标识，用作随机延迟的种子
	InstanceID() string
	IsRegisteredWithServer() bool
}

// Coordinator 集群协调存储
type Coordinator interface {
	// IsInfiniteLocked Job是否在集群范围内被无限期锁定(禁用)
	IsInfiniteLocked(ctx context.Context, jobName string) (bool, error)
	// FindLastLockTime 集群中任意节点最近一次运行该Job的时间，ok为false表示没有记录
	FindLastLockTime(ctx context.Context, jobName string) (t time.Time, ok bool, err error)
}

// Locker 集群锁，获取失败返回ErrLockHeld
type Locker interface {
	TryLock(ctx context.Context, name, serverID string, ttl time.Duration) error
	Unlock(ctx context.Context, name, serverID string) error
}

// StatisticSink 慢执行的统计上报
type StatisticSink interface {
	AddJobStats(ctx context.Context, jobName string, start, end time.Time, processed int64) error
}

// Parameters 运行期参数服务，每次调度实时读取
type Parameters interface {
	GetBool(key string) bool
	GetInt64(key string) int64
}

// Host 最简单的Engine实现
type Host struct {
	name       string
	instanceID string
	started    atomic.Bool
	registered atomic.Bool
}

func NewHost(name, instanceID string) *Host {
	return &Host{name: name, instanceID: instanceID}
}

func (h *Host) Name() string                 { return h.name }
func (h *Host) InstanceID() string           { return h.instanceID }
func (h *Host) IsStarted() bool              { return h.started.Load() }
func (h *Host) IsRegisteredWithServer() bool { return h.registered.Load() }
func (h *Host) SetStarted(started bool)      { h.started.Store(started) }
func (h *Host) SetRegistered(registered bool) {
	h.registered.Store(registered)
}

// MultiSink 把统计同时写入多个下游
type MultiSink []StatisticSink

func (m MultiSink) AddJobStats(ctx context.Context, jobName string, start, end time.Time, processed int64) error {
	var errs []error
	for _, s := range m {
		if err := s.AddJobStats(ctx, jobName, start, end, processed); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// StaticParameters 固定值的参数服务
type StaticParameters map[string]any

func (p StaticParameters) GetBool(key string) bool {
	v, _ := p[key].(bool)
	return v
}

func (p StaticParameters) GetInt64(key string) int64 {
	switch v := p[key].(type) {
	case int:
		return int64(v)
	case int64:
		return v
	default:
		return 0
	}
}

// DefaultParameters 参数的默认值
func DefaultParameters() StaticParameters {
	return StaticParameters{
		_const.ParamSynchronizeAllJobs:       false,
		_const.ParamRandomMaxStartTimeMs:     _const.DefaultMaxJitterMs,
		_const.ParamLongOperationThresholdMs: _const.DefaultLongOperationThresholdMs,
		_const.ParamEnforceRegistration:      false,
	}
}
