package job_scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	_const "github.com/TimeWtr/job_scheduler/const"
	"github.com/TimeWtr/job_scheduler/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"
)

// TracerName Job执行span的instrumentation scope
const TracerName = "github.com/TimeWtr/job_scheduler"

// globalJobLock 开启job.synchronize_all_jobs后进程内所有Job共享的互斥锁
var globalJobLock = semaphore.NewWeighted(1)

type JobOption func(j *Job)

func WithLogger(logger Logger) JobOption {
	return func(j *Job) {
		j.logger = logger
	}
}

// WithStatisticSink 设置慢执行的统计上报
func WithStatisticSink(sink StatisticSink) JobOption {
	return func(j *Job) {
		j.sink = sink
	}
}

func WithClock(now func() time.Time) JobOption {
	return func(j *Job) {
		j.now = now
	}
}

func WithTracer(tracer trace.Tracer) JobOption {
	return func(j *Job) {
		j.tracer = tracer
	}
}

// Job 调度的基本单元。
// 调度状态：Unstarted -> Scheduled -> Stopped，每次触发在 Idle 与 Running 之间切换，
// paused 是独立的标记位，只在触发时检查，不会取消调度句柄。
type Job struct {
	def         domain.JobDefinition
	body        Body
	engine      Engine
	coordinator Coordinator
	scheduler   TaskScheduler
	params      Parameters
	sink        StatisticSink
	logger      Logger
	tracer      trace.Tracer
	now         func() time.Time
	jitter      *JitterGenerator

	paused  atomic.Bool
	running atomic.Bool
	// notRegisteredLogged 未注册的提示在进程生命周期内只打印一次
	notRegisteredLogged atomic.Bool

	mu      sync.Mutex
	handle  Handle
	started bool
	state   _const.JobState

	statsMu              sync.RWMutex
	lastFinishTime       time.Time
	lastExecutionTimeMs  int64
	totalExecutionTimeMs int64
	numberOfRuns         int64
}

func NewJob(def domain.JobDefinition, body Body, engine Engine, coordinator Coordinator,
	scheduler TaskScheduler, params Parameters, opts ...JobOption) (*Job, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	if body == nil {
		return nil, fmt.Errorf("%w: %s", ErrNilBody, def.Name)
	}
	if params == nil {
		params = DefaultParameters()
	}

	j := &Job{
		def:         def,
		body:        body,
		engine:      engine,
		coordinator: coordinator,
		scheduler:   scheduler,
		params:      params,
		logger:      NewNopLogger(),
		tracer:      otel.Tracer(TracerName),
		now:         time.Now,
		state:       _const.JobStateUnstarted,
	}

	for _, opt := range opts {
		opt(j)
	}

	j.logger = j.logger.With(String("job", def.Name))
	instanceID := ""
	if engine != nil {
		instanceID = engine.InstanceID()
	}
	j.jitter = NewJitterGenerator(instanceID, params.GetInt64(_const.ParamRandomMaxStartTimeMs))
	return j, nil
}

// Start 安装调度句柄。已经调度或者在集群范围内被无限期锁定时什么都不做。
// 只有cron表达式非法时返回错误，间隔配置非法只记录日志，Job保持未调度。
func (j *Job) Start(ctx context.Context) error {
	if j.engine == nil || j.hasHandle() {
		return nil
	}

	// 读取协调存储时不持有j.mu
	if j.isInfiniteLocked(ctx) {
		j.logger.Info("job is locked cluster-wide and will not be scheduled")
		return nil
	}
	var (
		clusterRun    time.Time
		hasClusterRun bool
	)
	if j.def.ScheduleType == _const.ScheduleTypeInterval {
		clusterRun, hasClusterRun = j.lastClusterRun(ctx)
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.handle != nil {
		return nil
	}

	switch j.def.ScheduleType {
	case _const.ScheduleTypeCron:
		expr := j.def.Schedule
		j.logger.Info("starting job with cron expression", String("cron", expr))
		handle, err := j.scheduler.Schedule(j.run, expr)
		if err != nil {
			return fmt.Errorf("failed to schedule job '%s' with schedule '%s': %w", j.def.Name, expr, err)
		}
		j.install(handle)
	case _const.ScheduleTypeInterval:
		interval := j.timeBetweenRuns()
		if interval <= 0 {
			return nil
		}

		jitter := time.Duration(j.jitter.valueWithin(j.params.GetInt64(_const.ParamRandomMaxStartTimeMs))) * time.Millisecond
		lastRun := j.now().Add(-interval)
		if hasClusterRun && lastRun.Before(clusterRun) {
			lastRun = clusterRun
		}
		firstRun := lastRun.Add(interval + jitter)
		j.logger.Info("starting job on periodic schedule",
			Field{Key: "interval", Val: interval},
			Field{Key: "first_run", Val: firstRun})
		j.install(j.scheduler.ScheduleWithFixedDelay(j.run, firstRun, interval))
	default:
		return fmt.Errorf("failed to schedule job '%s': unknown schedule type %d", j.def.Name, j.def.ScheduleType)
	}

	return nil
}

func (j *Job) hasHandle() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.handle != nil
}

func (j *Job) install(handle Handle) {
	j.handle = handle
	j.started = true
	j.state = _const.JobStateScheduled
}

func (j *Job) isInfiniteLocked(ctx context.Context) bool {
	if j.coordinator == nil {
		return false
	}
	locked, err := j.coordinator.IsInfiniteLocked(ctx, j.def.Name)
	if err != nil {
		j.logger.Warn("failed to read cluster lock, assuming job is enabled", Error(err))
		return false
	}
	return locked
}

func (j *Job) lastClusterRun(ctx context.Context) (time.Time, bool) {
	if j.coordinator == nil {
		return time.Time{}, false
	}
	t, ok, err := j.coordinator.FindLastLockTime(ctx, j.def.Name)
	if err != nil {
		j.logger.Warn("failed to read last cluster run, using local baseline", Error(err))
		return time.Time{}, false
	}
	return t, ok
}

// timeBetweenRuns 解析毫秒间隔，非法时返回-1
func (j *Job) timeBetweenRuns() time.Duration {
	ms, err := strconv.ParseInt(j.def.Schedule, 10, 64)
	if err != nil {
		j.logger.Error("failed to schedule job because of an invalid schedule",
			String("schedule", j.def.Schedule), Error(err))
		return -1
	}
	if ms <= 0 {
		j.logger.Error("failed to schedule job because of an invalid schedule",
			String("schedule", j.def.Schedule))
		return -1
	}
	return time.Duration(ms) * time.Millisecond
}

// Stop 取消调度句柄并中断正在执行的任务，返回取消是否成功
func (j *Job) Stop() bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.handle == nil {
		return false
	}

	success := j.handle.Cancel(true)
	if !success {
		j.logger.Warn("failed to cancel job")
		return false
	}

	j.logger.Info("job has been cancelled")
	j.handle = nil
	j.started = false
	j.state = _const.JobStateStopped
	return true
}

// run 调度池触发的入口
func (j *Job) run(ctx context.Context) {
	j.InvokeWithForce(ctx, false)
}

// Invoke 运维手动触发，忽略暂停标记
func (j *Job) Invoke(ctx context.Context) bool {
	return j.InvokeWithForce(ctx, true)
}

// InvokeWithForce 执行一次Job。
// 返回false表示没有执行(前置条件不满足或者已经在执行)，
// 返回true表示进行了一次执行，执行体内部的错误只记录日志不会返回。
func (j *Job) InvokeWithForce(ctx context.Context, force bool) bool {
	logger := j.logger
	if j.engine != nil {
		logger = logger.With(String("engine", j.engine.Name()))
	}

	if !j.checkPrerequisites(ctx, logger, force) {
		return false
	}

	// 保证同一个Job在本节点上只有一个执行
	if !j.running.CompareAndSwap(false, true) {
		logger.Info("job is already running on another goroutine and will not run at this time")
		return false
	}

	j.execute(ctx, logger, force)
	return true
}

func (j *Job) checkPrerequisites(ctx context.Context, logger Logger, force bool) bool {
	if j.engine == nil {
		logger.Info("could not find a reference to the engine while running job")
		return false
	}
	if ctx.Err() != nil {
		logger.Warn("context is already cancelled, not executing the job")
		return false
	}
	if !j.engine.IsStarted() {
		logger.Info("the engine is not currently started, will not run job")
		return false
	}
	if j.running.Load() {
		logger.Info("job is already marked as running, will not run again now")
		return false
	}
	if j.paused.Load() && !force {
		logger.Info("job is paused and will not run at this time")
		return false
	}
	if j.def.RequiresRegistration && !j.engine.IsRegisteredWithServer() {
		if j.notRegisteredLogged.CompareAndSwap(false, true) {
			logger.Info("job requires registration but the engine is not registered")
		}
		if j.params.GetBool(_const.ParamEnforceRegistration) {
			return false
		}
	}

	return true
}

func (j *Job) execute(ctx context.Context, logger Logger, force bool) {
	start := j.now()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic while executing job",
				Field{Key: "panic", Val: r},
				String("stack", string(debug.Stack())))
		}
	}()
	defer j.finish(ctx, logger, start)

	if err := j.runBody(ctx, force); err != nil {
		logger.Error("exception while executing job", Error(err))
	}
}

func (j *Job) runBody(ctx context.Context, force bool) (err error) {
	ctx, span := j.tracer.Start(ctx, "job.execute",
		trace.WithAttributes(
			attribute.String("job.name", j.def.Name),
			attribute.Bool("job.force", force),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	defer func() {
		if r := recover(); r != nil {
			perr := fmt.Errorf("panic: %v", r)
			span.RecordError(perr, trace.WithStackTrace(true))
			span.SetStatus(codes.Error, perr.Error())
			span.End()
			// 交给execute统一恢复与记录
			panic(r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}()

	if j.params.GetBool(_const.ParamSynchronizeAllJobs) {
		if err = globalJobLock.Acquire(ctx, 1); err != nil {
			return fmt.Errorf("acquire global job lock: %w", err)
		}
		defer globalJobLock.Release(1)
	}

	return j.body(ctx, force)
}

// finish 无论执行体如何退出都会记录统计并清除running标记
func (j *Job) finish(ctx context.Context, logger Logger, start time.Time) {
	end := j.now()
	elapsed := max(end.Sub(start).Milliseconds(), 0)

	j.statsMu.Lock()
	j.lastFinishTime = end
	j.lastExecutionTimeMs = elapsed
	j.totalExecutionTimeMs += elapsed
	j.statsMu.Unlock()

	if j.sink != nil && elapsed > j.params.GetInt64(_const.ParamLongOperationThresholdMs) {
		if err := j.sink.AddJobStats(context.WithoutCancel(ctx), j.def.Name, start, end, 0); err != nil {
			logger.Warn("failed to record job statistics", Error(err))
		}
	}

	j.statsMu.Lock()
	j.numberOfRuns++
	j.statsMu.Unlock()
	j.running.Store(false)
}

func (j *Job) Pause() {
	j.SetPaused(true)
}

func (j *Job) Unpause() {
	j.SetPaused(false)
}

func (j *Job) SetPaused(paused bool) {
	j.paused.Store(paused)
}

func (j *Job) IsPaused() bool {
	return j.paused.Load()
}

func (j *Job) IsStarted() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.started
}

func (j *Job) IsRunning() bool {
	return j.running.Load()
}

func (j *Job) State() _const.JobState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// NextRun 下次计划执行的时间，未调度时为零值
func (j *Job) NextRun() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.handle == nil {
		return time.Time{}
	}
	return j.handle.NextRun()
}

func (j *Job) Name() string {
	return j.def.Name
}

func (j *Job) Definition() domain.JobDefinition {
	return j.def
}

func (j *Job) StartupType() _const.StartupType {
	return j.def.StartupType
}

func (j *Job) LastFinishTime() time.Time {
	j.statsMu.RLock()
	defer j.statsMu.RUnlock()
	return j.lastFinishTime
}

func (j *Job) LastExecutionTimeMs() int64 {
	j.statsMu.RLock()
	defer j.statsMu.RUnlock()
	return j.lastExecutionTimeMs
}

func (j *Job) TotalExecutionTimeMs() int64 {
	j.statsMu.RLock()
	defer j.statsMu.RUnlock()
	return j.totalExecutionTimeMs
}

func (j *Job) NumberOfRuns() int64 {
	j.statsMu.RLock()
	defer j.statsMu.RUnlock()
	return j.numberOfRuns
}

func (j *Job) AverageExecutionTimeMs() int64 {
	j.statsMu.RLock()
	defer j.statsMu.RUnlock()
	if j.numberOfRuns == 0 {
		return 0
	}
	return j.totalExecutionTimeMs / j.numberOfRuns
}

// JobSnapshot Job当前状态与统计的只读快照
type JobSnapshot struct {
	Name                   string     `json:"name"`
	ScheduleType           string     `json:"scheduleType"`
	Schedule               string     `json:"schedule"`
	StartupType            string     `json:"startupType"`
	State                  string     `json:"state"`
	Started                bool       `json:"started"`
	Paused                 bool       `json:"paused"`
	Running                bool       `json:"running"`
	NextRun                *time.Time `json:"nextRun,omitempty"`
	LastFinishTime         *time.Time `json:"lastFinishTime,omitempty"`
	LastExecutionTimeMs    int64      `json:"lastExecutionTimeMs"`
	TotalExecutionTimeMs   int64      `json:"totalExecutionTimeMs"`
	AverageExecutionTimeMs int64      `json:"averageExecutionTimeMs"`
	NumberOfRuns           int64      `json:"numberOfRuns"`
}

func (j *Job) Snapshot() JobSnapshot {
	s := JobSnapshot{
		Name:         j.def.Name,
		ScheduleType: j.def.ScheduleType.String(),
		Schedule:     j.def.Schedule,
		StartupType:  j.def.StartupType.String(),
		State:        j.State().String(),
		Started:      j.IsStarted(),
		Paused:       j.IsPaused(),
		Running:      j.IsRunning(),
	}
	if next := j.NextRun(); !next.IsZero() {
		s.NextRun = &next
	}

	j.statsMu.RLock()
	defer j.statsMu.RUnlock()
	if !j.lastFinishTime.IsZero() {
		finished := j.lastFinishTime
		s.LastFinishTime = &finished
	}
	s.LastExecutionTimeMs = j.lastExecutionTimeMs
	s.TotalExecutionTimeMs = j.totalExecutionTimeMs
	s.NumberOfRuns = j.numberOfRuns
	if j.numberOfRuns > 0 {
		s.AverageExecutionTimeMs = j.totalExecutionTimeMs / j.numberOfRuns
	}
	return s
}
