package job_scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	_const "github.com/TimeWtr/job_scheduler/const"
	"golang.org/x/sync/semaphore"
)

// Task 被调度的任务，ctx在句柄被中断取消或调度池关闭时取消
type Task func(ctx context.Context)

// Handle 已安装的调度句柄
type Handle interface {
	// Cancel 取消后续的调度，interrupt为true时同时取消正在执行的任务的ctx。
	// 句柄已经被取消过时返回false
	Cancel(interrupt bool) bool
	// NextRun 下次执行时间，句柄结束后为零值
	NextRun() time.Time
	// Done 句柄结束(取消且没有正在执行的任务)后关闭
	Done() <-chan struct{}
}

// TaskScheduler 定时触发源，只负责在计算好的时间点调用任务
type TaskScheduler interface {
	// Schedule 按cron表达式调度
	Schedule(task Task, expr string) (Handle, error)
	// ScheduleWithFixedDelay 在firstRun首次执行，之后每次执行结束后延迟delay再执行
	ScheduleWithFixedDelay(task Task, firstRun time.Time, delay time.Duration) Handle
}

type Options func(s *PoolScheduler)

// WithLimiter 设置调度池同时执行的任务数量
func WithLimiter(limiter int64) Options {
	return func(s *PoolScheduler) {
		s.limiter = semaphore.NewWeighted(limiter)
	}
}

func WithSchedulerLogger(logger Logger) Options {
	return func(s *PoolScheduler) {
		s.logger = logger
	}
}

// PoolScheduler 共享的调度池，所有Job的触发都在这里完成。
// 一个分发协程等待延时队列头部到期，到期的任务交给独立的协程执行，
// 执行结束后再根据调度策略计算下一次时间放回队列，所以同一个句柄不会重叠执行。
type PoolScheduler struct {
	logger  Logger
	queue   *entryQueue
	limiter *semaphore.Weighted
	wake    chan struct{}
	seq     atomic.Uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
	now    func() time.Time
}

func NewPoolScheduler(opts ...Options) *PoolScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &PoolScheduler{
		logger: NewNopLogger(),
		queue:  newEntryQueue(16),
		wake:   make(chan struct{}, 1),
		ctx:    ctx,
		cancel: cancel,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.limiter == nil {
		s.limiter = semaphore.NewWeighted(_const.DefaultLimiter)
	}

	s.wg.Add(1)
	go s.dispatch()
	return s
}

func (s *PoolScheduler) Schedule(task Task, expr string) (Handle, error) {
	strategy, first, err := firstActivation(expr, s.now())
	if err != nil {
		return nil, err
	}

	return s.ScheduleWithStrategy(task, first, strategy), nil
}

func (s *PoolScheduler) ScheduleWithFixedDelay(task Task, firstRun time.Time, delay time.Duration) Handle {
	return s.ScheduleWithStrategy(task, firstRun, NewFixedDelayStrategy(delay))
}

// ScheduleWithStrategy 在firstRun首次执行，之后由strategy决定下一次执行时间
func (s *PoolScheduler) ScheduleWithStrategy(task Task, firstRun time.Time, strategy ScheduleStrategy) Handle {
	ctx, cancel := context.WithCancel(s.ctx)
	e := &entry{
		pool:     s,
		task:     task,
		strategy: strategy,
		seq:      s.seq.Add(1),
		index:    -1,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	if s.ctx.Err() != nil {
		// 调度池已经关闭
		e.cancelled.Store(true)
		e.finish()
		return e
	}

	s.enqueue(e, firstRun)
	return e
}

// Shutdown 关闭调度池，中断所有正在执行的任务并等待它们退出
func (s *PoolScheduler) Shutdown(ctx context.Context) error {
	s.once.Do(func() {
		s.cancel()
	})

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
	}

	for _, e := range s.queue.drain() {
		e.cancelled.Store(true)
		e.finish()
	}
	return nil
}

func (s *PoolScheduler) enqueue(e *entry, next time.Time) {
	e.nextRun.Store(next.UnixNano())
	s.queue.push(e, next)
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *PoolScheduler) dispatch() {
	defer s.wg.Done()

	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		wait := time.Hour
		if next, ok := s.queue.peek(); ok {
			wait = next.Sub(s.now())
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(max(wait, 0))

		select {
		case <-s.ctx.Done():
			return
		case <-s.wake:
			// 队列头部可能变化，重新计算等待时间
		case <-timer.C:
			for {
				e := s.queue.popDue(s.now())
				if e == nil {
					break
				}
				s.wg.Add(1)
				go s.execute(e)
			}
		}
	}
}

func (s *PoolScheduler) execute(e *entry) {
	defer s.wg.Done()

	if err := s.limiter.Acquire(e.ctx, 1); err != nil {
		e.finish()
		return
	}

	if !e.cancelled.Load() {
		e.task(e.ctx)
	}
	s.limiter.Release(1)

	if e.cancelled.Load() || s.ctx.Err() != nil {
		e.finish()
		return
	}

	next := e.strategy.Next(s.now())
	if next.IsZero() {
		s.logger.Warn("schedule has no next activation, dropping it")
		e.cancelled.Store(true)
		e.finish()
		return
	}
	s.enqueue(e, next)

	// 执行期间被取消但没有从队列中删除
	if e.cancelled.Load() && s.queue.remove(e) {
		e.finish()
	}
}

// entry 调度池中的一个句柄
type entry struct {
	pool     *PoolScheduler
	task     Task
	strategy ScheduleStrategy
	seq      uint64

	// 以下两个字段只在持有队列锁时访问
	next  time.Time
	index int

	nextRun   atomic.Int64
	cancelled atomic.Bool

	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	doneOnce sync.Once
}

func (e *entry) Cancel(interrupt bool) bool {
	if !e.cancelled.CompareAndSwap(false, true) {
		return false
	}

	if e.pool.queue.remove(e) {
		// 在队列中等待，没有正在执行的任务
		e.finish()
		return true
	}

	if interrupt {
		e.cancel()
	}
	return true
}

func (e *entry) NextRun() time.Time {
	n := e.nextRun.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

func (e *entry) Done() <-chan struct{} {
	return e.done
}

func (e *entry) finish() {
	e.doneOnce.Do(func() {
		e.nextRun.Store(0)
		e.cancel()
		close(e.done)
	})
}
