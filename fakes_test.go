package job_scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

type fakeEngine struct {
	started    atomic.Bool
	registered atomic.Bool
	id         string
}

func newFakeEngine() *fakeEngine {
	e := &fakeEngine{id: "node-001"}
	e.started.Store(true)
	e.registered.Store(true)
	return e
}

func (e *fakeEngine) Name() string                 { return "test-engine" }
func (e *fakeEngine) IsStarted() bool              { return e.started.Load() }
func (e *fakeEngine) InstanceID() string           { return e.id }
func (e *fakeEngine) IsRegisteredWithServer() bool { return e.registered.Load() }

type fakeCoordinator struct {
	locked    bool
	lastRun   time.Time
	hasLast   bool
	err       error
	lockedBy  map[string]string
	unlocked  []string
	unlockErr error
	mu        sync.Mutex
}

func (c *fakeCoordinator) IsInfiniteLocked(context.Context, string) (bool, error) {
	return c.locked, c.err
}

func (c *fakeCoordinator) FindLastLockTime(context.Context, string) (time.Time, bool, error) {
	return c.lastRun, c.hasLast, c.err
}

func (c *fakeCoordinator) TryLock(_ context.Context, name, serverID string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lockedBy == nil {
		c.lockedBy = map[string]string{}
	}
	if holder, ok := c.lockedBy[name]; ok && holder != serverID {
		return ErrLockHeld
	}
	c.lockedBy[name] = serverID
	return nil
}

func (c *fakeCoordinator) Unlock(_ context.Context, name, serverID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unlockErr != nil {
		return c.unlockErr
	}
	if c.lockedBy[name] == serverID {
		delete(c.lockedBy, name)
		c.unlocked = append(c.unlocked, name)
	}
	return nil
}

type fakeHandle struct {
	cancelled  atomic.Bool
	failCancel bool
	interrupt  bool
	next       time.Time
}

func (h *fakeHandle) Cancel(interrupt bool) bool {
	if h.failCancel {
		return false
	}
	h.interrupt = interrupt
	return h.cancelled.CompareAndSwap(false, true)
}

func (h *fakeHandle) NextRun() time.Time    { return h.next }
func (h *fakeHandle) Done() <-chan struct{} { return nil }

type fixedDelayCall struct {
	firstRun time.Time
	delay    time.Duration
}

// recordingScheduler 只记录调度请求，不会真的触发任务
type recordingScheduler struct {
	mu         sync.Mutex
	cronCalls  []string
	fixedCalls []fixedDelayCall
	handles    []*fakeHandle
	failCancel bool
}

func (s *recordingScheduler) Schedule(_ Task, expr string) (Handle, error) {
	_, first, err := firstActivation(expr, time.Now())
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cronCalls = append(s.cronCalls, expr)
	h := &fakeHandle{failCancel: s.failCancel, next: first}
	s.handles = append(s.handles, h)
	return h, nil
}

func (s *recordingScheduler) ScheduleWithFixedDelay(_ Task, firstRun time.Time, delay time.Duration) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fixedCalls = append(s.fixedCalls, fixedDelayCall{firstRun: firstRun, delay: delay})
	h := &fakeHandle{failCancel: s.failCancel, next: firstRun}
	s.handles = append(s.handles, h)
	return h
}

func (s *recordingScheduler) installed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}

type slowRun struct {
	job        string
	start, end time.Time
}

type fakeSink struct {
	mu   sync.Mutex
	runs []slowRun
}

func (s *fakeSink) AddJobStats(_ context.Context, jobName string, start, end time.Time, _ int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, slowRun{job: jobName, start: start, end: end})
	return nil
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.runs)
}

// fakeClock 只有调用Advance时才前进
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
