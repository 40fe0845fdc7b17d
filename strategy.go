package job_scheduler

import (
	"fmt"
	"time"

	_const "github.com/TimeWtr/job_scheduler/const"
	"github.com/robfig/cron/v3"
)

type ScheduleStrategy interface {
	// Next 根据上一次执行结束的时间计算下一次执行时间
	Next(finished time.Time) time.Time
}

// FixedDelayStrategy 固定延迟，下一次执行相对于上一次执行结束的时间
type FixedDelayStrategy struct {
	delay time.Duration
}

func NewFixedDelayStrategy(delay time.Duration) *FixedDelayStrategy {
	return &FixedDelayStrategy{delay: delay}
}

func (s *FixedDelayStrategy) Next(finished time.Time) time.Time {
	return finished.Add(s.delay)
}

// CronStrategy cron表达式
type CronStrategy struct {
	schedule cron.Schedule
}

func NewCronStrategy(expr string) (*CronStrategy, error) {
	schedule, err := _const.Parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidCron, expr, err)
	}
	return &CronStrategy{schedule: schedule}, nil
}

func (s *CronStrategy) Next(finished time.Time) time.Time {
	return s.schedule.Next(finished)
}

// firstActivation 解析表达式并计算now之后的首次执行时间。
// robfig在找不到下一次执行时返回零值，这种永远不会触发的表达式同样视为非法。
func firstActivation(expr string, now time.Time) (*CronStrategy, time.Time, error) {
	strategy, err := NewCronStrategy(expr)
	if err != nil {
		return nil, time.Time{}, err
	}
	next := strategy.Next(now)
	if next.IsZero() {
		return nil, time.Time{}, fmt.Errorf("%w %q: expression never fires", ErrInvalidCron, expr)
	}
	return strategy, next, nil
}
