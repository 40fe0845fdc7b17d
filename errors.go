package job_scheduler

import "errors"

var (
	ErrInvalidCron = errors.New("invalid cron expression")
	ErrNilBody     = errors.New("job body is nil")
	ErrJobNotFound = errors.New("job not found")
	ErrJobExists   = errors.New("job already registered")
	// ErrLockHeld 集群锁已经被其他节点持有
	ErrLockHeld = errors.New("cluster lock held by another server")
)
