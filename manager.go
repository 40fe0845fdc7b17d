package job_scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	_const "github.com/TimeWtr/job_scheduler/const"
	"golang.org/x/sync/errgroup"
)

// JobManager 管理进程内所有的Job
type JobManager struct {
	logger Logger
	mu     sync.RWMutex
	jobs   map[string]*Job
}

func NewJobManager(logger Logger) *JobManager {
	if logger == nil {
		logger = NewNopLogger()
	}
	return &JobManager{
		logger: logger,
		jobs:   make(map[string]*Job),
	}
}

func (m *JobManager) Register(job *Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[job.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrJobExists, job.Name())
	}
	m.jobs[job.Name()] = job
	return nil
}

func (m *JobManager) Get(name string) (*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	return job, nil
}

// List 按名称排序
func (m *JobManager) List() []*Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]*Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		res = append(res, job)
	}
	sort.Slice(res, func(i, k int) bool {
		return res[i].Name() < res[k].Name()
	})
	return res
}

// StartJobs 启动所有自动启动的Job，所有的启动错误合并后返回
func (m *JobManager) StartJobs(ctx context.Context) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	for _, job := range m.List() {
		if job.StartupType() != _const.StartupAutomatic {
			m.logger.Info("job is not configured for automatic startup",
				String("job", job.Name()), String("startup", job.StartupType().String()))
			continue
		}
		g.Go(func() error {
			if err := job.Start(ctx); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// StopJobs 停止所有已经调度的Job
func (m *JobManager) StopJobs() {
	for _, job := range m.List() {
		if job.IsStarted() {
			job.Stop()
		}
	}
}
