// Package admin 运维管理接口，与调度核心分离，通过适配器访问JobManager
package admin

import (
	"context"

	job_scheduler "github.com/TimeWtr/job_scheduler"
)

// Service 运维可以执行的操作
type Service interface {
	List() []job_scheduler.JobSnapshot
	Get(name string) (job_scheduler.JobSnapshot, error)
	Start(ctx context.Context, name string) error
	Stop(name string) (bool, error)
	Pause(name string) error
	Unpause(name string) error
	// Invoke 手动触发一次，忽略暂停标记
	Invoke(ctx context.Context, name string) (bool, error)
}

type ManagerService struct {
	manager *job_scheduler.JobManager
}

func NewManagerService(manager *job_scheduler.JobManager) *ManagerService {
	return &ManagerService{manager: manager}
}

func (s *ManagerService) List() []job_scheduler.JobSnapshot {
	jobs := s.manager.List()
	res := make([]job_scheduler.JobSnapshot, 0, len(jobs))
	for _, job := range jobs {
		res = append(res, job.Snapshot())
	}
	return res
}

func (s *ManagerService) Get(name string) (job_scheduler.JobSnapshot, error) {
	job, err := s.manager.Get(name)
	if err != nil {
		return job_scheduler.JobSnapshot{}, err
	}
	return job.Snapshot(), nil
}

func (s *ManagerService) Start(ctx context.Context, name string) error {
	job, err := s.manager.Get(name)
	if err != nil {
		return err
	}
	return job.Start(ctx)
}

func (s *ManagerService) Stop(name string) (bool, error) {
	job, err := s.manager.Get(name)
	if err != nil {
		return false, err
	}
	return job.Stop(), nil
}

func (s *ManagerService) Pause(name string) error {
	job, err := s.manager.Get(name)
	if err != nil {
		return err
	}
	job.Pause()
	return nil
}

func (s *ManagerService) Unpause(name string) error {
	job, err := s.manager.Get(name)
	if err != nil {
		return err
	}
	job.Unpause()
	return nil
}

func (s *ManagerService) Invoke(ctx context.Context, name string) (bool, error) {
	job, err := s.manager.Get(name)
	if err != nil {
		return false, err
	}
	return job.Invoke(ctx), nil
}
