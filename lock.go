package job_scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Refresher 支持续约的集群锁
type Refresher interface {
	Refresh(ctx context.Context, name, serverID string, ttl time.Duration) error
}

// WithClusterLock 包装执行体：只有拿到集群锁的节点才执行，执行结束后释放锁，
// 释放时存储会记录最近一次运行的时间，供其他节点计算首次启动时间。
// 锁被其他节点持有时本次跳过，不视为执行错误。
// locker实现了Refresher时，执行期间每隔ttl/2自动续约一次。
// 释放或续约失败会与执行体的错误合并返回，由Job记录日志。
func WithClusterLock(locker Locker, name, serverID string, ttl time.Duration, body Body) Body {
	return func(ctx context.Context, force bool) (err error) {
		err = locker.TryLock(ctx, name, serverID, ttl)
		if errors.Is(err, ErrLockHeld) {
			return nil
		}
		if err != nil {
			return err
		}

		defer func() {
			if uerr := locker.Unlock(context.WithoutCancel(ctx), name, serverID); uerr != nil {
				err = errors.Join(err, fmt.Errorf("release cluster lock %s: %w", name, uerr))
			}
		}()

		if r, ok := locker.(Refresher); ok && ttl > 0 {
			rctx, cancel := context.WithCancel(ctx)
			refreshErr := make(chan error, 1)
			go func() {
				refreshErr <- autoRefresh(rctx, r, name, serverID, ttl)
			}()
			defer func() {
				cancel()
				if rerr := <-refreshErr; rerr != nil {
					err = errors.Join(err, fmt.Errorf("refresh cluster lock %s: %w", name, rerr))
				}
			}()
		}
		return body(ctx, force)
	}
}

// autoRefresh 定期续约，续约失败时立刻重试一次，返回最近一次重试仍然失败的错误
func autoRefresh(ctx context.Context, r Refresher, name, serverID string, ttl time.Duration) error {
	ticker := time.NewTicker(ttl / 2)
	defer ticker.Stop()

	var last error
	for {
		select {
		case <-ctx.Done():
			return last
		case <-ticker.C:
			if err := r.Refresh(ctx, name, serverID, ttl); err != nil {
				if err = r.Refresh(ctx, name, serverID, ttl); err != nil && ctx.Err() == nil {
					last = err
				}
			}
		}
	}
}
