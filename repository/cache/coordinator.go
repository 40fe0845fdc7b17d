package cache

import (
	"context"
	"errors"
	"math"
	"strconv"
	"time"

	job_scheduler "github.com/TimeWtr/job_scheduler"
	_const "github.com/TimeWtr/job_scheduler/const"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "job_scheduler:lock:"

var (
	// KEYS[1] 锁 ARGV[1] serverID ARGV[2] now ARGV[3] expire
	tryLockScript = redis.NewScript(`
local server = redis.call('HGET', KEYS[1], 'server')
local expire = tonumber(redis.call('HGET', KEYS[1], 'expire') or '0')
if server and server ~= '' and server ~= ARGV[1] and expire > tonumber(ARGV[2]) then
	return 0
end
redis.call('HSET', KEYS[1], 'server', ARGV[1], 'lock_time', ARGV[2], 'expire', ARGV[3])
return 1
`)

	// KEYS[1] 锁 ARGV[1] serverID ARGV[2] now
	unlockScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'server') == ARGV[1] then
	redis.call('HSET', KEYS[1], 'server', '', 'expire', '0', 'last_lock_time', ARGV[2], 'last_server', ARGV[1])
	return 1
end
return 0
`)

	// KEYS[1] 锁 ARGV[1] serverID ARGV[2] expire
	refreshScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'server') == ARGV[1] then
	redis.call('HSET', KEYS[1], 'expire', ARGV[2])
	return 1
end
return 0
`)
)

// Coordinator 基于Redis的集群协调存储，实现Coordinator、Locker与Refresher
type Coordinator struct {
	client redis.UniversalClient
	now    func() time.Time
}

func NewCoordinator(client redis.UniversalClient) *Coordinator {
	return &Coordinator{client: client, now: time.Now}
}

func key(name string) string {
	return keyPrefix + name
}

func (c *Coordinator) IsInfiniteLocked(ctx context.Context, name string) (bool, error) {
	vals, err := c.client.HMGet(ctx, key(name), "server", "expire").Result()
	if err != nil {
		return false, err
	}

	server, _ := vals[0].(string)
	if server != _const.InfiniteLockServerID {
		return false, nil
	}
	expireStr, _ := vals[1].(string)
	expire, err := strconv.ParseInt(expireStr, 10, 64)
	if err != nil {
		return false, nil
	}
	return expire > c.now().UnixMilli(), nil
}

func (c *Coordinator) FindLastLockTime(ctx context.Context, name string) (time.Time, bool, error) {
	ms, err := c.client.HGet(ctx, key(name), "last_lock_time").Int64()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	if ms == 0 {
		return time.Time{}, false, nil
	}
	return time.UnixMilli(ms), true, nil
}

func (c *Coordinator) TryLock(ctx context.Context, name, serverID string, ttl time.Duration) error {
	now := c.now().UnixMilli()
	ok, err := tryLockScript.Run(ctx, c.client, []string{key(name)},
		serverID, now, now+ttl.Milliseconds()).Int()
	if err != nil {
		return err
	}
	if ok == 0 {
		return job_scheduler.ErrLockHeld
	}
	return nil
}

func (c *Coordinator) Unlock(ctx context.Context, name, serverID string) error {
	return unlockScript.Run(ctx, c.client, []string{key(name)},
		serverID, c.now().UnixMilli()).Err()
}

func (c *Coordinator) Refresh(ctx context.Context, name, serverID string, ttl time.Duration) error {
	ok, err := refreshScript.Run(ctx, c.client, []string{key(name)},
		serverID, c.now().UnixMilli()+ttl.Milliseconds()).Int()
	if err != nil {
		return err
	}
	if ok == 0 {
		return job_scheduler.ErrLockHeld
	}
	return nil
}

// LockInfinite 在集群范围内禁用Job，直到ClearInfinite
func (c *Coordinator) LockInfinite(ctx context.Context, name string) error {
	return c.client.HSet(ctx, key(name),
		"server", _const.InfiniteLockServerID,
		"lock_time", c.now().UnixMilli(),
		"expire", strconv.FormatInt(math.MaxInt64, 10)).Err()
}

func (c *Coordinator) ClearInfinite(ctx context.Context, name string) error {
	server, err := c.client.HGet(ctx, key(name), "server").Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}
	if server != _const.InfiniteLockServerID {
		return nil
	}
	return c.client.HSet(ctx, key(name), "server", "", "expire", "0").Err()
}
