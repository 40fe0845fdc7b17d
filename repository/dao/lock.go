package dao

import (
	"context"
	"errors"
	"math"
	"time"

	job_scheduler "github.com/TimeWtr/job_scheduler"
	_const "github.com/TimeWtr/job_scheduler/const"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Lock 集群锁，一个Job一行
type Lock struct {
	// LockAction 锁名称，与Job名称相同
	LockAction string `gorm:"column:lock_action;type:varchar(64);primaryKey" json:"lock_action"`
	// LockingServerID 当前持有者，空表示未被持有
	LockingServerID string `gorm:"column:locking_server_id;type:varchar(255);not null;default:''" json:"locking_server_id"`
	// LockTime 获取锁的时间，epoch毫秒
	LockTime int64 `gorm:"column:lock_time;type:bigint;not null;default:0" json:"lock_time"`
	// ExpireTime 锁的过期时间，epoch毫秒
	ExpireTime int64 `gorm:"column:expire_time;type:bigint;not null;default:0" json:"expire_time"`
	// LastLockTime 最近一次释放锁的时间，即集群中最近一次运行的时间
	LastLockTime int64 `gorm:"column:last_lock_time;type:bigint;not null;default:0" json:"last_lock_time"`
	// LastLockingServerID 最近一次持有者
	LastLockingServerID string `gorm:"column:last_locking_server_id;type:varchar(255);not null;default:''" json:"last_locking_server_id"`
	// Epoch 乐观锁，等同于version
	Epoch int `gorm:"column:epoch;type:int;not null;default:0" json:"epoch"`
	// UpdatedTime 更新时间
	UpdatedTime int64 `gorm:"column:updated_time;type:bigint;not null;default:0" json:"updated_time"`
}

func (Lock) TableName() string {
	return "job_lock"
}

// LockDAO 基于数据库的集群协调存储，实现Coordinator与Locker
type LockDAO struct {
	db  *gorm.DB
	now func() time.Time
}

func NewLockDAO(db *gorm.DB) *LockDAO {
	return &LockDAO{db: db, now: time.Now}
}

func (l *LockDAO) find(ctx context.Context, name string) (Lock, bool, error) {
	var lock Lock
	err := l.db.WithContext(ctx).Where("lock_action = ?", name).First(&lock).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Lock{}, false, nil
	}
	if err != nil {
		return Lock{}, false, err
	}
	return lock, true, nil
}

// ensure 锁行不存在时创建
func (l *LockDAO) ensure(ctx context.Context, name string) error {
	return l.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&Lock{LockAction: name, UpdatedTime: l.now().UnixMilli()}).Error
}

func (l *LockDAO) IsInfiniteLocked(ctx context.Context, name string) (bool, error) {
	lock, ok, err := l.find(ctx, name)
	if err != nil || !ok {
		return false, err
	}
	return lock.LockingServerID == _const.InfiniteLockServerID &&
		lock.ExpireTime > l.now().UnixMilli(), nil
}

func (l *LockDAO) FindLastLockTime(ctx context.Context, name string) (time.Time, bool, error) {
	lock, ok, err := l.find(ctx, name)
	if err != nil || !ok || lock.LastLockTime == 0 {
		return time.Time{}, false, err
	}
	return time.UnixMilli(lock.LastLockTime), true, nil
}

// TryLock 尝试获取锁，锁被其他节点持有且未过期时返回ErrLockHeld。
// 通过epoch条件更新保证并发获取时只有一个节点成功。
func (l *LockDAO) TryLock(ctx context.Context, name, serverID string, ttl time.Duration) error {
	if err := l.ensure(ctx, name); err != nil {
		return err
	}

	lock, _, err := l.find(ctx, name)
	if err != nil {
		return err
	}

	now := l.now().UnixMilli()
	if lock.LockingServerID != "" && lock.LockingServerID != serverID && lock.ExpireTime > now {
		return job_scheduler.ErrLockHeld
	}

	res := l.db.WithContext(ctx).Model(&Lock{}).
		Where("lock_action = ? AND epoch = ?", name, lock.Epoch).
		Updates(map[string]interface{}{
			"locking_server_id": serverID,
			"lock_time":         now,
			"expire_time":       now + ttl.Milliseconds(),
			"epoch":             lock.Epoch + 1,
			"updated_time":      now,
		})
	if res.Error != nil {
		return res.Error
	}

	if res.RowsAffected == 0 {
		// 抢占失败
		return job_scheduler.ErrLockHeld
	}

	return nil
}

// Unlock 释放锁并记录最近一次运行的时间，只有持有者可以释放
func (l *LockDAO) Unlock(ctx context.Context, name, serverID string) error {
	now := l.now().UnixMilli()
	return l.db.WithContext(ctx).Model(&Lock{}).
		Where("lock_action = ? AND locking_server_id = ?", name, serverID).
		Updates(map[string]interface{}{
			"locking_server_id":      "",
			"expire_time":            0,
			"last_lock_time":         now,
			"last_locking_server_id": serverID,
			"epoch":                  gorm.Expr("epoch + 1"),
			"updated_time":           now,
		}).Error
}

// LockInfinite 在集群范围内禁用Job，直到ClearInfinite
func (l *LockDAO) LockInfinite(ctx context.Context, name string) error {
	if err := l.ensure(ctx, name); err != nil {
		return err
	}

	now := l.now().UnixMilli()
	return l.db.WithContext(ctx).Model(&Lock{}).
		Where("lock_action = ?", name).
		Updates(map[string]interface{}{
			"locking_server_id": _const.InfiniteLockServerID,
			"lock_time":         now,
			"expire_time":       int64(math.MaxInt64),
			"epoch":             gorm.Expr("epoch + 1"),
			"updated_time":      now,
		}).Error
}

func (l *LockDAO) ClearInfinite(ctx context.Context, name string) error {
	return l.db.WithContext(ctx).Model(&Lock{}).
		Where("lock_action = ? AND locking_server_id = ?", name, _const.InfiniteLockServerID).
		Updates(map[string]interface{}{
			"locking_server_id": "",
			"expire_time":       0,
			"epoch":             gorm.Expr("epoch + 1"),
			"updated_time":      l.now().UnixMilli(),
		}).Error
}

// Refresh 续约，延长持有中的锁的过期时间
func (l *LockDAO) Refresh(ctx context.Context, name, serverID string, ttl time.Duration) error {
	now := l.now().UnixMilli()
	res := l.db.WithContext(ctx).Model(&Lock{}).
		Where("lock_action = ? AND locking_server_id = ?", name, serverID).
		Updates(map[string]interface{}{
			"expire_time":  now + ttl.Milliseconds(),
			"updated_time": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return job_scheduler.ErrLockHeld
	}
	return nil
}
