package dao

import (
	"context"
	"testing"
	"time"

	job_scheduler "github.com/TimeWtr/job_scheduler"
	"github.com/TimeWtr/job_scheduler/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// 内存库的每个连接都是独立的库
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, AutoMigrate(db))
	return db
}

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func newTestLockDAO(t *testing.T) (*LockDAO, *testClock) {
	clock := &testClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	l := NewLockDAO(newTestDB(t))
	l.now = clock.Now
	return l, clock
}

func TestLockDAO_TryLockAndUnlock(t *testing.T) {
	ctx := context.Background()
	l, clock := newTestLockDAO(t)

	_, ok, err := l.FindLastLockTime(ctx, "purge")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, l.TryLock(ctx, "purge", "node-001", time.Minute))
	// 持有者可以重入
	require.NoError(t, l.TryLock(ctx, "purge", "node-001", time.Minute))
	assert.ErrorIs(t, l.TryLock(ctx, "purge", "node-002", time.Minute), job_scheduler.ErrLockHeld)

	clock.now = clock.now.Add(10 * time.Second)
	require.NoError(t, l.Unlock(ctx, "purge", "node-001"))

	last, ok, err := l.FindLastLockTime(ctx, "purge")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, clock.now.UnixMilli(), last.UnixMilli())

	require.NoError(t, l.TryLock(ctx, "purge", "node-002", time.Minute))
}

func TestLockDAO_ExpiredLockCanBeTaken(t *testing.T) {
	ctx := context.Background()
	l, clock := newTestLockDAO(t)

	require.NoError(t, l.TryLock(ctx, "push", "node-001", time.Minute))
	clock.now = clock.now.Add(2 * time.Minute)
	require.NoError(t, l.TryLock(ctx, "push", "node-002", time.Minute))

	// 旧持有者不能释放别人的锁
	require.NoError(t, l.Unlock(ctx, "push", "node-001"))
	assert.ErrorIs(t, l.TryLock(ctx, "push", "node-001", time.Minute), job_scheduler.ErrLockHeld)
}

func TestLockDAO_Refresh(t *testing.T) {
	ctx := context.Background()
	l, clock := newTestLockDAO(t)

	require.NoError(t, l.TryLock(ctx, "push", "node-001", time.Minute))
	clock.now = clock.now.Add(50 * time.Second)
	require.NoError(t, l.Refresh(ctx, "push", "node-001", time.Minute))
	clock.now = clock.now.Add(50 * time.Second)
	assert.ErrorIs(t, l.TryLock(ctx, "push", "node-002", time.Minute), job_scheduler.ErrLockHeld)

	assert.ErrorIs(t, l.Refresh(ctx, "push", "node-002", time.Minute), job_scheduler.ErrLockHeld)
}

func TestLockDAO_InfiniteLock(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLockDAO(t)

	locked, err := l.IsInfiniteLocked(ctx, "purge")
	require.NoError(t, err)
	assert.False(t, locked)

	require.NoError(t, l.LockInfinite(ctx, "purge"))
	locked, err = l.IsInfiniteLocked(ctx, "purge")
	require.NoError(t, err)
	assert.True(t, locked)
	assert.ErrorIs(t, l.TryLock(ctx, "purge", "node-001", time.Minute), job_scheduler.ErrLockHeld)

	require.NoError(t, l.ClearInfinite(ctx, "purge"))
	locked, err = l.IsInfiniteLocked(ctx, "purge")
	require.NoError(t, err)
	assert.False(t, locked)
	require.NoError(t, l.TryLock(ctx, "purge", "node-001", time.Minute))
}

func TestStatsDAO(t *testing.T) {
	ctx := context.Background()
	s := NewStatsDAO(newTestDB(t), "node-001")
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.AddJobStats(ctx, "purge", base, base.Add(time.Minute), 0))
	require.NoError(t, s.AddJobStats(ctx, "purge", base.Add(time.Hour), base.Add(time.Hour+time.Minute), 10))
	require.NoError(t, s.AddJobStats(ctx, "push", base, base.Add(2*time.Minute), 0))

	rows, err := s.ListByJob(ctx, "purge", 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(10), rows[0].ProcessedCount)
	assert.Equal(t, "node-001", rows[0].InstanceID)

	n, err := s.Purge(ctx, base.Add(30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	rows, err = s.ListByJob(ctx, "purge", 0)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestAckDAO(t *testing.T) {
	ctx := context.Background()
	a := NewAckDAO(newTestDB(t))

	ok := domain.NewBatchAck(41)
	ok.NodeID = "store-001"
	ok.ByteCount = 1024
	failed := domain.NewFailedBatchAck(42, 17).SetSQLError("23000", 1062, "duplicate key")
	failed.NodeID = "store-001"
	other := domain.NewBatchAck(43)
	other.NodeID = "store-002"

	require.NoError(t, a.Save(ctx, ok))
	require.NoError(t, a.Save(ctx, failed))
	require.NoError(t, a.Save(ctx, other))

	acks, err := a.ListByNode(ctx, "store-001", 10)
	require.NoError(t, err)
	require.Len(t, acks, 2)
	assert.Equal(t, *failed, acks[0])
	assert.Equal(t, *ok, acks[1])

	var record BatchAckRecord
	require.NoError(t, a.db.Where("batch_id = ?", 42).First(&record).Error)
	assert.Equal(t, domain.AckResume.String(), record.Outcome)
}

func TestHostDAO_Heartbeat(t *testing.T) {
	ctx := context.Background()
	h := NewHostDAO(newTestDB(t))
	first := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, h.Heartbeat(ctx, "node-001", "corp", first))
	require.NoError(t, h.Heartbeat(ctx, "node-001", "corp", first.Add(time.Minute)))

	host, ok, err := h.Find(ctx, "node-001")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, first.Add(time.Minute).UnixMilli(), host.HeartbeatTime)
	assert.Equal(t, first.UnixMilli(), host.CreatedTime)

	_, ok, err = h.Find(ctx, "node-002")
	require.NoError(t, err)
	assert.False(t, ok)
}
