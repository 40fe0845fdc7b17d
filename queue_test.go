package job_scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryQueue_Order(t *testing.T) {
	q := newEntryQueue(4)
	now := time.Now()
	e1 := &entry{seq: 1, index: -1}
	e2 := &entry{seq: 2, index: -1}
	e3 := &entry{seq: 3, index: -1}
	e4 := &entry{seq: 4, index: -1}

	q.push(e1, now.Add(2*time.Second))
	q.push(e2, now.Add(time.Second))
	q.push(e3, now.Add(5*time.Second))
	// 时间相同时先加入的先出队
	q.push(e4, now.Add(time.Second))

	next, ok := q.peek()
	require.True(t, ok)
	assert.Equal(t, now.Add(time.Second), next)

	assert.Nil(t, q.popDue(now))
	assert.Same(t, e2, q.popDue(now.Add(3*time.Second)))
	assert.Same(t, e4, q.popDue(now.Add(3*time.Second)))
	assert.Same(t, e1, q.popDue(now.Add(3*time.Second)))
	assert.Nil(t, q.popDue(now.Add(3*time.Second)))
	assert.Equal(t, -1, e1.index)
}

func TestEntryQueue_Remove(t *testing.T) {
	q := newEntryQueue(4)
	now := time.Now()
	e1 := &entry{seq: 1, index: -1}
	e2 := &entry{seq: 2, index: -1}
	q.push(e1, now)
	q.push(e2, now.Add(time.Second))

	assert.True(t, q.remove(e1))
	assert.False(t, q.remove(e1))
	next, ok := q.peek()
	require.True(t, ok)
	assert.Equal(t, now.Add(time.Second), next)

	assert.Len(t, q.drain(), 1)
	_, ok = q.peek()
	assert.False(t, ok)
	assert.False(t, q.remove(e2))
}
