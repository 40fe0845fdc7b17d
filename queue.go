package job_scheduler

import (
	"container/heap"
	"sync"
	"time"
)

// hp 小顶堆优先级延时队列
// 下次执行时间最近的任务放到队列头部
type hp []*entry

func (h *hp) Len() int {
	return len(*h)
}

// Less 比较
// 条件：
// 1. 时间较小者为先执行的任务
// 2. 时间相同的情况下先加入队列的先执行
func (h *hp) Less(i, j int) bool {
	a, b := (*h)[i], (*h)[j]
	return a.next.Before(b.next) ||
		a.next.Equal(b.next) && a.seq < b.seq
}

func (h *hp) Swap(i, j int) {
	(*h)[i], (*h)[j] = (*h)[j], (*h)[i]
	(*h)[i].index = i
	(*h)[j].index = j
}

func (h *hp) Push(x interface{}) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *hp) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	x.index = -1
	*h = old[:n-1]
	return x
}

// entryQueue 并发优先级延时队列
type entryQueue struct {
	hp
	mu *sync.Mutex
}

func newEntryQueue(size int) *entryQueue {
	return &entryQueue{
		hp: make(hp, 0, size),
		mu: &sync.Mutex{},
	}
}

func (q *entryQueue) push(e *entry, next time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e.next = next
	heap.Push(&q.hp, e)
}

// popDue 取出队列头部已经到期的任务，没有则返回nil
func (q *entryQueue) popDue(now time.Time) *entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.Len() == 0 || q.hp[0].next.After(now) {
		return nil
	}

	return heap.Pop(&q.hp).(*entry)
}

// peek 队列头部任务的执行时间
func (q *entryQueue) peek() (time.Time, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.Len() == 0 {
		return time.Time{}, false
	}

	return q.hp[0].next, true
}

// remove 从队列中删除任务，任务不在队列中(正在执行)时返回false
func (q *entryQueue) remove(e *entry) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if e.index < 0 || e.index >= q.Len() || q.hp[e.index] != e {
		return false
	}

	heap.Remove(&q.hp, e.index)
	return true
}

// drain 清空队列
func (q *entryQueue) drain() []*entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	res := make([]*entry, 0, q.Len())
	for q.Len() > 0 {
		res = append(res, heap.Pop(&q.hp).(*entry))
	}

	return res
}
