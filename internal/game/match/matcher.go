package match

import (
	"sync"
	"time"

	"chessarena/internal/types"
)

// Ticket 一张匹配券
type Ticket struct {
	Identity   string
	Client     types.ClientInterface
	Rating     int
	Minutes    int
	EnqueuedAt time.Time
}

// Queue 按积分分桶的匹配队列
// 入队时先在邻近桶内找对手：从本桶开始向两侧交替扩大搜索半径，
// 桶内按入队先后取最早的一张券；找不到才真正入队等待
type Queue struct {
	bucketSize int
	maxDelta   int

	mu sync.Mutex
	// 时长 → 桶号 → FIFO
	buckets    map[int]map[int][]*Ticket
	byIdentity map[string]*Ticket
}

// NewQueue 创建匹配队列
// bucketSize 为每桶积分宽度，maxDelta 为最大搜索桶距
func NewQueue(bucketSize, maxDelta int) *Queue {
	if bucketSize <= 0 {
		bucketSize = 100
	}
	if maxDelta < 0 {
		maxDelta = 0
	}
	return &Queue{
		bucketSize: bucketSize,
		maxDelta:   maxDelta,
		buckets:    make(map[int]map[int][]*Ticket),
		byIdentity: make(map[string]*Ticket),
	}
}

// Enqueue 尝试匹配，成功返回对手券；否则入队并返回 nil
// 同一身份重复入队会先移除旧券（以最新一张为准）
func (q *Queue) Enqueue(t *Ticket) *Ticket {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.removeLocked(t.Identity)

	if opponent := q.takeOpponentLocked(t); opponent != nil {
		return opponent
	}

	if t.EnqueuedAt.IsZero() {
		t.EnqueuedAt = time.Now()
	}
	bucket := t.Rating / q.bucketSize
	byMinutes, ok := q.buckets[t.Minutes]
	if !ok {
		byMinutes = make(map[int][]*Ticket)
		q.buckets[t.Minutes] = byMinutes
	}
	byMinutes[bucket] = append(byMinutes[bucket], t)
	q.byIdentity[t.Identity] = t
	return nil
}

// Dequeue 撤回匹配券，重复撤回是安全的
func (q *Queue) Dequeue(identity string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.removeLocked(identity)
}

// Queued 身份是否在队列中
func (q *Queue) Queued(identity string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.byIdentity[identity]
	return ok
}

// Len 当前排队人数
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.byIdentity)
}

// takeOpponentLocked 从本桶向外交替扩大半径找最早入队的对手；必须持有 q.mu
func (q *Queue) takeOpponentLocked(t *Ticket) *Ticket {
	byMinutes := q.buckets[t.Minutes]
	if byMinutes == nil {
		return nil
	}

	base := t.Rating / q.bucketSize
	for delta := 0; delta <= q.maxDelta; delta++ {
		for _, bucket := range probeOrder(base, delta) {
			list := byMinutes[bucket]
			if len(list) == 0 {
				continue
			}
			opponent := list[0]
			q.removeLocked(opponent.Identity)
			return opponent
		}
	}
	return nil
}

// probeOrder 半径 delta 下的探测桶序：0 → 本桶；否则下方优先、上方其次
func probeOrder(base, delta int) []int {
	if delta == 0 {
		return []int{base}
	}
	return []int{base - delta, base + delta}
}

// removeLocked 按身份摘除一张券；必须持有 q.mu
func (q *Queue) removeLocked(identity string) bool {
	t, ok := q.byIdentity[identity]
	if !ok {
		return false
	}
	delete(q.byIdentity, identity)

	bucket := t.Rating / q.bucketSize
	byMinutes := q.buckets[t.Minutes]
	if byMinutes == nil {
		return true
	}
	list := byMinutes[bucket]
	for i, candidate := range list {
		if candidate.Identity == identity {
			byMinutes[bucket] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(byMinutes[bucket]) == 0 {
		delete(byMinutes, bucket)
	}
	if len(byMinutes) == 0 {
		delete(q.buckets, t.Minutes)
	}
	return true
}
