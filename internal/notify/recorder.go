package notify

import (
	"sync"
	"time"
)

// Recorder 保存最近的通知，供前端轮询展示
type Recorder struct {
	mu    sync.RWMutex
	limit int
	items []Notification // 按时间倒序
}

func NewRecorder(limit int) *Recorder {
	if limit <= 0 {
		limit = 50
	}
	return &Recorder{limit: limit}
}

// Record 记录一条通知, 超出上限时丢弃最旧的
func (r *Recorder) Record(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items = append([]Notification{n}, r.items...)
	if len(r.items) > r.limit {
		r.items = r.items[:r.limit]
	}
}

// Notify 实现 Sink
func (r *Recorder) Notify(n Notification) {
	r.Record(n)
}

// Recent 返回全部保存的通知
func (r *Recorder) Recent() []Notification {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Notification, len(r.items))
	copy(out, r.items)
	return out
}

// Active 返回在 now 时刻仍在展示期内的通知
func (r *Recorder) Active(now time.Time) []Notification {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Notification, 0, len(r.items))
	for _, n := range r.items {
		if now.Before(n.ExpiresAt()) {
			out = append(out, n)
		}
	}
	return out
}
