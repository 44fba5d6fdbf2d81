package operation

import (
	"context"
	"math/big"
	"reflect"
	"sync"
	"time"

	"github.com/rayking12/celo-simple-donation/internal/chain"
	"github.com/rayking12/celo-simple-donation/internal/contract"
	"github.com/rayking12/celo-simple-donation/internal/metrics"
	"github.com/rayking12/celo-simple-donation/internal/watch"
)

// DefaultTimeout 单次读操作或失效刷新的默认超时
const DefaultTimeout = 30 * time.Second

// Decoder 将调用结果解码为目标类型
type Decoder[T any] func(out []interface{}) (T, error)

// Snapshot 读操作的当前结果
type Snapshot[T any] struct {
	Data      T    `json:"data"`
	IsLoading bool `json:"isLoading"`
}

// Query 只读合约调用，结果缓存在快照中，失效时自动重新执行
type Query[T any] struct {
	client  chain.Client
	decode  Decoder[T]
	timeout time.Duration

	mu      sync.RWMutex
	op      contract.Operation
	data    T
	loading int
	gen     uint64 // 最近一次发起的刷新
	applied uint64 // 最近一次写入快照的刷新
	closed  bool

	unwatch func()
}

// NewQuery 创建读操作，empty 为尚无结果时的默认值
func NewQuery[T any](client chain.Client, op contract.Operation, decode Decoder[T], empty T) *Query[T] {
	return &Query[T]{
		client:  client,
		decode:  decode,
		timeout: DefaultTimeout,
		op:      op,
		data:    empty,
	}
}

// WithTimeout 设置失效刷新的超时
func (q *Query[T]) WithTimeout(d time.Duration) *Query[T] {
	if d > 0 {
		q.timeout = d
	}
	return q
}

// Snapshot 获取当前结果
func (q *Query[T]) Snapshot() Snapshot[T] {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return Snapshot[T]{Data: q.data, IsLoading: q.loading > 0}
}

// Operation 获取当前的调用参数
func (q *Query[T]) Operation() contract.Operation {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.op
}

// Refresh 重新执行调用
//
// 失败时交给统一错误处理并保留上一次的结果, 不向调用方返回错误。
func (q *Query[T]) Refresh(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.gen++
	gen := q.gen
	op := q.op
	q.loading++
	q.mu.Unlock()

	start := time.Now()
	data, err := q.fetch(ctx, op)
	metrics.ObserveOperation(op.FunctionName, metrics.KindRead, start, err)

	q.mu.Lock()
	q.loading--
	if err == nil && gen > q.applied {
		q.data = data
		q.applied = gen
	}
	q.mu.Unlock()

	if err != nil {
		op.Fail(err)
	}
}

func (q *Query[T]) fetch(ctx context.Context, op contract.Operation) (T, error) {
	var zero T
	out, err := q.client.Call(ctx, op)
	if err != nil {
		return zero, err
	}
	return q.decode(out)
}

// SetArgs 修改调用参数，参数变化时重新执行并返回 true
func (q *Query[T]) SetArgs(ctx context.Context, args ...interface{}) bool {
	q.mu.Lock()
	if argsEqual(q.op.Args, args) {
		q.mu.Unlock()
		return false
	}
	q.op = q.op.WithArgs(args...)
	q.mu.Unlock()

	q.Refresh(ctx)
	return true
}

// Watch 在 op.Watch 为 true 时订阅失效事件, 重复调用只保留最后一次订阅
func (q *Query[T]) Watch(w *watch.Watcher) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || !q.op.Watch {
		return
	}
	if q.unwatch != nil {
		q.unwatch()
	}
	q.unwatch = w.Subscribe(q.onInvalidate)
}

func (q *Query[T]) onInvalidate(watch.Invalidation) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	q.Refresh(ctx)
}

// Close 取消订阅失效事件, 之后的 Refresh 不再执行
func (q *Query[T]) Close() {
	q.mu.Lock()
	unwatch := q.unwatch
	q.unwatch = nil
	q.closed = true
	q.mu.Unlock()

	if unwatch != nil {
		unwatch()
	}
}

// argsEqual 比较调用参数, big.Int 按数值比较
func argsEqual(a, b []interface{}) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		x, xok := a[i].(*big.Int)
		y, yok := b[i].(*big.Int)
		if xok && yok {
			if x.Cmp(y) != 0 {
				return false
			}
			continue
		}
		if !reflect.DeepEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}
