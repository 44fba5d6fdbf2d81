package watch

import (
	"context"
	"fmt"
	"sync"
	"time"

	evbus "github.com/asaskevich/EventBus"
	"github.com/go-co-op/gocron/v2"
	"github.com/rayking12/celo-simple-donation/internal/logger"
	"github.com/rayking12/celo-simple-donation/internal/metrics"
)

// Topic 快照失效事件主题
const Topic = "chain:invalidate"

// Trigger 失效原因
type Trigger string

const (
	TriggerBlock  Trigger = "block"  // 观察到新区块
	TriggerManual Trigger = "manual" // 手动刷新
)

// Invalidation 快照失效事件
type Invalidation struct {
	Trigger Trigger
	Block   uint64
}

// BlockSource 提供最新区块号
type BlockSource interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// subscriber 失效事件订阅者
type subscriber struct {
	id uint64
	fn func(Invalidation)
}

// Watcher 轮询最新区块，在区块变化或手动刷新时发布失效事件
//
// 总线上只注册一个分发函数，订阅者按订阅顺序在发布方协程中同步执行，
// 回调中不能再次发布。
type Watcher struct {
	source    BlockSource
	bus       evbus.Bus
	interval  time.Duration
	scheduler gocron.Scheduler

	mu        sync.RWMutex
	lastBlock uint64
	seen      bool

	subMu  sync.RWMutex
	subs   []subscriber
	nextID uint64
}

// New 创建区块监听器
func New(source BlockSource, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	w := &Watcher{
		source:   source,
		bus:      evbus.New(),
		interval: interval,
	}
	// 只有回调不是函数时才会出错
	_ = w.bus.Subscribe(Topic, w.dispatch)
	return w
}

// Subscribe 订阅失效事件，返回取消订阅的函数
func (w *Watcher) Subscribe(fn func(Invalidation)) (unsubscribe func()) {
	w.subMu.Lock()
	defer w.subMu.Unlock()

	w.nextID++
	id := w.nextID
	w.subs = append(w.subs, subscriber{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() { w.unsubscribe(id) })
	}
}

func (w *Watcher) unsubscribe(id uint64) {
	w.subMu.Lock()
	defer w.subMu.Unlock()

	for i, s := range w.subs {
		if s.id == id {
			w.subs = append(w.subs[:i:i], w.subs[i+1:]...)
			return
		}
	}
}

// Subscribers 当前订阅者数量
func (w *Watcher) Subscribers() int {
	w.subMu.RLock()
	defer w.subMu.RUnlock()
	return len(w.subs)
}

// dispatch 总线回调，逐个通知订阅者
func (w *Watcher) dispatch(inv Invalidation) {
	w.subMu.RLock()
	subs := make([]subscriber, len(w.subs))
	copy(subs, w.subs)
	w.subMu.RUnlock()

	for _, s := range subs {
		s.fn(inv)
	}
}

// Poll 检查最新区块，区块变化时发布失效事件
func (w *Watcher) Poll(ctx context.Context) error {
	block, err := w.source.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current block number: %w", err)
	}

	w.mu.Lock()
	changed := !w.seen || block != w.lastBlock
	w.lastBlock = block
	w.seen = true
	w.mu.Unlock()

	if !changed {
		return nil
	}

	logger.Debug("New block observed: %d", block)
	w.publish(Invalidation{Trigger: TriggerBlock, Block: block})
	return nil
}

// Refresh 手动触发一次失效
func (w *Watcher) Refresh() {
	w.publish(Invalidation{Trigger: TriggerManual, Block: w.LastBlock()})
}

func (w *Watcher) publish(inv Invalidation) {
	metrics.ObserveInvalidation(string(inv.Trigger), inv.Block)
	w.bus.Publish(Topic, inv)
}

// LastBlock 最近观察到的区块号
func (w *Watcher) LastBlock() uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastBlock
}

// Start 启动定时轮询
func (w *Watcher) Start() error {
	s, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = s.NewJob(
		gocron.DurationJob(w.interval),
		gocron.NewTask(w.poll),
		gocron.WithName("block_watcher"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return fmt.Errorf("failed to register block watcher: %w", err)
	}

	w.scheduler = s
	s.Start()
	logger.Info("Block watcher started (interval %s)", w.interval)
	return nil
}

// poll 定时任务入口
func (w *Watcher) poll() {
	ctx, cancel := context.WithTimeout(context.Background(), w.interval)
	defer cancel()

	if err := w.Poll(ctx); err != nil {
		logger.Warn("Block watcher: %v", err)
	}
}

// Stop 停止轮询
func (w *Watcher) Stop() {
	if w.scheduler == nil {
		return
	}
	if err := w.scheduler.Shutdown(); err != nil {
		logger.Error("Failed to shutdown scheduler: %v", err)
	}
	logger.Info("Block watcher stopped")
}
