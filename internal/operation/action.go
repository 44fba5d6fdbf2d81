package operation

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/rayking12/celo-simple-donation/internal/chain"
	"github.com/rayking12/celo-simple-donation/internal/contract"
	"github.com/rayking12/celo-simple-donation/internal/logger"
	"github.com/rayking12/celo-simple-donation/internal/metrics"
)

// Payload 写操作的输入，Args 非空时覆盖 Operation 中的参数
type Payload struct {
	Args  []interface{}
	Value *big.Int
}

// Result 写操作的结果，Err 为空表示成功
type Result struct {
	Receipt *chain.Receipt
	Err     error
}

// Pending 已提交写操作的句柄，只会被完成一次
type Pending struct {
	ID       string
	Function string

	once   sync.Once
	done   chan struct{}
	result Result
}

func newPending(function string) *Pending {
	return &Pending{
		ID:       uuid.NewString(),
		Function: function,
		done:     make(chan struct{}),
	}
}

func (p *Pending) resolve(r Result) bool {
	resolved := false
	p.once.Do(func() {
		p.result = r
		close(p.done)
		resolved = true
	})
	return resolved
}

// Done 完成时关闭
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait 等待写操作完成, ctx 只控制等待时长, 不会取消已提交的交易
func (p *Pending) Wait(ctx context.Context) (Result, error) {
	select {
	case <-p.done:
		return p.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Result 非阻塞地获取结果
func (p *Pending) Result() (Result, bool) {
	select {
	case <-p.done:
		return p.result, true
	default:
		return Result{}, false
	}
}

// SuccessFunc 写操作成功后的回调
type SuccessFunc func(receipt *chain.Receipt)

// Action 修改链上状态的合约调用
type Action struct {
	client    chain.Client
	op        contract.Operation
	pool      *ants.Pool
	onSuccess SuccessFunc
	timeout   time.Duration
	inFlight  atomic.Int32
}

// NewAction 创建写操作
func NewAction(client chain.Client, op contract.Operation, pool *ants.Pool, onSuccess SuccessFunc) *Action {
	return &Action{
		client:    client,
		op:        op,
		pool:      pool,
		onSuccess: onSuccess,
		timeout:   2 * time.Minute,
	}
}

// WithTimeout 设置等待交易确认的超时
func (a *Action) WithTimeout(d time.Duration) *Action {
	if d > 0 {
		a.timeout = d
	}
	return a
}

// IsLoading 是否有执行中的写操作
func (a *Action) IsLoading() bool {
	return a.inFlight.Load() > 0
}

// Execute 在协程池中异步提交交易
//
// 成功时先调用成功回调, 失败时先调用统一错误处理, 然后完成返回的句柄。
// 不会自动重试，也不能取消。协程池已满时句柄立即以错误完成。
func (a *Action) Execute(payload Payload) *Pending {
	a.inFlight.Add(1)
	return a.submit(payload)
}

// TryExecute 仅在没有执行中的写操作时提交，否则返回 false
func (a *Action) TryExecute(payload Payload) (*Pending, bool) {
	if !a.inFlight.CompareAndSwap(0, 1) {
		return nil, false
	}
	return a.submit(payload), true
}

// submit 调用前必须已占用 inFlight
func (a *Action) submit(payload Payload) *Pending {
	op := a.op
	if payload.Args != nil {
		op = op.WithArgs(payload.Args...)
	}

	p := newPending(op.FunctionName)
	start := time.Now()
	metrics.WriteStarted()

	err := a.pool.Submit(func() {
		receipt, err := a.transact(op, payload.Value)
		a.finish(op, p, receipt, err, start)
	})
	if err != nil {
		a.finish(op, p, nil, fmt.Errorf("submit %s: %w", op.FunctionName, err), start)
	}
	return p
}

func (a *Action) transact(op contract.Operation, value *big.Int) (receipt *chain.Receipt, err error) {
	defer func() {
		if r := recover(); r != nil {
			receipt, err = nil, fmt.Errorf("%s panicked: %v", op.FunctionName, r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	receipt, err = a.client.Transact(ctx, op, value)
	if err == nil && receipt == nil {
		err = fmt.Errorf("%s returned no receipt", op.FunctionName)
	}
	return receipt, err
}

// finish 每次提交只调用一次
func (a *Action) finish(op contract.Operation, p *Pending, receipt *chain.Receipt, err error, start time.Time) {
	metrics.ObserveOperation(op.FunctionName, metrics.KindWrite, start, err)

	if err != nil {
		op.Fail(err)
	} else {
		logger.Info("%s confirmed in block %d (tx %s)", op.FunctionName, receipt.BlockNumber, receipt.TxHash.Hex())
		a.succeed(op, receipt)
	}

	a.inFlight.Add(-1)
	metrics.WriteFinished()
	p.resolve(Result{Receipt: receipt, Err: err})
}

// succeed 成功回调出错只记录日志，交易已上链，结果仍为成功
func (a *Action) succeed(op contract.Operation, receipt *chain.Receipt) {
	if a.onSuccess == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Success callback of %s panicked: %v", op.FunctionName, r)
		}
	}()
	a.onSuccess(receipt)
}
