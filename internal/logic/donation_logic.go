package logic

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/panjf2000/ants/v2"
	"github.com/rayking12/celo-simple-donation/internal/chain"
	"github.com/rayking12/celo-simple-donation/internal/contract"
	"github.com/rayking12/celo-simple-donation/internal/logger"
	"github.com/rayking12/celo-simple-donation/internal/model"
	"github.com/rayking12/celo-simple-donation/internal/notify"
	"github.com/rayking12/celo-simple-donation/internal/operation"
	"github.com/rayking12/celo-simple-donation/internal/viewmodel"
	"github.com/rayking12/celo-simple-donation/internal/watch"
)

// Options 业务逻辑的可选配置
type Options struct {
	Symbol string        // 原生代币符号
	TxWait time.Duration // 等待交易确认的超时
}

// DonationLogic 捐赠业务逻辑
//
// 读操作的结果缓存在各自的 Query 中，由区块监听器触发刷新；
// 写操作按 (函数, 项目) 复用同一个 Action，执行中时拒绝重复提交。
type DonationLogic struct {
	client   chain.Client
	factory  *contract.Factory
	watcher  *watch.Watcher
	pool     *ants.Pool
	notifier *notify.Bus
	opts     Options

	causes  *operation.Query[[]model.Campaign]
	overall *operation.Query[[]model.DonorRecord]

	mu      sync.Mutex
	donors  map[uint64]*donorBoard
	actions map[string]*operation.Action
}

// donorBoard 单个项目的捐赠排行榜查询, loaded 在首次加载完成后关闭
type donorBoard struct {
	query  *operation.Query[[]model.DonorRecord]
	loaded chan struct{}
}

// NewDonationLogic 创建捐赠业务逻辑
func NewDonationLogic(client chain.Client, factory *contract.Factory, watcher *watch.Watcher, pool *ants.Pool, notifier *notify.Bus, opts Options) *DonationLogic {
	l := &DonationLogic{
		client:   client,
		factory:  factory,
		watcher:  watcher,
		pool:     pool,
		notifier: notifier,
		opts:     opts,
		donors:   make(map[uint64]*donorBoard),
		actions:  make(map[string]*operation.Action),
	}

	l.causes = operation.NewQuery(client, factory.Build(contract.FnGetAllCauses), contract.DecodeCauses, []model.Campaign{}).
		WithTimeout(opts.TxWait)
	l.causes.Watch(watcher)

	l.overall = operation.NewQuery(client, factory.Build(contract.FnGetOverallTopDonors), contract.DecodeDonors, []model.DonorRecord{}).
		WithTimeout(opts.TxWait)
	l.overall.Watch(watcher)

	return l
}

// Load 首次加载项目列表和总排行榜
func (l *DonationLogic) Load(ctx context.Context) {
	l.causes.Refresh(ctx)
	l.overall.Refresh(ctx)
	logger.Info("Loaded %d causes", len(l.causes.Snapshot().Data))
}

// CauseCard 项目卡片及其按钮状态
type CauseCard struct {
	viewmodel.CampaignView
	Donating    bool `json:"donating"`
	Withdrawing bool `json:"withdrawing"`
	Closing     bool `json:"closing"`
}

// CausesView 项目列表
type CausesView struct {
	Loading bool        `json:"loading"`
	Causes  []CauseCard `json:"causes"`
}

// Causes 获取当前账户视角下的项目列表
func (l *DonationLogic) Causes() CausesView {
	snap := l.causes.Snapshot()
	connected := l.connected()

	cards := make([]CauseCard, 0, len(snap.Data))
	for _, v := range viewmodel.NewCampaignViews(snap.Data, connected) {
		cards = append(cards, CauseCard{
			CampaignView: v,
			Donating:     l.inFlight(contract.FnDonate, v.ID),
			Withdrawing:  l.inFlight(contract.FnRequestDonation, v.ID),
			Closing:      l.inFlight(contract.FnCloseCause, v.ID),
		})
	}
	return CausesView{Loading: snap.IsLoading, Causes: cards}
}

// Campaign 从快照中获取项目
func (l *DonationLogic) Campaign(id uint64) (model.Campaign, error) {
	c, ok := model.FindCampaign(l.causes.Snapshot().Data, id)
	if !ok {
		return model.Campaign{}, fmt.Errorf("%w: %d", ErrCampaignNotFound, id)
	}
	return c, nil
}

// TopDonors 获取项目捐赠排行榜
//
// 首次请求时创建并加载查询，并发的请求等待首次加载完成。
func (l *DonationLogic) TopDonors(ctx context.Context, id uint64) (viewmodel.Leaderboard, error) {
	if _, err := l.Campaign(id); err != nil {
		return viewmodel.Leaderboard{}, err
	}

	l.mu.Lock()
	board, ok := l.donors[id]
	if !ok {
		q := operation.NewQuery(l.client, l.factory.Build(contract.FnGetTopDonors, new(big.Int).SetUint64(id)), contract.DecodeDonors, []model.DonorRecord{}).
			WithTimeout(l.opts.TxWait)
		q.Watch(l.watcher)
		board = &donorBoard{query: q, loaded: make(chan struct{})}
		l.donors[id] = board
	}
	l.mu.Unlock()

	if !ok {
		board.query.Refresh(ctx)
		close(board.loaded)
	}

	select {
	case <-board.loaded:
	case <-ctx.Done():
		return viewmodel.Leaderboard{}, ctx.Err()
	}
	return viewmodel.NewLeaderboard(board.query.Snapshot().Data, viewmodel.NoCurrentDonor), nil
}

// OverallTopDonors 获取全部项目的捐赠排行榜
func (l *DonationLogic) OverallTopDonors() viewmodel.Leaderboard {
	return viewmodel.NewLeaderboard(l.overall.Snapshot().Data, viewmodel.NoCurrentLeader)
}

// AccountView 当前账户及余额
type AccountView struct {
	Address string           `json:"address"`
	Balance viewmodel.Amount `json:"balance"`
	Symbol  string           `json:"symbol"`
}

// Account 获取当前连接的账户
func (l *DonationLogic) Account(ctx context.Context) (AccountView, error) {
	account, err := l.client.Account()
	if err != nil {
		return AccountView{}, err
	}

	balance, err := l.client.Balance(ctx, account)
	if err != nil {
		return AccountView{}, fmt.Errorf("failed to get balance: %w", err)
	}

	return AccountView{
		Address: account.Hex(),
		Balance: viewmodel.NewAmount(balance),
		Symbol:  l.opts.Symbol,
	}, nil
}

// Donate 向项目捐赠，amount 为十进制金额
func (l *DonationLogic) Donate(id uint64, amount string) (*operation.Pending, error) {
	value, err := parseAmount(amount)
	if err != nil {
		return nil, err
	}

	c, err := l.Campaign(id)
	if err != nil {
		return nil, err
	}
	if c.Closed {
		return nil, ErrCampaignClosed
	}

	return l.execute(contract.FnDonate, id, MsgDonated, operation.Payload{Value: value})
}

// Withdraw 受益人提取全部可提取金额
func (l *DonationLogic) Withdraw(id uint64) (*operation.Pending, error) {
	c, err := l.ownedCampaign(id)
	if err != nil {
		return nil, err
	}

	withdrawable := viewmodel.Withdrawable(c.CurrentAmount, c.WithdrawnAmount)
	if withdrawable.Sign() <= 0 {
		return nil, ErrNothingToWithdraw
	}

	return l.execute(contract.FnRequestDonation, id, MsgWithdrawn, operation.Payload{
		Args: []interface{}{new(big.Int).SetUint64(id), withdrawable},
	})
}

// CloseCause 受益人关闭项目
func (l *DonationLogic) CloseCause(id uint64) (*operation.Pending, error) {
	c, err := l.ownedCampaign(id)
	if err != nil {
		return nil, err
	}
	if c.Closed {
		return nil, ErrCampaignClosed
	}

	return l.execute(contract.FnCloseCause, id, MsgClosed, operation.Payload{})
}

// CreateCauseRequest 创建项目参数
type CreateCauseRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	GoalAmount  string `json:"goalAmount"`
	ImageURL    string `json:"imageUrl"`
}

// CreateCause 以当前账户为受益人创建项目
func (l *DonationLogic) CreateCause(req CreateCauseRequest) (*operation.Pending, error) {
	name := strings.TrimSpace(req.Name)
	description := strings.TrimSpace(req.Description)
	switch {
	case name == "":
		return nil, fmt.Errorf("%w: name", ErrMissingField)
	case description == "":
		return nil, fmt.Errorf("%w: description", ErrMissingField)
	case strings.TrimSpace(req.GoalAmount) == "":
		return nil, fmt.Errorf("%w: goalAmount", ErrMissingField)
	}

	goal, err := parseAmount(req.GoalAmount)
	if err != nil {
		return nil, err
	}

	beneficiary, err := l.client.Account()
	if err != nil {
		return nil, err
	}

	return l.execute(contract.FnCreateCause, 0, MsgCauseCreated, operation.Payload{
		Args: []interface{}{name, beneficiary, description, goal, strings.TrimSpace(req.ImageURL)},
	})
}

// Refresh 手动使所有快照失效
func (l *DonationLogic) Refresh() {
	l.watcher.Refresh()
}

// Close 停止所有读操作的刷新
func (l *DonationLogic) Close() {
	l.causes.Close()
	l.overall.Close()

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, board := range l.donors {
		board.query.Close()
	}
}

func (l *DonationLogic) ownedCampaign(id uint64) (model.Campaign, error) {
	c, err := l.Campaign(id)
	if err != nil {
		return model.Campaign{}, err
	}

	account, err := l.client.Account()
	if err != nil {
		return model.Campaign{}, err
	}
	if !viewmodel.IsOwnerAddress(account, c.Beneficiary) {
		return model.Campaign{}, ErrNotOwner
	}
	return c, nil
}

// execute 提交写操作, 同一 (函数, 项目) 同时只允许一个
//
// 提交不持有 l.mu, 协程池已满时返回的句柄立即以错误完成。
func (l *DonationLogic) execute(fn string, id uint64, successMsg string, payload operation.Payload) (*operation.Pending, error) {
	action := l.action(fn, id, successMsg)

	p, ok := action.TryExecute(payload)
	if !ok {
		return nil, ErrActionInFlight
	}
	logger.Info("Submitted %s for cause %d (pending %s)", fn, id, p.ID)
	return p, nil
}

// action 获取或创建 (函数, 项目) 对应的写操作
func (l *DonationLogic) action(fn string, id uint64, successMsg string) *operation.Action {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := actionKey(fn, id)
	if action, ok := l.actions[key]; ok {
		return action
	}

	var op contract.Operation
	if id == 0 {
		op = l.factory.Build(fn)
	} else {
		op = l.factory.Build(fn, new(big.Int).SetUint64(id))
	}
	action := operation.NewAction(l.client, op, l.pool, func(*chain.Receipt) {
		l.notifier.Success(successMsg)
	}).WithTimeout(l.opts.TxWait)
	l.actions[key] = action
	return action
}

func (l *DonationLogic) inFlight(fn string, id uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	action, ok := l.actions[actionKey(fn, id)]
	return ok && action.IsLoading()
}

func (l *DonationLogic) connected() common.Address {
	account, err := l.client.Account()
	if err != nil {
		return common.Address{}
	}
	return account
}

func actionKey(fn string, id uint64) string {
	return fmt.Sprintf("%s:%d", fn, id)
}

// parseAmount 解析正的十进制金额
func parseAmount(amount string) (*big.Int, error) {
	wei, err := model.ParseEther(amount)
	if err != nil {
		if errors.Is(err, model.ErrEmptyAmount) {
			return nil, fmt.Errorf("%w: amount is required", ErrInvalidAmount)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	if wei.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount must be greater than zero", ErrInvalidAmount)
	}
	return wei, nil
}
