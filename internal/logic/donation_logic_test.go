package logic

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	evbus "github.com/asaskevich/EventBus"
	"github.com/ethereum/go-ethereum/common"
	"github.com/panjf2000/ants/v2"
	"github.com/rayking12/celo-simple-donation/internal/chain"
	"github.com/rayking12/celo-simple-donation/internal/contract"
	"github.com/rayking12/celo-simple-donation/internal/model"
	"github.com/rayking12/celo-simple-donation/internal/notify"
	"github.com/rayking12/celo-simple-donation/internal/operation"
	"github.com/rayking12/celo-simple-donation/internal/viewmodel"
	"github.com/rayking12/celo-simple-donation/internal/watch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	owner = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	donor = common.HexToAddress("0x00000000000000000000000000000000000000bb")
)

type testEnv struct {
	client  *chain.MemoryClient
	watcher *watch.Watcher
	logic   *DonationLogic

	mu    sync.Mutex
	notes []notify.Notification
}

func (e *testEnv) record(n notify.Notification) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.notes = append(e.notes, n)
}

func (e *testEnv) notifications() []notify.Notification {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]notify.Notification, len(e.notes))
	copy(out, e.notes)
	return out
}

// newEnv 创建一个已有两个项目的环境, 项目1 受益人为 owner
func newEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{client: chain.NewMemoryClient(donor)}
	env.client.AddCause(contract.CauseTuple{
		Name:            "Clean water",
		Beneficiary:     owner,
		Description:     "wells",
		GoalAmount:      model.Ether(10),
		CurrentAmount:   new(big.Int),
		WithdrawnAmount: new(big.Int),
	})
	env.client.AddCause(contract.CauseTuple{
		Name:            "Books",
		Beneficiary:     donor,
		Description:     "library",
		GoalAmount:      model.Ether(5),
		CurrentAmount:   new(big.Int),
		WithdrawnAmount: new(big.Int),
	})

	notifier := notify.NewBus(evbus.New(), time.Second)
	require.NoError(t, notifier.Subscribe(env.record))

	pool, err := operation.NewPool(4)
	require.NoError(t, err)
	t.Cleanup(pool.Release)

	binding := contract.NewBinding(common.HexToAddress("0x26f04253AADB78789833De8B2444929781cB85F7"), contract.DefaultABI())
	factory := contract.NewFactory(binding, notifier.ErrorHandler())
	env.watcher = watch.New(env.client, time.Second)

	env.logic = NewDonationLogic(env.client, factory, env.watcher, pool, notifier, Options{Symbol: "CELO", TxWait: 5 * time.Second})
	t.Cleanup(env.logic.Close)

	env.logic.Load(context.Background())
	return env
}

func (e *testEnv) wait(t *testing.T, p *operation.Pending) operation.Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := p.Wait(ctx)
	require.NoError(t, err)
	require.NoError(t, e.watcher.Poll(context.Background()))
	return res
}

func TestCauses_InitialLoad(t *testing.T) {
	env := newEnv(t)

	view := env.logic.Causes()
	require.False(t, view.Loading)
	require.Len(t, view.Causes, 2)
	assert.Equal(t, uint64(1), view.Causes[0].ID)
	assert.Equal(t, uint64(2), view.Causes[1].ID)
	assert.False(t, view.Causes[0].IsOwner)
	assert.True(t, view.Causes[1].IsOwner)
	assert.True(t, view.Causes[1].CanClose)
}

func TestDonate_RejectsBadInputWithoutWriting(t *testing.T) {
	env := newEnv(t)

	for _, amount := range []string{"", "  ", "abc", "0", "-1", "0.0000000000000000001"} {
		t.Run(amount, func(t *testing.T) {
			p, err := env.logic.Donate(1, amount)
			require.ErrorIs(t, err, ErrInvalidAmount)
			require.Nil(t, p)
		})
	}

	block, err := env.client.BlockNumber(context.Background())
	require.NoError(t, err)
	require.Zero(t, block, "no transaction must be dispatched")
	require.Empty(t, env.notifications())
}

func TestDonate_SuccessRefreshesSnapshot(t *testing.T) {
	env := newEnv(t)

	p, err := env.logic.Donate(1, "2.5")
	require.NoError(t, err)
	res := env.wait(t, p)
	require.NoError(t, res.Err)

	c, err := env.logic.Campaign(1)
	require.NoError(t, err)
	assert.Equal(t, 0, c.CurrentAmount.Cmp(new(big.Int).Div(model.Ether(5), big.NewInt(2))))

	view := env.logic.Causes().Causes[0]
	assert.Equal(t, float64(25), view.PercentageFunded)
	assert.False(t, view.Donating)

	board := env.logic.OverallTopDonors()
	require.False(t, board.Empty)
	assert.Equal(t, donor.Hex(), board.Entries[0].Donor)

	notes := env.notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, notify.StatusSuccess, notes[0].Status)
	assert.Equal(t, MsgDonated, notes[0].Description)
}

func TestDonate_Guards(t *testing.T) {
	env := newEnv(t)

	_, err := env.logic.Donate(9, "1")
	require.ErrorIs(t, err, ErrCampaignNotFound)

	// 关闭项目2
	p, err := env.logic.CloseCause(2)
	require.NoError(t, err)
	require.NoError(t, env.wait(t, p).Err)

	_, err = env.logic.Donate(2, "1")
	require.ErrorIs(t, err, ErrCampaignClosed)

	_, err = env.logic.CloseCause(2)
	require.ErrorIs(t, err, ErrCampaignClosed)
}

func TestWithdraw(t *testing.T) {
	env := newEnv(t)

	_, err := env.logic.Withdraw(1)
	require.ErrorIs(t, err, ErrNotOwner)

	_, err = env.logic.Withdraw(2)
	require.ErrorIs(t, err, ErrNothingToWithdraw)

	p, err := env.logic.Donate(2, "3")
	require.NoError(t, err)
	require.NoError(t, env.wait(t, p).Err)
	assert.True(t, env.logic.Causes().Causes[1].CanWithdraw)

	p, err = env.logic.Withdraw(2)
	require.NoError(t, err)
	require.NoError(t, env.wait(t, p).Err)

	c, err := env.logic.Campaign(2)
	require.NoError(t, err)
	assert.Equal(t, 0, c.WithdrawnAmount.Cmp(model.Ether(3)))

	card := env.logic.Causes().Causes[1]
	assert.Zero(t, card.Withdrawable.Wei.Sign())
	assert.False(t, card.CanWithdraw)

	_, err = env.logic.Withdraw(2)
	require.ErrorIs(t, err, ErrNothingToWithdraw)

	notes := env.notifications()
	require.Len(t, notes, 2)
	assert.Equal(t, MsgWithdrawn, notes[1].Description)
}

func TestCreateCause(t *testing.T) {
	env := newEnv(t)

	_, err := env.logic.CreateCause(CreateCauseRequest{Description: "x", GoalAmount: "1"})
	require.ErrorIs(t, err, ErrMissingField)
	_, err = env.logic.CreateCause(CreateCauseRequest{Name: "x", GoalAmount: "1"})
	require.ErrorIs(t, err, ErrMissingField)
	_, err = env.logic.CreateCause(CreateCauseRequest{Name: "x", Description: "y"})
	require.ErrorIs(t, err, ErrMissingField)
	_, err = env.logic.CreateCause(CreateCauseRequest{Name: "x", Description: "y", GoalAmount: "ten"})
	require.ErrorIs(t, err, ErrInvalidAmount)

	p, err := env.logic.CreateCause(CreateCauseRequest{Name: "Trees", Description: "plant", GoalAmount: "7"})
	require.NoError(t, err)
	require.NoError(t, env.wait(t, p).Err)

	c, err := env.logic.Campaign(3)
	require.NoError(t, err)
	assert.Equal(t, "Trees", c.Name)
	assert.Equal(t, donor, c.Beneficiary)
	assert.Equal(t, 0, c.GoalAmount.Cmp(model.Ether(7)))
	assert.Equal(t, MsgCauseCreated, env.notifications()[0].Description)
}

func TestTopDonors(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()

	board, err := env.logic.TopDonors(ctx, 1)
	require.NoError(t, err)
	assert.True(t, board.Empty)
	assert.Equal(t, viewmodel.NoCurrentDonor, board.Placeholder)

	_, err = env.logic.TopDonors(ctx, 7)
	require.ErrorIs(t, err, ErrCampaignNotFound)

	p, err := env.logic.Donate(1, "1")
	require.NoError(t, err)
	require.NoError(t, env.wait(t, p).Err)

	board, err = env.logic.TopDonors(ctx, 1)
	require.NoError(t, err)
	require.Len(t, board.Entries, 1)
	assert.Equal(t, 1, board.Entries[0].Rank)
	assert.Equal(t, "1", board.Entries[0].Amount.Ether)
}

func TestOverallTopDonors_Empty(t *testing.T) {
	env := newEnv(t)

	board := env.logic.OverallTopDonors()
	assert.True(t, board.Empty)
	assert.Equal(t, viewmodel.NoCurrentLeader, board.Placeholder)
}

func TestWriteFailureNotifiesError(t *testing.T) {
	env := newEnv(t)
	env.client.FailNext(contract.FnDonate, errors.New("insufficient gas"))

	p, err := env.logic.Donate(1, "1")
	require.NoError(t, err)
	res := env.wait(t, p)
	require.Error(t, res.Err)

	notes := env.notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, notify.StatusError, notes[0].Status)
	assert.Equal(t, "Error", notes[0].Title)
	assert.Equal(t, "insufficient gas", notes[0].Description)

	c, err := env.logic.Campaign(1)
	require.NoError(t, err)
	assert.Zero(t, c.CurrentAmount.Sign())
}

func TestNoConnector(t *testing.T) {
	env := newEnv(t)
	env.client.SetAccount(common.Address{})

	_, err := env.logic.Account(context.Background())
	require.ErrorIs(t, err, chain.ErrConnectorNotFound)

	_, err = env.logic.Withdraw(1)
	require.ErrorIs(t, err, chain.ErrConnectorNotFound)

	_, err = env.logic.CreateCause(CreateCauseRequest{Name: "x", Description: "y", GoalAmount: "1"})
	require.ErrorIs(t, err, chain.ErrConnectorNotFound)

	for _, card := range env.logic.Causes().Causes {
		assert.False(t, card.IsOwner)
	}

	// 捐赠通过校验后由链客户端拒绝, 错误使用固定文案
	p, err := env.logic.Donate(1, "1")
	require.NoError(t, err)
	require.ErrorIs(t, env.wait(t, p).Err, chain.ErrConnectorNotFound)
	assert.Equal(t, notify.ConnectorMessage, env.notifications()[0].Description)
}

func TestAccount(t *testing.T) {
	env := newEnv(t)

	account, err := env.logic.Account(context.Background())
	require.NoError(t, err)
	assert.Equal(t, donor.Hex(), account.Address)
	assert.Equal(t, "1000", account.Balance.Ether)
	assert.Equal(t, "CELO", account.Symbol)
}

// gatedClient 在 gate 关闭前阻塞所有交易
type gatedClient struct {
	*chain.MemoryClient
	gate chan struct{}
}

func (g *gatedClient) Transact(ctx context.Context, op contract.Operation, value *big.Int) (*chain.Receipt, error) {
	<-g.gate
	return g.MemoryClient.Transact(ctx, op, value)
}

func TestActionInFlight(t *testing.T) {
	env := newEnv(t)
	gated := &gatedClient{MemoryClient: env.client, gate: make(chan struct{})}
	env.logic.client = gated

	p, err := env.logic.Donate(1, "1")
	require.NoError(t, err)
	assert.True(t, env.logic.Causes().Causes[0].Donating)

	_, err = env.logic.Donate(1, "1")
	require.ErrorIs(t, err, ErrActionInFlight)

	// 其他项目不受影响
	p2, err := env.logic.Donate(2, "1")
	require.NoError(t, err)

	close(gated.gate)
	require.NoError(t, env.wait(t, p).Err)
	require.NoError(t, env.wait(t, p2).Err)
	assert.False(t, env.logic.Causes().Causes[0].Donating)
}

func TestPoolSaturationDoesNotBlock(t *testing.T) {
	env := newEnv(t)
	pool, err := operation.NewPool(1)
	require.NoError(t, err)
	t.Cleanup(pool.Release)
	gated := &gatedClient{MemoryClient: env.client, gate: make(chan struct{})}
	env.logic.pool = pool
	env.logic.client = gated

	p, err := env.logic.Donate(1, "1")
	require.NoError(t, err)

	submitted := make(chan *operation.Pending, 1)
	go func() {
		p2, err := env.logic.Donate(2, "1")
		assert.NoError(t, err)
		submitted <- p2
	}()

	var p2 *operation.Pending
	select {
	case p2 = <-submitted:
	case <-time.After(2 * time.Second):
		close(gated.gate)
		t.Fatal("donate blocked on a full pool")
	}
	require.ErrorIs(t, env.wait(t, p2).Err, ants.ErrPoolOverload)

	viewed := make(chan CausesView, 1)
	go func() { viewed <- env.logic.Causes() }()
	select {
	case view := <-viewed:
		assert.True(t, view.Causes[0].Donating)
		assert.False(t, view.Causes[1].Donating)
	case <-time.After(2 * time.Second):
		close(gated.gate)
		t.Fatal("causes blocked on a full pool")
	}

	close(gated.gate)
	require.NoError(t, env.wait(t, p).Err)
}

// slowDonorsClient 在 gate 关闭前阻塞项目排行榜的读取
type slowDonorsClient struct {
	*chain.MemoryClient
	entered chan struct{}
	gate    chan struct{}
}

func (s *slowDonorsClient) Call(ctx context.Context, op contract.Operation) ([]interface{}, error) {
	if op.FunctionName == contract.FnGetTopDonors {
		s.entered <- struct{}{}
		<-s.gate
	}
	return s.MemoryClient.Call(ctx, op)
}

func TestTopDonors_ConcurrentFirstLoad(t *testing.T) {
	env := newEnv(t)
	p, err := env.logic.Donate(1, "1")
	require.NoError(t, err)
	require.NoError(t, env.wait(t, p).Err)

	slow := &slowDonorsClient{MemoryClient: env.client, entered: make(chan struct{}, 4), gate: make(chan struct{})}
	env.logic.client = slow

	load := func(out chan<- viewmodel.Leaderboard) {
		board, err := env.logic.TopDonors(context.Background(), 1)
		assert.NoError(t, err)
		out <- board
	}

	first := make(chan viewmodel.Leaderboard, 1)
	go load(first)
	select {
	case <-slow.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first load never reached the client")
	}

	second := make(chan viewmodel.Leaderboard, 1)
	go load(second)
	assert.Never(t, func() bool { return len(second) > 0 }, 100*time.Millisecond, 10*time.Millisecond)

	close(slow.gate)
	for _, ch := range []chan viewmodel.Leaderboard{first, second} {
		select {
		case board := <-ch:
			require.False(t, board.Empty)
			require.Len(t, board.Entries, 1)
		case <-time.After(2 * time.Second):
			t.Fatal("top donors never returned")
		}
	}
}

func TestTopDonors_WaitHonoursContext(t *testing.T) {
	env := newEnv(t)
	slow := &slowDonorsClient{MemoryClient: env.client, entered: make(chan struct{}, 4), gate: make(chan struct{})}
	env.logic.client = slow
	t.Cleanup(func() { close(slow.gate) })

	go func() { _, _ = env.logic.TopDonors(context.Background(), 1) }()
	select {
	case <-slow.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first load never reached the client")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := env.logic.TopDonors(ctx, 1)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
