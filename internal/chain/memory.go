package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rayking12/celo-simple-donation/internal/contract"
)

// DevAccount 本地模拟链的默认账户
var DevAccount = common.HexToAddress("0x00000000000000000000000000000000000D0AA7")

// devFunds 本地模拟链中默认账户的初始余额
var devFunds = new(big.Int).Mul(big.NewInt(1000), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))

// MemoryClient 进程内实现捐赠合约语义的链客户端
//
// 每笔成功的交易产出一个新区块，失败的交易不改变任何状态。
type MemoryClient struct {
	mu       sync.Mutex
	account  common.Address
	block    uint64
	nonce    uint64
	causes   []contract.CauseTuple
	donors   map[uint64][]contract.DonorTuple // causeId -> 捐赠者，按首次捐赠顺序
	overall  []contract.DonorTuple
	balances map[common.Address]*big.Int
	failNext map[string]error
}

// NewMemoryClient 创建模拟链客户端，account 为零地址时表示未连接钱包
func NewMemoryClient(account common.Address) *MemoryClient {
	m := &MemoryClient{
		account:  account,
		donors:   make(map[uint64][]contract.DonorTuple),
		balances: make(map[common.Address]*big.Int),
		failNext: make(map[string]error),
	}
	if account != (common.Address{}) {
		m.balances[account] = new(big.Int).Set(devFunds)
	}
	return m
}

// SetAccount 切换当前连接的账户
func (m *MemoryClient) SetAccount(account common.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.account = account
}

// Fund 设置账户余额
func (m *MemoryClient) Fund(account common.Address, amount *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[account] = new(big.Int).Set(amount)
}

// AddCause 直接写入一个项目，不产生区块
func (m *MemoryClient) AddCause(cause contract.CauseTuple) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.causes = append(m.causes, copyCause(cause))
	return uint64(len(m.causes))
}

// FailNext 让下一次对 functionName 的调用或交易返回 err
func (m *MemoryClient) FailNext(functionName string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext[functionName] = err
}

func (m *MemoryClient) takeFailure(functionName string) error {
	err, ok := m.failNext[functionName]
	if ok {
		delete(m.failNext, functionName)
	}
	return err
}

// Call 执行只读调用
func (m *MemoryClient) Call(ctx context.Context, op contract.Operation) ([]interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// 与真实客户端一样先按ABI编码，参数不合法时直接报错
	if _, err := op.Pack(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeFailure(op.FunctionName); err != nil {
		return nil, err
	}

	switch op.FunctionName {
	case contract.FnGetAllCauses:
		causes := make([]contract.CauseTuple, 0, len(m.causes))
		for _, c := range m.causes {
			causes = append(causes, copyCause(c))
		}
		return []interface{}{causes}, nil
	case contract.FnGetTopDonors:
		id, err := m.causeID(op.Args, 0)
		if err != nil {
			return nil, err
		}
		return []interface{}{copyDonors(m.donors[id])}, nil
	case contract.FnGetOverallTopDonors:
		return []interface{}{copyDonors(m.overall)}, nil
	default:
		return nil, fmt.Errorf("%s is not a view function", op.FunctionName)
	}
}

// Transact 同步执行交易并出块
func (m *MemoryClient) Transact(ctx context.Context, op contract.Operation, value *big.Int) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := op.Pack(); err != nil {
		return nil, err
	}
	if value == nil {
		value = new(big.Int)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.account == (common.Address{}) {
		return nil, ErrConnectorNotFound
	}
	if err := m.takeFailure(op.FunctionName); err != nil {
		return nil, err
	}
	if value.Sign() > 0 && !op.IsPayable() {
		return nil, revert("function %s is not payable", op.FunctionName)
	}

	var err error
	switch op.FunctionName {
	case contract.FnDonate:
		err = m.donate(op.Args, value)
	case contract.FnRequestDonation:
		err = m.requestDonation(op.Args)
	case contract.FnCloseCause:
		err = m.closeCause(op.Args)
	case contract.FnCreateCause:
		err = m.createCause(op.Args)
	default:
		err = fmt.Errorf("%s is not a state-changing function", op.FunctionName)
	}
	if err != nil {
		return nil, err
	}

	m.block++
	m.nonce++
	return &Receipt{
		TxHash:      crypto.Keccak256Hash(m.account.Bytes(), new(big.Int).SetUint64(m.nonce).Bytes()),
		BlockNumber: m.block,
		GasUsed:     21000,
	}, nil
}

func (m *MemoryClient) donate(args []interface{}, value *big.Int) error {
	id, err := m.causeID(args, 0)
	if err != nil {
		return err
	}
	cause := &m.causes[id-1]
	if cause.Closed {
		return revert("cause is closed")
	}
	if value.Sign() <= 0 {
		return revert("donation must be greater than zero")
	}
	balance := m.balanceOf(m.account)
	if balance.Cmp(value) < 0 {
		return revert("insufficient funds")
	}

	balance.Sub(balance, value)
	cause.CurrentAmount = new(big.Int).Add(cause.CurrentAmount, value)
	m.donors[id] = addDonation(m.donors[id], m.account, value)
	m.overall = addDonation(m.overall, m.account, value)
	return nil
}

func (m *MemoryClient) requestDonation(args []interface{}) error {
	id, err := m.causeID(args, 0)
	if err != nil {
		return err
	}
	amount, ok := args[1].(*big.Int)
	if !ok {
		return revert("invalid amount")
	}

	cause := &m.causes[id-1]
	if cause.Beneficiary != m.account {
		return revert("only the beneficiary can withdraw")
	}
	available := new(big.Int).Sub(cause.CurrentAmount, cause.WithdrawnAmount)
	if amount.Sign() <= 0 || amount.Cmp(available) > 0 {
		return revert("amount exceeds withdrawable balance")
	}

	cause.WithdrawnAmount = new(big.Int).Add(cause.WithdrawnAmount, amount)
	balance := m.balanceOf(m.account)
	balance.Add(balance, amount)
	return nil
}

func (m *MemoryClient) closeCause(args []interface{}) error {
	id, err := m.causeID(args, 0)
	if err != nil {
		return err
	}
	cause := &m.causes[id-1]
	if cause.Beneficiary != m.account {
		return revert("only the beneficiary can close the cause")
	}
	if cause.Closed {
		return revert("cause is already closed")
	}
	cause.Closed = true
	return nil
}

func (m *MemoryClient) createCause(args []interface{}) error {
	// 参数已通过ABI编码校验, 类型可以直接断言
	m.causes = append(m.causes, contract.CauseTuple{
		Name:            args[0].(string),
		Beneficiary:     args[1].(common.Address),
		Description:     args[2].(string),
		GoalAmount:      new(big.Int).Set(args[3].(*big.Int)),
		CurrentAmount:   new(big.Int),
		WithdrawnAmount: new(big.Int),
		ImageUrl:        args[4].(string),
	})
	return nil
}

// causeID 读取并校验从1开始的项目编号
func (m *MemoryClient) causeID(args []interface{}, pos int) (uint64, error) {
	if len(args) <= pos {
		return 0, revert("missing cause id")
	}
	id, ok := args[pos].(*big.Int)
	if !ok || id.Sign() <= 0 || !id.IsUint64() || id.Uint64() > uint64(len(m.causes)) {
		return 0, revert("cause %v does not exist", args[pos])
	}
	return id.Uint64(), nil
}

func (m *MemoryClient) balanceOf(account common.Address) *big.Int {
	balance, ok := m.balances[account]
	if !ok {
		balance = new(big.Int)
		m.balances[account] = balance
	}
	return balance
}

// Account 获取账户地址
func (m *MemoryClient) Account() (common.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.account == (common.Address{}) {
		return common.Address{}, ErrConnectorNotFound
	}
	return m.account, nil
}

// Balance 获取账户余额
func (m *MemoryClient) Balance(ctx context.Context, account common.Address) (*big.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return new(big.Int).Set(m.balanceOf(account)), nil
}

// BlockNumber 获取最新区块号
func (m *MemoryClient) BlockNumber(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure("blockNumber"); err != nil {
		return 0, err
	}
	return m.block, nil
}

// Mine 产出一个空区块
func (m *MemoryClient) Mine() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.block++
	return m.block
}

func (m *MemoryClient) Close() {}

func revert(format string, args ...interface{}) error {
	return fmt.Errorf("%w: execution reverted: %s", ErrTxReverted, fmt.Sprintf(format, args...))
}

// IsReverted 判断错误是否为链上拒绝
func IsReverted(err error) bool {
	return errors.Is(err, ErrTxReverted)
}

func addDonation(donors []contract.DonorTuple, donor common.Address, amount *big.Int) []contract.DonorTuple {
	for i := range donors {
		if donors[i].Donor == donor {
			donors[i].Amount = new(big.Int).Add(donors[i].Amount, amount)
			return donors
		}
	}
	return append(donors, contract.DonorTuple{Donor: donor, Amount: new(big.Int).Set(amount)})
}

func copyCause(c contract.CauseTuple) contract.CauseTuple {
	c.GoalAmount = cloneInt(c.GoalAmount)
	c.CurrentAmount = cloneInt(c.CurrentAmount)
	c.WithdrawnAmount = cloneInt(c.WithdrawnAmount)
	return c
}

func copyDonors(donors []contract.DonorTuple) []contract.DonorTuple {
	out := make([]contract.DonorTuple, 0, len(donors))
	for _, d := range donors {
		out = append(out, contract.DonorTuple{Donor: d.Donor, Amount: cloneInt(d.Amount)})
	}
	return out
}

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
