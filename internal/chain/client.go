package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rayking12/celo-simple-donation/internal/config"
	"github.com/rayking12/celo-simple-donation/internal/contract"
	"github.com/rayking12/celo-simple-donation/internal/logger"
)

var (
	// ErrConnectorNotFound 没有可用的签名账户
	ErrConnectorNotFound = errors.New("connector not found: no signing account configured")
	// ErrTxReverted 交易被链上拒绝
	ErrTxReverted = errors.New("transaction reverted")
)

// Receipt 已上链交易的回执
type Receipt struct {
	TxHash      common.Hash `json:"txHash"`
	BlockNumber uint64      `json:"blockNumber"`
	GasUsed     uint64      `json:"gasUsed"`
}

// Client 链客户端，负责调用、签名、提交和等待确认
type Client interface {
	// Call 执行只读调用，返回ABI解码后的结果
	Call(ctx context.Context, op contract.Operation) ([]interface{}, error)
	// Transact 提交交易并阻塞到交易被确认或拒绝
	Transact(ctx context.Context, op contract.Operation, value *big.Int) (*Receipt, error)
	// Account 当前连接的账户
	Account() (common.Address, error)
	Balance(ctx context.Context, account common.Address) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	Close()
}

// supportedTypes 通过 JSON-RPC 连接的 EVM 链类型
var supportedTypes = []string{"celo", "ethereum", "polygon", "bsc", "arbitrum", "optimism"}

// ChainTypeMemory 进程内模拟合约
const ChainTypeMemory = "memory"

// New 按链类型创建客户端
func New(ctx context.Context, cfg config.ChainConfig) (Client, error) {
	logger.Info("Initializing chain client (type: %s, id: %d)", cfg.ChainType, cfg.ChainId)

	if cfg.ChainType == ChainTypeMemory {
		account, err := accountFromKey(cfg.PrivateKey)
		if err != nil {
			return nil, err
		}
		if account == (common.Address{}) {
			account = DevAccount
		}
		return NewMemoryClient(account), nil
	}

	isSupported := false
	for _, supportedType := range supportedTypes {
		if cfg.ChainType == supportedType {
			isSupported = true
			break
		}
	}
	if !isSupported {
		return nil, fmt.Errorf("unsupported chain type %s, supported types: %v, %s", cfg.ChainType, supportedTypes, ChainTypeMemory)
	}

	return Dial(ctx, cfg)
}

// Health 获取链健康状态
func Health(ctx context.Context, client Client, cfg config.ChainConfig) map[string]interface{} {
	health := map[string]interface{}{
		"chain_type":    cfg.ChainType,
		"chain_id":      cfg.ChainId,
		"client_status": "connected",
		"contract":      cfg.Contract.Address,
	}

	block, err := client.BlockNumber(ctx)
	if err != nil {
		health["client_status"] = "disconnected"
		health["error"] = err.Error()
	} else {
		health["block_number"] = block
	}

	if account, err := client.Account(); err == nil {
		health["account"] = account.Hex()
	}

	return health
}
