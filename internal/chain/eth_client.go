package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rayking12/celo-simple-donation/internal/config"
	"github.com/rayking12/celo-simple-donation/internal/contract"
	"github.com/rayking12/celo-simple-donation/internal/logger"
)

// EthClient 基于 JSON-RPC 的链客户端
type EthClient struct {
	mu        sync.RWMutex
	client    *ethclient.Client
	contracts map[common.Address]*bind.BoundContract // 合约绑定缓存
	key       *ecdsa.PrivateKey
	account   common.Address
	chainID   *big.Int
}

// Dial 连接RPC节点, 连接失败时按配置重试
func Dial(ctx context.Context, cfg config.ChainConfig) (*EthClient, error) {
	if cfg.RpcUrl == "" {
		return nil, fmt.Errorf("no RPC URL configured")
	}

	key, err := parseKey(cfg.PrivateKey)
	if err != nil {
		return nil, err
	}

	attempts := cfg.DialAttempts
	if attempts <= 0 {
		attempts = 1
	}

	logger.Info("Creating %s client connection (RPC: %s)", cfg.ChainType, cfg.RpcUrl)
	client, err := retry.DoWithData(
		func() (*ethclient.Client, error) {
			cl, err := ethclient.DialContext(ctx, cfg.RpcUrl)
			if err != nil {
				return nil, err
			}
			// 测试连接
			if _, err := cl.BlockNumber(ctx); err != nil {
				cl.Close()
				return nil, fmt.Errorf("failed to get block number: %w", err)
			}
			return cl, nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(attempts)),
		retry.Delay(time.Second),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn("Dial %s attempt %d failed: %v", cfg.RpcUrl, n+1, err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("client connection test failed (%s): %w", cfg.ChainType, err)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to get chain id: %w", err)
	}
	if cfg.ChainId != 0 && chainID.Int64() != cfg.ChainId {
		client.Close()
		return nil, fmt.Errorf("chain id mismatch: configured %d, node reports %s", cfg.ChainId, chainID)
	}

	c := &EthClient{
		client:    client,
		contracts: make(map[common.Address]*bind.BoundContract),
		key:       key,
		chainID:   chainID,
	}
	if key != nil {
		c.account = crypto.PubkeyToAddress(key.PublicKey)
		logger.Info("Signing account: %s", c.account.Hex())
	} else {
		logger.Warn("No private key configured, client is read-only")
	}

	logger.Info("Successfully created %s client (chain id %s)", cfg.ChainType, chainID)
	return c, nil
}

// bound 获取或创建合约绑定
func (c *EthClient) bound(op contract.Operation) (*bind.BoundContract, error) {
	if op.ABI == nil {
		return nil, fmt.Errorf("operation %s has no ABI", op.FunctionName)
	}

	c.mu.RLock()
	bc, ok := c.contracts[op.Address]
	c.mu.RUnlock()
	if ok {
		return bc, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if bc, ok = c.contracts[op.Address]; !ok {
		bc = bind.NewBoundContract(op.Address, *op.ABI, c.client, c.client, c.client)
		c.contracts[op.Address] = bc
	}
	return bc, nil
}

// Call 执行只读调用
func (c *EthClient) Call(ctx context.Context, op contract.Operation) ([]interface{}, error) {
	bc, err := c.bound(op)
	if err != nil {
		return nil, err
	}

	opts := &bind.CallOpts{Context: ctx}
	if c.key != nil {
		opts.From = c.account
	}

	var out []interface{}
	if err := bc.Call(opts, &out, op.FunctionName, op.Args...); err != nil {
		return nil, err
	}
	return out, nil
}

// Transact 签名并提交交易，等待回执
func (c *EthClient) Transact(ctx context.Context, op contract.Operation, value *big.Int) (*Receipt, error) {
	if c.key == nil {
		return nil, ErrConnectorNotFound
	}

	bc, err := c.bound(op)
	if err != nil {
		return nil, err
	}

	auth, err := bind.NewKeyedTransactorWithChainID(c.key, c.chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}
	auth.Context = ctx
	auth.Value = value

	tx, err := bc.Transact(auth, op.FunctionName, op.Args...)
	if err != nil {
		return nil, err
	}
	logger.Info("Submitted %s tx %s", op.FunctionName, tx.Hash().Hex())

	receipt, err := bind.WaitMined(ctx, c.client, tx)
	if err != nil {
		return nil, fmt.Errorf("tx %s failed to confirm: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return nil, fmt.Errorf("%w: %s tx %s", ErrTxReverted, op.FunctionName, tx.Hash().Hex())
	}

	return &Receipt{
		TxHash:      receipt.TxHash,
		BlockNumber: receipt.BlockNumber.Uint64(),
		GasUsed:     receipt.GasUsed,
	}, nil
}

// Account 获取账户地址
func (c *EthClient) Account() (common.Address, error) {
	if c.key == nil {
		return common.Address{}, ErrConnectorNotFound
	}
	return c.account, nil
}

// Balance 获取账户余额
func (c *EthClient) Balance(ctx context.Context, account common.Address) (*big.Int, error) {
	return c.client.BalanceAt(ctx, account, nil)
}

// BlockNumber 获取最新区块号
func (c *EthClient) BlockNumber(ctx context.Context) (uint64, error) {
	return c.client.BlockNumber(ctx)
}

// Close 关闭连接
func (c *EthClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		c.client.Close()
	}
	logger.Info("Chain client closed")
}

// parseKey 解析私钥，为空时返回 nil
func parseKey(hexKey string) (*ecdsa.PrivateKey, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return nil, nil
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return key, nil
}

func accountFromKey(hexKey string) (common.Address, error) {
	key, err := parseKey(hexKey)
	if err != nil || key == nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(key.PublicKey), nil
}
