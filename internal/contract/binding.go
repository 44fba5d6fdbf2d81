package contract

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rayking12/celo-simple-donation/internal/config"
	"github.com/rayking12/celo-simple-donation/internal/logger"
)

//go:embed abi/donation.abi.json
var donationABI []byte

// Binding 合约地址与接口定义，启动时加载一次后不再修改
type Binding struct {
	address common.Address
	abi     abi.ABI
}

// NewBinding 使用已解析的ABI创建绑定
func NewBinding(address common.Address, parsed abi.ABI) *Binding {
	return &Binding{address: address, abi: parsed}
}

// LoadBinding 按配置加载合约绑定
//
// abi_path 为空时使用内置的捐赠合约ABI。
func LoadBinding(cfg config.ContractConfig) (*Binding, error) {
	if !common.IsHexAddress(cfg.Address) {
		return nil, fmt.Errorf("invalid contract address %q", cfg.Address)
	}

	abiData := donationABI
	if cfg.ABIPath != "" {
		data, err := os.ReadFile(cfg.ABIPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load ABI from %s: %w", cfg.ABIPath, err)
		}
		abiData = data
	}

	parsed, err := ParseABI(abiData)
	if err != nil {
		return nil, err
	}

	for _, fn := range Functions {
		if _, ok := parsed.Methods[fn]; !ok {
			return nil, fmt.Errorf("ABI does not define function %s", fn)
		}
	}

	address := common.HexToAddress(cfg.Address)
	logger.Info("Loaded donation contract binding at %s (%d methods)", address.Hex(), len(parsed.Methods))

	return NewBinding(address, parsed), nil
}

// DefaultABI 返回内置的捐赠合约ABI
func DefaultABI() abi.ABI {
	parsed, err := ParseABI(donationABI)
	if err != nil {
		panic(fmt.Sprintf("embedded donation ABI is invalid: %v", err))
	}
	return parsed
}

// ParseABI 解析ABI，支持纯ABI数组和完整编译输出两种格式
func ParseABI(data []byte) (abi.ABI, error) {
	var compiledOutput struct {
		ABI json.RawMessage `json:"abi"`
	}

	if err := json.Unmarshal(data, &compiledOutput); err == nil && compiledOutput.ABI != nil {
		parsed, err := abi.JSON(bytes.NewReader(compiledOutput.ABI))
		if err != nil {
			return abi.ABI{}, fmt.Errorf("failed to parse ABI from compiled output: %w", err)
		}
		return parsed, nil
	}

	parsed, err := abi.JSON(bytes.NewReader(data))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to parse ABI: %w", err)
	}
	return parsed, nil
}

// Address 获取合约地址
func (b *Binding) Address() common.Address {
	return b.address
}

// ABI 获取合约ABI
func (b *Binding) ABI() *abi.ABI {
	return &b.abi
}
