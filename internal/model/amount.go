package model

import (
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// EtherDecimals 原生代币精度
const EtherDecimals = 18

// maxAmountLength uint256 的十进制表示最多78位, 加上小数点
const maxAmountLength = 80

// amountPattern 只接受普通十进制写法，不接受符号和科学计数法
var amountPattern = regexp.MustCompile(`^(\d+(\.\d*)?|\.\d+)$`)

var (
	ErrEmptyAmount   = errors.New("amount is empty")
	ErrInvalidAmount = errors.New("invalid amount")
)

// ParseEther 将十进制金额字符串转换为最小单位(wei)
func ParseEther(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrEmptyAmount
	}

	if len(s) > maxAmountLength || !amountPattern.MatchString(s) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}

	wei := d.Shift(EtherDecimals)
	if !wei.IsInteger() {
		return nil, fmt.Errorf("%w: %q has more than %d decimals", ErrInvalidAmount, s, EtherDecimals)
	}

	return wei.BigInt(), nil
}

// FormatEther 将wei格式化为十进制字符串
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	return decimal.NewFromBigInt(wei, -EtherDecimals).String()
}

// Ether 返回 n 个完整代币对应的wei，主要用于测试和本地链
func Ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(EtherDecimals), nil))
}
