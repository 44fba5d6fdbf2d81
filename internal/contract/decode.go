package contract

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rayking12/celo-simple-donation/internal/model"
)

// CauseTuple 与合约 Cause 结构一一对应，字段顺序不可调整
type CauseTuple struct {
	Name            string
	Beneficiary     common.Address
	Description     string
	GoalAmount      *big.Int
	CurrentAmount   *big.Int
	WithdrawnAmount *big.Int
	ImageUrl        string
	Closed          bool
}

// DonorTuple 与合约 Donor 结构一一对应
type DonorTuple struct {
	Donor  common.Address
	Amount *big.Int
}

// DecodeCauses 解析 getAllCauses 的返回值，ID 按列表顺序从1开始
func DecodeCauses(out []interface{}) ([]model.Campaign, error) {
	var tuples []CauseTuple
	if err := convert(out, &tuples); err != nil {
		return nil, fmt.Errorf("decode %s: %w", FnGetAllCauses, err)
	}

	campaigns := make([]model.Campaign, 0, len(tuples))
	for i, t := range tuples {
		campaigns = append(campaigns, model.Campaign{
			ID:              uint64(i + 1),
			Name:            t.Name,
			Description:     t.Description,
			ImageURL:        t.ImageUrl,
			Beneficiary:     t.Beneficiary,
			GoalAmount:      orZero(t.GoalAmount),
			CurrentAmount:   orZero(t.CurrentAmount),
			WithdrawnAmount: orZero(t.WithdrawnAmount),
			Closed:          t.Closed,
		})
	}
	return campaigns, nil
}

// DecodeDonors 解析 getTopDonors / getOverallTopDonors 的返回值
func DecodeDonors(out []interface{}) ([]model.DonorRecord, error) {
	var tuples []DonorTuple
	if err := convert(out, &tuples); err != nil {
		return nil, fmt.Errorf("decode donors: %w", err)
	}

	records := make([]model.DonorRecord, 0, len(tuples))
	for _, t := range tuples {
		records = append(records, model.DonorRecord{Donor: t.Donor, Amount: orZero(t.Amount)})
	}
	return records, nil
}

// convert 将ABI解码得到的匿名结构体转换为具名结构体
func convert[T any](out []interface{}, dst *T) (err error) {
	if len(out) == 0 || out[0] == nil {
		return nil
	}

	// abi.ConvertType 在类型不匹配时会 panic
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unexpected output type %T: %v", out[0], r)
		}
	}()

	*dst = *abi.ConvertType(out[0], new(T)).(*T)
	return nil
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
