package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Campaign 链上捐赠项目快照
//
// ID 为列表中的序号(从1开始)，与合约中的索引一致。
// 合约保证 0 <= WithdrawnAmount <= CurrentAmount <= GoalAmount，客户端不做校验。
type Campaign struct {
	ID              uint64         `json:"id"`
	Name            string         `json:"name"`
	Description     string         `json:"description"`
	ImageURL        string         `json:"imageUrl"`
	Beneficiary     common.Address `json:"beneficiary"`
	GoalAmount      *big.Int       `json:"goalAmount"`
	CurrentAmount   *big.Int       `json:"currentAmount"`
	WithdrawnAmount *big.Int       `json:"withdrawnAmount"`
	Closed          bool           `json:"closed"`
}

// DonorRecord 捐赠者累计捐赠记录
type DonorRecord struct {
	Donor  common.Address `json:"donor"`
	Amount *big.Int       `json:"amount"`
}

// FindCampaign 按ID查找项目
func FindCampaign(campaigns []Campaign, id uint64) (Campaign, bool) {
	for _, c := range campaigns {
		if c.ID == id {
			return c, true
		}
	}
	return Campaign{}, false
}
