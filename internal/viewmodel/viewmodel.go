package viewmodel

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rayking12/celo-simple-donation/internal/model"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Amount 金额的原始值与展示值
type Amount struct {
	Wei   *big.Int `json:"wei"`
	Ether string   `json:"ether"`
}

// NewAmount 格式化 wei 金额
func NewAmount(wei *big.Int) Amount {
	if wei == nil {
		wei = new(big.Int)
	}
	return Amount{Wei: wei, Ether: model.FormatEther(wei)}
}

// PercentageFunded 计算筹款进度百分比, goal 为0或空时返回0
//
// 结果不截断，数据异常时可能为负数或超过100。
func PercentageFunded(current, goal *big.Int) float64 {
	if goal == nil || goal.Sign() == 0 {
		return 0
	}
	if current == nil {
		current = new(big.Int)
	}
	pct := decimal.NewFromBigInt(current, 0).Mul(hundred).DivRound(decimal.NewFromBigInt(goal, 0), 4)
	return pct.InexactFloat64()
}

// Withdrawable 计算可提取金额, 不截断负数
func Withdrawable(current, withdrawn *big.Int) *big.Int {
	out := new(big.Int)
	if current != nil {
		out.Set(current)
	}
	if withdrawn != nil {
		out.Sub(out, withdrawn)
	}
	return out
}

// IsOwner 判断连接账户是否为受益人
//
// 按解码后的地址比较，大小写不敏感；非法地址和零地址一律返回 false。
func IsOwner(connected, beneficiary string) bool {
	if !common.IsHexAddress(connected) || !common.IsHexAddress(beneficiary) {
		return false
	}
	return IsOwnerAddress(common.HexToAddress(connected), common.HexToAddress(beneficiary))
}

// IsOwnerAddress 同 IsOwner
func IsOwnerAddress(connected, beneficiary common.Address) bool {
	if connected == (common.Address{}) {
		return false
	}
	return connected == beneficiary
}

// CampaignView 项目卡片展示数据
type CampaignView struct {
	ID               uint64  `json:"id"`
	Name             string  `json:"name"`
	Description      string  `json:"description"`
	ImageURL         string  `json:"imageUrl"`
	Beneficiary      string  `json:"beneficiary"`
	Goal             Amount  `json:"goal"`
	Current          Amount  `json:"current"`
	Withdrawn        Amount  `json:"withdrawn"`
	Withdrawable     Amount  `json:"withdrawable"`
	PercentageFunded float64 `json:"percentageFunded"`
	Progress         float64 `json:"progress"` // 进度条取值, 限定在 [0, 100]
	IsOwner          bool    `json:"isOwner"`
	Closed           bool    `json:"closed"`
	CanDonate        bool    `json:"canDonate"`
	CanWithdraw      bool    `json:"canWithdraw"`
	CanClose         bool    `json:"canClose"`
}

// NewCampaignView 根据项目快照和连接账户生成卡片数据
func NewCampaignView(c model.Campaign, connected common.Address) CampaignView {
	pct := PercentageFunded(c.CurrentAmount, c.GoalAmount)
	withdrawable := Withdrawable(c.CurrentAmount, c.WithdrawnAmount)
	owner := IsOwnerAddress(connected, c.Beneficiary)

	return CampaignView{
		ID:               c.ID,
		Name:             c.Name,
		Description:      c.Description,
		ImageURL:         c.ImageURL,
		Beneficiary:      c.Beneficiary.Hex(),
		Goal:             NewAmount(c.GoalAmount),
		Current:          NewAmount(c.CurrentAmount),
		Withdrawn:        NewAmount(c.WithdrawnAmount),
		Withdrawable:     NewAmount(withdrawable),
		PercentageFunded: pct,
		Progress:         clamp(pct, 0, 100),
		IsOwner:          owner,
		Closed:           c.Closed,
		CanDonate:        !c.Closed,
		CanWithdraw:      owner && withdrawable.Sign() > 0,
		CanClose:         owner && !c.Closed,
	}
}

// NewCampaignViews 批量生成卡片数据, 保持列表顺序
func NewCampaignViews(campaigns []model.Campaign, connected common.Address) []CampaignView {
	views := make([]CampaignView, 0, len(campaigns))
	for _, c := range campaigns {
		views = append(views, NewCampaignView(c, connected))
	}
	return views
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
