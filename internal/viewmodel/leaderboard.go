package viewmodel

import (
	"math/big"
	"sort"

	"github.com/rayking12/celo-simple-donation/internal/model"
)

// 排行榜为空时的提示
const (
	NoCurrentDonor  = "No current donor"
	NoCurrentLeader = "No current leader"
)

// LeaderboardEntry 排行榜中的一行
type LeaderboardEntry struct {
	Rank   int    `json:"rank"`
	Donor  string `json:"donor"`
	Amount Amount `json:"amount"`
}

// Leaderboard 捐赠排行榜
type Leaderboard struct {
	Entries     []LeaderboardEntry `json:"entries"`
	Empty       bool               `json:"empty"`
	Placeholder string             `json:"placeholder,omitempty"`
}

// NewLeaderboard 按金额降序生成排行榜，金额相同时保持原顺序
func NewLeaderboard(records []model.DonorRecord, placeholder string) Leaderboard {
	if len(records) == 0 {
		return Leaderboard{Entries: []LeaderboardEntry{}, Empty: true, Placeholder: placeholder}
	}

	sorted := make([]model.DonorRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return amountOf(sorted[i]).Cmp(amountOf(sorted[j])) > 0
	})

	entries := make([]LeaderboardEntry, 0, len(sorted))
	for i, r := range sorted {
		entries = append(entries, LeaderboardEntry{
			Rank:   i + 1,
			Donor:  r.Donor.Hex(),
			Amount: NewAmount(amountOf(r)),
		})
	}
	return Leaderboard{Entries: entries}
}

func amountOf(r model.DonorRecord) *big.Int {
	if r.Amount == nil {
		return new(big.Int)
	}
	return r.Amount
}
