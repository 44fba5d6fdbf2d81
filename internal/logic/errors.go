package logic

import "errors"

// 提交前校验失败时返回的错误，不会产生任何交易
var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrMissingField      = errors.New("missing required field")
	ErrNothingToWithdraw = errors.New("nothing to withdraw")
	ErrNotOwner          = errors.New("connected account is not the beneficiary")
	ErrCampaignClosed    = errors.New("campaign is closed")
	ErrCampaignNotFound  = errors.New("campaign not found")
	ErrActionInFlight    = errors.New("the same action is already in progress")
)

// 写操作成功提示
const (
	MsgDonated      = "Donation successful"
	MsgWithdrawn    = "Donation withdrawal successful"
	MsgClosed       = "Donation closed successfully"
	MsgCauseCreated = "Cause requested successfully"
)
