package handler

import (
	"github.com/rayking12/celo-simple-donation/internal/logic"
	"github.com/rayking12/celo-simple-donation/internal/notify"
	"github.com/rayking12/celo-simple-donation/internal/operation"
)

// Response 统一响应结构
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// DonateRequest 捐赠请求
type DonateRequest struct {
	Amount string `json:"amount"`
}

// CreateCauseRequest 创建项目请求
type CreateCauseRequest = logic.CreateCauseRequest

// PendingResponse 已提交写操作
type PendingResponse struct {
	ID       string `json:"id"`
	Function string `json:"function"`
	CauseID  uint64 `json:"causeId,omitempty"`
}

// NotificationsResponse 通知列表响应
type NotificationsResponse struct {
	Notifications []notify.Notification `json:"notifications"`
}

// ToPendingResponse 转换已提交写操作
func ToPendingResponse(p *operation.Pending, causeID uint64) PendingResponse {
	return PendingResponse{ID: p.ID, Function: p.Function, CauseID: causeID}
}
