package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rayking12/celo-simple-donation/internal/chain"
	"github.com/rayking12/celo-simple-donation/internal/config"
	"github.com/rayking12/celo-simple-donation/internal/logic"
	"github.com/rayking12/celo-simple-donation/internal/notify"
)

// AccountHandler 账户与系统状态处理器
type AccountHandler struct {
	donationLogic *logic.DonationLogic
	recorder      *notify.Recorder
	client        chain.Client
	chainCfg      config.ChainConfig
}

// NewAccountHandler 创建账户处理器
func NewAccountHandler(donationLogic *logic.DonationLogic, recorder *notify.Recorder, client chain.Client, chainCfg config.ChainConfig) *AccountHandler {
	return &AccountHandler{
		donationLogic: donationLogic,
		recorder:      recorder,
		client:        client,
		chainCfg:      chainCfg,
	}
}

// GetAccount 获取当前账户及余额
func (h *AccountHandler) GetAccount(c *gin.Context) {
	account, err := h.donationLogic.Account(c.Request.Context())
	if err != nil {
		LogicErrorResponse(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "获取账户信息成功", account)
}

// GetNotifications 获取最近的通知, active=true 时只返回仍在展示期内的
func (h *AccountHandler) GetNotifications(c *gin.Context) {
	var notifications []notify.Notification
	if c.Query("active") == "true" {
		notifications = h.recorder.Active(time.Now())
	} else {
		notifications = h.recorder.Recent()
	}

	SuccessResponse(c, http.StatusOK, "获取通知成功", NotificationsResponse{Notifications: notifications})
}

// Health 健康检查
func (h *AccountHandler) Health(c *gin.Context) {
	health := chain.Health(c.Request.Context(), h.client, h.chainCfg)
	health["service"] = "donation-service"

	status := http.StatusOK
	if health["client_status"] != "connected" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, health)
}
