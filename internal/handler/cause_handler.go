package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rayking12/celo-simple-donation/internal/logic"
)

// CauseHandler 捐赠项目处理器
type CauseHandler struct {
	donationLogic *logic.DonationLogic
}

// NewCauseHandler 创建捐赠项目处理器
func NewCauseHandler(donationLogic *logic.DonationLogic) *CauseHandler {
	return &CauseHandler{donationLogic: donationLogic}
}

// GetCauses 获取项目列表
func (h *CauseHandler) GetCauses(c *gin.Context) {
	SuccessResponse(c, http.StatusOK, "获取项目列表成功", h.donationLogic.Causes())
}

// CreateCause 创建项目, 受益人为当前账户
func (h *CauseHandler) CreateCause(c *gin.Context) {
	var req CreateCauseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	pending, err := h.donationLogic.CreateCause(req)
	if err != nil {
		LogicErrorResponse(c, err)
		return
	}

	SuccessResponse(c, http.StatusAccepted, "创建项目交易已提交", ToPendingResponse(pending, 0))
}

// Donate 捐赠
func (h *CauseHandler) Donate(c *gin.Context) {
	id, ok := causeID(c)
	if !ok {
		return
	}

	var req DonateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	pending, err := h.donationLogic.Donate(id, req.Amount)
	if err != nil {
		LogicErrorResponse(c, err)
		return
	}

	SuccessResponse(c, http.StatusAccepted, "捐赠交易已提交", ToPendingResponse(pending, id))
}

// Withdraw 提取可提取金额
func (h *CauseHandler) Withdraw(c *gin.Context) {
	id, ok := causeID(c)
	if !ok {
		return
	}

	pending, err := h.donationLogic.Withdraw(id)
	if err != nil {
		LogicErrorResponse(c, err)
		return
	}

	SuccessResponse(c, http.StatusAccepted, "提取交易已提交", ToPendingResponse(pending, id))
}

// Close 关闭项目
func (h *CauseHandler) Close(c *gin.Context) {
	id, ok := causeID(c)
	if !ok {
		return
	}

	pending, err := h.donationLogic.CloseCause(id)
	if err != nil {
		LogicErrorResponse(c, err)
		return
	}

	SuccessResponse(c, http.StatusAccepted, "关闭项目交易已提交", ToPendingResponse(pending, id))
}

// GetTopDonors 获取项目捐赠排行榜
func (h *CauseHandler) GetTopDonors(c *gin.Context) {
	id, ok := causeID(c)
	if !ok {
		return
	}

	board, err := h.donationLogic.TopDonors(c.Request.Context(), id)
	if err != nil {
		LogicErrorResponse(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "获取捐赠排行榜成功", board)
}

// GetOverallTopDonors 获取总捐赠排行榜
func (h *CauseHandler) GetOverallTopDonors(c *gin.Context) {
	SuccessResponse(c, http.StatusOK, "获取总排行榜成功", h.donationLogic.OverallTopDonors())
}

// Refresh 手动刷新链上数据
func (h *CauseHandler) Refresh(c *gin.Context) {
	h.donationLogic.Refresh()
	SuccessResponse(c, http.StatusAccepted, "刷新已触发", nil)
}

// causeID 解析从1开始的项目ID
func causeID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		ErrorResponse(c, http.StatusBadRequest, "无效的项目ID")
		return 0, false
	}
	return id, true
}
