package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rayking12/celo-simple-donation/internal/chain"
	"github.com/rayking12/celo-simple-donation/internal/logger"
	"github.com/rayking12/celo-simple-donation/internal/logic"
	"github.com/rayking12/celo-simple-donation/internal/notify"
)

// SuccessResponse 成功响应
func SuccessResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// ErrorResponse 错误响应
func ErrorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, Response{
		Success: false,
		Message: message,
		Data:    nil,
	})
}

// LogicErrorResponse 将业务错误映射为HTTP状态码
func LogicErrorResponse(c *gin.Context, err error) {
	switch {
	case errors.Is(err, logic.ErrInvalidAmount), errors.Is(err, logic.ErrMissingField):
		ErrorResponse(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, logic.ErrCampaignNotFound):
		ErrorResponse(c, http.StatusNotFound, err.Error())
	case errors.Is(err, logic.ErrNotOwner):
		ErrorResponse(c, http.StatusForbidden, err.Error())
	case errors.Is(err, chain.ErrConnectorNotFound):
		ErrorResponse(c, http.StatusUnauthorized, notify.ConnectorMessage)
	case errors.Is(err, logic.ErrCampaignClosed),
		errors.Is(err, logic.ErrNothingToWithdraw),
		errors.Is(err, logic.ErrActionInFlight):
		ErrorResponse(c, http.StatusConflict, err.Error())
	default:
		logger.Error("Request %s %s failed: %v", c.Request.Method, c.FullPath(), err)
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
	}
}
