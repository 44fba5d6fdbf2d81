package router

import (
	"github.com/gin-gonic/gin"
	"github.com/rayking12/celo-simple-donation/internal/handler"
	"github.com/rayking12/celo-simple-donation/internal/metrics"
)

// Handlers 路由依赖的处理器
type Handlers struct {
	Cause   *handler.CauseHandler
	Account *handler.AccountHandler
}

func Setup(h Handlers) *gin.Engine {
	r := gin.New()

	// 中间件
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())
	r.Use(metrics.Middleware())

	// 健康检查
	r.GET("/health", h.Account.Health)
	r.GET("/metrics", metrics.Handler())

	// API版本组
	v1 := r.Group("/api/v1")
	{
		v1.GET("/account", h.Account.GetAccount)
		v1.GET("/notifications", h.Account.GetNotifications)
		v1.POST("/refresh", h.Cause.Refresh)
		v1.GET("/donors/top", h.Cause.GetOverallTopDonors)

		// 项目相关路由
		causes := v1.Group("/causes")
		{
			causes.GET("", h.Cause.GetCauses)
			causes.POST("", h.Cause.CreateCause)
			causes.POST("/:id/donate", h.Cause.Donate)
			causes.POST("/:id/withdraw", h.Cause.Withdraw)
			causes.POST("/:id/close", h.Cause.Close)
			causes.GET("/:id/donors", h.Cause.GetTopDonors)
		}
	}

	return r
}

// CORS中间件
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
