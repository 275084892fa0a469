package router

import (
	"fmt"
	"strings"

	"github.com/coupon-next/internal/cache"
	"github.com/coupon-next/internal/config"
	"github.com/coupon-next/internal/constants"
	adminhandlers "github.com/coupon-next/internal/http/handlers/admin"
	publichandlers "github.com/coupon-next/internal/http/handlers/public"
	"github.com/coupon-next/internal/logger"
	"github.com/coupon-next/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	// 初始化 Handler（按前台/后台分组）
	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = constants.RedisPrefixDefault
	}
	redisClient := cache.Client()
	redeemRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:redeem", redisPrefix),
		WindowSeconds: cfg.Security.RedeemRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.RedeemRateLimit.MaxAttempts,
		BlockSeconds:  cfg.Security.RedeemRateLimit.BlockSeconds,
		Message:       "兑换尝试过于频繁",
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	// API 路由组
	apiV1 := r.Group("/api/v1")
	{
		// 公开接口
		coupons := apiV1.Group("/coupons")
		{
			coupons.POST("/redeem", RateLimitMiddleware(redisClient, redeemRule, KeyByIPAndJSONField("code")), publicHandler.RedeemCoupon)
			coupons.GET("/:code", publicHandler.GetCoupon)
		}

		// 管理员接口
		admin := apiV1.Group("/admin")
		{
			// 优惠码管理
			admin.POST("/coupons/generate", adminHandler.GenerateCoupons)
			admin.POST("/coupons", adminHandler.CreateCoupon)
			admin.GET("/coupons", adminHandler.GetAdminCoupons)
			admin.GET("/coupons/export", adminHandler.ExportCoupons)
			admin.GET("/coupons/:id", adminHandler.GetAdminCoupon)
			admin.PUT("/coupons/:id", adminHandler.UpdateCoupon)
			admin.DELETE("/coupons/:id", adminHandler.DeleteCoupon)
			admin.GET("/coupons/:id/redemptions", adminHandler.GetCouponRedemptions)

			// 发放活动管理
			admin.POST("/campaigns", adminHandler.CreateCampaign)
			admin.GET("/campaigns", adminHandler.GetCampaigns)
			admin.GET("/campaigns/:id", adminHandler.GetCampaign)
			admin.PUT("/campaigns/:id", adminHandler.UpdateCampaign)
			admin.DELETE("/campaigns/:id", adminHandler.DeleteCampaign)
			admin.GET("/campaigns/:id/stats", adminHandler.GetCampaignStats)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
