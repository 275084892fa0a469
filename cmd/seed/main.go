package main

import (
	"fmt"
	"time"

	"github.com/coupon-next/internal/config"
	"github.com/coupon-next/internal/constants"
	"github.com/coupon-next/internal/logger"
	"github.com/coupon-next/internal/models"
)

func main() {
	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	// 添加发放活动
	campaigns := []models.Campaign{
		{Name: "春季大促", Description: "春季全场满减活动"},
		{Name: "新用户礼包", Description: "注册新用户专属优惠"},
		{Name: "老客回馈", Description: "老客户节日回馈"},
	}

	for _, camp := range campaigns {
		var existing models.Campaign
		if err := models.DB.Where("name = ?", camp.Name).First(&existing).Error; err != nil {
			if err := models.DB.Create(&camp).Error; err != nil {
				stdLog.Printf("Failed to create campaign %s: %v", camp.Name, err)
			} else {
				stdLog.Printf("Created campaign: %s", camp.Name)
			}
		} else {
			stdLog.Printf("Campaign already exists: %s", camp.Name)
		}
	}

	// 获取活动ID
	campaignIDs := map[string]uint{}
	var campaignList []models.Campaign
	if err := models.DB.Where("name IN ?", []string{"春季大促", "新用户礼包", "老客回馈"}).Find(&campaignList).Error; err != nil {
		stdLog.Printf("Failed to load campaigns: %v", err)
	}
	for _, camp := range campaignList {
		campaignIDs[camp.Name] = camp.ID
	}
	springID := campaignIDs["春季大促"]
	newUserID := campaignIDs["新用户礼包"]
	loyaltyID := campaignIDs["老客回馈"]

	now := time.Now()
	springStart := now.Add(-24 * time.Hour)
	springEnd := now.AddDate(0, 2, 0)
	loyaltyEnd := now.AddDate(0, 1, 0)
	expiredEnd := now.Add(-48 * time.Hour)

	// 添加演示优惠码
	coupons := []models.Coupon{
		{
			Code:       "SPRING-2026-DEMO",
			Value:      2000,
			Type:       constants.CouponTypeMonetary,
			Action:     constants.CouponActionDiscount,
			UserLimit:  0,
			ValidFrom:  &springStart,
			ValidUntil: &springEnd,
			CampaignID: uintPtrOrNil(springID),
		},
		{
			Code:       "WELCOME-10PCT",
			Value:      10,
			Type:       constants.CouponTypePercentage,
			Action:     constants.CouponActionDiscount,
			UserLimit:  1,
			CampaignID: uintPtrOrNil(newUserID),
		},
		{
			Code:       "LOYAL-500PT",
			Value:      500,
			Type:       constants.CouponTypeVirtualCurrency,
			Action:     constants.CouponActionDiscount,
			UserLimit:  3,
			ValidUntil: &loyaltyEnd,
			CampaignID: uintPtrOrNil(loyaltyID),
		},
		{
			Code:       "EXPIRED-DEMO",
			Value:      1000,
			Type:       constants.CouponTypeMonetary,
			Action:     constants.CouponActionDiscount,
			UserLimit:  1,
			ValidUntil: &expiredEnd,
		},
	}

	for _, coupon := range coupons {
		if coupon.CampaignID != nil && *coupon.CampaignID == 0 {
			coupon.CampaignID = nil
		}
		var existing models.Coupon
		if err := models.DB.Where("code = ?", coupon.Code).First(&existing).Error; err != nil {
			if err := models.DB.Create(&coupon).Error; err != nil {
				stdLog.Printf("Failed to create coupon %s: %v", coupon.Code, err)
			} else {
				stdLog.Printf("Created coupon: %s", coupon.Code)
			}
		} else {
			existing.Value = coupon.Value
			existing.Type = coupon.Type
			existing.Action = coupon.Action
			existing.UserLimit = coupon.UserLimit
			existing.ValidFrom = coupon.ValidFrom
			existing.ValidUntil = coupon.ValidUntil
			existing.CampaignID = coupon.CampaignID
			if err := models.DB.Save(&existing).Error; err != nil {
				stdLog.Printf("Failed to update coupon %s: %v", coupon.Code, err)
			} else {
				stdLog.Printf("Updated coupon: %s", coupon.Code)
			}
		}
	}

	fmt.Println("\n✅ Test data created successfully!")
	fmt.Println("Summary:")
	fmt.Println("- 3 Campaigns")
	fmt.Println("- 4 Coupons (monetary / percentage / virtual currency / expired demo)")
}

func uintPtrOrNil(id uint) *uint {
	if id == 0 {
		return nil
	}
	return &id
}
