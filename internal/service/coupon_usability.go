package service

import (
	"github.com/coupon-next/internal/models"

	"gorm.io/gorm"
)

// UsabilityHook 兑换前校验钩子。
//
// 在兑换事务内、名额落库前执行，返回非空错误时整个兑换回滚。
// 调用方可借助 tx 在同一事务内读写自己的业务表。
type UsabilityHook func(tx *gorm.DB, coupon *models.Coupon, userID *uint) error

// PostRedeemHook 兑换后处理钩子。
//
// 在兑换事务内、名额落库后执行，返回非空错误时整个兑换回滚。
type PostRedeemHook func(tx *gorm.DB, coupon *models.Coupon, redemption *models.Redemption) error
