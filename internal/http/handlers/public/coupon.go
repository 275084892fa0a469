package public

import (
	"fmt"
	"time"

	"github.com/coupon-next/internal/cache"
	handlershared "github.com/coupon-next/internal/http/handlers/shared"
	"github.com/coupon-next/internal/http/response"
	"github.com/coupon-next/internal/service"

	"github.com/gin-gonic/gin"
)

const couponStatusCacheTTL = 10 * time.Second

// RedeemCouponRequest 兑换请求
type RedeemCouponRequest struct {
	Code       string `json:"code" binding:"required"`
	UserID     *uint  `json:"user_id"`
	SourceType string `json:"source_type"`
	SourceID   string `json:"source_id"`
}

// RedeemCouponResponse 兑换结果
type RedeemCouponResponse struct {
	Code       string `json:"code"`
	Value      int64  `json:"value"`
	Type       string `json:"type"`
	Action     string `json:"action"`
	UserID     *uint  `json:"user_id"`
	RedeemedAt string `json:"redeemed_at"`
}

// RedeemCoupon 兑换优惠码
func (h *Handler) RedeemCoupon(c *gin.Context) {
	var req RedeemCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数无效", err)
		return
	}

	result, err := h.CouponRedeemService.Redeem(service.RedeemInput{
		Code:       req.Code,
		UserID:     req.UserID,
		SourceType: req.SourceType,
		SourceID:   req.SourceID,
	})
	if err != nil {
		respondCouponRedeemError(c, err)
		return
	}

	// 兑换改变了状态，清理查询缓存
	if cacheErr := cache.Del(c.Request.Context(), couponStatusCacheKey(result.Coupon.Code)); cacheErr != nil {
		handlershared.RequestLog(c).Warnw("coupon_status_cache_del_failed", "code", result.Coupon.Code, "error", cacheErr)
	}

	redeemedAt := ""
	if result.Redemption.RedeemedAt != nil {
		redeemedAt = result.Redemption.RedeemedAt.Format(time.RFC3339)
	}
	response.Success(c, RedeemCouponResponse{
		Code:       result.Coupon.Code,
		Value:      result.Coupon.Value,
		Type:       result.Coupon.Type,
		Action:     result.Coupon.Action,
		UserID:     result.Redemption.UserID,
		RedeemedAt: redeemedAt,
	})
}

// GetCoupon 查询优惠码状态
func (h *Handler) GetCoupon(c *gin.Context) {
	code := c.Param("code")

	var cached service.CouponStatus
	hit, err := cache.GetJSON(c.Request.Context(), couponStatusCacheKey(code), &cached)
	if err != nil {
		handlershared.RequestLog(c).Warnw("coupon_status_cache_get_failed", "code", code, "error", err)
	}
	if hit {
		response.Success(c, cached)
		return
	}

	status, err := h.CouponRedeemService.CheckCoupon(code)
	if err != nil {
		respondCouponCheckError(c, err)
		return
	}

	if cacheErr := cache.SetJSON(c.Request.Context(), couponStatusCacheKey(code), status, couponStatusCacheTTL); cacheErr != nil {
		handlershared.RequestLog(c).Warnw("coupon_status_cache_set_failed", "code", code, "error", cacheErr)
	}
	response.Success(c, status)
}

func couponStatusCacheKey(code string) string {
	return fmt.Sprintf("coupon:status:%s", code)
}
