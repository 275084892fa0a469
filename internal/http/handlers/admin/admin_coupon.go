package admin

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/coupon-next/internal/http/response"
	"github.com/coupon-next/internal/service"

	"github.com/gin-gonic/gin"
)

// GenerateCouponsRequest 批量生成优惠码请求
type GenerateCouponsRequest struct {
	Quantity   int    `json:"quantity" binding:"required"`
	Value      int64  `json:"value"`
	Type       string `json:"type" binding:"required"`
	Action     string `json:"action"`
	UserLimit  *int   `json:"user_limit"`
	ValidFrom  string `json:"valid_from"`
	ValidUntil string `json:"valid_until"`
	CampaignID *uint  `json:"campaign_id"`
	UserIDs    []uint `json:"user_ids"`
	Prefix     string `json:"prefix"`
}

// CreateCouponRequest 创建单个优惠码请求
type CreateCouponRequest struct {
	Code       string `json:"code"`
	Value      int64  `json:"value"`
	Type       string `json:"type" binding:"required"`
	Action     string `json:"action"`
	UserLimit  *int   `json:"user_limit"`
	ValidFrom  string `json:"valid_from"`
	ValidUntil string `json:"valid_until"`
	CampaignID *uint  `json:"campaign_id"`
	UserIDs    []uint `json:"user_ids"`
	Prefix     string `json:"prefix"`
}

// UpdateCouponRequest 更新优惠码请求（码值不可变更）
type UpdateCouponRequest struct {
	Value           *int64 `json:"value"`
	UserLimit       *int   `json:"user_limit"`
	ValidFrom       string `json:"valid_from"`
	ClearValidFrom  bool   `json:"clear_valid_from"`
	ValidUntil      string `json:"valid_until"`
	ClearValidUntil bool   `json:"clear_valid_until"`
	CampaignID      *uint  `json:"campaign_id"`
	ClearCampaign   bool   `json:"clear_campaign"`
}

// GenerateCoupons 批量生成优惠码
func (h *Handler) GenerateCoupons(c *gin.Context) {
	var req GenerateCouponsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数无效", err)
		return
	}

	validFrom, err := parseTimeNullable(req.ValidFrom)
	if err != nil {
		respondError(c, response.CodeBadRequest, "请求参数无效", err)
		return
	}
	validUntil, err := parseTimeNullable(req.ValidUntil)
	if err != nil {
		respondError(c, response.CodeBadRequest, "请求参数无效", err)
		return
	}

	coupons, err := h.CouponIssueService.GenerateCoupons(service.GenerateCouponsInput{
		Quantity:   req.Quantity,
		Value:      req.Value,
		Type:       req.Type,
		Action:     req.Action,
		UserLimit:  req.UserLimit,
		ValidFrom:  validFrom,
		ValidUntil: validUntil,
		CampaignID: req.CampaignID,
		UserIDs:    req.UserIDs,
		Prefix:     req.Prefix,
	})
	if err != nil {
		respondCouponIssueError(c, err)
		return
	}

	response.Success(c, coupons)
}

// CreateCoupon 创建单个优惠码
func (h *Handler) CreateCoupon(c *gin.Context) {
	var req CreateCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数无效", err)
		return
	}

	validFrom, err := parseTimeNullable(req.ValidFrom)
	if err != nil {
		respondError(c, response.CodeBadRequest, "请求参数无效", err)
		return
	}
	validUntil, err := parseTimeNullable(req.ValidUntil)
	if err != nil {
		respondError(c, response.CodeBadRequest, "请求参数无效", err)
		return
	}

	coupon, err := h.CouponIssueService.CreateCoupon(service.CreateCouponInput{
		Code:       req.Code,
		Value:      req.Value,
		Type:       req.Type,
		Action:     req.Action,
		UserLimit:  req.UserLimit,
		ValidFrom:  validFrom,
		ValidUntil: validUntil,
		CampaignID: req.CampaignID,
		UserIDs:    req.UserIDs,
		Prefix:     req.Prefix,
	})
	if err != nil {
		respondCouponIssueError(c, err)
		return
	}

	response.Success(c, coupon)
}

// GetAdminCoupons 获取优惠码列表
func (h *Handler) GetAdminCoupons(c *gin.Context) {
	input, ok := parseCouponListInput(c)
	if !ok {
		return
	}

	coupons, total, err := h.CouponAdminService.ListCoupons(input)
	if err != nil {
		respondError(c, response.CodeInternal, service.ErrCouponFetchFailed.Error(), err)
		return
	}

	pagination := response.Pagination{
		Page:      input.Page,
		PageSize:  input.PageSize,
		Total:     total,
		TotalPage: (total + int64(input.PageSize) - 1) / int64(input.PageSize),
	}
	response.SuccessWithPage(c, coupons, pagination)
}

// GetAdminCoupon 获取优惠码详情
func (h *Handler) GetAdminCoupon(c *gin.Context) {
	couponID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || couponID == 0 {
		respondError(c, response.CodeBadRequest, "请求参数无效", err)
		return
	}

	detail, err := h.CouponAdminService.GetCoupon(uint(couponID))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCouponNotFound):
			respondError(c, response.CodeNotFound, service.ErrCouponNotFound.Error(), nil)
		case errors.Is(err, service.ErrCouponInvalid):
			respondError(c, response.CodeBadRequest, service.ErrCouponInvalid.Error(), nil)
		default:
			respondError(c, response.CodeInternal, service.ErrCouponFetchFailed.Error(), err)
		}
		return
	}

	response.Success(c, detail)
}

// UpdateCoupon 更新优惠码
func (h *Handler) UpdateCoupon(c *gin.Context) {
	couponID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || couponID == 0 {
		respondError(c, response.CodeBadRequest, "请求参数无效", err)
		return
	}
	var req UpdateCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数无效", err)
		return
	}

	validFrom, err := parseTimeNullable(req.ValidFrom)
	if err != nil {
		respondError(c, response.CodeBadRequest, "请求参数无效", err)
		return
	}
	validUntil, err := parseTimeNullable(req.ValidUntil)
	if err != nil {
		respondError(c, response.CodeBadRequest, "请求参数无效", err)
		return
	}

	coupon, err := h.CouponAdminService.UpdateCoupon(uint(couponID), service.UpdateCouponInput{
		Value:           req.Value,
		UserLimit:       req.UserLimit,
		ValidFrom:       validFrom,
		ClearValidFrom:  req.ClearValidFrom,
		ValidUntil:      validUntil,
		ClearValidUntil: req.ClearValidUntil,
		CampaignID:      req.CampaignID,
		ClearCampaign:   req.ClearCampaign,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCouponNotFound):
			respondError(c, response.CodeNotFound, service.ErrCouponNotFound.Error(), nil)
		case errors.Is(err, service.ErrCouponInvalid):
			respondError(c, response.CodeBadRequest, service.ErrCouponInvalid.Error(), nil)
		case errors.Is(err, service.ErrCampaignNotFound):
			respondError(c, response.CodeBadRequest, service.ErrCampaignNotFound.Error(), nil)
		default:
			respondError(c, response.CodeInternal, service.ErrCouponUpdateFailed.Error(), err)
		}
		return
	}

	response.Success(c, coupon)
}

// DeleteCoupon 删除优惠码
func (h *Handler) DeleteCoupon(c *gin.Context) {
	couponID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || couponID == 0 {
		respondError(c, response.CodeBadRequest, "请求参数无效", err)
		return
	}
	if err := h.CouponAdminService.DeleteCoupon(uint(couponID)); err != nil {
		switch {
		case errors.Is(err, service.ErrCouponNotFound):
			respondError(c, response.CodeNotFound, service.ErrCouponNotFound.Error(), nil)
		case errors.Is(err, service.ErrCouponInvalid):
			respondError(c, response.CodeBadRequest, service.ErrCouponInvalid.Error(), nil)
		default:
			respondError(c, response.CodeInternal, service.ErrCouponDeleteFailed.Error(), err)
		}
		return
	}
	response.Success(c, gin.H{
		"deleted": true,
	})
}

// GetCouponRedemptions 获取优惠码的兑换记录
func (h *Handler) GetCouponRedemptions(c *gin.Context) {
	couponID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || couponID == 0 {
		respondError(c, response.CodeBadRequest, "请求参数无效", err)
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	redemptions, total, err := h.CouponAdminService.ListRedemptions(uint(couponID), page, pageSize)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCouponInvalid):
			respondError(c, response.CodeBadRequest, service.ErrCouponInvalid.Error(), nil)
		default:
			respondError(c, response.CodeInternal, service.ErrCouponFetchFailed.Error(), err)
		}
		return
	}

	pagination := response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: (total + int64(pageSize) - 1) / int64(pageSize),
	}
	response.SuccessWithPage(c, redemptions, pagination)
}

// ExportCoupons 导出优惠码 CSV
func (h *Handler) ExportCoupons(c *gin.Context) {
	input, ok := parseCouponListInput(c)
	if !ok {
		return
	}

	data, contentType, err := h.CouponAdminService.ExportCoupons(input)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCouponNotFound):
			respondError(c, response.CodeNotFound, service.ErrCouponNotFound.Error(), nil)
		default:
			respondError(c, response.CodeInternal, service.ErrCouponFetchFailed.Error(), err)
		}
		return
	}

	filename := fmt.Sprintf("coupons_%s.csv", time.Now().Format("20060102150405"))
	requestLog(c).Infow("coupons_exported", "filename", filename, "bytes", len(data))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, data)
}

func parseCouponListInput(c *gin.Context) (service.CouponListInput, bool) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	input := service.CouponListInput{
		Code:     c.Query("code"),
		Search:   c.Query("search"),
		Type:     c.Query("type"),
		Page:     page,
		PageSize: pageSize,
	}

	if rawCampaignID := strings.TrimSpace(c.Query("campaign_id")); rawCampaignID != "" {
		parsed, err := strconv.ParseUint(rawCampaignID, 10, 64)
		if err != nil || parsed == 0 {
			respondError(c, response.CodeBadRequest, "请求参数无效", err)
			return service.CouponListInput{}, false
		}
		input.CampaignID = uint(parsed)
	}
	used, ok := parseBoolNullable(c, "used")
	if !ok {
		return service.CouponListInput{}, false
	}
	input.Used = used
	expired, ok := parseBoolNullable(c, "expired")
	if !ok {
		return service.CouponListInput{}, false
	}
	input.Expired = expired
	active, ok := parseBoolNullable(c, "active")
	if !ok {
		return service.CouponListInput{}, false
	}
	input.Active = active

	return input, true
}

func parseBoolNullable(c *gin.Context, key string) (*bool, bool) {
	raw := c.Query(key)
	if raw == "" {
		return nil, true
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		respondError(c, response.CodeBadRequest, "请求参数无效", err)
		return nil, false
	}
	return &parsed, true
}

func respondCouponIssueError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrCouponInvalid):
		respondError(c, response.CodeBadRequest, service.ErrCouponInvalid.Error(), nil)
	case errors.Is(err, service.ErrCouponCodeDuplicate):
		respondError(c, response.CodeConflict, service.ErrCouponCodeDuplicate.Error(), nil)
	case errors.Is(err, service.ErrCouponCodeExhausted):
		respondError(c, response.CodeConflict, service.ErrCouponCodeExhausted.Error(), nil)
	case errors.Is(err, service.ErrCampaignNotFound):
		respondError(c, response.CodeBadRequest, service.ErrCampaignNotFound.Error(), nil)
	default:
		respondError(c, response.CodeInternal, service.ErrCouponCreateFailed.Error(), err)
	}
}

func parseTimeNullable(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}
