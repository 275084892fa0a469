package admin

import (
	"errors"
	"strconv"

	"github.com/coupon-next/internal/http/response"
	"github.com/coupon-next/internal/service"

	"github.com/gin-gonic/gin"
)

// CampaignRequest 创建或更新发放活动请求
type CampaignRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// CreateCampaign 创建发放活动
func (h *Handler) CreateCampaign(c *gin.Context) {
	var req CampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数无效", err)
		return
	}

	campaign, err := h.CampaignService.CreateCampaign(service.CampaignInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		respondCampaignError(c, err, service.ErrCampaignCreateFailed)
		return
	}

	response.Success(c, campaign)
}

// UpdateCampaign 更新发放活动
func (h *Handler) UpdateCampaign(c *gin.Context) {
	campaignID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || campaignID == 0 {
		respondError(c, response.CodeBadRequest, "请求参数无效", err)
		return
	}
	var req CampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数无效", err)
		return
	}

	campaign, err := h.CampaignService.UpdateCampaign(uint(campaignID), service.CampaignInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		respondCampaignError(c, err, service.ErrCampaignUpdateFailed)
		return
	}

	response.Success(c, campaign)
}

// DeleteCampaign 删除发放活动
func (h *Handler) DeleteCampaign(c *gin.Context) {
	campaignID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || campaignID == 0 {
		respondError(c, response.CodeBadRequest, "请求参数无效", err)
		return
	}
	if err := h.CampaignService.DeleteCampaign(uint(campaignID)); err != nil {
		respondCampaignError(c, err, service.ErrCampaignDeleteFailed)
		return
	}
	response.Success(c, gin.H{
		"deleted": true,
	})
}

// GetCampaigns 获取发放活动列表
func (h *Handler) GetCampaigns(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	campaigns, total, err := h.CampaignService.ListCampaigns(service.CampaignListInput{
		Search:   c.Query("search"),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		respondError(c, response.CodeInternal, service.ErrCampaignFetchFailed.Error(), err)
		return
	}

	pagination := response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: (total + int64(pageSize) - 1) / int64(pageSize),
	}
	response.SuccessWithPage(c, campaigns, pagination)
}

// GetCampaign 获取发放活动详情
func (h *Handler) GetCampaign(c *gin.Context) {
	campaignID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || campaignID == 0 {
		respondError(c, response.CodeBadRequest, "请求参数无效", err)
		return
	}

	campaign, err := h.CampaignService.GetCampaign(uint(campaignID))
	if err != nil {
		respondCampaignError(c, err, service.ErrCampaignFetchFailed)
		return
	}

	response.Success(c, campaign)
}

// GetCampaignStats 获取发放活动统计
func (h *Handler) GetCampaignStats(c *gin.Context) {
	campaignID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || campaignID == 0 {
		respondError(c, response.CodeBadRequest, "请求参数无效", err)
		return
	}

	stats, err := h.CampaignService.CampaignStats(uint(campaignID))
	if err != nil {
		respondCampaignError(c, err, service.ErrCampaignFetchFailed)
		return
	}

	response.Success(c, stats)
}

func respondCampaignError(c *gin.Context, err, fallback error) {
	switch {
	case errors.Is(err, service.ErrCampaignNotFound):
		respondError(c, response.CodeNotFound, service.ErrCampaignNotFound.Error(), nil)
	case errors.Is(err, service.ErrCampaignNameTaken):
		respondError(c, response.CodeConflict, service.ErrCampaignNameTaken.Error(), nil)
	case errors.Is(err, service.ErrCampaignInvalid):
		respondError(c, response.CodeBadRequest, service.ErrCampaignInvalid.Error(), nil)
	default:
		respondError(c, response.CodeInternal, fallback.Error(), err)
	}
}
