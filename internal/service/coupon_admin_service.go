package service

import (
	"encoding/csv"
	"strconv"
	"strings"
	"time"

	"github.com/coupon-next/internal/models"
	"github.com/coupon-next/internal/repository"

	"gorm.io/gorm"
)

const couponExportTimeLayout = "2006-01-02 15:04:05"

// CouponAdminService 优惠码管理服务
type CouponAdminService struct {
	repo           repository.CouponRepository
	redemptionRepo repository.RedemptionRepository
	campaignRepo   repository.CampaignRepository
}

// CouponListInput 优惠码列表输入
type CouponListInput struct {
	Code       string
	Search     string
	Type       string
	CampaignID uint
	Used       *bool
	Expired    *bool
	Active     *bool
	Page       int
	PageSize   int
}

// UpdateCouponInput 优惠码更新输入（码值不可变更）
type UpdateCouponInput struct {
	Value           *int64
	UserLimit       *int
	ValidFrom       *time.Time
	ClearValidFrom  bool
	ValidUntil      *time.Time
	ClearValidUntil bool
	CampaignID      *uint
	ClearCampaign   bool
}

// CouponDetail 优惠码详情
type CouponDetail struct {
	Coupon        *models.Coupon      `json:"coupon"`
	Redemptions   []models.Redemption `json:"redemptions"`
	RedeemedCount int64               `json:"redeemed_count"`
	SlotsTotal    int64               `json:"slots_total"`
}

// NewCouponAdminService 创建优惠码管理服务
func NewCouponAdminService(
	repo repository.CouponRepository,
	redemptionRepo repository.RedemptionRepository,
	campaignRepo repository.CampaignRepository,
) *CouponAdminService {
	return &CouponAdminService{
		repo:           repo,
		redemptionRepo: redemptionRepo,
		campaignRepo:   campaignRepo,
	}
}

// ListCoupons 获取优惠码列表
func (s *CouponAdminService) ListCoupons(input CouponListInput) ([]models.Coupon, int64, error) {
	if s == nil || s.repo == nil {
		return nil, 0, ErrCouponFetchFailed
	}
	filter := repository.CouponListFilter{
		Code:       strings.TrimSpace(input.Code),
		Search:     strings.TrimSpace(input.Search),
		Type:       strings.TrimSpace(strings.ToLower(input.Type)),
		CampaignID: input.CampaignID,
		Used:       input.Used,
		Expired:    input.Expired,
		Active:     input.Active,
		Now:        time.Now(),
		Page:       input.Page,
		PageSize:   input.PageSize,
	}
	coupons, total, err := s.repo.List(filter)
	if err != nil {
		return nil, 0, ErrCouponFetchFailed
	}
	return coupons, total, nil
}

// GetCoupon 获取优惠码详情
func (s *CouponAdminService) GetCoupon(id uint) (*CouponDetail, error) {
	if s == nil || s.repo == nil || id == 0 {
		return nil, ErrCouponInvalid
	}
	coupon, err := s.repo.GetByID(id)
	if err != nil {
		return nil, ErrCouponFetchFailed
	}
	if coupon == nil {
		return nil, ErrCouponNotFound
	}
	redemptions, total, err := s.redemptionRepo.ListByCoupon(id, 0, 0)
	if err != nil {
		return nil, ErrCouponFetchFailed
	}
	redeemed, err := s.redemptionRepo.CountRedeemed(id)
	if err != nil {
		return nil, ErrCouponFetchFailed
	}
	return &CouponDetail{
		Coupon:        coupon,
		Redemptions:   redemptions,
		RedeemedCount: redeemed,
		SlotsTotal:    total,
	}, nil
}

// UpdateCoupon 更新优惠码
func (s *CouponAdminService) UpdateCoupon(id uint, input UpdateCouponInput) (*models.Coupon, error) {
	if s == nil || s.repo == nil || id == 0 {
		return nil, ErrCouponInvalid
	}
	coupon, err := s.repo.GetByID(id)
	if err != nil {
		return nil, ErrCouponFetchFailed
	}
	if coupon == nil {
		return nil, ErrCouponNotFound
	}

	if input.Value != nil {
		coupon.Value = *input.Value
	}
	if input.UserLimit != nil {
		if *input.UserLimit < 0 {
			return nil, ErrCouponInvalid
		}
		coupon.UserLimit = *input.UserLimit
	}
	if input.ClearValidFrom {
		coupon.ValidFrom = nil
	} else if input.ValidFrom != nil {
		coupon.ValidFrom = input.ValidFrom
	}
	if input.ClearValidUntil {
		coupon.ValidUntil = nil
	} else if input.ValidUntil != nil {
		coupon.ValidUntil = input.ValidUntil
	}
	if coupon.ValidFrom != nil && coupon.ValidUntil != nil && coupon.ValidUntil.Before(*coupon.ValidFrom) {
		return nil, ErrCouponInvalid
	}
	if input.ClearCampaign {
		coupon.CampaignID = nil
		coupon.Campaign = nil
	} else if input.CampaignID != nil && *input.CampaignID > 0 {
		if s.campaignRepo == nil {
			return nil, ErrCouponInvalid
		}
		campaign, fetchErr := s.campaignRepo.GetByID(*input.CampaignID)
		if fetchErr != nil {
			return nil, ErrCouponFetchFailed
		}
		if campaign == nil {
			return nil, ErrCampaignNotFound
		}
		coupon.CampaignID = input.CampaignID
		coupon.Campaign = campaign
	}

	if err := s.repo.Update(coupon); err != nil {
		return nil, ErrCouponUpdateFailed
	}
	return coupon, nil
}

// DeleteCoupon 删除优惠码及其全部兑换记录
func (s *CouponAdminService) DeleteCoupon(id uint) error {
	if s == nil || s.repo == nil || id == 0 {
		return ErrCouponInvalid
	}
	coupon, err := s.repo.GetByID(id)
	if err != nil {
		return ErrCouponFetchFailed
	}
	if coupon == nil {
		return ErrCouponNotFound
	}
	return models.DB.Transaction(func(tx *gorm.DB) error {
		if err := s.redemptionRepo.WithTx(tx).DeleteByCouponID(id); err != nil {
			return ErrCouponDeleteFailed
		}
		if err := s.repo.WithTx(tx).Delete(id); err != nil {
			return ErrCouponDeleteFailed
		}
		return nil
	})
}

// ListRedemptions 获取优惠码的兑换记录
func (s *CouponAdminService) ListRedemptions(couponID uint, page, pageSize int) ([]models.Redemption, int64, error) {
	if s == nil || s.redemptionRepo == nil || couponID == 0 {
		return nil, 0, ErrCouponInvalid
	}
	redemptions, total, err := s.redemptionRepo.ListByCoupon(couponID, page, pageSize)
	if err != nil {
		return nil, 0, ErrCouponFetchFailed
	}
	return redemptions, total, nil
}

// ExportCoupons 按筛选条件导出优惠码 CSV
func (s *CouponAdminService) ExportCoupons(input CouponListInput) ([]byte, string, error) {
	if s == nil || s.repo == nil {
		return nil, "", ErrCouponFetchFailed
	}
	input.Page = 0
	input.PageSize = 0
	coupons, _, err := s.ListCoupons(input)
	if err != nil {
		return nil, "", err
	}
	if len(coupons) == 0 {
		return nil, "", ErrCouponNotFound
	}

	builder := &strings.Builder{}
	writer := csv.NewWriter(builder)
	if err := writer.Write([]string{
		"Count",
		"ID",
		"Code",
		"Value",
		"Start Date",
		"Expiration Date",
		"Campaign",
	}); err != nil {
		return nil, "", ErrCouponFetchFailed
	}
	for i, coupon := range coupons {
		campaignName := ""
		if coupon.Campaign != nil {
			campaignName = coupon.Campaign.Name
		}
		if err := writer.Write([]string{
			strconv.Itoa(i + 1),
			strconv.FormatUint(uint64(coupon.ID), 10),
			coupon.Code,
			strconv.FormatInt(coupon.Value, 10),
			formatExportTime(coupon.ValidFrom),
			formatExportTime(coupon.ValidUntil),
			campaignName,
		}); err != nil {
			return nil, "", ErrCouponFetchFailed
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, "", ErrCouponFetchFailed
	}
	return []byte(builder.String()), "text/csv; charset=utf-8", nil
}

func formatExportTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(couponExportTimeLayout)
}
