package repository

import (
	"errors"

	"github.com/coupon-next/internal/models"

	"gorm.io/gorm"
)

// CampaignRepository 发放活动数据访问接口
type CampaignRepository interface {
	GetByID(id uint) (*models.Campaign, error)
	GetByName(name string) (*models.Campaign, error)
	Create(campaign *models.Campaign) error
	Update(campaign *models.Campaign) error
	Delete(id uint) error
	List(filter CampaignListFilter) ([]models.Campaign, int64, error)
	Stats(id uint) (*CampaignStats, error)
	WithTx(tx *gorm.DB) *GormCampaignRepository
}

// CampaignListFilter 发放活动列表筛选
type CampaignListFilter struct {
	Search   string
	Page     int
	PageSize int
}

// CampaignStats 发放活动统计
type CampaignStats struct {
	TotalCoupons    int64 `json:"total_coupons"`    // 活动下优惠码总数
	RedeemedCoupons int64 `json:"redeemed_coupons"` // 至少完成一次兑换的优惠码数
	TotalRedeemed   int64 `json:"total_redeemed"`   // 完成兑换的名额总数
}

// GormCampaignRepository GORM 实现
type GormCampaignRepository struct {
	db *gorm.DB
}

// NewCampaignRepository 创建发放活动仓库
func NewCampaignRepository(db *gorm.DB) *GormCampaignRepository {
	return &GormCampaignRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCampaignRepository) WithTx(tx *gorm.DB) *GormCampaignRepository {
	if tx == nil {
		return r
	}
	return &GormCampaignRepository{db: tx}
}

// GetByID 根据ID获取发放活动
func (r *GormCampaignRepository) GetByID(id uint) (*models.Campaign, error) {
	var campaign models.Campaign
	if err := r.db.First(&campaign, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &campaign, nil
}

// GetByName 根据名称获取发放活动
func (r *GormCampaignRepository) GetByName(name string) (*models.Campaign, error) {
	var campaign models.Campaign
	if err := r.db.Where("name = ?", name).First(&campaign).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &campaign, nil
}

// Create 创建发放活动
func (r *GormCampaignRepository) Create(campaign *models.Campaign) error {
	return r.db.Create(campaign).Error
}

// Update 更新发放活动
func (r *GormCampaignRepository) Update(campaign *models.Campaign) error {
	return r.db.Save(campaign).Error
}

// Delete 删除发放活动
func (r *GormCampaignRepository) Delete(id uint) error {
	return r.db.Delete(&models.Campaign{}, id).Error
}

// List 获取发放活动列表
func (r *GormCampaignRepository) List(filter CampaignListFilter) ([]models.Campaign, int64, error) {
	var campaigns []models.Campaign
	query := r.db.Model(&models.Campaign{})

	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("name "+likeOperator(r.db)+" ?", like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	if err := query.Order("id desc").Find(&campaigns).Error; err != nil {
		return nil, 0, err
	}
	return campaigns, total, nil
}

// Stats 统计活动下优惠码的发放与兑换情况
func (r *GormCampaignRepository) Stats(id uint) (*CampaignStats, error) {
	stats := &CampaignStats{}

	err := r.db.Model(&models.Coupon{}).
		Where("campaign_id = ?", id).
		Count(&stats.TotalCoupons).Error
	if err != nil {
		return nil, err
	}

	err = r.db.Model(&models.Coupon{}).
		Where("campaign_id = ?", id).
		Where("EXISTS (SELECT 1 FROM redemptions WHERE redemptions.coupon_id = coupons.id AND redemptions.redeemed_at IS NOT NULL)").
		Count(&stats.RedeemedCoupons).Error
	if err != nil {
		return nil, err
	}

	err = r.db.Model(&models.Redemption{}).
		Where("redeemed_at IS NOT NULL").
		Where("coupon_id IN (?)", r.db.Model(&models.Coupon{}).Select("id").Where("campaign_id = ?", id)).
		Count(&stats.TotalRedeemed).Error
	if err != nil {
		return nil, err
	}

	return stats, nil
}
