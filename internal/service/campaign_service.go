package service

import (
	"strings"

	"github.com/coupon-next/internal/models"
	"github.com/coupon-next/internal/repository"
)

// CampaignService 发放活动服务
type CampaignService struct {
	repo       repository.CampaignRepository
	couponRepo repository.CouponRepository
}

// CampaignInput 发放活动创建/更新输入
type CampaignInput struct {
	Name        string
	Description string
}

// CampaignListInput 发放活动列表输入
type CampaignListInput struct {
	Search   string
	Page     int
	PageSize int
}

// NewCampaignService 创建发放活动服务
func NewCampaignService(repo repository.CampaignRepository, couponRepo repository.CouponRepository) *CampaignService {
	return &CampaignService{
		repo:       repo,
		couponRepo: couponRepo,
	}
}

// CreateCampaign 创建发放活动
func (s *CampaignService) CreateCampaign(input CampaignInput) (*models.Campaign, error) {
	if s == nil || s.repo == nil {
		return nil, ErrCampaignCreateFailed
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrCampaignInvalid
	}
	existing, err := s.repo.GetByName(name)
	if err != nil {
		return nil, ErrCampaignFetchFailed
	}
	if existing != nil {
		return nil, ErrCampaignNameTaken
	}
	campaign := &models.Campaign{
		Name:        name,
		Description: strings.TrimSpace(input.Description),
	}
	if err := s.repo.Create(campaign); err != nil {
		return nil, ErrCampaignCreateFailed
	}
	return campaign, nil
}

// GetCampaign 获取发放活动
func (s *CampaignService) GetCampaign(id uint) (*models.Campaign, error) {
	if s == nil || s.repo == nil || id == 0 {
		return nil, ErrCampaignInvalid
	}
	campaign, err := s.repo.GetByID(id)
	if err != nil {
		return nil, ErrCampaignFetchFailed
	}
	if campaign == nil {
		return nil, ErrCampaignNotFound
	}
	return campaign, nil
}

// UpdateCampaign 更新发放活动
func (s *CampaignService) UpdateCampaign(id uint, input CampaignInput) (*models.Campaign, error) {
	if s == nil || s.repo == nil || id == 0 {
		return nil, ErrCampaignInvalid
	}
	campaign, err := s.repo.GetByID(id)
	if err != nil {
		return nil, ErrCampaignFetchFailed
	}
	if campaign == nil {
		return nil, ErrCampaignNotFound
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrCampaignInvalid
	}
	if name != campaign.Name {
		existing, fetchErr := s.repo.GetByName(name)
		if fetchErr != nil {
			return nil, ErrCampaignFetchFailed
		}
		if existing != nil && existing.ID != id {
			return nil, ErrCampaignNameTaken
		}
	}
	campaign.Name = name
	campaign.Description = strings.TrimSpace(input.Description)
	if err := s.repo.Update(campaign); err != nil {
		return nil, ErrCampaignUpdateFailed
	}
	return campaign, nil
}

// DeleteCampaign 删除发放活动，活动下仍有优惠码时拒绝
func (s *CampaignService) DeleteCampaign(id uint) error {
	if s == nil || s.repo == nil || id == 0 {
		return ErrCampaignInvalid
	}
	campaign, err := s.repo.GetByID(id)
	if err != nil {
		return ErrCampaignFetchFailed
	}
	if campaign == nil {
		return ErrCampaignNotFound
	}
	if s.couponRepo != nil {
		_, total, listErr := s.couponRepo.List(repository.CouponListFilter{CampaignID: id, PageSize: 1, Page: 1})
		if listErr != nil {
			return ErrCampaignFetchFailed
		}
		if total > 0 {
			return ErrCampaignInvalid
		}
	}
	if err := s.repo.Delete(id); err != nil {
		return ErrCampaignDeleteFailed
	}
	return nil
}

// ListCampaigns 获取发放活动列表
func (s *CampaignService) ListCampaigns(input CampaignListInput) ([]models.Campaign, int64, error) {
	if s == nil || s.repo == nil {
		return nil, 0, ErrCampaignFetchFailed
	}
	filter := repository.CampaignListFilter{
		Search:   strings.TrimSpace(input.Search),
		Page:     input.Page,
		PageSize: input.PageSize,
	}
	campaigns, total, err := s.repo.List(filter)
	if err != nil {
		return nil, 0, ErrCampaignFetchFailed
	}
	return campaigns, total, nil
}

// CampaignStats 获取发放活动统计
func (s *CampaignService) CampaignStats(id uint) (*repository.CampaignStats, error) {
	if s == nil || s.repo == nil || id == 0 {
		return nil, ErrCampaignInvalid
	}
	campaign, err := s.repo.GetByID(id)
	if err != nil {
		return nil, ErrCampaignFetchFailed
	}
	if campaign == nil {
		return nil, ErrCampaignNotFound
	}
	stats, err := s.repo.Stats(id)
	if err != nil {
		return nil, ErrCampaignFetchFailed
	}
	return stats, nil
}
