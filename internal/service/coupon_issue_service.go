package service

import (
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/coupon-next/internal/config"
	"github.com/coupon-next/internal/constants"
	"github.com/coupon-next/internal/models"
	"github.com/coupon-next/internal/repository"

	"gorm.io/gorm"
)

// CouponIssueService 优惠码发放服务
type CouponIssueService struct {
	repo           repository.CouponRepository
	redemptionRepo repository.RedemptionRepository
	campaignRepo   repository.CampaignRepository
	cfg            *config.CouponConfig
	rng            *rand.Rand
}

// GenerateCouponsInput 批量生成优惠码输入
type GenerateCouponsInput struct {
	Quantity   int
	Value      int64
	Type       string
	Action     string
	UserLimit  *int
	ValidFrom  *time.Time
	ValidUntil *time.Time
	CampaignID *uint
	UserIDs    []uint
	Prefix     string
}

// CreateCouponInput 创建单个优惠码输入
type CreateCouponInput struct {
	Code       string // 为空时自动生成
	Value      int64
	Type       string
	Action     string
	UserLimit  *int
	ValidFrom  *time.Time
	ValidUntil *time.Time
	CampaignID *uint
	UserIDs    []uint
	Prefix     string
}

// NewCouponIssueService 创建优惠码发放服务
func NewCouponIssueService(
	repo repository.CouponRepository,
	redemptionRepo repository.RedemptionRepository,
	campaignRepo repository.CampaignRepository,
	cfg *config.CouponConfig,
) *CouponIssueService {
	return &CouponIssueService{
		repo:           repo,
		redemptionRepo: redemptionRepo,
		campaignRepo:   campaignRepo,
		cfg:            cfg,
	}
}

// WithRand 指定随机源（测试用）
func (s *CouponIssueService) WithRand(rng *rand.Rand) *CouponIssueService {
	s.rng = rng
	return s
}

// GenerateCoupons 批量生成优惠码
//
// 整批在同一事务内完成：任一码在重试上限内仍与已有码冲突时，
// 整批回滚并返回 ErrCouponCodeExhausted。
func (s *CouponIssueService) GenerateCoupons(input GenerateCouponsInput) ([]models.Coupon, error) {
	if s == nil || s.repo == nil {
		return nil, ErrCouponCreateFailed
	}
	maxBatch := s.maxBatchQuantity()
	if input.Quantity <= 0 || input.Quantity > maxBatch {
		return nil, ErrCouponInvalid
	}
	template, err := s.buildTemplate(input.Value, input.Type, input.Action, input.UserLimit, input.ValidFrom, input.ValidUntil, input.CampaignID)
	if err != nil {
		return nil, err
	}
	userIDs := normalizeUserIDs(input.UserIDs)
	prefix := strings.TrimSpace(input.Prefix)

	coupons := make([]models.Coupon, 0, input.Quantity)
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		redemptionRepo := s.redemptionRepo.WithTx(tx)
		for i := 0; i < input.Quantity; i++ {
			coupon, insertErr := s.insertWithUniqueCode(repo, template, prefix)
			if insertErr != nil {
				return insertErr
			}
			if bindErr := bindUsers(redemptionRepo, coupon.ID, userIDs); bindErr != nil {
				return bindErr
			}
			coupons = append(coupons, *coupon)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return coupons, nil
}

// CreateCoupon 创建单个优惠码，支持指定码值
func (s *CouponIssueService) CreateCoupon(input CreateCouponInput) (*models.Coupon, error) {
	if s == nil || s.repo == nil {
		return nil, ErrCouponCreateFailed
	}
	template, err := s.buildTemplate(input.Value, input.Type, input.Action, input.UserLimit, input.ValidFrom, input.ValidUntil, input.CampaignID)
	if err != nil {
		return nil, err
	}
	explicit := strings.TrimSpace(input.Code)
	userIDs := normalizeUserIDs(input.UserIDs)
	prefix := strings.TrimSpace(input.Prefix)

	var coupon *models.Coupon
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		redemptionRepo := s.redemptionRepo.WithTx(tx)

		var created *models.Coupon
		if explicit != "" {
			row := *template
			row.Code = explicit
			if createErr := repo.Create(&row); createErr != nil {
				if errors.Is(createErr, repository.ErrDuplicateCode) {
					return ErrCouponCodeDuplicate
				}
				return ErrCouponCreateFailed
			}
			created = &row
		} else {
			row, insertErr := s.insertWithUniqueCode(repo, template, prefix)
			if insertErr != nil {
				return insertErr
			}
			created = row
		}
		if bindErr := bindUsers(redemptionRepo, created.ID, userIDs); bindErr != nil {
			return bindErr
		}
		coupon = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return coupon, nil
}

// buildTemplate 校验并构建不含码值的优惠码模板
func (s *CouponIssueService) buildTemplate(value int64, couponType, action string, userLimit *int, validFrom, validUntil *time.Time, campaignID *uint) (*models.Coupon, error) {
	couponType = strings.TrimSpace(strings.ToLower(couponType))
	if !s.isAllowedType(couponType) {
		return nil, ErrCouponInvalid
	}
	resolvedAction, err := s.resolveAction(action)
	if err != nil {
		return nil, err
	}
	limit := s.defaultUserLimit()
	if userLimit != nil {
		if *userLimit < 0 {
			return nil, ErrCouponInvalid
		}
		limit = *userLimit
	}
	if validFrom != nil && validUntil != nil && validUntil.Before(*validFrom) {
		return nil, ErrCouponInvalid
	}
	if campaignID != nil && *campaignID > 0 {
		if s.campaignRepo == nil {
			return nil, ErrCouponInvalid
		}
		campaign, fetchErr := s.campaignRepo.GetByID(*campaignID)
		if fetchErr != nil {
			return nil, ErrCouponCreateFailed
		}
		if campaign == nil {
			return nil, ErrCampaignNotFound
		}
	}
	return &models.Coupon{
		Value:      value,
		Type:       couponType,
		Action:     resolvedAction,
		UserLimit:  limit,
		ValidFrom:  validFrom,
		ValidUntil: validUntil,
		CampaignID: campaignID,
	}, nil
}

// insertWithUniqueCode 生成码值并落库，在重试上限内遇冲突重新生成
//
// ExistsByCode 预检只是省一次写入，真正的兜底是存储层唯一约束：
// 并发发放撞码时 Create 返回 ErrDuplicateCode，同样计入重试。
func (s *CouponIssueService) insertWithUniqueCode(repo repository.CouponRepository, template *models.Coupon, prefix string) (*models.Coupon, error) {
	opts := s.codeOptions()
	attempts := s.maxGenerateAttempts()
	for i := 0; i < attempts; i++ {
		code := prefix + GenerateCode(opts, s.rng)
		exists, err := repo.ExistsByCode(code)
		if err != nil {
			return nil, ErrCouponCreateFailed
		}
		if exists {
			continue
		}
		coupon := *template
		coupon.Code = code
		if err := repo.Create(&coupon); err != nil {
			if errors.Is(err, repository.ErrDuplicateCode) {
				continue
			}
			return nil, ErrCouponCreateFailed
		}
		return &coupon, nil
	}
	return nil, ErrCouponCodeExhausted
}

func (s *CouponIssueService) isAllowedType(couponType string) bool {
	if couponType == "" {
		return false
	}
	for _, t := range s.allowedTypes() {
		if t == couponType {
			return true
		}
	}
	return false
}

func (s *CouponIssueService) resolveAction(action string) (string, error) {
	action = strings.TrimSpace(strings.ToLower(action))
	if action == "" {
		return s.defaultAction(), nil
	}
	for _, a := range s.allowedActions() {
		if a == action {
			return action, nil
		}
	}
	return "", ErrCouponInvalid
}

func (s *CouponIssueService) allowedTypes() []string {
	if s.cfg != nil && len(s.cfg.Types) > 0 {
		return s.cfg.Types
	}
	return []string{
		constants.CouponTypeMonetary,
		constants.CouponTypePercentage,
		constants.CouponTypeVirtualCurrency,
	}
}

func (s *CouponIssueService) allowedActions() []string {
	if s.cfg != nil && len(s.cfg.Actions) > 0 {
		return s.cfg.Actions
	}
	return []string{constants.CouponActionDiscount}
}

func (s *CouponIssueService) defaultAction() string {
	if s.cfg != nil && strings.TrimSpace(s.cfg.DefaultAction) != "" {
		return strings.TrimSpace(s.cfg.DefaultAction)
	}
	return constants.CouponActionDiscount
}

func (s *CouponIssueService) defaultUserLimit() int {
	if s.cfg != nil && s.cfg.DefaultUserLimit >= 0 {
		return s.cfg.DefaultUserLimit
	}
	return constants.DefaultUserLimit
}

func (s *CouponIssueService) maxGenerateAttempts() int {
	if s.cfg != nil && s.cfg.MaxGenerateAttempts > 0 {
		return s.cfg.MaxGenerateAttempts
	}
	return constants.DefaultGenerateAttempts
}

func (s *CouponIssueService) maxBatchQuantity() int {
	if s.cfg != nil && s.cfg.MaxBatchQuantity > 0 {
		return s.cfg.MaxBatchQuantity
	}
	return constants.MaxBatchQuantity
}

func (s *CouponIssueService) codeOptions() CodeOptions {
	if s.cfg == nil {
		return CodeOptions{}
	}
	return CodeOptions{
		Length:           s.cfg.CodeLength,
		Chars:            s.cfg.CodeChars,
		Segmented:        s.cfg.SegmentedCodes,
		SegmentLength:    s.cfg.SegmentLength,
		SegmentSeparator: s.cfg.SegmentSeparator,
	}
}

// bindUsers 为优惠码预留用户名额
func bindUsers(repo repository.RedemptionRepository, couponID uint, userIDs []uint) error {
	for _, userID := range userIDs {
		id := userID
		redemption := &models.Redemption{
			CouponID: couponID,
			UserID:   &id,
		}
		if err := repo.Create(redemption); err != nil {
			return ErrCouponCreateFailed
		}
	}
	return nil
}

// normalizeUserIDs 去重并去掉零值
func normalizeUserIDs(ids []uint) []uint {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
