package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coupon-next/internal/logger"
	"github.com/coupon-next/internal/models"
	"github.com/coupon-next/internal/queue"
	"github.com/coupon-next/internal/repository"

	"gorm.io/gorm"
)

// CouponRedeemService 优惠码兑换服务
type CouponRedeemService struct {
	repo           repository.CouponRepository
	redemptionRepo repository.RedemptionRepository
	queueClient    *queue.Client
	usabilityHooks []UsabilityHook
	postHooks      []PostRedeemHook
}

// RedeemInput 兑换输入
type RedeemInput struct {
	Code       string
	UserID     *uint
	SourceType string
	SourceID   string
}

// RedeemResult 兑换结果
type RedeemResult struct {
	Coupon     *models.Coupon
	Redemption *models.Redemption
}

// CouponStatus 优惠码当前状态（只读查询）
type CouponStatus struct {
	Coupon        *models.Coupon `json:"coupon"`
	Active        bool           `json:"active"`
	Expired       bool           `json:"expired"`
	RedeemedCount int64          `json:"redeemed_count"`
	SlotsTotal    int64          `json:"slots_total"`
	Exhausted     bool           `json:"exhausted"`
	Usable        bool           `json:"usable"`
}

// NewCouponRedeemService 创建优惠码兑换服务
func NewCouponRedeemService(
	repo repository.CouponRepository,
	redemptionRepo repository.RedemptionRepository,
	queueClient *queue.Client,
) *CouponRedeemService {
	return &CouponRedeemService{
		repo:           repo,
		redemptionRepo: redemptionRepo,
		queueClient:    queueClient,
	}
}

// RegisterUsabilityHook 注册兑换前校验钩子
func (s *CouponRedeemService) RegisterUsabilityHook(hook UsabilityHook) {
	if s == nil || hook == nil {
		return
	}
	s.usabilityHooks = append(s.usabilityHooks, hook)
}

// RegisterPostRedeemHook 注册兑换后处理钩子
func (s *CouponRedeemService) RegisterPostRedeemHook(hook PostRedeemHook) {
	if s == nil || hook == nil {
		return
	}
	s.postHooks = append(s.postHooks, hook)
}

// Redeem 兑换优惠码
//
// 整个流程在单个事务内完成并对优惠码行加锁：
// 校验有效窗口，解析名额（用户已绑定的名额优先，其次认领最早的
// 匿名名额，最后新建），执行钩子后写入兑换时间。
// 事务提交后异步推送兑换完成事件，推送失败只记录日志。
func (s *CouponRedeemService) Redeem(input RedeemInput) (*RedeemResult, error) {
	if s == nil || s.repo == nil || s.redemptionRepo == nil {
		return nil, ErrCouponRedeemFailed
	}
	code := strings.TrimSpace(input.Code)
	if code == "" {
		return nil, ErrCouponInvalid
	}
	userID := normalizeUserID(input.UserID)
	now := time.Now()

	var result *RedeemResult
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		redemptionRepo := s.redemptionRepo.WithTx(tx)

		coupon, err := repo.GetByCodeForUpdate(code)
		if err != nil {
			return ErrCouponRedeemFailed
		}
		if coupon == nil {
			return ErrCouponNotFound
		}
		if coupon.ValidFrom != nil && now.Before(*coupon.ValidFrom) {
			return ErrCouponNotYetActive
		}
		if coupon.IsExpired(now) {
			return ErrCouponExpired
		}

		slot, err := s.resolveSlot(redemptionRepo, coupon, userID)
		if err != nil {
			return err
		}

		for _, hook := range s.usabilityHooks {
			if hookErr := hook(tx, coupon, userID); hookErr != nil {
				return wrapRejection(hookErr)
			}
		}

		stamp := now
		if slot == nil {
			slot = &models.Redemption{CouponID: coupon.ID}
		}
		if userID != nil {
			slot.UserID = userID
		}
		slot.RedeemedAt = &stamp
		slot.SourceType = strings.TrimSpace(input.SourceType)
		slot.SourceID = strings.TrimSpace(input.SourceID)
		if slot.ID == 0 {
			if err := redemptionRepo.Create(slot); err != nil {
				return ErrCouponRedeemFailed
			}
		} else {
			if err := redemptionRepo.Save(slot); err != nil {
				return ErrCouponRedeemFailed
			}
		}

		for _, hook := range s.postHooks {
			if hookErr := hook(tx, coupon, slot); hookErr != nil {
				return wrapRejection(hookErr)
			}
		}

		result = &RedeemResult{Coupon: coupon, Redemption: slot}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifyRedeemed(result)
	return result, nil
}

// CheckCoupon 只读查询优惠码状态，不消耗名额
func (s *CouponRedeemService) CheckCoupon(code string) (*CouponStatus, error) {
	if s == nil || s.repo == nil || s.redemptionRepo == nil {
		return nil, ErrCouponFetchFailed
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrCouponInvalid
	}
	coupon, err := s.repo.GetByCode(code)
	if err != nil {
		return nil, ErrCouponFetchFailed
	}
	if coupon == nil {
		return nil, ErrCouponNotFound
	}
	redeemed, err := s.redemptionRepo.CountRedeemed(coupon.ID)
	if err != nil {
		return nil, ErrCouponFetchFailed
	}
	total, err := s.redemptionRepo.CountByCoupon(coupon.ID)
	if err != nil {
		return nil, ErrCouponFetchFailed
	}
	now := time.Now()
	usable, _ := s.IsUsable(coupon, nil)
	return &CouponStatus{
		Coupon:        coupon,
		Active:        coupon.IsActiveAt(now),
		Expired:       coupon.IsExpired(now),
		RedeemedCount: redeemed,
		SlotsTotal:    total,
		Exhausted:     coupon.UserLimit > 0 && redeemed >= int64(coupon.UserLimit),
		Usable:        usable,
	}, nil
}

// IsUsable 预检优惠码当前能否被该用户兑换
//
// 仅作参考，不加锁不占名额，兑换事务内仍会重新校验。
// 返回 false 时第二个返回值携带具体原因。
func (s *CouponRedeemService) IsUsable(coupon *models.Coupon, userID *uint) (bool, error) {
	if s == nil || s.redemptionRepo == nil {
		return false, ErrCouponFetchFailed
	}
	if coupon == nil {
		return false, ErrCouponInvalid
	}
	now := time.Now()
	if coupon.ValidFrom != nil && now.Before(*coupon.ValidFrom) {
		return false, ErrCouponNotYetActive
	}
	if coupon.IsExpired(now) {
		return false, ErrCouponExpired
	}

	userID = normalizeUserID(userID)
	if userID != nil {
		existing, err := s.redemptionRepo.GetByCouponAndUser(coupon.ID, *userID)
		if err != nil {
			return false, ErrCouponFetchFailed
		}
		if existing != nil {
			if existing.RedeemedAt != nil {
				return false, ErrCouponAlreadyRedeemed
			}
			// 已预留名额，跳过上限检查
			return s.runUsabilityHooks(coupon, userID)
		}
	}

	redeemed, err := s.redemptionRepo.CountRedeemed(coupon.ID)
	if err != nil {
		return false, ErrCouponFetchFailed
	}
	if coupon.UserLimit > 0 {
		if redeemed >= int64(coupon.UserLimit) {
			return false, ErrCouponUsageLimit
		}
		bound, boundErr := s.redemptionRepo.CountBound(coupon.ID)
		if boundErr != nil {
			return false, ErrCouponFetchFailed
		}
		// 预留给其他用户的名额同样占用上限
		if bound >= int64(coupon.UserLimit) {
			return false, ErrCouponUsageLimit
		}
	}
	return s.runUsabilityHooks(coupon, userID)
}

func (s *CouponRedeemService) runUsabilityHooks(coupon *models.Coupon, userID *uint) (bool, error) {
	for _, hook := range s.usabilityHooks {
		if err := hook(models.DB, coupon, userID); err != nil {
			return false, wrapRejection(err)
		}
	}
	return true, nil
}

// resolveSlot 解析本次兑换应占用的名额
//
// 用户已有绑定名额时直接复用且不再检查名额上限；
// 否则先做上限检查（已兑换与已绑定的名额都计入），
// 再认领最早的匿名名额，都没有时返回 nil 表示需新建。
func (s *CouponRedeemService) resolveSlot(redemptionRepo repository.RedemptionRepository, coupon *models.Coupon, userID *uint) (*models.Redemption, error) {
	if userID != nil {
		existing, err := redemptionRepo.GetByCouponAndUser(coupon.ID, *userID)
		if err != nil {
			return nil, ErrCouponRedeemFailed
		}
		if existing != nil {
			if existing.RedeemedAt != nil {
				return nil, ErrCouponAlreadyRedeemed
			}
			return existing, nil
		}
	}

	redeemed, err := redemptionRepo.CountRedeemed(coupon.ID)
	if err != nil {
		return nil, ErrCouponRedeemFailed
	}
	if coupon.UserLimit > 0 {
		if redeemed >= int64(coupon.UserLimit) {
			return nil, ErrCouponUsageLimit
		}
		bound, boundErr := redemptionRepo.CountBound(coupon.ID)
		if boundErr != nil {
			return nil, ErrCouponRedeemFailed
		}
		// 预留给其他用户的名额同样占用上限
		if bound >= int64(coupon.UserLimit) {
			return nil, ErrCouponUsageLimit
		}
	}

	unbound, err := redemptionRepo.GetOldestUnbound(coupon.ID)
	if err != nil {
		return nil, ErrCouponRedeemFailed
	}
	return unbound, nil
}

// notifyRedeemed 推送兑换完成事件，失败不影响已提交的兑换
func (s *CouponRedeemService) notifyRedeemed(result *RedeemResult) {
	if result == nil || result.Coupon == nil || result.Redemption == nil {
		return
	}
	redeemedAt := time.Now()
	if result.Redemption.RedeemedAt != nil {
		redeemedAt = *result.Redemption.RedeemedAt
	}
	payload := queue.CouponRedeemedPayload{
		CouponID:     result.Coupon.ID,
		Code:         result.Coupon.Code,
		Value:        result.Coupon.Value,
		Type:         result.Coupon.Type,
		Action:       result.Coupon.Action,
		RedemptionID: result.Redemption.ID,
		UserID:       result.Redemption.UserID,
		RedeemedAt:   redeemedAt,
		SourceType:   result.Redemption.SourceType,
		SourceID:     result.Redemption.SourceID,
	}
	if err := s.queueClient.EnqueueCouponRedeemed(payload); err != nil {
		logger.Warnw("coupon_redeemed_enqueue_failed",
			"coupon_id", result.Coupon.ID,
			"code", result.Coupon.Code,
			"error", err,
		)
	}
}

// wrapRejection 保留钩子返回的已知错误，其余统一按拒绝处理
func wrapRejection(err error) error {
	if errors.Is(err, ErrRedeemRejected) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrRedeemRejected, err)
}

// normalizeUserID 零值用户ID按匿名处理
func normalizeUserID(userID *uint) *uint {
	if userID == nil || *userID == 0 {
		return nil
	}
	return userID
}
