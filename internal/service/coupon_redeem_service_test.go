package service

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/coupon-next/internal/constants"
	"github.com/coupon-next/internal/models"
	"github.com/coupon-next/internal/queue"
	"github.com/coupon-next/internal/repository"

	"gorm.io/gorm"
)

func setupCouponRedeemServiceTest(t *testing.T) (*CouponRedeemService, *gorm.DB) {
	t.Helper()
	db := setupCouponServiceDB(t, "coupon_redeem_service_test")
	client, err := queue.NewClient(nil)
	if err != nil {
		t.Fatalf("new queue client failed: %v", err)
	}
	svc := NewCouponRedeemService(
		repository.NewCouponRepository(db),
		repository.NewRedemptionRepository(db),
		client,
	)
	return svc, db
}

func seedRedeemCoupon(t *testing.T, db *gorm.DB, code string, mutate func(*models.Coupon)) *models.Coupon {
	t.Helper()
	coupon := &models.Coupon{
		Code:      code,
		Value:     1000,
		Type:      constants.CouponTypeMonetary,
		Action:    constants.CouponActionDiscount,
		UserLimit: 1,
	}
	if mutate != nil {
		mutate(coupon)
	}
	if err := db.Create(coupon).Error; err != nil {
		t.Fatalf("create coupon failed: %v", err)
	}
	return coupon
}

func TestCouponRedeemServiceRedeemSuccess(t *testing.T) {
	svc, db := setupCouponRedeemServiceTest(t)
	coupon := seedRedeemCoupon(t, db, "REDEEM-OK", nil)

	result, err := svc.Redeem(RedeemInput{Code: " REDEEM-OK ", UserID: uintPtrSvc(12), SourceType: "order", SourceID: "ORD-1"})
	if err != nil {
		t.Fatalf("redeem failed: %v", err)
	}
	if result.Coupon.ID != coupon.ID {
		t.Fatalf("unexpected coupon in result: %+v", result.Coupon)
	}
	if result.Redemption.RedeemedAt == nil {
		t.Fatalf("expected redemption stamped")
	}
	if result.Redemption.UserID == nil || *result.Redemption.UserID != 12 {
		t.Fatalf("expected user 12 bound, got %+v", result.Redemption.UserID)
	}
	if result.Redemption.SourceType != "order" || result.Redemption.SourceID != "ORD-1" {
		t.Fatalf("expected source recorded, got %+v", result.Redemption)
	}
}

func TestCouponRedeemServiceNotFound(t *testing.T) {
	svc, _ := setupCouponRedeemServiceTest(t)

	_, err := svc.Redeem(RedeemInput{Code: "MISSING"})
	if !errors.Is(err, ErrCouponNotFound) {
		t.Fatalf("expected ErrCouponNotFound, got %v", err)
	}

	_, err = svc.Redeem(RedeemInput{Code: "   "})
	if !errors.Is(err, ErrCouponInvalid) {
		t.Fatalf("expected ErrCouponInvalid for blank code, got %v", err)
	}
}

func TestCouponRedeemServiceWindowGuards(t *testing.T) {
	svc, db := setupCouponRedeemServiceTest(t)
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	seedRedeemCoupon(t, db, "EXPIRED", func(c *models.Coupon) {
		c.ValidUntil = &past
	})
	seedRedeemCoupon(t, db, "NOT-YET", func(c *models.Coupon) {
		c.ValidFrom = &future
	})

	if _, err := svc.Redeem(RedeemInput{Code: "EXPIRED", UserID: uintPtrSvc(1)}); !errors.Is(err, ErrCouponExpired) {
		t.Fatalf("expected ErrCouponExpired, got %v", err)
	}
	if _, err := svc.Redeem(RedeemInput{Code: "NOT-YET", UserID: uintPtrSvc(1)}); !errors.Is(err, ErrCouponNotYetActive) {
		t.Fatalf("expected ErrCouponNotYetActive, got %v", err)
	}
}

func TestCouponRedeemServiceAlreadyRedeemed(t *testing.T) {
	svc, db := setupCouponRedeemServiceTest(t)
	seedRedeemCoupon(t, db, "ONCE", func(c *models.Coupon) {
		c.UserLimit = 5
	})

	if _, err := svc.Redeem(RedeemInput{Code: "ONCE", UserID: uintPtrSvc(3)}); err != nil {
		t.Fatalf("first redeem failed: %v", err)
	}
	_, err := svc.Redeem(RedeemInput{Code: "ONCE", UserID: uintPtrSvc(3)})
	if !errors.Is(err, ErrCouponAlreadyRedeemed) {
		t.Fatalf("expected ErrCouponAlreadyRedeemed, got %v", err)
	}
}

func TestCouponRedeemServiceUsageLimit(t *testing.T) {
	svc, db := setupCouponRedeemServiceTest(t)
	seedRedeemCoupon(t, db, "LIMIT1", nil)

	if _, err := svc.Redeem(RedeemInput{Code: "LIMIT1", UserID: uintPtrSvc(1)}); err != nil {
		t.Fatalf("first redeem failed: %v", err)
	}
	_, err := svc.Redeem(RedeemInput{Code: "LIMIT1", UserID: uintPtrSvc(2)})
	if !errors.Is(err, ErrCouponUsageLimit) {
		t.Fatalf("expected ErrCouponUsageLimit, got %v", err)
	}
}

func TestCouponRedeemServiceUnlimited(t *testing.T) {
	svc, db := setupCouponRedeemServiceTest(t)
	seedRedeemCoupon(t, db, "NOLIMIT", func(c *models.Coupon) {
		c.UserLimit = 0
	})

	for i := uint(1); i <= 10; i++ {
		id := i
		if _, err := svc.Redeem(RedeemInput{Code: "NOLIMIT", UserID: &id}); err != nil {
			t.Fatalf("redeem %d failed: %v", i, err)
		}
	}
}

func TestCouponRedeemServicePreBoundSlot(t *testing.T) {
	svc, db := setupCouponRedeemServiceTest(t)
	coupon := seedRedeemCoupon(t, db, "PREBOUND", nil)

	// 预绑定的名额不再受上限检查限制
	bound := models.Redemption{CouponID: coupon.ID, UserID: uintPtrSvc(42)}
	if err := db.Create(&bound).Error; err != nil {
		t.Fatalf("create bound slot failed: %v", err)
	}

	result, err := svc.Redeem(RedeemInput{Code: "PREBOUND", UserID: uintPtrSvc(42)})
	if err != nil {
		t.Fatalf("redeem failed: %v", err)
	}
	if result.Redemption.ID != bound.ID {
		t.Fatalf("expected reuse of pre-bound slot %d, got %d", bound.ID, result.Redemption.ID)
	}

	var count int64
	if err := db.Model(&models.Redemption{}).Where("coupon_id = ?", coupon.ID).Count(&count).Error; err != nil {
		t.Fatalf("count slots failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected single slot, got %d", count)
	}
}

func TestCouponRedeemServicePreBoundSlotBlocksOtherUsers(t *testing.T) {
	svc, db := setupCouponRedeemServiceTest(t)
	coupon := seedRedeemCoupon(t, db, "RESERVED", nil)

	bound := models.Redemption{CouponID: coupon.ID, UserID: uintPtrSvc(1)}
	if err := db.Create(&bound).Error; err != nil {
		t.Fatalf("create bound slot failed: %v", err)
	}

	// 名额已预留给用户 1，其他人在其兑换前同样占不到名额
	if _, err := svc.Redeem(RedeemInput{Code: "RESERVED", UserID: uintPtrSvc(2)}); !errors.Is(err, ErrCouponUsageLimit) {
		t.Fatalf("expected ErrCouponUsageLimit for other user, got %v", err)
	}
	if _, err := svc.Redeem(RedeemInput{Code: "RESERVED"}); !errors.Is(err, ErrCouponUsageLimit) {
		t.Fatalf("expected ErrCouponUsageLimit for anonymous redeem, got %v", err)
	}
	if ok, err := svc.IsUsable(coupon, uintPtrSvc(2)); ok || !errors.Is(err, ErrCouponUsageLimit) {
		t.Fatalf("expected usage limit from IsUsable, got ok=%v err=%v", ok, err)
	}

	// 被预留的用户本人仍可兑换
	result, err := svc.Redeem(RedeemInput{Code: "RESERVED", UserID: uintPtrSvc(1)})
	if err != nil {
		t.Fatalf("reserved user redeem failed: %v", err)
	}
	if result.Redemption.ID != bound.ID {
		t.Fatalf("expected reuse of slot %d, got %d", bound.ID, result.Redemption.ID)
	}

	var redeemed int64
	if err := db.Model(&models.Redemption{}).Where("coupon_id = ? AND redeemed_at IS NOT NULL", coupon.ID).Count(&redeemed).Error; err != nil {
		t.Fatalf("count redeemed failed: %v", err)
	}
	if redeemed != 1 {
		t.Fatalf("expected exactly 1 redeemed slot, got %d", redeemed)
	}
}

func TestCouponRedeemServiceClaimsOldestAnonymousSlot(t *testing.T) {
	svc, db := setupCouponRedeemServiceTest(t)
	coupon := seedRedeemCoupon(t, db, "ANONSLOT", func(c *models.Coupon) {
		c.UserLimit = 2
	})

	first := models.Redemption{CouponID: coupon.ID}
	second := models.Redemption{CouponID: coupon.ID}
	if err := db.Create(&first).Error; err != nil {
		t.Fatalf("create slot failed: %v", err)
	}
	if err := db.Create(&second).Error; err != nil {
		t.Fatalf("create slot failed: %v", err)
	}

	result, err := svc.Redeem(RedeemInput{Code: "ANONSLOT", UserID: uintPtrSvc(5)})
	if err != nil {
		t.Fatalf("redeem failed: %v", err)
	}
	if result.Redemption.ID != first.ID {
		t.Fatalf("expected oldest slot %d claimed, got %d", first.ID, result.Redemption.ID)
	}
	if result.Redemption.UserID == nil || *result.Redemption.UserID != 5 {
		t.Fatalf("expected slot bound to user 5, got %+v", result.Redemption.UserID)
	}
}

func TestCouponRedeemServiceAnonymousRedeem(t *testing.T) {
	svc, db := setupCouponRedeemServiceTest(t)
	seedRedeemCoupon(t, db, "ANON", nil)

	result, err := svc.Redeem(RedeemInput{Code: "ANON"})
	if err != nil {
		t.Fatalf("anonymous redeem failed: %v", err)
	}
	if result.Redemption.UserID != nil {
		t.Fatalf("expected anonymous redemption, got user %v", *result.Redemption.UserID)
	}

	_, err = svc.Redeem(RedeemInput{Code: "ANON"})
	if !errors.Is(err, ErrCouponUsageLimit) {
		t.Fatalf("expected ErrCouponUsageLimit on second anonymous redeem, got %v", err)
	}
}

func TestCouponRedeemServiceUsabilityHookRollsBack(t *testing.T) {
	svc, db := setupCouponRedeemServiceTest(t)
	coupon := seedRedeemCoupon(t, db, "HOOKED", nil)

	svc.RegisterUsabilityHook(func(tx *gorm.DB, c *models.Coupon, userID *uint) error {
		return errors.New("账户余额不足")
	})

	_, err := svc.Redeem(RedeemInput{Code: "HOOKED", UserID: uintPtrSvc(1)})
	if !errors.Is(err, ErrRedeemRejected) {
		t.Fatalf("expected ErrRedeemRejected, got %v", err)
	}

	var count int64
	if err := db.Model(&models.Redemption{}).Where("coupon_id = ?", coupon.ID).Count(&count).Error; err != nil {
		t.Fatalf("count slots failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected rollback to leave no slots, got %d", count)
	}
}

func TestCouponRedeemServicePostHookRollsBack(t *testing.T) {
	svc, db := setupCouponRedeemServiceTest(t)
	coupon := seedRedeemCoupon(t, db, "POSTHOOK", nil)

	var sawStamp bool
	svc.RegisterPostRedeemHook(func(tx *gorm.DB, c *models.Coupon, r *models.Redemption) error {
		sawStamp = r.RedeemedAt != nil
		return errors.New("下游写入失败")
	})

	_, err := svc.Redeem(RedeemInput{Code: "POSTHOOK", UserID: uintPtrSvc(1)})
	if !errors.Is(err, ErrRedeemRejected) {
		t.Fatalf("expected ErrRedeemRejected, got %v", err)
	}
	if !sawStamp {
		t.Fatalf("post hook should observe stamped redemption")
	}

	var count int64
	if err := db.Model(&models.Redemption{}).Where("coupon_id = ?", coupon.ID).Count(&count).Error; err != nil {
		t.Fatalf("count slots failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected rollback to leave no slots, got %d", count)
	}
}

func TestCouponRedeemServiceCheckCoupon(t *testing.T) {
	svc, db := setupCouponRedeemServiceTest(t)
	seedRedeemCoupon(t, db, "STATUS", nil)

	status, err := svc.CheckCoupon("STATUS")
	if err != nil {
		t.Fatalf("check coupon failed: %v", err)
	}
	if !status.Active || status.Expired || status.Exhausted || !status.Usable {
		t.Fatalf("fresh coupon should be active: %+v", status)
	}

	if _, err := svc.Redeem(RedeemInput{Code: "STATUS", UserID: uintPtrSvc(1)}); err != nil {
		t.Fatalf("redeem failed: %v", err)
	}

	status, err = svc.CheckCoupon("STATUS")
	if err != nil {
		t.Fatalf("check coupon failed: %v", err)
	}
	if status.RedeemedCount != 1 || !status.Exhausted || status.Usable {
		t.Fatalf("expected exhausted status after redeem: %+v", status)
	}

	if _, err := svc.CheckCoupon("MISSING"); !errors.Is(err, ErrCouponNotFound) {
		t.Fatalf("expected ErrCouponNotFound, got %v", err)
	}
}

func TestCouponRedeemServiceConcurrentRedeems(t *testing.T) {
	svc, db := setupCouponRedeemServiceTest(t)
	coupon := seedRedeemCoupon(t, db, "RACE", nil)

	success, limited := runConcurrentRedeems(t, svc, "RACE", 50)
	if success != 1 {
		t.Fatalf("expected exactly 1 successful redeem, got %d", success)
	}
	if limited != 49 {
		t.Fatalf("expected 49 limited, got %d", limited)
	}

	var count int64
	if err := db.Model(&models.Redemption{}).Where("coupon_id = ? AND redeemed_at IS NOT NULL", coupon.ID).Count(&count).Error; err != nil {
		t.Fatalf("count redeemed failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected single redeemed slot, got %d", count)
	}
}

func TestCouponRedeemServiceConcurrentRedeemsLimit10(t *testing.T) {
	svc, db := setupCouponRedeemServiceTest(t)
	coupon := seedRedeemCoupon(t, db, "RACE10", func(c *models.Coupon) {
		c.UserLimit = 10
	})

	success, limited := runConcurrentRedeems(t, svc, "RACE10", 50)
	if success != 10 {
		t.Fatalf("expected exactly 10 successful redeems, got %d", success)
	}
	if limited != 40 {
		t.Fatalf("expected 40 limited, got %d", limited)
	}

	var count int64
	if err := db.Model(&models.Redemption{}).Where("coupon_id = ? AND redeemed_at IS NOT NULL", coupon.ID).Count(&count).Error; err != nil {
		t.Fatalf("count redeemed failed: %v", err)
	}
	if count != 10 {
		t.Fatalf("expected 10 redeemed slots, got %d", count)
	}
}

// runConcurrentRedeems 以互不相同的用户并发兑换，统计成功与触限的次数
func runConcurrentRedeems(t *testing.T, svc *CouponRedeemService, code string, workers int) (success, limited int) {
	t.Helper()
	var wg sync.WaitGroup
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			userID := uint(idx + 1)
			_, errs[idx] = svc.Redeem(RedeemInput{Code: code, UserID: &userID})
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		switch {
		case err == nil:
			success++
		case errors.Is(err, ErrCouponUsageLimit):
			limited++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	return success, limited
}

func TestCouponRedeemServiceIsUsable(t *testing.T) {
	svc, db := setupCouponRedeemServiceTest(t)
	past := time.Now().Add(-time.Hour)
	fresh := seedRedeemCoupon(t, db, "USABLE", nil)
	expired := seedRedeemCoupon(t, db, "USABLE-EXPIRED", func(c *models.Coupon) {
		c.ValidUntil = &past
	})

	if ok, err := svc.IsUsable(fresh, uintPtrSvc(1)); !ok || err != nil {
		t.Fatalf("fresh coupon should be usable, got ok=%v err=%v", ok, err)
	}
	if ok, err := svc.IsUsable(expired, nil); ok || !errors.Is(err, ErrCouponExpired) {
		t.Fatalf("expired coupon should not be usable, got ok=%v err=%v", ok, err)
	}

	if _, err := svc.Redeem(RedeemInput{Code: "USABLE", UserID: uintPtrSvc(9)}); err != nil {
		t.Fatalf("redeem failed: %v", err)
	}
	if ok, err := svc.IsUsable(fresh, uintPtrSvc(9)); ok || !errors.Is(err, ErrCouponAlreadyRedeemed) {
		t.Fatalf("redeemed user should see already-redeemed, got ok=%v err=%v", ok, err)
	}
	if ok, err := svc.IsUsable(fresh, uintPtrSvc(10)); ok || !errors.Is(err, ErrCouponUsageLimit) {
		t.Fatalf("other user should hit usage limit, got ok=%v err=%v", ok, err)
	}

	svc.RegisterUsabilityHook(func(tx *gorm.DB, c *models.Coupon, userID *uint) error {
		return errors.New("渠道暂不可用")
	})
	unlimited := seedRedeemCoupon(t, db, "USABLE-HOOKED", func(c *models.Coupon) {
		c.UserLimit = 0
	})
	if ok, err := svc.IsUsable(unlimited, nil); ok || !errors.Is(err, ErrRedeemRejected) {
		t.Fatalf("hook veto should reject, got ok=%v err=%v", ok, err)
	}
}

func uintPtrSvc(v uint) *uint {
	return &v
}
