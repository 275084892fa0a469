package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/coupon-next/internal/config"
	"github.com/coupon-next/internal/constants"
	"github.com/coupon-next/internal/models"
	"github.com/coupon-next/internal/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupCouponServiceDB(t *testing.T, name string) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db failed: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(
		&models.Campaign{},
		&models.Coupon{},
		&models.Redemption{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.DB = db
	return db
}

func setupCouponIssueServiceTest(t *testing.T, cfg *config.CouponConfig) (*CouponIssueService, *gorm.DB) {
	t.Helper()
	db := setupCouponServiceDB(t, "coupon_issue_service_test")
	svc := NewCouponIssueService(
		repository.NewCouponRepository(db),
		repository.NewRedemptionRepository(db),
		repository.NewCampaignRepository(db),
		cfg,
	)
	return svc, db
}

func intPtr(v int) *int {
	return &v
}

func TestCouponIssueServiceGenerateCoupons(t *testing.T) {
	svc, db := setupCouponIssueServiceTest(t, nil)

	coupons, err := svc.GenerateCoupons(GenerateCouponsInput{
		Quantity: 5,
		Value:    1000,
		Type:     constants.CouponTypeMonetary,
	})
	if err != nil {
		t.Fatalf("generate coupons failed: %v", err)
	}
	if len(coupons) != 5 {
		t.Fatalf("expected 5 coupons, got %d", len(coupons))
	}

	seen := map[string]bool{}
	for _, c := range coupons {
		if len(c.Code) != constants.DefaultCodeLength {
			t.Fatalf("expected code length %d, got %q", constants.DefaultCodeLength, c.Code)
		}
		if seen[c.Code] {
			t.Fatalf("duplicate code generated: %q", c.Code)
		}
		seen[c.Code] = true
		if c.Action != constants.CouponActionDiscount {
			t.Fatalf("expected default action, got %q", c.Action)
		}
		if c.UserLimit != 1 {
			t.Fatalf("expected default user limit 1, got %d", c.UserLimit)
		}
	}

	var total int64
	if err := db.Model(&models.Coupon{}).Count(&total).Error; err != nil {
		t.Fatalf("count coupons failed: %v", err)
	}
	if total != 5 {
		t.Fatalf("expected 5 rows, got %d", total)
	}
}

func TestCouponIssueServiceGenerateCouponsInvalidInput(t *testing.T) {
	svc, _ := setupCouponIssueServiceTest(t, nil)

	if _, err := svc.GenerateCoupons(GenerateCouponsInput{Quantity: 0, Value: 100, Type: constants.CouponTypeMonetary}); !errors.Is(err, ErrCouponInvalid) {
		t.Fatalf("expected ErrCouponInvalid for zero quantity, got %v", err)
	}
	if _, err := svc.GenerateCoupons(GenerateCouponsInput{Quantity: 1, Value: 100, Type: "unknown"}); !errors.Is(err, ErrCouponInvalid) {
		t.Fatalf("expected ErrCouponInvalid for unknown type, got %v", err)
	}
	if _, err := svc.GenerateCoupons(GenerateCouponsInput{Quantity: 1, Value: 100, Type: constants.CouponTypeMonetary, Action: "grant"}); !errors.Is(err, ErrCouponInvalid) {
		t.Fatalf("expected ErrCouponInvalid for unknown action, got %v", err)
	}
	if _, err := svc.GenerateCoupons(GenerateCouponsInput{Quantity: 1, Value: 100, Type: constants.CouponTypeMonetary, UserLimit: intPtr(-1)}); !errors.Is(err, ErrCouponInvalid) {
		t.Fatalf("expected ErrCouponInvalid for negative limit, got %v", err)
	}

	from := time.Now()
	until := from.Add(-time.Hour)
	if _, err := svc.GenerateCoupons(GenerateCouponsInput{
		Quantity:   1,
		Value:      100,
		Type:       constants.CouponTypeMonetary,
		ValidFrom:  &from,
		ValidUntil: &until,
	}); !errors.Is(err, ErrCouponInvalid) {
		t.Fatalf("expected ErrCouponInvalid for inverted window, got %v", err)
	}
}

func TestCouponIssueServiceGenerateCouponsBindsUsers(t *testing.T) {
	svc, db := setupCouponIssueServiceTest(t, nil)

	coupons, err := svc.GenerateCoupons(GenerateCouponsInput{
		Quantity: 2,
		Value:    500,
		Type:     constants.CouponTypePercentage,
		UserLimit: intPtr(2),
		UserIDs:  []uint{3, 3, 9, 0},
	})
	if err != nil {
		t.Fatalf("generate coupons failed: %v", err)
	}

	for _, c := range coupons {
		var slots []models.Redemption
		if err := db.Where("coupon_id = ?", c.ID).Order("id asc").Find(&slots).Error; err != nil {
			t.Fatalf("load slots failed: %v", err)
		}
		if len(slots) != 2 {
			t.Fatalf("expected 2 pre-bound slots for %s, got %d", c.Code, len(slots))
		}
		for _, slot := range slots {
			if slot.UserID == nil || slot.RedeemedAt != nil {
				t.Fatalf("expected bound unredeemed slot, got %+v", slot)
			}
		}
	}
}

func TestCouponIssueServiceCreateCouponExplicitCode(t *testing.T) {
	svc, _ := setupCouponIssueServiceTest(t, nil)

	coupon, err := svc.CreateCoupon(CreateCouponInput{
		Code:  " WELCOME2026 ",
		Value: 100,
		Type:  constants.CouponTypeMonetary,
	})
	if err != nil {
		t.Fatalf("create coupon failed: %v", err)
	}
	if coupon.Code != "WELCOME2026" {
		t.Fatalf("expected trimmed code, got %q", coupon.Code)
	}

	_, err = svc.CreateCoupon(CreateCouponInput{
		Code:  "WELCOME2026",
		Value: 200,
		Type:  constants.CouponTypeMonetary,
	})
	if !errors.Is(err, ErrCouponCodeDuplicate) {
		t.Fatalf("expected ErrCouponCodeDuplicate, got %v", err)
	}
}

func TestCouponIssueServiceCreateCouponWithPrefix(t *testing.T) {
	svc, _ := setupCouponIssueServiceTest(t, &config.CouponConfig{CodeLength: 6})

	coupon, err := svc.CreateCoupon(CreateCouponInput{
		Value:  100,
		Type:   constants.CouponTypeMonetary,
		Prefix: "XMAS-",
	})
	if err != nil {
		t.Fatalf("create coupon failed: %v", err)
	}
	if len(coupon.Code) != len("XMAS-")+6 {
		t.Fatalf("expected prefixed code of length 11, got %q", coupon.Code)
	}
	if coupon.Code[:5] != "XMAS-" {
		t.Fatalf("expected XMAS- prefix, got %q", coupon.Code)
	}
}

func TestCouponIssueServiceCodeExhaustion(t *testing.T) {
	// 字符集只有两个单字符码，批量要三个必然耗尽重试
	cfg := &config.CouponConfig{
		CodeLength:          1,
		CodeChars:           "AB",
		MaxGenerateAttempts: 5,
	}
	svc, db := setupCouponIssueServiceTest(t, cfg)

	_, err := svc.GenerateCoupons(GenerateCouponsInput{
		Quantity: 3,
		Value:    100,
		Type:     constants.CouponTypeMonetary,
	})
	if !errors.Is(err, ErrCouponCodeExhausted) {
		t.Fatalf("expected ErrCouponCodeExhausted, got %v", err)
	}

	// 整批回滚
	var total int64
	if err := db.Model(&models.Coupon{}).Count(&total).Error; err != nil {
		t.Fatalf("count coupons failed: %v", err)
	}
	if total != 0 {
		t.Fatalf("expected rollback to leave 0 coupons, got %d", total)
	}
}

func TestCouponIssueServiceRetriesOnStorageConflict(t *testing.T) {
	// 软删除的码不再出现在预检查询里，但仍占用唯一索引，
	// 只能靠 Create 返回的约束冲突触发重新生成
	cfg := &config.CouponConfig{
		CodeLength:          1,
		CodeChars:           "AB",
		MaxGenerateAttempts: 50,
	}
	svc, db := setupCouponIssueServiceTest(t, cfg)

	ghost := models.Coupon{Code: "A", Value: 1, Type: constants.CouponTypeMonetary, Action: constants.CouponActionDiscount, UserLimit: 1}
	if err := db.Create(&ghost).Error; err != nil {
		t.Fatalf("create ghost coupon failed: %v", err)
	}
	if err := db.Delete(&ghost).Error; err != nil {
		t.Fatalf("soft delete ghost coupon failed: %v", err)
	}

	coupons, err := svc.GenerateCoupons(GenerateCouponsInput{
		Quantity: 1,
		Value:    100,
		Type:     constants.CouponTypeMonetary,
	})
	if err != nil {
		t.Fatalf("generate should retry past the conflict, got %v", err)
	}
	if coupons[0].Code != "B" {
		t.Fatalf("expected retry to land on B, got %q", coupons[0].Code)
	}
}

func TestCouponIssueServiceStorageConflictExhaustsRetries(t *testing.T) {
	// 字符集只剩一个被唯一索引占用的码值，重试必然耗尽
	cfg := &config.CouponConfig{
		CodeLength:          1,
		CodeChars:           "A",
		MaxGenerateAttempts: 3,
	}
	svc, db := setupCouponIssueServiceTest(t, cfg)

	ghost := models.Coupon{Code: "A", Value: 1, Type: constants.CouponTypeMonetary, Action: constants.CouponActionDiscount, UserLimit: 1}
	if err := db.Create(&ghost).Error; err != nil {
		t.Fatalf("create ghost coupon failed: %v", err)
	}
	if err := db.Delete(&ghost).Error; err != nil {
		t.Fatalf("soft delete ghost coupon failed: %v", err)
	}

	_, err := svc.GenerateCoupons(GenerateCouponsInput{
		Quantity: 1,
		Value:    100,
		Type:     constants.CouponTypeMonetary,
	})
	if !errors.Is(err, ErrCouponCodeExhausted) {
		t.Fatalf("expected ErrCouponCodeExhausted via storage conflict, got %v", err)
	}
}

func TestCouponIssueServiceGenerateWithCampaign(t *testing.T) {
	svc, db := setupCouponIssueServiceTest(t, nil)

	campaign := models.Campaign{Name: "发放测试"}
	if err := db.Create(&campaign).Error; err != nil {
		t.Fatalf("create campaign failed: %v", err)
	}

	coupons, err := svc.GenerateCoupons(GenerateCouponsInput{
		Quantity:   1,
		Value:      100,
		Type:       constants.CouponTypeMonetary,
		CampaignID: &campaign.ID,
	})
	if err != nil {
		t.Fatalf("generate coupons failed: %v", err)
	}
	if coupons[0].CampaignID == nil || *coupons[0].CampaignID != campaign.ID {
		t.Fatalf("expected campaign binding, got %+v", coupons[0].CampaignID)
	}

	missing := campaign.ID + 100
	_, err = svc.GenerateCoupons(GenerateCouponsInput{
		Quantity:   1,
		Value:      100,
		Type:       constants.CouponTypeMonetary,
		CampaignID: &missing,
	})
	if !errors.Is(err, ErrCampaignNotFound) {
		t.Fatalf("expected ErrCampaignNotFound, got %v", err)
	}
}
