package repository

import (
	"errors"

	"github.com/coupon-next/internal/models"

	"gorm.io/gorm"
)

// RedemptionRepository 兑换记录数据访问接口
type RedemptionRepository interface {
	Create(redemption *models.Redemption) error
	Save(redemption *models.Redemption) error
	GetByCouponAndUser(couponID, userID uint) (*models.Redemption, error)
	GetOldestUnbound(couponID uint) (*models.Redemption, error)
	CountByCoupon(couponID uint) (int64, error)
	CountRedeemed(couponID uint) (int64, error)
	CountBound(couponID uint) (int64, error)
	ListByCoupon(couponID uint, page, pageSize int) ([]models.Redemption, int64, error)
	ListByUser(userID uint, page, pageSize int) ([]models.Redemption, int64, error)
	DeleteByCouponID(couponID uint) error
	WithTx(tx *gorm.DB) *GormRedemptionRepository
}

// GormRedemptionRepository GORM 实现
type GormRedemptionRepository struct {
	db *gorm.DB
}

// NewRedemptionRepository 创建兑换记录仓库
func NewRedemptionRepository(db *gorm.DB) *GormRedemptionRepository {
	return &GormRedemptionRepository{db: db}
}

// WithTx 绑定事务
func (r *GormRedemptionRepository) WithTx(tx *gorm.DB) *GormRedemptionRepository {
	if tx == nil {
		return r
	}
	return &GormRedemptionRepository{db: tx}
}

// Create 创建兑换记录
func (r *GormRedemptionRepository) Create(redemption *models.Redemption) error {
	return r.db.Create(redemption).Error
}

// Save 保存兑换记录
func (r *GormRedemptionRepository) Save(redemption *models.Redemption) error {
	return r.db.Save(redemption).Error
}

// GetByCouponAndUser 获取指定用户在指定优惠码上的兑换记录
func (r *GormRedemptionRepository) GetByCouponAndUser(couponID, userID uint) (*models.Redemption, error) {
	var redemption models.Redemption
	err := r.db.Where("coupon_id = ? AND user_id = ?", couponID, userID).
		First(&redemption).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &redemption, nil
}

// GetOldestUnbound 获取最早创建的未绑定用户且未兑换的名额
func (r *GormRedemptionRepository) GetOldestUnbound(couponID uint) (*models.Redemption, error) {
	var redemption models.Redemption
	err := r.db.Where("coupon_id = ? AND user_id IS NULL AND redeemed_at IS NULL", couponID).
		Order("id asc").
		First(&redemption).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &redemption, nil
}

// CountByCoupon 统计优惠码的名额总数
func (r *GormRedemptionRepository) CountByCoupon(couponID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Redemption{}).
		Where("coupon_id = ?", couponID).
		Count(&count).Error
	return count, err
}

// CountRedeemed 统计优惠码已完成兑换的名额数
func (r *GormRedemptionRepository) CountRedeemed(couponID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Redemption{}).
		Where("coupon_id = ? AND redeemed_at IS NOT NULL", couponID).
		Count(&count).Error
	return count, err
}

// CountBound 统计优惠码已绑定用户的名额数（含未兑换的预留名额）
func (r *GormRedemptionRepository) CountBound(couponID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Redemption{}).
		Where("coupon_id = ? AND user_id IS NOT NULL", couponID).
		Count(&count).Error
	return count, err
}

// ListByCoupon 获取优惠码的兑换记录列表
func (r *GormRedemptionRepository) ListByCoupon(couponID uint, page, pageSize int) ([]models.Redemption, int64, error) {
	var redemptions []models.Redemption
	query := r.db.Model(&models.Redemption{}).Where("coupon_id = ?", couponID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, page, pageSize)

	if err := query.Order("id asc").Find(&redemptions).Error; err != nil {
		return nil, 0, err
	}
	return redemptions, total, nil
}

// ListByUser 获取用户的兑换记录列表
func (r *GormRedemptionRepository) ListByUser(userID uint, page, pageSize int) ([]models.Redemption, int64, error) {
	var redemptions []models.Redemption
	query := r.db.Model(&models.Redemption{}).Where("user_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, page, pageSize)

	if err := query.Order("id desc").Find(&redemptions).Error; err != nil {
		return nil, 0, err
	}
	return redemptions, total, nil
}

// DeleteByCouponID 删除优惠码的全部兑换记录
func (r *GormRedemptionRepository) DeleteByCouponID(couponID uint) error {
	return r.db.Where("coupon_id = ?", couponID).Delete(&models.Redemption{}).Error
}
