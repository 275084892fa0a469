package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/coupon-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrDuplicateCode 码值触发存储层唯一约束
var ErrDuplicateCode = errors.New("优惠码码值已存在")

// CouponRepository 优惠码数据访问接口
type CouponRepository interface {
	GetByID(id uint) (*models.Coupon, error)
	GetByCode(code string) (*models.Coupon, error)
	GetByCodeForUpdate(code string) (*models.Coupon, error)
	ExistsByCode(code string) (bool, error)
	Create(coupon *models.Coupon) error
	Update(coupon *models.Coupon) error
	Delete(id uint) error
	List(filter CouponListFilter) ([]models.Coupon, int64, error)
	WithTx(tx *gorm.DB) *GormCouponRepository
}

// CouponListFilter 优惠码列表筛选
//
// Used/Expired 为三态筛选：nil 不过滤，true/false 分别取正反集合。
// used 的口径为该码存在已完成兑换的记录（redeemed_at 非空）。
type CouponListFilter struct {
	Code       string
	Search     string
	Type       string
	CampaignID uint
	Used       *bool
	Expired    *bool
	Active     *bool
	Now        time.Time
	Page       int
	PageSize   int
}

// GormCouponRepository GORM 实现
type GormCouponRepository struct {
	db *gorm.DB
}

// NewCouponRepository 创建优惠码仓库
func NewCouponRepository(db *gorm.DB) *GormCouponRepository {
	return &GormCouponRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCouponRepository) WithTx(tx *gorm.DB) *GormCouponRepository {
	if tx == nil {
		return r
	}
	return &GormCouponRepository{db: tx}
}

// GetByID 根据ID获取优惠码
func (r *GormCouponRepository) GetByID(id uint) (*models.Coupon, error) {
	var coupon models.Coupon
	if err := r.db.Preload("Campaign").First(&coupon, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &coupon, nil
}

// GetByCode 根据码值获取优惠码
func (r *GormCouponRepository) GetByCode(code string) (*models.Coupon, error) {
	var coupon models.Coupon
	if err := r.db.Preload("Campaign").Where("code = ?", code).First(&coupon).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &coupon, nil
}

// GetByCodeForUpdate 根据码值获取优惠码并加行锁（需在事务内调用）
func (r *GormCouponRepository) GetByCodeForUpdate(code string) (*models.Coupon, error) {
	var coupon models.Coupon
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("code = ?", code).
		First(&coupon).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &coupon, nil
}

// ExistsByCode 判断码值是否已存在
func (r *GormCouponRepository) ExistsByCode(code string) (bool, error) {
	var count int64
	if err := r.db.Model(&models.Coupon{}).Where("code = ?", code).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Create 创建优惠码，码值唯一约束冲突时返回 ErrDuplicateCode
func (r *GormCouponRepository) Create(coupon *models.Coupon) error {
	if err := r.db.Create(coupon).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateCode
		}
		return err
	}
	return nil
}

// isUniqueViolation 识别驱动层唯一约束错误（sqlite 与 postgres 文案不同）
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}

// Update 更新优惠码
func (r *GormCouponRepository) Update(coupon *models.Coupon) error {
	return r.db.Save(coupon).Error
}

// Delete 删除优惠码
func (r *GormCouponRepository) Delete(id uint) error {
	return r.db.Delete(&models.Coupon{}, id).Error
}

// List 获取优惠码列表
func (r *GormCouponRepository) List(filter CouponListFilter) ([]models.Coupon, int64, error) {
	var coupons []models.Coupon
	query := r.db.Model(&models.Coupon{})

	if filter.Code != "" {
		query = query.Where("code = ?", filter.Code)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("code "+likeOperator(r.db)+" ?", like)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.CampaignID > 0 {
		query = query.Where("campaign_id = ?", filter.CampaignID)
	}
	if filter.Used != nil {
		sub := "EXISTS (SELECT 1 FROM redemptions WHERE redemptions.coupon_id = coupons.id AND redemptions.redeemed_at IS NOT NULL)"
		if *filter.Used {
			query = query.Where(sub)
		} else {
			query = query.Where("NOT " + sub)
		}
	}
	now := filter.Now
	if now.IsZero() {
		now = time.Now()
	}
	if filter.Expired != nil {
		if *filter.Expired {
			query = query.Where("valid_until IS NOT NULL AND valid_until < ?", now)
		} else {
			query = query.Where("valid_until IS NULL OR valid_until >= ?", now)
		}
	}
	if filter.Active != nil {
		window := r.db.Where("(valid_from IS NULL OR valid_from <= ?) AND (valid_until IS NULL OR valid_until >= ?)", now, now)
		if *filter.Active {
			query = query.Where(window)
		} else {
			query = query.Not(window)
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	if err := query.Preload("Campaign").Order("id desc").Find(&coupons).Error; err != nil {
		return nil, 0, err
	}
	return coupons, total, nil
}
