package models

import (
	"time"

	"gorm.io/gorm"
)

// Coupon 优惠码
type Coupon struct {
	ID         uint           `gorm:"primarykey" json:"id"`                  // 主键
	Code       string         `gorm:"uniqueIndex;not null" json:"code"`      // 优惠码（创建后不可变更）
	Value      int64          `gorm:"not null" json:"value"`                 // 面值（引擎不解释，由调用方决定含义）
	Type       string         `gorm:"not null" json:"type"`                  // 类型（monetary/percentage/virtual_currency，可配置扩展）
	Action     string         `gorm:"not null" json:"action"`                // 兑换动作（默认 discount，可配置扩展）
	UserLimit  int            `gorm:"not null;default:1" json:"user_limit"`  // 兑换上限（0 表示不限制）
	ValidFrom  *time.Time     `gorm:"index" json:"valid_from"`               // 生效时间（含）
	ValidUntil *time.Time     `gorm:"index" json:"valid_until"`              // 失效时间（含，为空表示永久有效）
	CampaignID *uint          `gorm:"index" json:"campaign_id"`              // 所属活动ID
	Campaign   *Campaign      `gorm:"foreignKey:CampaignID" json:"campaign"` // 所属活动
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`               // 创建时间
	UpdatedAt  time.Time      `gorm:"index" json:"updated_at"`               // 更新时间
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`                        // 软删除时间
}

// TableName 指定表名
func (Coupon) TableName() string {
	return "coupons"
}

// IsExpired 是否已过期（valid_until 为含边界：恰好等于 now 不算过期）
func (c *Coupon) IsExpired(now time.Time) bool {
	return c.ValidUntil != nil && c.ValidUntil.Before(now)
}

// IsActiveAt 是否处于有效窗口内
func (c *Coupon) IsActiveAt(now time.Time) bool {
	if c.ValidFrom != nil && now.Before(*c.ValidFrom) {
		return false
	}
	if c.ValidUntil != nil && c.ValidUntil.Before(now) {
		return false
	}
	return true
}
