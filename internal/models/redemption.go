package models

import (
	"time"
)

// Redemption 兑换记录（一条记录对应优惠码的一个使用名额）
//
// (coupon_id, user_id) 建联合唯一索引；user_id 为空的匿名名额不受唯一约束限制，
// 同一优惠码允许多个匿名名额，认领时按创建时间最早的优先。
type Redemption struct {
	ID         uint       `gorm:"primarykey" json:"id"`                                     // 主键
	CouponID   uint       `gorm:"not null;uniqueIndex:idx_coupon_user" json:"coupon_id"`    // 优惠码ID
	UserID     *uint      `gorm:"uniqueIndex:idx_coupon_user" json:"user_id"`               // 用户ID（为空表示未绑定的匿名名额）
	RedeemedAt *time.Time `gorm:"index" json:"redeemed_at"`                                 // 兑换时间（为空表示已预留未兑换）
	SourceType string     `gorm:"index:idx_redemption_source" json:"source_type"`           // 触发来源类型（如 order，由调用方定义）
	SourceID   string     `gorm:"index:idx_redemption_source" json:"source_id"`             // 触发来源标识
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`                                  // 创建时间
	UpdatedAt  time.Time  `json:"updated_at"`                                               // 更新时间
}

// TableName 指定表名
func (Redemption) TableName() string {
	return "redemptions"
}
