package service

import "errors"

// 优惠码相关错误
var (
	ErrCouponInvalid         = errors.New("优惠码参数无效")
	ErrCouponNotFound        = errors.New("优惠码不存在")
	ErrCouponFetchFailed     = errors.New("优惠码获取失败")
	ErrCouponCreateFailed    = errors.New("优惠码创建失败")
	ErrCouponUpdateFailed    = errors.New("优惠码更新失败")
	ErrCouponDeleteFailed    = errors.New("优惠码删除失败")
	ErrCouponCodeDuplicate   = errors.New("优惠码已存在")
	ErrCouponCodeExhausted   = errors.New("优惠码生成重试已耗尽")
	ErrCouponExpired         = errors.New("优惠码已过期")
	ErrCouponNotYetActive    = errors.New("优惠码尚未生效")
	ErrCouponUsageLimit      = errors.New("优惠码兑换名额已用完")
	ErrCouponAlreadyRedeemed = errors.New("优惠码已被该用户兑换")
	ErrCouponRedeemFailed    = errors.New("优惠码兑换失败")
	ErrRedeemRejected        = errors.New("优惠码兑换被拒绝")
)

// 发放活动相关错误
var (
	ErrCampaignInvalid      = errors.New("活动参数无效")
	ErrCampaignNotFound     = errors.New("活动不存在")
	ErrCampaignNameTaken    = errors.New("活动名称已被占用")
	ErrCampaignFetchFailed  = errors.New("活动获取失败")
	ErrCampaignCreateFailed = errors.New("活动创建失败")
	ErrCampaignUpdateFailed = errors.New("活动更新失败")
	ErrCampaignDeleteFailed = errors.New("活动删除失败")
)
