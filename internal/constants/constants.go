package constants

// 优惠码类型常量（可通过配置扩展）
const (
	CouponTypeMonetary        = "monetary"
	CouponTypePercentage      = "percentage"
	CouponTypeVirtualCurrency = "virtual_currency"
)

// 兑换动作常量（可通过配置扩展）
const (
	CouponActionDiscount = "discount"
)

// 码生成默认配置常量
const (
	DefaultCodeLength       = 15
	DefaultCodeChars        = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	DefaultSegmentLength    = 4
	DefaultSegmentSeparator = "-"
	DefaultGenerateAttempts = 5
	DefaultUserLimit        = 1
)

// 批量生成上限常量
const (
	MaxBatchQuantity = 10000
)

// 导出格式常量
const (
	ExportFormatCSV = "csv"
)

// 队列常量
const (
	QueueDefault       = "default"
	TaskCouponRedeemed = "coupon:redeemed"
)

// 缓存默认配置常量
const (
	RedisPrefixDefault = "cpn"
)
