package public

import "github.com/coupon-next/internal/provider"

// Handler 公开接口处理器入口
// 说明：该处理器用于兑换与查询等无需管理权限的 API。
type Handler struct {
	*provider.Container
}

// New 创建公开处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
