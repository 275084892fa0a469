package queue

import (
	"encoding/json"
	"time"

	"github.com/coupon-next/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskCouponRedeemed 优惠码兑换完成事件任务
	TaskCouponRedeemed = constants.TaskCouponRedeemed
)

// CouponRedeemedPayload 优惠码兑换完成事件载荷
type CouponRedeemedPayload struct {
	CouponID     uint      `json:"coupon_id"`
	Code         string    `json:"code"`
	Value        int64     `json:"value"`
	Type         string    `json:"type"`
	Action       string    `json:"action"`
	RedemptionID uint      `json:"redemption_id"`
	UserID       *uint     `json:"user_id"`
	RedeemedAt   time.Time `json:"redeemed_at"`
	SourceType   string    `json:"source_type,omitempty"`
	SourceID     string    `json:"source_id,omitempty"`
}

// NewCouponRedeemedTask 创建优惠码兑换完成事件任务
func NewCouponRedeemedTask(payload CouponRedeemedPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCouponRedeemed, body), nil
}
