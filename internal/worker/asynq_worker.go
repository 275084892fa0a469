package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/coupon-next/internal/logger"
	"github.com/coupon-next/internal/provider"
	"github.com/coupon-next/internal/queue"

	"github.com/hibiken/asynq"
)

const defaultWebhookTimeout = 3 * time.Second

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container

	httpClient *http.Client
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskCouponRedeemed, c.handleCouponRedeemed)
}

// handleCouponRedeemed 处理兑换完成事件：配置了回调地址则推送，否则仅记录日志
func (c *Consumer) handleCouponRedeemed(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_coupon_redeemed_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.CouponRedeemedPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_coupon_redeemed_unmarshal_failed", "error", err)
		return err
	}
	if payload.CouponID == 0 {
		logger.Debugw("worker_coupon_redeemed_skip_invalid_payload", "coupon_id", payload.CouponID)
		return nil
	}

	webhookURL := c.webhookURL()
	if webhookURL == "" {
		logger.Infow("coupon_redeemed",
			"coupon_id", payload.CouponID,
			"code", payload.Code,
			"value", payload.Value,
			"type", payload.Type,
			"action", payload.Action,
			"redemption_id", payload.RedemptionID,
			"user_id", payload.UserID,
			"redeemed_at", payload.RedeemedAt,
		)
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		logger.Warnw("worker_coupon_redeemed_marshal_failed", "coupon_id", payload.CouponID, "error", err)
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		logger.Warnw("worker_coupon_redeemed_request_failed", "coupon_id", payload.CouponID, "error", err)
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client().Do(req)
	if err != nil {
		logger.Warnw("worker_coupon_redeemed_webhook_failed",
			"coupon_id", payload.CouponID,
			"url", webhookURL,
			"error", err,
		)
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		logger.Warnw("worker_coupon_redeemed_webhook_rejected",
			"coupon_id", payload.CouponID,
			"url", webhookURL,
			"status", resp.StatusCode,
		)
		return asynq.SkipRetry
	}
	return nil
}

func (c *Consumer) webhookURL() string {
	if c == nil || c.Container == nil || c.Config == nil {
		return ""
	}
	return strings.TrimSpace(c.Config.Webhook.URL)
}

func (c *Consumer) client() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	timeout := defaultWebhookTimeout
	if c.Container != nil && c.Config != nil && c.Config.Webhook.TimeoutMS > 0 {
		timeout = time.Duration(c.Config.Webhook.TimeoutMS) * time.Millisecond
	}
	c.httpClient = &http.Client{Timeout: timeout}
	return c.httpClient
}
