package provider

import (
	"github.com/coupon-next/internal/cache"
	"github.com/coupon-next/internal/config"
	"github.com/coupon-next/internal/logger"
	"github.com/coupon-next/internal/models"
	"github.com/coupon-next/internal/queue"
	"github.com/coupon-next/internal/repository"
	"github.com/coupon-next/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client

	// Repositories
	CouponRepo     repository.CouponRepository
	RedemptionRepo repository.RedemptionRepository
	CampaignRepo   repository.CampaignRepository

	// Services
	CouponIssueService  *service.CouponIssueService
	CouponRedeemService *service.CouponRedeemService
	CouponAdminService  *service.CouponAdminService
	CampaignService     *service.CampaignService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.CouponRepo = repository.NewCouponRepository(db)
	c.RedemptionRepo = repository.NewRedemptionRepository(db)
	c.CampaignRepo = repository.NewCampaignRepository(db)
}

func (c *Container) initServices() {
	c.CouponIssueService = service.NewCouponIssueService(c.CouponRepo, c.RedemptionRepo, c.CampaignRepo, &c.Config.Coupon)
	c.CouponRedeemService = service.NewCouponRedeemService(c.CouponRepo, c.RedemptionRepo, c.QueueClient)
	c.CouponAdminService = service.NewCouponAdminService(c.CouponRepo, c.RedemptionRepo, c.CampaignRepo)
	c.CampaignService = service.NewCampaignService(c.CampaignRepo, c.CouponRepo)
}
