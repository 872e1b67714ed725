package router

import (
	"github.com/gin-gonic/gin"

	"cadence.app/outreach/internal/http/handler"
	"cadence.app/outreach/internal/http/handler/webhook"
	"cadence.app/outreach/internal/http/middleware"
	"cadence.app/outreach/internal/service"
)

type RouterConfig struct {
	TraceHeaderName        string
	AdminAPIKey            string
	WebhookSecret          string
	WebhookSignatureHeader string
}

func SetupRoutes(router *gin.Engine, services *service.Services, sched handler.SchedulerController, cfg RouterConfig) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	webhookHandler := webhook.NewProviderWebhookHandler(services.WebhookIngest(), webhook.Config{
		Secret:          cfg.WebhookSecret,
		SignatureHeader: cfg.WebhookSignatureHeader,
		TraceHeader:     cfg.TraceHeaderName,
	})
	WebhookRouter(router.Group("/webhooks"), webhookHandler)

	v1 := router.Group("/api/v1")
	{
		schedulerHandler := handler.NewSchedulerHandler(sched)
		SchedulerRouter(v1.Group("/scheduler", middleware.RequireAdminAPIKey(cfg.AdminAPIKey)), schedulerHandler)
	}
}
