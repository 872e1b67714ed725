package router

import (
	"github.com/gin-gonic/gin"

	"cadence.app/outreach/internal/http/handler/webhook"
)

func WebhookRouter(router *gin.RouterGroup, handler *webhook.ProviderWebhookHandler) {
	router.POST("/provider", handler.HandleEvent)
}
