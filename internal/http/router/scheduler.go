package router

import (
	"github.com/gin-gonic/gin"

	"cadence.app/outreach/internal/http/handler"
)

func SchedulerRouter(router *gin.RouterGroup, handler *handler.SchedulerHandler) {
	router.POST("/start", handler.Start)
	router.POST("/stop", handler.Stop)
	router.GET("/status", handler.Status)
}
