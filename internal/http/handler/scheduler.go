package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"cadence.app/outreach/internal/http/dto"
	"cadence.app/outreach/internal/scheduler"
)

type SchedulerController interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Status(ctx context.Context) (*scheduler.Status, error)
}

type SchedulerHandler struct {
	scheduler SchedulerController
	now       func() time.Time
}

func NewSchedulerHandler(s SchedulerController) *SchedulerHandler {
	return &SchedulerHandler{scheduler: s, now: time.Now}
}

func (h *SchedulerHandler) Start(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.scheduler.Start(ctx); err != nil {
		if errors.Is(err, scheduler.ErrAlreadyRunning) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		slog.ErrorContext(ctx, "failed to start scheduler", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start scheduler"})
		return
	}
	c.JSON(http.StatusOK, dto.SchedulerControlResponse{Status: "started", Running: true})
}

// Stop blocks until in-flight leads finish or the request is cancelled.
func (h *SchedulerHandler) Stop(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.scheduler.Stop(ctx); err != nil {
		if errors.Is(err, scheduler.ErrNotRunning) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		slog.ErrorContext(ctx, "failed to stop scheduler", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to stop scheduler"})
		return
	}
	c.JSON(http.StatusOK, dto.SchedulerControlResponse{Status: "stopped", Running: false})
}

func (h *SchedulerHandler) Status(c *gin.Context) {
	ctx := c.Request.Context()
	status, err := h.scheduler.Status(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to read scheduler status", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read scheduler status"})
		return
	}
	c.JSON(http.StatusOK, dto.NewSchedulerStatusResponse(*status, h.now()))
}
