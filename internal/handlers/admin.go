package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"car-market-tracker/internal/cleanup"
	"car-market-tracker/internal/logging"
	"car-market-tracker/internal/models"
	"car-market-tracker/internal/ratelimit"
	"car-market-tracker/internal/scheduler"

	"github.com/gin-gonic/gin"
)

// RunTrigger starts crawls and reports on them.
type RunTrigger interface {
	Trigger() error
	Running() bool
	History() []models.RunSummary
}

// AdminHandler handles admin-related requests
type AdminHandler struct {
	runs           RunTrigger
	cleanupService *cleanup.Service
	retention      cleanup.CleanupConfig
	limiter        *ratelimit.RateLimiter
}

// NewAdminHandler creates a new admin handler. limiter may be nil.
func NewAdminHandler(runs RunTrigger, cleanupService *cleanup.Service, retention cleanup.CleanupConfig, limiter *ratelimit.RateLimiter) *AdminHandler {
	return &AdminHandler{
		runs:           runs,
		cleanupService: cleanupService,
		retention:      retention,
		limiter:        limiter,
	}
}

// TriggerRun manually starts a crawl
func (h *AdminHandler) TriggerRun(c *gin.Context) {
	logging.Infof("[Admin] manual crawl requested")

	if err := h.runs.Trigger(); err != nil {
		if errors.Is(err, scheduler.ErrRunInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message": "Crawl started",
		"status":  "running",
	})
}

// GetRuns returns the current status and recent run summaries
func (h *AdminHandler) GetRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	history := h.runs.History()
	if limit > 0 && len(history) > limit {
		history = history[:limit]
	}

	status := "idle"
	if h.runs.Running() {
		status = "running"
	}
	c.JSON(http.StatusOK, gin.H{
		"status": status,
		"runs":   history,
		"count":  len(history),
	})
}

// RunCleanup prunes old export snapshots
func (h *AdminHandler) RunCleanup(c *gin.Context) {
	var req struct {
		RetentionDays    int  `json:"retention_days"`
		MaxDeletionCount int  `json:"max_deletion_count"`
		DryRun           bool `json:"dry_run"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	config := h.retention
	if req.RetentionDays > 0 {
		config.RetentionDays = req.RetentionDays
	}
	if req.MaxDeletionCount > 0 {
		config.MaxDeletionCount = req.MaxDeletionCount
	}
	config.DryRun = req.DryRun

	logging.Infof("[Admin] running cleanup (retention: %d days, max: %d, dry-run: %v)",
		config.RetentionDays, config.MaxDeletionCount, config.DryRun)

	result, err := h.cleanupService.PruneSnapshots(config)
	if err != nil {
		logging.Errorf("[Admin] cleanup failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetRateLimitStats returns the request budget of the crawler's fetcher
func (h *AdminHandler) GetRateLimitStats(c *gin.Context) {
	if h.limiter == nil {
		c.JSON(http.StatusOK, gin.H{"enabled": false})
		return
	}
	c.JSON(http.StatusOK, h.limiter.GetStats())
}

// ResetRateLimit clears the daily request budget
func (h *AdminHandler) ResetRateLimit(c *gin.Context) {
	if h.limiter == nil {
		c.JSON(http.StatusOK, gin.H{"enabled": false})
		return
	}
	h.limiter.Reset()
	logging.Infof("[Admin] rate limiter budget reset")
	c.JSON(http.StatusOK, h.limiter.GetStats())
}
