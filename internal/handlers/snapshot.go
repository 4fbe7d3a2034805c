package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"car-market-tracker/internal/logging"
	"car-market-tracker/internal/models"
	"car-market-tracker/internal/snapshot"

	"github.com/gin-gonic/gin"
)

// SnapshotHandler serves the latest export pair to dashboard clients
type SnapshotHandler struct {
	snapshots    *snapshot.Service
	lookbackDays int
	now          func() time.Time
}

// NewSnapshotHandler creates a new snapshot handler
func NewSnapshotHandler(snapshots *snapshot.Service, lookbackDays int, now func() time.Time) *SnapshotHandler {
	if now == nil {
		now = time.Now
	}
	return &SnapshotHandler{snapshots: snapshots, lookbackDays: lookbackDays, now: now}
}

func (h *SnapshotHandler) latest(c *gin.Context) (*snapshot.Snapshot, bool) {
	snap, err := h.snapshots.LoadLatest(h.now(), h.lookbackDays)
	if errors.Is(err, snapshot.ErrNoSnapshot) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return nil, false
	}
	if err != nil {
		logging.Errorf("[API] failed to load latest snapshot: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	return snap, true
}

func bindFilter(c *gin.Context) (models.ListingFilter, bool) {
	var filter models.ListingFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return filter, false
	}
	return filter, true
}

func paging(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "100"))
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func page[T any](rows []T, limit, offset int) []T {
	if offset >= len(rows) {
		return []T{}
	}
	return rows[offset:min(offset+limit, len(rows))]
}

// ListSnapshots returns the dates that have an export pair
func (h *SnapshotHandler) ListSnapshots(c *gin.Context) {
	infos, err := h.snapshots.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	dates := make([]string, 0, len(infos))
	for _, info := range infos {
		dates = append(dates, info.DateKey())
	}
	c.JSON(http.StatusOK, gin.H{
		"snapshots": dates,
		"count":     len(dates),
	})
}

// GetLatestActive returns filtered active listings of the latest snapshot
func (h *SnapshotHandler) GetLatestActive(c *gin.Context) {
	filter, ok := bindFilter(c)
	if !ok {
		return
	}
	snap, ok := h.latest(c)
	if !ok {
		return
	}

	var rows []models.Listing
	for _, l := range snap.Active {
		if filter.Match(l) {
			rows = append(rows, l)
		}
	}

	limit, offset := paging(c)
	c.JSON(http.StatusOK, gin.H{
		"date":     snap.Info.DateKey(),
		"total":    len(rows),
		"listings": page(rows, limit, offset),
	})
}

// GetLatestSold returns filtered sold listings of the latest snapshot
func (h *SnapshotHandler) GetLatestSold(c *gin.Context) {
	filter, ok := bindFilter(c)
	if !ok {
		return
	}
	snap, ok := h.latest(c)
	if !ok {
		return
	}

	var rows []models.SoldListing
	for _, l := range snap.Sold {
		if filter.Match(l.Listing) {
			rows = append(rows, l)
		}
	}

	limit, offset := paging(c)
	c.JSON(http.StatusOK, gin.H{
		"date":     snap.Info.DateKey(),
		"total":    len(rows),
		"listings": page(rows, limit, offset),
	})
}

// GetStats returns dashboard metrics over the latest snapshot
func (h *SnapshotHandler) GetStats(c *gin.Context) {
	filter, ok := bindFilter(c)
	if !ok {
		return
	}
	snap, ok := h.latest(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"stats":         snapshot.Summarize(snap, filter),
		"price_by_year": snapshot.AveragePriceByYear(snap, filter),
	})
}
