package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"sellhub/storage/internal/service"
)

func (h HandlerSet) StorageStats(c *gin.Context) {
	stats, err := h.reporter.StorageStats(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("storage stats failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "stats_failed"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h HandlerSet) CostBreakdown(c *gin.Context) {
	breakdown, err := h.reporter.CostBreakdown(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("cost breakdown failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "breakdown_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tiers": breakdown})
}

func (h HandlerSet) LifecycleMetrics(c *gin.Context) {
	days := 30
	if v := c.Query("days"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 || parsed > 365 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_days"})
			return
		}
		days = parsed
	}

	metrics, err := h.reporter.LifecycleMetrics(c.Request.Context(), days)
	if err != nil {
		h.log.Error().Err(err).Msg("lifecycle metrics failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "metrics_failed"})
		return
	}
	c.JSON(http.StatusOK, metrics)
}

func (h HandlerSet) Recommendations(c *gin.Context) {
	recs, err := h.reporter.Recommendations(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("recommendations failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "recommendations_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"recommendations": recs})
}

func (h HandlerSet) RunLifecycleNow(c *gin.Context) {
	stats, err := h.lifecycle.RunPass(c.Request.Context())
	if err != nil {
		if errors.Is(err, service.ErrPassInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": "pass_in_progress"})
			return
		}
		h.log.Error().Err(err).Msg("manual lifecycle pass failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lifecycle_failed"})
		return
	}
	c.JSON(http.StatusOK, stats)
}
