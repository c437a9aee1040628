package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Regdarim/arni-worker/internal/analytics"
	log "github.com/Regdarim/arni-worker/internal/logging"
	"github.com/Regdarim/arni-worker/internal/quota"
	"github.com/Regdarim/arni-worker/internal/usage"
)

// GetHealth reports liveness and the build version.
func (h *Handler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"version":   h.version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"kv_bound":  h.store != nil,
	})
}

// GetDashboard renders the HTML analytics view over the aggregate
// record and the quota snapshot. With no store bound it renders empty
// records rather than failing.
func (h *Handler) GetDashboard(c *gin.Context) {
	stats := usage.NewStats()
	var snap quota.Snapshot

	if h.store != nil {
		if s, err := h.tracker.Stats(c.Request.Context()); err == nil {
			stats = s
		} else {
			log.Debugf("dashboard: stats read: %v", err)
		}
		if q, err := h.quota.Read(c.Request.Context()); err == nil {
			snap = q
		} else {
			log.Debugf("dashboard: quota read: %v", err)
		}
	}

	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := analytics.Render(c.Writer, h.version, stats, snap); err != nil {
		log.Warnf("dashboard: render: %v", err)
	}
}
