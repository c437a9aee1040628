package handlers

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	log "github.com/Regdarim/arni-worker/internal/logging"
	"github.com/Regdarim/arni-worker/internal/usage"
)

// PostUsage absorbs one usage event. Missing fields are defaulted, never
// rejected; the only failure mode is an unbound store.
func (h *Handler) PostUsage(c *gin.Context) {
	if !h.requireStore(c) {
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		body = nil
	}
	ev := usage.ParseEvent(body, time.Now())

	id, err := h.tracker.Record(c.Request.Context(), ev)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "KV not bound")
		return
	}
	c.JSON(http.StatusOK, gin.H{"logged": true, "id": id})
}

// GetUsageStats returns the current aggregate record.
func (h *Handler) GetUsageStats(c *gin.Context) {
	if !h.requireStore(c) {
		return
	}
	stats, err := h.tracker.Stats(c.Request.Context())
	if err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

// GetUsageLive returns the 10 most recent raw usage records, newest
// first.
func (h *Handler) GetUsageLive(c *gin.Context) {
	h.recentUsage(c, 10)
}

// GetUsage returns up to ?limit=N raw usage records, newest first.
func (h *Handler) GetUsage(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	h.recentUsage(c, limit)
}

func (h *Handler) recentUsage(c *gin.Context, limit int) {
	if !h.requireStore(c) {
		return
	}
	events, err := h.tracker.Recent(c.Request.Context(), limit)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	if events == nil {
		events = []usage.Event{}
	}
	c.JSON(http.StatusOK, gin.H{"usage": events, "count": len(events)})
}

// GetUsageQuota returns the reconciled window snapshot without
// persisting the reconciliation.
func (h *Handler) GetUsageQuota(c *gin.Context) {
	if !h.requireStore(c) {
		return
	}
	snap, err := h.quota.Read(c.Request.Context())
	if err != nil {
		respondStoreError(c, err)
		return
	}
	log.Debugf("usage: quota read, %d tokens in window", snap.TokensUsed)
	c.JSON(http.StatusOK, snap)
}
