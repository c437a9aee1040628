package handlers

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"

	"github.com/Regdarim/arni-worker/internal/maintenance"
)

// LogEntry is one appended log record. Entries expire after the
// configured retention and are additionally capped by the cron hook.
type LogEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Message   string `json:"message"`
	Meta      any    `json:"meta,omitempty"`
}

// AppendLog stores one log entry under log:<epoch-ms>. Missing fields
// are defaulted, mirroring the usage path's leniency.
func (h *Handler) AppendLog(c *gin.Context) {
	if !h.requireStore(c) {
		return
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		body = nil
	}
	doc := gjson.ParseBytes(body)

	now := time.Now()
	entry := LogEntry{
		Timestamp: now.UTC().Format(time.RFC3339),
		Level:     "info",
	}
	if v := doc.Get("level"); v.Type == gjson.String && v.Str != "" {
		entry.Level = v.Str
	}
	if v := doc.Get("message"); v.Type == gjson.String {
		entry.Message = v.Str
	}
	if v := doc.Get("meta"); v.Exists() {
		entry.Meta = v.Value()
	}

	raw, err := sonic.MarshalString(entry)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "encode log entry: "+err.Error())
		return
	}

	ttl := time.Duration(h.live.Get().Usage.LogTTLDays) * 24 * time.Hour
	key := maintenance.LogKeyPrefix + strconv.FormatInt(now.UnixMilli(), 10)
	if err := h.store.Put(c.Request.Context(), key, raw, ttl); err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logged": true, "id": key})
}

// GetLogs returns up to ?limit=N entries, newest first.
func (h *Handler) GetLogs(c *gin.Context) {
	if !h.requireStore(c) {
		return
	}
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	entries, err := h.store.List(c.Request.Context(), maintenance.LogKeyPrefix, 0)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	if len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}

	logs := make([]LogEntry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		raw, ok, err := h.store.Get(c.Request.Context(), entries[i].Name)
		if err != nil || !ok {
			continue
		}
		var entry LogEntry
		if err := sonic.UnmarshalString(raw, &entry); err != nil {
			continue
		}
		logs = append(logs, entry)
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs, "count": len(logs)})
}

// ClearLogs deletes every stored log entry.
func (h *Handler) ClearLogs(c *gin.Context) {
	if !h.requireStore(c) {
		return
	}
	entries, err := h.store.List(c.Request.Context(), maintenance.LogKeyPrefix, 0)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	deleted := 0
	for _, e := range entries {
		if err := h.store.Delete(c.Request.Context(), e.Name); err != nil {
			continue
		}
		deleted++
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}
