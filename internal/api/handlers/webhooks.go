package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Webhook is a registered inbound hook. Deliveries arrive on
// POST /hook/:id and overwrite LastPayload.
type Webhook struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Target       string `json:"target,omitempty"`
	Secret       string `json:"secret,omitempty"`
	CreatedAt    string `json:"created_at"`
	Deliveries   int    `json:"deliveries"`
	LastPayload  string `json:"last_payload,omitempty"`
	LastDelivery string `json:"last_delivery,omitempty"`
}

func (h *Handler) CreateWebhook(c *gin.Context) {
	if !h.requireStore(c) {
		return
	}
	var in struct {
		Name   string `json:"name"`
		Target string `json:"target"`
		Secret string `json:"secret"`
	}
	if err := c.ShouldBindJSON(&in); err != nil && err != io.EOF {
		respondBadRequest(c, "invalid JSON body")
		return
	}
	if in.Name == "" {
		in.Name = "unnamed"
	}

	hook := Webhook{
		ID:        uuid.NewString(),
		Name:      in.Name,
		Target:    in.Target,
		Secret:    in.Secret,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := h.putJSON(c, webhookPrefix+hook.ID, hook); err != nil {
		return
	}
	c.JSON(http.StatusCreated, hook)
}

func (h *Handler) ListWebhooks(c *gin.Context) {
	h.listJSON(c, webhookPrefix, "webhooks")
}

func (h *Handler) GetWebhook(c *gin.Context) {
	if !h.requireStore(c) {
		return
	}
	var hook Webhook
	if !h.getJSON(c, webhookPrefix+c.Param("id"), &hook) {
		return
	}
	c.JSON(http.StatusOK, hook)
}

func (h *Handler) DeleteWebhook(c *gin.Context) {
	h.deleteKey(c, webhookPrefix+c.Param("id"))
}

// ReceiveHook records a delivery against a registered webhook. The raw
// payload is stored as-is; no signature verification is performed.
func (h *Handler) ReceiveHook(c *gin.Context) {
	if !h.requireStore(c) {
		return
	}
	key := webhookPrefix + c.Param("id")
	var hook Webhook
	if !h.getJSON(c, key, &hook) {
		return
	}

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		payload = nil
	}
	hook.Deliveries++
	hook.LastPayload = string(payload)
	hook.LastDelivery = time.Now().UTC().Format(time.RFC3339)

	if err := h.putJSON(c, key, hook); err != nil {
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true, "deliveries": hook.Deliveries})
}

// putJSON persists v under key, responding with a store error on
// failure. Returns a non-nil error when the response was already sent.
func (h *Handler) putJSON(c *gin.Context, key string, v any) error {
	raw, err := sonic.MarshalString(v)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "encode record: "+err.Error())
		return err
	}
	if err := h.store.Put(c.Request.Context(), key, raw, 0); err != nil {
		respondStoreError(c, err)
		return err
	}
	return nil
}

// getJSON loads key into v. On absence or decode failure it responds
// 404 and returns false.
func (h *Handler) getJSON(c *gin.Context, key string, v any) bool {
	raw, ok, err := h.store.Get(c.Request.Context(), key)
	if err != nil {
		respondStoreError(c, err)
		return false
	}
	if !ok {
		respondNotFound(c, "not found")
		return false
	}
	if err := sonic.UnmarshalString(raw, v); err != nil {
		// Corrupt records read as absent.
		respondNotFound(c, "not found")
		return false
	}
	return true
}

// listJSON returns every record under prefix as decoded JSON values.
func (h *Handler) listJSON(c *gin.Context, prefix, field string) {
	if !h.requireStore(c) {
		return
	}
	entries, err := h.store.List(c.Request.Context(), prefix, 0)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	items := make([]any, 0, len(entries))
	for _, e := range entries {
		raw, ok, err := h.store.Get(c.Request.Context(), e.Name)
		if err != nil || !ok {
			continue
		}
		var v any
		if err := sonic.UnmarshalString(raw, &v); err != nil {
			continue
		}
		items = append(items, v)
	}
	c.JSON(http.StatusOK, gin.H{field: items, "count": len(items)})
}

// deleteKey removes key if present.
func (h *Handler) deleteKey(c *gin.Context, key string) {
	if !h.requireStore(c) {
		return
	}
	_, ok, err := h.store.Get(c.Request.Context(), key)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	if !ok {
		respondNotFound(c, "not found")
		return
	}
	if err := h.store.Delete(c.Request.Context(), key); err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
