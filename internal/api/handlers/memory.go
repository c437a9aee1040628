package handlers

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Memory is free-form configuration storage: one JSON document per name.
// Values round-trip verbatim; the server only validates that bodies are
// JSON.

func (h *Handler) ListMemory(c *gin.Context) {
	if !h.requireStore(c) {
		return
	}
	entries, err := h.store.List(c.Request.Context(), memoryPrefix, 0)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, strings.TrimPrefix(e.Name, memoryPrefix))
	}
	c.JSON(http.StatusOK, gin.H{"keys": keys, "count": len(keys)})
}

func (h *Handler) GetMemory(c *gin.Context) {
	if !h.requireStore(c) {
		return
	}
	raw, ok, err := h.store.Get(c.Request.Context(), memoryPrefix+c.Param("key"))
	if err != nil {
		respondStoreError(c, err)
		return
	}
	if !ok {
		respondNotFound(c, "not found")
		return
	}
	c.Data(http.StatusOK, "application/json", []byte(raw))
}

// PutMemory stores the request body verbatim under the named key.
func (h *Handler) PutMemory(c *gin.Context) {
	if !h.requireStore(c) {
		return
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil || !gjson.ValidBytes(body) {
		respondBadRequest(c, "body must be valid JSON")
		return
	}
	key := memoryPrefix + c.Param("key")
	if err := h.store.Put(c.Request.Context(), key, string(body), 0); err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stored": true, "key": c.Param("key")})
}

// PatchMemory merges the body's top-level fields into the stored
// document. Nested values are replaced wholesale under their top-level
// key.
func (h *Handler) PatchMemory(c *gin.Context) {
	if !h.requireStore(c) {
		return
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil || !gjson.ValidBytes(body) {
		respondBadRequest(c, "body must be valid JSON")
		return
	}
	patch := gjson.ParseBytes(body)
	if !patch.IsObject() {
		respondBadRequest(c, "body must be a JSON object")
		return
	}

	key := memoryPrefix + c.Param("key")
	current, ok, err := h.store.Get(c.Request.Context(), key)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	if !ok {
		current = "{}"
	}

	merged := current
	var mergeErr error
	patch.ForEach(func(field, value gjson.Result) bool {
		merged, mergeErr = sjson.SetRaw(merged, field.Str, value.Raw)
		return mergeErr == nil
	})
	if mergeErr != nil {
		respondBadRequest(c, "merge failed: "+mergeErr.Error())
		return
	}

	if err := h.store.Put(c.Request.Context(), key, merged, 0); err != nil {
		respondStoreError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", []byte(merged))
}

func (h *Handler) DeleteMemory(c *gin.Context) {
	h.deleteKey(c, memoryPrefix+c.Param("key"))
}
